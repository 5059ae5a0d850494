package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Admissions MDEMO2FC",
		Headers: []string{"Name", "Email", "State"},
		Rows: [][]string{
			{"Dupont Anne", "anne@example.org", "Accepted"},
			{"Lambert Marc", "marc@example.org"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("docx")
	require.Error(t, err)
}

func TestCSVExporterRendersSemicolonRows(t *testing.T) {
	body, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	content := strings.TrimPrefix(string(body), utf8BOM)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Name;Email;State", lines[0])
	require.Equal(t, "Lambert Marc;marc@example.org;", lines[2])
}

func TestExportersRejectEmptyHeaders(t *testing.T) {
	for _, format := range []Format{FormatCSV, FormatPDF, FormatXLSX} {
		r, err := RendererFor(format)
		require.NoError(t, err)
		_, err = r.Render(Dataset{})
		require.Error(t, err)
	}
}

func TestPDFExporterProducesDocument(t *testing.T) {
	body, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestXLSXExporterWritesCells(t *testing.T) {
	body, err := NewXLSXExporter().Render(sampleDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"Name", "Email", "State"}, rows[0])
	require.Equal(t, "Accepted", rows[1][2])
}

func TestPDFExporterRendersSheet(t *testing.T) {
	body, err := NewPDFExporter().RenderSheet(Sheet{
		Title:    "Admission",
		Subtitle: "MDEMO2FC - 2024-25",
		Sections: []Section{{Heading: "Participant", Fields: [][2]string{{"Name", "Doe"}, {"Email", "jane@example.org"}}}},
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	_, err = NewPDFExporter().RenderSheet(Sheet{Title: "Empty"})
	require.Error(t, err)
}
