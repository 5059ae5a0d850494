package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FILES_ALLOWED_EXTENSIONS", "PDF, docx ,,png")
	t.Setenv("EPC_RELAY_GRACE", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/api/v1", cfg.APIPrefix)
	require.Equal(t, []string{"pdf", "docx", "png"}, cfg.Files.AllowedExtensions)
	require.Equal(t, 10*time.Minute, cfg.Relay.GraceTime)
	require.Equal(t, int64(10*1024*1024), cfg.Notifications.MaxAttachmentsBytes)
}

func TestSplitAndTrim(t *testing.T) {
	require.Nil(t, SplitAndTrim(""))
	require.Equal(t, []string{"a@x.org", "b@x.org"}, SplitAndTrim(" a@x.org ,b@x.org, "))
}
