package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
	"github.com/noah-isme/iufc-admission-api/pkg/export"
)

const (
	exportPageSize       = 200
	defaultExportMaxRows = 5000
)

// ExportKind names an exportable listing.
type ExportKind string

const (
	ExportAdmissions    ExportKind = "admissions"
	ExportRegistrations ExportKind = "registrations"
	ExportArchives      ExportKind = "archives"
	ExportProspects     ExportKind = "prospects"
	ExportTrainings     ExportKind = "trainings"
)

type exportAdmissionLister interface {
	List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, int, error)
}

type exportProspectLister interface {
	List(ctx context.Context, filter models.ProspectFilter) ([]models.Prospect, int, error)
}

type exportTrainingLister interface {
	GetByID(ctx context.Context, id string) (*models.Training, error)
	List(ctx context.Context, filter models.TrainingFilter) ([]models.Training, int, error)
	ListManagers(ctx context.Context, trainingID string) ([]models.Person, error)
}

type sheetRenderer interface {
	RenderSheet(sheet export.Sheet) ([]byte, error)
}

// ExportRequest selects what to export and how to render it.
type ExportRequest struct {
	Kind        ExportKind
	Format      string
	States      []models.AdmissionState
	TrainingIDs []string
	Search      string
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders admission, registration, prospect and training listings.
type ExportService struct {
	admissions exportAdmissionLister
	details    admissionDetailLoader
	prospects  exportProspectLister
	trainings  exportTrainingLister
	access     *AccessPolicy
	sheets     sheetRenderer
	audit      auditLogger
	logger     *zap.Logger
	maxRows    int
	now        func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(
	admissions exportAdmissionLister,
	details admissionDetailLoader,
	prospects exportProspectLister,
	trainings exportTrainingLister,
	access *AccessPolicy,
	audit auditLogger,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		admissions: admissions,
		details:    details,
		prospects:  prospects,
		trainings:  trainings,
		access:     access,
		sheets:     export.NewPDFExporter(),
		audit:      audit,
		logger:     logger,
		maxRows:    defaultExportMaxRows,
		now:        time.Now,
	}
}

// WithMaxRows bounds the number of rows a synchronous export may contain.
func (s *ExportService) WithMaxRows(n int) *ExportService {
	if n > 0 {
		s.maxRows = n
	}
	return s
}

// Export builds the requested listing and renders it.
func (s *ExportService) Export(ctx context.Context, claims *models.JWTClaims, req ExportRequest) (*ExportFile, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !claims.Role.IsStaff() {
		return nil, appErrors.ErrForbidden
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, appErrors.FieldError("format", err.Error())
	}
	renderer, err := export.RendererFor(format)
	if err != nil {
		return nil, appErrors.FieldError("format", err.Error())
	}

	var dataset export.Dataset
	switch req.Kind {
	case ExportAdmissions, ExportRegistrations, ExportArchives:
		dataset, err = s.admissionDataset(ctx, claims, req)
	case ExportProspects:
		if claims.Role != models.RoleManager {
			return nil, appErrors.ErrForbidden
		}
		dataset, err = s.prospectDataset(ctx)
	case ExportTrainings:
		dataset, err = s.trainingDataset(ctx, claims)
	default:
		return nil, appErrors.FieldError("kind", fmt.Sprintf("unknown export %q", req.Kind))
	}
	if err != nil {
		return nil, err
	}

	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("export generated",
		zap.String("kind", string(req.Kind)),
		zap.String("format", string(format)),
		zap.Int("rows", len(dataset.Rows)),
		zap.String("user_id", claims.UserID))
	s.emitAudit(ctx, claims, string(req.Kind))

	return &ExportFile{
		Filename:    fmt.Sprintf("%s_%s.%s", req.Kind, s.now().UTC().Format("20060102_150405"), format),
		ContentType: format.ContentType(),
		Data:        payload,
	}, nil
}

// AdmissionSheet renders one admission as a PDF summary.
func (s *ExportService) AdmissionSheet(ctx context.Context, claims *models.JWTClaims, id string) (*ExportFile, error) {
	detail, err := s.details.LoadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanView(ctx, claims, &detail.Admission); err != nil {
		return nil, err
	}
	payload, err := s.sheets.RenderSheet(admissionSheet(detail))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render admission sheet")
	}
	name := sanitize(detail.Person.LastName + "_" + detail.Training.Acronym)
	if name == "" {
		name = "admission"
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("%s.%s", name, export.FormatPDF),
		ContentType: export.FormatPDF.ContentType(),
		Data:        payload,
	}, nil
}

func (s *ExportService) admissionDataset(ctx context.Context, claims *models.JWTClaims, req ExportRequest) (export.Dataset, error) {
	archived := req.Kind == ExportArchives
	filter := models.AdmissionFilter{
		States:       req.States,
		TrainingIDs:  req.TrainingIDs,
		Archived:     &archived,
		Registration: req.Kind == ExportRegistrations,
		Search:       req.Search,
	}
	if err := s.access.Scope(ctx, claims, &filter); err != nil {
		return export.Dataset{}, err
	}

	var details []*models.AdmissionDetail
	for offset := 0; offset < s.maxRows; offset += exportPageSize {
		filter.Limit = exportPageSize
		filter.Offset = offset
		page, total, err := s.admissions.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list admissions")
		}
		for i := range page {
			detail, err := s.details.LoadByID(ctx, page[i].ID)
			if err != nil {
				return export.Dataset{}, err
			}
			details = append(details, detail)
		}
		if len(page) < exportPageSize || offset+len(page) >= total {
			break
		}
	}

	switch req.Kind {
	case ExportRegistrations:
		return registrationRows(details), nil
	case ExportArchives:
		return archiveRows(details), nil
	default:
		return admissionRows(details), nil
	}
}

func admissionRows(details []*models.AdmissionDetail) export.Dataset {
	data := export.Dataset{
		Title:   "Admissions",
		Headers: []string{"Name", "First name", "Email", "Formation", "Faculty", "State", "Submitted at"},
	}
	for _, d := range details {
		data.Rows = append(data.Rows, []string{
			d.Person.LastName,
			d.Person.FirstName,
			d.Email,
			d.Training.Acronym,
			d.Training.Faculty,
			d.State.Label(),
			formatExportTime(d.SubmittedAt),
		})
	}
	return data
}

func registrationRows(details []*models.AdmissionDetail) export.Dataset {
	data := export.Dataset{
		Title: "Registrations",
		Headers: []string{"Name", "First name", "Email", "Formation", "State", "Registration type",
			"Registration file received", "Payment complete", "UCL registration", "Noma"},
	}
	for _, d := range details {
		data.Rows = append(data.Rows, []string{
			d.Person.LastName,
			d.Person.FirstName,
			d.Email,
			d.Training.Acronym,
			d.State.Label(),
			string(d.RegistrationType),
			yesNo(d.RegistrationFileReceived),
			yesNo(d.PaymentComplete),
			d.UCLRegistrationComplete.Label(),
			d.Noma,
		})
	}
	return data
}

func archiveRows(details []*models.AdmissionDetail) export.Dataset {
	data := export.Dataset{
		Title:   "Archives",
		Headers: []string{"Name", "First name", "Email", "Formation", "Academic year", "State", "Last update"},
	}
	for _, d := range details {
		updated := d.UpdatedAt
		data.Rows = append(data.Rows, []string{
			d.Person.LastName,
			d.Person.FirstName,
			d.Email,
			d.Training.Acronym,
			academicYear(d.AcademicYear),
			d.State.Label(),
			formatExportTime(&updated),
		})
	}
	return data
}

func (s *ExportService) prospectDataset(ctx context.Context) (export.Dataset, error) {
	data := export.Dataset{
		Title:   "Prospects",
		Headers: []string{"Name", "First name", "Email", "Phone number", "Postal code", "City", "Formation", "Created at"},
	}
	acronyms := map[string]string{}
	for offset := 0; offset < s.maxRows; offset += exportPageSize {
		page, total, err := s.prospects.List(ctx, models.ProspectFilter{Limit: exportPageSize, Offset: offset})
		if err != nil {
			return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list prospects")
		}
		for _, p := range page {
			created := p.CreatedAt
			data.Rows = append(data.Rows, []string{
				p.Name,
				p.FirstName,
				p.Email,
				p.PhoneNumber,
				p.PostalCode,
				p.City,
				s.trainingAcronym(ctx, acronyms, p.TrainingID),
				formatExportTime(&created),
			})
		}
		if len(page) < exportPageSize || offset+len(page) >= total {
			break
		}
	}
	return data, nil
}

func (s *ExportService) trainingAcronym(ctx context.Context, cache map[string]string, id *string) string {
	if id == nil {
		return ""
	}
	if acronym, ok := cache[*id]; ok {
		return acronym
	}
	acronym := ""
	if training, err := s.trainings.GetByID(ctx, *id); err == nil {
		acronym = training.Acronym
	}
	cache[*id] = acronym
	return acronym
}

func (s *ExportService) trainingDataset(ctx context.Context, claims *models.JWTClaims) (export.Dataset, error) {
	filter := models.TrainingFilter{}
	if claims.Role == models.RoleTrainingManager {
		filter.ManagerID = claims.PersonID
	}
	data := export.Dataset{
		Title:   "Trainings",
		Headers: []string{"Acronym", "Title", "Academic year", "Faculty", "Active", "Registration required", "Managers"},
	}
	for offset := 0; offset < s.maxRows; offset += exportPageSize {
		filter.Limit = exportPageSize
		filter.Offset = offset
		page, total, err := s.trainings.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trainings")
		}
		for _, t := range page {
			managers, err := s.trainings.ListManagers(ctx, t.ID)
			if err != nil {
				return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training managers")
			}
			names := make([]string, 0, len(managers))
			for _, m := range managers {
				names = append(names, m.FullName())
			}
			data.Rows = append(data.Rows, []string{
				t.Acronym,
				t.Title,
				academicYear(t.AcademicYear),
				t.Faculty,
				yesNo(t.Active),
				yesNo(t.RegistrationRequired),
				strings.Join(names, ", "),
			})
		}
		if len(page) < exportPageSize || offset+len(page) >= total {
			break
		}
	}
	return data, nil
}

func admissionSheet(d *models.AdmissionDetail) export.Sheet {
	year := func(v *int) string {
		if v == nil {
			return ""
		}
		return strconv.Itoa(*v)
	}
	birthDate := ""
	if d.PersonInfo.BirthDate != nil {
		birthDate = d.PersonInfo.BirthDate.Format("02/01/2006")
	}
	sheet := export.Sheet{
		Title:    d.Person.FullName(),
		Subtitle: d.Training.Display(),
		Sections: []export.Section{
			{Heading: "Participant", Fields: [][2]string{
				{"Last name", d.Person.LastName},
				{"First name", d.Person.FirstName},
				{"Email", d.Email},
				{"Mobile phone", d.PhoneMobile},
				{"Birth date", birthDate},
				{"Birth location", d.PersonInfo.BirthLocation},
				{"Address", formatAddress(d.Address)},
			}},
			{Heading: "Education", Fields: [][2]string{
				{"High school diploma", yesNo(d.HighSchoolDiploma)},
				{"High school graduation year", year(d.HighSchoolGraduationYear)},
				{"Last degree level", d.LastDegreeLevel},
				{"Last degree field", d.LastDegreeField},
				{"Last degree institution", d.LastDegreeInstitution},
				{"Last degree graduation year", year(d.LastDegreeGraduationYear)},
				{"Other educational background", d.OtherEducationalBackground},
			}},
			{Heading: "Professional background", Fields: [][2]string{
				{"Professional status", d.ProfessionalStatus},
				{"Current occupation", d.CurrentOccupation},
				{"Current employer", d.CurrentEmployer},
				{"Activity sector", d.ActivitySector},
				{"Past professional activities", d.PastProfessionalActivities},
				{"Motivation", d.Motivation},
				{"Professional and personal interests", d.ProfessionalInterests},
			}},
			{Heading: "Follow-up", Fields: [][2]string{
				{"State", d.State.Label()},
				{"Reason", d.StateReason},
				{"Condition of acceptance", d.ConditionOfAccept},
				{"Submitted at", formatExportTime(d.SubmittedAt)},
			}},
		},
	}
	if d.State.IsRegistration() {
		sheet.Sections = append(sheet.Sections, export.Section{Heading: "Registration", Fields: [][2]string{
			{"Registration type", string(d.RegistrationType)},
			{"Billing address", formatAddress(d.BillingAddress)},
			{"Residence address", formatAddress(d.ResidenceAddress)},
			{"Registration file received", yesNo(d.RegistrationFileReceived)},
			{"Payment complete", yesNo(d.PaymentComplete)},
			{"UCL registration", d.UCLRegistrationComplete.Label()},
			{"Noma", d.Noma},
		}})
	}
	return sheet
}

func formatAddress(a *models.Address) string {
	if a == nil {
		return ""
	}
	parts := []string{a.Location, strings.TrimSpace(a.PostalCode + " " + a.City)}
	if a.Country != nil {
		parts = append(parts, a.Country.Name)
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func academicYear(year int) string {
	if year <= 0 {
		return ""
	}
	return models.FormatAcademicYear(year)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func formatExportTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func (s *ExportService) emitAudit(ctx context.Context, claims *models.JWTClaims, kind string) {
	if s.audit == nil {
		return
	}
	userID := claims.UserID
	resource := kind
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionExport,
		Resource:   "export",
		ResourceID: &resource,
		IPAddress:  "system",
		UserAgent:  "export-service",
	}); err != nil {
		s.logger.Warn("failed to create export audit", zap.Error(err))
	}
}
