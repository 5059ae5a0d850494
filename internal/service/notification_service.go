package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	"github.com/noah-isme/iufc-admission-api/internal/notification"
	"github.com/noah-isme/iufc-admission-api/pkg/mailer"
	"github.com/noah-isme/iufc-admission-api/pkg/storage"
)

const defaultMaxAttachmentsBytes int64 = 10 << 20

type notificationManagerReader interface {
	ListManagers(ctx context.Context, trainingID string) ([]models.Person, error)
}

type notificationFileReader interface {
	ListByAdmission(ctx context.Context, admissionID string) ([]models.AdmissionFile, error)
}

// NotificationConfig drives the dispatcher.
type NotificationConfig struct {
	Enabled             bool
	FrontendURL         string
	MaxAttachmentsBytes int64
}

// NotificationContext is one composed notification. A fresh value is built for
// every send and never shared.
type NotificationContext struct {
	Audience    notification.Audience
	Ref         notification.Ref
	Recipients  []string
	Data        notification.Data
	Attachments []mailer.Attachment
}

// NotificationService composes admission emails and hands them to the mailer.
type NotificationService struct {
	templates *notification.Templates
	sender    mailer.Sender
	managers  notificationManagerReader
	files     notificationFileReader
	store     storage.Store
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       NotificationConfig
}

// NewNotificationService wires the dispatcher.
func NewNotificationService(
	templates *notification.Templates,
	sender mailer.Sender,
	managers notificationManagerReader,
	files notificationFileReader,
	store storage.Store,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg NotificationConfig,
) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttachmentsBytes <= 0 {
		cfg.MaxAttachmentsBytes = defaultMaxAttachmentsBytes
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	return &NotificationService{
		templates: templates,
		sender:    sender,
		managers:  managers,
		files:     files,
		store:     store,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// NotifyStateChange sends the emails tied to an admission entering after.
// Delivery errors are returned, never swallowed.
func (s *NotificationService) NotifyStateChange(ctx context.Context, detail *models.AdmissionDetail, before, after models.AdmissionState, actor *models.Actor) error {
	if s == nil || !s.cfg.Enabled || detail == nil {
		return nil
	}
	audiences := notification.Audiences(after)
	if len(audiences) == 0 {
		return nil
	}

	managers, err := s.managers.ListManagers(ctx, detail.TrainingID)
	if err != nil {
		return fmt.Errorf("load training managers: %w", err)
	}

	fields := []zap.Field{
		zap.String("admission_id", detail.ID),
		zap.String("from", string(before)),
		zap.String("to", string(after)),
	}
	if actor != nil {
		fields = append(fields, zap.String("actor_id", actor.UserID))
	}

	var errs []error
	for _, audience := range audiences {
		nc, err := s.compose(ctx, detail, after, audience, managers)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.deliver(ctx, nc); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("state change notification failed", append(fields, zap.Error(err))...)
		return err
	}
	s.logger.Debug("state change notified", fields...)
	return nil
}

// NotifyInvoiceUploaded tells the participant an invoice was attached to the file.
func (s *NotificationService) NotifyInvoiceUploaded(ctx context.Context, detail *models.AdmissionDetail) error {
	if s == nil || !s.cfg.Enabled || detail == nil {
		return nil
	}
	managers, err := s.managers.ListManagers(ctx, detail.TrainingID)
	if err != nil {
		return fmt.Errorf("load training managers: %w", err)
	}
	nc := NotificationContext{
		Audience:   notification.AudienceParticipant,
		Ref:        notification.RefFor(notification.AudienceParticipant, notification.InvoiceUploadedKey),
		Recipients: participantRecipients(detail),
		Data:       s.baseData(detail, managers),
	}
	return s.deliver(ctx, nc)
}

func (s *NotificationService) compose(ctx context.Context, detail *models.AdmissionDetail, state models.AdmissionState, audience notification.Audience, managers []models.Person) (NotificationContext, error) {
	nc := NotificationContext{
		Audience: audience,
		Ref:      notification.RefFor(audience, notification.Key(state)),
		Data:     s.baseData(detail, managers),
	}

	switch audience {
	case notification.AudienceParticipant:
		nc.Recipients = participantRecipients(detail)
		if notification.Submission(state) {
			nc.Data.AdmissionData = formatAdmissionData(detail)
		}
	case notification.AudienceAdmin:
		nc.Recipients = adminRecipients(detail.Training, managers)
		if notification.Submission(state) && len(nc.Recipients) > 0 {
			attachments, names, omitted, err := s.collectAttachments(ctx, detail.ID)
			if err != nil {
				return nc, err
			}
			nc.Attachments = attachments
			nc.Data.Attachments = names
			nc.Data.AttachmentsOmitted = omitted
		}
	}
	return nc, nil
}

func (s *NotificationService) baseData(detail *models.AdmissionDetail, managers []models.Person) notification.Data {
	reason := strings.TrimSpace(detail.StateReason)
	if reason == "" {
		reason = "-"
	}
	return notification.Data{
		FirstName:            detail.Person.FirstName,
		LastName:             detail.Person.LastName,
		Formation:            formationName(detail.Training),
		FormationAcronym:     detail.Training.Acronym,
		State:                detail.State.Label(),
		Reason:               reason,
		Mails:                managersMails(managers),
		Condition:            strings.TrimSpace(detail.ConditionOfAccept),
		RegistrationRequired: detail.Training.RegistrationRequired,
		FormationLink:        fmt.Sprintf("%s/admissions/%s", s.cfg.FrontendURL, detail.ID),
	}
}

func (s *NotificationService) deliver(ctx context.Context, nc NotificationContext) error {
	audience := string(nc.Audience)
	if len(nc.Recipients) == 0 {
		s.metrics.RecordNotification(audience, OutcomeIgnored)
		return nil
	}
	rendered, err := s.templates.Render(nc.Ref, nc.Data)
	if err != nil {
		s.metrics.RecordNotification(audience, OutcomeFailure)
		return err
	}
	msg := mailer.Message{
		To:          nc.Recipients,
		Subject:     rendered.Subject,
		HTML:        rendered.HTML,
		Text:        rendered.Text,
		Attachments: nc.Attachments,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.metrics.RecordNotification(audience, OutcomeFailure)
		return fmt.Errorf("send %s notification: %w", audience, err)
	}
	s.metrics.RecordNotification(audience, OutcomeSuccess)
	return nil
}

// collectAttachments loads the admission documents. When their total size
// exceeds the cap, or one cannot be read, none are attached and omitted is set.
func (s *NotificationService) collectAttachments(ctx context.Context, admissionID string) ([]mailer.Attachment, []string, bool, error) {
	if s.files == nil {
		return nil, nil, false, nil
	}
	files, err := s.files.ListByAdmission(ctx, admissionID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("list admission files: %w", err)
	}
	if len(files) == 0 {
		return nil, nil, false, nil
	}

	var total int64
	names := make([]string, 0, len(files))
	for _, f := range files {
		total += f.SizeBytes
		names = append(names, f.Name)
	}
	if total > s.cfg.MaxAttachmentsBytes || s.store == nil {
		return nil, names, true, nil
	}

	attachments := make([]mailer.Attachment, 0, len(files))
	for _, f := range files {
		data, err := s.readFile(ctx, f.Path)
		if err != nil {
			s.logger.Warn("attachment unreadable", zap.String("admission_id", admissionID), zap.String("file_id", f.ID), zap.Error(err))
			return nil, names, true, nil
		}
		attachments = append(attachments, mailer.Attachment{Name: f.Name, ContentType: f.MimeType, Data: data})
	}
	return attachments, names, false, nil
}

func (s *NotificationService) readFile(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func formationName(t models.Training) string {
	if t.Title == "" {
		return t.Acronym
	}
	return t.Acronym + " - " + t.Title
}

// participantRecipients collapses the admission contact email and the
// account email into a unique list.
func participantRecipients(detail *models.AdmissionDetail) []string {
	return uniqueAddresses([]string{detail.Email, detail.Person.Email})
}

// adminRecipients returns nobody when the training disabled notifications,
// the alternate addresses when configured, and the managers otherwise.
func adminRecipients(training models.Training, managers []models.Person) []string {
	if !training.SendNotificationEmail {
		return nil
	}
	if alternates := uniqueAddresses(strings.Split(training.AlternateEmails, ",")); len(alternates) > 0 {
		return alternates
	}
	emails := make([]string, 0, len(managers))
	for _, m := range managers {
		emails = append(emails, m.Email)
	}
	return uniqueAddresses(emails)
}

// managersMails joins the managers' emails ordered by surname with " or ".
func managersMails(managers []models.Person) string {
	sorted := make([]models.Person, len(managers))
	copy(sorted, managers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].LastName) < strings.ToLower(sorted[j].LastName)
	})
	emails := make([]string, 0, len(sorted))
	for _, m := range sorted {
		if email := strings.TrimSpace(m.Email); email != "" {
			emails = append(emails, email)
		}
	}
	return strings.Join(emails, " or ")
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return out
}

func formatAdmissionData(d *models.AdmissionDetail) []string {
	yesNo := func(v bool) string {
		if v {
			return "Yes"
		}
		return "No"
	}
	year := func(v *int) string {
		if v == nil {
			return ""
		}
		return strconv.Itoa(*v)
	}
	line := func(label, value string) string {
		return label + " : " + value
	}
	return []string{
		line("Last name", d.Person.LastName),
		line("First name", d.Person.FirstName),
		line("Formation", d.Training.Acronym),
		line("High school diploma", yesNo(d.HighSchoolDiploma)),
		line("High school graduation year", year(d.HighSchoolGraduationYear)),
		line("Last degree level", d.LastDegreeLevel),
		line("Last degree field", d.LastDegreeField),
		line("Last degree institution", d.LastDegreeInstitution),
		line("Last degree graduation year", year(d.LastDegreeGraduationYear)),
		line("Other educational background", d.OtherEducationalBackground),
		line("Professional status", d.ProfessionalStatus),
		line("Current occupation", d.CurrentOccupation),
		line("Current employer", d.CurrentEmployer),
		line("Activity sector", d.ActivitySector),
		line("Past professional activities", d.PastProfessionalActivities),
		line("Motivation", d.Motivation),
		line("Professional and personal interests", d.ProfessionalInterests),
		line("State", d.State.Label()),
	}
}
