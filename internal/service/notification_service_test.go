package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	"github.com/noah-isme/iufc-admission-api/internal/notification"
	"github.com/noah-isme/iufc-admission-api/pkg/mailer"
	"github.com/noah-isme/iufc-admission-api/pkg/storage"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type managerReaderStub struct {
	managers map[string][]models.Person
}

func (m managerReaderStub) ListManagers(ctx context.Context, trainingID string) ([]models.Person, error) {
	return m.managers[trainingID], nil
}

type fileReaderStub struct {
	files map[string][]models.AdmissionFile
}

func (f fileReaderStub) ListByAdmission(ctx context.Context, admissionID string) ([]models.AdmissionFile, error) {
	return f.files[admissionID], nil
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func notificationDetail(state models.AdmissionState) *models.AdmissionDetail {
	return &models.AdmissionDetail{
		Admission: models.Admission{
			ID:                "adm-1",
			TrainingID:        "tr-1",
			Email:             "Jane@Example.org",
			State:             state,
			ConditionOfAccept: "Bring your diploma",
			Motivation:        "Career change",
		},
		Person: models.Person{FirstName: "Jane", LastName: "Doe", Email: "jane@example.org"},
		Training: models.Training{
			ID:                    "tr-1",
			Acronym:               "MDEMO2FC",
			Title:                 "Demo training",
			RegistrationRequired:  true,
			SendNotificationEmail: true,
		},
	}
}

func newNotificationFixture(t *testing.T, files map[string][]models.AdmissionFile, cap int64) (*NotificationService, *recordingSender, *memoryStore) {
	t.Helper()
	sender := &recordingSender{}
	store := newMemoryStore()
	managers := managerReaderStub{managers: map[string][]models.Person{
		"tr-1": {
			{LastName: "Zeta", Email: "zeta@example.org"},
			{LastName: "Alpha", Email: "alpha@example.org"},
			{LastName: "Mid", Email: ""},
		},
	}}
	svc := NewNotificationService(notification.MustLoad(), sender, managers, fileReaderStub{files: files}, store, NewMetricsService(), nil, NotificationConfig{
		Enabled:             true,
		FrontendURL:         "https://iufc.example.org/",
		MaxAttachmentsBytes: cap,
	})
	return svc, sender, store
}

func TestNotifyStateChangeAcceptedSendsAdminAndParticipant(t *testing.T) {
	svc, sender, _ := newNotificationFixture(t, nil, 0)

	err := svc.NotifyStateChange(context.Background(), notificationDetail(models.AdmissionStateAccepted),
		models.AdmissionStateSubmitted, models.AdmissionStateAccepted, &models.Actor{UserID: "u-1"})
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)

	admin, participant := sender.sent[0], sender.sent[1]
	require.ElementsMatch(t, []string{"zeta@example.org", "alpha@example.org"}, admin.To)
	require.Contains(t, admin.Text, "is now : Accepted")

	require.Equal(t, []string{"Jane@Example.org"}, participant.To)
	require.Equal(t, "Your admission file is now : Accepted", participant.Subject)
	require.Contains(t, participant.Text, "Condition of acceptance : Bring your diploma")
	require.Contains(t, participant.Text, "alpha@example.org or zeta@example.org")
}

func TestNotifyStateChangeSubmittedCarriesDataAndAttachments(t *testing.T) {
	files := map[string][]models.AdmissionFile{
		"adm-1": {{ID: "f-1", Name: "cv.pdf", Path: "adm-1/cv.pdf", SizeBytes: 3, MimeType: "application/pdf"}},
	}
	svc, sender, store := newNotificationFixture(t, files, 1024)
	require.NoError(t, store.Put(context.Background(), "adm-1/cv.pdf", bytes.NewReader([]byte("pdf")), 3, "application/pdf"))

	err := svc.NotifyStateChange(context.Background(), notificationDetail(models.AdmissionStateSubmitted),
		models.AdmissionStateDraft, models.AdmissionStateSubmitted, nil)
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)

	admin := sender.sent[0]
	require.Len(t, admin.Attachments, 1)
	require.Equal(t, "cv.pdf", admin.Attachments[0].Name)
	require.Contains(t, admin.Text, "https://iufc.example.org/admissions/adm-1")

	participant := sender.sent[1]
	require.Contains(t, participant.Text, "Last name : Doe")
	require.Contains(t, participant.Text, "Motivation : Career change")
	require.Contains(t, participant.Text, "High school diploma : No")
}

func TestNotifyStateChangeOmitsOversizedAttachments(t *testing.T) {
	files := map[string][]models.AdmissionFile{
		"adm-1": {
			{ID: "f-1", Name: "a.pdf", Path: "adm-1/a.pdf", SizeBytes: 600},
			{ID: "f-2", Name: "b.pdf", Path: "adm-1/b.pdf", SizeBytes: 600},
		},
	}
	svc, sender, _ := newNotificationFixture(t, files, 1000)

	err := svc.NotifyStateChange(context.Background(), notificationDetail(models.AdmissionStateRegistrationSubmitted),
		models.AdmissionStateAccepted, models.AdmissionStateRegistrationSubmitted, nil)
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)
	require.Empty(t, sender.sent[0].Attachments)
	require.Contains(t, sender.sent[0].Text, "exceed the attachment size limit")
}

func TestNotifyStateChangeRespectsTrainingSettings(t *testing.T) {
	svc, sender, _ := newNotificationFixture(t, nil, 0)

	detail := notificationDetail(models.AdmissionStateRejected)
	detail.StateReason = "Programme complete"
	detail.Training.SendNotificationEmail = false
	require.NoError(t, svc.NotifyStateChange(context.Background(), detail, models.AdmissionStateSubmitted, models.AdmissionStateRejected, nil))
	require.Len(t, sender.sent, 1)
	require.Contains(t, sender.sent[0].Text, "Reason : Programme complete")

	sender.sent = nil
	detail.Training.SendNotificationEmail = true
	detail.Training.AlternateEmails = " desk@example.org, desk@example.org ,"
	require.NoError(t, svc.NotifyStateChange(context.Background(), detail, models.AdmissionStateSubmitted, models.AdmissionStateRejected, nil))
	require.Len(t, sender.sent, 2)
	require.Equal(t, []string{"desk@example.org"}, sender.sent[0].To)
}

func TestNotifyStateChangeSilentStatesAndDisabled(t *testing.T) {
	svc, sender, _ := newNotificationFixture(t, nil, 0)
	require.NoError(t, svc.NotifyStateChange(context.Background(), notificationDetail(models.AdmissionStateCancelled),
		models.AdmissionStateAccepted, models.AdmissionStateCancelled, nil))
	require.Empty(t, sender.sent)

	svc.cfg.Enabled = false
	require.NoError(t, svc.NotifyStateChange(context.Background(), notificationDetail(models.AdmissionStateAccepted),
		models.AdmissionStateSubmitted, models.AdmissionStateAccepted, nil))
	require.Empty(t, sender.sent)
}

func TestNotifyStateChangeReturnsTransportErrors(t *testing.T) {
	svc, sender, _ := newNotificationFixture(t, nil, 0)
	sender.err = errors.New("smtp down")

	err := svc.NotifyStateChange(context.Background(), notificationDetail(models.AdmissionStateWaiting),
		models.AdmissionStateSubmitted, models.AdmissionStateWaiting, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "smtp down")
}

func TestNotifyInvoiceUploaded(t *testing.T) {
	svc, sender, _ := newNotificationFixture(t, nil, 0)

	detail := notificationDetail(models.AdmissionStateAccepted)
	detail.Email = ""
	require.NoError(t, svc.NotifyInvoiceUploaded(context.Background(), detail))
	require.Len(t, sender.sent, 1)
	require.Equal(t, []string{"jane@example.org"}, sender.sent[0].To)
	require.Equal(t, "An invoice is available for MDEMO2FC", sender.sent[0].Subject)
}

func TestManagersMailsSortedBySurname(t *testing.T) {
	mails := managersMails([]models.Person{
		{LastName: "b", Email: "b@x.org"},
		{LastName: "A", Email: "a@x.org"},
		{LastName: "c"},
	})
	require.Equal(t, "a@x.org or b@x.org", mails)
}
