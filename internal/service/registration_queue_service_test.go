package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	"github.com/noah-isme/iufc-admission-api/pkg/broker"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

const ackAdmissionID = "7a3b5d0e-4a8b-4f4e-9d0b-0d1c2e3f4a5b"

type admissionStoreStub struct {
	mu         sync.Mutex
	items      map[string]*models.Admission
	updates    int
	pending    []models.Admission
	cutoff     time.Time
	lastFilter models.AdmissionFilter
}

func newAdmissionStoreStub(items ...*models.Admission) *admissionStoreStub {
	s := &admissionStoreStub{items: make(map[string]*models.Admission)}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return s
}

func (s *admissionStoreStub) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Admission, error) {
	return s.GetByID(ctx, id)
}

func (s *admissionStoreStub) GetByID(ctx context.Context, id string) (*models.Admission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *item
	return &copy, nil
}

func (s *admissionStoreStub) Update(ctx context.Context, exec sqlx.ExtContext, admission *models.Admission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[admission.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *admission
	s.items[admission.ID] = &copy
	s.updates++
	return nil
}

func (s *admissionStoreStub) ListAwaitingEPC(ctx context.Context, updatedBefore time.Time, limit int) ([]models.Admission, error) {
	s.cutoff = updatedBefore
	return s.pending, nil
}

type detailLoaderStub struct {
	store  *admissionStoreStub
	person models.Person
}

func (d detailLoaderStub) LoadByID(ctx context.Context, id string) (*models.AdmissionDetail, error) {
	admission, err := d.store.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
	}
	return &models.AdmissionDetail{
		Admission: *admission,
		Person:    d.person,
		Training:  models.Training{ID: admission.TrainingID, Acronym: "MDEMO2FC", RegistrationRequired: true},
	}, nil
}

type publisherStub struct {
	mu        sync.Mutex
	bodies    [][]byte
	queue     string
	err       error
	delivered func()
}

func (p *publisherStub) Publish(ctx context.Context, queue string, body []byte) error {
	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return p.err
	}
	p.queue = queue
	p.bodies = append(p.bodies, body)
	delivered := p.delivered
	p.mu.Unlock()
	if delivered != nil {
		delivered()
	}
	return nil
}

type cacheRepoStub struct {
	mu      sync.Mutex
	entries map[string]bool
	values  map[string][]byte
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{entries: make(map[string]bool), values: make(map[string][]byte)}
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = raw
	return nil
}

func (c *cacheRepoStub) DeleteByPrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.values {
		if strings.HasPrefix(key, prefix) {
			delete(c.values, key)
		}
	}
	return nil
}

func (c *cacheRepoStub) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[key] {
		return false, nil
	}
	c.entries[key] = true
	return true, nil
}

func (c *cacheRepoStub) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
		delete(c.values, key)
	}
	return nil
}

type queueFixture struct {
	svc       *RegistrationQueueService
	store     *admissionStoreStub
	revisions *revisionStoreStub
	publisher *publisherStub
}

func newQueueFixture(t *testing.T, admission *models.Admission) (*queueFixture, func(n int)) {
	t.Helper()
	tx, mock := newTxProviderMock(t)
	store := newAdmissionStoreStub(admission)
	revisions := &revisionStoreStub{}
	publisher := &publisherStub{}
	cache := NewCacheService(newCacheRepoStub(), nil, time.Minute, nil, true)
	svc := NewRegistrationQueueService(
		store,
		detailLoaderStub{store: store, person: models.Person{FirstName: "Jane", LastName: "Doe", Gender: models.GenderFemale}},
		NewRevisionService(tx, revisions, nil),
		publisher,
		cache,
		NewMetricsService(),
		nil,
		RegistrationQueueConfig{},
	)
	expectTx := func(n int) {
		for i := 0; i < n; i++ {
			mock.ExpectBegin()
			mock.ExpectCommit()
		}
	}
	t.Cleanup(func() { require.NoError(t, mock.ExpectationsWereMet()) })
	return &queueFixture{svc: svc, store: store, revisions: revisions, publisher: publisher}, expectTx
}

func validatedAdmission() *models.Admission {
	return &models.Admission{
		ID:                      ackAdmissionID,
		TrainingID:              "tr-1",
		State:                   models.AdmissionStateValidated,
		UCLRegistrationComplete: models.TrackingInitState,
		UCLRegistrationError:    models.RegistrationErrorNone,
	}
}

func TestRegistrationQueuePublishThenRegisteredAck(t *testing.T) {
	fx, expectTx := newQueueFixture(t, validatedAdmission())
	expectTx(2)

	require.NoError(t, fx.svc.Publish(context.Background(), ackAdmissionID, &models.Actor{UserID: "u-1", Name: "Manager"}))
	require.Equal(t, "IUFC_TO_EPC", fx.publisher.queue)
	require.Len(t, fx.publisher.bodies, 1)
	require.Contains(t, string(fx.publisher.bodies[0]), `"student_case_uuid":"`+ackAdmissionID+`"`)
	require.Len(t, fx.revisions.created, 1)
	require.Equal(t, models.RevisionUCLRegistrationSended, fx.revisions.created[0].Kind)

	body := []byte(`{"success": true, "message": "", "student_case_uuid": "` + ackAdmissionID + `", "registration_id": "123456789", "registration_status": "INSCRIT"}`)
	require.NoError(t, fx.svc.HandleAck(context.Background(), broker.Message{ID: "m-1", Body: body}))

	stored := fx.store.items[ackAdmissionID]
	require.Equal(t, models.TrackingRegistered, stored.UCLRegistrationComplete)
	require.Equal(t, "123456789", stored.Noma)
	require.Len(t, fx.revisions.created, 2)
	require.Equal(t, models.RevisionUCLRegistrationRegistered, fx.revisions.created[1].Kind)
	require.Equal(t, SystemActorName, fx.revisions.created[1].ActorName)

	// The same acknowledgement delivered again is dropped before touching the database.
	require.NoError(t, fx.svc.HandleAck(context.Background(), broker.Message{ID: "m-2", Body: body, Redelivered: true}))
	require.Len(t, fx.revisions.created, 2)
}

func TestRegistrationQueuePublishFailureKeepsState(t *testing.T) {
	fx, _ := newQueueFixture(t, validatedAdmission())
	fx.publisher.err = errors.New("connection refused")

	err := fx.svc.Publish(context.Background(), ackAdmissionID, nil)
	require.True(t, appErrors.Is(err, appErrors.ErrPublish))
	require.Equal(t, models.AdmissionStateValidated, fx.store.items[ackAdmissionID].State)
	require.Equal(t, models.TrackingInitState, fx.store.items[ackAdmissionID].UCLRegistrationComplete)
	require.Empty(t, fx.revisions.created)
}

func TestRegistrationQueuePublishRequiresValidated(t *testing.T) {
	admission := validatedAdmission()
	admission.State = models.AdmissionStateRegistrationSubmitted
	fx, _ := newQueueFixture(t, admission)

	err := fx.svc.Publish(context.Background(), ackAdmissionID, nil)
	require.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
	require.Empty(t, fx.publisher.bodies)
}

func TestRegistrationQueuePublishRejectsUnknownGender(t *testing.T) {
	fx, _ := newQueueFixture(t, validatedAdmission())
	loader := fx.svc.details.(detailLoaderStub)
	loader.person.Gender = "X"
	fx.svc.details = loader

	err := fx.svc.Publish(context.Background(), ackAdmissionID, nil)
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
	require.Empty(t, fx.publisher.bodies)
}

func TestRegistrationQueueAckFailureAndStatusChange(t *testing.T) {
	admission := validatedAdmission()
	admission.UCLRegistrationComplete = models.TrackingSended
	fx, expectTx := newQueueFixture(t, admission)
	expectTx(3)

	failure := []byte(`{"success": false, "message": "IUFC_NOM_TROP_LONG", "student_case_uuid": "` + ackAdmissionID + `"}`)
	require.NoError(t, fx.svc.HandleAck(context.Background(), broker.Message{Body: failure}))
	stored := fx.store.items[ackAdmissionID]
	require.Equal(t, models.TrackingRejected, stored.UCLRegistrationComplete)
	require.Equal(t, models.RegistrationErrorNameTooLong, stored.UCLRegistrationError)
	require.Equal(t, models.RevisionUCLRegistrationRejected, fx.revisions.created[0].Kind)

	status := []byte(`{"success": true, "message": "", "student_case_uuid": "` + ackAdmissionID + `", "registration_status": "CONDITION"}`)
	require.NoError(t, fx.svc.HandleAck(context.Background(), broker.Message{Body: status}))
	require.Equal(t, models.TrackingProvisional, fx.store.items[ackAdmissionID].UCLRegistrationComplete)
	require.Equal(t, "EPC registration state changed : Provisional", fx.revisions.created[1].Message)

	// Same status with a different message body is a no-op.
	sameStatus := []byte(`{"success": true, "message": "again", "student_case_uuid": "` + ackAdmissionID + `", "registration_status": "CONDITION"}`)
	require.NoError(t, fx.svc.HandleAck(context.Background(), broker.Message{Body: sameStatus}))
	require.Len(t, fx.revisions.created, 2)
}

func TestRegistrationQueueAckFailureAfterRegistrationIsIgnored(t *testing.T) {
	admission := validatedAdmission()
	admission.UCLRegistrationComplete = models.TrackingRegistered
	admission.Noma = "123456789"
	fx, expectTx := newQueueFixture(t, admission)
	expectTx(1)

	failure := []byte(`{"success": false, "message": "late", "student_case_uuid": "` + ackAdmissionID + `"}`)
	require.NoError(t, fx.svc.HandleAck(context.Background(), broker.Message{Body: failure}))
	require.Equal(t, models.TrackingRegistered, fx.store.items[ackAdmissionID].UCLRegistrationComplete)
	require.Zero(t, fx.store.updates)
	require.Empty(t, fx.revisions.created)
}

func TestRegistrationQueueAckMalformedAndUnknownAreDeadLettered(t *testing.T) {
	admission := validatedAdmission()
	admission.UCLRegistrationComplete = models.TrackingSended
	fx, _ := newQueueFixture(t, admission)

	err := fx.svc.HandleAck(context.Background(), broker.Message{Body: []byte(`{'success': true}`)})
	require.True(t, broker.IsPermanent(err))

	tx, mock := newTxProviderMock(t)
	fx.svc.revisions = NewRevisionService(tx, fx.revisions, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()
	unknown := []byte(`{"success": true, "student_case_uuid": "00000000-0000-4000-8000-000000000000"}`)
	err = fx.svc.HandleAck(context.Background(), broker.Message{Body: unknown})
	require.True(t, broker.IsPermanent(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationQueueAckArrivingBeforeSendedIsKept(t *testing.T) {
	fx, expectTx := newQueueFixture(t, validatedAdmission())
	expectTx(2)

	body := []byte(`{"success": true, "message": "", "student_case_uuid": "` + ackAdmissionID + `", "registration_id": "987654321", "registration_status": "INSCRIT"}`)
	fx.publisher.delivered = func() {
		require.NoError(t, fx.svc.HandleAck(context.Background(), broker.Message{ID: "fast", Body: body}))
	}

	detail, err := fx.svc.details.LoadByID(context.Background(), ackAdmissionID)
	require.NoError(t, err)
	require.NoError(t, fx.svc.PublishDetail(context.Background(), detail, nil))

	stored := fx.store.items[ackAdmissionID]
	require.Equal(t, models.TrackingRegistered, stored.UCLRegistrationComplete)
	require.Equal(t, "987654321", stored.Noma)
	require.Equal(t, models.TrackingRegistered, detail.UCLRegistrationComplete)
	require.Len(t, fx.revisions.created, 1)
	require.Equal(t, models.RevisionUCLRegistrationRegistered, fx.revisions.created[0].Kind)
}

func TestRegistrationQueueAckForUnvalidatedAdmissionIsRetried(t *testing.T) {
	admission := validatedAdmission()
	admission.State = models.AdmissionStateRegistrationSubmitted
	fx, _ := newQueueFixture(t, admission)
	tx, mock := newTxProviderMock(t)
	fx.svc.revisions = NewRevisionService(tx, fx.revisions, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectRollback()

	body := []byte(`{"success": true, "student_case_uuid": "` + ackAdmissionID + `", "registration_id": "1"}`)
	err := fx.svc.HandleAck(context.Background(), broker.Message{Body: body})
	require.Error(t, err)
	require.False(t, broker.IsPermanent(err))

	err = fx.svc.HandleAck(context.Background(), broker.Message{Body: body, Redelivered: true})
	require.True(t, broker.IsPermanent(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationQueueRelay(t *testing.T) {
	fx, expectTx := newQueueFixture(t, validatedAdmission())
	expectTx(1)
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	fx.svc.now = func() time.Time { return now }
	fx.store.pending = []models.Admission{*validatedAdmission(), {ID: "missing"}}

	sent, err := fx.svc.Relay(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sent)
	require.Equal(t, now.Add(-defaultRelayGrace), fx.store.cutoff)
	require.Equal(t, models.TrackingSended, fx.store.items[ackAdmissionID].UCLRegistrationComplete)
}
