package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/iufc-admission-api/internal/epc"
	"github.com/noah-isme/iufc-admission-api/internal/models"
	"github.com/noah-isme/iufc-admission-api/pkg/broker"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
	"github.com/noah-isme/iufc-admission-api/pkg/observability"
)

const (
	defaultPublishQueue   = "IUFC_TO_EPC"
	defaultAckDedupeTTL   = 24 * time.Hour
	defaultRelayBatchSize = 50
	defaultRelayGrace     = 5 * time.Minute
)

var errAckBeforePublish = errors.New("acknowledgement received for a registration that was never validated")

type registrationAdmissionStore interface {
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Admission, error)
	Update(ctx context.Context, exec sqlx.ExtContext, admission *models.Admission) error
	ListAwaitingEPC(ctx context.Context, updatedBefore time.Time, limit int) ([]models.Admission, error)
}

type registrationDetailLoader interface {
	LoadByID(ctx context.Context, id string) (*models.AdmissionDetail, error)
}

// RegistrationQueueConfig tunes the EPC client.
type RegistrationQueueConfig struct {
	Queue          string
	AckDedupeTTL   time.Duration
	RelayBatchSize int
	RelayGrace     time.Duration
}

// RegistrationQueueService publishes validated registrations to EPC and applies
// the acknowledgements it sends back.
type RegistrationQueueService struct {
	admissions registrationAdmissionStore
	details    registrationDetailLoader
	revisions  *RevisionService
	publisher  broker.Publisher
	cache      *CacheService
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        RegistrationQueueConfig
	now        func() time.Time
}

// NewRegistrationQueueService wires the EPC client.
func NewRegistrationQueueService(
	admissions registrationAdmissionStore,
	details registrationDetailLoader,
	revisions *RevisionService,
	publisher broker.Publisher,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg RegistrationQueueConfig,
) *RegistrationQueueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Queue == "" {
		cfg.Queue = defaultPublishQueue
	}
	if cfg.AckDedupeTTL <= 0 {
		cfg.AckDedupeTTL = defaultAckDedupeTTL
	}
	if cfg.RelayBatchSize <= 0 {
		cfg.RelayBatchSize = defaultRelayBatchSize
	}
	if cfg.RelayGrace <= 0 {
		cfg.RelayGrace = defaultRelayGrace
	}
	return &RegistrationQueueService{
		admissions: admissions,
		details:    details,
		revisions:  revisions,
		publisher:  publisher,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Publish loads the admission and sends it to EPC.
func (s *RegistrationQueueService) Publish(ctx context.Context, admissionID string, actor *models.Actor) error {
	detail, err := s.details.LoadByID(ctx, admissionID)
	if err != nil {
		return err
	}
	return s.PublishDetail(ctx, detail, actor)
}

// PublishDetail sends a validated registration to EPC. A broker failure is
// reported as ErrPublish and leaves the admission untouched so the publish can
// be retried. On success the tracking field moves to SENDED with a revision.
func (s *RegistrationQueueService) PublishDetail(ctx context.Context, detail *models.AdmissionDetail, actor *models.Actor) error {
	if detail.State != models.AdmissionStateValidated {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "only validated registrations can be injected into EPC")
	}
	if detail.UCLRegistrationComplete == models.TrackingRegistered {
		return appErrors.Clone(appErrors.ErrConflict, "registration already completed in EPC")
	}

	logger := s.logger.With(zap.String("admission_id", detail.ID))

	payload, err := epc.BuildPayload(detail)
	if err != nil {
		s.metrics.RecordPublish(OutcomeRejected)
		observability.CaptureErr(err, map[string]string{"admission_id": detail.ID, "stage": "epc_payload"})
		logger.Warn("registration cannot be serialised for epc", zap.Error(err))
		if errors.Is(err, epc.ErrUnsupportedGender) {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
				"the participant gender cannot be sent to EPC")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build epc payload")
	}
	body, err := payload.Marshal()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode epc payload")
	}

	if err := s.publisher.Publish(ctx, s.cfg.Queue, body); err != nil {
		s.metrics.RecordPublish(OutcomeFailure)
		observability.CaptureErr(err, map[string]string{"admission_id": detail.ID, "stage": "epc_publish"})
		logger.Error("epc publish failed", zap.String("queue", s.cfg.Queue), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrPublish.Code, appErrors.ErrPublish.Status, appErrors.ErrPublish.Message)
	}
	s.metrics.RecordPublish(OutcomeSuccess)

	// EPC may answer before this commit; its acknowledgement then owns the
	// tracking value and SENDED is not written over it.
	published := detail.UCLRegistrationComplete
	msg := models.NewRevisionMessage(models.RevisionUCLRegistrationSended)
	if err := s.updateTracking(ctx, detail.ID, msg, actor, func(a *models.Admission) bool {
		if a.UCLRegistrationComplete != published {
			detail.UCLRegistrationComplete = a.UCLRegistrationComplete
			detail.Noma = a.Noma
			return false
		}
		a.UCLRegistrationComplete = models.TrackingSended
		detail.UCLRegistrationComplete = models.TrackingSended
		return true
	}); err != nil {
		logger.Error("epc publish succeeded but tracking update failed", zap.Error(err))
		return err
	}
	logger.Info("registration sent to epc", zap.String("tracking", string(detail.UCLRegistrationComplete)))
	return nil
}

// HandleAck applies one EPC acknowledgement. Malformed bodies and unknown
// admissions are returned as permanent errors so the consumer dead-letters
// them; stale or duplicate acknowledgements are ignored.
func (s *RegistrationQueueService) HandleAck(ctx context.Context, msg broker.Message) error {
	ack, err := epc.ParseAck(msg.Body)
	if err != nil {
		s.metrics.RecordAck(OutcomeMalformed)
		s.logger.Warn("malformed epc acknowledgement", zap.String("message_id", msg.ID), zap.Error(err))
		return broker.Permanent(err)
	}
	logger := s.logger.With(zap.String("admission_id", ack.StudentCaseUUID))

	key := ackDedupeKey(ack.StudentCaseUUID, msg.Body)
	claimed, err := s.cache.Claim(ctx, key, s.cfg.AckDedupeTTL)
	if err != nil {
		logger.Warn("ack de-duplication unavailable", zap.Error(err))
		claimed = true
	}
	if !claimed {
		s.metrics.RecordAck(OutcomeIgnored)
		logger.Info("duplicate epc acknowledgement ignored")
		return nil
	}

	outcome, err := s.applyAck(ctx, ack, msg.Redelivered)
	if err != nil {
		s.cache.Release(ctx, key)
		if broker.IsPermanent(err) {
			s.metrics.RecordAck(OutcomeRejected)
			observability.CaptureErr(err, map[string]string{"admission_id": ack.StudentCaseUUID, "stage": "epc_ack"})
			logger.Warn("epc acknowledgement rejected", zap.Error(err))
			return err
		}
		s.metrics.RecordAck(OutcomeFailure)
		logger.Error("epc acknowledgement failed", zap.Error(err))
		return err
	}
	s.metrics.RecordAck(outcome)
	logger.Info("epc acknowledgement processed", zap.String("outcome", outcome), zap.Bool("success", ack.Succeeded()))
	return nil
}

func (s *RegistrationQueueService) applyAck(ctx context.Context, ack *epc.Ack, redelivered bool) (string, error) {
	outcome := OutcomeSuccess
	err := s.revisions.InTx(ctx, func(exec sqlx.ExtContext) error {
		admission, err := s.admissions.GetForUpdate(ctx, exec, ack.StudentCaseUUID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return broker.Permanent(fmt.Errorf("unknown admission %s", ack.StudentCaseUUID))
			}
			return fmt.Errorf("load admission: %w", err)
		}

		msg, apply, err := resolveAck(admission, ack)
		if err != nil {
			if redelivered {
				return broker.Permanent(err)
			}
			return err
		}
		if !apply {
			outcome = OutcomeIgnored
			return nil
		}
		if err := s.admissions.Update(ctx, exec, admission); err != nil {
			return fmt.Errorf("update admission: %w", err)
		}
		return s.revisions.Record(ctx, exec, msg, admission, nil)
	})
	return outcome, err
}

// resolveAck mutates admission according to ack and returns the revision to
// record. apply is false for stale or repeated acknowledgements. A validated
// admission still at INIT_STATE was published but its SENDED mark is not
// committed yet; the acknowledgement is applied as if it were.
func resolveAck(admission *models.Admission, ack *epc.Ack) (models.RevisionMessage, bool, error) {
	current := admission.UCLRegistrationComplete
	if current == models.TrackingInitState || current == "" {
		if admission.State != models.AdmissionStateValidated {
			return models.RevisionMessage{}, false, errAckBeforePublish
		}
		current = models.TrackingSended
	}

	if !ack.Succeeded() {
		code := models.ParseRegistrationError(ack.Message)
		if current == models.TrackingRegistered {
			return models.RevisionMessage{}, false, nil
		}
		if current == models.TrackingRejected && admission.UCLRegistrationError == code {
			return models.RevisionMessage{}, false, nil
		}
		admission.UCLRegistrationComplete = models.TrackingRejected
		admission.UCLRegistrationError = code
		return models.NewRevisionMessage(models.RevisionUCLRegistrationRejected), true, nil
	}

	status := ack.Tracking()
	if status == models.TrackingRegistered {
		if current == models.TrackingRegistered && admission.Noma == ack.RegistrationID {
			return models.RevisionMessage{}, false, nil
		}
		admission.UCLRegistrationComplete = models.TrackingRegistered
		admission.UCLRegistrationError = models.RegistrationErrorNone
		if ack.RegistrationID != "" {
			admission.Noma = ack.RegistrationID
		}
		return models.NewRevisionMessage(models.RevisionUCLRegistrationRegistered), true, nil
	}

	if current == status {
		return models.RevisionMessage{}, false, nil
	}
	admission.UCLRegistrationComplete = status
	return models.NewRevisionMessage(models.RevisionUCLRegistrationState, status.Label()), true, nil
}

// Relay republishes validated registrations still waiting for their first
// publish. It returns how many were sent.
func (s *RegistrationQueueService) Relay(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.RelayGrace)
	pending, err := s.admissions.ListAwaitingEPC(ctx, cutoff, s.cfg.RelayBatchSize)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending registrations")
	}

	sent := 0
	for _, admission := range pending {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if err := s.Publish(ctx, admission.ID, nil); err != nil {
			s.logger.Warn("relay publish failed", zap.String("admission_id", admission.ID), zap.Error(err))
			continue
		}
		sent++
	}
	if len(pending) > 0 {
		s.logger.Info("epc relay run", zap.Int("pending", len(pending)), zap.Int("sent", sent))
	}
	return sent, nil
}

func (s *RegistrationQueueService) updateTracking(ctx context.Context, id string, msg models.RevisionMessage, actor *models.Actor, mutate func(a *models.Admission) bool) error {
	return s.revisions.InTx(ctx, func(exec sqlx.ExtContext) error {
		admission, err := s.admissions.GetForUpdate(ctx, exec, id)
		if err != nil {
			return notFoundOrInternal(err, "admission not found", "failed to load admission")
		}
		if !mutate(admission) {
			return nil
		}
		if err := s.admissions.Update(ctx, exec, admission); err != nil {
			return notFoundOrInternal(err, "admission not found", "failed to update admission")
		}
		return s.revisions.Record(ctx, exec, msg, admission, actor)
	})
}

func ackDedupeKey(admissionID string, body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf("epc:ack:%s:%s", admissionID, hex.EncodeToString(sum[:8]))
}
