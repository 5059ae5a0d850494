package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

// SystemActorName is stored on revisions recorded without an actor.
const SystemActorName = "system"

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type revisionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, revision *models.Revision) error
	ListByAdmission(ctx context.Context, admissionID string, kinds []models.RevisionKind) ([]models.Revision, error)
}

// Change pairs an admission mutation with the revision describing it.
type Change struct {
	Admission *models.Admission
	Message   models.RevisionMessage
	Actor     *models.Actor
	Mutate    func(ctx context.Context, exec sqlx.ExtContext) error
}

// RevisionService writes admission mutations together with their history entries.
type RevisionService struct {
	tx        txProvider
	revisions revisionStore
	logger    *zap.Logger
}

// NewRevisionService constructs the recorder.
func NewRevisionService(tx txProvider, revisions revisionStore, logger *zap.Logger) *RevisionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevisionService{tx: tx, revisions: revisions, logger: logger}
}

// InTx runs fn inside one transaction. Any error returned by fn rolls the
// transaction back and is returned unchanged.
func (s *RevisionService) InTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit transaction")
	}
	return nil
}

// Record appends one revision for admission using exec. The message must come
// from the revision catalogue.
func (s *RevisionService) Record(ctx context.Context, exec sqlx.ExtContext, msg models.RevisionMessage, admission *models.Admission, actor *models.Actor) error {
	if admission == nil || admission.ID == "" {
		return appErrors.Clone(appErrors.ErrInternal, "revision requires an admission")
	}
	if !msg.Kind.Catalogued() {
		return appErrors.Clone(appErrors.ErrInternal, "revision message is not catalogued")
	}

	snapshot, err := json.Marshal(admission)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode admission snapshot")
	}

	revision := &models.Revision{
		AdmissionID: admission.ID,
		Kind:        msg.Kind,
		Icon:        msg.Icon,
		Message:     msg.Text,
		ActorName:   SystemActorName,
		Snapshot:    types.JSONText(snapshot),
	}
	if actor != nil {
		if actor.UserID != "" {
			id := actor.UserID
			revision.ActorID = &id
		}
		if actor.Name != "" {
			revision.ActorName = actor.Name
		}
	}

	if err := s.revisions.Create(ctx, exec, revision); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record revision")
	}
	return nil
}

// Apply persists every change and its revision atomically. Either all
// mutations and revisions are stored or none are.
func (s *RevisionService) Apply(ctx context.Context, changes ...Change) error {
	if len(changes) == 0 {
		return nil
	}
	return s.InTx(ctx, func(exec sqlx.ExtContext) error {
		for _, change := range changes {
			if change.Mutate != nil {
				if err := change.Mutate(ctx, exec); err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						return appErrors.Clone(appErrors.ErrNotFound, "admission not found")
					}
					var appErr *appErrors.Error
					if errors.As(err, &appErr) {
						return err
					}
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update admission")
				}
			}
			if err := s.Record(ctx, exec, change.Message, change.Admission, change.Actor); err != nil {
				return err
			}
		}
		return nil
	})
}

// History lists the catalogued revisions of an admission, newest first.
func (s *RevisionService) History(ctx context.Context, admissionID string) ([]models.Revision, error) {
	revisions, err := s.revisions.ListByAdmission(ctx, admissionID, models.RevisionKinds())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}
	return revisions, nil
}
