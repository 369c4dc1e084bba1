package audit

import (
	"context"
	"log/slog"
	"time"

	"confbooking/internal/domain"
	"confbooking/internal/pkg/logger"
)

const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionConfirm  = "confirm"
	ActionCancel   = "cancel"
	ActionComplete = "complete"
)

// Repository persists audit entries. Entries are append-only.
type Repository interface {
	Create(ctx context.Context, e *domain.AuditEntry) error
	List(ctx context.Context, f Filter) ([]domain.AuditEntry, error)
}

type Filter struct {
	ResourceType string
	ResourceID   string
	Action       string
	ActorID      int64
	Limit        int
	Offset       int
}

// Entry describes one mutation. Before and After may be structs or maps;
// Before is nil for creations. A struct After is a full snapshot: fields it
// omits are recorded as cleared. A map After is partial and only its keys are
// compared.
type Entry struct {
	Action       string
	ResourceType string
	ResourceID   string
	Before       any
	After        any
	Actor        domain.Actor
}

type Recorder struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{
		repo: repo,
		log:  logger.WithService("audit"),
		now:  time.Now,
	}
}

// Record diffs and stores e. It never fails: write errors are logged and
// dropped so the primary mutation is unaffected.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	entry, err := r.build(ctx, e)
	if err != nil {
		r.log.WarnContext(ctx, "audit entry build failed",
			"action", e.Action, "resource_type", e.ResourceType, "resource_id", e.ResourceID, "error", err)
		return
	}

	if err := r.repo.Create(ctx, entry); err != nil {
		r.log.WarnContext(ctx, "audit entry write failed",
			"action", e.Action, "resource_type", e.ResourceType, "resource_id", e.ResourceID, "error", err)
	}
}

func (r *Recorder) build(ctx context.Context, e Entry) (*domain.AuditEntry, error) {
	before, err := ToMap(e.Before)
	if err != nil {
		return nil, err
	}
	after, err := ToMap(e.After)
	if err != nil {
		return nil, err
	}

	entry := &domain.AuditEntry{
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		ActorID:      e.Actor.UserID,
		ActorRole:    string(e.Actor.Role),
		CreatedAt:    r.now().UTC(),
	}
	if _, partial := e.After.(map[string]any); !partial && before != nil && after != nil {
		// Snapshots drop omitempty fields, so a key missing from after was cleared.
		for k := range before {
			if _, ok := after[k]; !ok {
				after[k] = nil
			}
		}
	}
	if after != nil {
		entry.Before, entry.After = Diff(before, after).split()
		if before == nil {
			entry.Before = nil
		}
	} else {
		entry.Before = before
	}

	meta := MetaFrom(ctx)
	entry.IPAddress = meta.IPAddress
	entry.UserAgent = meta.UserAgent
	entry.RequestID = meta.RequestID
	return entry, nil
}

func (r *Recorder) List(ctx context.Context, f Filter) ([]domain.AuditEntry, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return r.repo.List(ctx, f)
}
