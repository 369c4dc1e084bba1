package repository

import (
	"context"
	"encoding/json"
	"time"

	"confbooking/internal/domain"
	"confbooking/internal/modules/audit"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

type auditModel struct {
	ID           int64          `gorm:"column:id;primaryKey"`
	Action       string         `gorm:"column:action;size:32;not null;index"`
	ResourceType string         `gorm:"column:resource_type;size:32;not null;index:idx_audit_resource,priority:1"`
	ResourceID   string         `gorm:"column:resource_id;size:64;not null;index:idx_audit_resource,priority:2"`
	Before       datatypes.JSON `gorm:"column:before_state"`
	After        datatypes.JSON `gorm:"column:after_state"`
	ActorID      int64          `gorm:"column:actor_id;index"`
	ActorRole    string         `gorm:"column:actor_role;size:16"`
	IPAddress    string         `gorm:"column:ip_address;size:64"`
	UserAgent    string         `gorm:"column:user_agent;size:255"`
	RequestID    string         `gorm:"column:request_id;size:64"`
	CreatedAt    time.Time      `gorm:"column:created_at;index"`
}

func (auditModel) TableName() string { return "audit_logs" }

func marshalJSON(v map[string]any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func unmarshalJSON(raw datatypes.JSON) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func (r *AuditRepository) Create(ctx context.Context, e *domain.AuditEntry) error {
	before, err := marshalJSON(e.Before)
	if err != nil {
		return err
	}
	after, err := marshalJSON(e.After)
	if err != nil {
		return err
	}

	m := auditModel{
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Before:       before,
		After:        after,
		ActorID:      e.ActorID,
		ActorRole:    e.ActorRole,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		RequestID:    e.RequestID,
		CreatedAt:    e.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	e.ID = m.ID
	e.CreatedAt = m.CreatedAt
	return nil
}

func (r *AuditRepository) List(ctx context.Context, f audit.Filter) ([]domain.AuditEntry, error) {
	q := r.db.WithContext(ctx).Model(&auditModel{})
	if f.ResourceType != "" {
		q = q.Where("resource_type = ?", f.ResourceType)
	}
	if f.ResourceID != "" {
		q = q.Where("resource_id = ?", f.ResourceID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.ActorID != 0 {
		q = q.Where("actor_id = ?", f.ActorID)
	}

	var rows []auditModel
	if err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Offset(f.Offset).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.AuditEntry, 0, len(rows))
	for _, m := range rows {
		out = append(out, domain.AuditEntry{
			ID:           m.ID,
			Action:       m.Action,
			ResourceType: m.ResourceType,
			ResourceID:   m.ResourceID,
			Before:       unmarshalJSON(m.Before),
			After:        unmarshalJSON(m.After),
			ActorID:      m.ActorID,
			ActorRole:    m.ActorRole,
			IPAddress:    m.IPAddress,
			UserAgent:    m.UserAgent,
			RequestID:    m.RequestID,
			CreatedAt:    m.CreatedAt,
		})
	}
	return out, nil
}
