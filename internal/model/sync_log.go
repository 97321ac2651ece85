package model

import (
	"time"

	"gorm.io/datatypes"
)

// Sync log entity types.
const (
	EntityClient  = "client"
	EntityLead    = "lead"
	EntitySyncRun = "sync_run"
)

// Sync log actions. The *_completed markers are load-bearing: the push pass
// reads them back from the log to decide whether a pull has finished since
// the last push, so coordination survives process restarts.
const (
	ActionSyncClient       = "sync_pabau_client"
	ActionSyncLead         = "sync_pabau_lead"
	ActionClientsCompleted = "sync_pabau_clients_completed"
	ActionLeadsCompleted   = "sync_pabau_leads_completed"
	ActionPush             = "sync_to_mailchimp"
	ActionPushCompleted    = "sync_to_mailchimp_completed"
	ActionUnsubscribe      = "mailchimp_unsubscribe"
)

// Sync log statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// SyncLog is an append-only audit row for one sync operation attempt.
// Rows are never updated or deleted.
type SyncLog struct {
	ID           int64          `json:"-" gorm:"primaryKey;autoIncrement"`
	RunID        string         `json:"run_id,omitempty" gorm:"column:run_id;type:text;index"`
	EntityType   string         `json:"entity_type" gorm:"column:entity_type;type:text" validate:"required"`
	EntityID     *int64         `json:"entity_id,omitempty" gorm:"column:entity_id"`
	PabauID      *int64         `json:"pabau_id,omitempty" gorm:"column:pabau_id"`
	Email        string         `json:"email,omitempty" gorm:"type:text"`
	Action       string         `json:"action" gorm:"type:text;index:idx_sync_logs_action_created" validate:"required"`
	Status       string         `json:"status" gorm:"type:text" validate:"required,oneof=success error skipped"`
	Message      string         `json:"message,omitempty" gorm:"type:text"`
	ErrorDetails string         `json:"error_details,omitempty" gorm:"column:error_details;type:text"`
	FieldChanges datatypes.JSON `json:"field_changes,omitempty" gorm:"type:jsonb;column:field_changes"`
	CreatedAt    time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime;index:idx_sync_logs_action_created"`
}

// TableName specifies the table name for the SyncLog model.
func (SyncLog) TableName() string {
	return "sync_logs"
}
