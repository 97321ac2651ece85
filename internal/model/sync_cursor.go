package model

import "time"

// SyncCursor holds the per-entity-type high-water-mark: the maximum
// created_date confirmed durably stored. It is advanced only after a record
// is written and never rolled back.
type SyncCursor struct {
	EntityType      string    `json:"entity_type" gorm:"primaryKey;column:entity_type;type:text"`
	LastCreatedDate time.Time `json:"last_created_date" gorm:"column:last_created_date"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the SyncCursor model.
func (SyncCursor) TableName() string {
	return "sync_cursors"
}
