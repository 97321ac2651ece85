package model

import (
	"time"
)

// Appointment belongs to a client via client_pabau_id (weak reference; an
// appointment may arrive before, or without ever matching, a client row).
// The dedup key is the composite (client_pabau_id, appointment_datetime,
// service) rather than the upstream appointment id, which low-detail
// payloads omit. A richer payload for the same composite overwrites all
// columns (full-overwrite enrichment, see DESIGN.md).
type Appointment struct {
	ID                 int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	ClientPabauID      int64  `json:"client_pabau_id" gorm:"column:client_pabau_id;uniqueIndex:idx_appointments_composite" validate:"required"`
	PabauAppointmentID *int64 `json:"pabau_appointment_id,omitempty" gorm:"column:pabau_appointment_id"`

	AppointmentDate     *time.Time `json:"appointment_date,omitempty" gorm:"type:date"`
	AppointmentTime     string     `json:"appointment_time,omitempty" gorm:"type:text"` // "HH:MM" as sent upstream
	AppointmentDatetime *time.Time `json:"appointment_datetime,omitempty" gorm:"uniqueIndex:idx_appointments_composite"`

	Location           string     `json:"location,omitempty" gorm:"type:text"`
	Service            string     `json:"service,omitempty" gorm:"type:text;uniqueIndex:idx_appointments_composite"`
	Duration           *int       `json:"duration,omitempty"`
	AppointmentStatus  string     `json:"appointment_status,omitempty" gorm:"type:text"`
	ApptWith           string     `json:"appt_with,omitempty" gorm:"column:appt_with;type:text"`
	CreatedBy          string     `json:"created_by,omitempty" gorm:"type:text"`
	CreatedDate        *time.Time `json:"created_date,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty" gorm:"type:text"`

	PabauLastSyncedAt *time.Time `json:"pabau_last_synced_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Appointment model.
func (Appointment) TableName() string {
	return "appointments"
}

// AppointmentUpdateColumns lists the columns overwritten when an upsert hits
// an existing composite key.
func AppointmentUpdateColumns() []string {
	return []string{
		"pabau_appointment_id",
		"appointment_date",
		"appointment_time",
		"location",
		"duration",
		"appointment_status",
		"appt_with",
		"created_by",
		"created_date",
		"cancellation_reason",
		"pabau_last_synced_at",
		"updated_at",
	}
}
