package model

import "time"

// PushCandidate is one row of the push-pass query: a successfully synced,
// opted-in, active contact joined to its most recent appointment (if any).
// The same shape serves clients and leads; lead rows simply have no
// appointment columns populated.
type PushCandidate struct {
	DBID       int64  `gorm:"column:db_id"`
	PabauID    int64  `gorm:"column:pabau_id"`
	FirstName  string `gorm:"column:first_name"`
	LastName   string `gorm:"column:last_name"`
	Email      string `gorm:"column:email"`
	Phone      string `gorm:"column:phone"`
	Mobile     string `gorm:"column:mobile"`
	Gender     string `gorm:"column:gender"`
	PhoneOptIn int16  `gorm:"column:phone_opt_in"`

	AppointmentDate     *time.Time `gorm:"column:appointment_date"`
	AppointmentDatetime *time.Time `gorm:"column:appointment_datetime"`
	Service             string     `gorm:"column:service"`
	Duration            *int       `gorm:"column:duration"`
	AppointmentStatus   string     `gorm:"column:appointment_status"`
	ApptWith            string     `gorm:"column:appt_with"`
	ApptCreatedBy       string     `gorm:"column:appt_created_by"`
	ApptCreatedDate     *time.Time `gorm:"column:appt_created_date"`
}
