package model

import (
	"time"

	"gorm.io/datatypes"
)

// Client represents a CRM client row in the PostgreSQL database.
// PabauID is the sole upsert key; email is indexed but deliberately not
// unique (duplicates are resolved at push time by preferring the row with
// the highest internal id).
type Client struct {
	ID       int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	PabauID  int64  `json:"pabau_id" gorm:"column:pabau_id;uniqueIndex" validate:"required"`
	CustomID string `json:"custom_id,omitempty" gorm:"column:custom_id;type:text"`
	Email    string `json:"email,omitempty" gorm:"index;type:text"`

	FirstName  string `json:"first_name,omitempty" gorm:"type:text"`
	LastName   string `json:"last_name,omitempty" gorm:"type:text"`
	Salutation string `json:"salutation,omitempty" gorm:"type:text"`
	Gender     string `json:"gender,omitempty" gorm:"type:text"`
	Dob        string `json:"dob,omitempty" gorm:"type:text"` // kept verbatim from upstream, format varies
	Location   string `json:"location,omitempty" gorm:"type:text"`
	IsActive   int16  `json:"is_active" gorm:"default:1"`

	Phone  string `json:"phone,omitempty" gorm:"type:text"`
	Mobile string `json:"mobile,omitempty" gorm:"type:text"`

	// Consent flags are tri-state upstream (absent/0/1); absent maps to 0.
	OptInEmail      int16 `json:"opt_in_email" gorm:"default:0"`
	OptInSms        int16 `json:"opt_in_sms" gorm:"column:opt_in_sms;default:0"`
	OptInPhone      int16 `json:"opt_in_phone" gorm:"default:0"`
	OptInPost       int16 `json:"opt_in_post" gorm:"default:0"`
	OptInNewsletter int16 `json:"opt_in_newsletter" gorm:"default:0"`

	CreatedDate   *time.Time `json:"created_date,omitempty" gorm:"column:created_date;index"`
	CreatedByName string     `json:"created_by_name,omitempty" gorm:"type:text"`
	CreatedByID   int64      `json:"created_by_id,omitempty"`

	MailchimpID           string         `json:"mailchimp_id,omitempty" gorm:"column:mailchimp_id;type:text"`
	MailchimpStatus       string         `json:"mailchimp_status,omitempty" gorm:"type:text"`
	MailchimpTags         datatypes.JSON `json:"mailchimp_tags,omitempty" gorm:"type:jsonb"`
	MailchimpLastSyncedAt *time.Time     `json:"mailchimp_last_synced_at,omitempty"`

	PabauLastSyncedAt *time.Time `json:"pabau_last_synced_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Client model.
func (Client) TableName() string {
	return "clients"
}

// ClientUpdateColumns lists the columns overwritten when an upsert hits an
// existing pabau_id. The source system is authoritative for all of these;
// mailchimp-derived columns are deliberately excluded.
func ClientUpdateColumns() []string {
	return []string{
		"custom_id",
		"email",
		"first_name",
		"last_name",
		"salutation",
		"gender",
		"dob",
		"location",
		"is_active",
		"phone",
		"mobile",
		"opt_in_email",
		"opt_in_sms",
		"opt_in_phone",
		"opt_in_post",
		"opt_in_newsletter",
		"created_date",
		"created_by_name",
		"created_by_id",
		"pabau_last_synced_at",
		"updated_at",
	}
}
