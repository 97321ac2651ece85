package model

import (
	"time"

	"gorm.io/datatypes"
)

// Lead represents a CRM lead row. Same identity and lifecycle rules as
// Client, with pipeline/deal attributes on top. Email consent is tracked in
// its own column because leads derive consent from a manually maintained
// upstream custom field, not the structured communications block.
type Lead struct {
	ID        int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	PabauID   int64  `json:"pabau_id" gorm:"column:pabau_id;uniqueIndex" validate:"required"`
	ContactID int64  `json:"contact_id,omitempty" gorm:"column:contact_id"`
	Email     string `json:"email,omitempty" gorm:"index;type:text"`

	Salutation string `json:"salutation,omitempty" gorm:"type:text"`
	FirstName  string `json:"first_name,omitempty" gorm:"type:text"`
	LastName   string `json:"last_name,omitempty" gorm:"type:text"`
	Phone      string `json:"phone,omitempty" gorm:"type:text"`
	Mobile     string `json:"mobile,omitempty" gorm:"type:text"`
	Dob        string `json:"dob,omitempty" gorm:"type:text"`

	MailingStreet  string `json:"mailing_street,omitempty" gorm:"type:text"`
	MailingPostal  string `json:"mailing_postal,omitempty" gorm:"type:text"`
	MailingCity    string `json:"mailing_city,omitempty" gorm:"type:text"`
	MailingCounty  string `json:"mailing_county,omitempty" gorm:"type:text"`
	MailingCountry string `json:"mailing_country,omitempty" gorm:"type:text"`

	IsActive   int16  `json:"is_active" gorm:"default:1"`
	LeadStatus string `json:"lead_status,omitempty" gorm:"type:text"`

	OwnerID      int64  `json:"owner_id,omitempty"`
	OwnerName    string `json:"owner_name,omitempty" gorm:"type:text"`
	LocationID   int64  `json:"location_id,omitempty"`
	LocationName string `json:"location_name,omitempty" gorm:"type:text"`

	CreatedDate   *time.Time `json:"created_date,omitempty" gorm:"column:created_date;index"`
	UpdatedDate   *time.Time `json:"updated_date,omitempty"`
	ConvertedDate *time.Time `json:"converted_date,omitempty"`

	PipelineName      string `json:"pipeline_name,omitempty" gorm:"type:text"`
	PipelineStageID   int64  `json:"pipeline_stage_id,omitempty"`
	PipelineStageName string `json:"pipeline_stage_name,omitempty" gorm:"type:text"`

	DealValue float64 `json:"deal_value,omitempty"`

	// Derived from the opt_in_email_lead custom field; absent means 0.
	OptInEmailMailchimp int16 `json:"opt_in_email_mailchimp" gorm:"default:0"`

	MailchimpID           string         `json:"mailchimp_id,omitempty" gorm:"column:mailchimp_id;type:text"`
	MailchimpStatus       string         `json:"mailchimp_status,omitempty" gorm:"type:text"`
	MailchimpTags         datatypes.JSON `json:"mailchimp_tags,omitempty" gorm:"type:jsonb"`
	MailchimpLastSyncedAt *time.Time     `json:"mailchimp_last_synced_at,omitempty"`

	PabauLastSyncedAt *time.Time `json:"pabau_last_synced_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Lead model.
func (Lead) TableName() string {
	return "leads"
}

// LeadUpdateColumns lists the columns overwritten when an upsert hits an
// existing pabau_id.
func LeadUpdateColumns() []string {
	return []string{
		"contact_id",
		"email",
		"salutation",
		"first_name",
		"last_name",
		"phone",
		"mobile",
		"dob",
		"mailing_street",
		"mailing_postal",
		"mailing_city",
		"mailing_county",
		"mailing_country",
		"is_active",
		"lead_status",
		"owner_id",
		"owner_name",
		"location_id",
		"location_name",
		"created_date",
		"updated_date",
		"converted_date",
		"pipeline_name",
		"pipeline_stage_id",
		"pipeline_stage_name",
		"deal_value",
		"opt_in_email_mailchimp",
		"pabau_last_synced_at",
		"updated_at",
	}
}
