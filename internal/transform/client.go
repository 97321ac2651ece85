package transform

import (
	"strings"
	"time"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
)

// Upstream timestamp layouts.
const (
	pabauTimestampLayout = "2006-01-02 15:04:05"
	pabauApptLayout      = "02/01/2006 15:04"
	pabauApptDateLayout  = "02/01/2006"
)

// ParseCreatedDate parses the CRM "created_date" timestamp. Returns nil on an
// empty or malformed value; a bad timestamp never fails the record.
func ParseCreatedDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(pabauTimestampLayout, raw)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// ClientFromPayload maps one raw CRM client payload onto the store model.
// Absent consent flags default to 0; absent is_active defaults to 1.
func ClientFromPayload(p *model.PabauClientPayload, syncedAt time.Time) *model.Client {
	c := &model.Client{
		PabauID:    p.Details.ID,
		CustomID:   p.Details.CustomID,
		FirstName:  p.Details.FirstName,
		LastName:   p.Details.LastName,
		Salutation: p.Details.Salutation,
		Gender:     p.Details.Gender,
		Dob:        p.Details.Dob,
		Location:   p.Details.Location,
		IsActive:   int16Or(p.Details.IsActive, 1),

		Email:  strings.TrimSpace(p.Communications.Email),
		Phone:  p.Communications.Phone,
		Mobile: p.Communications.Mobile,

		OptInEmail:      int16Or(p.Communications.OptInEmail, 0),
		OptInSms:        int16Or(p.Communications.OptInSms, 0),
		OptInPhone:      int16Or(p.Communications.OptInPhone, 0),
		OptInPost:       int16Or(p.Communications.OptInPost, 0),
		OptInNewsletter: int16Or(p.Communications.OptInNewsletter, 0),

		CreatedDate:       ParseCreatedDate(p.Created.CreatedDate),
		PabauLastSyncedAt: &syncedAt,
	}

	if len(p.Created.Owner) > 0 {
		c.CreatedByName = p.Created.Owner[0].FullName
		c.CreatedByID = p.Created.Owner[0].CreatedByID
	}

	return c
}

func int16Or(v *int16, def int16) int16 {
	if v == nil {
		return def
	}
	return *v
}
