package transform

import (
	"fmt"
	"strings"
	"time"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
)

// leadConsentField is the upstream custom field carrying lead email consent.
// It is maintained by hand in the CRM, hence the loose value matching below.
const leadConsentField = "opt_in_email_lead"

// LeadFromPayload maps one raw CRM lead payload onto the store model.
// Consent comes from the opt_in_email_lead custom field; a missing field
// means no consent.
func LeadFromPayload(p *model.PabauLeadPayload, syncedAt time.Time) *model.Lead {
	l := &model.Lead{
		PabauID:   p.ID,
		ContactID: p.ContactID,
		Email:     strings.TrimSpace(p.Email),

		Salutation: p.Salutation,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Phone:      p.Phone,
		Mobile:     p.Mobile,
		Dob:        p.Dob,

		MailingStreet:  p.MailingStreet,
		MailingPostal:  p.MailingPostal,
		MailingCity:    p.MailingCity,
		MailingCounty:  p.MailingCounty,
		MailingCountry: p.MailingCountry,

		IsActive:   int16Or(p.IsActive, 1),
		LeadStatus: p.LeadStatus,

		DealValue: p.DealValue,

		OptInEmailMailchimp: LeadEmailConsent(p.CustomFields),
		PabauLastSyncedAt:   &syncedAt,
	}

	if p.Owner != nil {
		l.OwnerID = p.Owner.ID
		l.OwnerName = p.Owner.Name
	}
	if p.Location != nil {
		l.LocationID = p.Location.ID
		l.LocationName = p.Location.Name
	}
	if p.Dates != nil {
		l.CreatedDate = ParseCreatedDate(p.Dates.CreatedDate)
		l.UpdatedDate = ParseCreatedDate(p.Dates.UpdatedDate)
		l.ConvertedDate = ParseCreatedDate(p.Dates.ConvertedDate)
	}
	if p.Pipeline != nil {
		l.PipelineName = p.Pipeline.Name
		if p.Pipeline.Stage != nil {
			l.PipelineStageID = p.Pipeline.Stage.PipelineStageID
			l.PipelineStageName = p.Pipeline.Stage.PipelineStageName
		}
	}

	return l
}

// LeadEmailConsent resolves the opt_in_email_lead custom field to 1 or 0.
// The field list is unordered and the value free-form, so any of
// "opted in", "true", "1", "yes" (case-insensitive) counts as consent.
func LeadEmailConsent(fields []model.PabauCustomField) int16 {
	for _, f := range fields {
		if !strings.EqualFold(strings.TrimSpace(f.Name), leadConsentField) {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", f.Value))) {
		case "opted in", "true", "1", "yes":
			return 1
		}
		return 0
	}
	return 0
}
