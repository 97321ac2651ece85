package transform

import (
	"fmt"
	"math"
	"strings"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/mailchimp"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
)

// Audience tags identifying where a member came from.
const (
	TagClients = "Pabau Clients"
	TagLeads   = "Pabau Leads"
)

// Sink-side date layouts (US order, unlike the CRM side).
const (
	mailchimpDateLayout     = "01/02/2006"
	mailchimpDatetimeLayout = "01/02/2006 15:04"
)

// MemberFromCandidate maps a push candidate onto the audience member shape.
// Status is always submitted as subscribed via status_if_new; unsubscribes
// flow the other way and are never pushed. Returns false when the record must
// be dropped: the system id merge field is a signed-32-bit integer on the
// sink, so an out-of-range id cannot be represented.
func MemberFromCandidate(c *model.PushCandidate, tag string) (*mailchimp.Member, bool) {
	if c.PabauID <= 0 || c.PabauID >= math.MaxInt32 {
		return nil, false
	}

	fields := map[string]interface{}{
		"FNAME":    c.FirstName,
		"LNAME":    c.LastName,
		"MMERGE17": c.PabauID,
	}

	if c.Phone != "" {
		fields["PHONE"] = c.Phone
	}
	if c.Mobile != "" {
		fields["MMERGE7"] = c.Mobile
	}
	if c.Gender != "" {
		fields["MMERGE6"] = c.Gender
	}
	if c.PhoneOptIn == 1 {
		fields["MMERGE8"] = "Yes"
	} else {
		fields["MMERGE8"] = "No"
	}

	if c.AppointmentDate != nil {
		fields["MMERGE9"] = c.AppointmentDate.Format(mailchimpDateLayout)
	}
	if c.ApptWith != "" {
		fields["MMERGE10"] = truncate(c.ApptWith, 50)
	}
	if c.ApptCreatedBy != "" {
		fields["MMERGE11"] = truncate(c.ApptCreatedBy, 50)
	}
	if c.ApptCreatedDate != nil {
		fields["MMERGE12"] = c.ApptCreatedDate.Format(mailchimpDateLayout)
	}
	if c.Duration != nil {
		fields["MMERGE13"] = fmt.Sprintf("%d min", *c.Duration)
	}
	if c.Service != "" {
		fields["MMERGE14"] = truncate(c.Service, 100)
	}
	if c.AppointmentDatetime != nil {
		fields["MMERGE15"] = c.AppointmentDatetime.Format(mailchimpDatetimeLayout)
	}
	if c.AppointmentStatus != "" {
		fields["MMERGE18"] = truncate(c.AppointmentStatus, 50)
	}

	return &mailchimp.Member{
		EmailAddress: c.Email,
		Status:       mailchimp.StatusSubscribed,
		MergeFields:  fields,
		Tags:         []string{tag},
	}, true
}

// DedupeCandidates collapses candidates sharing an email (case-insensitive),
// keeping the row with the highest internal id, i.e. the most recently
// created one.
func DedupeCandidates(candidates []model.PushCandidate) []model.PushCandidate {
	byEmail := make(map[string]model.PushCandidate, len(candidates))
	order := make([]string, 0, len(candidates))

	for _, c := range candidates {
		key := strings.ToLower(c.Email)
		prev, ok := byEmail[key]
		if !ok {
			byEmail[key] = c
			order = append(order, key)
			continue
		}
		if c.DBID > prev.DBID {
			byEmail[key] = c
		}
	}

	out := make([]model.PushCandidate, 0, len(byEmail))
	for _, key := range order {
		out = append(out, byEmail[key])
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
