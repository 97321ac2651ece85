package transform

import (
	"strings"
	"time"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
)

// ParseAppointmentDate parses the "DD/MM/YYYY HH:MM" appointment timestamp,
// falling back to date-only. Returns (nil, "") on anything it cannot parse;
// appointments with unparseable dates are kept, just without a datetime, so
// one bad value never blocks the rest of the client record.
func ParseAppointmentDate(raw string) (*time.Time, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ""
	}
	if t, err := time.Parse(pabauApptLayout, raw); err == nil {
		t = t.UTC()
		return &t, t.Format("15:04")
	}
	if t, err := time.Parse(pabauApptDateLayout, raw); err == nil {
		t = t.UTC()
		return &t, ""
	}
	return nil, ""
}

// AppointmentsFromPayload maps the embedded appointment list of a client
// payload onto store models keyed to the client's upstream id.
func AppointmentsFromPayload(clientPabauID int64, payloads []model.PabauAppointmentPayload, syncedAt time.Time) []*model.Appointment {
	out := make([]*model.Appointment, 0, len(payloads))
	for _, p := range payloads {
		dt, hhmm := ParseAppointmentDate(p.AppointmentDate)

		appt := &model.Appointment{
			ClientPabauID:       clientPabauID,
			PabauAppointmentID:  p.ID,
			AppointmentDatetime: dt,
			AppointmentTime:     hhmm,
			Service:             p.Service,
			PabauLastSyncedAt:   &syncedAt,
		}
		if dt != nil {
			day := time.Date(dt.Year(), dt.Month(), dt.Day(), 0, 0, 0, 0, time.UTC)
			appt.AppointmentDate = &day
		}
		out = append(out, appt)
	}
	return out
}
