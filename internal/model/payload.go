package model

// Typed representations of the raw Pabau API payloads. These are decoded at
// the adapter boundary so nothing downstream ever inspects untyped maps.
// Optional numeric flags are pointers because the API omits them freely;
// absent always means 0 for consent flags and 1 for is_active.

// PabauClientPayload is one element of the /clients listing.
type PabauClientPayload struct {
	Details        PabauClientDetails        `json:"details"`
	Communications PabauClientCommunications `json:"communications"`
	Created        PabauClientCreated        `json:"created"`
	Appointments   []PabauAppointmentPayload `json:"appointments"`
}

// PabauClientDetails carries identity attributes of a client.
type PabauClientDetails struct {
	ID         int64  `json:"id"`
	CustomID   string `json:"custom_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Salutation string `json:"salutation"`
	Gender     string `json:"gender"`
	Dob        string `json:"DOB"`
	Location   string `json:"location"`
	IsActive   *int16 `json:"is_active"`
}

// PabauClientCommunications carries contact details and consent flags.
type PabauClientCommunications struct {
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Mobile          string `json:"mobile"`
	OptInEmail      *int16 `json:"opt_in_email"`
	OptInSms        *int16 `json:"opt_in_sms"`
	OptInPhone      *int16 `json:"opt_in_phone"`
	OptInPost       *int16 `json:"opt_in_post"`
	OptInNewsletter *int16 `json:"opt_in_newsletter"`
}

// PabauClientCreated carries provenance. Owner is a list upstream; only the
// first element is meaningful.
type PabauClientCreated struct {
	CreatedDate string            `json:"created_date"` // "2006-01-02 15:04:05"
	Owner       []PabauOwnerEntry `json:"owner"`
}

// PabauOwnerEntry identifies who created the record upstream.
type PabauOwnerEntry struct {
	FullName    string `json:"full_name"`
	CreatedByID int64  `json:"created_by_id"`
}

// PabauAppointmentPayload is the low-detail appointment shape embedded in the
// /clients listing. AppointmentDate may carry a time component
// ("30/10/2025 09:00") or be date-only.
type PabauAppointmentPayload struct {
	ID              *int64 `json:"id"`
	AppointmentDate string `json:"appointment_date"`
	Service         string `json:"service"`
}

// PabauLeadPayload is one element of the /leads listing.
type PabauLeadPayload struct {
	ID         int64  `json:"id"`
	ContactID  int64  `json:"contact_id"`
	Email      string `json:"email"`
	Salutation string `json:"salutation"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	Mobile     string `json:"mobile"`
	Dob        string `json:"DOB"`

	MailingStreet  string `json:"mailing_street"`
	MailingPostal  string `json:"mailing_postal"`
	MailingCity    string `json:"mailing_city"`
	MailingCounty  string `json:"mailing_county"`
	MailingCountry string `json:"mailing_country"`

	IsActive   *int16 `json:"is_active"`
	LeadStatus string `json:"lead_status"`

	Owner    *PabauLeadOwner    `json:"owner"`
	Location *PabauLeadLocation `json:"location"`
	Dates    *PabauLeadDates    `json:"dates"`
	Pipeline *PabauLeadPipeline `json:"pipeline"`

	DealValue float64 `json:"deal_value"`

	CustomFields []PabauCustomField `json:"custom_fields"`
}

// PabauLeadOwner is the owning agent of a lead.
type PabauLeadOwner struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PabauLeadLocation is the clinic location a lead is attached to.
type PabauLeadLocation struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PabauLeadDates groups the lifecycle timestamps of a lead.
type PabauLeadDates struct {
	CreatedDate   string `json:"created_date"`
	UpdatedDate   string `json:"updated_date"`
	ConvertedDate string `json:"converted_date"`
}

// PabauLeadPipeline describes the sales pipeline position of a lead.
type PabauLeadPipeline struct {
	Name  string          `json:"name"`
	Stage *PabauLeadStage `json:"stage"`
}

// PabauLeadStage is the current pipeline stage of a lead.
type PabauLeadStage struct {
	PipelineStageID   int64  `json:"pipeline_stage_id"`
	PipelineStageName string `json:"pipeline_stage_name"`
}

// PabauCustomField is one name/value pair from the unordered custom field
// list. Value is left untyped because upstream mixes strings and numbers.
type PabauCustomField struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}
