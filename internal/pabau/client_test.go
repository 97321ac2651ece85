package pabau

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientPageSizeClamp(t *testing.T) {
	assert.Equal(t, 50, NewClient("http://x", "k", 0).PageSize())
	assert.Equal(t, 50, NewClient("http://x", "k", -1).PageSize())
	assert.Equal(t, 50, NewClient("http://x", "k", 200).PageSize(), "hard API cap is 50")
	assert.Equal(t, 25, NewClient("http://x", "k", 25).PageSize())
}

func TestListClients(t *testing.T) {
	var gotPath, gotPage, gotPerPage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPage = r.URL.Query().Get("page")
		gotPerPage = r.URL.Query().Get("per_page")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"clients": [
			{
				"details": {"id": 4711, "first_name": "Jane", "last_name": "Doe", "is_active": 1},
				"communications": {"email": "jane@example.com", "opt_in_email": 1},
				"created": {"created_date": "2024-03-15 10:30:00", "owner": [{"full_name": "Reception", "created_by_id": 9}]},
				"appointments": [{"id": 555, "appointment_date": "30/10/2025 14:00", "service": "Consultation"}]
			}
		]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret-key", 50)
	payloads, err := c.ListClients(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, "/secret-key/clients", gotPath, "the api key is a path segment")
	assert.Equal(t, "3", gotPage)
	assert.Equal(t, "50", gotPerPage)

	require.Len(t, payloads, 1)
	p := payloads[0]
	assert.Equal(t, int64(4711), p.Details.ID)
	assert.Equal(t, "jane@example.com", p.Communications.Email)
	require.NotNil(t, p.Communications.OptInEmail)
	assert.Equal(t, int16(1), *p.Communications.OptInEmail)
	require.Len(t, p.Appointments, 1)
	assert.Equal(t, "Consultation", p.Appointments[0].Service)
}

func TestListClientsEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"clients": []}`))
	}))
	defer server.Close()

	payloads, err := NewClient(server.URL, "k", 50).ListClients(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, payloads)
}

func TestListLeads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/k/leads", r.URL.Path)
		w.Write([]byte(`{"leads": [
			{"id": 88001, "email": "sam@example.com",
			 "custom_fields": [{"name": "opt_in_email_lead", "value": "opted in"}]}
		]}`))
	}))
	defer server.Close()

	payloads, err := NewClient(server.URL, "k", 50).ListLeads(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Equal(t, int64(88001), payloads[0].ID)
	require.Len(t, payloads[0].CustomFields, 1)
	assert.Equal(t, "opted in", payloads[0].CustomFields[0].Value)
}

func TestListLeadsMixedCustomFieldValues(t *testing.T) {
	// Upstream mixes strings and numbers in custom field values.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"leads": [
			{"id": 1, "custom_fields": [
				{"name": "opt_in_email_lead", "value": 1},
				{"name": "budget", "value": "500"}
			]}
		]}`))
	}))
	defer server.Close()

	payloads, err := NewClient(server.URL, "k", 50).ListLeads(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Equal(t, float64(1), payloads[0].CustomFields[0].Value)
}

func TestListClientsClientErrorIsNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "k", 50).ListClients(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "4xx responses are permanent failures")
}

func TestListClientsMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"clients": [`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "k", 50).ListClients(context.Background(), 1)
	require.Error(t, err)
}
