package mailchimp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/apperrors"
)

func TestSubscriberHash(t *testing.T) {
	assert.Equal(t, "9e26471d35a78862c17e467d87cddedf", SubscriberHash("jane@example.com"))
	assert.Equal(t, SubscriberHash("foo@bar.com"), SubscriberHash("Foo@Bar.com"),
		"hash is over the lowercased email")
}

func TestUpsertMember(t *testing.T) {
	var putBody map[string]interface{}
	var tagBody map[string]interface{}
	var putPath, tagPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "anystring", user)
		assert.Equal(t, "api-key", pass)

		switch r.Method {
		case http.MethodPut:
			putPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&putBody))
			w.Write([]byte(`{"id": "abc123", "email_address": "jane@example.com", "status": "subscribed"}`))
		case http.MethodPost:
			tagPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&tagBody))
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, "api-key", "list1")
	info, err := c.UpsertMember(context.Background(), &Member{
		EmailAddress: "jane@example.com",
		StatusIfNew:  StatusSubscribed,
		MergeFields:  map[string]interface{}{"FNAME": "Jane"},
		Tags:         []string{"Pabau Clients"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", info.ID)

	hash := SubscriberHash("jane@example.com")
	assert.Equal(t, "/lists/list1/members/"+hash, putPath)
	assert.Equal(t, "subscribed", putBody["status_if_new"], "existing members keep their status")
	assert.NotContains(t, putBody, "status")

	assert.Equal(t, "/lists/list1/members/"+hash+"/tags", tagPath)
	tags := tagBody["tags"].([]interface{})
	require.Len(t, tags, 1)
	entry := tags[0].(map[string]interface{})
	assert.Equal(t, "Pabau Clients", entry["name"])
	assert.Equal(t, "active", entry["status"])
}

func TestGetMemberNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"title": "Resource Not Found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "k", "list1").GetMember(context.Background(), "gone@example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestListMembersShortPageTermination(t *testing.T) {
	// First page is full, second is short. total_items is deliberately wrong:
	// it must never drive pagination.
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "unsubscribed", r.URL.Query().Get("status"))
		assert.Equal(t, strconv.Itoa(listPageSize), r.URL.Query().Get("count"))

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		n := listPageSize
		if offset > 0 {
			n = 150
		}
		members := make([]MemberInfo, n)
		for i := range members {
			members[i] = MemberInfo{
				ID:           fmt.Sprintf("m%d", offset+i),
				EmailAddress: fmt.Sprintf("user%d@example.com", offset+i),
				Status:       StatusUnsubscribed,
			}
		}
		resp := map[string]interface{}{"members": members, "total_items": 99999999}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	all, err := NewClient(server.URL, "k", "list1").ListMembers(context.Background(), StatusUnsubscribed)
	require.NoError(t, err)
	assert.Len(t, all, listPageSize+150)
	assert.Equal(t, 2, requests)
}

func TestListMembersEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"members": [], "total_items": 0}`))
	}))
	defer server.Close()

	all, err := NewClient(server.URL, "k", "list1").ListMembers(context.Background(), StatusUnsubscribed)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBatchSubscribe(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/lists/list1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"total_created": 1, "total_updated": 1, "error_count": 1,
			"errors": [{"email_address": "bad@example.com", "error": "looks fake"}]}`))
	}))
	defer server.Close()

	members := []Member{
		{EmailAddress: "a@example.com", Status: StatusSubscribed},
		{EmailAddress: "b@example.com", Status: StatusSubscribed},
	}
	result, err := NewClient(server.URL, "k", "list1").BatchSubscribe(context.Background(), members)
	require.NoError(t, err)

	assert.Equal(t, true, body["update_existing"], "re-pushing must update, not error")
	assert.Len(t, body["members"].([]interface{}), 2)

	assert.Equal(t, 1, result.TotalCreated)
	assert.Equal(t, 1, result.TotalUpdated)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "bad@example.com", result.Errors[0].EmailAddress)
}

func TestDoClientErrorIsNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, `{"title": "Invalid Resource"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "k", "list1").GetMember(context.Background(), "x@example.com")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
