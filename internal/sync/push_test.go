package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/mailchimp"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/transform"
)

func candidate(dbID, pabauID int64, email string) model.PushCandidate {
	return model.PushCandidate{DBID: dbID, PabauID: pabauID, FirstName: "Test", Email: email}
}

func TestPushGateNoCompletedPull(t *testing.T) {
	h := newEngineHarness(t)

	h.logs.On("LastCompleted", mock.Anything, model.ActionClientsCompleted, model.ActionLeadsCompleted).
		Return(nil, nil)

	err := h.engine.pushToMailchimp(context.Background(), "run-1")
	require.NoError(t, err)

	// Gate closed: no candidates queried, nothing sent, no terminal marker.
	h.logs.AssertNotCalled(t, "ClientPushCandidates", mock.Anything, mock.Anything)
	h.sink.AssertNotCalled(t, "BatchSubscribe", mock.Anything, mock.Anything)
	assert.Empty(t, h.appendedEntries())
}

func TestPushGateNoPullSinceLastPush(t *testing.T) {
	h := newEngineHarness(t)

	lastPull := time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)
	lastPush := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	h.logs.On("LastCompleted", mock.Anything, model.ActionClientsCompleted, model.ActionLeadsCompleted).
		Return(&lastPull, nil)
	h.logs.On("LastCompleted", mock.Anything, model.ActionPushCompleted).Return(&lastPush, nil)

	err := h.engine.pushToMailchimp(context.Background(), "run-1")
	require.NoError(t, err)

	h.sink.AssertNotCalled(t, "BatchSubscribe", mock.Anything, mock.Anything)
	assert.Empty(t, h.appendedEntries(), "a skipped push writes no marker")
}

func TestPushFirstPushUsesEpoch(t *testing.T) {
	h := newEngineHarness(t)

	lastPull := time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)
	h.logs.On("LastCompleted", mock.Anything, model.ActionClientsCompleted, model.ActionLeadsCompleted).
		Return(&lastPull, nil)
	h.logs.On("LastCompleted", mock.Anything, model.ActionPushCompleted).Return(nil, nil)
	h.logs.On("ClientPushCandidates", mock.Anything, pushEpoch).Return([]model.PushCandidate{}, nil)
	h.logs.On("LeadPushCandidates", mock.Anything, pushEpoch).Return([]model.PushCandidate{}, nil)
	h.logs.On("Append", mock.Anything, mock.Anything).Return(nil)

	err := h.engine.pushToMailchimp(context.Background(), "run-1")
	require.NoError(t, err)

	// With no push marker the window opens at the epoch, and even an empty
	// push writes its terminal marker.
	h.logs.AssertCalled(t, "ClientPushCandidates", mock.Anything, pushEpoch)
	assert.Len(t, h.entriesWith(model.ActionPushCompleted, model.StatusSuccess), 1)
	h.sink.AssertNotCalled(t, "BatchSubscribe", mock.Anything, mock.Anything)
}

func TestPushBatchesOfConfiguredSize(t *testing.T) {
	h := newEngineHarness(t)
	h.engine.pushBatchSize = 2

	lastPull := time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)
	cands := make([]model.PushCandidate, 5)
	for i := range cands {
		cands[i] = candidate(int64(i+1), int64(i+1), fmt.Sprintf("user%d@example.com", i))
	}

	h.logs.On("LastCompleted", mock.Anything, model.ActionClientsCompleted, model.ActionLeadsCompleted).
		Return(&lastPull, nil)
	h.logs.On("LastCompleted", mock.Anything, model.ActionPushCompleted).Return(nil, nil)
	h.logs.On("ClientPushCandidates", mock.Anything, pushEpoch).Return(cands, nil)
	h.logs.On("LeadPushCandidates", mock.Anything, pushEpoch).Return([]model.PushCandidate{}, nil)
	h.logs.On("Append", mock.Anything, mock.Anything).Return(nil)
	h.sink.On("BatchSubscribe", mock.Anything, mock.Anything).
		Return(&mailchimp.BatchResult{TotalCreated: 2}, nil)
	h.clients.On("MarkPushed", mock.Anything, []int64{1, 2, 3, 4, 5},
		mailchimp.StatusSubscribed, []string{transform.TagClients}, mock.Anything).Return(nil)
	h.leads.On("MarkPushed", mock.Anything, []int64{},
		mailchimp.StatusSubscribed, []string{transform.TagLeads}, mock.Anything).Return(nil)

	err := h.engine.pushToMailchimp(context.Background(), "run-1")
	require.NoError(t, err)

	// 5 members at batch size 2: batches of 2, 2 and 1.
	h.sink.AssertNumberOfCalls(t, "BatchSubscribe", 3)
	sizes := []int{}
	for _, call := range h.sink.Calls {
		if call.Method == "BatchSubscribe" {
			sizes = append(sizes, len(call.Arguments.Get(1).([]mailchimp.Member)))
		}
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)

	assert.Len(t, h.entriesWith(model.ActionPush, model.StatusSuccess), 5)
	assert.Len(t, h.entriesWith(model.ActionPushCompleted, model.StatusSuccess), 1)
}

func TestPushDedupesByEmailKeepingNewestRow(t *testing.T) {
	h := newEngineHarness(t)

	lastPull := time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)
	cands := []model.PushCandidate{
		candidate(7, 700, "dup@example.com"),
		candidate(12, 1200, "DUP@example.com"),
	}

	h.logs.On("LastCompleted", mock.Anything, model.ActionClientsCompleted, model.ActionLeadsCompleted).
		Return(&lastPull, nil)
	h.logs.On("LastCompleted", mock.Anything, model.ActionPushCompleted).Return(nil, nil)
	h.logs.On("ClientPushCandidates", mock.Anything, pushEpoch).Return(cands, nil)
	h.logs.On("LeadPushCandidates", mock.Anything, pushEpoch).Return([]model.PushCandidate{}, nil)
	h.logs.On("Append", mock.Anything, mock.Anything).Return(nil)
	h.sink.On("BatchSubscribe", mock.Anything, mock.Anything).
		Return(&mailchimp.BatchResult{TotalUpdated: 1}, nil)
	h.clients.On("MarkPushed", mock.Anything, []int64{12},
		mailchimp.StatusSubscribed, []string{transform.TagClients}, mock.Anything).Return(nil)
	h.leads.On("MarkPushed", mock.Anything, []int64{},
		mailchimp.StatusSubscribed, []string{transform.TagLeads}, mock.Anything).Return(nil)

	err := h.engine.pushToMailchimp(context.Background(), "run-1")
	require.NoError(t, err)

	var sent []mailchimp.Member
	for _, call := range h.sink.Calls {
		if call.Method == "BatchSubscribe" {
			sent = call.Arguments.Get(1).([]mailchimp.Member)
		}
	}
	require.Len(t, sent, 1, "case-insensitive duplicate collapses to one member")
	assert.Equal(t, int64(1200), sent[0].MergeFields["MMERGE17"], "the higher row id wins")
}

func TestPushDropsOutOfRangeSystemID(t *testing.T) {
	h := newEngineHarness(t)

	lastPull := time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)
	cands := []model.PushCandidate{
		candidate(1, 4711, "ok@example.com"),
		candidate(2, int64(1)<<33, "huge@example.com"),
	}

	h.logs.On("LastCompleted", mock.Anything, model.ActionClientsCompleted, model.ActionLeadsCompleted).
		Return(&lastPull, nil)
	h.logs.On("LastCompleted", mock.Anything, model.ActionPushCompleted).Return(nil, nil)
	h.logs.On("ClientPushCandidates", mock.Anything, pushEpoch).Return(cands, nil)
	h.logs.On("LeadPushCandidates", mock.Anything, pushEpoch).Return([]model.PushCandidate{}, nil)
	h.logs.On("Append", mock.Anything, mock.Anything).Return(nil)
	h.sink.On("BatchSubscribe", mock.Anything, mock.Anything).
		Return(&mailchimp.BatchResult{TotalCreated: 1}, nil)
	h.clients.On("MarkPushed", mock.Anything, []int64{1},
		mailchimp.StatusSubscribed, []string{transform.TagClients}, mock.Anything).Return(nil)
	h.leads.On("MarkPushed", mock.Anything, []int64{},
		mailchimp.StatusSubscribed, []string{transform.TagLeads}, mock.Anything).Return(nil)

	err := h.engine.pushToMailchimp(context.Background(), "run-1")
	require.NoError(t, err)

	dropped := h.entriesWith(model.ActionPush, model.StatusSkipped)
	require.Len(t, dropped, 1)
	assert.Equal(t, "huge@example.com", dropped[0].Email)

	var sent []mailchimp.Member
	for _, call := range h.sink.Calls {
		if call.Method == "BatchSubscribe" {
			sent = call.Arguments.Get(1).([]mailchimp.Member)
		}
	}
	require.Len(t, sent, 1)
	assert.Equal(t, "ok@example.com", sent[0].EmailAddress)
}

func TestPushFailedBatchSkippedLaterBatchesStillSent(t *testing.T) {
	h := newEngineHarness(t)
	h.engine.pushBatchSize = 1

	lastPull := time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)
	cands := []model.PushCandidate{
		candidate(1, 1, "first@example.com"),
		candidate(2, 2, "second@example.com"),
	}

	h.logs.On("LastCompleted", mock.Anything, model.ActionClientsCompleted, model.ActionLeadsCompleted).
		Return(&lastPull, nil)
	h.logs.On("LastCompleted", mock.Anything, model.ActionPushCompleted).Return(nil, nil)
	h.logs.On("ClientPushCandidates", mock.Anything, pushEpoch).Return(cands, nil)
	h.logs.On("LeadPushCandidates", mock.Anything, pushEpoch).Return([]model.PushCandidate{}, nil)
	h.logs.On("Append", mock.Anything, mock.Anything).Return(nil)
	h.sink.On("BatchSubscribe", mock.Anything, mock.MatchedBy(func(ms []mailchimp.Member) bool {
		return len(ms) == 1 && ms[0].EmailAddress == "first@example.com"
	})).Return(nil, errors.New("rate limited"))
	h.sink.On("BatchSubscribe", mock.Anything, mock.MatchedBy(func(ms []mailchimp.Member) bool {
		return len(ms) == 1 && ms[0].EmailAddress == "second@example.com"
	})).Return(&mailchimp.BatchResult{TotalCreated: 1}, nil)
	h.clients.On("MarkPushed", mock.Anything, []int64{2},
		mailchimp.StatusSubscribed, []string{transform.TagClients}, mock.Anything).Return(nil)
	h.leads.On("MarkPushed", mock.Anything, []int64{},
		mailchimp.StatusSubscribed, []string{transform.TagLeads}, mock.Anything).Return(nil)

	err := h.engine.pushToMailchimp(context.Background(), "run-1")
	require.Error(t, err, "the failed batch surfaces in the pass error")

	h.sink.AssertNumberOfCalls(t, "BatchSubscribe", 2)
	assert.Len(t, h.entriesWith(model.ActionPush, model.StatusError), 1)
	assert.Len(t, h.entriesWith(model.ActionPush, model.StatusSuccess), 1)
	// The marker is owed once the candidates were collected, whatever
	// happened to the batches after.
	assert.Len(t, h.entriesWith(model.ActionPushCompleted, model.StatusSuccess), 1)
}

func TestPushNoMarkerWhenCandidateQueryFails(t *testing.T) {
	h := newEngineHarness(t)

	lastPull := time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)
	h.logs.On("LastCompleted", mock.Anything, model.ActionClientsCompleted, model.ActionLeadsCompleted).
		Return(&lastPull, nil)
	h.logs.On("LastCompleted", mock.Anything, model.ActionPushCompleted).Return(nil, nil)
	h.logs.On("ClientPushCandidates", mock.Anything, pushEpoch).
		Return(nil, errors.New("db unavailable"))
	h.logs.On("Append", mock.Anything, mock.Anything).Return(nil)

	err := h.engine.pushToMailchimp(context.Background(), "run-1")
	require.Error(t, err)

	// A marker here would advance the push window past records this pass
	// never saw; the window stays open for the next cycle instead.
	assert.Empty(t, h.entriesWith(model.ActionPushCompleted, model.StatusSuccess))
	h.sink.AssertNotCalled(t, "BatchSubscribe", mock.Anything, mock.Anything)
}

func TestPushLeadsGetLeadTag(t *testing.T) {
	h := newEngineHarness(t)

	lastPull := time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)
	h.logs.On("LastCompleted", mock.Anything, model.ActionClientsCompleted, model.ActionLeadsCompleted).
		Return(&lastPull, nil)
	h.logs.On("LastCompleted", mock.Anything, model.ActionPushCompleted).Return(nil, nil)
	h.logs.On("ClientPushCandidates", mock.Anything, pushEpoch).Return([]model.PushCandidate{}, nil)
	h.logs.On("LeadPushCandidates", mock.Anything, pushEpoch).
		Return([]model.PushCandidate{candidate(5, 88001, "lead@example.com")}, nil)
	h.logs.On("Append", mock.Anything, mock.Anything).Return(nil)
	h.sink.On("BatchSubscribe", mock.Anything, mock.Anything).
		Return(&mailchimp.BatchResult{TotalCreated: 1}, nil)
	h.clients.On("MarkPushed", mock.Anything, []int64{},
		mailchimp.StatusSubscribed, []string{transform.TagClients}, mock.Anything).Return(nil)
	h.leads.On("MarkPushed", mock.Anything, []int64{5},
		mailchimp.StatusSubscribed, []string{transform.TagLeads}, mock.Anything).Return(nil)

	err := h.engine.pushToMailchimp(context.Background(), "run-1")
	require.NoError(t, err)

	var sent []mailchimp.Member
	for _, call := range h.sink.Calls {
		if call.Method == "BatchSubscribe" {
			sent = call.Arguments.Get(1).([]mailchimp.Member)
		}
	}
	require.Len(t, sent, 1)
	assert.Equal(t, []string{transform.TagLeads}, sent[0].Tags)

	entries := h.entriesWith(model.ActionPush, model.StatusSuccess)
	require.Len(t, entries, 1)
	assert.Equal(t, model.EntityLead, entries[0].EntityType)
}
