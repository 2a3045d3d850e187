package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allStatuses() []DocumentStatus {
	return []DocumentStatus{
		StatusUploaded, StatusValidated, StatusQueued, StatusProcessing,
		StatusProcessed, StatusFailed, StatusArchived, StatusRejected, StatusDeleted,
	}
}

func TestTransitionTo_AllowedPairs(t *testing.T) {
	now := time.Now()
	for from, tos := range AllowedTransitions {
		for _, to := range tos {
			doc := &Document{ID: "doc_1", Status: from}
			require.NoError(t, doc.TransitionTo(to, now), "%s -> %s", from, to)
			assert.Equal(t, to, doc.Status)
		}
	}
}

func TestTransitionTo_IllegalPairsFail(t *testing.T) {
	now := time.Now()
	for _, from := range allStatuses() {
		allowed := map[DocumentStatus]bool{}
		for _, to := range AllowedTransitions[from] {
			allowed[to] = true
		}
		for _, to := range allStatuses() {
			if allowed[to] {
				continue
			}
			doc := &Document{ID: "doc_1", Status: from}
			err := doc.TransitionTo(to, now)
			require.Error(t, err, "%s -> %s must fail", from, to)
			assert.Equal(t, from, doc.Status, "status must be unchanged on failure")
		}
	}
}

func TestTransitionTo_StampsTimestamps(t *testing.T) {
	now := time.Now()
	doc := &Document{ID: "doc_1", Status: StatusUploaded}

	require.NoError(t, doc.TransitionTo(StatusValidated, now))
	require.NotNil(t, doc.ValidatedAt)
	assert.Equal(t, now, *doc.ValidatedAt)

	require.NoError(t, doc.TransitionTo(StatusQueued, now))
	require.NoError(t, doc.TransitionTo(StatusProcessing, now))

	later := now.Add(time.Minute)
	require.NoError(t, doc.TransitionTo(StatusProcessed, later))
	require.NotNil(t, doc.ProcessedAt)
	assert.True(t, !doc.ProcessedAt.Before(*doc.ValidatedAt), "timestamps are monotonic")
}

func TestTransitionTo_LegalHoldBlocksDeletion(t *testing.T) {
	now := time.Now()
	for _, from := range allStatuses() {
		doc := &Document{ID: "doc_held", Status: from, LegalHold: true}
		err := doc.TransitionTo(StatusDeleted, now)
		require.Error(t, err, "held document must never reach DELETED from %s", from)
		var hold *LegalHoldViolation
		assert.True(t, errors.As(err, &hold), "expected LegalHoldViolation from %s, got %v", from, err)
		assert.Equal(t, from, doc.Status)
		assert.Nil(t, doc.DeletedAt)
	}
}

func TestTransitionTo_FailedRetriesToQueued(t *testing.T) {
	doc := &Document{ID: "doc_1", Status: StatusFailed}
	require.NoError(t, doc.TransitionTo(StatusQueued, time.Now()))
	assert.Equal(t, StatusQueued, doc.Status)
}

func TestNewDocumentID_TimeOrdered(t *testing.T) {
	a := NewDocumentID()
	time.Sleep(2 * time.Millisecond)
	b := NewDocumentID()

	assert.True(t, strings.HasPrefix(a, "doc_"))
	assert.True(t, a < b, "IDs must sort by creation time: %s >= %s", a, b)
	assert.NotEqual(t, a, b)
}

func TestCategoryForContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        FileCategory
	}{
		{"application/pdf", CategoryDocument},
		{"image/png", CategoryImage},
		{"image/jpeg", CategoryImage},
		{"audio/mpeg", CategoryAudio},
		{"audio/wav", CategoryAudio},
		{"video/mp4", CategoryVideo},
		{"text/html", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CategoryForContentType(tt.contentType), tt.contentType)
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 128, EstimateTokens(strings.Repeat("x", 512)))
}

func TestNewChunkID(t *testing.T) {
	id := NewChunkID()
	assert.True(t, strings.HasPrefix(id, "chunk_"))
	assert.Len(t, id, len("chunk_")+12)
	assert.NotEqual(t, id, NewChunkID())
}

func TestTimestampColumn(t *testing.T) {
	assert.Equal(t, "validated_at", TimestampColumn(StatusValidated))
	assert.Equal(t, "deleted_at", TimestampColumn(StatusDeleted))
	assert.Equal(t, "", TimestampColumn(StatusQueued))
}

func TestIndexableText(t *testing.T) {
	a := &LinguisticArtifact{TenantID: uuid.New(), NormalizedText: "hello", TranslatedText: ""}
	assert.Equal(t, "hello", a.IndexableText())
	a.TranslatedText = "bonjour"
	assert.Equal(t, "bonjour", a.IndexableText())
}
