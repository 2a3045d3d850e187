package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waqedi/platform/pkg/database"
	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/models"
)

// testDB opens the database named by TEST_DATABASE_URL and applies
// migrations. Tests are skipped when the variable is unset.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db, "test"))
	return db
}

func newTestDocument(tenantID uuid.UUID) *models.Document {
	return &models.Document{
		ID:              models.NewDocumentID(),
		TenantID:        tenantID,
		UploaderID:      uuid.New(),
		Filename:        "contract.pdf",
		ContentType:     "application/pdf",
		SizeBytes:       2048,
		SHA256:          "0f343b0931126a20f133d67c2b018a3b",
		FileCategory:    models.CategoryDocument,
		Status:          models.StatusUploaded,
		RetentionPolicy: "standard",
		StorageBucket:   "waqedi-documents",
		StorageKey:      "t/2026/08/doc/contract.pdf",
		UploadedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestDocumentsCRUDAndTransition(t *testing.T) {
	db := testDB(t)
	tenant := uuid.New()
	repo := NewDocuments(db, tenant)
	ctx := context.Background()

	doc := newTestDocument(tenant)
	require.NoError(t, repo.Create(ctx, doc))

	got, err := repo.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, models.StatusUploaded, got.Status)
	assert.Equal(t, tenant, got.TenantID)

	// UPLOADED -> VALIDATED stamps validated_at.
	got, err = repo.Transition(ctx, doc.ID, models.StatusValidated)
	require.NoError(t, err)
	assert.Equal(t, models.StatusValidated, got.Status)
	require.NotNil(t, got.ValidatedAt)

	// Skipping QUEUED is illegal.
	_, err = repo.Transition(ctx, doc.ID, models.StatusProcessed)
	require.Error(t, err)
	assert.Equal(t, faults.KindConflict, faults.KindOf(err))
	assert.Equal(t, "ILLEGAL_TRANSITION", faults.CodeOf(err))

	// The failed transition must not have changed the row.
	got, err = repo.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusValidated, got.Status)
}

func TestDocumentsTenantIsolation(t *testing.T) {
	db := testDB(t)
	tenantA := uuid.New()
	tenantB := uuid.New()
	ctx := context.Background()

	doc := newTestDocument(tenantA)
	require.NoError(t, NewDocuments(db, tenantA).Create(ctx, doc))

	// Another tenant cannot see, list, or mutate the document.
	other := NewDocuments(db, tenantB)
	_, err := other.Get(ctx, doc.ID)
	assert.Equal(t, faults.KindNotFound, faults.KindOf(err))

	docs, _, err := other.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = other.Transition(ctx, doc.ID, models.StatusValidated)
	assert.Equal(t, faults.KindNotFound, faults.KindOf(err))

	err = other.SetLegalHold(ctx, doc.ID, true)
	assert.Equal(t, faults.KindNotFound, faults.KindOf(err))
}

func TestDocumentsLegalHoldBlocksDeletion(t *testing.T) {
	db := testDB(t)
	tenant := uuid.New()
	repo := NewDocuments(db, tenant)
	ctx := context.Background()

	doc := newTestDocument(tenant)
	require.NoError(t, repo.Create(ctx, doc))
	for _, next := range []models.DocumentStatus{
		models.StatusValidated, models.StatusQueued, models.StatusProcessing, models.StatusProcessed,
	} {
		_, err := repo.Transition(ctx, doc.ID, next)
		require.NoError(t, err)
	}
	require.NoError(t, repo.SetLegalHold(ctx, doc.ID, true))

	_, err := repo.Transition(ctx, doc.ID, models.StatusDeleted)
	require.Error(t, err)
	assert.Equal(t, "LEGAL_HOLD", faults.CodeOf(err))

	// Releasing the hold allows deletion, after which the document is gone.
	require.NoError(t, repo.SetLegalHold(ctx, doc.ID, false))
	_, err = repo.Transition(ctx, doc.ID, models.StatusDeleted)
	require.NoError(t, err)

	_, err = repo.Get(ctx, doc.ID)
	assert.Equal(t, faults.KindNotFound, faults.KindOf(err))
}

func TestDocumentsListPagination(t *testing.T) {
	db := testDB(t)
	tenant := uuid.New()
	repo := NewDocuments(db, tenant)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		doc := newTestDocument(tenant)
		require.NoError(t, repo.Create(ctx, doc))
		ids = append(ids, doc.ID)
		time.Sleep(2 * time.Millisecond) // distinct millisecond ID prefixes
	}

	page1, cursor, err := repo.List(ctx, ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotEmpty(t, cursor)
	// Newest first.
	assert.Equal(t, ids[4], page1[0].ID)
	assert.Equal(t, ids[3], page1[1].ID)

	page2, cursor, err := repo.List(ctx, ListOptions{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, ids[2], page2[0].ID)

	page3, cursor, err := repo.List(ctx, ListOptions{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Empty(t, cursor)
}

func TestExtractionsWriteOnce(t *testing.T) {
	db := testDB(t)
	tenant := uuid.New()
	ctx := context.Background()

	doc := newTestDocument(tenant)
	require.NoError(t, NewDocuments(db, tenant).Create(ctx, doc))

	repo := NewExtractions(db, tenant)
	res := &models.ExtractionResult{
		ID:               uuid.NewString(),
		DocumentID:       doc.ID,
		TenantID:         tenant,
		Type:             models.ExtractionOCR,
		FullText:         "hello world",
		Pages:            []models.PageResult{{PageNumber: 1, Text: "hello world", Confidence: 0.92}},
		PageCount:        1,
		MeanConfidence:   0.92,
		DetectedLanguage: "en",
		ModelVersion:     "easyocr-1.7",
		ProcessingTimeMS: 120,
		CreatedAt:        time.Now().UTC(),
	}

	inserted, err := repo.Create(ctx, res)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Replays are no-ops.
	res2 := *res
	res2.ID = uuid.NewString()
	res2.FullText = "different"
	inserted, err = repo.Create(ctx, &res2)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := repo.GetByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got.FullText)
	require.Len(t, got.Pages, 1)
	assert.Equal(t, 0.92, got.Pages[0].Confidence)
}

func TestChunksReplaceIsIdempotent(t *testing.T) {
	db := testDB(t)
	tenant := uuid.New()
	ctx := context.Background()

	doc := newTestDocument(tenant)
	require.NoError(t, NewDocuments(db, tenant).Create(ctx, doc))

	repo := NewChunks(db, tenant)
	chunks := []models.Chunk{
		{ChunkID: models.NewChunkID(), DocumentID: doc.ID, TenantID: tenant, ChunkIndex: 0, Text: "first", Language: "en", TokenCount: 2},
		{ChunkID: models.NewChunkID(), DocumentID: doc.ID, TenantID: tenant, ChunkIndex: 1, Text: "second", Language: "en", TokenCount: 2},
	}
	require.NoError(t, repo.ReplaceForDocument(ctx, doc.ID, chunks))
	require.NoError(t, repo.ReplaceForDocument(ctx, doc.ID, chunks))

	got, err := repo.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ChunkIndex)
	assert.Equal(t, "first", got[0].Text)

	n, err := repo.CountByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTranslationConfigsRoundTrip(t *testing.T) {
	db := testDB(t)
	tenant := uuid.New()
	ctx := context.Background()
	repo := NewTranslationConfigs(db, tenant)

	_, err := repo.Get(ctx)
	assert.Equal(t, faults.KindNotFound, faults.KindOf(err))

	cfg := &models.TranslationConfig{
		Strategy:          models.TranslateCanonical,
		CanonicalLanguage: "en",
		TranslateOnIngest: true,
	}
	require.NoError(t, repo.Upsert(ctx, cfg))

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TranslateCanonical, got.Strategy)

	cfg.Strategy = models.TranslateNative
	require.NoError(t, repo.Upsert(ctx, cfg))
	got, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TranslateNative, got.Strategy)
}

func TestMaintenancePurge(t *testing.T) {
	db := testDB(t)
	tenant := uuid.New()
	docs := NewDocuments(db, tenant)
	ctx := context.Background()

	old := newTestDocument(tenant)
	recent := newTestDocument(tenant)
	require.NoError(t, docs.Create(ctx, old))
	require.NoError(t, docs.Create(ctx, recent))
	for _, doc := range []*models.Document{old, recent} {
		for _, next := range []models.DocumentStatus{
			models.StatusValidated, models.StatusQueued, models.StatusProcessing,
			models.StatusProcessed, models.StatusDeleted,
		} {
			_, err := docs.Transition(ctx, doc.ID, next)
			require.NoError(t, err)
		}
	}
	// Age one soft delete past the retention window.
	_, err := db.ExecContext(ctx,
		`UPDATE documents SET deleted_at = now() - interval '40 days' WHERE id = $1`, old.ID)
	require.NoError(t, err)

	maint := NewMaintenance(db)
	purged, err := maint.PurgeDeletedDocuments(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, purged, int64(1))

	var remaining int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT count(*) FROM documents WHERE id IN ($1, $2)`, old.ID, recent.ID).Scan(&remaining))
	assert.Equal(t, 1, remaining, "only the aged soft delete is purged")
}

func TestLexiconSeeded(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewLexicon(db)

	for _, lang := range []string{"en", "ar"} {
		words, err := repo.Stopwords(ctx, lang)
		require.NoError(t, err)
		assert.NotEmpty(t, words, "stopwords for %s", lang)

		patterns, err := repo.IntentPatterns(ctx, lang)
		require.NoError(t, err)
		assert.NotEmpty(t, patterns, "intent patterns for %s", lang)
	}
}
