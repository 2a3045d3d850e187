package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waqedi/platform/pkg/bus"
	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/models"
	"github.com/waqedi/platform/pkg/repository"
)

type stubBlobs struct {
	objects map[string][]byte
	deleted []string
	putErr  error
}

func newStubBlobs() *stubBlobs {
	return &stubBlobs{objects: map[string][]byte{}}
}

func (b *stubBlobs) Bucket() string { return "waqedi-test" }

func (b *stubBlobs) Put(_ context.Context, key, _ string, body io.Reader, _ int64, _ map[string]string) error {
	if b.putErr != nil {
		return b.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.objects[key] = data
	return nil
}

func (b *stubBlobs) Delete(_ context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	delete(b.objects, key)
	return nil
}

func (b *stubBlobs) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	if _, ok := b.objects[key]; !ok {
		return "", faults.New(faults.KindNotFound, "OBJECT_NOT_FOUND", "no object "+key)
	}
	return "https://minio.test/" + key + "?signed", nil
}

type stubDocs struct {
	byID      map[string]*models.Document
	createErr error
}

func newStubDocs() *stubDocs {
	return &stubDocs{byID: map[string]*models.Document{}}
}

func (d *stubDocs) Create(_ context.Context, doc *models.Document) error {
	if d.createErr != nil {
		return d.createErr
	}
	d.byID[doc.ID] = doc
	return nil
}

func (d *stubDocs) Get(_ context.Context, id string) (*models.Document, error) {
	doc, ok := d.byID[id]
	if !ok || doc.Status == models.StatusDeleted {
		return nil, faults.New(faults.KindNotFound, "NOT_FOUND", "no matching document")
	}
	return doc, nil
}

func (d *stubDocs) List(_ context.Context, _ repository.ListOptions) ([]*models.Document, string, error) {
	var out []*models.Document
	for _, doc := range d.byID {
		if doc.Status != models.StatusDeleted {
			out = append(out, doc)
		}
	}
	return out, "", nil
}

func (d *stubDocs) Transition(_ context.Context, id string, next models.DocumentStatus) (*models.Document, error) {
	doc, ok := d.byID[id]
	if !ok {
		return nil, faults.New(faults.KindNotFound, "NOT_FOUND", "no matching document")
	}
	if err := doc.TransitionTo(next, time.Now().UTC()); err != nil {
		var hold *models.LegalHoldViolation
		if errors.As(err, &hold) {
			return nil, faults.Wrap(faults.KindConflict, "LEGAL_HOLD", err.Error(), err)
		}
		return nil, faults.Wrap(faults.KindConflict, "ILLEGAL_TRANSITION", err.Error(), err)
	}
	return doc, nil
}

func (d *stubDocs) SetLegalHold(_ context.Context, id string, hold bool) error {
	doc, ok := d.byID[id]
	if !ok {
		return faults.New(faults.KindNotFound, "NOT_FOUND", "no matching document")
	}
	doc.LegalHold = hold
	return nil
}

type stubVectors struct {
	deleted []string
	err     error
}

func (v *stubVectors) DeleteByDocument(_ context.Context, _ uuid.UUID, documentID string) error {
	if v.err != nil {
		return v.err
	}
	v.deleted = append(v.deleted, documentID)
	return nil
}

type stubBus struct {
	published []bus.Envelope
	err       error
}

func (b *stubBus) Publish(_ context.Context, _ string, env bus.Envelope) error {
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, env)
	return nil
}

type ingestFixture struct {
	svc     *Service
	blobs   *stubBlobs
	docs    *stubDocs
	vectors *stubVectors
	bus     *stubBus
}

func newFixture() *ingestFixture {
	f := &ingestFixture{
		blobs:   newStubBlobs(),
		docs:    newStubDocs(),
		vectors: &stubVectors{},
		bus:     &stubBus{},
	}
	cfg := config.IngestConfig{
		MaxDocumentBytes: 100,
		MaxImageBytes:    50,
		MaxAudioBytes:    500,
		MaxVideoBytes:    1000,
	}
	f.svc = New(cfg, f.blobs, f.vectors, f.bus,
		func(uuid.UUID) DocumentStore { return f.docs }, slog.Default())
	return f
}

func pngUpload(body string) UploadRequest {
	return UploadRequest{
		TenantID:    uuid.New(),
		UploaderID:  uuid.New(),
		Filename:    "scan 01.png",
		ContentType: "image/png",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

func TestUpload(t *testing.T) {
	f := newFixture()
	body := "fake png bytes"
	req := pngUpload(body)

	doc, err := f.svc.Upload(context.Background(), req)
	require.NoError(t, err)

	assert.Regexp(t, `^doc_[0-9a-f]+_[0-9a-f]{16}$`, doc.ID)
	assert.Equal(t, models.CategoryImage, doc.FileCategory)
	assert.Equal(t, models.StatusUploaded, doc.Status)
	assert.Equal(t, int64(len(body)), doc.SizeBytes)
	sum := sha256.Sum256([]byte(body))
	assert.Equal(t, hex.EncodeToString(sum[:]), doc.SHA256)
	assert.Equal(t, "waqedi-test", doc.StorageBucket)
	assert.Contains(t, doc.StorageKey, req.TenantID.String())
	assert.Contains(t, doc.StorageKey, "scan_01.png")

	assert.Equal(t, []byte(body), f.blobs.objects[doc.StorageKey])
	assert.Contains(t, f.docs.byID, doc.ID)

	require.Len(t, f.bus.published, 1)
	env := f.bus.published[0]
	assert.Equal(t, bus.EventDocumentUploaded, env.EventType)
	assert.Equal(t, req.TenantID, env.TenantID)
	assert.NotEmpty(t, env.CorrelationID)
	var payload bus.DocumentUploaded
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, doc.ID, payload.DocumentID)
	assert.Equal(t, doc.StorageKey, payload.StorageKey)
}

func TestUploadUnsupportedMediaType(t *testing.T) {
	f := newFixture()
	req := pngUpload("x")
	req.ContentType = "application/zip"

	_, err := f.svc.Upload(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", faults.CodeOf(err))
	assert.Equal(t, http.StatusUnsupportedMediaType, faults.HTTPStatus(err))
	assert.Empty(t, f.blobs.objects)
	assert.Empty(t, f.docs.byID)
	assert.Empty(t, f.bus.published)
}

func TestUploadTooLargeDeclared(t *testing.T) {
	f := newFixture()
	req := pngUpload("x")
	req.Size = 51

	_, err := f.svc.Upload(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, "FILE_TOO_LARGE", faults.CodeOf(err))
	assert.Equal(t, http.StatusRequestEntityTooLarge, faults.HTTPStatus(err))
	assert.Empty(t, f.blobs.objects)
	assert.Empty(t, f.bus.published)
}

func TestUploadTooLargeStreamed(t *testing.T) {
	f := newFixture()
	// Declared size lies; the streamed body crosses the image limit.
	req := pngUpload(strings.Repeat("a", 60))
	req.Size = 10

	_, err := f.svc.Upload(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, "FILE_TOO_LARGE", faults.CodeOf(err))
	assert.Empty(t, f.blobs.objects)
	assert.Empty(t, f.docs.byID)
	assert.Empty(t, f.bus.published)
}

func TestUploadInsertFailureRemovesBlob(t *testing.T) {
	f := newFixture()
	f.docs.createErr = faults.Transientf("DB_UNAVAILABLE", errors.New("down"), "create document")

	_, err := f.svc.Upload(context.Background(), pngUpload("bytes"))
	require.Error(t, err)
	assert.Empty(t, f.blobs.objects)
	assert.Len(t, f.blobs.deleted, 1)
	assert.Empty(t, f.bus.published)
}

func TestUploadPublishFailureKeepsRow(t *testing.T) {
	f := newFixture()
	f.bus.err = faults.Transientf("BUS_UNAVAILABLE", errors.New("down"), "publish")

	_, err := f.svc.Upload(context.Background(), pngUpload("bytes"))
	require.Error(t, err)
	assert.Len(t, f.docs.byID, 1)
	for _, doc := range f.docs.byID {
		assert.Equal(t, models.StatusUploaded, doc.Status)
	}
}

func TestValidateAndQueue(t *testing.T) {
	f := newFixture()
	doc, err := f.svc.Upload(context.Background(), pngUpload("bytes"))
	require.NoError(t, err)

	queued, err := f.svc.ValidateAndQueue(context.Background(), doc.TenantID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, queued.Status)
	assert.NotNil(t, queued.ValidatedAt)
}

func TestDownloadURL(t *testing.T) {
	f := newFixture()
	doc, err := f.svc.Upload(context.Background(), pngUpload("bytes"))
	require.NoError(t, err)

	url, err := f.svc.DownloadURL(context.Background(), doc.TenantID, doc.ID)
	require.NoError(t, err)
	assert.Contains(t, url, doc.StorageKey)

	_, err = f.svc.DownloadURL(context.Background(), doc.TenantID, "doc_missing")
	assert.Equal(t, faults.KindNotFound, faults.KindOf(err))
}

func TestArchiveRequiresProcessed(t *testing.T) {
	f := newFixture()
	doc, err := f.svc.Upload(context.Background(), pngUpload("bytes"))
	require.NoError(t, err)

	_, err = f.svc.Archive(context.Background(), doc.TenantID, doc.ID)
	require.Error(t, err)
	assert.Equal(t, "ILLEGAL_TRANSITION", faults.CodeOf(err))

	f.docs.byID[doc.ID].Status = models.StatusProcessed
	archived, err := f.svc.Archive(context.Background(), doc.TenantID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, archived.Status)
	assert.NotNil(t, archived.ArchivedAt)
}

func TestDelete(t *testing.T) {
	f := newFixture()
	doc, err := f.svc.Upload(context.Background(), pngUpload("bytes"))
	require.NoError(t, err)
	f.docs.byID[doc.ID].Status = models.StatusProcessed

	require.NoError(t, f.svc.Delete(context.Background(), doc.TenantID, doc.ID))

	assert.Equal(t, models.StatusDeleted, f.docs.byID[doc.ID].Status)
	assert.Equal(t, []string{doc.ID}, f.vectors.deleted)
	assert.Contains(t, f.blobs.deleted, doc.StorageKey)

	_, err = f.svc.Get(context.Background(), doc.TenantID, doc.ID)
	assert.Equal(t, http.StatusNotFound, faults.HTTPStatus(err))
}

func TestDeleteUnderLegalHold(t *testing.T) {
	f := newFixture()
	doc, err := f.svc.Upload(context.Background(), pngUpload("bytes"))
	require.NoError(t, err)
	f.docs.byID[doc.ID].Status = models.StatusProcessed
	require.NoError(t, f.svc.SetLegalHold(context.Background(), doc.TenantID, doc.ID, true))

	err = f.svc.Delete(context.Background(), doc.TenantID, doc.ID)
	require.Error(t, err)
	assert.Equal(t, "LEGAL_HOLD", faults.CodeOf(err))
	assert.Equal(t, http.StatusConflict, faults.HTTPStatus(err))
	assert.Empty(t, f.vectors.deleted)
	assert.NotContains(t, f.blobs.deleted, doc.StorageKey)
	assert.Equal(t, models.StatusProcessed, f.docs.byID[doc.ID].Status)
}
