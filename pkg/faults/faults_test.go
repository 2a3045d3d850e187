package faults

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"classified validation", New(KindValidation, "FILE_TOO_LARGE", "too big"), KindValidation},
		{"wrapped transient", fmt.Errorf("stage: %w", Transientf("BUS_UNAVAILABLE", errors.New("timeout"), "send failed")), KindTransient},
		{"plain error defaults to internal", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{New(KindValidation, "FILE_TOO_LARGE", ""), http.StatusRequestEntityTooLarge},
		{New(KindValidation, "UNSUPPORTED_MEDIA_TYPE", ""), http.StatusUnsupportedMediaType},
		{New(KindValidation, "QUOTA_EXCEEDED", ""), http.StatusTooManyRequests},
		{New(KindValidation, "VALIDATION_ERROR", ""), http.StatusBadRequest},
		{New(KindConflict, "LEGAL_HOLD", ""), http.StatusConflict},
		{New(KindNotFound, "DOCUMENT_NOT_FOUND", ""), http.StatusNotFound},
		{New(KindAuthorization, "AUTHENTICATION_ERROR", ""), http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "code %s", CodeOf(tt.err))
	}
}

func TestTypeURI(t *testing.T) {
	err := New(KindValidation, "FILE_TOO_LARGE", "2.1 GiB exceeds the video limit")
	assert.Equal(t, "urn:waqedi:error:file-too-large", TypeURI(err))
	assert.Equal(t, "File Too Large", Title(err))

	assert.Equal(t, "urn:waqedi:error:internal-error", TypeURI(errors.New("boom")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Transientf("VECTOR_STORE_UNAVAILABLE", nil, "upsert")))
	assert.False(t, IsRetryable(Terminalf("CORRUPT_PDF", nil, "parse")))
	assert.False(t, IsRetryable(errors.New("boom")))
}
