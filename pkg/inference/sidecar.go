package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/models"
)

// sidecarClient is the shared HTTP plumbing for the OCR and STT sidecars.
// A 4xx from an engine is terminal (the input will not get better); 5xx and
// transport errors are retryable.
type sidecarClient struct {
	baseURL string
	client  *http.Client
}

func (c *sidecarClient) post(ctx context.Context, path, contentType string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return faults.Wrap(faults.KindInternal, "REQUEST_BUILD_FAILED", path, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return faults.Transientf("ENGINE_UNAVAILABLE", err, "POST %s", path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return faults.Transientf("ENGINE_UNAVAILABLE", nil, "POST %s returned %d", path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return faults.Terminalf("ENGINE_REJECTED_INPUT", nil, "POST %s returned %d: %s", path, resp.StatusCode, detail)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return faults.Terminalf("ENGINE_BAD_RESPONSE", err, "decode %s response", path)
	}
	return nil
}

// HTTPOCREngine talks to the OCR inference sidecar.
type HTTPOCREngine struct {
	sidecar sidecarClient
	version string
}

// NewOCREngine builds the OCR client from inference config.
func NewOCREngine(cfg config.InferenceConfig) *HTTPOCREngine {
	return &HTTPOCREngine{
		sidecar: sidecarClient{
			baseURL: cfg.OCREndpoint,
			client:  &http.Client{Timeout: cfg.RequestTimeout},
		},
		version: "easyocr",
	}
}

type ocrResponse struct {
	Blocks []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
		BBox       [4]int  `json:"bbox"` // x, y, width, height
	} `json:"blocks"`
	EngineVersion string `json:"engine_version"`
}

// RecognizePage runs OCR over one PNG-encoded image.
func (e *HTTPOCREngine) RecognizePage(ctx context.Context, image []byte, pageNumber int) (*models.PageResult, error) {
	path := "/ocr?page=" + strconv.Itoa(pageNumber)
	return e.recognize(ctx, path, "image/png", image, pageNumber)
}

// RecognizePDFPage hands one scanned PDF page to the sidecar, which
// rasterizes it at the requested DPI before recognition.
func (e *HTTPOCREngine) RecognizePDFPage(ctx context.Context, pdf []byte, pageNumber, dpi int) (*models.PageResult, error) {
	path := "/ocr?page=" + strconv.Itoa(pageNumber) + "&dpi=" + strconv.Itoa(dpi)
	return e.recognize(ctx, path, "application/pdf", pdf, pageNumber)
}

func (e *HTTPOCREngine) recognize(ctx context.Context, path, contentType string, body []byte, pageNumber int) (*models.PageResult, error) {
	var resp ocrResponse
	if err := e.sidecar.post(ctx, path, contentType, body, &resp); err != nil {
		return nil, err
	}
	if resp.EngineVersion != "" {
		e.version = resp.EngineVersion
	}

	page := &models.PageResult{PageNumber: pageNumber}
	var sum float64
	for _, b := range resp.Blocks {
		page.Blocks = append(page.Blocks, models.TextBlock{
			Text:       b.Text,
			Confidence: b.Confidence,
			BoundingBox: models.BoundingBox{
				X: b.BBox[0], Y: b.BBox[1], Width: b.BBox[2], Height: b.BBox[3],
			},
		})
		if page.Text != "" {
			page.Text += "\n"
		}
		page.Text += b.Text
		sum += b.Confidence
	}
	if len(resp.Blocks) > 0 {
		page.Confidence = sum / float64(len(resp.Blocks))
	}
	return page, nil
}

func (e *HTTPOCREngine) Version() string { return e.version }

// HTTPSTTEngine talks to the speech-to-text inference sidecar.
type HTTPSTTEngine struct {
	sidecar sidecarClient
	version string
}

// NewSTTEngine builds the STT client from inference config.
func NewSTTEngine(cfg config.InferenceConfig) *HTTPSTTEngine {
	return &HTTPSTTEngine{
		sidecar: sidecarClient{
			baseURL: cfg.STTEndpoint,
			client:  &http.Client{Timeout: cfg.RequestTimeout},
		},
		version: "whisper",
	}
}

type sttResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration_seconds"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
	EngineVersion string `json:"engine_version"`
}

// Transcribe sends a 16 kHz mono WAV payload for transcription.
func (e *HTTPSTTEngine) Transcribe(ctx context.Context, wav []byte) (*Transcript, error) {
	var resp sttResponse
	if err := e.sidecar.post(ctx, "/transcribe", "audio/wav", wav, &resp); err != nil {
		return nil, err
	}
	if resp.EngineVersion != "" {
		e.version = resp.EngineVersion
	}

	t := &Transcript{
		Text:            resp.Text,
		Language:        resp.Language,
		DurationSeconds: resp.Duration,
	}
	for _, s := range resp.Segments {
		t.Segments = append(t.Segments, models.TranscriptSegment{
			Text:   s.Text,
			StartS: s.Start,
			EndS:   s.End,
		})
	}
	return t, nil
}

func (e *HTTPSTTEngine) Version() string { return e.version }
