// Package inference holds the model-engine clients: chat and embeddings on
// an Ollama-compatible server, OCR and speech-to-text on HTTP sidecars.
// Engines are versioned; every artifact they produce records the engine
// identifier so results stay reproducible.
package inference

import (
	"context"

	"github.com/waqedi/platform/pkg/models"
)

// ChatModel generates grounded answers.
type ChatModel interface {
	// Generate produces a completion for a system + user prompt pair.
	Generate(ctx context.Context, system, user string) (string, error)
	// Model returns the model identifier used for generation.
	Model() string
}

// Embedder encodes texts into vectors.
type Embedder interface {
	// Embed batch-encodes texts, one vector per input in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	// Version tags the embedding space. Query and index vectors must share
	// it or similarity scores are meaningless.
	Version() string
	Dim() int
}

// OCREngine extracts text from page or photo images.
type OCREngine interface {
	// RecognizePage runs OCR over one image and returns its text blocks.
	RecognizePage(ctx context.Context, image []byte, pageNumber int) (*models.PageResult, error)
	// RecognizePDFPage rasterizes one PDF page at the given DPI and runs
	// OCR over it. Rasterization happens engine-side.
	RecognizePDFPage(ctx context.Context, pdf []byte, pageNumber, dpi int) (*models.PageResult, error)
	Version() string
}

// STTEngine transcribes normalized audio.
type STTEngine interface {
	// Transcribe consumes a 16 kHz mono WAV payload.
	Transcribe(ctx context.Context, wav []byte) (*Transcript, error)
	Version() string
}

// Transcript is the STT output for one audio stream.
type Transcript struct {
	Text            string                     `json:"text"`
	Language        string                     `json:"language"`
	DurationSeconds float64                    `json:"duration_seconds"`
	Segments        []models.TranscriptSegment `json:"segments"`
}
