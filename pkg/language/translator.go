package language

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/inference"
	"github.com/waqedi/platform/pkg/models"
)

// Engine translates one text segment between languages.
type Engine interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
	Name() string
	Version() string
}

// ShouldTranslate decides whether a segment in detectedLang gets translated
// at ingest under the tenant's policy.
func ShouldTranslate(cfg models.TranslationConfig, detectedLang string) bool {
	if detectedLang == "" || detectedLang == "unknown" || detectedLang == cfg.CanonicalLanguage {
		return false
	}
	switch cfg.Strategy {
	case models.TranslateNative:
		return false
	case models.TranslateCanonical:
		return true
	case models.TranslateHybrid:
		return cfg.TranslateOnIngest
	default:
		return false
	}
}

var languageNames = map[string]string{
	"en": "English",
	"ar": "Arabic",
}

const translateSystemPrompt = "You are a professional translator. Translate the user's text from %s to %s. Preserve meaning, tone, numbers, and named entities. Output only the translation with no commentary."

// ChatEngine translates through the chat model. Dedicated MT backends can
// replace it behind the Engine interface without touching the processor.
type ChatEngine struct {
	chat inference.ChatModel
}

// NewChatEngine builds a chat-backed translation engine.
func NewChatEngine(chat inference.ChatModel) *ChatEngine {
	return &ChatEngine{chat: chat}
}

func (e *ChatEngine) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if sourceLang == targetLang {
		return text, nil
	}
	system := fmt.Sprintf(translateSystemPrompt, languageName(sourceLang), languageName(targetLang))
	out, err := e.chat.Generate(ctx, system, text)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", faults.Terminalf("TRANSLATION_EMPTY", nil, "translation engine returned empty output for %s->%s", sourceLang, targetLang)
	}
	return out, nil
}

func (e *ChatEngine) Name() string    { return "chat-translate" }
func (e *ChatEngine) Version() string { return e.chat.Model() }

func languageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

// newTranslationRecord stamps a completed translation.
func newTranslationRecord(e Engine, sourceLang, targetLang string, now time.Time) *models.TranslationRecord {
	return &models.TranslationRecord{
		Engine:        e.Name(),
		EngineVersion: e.Version(),
		SourceLang:    sourceLang,
		TargetLang:    targetLang,
		Timestamp:     now.UTC(),
	}
}
