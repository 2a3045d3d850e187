package language

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/models"
)

func TestDetectScript(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.Script
	}{
		{"english", "The quarterly report is attached for review.", models.ScriptLatin},
		{"arabic", "التقرير الربع سنوي مرفق للمراجعة والاعتماد", models.ScriptArabic},
		{"mixed", "التقرير quarterly report مرفق attached هنا", models.ScriptMixed},
		{"digits only", "123 456 789", models.ScriptUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectScript(tt.text))
		})
	}
}

func TestDetect(t *testing.T) {
	d := NewDetector(50)

	t.Run("too short is unknown", func(t *testing.T) {
		det := d.Detect("hi")
		assert.Equal(t, "unknown", det.PrimaryLanguage)
		assert.Zero(t, det.Confidence)
	})

	t.Run("short english", func(t *testing.T) {
		det := d.Detect("Annual budget summary")
		assert.Equal(t, "en", det.PrimaryLanguage)
		assert.InDelta(t, 0.6, det.Confidence, 0.001)
	})

	t.Run("short arabic", func(t *testing.T) {
		det := d.Detect("ملخص الميزانية السنوية")
		assert.Equal(t, "ar", det.PrimaryLanguage)
	})

	t.Run("long english is confident", func(t *testing.T) {
		det := d.Detect("The committee reviewed the proposal and approved the budget for the next fiscal year with a few amendments to the staffing plan.")
		assert.Equal(t, "en", det.PrimaryLanguage)
		assert.Greater(t, det.Confidence, 0.8)
		assert.False(t, det.IsMixed)
	})

	t.Run("long arabic is confident", func(t *testing.T) {
		det := d.Detect("قامت اللجنة بمراجعة المقترح والموافقة على الميزانية للسنة المالية القادمة مع بعض التعديلات على خطة التوظيف في الإدارة")
		assert.Equal(t, "ar", det.PrimaryLanguage)
		assert.Greater(t, det.Confidence, 0.8)
		assert.Equal(t, models.ScriptArabic, det.Script)
	})

	t.Run("mixed text reports candidates", func(t *testing.T) {
		det := d.Detect("The final decision الموافقة النهائية was recorded in the minutes وتم تسجيلها في المحضر for the archive")
		assert.True(t, det.IsMixed)
		require.NotEmpty(t, det.SecondaryLanguages)
		assert.Greater(t, det.SecondaryLanguages[0].Confidence, 0.2)
	})
}

func TestNormalizeEnglish(t *testing.T) {
	n := NewNormalizer(true)

	t.Run("ocr standalone l before digit", func(t *testing.T) {
		out, changes := n.Normalize("page l0 of the report", "en")
		assert.Equal(t, "page 10 of the report", out)
		require.Len(t, changes, 1)
		assert.Equal(t, "ocr_l_to_1", changes[0].Rule)
		assert.Equal(t, 5, changes[0].Position)
	})

	t.Run("ocr zero between letters including overlaps", func(t *testing.T) {
		out, _ := n.Normalize("c0l0r profile", "en")
		assert.Equal(t, "color profile", out)
	})

	t.Run("smart quotes and ligatures", func(t *testing.T) {
		out, changes := n.Normalize("“the ﬁnal ﬂight”", "en")
		assert.Equal(t, `"the final flight"`, out)
		assert.Len(t, changes, 4)
	})

	t.Run("whitespace cleanup", func(t *testing.T) {
		out, _ := n.Normalize("line one  \r\nline two\t\tend   \n\n\n\nlast", "en")
		assert.Equal(t, "line one\nline two end\n\nlast", out)
	})
}

func TestNormalizeArabic(t *testing.T) {
	t.Run("alef and yeh unified", func(t *testing.T) {
		n := NewNormalizer(true)
		out, changes := n.Normalize("أحمد ذهب إلى المكتبة الكبرى", "ar")
		assert.Equal(t, "احمد ذهب الي المكتبة الكبري", out)
		var rules []string
		for _, c := range changes {
			rules = append(rules, c.Rule)
		}
		assert.Contains(t, rules, "arabic_alef_unify")
		assert.Contains(t, rules, "arabic_yeh_unify")
	})

	t.Run("tashkeel stripped when not preserved", func(t *testing.T) {
		n := NewNormalizer(false)
		out, changes := n.Normalize("الكِتَاب", "ar")
		assert.Equal(t, "الكتاب", out)
		assert.NotEmpty(t, changes)
	})

	t.Run("standalone tashkeel leaves no doubled space", func(t *testing.T) {
		n := NewNormalizer(false)
		out, _ := n.Normalize("كتب ً النص", "ar")
		assert.Equal(t, "كتب النص", out)
	})

	t.Run("tashkeel kept when preserved", func(t *testing.T) {
		n := NewNormalizer(true)
		out, _ := n.Normalize("الكِتَاب", "ar")
		assert.Equal(t, "الكِتَاب", out)
	})
}

func TestNormalizeIdempotent(t *testing.T) {
	samples := []struct {
		lang string
		text string
	}{
		{"en", "page l0: the ﬁnal c0l0r’s proﬁle  \r\n\r\n\r\nannex   B  "},
		{"en", "a0a0a and l1 l2 l 3"},
		{"ar", "أَهلاً إلى المكتبة الكُبرى\r\n  مع   التحية  "},
		{"ar", "ذهب الولد الى المدرسة صباحا"},
		{"ar", "كتب ً النص"},
		{"en", "plain already-normalized text"},
		{"unknown", "12345 67890 !!"},
	}
	for _, s := range samples {
		for _, preserve := range []bool{true, false} {
			n := NewNormalizer(preserve)
			once, _ := n.Normalize(s.text, s.lang)
			twice, again := n.Normalize(once, s.lang)
			assert.Equal(t, once, twice, "text %q lang %s preserve %v", s.text, s.lang, preserve)
			assert.Empty(t, again, "second pass must record no changes")
		}
	}
}

func TestShouldTranslate(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.TranslationConfig
		lang string
		want bool
	}{
		{"native never translates", models.TranslationConfig{Strategy: models.TranslateNative, CanonicalLanguage: "en"}, "ar", false},
		{"canonical translates foreign", models.TranslationConfig{Strategy: models.TranslateCanonical, CanonicalLanguage: "en"}, "ar", true},
		{"canonical skips matching", models.TranslationConfig{Strategy: models.TranslateCanonical, CanonicalLanguage: "en"}, "en", false},
		{"hybrid opt-in", models.TranslationConfig{Strategy: models.TranslateHybrid, CanonicalLanguage: "en", TranslateOnIngest: true}, "ar", true},
		{"hybrid opt-out defers", models.TranslationConfig{Strategy: models.TranslateHybrid, CanonicalLanguage: "en"}, "ar", false},
		{"unknown language skipped", models.TranslationConfig{Strategy: models.TranslateCanonical, CanonicalLanguage: "en"}, "unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldTranslate(tt.cfg, tt.lang))
		})
	}
}

type stubEngine struct {
	calls int
}

func (s *stubEngine) Translate(_ context.Context, text, _, _ string) (string, error) {
	s.calls++
	return "[translated] " + text, nil
}
func (s *stubEngine) Name() string    { return "stub" }
func (s *stubEngine) Version() string { return "test" }

func langCfg() config.LanguageConfig {
	return config.LanguageConfig{
		NormalizationVersion:     NormalizationVersion,
		ShortTextLimit:           50,
		DefaultStrategy:          string(models.TranslateNative),
		CanonicalLanguage:        "en",
		PreserveArabicDiacritics: true,
	}
}

func TestSegmentExtraction(t *testing.T) {
	t.Run("pages become segments, blanks dropped", func(t *testing.T) {
		res := &models.ExtractionResult{
			Pages: []models.PageResult{
				{PageNumber: 1, Text: "first page"},
				{PageNumber: 2, Text: "   "},
				{PageNumber: 3, Text: "third page"},
			},
		}
		segs := SegmentExtraction(res)
		require.Len(t, segs, 2)
		assert.Equal(t, 1, *segs[0].PageNumber)
		assert.Equal(t, 3, *segs[1].PageNumber)
	})

	t.Run("full text fallback", func(t *testing.T) {
		segs := SegmentExtraction(&models.ExtractionResult{FullText: "transcript body"})
		require.Len(t, segs, 1)
		assert.Nil(t, segs[0].PageNumber)
	})
}

func TestProcessor(t *testing.T) {
	tenantID := uuid.New()
	segments := []Segment{
		{Text: "قامت اللجنة بمراجعة المقترح والموافقة على الميزانية للسنة المالية القادمة بعد مناقشة مستفيضة"},
		{Text: "Approved by the finance department."},
	}

	t.Run("canonical tenant translates foreign segments", func(t *testing.T) {
		engine := &stubEngine{}
		p := NewProcessor(langCfg(), engine)
		cfg := &models.TranslationConfig{Strategy: models.TranslateCanonical, CanonicalLanguage: "en"}

		artifacts, primary, err := p.Process(context.Background(), tenantID, "doc_1", segments, cfg)
		require.NoError(t, err)
		require.Len(t, artifacts, 2)
		assert.Equal(t, "ar", primary)
		assert.Equal(t, 1, engine.calls)

		ar := artifacts[0]
		assert.Equal(t, "ar", ar.LanguageCode)
		assert.NotEmpty(t, ar.TranslatedText)
		require.NotNil(t, ar.Translation)
		assert.Equal(t, "stub", ar.Translation.Engine)
		assert.Equal(t, "en", ar.Translation.TargetLang)
		assert.Equal(t, ar.TranslatedText, ar.IndexableText())

		en := artifacts[1]
		assert.Empty(t, en.TranslatedText)
		assert.Equal(t, en.NormalizedText, en.IndexableText())
	})

	t.Run("default policy applies without tenant config", func(t *testing.T) {
		engine := &stubEngine{}
		p := NewProcessor(langCfg(), engine)

		artifacts, _, err := p.Process(context.Background(), tenantID, "doc_2", segments, nil)
		require.NoError(t, err)
		assert.Zero(t, engine.calls)
		for _, a := range artifacts {
			assert.Empty(t, a.TranslatedText)
		}
	})

	t.Run("artifact identity and ordering", func(t *testing.T) {
		p := NewProcessor(langCfg(), nil)
		artifacts, _, err := p.Process(context.Background(), tenantID, "doc_3", segments, nil)
		require.NoError(t, err)
		for i, a := range artifacts {
			assert.Equal(t, i, a.SegmentIndex)
			assert.Regexp(t, `^lng_[0-9a-f]{16}$`, a.ID)
			assert.Equal(t, "doc_3", a.DocumentID)
			assert.Equal(t, NormalizationVersion, a.NormalizationVersion)
			assert.NotEmpty(t, a.OriginalText)
		}
	})
}
