package rag

import (
	"fmt"
	"strings"

	"github.com/waqedi/platform/pkg/models"
)

// NoInformationPhrase is the exact refusal wording the model is instructed
// to use, per language. Zero-hit short circuits reuse it verbatim.
var NoInformationPhrase = map[string]string{
	"en": "I cannot find this information in the available documents.",
	"ar": "لا أجد هذه المعلومات في الوثائق المتاحة",
}

// FallbackAnswer is returned when the model itself is unreachable.
var FallbackAnswer = map[string]string{
	"en": "I am unable to generate a response at this time.",
	"ar": "لا أستطيع توليد إجابة في الوقت الحالي.",
}

const systemPromptEN = `You are a precise enterprise AI assistant.

CRITICAL RULES:
1. ONLY use information from the PROVIDED CONTEXT below
2. NEVER invent, assume, or infer information not in the context
3. For EVERY claim, include a citation like [chunk_id]
4. If the context doesn't contain the answer, say: "I cannot find this information in the available documents."
5. Be concise and professional

Your response MUST include citations. Without citations, your answer is invalid.`

const systemPromptAR = `أنت مساعد ذكاء اصطناعي دقيق للمؤسسات.

قواعد صارمة:
1. استخدم فقط المعلومات من السياق المقدم أدناه
2. لا تخترع أو تفترض معلومات غير موجودة في السياق
3. لكل ادعاء، أضف مرجعاً مثل [chunk_id]
4. إذا لم يحتوي السياق على الإجابة، قل: "لا أجد هذه المعلومات في الوثائق المتاحة"
5. كن موجزاً ومحترفاً

يجب أن تتضمن إجابتك مراجع. بدون مراجع، إجابتك غير صالحة.`

var intentInstructions = map[models.QueryIntent]string{
	models.IntentFactual:       "Provide a direct factual answer.",
	models.IntentSummary:       "Provide a concise summary of the relevant information.",
	models.IntentComparison:    "Compare the relevant items point by point.",
	models.IntentProcedural:    "List the steps or process clearly.",
	models.IntentClarification: "Explain the concept clearly and simply.",
}

// promptConversationTurns bounds how many prior turns enter the prompt.
const promptConversationTurns = 3

// Prompt is the two-part message pair for the chat model.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt constructs the citation-enforced prompt for one query.
func BuildPrompt(query EnrichedQuery, window ContextWindow) Prompt {
	system := systemPromptEN
	if query.Language == "ar" {
		system = systemPromptAR
	}
	return Prompt{
		System: system,
		User:   buildUserPrompt(query, buildContextBlock(window.Chunks)),
	}
}

func buildContextBlock(chunks []models.RankedChunk) string {
	if len(chunks) == 0 {
		return "No relevant context available."
	}
	blocks := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		blocks = append(blocks, fmt.Sprintf(`--- CHUNK [%s] ---
Document: %s
Language: %s

%s
--- END CHUNK ---`, chunk.ChunkID, chunk.DocumentID, chunk.Language, chunk.Text))
	}
	return strings.Join(blocks, "\n\n")
}

func buildUserPrompt(query EnrichedQuery, contextBlock string) string {
	instruction, ok := intentInstructions[query.Intent]
	if !ok {
		instruction = intentInstructions[models.IntentFactual]
	}

	var conversationSection string
	if len(query.ConversationTurns) > 0 {
		turns := query.ConversationTurns
		if len(turns) > promptConversationTurns {
			turns = turns[len(turns)-promptConversationTurns:]
		}
		var b strings.Builder
		b.WriteString("\n## Previous Questions\n")
		for _, turn := range turns {
			fmt.Fprintf(&b, "- %s\n", turn)
		}
		b.WriteString("\n")
		conversationSection = b.String()
	}

	return fmt.Sprintf(`## CONTEXT (Use ONLY this information)

%s
%s
## INSTRUCTIONS
%s
Cite every claim using [chunk_id] format.

## USER QUESTION
%s

## YOUR RESPONSE (with citations)`, contextBlock, conversationSection, instruction, query.Normalized)
}
