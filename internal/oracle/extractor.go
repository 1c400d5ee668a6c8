package oracle

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/taxmitra/taxmitra/internal/ai"
)

const chatSystemPrompt = `You are an AI Chartered Accountant specialized in Indian Income Tax Law. Your role is to:

1. Gather financial information naturally: ask questions in a conversational, friendly manner. Avoid tax jargon unless necessary.

2. Be proactive: based on what the user tells you, identify opportunities and ask targeted follow-up questions. If the user mentions a non-working spouse, ask about transferring income-generating assets. If the user has a business, ask about expenses and depreciable assets. If family members come up, explore their income levels and exemption utilization.

3. Extract information systematically: income sources (salary, business, rental, capital gains, interest), family structure (spouse, children, parents, their incomes), current investments and expenses, business details, assets, financial goals.

4. Think like a CA: find LEGAL tax-saving opportunities - income splitting through gifts (Section 56 exemption), family members' basic exemption limits, business expense optimization, depreciation, Section 80C/80D/80G deductions, HRA, LTA, capital gains exemptions, NPS/PPF/ELSS, home loan interest.

5. Ask one category at a time. Start with income, then family, then expenses.

6. Be specific: if answers are vague, ask for numbers.

7. Format your response as JSON with these fields:
{
  "message": "Your conversational response to the user",
  "nextQuestion": "The next question to ask (optional)",
  "extractedInfo": {"key": "value"} of any financial information mentioned,
  "suggestedStrategies": ["strategy1", "strategy2"] if you identify opportunities,
  "conversationStage": "income_gathering|family_discovery|expense_collection|investment_planning|analysis"
}

Remember: you are helping the user legally minimize tax liability under the Income Tax Act. Be thorough, proactive and intelligent.`

// Extractor drives the interview: one prompt per turn containing the
// persona, the session context and the full dialogue so far.
type Extractor struct {
	provider ai.Provider
}

func NewExtractor(p ai.Provider) *Extractor {
	return &Extractor{provider: p}
}

func (e *Extractor) Chat(ctx context.Context, history []Message, oc Context) (ChatResult, error) {
	text, err := e.provider.Chat(ctx, []ai.Message{
		{Role: "user", Content: buildChatPrompt(history, oc)},
	})
	if err != nil {
		return ChatResult{}, err
	}
	return decodeChatResult(text), nil
}

func buildChatPrompt(history []Message, oc Context) string {
	var sb strings.Builder
	sb.WriteString(chatSystemPrompt)

	if oc.Stage != "" || len(oc.ExtractedInfo) > 0 {
		sb.WriteString("\n\nCurrent Context:\n")
		if b, err := json.MarshalIndent(oc, "", "  "); err == nil {
			sb.Write(b)
		}
	}

	sb.WriteString("\n\n")
	for i, m := range history {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		speaker := "Assistant"
		if m.Role == "user" {
			speaker = "User"
		}
		sb.WriteString(speaker)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}
	sb.WriteString("\n\nAssistant:")
	return sb.String()
}
