package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taxmitra/taxmitra/internal/ai"
)

const strategyPromptFormat = `As a CA specializing in tax planning, analyze this client's financial situation and provide comprehensive tax-saving strategies:

Client Profile:
%s

Income Sources:
%s

Family Members:
%s

Current Expenses & Investments:
%s

Your task:
1. Calculate current tax liability
2. Identify ALL applicable tax-saving opportunities under the Income Tax Act
3. Analyze family structure for income splitting opportunities (gifts, transfer of income-generating assets)
4. Suggest business expense optimization if applicable
5. Recommend specific investment amounts for Section 80C, 80D, etc.
6. Identify any missed deductions or exemptions
7. Provide a step-by-step implementation plan
8. Estimate tax savings for each strategy

Format your response as JSON:
{
  "currentTaxLiability": number,
  "totalIncome": number,
  "taxableIncome": number,
  "strategies": [
    {
      "strategyName": "string",
      "description": "string",
      "legalBasis": "Section X of Income Tax Act",
      "estimatedSaving": number,
      "implementationSteps": ["step1", "step2"],
      "priority": "high|medium|low"
    }
  ],
  "optimizedTaxLiability": number,
  "totalPotentialSavings": number,
  "detailedAnalysis": "string"
}`

// Strategist produces a full plan from the accumulated fact snapshot.
type Strategist struct {
	provider ai.Provider
}

func NewStrategist(p ai.Provider) *Strategist {
	return &Strategist{provider: p}
}

func (s *Strategist) Strategize(ctx context.Context, profile, incomes, family, expenses any) (StrategyResult, error) {
	prompt := fmt.Sprintf(strategyPromptFormat,
		asJSON(profile), asJSON(incomes), asJSON(family), asJSON(expenses))

	text, err := s.provider.Chat(ctx, []ai.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return StrategyResult{}, err
	}
	return decodeStrategyResult(text), nil
}

func asJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "null"
	}
	return string(b)
}
