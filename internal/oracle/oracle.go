// Package oracle holds the two model contracts the advisor relies on: a
// conversational extractor that drives the interview and pulls structured
// facts out of free text, and a strategist that turns accumulated facts
// into a tax-saving plan. Model output is never trusted to be well-formed;
// both contracts decode leniently and degrade instead of failing.
package oracle

// Message is one turn of dialogue history handed to the extractor.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Context is the session state the extractor sees alongside the history.
type Context struct {
	ExtractedInfo map[string]any `json:"extractedInfo,omitempty"`
	Stage         string         `json:"stage,omitempty"`
	UserID        uint64         `json:"userId,omitempty"`
}

// ChatResult is the extractor's reply. Only Message is reliable; every
// other field is best-effort and may be absent.
type ChatResult struct {
	Message             string         `json:"message"`
	NextQuestion        string         `json:"nextQuestion,omitempty"`
	ExtractedInfo       map[string]any `json:"extractedInfo,omitempty"`
	SuggestedStrategies []string       `json:"suggestedStrategies,omitempty"`
	Stage               string         `json:"conversationStage,omitempty"`
}

type Strategy struct {
	StrategyName        string   `json:"strategyName"`
	Description         string   `json:"description"`
	LegalBasis          string   `json:"legalBasis"`
	EstimatedSaving     float64  `json:"estimatedSaving"`
	ImplementationSteps []string `json:"implementationSteps"`
	Priority            string   `json:"priority"`
}

type StrategyResult struct {
	TotalIncome           float64    `json:"totalIncome"`
	TaxableIncome         float64    `json:"taxableIncome"`
	CurrentTaxLiability   float64    `json:"currentTaxLiability"`
	OptimizedTaxLiability float64    `json:"optimizedTaxLiability"`
	TotalPotentialSavings float64    `json:"totalPotentialSavings"`
	Strategies            []Strategy `json:"strategies"`
	DetailedAnalysis      string     `json:"detailedAnalysis"`
}
