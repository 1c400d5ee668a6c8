package conversation

import "strings"

// Stage labels how far the interview has progressed. The model drives
// stage transitions; the engine only validates against the known
// vocabulary and otherwise keeps the previous stage.
type Stage string

const (
	StageInitial            Stage = "initial"
	StageIncomeGathering    Stage = "income_gathering"
	StageFamilyDiscovery    Stage = "family_discovery"
	StageExpenseCollection  Stage = "expense_collection"
	StageInvestmentPlanning Stage = "investment_planning"
	StageAnalysis           Stage = "analysis"
)

var knownStages = map[Stage]struct{}{
	StageInitial:            {},
	StageIncomeGathering:    {},
	StageFamilyDiscovery:    {},
	StageExpenseCollection:  {},
	StageInvestmentPlanning: {},
	StageAnalysis:           {},
}

// ParseStage maps a model-provided label onto the stage vocabulary,
// falling back to prev on anything unknown or empty.
func ParseStage(raw string, prev Stage) Stage {
	s := Stage(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownStages[s]; ok {
		return s
	}
	return prev
}

// Terminal reports whether the interview has gathered enough to analyze.
func (s Stage) Terminal() bool { return s == StageAnalysis }

// Older model prompts signalled readiness in prose instead of setting the
// terminal stage; keep matching those phrases as a compatibility fallback.
var completionCues = []string{
	"generate analysis",
	"generate your analysis",
	"tax plan",
}

func ReadyForAnalysis(stage Stage, assistantReply string) bool {
	if stage.Terminal() {
		return true
	}
	lower := strings.ToLower(assistantReply)
	for _, cue := range completionCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}
