package oracle

import (
	"encoding/json"
	"strings"
)

// jsonBlock returns the widest brace-delimited block in text. Models often
// wrap their JSON in prose or markdown fences.
func jsonBlock(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// decodeChatResult recovers a structured reply from raw model text. On
// failure the whole text becomes the assistant message and the stage is
// left empty so the caller keeps its previous stage.
func decodeChatResult(text string) ChatResult {
	if block, ok := jsonBlock(text); ok {
		var res ChatResult
		if err := json.Unmarshal([]byte(block), &res); err == nil && res.Message != "" {
			if res.ExtractedInfo == nil {
				res.ExtractedInfo = map[string]any{}
			}
			return res
		}
	}
	return ChatResult{
		Message:       text,
		ExtractedInfo: map[string]any{},
	}
}

// decodeStrategyResult recovers a strategy report. An unrecoverable reply
// degrades to zeroed figures with the raw text kept for inspection.
func decodeStrategyResult(text string) StrategyResult {
	if block, ok := jsonBlock(text); ok {
		var res StrategyResult
		if err := json.Unmarshal([]byte(block), &res); err == nil {
			if res.Strategies == nil {
				res.Strategies = []Strategy{}
			}
			return res
		}
	}
	return StrategyResult{
		Strategies:       []Strategy{},
		DetailedAnalysis: text,
	}
}
