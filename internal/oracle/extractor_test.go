package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxmitra/taxmitra/internal/ai"
)

type scriptedProvider struct {
	reply      string
	err        error
	lastPrompt string
}

func (p *scriptedProvider) Chat(ctx context.Context, msgs []ai.Message) (string, error) {
	_ = ctx
	if len(msgs) > 0 {
		p.lastPrompt = msgs[len(msgs)-1].Content
	}
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func TestExtractorChat_PromptCarriesContextAndHistory(t *testing.T) {
	p := &scriptedProvider{reply: `{"message":"And any rental income?","conversationStage":"income_gathering"}`}
	ex := NewExtractor(p)

	res, err := ex.Chat(context.Background(), []Message{
		{Role: "assistant", Content: "What are your income sources?"},
		{Role: "user", Content: "I earn a salary of 12 lakh"},
	}, Context{
		Stage:         "income_gathering",
		ExtractedInfo: map[string]any{"salary": 1200000},
	})
	require.NoError(t, err)
	assert.Equal(t, "And any rental income?", res.Message)
	assert.Equal(t, "income_gathering", res.Stage)

	assert.Contains(t, p.lastPrompt, "Chartered Accountant")
	assert.Contains(t, p.lastPrompt, "Current Context:")
	assert.Contains(t, p.lastPrompt, `"salary": 1200000`)
	assert.Contains(t, p.lastPrompt, "Assistant: What are your income sources?")
	assert.Contains(t, p.lastPrompt, "User: I earn a salary of 12 lakh")
	assert.True(t, len(p.lastPrompt) > 0 && p.lastPrompt[len(p.lastPrompt)-len("\n\nAssistant:"):] == "\n\nAssistant:",
		"prompt must end with the assistant cue")
}

func TestExtractorChat_FreshSessionOmitsContextBlock(t *testing.T) {
	p := &scriptedProvider{reply: `{"message":"Hello!"}`}
	ex := NewExtractor(p)

	_, err := ex.Chat(context.Background(), []Message{
		{Role: "user", Content: "hi"},
	}, Context{})
	require.NoError(t, err)
	assert.NotContains(t, p.lastPrompt, "Current Context:")
}

func TestExtractorChat_ProviderErrorPropagates(t *testing.T) {
	p := &scriptedProvider{err: errors.New("boom")}
	ex := NewExtractor(p)

	_, err := ex.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, Context{})
	require.Error(t, err)
}

func TestStrategize_PromptCarriesSnapshotAndDecodesLeniently(t *testing.T) {
	p := &scriptedProvider{reply: "Here you go:\n" +
		`{"totalIncome":900000,"strategies":[],"detailedAnalysis":"ok"}`}
	st := NewStrategist(p)

	res, err := st.Strategize(context.Background(),
		map[string]any{"occupation": "engineer"},
		[]map[string]any{{"source_name": "Day job"}},
		nil,
		[]map[string]any{{"category": "insurance"}},
	)
	require.NoError(t, err)
	assert.Equal(t, float64(900000), res.TotalIncome)
	assert.Equal(t, "ok", res.DetailedAnalysis)

	assert.Contains(t, p.lastPrompt, `"occupation": "engineer"`)
	assert.Contains(t, p.lastPrompt, `"source_name": "Day job"`)
	assert.Contains(t, p.lastPrompt, "null", "a missing snapshot section renders as null")
	assert.Contains(t, p.lastPrompt, "Income Tax Act")
}
