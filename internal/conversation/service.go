package conversation

import (
	"context"
	"log"

	"gorm.io/gorm"

	"github.com/taxmitra/taxmitra/internal/common"
	"github.com/taxmitra/taxmitra/internal/facts"
	"github.com/taxmitra/taxmitra/internal/oracle"
)

// WelcomeMessage opens every new interview.
const WelcomeMessage = "Namaste! I'm your AI tax advisor. I'll help you find every legal way to reduce your tax liability. Let's start simple - what are your sources of income this year?"

const fallbackReply = "I'm sorry, I'm having trouble reaching my reasoning service right now. Your message has been saved, so nothing is lost - please try again in a moment."

// Extractor is the conversational model contract the engine depends on.
type Extractor interface {
	Chat(ctx context.Context, history []oracle.Message, oc oracle.Context) (oracle.ChatResult, error)
}

type Service struct {
	repo  *Repo
	facts *facts.Repo
	ex    Extractor
}

func NewService(repo *Repo, factRepo *facts.Repo, ex Extractor) *Service {
	return &Service{repo: repo, facts: factRepo, ex: ex}
}

// CreateSession starts a fresh interview for the user and supersedes any
// prior active session.
func (s *Service) CreateSession(ctx context.Context, userID uint64) (*Session, error) {
	sid, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	session := &Session{
		SessionID:     sid,
		UserID:        userID,
		Stage:         StageInitial,
		ExtractedInfo: JSONMap{},
		AINotes:       JSONMap{},
		Active:        true,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetActiveSession loads the user's current session with its full ordered
// message log. Both return values are nil on first contact.
func (s *Service) GetActiveSession(ctx context.Context, userID uint64) (*Session, []Message, error) {
	session, err := s.repo.GetActiveSessionByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, nil
	}
	msgs, err := s.repo.ListMessagesAsc(ctx, session.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, msgs, nil
}

// GetSession loads one session by its public id, scoped to its owner.
func (s *Service) GetSession(ctx context.Context, userID uint64, sessionID string) (*Session, error) {
	session, err := s.repo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return session, nil
}

// SendMessage runs one interview turn:
//
//  1. durably append the user's message
//  2. reload the full log
//  3. ask the extractor for the next reply + fact delta
//  4. append the assistant message
//  5. merge extracted info, advance the stage, persist well-formed facts
//
// An extractor failure does not fail the turn: the user's message is
// already committed and the caller gets a fallback assistant message.
// State-merge and fact-write failures are logged, not fatal.
func (s *Service) SendMessage(ctx context.Context, userID uint64, sessionID, content string) (*Message, error) {
	session, err := s.repo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}

	userMsg := &Message{
		SessionID: sessionID,
		UserID:    userID,
		Role:      "user",
		Content:   content,
	}
	if err := s.repo.InsertMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	// Reload after the append so a read raced by another writer cannot
	// drop messages from the model's view.
	history, err := s.repo.ListMessagesAsc(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	oracleHistory := make([]oracle.Message, 0, len(history))
	for _, m := range history {
		oracleHistory = append(oracleHistory, oracle.Message{Role: m.Role, Content: m.Content})
	}

	res, err := s.ex.Chat(ctx, oracleHistory, oracle.Context{
		ExtractedInfo: session.ExtractedInfo,
		Stage:         string(session.Stage),
		UserID:        userID,
	})
	if err != nil {
		log.Printf("[conversation] oracle chat failed session=%s err=%v", sessionID, err)
		fallback := &Message{
			SessionID: sessionID,
			UserID:    userID,
			Role:      "assistant",
			Content:   fallbackReply,
		}
		if insErr := s.repo.InsertMessage(ctx, fallback); insErr != nil {
			log.Printf("[conversation] fallback append failed session=%s err=%v", sessionID, insErr)
		}
		return fallback, nil
	}

	assistant := &Message{
		SessionID: sessionID,
		UserID:    userID,
		Role:      "assistant",
		Content:   res.Message,
	}
	if err := s.repo.InsertMessage(ctx, assistant); err != nil {
		return nil, err
	}

	merged := mergeInfo(session.ExtractedInfo, res.ExtractedInfo)
	stage := ParseStage(res.Stage, session.Stage)

	notes := make(JSONMap, len(session.AINotes)+1)
	for k, v := range session.AINotes {
		notes[k] = v
	}
	suggestions := res.SuggestedStrategies
	if suggestions == nil {
		suggestions = []string{}
	}
	notes["suggestedStrategies"] = suggestions

	if err := s.repo.UpdateSessionState(ctx, sessionID, stage, merged, notes); err != nil {
		log.Printf("[conversation] state update failed session=%s err=%v", sessionID, err)
	}

	s.persistFacts(ctx, userID, res.ExtractedInfo)

	return assistant, nil
}

func (s *Service) ListMessages(ctx context.Context, userID uint64, sessionID string, limit int, beforeID uint64) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListMessages(ctx, userID, sessionID, limit, beforeID)
}

func (s *Service) DeactivateSession(ctx context.Context, sessionID string) error {
	return s.repo.DeactivateSession(ctx, sessionID)
}

// mergeInfo is last-write-wins per key; empty delta values never clobber
// known state.
func mergeInfo(base JSONMap, delta map[string]any) JSONMap {
	out := make(JSONMap, len(base)+len(delta))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range delta {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// persistFacts writes any well-formed income/family/expense shape from the
// turn's delta. Rows are append-only; failures are logged and swallowed so
// an under-persisted fact store never breaks the dialogue.
func (s *Service) persistFacts(ctx context.Context, userID uint64, delta map[string]any) {
	if m, ok := delta["incomeSource"].(map[string]any); ok {
		row := &facts.IncomeSource{
			UserID:             userID,
			SourceType:         strOr(m, "type", "other"),
			SourceName:         strOr(m, "name", "Unnamed"),
			AnnualAmount:       facts.Amount(m["amount"]),
			EmployerName:       str(m, "employerName"),
			BusinessType:       str(m, "businessType"),
			TaxAlreadyDeducted: facts.Amount(m["taxDeducted"]),
		}
		if err := s.facts.InsertIncomeSource(ctx, row); err != nil {
			log.Printf("[conversation] income fact write failed user=%d err=%v", userID, err)
		}
	}

	if m, ok := delta["familyMember"].(map[string]any); ok {
		row := &facts.FamilyMember{
			UserID:            userID,
			Name:              strOr(m, "name", "Unknown"),
			Relationship:      strOr(m, "relationship", "other"),
			Occupation:        str(m, "occupation"),
			AnnualIncome:      facts.Amount(m["income"]),
			HasBasicExemption: m["hasBasicExemption"] != false,
		}
		if err := s.facts.InsertFamilyMember(ctx, row); err != nil {
			log.Printf("[conversation] family fact write failed user=%d err=%v", userID, err)
		}
	}

	if m, ok := delta["expense"].(map[string]any); ok {
		row := &facts.Expense{
			UserID:      userID,
			Category:    strOr(m, "category", "other"),
			Subcategory: str(m, "subcategory"),
			Amount:      facts.Amount(m["amount"]),
			Description: str(m, "description"),
		}
		if err := s.facts.InsertExpense(ctx, row); err != nil {
			log.Printf("[conversation] expense fact write failed user=%d err=%v", userID, err)
		}
	}
}

func str(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func strOr(m map[string]any, key, def string) string {
	if s := str(m, key); s != "" {
		return s
	}
	return def
}
