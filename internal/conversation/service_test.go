package conversation

import (
	"context"
	"errors"
	"reflect"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/taxmitra/taxmitra/internal/facts"
	"github.com/taxmitra/taxmitra/internal/oracle"
)

type fakeExtractor struct {
	res         oracle.ChatResult
	err         error
	lastHistory []oracle.Message
	lastCtx     oracle.Context
	calls       int
}

func (f *fakeExtractor) Chat(ctx context.Context, history []oracle.Message, oc oracle.Context) (oracle.ChatResult, error) {
	_ = ctx
	f.calls++
	// copy to avoid mutations
	f.lastHistory = append([]oracle.Message(nil), history...)
	f.lastCtx = oc
	if f.err != nil {
		return oracle.ChatResult{}, f.err
	}
	return f.res, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&Session{}, &Message{},
		&facts.IncomeSource{}, &facts.FamilyMember{}, &facts.Expense{}, &facts.UserProfile{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, ex Extractor) (*Service, *Repo, *facts.Repo) {
	t.Helper()
	repo := NewRepo(db)
	factRepo := facts.NewRepo(db)
	return NewService(repo, factRepo, ex), repo, factRepo
}

func TestSendMessage_AppendsUserAndAssistantPerTurn(t *testing.T) {
	db := openTestDB(t)
	ex := &fakeExtractor{res: oracle.ChatResult{
		Message: "Got it. What about rental income?",
		Stage:   "income_gathering",
	}}
	svc, repo, _ := newTestService(t, db, ex)

	sess, err := svc.CreateSession(context.Background(), 101)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	const turns = 3
	for i := 0; i < turns; i++ {
		if _, err := svc.SendMessage(context.Background(), 101, sess.SessionID, "I earn a salary"); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}

	msgs, err := repo.ListMessagesAsc(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2*turns {
		t.Fatalf("expected %d messages after %d turns, got %d", 2*turns, turns, len(msgs))
	}
	for i, m := range msgs {
		wantRole := "user"
		if i%2 == 1 {
			wantRole = "assistant"
		}
		if m.Role != wantRole {
			t.Fatalf("msg %d: expected role %q, got %q", i, wantRole, m.Role)
		}
		if i > 0 && msgs[i-1].ID >= m.ID {
			t.Fatalf("msg %d: ids not strictly increasing", i)
		}
	}

	got, err := repo.GetSessionBySessionID(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if got.Stage != StageIncomeGathering {
		t.Fatalf("expected stage %q, got %q", StageIncomeGathering, got.Stage)
	}
}

func TestSendMessage_OracleReceivesFullHistoryAndContext(t *testing.T) {
	db := openTestDB(t)
	ex := &fakeExtractor{res: oracle.ChatResult{Message: "ok"}}
	svc, _, _ := newTestService(t, db, ex)

	sess, err := svc.CreateSession(context.Background(), 102)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, err := svc.SendMessage(context.Background(), 102, sess.SessionID, "first"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), 102, sess.SessionID, "second"); err != nil {
		t.Fatalf("turn 2: %v", err)
	}

	// second turn: user+assistant from turn 1, plus the new user message
	if len(ex.lastHistory) != 3 {
		t.Fatalf("expected oracle to see 3 messages, got %d", len(ex.lastHistory))
	}
	last := ex.lastHistory[len(ex.lastHistory)-1]
	if last.Role != "user" || last.Content != "second" {
		t.Fatalf("expected newest history entry to be the new user msg, got role=%q content=%q", last.Role, last.Content)
	}
	if ex.lastCtx.UserID != 102 {
		t.Fatalf("expected context user 102, got %d", ex.lastCtx.UserID)
	}
}

func TestSendMessage_MergeIsIdempotentPerKey(t *testing.T) {
	db := openTestDB(t)
	delta := map[string]any{"salary": 1200000.0, "employer": "Acme Pvt Ltd"}
	ex := &fakeExtractor{res: oracle.ChatResult{Message: "noted", ExtractedInfo: delta}}
	svc, repo, _ := newTestService(t, db, ex)

	sess, err := svc.CreateSession(context.Background(), 103)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, err := svc.SendMessage(context.Background(), 103, sess.SessionID, "about my salary"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	once, err := repo.GetSessionBySessionID(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if _, err := svc.SendMessage(context.Background(), 103, sess.SessionID, "same again"); err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	twice, err := repo.GetSessionBySessionID(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if !reflect.DeepEqual(once.ExtractedInfo, twice.ExtractedInfo) {
		t.Fatalf("same delta twice changed state: %v vs %v", once.ExtractedInfo, twice.ExtractedInfo)
	}
}

func TestSendMessage_EmptyDeltaValueDoesNotClobber(t *testing.T) {
	db := openTestDB(t)
	ex := &fakeExtractor{res: oracle.ChatResult{
		Message:       "noted",
		ExtractedInfo: map[string]any{"employer": "Acme Pvt Ltd"},
	}}
	svc, repo, _ := newTestService(t, db, ex)

	sess, err := svc.CreateSession(context.Background(), 104)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), 104, sess.SessionID, "I work at Acme"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}

	ex.res.ExtractedInfo = map[string]any{"employer": "", "city": nil}
	if _, err := svc.SendMessage(context.Background(), 104, sess.SessionID, "hmm"); err != nil {
		t.Fatalf("turn 2: %v", err)
	}

	got, err := repo.GetSessionBySessionID(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.ExtractedInfo["employer"] != "Acme Pvt Ltd" {
		t.Fatalf("empty value clobbered employer: %v", got.ExtractedInfo["employer"])
	}
	if _, present := got.ExtractedInfo["city"]; present {
		t.Fatalf("nil value should not be merged")
	}
}

func TestSendMessage_KeepsStageOnUnknownLabel(t *testing.T) {
	db := openTestDB(t)
	ex := &fakeExtractor{res: oracle.ChatResult{Message: "ok", Stage: "income_gathering"}}
	svc, repo, _ := newTestService(t, db, ex)

	sess, err := svc.CreateSession(context.Background(), 105)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), 105, sess.SessionID, "salary stuff"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}

	ex.res.Stage = "feeling_chatty" // not in the vocabulary
	if _, err := svc.SendMessage(context.Background(), 105, sess.SessionID, "more"); err != nil {
		t.Fatalf("turn 2: %v", err)
	}

	got, err := repo.GetSessionBySessionID(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Stage != StageIncomeGathering {
		t.Fatalf("unknown stage label should self-loop, got %q", got.Stage)
	}
}

func TestSendMessage_OracleFailureReturnsFallback(t *testing.T) {
	db := openTestDB(t)
	ex := &fakeExtractor{err: errors.New("gemini: provider not configured")}
	svc, repo, _ := newTestService(t, db, ex)

	sess, err := svc.CreateSession(context.Background(), 106)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	reply, err := svc.SendMessage(context.Background(), 106, sess.SessionID, "hello?")
	if err != nil {
		t.Fatalf("oracle failure must not fail the turn: %v", err)
	}
	if reply.Content != fallbackReply {
		t.Fatalf("expected fallback reply, got %q", reply.Content)
	}

	msgs, err := repo.ListMessagesAsc(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected user msg + fallback to be persisted, got %d messages", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "hello?" {
		t.Fatalf("user message lost on oracle failure: %+v", msgs[0])
	}
}

func TestSendMessage_PersistsIncomeFactRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ex := &fakeExtractor{res: oracle.ChatResult{
		Message: "noted your salary",
		ExtractedInfo: map[string]any{
			"incomeSource": map[string]any{
				"type":         "salary",
				"name":         "Day job",
				"amount":       "12,50,000",
				"employerName": "Acme Pvt Ltd",
				"taxDeducted":  85000.0,
			},
		},
	}}
	svc, _, factRepo := newTestService(t, db, ex)

	sess, err := svc.CreateSession(context.Background(), 107)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), 107, sess.SessionID, "I earn 12.5 lakh"); err != nil {
		t.Fatalf("send: %v", err)
	}

	rows, err := factRepo.ListIncomeSources(context.Background(), 107)
	if err != nil {
		t.Fatalf("list incomes: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 income row, got %d", len(rows))
	}
	got := rows[0]
	if got.SourceType != "salary" || got.SourceName != "Day job" || got.EmployerName != "Acme Pvt Ltd" {
		t.Fatalf("income fields lost in round trip: %+v", got)
	}
	if got.AnnualAmount != 1250000 {
		t.Fatalf("expected amount 1250000, got %v", got.AnnualAmount)
	}
	if got.TaxAlreadyDeducted != 85000 {
		t.Fatalf("expected tds 85000, got %v", got.TaxAlreadyDeducted)
	}
}

func TestSendMessage_UnparsableAmountCoercesToZero(t *testing.T) {
	db := openTestDB(t)
	ex := &fakeExtractor{res: oracle.ChatResult{
		Message: "ok",
		ExtractedInfo: map[string]any{
			"expense": map[string]any{
				"category": "insurance",
				"amount":   "around fifty thousand",
			},
		},
	}}
	svc, _, factRepo := newTestService(t, db, ex)

	sess, err := svc.CreateSession(context.Background(), 108)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), 108, sess.SessionID, "I pay some insurance"); err != nil {
		t.Fatalf("send: %v", err)
	}

	rows, err := factRepo.ListExpenses(context.Background(), 108)
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected the turn to survive a bad amount, got %d rows", len(rows))
	}
	if rows[0].Amount != 0 {
		t.Fatalf("unparsable amount should coerce to 0, got %v", rows[0].Amount)
	}
}

func TestSendMessage_SuggestedStrategiesLastWriteWins(t *testing.T) {
	db := openTestDB(t)
	ex := &fakeExtractor{res: oracle.ChatResult{
		Message:             "ideas",
		SuggestedStrategies: []string{"80C", "HRA"},
	}}
	svc, repo, _ := newTestService(t, db, ex)

	sess, err := svc.CreateSession(context.Background(), 109)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), 109, sess.SessionID, "one"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}

	ex.res.SuggestedStrategies = []string{"NPS"}
	if _, err := svc.SendMessage(context.Background(), 109, sess.SessionID, "two"); err != nil {
		t.Fatalf("turn 2: %v", err)
	}

	got, err := repo.GetSessionBySessionID(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	raw, okk := got.AINotes["suggestedStrategies"].([]any)
	if !okk {
		t.Fatalf("suggestedStrategies missing or wrong shape: %v", got.AINotes["suggestedStrategies"])
	}
	if len(raw) != 1 || raw[0] != "NPS" {
		t.Fatalf("expected most recent suggestions to win, got %v", raw)
	}
}

func TestCreateSession_SupersedesPriorActive(t *testing.T) {
	db := openTestDB(t)
	ex := &fakeExtractor{res: oracle.ChatResult{Message: "ok"}}
	svc, repo, _ := newTestService(t, db, ex)

	first, err := svc.CreateSession(context.Background(), 110)
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := svc.CreateSession(context.Background(), 110)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	active, _, err := svc.GetActiveSession(context.Background(), 110)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active == nil || active.SessionID != second.SessionID {
		t.Fatalf("expected second session active, got %+v", active)
	}

	old, err := repo.GetSessionBySessionID(context.Background(), first.SessionID)
	if err != nil {
		t.Fatalf("reload first: %v", err)
	}
	if old.Active {
		t.Fatalf("prior session should be deactivated")
	}
	if second.Stage != StageInitial {
		t.Fatalf("new session should start in %q, got %q", StageInitial, second.Stage)
	}
}

func TestGetActiveSession_NoneOnFirstContact(t *testing.T) {
	db := openTestDB(t)
	ex := &fakeExtractor{res: oracle.ChatResult{Message: "ok"}}
	svc, _, _ := newTestService(t, db, ex)

	sess, msgs, err := svc.GetActiveSession(context.Background(), 111)
	if err != nil {
		t.Fatalf("first contact must not error: %v", err)
	}
	if sess != nil || msgs != nil {
		t.Fatalf("expected no session on first contact, got %+v", sess)
	}
}

func TestSendMessage_SupersededSessionKeepsOwnStage(t *testing.T) {
	db := openTestDB(t)
	ex := &fakeExtractor{res: oracle.ChatResult{
		Message: "You're all set, I can generate your analysis now.",
		Stage:   "analysis",
	}}
	svc, _, _ := newTestService(t, db, ex)

	old, err := svc.CreateSession(context.Background(), 113)
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := svc.CreateSession(context.Background(), 113); err != nil {
		t.Fatalf("create second: %v", err)
	}

	// posting to the superseded session still advances that session
	if _, err := svc.SendMessage(context.Background(), 113, old.SessionID, "done"); err != nil {
		t.Fatalf("send: %v", err)
	}

	got, err := svc.GetSession(context.Background(), 113, old.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Stage != StageAnalysis {
		t.Fatalf("posted session must carry the turn's stage, got %q", got.Stage)
	}

	active, _, err := svc.GetActiveSession(context.Background(), 113)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active == nil || active.Stage != StageInitial {
		t.Fatalf("the active session's stage must be untouched, got %+v", active)
	}

	if _, err := svc.GetSession(context.Background(), 999, old.SessionID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("foreign owner must look like not-found, got %v", err)
	}
}

func TestSendMessage_WrongOwnerLooksLikeNotFound(t *testing.T) {
	db := openTestDB(t)
	ex := &fakeExtractor{res: oracle.ChatResult{Message: "ok"}}
	svc, _, _ := newTestService(t, db, ex)

	sess, err := svc.CreateSession(context.Background(), 112)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	_, err = svc.SendMessage(context.Background(), 999, sess.SessionID, "hi")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found for foreign session, got %v", err)
	}
	if ex.calls != 0 {
		t.Fatalf("oracle must not be called for a foreign session")
	}
}
