package analysis

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taxmitra/taxmitra/internal/facts"
	"github.com/taxmitra/taxmitra/internal/oracle"
)

// Strategist is the planning model contract the engine depends on.
type Strategist interface {
	Strategize(ctx context.Context, profile, incomes, family, expenses any) (oracle.StrategyResult, error)
}

type Service struct {
	repo       *Repo
	facts      *facts.Repo
	strategist Strategist
}

func NewService(repo *Repo, factRepo *facts.Repo, st Strategist) *Service {
	return &Service{repo: repo, facts: factRepo, strategist: st}
}

// Generate assembles the user's complete fact snapshot, asks the
// strategist for a plan, persists it and returns it.
//
// Facts are user-global, not session-scoped: every row the user ever
// asserted goes into the snapshot. The four reads are independent and run
// concurrently. Persistence failures are logged but never withhold the
// just-computed analysis from the caller.
func (s *Service) Generate(ctx context.Context, userID uint64, sessionID string) (*TaxAnalysis, error) {
	var (
		profile  *facts.UserProfile
		incomes  []facts.IncomeSource
		family   []facts.FamilyMember
		expenses []facts.Expense
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = s.facts.GetProfile(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		incomes, err = s.facts.ListIncomeSources(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		family, err = s.facts.ListFamilyMembers(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.facts.ListExpenses(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res, err := s.strategist.Strategize(ctx, profile, incomes, family, expenses)
	if err != nil {
		return nil, err
	}

	a := &TaxAnalysis{
		UserID:                userID,
		SessionID:             sessionID,
		FinancialYear:         FinancialYear(time.Now()),
		TotalIncome:           res.TotalIncome,
		TaxableIncome:         res.TaxableIncome,
		CurrentTaxLiability:   res.CurrentTaxLiability,
		OptimizedTaxLiability: res.OptimizedTaxLiability,
		PotentialSavings:      res.TotalPotentialSavings,
		Strategies:            StrategyList(res.Strategies),
		DetailedAnalysis:      res.DetailedAnalysis,
	}

	if err := s.repo.InsertAnalysis(ctx, a); err != nil {
		log.Printf("[analysis] analysis write failed user=%d session=%s err=%v", userID, sessionID, err)
		return a, nil
	}

	for _, st := range res.Strategies {
		rec := &Recommendation{
			AnalysisID:         a.ID,
			UserID:             userID,
			RecommendationText: st.Description,
			LegalReferences:    st.LegalBasis,
			EstimatedSaving:    st.EstimatedSaving,
			Priority:           PriorityRank(st.Priority),
		}
		if err := s.repo.InsertRecommendation(ctx, rec); err != nil {
			log.Printf("[analysis] recommendation write failed user=%d analysis=%d err=%v", userID, a.ID, err)
		}
	}

	return a, nil
}

func (s *Service) Latest(ctx context.Context, userID uint64) (*TaxAnalysis, error) {
	return s.repo.GetLatestAnalysisByUser(ctx, userID)
}

// PriorityRank is total: high=1, medium=2, everything else (including low
// and unknown labels) ranks 3.
func PriorityRank(priority string) int {
	switch priority {
	case "high":
		return 1
	case "medium":
		return 2
	default:
		return 3
	}
}

// FinancialYear labels the analysis with a plain calendar-year span. No
// fiscal-calendar awareness.
func FinancialYear(t time.Time) string {
	y := t.Year()
	return fmt.Sprintf("%d-%d", y, y+1)
}
