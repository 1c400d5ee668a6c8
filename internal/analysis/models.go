package analysis

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taxmitra/taxmitra/internal/oracle"
)

// StrategyList stores the strategist's ranked strategies as a JSON column,
// preserving the model's original ordering.
type StrategyList []oracle.Strategy

func (l StrategyList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StrategyList) Scan(v any) error {
	var b []byte
	switch t := v.(type) {
	case nil:
		*l = StrategyList{}
		return nil
	case []byte:
		b = t
	case string:
		b = []byte(t)
	default:
		return fmt.Errorf("strategylist: cannot scan %T", v)
	}
	if len(b) == 0 {
		*l = StrategyList{}
		return nil
	}
	return json.Unmarshal(b, l)
}

// TaxAnalysis is immutable once created and linked to the session that
// produced it. Currency figures are plain values in the user's local
// currency unit; formatting is a presentation concern.
type TaxAnalysis struct {
	ID                    uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID                uint64       `gorm:"index;not null" json:"-"`
	SessionID             string       `gorm:"type:varchar(26);index;not null" json:"session_id"`
	FinancialYear         string       `gorm:"type:varchar(9);not null" json:"financial_year"`
	TotalIncome           float64      `json:"total_income"`
	TaxableIncome         float64      `json:"taxable_income"`
	CurrentTaxLiability   float64      `json:"current_tax_liability"`
	OptimizedTaxLiability float64      `json:"optimized_tax_liability"`
	PotentialSavings      float64      `json:"potential_savings"`
	Strategies            StrategyList `gorm:"type:json" json:"strategies"`
	DetailedAnalysis      string       `gorm:"type:text" json:"detailed_analysis"`
	CreatedAt             time.Time    `json:"created_at"`
}

func (TaxAnalysis) TableName() string { return "user_tax_analysis" }

// Recommendation is the standalone, rank-annotated projection of one
// strategy, queryable without loading the analysis blob.
type Recommendation struct {
	ID                 uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	AnalysisID         uint64    `gorm:"index;not null" json:"analysis_id"`
	UserID             uint64    `gorm:"index;not null" json:"-"`
	RecommendationText string    `gorm:"type:text;not null" json:"recommendation_text"`
	LegalReferences    string    `gorm:"type:varchar(255)" json:"legal_references"`
	EstimatedSaving    float64   `json:"estimated_saving"`
	Priority           int       `gorm:"index;not null" json:"priority"`
	CreatedAt          time.Time `json:"created_at"`
}

func (Recommendation) TableName() string { return "tax_recommendations" }
