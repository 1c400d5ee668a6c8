package facts

import "time"

// Fact rows are append-only. A later mention of the same income source or
// expense inserts a new row; duplicates are resolved at analysis time, not
// at write time.

type UserProfile struct {
	ID                 uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID             uint64    `gorm:"uniqueIndex;not null" json:"-"`
	FullName           string    `gorm:"type:varchar(255);not null" json:"full_name"`
	Email              string    `gorm:"type:varchar(255);not null" json:"email"`
	Phone              string    `gorm:"type:varchar(32)" json:"phone,omitempty"`
	PANNumber          string    `gorm:"type:varchar(16)" json:"pan_number,omitempty"`
	OccupationType     string    `gorm:"type:varchar(64)" json:"occupation_type,omitempty"`
	AnnualIncomeRange  string    `gorm:"type:varchar(64)" json:"annual_income_range,omitempty"`
	TaxResidencyStatus string    `gorm:"type:varchar(32)" json:"tax_residency_status,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (UserProfile) TableName() string { return "user_profiles" }

type IncomeSource struct {
	ID                 uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID             uint64    `gorm:"index;not null" json:"-"`
	SourceType         string    `gorm:"type:varchar(32);not null" json:"source_type"`
	SourceName         string    `gorm:"type:varchar(255);not null" json:"source_name"`
	AnnualAmount       float64   `gorm:"not null" json:"annual_amount"`
	EmployerName       string    `gorm:"type:varchar(255)" json:"employer_name,omitempty"`
	BusinessType       string    `gorm:"type:varchar(64)" json:"business_type,omitempty"`
	TaxAlreadyDeducted float64   `json:"tax_already_deducted"`
	CreatedAt          time.Time `json:"created_at"`
}

func (IncomeSource) TableName() string { return "income_sources" }

type FamilyMember struct {
	ID                uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            uint64    `gorm:"index;not null" json:"-"`
	Name              string    `gorm:"type:varchar(255);not null" json:"name"`
	Relationship      string    `gorm:"type:varchar(32);not null" json:"relationship"`
	Occupation        string    `gorm:"type:varchar(128)" json:"occupation,omitempty"`
	AnnualIncome      float64   `json:"annual_income"`
	HasBasicExemption bool      `gorm:"column:has_basic_exemption_available" json:"has_basic_exemption_available"`
	CreatedAt         time.Time `json:"created_at"`
}

func (FamilyMember) TableName() string { return "family_members" }

type Expense struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint64    `gorm:"index;not null" json:"-"`
	Category    string    `gorm:"type:varchar(64);not null" json:"category"`
	Subcategory string    `gorm:"type:varchar(64)" json:"subcategory,omitempty"`
	Amount      float64   `gorm:"not null" json:"amount"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Expense) TableName() string { return "expenses_and_investments" }
