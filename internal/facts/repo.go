package facts

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) InsertIncomeSource(ctx context.Context, s *IncomeSource) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) InsertFamilyMember(ctx context.Context, m *FamilyMember) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) InsertExpense(ctx context.Context, e *Expense) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// ListIncomeSources returns every income row the user ever asserted, in
// insertion order, duplicates included.
func (r *Repo) ListIncomeSources(ctx context.Context, userID uint64) ([]IncomeSource, error) {
	var rows []IncomeSource
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) ListFamilyMembers(ctx context.Context, userID uint64) ([]FamilyMember, error) {
	var rows []FamilyMember
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) ListExpenses(ctx context.Context, userID uint64) ([]Expense, error) {
	var rows []Expense
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetProfile returns nil (not an error) when the user has no profile row.
func (r *Repo) GetProfile(ctx context.Context, userID uint64) (*UserProfile, error) {
	var p UserProfile
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repo) UpsertProfile(ctx context.Context, p *UserProfile) error {
	var existing UserProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", p.UserID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(p).Error
	}
	if err != nil {
		return err
	}
	p.ID = existing.ID
	return r.db.WithContext(ctx).Save(p).Error
}
