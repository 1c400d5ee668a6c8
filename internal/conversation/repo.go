package conversation

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

// CreateSession inserts s and deactivates any other active session of the
// same user in one transaction, so at most one session is active per user.
func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Session{}).
			Where("user_id = ? AND active = ?", s.UserID, true).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Create(s).Error
	})
}

func (r *Repo) GetSessionBySessionID(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// GetActiveSessionByUser returns nil (not an error) when the user has no
// active session; first contact is not a failure.
func (r *Repo) GetActiveSessionByUser(ctx context.Context, userID uint64) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("id DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) DeactivateSession(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ?", sessionID).
		Update("active", false).Error
}

// UpdateSessionState replaces the merged interview state after a turn.
func (r *Repo) UpdateSessionState(ctx context.Context, sessionID string, stage Stage, extracted, notes JSONMap) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"stage":          stage,
			"extracted_info": extracted,
			"ai_notes":       notes,
		}).Error
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessagesAsc returns the session's full log, oldest first.
func (r *Repo) ListMessagesAsc(ctx context.Context, sessionID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListMessages returns messages in DESC id order (newest -> oldest) for
// paginated history views.
func (r *Repo) ListMessages(ctx context.Context, userID uint64, sessionID string, limit int, beforeID uint64) ([]Message, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("id DESC").
		Limit(limit)

	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}
