package conversation

import "time"

type Session struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID     string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	UserID        uint64    `gorm:"index;not null" json:"-"`
	Stage         Stage     `gorm:"type:varchar(32);not null" json:"stage"`
	ExtractedInfo JSONMap   `gorm:"type:json" json:"extracted_info"`
	AINotes       JSONMap   `gorm:"type:json" json:"ai_notes"`
	Active        bool      `gorm:"index;not null" json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "conversation_sessions" }

// Message rows are immutable once appended; id order is chronological
// order and is the conversation's ground truth.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:varchar(26);not null;index:idx_conv_msg_user_session,priority:2" json:"session_id"`
	UserID    uint64    `gorm:"not null;index:idx_conv_msg_user_session,priority:1" json:"-"`
	Role      string    `gorm:"type:varchar(16);index;not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string { return "conversation_messages" }
