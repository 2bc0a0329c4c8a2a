package model

import "time"

type Session struct {
	ID        string     `gorm:"column:id;type:varchar(36);primaryKey"`
	CreatedBy string     `gorm:"column:created_by;type:varchar(128);not null"`
	Kind      string     `gorm:"column:session_type;type:varchar(16);not null;index:idx_secure_ai_sessions_context,priority:1"`
	ContextID string     `gorm:"column:context_id;type:varchar(128);not null;index:idx_secure_ai_sessions_context,priority:2"`
	Title     string     `gorm:"column:title;type:text;not null;default:''"`
	Status    string     `gorm:"column:status;type:varchar(32);not null;index"`
	StartedAt *time.Time `gorm:"column:started_at"`
	EndedAt   *time.Time `gorm:"column:ended_at"`
	CreatedAt time.Time  `gorm:"column:created_at;not null;index"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null"`

	Participants  []Participant  `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
	ConsentEvents []ConsentEvent `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
	Jobs          []Job          `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
	Recording     *Recording     `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
	Transcript    *Transcript    `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
	Report        *Report        `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
}

func (Session) TableName() string {
	return "secure_ai_sessions"
}

type Participant struct {
	SessionID   string     `gorm:"column:session_id;type:varchar(36);primaryKey"`
	ActorKey    string     `gorm:"column:actor_key;type:varchar(128);primaryKey"`
	DisplayName string     `gorm:"column:display_name;type:text;not null;default:''"`
	JoinedAt    time.Time  `gorm:"column:joined_at;not null"`
	LeftAt      *time.Time `gorm:"column:left_at"`
}

func (Participant) TableName() string {
	return "secure_ai_participants"
}

type ConsentEvent struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID string    `gorm:"column:session_id;type:varchar(36);not null;index:idx_secure_ai_consent_session,priority:1"`
	ActorKey  string    `gorm:"column:actor_key;type:varchar(128);not null;index:idx_secure_ai_consent_session,priority:2"`
	Consent   bool      `gorm:"column:consent;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (ConsentEvent) TableName() string {
	return "secure_ai_consent_events"
}
