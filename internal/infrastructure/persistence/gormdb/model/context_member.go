package model

import "time"

// ContextMember mirrors the membership rows of video rooms, voice rooms and
// chat threads.
type ContextMember struct {
	ID        uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	Kind      string     `gorm:"column:kind;type:varchar(16);not null;uniqueIndex:idx_context_members_user,priority:1"`
	ContextID string     `gorm:"column:context_id;type:varchar(128);not null;uniqueIndex:idx_context_members_user,priority:2"`
	UserID    string     `gorm:"column:user_id;type:varchar(128);not null;uniqueIndex:idx_context_members_user,priority:3"`
	Role      string     `gorm:"column:role;type:varchar(16);not null;default:'member'"`
	RemovedAt *time.Time `gorm:"column:removed_at"`
	CreatedAt time.Time  `gorm:"column:created_at;not null;autoCreateTime"`
}

func (ContextMember) TableName() string {
	return "context_members"
}
