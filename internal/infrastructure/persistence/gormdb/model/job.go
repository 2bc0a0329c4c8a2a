package model

import "time"

type Job struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"`
	SessionID string    `gorm:"column:session_id;type:varchar(36);not null;index"`
	Status    string    `gorm:"column:status;type:varchar(16);not null;index:idx_secure_ai_jobs_queue,priority:1"`
	Progress  string    `gorm:"column:progress;type:text;not null;default:''"`
	Error     *string   `gorm:"column:error;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_secure_ai_jobs_queue,priority:2"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Job) TableName() string {
	return "secure_ai_jobs"
}
