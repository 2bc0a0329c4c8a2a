package model

import (
	"time"

	"gorm.io/datatypes"
)

type Recording struct {
	SessionID   string    `gorm:"column:session_id;type:varchar(36);primaryKey"`
	StorageKey  string    `gorm:"column:storage_key;type:text;not null"`
	MimeType    string    `gorm:"column:mime_type;type:varchar(64);not null"`
	SizeBytes   int64     `gorm:"column:size_bytes;not null;default:0"`
	DurationSec *float64  `gorm:"column:duration_sec"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (Recording) TableName() string {
	return "secure_ai_recordings"
}

type Transcript struct {
	SessionID  string    `gorm:"column:session_id;type:varchar(36);primaryKey"`
	StorageKey string    `gorm:"column:storage_key;type:text;not null"`
	Language   string    `gorm:"column:language;type:varchar(16);not null;default:''"`
	Diarized   bool      `gorm:"column:diarized;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (Transcript) TableName() string {
	return "secure_ai_transcripts"
}

type Report struct {
	SessionID   string         `gorm:"column:session_id;type:varchar(36);primaryKey"`
	StorageKey  string         `gorm:"column:storage_key;type:text;not null"`
	SizeBytes   int64          `gorm:"column:size_bytes;not null;default:0"`
	SummaryJSON datatypes.JSON `gorm:"column:summary_json"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
}

func (Report) TableName() string {
	return "secure_ai_reports"
}
