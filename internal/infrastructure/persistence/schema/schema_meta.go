package schema

import "time"

// Version is bumped whenever the notes tables change shape.
const Version = "1"

const VersionKey = "schema_version"

type SchemaMeta struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Key       string    `gorm:"column:key;type:text;uniqueIndex;not null"`
	Value     string    `gorm:"column:value;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (SchemaMeta) TableName() string {
	return "schema_meta"
}
