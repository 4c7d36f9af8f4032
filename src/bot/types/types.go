package types

import "time"

// Settings
type Setting struct {
	ID     uint8  `gorm:"primaryKey"`
	Name   string `gorm:"size:32;not null"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null"`
}

// SubmissionArchive is the audit row written when a submission reaches a
// terminal status. The live index stays in memory; this table is write-only.
type SubmissionArchive struct {
	ID          string `gorm:"primaryKey;size:36"`
	RequesterID string `gorm:"size:64;index"`
	Username    string `gorm:"size:128"`
	Kind        string `gorm:"size:16;not null"`
	Amount      string `gorm:"size:32;not null"`
	Adjustment  string `gorm:"size:16"`
	FinalPrice  string `gorm:"size:32"`
	Category    string `gorm:"size:128"`
	Description string `gorm:"type:text"`
	Contact     string `gorm:"size:256"`
	Anonymous   bool
	Status      string `gorm:"size:24;not null"`
	CreatedAt   time.Time
	ResolvedAt  time.Time
}
