package data

import (
	"time"

	"github.com/stake-plus/fundcomms/src/bot/components/review"
	"github.com/stake-plus/fundcomms/src/bot/types"
	"gorm.io/gorm"
)

// Archive implements review.Archiver, persisting resolved submissions.
type Archive struct {
	db *gorm.DB
}

func NewArchive(db *gorm.DB) *Archive {
	return &Archive{db: db}
}

func (a *Archive) Archive(sub review.Submission) error {
	row := types.SubmissionArchive{
		ID:          sub.ID,
		RequesterID: sub.RequesterID,
		Username:    sub.Username,
		Kind:        string(sub.Kind),
		Amount:      sub.Amount.String(),
		Category:    sub.Attrs.Category,
		Description: sub.Attrs.Description,
		Contact:     sub.Attrs.Contact,
		Anonymous:   sub.Anonymous,
		Status:      string(sub.Status),
		CreatedAt:   sub.CreatedAt,
		ResolvedAt:  time.Now(),
	}
	if sub.Adjustment != nil {
		row.Adjustment = sub.Adjustment.String()
	}
	if sub.FinalPrice != nil {
		row.FinalPrice = sub.FinalPrice.StringFixed(2)
	}
	return a.db.Create(&row).Error
}
