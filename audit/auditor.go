package audit

import (
	"log"

	"github.com/momspace/momspace_backend/models"
	"github.com/momspace/momspace_backend/utils"
	"gorm.io/gorm"
)

// Auditor writes hashed request metadata next to moderation reports. It is
// constructed once and handed to the controllers that need it.
type Auditor struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Auditor {
	return &Auditor{db: db}
}

// RecordReport stores a best-effort audit row for a report. Failures are
// logged and never block the report itself.
func (a *Auditor) RecordReport(reportID uint, userAgent, ip string) {
	record := models.ReportAudit{
		ReportID:      reportID,
		UserAgentHash: utils.HashIdentifier(userAgent),
		IPHash:        utils.HashIdentifier(ip),
	}

	if err := a.db.Create(&record).Error; err != nil {
		log.Printf("audit write failed for report %d: %v", reportID, err)
	}
}
