package domain

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// ErrVerdictNotFound is returned when a tab has no recorded verdict.
var ErrVerdictNotFound = errors.New("verdict not found")

// TabVerdict is the per-tab session record the popup reads.
type TabVerdict struct {
	Score    float64 `json:"score"`
	Decision string  `json:"decision"`
	URL      string  `json:"url,omitempty"`
	Epoch    uint64  `json:"epoch,omitempty"`
}

type VerdictRecord struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	TabID        int               `gorm:"column:tab_id;index;not null" json:"tab_id"`
	Epoch        uint64            `gorm:"column:epoch;not null" json:"epoch"`
	URL          string            `gorm:"column:url;not null" json:"url"`
	Score        float64           `gorm:"column:score;not null" json:"score"`
	Decision     string            `gorm:"column:decision;not null" json:"decision"`
	URLScore     float64           `gorm:"column:url_score" json:"url_score"`
	ContentScore float64           `gorm:"column:content_score" json:"content_score"`
	Features     datatypes.JSONMap `gorm:"column:features" json:"features"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (VerdictRecord) TableName() string {
	return "verdict_records"
}
