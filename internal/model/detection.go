package model

import "time"

// DetectionRunPG stores one full-area detection result. Runs are never merged;
// each detection produces a new row.
type DetectionRunPG struct {
	ID             string         `gorm:"primaryKey;size:64"`
	BoundaryName   string         `gorm:"size:255"`
	AreaM2         float64        `gorm:"not null"`
	TargetCount    int            `gorm:"not null"`
	RealCount      int            `gorm:"not null"`
	SimulatedCount int            `gorm:"not null"`
	Dropped        int            `gorm:"not null"`
	QueryFailed    bool           `gorm:"not null;default:false"`
	Buildings      []BuildingInfo `gorm:"type:jsonb;serializer:json"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
}

func (DetectionRunPG) TableName() string {
	return "detection_runs"
}
