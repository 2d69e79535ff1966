package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PricingPlan struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	DurationDays int       `gorm:"not null" json:"duration_days"`
	Price        float64   `gorm:"not null" json:"price"`
	Currency     string    `gorm:"size:8;default:'USD'" json:"currency"`
	// No default tag: gorm would drop a zero-value false on insert and
	// persist the plan as active.
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *PricingPlan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
