package models

import "time"

// Student statuses recognised by the administrative API.
const (
	StudentStatusActive   = "active"
	StudentStatusInactive = "inactive"
	StudentStatusArchived = "archived"
)

// Student represents a learner whose administrative records are kept.
type Student struct {
	ID        string    `gorm:"primaryKey;size:50" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Class     string    `gorm:"size:64" json:"class"`
	Status    string    `gorm:"size:32;not null;default:active" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
