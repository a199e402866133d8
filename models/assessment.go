package models

import (
	"time"
)

// Assessment ist die Selbstbewertung einer Contribution gegen die Rubrik.
// Der Typ wird bei der Anlage von der Contribution kopiert und danach nicht
// mehr angefasst; weicht er später vom Contribution-Typ ab, zählt das
// Assessment nicht mehr als gültig.
type Assessment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ContributionID uint   `json:"contribution_id" gorm:"index;not null"`
	Type           string `json:"type" gorm:"index;not null"`
	Title          string `json:"title"`

	CreatorID uint `json:"creator_id" gorm:"index;not null"`

	// Aktuelle Reviewer-Zuteilung; wird von einem externen Schritt gesetzt,
	// die Engine liest sie nur.
	ReviewerExpertID *uint `json:"reviewer_expert_id,omitempty" gorm:"index"`
	ReviewerFinalID  *uint `json:"reviewer_final_id,omitempty" gorm:"index"`

	Submitted     bool       `json:"submitted" gorm:"default:false"`
	DateSubmitted *time.Time `json:"date_submitted,omitempty"`
	DateWithdrawn *time.Time `json:"date_withdrawn,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Assessment) TableName() string {
	return "assessments"
}
