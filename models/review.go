package models

import (
	"time"
)

// Review ist das Urteil eines Reviewers über ein Assessment. Ob es ein
// Expert- oder Final-Review ist, steht nicht im Record: das ergibt sich
// erst beim Anzeigen aus dem Vergleich von CreatorID mit der aktuellen
// Reviewer-Zuteilung des Assessments. Passt der Autor nicht mehr, ist der
// Record verwaist, wird aber nie gelöscht.
type Review struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AssessmentID uint   `json:"assessment_id" gorm:"index;not null"`
	Type         string `json:"type" gorm:"index;not null"`

	CreatorID uint `json:"creator_id" gorm:"index;not null"`

	Remark string `json:"remark,omitempty" gorm:"type:text"`

	// Decision: leer solange unentschieden, sonst Accept/Reject/Revise.
	Decision    string     `json:"decision,omitempty" gorm:"index"`
	DateDecided *time.Time `json:"date_decided,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Review) TableName() string {
	return "reviews"
}
