package models

import (
	"time"
)

// CriteriaEntry ist genau eine Zeile der Rubrik-Momentaufnahme eines
// Assessments. Die Menge wird bei der Anlage des Assessments fixiert
// (ein Eintrag pro Kriterium, Seq 0..n-1) und wächst oder schrumpft nicht,
// auch wenn die Rubrik sich später ändert.
type CriteriaEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AssessmentID uint `json:"assessment_id" gorm:"index:idx_criteria_entries_unique,unique;not null"`
	CriterionID  uint `json:"criterion_id" gorm:"index:idx_criteria_entries_unique,unique;not null"`
	Seq          int  `json:"seq" gorm:"not null"`

	// Score in Punkten; nil = noch nicht bewertet. Negative Werte markieren
	// ein nicht zutreffendes Kriterium und fallen aus der Durchschnittsbildung.
	Score    *int   `json:"score,omitempty"`
	Evidence string `json:"evidence,omitempty" gorm:"type:text"`
}

// TableName gibt explizit den Tabellennamen an.
func (CriteriaEntry) TableName() string {
	return "criteria_entries"
}
