package models

import (
	"time"
)

// ReviewEntry ist ein Reviewer-Kommentar zu genau einem CriteriaEntry.
// Pro (CriteriaEntry, Reviewer-Rolle) zählt höchstens der Eintrag des
// aktuell zugeteilten Reviewers als "current"; ältere Einträge abgelöster
// Reviewer bleiben als verwaiste Records erhalten.
type ReviewEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CriteriaEntryID uint `json:"criteria_entry_id" gorm:"index;not null"`
	CreatorID       uint `json:"creator_id" gorm:"index;not null"`

	Comment string `json:"comment" gorm:"type:text"`
}

// TableName gibt explizit den Tabellennamen an.
func (ReviewEntry) TableName() string {
	return "review_entries"
}
