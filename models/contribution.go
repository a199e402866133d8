package models

import (
	"time"
)

// Contribution repräsentiert den Stammsatz einer eingereichten Contribution.
// Der Lifecycle-Zustand wird nie hier gespeichert, sondern ausschließlich aus
// den abhängigen Records abgeleitet (siehe workflow-Paket).
type Contribution struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Typ entscheidet, welche Rubrik bei einem Assessment gezogen wird.
	Type  string `json:"type" gorm:"index;not null"`
	Title string `json:"title" gorm:"not null"`
	Year  int    `json:"year" gorm:"index"`

	Country string `json:"country" gorm:"index"`

	// Kontaktdaten; die E-Mail ist nur für bestimmte Rollen sichtbar.
	ContactPerson string `json:"contact_person,omitempty"`
	ContactEmail  string `json:"contact_email,omitempty"`

	CreatorID uint `json:"creator_id" gorm:"index;not null"`

	// Selektionsentscheidung des National Coordinators.
	// nil = noch keine Entscheidung.
	Selected    *bool      `json:"selected,omitempty"`
	DateDecided *time.Time `json:"date_decided,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Contribution) TableName() string {
	return "contributions"
}
