package models

// ContribType ist ein Referenzeintrag für einen zulässigen Contribution-Typ.
// Ein Typ ohne Kriterien ist erlaubt (leere Rubrik); ein Typ ohne Eintrag
// in dieser Tabelle ist ein Konfigurationsfehler.
type ContribType struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Name     string `json:"name" gorm:"uniqueIndex;not null"` // z.B. "service", "software"
	MainType string `json:"main_type,omitempty"`              // main oder sub
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (ContribType) TableName() string {
	return "contrib_types"
}

// Criterion ist eine Zeile der Bewertungsrubrik (Referenzdaten, für die
// Engine read-only). Die Reihenfolge pro Typ bestimmt die Seq-Nummern der
// CriteriaEntry-Momentaufnahme.
type Criterion struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	ContribType string `json:"contrib_type" gorm:"index;not null"`
	Seq         int    `json:"seq" gorm:"not null"`
	Title       string `json:"title" gorm:"not null"`
	MaxScore    int    `json:"max_score" gorm:"default:4"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Criterion) TableName() string {
	return "criteria"
}
