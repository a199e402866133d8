package models

// User bildet die Permission-Group-Zugehörigkeit eines Akteurs ab
// (Referenzdaten; Identitätsauflösung selbst liegt außerhalb der Engine).
// Role ist die Stufe auf der Rollenleiter:
// public < auth < coord < office < system < root.
type User struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	Eppn    string `json:"eppn" gorm:"uniqueIndex;not null"` // Kennung vom Identity Provider
	Name    string `json:"name"`
	Role    string `json:"role" gorm:"index;not null;default:'auth'"`
	Country string `json:"country,omitempty" gorm:"index"` // relevant für coord
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (User) TableName() string {
	return "users"
}
