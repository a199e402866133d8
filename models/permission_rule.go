package models

// PermissionRule ist eine Zeile der statischen Permission-Matrix
// (Referenzdaten, für die Engine read-only). Eine vorhandene Zeile
// erlaubt, alles andere ist verboten (fail closed). Stage leer = jede
// Stage; Field nur für Sichtbarkeitsregeln einzelner Felder gesetzt.
type PermissionRule struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	Role   string `json:"role" gorm:"index:idx_permission_rules_unique,unique;not null"`
	Kind   string `json:"kind" gorm:"index:idx_permission_rules_unique,unique;not null"`
	Stage  string `json:"stage" gorm:"index:idx_permission_rules_unique,unique;default:''"`
	Action string `json:"action" gorm:"index:idx_permission_rules_unique,unique;not null"`
	Field  string `json:"field" gorm:"index:idx_permission_rules_unique,unique;default:''"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (PermissionRule) TableName() string {
	return "permission_rules"
}
