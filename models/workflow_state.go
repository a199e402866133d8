package models

import (
	"time"

	"gorm.io/datatypes"
)

// WorkflowState ist der persistierte Cache der pro Contribution berechneten
// Workflow-Projektion. Kein Source of Truth: der Inhalt ist jederzeit per
// Rebuild aus den fünf Record-Tabellen rekonstruierbar. Ein paar Felder
// liegen zusätzlich als Spalten vor, damit Übersichten filtern können, ohne
// das jsonb aufzuklappen.
type WorkflowState struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ContributionID uint   `json:"contribution_id" gorm:"uniqueIndex;not null"`
	Stage          string `json:"stage" gorm:"index"`
	Frozen         bool   `json:"frozen" gorm:"index"`
	Locked         bool   `json:"locked"`
	Done           bool   `json:"done"`

	// Vollständige Momentaufnahme (workflow.Snapshot) als jsonb.
	Data datatypes.JSON `json:"data" gorm:"type:jsonb"`
}

// TableName gibt explizit den Tabellennamen an.
func (WorkflowState) TableName() string {
	return "workflow_states"
}
