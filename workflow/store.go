package workflow

import (
	"context"

	"dariah-contrib/models"
)

// RecordStore ist die Sicht der Engine auf die Persistenz: Record-CRUD auf
// den fünf veränderlichen Tabellen, read-only Zugriff auf die Referenzdaten
// und Save/Load für den WorkflowState-Cache. Produktiv implementiert das
// storage-Paket die Schnittstelle über GORM; die Tests benutzen einen
// In-Memory-Store.
//
// Lookups nach ID liefern ErrNotFound für unbekannte IDs. Listen-Lookups
// liefern leere Slices, nie Fehler für "nichts da".
type RecordStore interface {
	// Contributions
	ContributionByID(ctx context.Context, id uint) (*models.Contribution, error)
	Contributions(ctx context.Context) ([]models.Contribution, error)
	InsertContribution(ctx context.Context, c *models.Contribution) error
	UpdateContribution(ctx context.Context, c *models.Contribution) error

	// Assessments, sortiert nach Anlagezeit (das jüngste gültige zählt)
	AssessmentByID(ctx context.Context, id uint) (*models.Assessment, error)
	AssessmentsByContribution(ctx context.Context, contribID uint) ([]models.Assessment, error)
	InsertAssessment(ctx context.Context, a *models.Assessment) error
	UpdateAssessment(ctx context.Context, a *models.Assessment) error

	// CriteriaEntries, sortiert nach Seq. Der Batch-Insert ist nicht
	// transaktional: er liefert die Zahl der tatsächlich geschriebenen
	// Zeilen, damit der Aufrufer Teil-Schreiber erkennen kann.
	CriteriaEntryByID(ctx context.Context, id uint) (*models.CriteriaEntry, error)
	CriteriaEntriesByAssessment(ctx context.Context, assessmentID uint) ([]models.CriteriaEntry, error)
	InsertCriteriaEntries(ctx context.Context, entries []models.CriteriaEntry) (int, error)
	UpdateCriteriaEntry(ctx context.Context, e *models.CriteriaEntry) error

	// Reviews und ReviewEntries werden nie gelöscht, nur ergänzt.
	ReviewByID(ctx context.Context, id uint) (*models.Review, error)
	ReviewsByAssessment(ctx context.Context, assessmentID uint) ([]models.Review, error)
	InsertReview(ctx context.Context, r *models.Review) error
	UpdateReview(ctx context.Context, r *models.Review) error
	ReviewEntriesByCriteriaEntry(ctx context.Context, criteriaEntryID uint) ([]models.ReviewEntry, error)
	InsertReviewEntry(ctx context.Context, e *models.ReviewEntry) error

	// Referenzdaten (read-only für die Engine)
	ContribTypeByName(ctx context.Context, name string) (*models.ContribType, error)
	CriteriaByType(ctx context.Context, contribType string) ([]models.Criterion, error)
	UserByID(ctx context.Context, id uint) (*models.User, error)
	UserByEppn(ctx context.Context, eppn string) (*models.User, error)
	PermissionRules(ctx context.Context) ([]models.PermissionRule, error)

	// WorkflowState-Cache
	SaveWorkflowState(ctx context.Context, s *models.WorkflowState) error
	WorkflowStateByContribution(ctx context.Context, contribID uint) (*models.WorkflowState, error)
	ClearWorkflowStates(ctx context.Context) error
}
