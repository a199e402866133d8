package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dariah-contrib/models"
	"dariah-contrib/workflow"
)

// RecordStore implementiert workflow.RecordStore über GORM/Postgres.
type RecordStore struct {
	DB *gorm.DB
}

// NewRecordStore erstellt den GORM-gestützten RecordStore.
func NewRecordStore(db *gorm.DB) *RecordStore {
	return &RecordStore{DB: db}
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return workflow.ErrNotFound
	}
	return err
}

// --- Contributions ---

func (s *RecordStore) ContributionByID(ctx context.Context, id uint) (*models.Contribution, error) {
	var c models.Contribution
	if err := s.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &c, nil
}

func (s *RecordStore) Contributions(ctx context.Context) ([]models.Contribution, error) {
	var list []models.Contribution
	if err := s.DB.WithContext(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (s *RecordStore) InsertContribution(ctx context.Context, c *models.Contribution) error {
	return s.DB.WithContext(ctx).Create(c).Error
}

func (s *RecordStore) UpdateContribution(ctx context.Context, c *models.Contribution) error {
	// Save statt Updates: auch nil-Werte (Selected, DateDecided) müssen
	// geschrieben werden.
	return s.DB.WithContext(ctx).Save(c).Error
}

// --- Assessments ---

func (s *RecordStore) AssessmentByID(ctx context.Context, id uint) (*models.Assessment, error) {
	var a models.Assessment
	if err := s.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &a, nil
}

func (s *RecordStore) AssessmentsByContribution(ctx context.Context, contribID uint) ([]models.Assessment, error) {
	var list []models.Assessment
	err := s.DB.WithContext(ctx).
		Where("contribution_id = ?", contribID).
		Order("created_at, id").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *RecordStore) InsertAssessment(ctx context.Context, a *models.Assessment) error {
	return s.DB.WithContext(ctx).Create(a).Error
}

func (s *RecordStore) UpdateAssessment(ctx context.Context, a *models.Assessment) error {
	return s.DB.WithContext(ctx).Save(a).Error
}

// --- CriteriaEntries ---

func (s *RecordStore) CriteriaEntryByID(ctx context.Context, id uint) (*models.CriteriaEntry, error) {
	var e models.CriteriaEntry
	if err := s.DB.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &e, nil
}

func (s *RecordStore) CriteriaEntriesByAssessment(ctx context.Context, assessmentID uint) ([]models.CriteriaEntry, error) {
	var list []models.CriteriaEntry
	err := s.DB.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("seq").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// InsertCriteriaEntries schreibt die Einträge einzeln und zählt die
// Erfolge. Absichtlich keine Transaktion: ein Teil-Schreiber lässt das
// Assessment im Zustand "nicht bewertbar" zurück, der Aufrufer erkennt das
// an der Differenz und kann reparieren. Der Unique-Index auf
// (assessment_id, criterion_id) fängt Doppel-Einfügungen ab.
func (s *RecordStore) InsertCriteriaEntries(ctx context.Context, entries []models.CriteriaEntry) (int, error) {
	written := 0
	for i := range entries {
		if err := s.DB.WithContext(ctx).Create(&entries[i]).Error; err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func (s *RecordStore) UpdateCriteriaEntry(ctx context.Context, e *models.CriteriaEntry) error {
	return s.DB.WithContext(ctx).Save(e).Error
}

// --- Reviews und ReviewEntries ---

func (s *RecordStore) ReviewByID(ctx context.Context, id uint) (*models.Review, error) {
	var r models.Review
	if err := s.DB.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &r, nil
}

func (s *RecordStore) ReviewsByAssessment(ctx context.Context, assessmentID uint) ([]models.Review, error) {
	var list []models.Review
	err := s.DB.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("created_at, id").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *RecordStore) InsertReview(ctx context.Context, r *models.Review) error {
	return s.DB.WithContext(ctx).Create(r).Error
}

func (s *RecordStore) UpdateReview(ctx context.Context, r *models.Review) error {
	return s.DB.WithContext(ctx).Save(r).Error
}

func (s *RecordStore) ReviewEntriesByCriteriaEntry(ctx context.Context, criteriaEntryID uint) ([]models.ReviewEntry, error) {
	var list []models.ReviewEntry
	err := s.DB.WithContext(ctx).
		Where("criteria_entry_id = ?", criteriaEntryID).
		Order("created_at, id").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *RecordStore) InsertReviewEntry(ctx context.Context, e *models.ReviewEntry) error {
	return s.DB.WithContext(ctx).Create(e).Error
}

// --- Referenzdaten ---

func (s *RecordStore) ContribTypeByName(ctx context.Context, name string) (*models.ContribType, error) {
	var t models.ContribType
	if err := s.DB.WithContext(ctx).Where("name = ?", name).First(&t).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &t, nil
}

func (s *RecordStore) CriteriaByType(ctx context.Context, contribType string) ([]models.Criterion, error) {
	var list []models.Criterion
	err := s.DB.WithContext(ctx).
		Where("contrib_type = ?", contribType).
		Order("seq, id").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *RecordStore) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &u, nil
}

func (s *RecordStore) UserByEppn(ctx context.Context, eppn string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where("eppn = ?", eppn).First(&u).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &u, nil
}

func (s *RecordStore) PermissionRules(ctx context.Context) ([]models.PermissionRule, error) {
	var list []models.PermissionRule
	if err := s.DB.WithContext(ctx).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// --- WorkflowState-Cache ---

// SaveWorkflowState upsertet den Snapshot einer Contribution.
func (s *RecordStore) SaveWorkflowState(ctx context.Context, st *models.WorkflowState) error {
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "contribution_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"stage", "frozen", "locked", "done", "data", "updated_at",
		}),
	}).Create(st).Error
}

func (s *RecordStore) WorkflowStateByContribution(ctx context.Context, contribID uint) (*models.WorkflowState, error) {
	var st models.WorkflowState
	if err := s.DB.WithContext(ctx).Where("contribution_id = ?", contribID).First(&st).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &st, nil
}

func (s *RecordStore) ClearWorkflowStates(ctx context.Context) error {
	return s.DB.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.WorkflowState{}).Error
}
