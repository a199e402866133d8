package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dariah-contrib/models"
)

// memStore ist die In-Memory-Ausprägung des RecordStore für die Tests.
// failEntriesAfter simuliert einen abgebrochenen CriteriaEntry-Batch:
// nach n erfolgreichen Einfügungen schlägt die nächste fehl.
type memStore struct {
	mu sync.Mutex

	contribs      map[uint]models.Contribution
	assessments   map[uint]models.Assessment
	entries       map[uint]models.CriteriaEntry
	reviews       map[uint]models.Review
	reviewEntries map[uint]models.ReviewEntry
	types         map[string]models.ContribType
	criteria      []models.Criterion
	users         map[uint]models.User
	rules         []models.PermissionRule
	states        map[uint]models.WorkflowState

	nextID uint
	clock  time.Time

	failEntriesAfter int // -1 = nie
}

func newMemStore() *memStore {
	return &memStore{
		contribs:         map[uint]models.Contribution{},
		assessments:      map[uint]models.Assessment{},
		entries:          map[uint]models.CriteriaEntry{},
		reviews:          map[uint]models.Review{},
		reviewEntries:    map[uint]models.ReviewEntry{},
		types:            map[string]models.ContribType{},
		users:            map[uint]models.User{},
		states:           map[uint]models.WorkflowState{},
		clock:            time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		failEntriesAfter: -1,
	}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

// tick liefert eine streng monotone Zeit, damit Reihenfolgen deterministisch
// sind.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) ContributionByID(_ context.Context, id uint) (*models.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contribs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *memStore) Contributions(_ context.Context) ([]models.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]models.Contribution, 0, len(m.contribs))
	for _, c := range m.contribs {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *memStore) InsertContribution(_ context.Context, c *models.Contribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	c.CreatedAt = m.tick()
	c.UpdatedAt = c.CreatedAt
	m.contribs[c.ID] = *c
	return nil
}

func (m *memStore) UpdateContribution(_ context.Context, c *models.Contribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contribs[c.ID]; !ok {
		return ErrNotFound
	}
	c.UpdatedAt = m.tick()
	m.contribs[c.ID] = *c
	return nil
}

func (m *memStore) AssessmentByID(_ context.Context, id uint) (*models.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assessments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *memStore) AssessmentsByContribution(_ context.Context, contribID uint) ([]models.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Assessment
	for _, a := range m.assessments {
		if a.ContributionID == contribID {
			list = append(list, a)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *memStore) InsertAssessment(_ context.Context, a *models.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.id()
	a.CreatedAt = m.tick()
	a.UpdatedAt = a.CreatedAt
	m.assessments[a.ID] = *a
	return nil
}

func (m *memStore) UpdateAssessment(_ context.Context, a *models.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assessments[a.ID]; !ok {
		return ErrNotFound
	}
	a.UpdatedAt = m.tick()
	m.assessments[a.ID] = *a
	return nil
}

func (m *memStore) CriteriaEntryByID(_ context.Context, id uint) (*models.CriteriaEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *memStore) CriteriaEntriesByAssessment(_ context.Context, assessmentID uint) ([]models.CriteriaEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.CriteriaEntry
	for _, e := range m.entries {
		if e.AssessmentID == assessmentID {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Seq < list[j].Seq })
	return list, nil
}

func (m *memStore) InsertCriteriaEntries(_ context.Context, entries []models.CriteriaEntry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	written := 0
	for i := range entries {
		if m.failEntriesAfter >= 0 && written >= m.failEntriesAfter {
			return written, fmt.Errorf("simulated write failure after %d entries", written)
		}
		for _, existing := range m.entries {
			if existing.AssessmentID == entries[i].AssessmentID && existing.CriterionID == entries[i].CriterionID {
				return written, fmt.Errorf("duplicate criteria entry for criterion %d", entries[i].CriterionID)
			}
		}
		entries[i].ID = m.id()
		entries[i].CreatedAt = m.tick()
		entries[i].UpdatedAt = entries[i].CreatedAt
		m.entries[entries[i].ID] = entries[i]
		written++
	}
	return written, nil
}

func (m *memStore) UpdateCriteriaEntry(_ context.Context, e *models.CriteriaEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; !ok {
		return ErrNotFound
	}
	e.UpdatedAt = m.tick()
	m.entries[e.ID] = *e
	return nil
}

func (m *memStore) ReviewByID(_ context.Context, id uint) (*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *memStore) ReviewsByAssessment(_ context.Context, assessmentID uint) ([]models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Review
	for _, r := range m.reviews {
		if r.AssessmentID == assessmentID {
			list = append(list, r)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *memStore) InsertReview(_ context.Context, r *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id()
	r.CreatedAt = m.tick()
	r.UpdatedAt = r.CreatedAt
	m.reviews[r.ID] = *r
	return nil
}

func (m *memStore) UpdateReview(_ context.Context, r *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[r.ID]; !ok {
		return ErrNotFound
	}
	r.UpdatedAt = m.tick()
	m.reviews[r.ID] = *r
	return nil
}

func (m *memStore) ReviewEntriesByCriteriaEntry(_ context.Context, criteriaEntryID uint) ([]models.ReviewEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.ReviewEntry
	for _, e := range m.reviewEntries {
		if e.CriteriaEntryID == criteriaEntryID {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *memStore) InsertReviewEntry(_ context.Context, e *models.ReviewEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	e.CreatedAt = m.tick()
	e.UpdatedAt = e.CreatedAt
	m.reviewEntries[e.ID] = *e
	return nil
}

func (m *memStore) ContribTypeByName(_ context.Context, name string) (*models.ContribType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.types[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *memStore) CriteriaByType(_ context.Context, contribType string) ([]models.Criterion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Criterion
	for _, c := range m.criteria {
		if c.ContribType == contribType {
			list = append(list, c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Seq < list[j].Seq })
	return list, nil
}

func (m *memStore) UserByID(_ context.Context, id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *memStore) UserByEppn(_ context.Context, eppn string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Eppn == eppn {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) PermissionRules(_ context.Context) ([]models.PermissionRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PermissionRule(nil), m.rules...), nil
}

func (m *memStore) SaveWorkflowState(_ context.Context, s *models.WorkflowState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.states[s.ContributionID]; ok {
		s.ID = existing.ID
		s.CreatedAt = existing.CreatedAt
	} else {
		s.ID = m.id()
		s.CreatedAt = m.tick()
	}
	s.UpdatedAt = m.tick()
	m.states[s.ContributionID] = *s
	return nil
}

func (m *memStore) WorkflowStateByContribution(_ context.Context, contribID uint) (*models.WorkflowState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[contribID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *memStore) ClearWorkflowStates(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = map[uint]models.WorkflowState{}
	return nil
}

var _ RecordStore = (*memStore)(nil)
