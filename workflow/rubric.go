package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"dariah-contrib/models"
)

// RubricExpander expandiert einen Contribution-Typ in die geordnete Liste
// der zu bewertenden Kriterien. Wird nur beim Anlegen eines Assessments
// benutzt; die Momentaufnahme ist ab dann eingefroren.
type RubricExpander struct {
	store RecordStore
}

func NewRubricExpander(store RecordStore) *RubricExpander {
	return &RubricExpander{store: store}
}

// CriteriaFor liefert die Rubrik für einen Contribution-Typ, nach Seq
// sortiert. Ein Typ ohne contrib_types-Eintrag ist ein ConfigError; ein
// registrierter Typ mit leerer Rubrik ist gültig und liefert eine leere
// Liste.
func (r *RubricExpander) CriteriaFor(ctx context.Context, contribType string) ([]models.Criterion, error) {
	if _, err := r.store.ContribTypeByName(ctx, contribType); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &ConfigError{Msg: fmt.Sprintf("no rubric for contribution type %q", contribType)}
		}
		return nil, err
	}

	criteria, err := r.store.CriteriaByType(ctx, contribType)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(criteria, func(i, j int) bool {
		return criteria[i].Seq < criteria[j].Seq
	})
	return criteria, nil
}
