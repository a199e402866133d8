package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dariah-contrib/models"
)

// StartAssessment legt für eine Contribution ein Assessment an und
// expandiert die Rubrik ihres Typs zu einem CriteriaEntry pro Kriterium,
// in Rubrik-Reihenfolge. Die Rubrik wird dabei eingefroren: spätere
// Kriterien-Änderungen erreichen dieses Assessment nicht mehr.
//
// Der Batch ist nicht transaktional. Bleibt er unvollständig, existiert das
// Assessment trotzdem (Stage incomplete, nicht bewertbar) und der Aufrufer
// bekommt einen PartialWriteError; RepairAssessment zieht die fehlenden
// Einträge nach.
func (e *Engine) StartAssessment(ctx context.Context, actor *models.User, contribID uint) (*models.Assessment, error) {
	item, err := e.Item(ctx, contribID, actor)
	if err != nil {
		return nil, err
	}
	if !item.Permission(KindContrib, CmdStartAssessment) {
		return nil, ErrNotAllowed
	}

	contrib, err := e.store.ContributionByID(ctx, contribID)
	if err != nil {
		return nil, err
	}
	criteria, err := e.rubric.CriteriaFor(ctx, contrib.Type)
	if err != nil {
		return nil, err
	}

	a := &models.Assessment{
		ContributionID: contrib.ID,
		Type:           contrib.Type,
		Title:          "assessment of " + contrib.Title,
		CreatorID:      actor.ID,
	}
	if err := e.store.InsertAssessment(ctx, a); err != nil {
		return nil, fmt.Errorf("inserting assessment: %w", err)
	}

	entries := make([]models.CriteriaEntry, len(criteria))
	for i := range criteria {
		entries[i] = models.CriteriaEntry{
			AssessmentID: a.ID,
			CriterionID:  criteria[i].ID,
			Seq:          i,
		}
	}
	got, insErr := e.store.InsertCriteriaEntries(ctx, entries)

	// Auch nach einem Teil-Schreiber stimmt der Snapshot: er zählt einfach
	// weniger Einträge als Kriterien.
	if err := e.Adjust(ctx, contribID, true); err != nil {
		return a, err
	}
	if insErr != nil || got < len(entries) {
		e.log.Error("criteria batch incomplete",
			zap.Uint("assessment", a.ID),
			zap.Int("want", len(entries)),
			zap.Int("got", got),
			zap.Error(insErr))
		return a, &PartialWriteError{AssessmentID: a.ID, Want: len(entries), Got: got, Cause: insErr}
	}
	return a, nil
}

// RepairAssessment legt genau die CriteriaEntries nach, die einem
// Assessment gegenüber seiner Rubrik fehlen; vorhandene Einträge und deren
// Seq bleiben unangetastet. Mehrfaches Ausführen ist harmlos.
func (e *Engine) RepairAssessment(ctx context.Context, actor *models.User, assessmentID uint) (int, error) {
	a, err := e.store.AssessmentByID(ctx, assessmentID)
	if err != nil {
		return 0, err
	}
	if actor == nil || (actor.ID != a.CreatorID && !Superuser(actor.Role)) {
		return 0, ErrNotAllowed
	}

	criteria, err := e.rubric.CriteriaFor(ctx, a.Type)
	if err != nil {
		return 0, err
	}
	existing, err := e.store.CriteriaEntriesByAssessment(ctx, a.ID)
	if err != nil {
		return 0, err
	}
	have := make(map[uint]bool, len(existing))
	for i := range existing {
		have[existing[i].CriterionID] = true
	}

	var missing []models.CriteriaEntry
	for i := range criteria {
		if have[criteria[i].ID] {
			continue
		}
		missing = append(missing, models.CriteriaEntry{
			AssessmentID: a.ID,
			CriterionID:  criteria[i].ID,
			Seq:          i, // ursprüngliche Rubrik-Position
		})
	}
	if len(missing) == 0 {
		return 0, nil
	}

	got, insErr := e.store.InsertCriteriaEntries(ctx, missing)
	if err := e.Adjust(ctx, a.ContributionID, false); err != nil {
		return got, err
	}
	if insErr != nil || got < len(missing) {
		return got, &PartialWriteError{AssessmentID: a.ID, Want: len(missing), Got: got, Cause: insErr}
	}
	e.log.Info("assessment repaired",
		zap.Uint("assessment", a.ID),
		zap.Int("added", got))
	return got, nil
}

// DoCommand führt ein Workflow-Kommando auf einer Contribution aus. Das
// Kommando wird gegen die Permission-Matrix und den aktuellen Zustand
// geprüft, mutiert genau die Felder, die seine Semantik verlangt, und
// stößt danach die Neuberechnung an. Stages werden nie direkt gesetzt.
func (e *Engine) DoCommand(ctx context.Context, actor *models.User, contribID uint, kind RecordKind, command Action) error {
	item, err := e.Item(ctx, contribID, actor)
	if err != nil {
		return err
	}
	if !item.Permission(kind, command) {
		return ErrNotAllowed
	}

	now := time.Now()
	switch command {
	case CmdStartAssessment:
		// StartAssessment prüft und adjustiert selbst.
		_, err := e.StartAssessment(ctx, actor, contribID)
		return err

	case CmdSelectContrib, CmdDeselectContrib, CmdUnselectContrib:
		contrib, err := e.store.ContributionByID(ctx, contribID)
		if err != nil {
			return err
		}
		switch command {
		case CmdSelectContrib:
			yes := true
			contrib.Selected = &yes
			contrib.DateDecided = &now
		case CmdDeselectContrib:
			no := false
			contrib.Selected = &no
			contrib.DateDecided = &now
		case CmdUnselectContrib:
			contrib.Selected = nil
			contrib.DateDecided = nil
		}
		if err := e.store.UpdateContribution(ctx, contrib); err != nil {
			return err
		}

	case CmdSubmitAssessment, CmdResubmitAssessment, CmdSubmitRevised, CmdWithdrawAssessment:
		a, err := e.validAssessment(ctx, contribID)
		if err != nil {
			return err
		}
		if command == CmdWithdrawAssessment {
			a.Submitted = false
			a.DateWithdrawn = &now
		} else {
			a.Submitted = true
			a.DateSubmitted = &now
		}
		if err := e.store.UpdateAssessment(ctx, a); err != nil {
			return err
		}

	case CmdStartReview:
		a, err := e.validAssessment(ctx, contribID)
		if err != nil {
			return err
		}
		r := &models.Review{
			AssessmentID: a.ID,
			Type:         a.Type,
			CreatorID:    actor.ID,
		}
		if err := e.store.InsertReview(ctx, r); err != nil {
			return err
		}

	case CmdReviewAccept, CmdReviewReject, CmdReviewRevise:
		if err := e.decide(ctx, actor, contribID, command, now); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown workflow command %q", command)
	}

	if err := e.Adjust(ctx, contribID, false); err != nil {
		return err
	}
	e.log.Info("workflow command applied",
		zap.Uint("contribution", contribID),
		zap.String("command", string(command)),
		zap.Uint("actor", actor.ID))
	return nil
}

// decide schreibt die Entscheidung auf das gültige Review des Akteurs. Ob
// daraus eine Advise- oder eine finale Stage wird, entscheidet die
// Rollenableitung bei der Neuberechnung, nicht das Kommando.
func (e *Engine) decide(ctx context.Context, actor *models.User, contribID uint, command Action, now time.Time) error {
	a, err := e.validAssessment(ctx, contribID)
	if err != nil {
		return err
	}
	reviews, err := e.store.ReviewsByAssessment(ctx, a.ID)
	if err != nil {
		return err
	}
	var mine *models.Review
	for i := range reviews {
		if reviews[i].CreatorID == actor.ID && reviews[i].Type == a.Type {
			mine = &reviews[i]
		}
	}
	if mine == nil {
		return ErrNotFound
	}

	switch command {
	case CmdReviewAccept:
		mine.Decision = e.vocab.DecisionAccept
	case CmdReviewReject:
		mine.Decision = e.vocab.DecisionReject
	case CmdReviewRevise:
		mine.Decision = e.vocab.DecisionRevise
	}
	mine.DateDecided = &now
	return e.store.UpdateReview(ctx, mine)
}

// validAssessment liefert das gültige Assessment einer Contribution: das
// jüngste mit passendem Typ.
func (e *Engine) validAssessment(ctx context.Context, contribID uint) (*models.Assessment, error) {
	contrib, err := e.store.ContributionByID(ctx, contribID)
	if err != nil {
		return nil, err
	}
	assessments, err := e.store.AssessmentsByContribution(ctx, contribID)
	if err != nil {
		return nil, err
	}
	var valid *models.Assessment
	for i := range assessments {
		if assessments[i].Type == contrib.Type {
			valid = &assessments[i]
		}
	}
	if valid == nil {
		return nil, ErrNotFound
	}
	return valid, nil
}

// requireValid lehnt Schreibzugriffe auf Records abgelöster Assessments ab.
// Nach einem Typwechsel oder einem zweiten Assessment bleiben die alten
// Einträge sichtbar, aber unveränderlich.
func (e *Engine) requireValid(ctx context.Context, a *models.Assessment) error {
	valid, err := e.validAssessment(ctx, a.ContributionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotAllowed
		}
		return err
	}
	if valid.ID != a.ID {
		return ErrNotAllowed
	}
	return nil
}

// UpdateCriteriaEntry schreibt Score und/oder Begründung eines Eintrags.
// Nil-Parameter lassen das jeweilige Feld unangetastet; ein Score von -1
// markiert das Kriterium als nicht zutreffend.
func (e *Engine) UpdateCriteriaEntry(ctx context.Context, actor *models.User, entryID uint, score *int, evidence *string) error {
	entry, err := e.store.CriteriaEntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	a, err := e.store.AssessmentByID(ctx, entry.AssessmentID)
	if err != nil {
		return err
	}
	if err := e.requireValid(ctx, a); err != nil {
		return err
	}
	item, err := e.Item(ctx, a.ContributionID, actor)
	if err != nil {
		return err
	}
	if !item.Permission(KindCriteriaEntry, ActionEdit) {
		return ErrNotAllowed
	}

	if score != nil {
		entry.Score = score
	}
	if evidence != nil {
		entry.Evidence = *evidence
	}
	if err := e.store.UpdateCriteriaEntry(ctx, entry); err != nil {
		return err
	}
	return e.Adjust(ctx, a.ContributionID, false)
}

// AddReviewEntry hängt einen Reviewer-Kommentar an einen CriteriaEntry. Die
// Rolle des Kommentars wird nicht gespeichert, sie ergibt sich später aus
// der Zuteilung.
func (e *Engine) AddReviewEntry(ctx context.Context, actor *models.User, criteriaEntryID uint, comment string) (*models.ReviewEntry, error) {
	entry, err := e.store.CriteriaEntryByID(ctx, criteriaEntryID)
	if err != nil {
		return nil, err
	}
	a, err := e.store.AssessmentByID(ctx, entry.AssessmentID)
	if err != nil {
		return nil, err
	}
	if err := e.requireValid(ctx, a); err != nil {
		return nil, err
	}
	item, err := e.Item(ctx, a.ContributionID, actor)
	if err != nil {
		return nil, err
	}
	if !item.Permission(KindReviewEntry, ActionInsert) {
		return nil, ErrNotAllowed
	}

	re := &models.ReviewEntry{
		CriteriaEntryID: entry.ID,
		CreatorID:       actor.ID,
		Comment:         comment,
	}
	if err := e.store.InsertReviewEntry(ctx, re); err != nil {
		return nil, err
	}
	if err := e.Adjust(ctx, a.ContributionID, false); err != nil {
		return re, err
	}
	return re, nil
}

// ClassifiedReviews liefert alle Reviews eines Assessments, jeweils gegen
// die aktuelle Zuteilung eingestuft. Verwaiste Reviews bleiben sichtbar.
func (e *Engine) ClassifiedReviews(ctx context.Context, assessmentID uint) ([]ClassifiedReview, error) {
	a, err := e.store.AssessmentByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	asg := ResolveAssignment(a)
	reviews, err := e.store.ReviewsByAssessment(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	out := make([]ClassifiedReview, 0, len(reviews))
	for i := range reviews {
		kind, class := ClassifyAuthor(reviews[i].CreatorID, asg)
		if reviews[i].Type != a.Type {
			kind, class = KindNone, ClassOrphaned
		}
		out = append(out, ClassifiedReview{Review: reviews[i], Kind: kind, Classification: class})
	}
	return out, nil
}

// ClassifiedReviewEntries liefert die Kommentare eines CriteriaEntry,
// eingestuft gegen die aktuelle Zuteilung des zugehörigen Assessments.
func (e *Engine) ClassifiedReviewEntries(ctx context.Context, criteriaEntryID uint) ([]ClassifiedReviewEntry, error) {
	entry, err := e.store.CriteriaEntryByID(ctx, criteriaEntryID)
	if err != nil {
		return nil, err
	}
	a, err := e.store.AssessmentByID(ctx, entry.AssessmentID)
	if err != nil {
		return nil, err
	}
	asg := ResolveAssignment(a)
	list, err := e.store.ReviewEntriesByCriteriaEntry(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	out := make([]ClassifiedReviewEntry, 0, len(list))
	for i := range list {
		kind, class := ClassifyAuthor(list[i].CreatorID, asg)
		out = append(out, ClassifiedReviewEntry{Entry: list[i], Kind: kind, Classification: class})
	}
	return out, nil
}

// Bundle ist der vollständige Export einer Contribution samt aller
// abhängigen Records und des aktuellen Snapshots.
type Bundle struct {
	Contribution  models.Contribution     `json:"contribution"`
	Assessments   []models.Assessment     `json:"assessments,omitempty"`
	Criteria      []models.CriteriaEntry  `json:"criteria_entries,omitempty"`
	Reviews       []ClassifiedReview      `json:"reviews,omitempty"`
	ReviewEntries []ClassifiedReviewEntry `json:"review_entries,omitempty"`
	Snapshot      *Snapshot               `json:"snapshot"`
	ExportedAt    time.Time               `json:"exported_at"`
}

// ExportBundle sammelt alle Records einer Contribution in ein JSON-Bundle,
// etwa für den Upload ins Archiv.
func (e *Engine) ExportBundle(ctx context.Context, contribID uint) ([]byte, error) {
	contrib, err := e.store.ContributionByID(ctx, contribID)
	if err != nil {
		return nil, err
	}
	item, err := e.Item(ctx, contribID, nil)
	if err != nil {
		return nil, err
	}

	bundle := Bundle{
		Contribution: *contrib,
		Snapshot:     item.Snapshot(),
		ExportedAt:   time.Now().UTC(),
	}
	assessments, err := e.store.AssessmentsByContribution(ctx, contribID)
	if err != nil {
		return nil, err
	}
	bundle.Assessments = assessments
	for i := range assessments {
		entries, err := e.store.CriteriaEntriesByAssessment(ctx, assessments[i].ID)
		if err != nil {
			return nil, err
		}
		bundle.Criteria = append(bundle.Criteria, entries...)
		reviews, err := e.ClassifiedReviews(ctx, assessments[i].ID)
		if err != nil {
			return nil, err
		}
		bundle.Reviews = append(bundle.Reviews, reviews...)
		for j := range entries {
			res, err := e.ClassifiedReviewEntries(ctx, entries[j].ID)
			if err != nil {
				return nil, err
			}
			bundle.ReviewEntries = append(bundle.ReviewEntries, res...)
		}
	}
	return json.MarshalIndent(bundle, "", "  ")
}
