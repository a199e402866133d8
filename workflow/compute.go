package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"dariah-contrib/models"
)

var (
	recomputeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_recompute_total",
			Help: "Neuberechnungen von Workflow-Snapshots, nach Auslöser",
		},
		[]string{"trigger"},
	)
	rebuildFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workflow_rebuild_failed_total",
			Help: "Contributions, deren Snapshot beim Rebuild nicht berechenbar war",
		},
	)
)

func init() {
	prometheus.MustRegister(recomputeTotal, rebuildFailedTotal)
}

// Engine berechnet aus den fünf Record-Tabellen die Workflow-Projektion
// einer Contribution und hält den WorkflowState-Cache aktuell. Records sind
// die einzige Wahrheit: die Engine setzt nie Stages von Hand, sie leitet
// sie ab.
type Engine struct {
	store         RecordStore
	rubric        *RubricExpander
	matrix        *Matrix
	vocab         Vocabulary
	decisionDelay time.Duration
	log           *zap.Logger
}

// NewEngine verdrahtet die Engine mit Store, Permission-Matrix und
// Stage-Vokabular.
func NewEngine(store RecordStore, matrix *Matrix, vocab Vocabulary, log *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		rubric: NewRubricExpander(store),
		matrix: matrix,
		vocab:  vocab,
		log:    log.With(zap.String("component", "workflow")),
	}
}

// SetDecisionDelay setzt die Gnadenfrist, in der ein Reviewer seine eigene
// Entscheidung noch einmal umstoßen darf. Null schaltet die Frist ab.
func (e *Engine) SetDecisionDelay(d time.Duration) {
	e.decisionDelay = d
}

// Vocab liefert das aktive Stage-Vokabular.
func (e *Engine) Vocab() Vocabulary {
	return e.vocab
}

// Matrix liefert die aktive Permission-Matrix.
func (e *Engine) Matrix() *Matrix {
	return e.matrix
}

// Item lädt die Workflow-Sicht einer Contribution für einen Akteur.
// Cache-Misses werden transparent neu berechnet; ErrNotFound kommt nur für
// unbekannte Contribution-IDs.
func (e *Engine) Item(ctx context.Context, contribID uint, actor *models.User) (*Item, error) {
	state, err := e.store.WorkflowStateByContribution(ctx, contribID)
	if err == nil {
		snap := &Snapshot{}
		if jerr := json.Unmarshal(state.Data, snap); jerr == nil {
			return &Item{snap: snap, actor: actor, matrix: e.matrix, vocab: e.vocab, decisionDelay: e.decisionDelay}, nil
		}
		e.log.Warn("workflow state cache unreadable, recomputing",
			zap.Uint("contribution", contribID))
	}

	contrib, err := e.store.ContributionByID(ctx, contribID)
	if err != nil {
		return nil, err
	}
	snap, err := e.computeSnapshot(ctx, contrib)
	if err != nil {
		return nil, err
	}
	if err := e.saveSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	recomputeTotal.WithLabelValues("cache_miss").Inc()
	return &Item{snap: snap, actor: actor, matrix: e.matrix, vocab: e.vocab, decisionDelay: e.decisionDelay}, nil
}

// Adjust berechnet den Snapshot einer Contribution komplett neu und
// persistiert ihn. Jede Mutation ruft Adjust auf, bevor sie antwortet;
// isNew unterscheidet nur das Logging, die Ableitung ist immer vollständig
// und idempotent.
func (e *Engine) Adjust(ctx context.Context, contribID uint, isNew bool) error {
	contrib, err := e.store.ContributionByID(ctx, contribID)
	if err != nil {
		return err
	}
	snap, err := e.computeSnapshot(ctx, contrib)
	if err != nil {
		return err
	}
	if err := e.saveSnapshot(ctx, snap); err != nil {
		return err
	}
	trigger := "mutation"
	if isNew {
		trigger = "insert"
	}
	recomputeTotal.WithLabelValues(trigger).Inc()
	e.log.Debug("workflow snapshot adjusted",
		zap.Uint("contribution", contribID),
		zap.String("stage", string(snap.Stage)))
	return nil
}

// RebuildAll verwirft den kompletten Cache und berechnet alle Snapshots aus
// den Records neu. Contributions mit Konfigurationsfehlern werden geloggt
// und übersprungen, der Lauf geht weiter.
func (e *Engine) RebuildAll(ctx context.Context) (int, error) {
	if err := e.store.ClearWorkflowStates(ctx); err != nil {
		return 0, fmt.Errorf("clearing workflow states: %w", err)
	}
	contribs, err := e.store.Contributions(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing contributions: %w", err)
	}

	n := 0
	for i := range contribs {
		snap, err := e.computeSnapshot(ctx, &contribs[i])
		if err == nil {
			err = e.saveSnapshot(ctx, snap)
		}
		if err != nil {
			rebuildFailedTotal.Inc()
			e.log.Error("rebuild: snapshot failed",
				zap.Uint("contribution", contribs[i].ID),
				zap.Error(err))
			continue
		}
		n++
	}
	recomputeTotal.WithLabelValues("rebuild").Add(float64(n))
	e.log.Info("workflow rebuild finished",
		zap.Int("rebuilt", n),
		zap.Int("total", len(contribs)))
	return n, nil
}

func (e *Engine) saveSnapshot(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}
	state := &models.WorkflowState{
		ContributionID: snap.ContributionID,
		Stage:          string(snap.Stage),
		Frozen:         snap.Frozen,
		Locked:         snap.Locked,
		Done:           snap.Done,
		Data:           datatypes.JSON(data),
	}
	return e.store.SaveWorkflowState(ctx, state)
}

// computeSnapshot leitet die komplette Projektion einer Contribution aus
// den Records ab. Das jüngste Assessment mit passendem Typ zählt als
// gültig; Assessments mit abweichendem Typ fallen still heraus.
func (e *Engine) computeSnapshot(ctx context.Context, contrib *models.Contribution) (*Snapshot, error) {
	vocab := e.vocab
	snap := &Snapshot{
		ContributionID: contrib.ID,
		Type:           contrib.Type,
		Title:          contrib.Title,
		Country:        contrib.Country,
		CreatorID:      contrib.CreatorID,
	}

	// Selektionsentscheidung des Coordinators.
	switch {
	case contrib.Selected == nil:
		snap.Stage = vocab.SelectNone
		created := contrib.CreatedAt
		snap.StageDate = &created
	case *contrib.Selected:
		snap.Stage = vocab.SelectYes
		snap.StageDate = contrib.DateDecided
		snap.Frozen = true
	default:
		snap.Stage = vocab.SelectNo
		snap.StageDate = contrib.DateDecided
		snap.Frozen = true
	}

	assessments, err := e.store.AssessmentsByContribution(ctx, contrib.ID)
	if err != nil {
		return nil, err
	}
	var valid *models.Assessment
	for i := range assessments {
		if assessments[i].Type == contrib.Type {
			valid = &assessments[i]
		}
	}

	if valid != nil {
		asm, err := e.computeAssessment(ctx, valid, snap.Frozen)
		if err != nil {
			return nil, err
		}
		snap.Assessment = asm
		snap.Locked = asm.Locked
		snap.Done = asm.Done
	}

	snap.MayAddAssessment = valid == nil && !snap.Frozen && !snap.Done
	return snap, nil
}

func (e *Engine) computeAssessment(ctx context.Context, a *models.Assessment, frozen bool) (*AssessmentSummary, error) {
	vocab := e.vocab

	criteria, err := e.rubric.CriteriaFor(ctx, a.Type)
	if err != nil {
		return nil, err
	}
	entries, err := e.store.CriteriaEntriesByAssessment(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	asg := ResolveAssignment(a)
	asm := &AssessmentSummary{
		ID:         a.ID,
		Title:      a.Title,
		CreatorID:  a.CreatorID,
		Assignment: asg,
		Reviews:    map[ReviewerKind]*ReviewSummary{},
		NCriteria:  len(criteria),
		NEntries:   len(entries),
		Frozen:     frozen,
	}

	// Vollständig heißt: ein Eintrag pro Kriterium, jeder gescort und mit
	// Begründung. Ein halb geschriebener Batch ist schlicht unvollständig.
	complete := len(criteria) > 0 && len(entries) == len(criteria)
	for i := range entries {
		if entries[i].Score == nil || entries[i].Evidence == "" {
			complete = false
		}
	}
	asm.Complete = complete
	asm.Score = computeScore(entries, criteria)

	reviews, err := e.store.ReviewsByAssessment(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	asm.Reviews[KindExpert] = e.validReview(reviews, a, asg.Expert, KindExpert, frozen)
	asm.Reviews[KindFinal] = e.validReview(reviews, a, asg.Final, KindFinal, frozen)
	for kind, rs := range asm.Reviews {
		if rs == nil {
			delete(asm.Reviews, kind)
		}
	}

	asm.Stage, asm.StageDate = e.assessmentStage(a, asm, complete)
	asm.Locked = asm.Stage == vocab.Submitted || asm.Stage == vocab.SubmittedRevised

	final := asm.Reviews[KindFinal]
	asm.Done = final != nil && final.Stage != "" && final.Stage != vocab.ReviewRevise
	if asm.Done {
		if expert := asm.Reviews[KindExpert]; expert != nil {
			expert.Done = true
		}
	}

	asm.MayAddReview = map[ReviewerKind]bool{
		KindExpert: !frozen && !asm.Done && asm.Locked && asg.Expert != nil && asm.Reviews[KindExpert] == nil,
		KindFinal:  !frozen && !asm.Done && asm.Locked && asg.Final != nil && asm.Reviews[KindFinal] == nil,
	}
	return asm, nil
}

// assessmentStage leitet die Assessment-Stage aus Submitted-Flag, Withdraw-
// und Submit-Datum und einer etwaigen Revise-Entscheidung des Final-Reviews
// ab. Nach einer Revise-Entscheidung ist das Assessment wieder in Arbeit
// (Revised-Varianten), bis es erneut eingereicht wird.
func (e *Engine) assessmentStage(a *models.Assessment, asm *AssessmentSummary, complete bool) (Stage, *time.Time) {
	vocab := e.vocab

	final := asm.Reviews[KindFinal]
	finalRevise := final != nil && final.Stage == vocab.ReviewRevise
	var reviseDate *time.Time
	if finalRevise {
		reviseDate = final.StageDate
	}

	withdrawn := !a.Submitted && a.DateWithdrawn != nil
	switch {
	case withdrawn:
		if complete {
			return vocab.CompleteWithdrawn, a.DateWithdrawn
		}
		return vocab.IncompleteWithdrawn, a.DateWithdrawn

	case a.Submitted:
		resubmitted := finalRevise && a.DateSubmitted != nil && reviseDate != nil &&
			a.DateSubmitted.After(*reviseDate)
		if resubmitted {
			return vocab.SubmittedRevised, a.DateSubmitted
		}
		if finalRevise {
			// Revise entschieden: zurück in Arbeit, trotz Submitted-Flag.
			if complete {
				return vocab.CompleteRevised, reviseDate
			}
			return vocab.IncompleteRevised, reviseDate
		}
		return vocab.Submitted, a.DateSubmitted

	case finalRevise:
		if complete {
			return vocab.CompleteRevised, reviseDate
		}
		return vocab.IncompleteRevised, reviseDate

	default:
		updated := a.UpdatedAt
		if complete {
			return vocab.Complete, &updated
		}
		return vocab.Incomplete, &updated
	}
}

// validReview sucht das gültige Review einer Rolle: das jüngste Review des
// aktuell zugeteilten Reviewers mit passendem Typ. Alles andere ist
// verwaist und taucht im Snapshot nicht auf.
func (e *Engine) validReview(reviews []models.Review, a *models.Assessment, reviewer *uint, kind ReviewerKind, frozen bool) *ReviewSummary {
	if reviewer == nil {
		return nil
	}
	var valid *models.Review
	for i := range reviews {
		if reviews[i].CreatorID == *reviewer && reviews[i].Type == a.Type {
			valid = &reviews[i]
		}
	}
	if valid == nil {
		return nil
	}

	rs := &ReviewSummary{
		ID:        valid.ID,
		Kind:      kind,
		CreatorID: valid.CreatorID,
		Decision:  valid.Decision,
		Frozen:    frozen,
	}
	rs.Stage = e.reviewStage(kind, valid.Decision)
	if rs.Stage != "" {
		rs.StageDate = valid.DateDecided
		rs.Done = true
	}
	return rs
}

// reviewStage mappt die Decision eines Reviews auf die rollenspezifische
// Stage: der Expert rät, der Final entscheidet.
func (e *Engine) reviewStage(kind ReviewerKind, decision string) Stage {
	vocab := e.vocab
	switch decision {
	case vocab.DecisionAccept:
		if kind == KindExpert {
			return vocab.ReviewAdviseAccept
		}
		return vocab.ReviewAccept
	case vocab.DecisionReject:
		if kind == KindExpert {
			return vocab.ReviewAdviseReject
		}
		return vocab.ReviewReject
	case vocab.DecisionRevise:
		if kind == KindExpert {
			return vocab.ReviewAdviseRevise
		}
		return vocab.ReviewRevise
	}
	return ""
}

// computeScore rechnet die Prozentbewertung über die relevanten Kriterien.
// Ein negativer Score markiert ein Kriterium als nicht zutreffend; es fällt
// samt seinem Maximum aus der Basis. Ungescorte Einträge zählen als 0.
func computeScore(entries []models.CriteriaEntry, criteria []models.Criterion) Score {
	maxByCriterion := make(map[uint]int, len(criteria))
	for i := range criteria {
		maxByCriterion[criteria[i].ID] = criteria[i].MaxScore
	}

	var s Score
	for i := range entries {
		max, ok := maxByCriterion[entries[i].CriterionID]
		if !ok {
			continue
		}
		val := 0
		if entries[i].Score != nil {
			val = *entries[i].Score
		}
		s.AllMax += max
		s.AllN++
		if val >= 0 {
			s.RelevantScore += val
			s.RelevantMax += max
			s.RelevantN++
		}
	}
	if s.RelevantMax > 0 {
		s.Overall = (s.RelevantScore*100 + s.RelevantMax/2) / s.RelevantMax
	}
	return s
}
