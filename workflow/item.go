package workflow

import (
	"time"

	"dariah-contrib/models"
)

// Item ist die Fassade, über die der Rest des Systems mit dem Workflow
// redet: status, permission und info für eine Contribution aus Sicht eines
// Akteurs. Ein Item ist eine reine Leseansicht über einen Snapshot; es
// mutiert nie.
type Item struct {
	snap          *Snapshot
	actor         *models.User // nil = nicht angemeldet
	matrix        *Matrix
	vocab         Vocabulary
	decisionDelay time.Duration
}

// Snapshot liefert die zugrunde liegende Momentaufnahme.
func (it *Item) Snapshot() *Snapshot {
	return it.snap
}

func (it *Item) actorRole() string {
	if it.actor == nil {
		return RolePublic
	}
	return it.actor.Role
}

// MyKind liefert die Reviewer-Rolle des Akteurs für das gültige Assessment
// dieser Contribution, oder KindNone.
func (it *Item) MyKind() ReviewerKind {
	if it.actor == nil || it.snap.Assessment == nil {
		return KindNone
	}
	return it.snap.Assessment.Assignment.KindOf(it.actor.ID)
}

// review liefert die Review-Summary der Rolle, oder nil.
func (it *Item) review(kind ReviewerKind) *ReviewSummary {
	if it.snap.Assessment == nil {
		return nil
	}
	return it.snap.Assessment.Reviews[kind]
}

// Stage liefert die Stage der Record-Art; revKind nur für Reviews relevant.
// Fehlende Records ergeben StageUnknown, nie einen Fehler.
func (it *Item) Stage(kind RecordKind, revKind ReviewerKind) Stage {
	switch kind {
	case KindContrib:
		return it.snap.Stage
	case KindAssessment, KindCriteriaEntry:
		if it.snap.Assessment == nil {
			return StageUnknown
		}
		return it.snap.Assessment.Stage
	case KindReview, KindReviewEntry:
		rs := it.review(revKind)
		if rs == nil || rs.Stage == "" {
			return StageUnknown
		}
		return rs.Stage
	}
	return StageUnknown
}

// Status ist die anzeigefertige Zusammenfassung einer Record-Art. Fehlt der
// zugehörige Record (noch kein Assessment, verwaistes Review), kommt ein
// Sentinel mit Known=false zurück: die Rendering-Schicht bekommt immer
// etwas zu zeigen.
type Status struct {
	Kind      RecordKind   `json:"kind"`
	RefID     uint         `json:"ref_id,omitempty"`
	Stage     Stage        `json:"stage"`
	StageDate *time.Time   `json:"stage_date,omitempty"`
	Frozen    bool         `json:"frozen"`
	Locked    bool         `json:"locked"`
	Done      bool         `json:"done"`
	Score     *Score       `json:"score,omitempty"`
	Reviewer  ReviewerKind `json:"reviewer,omitempty"`
	Known     bool         `json:"known"`
}

func unknownStatus(kind RecordKind) Status {
	return Status{Kind: kind, Stage: StageUnknown}
}

// Status fasst den Workflow-Zustand einer Record-Art zusammen; revKind
// filtert bei Reviews auf die Rolle.
func (it *Item) Status(kind RecordKind, revKind ReviewerKind) Status {
	snap := it.snap
	switch kind {
	case KindContrib:
		return Status{
			Kind: kind, RefID: snap.ContributionID,
			Stage: snap.Stage, StageDate: snap.StageDate,
			Frozen: snap.Frozen, Locked: snap.Locked, Done: snap.Done,
			Known: true,
		}
	case KindAssessment, KindCriteriaEntry:
		asm := snap.Assessment
		if asm == nil {
			return unknownStatus(kind)
		}
		score := asm.Score
		return Status{
			Kind: kind, RefID: asm.ID,
			Stage: asm.Stage, StageDate: asm.StageDate,
			Frozen: asm.Frozen, Locked: asm.Locked, Done: asm.Done,
			Score: &score,
			Known: true,
		}
	case KindReview, KindReviewEntry:
		rs := it.review(revKind)
		if rs == nil {
			return unknownStatus(kind)
		}
		stage := rs.Stage
		if stage == "" {
			stage = StageUnknown
		}
		return Status{
			Kind: kind, RefID: rs.ID,
			Stage: stage, StageDate: rs.StageDate,
			Frozen: rs.Frozen, Done: rs.Done,
			Reviewer: rs.Kind,
			Known:    true,
		}
	}
	return unknownStatus(kind)
}

// FieldView prüft die Sichtbarkeit eines Feldes für den Akteur.
func (it *Item) FieldView(kind RecordKind, field string) Visibility {
	return it.matrix.FieldView(it.actorRole(), kind, field)
}

// Permission prüft, ob der Akteur die Aktion auf der Record-Art jetzt
// ausführen darf. Erst das statische Matrix-Gate (fail closed), dann die
// dynamischen Bedingungen: Creator-Bezug, Coordinator-Land, Fixity und
// Stage. Sicher auch mitten in einer halb angewandten Mutation: fehlende
// Kinder führen nur zu "nein", nie zu einem Fehler.
func (it *Item) Permission(kind RecordKind, action Action) bool {
	role := it.actorRole()
	snap := it.snap
	vocab := it.vocab

	if !it.matrix.Allows(role, kind, it.Stage(kind, it.MyKind()), action) {
		return false
	}
	if action == ActionView {
		return true
	}
	// Alles außer Lesen verlangt einen angemeldeten Akteur.
	if it.actor == nil {
		return false
	}

	uid := it.actor.ID
	isSuper := Superuser(role)
	isCoord := isSuper || (role == RoleCoord && it.actor.Country != "" && it.actor.Country == snap.Country)
	isContribCreator := uid == snap.CreatorID

	switch kind {
	case KindContrib:
		switch action {
		case ActionInsert:
			return true
		case ActionEdit:
			return !snap.Frozen && !snap.Locked && !snap.Done && (isContribCreator || isCoord)
		case CmdStartAssessment:
			return it.mayStartAssessment(isContribCreator, isCoord, isSuper)
		case CmdSelectContrib:
			// Die Selektionskommandos sind der administrative Pfad, der eine
			// Contribution auch wieder zurücksetzen darf; die Stage wird
			// anschließend neu abgeleitet, nie von Hand gesetzt.
			return isCoord && snap.Stage != vocab.SelectYes
		case CmdDeselectContrib:
			return isCoord && snap.Stage != vocab.SelectNo
		case CmdUnselectContrib:
			return isCoord && snap.Stage != vocab.SelectNone
		}
		return false

	case KindAssessment:
		if action == ActionInsert {
			// Alias für startAssessment auf der Record-Ebene.
			return it.mayStartAssessment(isContribCreator, isCoord, isSuper)
		}
		asm := snap.Assessment
		if asm == nil || asm.Frozen || asm.Done {
			return false
		}
		myKind := it.MyKind()
		if action == CmdStartReview {
			return myKind != KindNone && asm.MayAddReview[myKind]
		}
		if uid != asm.CreatorID && !isSuper {
			return false
		}
		switch action {
		case ActionEdit:
			return !asm.Locked
		case CmdSubmitAssessment:
			return asm.Stage == vocab.Complete
		case CmdResubmitAssessment:
			return asm.Stage == vocab.CompleteWithdrawn
		case CmdSubmitRevised:
			return asm.Stage == vocab.CompleteRevised
		case CmdWithdrawAssessment:
			return asm.Stage == vocab.Submitted || asm.Stage == vocab.SubmittedRevised
		}
		return false

	case KindCriteriaEntry:
		asm := snap.Assessment
		if asm == nil || asm.Frozen || asm.Done || asm.Locked {
			return false
		}
		if action == ActionEdit {
			return uid == asm.CreatorID || isSuper
		}
		return false

	case KindReview:
		asm := snap.Assessment
		if asm == nil || asm.Frozen {
			return false
		}
		myKind := it.MyKind()
		if myKind == KindNone {
			return false
		}
		rs := asm.Reviews[myKind]
		switch action {
		case ActionInsert:
			return asm.MayAddReview[myKind]
		case ActionEdit:
			return rs != nil && !rs.Done && !asm.Done
		case CmdReviewAccept, CmdReviewReject, CmdReviewRevise:
			return it.mayDecide(myKind, rs)
		}
		return false

	case KindReviewEntry:
		asm := snap.Assessment
		if asm == nil || asm.Frozen || asm.Done {
			return false
		}
		if action == ActionInsert || action == ActionEdit {
			// Kommentare nur, solange das Assessment im Review steckt.
			return it.MyKind() != KindNone && asm.Locked
		}
		return false
	}

	return false
}

func (it *Item) mayStartAssessment(isCreator, isCoord, isSuper bool) bool {
	snap := it.snap
	if snap.Frozen || snap.Done {
		return false
	}
	if !isCreator && !isCoord && !isSuper {
		return false
	}
	if snap.MayAddAssessment {
		return true
	}
	// Nur ein aktives Assessment; Superuser dürfen administrativ ein
	// weiteres anlegen (das jüngste gültige zählt dann).
	return isSuper
}

// mayDecide prüft die Entscheidungskommandos eines Reviewers. Der Final
// entscheidet erst, wenn der Rat des Experts vorliegt. Nach einer
// Revise-Runde und Neueinreichung darf erneut entschieden werden; innerhalb
// der konfigurierten Gnadenfrist darf eine frische Entscheidung außerdem
// noch einmal umgestoßen werden.
func (it *Item) mayDecide(kind ReviewerKind, rs *ReviewSummary) bool {
	asm := it.snap.Assessment
	vocab := it.vocab
	if rs == nil || !asm.Locked {
		return false
	}
	if kind == KindFinal {
		expert := asm.Reviews[KindExpert]
		if expert == nil || expert.Stage == "" {
			return false
		}
	}
	if rs.Done && it.decisionDelay > 0 && rs.StageDate != nil &&
		time.Since(*rs.StageDate) < it.decisionDelay {
		return true
	}
	if asm.Done {
		return false
	}
	if !rs.Done {
		return true
	}
	// Eine Revise-Entscheidung ist nach erneuter Einreichung wieder offen.
	revise := rs.Stage == vocab.ReviewRevise || rs.Stage == vocab.ReviewAdviseRevise
	return revise && asm.Stage == vocab.SubmittedRevised
}

// Info liefert ausgewählte abgeleitete Werte einer Record-Art, als
// Escape-Hatch für Aufrufer, die Rohdaten statt einer formatierten
// Status-Zeile brauchen. Die legalen Feldnamen sind pro Record-Art
// definiert; unbekannte Namen schlagen mit UnsupportedFieldError fehl.
// Legale Felder auf (noch) fehlenden Records liefern nil-Werte.
func (it *Item) Info(kind RecordKind, revKind ReviewerKind, fields ...string) ([]any, error) {
	values := make([]any, len(fields))
	for i, field := range fields {
		v, ok := it.infoValue(kind, revKind, field)
		if !ok {
			return nil, &UnsupportedFieldError{Kind: kind, Field: field}
		}
		values[i] = v
	}
	return values, nil
}

func (it *Item) infoValue(kind RecordKind, revKind ReviewerKind, field string) (any, bool) {
	snap := it.snap
	switch kind {
	case KindContrib:
		switch field {
		case "id":
			return snap.ContributionID, true
		case "type":
			return snap.Type, true
		case "title":
			return snap.Title, true
		case "country":
			return snap.Country, true
		case "creator":
			return snap.CreatorID, true
		case "stage":
			return snap.Stage, true
		case "stageDate":
			return snap.StageDate, true
		case "frozen":
			return snap.Frozen, true
		case "locked":
			return snap.Locked, true
		case "done":
			return snap.Done, true
		case "mayAdd":
			return snap.MayAddAssessment, true
		}
	case KindAssessment, KindCriteriaEntry:
		asm := snap.Assessment
		get := func(f func(*AssessmentSummary) any) (any, bool) {
			if asm == nil {
				return nil, true
			}
			return f(asm), true
		}
		switch field {
		case "id":
			return get(func(a *AssessmentSummary) any { return a.ID })
		case "title":
			return get(func(a *AssessmentSummary) any { return a.Title })
		case "creator":
			return get(func(a *AssessmentSummary) any { return a.CreatorID })
		case "stage":
			return get(func(a *AssessmentSummary) any { return a.Stage })
		case "stageDate":
			return get(func(a *AssessmentSummary) any { return a.StageDate })
		case "frozen":
			return get(func(a *AssessmentSummary) any { return a.Frozen })
		case "locked":
			return get(func(a *AssessmentSummary) any { return a.Locked })
		case "done":
			return get(func(a *AssessmentSummary) any { return a.Done })
		case "score":
			return get(func(a *AssessmentSummary) any { return a.Score })
		case "nCriteria":
			return get(func(a *AssessmentSummary) any { return a.NCriteria })
		case "nEntries":
			return get(func(a *AssessmentSummary) any { return a.NEntries })
		case "complete":
			return get(func(a *AssessmentSummary) any { return a.Complete })
		case "assignment":
			return get(func(a *AssessmentSummary) any { return a.Assignment })
		case "mayAddReview":
			return get(func(a *AssessmentSummary) any { return a.MayAddReview })
		}
	case KindReview, KindReviewEntry:
		rs := it.review(revKind)
		get := func(f func(*ReviewSummary) any) (any, bool) {
			if rs == nil {
				return nil, true
			}
			return f(rs), true
		}
		switch field {
		case "id":
			return get(func(r *ReviewSummary) any { return r.ID })
		case "kind":
			return get(func(r *ReviewSummary) any { return r.Kind })
		case "creator":
			return get(func(r *ReviewSummary) any { return r.CreatorID })
		case "decision":
			return get(func(r *ReviewSummary) any { return r.Decision })
		case "stage":
			return get(func(r *ReviewSummary) any { return r.Stage })
		case "stageDate":
			return get(func(r *ReviewSummary) any { return r.StageDate })
		case "done":
			return get(func(r *ReviewSummary) any { return r.Done })
		case "frozen":
			return get(func(r *ReviewSummary) any { return r.Frozen })
		}
	}
	return nil, false
}
