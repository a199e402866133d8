package workflow

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"dariah-contrib/models"
)

const (
	uidCreator = 1
	uidCoord   = 2
	uidOffice  = 3
	uidExpert  = 4
	uidFinal   = 5
	uidOther   = 6
)

func newTestEngine(t *testing.T) (*Engine, *memStore) {
	t.Helper()
	store := newMemStore()

	store.types["software"] = models.ContribType{ID: 90, Name: "software", MainType: "main"}
	store.types["service"] = models.ContribType{ID: 91, Name: "service", MainType: "main"}
	store.criteria = []models.Criterion{
		{ID: 11, ContribType: "software", Seq: 0, Title: "Openness of the source code", MaxScore: 4},
		{ID: 12, ContribType: "software", Seq: 1, Title: "Maturity and maintenance", MaxScore: 4},
		{ID: 21, ContribType: "service", Seq: 0, Title: "Relevance", MaxScore: 4},
		{ID: 22, ContribType: "service", Seq: 1, Title: "Documentation", MaxScore: 4},
		{ID: 23, ContribType: "service", Seq: 2, Title: "Interoperability", MaxScore: 4},
		{ID: 24, ContribType: "service", Seq: 3, Title: "Sustainability", MaxScore: 4},
	}
	store.users = map[uint]models.User{
		uidCreator: {ID: uidCreator, Eppn: "creator@uni.example", Role: RoleAuth, Country: "DE"},
		uidCoord:   {ID: uidCoord, Eppn: "coord@uni.example", Role: RoleCoord, Country: "DE"},
		uidOffice:  {ID: uidOffice, Eppn: "office@dariah.example", Role: RoleOffice},
		uidExpert:  {ID: uidExpert, Eppn: "expert@uni.example", Role: RoleAuth},
		uidFinal:   {ID: uidFinal, Eppn: "final@uni.example", Role: RoleAuth},
		uidOther:   {ID: uidOther, Eppn: "other@uni.example", Role: RoleAuth, Country: "FR"},
	}
	store.nextID = 100

	engine := NewEngine(store, NewMatrix(DefaultRules()), DefaultVocabulary(), zap.NewNop())
	return engine, store
}

func testUser(store *memStore, id uint) *models.User {
	u := store.users[id]
	return &u
}

func newContribution(t *testing.T, engine *Engine, store *memStore, contribType string) *models.Contribution {
	t.Helper()
	c := &models.Contribution{
		Type:      contribType,
		Title:     "test contribution",
		Country:   "DE",
		CreatorID: uidCreator,
	}
	if err := store.InsertContribution(context.Background(), c); err != nil {
		t.Fatalf("insert contribution: %v", err)
	}
	if err := engine.Adjust(context.Background(), c.ID, true); err != nil {
		t.Fatalf("adjust new contribution: %v", err)
	}
	return c
}

// fillAssessment bewertet alle Einträge des Assessments mit dem gegebenen
// Score und einer Begründung.
func fillAssessment(t *testing.T, engine *Engine, store *memStore, assessmentID uint, score int) {
	t.Helper()
	entries, err := store.CriteriaEntriesByAssessment(context.Background(), assessmentID)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	evidence := "documented in the submission"
	for i := range entries {
		s := score
		if err := engine.UpdateCriteriaEntry(context.Background(), testUser(store, uidCreator), entries[i].ID, &s, &evidence); err != nil {
			t.Fatalf("update entry %d: %v", entries[i].ID, err)
		}
	}
}

func assignReviewers(t *testing.T, engine *Engine, store *memStore, a *models.Assessment) {
	t.Helper()
	fresh, err := store.AssessmentByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("load assessment: %v", err)
	}
	expert, final := uint(uidExpert), uint(uidFinal)
	fresh.ReviewerExpertID = &expert
	fresh.ReviewerFinalID = &final
	if err := store.UpdateAssessment(context.Background(), fresh); err != nil {
		t.Fatalf("assign reviewers: %v", err)
	}
	if err := engine.Adjust(context.Background(), a.ContributionID, false); err != nil {
		t.Fatalf("adjust after assignment: %v", err)
	}
}

func snapshot(t *testing.T, engine *Engine, contribID uint) *Snapshot {
	t.Helper()
	item, err := engine.Item(context.Background(), contribID, nil)
	if err != nil {
		t.Fatalf("load item: %v", err)
	}
	return item.Snapshot()
}

func TestStartAssessmentExpandsRubric(t *testing.T) {
	engine, store := newTestEngine(t)
	c := newContribution(t, engine, store, "software")

	a, err := engine.StartAssessment(context.Background(), testUser(store, uidCreator), c.ID)
	if err != nil {
		t.Fatalf("start assessment: %v", err)
	}
	if a.Type != "software" {
		t.Errorf("assessment type = %q, want software", a.Type)
	}

	entries, err := store.CriteriaEntriesByAssessment(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for i, e := range entries {
		if e.Seq != i {
			t.Errorf("entry %d has seq %d", i, e.Seq)
		}
		if e.Score != nil {
			t.Errorf("entry %d starts scored", i)
		}
	}

	snap := snapshot(t, engine, c.ID)
	if snap.Assessment == nil {
		t.Fatal("snapshot has no assessment")
	}
	if snap.Assessment.Stage != engine.Vocab().Incomplete {
		t.Errorf("assessment stage = %q, want incomplete", snap.Assessment.Stage)
	}
	if snap.Assessment.NCriteria != 2 || snap.Assessment.NEntries != 2 {
		t.Errorf("criteria counts = %d/%d, want 2/2", snap.Assessment.NEntries, snap.Assessment.NCriteria)
	}
	if snap.MayAddAssessment {
		t.Error("mayAddAssessment still true with an active assessment")
	}
}

func TestSecondAssessmentOnlyForSuperuser(t *testing.T) {
	engine, store := newTestEngine(t)
	c := newContribution(t, engine, store, "software")

	if _, err := engine.StartAssessment(context.Background(), testUser(store, uidCreator), c.ID); err != nil {
		t.Fatalf("first assessment: %v", err)
	}
	if _, err := engine.StartAssessment(context.Background(), testUser(store, uidCreator), c.ID); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("second assessment by creator: err = %v, want ErrNotAllowed", err)
	}

	a2, err := engine.StartAssessment(context.Background(), testUser(store, uidOffice), c.ID)
	if err != nil {
		t.Fatalf("second assessment by office: %v", err)
	}
	snap := snapshot(t, engine, c.ID)
	if snap.Assessment == nil || snap.Assessment.ID != a2.ID {
		t.Errorf("valid assessment = %+v, want the newest (%d)", snap.Assessment, a2.ID)
	}
}

func TestScoreIgnoresNotApplicableCriteria(t *testing.T) {
	engine, store := newTestEngine(t)
	c := newContribution(t, engine, store, "software")
	a, err := engine.StartAssessment(context.Background(), testUser(store, uidCreator), c.ID)
	if err != nil {
		t.Fatalf("start assessment: %v", err)
	}

	entries, _ := store.CriteriaEntriesByAssessment(context.Background(), a.ID)
	evidence := "explained"
	three, notApplicable := 3, -1
	if err := engine.UpdateCriteriaEntry(context.Background(), testUser(store, uidCreator), entries[0].ID, &three, &evidence); err != nil {
		t.Fatalf("score entry 0: %v", err)
	}
	if err := engine.UpdateCriteriaEntry(context.Background(), testUser(store, uidCreator), entries[1].ID, &notApplicable, &evidence); err != nil {
		t.Fatalf("score entry 1: %v", err)
	}

	snap := snapshot(t, engine, c.ID)
	score := snap.Assessment.Score
	if score.RelevantN != 1 || score.AllN != 2 {
		t.Errorf("relevant/all = %d/%d, want 1/2", score.RelevantN, score.AllN)
	}
	if score.RelevantMax != 4 || score.AllMax != 8 {
		t.Errorf("maxima = %d/%d, want 4/8", score.RelevantMax, score.AllMax)
	}
	if score.Overall != 75 {
		t.Errorf("overall = %d, want 75", score.Overall)
	}
	if !snap.Assessment.Complete {
		t.Error("assessment with a not-applicable criterion should still count as complete")
	}
}

func TestSubmissionLifecycle(t *testing.T) {
	engine, store := newTestEngine(t)
	vocab := engine.Vocab()
	c := newContribution(t, engine, store, "software")
	a, err := engine.StartAssessment(context.Background(), testUser(store, uidCreator), c.ID)
	if err != nil {
		t.Fatalf("start assessment: %v", err)
	}
	creator := testUser(store, uidCreator)

	// Unvollständig darf nicht eingereicht werden.
	if err := engine.DoCommand(context.Background(), creator, c.ID, KindAssessment, CmdSubmitAssessment); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("submit incomplete: err = %v, want ErrNotAllowed", err)
	}

	fillAssessment(t, engine, store, a.ID, 3)
	if got := snapshot(t, engine, c.ID).Assessment.Stage; got != vocab.Complete {
		t.Fatalf("stage = %q, want complete", got)
	}

	if err := engine.DoCommand(context.Background(), creator, c.ID, KindAssessment, CmdSubmitAssessment); err != nil {
		t.Fatalf("submit: %v", err)
	}
	snap := snapshot(t, engine, c.ID)
	if snap.Assessment.Stage != vocab.Submitted || !snap.Assessment.Locked {
		t.Fatalf("after submit: stage = %q locked = %v", snap.Assessment.Stage, snap.Assessment.Locked)
	}

	// Gesperrt: keine Bewertungsänderungen mehr.
	entries, _ := store.CriteriaEntriesByAssessment(context.Background(), a.ID)
	four := 4
	if err := engine.UpdateCriteriaEntry(context.Background(), creator, entries[0].ID, &four, nil); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("edit while locked: err = %v, want ErrNotAllowed", err)
	}

	if err := engine.DoCommand(context.Background(), creator, c.ID, KindAssessment, CmdWithdrawAssessment); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := snapshot(t, engine, c.ID).Assessment.Stage; got != vocab.CompleteWithdrawn {
		t.Fatalf("after withdraw: stage = %q, want completeWithdrawn", got)
	}

	if err := engine.DoCommand(context.Background(), creator, c.ID, KindAssessment, CmdResubmitAssessment); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if got := snapshot(t, engine, c.ID).Assessment.Stage; got != vocab.Submitted {
		t.Fatalf("after resubmit: stage = %q, want submitted", got)
	}
}

func TestReviewFlowFinalAfterExpert(t *testing.T) {
	engine, store := newTestEngine(t)
	vocab := engine.Vocab()
	c := newContribution(t, engine, store, "software")
	a, _ := engine.StartAssessment(context.Background(), testUser(store, uidCreator), c.ID)
	fillAssessment(t, engine, store, a.ID, 4)
	if err := engine.DoCommand(context.Background(), testUser(store, uidCreator), c.ID, KindAssessment, CmdSubmitAssessment); err != nil {
		t.Fatalf("submit: %v", err)
	}
	assignReviewers(t, engine, store, a)

	expert := testUser(store, uidExpert)
	final := testUser(store, uidFinal)

	if err := engine.DoCommand(context.Background(), expert, c.ID, KindAssessment, CmdStartReview); err != nil {
		t.Fatalf("expert startReview: %v", err)
	}
	if err := engine.DoCommand(context.Background(), final, c.ID, KindAssessment, CmdStartReview); err != nil {
		t.Fatalf("final startReview: %v", err)
	}

	// Der Final entscheidet erst, wenn der Rat des Experts vorliegt.
	if err := engine.DoCommand(context.Background(), final, c.ID, KindReview, CmdReviewAccept); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("final decision before expert advice: err = %v, want ErrNotAllowed", err)
	}

	if err := engine.DoCommand(context.Background(), expert, c.ID, KindReview, CmdReviewAccept); err != nil {
		t.Fatalf("expert advice: %v", err)
	}
	snap := snapshot(t, engine, c.ID)
	if got := snap.Assessment.Reviews[KindExpert].Stage; got != vocab.ReviewAdviseAccept {
		t.Fatalf("expert stage = %q, want reviewAdviseAccept", got)
	}
	if snap.Done {
		t.Fatal("done before final decision")
	}

	if err := engine.DoCommand(context.Background(), final, c.ID, KindReview, CmdReviewAccept); err != nil {
		t.Fatalf("final decision: %v", err)
	}
	snap = snapshot(t, engine, c.ID)
	if got := snap.Assessment.Reviews[KindFinal].Stage; got != vocab.ReviewAccept {
		t.Fatalf("final stage = %q, want reviewAccept", got)
	}
	if !snap.Done || !snap.Assessment.Done {
		t.Fatal("not done after final accept")
	}

	// Abgeschlossen: auch der Final darf nicht mehr umentscheiden.
	if err := engine.DoCommand(context.Background(), final, c.ID, KindReview, CmdReviewReject); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("decision after done: err = %v, want ErrNotAllowed", err)
	}
}

func TestReviseCycle(t *testing.T) {
	engine, store := newTestEngine(t)
	vocab := engine.Vocab()
	c := newContribution(t, engine, store, "software")
	a, _ := engine.StartAssessment(context.Background(), testUser(store, uidCreator), c.ID)
	fillAssessment(t, engine, store, a.ID, 2)
	creator := testUser(store, uidCreator)
	if err := engine.DoCommand(context.Background(), creator, c.ID, KindAssessment, CmdSubmitAssessment); err != nil {
		t.Fatalf("submit: %v", err)
	}
	assignReviewers(t, engine, store, a)

	expert := testUser(store, uidExpert)
	final := testUser(store, uidFinal)
	if err := engine.DoCommand(context.Background(), expert, c.ID, KindAssessment, CmdStartReview); err != nil {
		t.Fatalf("expert startReview: %v", err)
	}
	if err := engine.DoCommand(context.Background(), final, c.ID, KindAssessment, CmdStartReview); err != nil {
		t.Fatalf("final startReview: %v", err)
	}
	if err := engine.DoCommand(context.Background(), expert, c.ID, KindReview, CmdReviewAccept); err != nil {
		t.Fatalf("expert advice: %v", err)
	}
	if err := engine.DoCommand(context.Background(), final, c.ID, KindReview, CmdReviewRevise); err != nil {
		t.Fatalf("final revise: %v", err)
	}

	// Revise entschieden: zurück in Arbeit, nicht abgeschlossen.
	snap := snapshot(t, engine, c.ID)
	if snap.Done {
		t.Fatal("done after revise decision")
	}
	if got := snap.Assessment.Stage; got != vocab.CompleteRevised {
		t.Fatalf("stage = %q, want completeRevised", got)
	}
	if snap.Assessment.Locked {
		t.Fatal("still locked after revise decision")
	}

	// Nachbessern und erneut einreichen.
	entries, _ := store.CriteriaEntriesByAssessment(context.Background(), a.ID)
	four := 4
	if err := engine.UpdateCriteriaEntry(context.Background(), creator, entries[0].ID, &four, nil); err != nil {
		t.Fatalf("rework entry: %v", err)
	}
	if err := engine.DoCommand(context.Background(), creator, c.ID, KindAssessment, CmdSubmitRevised); err != nil {
		t.Fatalf("submitRevised: %v", err)
	}
	if got := snapshot(t, engine, c.ID).Assessment.Stage; got != vocab.SubmittedRevised {
		t.Fatalf("stage = %q, want submittedRevised", got)
	}

	// Jetzt darf der Final erneut entscheiden.
	if err := engine.DoCommand(context.Background(), final, c.ID, KindReview, CmdReviewAccept); err != nil {
		t.Fatalf("final accept after revision: %v", err)
	}
	if snap := snapshot(t, engine, c.ID); !snap.Done {
		t.Fatal("not done after accept of the revision")
	}
}

func TestSelectionFreezesContribution(t *testing.T) {
	engine, store := newTestEngine(t)
	vocab := engine.Vocab()
	c := newContribution(t, engine, store, "software")
	coord := testUser(store, uidCoord)

	if err := engine.DoCommand(context.Background(), coord, c.ID, KindContrib, CmdSelectContrib); err != nil {
		t.Fatalf("select: %v", err)
	}
	snap := snapshot(t, engine, c.ID)
	if snap.Stage != vocab.SelectYes || !snap.Frozen {
		t.Fatalf("after select: stage = %q frozen = %v", snap.Stage, snap.Frozen)
	}

	// Eingefroren: weder neues Assessment noch Stammdaten-Änderung.
	if _, err := engine.StartAssessment(context.Background(), testUser(store, uidCreator), c.ID); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("startAssessment while frozen: err = %v, want ErrNotAllowed", err)
	}
	item, _ := engine.Item(context.Background(), c.ID, testUser(store, uidCreator))
	if item.Permission(KindContrib, ActionEdit) {
		t.Error("creator may edit a frozen contribution")
	}

	// Der administrative Rückwärtsschritt bleibt möglich.
	if err := engine.DoCommand(context.Background(), coord, c.ID, KindContrib, CmdUnselectContrib); err != nil {
		t.Fatalf("unselect: %v", err)
	}
	snap = snapshot(t, engine, c.ID)
	if snap.Stage != vocab.SelectNone || snap.Frozen {
		t.Fatalf("after unselect: stage = %q frozen = %v", snap.Stage, snap.Frozen)
	}

	// Nicht-Coordinator (falsches Land) darf nicht entscheiden.
	if err := engine.DoCommand(context.Background(), testUser(store, uidOther), c.ID, KindContrib, CmdDeselectContrib); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("deselect by non-coordinator: err = %v, want ErrNotAllowed", err)
	}
}

func TestReviewerReassignmentOrphansRecords(t *testing.T) {
	engine, store := newTestEngine(t)
	c := newContribution(t, engine, store, "software")
	a, _ := engine.StartAssessment(context.Background(), testUser(store, uidCreator), c.ID)
	fillAssessment(t, engine, store, a.ID, 3)
	if err := engine.DoCommand(context.Background(), testUser(store, uidCreator), c.ID, KindAssessment, CmdSubmitAssessment); err != nil {
		t.Fatalf("submit: %v", err)
	}
	assignReviewers(t, engine, store, a)
	if err := engine.DoCommand(context.Background(), testUser(store, uidExpert), c.ID, KindAssessment, CmdStartReview); err != nil {
		t.Fatalf("startReview: %v", err)
	}
	if err := engine.DoCommand(context.Background(), testUser(store, uidExpert), c.ID, KindReview, CmdReviewAccept); err != nil {
		t.Fatalf("expert advice: %v", err)
	}

	// Expert wird ausgetauscht.
	newExpert := uint(uidOther)
	a2, _ := store.AssessmentByID(context.Background(), a.ID)
	a2.ReviewerExpertID = &newExpert
	if err := store.UpdateAssessment(context.Background(), a2); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if err := engine.Adjust(context.Background(), c.ID, false); err != nil {
		t.Fatalf("adjust after reassign: %v", err)
	}

	// Das alte Review zählt nicht mehr, ist aber weiter abrufbar.
	snap := snapshot(t, engine, c.ID)
	if snap.Assessment.Reviews[KindExpert] != nil {
		t.Error("orphaned review still counts as the expert review")
	}
	reviews, err := engine.ClassifiedReviews(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("classified reviews: %v", err)
	}
	if len(reviews) != 1 {
		t.Fatalf("got %d reviews, want 1", len(reviews))
	}
	if reviews[0].Classification != ClassOrphaned || reviews[0].Kind != KindNone {
		t.Errorf("old review classified as %s/%s, want orphaned", reviews[0].Kind, reviews[0].Classification)
	}

	// Der neue Expert beginnt bei Null.
	if err := engine.DoCommand(context.Background(), testUser(store, uidOther), c.ID, KindAssessment, CmdStartReview); err != nil {
		t.Fatalf("new expert startReview: %v", err)
	}
	reviews, _ = engine.ClassifiedReviews(context.Background(), a.ID)
	if len(reviews) != 2 {
		t.Fatalf("got %d reviews, want 2", len(reviews))
	}
}

func TestPartialBatchAndRepair(t *testing.T) {
	engine, store := newTestEngine(t)
	c := newContribution(t, engine, store, "software")

	store.failEntriesAfter = 1
	a, err := engine.StartAssessment(context.Background(), testUser(store, uidCreator), c.ID)
	var partial *PartialWriteError
	if !errors.As(err, &partial) {
		t.Fatalf("err = %v, want PartialWriteError", err)
	}
	if partial.Want != 2 || partial.Got != 1 {
		t.Fatalf("partial = %d/%d, want 1/2", partial.Got, partial.Want)
	}

	// Der Snapshot sieht den Teilzustand, keine Phantom-Einträge.
	snap := snapshot(t, engine, c.ID)
	if snap.Assessment == nil || snap.Assessment.NEntries != 1 || snap.Assessment.Complete {
		t.Fatalf("snapshot after partial batch: %+v", snap.Assessment)
	}

	store.failEntriesAfter = -1
	added, err := engine.RepairAssessment(context.Background(), testUser(store, uidCreator), a.ID)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if added != 1 {
		t.Fatalf("repair added %d entries, want 1", added)
	}
	entries, _ := store.CriteriaEntriesByAssessment(context.Background(), a.ID)
	if len(entries) != 2 {
		t.Fatalf("got %d entries after repair, want 2", len(entries))
	}
	if entries[0].Seq != 0 || entries[1].Seq != 1 {
		t.Errorf("seq after repair = %d,%d, want 0,1", entries[0].Seq, entries[1].Seq)
	}

	// Nochmal reparieren ist ein No-op.
	added, err = engine.RepairAssessment(context.Background(), testUser(store, uidCreator), a.ID)
	if err != nil || added != 0 {
		t.Fatalf("second repair: added = %d err = %v", added, err)
	}
}

func TestAdjustIsIdempotent(t *testing.T) {
	engine, store := newTestEngine(t)
	c := newContribution(t, engine, store, "software")
	a, _ := engine.StartAssessment(context.Background(), testUser(store, uidCreator), c.ID)
	fillAssessment(t, engine, store, a.ID, 3)

	if err := engine.Adjust(context.Background(), c.ID, false); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	first, err := store.WorkflowStateByContribution(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if err := engine.Adjust(context.Background(), c.ID, false); err != nil {
		t.Fatalf("second adjust: %v", err)
	}
	second, _ := store.WorkflowStateByContribution(context.Background(), c.ID)

	if !bytes.Equal(first.Data, second.Data) {
		t.Errorf("snapshot changed without record changes:\n%s\n%s", first.Data, second.Data)
	}
	if first.Stage != second.Stage || first.Frozen != second.Frozen {
		t.Error("plucked columns changed without record changes")
	}
}

func TestRebuildAllRestoresCache(t *testing.T) {
	engine, store := newTestEngine(t)
	c1 := newContribution(t, engine, store, "software")
	c2 := newContribution(t, engine, store, "service")
	a, _ := engine.StartAssessment(context.Background(), testUser(store, uidCreator), c1.ID)
	fillAssessment(t, engine, store, a.ID, 3)
	if err := engine.Adjust(context.Background(), c1.ID, false); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	before, _ := store.WorkflowStateByContribution(context.Background(), c1.ID)

	n, err := engine.RebuildAll(context.Background())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if n != 2 {
		t.Fatalf("rebuilt %d snapshots, want 2", n)
	}
	after, err := store.WorkflowStateByContribution(context.Background(), c1.ID)
	if err != nil {
		t.Fatalf("state after rebuild: %v", err)
	}
	if !bytes.Equal(before.Data, after.Data) {
		t.Error("rebuild produced a different snapshot than adjust")
	}
	if _, err := store.WorkflowStateByContribution(context.Background(), c2.ID); err != nil {
		t.Errorf("state for second contribution missing after rebuild: %v", err)
	}
}

func TestDecisionGraceWindow(t *testing.T) {
	engine, store := newTestEngine(t)
	engine.SetDecisionDelay(time.Hour)
	vocab := engine.Vocab()
	c := newContribution(t, engine, store, "software")
	a, _ := engine.StartAssessment(context.Background(), testUser(store, uidCreator), c.ID)
	fillAssessment(t, engine, store, a.ID, 4)
	if err := engine.DoCommand(context.Background(), testUser(store, uidCreator), c.ID, KindAssessment, CmdSubmitAssessment); err != nil {
		t.Fatalf("submit: %v", err)
	}
	assignReviewers(t, engine, store, a)

	expert := testUser(store, uidExpert)
	final := testUser(store, uidFinal)
	for _, u := range []*models.User{expert, final} {
		if err := engine.DoCommand(context.Background(), u, c.ID, KindAssessment, CmdStartReview); err != nil {
			t.Fatalf("startReview for %d: %v", u.ID, err)
		}
	}
	if err := engine.DoCommand(context.Background(), expert, c.ID, KindReview, CmdReviewAccept); err != nil {
		t.Fatalf("expert advice: %v", err)
	}
	if err := engine.DoCommand(context.Background(), final, c.ID, KindReview, CmdReviewAccept); err != nil {
		t.Fatalf("final decision: %v", err)
	}

	// Innerhalb der Frist darf der Final seine Entscheidung umstoßen.
	if err := engine.DoCommand(context.Background(), final, c.ID, KindReview, CmdReviewReject); err != nil {
		t.Fatalf("revoke within grace window: %v", err)
	}
	snap := snapshot(t, engine, c.ID)
	if got := snap.Assessment.Reviews[KindFinal].Stage; got != vocab.ReviewReject {
		t.Fatalf("final stage after revocation = %q, want reviewReject", got)
	}

	// Abgelaufene Frist: wieder zu.
	fresh, _ := store.AssessmentByID(context.Background(), a.ID)
	reviews, _ := store.ReviewsByAssessment(context.Background(), fresh.ID)
	past := time.Now().Add(-2 * time.Hour)
	for i := range reviews {
		if reviews[i].CreatorID == uidFinal {
			reviews[i].DateDecided = &past
			if err := store.UpdateReview(context.Background(), &reviews[i]); err != nil {
				t.Fatalf("age decision: %v", err)
			}
		}
	}
	if err := engine.Adjust(context.Background(), c.ID, false); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if err := engine.DoCommand(context.Background(), final, c.ID, KindReview, CmdReviewAccept); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("decision after expired window: err = %v, want ErrNotAllowed", err)
	}
}

func TestTypeChangeInvalidatesAssessment(t *testing.T) {
	engine, store := newTestEngine(t)
	c := newContribution(t, engine, store, "software")
	if _, err := engine.StartAssessment(context.Background(), testUser(store, uidCreator), c.ID); err != nil {
		t.Fatalf("start assessment: %v", err)
	}

	c2, _ := store.ContributionByID(context.Background(), c.ID)
	c2.Type = "service"
	if err := store.UpdateContribution(context.Background(), c2); err != nil {
		t.Fatalf("update type: %v", err)
	}
	if err := engine.Adjust(context.Background(), c.ID, false); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	snap := snapshot(t, engine, c.ID)
	if snap.Assessment != nil {
		t.Error("assessment with stale type still counts as valid")
	}
	if !snap.MayAddAssessment {
		t.Error("mayAddAssessment false although no valid assessment remains")
	}
}

func TestUnknownContributionType(t *testing.T) {
	engine, store := newTestEngine(t)
	c := &models.Contribution{Type: "poetry", Title: "odd one", CreatorID: uidCreator}
	if err := store.InsertContribution(context.Background(), c); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// Ohne Assessment ist der Typ egal.
	if err := engine.Adjust(context.Background(), c.ID, true); err != nil {
		t.Fatalf("adjust without assessment: %v", err)
	}

	// Assessment anlegen scheitert an der fehlenden Rubrik, laut und früh.
	_, err := engine.StartAssessment(context.Background(), testUser(store, uidCreator), c.ID)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}
