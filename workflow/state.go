package workflow

import (
	"time"
)

// RecordKind benennt eine der Record-Arten, über die die Engine Auskunft
// gibt. Die Aufrufer kennen keine Klassenhierarchie, nur diese Tags.
type RecordKind string

const (
	KindContrib       RecordKind = "contrib"
	KindAssessment    RecordKind = "assessment"
	KindCriteriaEntry RecordKind = "criteriaEntry"
	KindReview        RecordKind = "review"
	KindReviewEntry   RecordKind = "reviewEntry"
)

// ReviewerKind unterscheidet die beiden Reviewer-Rollen eines Assessments.
type ReviewerKind string

const (
	KindNone   ReviewerKind = ""
	KindExpert ReviewerKind = "expert"
	KindFinal  ReviewerKind = "final"
)

// Stage ist ein Punkt im vorwärts gerichteten Lifecycle. Die konkreten
// Namen sind Konfiguration (Vocabulary), keine fixe Enumeration.
type Stage string

// StageUnknown ist der Soft-Fail-Wert von Status-Abfragen: die Rendering-
// Schicht bekommt immer etwas Anzeigbares, nie einen Fehler.
const StageUnknown Stage = "unknown"

// Vocabulary liefert die konfigurierbaren Stage-Namen. Die Engine rechnet
// nur mit den Feldern dieser Struktur; Deployments mit anderem Vokabular
// tauschen die Werte aus, nicht den Code.
type Vocabulary struct {
	// Contribution: Selektionsentscheidung des Coordinators.
	SelectNone Stage `json:"select_none"`
	SelectYes  Stage `json:"select_yes"`
	SelectNo   Stage `json:"select_no"`

	// Assessment-Stufen.
	Incomplete          Stage `json:"incomplete"`
	Complete            Stage `json:"complete"`
	Submitted           Stage `json:"submitted"`
	IncompleteRevised   Stage `json:"incomplete_revised"`
	CompleteRevised     Stage `json:"complete_revised"`
	SubmittedRevised    Stage `json:"submitted_revised"`
	IncompleteWithdrawn Stage `json:"incomplete_withdrawn"`
	CompleteWithdrawn   Stage `json:"complete_withdrawn"`

	// Review-Stufen; der Expert gibt einen Rat, der Final entscheidet.
	ReviewAdviseAccept Stage `json:"review_advise_accept"`
	ReviewAdviseReject Stage `json:"review_advise_reject"`
	ReviewAdviseRevise Stage `json:"review_advise_revise"`
	ReviewAccept       Stage `json:"review_accept"`
	ReviewReject       Stage `json:"review_reject"`
	ReviewRevise       Stage `json:"review_revise"`

	// Decision-Werte auf Review-Records.
	DecisionAccept string `json:"decision_accept"`
	DecisionReject string `json:"decision_reject"`
	DecisionRevise string `json:"decision_revise"`
}

// DefaultVocabulary liefert das Standard-Vokabular des DARIAH-Workflows.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		SelectNone:          "selectNone",
		SelectYes:           "selectYes",
		SelectNo:            "selectNo",
		Incomplete:          "incomplete",
		Complete:            "complete",
		Submitted:           "submitted",
		IncompleteRevised:   "incompleteRevised",
		CompleteRevised:     "completeRevised",
		SubmittedRevised:    "submittedRevised",
		IncompleteWithdrawn: "incompleteWithdrawn",
		CompleteWithdrawn:   "completeWithdrawn",
		ReviewAdviseAccept:  "reviewAdviseAccept",
		ReviewAdviseReject:  "reviewAdviseReject",
		ReviewAdviseRevise:  "reviewAdviseRevise",
		ReviewAccept:        "reviewAccept",
		ReviewReject:        "reviewReject",
		ReviewRevise:        "reviewRevise",
		DecisionAccept:      "Accept",
		DecisionReject:      "Reject",
		DecisionRevise:      "Revise",
	}
}

// Score fasst die Bewertung eines Assessments zusammen. Overall ist der
// Prozentsatz der erreichten Punkte an den relevanten Maxima; Kriterien mit
// negativem Score zählen als nicht zutreffend und fallen heraus.
type Score struct {
	Overall       int `json:"overall"`
	RelevantScore int `json:"relevant_score"`
	RelevantMax   int `json:"relevant_max"`
	AllMax        int `json:"all_max"`
	RelevantN     int `json:"relevant_n"`
	AllN          int `json:"all_n"`
}

// ReviewSummary ist der Snapshot-Anteil eines gültigen Reviews.
type ReviewSummary struct {
	ID        uint         `json:"id"`
	Kind      ReviewerKind `json:"kind"`
	CreatorID uint         `json:"creator_id"`
	Decision  string       `json:"decision,omitempty"`
	Stage     Stage        `json:"stage,omitempty"`
	StageDate *time.Time   `json:"stage_date,omitempty"`
	Done      bool         `json:"done"`
	Frozen    bool         `json:"frozen"`
}

// AssessmentSummary ist der Snapshot-Anteil des gültigen Assessments einer
// Contribution, inklusive der abgeleiteten Reviews.
type AssessmentSummary struct {
	ID        uint   `json:"id"`
	Title     string `json:"title,omitempty"`
	CreatorID uint   `json:"creator_id"`

	Assignment Assignment                      `json:"assignment"`
	Reviews    map[ReviewerKind]*ReviewSummary `json:"reviews"`

	NCriteria int  `json:"n_criteria"` // Soll laut Rubrik-Momentaufnahme
	NEntries  int  `json:"n_entries"`  // tatsächlich vorhandene Einträge
	Complete  bool `json:"complete"`

	Score Score `json:"score"`

	Stage     Stage      `json:"stage"`
	StageDate *time.Time `json:"stage_date,omitempty"`

	Frozen bool `json:"frozen"`
	Locked bool `json:"locked"`
	Done   bool `json:"done"`

	// Pro Reviewer-Rolle: darf der zugeteilte Reviewer noch ein Review anlegen?
	MayAddReview map[ReviewerKind]bool `json:"may_add_review"`
}

// Snapshot ist der komplette berechnete WorkflowState einer Contribution.
// Reiner Cache: verlorene Snapshots sind per RebuildAll wiederherstellbar.
type Snapshot struct {
	ContributionID uint   `json:"contribution_id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Country        string `json:"country,omitempty"`
	CreatorID      uint   `json:"creator_id"`

	Assessment *AssessmentSummary `json:"assessment,omitempty"`

	Stage     Stage      `json:"stage"`
	StageDate *time.Time `json:"stage_date,omitempty"`

	Frozen bool `json:"frozen"`
	Locked bool `json:"locked"`
	Done   bool `json:"done"`

	// Darf (irgendwer mit Berechtigung) noch ein Assessment anlegen?
	MayAddAssessment bool `json:"may_add_assessment"`
}
