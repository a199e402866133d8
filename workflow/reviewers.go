package workflow

import (
	"dariah-contrib/models"
)

// Assignment ist die aktuelle Zuordnung Reviewer-Rolle -> Akteur für ein
// Assessment. Die Engine liest sie nur; wer reviewt, entscheidet ein
// externer Zuteilungsschritt.
type Assignment struct {
	Expert *uint `json:"expert,omitempty"`
	Final  *uint `json:"final,omitempty"`
}

// ResolveAssignment liest die Zuteilung vom Assessment-Record ab.
func ResolveAssignment(a *models.Assessment) Assignment {
	if a == nil {
		return Assignment{}
	}
	return Assignment{Expert: a.ReviewerExpertID, Final: a.ReviewerFinalID}
}

// KindOf liefert die Rolle, die der Akteur aktuell in dieser Zuteilung
// innehat, oder KindNone.
func (asg Assignment) KindOf(userID uint) ReviewerKind {
	if asg.Expert != nil && *asg.Expert == userID {
		return KindExpert
	}
	if asg.Final != nil && *asg.Final == userID {
		return KindFinal
	}
	return KindNone
}

// Classification kennzeichnet Review(-Entry)-Records relativ zur aktuellen
// Zuteilung. Verwaiste Records werden nie herausgefiltert, nur markiert.
type Classification string

const (
	ClassCurrent  Classification = "current"
	ClassOrphaned Classification = "orphaned"
)

// ClassifyAuthor stuft einen Review- oder ReviewEntry-Autor gegen die
// aktuelle Zuteilung ein. Die Rolle wird abgeleitet, nie gespeichert:
// passt der Autor auf keine Rolle (mehr), ist der Record verwaist. Die
// Einstufung folgt immer der Zuteilung zum Abfragezeitpunkt.
func ClassifyAuthor(creatorID uint, asg Assignment) (ReviewerKind, Classification) {
	if kind := asg.KindOf(creatorID); kind != KindNone {
		return kind, ClassCurrent
	}
	return KindNone, ClassOrphaned
}

// ClassifiedReview ist ein Review samt abgeleiteter Rolle und Einstufung,
// wie die Anzeige-Schicht es braucht.
type ClassifiedReview struct {
	Review         models.Review  `json:"review"`
	Kind           ReviewerKind   `json:"kind,omitempty"`
	Classification Classification `json:"classification"`
}

// ClassifiedReviewEntry ist das Gegenstück für ReviewEntry-Records.
type ClassifiedReviewEntry struct {
	Entry          models.ReviewEntry `json:"entry"`
	Kind           ReviewerKind       `json:"kind,omitempty"`
	Classification Classification     `json:"classification"`
}
