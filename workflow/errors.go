package workflow

import (
	"errors"
	"fmt"
)

// ErrNotFound meldet eine unbekannte Contribution-, Assessment- oder
// Record-ID. Contract-Verletzung des Aufrufers, wird unverändert
// durchgereicht.
var ErrNotFound = errors.New("record not found")

// ErrNotAllowed meldet eine Mutation, die der Akteur im aktuellen Zustand
// nicht ausführen darf. Der Grund wird absichtlich nicht mitgeliefert.
var ErrNotAllowed = errors.New("not allowed")

// ConfigError meldet fehlende oder inkonsistente Referenzdaten, etwa einen
// Contribution-Typ ohne Rubrik-Eintrag. Ein leerer Rubrik-Eintrag ist kein
// Fehler.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "workflow config: " + e.Msg
}

// UnsupportedFieldError meldet ein Info-Feld, das für die angefragte
// Record-Art nicht definiert ist. Absichtlich laut statt still nil, damit
// Tippfehler im Aufrufer nicht unbemerkt bleiben.
type UnsupportedFieldError struct {
	Kind  RecordKind
	Field string
}

func (e *UnsupportedFieldError) Error() string {
	return fmt.Sprintf("workflow info: field %q not defined for %s", e.Field, e.Kind)
}

// PartialWriteError meldet einen unvollständigen CriteriaEntry-Batch beim
// Anlegen eines Assessments. Das Assessment bleibt bis zur Reparatur im
// Zustand "nicht bewertbar"; der Fehler wird dem Aufrufer gemeldet, damit
// ein Repair-Lauf die fehlenden Einträge nachziehen kann.
type PartialWriteError struct {
	AssessmentID uint
	Want         int
	Got          int
	Cause        error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("assessment %d: criteria batch incomplete (%d of %d inserted): %v",
		e.AssessmentID, e.Got, e.Want, e.Cause)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Cause
}
