package workflow

// Action benennt, was ein Akteur mit einem Record tun will: die generischen
// Datenbank-Aktionen plus die Workflow-Kommandos, die auf der Oberfläche
// als Buttons erscheinen.
type Action string

const (
	ActionInsert Action = "insert"
	ActionEdit   Action = "edit"
	ActionView   Action = "view"

	CmdStartAssessment    Action = "startAssessment"
	CmdSubmitAssessment   Action = "submitAssessment"
	CmdResubmitAssessment Action = "resubmitAssessment"
	CmdSubmitRevised      Action = "submitRevised"
	CmdWithdrawAssessment Action = "withdrawAssessment"
	CmdStartReview        Action = "startReview"
	CmdReviewAccept       Action = "reviewAccept"
	CmdReviewReject       Action = "reviewReject"
	CmdReviewRevise       Action = "reviewRevise"
	CmdSelectContrib      Action = "selectContrib"
	CmdDeselectContrib    Action = "deselectContrib"
	CmdUnselectContrib    Action = "unselectContrib"
)

// Rollenleiter. Relationale Rechte (Creator, Coordinator des Landes) sind
// keine Rollen, die prüft WorkflowItem dynamisch.
const (
	RolePublic = "public"
	RoleAuth   = "auth"
	RoleCoord  = "coord"
	RoleOffice = "office"
	RoleSystem = "system"
	RoleRoot   = "root"
)

// Superuser: Backoffice, Sysadmins und Root.
func Superuser(role string) bool {
	return role == RoleOffice || role == RoleSystem || role == RoleRoot
}

// Visibility ist das Ergebnis einer Feld-Sichtbarkeitsprüfung. Hidden ist
// bewusst kein bloßes "deny": das Feld existiert, wird aber geschwärzt
// ausgeliefert.
type Visibility string

const (
	FieldVisible Visibility = "visible"
	FieldHidden  Visibility = "hidden"
)

// Rule erlaubt (role, kind, stage, action). Stage leer = jede Stage.
// Field ist nur für ActionView-Regeln einzelner Felder gesetzt.
type Rule struct {
	Role   string
	Kind   RecordKind
	Stage  Stage
	Action Action
	Field  string
}

type ruleKey struct {
	role   string
	kind   RecordKind
	stage  Stage
	action Action
	field  string
}

// Matrix ist die statische Permission-Matrix: reiner Lookup ohne I/O.
// Unbekannte Kombinationen verweigern (fail closed).
type Matrix struct {
	rules map[ruleKey]struct{}
}

// NewMatrix baut die Matrix aus Regeln, typischerweise aus der
// permission_rules-Referenztabelle geladen.
func NewMatrix(rules []Rule) *Matrix {
	m := &Matrix{rules: make(map[ruleKey]struct{}, len(rules))}
	for _, r := range rules {
		m.rules[ruleKey{r.Role, r.Kind, r.Stage, r.Action, r.Field}] = struct{}{}
	}
	return m
}

// Allows prüft (role, kind, stage, action) gegen die Matrix. Eine Regel
// mit leerer Stage gilt für alle Stages.
func (m *Matrix) Allows(role string, kind RecordKind, stage Stage, action Action) bool {
	if _, ok := m.rules[ruleKey{role, kind, stage, action, ""}]; ok {
		return true
	}
	_, ok := m.rules[ruleKey{role, kind, "", action, ""}]
	return ok
}

// FieldView prüft, ob ein Feld für die Rolle sichtbar ist. Ohne erlaubende
// Regel wird das Feld geschwärzt, nicht verweigert.
func (m *Matrix) FieldView(role string, kind RecordKind, field string) Visibility {
	if _, ok := m.rules[ruleKey{role, kind, "", ActionView, field}]; ok {
		return FieldVisible
	}
	return FieldHidden
}

// DefaultRules liefert die Standard-Matrix des Submission-Workflows. Die
// Seeding-Routine schreibt sie in die permission_rules-Tabelle; geänderte
// Deployments pflegen die Tabelle statt dieses Codes.
func DefaultRules() []Rule {
	authenticated := []string{RoleAuth, RoleCoord, RoleOffice, RoleSystem, RoleRoot}
	coordinating := []string{RoleCoord, RoleOffice, RoleSystem, RoleRoot}

	var rules []Rule
	allow := func(roles []string, kind RecordKind, actions ...Action) {
		for _, role := range roles {
			for _, action := range actions {
				rules = append(rules, Rule{Role: role, Kind: kind, Action: action})
			}
		}
	}
	view := func(roles []string, kind RecordKind, fields ...string) {
		for _, role := range roles {
			for _, field := range fields {
				rules = append(rules, Rule{Role: role, Kind: kind, Action: ActionView, Field: field})
			}
		}
	}

	allow(authenticated, KindContrib, ActionInsert, ActionEdit, CmdStartAssessment)
	allow(coordinating, KindContrib, CmdSelectContrib, CmdDeselectContrib, CmdUnselectContrib)

	allow(authenticated, KindAssessment, ActionInsert, ActionEdit,
		CmdSubmitAssessment, CmdResubmitAssessment, CmdSubmitRevised,
		CmdWithdrawAssessment, CmdStartReview)

	allow(authenticated, KindCriteriaEntry, ActionEdit)

	allow(authenticated, KindReview, ActionInsert, ActionEdit,
		CmdReviewAccept, CmdReviewReject, CmdReviewRevise)

	allow(authenticated, KindReviewEntry, ActionInsert, ActionEdit)

	// Basisdaten einer Contribution sind öffentlich sichtbar, die
	// Kontakt-E-Mail nur für Coordinator aufwärts.
	everyone := append([]string{RolePublic}, authenticated...)
	view(everyone, KindContrib, "title", "type", "year", "country", "contact_person")
	view(coordinating, KindContrib, "contact_email")

	// Lesezugriff auf Record-Ebene: Contributions sind öffentlich,
	// Bewertungsunterlagen erst ab Login.
	allow(everyone, KindContrib, ActionView)
	allow(authenticated, KindAssessment, ActionView)
	allow(authenticated, KindCriteriaEntry, ActionView)
	allow(authenticated, KindReview, ActionView)
	allow(authenticated, KindReviewEntry, ActionView)

	return rules
}
