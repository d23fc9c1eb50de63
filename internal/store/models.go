package store

import (
	"strings"
	"time"
)

// Terminal stages. Every other stage value is a pipeline stage name.
const (
	StageApproved = "APPROVED"
	StageRejected = "REJECTED"
)

// Event types written to the audit log.
const (
	EventCaseCreated      = "CASE_CREATED"
	EventStageChanged     = "STAGE_CHANGED"
	EventAssigned         = "ASSIGNED"
	EventDocUploaded      = "DOC_UPLOADED"
	EventRiskChanged      = "RISK_CHANGED"
	EventNoteAdded        = "NOTE_ADDED"
	EventScreeningStarted = "SCREENING_STARTED"
)

// AdHocStatus is the state of an ad-hoc task.
type AdHocStatus string

const (
	AdHocOpen      AdHocStatus = "OPEN"
	AdHocResponded AdHocStatus = "RESPONDED"
	AdHocComplete  AdHocStatus = "COMPLETE"
)

// Case is the unit of work moving through the approval pipeline.
type Case struct {
	ID        int64      `json:"id"`
	SubjectID int64      `json:"subject_id"`
	Reason    string     `json:"reason,omitempty"`
	Template  string     `json:"template"`
	Stage     string     `json:"stage"`
	Assignee  string     `json:"assignee,omitempty"` // Empty means pooled.
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// Terminal reports whether the case has reached APPROVED or REJECTED.
func (c *Case) Terminal() bool {
	return c.Stage == StageApproved || c.Stage == StageRejected
}

// Comment is an immutable note attached to a case.
type Comment struct {
	ID        int64     `json:"id"`
	CaseID    int64     `json:"case_id"`
	Author    string    `json:"author"`
	Role      string    `json:"role"` // Author's role at the time of writing.
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is an immutable audit record of a state-affecting action on a case.
type Event struct {
	ID          int64     `json:"id"`
	CaseID      int64     `json:"case_id"`
	Type        string    `json:"event_type"`
	Description string    `json:"description"`
	Source      string    `json:"source,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Document is attached evidence. Only metadata is kept here.
type Document struct {
	ID         int64     `json:"id"`
	CaseID     int64     `json:"case_id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	MimeType   string    `json:"mime_type,omitempty"`
	UploadedBy string    `json:"uploaded_by"`
	Comment    string    `json:"comment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// AdHocTask is a free-form request/response exchange between two users.
type AdHocTask struct {
	ID           string      `json:"id"`
	Owner        string      `json:"owner"`
	Assignee     string      `json:"assignee"`
	RequestText  string      `json:"request_text"`
	ClientID     *int64      `json:"client_id,omitempty"`
	Status       AdHocStatus `json:"status"`
	ResponseText string      `json:"response_text,omitempty"`
	Responder    string      `json:"responder,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Activity     []Activity  `json:"activity,omitempty"`
}

// Activity is one entry of an ad-hoc task's log.
type Activity struct {
	Author  string    `json:"author"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Question types.
const (
	QuestionText    = "TEXT"
	QuestionSingle  = "SINGLE_CHOICE"
	QuestionMulti   = "MULTI_CHOICE"
	DefaultTemplate = "kyc"
)

// Question is a questionnaire template item.
type Question struct {
	ID           int64    `json:"id"`
	Template     string   `json:"template"`
	Section      string   `json:"section"`
	SectionOrder int      `json:"section_order"`
	Text         string   `json:"text"`
	Type         string   `json:"type"`
	Mandatory    bool     `json:"mandatory"`
	Options      []string `json:"options,omitempty"`
	DisplayOrder int      `json:"display_order"`
}

// AnswerSet is the ordered, duplicate-free set of values recorded for one
// question. Single-valued answers are sets of one.
type AnswerSet []string

// NewAnswerSet builds a set from values, dropping duplicates and keeping the
// first occurrence order.
func NewAnswerSet(values ...string) AnswerSet {
	var set AnswerSet
	for _, v := range values {
		set = set.Add(v)
	}
	return set
}

// Add returns the set with v appended if not already present.
func (a AnswerSet) Add(v string) AnswerSet {
	if a.Contains(v) {
		return a
	}
	return append(a, v)
}

// Contains reports whether v is a member.
func (a AnswerSet) Contains(v string) bool {
	for _, x := range a {
		if x == v {
			return true
		}
	}
	return false
}

// Blank reports whether the set holds no non-whitespace value.
func (a AnswerSet) Blank() bool {
	for _, v := range a {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Answer is the recorded response to one question for one case.
type Answer struct {
	CaseID     int64     `json:"case_id"`
	QuestionID int64     `json:"question_id"`
	Values     AnswerSet `json:"values"`
	UpdatedBy  string    `json:"updated_by,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ScreeningRequest tracks one watch-list screening run for a subject.
type ScreeningRequest struct {
	ID        string            `json:"id"`
	SubjectID int64             `json:"subject_id"`
	Status    string            `json:"status"`
	Results   []ScreeningResult `json:"results,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ScreeningResult is the outcome for one screening context.
type ScreeningResult struct {
	Context      string `json:"context"`
	Status       string `json:"status"`
	AlertMessage string `json:"alert_message,omitempty"`
	AlertID      string `json:"alert_id,omitempty"`
}

// RiskAssessment is a score/level pair produced by the risk collaborator.
type RiskAssessment struct {
	ID            int64        `json:"id"`
	ClientID      int64        `json:"client_id"`
	OverallScore  int          `json:"overall_score"`
	InitialLevel  string       `json:"initial_level"`
	OverallLevel  string       `json:"overall_level"`
	LogicApplied  string       `json:"logic_applied,omitempty"`
	SMEAssessment string       `json:"sme_assessment,omitempty"`
	Details       []RiskDetail `json:"details,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// RiskDetail is one element of the per-pillar breakdown.
type RiskDetail struct {
	RiskType     string `json:"risk_type"`
	ElementName  string `json:"element_name"`
	ElementValue string `json:"element_value"`
	Score        int    `json:"score"`
	Flag         string `json:"flag,omitempty"`
	LocalRule    string `json:"local_rule,omitempty"`
}
