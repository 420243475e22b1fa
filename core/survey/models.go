package survey

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolbond/core"
)

// Roles
const (
	RoleStudent       = "student"
	RoleStaff         = "staff"
	RoleAdministrator = "administrator"
	RoleCounselor     = "counselor"
)

var AllRoles = []string{RoleStudent, RoleStaff, RoleAdministrator, RoleCounselor}

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User is a survey respondent, identified across visits by its access code.
type User struct {
	ID                 string     `json:"id"`
	SchoolID           string     `json:"schoolId"`
	Role               string     `json:"role"`
	AccessCode         string     `json:"accessCode"`
	LastAssessmentDate *time.Time `json:"lastAssessmentDate"` // UTC
	CreatedAt          time.Time  `json:"createdAt"`          // UTC
}

type Option struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

type Question struct {
	ID       string   `json:"id"`
	Role     string   `json:"role"`
	Category string   `json:"category"`
	Text     string   `json:"text"`
	Options  []Option `json:"options"`
	Order    int      `json:"order"`
}

// HasOption reports whether `value` is one of the question's option values.
func (q Question) HasOption(value string) bool {
	for _, opt := range q.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

type Response struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	QuestionID  string    `json:"questionId"`
	Answer      string    `json:"answer"`
	SubmittedAt time.Time `json:"submittedAt"` // UTC
}

// SchoolScore is an immutable snapshot of a school's relationship-health score.
type SchoolScore struct {
	ID             string         `json:"id"`
	SchoolID       string         `json:"schoolId"`
	OverallScore   int            `json:"overallScore"`
	CategoryScores map[string]int `json:"categoryScores"`
	CalculatedAt   time.Time      `json:"calculatedAt"` // UTC
}

type MicroRitual struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Category           string   `json:"category"`
	TargetRelationship string   `json:"targetRelationship"`
	TimeRequired       string   `json:"timeRequired"`
	ParticipantCount   string   `json:"participantCount"`
	Difficulty         string   `json:"difficulty"`
	Steps              []string `json:"steps"`
	ExpectedOutcome    string   `json:"expectedOutcome"`
	ApplicableRoles    []string `json:"applicableRoles"`
}

func (mr MicroRitual) AppliesTo(role string) bool {
	for _, r := range mr.ApplicableRoles {
		if r == role {
			return true
		}
	}
	return false
}

type MicroRitualCompletion struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	MicroRitualID string    `json:"microRitualId"`
	CompletedAt   time.Time `json:"completedAt"` // UTC
}

type MicroRitualAttempt struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	AttemptedRituals string    `json:"attemptedRituals"`
	AttemptedAt      time.Time `json:"attemptedAt"` // UTC
}

// NewUser contains information needed to register a respondent.
// AccessCode is generated when empty.
type NewUser struct {
	SchoolID   string `json:"schoolId" validate:"required,notblank"`
	Role       string `json:"role" validate:"required,role"`
	AccessCode string `json:"accessCode" validate:"omitempty,accesscode"`
}

func (nu *NewUser) Validate(validate *validator.Validate, translator ut.Translator) error {
	nu.SchoolID = core.CleanString(nu.SchoolID)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	nu.AccessCode = NormalizeAccessCode(nu.AccessCode)
	return core.ValidateStruct(validate, translator, nu)
}

type Answer struct {
	QuestionID string `json:"questionId" validate:"required,notblank"`
	Answer     string `json:"answer" validate:"required,notblank"`
}

// NewAssessment is one questionnaire submission.
type NewAssessment struct {
	UserID    string   `json:"userId" validate:"required,notblank"`
	Responses []Answer `json:"responses" validate:"required,min=1,dive"`
}

func (na *NewAssessment) Validate(validate *validator.Validate, translator ut.Translator) error {
	na.UserID = core.CleanString(na.UserID)
	for i := range na.Responses {
		na.Responses[i].QuestionID = core.CleanString(na.Responses[i].QuestionID)
		na.Responses[i].Answer = core.CleanString(na.Responses[i].Answer)
	}
	return core.ValidateStruct(validate, translator, na)
}

// AssessmentResult is returned after a successful submission.
type AssessmentResult struct {
	Message     string      `json:"message"`
	SchoolScore SchoolScore `json:"schoolScore"`
	AccessCode  string      `json:"accessCode"`
}

type NewMicroRitualCompletion struct {
	UserID        string `json:"userId" validate:"required,notblank"`
	MicroRitualID string `json:"microRitualId" validate:"required,notblank"`
}

func (nc *NewMicroRitualCompletion) Validate(validate *validator.Validate, translator ut.Translator) error {
	nc.UserID = core.CleanString(nc.UserID)
	nc.MicroRitualID = core.CleanString(nc.MicroRitualID)
	return core.ValidateStruct(validate, translator, nc)
}

type NewMicroRitualAttempt struct {
	UserID           string `json:"userId" validate:"required,notblank"`
	AttemptedRituals string `json:"attemptedRituals" validate:"required,notblank,max=5000"`
}

func (na *NewMicroRitualAttempt) Validate(validate *validator.Validate, translator ut.Translator) error {
	na.UserID = core.CleanString(na.UserID)
	na.AttemptedRituals = core.CleanString(na.AttemptedRituals)
	return core.ValidateStruct(validate, translator, na)
}
