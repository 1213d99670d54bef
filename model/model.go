package model

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mbolis/newsroom-forms/schema"
)

type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	PasswordHash []byte `json:"-"`
	IsSuperuser  bool   `json:"is_superuser"`
}

// DisplayName is the full name, or the email for users without one.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

type InvestigationStatus string

const (
	InvestigationDraft     InvestigationStatus = "D"
	InvestigationPublished InvestigationStatus = "P"
	InvestigationArchived  InvestigationStatus = "A"
)

type Investigation struct {
	ID                int64               `json:"id"`
	Name              string              `json:"name"`
	Slug              string              `json:"slug"`
	Status            InvestigationStatus `json:"status"`
	ShortDescription  string              `json:"short_description"`
	Category          string              `json:"category"`
	ResearchQuestions string              `json:"research_questions"`
	Text              string              `json:"text"`
	Methodology       string              `json:"methodology"`
	FAQ               string              `json:"faq"`
	Color             string              `json:"color"`
	DataPrivacyURL    string              `json:"data_privacy_url"`
}

type FormStatus string

const (
	FormDraft       FormStatus = "D"
	FormUnpublished FormStatus = "U"
	FormPublished   FormStatus = "P"
	FormClosed      FormStatus = "C"
	FormArchived    FormStatus = "A"
)

type Form struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Slug            string     `json:"slug"`
	Status          FormStatus `json:"status"`
	InvestigationID int64      `json:"investigation_id"`
}

// FormSchema is the part of a form version that describes its fields and follow-ups.
// Templates and instances share it.
type FormSchema struct {
	FormJSON            json.RawMessage `json:"form_json"`
	UISchemaJSON        json.RawMessage `json:"ui_schema_json"`
	PriorityFields      []string        `json:"priority_fields"`
	EmailTemplate       string          `json:"email_template"`
	EmailTemplateHTML   string          `json:"email_template_html"`
	RedirectURLTemplate string          `json:"redirect_url_template"`
}

// Definition parses the stored step list and UI schema.
func (fs FormSchema) Definition() (*schema.Definition, error) {
	return schema.Parse(fs.FormJSON, fs.UISchemaJSON, fs.PriorityFields)
}

// FormInstance is one immutable version of a form.
type FormInstance struct {
	ID      int64 `json:"id"`
	FormID  int64 `json:"form_id"`
	Version int   `json:"version"`
	FormSchema
}

type FormInstanceTemplate struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	FormSchema
}

type ResponseStatus string

const (
	StatusSubmitted ResponseStatus = "S"
	StatusVerified  ResponseStatus = "V"
	StatusInvalid   ResponseStatus = "I"
)

func (s ResponseStatus) Valid() bool {
	return s == StatusSubmitted || s == StatusVerified || s == StatusInvalid
}

func (s ResponseStatus) Label() string {
	switch s {
	case StatusSubmitted:
		return "Submitted"
	case StatusVerified:
		return "Verified"
	case StatusInvalid:
		return "Invalid"
	}
	return string(s)
}

type FormResponse struct {
	ID                    int64          `json:"id"`
	FormInstanceID        int64          `json:"form_instance_id"`
	JSON                  map[string]any `json:"json"`
	Status                ResponseStatus `json:"status"`
	Token                 string         `json:"-"`
	SubmissionDate        time.Time      `json:"submission_date"`
	LastStatusChangedDate *time.Time     `json:"last_status_changed_date"`
	Tags                  []Tag          `json:"tags"`
	Assignees             []User         `json:"assignees"`

	// Loaded with the response; a response never moves to another version.
	FormInstance *FormInstance `json:"-"`
	FormID       int64         `json:"form_id"`
}

// Email is the submitter's address by convention of the "email" field.
func (r *FormResponse) Email() string {
	s, _ := r.JSON["email"].(string)
	return s
}

type Tag struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	InvestigationID int64  `json:"investigation_id"`
}

type Comment struct {
	ID             int64     `json:"id"`
	AuthorID       int64     `json:"author_id"`
	Author         *User     `json:"author,omitempty"`
	Date           time.Time `json:"date"`
	FormResponseID int64     `json:"form_response_id"`
	Text           string    `json:"text"`
	Archived       bool      `json:"archived"`
}

type Invitation struct {
	ID              int64 `json:"id"`
	UserID          int64 `json:"user_id"`
	User            *User `json:"user,omitempty"`
	InvestigationID int64 `json:"investigation_id"`
	Accepted        *bool `json:"accepted"`
}

// ResponseFilter narrows a response listing. Zero values do not filter.
type ResponseFilter struct {
	Status        ResponseStatus
	Has           string
	Tag           string
	AssigneeEmail string
	Email         string
}

// DateCount is the number of submissions on one calendar day.
type DateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type SubmissionStats struct {
	Total     int `json:"total"`
	Yesterday int `json:"yesterday"`
	ToVerify  int `json:"to_verify"`
}
