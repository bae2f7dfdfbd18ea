package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	QueryListTasks = "list_tasks"

	IntentGreeting     = "greeting"
	IntentGeneralQuery = "general_query"
	IntentClarify      = "clarify"
)

// Action is the structured outcome of intent parsing for one user message.
// At most one category is applied; see the task applier for the precedence.
type Action struct {
	Completions []CompletionRequest `json:"completions,omitempty"`
	Creations   []CreationRequest   `json:"creations,omitempty"`
	Updates     []UpdateRequest     `json:"updates,omitempty"`
	Query       string              `json:"query,omitempty"`
	Intent      string              `json:"intent,omitempty"`
	Response    string              `json:"response,omitempty"`
}

// WantsList reports whether the action asks for the pending view.
func (a *Action) WantsList() bool {
	return a != nil && (a.Query == QueryListTasks || a.Intent == QueryListTasks)
}

// WantsClarification reports whether the parser flagged the message as time-ambiguous.
func (a *Action) WantsClarification() bool {
	return a != nil && a.Intent == IntentClarify
}

// HasMutations reports whether any task-changing category is present.
func (a *Action) HasMutations() bool {
	return a != nil && (len(a.Completions) > 0 || len(a.Creations) > 0 || len(a.Updates) > 0)
}

// IsEmpty reports whether nothing actionable or conversational was produced.
func (a *Action) IsEmpty() bool {
	return a == nil || (!a.HasMutations() && !a.WantsList() && !a.WantsClarification() && strings.TrimSpace(a.Response) == "")
}

// CompletionRequest asks to complete one task.
type CompletionRequest struct {
	ID FlexID `json:"id"`
}

// CreationRequest carries raw creation fields as produced upstream.
type CreationRequest struct {
	Title      string `json:"title"`
	DueDate    string `json:"due_date,omitempty"`
	ReminderAt string `json:"reminder_at,omitempty"`
	Priority   string `json:"priority,omitempty"`
}

// UpdateRequest carries a sparse set of field updates for one task.
type UpdateRequest struct {
	ID     FlexID         `json:"id"`
	Fields map[string]any `json:"fields_to_update"`
}

// FlexID accepts both JSON strings and numbers; parsers are not consistent about it.
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	*id = FlexID(n.String())
	return nil
}

func (id FlexID) String() string {
	return string(id)
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses the timestamp formats emitted by the parser. Zone-less values are
// interpreted in loc.
func ParseTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidTime
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timeLayouts {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, WrapError(ErrCodeInvalid, fmt.Sprintf("unparseable time %q", raw), ErrInvalidTime)
}

// UpdateField enumerates the task attributes an update may touch.
type UpdateField string

const (
	FieldTitle      UpdateField = "title"
	FieldDueDate    UpdateField = "due_date"
	FieldReminderAt UpdateField = "reminder_at"
	FieldPriority   UpdateField = "priority"
	FieldStatus     UpdateField = "status"
)

// ParseUpdateField maps an upstream field name onto the enumeration.
func ParseUpdateField(name string) (UpdateField, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "title":
		return FieldTitle, nil
	case "due_date", "due_at", "due":
		return FieldDueDate, nil
	case "reminder_at", "reminder":
		return FieldReminderAt, nil
	case "priority":
		return FieldPriority, nil
	case "status":
		return FieldStatus, nil
	default:
		return "", WrapError(ErrCodeInvalid, fmt.Sprintf("field %q", name), ErrUnknownField)
	}
}

// Apply sets the field on t from an untyped value. t is left untouched on error.
func (f UpdateField) Apply(t *Task, value any, loc *time.Location) error {
	switch f {
	case FieldTitle:
		return setTitle(t, value)
	case FieldDueDate:
		return setTime(&t.DueAt, value, loc)
	case FieldReminderAt:
		return setTime(&t.ReminderAt, value, loc)
	case FieldPriority:
		s, _ := asString(value)
		t.Priority = ParsePriority(s)
		return nil
	case FieldStatus:
		return setStatus(t, value)
	default:
		return ErrUnknownField
	}
}

func setTitle(t *Task, value any) error {
	s, ok := asString(value)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return ErrEmptyTitle
	}
	t.Title = s
	return nil
}

func setTime(dst **time.Time, value any, loc *time.Location) error {
	if value == nil {
		*dst = nil
		return nil
	}
	s, ok := asString(value)
	if !ok {
		return ErrInvalidTime
	}
	if strings.TrimSpace(s) == "" {
		*dst = nil
		return nil
	}
	parsed, err := ParseTime(s, loc)
	if err != nil {
		return err
	}
	*dst = &parsed
	return nil
}

func setStatus(t *Task, value any) error {
	s, _ := asString(value)
	next := Status(strings.ToLower(strings.TrimSpace(s)))
	switch {
	case next == t.Status:
		return nil
	case next == StatusCompleted && !t.IsCompleted():
		t.Status = StatusCompleted
		return nil
	default:
		return WrapError(ErrCodeInvalid, fmt.Sprintf("%s -> %s", t.Status, next), ErrInvalidTransition)
	}
}

func asString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case fmt.Stringer:
		return v.String(), true
	case nil:
		return "", false
	default:
		return "", false
	}
}
