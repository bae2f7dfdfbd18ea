package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/fastygo/taskpilot/domain"
)

const stampLayout = "2006-01-02 15:04:05"

// BuildSystemPrompt renders the instructions for the model, anchored at now and listing
// the user's pending tasks in display order.
func BuildSystemPrompt(now time.Time, pending []domain.TaskRef) string {
	var tasks, mapping strings.Builder
	for i, t := range pending {
		fmt.Fprintf(&tasks, "%d. %s (Task ID: %s)\n", i+1, t.Title, t.ID)
		fmt.Fprintf(&mapping, "Display #%d = Task ID %s\n", i+1, t.ID)
	}
	if len(pending) == 0 {
		tasks.WriteString("No pending tasks.\n")
		mapping.WriteString("No task mappings.\n")
	}

	current := now.Format(stampLayout)
	today := now.Format("2006-01-02")
	tomorrow := now.AddDate(0, 0, 1).Format("2006-01-02")
	inThirty := now.Add(30 * time.Second).Format(stampLayout)

	var b strings.Builder
	b.WriteString("You are a time-aware assistant managing a to-do list. Understand the user's request, ")
	b.WriteString("correct transcription or spelling errors, and answer with one valid JSON object describing the actions.\n\n")
	fmt.Fprintf(&b, "Current time: %s. Resolve every relative time against it.\n\n", current)
	b.WriteString("User's current tasks:\n")
	b.WriteString(tasks.String())
	b.WriteString("\nTask ID mapping (for updates and completions):\n")
	b.WriteString(mapping.String())
	b.WriteString("\nJSON fields (use only those that apply):\n")
	b.WriteString("- creations: list of {title, due_date, reminder_at, priority}; dates as 'YYYY-MM-DD HH:MM:SS'; priority one of urgent, high, medium, low.\n")
	b.WriteString("- completions: list of {id}.\n")
	b.WriteString("- updates: list of {id, fields_to_update}; fields: title, due_date, reminder_at, priority, status.\n")
	b.WriteString("- query: \"list_tasks\" when the user asks to see tasks.\n")
	b.WriteString("- intent: \"greeting\" or \"general_query\" with a friendly Markdown \"response\" (single asterisks for bold).\n")
	b.WriteString("- intent: \"clarify\" when a task has no usable time at all.\n\n")
	b.WriteString("Examples:\n")
	fmt.Fprintf(&b, "- \"remind me to call mom at 3pm tomorrow\" -> {\"creations\": [{\"title\": \"Call mom\", \"due_date\": \"%s 15:00:00\", \"reminder_at\": \"%s 15:00:00\", \"priority\": \"medium\"}]}\n", tomorrow, tomorrow)
	fmt.Fprintf(&b, "- \"remind me to take a break in 30 seconds\" -> {\"creations\": [{\"title\": \"Take a break\", \"due_date\": \"%s\", \"reminder_at\": \"%s\", \"priority\": \"medium\"}]}\n", inThirty, inThirty)
	fmt.Fprintf(&b, "- \"Go play jirutsu at 8pm\" -> {\"creations\": [{\"title\": \"Go play jujutsu\", \"due_date\": \"%s 20:00:00\", \"reminder_at\": \"%s 20:00:00\", \"priority\": \"medium\"}]}\n", today, today)
	if len(pending) > 0 {
		fmt.Fprintf(&b, "- \"done 1\" -> {\"completions\": [{\"id\": \"%s\"}]}\n", pending[0].ID)
	}
	b.WriteString("- \"show my tasks\" -> {\"query\": \"list_tasks\"}\n")
	b.WriteString("- \"hey\" -> {\"intent\": \"greeting\", \"response\": \"Hello! How can I help you today?\"}\n\n")
	b.WriteString("If the request is unclear, return {}.")
	return b.String()
}
