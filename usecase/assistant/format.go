package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/fastygo/taskpilot/domain"
)

const (
	welcomeText = "🤖 *AI Task Assistant*\n\n" +
		"I can help you manage tasks using natural language!\n\n" +
		"*Examples:*\n" +
		"• 'Add task to call mom at 3pm'\n" +
		"• 'Pay John sometime today'\n" +
		"• 'Show my tasks'\n" +
		"• 'Done 1' (mark task 1 complete)\n\n" +
		"Just tell me what you need to do!"

	unknownText     = "I'm not sure how to help. Try creating a task or asking for your '/tasks'."
	genericError    = "Sorry, an error occurred."
	lostTrackText   = "Sorry, I lost track of your original request. Please try again."
	createFailed    = "Sorry, there was an error creating your task. Please try again."
	noTasksText     = "You have no pending tasks. Add one by sending me a message!"
	allDoneText     = "🎊 **All tasks completed! You're all caught up!**"
	tasksHeader     = "📋 **Your Tasks:**\n\n"
	remainingHeader = "📋 **Your Remaining Tasks:**\n\n"
	tipLine         = "\n\n💡 *Tip: Say 'done 1' to complete task #1*"
)

var priorityMarkers = map[domain.Priority]string{
	domain.PriorityUrgent: "🔴 **URGENT**",
	domain.PriorityHigh:   "🟠 **HIGH**",
	domain.PriorityMedium: "🟡",
	domain.PriorityLow:    "🟢",
}

// RenderList renders the pending view, optionally headed by the titles just completed.
// pending must already be in display order.
func RenderList(pending []domain.Task, completed []string, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	var b strings.Builder
	switch len(completed) {
	case 0:
	case 1:
		fmt.Fprintf(&b, "🎉 Great job! Completed: *%s*\n\n", completed[0])
	default:
		fmt.Fprintf(&b, "🎉 Great job! Completed %d tasks.\n\n", len(completed))
	}

	if len(pending) == 0 {
		if len(completed) > 0 {
			b.WriteString(allDoneText)
		} else {
			b.WriteString(noTasksText)
		}
		return b.String()
	}

	if len(completed) > 0 {
		b.WriteString(remainingHeader)
	} else {
		b.WriteString(tasksHeader)
	}
	for i, t := range pending {
		marker, ok := priorityMarkers[t.Priority]
		if !ok {
			marker = "⚪"
		}
		due := ""
		if t.DueAt != nil {
			due = " - Due: " + t.DueAt.In(loc).Format("03:04 PM")
		}
		fmt.Fprintf(&b, "%d. %s %s%s\n", i+1, marker, t.Title, due)
	}
	fmt.Fprintf(&b, "\n_Total: %d pending tasks_", len(pending))
	b.WriteString(tipLine)
	return b.String()
}

func alreadyCompletedText(title string) string {
	return fmt.Sprintf("✅ Task '%s' was already completed.", title)
}

func questionText(preview string) string {
	return fmt.Sprintf("What time would you like to *%s*?", strings.ToLower(preview))
}

func createdText(title string, at time.Time) string {
	return fmt.Sprintf("✅ Task created: *%s* at %s", title, at.Format("03:04 PM"))
}
