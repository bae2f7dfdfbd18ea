package memory

import (
	"sort"

	"github.com/fastygo/taskpilot/domain"
)

// sortByCreation gives map-backed listings a stable base order before any view sort.
func sortByCreation(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}
