package memory

import (
	"testing"

	"github.com/fastygo/taskpilot/pkg/clock"
	"github.com/fastygo/taskpilot/repository"
	"github.com/fastygo/taskpilot/repository/repotest"
)

func TestTaskRepository(t *testing.T) {
	repotest.RunTaskRepository(t, func(t *testing.T, clk clock.Clock) repository.TaskRepository {
		return NewTaskRepository(clk)
	})
}
