package monitor

import "time"

// Status is the last observed health of every registered dependency.
type Status struct {
	Online     bool            `json:"online"`
	Components map[string]bool `json:"components"`
	LastCheck  time.Time       `json:"last_check"`
}
