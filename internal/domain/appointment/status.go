package appointment

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// transitions lists the legal moves out of each status. rejected and
// completed have none.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCompleted},
	StatusApproved: {StatusCompleted},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseTarget accepts the statuses a doctor may request. pending is never a
// target.
func ParseTarget(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusApproved, StatusRejected, StatusCompleted:
		return s, nil
	}
	return "", fmt.Errorf("invalid target status %q", raw)
}
