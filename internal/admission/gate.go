package admission

import "fmt"

// Unlimited marks a plan without a meeting cap
const Unlimited = -1

// planMeetingLimits caps how many meetings each plan may record
var planMeetingLimits = map[string]int{
	"free":    10,
	"plus":    50,
	"premium": Unlimited,
}

// Decision is the outcome of an admission check
type Decision struct {
	Allowed bool
	Plan    string
	Limit   int
}

// PlanStore is the slice of the storage layer the gate consults
type PlanStore interface {
	GetUserPlan(userID string) (string, error)
	CountMeetings(userID string) (int, error)
}

// Gate decides whether an owner may start a new transcription session.
// It is consulted exactly once, before the session registers.
type Gate struct {
	store PlanStore
}

// NewGate creates an admission gate over the given plan store
func NewGate(store PlanStore) *Gate {
	return &Gate{store: store}
}

// MeetingLimit returns the meeting cap for a plan; unknown plans get the
// free-plan limit
func MeetingLimit(plan string) int {
	if limit, ok := planMeetingLimits[plan]; ok {
		return limit
	}
	return planMeetingLimits["free"]
}

// CanStartSession checks the owner's plan against their recorded meetings
func (g *Gate) CanStartSession(ownerID string) (Decision, error) {
	plan, err := g.store.GetUserPlan(ownerID)
	if err != nil {
		return Decision{}, fmt.Errorf("look up plan: %w", err)
	}

	limit := MeetingLimit(plan)
	if limit == Unlimited {
		return Decision{Allowed: true, Plan: plan, Limit: limit}, nil
	}

	count, err := g.store.CountMeetings(ownerID)
	if err != nil {
		return Decision{}, fmt.Errorf("count meetings: %w", err)
	}

	return Decision{
		Allowed: count < limit,
		Plan:    plan,
		Limit:   limit,
	}, nil
}
