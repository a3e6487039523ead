package evening

import "github.com/ashureev/evening-ritual/internal/domain"

// commandEvents maps commands to the single event they emit on acceptance.
// Extension and cutoff are handled in emitCommandEvents; start_rest,
// end_rest and start_execution only produce events through effectRules.
var commandEvents = map[domain.Command]domain.EventType{
	domain.CommandRecordMood:         domain.EventMoodRecorded,
	domain.CommandRecommendRest:      domain.EventRestRecommended,
	domain.CommandSelectRestDuration: domain.EventRestSelected,
	domain.CommandLockPlan:           domain.EventPlanLocked,
	domain.CommandCompleteEvening:    domain.EventEveningCompleted,
}

// anyState matches every previous state in an effect rule.
const anyState domain.State = ""

// effectRule describes what an accepted transition from From to To triggers.
type effectRule struct {
	From   domain.State
	To     domain.State
	Events []domain.EventType
	Jobs   []domain.JobType
	// Block is the new scroll_block_active value, nil when the rule leaves it alone.
	Block *bool
}

func (r effectRule) matches(prev, next domain.State) bool {
	return (r.From == anyState || r.From == prev) && r.To == next
}

// effectRules are evaluated top to bottom; the order fixes the order of
// emitted events and queued jobs.
var effectRules = []effectRule{
	{
		From:   domain.StatePlanLocked,
		To:     domain.StateRestActive,
		Events: []domain.EventType{domain.EventRestStarted, domain.EventAppsUnblocked},
		Jobs:   []domain.JobType{domain.JobEndRestWindow},
		Block:  ptr(false),
	},
	{
		From:   domain.StateRestActive,
		To:     domain.StateExecutionActive,
		Events: []domain.EventType{domain.EventRestEnded, domain.EventExecutionStarted, domain.EventAppsBlocked},
		Block:  ptr(true),
	},
	{
		From:   anyState,
		To:     domain.StateSleepCutoff,
		Events: []domain.EventType{domain.EventAppsBlocked},
		Jobs:   []domain.JobType{domain.JobSleepCutoffEnforcer},
		Block:  ptr(true),
	},
}

// matchingRules returns the rules triggered by prev -> next, in table order.
func matchingRules(prev, next domain.State) []effectRule {
	var out []effectRule
	for _, r := range effectRules {
		if r.matches(prev, next) {
			out = append(out, r)
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }
