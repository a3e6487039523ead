package machine

import "github.com/ashureev/evening-ritual/internal/domain"

// allowedByState mirrors the acceptance rules of Transition. It is advisory:
// clients use it to render controls, the server never validates against it.
var allowedByState = map[domain.State][]domain.Command{
	domain.StateIdle: {
		domain.CommandRecordMood,
		domain.CommandApplySleepCutoff,
	},
	domain.StateMoodCaptured: {
		domain.CommandRecommendRest,
		domain.CommandApplySleepCutoff,
	},
	domain.StateRestRecommended: {
		domain.CommandSelectRestDuration,
		domain.CommandLockPlan,
		domain.CommandApplySleepCutoff,
	},
	domain.StatePlanLocked: {
		domain.CommandStartRest,
		domain.CommandApplySleepCutoff,
	},
	domain.StateRestActive: {
		domain.CommandRequestRestExtension,
		domain.CommandEndRest,
		domain.CommandStartExecution,
		domain.CommandApplySleepCutoff,
	},
	domain.StateExecutionActive: {
		domain.CommandCompleteEvening,
		domain.CommandApplySleepCutoff,
	},
}

// AllowedActions returns the commands a client may offer from state.
// Terminal and unknown states yield an empty, non-nil slice.
func AllowedActions(state domain.State) []domain.Command {
	allowed := allowedByState[state]
	out := make([]domain.Command, len(allowed))
	copy(out, allowed)
	return out
}
