// Package machine implements the evening ritual state machine.
//
// Transition is the only authority on which commands are legal. It performs no
// I/O and never mutates its inputs; rejected commands return the state and
// context they were given.
package machine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/evening-ritual/internal/domain"
)

// Error codes reported on rejected commands.
const (
	CodeAlreadyTerminal          = "already_terminal"
	CodeTerminalState            = "terminal_state"
	CodePlanNotLocked            = "plan_not_locked"
	CodeExtensionReasonRequired  = "extension_reason_required"
	CodeAvoidanceExtensionDenied = "avoidance_extension_denied"
)

// ErrUnknownState is returned when the current state is outside the known set.
// It indicates corrupted input rather than a user mistake.
var ErrUnknownState = errors.New("unknown evening state")

// Result is the outcome of a single transition.
type Result struct {
	State     domain.State
	Context   domain.MachineContext
	Accepted  bool
	ErrorCode string
}

// Transition applies command to (state, ctx). reason is only consulted for
// rest extension requests.
func Transition(state domain.State, command domain.Command, ctx domain.MachineContext, reason domain.ExtensionReason) (Result, error) {
	// Sleep cutoff preempts every non-terminal state.
	if command == domain.CommandApplySleepCutoff {
		if state.Terminal() {
			return reject(state, ctx, CodeAlreadyTerminal), nil
		}
		if !state.Valid() {
			return Result{}, fmt.Errorf("%w: %q", ErrUnknownState, state)
		}
		return accept(domain.StateSleepCutoff, ctx), nil
	}

	if state.Terminal() {
		return reject(state, ctx, CodeTerminalState), nil
	}

	switch state {
	case domain.StateIdle:
		if command == domain.CommandRecordMood {
			return accept(domain.StateMoodCaptured, ctx), nil
		}

	case domain.StateMoodCaptured:
		if command == domain.CommandRecommendRest {
			return accept(domain.StateRestRecommended, ctx), nil
		}

	case domain.StateRestRecommended:
		switch command {
		case domain.CommandSelectRestDuration:
			return accept(domain.StateRestRecommended, ctx), nil
		case domain.CommandLockPlan:
			ctx.PlanLocked = true
			return accept(domain.StatePlanLocked, ctx), nil
		}

	case domain.StatePlanLocked:
		if command == domain.CommandStartRest {
			if !ctx.PlanLocked {
				return reject(state, ctx, CodePlanNotLocked), nil
			}
			ctx.RestActive = true
			return accept(domain.StateRestActive, ctx), nil
		}

	case domain.StateRestActive:
		switch command {
		case domain.CommandRequestRestExtension:
			return extendRest(state, ctx, reason), nil
		case domain.CommandEndRest, domain.CommandStartExecution:
			ctx.RestActive = false
			return accept(domain.StateExecutionActive, ctx), nil
		}

	case domain.StateExecutionActive:
		if command == domain.CommandCompleteEvening {
			return accept(domain.StateComplete, ctx), nil
		}

	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownState, state)
	}

	return reject(state, ctx, InvalidFromCode(state)), nil
}

// extendRest grants the first extension freely. Later ones need a reason, and
// avoidance is never a valid one. There is no upper bound on extensions.
func extendRest(state domain.State, ctx domain.MachineContext, reason domain.ExtensionReason) Result {
	if !ctx.RestExtendedOnce {
		ctx.RestExtendedOnce = true
		return accept(state, ctx)
	}
	switch reason {
	case domain.ReasonNone:
		return reject(state, ctx, CodeExtensionReasonRequired)
	case domain.ReasonAvoidance:
		return reject(state, ctx, CodeAvoidanceExtensionDenied)
	}
	return accept(state, ctx)
}

// InvalidFromCode is the rejection code for a command that is not legal from state.
func InvalidFromCode(state domain.State) string {
	return "invalid_from_" + strings.ToLower(string(state))
}

func accept(state domain.State, ctx domain.MachineContext) Result {
	return Result{State: state, Context: ctx, Accepted: true}
}

func reject(state domain.State, ctx domain.MachineContext, code string) Result {
	return Result{State: state, Context: ctx, ErrorCode: code}
}
