// Package domain contains core domain types for the evening ritual service.
package domain

import (
	"time"
)

// State is the position of an evening session in the ritual workflow.
type State string

// Session states.
const (
	StateIdle            State = "IDLE"
	StateMoodCaptured    State = "MOOD_CAPTURED"
	StateRestRecommended State = "REST_RECOMMENDED"
	StatePlanLocked      State = "PLAN_LOCKED"
	StateRestActive      State = "REST_ACTIVE"
	StateExecutionActive State = "EXECUTION_ACTIVE"
	StateComplete        State = "COMPLETE"
	StateSleepCutoff     State = "SLEEP_CUTOFF"
)

// States lists every session state in workflow order.
var States = []State{
	StateIdle,
	StateMoodCaptured,
	StateRestRecommended,
	StatePlanLocked,
	StateRestActive,
	StateExecutionActive,
	StateComplete,
	StateSleepCutoff,
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further commands are accepted from s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateSleepCutoff
}

// Command is a client-issued request to move the session forward.
type Command string

// Commands understood by the state machine.
const (
	CommandRecordMood           Command = "record_mood"
	CommandRecommendRest        Command = "recommend_rest"
	CommandSelectRestDuration   Command = "select_rest_duration"
	CommandLockPlan             Command = "lock_plan"
	CommandStartRest            Command = "start_rest"
	CommandRequestRestExtension Command = "request_rest_extension"
	CommandEndRest              Command = "end_rest"
	CommandStartExecution       Command = "start_execution"
	CommandCompleteEvening      Command = "complete_evening"
	CommandApplySleepCutoff     Command = "apply_sleep_cutoff"
)

// Commands lists every command.
var Commands = []Command{
	CommandRecordMood,
	CommandRecommendRest,
	CommandSelectRestDuration,
	CommandLockPlan,
	CommandStartRest,
	CommandRequestRestExtension,
	CommandEndRest,
	CommandStartExecution,
	CommandCompleteEvening,
	CommandApplySleepCutoff,
}

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	for _, known := range Commands {
		if c == known {
			return true
		}
	}
	return false
}

// ExtensionReason classifies why a rest extension was requested.
// The zero value means no reason was given.
type ExtensionReason string

// Extension reasons.
const (
	ReasonNone                 ExtensionReason = ""
	ReasonFatigue              ExtensionReason = "fatigue"
	ReasonOverwhelm            ExtensionReason = "overwhelm"
	ReasonAvoidance            ExtensionReason = "avoidance"
	ReasonTransitionDifficulty ExtensionReason = "transition_difficulty"
)

// ExtensionReasons lists every non-empty reason.
var ExtensionReasons = []ExtensionReason{
	ReasonFatigue,
	ReasonOverwhelm,
	ReasonAvoidance,
	ReasonTransitionDifficulty,
}

// Valid reports whether r is empty or a known reason.
func (r ExtensionReason) Valid() bool {
	if r == ReasonNone {
		return true
	}
	for _, known := range ExtensionReasons {
		if r == known {
			return true
		}
	}
	return false
}

// MachineContext carries the flags the state machine needs beyond the state itself.
type MachineContext struct {
	RestExtendedOnce bool `json:"rest_extended_once"`
	PlanLocked       bool `json:"plan_locked"`
	RestActive       bool `json:"rest_active"`
}

// Aggregate is the persisted evening state for one (session, user) pair.
type Aggregate struct {
	SessionID         string
	UserID            string
	State             State
	Context           MachineContext
	ScrollBlockActive bool
	UpdatedAt         time.Time
}

// NewAggregate returns the default aggregate for a session that has not been seen yet.
func NewAggregate(sessionID, userID string, now time.Time) *Aggregate {
	return &Aggregate{
		SessionID: sessionID,
		UserID:    userID,
		State:     StateIdle,
		UpdatedAt: now,
	}
}

// Clone returns an independent copy of the aggregate.
func (a *Aggregate) Clone() *Aggregate {
	c := *a
	return &c
}
