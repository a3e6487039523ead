package machine

import (
	"errors"
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/ashureev/evening-ritual/internal/domain"
)

func TestTransitionHappyPath(t *testing.T) {
	t.Parallel()

	steps := []struct {
		command domain.Command
		want    domain.State
	}{
		{domain.CommandRecordMood, domain.StateMoodCaptured},
		{domain.CommandRecommendRest, domain.StateRestRecommended},
		{domain.CommandSelectRestDuration, domain.StateRestRecommended},
		{domain.CommandLockPlan, domain.StatePlanLocked},
		{domain.CommandStartRest, domain.StateRestActive},
		{domain.CommandRequestRestExtension, domain.StateRestActive},
		{domain.CommandEndRest, domain.StateExecutionActive},
		{domain.CommandCompleteEvening, domain.StateComplete},
	}

	state := domain.StateIdle
	var ctx domain.MachineContext
	for _, step := range steps {
		res, err := Transition(state, step.command, ctx, domain.ReasonNone)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", step.command, err)
		}
		if !res.Accepted {
			t.Fatalf("%s from %s rejected with %q", step.command, state, res.ErrorCode)
		}
		if res.State != step.want {
			t.Fatalf("%s: expected %s, got %s", step.command, step.want, res.State)
		}
		state, ctx = res.State, res.Context
	}

	want := domain.MachineContext{RestExtendedOnce: true, PlanLocked: true, RestActive: false}
	if ctx != want {
		t.Fatalf("unexpected final context: %+v", ctx)
	}
}

func TestTransitionRejectsStartRestBeforePlanLock(t *testing.T) {
	t.Parallel()

	ctx := domain.MachineContext{PlanLocked: false}
	res, err := Transition(domain.StatePlanLocked, domain.CommandStartRest, ctx, domain.ReasonNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Accepted || res.ErrorCode != CodePlanNotLocked {
		t.Fatalf("expected %s rejection, got %+v", CodePlanNotLocked, res)
	}
	if res.State != domain.StatePlanLocked || res.Context != ctx {
		t.Fatalf("rejection must not change state or context: %+v", res)
	}

	ctx.PlanLocked = true
	res, err = Transition(domain.StatePlanLocked, domain.CommandStartRest, ctx, domain.ReasonNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Accepted || res.State != domain.StateRestActive || !res.Context.RestActive {
		t.Fatalf("expected rest to start, got %+v", res)
	}
}

func TestTransitionRestExtensionPolicy(t *testing.T) {
	t.Parallel()

	first := domain.MachineContext{PlanLocked: true, RestActive: true}
	extended := domain.MachineContext{RestExtendedOnce: true, PlanLocked: true, RestActive: true}

	tests := []struct {
		name     string
		ctx      domain.MachineContext
		reason   domain.ExtensionReason
		accepted bool
		code     string
	}{
		{name: "first without reason", ctx: first, accepted: true},
		{name: "first with avoidance", ctx: first, reason: domain.ReasonAvoidance, accepted: true},
		{name: "second without reason", ctx: extended, code: CodeExtensionReasonRequired},
		{name: "second with avoidance", ctx: extended, reason: domain.ReasonAvoidance, code: CodeAvoidanceExtensionDenied},
		{name: "second with fatigue", ctx: extended, reason: domain.ReasonFatigue, accepted: true},
		{name: "second with overwhelm", ctx: extended, reason: domain.ReasonOverwhelm, accepted: true},
		{name: "second with transition difficulty", ctx: extended, reason: domain.ReasonTransitionDifficulty, accepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := Transition(domain.StateRestActive, domain.CommandRequestRestExtension, tt.ctx, tt.reason)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Accepted != tt.accepted || res.ErrorCode != tt.code {
				t.Fatalf("expected accepted=%v code=%q, got accepted=%v code=%q", tt.accepted, tt.code, res.Accepted, res.ErrorCode)
			}
			if res.State != domain.StateRestActive {
				t.Fatalf("extension must stay in REST_ACTIVE, got %s", res.State)
			}
			if tt.accepted && !res.Context.RestExtendedOnce {
				t.Fatal("expected rest_extended_once to be set")
			}
			if !tt.accepted && res.Context != tt.ctx {
				t.Fatalf("rejection changed context: %+v", res.Context)
			}
		})
	}
}

func TestTransitionRepeatedExtensionsHaveNoCap(t *testing.T) {
	t.Parallel()

	ctx := domain.MachineContext{RestExtendedOnce: true, PlanLocked: true, RestActive: true}
	for i := 0; i < 10; i++ {
		res, err := Transition(domain.StateRestActive, domain.CommandRequestRestExtension, ctx, domain.ReasonFatigue)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Accepted {
			t.Fatalf("extension %d rejected with %q", i+3, res.ErrorCode)
		}
		ctx = res.Context
	}
}

func TestTransitionInvalidFromCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state   domain.State
		command domain.Command
		code    string
	}{
		{domain.StateIdle, domain.CommandLockPlan, "invalid_from_idle"},
		{domain.StateMoodCaptured, domain.CommandRecordMood, "invalid_from_mood_captured"},
		{domain.StateRestRecommended, domain.CommandStartRest, "invalid_from_rest_recommended"},
		{domain.StatePlanLocked, domain.CommandLockPlan, "invalid_from_plan_locked"},
		{domain.StateRestActive, domain.CommandCompleteEvening, "invalid_from_rest_active"},
		{domain.StateExecutionActive, domain.CommandEndRest, "invalid_from_execution_active"},
	}

	for _, tt := range tests {
		res, err := Transition(tt.state, tt.command, domain.MachineContext{PlanLocked: true}, domain.ReasonNone)
		if err != nil {
			t.Fatalf("%s/%s: unexpected error: %v", tt.state, tt.command, err)
		}
		if res.Accepted || res.ErrorCode != tt.code {
			t.Errorf("%s/%s: expected %q, got %+v", tt.state, tt.command, tt.code, res)
		}
	}
}

func TestTransitionTerminalStates(t *testing.T) {
	t.Parallel()

	for _, state := range []domain.State{domain.StateComplete, domain.StateSleepCutoff} {
		for _, command := range domain.Commands {
			res, err := Transition(state, command, domain.MachineContext{}, domain.ReasonFatigue)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := CodeTerminalState
			if command == domain.CommandApplySleepCutoff {
				want = CodeAlreadyTerminal
			}
			if res.Accepted || res.ErrorCode != want || res.State != state {
				t.Errorf("%s/%s: expected rejection %q, got %+v", state, command, want, res)
			}
		}
	}
}

func TestTransitionUnknownState(t *testing.T) {
	t.Parallel()

	for _, command := range []domain.Command{domain.CommandRecordMood, domain.CommandApplySleepCutoff} {
		_, err := Transition(domain.State("DAYDREAMING"), command, domain.MachineContext{}, domain.ReasonNone)
		if !errors.Is(err, ErrUnknownState) {
			t.Fatalf("%s: expected ErrUnknownState, got %v", command, err)
		}
	}
}

func TestTransitionProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		state := rapid.SampledFrom(domain.States).Draw(t, "state")
		command := rapid.SampledFrom(domain.Commands).Draw(t, "command")
		reason := rapid.SampledFrom(append([]domain.ExtensionReason{domain.ReasonNone}, domain.ExtensionReasons...)).Draw(t, "reason")
		ctx := domain.MachineContext{
			RestExtendedOnce: rapid.Bool().Draw(t, "rest_extended_once"),
			PlanLocked:       rapid.Bool().Draw(t, "plan_locked"),
			RestActive:       rapid.Bool().Draw(t, "rest_active"),
		}

		res, err := Transition(state, command, ctx, reason)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !res.Accepted {
			if res.ErrorCode == "" {
				t.Fatal("rejection without error code")
			}
			if res.State != state || res.Context != ctx {
				t.Fatalf("rejection mutated state or context: %+v", res)
			}
		}

		if command == domain.CommandApplySleepCutoff {
			if state.Terminal() {
				if res.Accepted || res.ErrorCode != CodeAlreadyTerminal {
					t.Fatalf("expected already_terminal, got %+v", res)
				}
			} else if !res.Accepted || res.State != domain.StateSleepCutoff || res.Context != ctx {
				t.Fatalf("cutoff must preempt %s, got %+v", state, res)
			}
		} else if state.Terminal() && res.ErrorCode != CodeTerminalState {
			t.Fatalf("expected terminal_state, got %+v", res)
		}

		if res.Context.RestActive && !ctx.RestActive && !res.Context.PlanLocked {
			t.Fatal("rest became active without a locked plan")
		}

		allowed := slices.Contains(AllowedActions(state), command)
		if res.Accepted && !allowed {
			t.Fatalf("%s accepted from %s but not advertised", command, state)
		}
		if allowed && !res.Accepted {
			switch res.ErrorCode {
			case CodePlanNotLocked, CodeExtensionReasonRequired, CodeAvoidanceExtensionDenied:
			default:
				t.Fatalf("advertised %s from %s rejected with %q", command, state, res.ErrorCode)
			}
		}
	})
}

func TestTransitionRandomWalkKeepsInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		state := domain.StateIdle
		var ctx domain.MachineContext

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			command := rapid.SampledFrom(domain.Commands).Draw(t, "command")
			reason := rapid.SampledFrom(append([]domain.ExtensionReason{domain.ReasonNone}, domain.ExtensionReasons...)).Draw(t, "reason")

			res, err := Transition(state, command, ctx, reason)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Context.RestActive && !res.Context.PlanLocked {
				t.Fatalf("rest_active without plan_locked after %s", command)
			}
			if !res.State.Terminal() && res.Context.RestActive != (res.State == domain.StateRestActive) {
				t.Fatalf("rest_active=%v in state %s", res.Context.RestActive, res.State)
			}
			state, ctx = res.State, res.Context
		}
	})
}
