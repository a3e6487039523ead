package domain

import "time"

// EventType names something that happened as a result of an accepted command.
type EventType string

// Event types.
const (
	EventMoodRecorded                     EventType = "mood.recorded"
	EventRestRecommended                  EventType = "rest.recommended"
	EventRestSelected                     EventType = "rest.selected"
	EventPlanLocked                       EventType = "plan.locked"
	EventRestStarted                      EventType = "rest.started"
	EventRestExtended                     EventType = "rest.extended"
	EventRestExtensionRequestedWithReason EventType = "rest.extension_requested_with_reason"
	EventRestEnded                        EventType = "rest.ended"
	EventExecutionStarted                 EventType = "execution.started"
	EventEveningCompleted                 EventType = "evening.completed"
	EventSleepCutoffReached               EventType = "sleep.cutoff.reached"
	EventAppsUnblocked                    EventType = "apps.unblocked"
	EventAppsBlocked                      EventType = "apps.blocked"
)

// JobType names background work that should happen after a transition.
type JobType string

// Job types.
const (
	JobEndRestWindow       JobType = "end_rest_window"
	JobSleepCutoffEnforcer JobType = "sleep_cutoff_enforcer"
)

// Payload is the free-form body of an event or job.
type Payload map[string]any

// EventRecord is an emitted event.
type EventRecord struct {
	Type    EventType `json:"type"`
	Payload Payload   `json:"payload"`
}

// JobRecord is a queued job.
type JobRecord struct {
	Type    JobType `json:"type"`
	Payload Payload `json:"payload"`
}

// Snapshot is the canonical view of an aggregate returned to clients.
type Snapshot struct {
	SessionID         string         `json:"session_id"`
	UserID            string         `json:"user_id"`
	Status            State          `json:"status"`
	Context           MachineContext `json:"context"`
	ScrollBlockActive bool           `json:"scroll_block_active"`
	UpdatedAt         time.Time      `json:"updated_at"`
	AllowedActions    []Command      `json:"allowed_actions"`
}

// CommandResponse is the outcome of applying one command.
type CommandResponse struct {
	Accepted      bool          `json:"accepted"`
	ErrorCode     string        `json:"error_code,omitempty"`
	Snapshot      Snapshot      `json:"snapshot"`
	EmittedEvents []EventRecord `json:"emitted_events"`
	QueuedJobs    []JobRecord   `json:"queued_jobs"`
}
