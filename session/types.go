// Package session implements the per-session finite-state machine that
// drives the Plan/Act/Report loop (C7), and the data model it mutates.
//
// It is the busiest package in the module: it owns the tiered content
// cache, the action queue, the event bus, and a Coordinator, and
// orchestrates all four of them under one serialized actor per session.
package session

import "time"

// LifecycleState is one of the seven FSM states.
type LifecycleState string

const (
	StateIdle              LifecycleState = "IDLE"
	StatePlanning          LifecycleState = "PLANNING"
	StateExecuting         LifecycleState = "EXECUTING"
	StateWaitingForBrowser LifecycleState = "WAITING_FOR_BROWSER"
	StatePaused            LifecycleState = "PAUSED"
	StateCompleted         LifecycleState = "COMPLETED"
	StateError             LifecycleState = "ERROR"
)

// TaskStatus is one of the six terminal/non-terminal task states.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskPaused    TaskStatus = "paused"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Task is one natural-language unit of work within a session.
type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ActionType is drawn from the fixed browser-action vocabulary.
type ActionType string

const (
	ActionNavigate     ActionType = "navigate"
	ActionClick        ActionType = "click"
	ActionTypeText     ActionType = "type"
	ActionHover        ActionType = "hover"
	ActionSelect       ActionType = "select"
	ActionScroll       ActionType = "scroll"
	ActionScrollToElem ActionType = "scroll_to_element"
	ActionTabNew       ActionType = "tab_new"
	ActionTabSwitch    ActionType = "tab_switch"
	ActionTabClose     ActionType = "tab_close"
	ActionWait         ActionType = "wait"
	ActionScreenshot   ActionType = "screenshot"
	ActionExtract      ActionType = "extract"
	ActionCacheContent ActionType = "cache_content"
	ActionKeyPress     ActionType = "key_press"
	ActionDropdown     ActionType = "dropdown"
	ActionSearchGoogle ActionType = "search_google"
	ActionPagination   ActionType = "pagination"
	ActionComplete     ActionType = "complete"
)

// Action is a single browser directive produced by the planner.
type Action struct {
	ID        string                 `json:"id"`
	Type      ActionType             `json:"type"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Reasoning string                 `json:"reasoning,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Result is the outcome the client reports for an executed action.
type Result struct {
	Success      bool          `json:"success"`
	Data         interface{}   `json:"data,omitempty"`
	Error        string        `json:"error,omitempty"`
	Screenshot   string        `json:"screenshot,omitempty"`
	BrowserState *BrowserState `json:"browserState,omitempty"`
	DurationMs   int64         `json:"durationMs"`
	Step         int           `json:"step"`
}

// BrowserState is an immutable snapshot of client-reported page state.
type BrowserState struct {
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	DOM             string    `json:"dom"`
	Screenshot      string    `json:"screenshot,omitempty"`
	ViewportWidth   int       `json:"viewportWidth"`
	ViewportHeight  int       `json:"viewportHeight"`
	ScrollX         int       `json:"scrollX"`
	ScrollY         int       `json:"scrollY"`
	CanGoBack       bool      `json:"canGoBack"`
	CanGoForward    bool      `json:"canGoForward"`
	Timestamp       time.Time `json:"timestamp"`
}

// Risk is one entry in a StrategicPlan's risk list.
type Risk struct {
	Description string `json:"description"`
	Likelihood  string `json:"likelihood"`
	Impact      string `json:"impact"`
	Mitigation  string `json:"mitigation"`
}

// PlannedAction is one step of a StrategicPlan's roadmap.
type PlannedAction struct {
	Reasoning string `json:"reasoning"`
	Priority  int    `json:"priority"`
}

// StrategicPlan is the planner's multi-step roadmap.
type StrategicPlan struct {
	Strategy        string          `json:"strategy"`
	EstimatedSteps  int             `json:"estimatedSteps"`
	Confidence      float64         `json:"confidence"`
	PlannedActions  []PlannedAction `json:"plannedActions"`
	SuccessCriteria []string        `json:"successCriteria"`
	Risks           []Risk          `json:"risks"`
	RevisionReason  string          `json:"revisionReason,omitempty"`
}

// ActionRecord is one entry of the session's action history.
type ActionRecord struct {
	Action    Action    `json:"action"`
	Result    Result    `json:"result"`
	Step      int       `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// PlannerRecord is one entry of the session's planner history.
type PlannerRecord struct {
	Input     PlannerInput  `json:"input"`
	Output    PlannerOutput `json:"output"`
	Timestamp time.Time     `json:"timestamp"`
}

// SecurityEvent is one guardrail detection, logged and mirrored on the
// event bus, never raised to the caller as an error.
type SecurityEvent struct {
	Category  string    `json:"category"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// Metrics is a passive accumulator updated by the FSM and Coordinator.
type Metrics struct {
	TotalSteps           int     `json:"totalSteps"`
	SuccessfulActions    int     `json:"successfulActions"`
	FailedActions        int     `json:"failedActions"`
	RetriedActions       int     `json:"retriedActions"`
	ExecutionTimeMs      int64   `json:"executionTimeMs"`
	LLMCallCount         int     `json:"llmCallCount"`
	LLMTokensUsed        int     `json:"llmTokensUsed"`
	CacheHitRate         float64 `json:"cacheHitRate"`
	SecurityThreats      int     `json:"securityThreatsDetected"`
	PlanningCycles       int     `json:"planningCycles"`
	PlanRefreshCycles    int     `json:"planRefreshCycles"`
}
