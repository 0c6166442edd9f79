package session

import (
	"context"
	"sync"
	"time"

	"github.com/taskbridge/agentloop/cache"
	"github.com/taskbridge/agentloop/core"
	"github.com/taskbridge/agentloop/eventbus"
	"github.com/taskbridge/agentloop/guardrail"
	"github.com/taskbridge/agentloop/queue"
	"github.com/taskbridge/agentloop/resilience"
)

// Snapshot is the serializable projection of an Engine's state. It excludes
// the live sub-objects (cache, queue, event bus, coordinator) that are
// reconstructed on load rather than persisted: the coordinator in
// particular requires an LLM credential that is never persisted, so it is
// re-created lazily on the next execute call.
type Snapshot struct {
	ID                  string          `json:"id"`
	Tasks               []Task          `json:"tasks"`
	CurrentTaskIndex    int             `json:"currentTaskIndex"`
	Step                int             `json:"step"`
	State               LifecycleState  `json:"state"`
	CurrentAction       *Action         `json:"currentAction,omitempty"`
	PendingAction       *Action         `json:"pendingAction,omitempty"`
	ActionHistory       []ActionRecord  `json:"actionHistory"`
	PlannerHistory      []PlannerRecord `json:"plannerHistory"`
	SecurityEvents      []SecurityEvent `json:"securityEvents"`
	BrowserState        *BrowserState   `json:"browserState,omitempty"`
	Plan                *StrategicPlan  `json:"plan,omitempty"`
	Config              Config          `json:"config"`
	Metrics             Metrics         `json:"metrics"`
	ConsecutiveFailures int             `json:"consecutiveFailures"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Engine is the per-session cooperative single-writer actor (C7): it holds
// all session state and orchestrates the cache (C3), action queue (C4),
// event bus (C5), guardrail (C1), retry executor (C2), and a Coordinator
// (C6) behind one mutex so that every mutation is serialized.
type Engine struct {
	mu sync.Mutex

	id                  string
	tasks               []Task
	currentTaskIndex    int
	step                int
	state               LifecycleState
	currentAction       *Action
	pendingAction       *Action // held by PausePolicy until Resume
	actionHistory       []ActionRecord
	plannerHistory      []PlannerRecord
	securityEvents      []SecurityEvent
	browserState        *BrowserState
	plan                *StrategicPlan
	config              Config
	metrics             Metrics
	consecutiveFailures int
	createdAt           time.Time
	updatedAt           time.Time

	planningInFlight bool // double-spawn guard for the detached planning cycle

	cache       *cache.TieredCache
	queue       *queue.ActionQueue[Action]
	bus         *eventbus.Bus
	store       Store
	coordinator Coordinator
	executor    *resilience.Executor
	logger      core.Logger
}

// New creates a fresh Engine in IDLE state. coordinator may be nil; it is
// required before the first execute call succeeds and can be attached
// later via SetCoordinator (e.g. lazily, after reload, once a credential
// arrives with the next execute request).
func New(id string, cfg Config, store Store, coordinator Coordinator, logger core.Logger) *Engine {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	now := time.Now()
	return &Engine{
		id:           id,
		state:        StateIdle,
		config:       cfg,
		store:        store,
		coordinator:  coordinator,
		cache:        cache.New(cfg.CacheStrategy.toCacheConfig()),
		queue:        queue.New[Action](),
		bus:          eventbus.New(),
		executor:     resilience.NewExecutor(cfg.RetryStrategy.toExecutorConfig()),
		logger:       logger,
		createdAt:    now,
		updatedAt:    now,
	}
}

// FromSnapshot reconstructs an Engine from a previously persisted
// Snapshot. The coordinator is not restored (see Snapshot's doc comment)
// and must be attached via SetCoordinator before the next execute call.
func FromSnapshot(snap *Snapshot, store Store, coordinator Coordinator, logger core.Logger) *Engine {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if snap.Config.PausePolicy == nil {
		snap.Config.PausePolicy = AutoApprovePolicy{}
	}
	e := &Engine{
		id:                  snap.ID,
		tasks:               snap.Tasks,
		currentTaskIndex:    snap.CurrentTaskIndex,
		step:                snap.Step,
		state:               snap.State,
		currentAction:       snap.CurrentAction,
		pendingAction:       snap.PendingAction,
		actionHistory:       snap.ActionHistory,
		plannerHistory:      snap.PlannerHistory,
		securityEvents:      snap.SecurityEvents,
		browserState:        snap.BrowserState,
		plan:                snap.Plan,
		config:              snap.Config,
		metrics:             snap.Metrics,
		consecutiveFailures: snap.ConsecutiveFailures,
		createdAt:           snap.CreatedAt,
		updatedAt:           snap.UpdatedAt,
		store:               store,
		coordinator:         coordinator,
		cache:               cache.New(snap.Config.CacheStrategy.toCacheConfig()),
		queue:               queue.New[Action](),
		bus:                 eventbus.New(),
		executor:            resilience.NewExecutor(snap.Config.RetryStrategy.toExecutorConfig()),
		logger:              logger,
	}
	if e.currentAction != nil {
		e.queue.Enqueue(*e.currentAction)
		e.queue.Pop() // restore in-flight marker; action-result is still pending
	}
	return e
}

// SetCoordinator attaches (or replaces) the Coordinator, e.g. lazily after
// a reload once the next execute call supplies a credential.
func (e *Engine) SetCoordinator(c Coordinator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.coordinator = c
}

// ID returns the session's stable identifier.
func (e *Engine) ID() string { return e.id }

// Subscribe registers a new event subscriber on the session's bus.
func (e *Engine) Subscribe() (<-chan eventbus.Event, func()) {
	return e.bus.Subscribe()
}

// snapshot builds a Snapshot of the current state. Caller holds e.mu.
func (e *Engine) snapshotLocked() *Snapshot {
	return &Snapshot{
		ID:                  e.id,
		Tasks:               e.tasks,
		CurrentTaskIndex:    e.currentTaskIndex,
		Step:                e.step,
		State:               e.state,
		CurrentAction:       e.currentAction,
		PendingAction:       e.pendingAction,
		ActionHistory:       e.actionHistory,
		PlannerHistory:      e.plannerHistory,
		SecurityEvents:      e.securityEvents,
		BrowserState:        e.browserState,
		Plan:                e.plan,
		Config:              e.config,
		Metrics:             e.metrics,
		ConsecutiveFailures: e.consecutiveFailures,
		CreatedAt:           e.createdAt,
		UpdatedAt:           e.updatedAt,
	}
}

// persistLocked durably writes the current snapshot. Caller holds e.mu.
// Every FSM mutation is followed by a call to this, per the durability
// requirement: the actor awaits completion before acknowledging
// state-changing ingress.
func (e *Engine) persistLocked(ctx context.Context) error {
	e.updatedAt = time.Now()
	return e.store.Save(ctx, e.snapshotLocked())
}

// publish emits an event on the session's bus, stamping actor and state.
// Caller holds e.mu (or has deliberately released it; Publish itself is
// safe to call concurrently).
func (e *Engine) publish(actor eventbus.Actor, typ string, data interface{}) {
	e.bus.Publish(eventbus.Event{
		Type:  typ,
		Actor: actor,
		State: string(e.state),
		Data:  data,
	})
}

// recordSecurityEvent appends a SecurityEvent and mirrors it on the bus.
// This is the narrow interface the coordinator/guardrail integration uses
// to mutate session state without holding a full-session reference.
func (e *Engine) recordSecurityEvent(category guardrail.ThreatCategory, severity guardrail.Severity) {
	evt := SecurityEvent{
		Category:  string(category),
		Severity:  string(severity),
		Timestamp: time.Now(),
	}
	e.securityEvents = append(e.securityEvents, evt)
	e.metrics.SecurityThreats++
	e.publish(eventbus.ActorSystem, eventbus.TypeSecurityAlert, evt)
}

// sanitizeUntrusted runs text through the guardrail filter, recording any
// threats found as SecurityEvents, and returns the wrapped, sanitized text
// ready to embed in a planner prompt.
func (e *Engine) sanitizeUntrusted(text string) string {
	result := guardrail.Sanitize(text, e.config.StrictSecurity)
	for _, cat := range result.ThreatsFound {
		e.recordSecurityEvent(cat, result.MaxSeverity)
	}
	return guardrail.Wrap(result.Text)
}

// currentTask returns a pointer to the task at currentTaskIndex, or nil if
// there is none.
func (e *Engine) currentTask() *Task {
	if e.currentTaskIndex < 0 || e.currentTaskIndex >= len(e.tasks) {
		return nil
	}
	return &e.tasks[e.currentTaskIndex]
}
