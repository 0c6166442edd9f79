package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskbridge/agentloop/cache"
	"github.com/taskbridge/agentloop/eventbus"
)

// Execute starts a new task on an IDLE session, transitioning IDLE->PLANNING
// and spawning a detached planning cycle. Returns the new task's ID.
func (e *Engine) Execute(ctx context.Context, description string) (string, error) {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return "", fmt.Errorf("session: execute requires IDLE state, got %s (use follow-up)", e.state)
	}

	task := Task{
		ID:          uuid.NewString(),
		Description: description,
		Status:      TaskRunning,
		CreatedAt:   time.Now(),
	}
	startedAt := time.Now()
	task.StartedAt = &startedAt

	e.tasks = append(e.tasks, task)
	e.currentTaskIndex = len(e.tasks) - 1

	if err := e.transition(ctx, StatePlanning); err != nil {
		e.mu.Unlock()
		return "", err
	}
	if err := e.persistLocked(ctx); err != nil {
		e.mu.Unlock()
		return "", err
	}
	e.publish(eventbus.ActorUser, eventbus.TypeTaskStart, task.ID)
	e.mu.Unlock()

	go e.runPlanningCycle(context.Background())
	return task.ID, nil
}

// FollowUp appends a new pending task to the session's task list. If the
// session is currently terminal (the prior task just completed or failed),
// the new task is promoted to running immediately and a planning cycle is
// restarted; otherwise it waits until the current task terminates.
func (e *Engine) FollowUp(ctx context.Context, description string) (string, error) {
	e.mu.Lock()
	task := Task{
		ID:          uuid.NewString(),
		Description: description,
		Status:      TaskPending,
		CreatedAt:   time.Now(),
	}
	e.tasks = append(e.tasks, task)

	promoted := isTerminal(e.state)
	if promoted {
		e.advanceToNextPendingLocked(ctx)
	}
	if err := e.persistLocked(ctx); err != nil {
		e.mu.Unlock()
		return "", err
	}
	e.mu.Unlock()

	if promoted {
		go e.runPlanningCycle(context.Background())
	}
	return task.ID, nil
}

// advanceToNextPendingLocked finds the earliest pending task, promotes it
// to running, and transitions the FSM back to PLANNING. Caller holds e.mu.
func (e *Engine) advanceToNextPendingLocked(ctx context.Context) {
	for i := range e.tasks {
		if e.tasks[i].Status == TaskPending {
			startedAt := time.Now()
			e.tasks[i].Status = TaskRunning
			e.tasks[i].StartedAt = &startedAt
			e.currentTaskIndex = i
			e.transition(ctx, StatePlanning)
			return
		}
	}
}

// NextAction is the `next-action` poll. It pops the queued action (if the
// session is WAITING_FOR_BROWSER) and transitions to EXECUTING.
func (e *Engine) NextAction(ctx context.Context) (action *Action, waiting bool, taskComplete bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateWaitingForBrowser {
		return nil, true, e.state == StateCompleted, nil
	}

	a, ok, popErr := e.queue.Pop()
	if popErr != nil || !ok {
		return nil, true, false, nil
	}

	e.currentAction = &a
	if err := e.transition(ctx, StateExecuting); err != nil {
		return nil, false, false, err
	}
	if err := e.persistLocked(ctx); err != nil {
		return nil, false, false, err
	}
	return &a, false, false, nil
}

// ActionResult is the `action-result` ingress. It records the outcome,
// updates failure counters, and either transitions back to PLANNING
// (spawning the next planning cycle) or to ERROR once maxFailures is hit.
func (e *Engine) ActionResult(ctx context.Context, result Result) error {
	e.mu.Lock()

	if e.state != StateExecuting || e.currentAction == nil {
		e.mu.Unlock()
		return fmt.Errorf("session: no action in flight")
	}

	action := *e.currentAction
	result.Step = e.step
	record := ActionRecord{Action: action, Result: result, Step: e.step, Timestamp: time.Now()}
	e.actionHistory = append(e.actionHistory, record)
	e.queue.Acknowledge()
	e.currentAction = nil

	if result.Success {
		e.metrics.SuccessfulActions++
		e.consecutiveFailures = 0
	} else {
		e.metrics.FailedActions++
		e.consecutiveFailures++
	}

	if result.BrowserState != nil {
		e.applyBrowserStateLocked(*result.BrowserState)
	}

	e.publish(eventbus.ActorActor, eventbus.TypeActionExecuted, record)

	if e.consecutiveFailures >= e.config.MaxFailures {
		e.failCurrentTaskLocked("consecutive_failures_exceeded")
		e.transition(ctx, StateError)
		err := e.persistLocked(ctx)
		e.publish(eventbus.ActorSystem, eventbus.TypeTaskError, "consecutive_failures_exceeded")
		e.mu.Unlock()
		return err
	}

	if err := e.transition(ctx, StatePlanning); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := e.persistLocked(ctx); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	go e.runPlanningCycle(context.Background())
	return nil
}

// UpdateBrowserState is the `state` ingress: a full BrowserState is
// submitted (e.g. out of band from an action-result, such as after a
// manual client-side navigation).
func (e *Engine) UpdateBrowserState(ctx context.Context, bs BrowserState) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyBrowserStateLocked(bs)
	return e.persistLocked(ctx)
}

// applyBrowserStateLocked installs a new BrowserState snapshot and applies
// the tiered cache's navigation invalidation rule if the URL changed.
// Caller holds e.mu.
func (e *Engine) applyBrowserStateLocked(bs BrowserState) {
	oldURL := ""
	if e.browserState != nil {
		oldURL = e.browserState.URL
	}
	if bs.Timestamp.IsZero() {
		bs.Timestamp = time.Now()
	}
	e.browserState = &bs

	if oldURL != bs.URL {
		e.cache.Invalidate(oldURL, bs.URL)
	}
	if bs.DOM != "" {
		e.cache.Set(cache.TierDOM, cacheKey(bs.URL, "dom"), []byte(bs.DOM))
	}
	if bs.Screenshot != "" {
		e.cache.Set(cache.TierScreenshot, cacheKey(bs.URL, "screenshot"), []byte(bs.Screenshot))
	}
}

func cacheKey(rawURL, contentType string) string {
	return rawURL + "|" + contentType
}

// Pause moves any non-terminal session to PAUSED. The current planning
// cycle (if any) is allowed to finish; the next cycle observes PAUSED and
// skips itself.
func (e *Engine) Pause(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if isTerminal(e.state) {
		return fmt.Errorf("session: cannot pause a terminal session (%s)", e.state)
	}
	prior := e.state
	if err := e.transition(ctx, StatePaused); err != nil {
		return err
	}
	if err := e.persistLocked(ctx); err != nil {
		e.state = prior
		return err
	}
	e.publish(eventbus.ActorUser, eventbus.TypeTaskPause, nil)
	return nil
}

// Resume moves a PAUSED session onward. If a PausePolicy held an action
// pending, it is enqueued directly and the session moves to
// WAITING_FOR_BROWSER; otherwise it returns to PLANNING and a fresh
// planning cycle is spawned.
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StatePaused {
		e.mu.Unlock()
		return fmt.Errorf("session: resume requires PAUSED state, got %s", e.state)
	}

	if e.pendingAction != nil {
		action := *e.pendingAction
		e.pendingAction = nil
		e.queue.Enqueue(action)
		if err := e.transition(ctx, StateWaitingForBrowser); err != nil {
			e.mu.Unlock()
			return err
		}
		if err := e.persistLocked(ctx); err != nil {
			e.mu.Unlock()
			return err
		}
		e.publish(eventbus.ActorUser, eventbus.TypeTaskResume, nil)
		e.mu.Unlock()
		return nil
	}

	if err := e.transition(ctx, StatePlanning); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := e.persistLocked(ctx); err != nil {
		e.mu.Unlock()
		return err
	}
	e.publish(eventbus.ActorUser, eventbus.TypeTaskResume, nil)
	e.mu.Unlock()

	go e.runPlanningCycle(context.Background())
	return nil
}

// Cancel moves any non-terminal session to COMPLETED, drains the action
// queue, and marks the current task cancelled. Any in-flight LLM call
// completes normally but its result is discarded (runPlanningCycle checks
// the state before applying planner output).
func (e *Engine) Cancel(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if isTerminal(e.state) {
		return fmt.Errorf("session: cannot cancel a terminal session (%s)", e.state)
	}
	if task := e.currentTask(); task != nil && task.Status == TaskRunning {
		completedAt := time.Now()
		task.Status = TaskCancelled
		task.CompletedAt = &completedAt
	}
	e.queue.Drain()
	e.currentAction = nil
	e.pendingAction = nil
	if err := e.transition(ctx, StateCompleted); err != nil {
		return err
	}
	if err := e.persistLocked(ctx); err != nil {
		return err
	}
	e.publish(eventbus.ActorUser, eventbus.TypeTaskCancel, nil)
	return nil
}

// State returns a read-only snapshot of the session, used by the `history`
// route.
func (e *Engine) State() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Replay exports the current ActionHistory, final BrowserState, and
// Metrics under the replay key, returning a replay identifier.
func (e *Engine) Replay(ctx context.Context) (string, error) {
	e.mu.Lock()
	export := &ReplayExport{
		SessionID:     e.id,
		ActionHistory: e.actionHistory,
		BrowserState:  e.browserState,
		Metrics:       e.metrics,
		ExportedAt:    time.Now(),
	}
	e.mu.Unlock()

	if err := e.store.SaveReplay(ctx, export); err != nil {
		return "", err
	}
	return "replay-" + e.id, nil
}

// Extract runs the Extractor role over arbitrary content (the `extract`
// route), independent of the FSM's current state.
func (e *Engine) Extract(ctx context.Context, fields []string, content string, extractionPrompt string) (ExtractorOutput, error) {
	e.mu.Lock()
	coordinator := e.coordinator
	sanitized := e.sanitizeUntrusted(content)
	e.mu.Unlock()

	if coordinator == nil {
		return ExtractorOutput{}, fmt.Errorf("session: no coordinator attached")
	}

	out, err := coordinator.Extract(ctx, ExtractorInput{
		Fields:           fields,
		Content:          sanitized,
		ExtractionPrompt: extractionPrompt,
	})
	if err != nil {
		return ExtractorOutput{}, err
	}

	e.mu.Lock()
	e.metrics.LLMCallCount++
	e.metrics.LLMTokensUsed += out.TokensUsed
	e.mu.Unlock()

	return out, nil
}

func (e *Engine) failCurrentTaskLocked(reason string) {
	task := e.currentTask()
	if task == nil {
		return
	}
	completedAt := time.Now()
	task.Status = TaskFailed
	task.Error = reason
	task.CompletedAt = &completedAt
}

func (e *Engine) finalizeCurrentTaskLocked(status TaskStatus, result, errMsg string) {
	task := e.currentTask()
	if task == nil {
		return
	}
	completedAt := time.Now()
	task.Status = status
	task.Result = result
	task.Error = errMsg
	task.CompletedAt = &completedAt
}

func (e *Engine) refreshCacheMetricsLocked() {
	stats := e.cache.Stats()
	var hits, total int64
	for _, s := range stats {
		hits += s.Hits
		total += s.Hits + s.Misses
	}
	if total > 0 {
		e.metrics.CacheHitRate = float64(hits) / float64(total)
	}
}

func tailActionHistory(history []ActionRecord, n int) []ActionRecord {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// runPlanningCycle executes one planning cycle per §4.7: step increment,
// max-steps check, planner invocation (wrapped in the retry executor),
// plan/action installation, and FSM transition. It is always spawned as a
// detached goroutine and guards against double-spawn via planningInFlight.
func (e *Engine) runPlanningCycle(ctx context.Context) {
	e.mu.Lock()
	if e.planningInFlight || e.state != StatePlanning {
		e.mu.Unlock()
		return
	}
	e.planningInFlight = true

	e.step++
	step := e.step
	maxSteps := e.config.MaxSteps

	if step > maxSteps {
		e.failCurrentTaskLocked("max_steps_reached")
		e.transition(ctx, StateError)
		e.planningInFlight = false
		e.persistLocked(ctx)
		e.publish(eventbus.ActorSystem, eventbus.TypeTaskError, "max_steps_reached")
		e.mu.Unlock()
		return
	}

	e.metrics.TotalSteps = step
	e.refreshCacheMetricsLocked()

	task := e.currentTask()
	var taskDesc string
	if task != nil {
		taskDesc = task.Description
	}

	forceRefresh := e.config.PlanningInterval > 0 && step%e.config.PlanningInterval == 0

	var sanitizedState *BrowserState
	if e.browserState != nil {
		copied := *e.browserState
		copied.DOM = e.sanitizeUntrusted(copied.DOM)
		sanitizedState = &copied
	}

	input := PlannerInput{
		TaskDescription: taskDesc,
		BrowserState:    sanitizedState,
		ActionHistory:   tailActionHistory(e.actionHistory, 10),
		CurrentPlan:     e.plan,
		Step:            step,
		MaxSteps:        maxSteps,
		ToolsEnabled:    e.config.ToolsEnabled,
		EnableVision:    e.config.EnableVision,
	}
	if forceRefresh {
		input.CurrentPlan = nil
	}

	coordinator := e.coordinator
	executor := e.executor
	e.mu.Unlock()

	if coordinator == nil {
		e.mu.Lock()
		e.failCurrentTaskLocked("coordinator_unavailable")
		e.transition(ctx, StateError)
		e.planningInFlight = false
		e.persistLocked(ctx)
		e.mu.Unlock()
		return
	}

	var plannerOut PlannerOutput
	err := executor.Execute(ctx, func(ctx context.Context) error {
		out, perr := coordinator.Plan(ctx, input)
		if perr != nil {
			return perr
		}
		plannerOut = out
		return nil
	})

	e.mu.Lock()
	defer func() {
		e.planningInFlight = false
		e.mu.Unlock()
	}()

	// A cancellation raced us: discard this cycle's result entirely.
	if isTerminal(e.state) && e.state != StateError {
		return
	}

	if err != nil {
		e.failCurrentTaskLocked("planner_error: " + err.Error())
		e.transition(ctx, StateError)
		e.persistLocked(ctx)
		e.publish(eventbus.ActorSystem, eventbus.TypeTaskError, err.Error())
		return
	}

	e.metrics.LLMCallCount++
	e.metrics.LLMTokensUsed += plannerOut.TokensUsed
	e.metrics.PlanningCycles++
	if forceRefresh {
		e.metrics.PlanRefreshCycles++
	}

	e.plannerHistory = append(e.plannerHistory, PlannerRecord{
		Input:     input,
		Output:    plannerOut,
		Timestamp: time.Now(),
	})

	if plannerOut.Plan != nil {
		e.plan = plannerOut.Plan
	}
	e.publish(eventbus.ActorPlanner, eventbus.TypePlanGenerated, e.plan)

	if plannerOut.TaskComplete {
		e.finalizeCurrentTaskLocked(TaskCompleted, plannerOut.Result, "")
		e.transition(ctx, StateCompleted)
		e.persistLocked(ctx)
		e.publish(eventbus.ActorSystem, eventbus.TypeTaskComplete, plannerOut.Result)
		e.advanceToNextPendingLocked(ctx)
		if e.state == StatePlanning {
			go e.runPlanningCycle(context.Background())
		}
		return
	}

	if plannerOut.NextAction == nil {
		e.failCurrentTaskLocked("planner_returned_no_action")
		e.transition(ctx, StateError)
		e.persistLocked(ctx)
		return
	}

	nextAction := *plannerOut.NextAction
	toolsEnabled := e.config.ToolsEnabled
	browserState := e.browserState
	e.mu.Unlock()
	actorOut, actorErr := coordinator.Act(ctx, ActorInput{
		Action:       nextAction,
		BrowserState: browserState,
		ToolsEnabled: toolsEnabled,
	})
	e.mu.Lock()

	if actorErr != nil || !actorOut.Success {
		reason := "actor_rejected_action"
		if actorErr != nil {
			reason = actorErr.Error()
		} else if actorOut.Error != "" {
			reason = actorOut.Error
		}
		e.failCurrentTaskLocked(reason)
		e.transition(ctx, StateError)
		e.persistLocked(ctx)
		return
	}

	if actorOut.TaskComplete {
		e.finalizeCurrentTaskLocked(TaskCompleted, actorOut.CompletionResult, "")
		e.transition(ctx, StateCompleted)
		e.persistLocked(ctx)
		e.publish(eventbus.ActorSystem, eventbus.TypeTaskComplete, actorOut.CompletionResult)
		e.advanceToNextPendingLocked(ctx)
		if e.state == StatePlanning {
			go e.runPlanningCycle(context.Background())
		}
		return
	}

	if policy := e.config.PausePolicy; policy != nil {
		if pause, reason := policy.ShouldPause(ctx, nextAction); pause {
			e.pendingAction = &nextAction
			e.transition(ctx, StatePaused)
			e.persistLocked(ctx)
			e.publish(eventbus.ActorSystem, eventbus.TypeTaskPause, reason)
			return
		}
	}

	e.queue.Enqueue(nextAction)
	e.transition(ctx, StateWaitingForBrowser)
	e.persistLocked(ctx)
}
