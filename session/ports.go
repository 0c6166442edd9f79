package session

import "context"

// PlannerInput is what the Engine hands to the Planner role at the start of
// a planning cycle.
type PlannerInput struct {
	TaskDescription string
	BrowserState    *BrowserState
	ActionHistory   []ActionRecord // tail only: the most recent records, oldest first
	CurrentPlan     *StrategicPlan
	Step            int
	MaxSteps        int
	ToolsEnabled    []ActionType
	EnableVision    bool
}

// PlannerOutput is the Planner role's parsed, validated response.
type PlannerOutput struct {
	Plan          *StrategicPlan
	NextAction    *Action
	Reasoning     string
	Confidence    float64
	NeedsRevision bool
	TaskComplete  bool
	Result        string
	TokensUsed    int
}

// Planner is the role that turns task state into a StrategicPlan and the
// next Action (or a taskComplete decision).
type Planner interface {
	Plan(ctx context.Context, in PlannerInput) (PlannerOutput, error)
}

// ActorInput is what the Engine hands to the Actor role to validate and
// dispatch one action.
type ActorInput struct {
	Action       Action
	BrowserState *BrowserState
	ToolsEnabled []ActionType
}

// ActorOutput is the Actor role's validation/dispatch decision. The Actor
// never executes the browser operation itself; the action is queued for the
// client and the Engine waits for a Result.
type ActorOutput struct {
	Success             bool
	Data                interface{}
	Error               string
	NeedsRetry          bool
	BrowserStateChanged bool
	TaskComplete        bool
	CompletionResult    string
}

// Actor validates an Action against the action vocabulary and the
// session's tool whitelist.
type Actor interface {
	Act(ctx context.Context, in ActorInput) (ActorOutput, error)
}

// ExtractorInput is what the Engine hands to the Extractor role.
type ExtractorInput struct {
	Fields           []string
	Content          string
	ExtractionPrompt string
}

// ExtractorOutput is the Extractor role's parsed result. Fields the LLM did
// not return are present in ExtractedData with a nil value.
type ExtractorOutput struct {
	ExtractedData map[string]interface{}
	Confidence    float64
	TokensUsed    int
}

// Extractor pulls named fields out of arbitrary content via the LLM.
type Extractor interface {
	Extract(ctx context.Context, in ExtractorInput) (ExtractorOutput, error)
}

// Coordinator owns the three roles sharing one LLM capability (C6). The
// Engine depends only on this interface, never on a concrete LLM client, so
// the coordinator package can be swapped or mocked freely.
type Coordinator interface {
	Planner
	Actor
	Extractor
}
