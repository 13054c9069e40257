package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxhome/assist-service/internal/catalog"
	"github.com/voxhome/assist-service/internal/dispatch"
	"github.com/voxhome/assist-service/internal/llm"
	"github.com/voxhome/assist-service/internal/metrics"
)

// ErrRoundLimit is returned when the model keeps requesting tools past the
// configured round maximum. The loop is the only place rounds are counted,
// which guarantees termination.
var ErrRoundLimit = errors.New("tool round limit exceeded")

// Status is the lifecycle of one turn.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// State is the loop's position within a turn.
type State string

const (
	StateAwaitingModel    State = "awaiting_model"
	StateDispatchingTools State = "dispatching_tools"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
)

// Turn holds the working state of one user utterance. It is owned by the
// controller invocation handling that utterance and never shared across
// concurrent turns.
type Turn struct {
	ID         uuid.UUID
	Transcript []llm.Message
	Rounds     int
	Status     Status
	State      State
	FinalText  string
}

// Model is the inference collaborator surface the loop needs.
type Model interface {
	Converse(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.Reply, error)
}

// ToolDispatcher executes one validated tool call.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) dispatch.Result
}

// EventSink receives turn lifecycle and tool-call notifications. A nil sink
// disables publishing.
type EventSink interface {
	TurnFinished(turnID string, status string, rounds int)
	ToolDispatched(turnID string, result dispatch.Result)
}

// Controller drives the request/response loop with the model until it
// produces a final answer or a limit is hit.
type Controller struct {
	model        Model
	dispatcher   ToolDispatcher
	catalog      *catalog.Catalog
	maxRounds    int
	roundTimeout time.Duration
	events       EventSink
}

func NewController(model Model, dispatcher ToolDispatcher, cat *catalog.Catalog, maxRounds int, roundTimeout time.Duration, events EventSink) *Controller {
	if maxRounds < 1 {
		maxRounds = 1
	}
	return &Controller{
		model:        model,
		dispatcher:   dispatcher,
		catalog:      cat,
		maxRounds:    maxRounds,
		roundTimeout: roundTimeout,
		events:       events,
	}
}

// Run processes one user utterance. history carries earlier turns of the same
// conversation; systemPrompt is prepended. The returned Turn is terminal:
// StatusCompleted with FinalText set, or StatusFailed with a non-nil error.
func (c *Controller) Run(ctx context.Context, systemPrompt, utterance string, history []llm.Message) (*Turn, error) {
	turn := &Turn{
		ID:     uuid.New(),
		Status: StatusInProgress,
		State:  StateAwaitingModel,
	}
	turn.Transcript = append(turn.Transcript, llm.Message{Role: "system", Content: systemPrompt})
	turn.Transcript = append(turn.Transcript, history...)
	turn.Transcript = append(turn.Transcript, llm.Message{Role: "user", Content: utterance})

	tools := c.toolDefinitions()

	for {
		if turn.Rounds >= c.maxRounds {
			return c.fail(turn, fmt.Errorf("%w after %d rounds", ErrRoundLimit, turn.Rounds))
		}

		reply, err := c.converseOnce(ctx, turn.Transcript, tools)
		if err != nil {
			return c.fail(turn, err)
		}

		if len(reply.ToolCalls) == 0 {
			turn.Transcript = append(turn.Transcript, llm.Message{Role: "assistant", Content: reply.Text})
			turn.FinalText = reply.Text
			turn.Status = StatusCompleted
			turn.State = StateCompleted
			metrics.TurnsTotal.WithLabelValues(string(StatusCompleted)).Inc()
			metrics.RoundsPerTurn.Observe(float64(turn.Rounds + 1))
			if c.events != nil {
				c.events.TurnFinished(turn.ID.String(), string(StatusCompleted), turn.Rounds+1)
			}
			return turn, nil
		}

		turn.State = StateDispatchingTools
		turn.Transcript = append(turn.Transcript, llm.Message{Role: "assistant", Content: reply.Text})

		results, err := c.dispatchBatch(ctx, turn, reply.ToolCalls)
		if err != nil {
			return c.fail(turn, err)
		}

		for _, res := range results {
			body, mErr := json.Marshal(res)
			if mErr != nil {
				body = []byte(fmt.Sprintf(`{"call_id":%q,"outcome":"execution_error","message":"result encoding failed"}`, res.CallID))
			}
			turn.Transcript = append(turn.Transcript, llm.Message{Role: "tool", Content: string(body)})
		}

		turn.Rounds++
		turn.State = StateAwaitingModel
	}
}

// dispatchBatch runs every call of one model round. Calls are independent and
// run concurrently, but results are reassembled in call order: ordering
// matters for the model's next-round context, not for execution.
func (c *Controller) dispatchBatch(ctx context.Context, turn *Turn, calls []llm.ToolCall) ([]dispatch.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]dispatch.Result, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			results[i] = c.dispatchOne(ctx, call)
		}(i, call)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.events != nil {
		for _, res := range results {
			c.events.ToolDispatched(turn.ID.String(), res)
		}
	}
	return results, nil
}

func (c *Controller) dispatchOne(ctx context.Context, call llm.ToolCall) dispatch.Result {
	args, err := call.DecodeArguments()
	if err != nil {
		// Malformed argument JSON is a validation failure, not a crash.
		return dispatch.Result{
			CallID:  call.ID,
			Tool:    call.Name,
			Outcome: dispatch.OutcomeValidationError,
			Message: "tool arguments are not a valid JSON object: " + err.Error(),
		}
	}
	return c.dispatcher.Dispatch(ctx, dispatch.Request{
		CallID:    call.ID,
		Tool:      call.Name,
		Arguments: args,
	})
}

func (c *Controller) converseOnce(ctx context.Context, transcript []llm.Message, tools []llm.ToolDefinition) (*llm.Reply, error) {
	roundCtx := ctx
	if c.roundTimeout > 0 {
		var cancel context.CancelFunc
		roundCtx, cancel = context.WithTimeout(ctx, c.roundTimeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := c.model.Converse(roundCtx, transcript, tools)
	metrics.ModelRoundSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("model round failed: %w", err)
	}
	return reply, nil
}

func (c *Controller) fail(turn *Turn, err error) (*Turn, error) {
	turn.Status = StatusFailed
	turn.State = StateFailed
	metrics.TurnsTotal.WithLabelValues(string(StatusFailed)).Inc()
	if c.events != nil {
		c.events.TurnFinished(turn.ID.String(), string(StatusFailed), turn.Rounds)
	}
	slog.Warn("conversation turn failed", "turn_id", turn.ID, "rounds", turn.Rounds, "error", err)
	return turn, err
}

func (c *Controller) toolDefinitions() []llm.ToolDefinition {
	defs := c.catalog.List()
	out := make([]llm.ToolDefinition, 0, len(defs))
	for _, def := range defs {
		out = append(out, llm.ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.JSONSchema(),
		})
	}
	return out
}
