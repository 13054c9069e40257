package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/voxhome/assist-service/internal/catalog"
	"github.com/voxhome/assist-service/internal/color"
	"github.com/voxhome/assist-service/internal/metrics"
	"github.com/voxhome/assist-service/internal/registry"
	"github.com/voxhome/assist-service/internal/resolve"
)

// Outcome classifies a tool-call result. Failures are data, not errors: the
// conversation loop feeds them back to the model so it can self-correct.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeEntityNotFound  Outcome = "entity_not_found"
	OutcomeAmbiguous       Outcome = "ambiguous"
	OutcomeValidationError Outcome = "validation_error"
	OutcomeExecutionError  Outcome = "execution_error"
)

// Request is one decoded tool call from the model.
type Request struct {
	CallID    string
	Tool      string
	Arguments map[string]interface{}
}

// Result is produced for every Request, including failed ones. Message is
// written for the model, not the user.
type Result struct {
	CallID  string                 `json:"call_id"`
	Tool    string                 `json:"tool"`
	Outcome Outcome                `json:"outcome"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Message string                 `json:"message"`
}

// Controller invokes one action on one entity via the device-control service.
type Controller interface {
	Invoke(ctx context.Context, entityID, action string, args map[string]interface{}) error
}

// TargetResolver maps a resolution query to concrete entities.
type TargetResolver interface {
	Resolve(ctx context.Context, q resolve.Query) ([]resolve.Target, error)
}

// Directory is the read-only registry surface used by informational tools.
type Directory interface {
	ListEntities(ctx context.Context) ([]registry.Entity, error)
	ListAreas(ctx context.Context) ([]registry.Area, error)
	ListFloors(ctx context.Context) ([]registry.Floor, error)
}

// Dispatcher validates and executes tool calls. It never lets an error
// escape: every failure mode lands in the Result outcome.
type Dispatcher struct {
	catalog  *catalog.Catalog
	resolver TargetResolver
	devices  Controller
	dir      Directory
	now      func() time.Time
}

func New(cat *catalog.Catalog, resolver TargetResolver, devices Controller, dir Directory) *Dispatcher {
	return &Dispatcher{
		catalog:  cat,
		resolver: resolver,
		devices:  devices,
		dir:      dir,
		now:      time.Now,
	}
}

// Dispatch runs one tool call end to end: schema validation, target
// resolution, color interpretation, then one device invocation per target.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	res := d.dispatch(ctx, req)
	metrics.ToolCallsTotal.WithLabelValues(req.Tool, string(res.Outcome)).Inc()
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) Result {
	def, ok := d.catalog.Get(req.Tool)
	if !ok {
		return Result{
			CallID:  req.CallID,
			Tool:    req.Tool,
			Outcome: OutcomeValidationError,
			Message: fmt.Sprintf("unknown tool %q", req.Tool),
		}
	}

	if err := def.ValidateArguments(req.Arguments); err != nil {
		return Result{
			CallID:  req.CallID,
			Tool:    req.Tool,
			Outcome: OutcomeValidationError,
			Message: err.Error(),
		}
	}

	switch req.Tool {
	case "list_entities":
		return d.listEntities(ctx, req)
	case "list_areas":
		return d.listAreas(ctx, req)
	case "list_floors":
		return d.listFloors(ctx, req)
	case "get_current_time":
		return d.currentTime(req)
	}

	var targets []resolve.Target
	if def.RequiresTarget {
		query := buildQuery(def, req.Arguments)
		if query.Empty() {
			return Result{
				CallID:  req.CallID,
				Tool:    req.Tool,
				Outcome: OutcomeValidationError,
				Message: "at least one of name, area or floor is required",
			}
		}

		var err error
		targets, err = d.resolver.Resolve(ctx, query)
		if err != nil {
			return resolutionResult(req, err)
		}

		if !def.MultiTarget && len(targets) > 1 {
			names := targetNames(targets)
			return Result{
				CallID:  req.CallID,
				Tool:    req.Tool,
				Outcome: OutcomeAmbiguous,
				Payload: map[string]interface{}{"candidates": names},
				Message: fmt.Sprintf("%s acts on a single device but the request matches several: %s. Narrow the target by name, area or domain.",
					req.Tool, strings.Join(names, ", ")),
			}
		}
	}

	if req.Tool == "get_state" {
		return d.getState(ctx, req, targets)
	}

	actionArgs, vErr := buildActionArguments(def, req.Arguments)
	if vErr != nil {
		return Result{
			CallID:  req.CallID,
			Tool:    req.Tool,
			Outcome: OutcomeValidationError,
			Message: vErr.Error(),
		}
	}

	return d.invokeAll(ctx, req, targets, actionArgs)
}

// buildQuery extracts the targeting arguments. The tool's implicit domain
// list intersects with an explicit domain argument.
func buildQuery(def catalog.Definition, args map[string]interface{}) resolve.Query {
	q := resolve.Query{
		Name:  stringArg(args, "name"),
		Area:  stringArg(args, "area"),
		Floor: stringArg(args, "floor"),
	}
	if dom := stringArg(args, "domain"); dom != "" {
		q.Domains = append(q.Domains, dom)
	}
	if len(q.Domains) == 0 {
		q.Domains = append(q.Domains, def.Domains...)
	}
	return q
}

// buildActionArguments strips targeting arguments and interprets the color
// argument, leaving only what the device-control service needs.
func buildActionArguments(def catalog.Definition, args map[string]interface{}) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	for k, v := range args {
		switch k {
		case "name", "area", "floor", "domain":
			continue
		}
		out[k] = v
	}

	if def.ColorParam == "" {
		return out, nil
	}
	desc, ok := out[def.ColorParam].(string)
	if !ok || strings.TrimSpace(desc) == "" {
		return out, nil
	}
	delete(out, def.ColorParam)

	spec, err := color.Interpret(desc)
	if err != nil {
		if errors.Is(err, color.ErrUnrecognizedColor) {
			return nil, fmt.Errorf("argument %q: unrecognized color %q", def.ColorParam, desc)
		}
		return nil, err
	}
	if spec.IsTemperature() {
		out["color_temp_kelvin"] = *spec.TemperatureK
	} else {
		out["rgb_color"] = []int{int(spec.RGB[0]), int(spec.RGB[1]), int(spec.RGB[2])}
	}
	return out, nil
}

// invokeAll executes the action once per resolved target. Partial success is
// reported as execution_error with the per-target breakdown so the model can
// tell the user exactly what happened.
func (d *Dispatcher) invokeAll(ctx context.Context, req Request, targets []resolve.Target, args map[string]interface{}) Result {
	var succeeded, failed, succeededIDs []string
	var firstReason string

	for _, t := range targets {
		if err := d.devices.Invoke(ctx, t.EntityID, req.Tool, args); err != nil {
			failed = append(failed, t.Name)
			if firstReason == "" {
				firstReason = err.Error()
			}
			continue
		}
		succeeded = append(succeeded, t.Name)
		succeededIDs = append(succeededIDs, t.EntityID)
	}

	if len(failed) == 0 {
		return Result{
			CallID:  req.CallID,
			Tool:    req.Tool,
			Outcome: OutcomeSuccess,
			Payload: map[string]interface{}{"targets": succeeded, "target_ids": succeededIDs},
			Message: fmt.Sprintf("%s succeeded for %s", req.Tool, strings.Join(succeeded, ", ")),
		}
	}

	msg := fmt.Sprintf("%s failed for %s (%s)", req.Tool, strings.Join(failed, ", "), firstReason)
	if len(succeeded) > 0 {
		msg += fmt.Sprintf("; it succeeded for %s", strings.Join(succeeded, ", "))
	}
	return Result{
		CallID:  req.CallID,
		Tool:    req.Tool,
		Outcome: OutcomeExecutionError,
		Payload: map[string]interface{}{
			"succeeded": succeeded,
			"failed":    failed,
		},
		Message: msg,
	}
}

func (d *Dispatcher) getState(ctx context.Context, req Request, targets []resolve.Target) Result {
	entities, err := d.dir.ListEntities(ctx)
	if err != nil {
		return Result{
			CallID:  req.CallID,
			Tool:    req.Tool,
			Outcome: OutcomeExecutionError,
			Message: "failed to read entity states: " + err.Error(),
		}
	}
	stateByID := make(map[string]string, len(entities))
	for _, e := range entities {
		stateByID[e.ID] = e.State
	}

	states := make([]map[string]interface{}, 0, len(targets))
	for _, t := range targets {
		states = append(states, map[string]interface{}{
			"entity_id": t.EntityID,
			"name":      t.Name,
			"domain":    t.Domain,
			"state":     stateByID[t.EntityID],
		})
	}
	return Result{
		CallID:  req.CallID,
		Tool:    req.Tool,
		Outcome: OutcomeSuccess,
		Payload: map[string]interface{}{"states": states},
		Message: fmt.Sprintf("retrieved state for %d device(s)", len(states)),
	}
}

func (d *Dispatcher) listEntities(ctx context.Context, req Request) Result {
	entities, err := d.dir.ListEntities(ctx)
	if err != nil {
		return Result{
			CallID:  req.CallID,
			Tool:    req.Tool,
			Outcome: OutcomeExecutionError,
			Message: "failed to list entities: " + err.Error(),
		}
	}
	domain := strings.ToLower(stringArg(req.Arguments, "domain"))

	items := make([]map[string]interface{}, 0, len(entities))
	for _, e := range entities {
		if domain != "" && strings.ToLower(e.Domain) != domain {
			continue
		}
		items = append(items, map[string]interface{}{
			"entity_id": e.ID,
			"name":      e.Name,
			"domain":    e.Domain,
			"area_id":   e.AreaID,
			"state":     e.State,
		})
	}
	return Result{
		CallID:  req.CallID,
		Tool:    req.Tool,
		Outcome: OutcomeSuccess,
		Payload: map[string]interface{}{"entities": items},
		Message: fmt.Sprintf("%d device(s) listed", len(items)),
	}
}

func (d *Dispatcher) listAreas(ctx context.Context, req Request) Result {
	areas, err := d.dir.ListAreas(ctx)
	if err != nil {
		return Result{
			CallID:  req.CallID,
			Tool:    req.Tool,
			Outcome: OutcomeExecutionError,
			Message: "failed to list areas: " + err.Error(),
		}
	}
	items := make([]map[string]interface{}, 0, len(areas))
	for _, a := range areas {
		items = append(items, map[string]interface{}{"id": a.ID, "name": a.Name, "floor_id": a.FloorID})
	}
	return Result{
		CallID:  req.CallID,
		Tool:    req.Tool,
		Outcome: OutcomeSuccess,
		Payload: map[string]interface{}{"areas": items},
		Message: fmt.Sprintf("%d area(s) listed", len(items)),
	}
}

func (d *Dispatcher) listFloors(ctx context.Context, req Request) Result {
	floors, err := d.dir.ListFloors(ctx)
	if err != nil {
		return Result{
			CallID:  req.CallID,
			Tool:    req.Tool,
			Outcome: OutcomeExecutionError,
			Message: "failed to list floors: " + err.Error(),
		}
	}
	items := make([]map[string]interface{}, 0, len(floors))
	for _, f := range floors {
		items = append(items, map[string]interface{}{"id": f.ID, "name": f.Name})
	}
	return Result{
		CallID:  req.CallID,
		Tool:    req.Tool,
		Outcome: OutcomeSuccess,
		Payload: map[string]interface{}{"floors": items},
		Message: fmt.Sprintf("%d floor(s) listed", len(items)),
	}
}

func (d *Dispatcher) currentTime(req Request) Result {
	now := d.now().Local()
	return Result{
		CallID:  req.CallID,
		Tool:    req.Tool,
		Outcome: OutcomeSuccess,
		Payload: map[string]interface{}{
			"time":     now.Format("15:04:05"),
			"date":     now.Format("2006-01-02"),
			"datetime": now.Format(time.RFC3339),
			"weekday":  now.Weekday().String(),
		},
		Message: "current time retrieved",
	}
}

func resolutionResult(req Request, err error) Result {
	var ambiguous *resolve.AmbiguousError
	switch {
	case errors.As(err, &ambiguous):
		return Result{
			CallID:  req.CallID,
			Tool:    req.Tool,
			Outcome: OutcomeAmbiguous,
			Payload: map[string]interface{}{"candidates": ambiguous.Candidates},
			Message: ambiguous.Error() + ". Ask the user which one, or retry with an area or domain filter.",
		}
	case errors.Is(err, resolve.ErrNoMatch):
		return Result{
			CallID:  req.CallID,
			Tool:    req.Tool,
			Outcome: OutcomeEntityNotFound,
			Message: "no device matches the request; call list_entities or list_areas to see what exists",
		}
	case errors.Is(err, resolve.ErrEmptyQuery):
		return Result{
			CallID:  req.CallID,
			Tool:    req.Tool,
			Outcome: OutcomeValidationError,
			Message: "at least one of name, area or floor is required",
		}
	default:
		return Result{
			CallID:  req.CallID,
			Tool:    req.Tool,
			Outcome: OutcomeExecutionError,
			Message: "target resolution failed: " + err.Error(),
		}
	}
}

func targetNames(targets []resolve.Target) []string {
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

func stringArg(args map[string]interface{}, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}
