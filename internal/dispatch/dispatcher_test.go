package dispatch

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/voxhome/assist-service/internal/catalog"
	"github.com/voxhome/assist-service/internal/registry"
	"github.com/voxhome/assist-service/internal/resolve"
)

type fakeResolver struct {
	targets []resolve.Target
	err     error
	calls   int
	lastQ   resolve.Query
}

func (f *fakeResolver) Resolve(ctx context.Context, q resolve.Query) ([]resolve.Target, error) {
	f.calls++
	f.lastQ = q
	return f.targets, f.err
}

type fakeController struct {
	failFor map[string]error
	calls   []invocation
}

type invocation struct {
	entityID string
	action   string
	args     map[string]interface{}
}

func (f *fakeController) Invoke(ctx context.Context, entityID, action string, args map[string]interface{}) error {
	f.calls = append(f.calls, invocation{entityID, action, args})
	if err, ok := f.failFor[entityID]; ok {
		return err
	}
	return nil
}

type fakeDirectory struct {
	entities []registry.Entity
	areas    []registry.Area
	floors   []registry.Floor
}

func (f *fakeDirectory) ListEntities(ctx context.Context) ([]registry.Entity, error) {
	return f.entities, nil
}
func (f *fakeDirectory) ListAreas(ctx context.Context) ([]registry.Area, error) {
	return f.areas, nil
}
func (f *fakeDirectory) ListFloors(ctx context.Context) ([]registry.Floor, error) {
	return f.floors, nil
}

func newTestDispatcher(resolver *fakeResolver, devices *fakeController, dir *fakeDirectory) *Dispatcher {
	if resolver == nil {
		resolver = &fakeResolver{}
	}
	if devices == nil {
		devices = &fakeController{}
	}
	if dir == nil {
		dir = &fakeDirectory{}
	}
	d := New(catalog.New(nil), resolver, devices, dir)
	d.now = func() time.Time { return time.Date(2026, 8, 23, 14, 30, 0, 0, time.UTC) }
	return d
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newTestDispatcher(nil, nil, nil)

	res := d.Dispatch(context.Background(), Request{CallID: "c1", Tool: "launch_rocket"})
	if res.Outcome != OutcomeValidationError {
		t.Errorf("outcome = %q, want validation_error", res.Outcome)
	}
	if res.CallID != "c1" {
		t.Errorf("call id = %q", res.CallID)
	}
}

// Validation failures must short-circuit: neither the resolver nor the device
// controller may be touched.
func TestDispatchValidationShortCircuits(t *testing.T) {
	resolver := &fakeResolver{}
	devices := &fakeController{}
	d := newTestDispatcher(resolver, devices, nil)

	res := d.Dispatch(context.Background(), Request{
		CallID: "c1",
		Tool:   "climate_set_temperature",
		Arguments: map[string]interface{}{
			"name": "thermostat",
			// temperature missing
		},
	})

	if res.Outcome != OutcomeValidationError {
		t.Fatalf("outcome = %q, want validation_error", res.Outcome)
	}
	if resolver.calls != 0 {
		t.Error("resolver must not run on validation failure")
	}
	if len(devices.calls) != 0 {
		t.Error("device controller must not run on validation failure")
	}
}

func TestDispatchMissingTargetArguments(t *testing.T) {
	resolver := &fakeResolver{}
	d := newTestDispatcher(resolver, nil, nil)

	res := d.Dispatch(context.Background(), Request{CallID: "c1", Tool: "turn_on", Arguments: map[string]interface{}{}})
	if res.Outcome != OutcomeValidationError {
		t.Errorf("outcome = %q, want validation_error for empty target", res.Outcome)
	}
	if resolver.calls != 0 {
		t.Error("resolver must not run for an empty query")
	}
}

func TestDispatchSuccess(t *testing.T) {
	resolver := &fakeResolver{targets: []resolve.Target{
		{EntityID: "light.kitchen", Name: "Kitchen Light", Domain: "light"},
	}}
	devices := &fakeController{}
	d := newTestDispatcher(resolver, devices, nil)

	res := d.Dispatch(context.Background(), Request{
		CallID:    "c1",
		Tool:      "turn_on",
		Arguments: map[string]interface{}{"name": "kitchen light"},
	})

	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %q (%s), want success", res.Outcome, res.Message)
	}
	if len(devices.calls) != 1 || devices.calls[0].entityID != "light.kitchen" {
		t.Errorf("invocations = %v", devices.calls)
	}
	ids, _ := res.Payload["target_ids"].([]string)
	if len(ids) != 1 || ids[0] != "light.kitchen" {
		t.Errorf("target_ids = %v", res.Payload["target_ids"])
	}
}

// Targeting arguments steer resolution only; the device controller receives
// just the action arguments.
func TestDispatchStripsTargetingArguments(t *testing.T) {
	resolver := &fakeResolver{targets: []resolve.Target{
		{EntityID: "light.kitchen", Name: "Kitchen Light", Domain: "light"},
	}}
	devices := &fakeController{}
	d := newTestDispatcher(resolver, devices, nil)

	res := d.Dispatch(context.Background(), Request{
		CallID: "c1",
		Tool:   "light_set",
		Arguments: map[string]interface{}{
			"area":       "kitchen",
			"domain":     "light",
			"brightness": float64(70),
		},
	})
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %q (%s)", res.Outcome, res.Message)
	}

	args := devices.calls[0].args
	if _, ok := args["area"]; ok {
		t.Error("area must not reach the device controller")
	}
	if _, ok := args["domain"]; ok {
		t.Error("domain must not reach the device controller")
	}
	if args["brightness"] != float64(70) {
		t.Errorf("brightness = %v", args["brightness"])
	}

	if len(resolver.lastQ.Domains) != 1 || resolver.lastQ.Domains[0] != "light" {
		t.Errorf("query domains = %v", resolver.lastQ.Domains)
	}
}

func TestDispatchColorInterpretation(t *testing.T) {
	tests := []struct {
		color    string
		wantKey  string
		wantVal  interface{}
		wantFail bool
	}{
		{color: "red", wantKey: "rgb_color", wantVal: []int{255, 0, 0}},
		{color: "warm white", wantKey: "color_temp_kelvin", wantVal: 2700},
		{color: "the color of the sky", wantKey: "rgb_color", wantVal: []int{135, 206, 235}},
		{color: "blurple", wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.color, func(t *testing.T) {
			resolver := &fakeResolver{targets: []resolve.Target{
				{EntityID: "light.kitchen", Name: "Kitchen Light", Domain: "light"},
			}}
			devices := &fakeController{}
			d := newTestDispatcher(resolver, devices, nil)

			res := d.Dispatch(context.Background(), Request{
				CallID:    "c1",
				Tool:      "light_set",
				Arguments: map[string]interface{}{"name": "kitchen light", "color": tt.color},
			})

			if tt.wantFail {
				if res.Outcome != OutcomeValidationError {
					t.Fatalf("outcome = %q, want validation_error for unknown color", res.Outcome)
				}
				if len(devices.calls) != 0 {
					t.Error("device controller must not run for an unknown color")
				}
				return
			}

			if res.Outcome != OutcomeSuccess {
				t.Fatalf("outcome = %q (%s)", res.Outcome, res.Message)
			}
			args := devices.calls[0].args
			if _, ok := args["color"]; ok {
				t.Error("raw color string must not reach the device controller")
			}
			switch want := tt.wantVal.(type) {
			case []int:
				got, _ := args[tt.wantKey].([]int)
				if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
					t.Errorf("%s = %v, want %v", tt.wantKey, args[tt.wantKey], want)
				}
				if _, ok := args["color_temp_kelvin"]; ok {
					t.Error("rgb and kelvin must be mutually exclusive")
				}
			case int:
				if args[tt.wantKey] != want {
					t.Errorf("%s = %v, want %v", tt.wantKey, args[tt.wantKey], want)
				}
				if _, ok := args["rgb_color"]; ok {
					t.Error("rgb and kelvin must be mutually exclusive")
				}
			}
		})
	}
}

func TestDispatchAmbiguousResolution(t *testing.T) {
	resolver := &fakeResolver{err: &resolve.AmbiguousError{
		Fragment:   "light",
		Candidates: []string{"Bedroom Light", "Kitchen Light"},
	}}
	devices := &fakeController{}
	d := newTestDispatcher(resolver, devices, nil)

	res := d.Dispatch(context.Background(), Request{
		CallID:    "c1",
		Tool:      "turn_on",
		Arguments: map[string]interface{}{"name": "light"},
	})

	if res.Outcome != OutcomeAmbiguous {
		t.Fatalf("outcome = %q, want ambiguous", res.Outcome)
	}
	candidates, _ := res.Payload["candidates"].([]string)
	if len(candidates) != 2 {
		t.Errorf("candidates = %v", res.Payload["candidates"])
	}
	if len(devices.calls) != 0 {
		t.Error("no device may be controlled on an ambiguous target")
	}
}

func TestDispatchSingleTargetToolRejectsMultiple(t *testing.T) {
	resolver := &fakeResolver{targets: []resolve.Target{
		{EntityID: "lock.front", Name: "Front Door", Domain: "lock"},
		{EntityID: "lock.back", Name: "Back Door", Domain: "lock"},
	}}
	devices := &fakeController{}
	d := newTestDispatcher(resolver, devices, nil)

	res := d.Dispatch(context.Background(), Request{
		CallID:    "c1",
		Tool:      "lock_unlock",
		Arguments: map[string]interface{}{"area": "everywhere"},
	})

	if res.Outcome != OutcomeAmbiguous {
		t.Fatalf("outcome = %q, want ambiguous for multi-target unlock", res.Outcome)
	}
	if len(devices.calls) != 0 {
		t.Error("no lock may be actuated when the target set is not singular")
	}
}

func TestDispatchNoMatch(t *testing.T) {
	resolver := &fakeResolver{err: resolve.ErrNoMatch}
	d := newTestDispatcher(resolver, nil, nil)

	res := d.Dispatch(context.Background(), Request{
		CallID:    "c1",
		Tool:      "turn_off",
		Arguments: map[string]interface{}{"name": "disco ball"},
	})
	if res.Outcome != OutcomeEntityNotFound {
		t.Errorf("outcome = %q, want entity_not_found", res.Outcome)
	}
}

func TestDispatchPartialFailure(t *testing.T) {
	resolver := &fakeResolver{targets: []resolve.Target{
		{EntityID: "light.a", Name: "Lamp A", Domain: "light"},
		{EntityID: "light.b", Name: "Lamp B", Domain: "light"},
		{EntityID: "light.c", Name: "Lamp C", Domain: "light"},
	}}
	devices := &fakeController{failFor: map[string]error{
		"light.b": fmt.Errorf("device offline"),
	}}
	d := newTestDispatcher(resolver, devices, nil)

	res := d.Dispatch(context.Background(), Request{
		CallID:    "c1",
		Tool:      "turn_on",
		Arguments: map[string]interface{}{"area": "living room"},
	})

	if res.Outcome != OutcomeExecutionError {
		t.Fatalf("outcome = %q, want execution_error on partial failure", res.Outcome)
	}
	succeeded, _ := res.Payload["succeeded"].([]string)
	failed, _ := res.Payload["failed"].([]string)
	if len(succeeded) != 2 || len(failed) != 1 || failed[0] != "Lamp B" {
		t.Errorf("succeeded=%v failed=%v", succeeded, failed)
	}
	// The message must name both sides so the model can report accurately.
	for _, want := range []string{"Lamp B", "Lamp A"} {
		if !strings.Contains(res.Message, want) {
			t.Errorf("message %q does not mention %s", res.Message, want)
		}
	}
}

func TestDispatchAllFail(t *testing.T) {
	resolver := &fakeResolver{targets: []resolve.Target{
		{EntityID: "light.a", Name: "Lamp A", Domain: "light"},
	}}
	devices := &fakeController{failFor: map[string]error{
		"light.a": fmt.Errorf("device offline"),
	}}
	d := newTestDispatcher(resolver, devices, nil)

	res := d.Dispatch(context.Background(), Request{
		CallID:    "c1",
		Tool:      "turn_on",
		Arguments: map[string]interface{}{"name": "lamp a"},
	})
	if res.Outcome != OutcomeExecutionError {
		t.Errorf("outcome = %q, want execution_error", res.Outcome)
	}
}

func TestDispatchGetState(t *testing.T) {
	resolver := &fakeResolver{targets: []resolve.Target{
		{EntityID: "light.kitchen", Name: "Kitchen Light", Domain: "light"},
	}}
	dir := &fakeDirectory{entities: []registry.Entity{
		{ID: "light.kitchen", Name: "Kitchen Light", Domain: "light", State: "on"},
	}}
	devices := &fakeController{}
	d := newTestDispatcher(resolver, devices, dir)

	res := d.Dispatch(context.Background(), Request{
		CallID:    "c1",
		Tool:      "get_state",
		Arguments: map[string]interface{}{"name": "kitchen light"},
	})

	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %q (%s)", res.Outcome, res.Message)
	}
	states, _ := res.Payload["states"].([]map[string]interface{})
	if len(states) != 1 || states[0]["state"] != "on" {
		t.Errorf("states = %v", res.Payload["states"])
	}
	if len(devices.calls) != 0 {
		t.Error("get_state must not invoke the device controller")
	}
}

func TestDispatchInformationalTools(t *testing.T) {
	dir := &fakeDirectory{
		entities: []registry.Entity{
			{ID: "light.kitchen", Name: "Kitchen Light", Domain: "light", State: "on"},
			{ID: "lock.front", Name: "Front Door", Domain: "lock", State: "locked"},
		},
		areas:  []registry.Area{{ID: "area.kitchen", Name: "Kitchen", FloorID: "floor.ground"}},
		floors: []registry.Floor{{ID: "floor.ground", Name: "Ground Floor"}},
	}
	d := newTestDispatcher(nil, nil, dir)

	res := d.Dispatch(context.Background(), Request{CallID: "c1", Tool: "list_entities", Arguments: map[string]interface{}{"domain": "light"}})
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("list_entities outcome = %q (%s)", res.Outcome, res.Message)
	}
	entities, _ := res.Payload["entities"].([]map[string]interface{})
	if len(entities) != 1 || entities[0]["entity_id"] != "light.kitchen" {
		t.Errorf("entities = %v", res.Payload["entities"])
	}

	res = d.Dispatch(context.Background(), Request{CallID: "c2", Tool: "list_areas"})
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("list_areas outcome = %q", res.Outcome)
	}

	res = d.Dispatch(context.Background(), Request{CallID: "c3", Tool: "list_floors"})
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("list_floors outcome = %q", res.Outcome)
	}

	res = d.Dispatch(context.Background(), Request{CallID: "c4", Tool: "get_current_time"})
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("get_current_time outcome = %q", res.Outcome)
	}
	if res.Payload["date"] == "" || res.Payload["weekday"] == "" {
		t.Errorf("time payload incomplete: %v", res.Payload)
	}
}
