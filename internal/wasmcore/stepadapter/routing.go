package stepadapter

import (
	"encoding/json"

	"github.com/orama-network/wasmcore/internal/wasmcore/wasmtypes"
)

// outcome is the parsed shape of a guest's output object (spec §4.7).
type outcome struct {
	raw              json.RawMessage
	merged           map[string]any
	routing          *wasmtypes.RoutingNext
	validationFailed bool
}

// parseOutcome inspects a guest's output for the routing and
// validation_errors fields spec §4.7 reserves, and returns the remainder to
// be deep-merged into the invocation context's variables.
func parseOutcome(raw json.RawMessage) (*outcome, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		// A non-object top-level output (e.g. a bare scalar) carries no
		// routing/validation_errors fields; nothing to merge or route.
		return &outcome{raw: raw, merged: map[string]any{}}, nil
	}

	out := &outcome{raw: raw}

	if rawValidation, ok := obj["validation_errors"]; ok {
		var errs []any
		if err := json.Unmarshal(rawValidation, &errs); err == nil && len(errs) > 0 {
			out.validationFailed = true
			return out, nil
		}
	}

	if rawRouting, ok := obj["routing"]; ok {
		routing, err := parseRoutingDirective(rawRouting)
		if err != nil {
			return nil, err
		}
		out.routing = routing
		delete(obj, "routing")
	}
	delete(obj, "validation_errors")

	merged := make(map[string]any, len(obj))
	for k, v := range obj {
		var decoded any
		if err := json.Unmarshal(v, &decoded); err != nil {
			return nil, wasmtypes.NewInvalidOutput("guest output field is not valid JSON")
		}
		merged[k] = decoded
	}
	out.merged = merged
	return out, nil
}

// parseRoutingDirective validates a routing fragment against spec §3's
// `{ next: string | [string] | null }` shape (P11).
func parseRoutingDirective(raw json.RawMessage) (*wasmtypes.RoutingNext, error) {
	var wrapper struct {
		Next json.RawMessage `json:"next"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, wasmtypes.NewInvalidOutput("routing field is not a valid object")
	}
	if len(wrapper.Next) == 0 || string(wrapper.Next) == "null" {
		return &wasmtypes.RoutingNext{}, nil
	}

	var single string
	if err := json.Unmarshal(wrapper.Next, &single); err == nil {
		return &wasmtypes.RoutingNext{Single: &single}, nil
	}

	var multi []string
	if err := json.Unmarshal(wrapper.Next, &multi); err == nil {
		return &wasmtypes.RoutingNext{Multi: multi}, nil
	}

	return nil, wasmtypes.NewInvalidOutput("routing.next must be a string, an array of strings, or null")
}
