package llm

import "encoding/json"

// ToolDefinition is one advertised tool in the function-calling wire format.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolCall is one tool invocation requested by the model. Arguments are kept
// raw: they are untrusted until the dispatcher validates them.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// DecodeArguments unmarshals the raw arguments into a generic map. A missing
// or empty argument object decodes to an empty map rather than failing.
func (t ToolCall) DecodeArguments() (map[string]interface{}, error) {
	if len(t.Arguments) == 0 {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal(t.Arguments, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}
