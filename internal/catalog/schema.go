package catalog

import (
	"fmt"
	"math"
)

// ValidateArguments checks raw tool-call arguments against the definition's
// parameter schema. Arguments come straight from the model and are untrusted;
// every violation reports the offending field.
func (d Definition) ValidateArguments(args map[string]interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}

	for name, p := range d.Parameters {
		if !p.Required {
			continue
		}
		if _, ok := args[name]; !ok {
			return fmt.Errorf("missing required argument %q", name)
		}
	}

	for name, value := range args {
		p, ok := d.Parameters[name]
		if !ok {
			return fmt.Errorf("unknown argument %q", name)
		}
		if err := checkType(value, p.Type); err != nil {
			return fmt.Errorf("argument %q: %w", name, err)
		}
		if len(p.Enum) > 0 {
			s, _ := value.(string)
			if !containsString(p.Enum, s) {
				return fmt.Errorf("argument %q: %q is not one of %v", name, s, p.Enum)
			}
		}
		if p.Minimum != nil || p.Maximum != nil {
			n, ok := asFloat(value)
			if ok {
				if p.Minimum != nil && n < *p.Minimum {
					return fmt.Errorf("argument %q: %v is below minimum %v", name, n, *p.Minimum)
				}
				if p.Maximum != nil && n > *p.Maximum {
					return fmt.Errorf("argument %q: %v is above maximum %v", name, n, *p.Maximum)
				}
			}
		}
	}

	return nil
}

func checkType(value interface{}, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "number":
		if _, ok := asFloat(value); ok {
			return nil
		}
	case "integer":
		if n, ok := asFloat(value); ok && math.Trunc(n) == n {
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s but got %T", expected, value)
}

// asFloat accepts the numeric shapes JSON decoding can produce.
func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func containsString(set []string, s string) bool {
	for _, item := range set {
		if item == s {
			return true
		}
	}
	return false
}
