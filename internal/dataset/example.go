package dataset

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Parameters holds the optional slot values of one action instance. Values
// are int (amounts) or string (recipient, bill, account). Absent parameters
// are simply not present in the map.
type Parameters map[string]any

// Int returns the integer parameter name, if present.
func (p Parameters) Int(name string) (int, bool) {
	v, ok := p[name]
	if !ok {
		return 0, false
	}
	n, ok := v.(int)
	return n, ok
}

// String returns the string parameter name, if present.
func (p Parameters) String(name string) (string, bool) {
	v, ok := p[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Names returns the parameter names in sorted order.
func (p Parameters) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (p Parameters) clone() Parameters {
	if p == nil {
		return nil
	}
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// normalize converts decoded JSON values into the int/string forms used in
// memory. Integral numbers become int; anything else that is not a string
// is rejected.
func (p Parameters) normalize() (Parameters, error) {
	if len(p) == 0 {
		return nil, nil
	}
	out := make(Parameters, len(p))
	for k, v := range p {
		switch t := v.(type) {
		case nil:
			// null means absent
		case string:
			out[k] = t
		case int:
			out[k] = t
		case json.Number:
			n, err := t.Int64()
			if err != nil {
				return nil, fmt.Errorf("dataset: parameter %q: %w", k, err)
			}
			out[k] = int(n)
		case float64:
			if t != float64(int(t)) {
				return nil, fmt.Errorf("dataset: parameter %q is not an integer", k)
			}
			out[k] = int(t)
		default:
			return nil, fmt.Errorf("dataset: parameter %q has unsupported type %T", k, v)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// TrainingExample is one labelled query. Examples are values; nothing in
// this module mutates one after it has been created.
type TrainingExample struct {
	Query      string     `json:"query"`
	Action     string     `json:"action"`
	Parameters Parameters `json:"parameters,omitempty"`
}
