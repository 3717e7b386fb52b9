package model

import (
	"encoding/json"
	"fmt"
)

// UIState is the per-vault presentation state (selected view, collapsed columns, ...).
// Values are whatever encoding/json produces for a JSON object.
type UIState map[string]any

// ParseUIState decodes a stored state. Empty input yields an empty state.
func ParseUIState(raw []byte) (UIState, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return UIState{}, nil
	}
	var st UIState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("ui state: %w", err)
	}
	if st == nil {
		st = UIState{}
	}
	return st, nil
}

func (s UIState) JSON() (json.RawMessage, error) {
	if s == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(map[string]any(s))
}

// Merge folds partial into s and returns s. Nested objects merge key by key; any other
// value in partial replaces the existing one.
func (s UIState) Merge(partial UIState) UIState {
	if s == nil {
		s = UIState{}
	}
	for k, pv := range partial {
		pm, pok := asObject(pv)
		em, eok := asObject(s[k])
		if pok && eok {
			s[k] = map[string]any(UIState(cloneObject(em)).Merge(UIState(pm)))
			continue
		}
		s[k] = cloneValue(pv)
	}
	return s
}

func (s UIState) Clone() UIState {
	if s == nil {
		return nil
	}
	return UIState(cloneObject(s))
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case UIState:
		return m, true
	}
	return nil, false
}

func cloneObject(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneObject(x)
	case UIState:
		return cloneObject(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	}
	return v
}
