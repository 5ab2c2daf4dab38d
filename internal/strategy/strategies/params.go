package strategies

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"stockBacktester/internal/ports"
)

// Params carries strategy parameters as decoded from YAML, flags or an optimizer.
// Keys a strategy does not know are ignored.
type Params map[string]interface{}

// Merge returns a new Params with overrides applied on top of p.
func (p Params) Merge(overrides Params) Params {
	out := make(Params, len(p)+len(overrides))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Float returns the numeric value of key, or def when absent.
func (p Params) Float(key string, def float64) (float64, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return def, nil
	}
	v, err := toFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %v: %w", key, err, ports.ErrInvalidParameter)
	}
	return v, nil
}

// Int returns the integral value of key, or def when absent.
// Whole floating point values (5.0) are accepted.
func (p Params) Int(key string, def int) (int, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return def, nil
	}
	v, err := toFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %v: %w", key, err, ports.ErrInvalidParameter)
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("%s: %v is not a whole number: %w", key, v, ports.ErrInvalidParameter)
	}
	return int(v), nil
}

// Weights returns a symbol to weight mapping stored under key.
func (p Params) Weights(key string) (map[string]float64, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return map[string]float64{}, nil
	}

	out := make(map[string]float64)
	switch m := raw.(type) {
	case map[string]float64:
		for k, v := range m {
			out[k] = v
		}
	case map[string]interface{}:
		return floatMap(key, m)
	case Params:
		return floatMap(key, m)
	default:
		return nil, fmt.Errorf("%s: expected a mapping, got %T: %w", key, raw, ports.ErrInvalidParameter)
	}
	return out, nil
}

func floatMap(key string, m map[string]interface{}) (map[string]float64, error) {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		f, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %v: %w", key, k, err, ports.ErrInvalidParameter)
		}
		out[k] = f
	}
	return out, nil
}

func toFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("unsupported value %v (%T)", raw, raw)
	}
}
