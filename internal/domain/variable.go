package domain

import (
	"encoding/json"
	"fmt"
)

// Variable selects which profile series an edit targets.
type Variable int

const (
	Temperature Variable = iota
	Dewpoint
)

// Other returns the paired variable recomputed under an RH lock.
func (v Variable) Other() Variable {
	if v == Temperature {
		return Dewpoint
	}
	return Temperature
}

func (v Variable) String() string {
	switch v {
	case Temperature:
		return "temperature"
	case Dewpoint:
		return "dewpoint"
	default:
		return fmt.Sprintf("variable(%d)", int(v))
	}
}

// ParseVariable accepts the wire names, including the diagram path ids
// ("temppath", "dptpath") the web client uses for its series.
func ParseVariable(s string) (Variable, error) {
	switch s {
	case "temperature", "temp", "temppath":
		return Temperature, nil
	case "dewpoint", "dpt", "dptpath":
		return Dewpoint, nil
	default:
		return 0, fmt.Errorf("unknown variable %q", s)
	}
}

func (v Variable) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *Variable) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("variable: %w", err)
	}
	parsed, err := ParseVariable(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
