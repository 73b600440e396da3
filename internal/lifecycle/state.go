package lifecycle

import "fmt"

// State is a stage of the build pipeline. States are strictly ordered.
type State int

const (
	Uninitialized State = iota
	SourcesMaterialized
	Configured
	Built
	Installed
	MetadataPublished
)

var stateNames = [...]string{
	Uninitialized:       "Uninitialized",
	SourcesMaterialized: "SourcesMaterialized",
	Configured:          "Configured",
	Built:               "Built",
	Installed:           "Installed",
	MetadataPublished:   "MetadataPublished",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText writes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown lifecycle state %q", text)
}

// InvalidStateError is returned when a transition is invoked before its
// predecessor state has been reached.
type InvalidStateError struct {
	Op       string
	Required State
	Current  State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s requires state %s, current state is %s", e.Op, e.Required, e.Current)
}
