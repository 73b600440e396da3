package settings

import "fmt"

// ConfigError reports malformed settings or options.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

// OptionAbsentError reports access to an option that does not exist under
// the current os.
type OptionAbsentError struct {
	Name string
	OS   string
}

func (e *OptionAbsentError) Error() string {
	return fmt.Sprintf("option %s is not defined for os %s", e.Name, e.OS)
}
