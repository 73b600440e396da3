package graph

import (
	"fmt"
	"strings"
)

// GraphError reports an invalid dependency graph. One of its fields
// describes what is wrong.
type GraphError struct {
	// Cycle lists the nodes of a dependency cycle, closed by repeating its
	// first node. A self-requirement gives [a a].
	Cycle []string

	// Missing is a requirement that resolves to no node; Referrer is the
	// component declaring it.
	Missing  string
	Referrer string

	// Duplicate is a name declared more than once.
	Duplicate string

	// Invalid is a component or package name that cannot be used.
	Invalid string
}

func (e *GraphError) Error() string {
	switch {
	case len(e.Cycle) > 0:
		return "dependency cycle: " + strings.Join(e.Cycle, " -> ")
	case e.Referrer != "":
		return fmt.Sprintf("component %s requires %s, which is neither a component nor a declared requirement", e.Referrer, e.Missing)
	case e.Duplicate != "":
		return fmt.Sprintf("%s is declared more than once", e.Duplicate)
	}
	return fmt.Sprintf("invalid name %q", e.Invalid)
}
