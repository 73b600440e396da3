package internal

import (
	"encoding/json"
	"fmt"

	"github.com/goplus/llrecipe/internal/attrs"
	"github.com/spf13/cobra"
)

var attrsInputs inputs

var attrsCmd = &cobra.Command{
	Use:   "attrs [recipe] [component...]",
	Short: "Print the transitive attributes of components",
	Long: `Attrs prints the defines, system libraries and libraries a consumer of
each component needs, merged over everything the component requires.
Without component arguments every component is printed.`,
	RunE: runAttrs,
}

func init() {
	attrsInputs.register(attrsCmd)
	rootCmd.AddCommand(attrsCmd)
}

type attrsOutput struct {
	Name       string   `json:"name"`
	Libs       []string `json:"libs"`
	SystemLibs []string `json:"systemLibs"`
	Defines    []string `json:"defines"`
}

func runAttrs(cmd *cobra.Command, args []string) error {
	l, err := attrsInputs.load(recipeArg(args))
	if err != nil {
		return err
	}
	var names []string
	if len(args) > 1 {
		names = args[1:]
	} else {
		for _, c := range l.graph.Components() {
			names = append(names, c.Name)
		}
	}

	m := attrs.New(l.graph)
	out := make([]attrsOutput, 0, len(names))
	for _, name := range names {
		a, err := m.Transitive(name)
		if err != nil {
			return err
		}
		out = append(out, attrsOutput{
			Name:       name,
			Libs:       nonNil(a.Libs),
			SystemLibs: nonNil(a.SystemLibs),
			Defines:    nonNil(a.Defines),
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
