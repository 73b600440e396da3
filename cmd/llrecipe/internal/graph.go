package internal

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var graphInputs inputs

var graphCmd = &cobra.Command{
	Use:   "graph [recipe]",
	Short: "Print the component graph in build order",
	Long: `Graph resolves the components of a recipe for the selected settings and
prints every node in topological order together with its direct requirements.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGraph,
}

func init() {
	graphInputs.register(graphCmd)
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	l, err := graphInputs.load(recipeArg(args))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, name := range l.graph.Order() {
		n, _ := l.graph.Node(name)
		if n.External != nil {
			fmt.Fprintf(out, "%s (external %s)\n", name, n.External.Version)
			continue
		}
		if reqs := l.graph.Requires(name); len(reqs) > 0 {
			fmt.Fprintf(out, "%s -> %s\n", name, strings.Join(reqs, ", "))
		} else {
			fmt.Fprintln(out, name)
		}
	}
	return nil
}
