package internal

import (
	"fmt"

	"github.com/goplus/llrecipe/internal/layout"
	"github.com/spf13/cobra"
)

var (
	layoutInputs    inputs
	layoutDirs      dirs
	layoutEditable  bool
	layoutInstalled bool
)

var layoutCmd = &cobra.Command{
	Use:   "layout [recipe] [component...]",
	Short: "Print where consumers find component headers and libraries",
	Long: `Layout prints the include and library directories of components.
The mode is detected from the source root unless --editable or --installed
is given.`,
	RunE: runLayout,
}

func init() {
	layoutInputs.register(layoutCmd)
	layoutDirs.register(layoutCmd)
	layoutCmd.Flags().BoolVar(&layoutEditable, "editable", false, "Resolve layouts for an editable source tree")
	layoutCmd.Flags().BoolVar(&layoutInstalled, "installed", false, "Resolve layouts for an installed package")
	layoutCmd.MarkFlagsMutuallyExclusive("editable", "installed")
	rootCmd.AddCommand(layoutCmd)
}

func runLayout(cmd *cobra.Command, args []string) error {
	l, err := layoutInputs.load(recipeArg(args))
	if err != nil {
		return err
	}
	res, err := layoutDirs.resolver(l.recipe, l.matrix)
	if err != nil {
		return err
	}
	mode := layout.DetectMode(res.SourceRoot())
	switch {
	case layoutEditable:
		mode = layout.Editable
	case layoutInstalled:
		mode = layout.Installed
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "mode: %s\nbuild folder: %s\ngenerators: %s\n", mode, res.BuildFolder(), res.GeneratorsDir())
	for _, c := range l.graph.Components() {
		if len(args) > 1 && !contains(args[1:], c.Name) {
			continue
		}
		lay := res.Resolve(c, mode)
		fmt.Fprintf(out, "%s:\n", c.Name)
		for _, dir := range lay.IncludeDirs {
			fmt.Fprintf(out, "  include: %s\n", dir)
		}
		for _, dir := range lay.LibDirs {
			fmt.Fprintf(out, "  lib: %s\n", dir)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
