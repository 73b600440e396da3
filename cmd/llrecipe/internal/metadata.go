package internal

import (
	"encoding/json"
	"fmt"

	"github.com/goplus/llrecipe/internal/manifest"
	"github.com/spf13/cobra"
)

var metadataInputs inputs

var metadataCmd = &cobra.Command{
	Use:   "metadata [recipe]",
	Short: "Print the package metadata without building",
	Long: `Metadata prints the manifest a build of the recipe would publish for the
selected settings: one record per component in build order, with transitive
libraries, system libraries and defines.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMetadata,
}

func init() {
	metadataInputs.register(metadataCmd)
	rootCmd.AddCommand(metadataCmd)
}

func runMetadata(cmd *cobra.Command, args []string) error {
	l, err := metadataInputs.load(recipeArg(args))
	if err != nil {
		return err
	}
	m, err := manifest.New(l.graph, manifest.Info{
		Package:  l.recipe.Name,
		Version:  l.recipe.Version,
		FileName: l.recipe.FileName,
		Settings: l.matrix.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to generate metadata: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
