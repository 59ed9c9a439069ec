package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tribunal/internal/rubric"
)

var rubricCmd = &cobra.Command{
	Use:   "rubric",
	Short: "Inspect and validate rubric files",
}

var rubricValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Validate a rubric file",
	Long: `Validate loads a rubric file and reports structural problems: empty
criteria lists, duplicate criterion ids, or malformed YAML/JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := rubric.Load(args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d criteria\n", args[0], len(r.Criteria))
		for _, c := range r.Criteria {
			line := fmt.Sprintf("  %s (%s)", c.ID, r.DisplayName(c.ID))
			if c.Tag != "" {
				line += fmt.Sprintf(" [%s]", c.Tag)
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rubricCmd)
	rubricCmd.AddCommand(rubricValidateCmd)
}
