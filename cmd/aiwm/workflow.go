package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Inspect published workflows",
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		workflows, err := services.workflows.List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tUPDATED")
		for _, wf := range workflows {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
				wf.ID, wf.Name, wf.Status, wf.UpdatedAt.UTC().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var workflowVersionsCmd = &cobra.Command{
	Use:   "versions <workflow-id>",
	Short: "List a workflow's versions, highest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		versions, err := services.workflows.ListVersions(cmd.Context(), id)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tCREATED")
		for _, v := range versions {
			fmt.Fprintf(w, "%d\t%s\n", v.Version, v.CreatedAt.UTC().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	workflowCmd.AddCommand(workflowListCmd)
	workflowCmd.AddCommand(workflowVersionsCmd)
}
