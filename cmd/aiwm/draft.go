package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aiwm/aiwm/internal/store"
	"github.com/aiwm/aiwm/internal/workflow"
)

var draftDescription string

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Manage workflow drafts",
}

var draftCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		draft, err := services.drafts.Create(cmd.Context(), args[0], draftDescription)
		if err != nil {
			return err
		}
		fmt.Printf("Draft %d created\n", draft.ID)
		return nil
	},
}

var draftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List drafts, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		drafts, err := services.drafts.List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tVERSION\tNODES\tTRANSITIONS\tUPDATED")
		for _, d := range drafts {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%s\n",
				d.ID, d.Name, d.Status, d.Version, len(d.Nodes), len(d.Transitions),
				d.UpdatedAt.UTC().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var draftImportCmd = &cobra.Command{
	Use:   "import <draft-id> <file.json>",
	Short: "Replace a draft's node graph from a JSON file",
	Long: `Read a node graph ({"nodes": [...], "transitions": [...]}) from the
given file and store it as the draft's content, bumping the draft version.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		payload, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		var content workflow.DraftContent
		if err := json.Unmarshal(payload, &content); err != nil {
			return fmt.Errorf("parse %s: %w", args[1], err)
		}
		draft, err := services.drafts.Update(cmd.Context(), id, store.DraftUpdate{
			Content:          &content,
			IncrementVersion: true,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Draft %d updated to version %d\n", draft.ID, draft.Version)
		return nil
	},
}

var draftValidateCmd = &cobra.Command{
	Use:   "validate <draft-id>",
	Short: "Run validation rules against a draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		draft, err := services.drafts.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		if draft == nil {
			return fmt.Errorf("draft %d not found", id)
		}
		result := services.engine.Validate(draft)
		for _, msg := range result.Errors {
			fmt.Printf("error: %s\n", msg)
		}
		for _, msg := range result.Warnings {
			fmt.Printf("warning: %s\n", msg)
		}
		if !result.Valid {
			return fmt.Errorf("draft %d is invalid", id)
		}
		fmt.Printf("Draft %d is valid\n", id)
		return nil
	},
}

var draftPublishCmd = &cobra.Command{
	Use:   "publish <draft-id>",
	Short: "Publish a draft as a versioned workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		result, err := services.publisher.PublishDraft(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("Published draft %d as workflow %d (version %d)\n",
			result.Draft.ID, result.Workflow.ID, result.Draft.Version)
		return nil
	},
}

var draftDeleteCmd = &cobra.Command{
	Use:   "delete <draft-id>",
	Short: "Delete a draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := services.drafts.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Draft %d deleted\n", id)
		return nil
	},
}

func init() {
	draftCreateCmd.Flags().StringVar(&draftDescription, "description", "", "draft description")

	draftCmd.AddCommand(draftCreateCmd)
	draftCmd.AddCommand(draftListCmd)
	draftCmd.AddCommand(draftImportCmd)
	draftCmd.AddCommand(draftValidateCmd)
	draftCmd.AddCommand(draftPublishCmd)
	draftCmd.AddCommand(draftDeleteCmd)
}
