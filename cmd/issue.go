package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/issuetracker/internal/client"
	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/output"
)

var issueJSON bool

// fieldFlag maps a CLI flag to the issue field it sets.
type fieldFlag struct {
	Flag  string
	Field string
}

var (
	filterFlags = []fieldFlag{
		{"id", models.FieldID},
		{"title", models.FieldTitle},
		{"text", models.FieldText},
		{"created-by", models.FieldCreatedBy},
		{"assigned-to", models.FieldAssignedTo},
		{"status", models.FieldStatusText},
		{"open", models.FieldOpen},
	}
	createFlags = []fieldFlag{
		{"title", models.FieldTitle},
		{"text", models.FieldText},
		{"created-by", models.FieldCreatedBy},
		{"assigned-to", models.FieldAssignedTo},
		{"status", models.FieldStatusText},
	}
	updateFlags = []fieldFlag{
		{"title", models.FieldTitle},
		{"text", models.FieldText},
		{"created-by", models.FieldCreatedBy},
		{"assigned-to", models.FieldAssignedTo},
		{"status", models.FieldStatusText},
		{"open", models.FieldOpen},
	}
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage issues on a running server",
	Long: `Create, list, update and delete issues through the HTTP API of a
running 'issuetracker serve' (server.url, default http://localhost:3000).`,
}

var issueListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List a project's issues",
	Long:    "List a project's issues in creation order. Each flag you pass is an exact-match filter.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd.Context(), args[0], changedFields(cmd, filterFlags))
	},
}

var issueAddCmd = &cobra.Command{
	Use:   "add <project>",
	Short: "Add a new issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun(cmd.Context(), args[0], changedFields(cmd, createFlags))
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <project> <issue-id>",
	Short: "Update an issue",
	Long: `Update an issue. Only the flags you pass are sent, so
'--assigned-to ""' clears the assignee and '--open=false' closes the issue.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(cmd.Context(), args[0], args[1], changedFields(cmd, updateFlags))
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:     "delete <project> <issue-id>",
	Aliases: []string{"rm"},
	Short:   "Delete an issue",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(cmd.Context(), args[0], args[1])
	},
}

var issueProjectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects that have issues",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueProjectsRun(cmd.Context())
	},
}

func init() {
	issueListCmd.Flags().String("id", "", "Filter by issue ID")
	issueListCmd.Flags().String("title", "", "Filter by title")
	issueListCmd.Flags().String("text", "", "Filter by text")
	issueListCmd.Flags().String("created-by", "", "Filter by reporter")
	issueListCmd.Flags().String("assigned-to", "", "Filter by assignee")
	issueListCmd.Flags().String("status", "", "Filter by status text")
	issueListCmd.Flags().Bool("open", true, "Filter by open (--open) or closed (--open=false)")
	issueListCmd.Flags().BoolVar(&issueJSON, "json", false, "Print issues as JSON")

	issueAddCmd.Flags().String("title", "", "Issue title (required)")
	issueAddCmd.Flags().String("text", "", "Issue text (required)")
	issueAddCmd.Flags().String("created-by", "", "Reporter (required)")
	issueAddCmd.Flags().String("assigned-to", "", "Assignee")
	issueAddCmd.Flags().String("status", "", "Status text")
	_ = issueAddCmd.MarkFlagRequired("title")
	_ = issueAddCmd.MarkFlagRequired("text")
	_ = issueAddCmd.MarkFlagRequired("created-by")

	issueUpdateCmd.Flags().String("title", "", "New title")
	issueUpdateCmd.Flags().String("text", "", "New text")
	issueUpdateCmd.Flags().String("created-by", "", "New reporter")
	issueUpdateCmd.Flags().String("assigned-to", "", "New assignee")
	issueUpdateCmd.Flags().String("status", "", "New status text")
	issueUpdateCmd.Flags().Bool("open", true, "Reopen (--open) or close (--open=false)")

	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	issueCmd.AddCommand(issueProjectsCmd)
	rootCmd.AddCommand(issueCmd)
}

// changedFields collects the flags the user actually set, keyed by issue
// field. Unset flags are absent, so their defaults are never sent.
func changedFields(cmd *cobra.Command, flags []fieldFlag) map[string]string {
	fields := make(map[string]string)
	for _, f := range flags {
		if !cmd.Flags().Changed(f.Flag) {
			continue
		}
		fields[f.Field] = cmd.Flags().Lookup(f.Flag).Value.String()
	}
	return fields
}

func newClient() *client.Client {
	return client.New(viper.GetString("server.url"))
}

func issueListRun(ctx context.Context, project string, filters map[string]string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	issues, err := newClient().List(ctx, project, filters)
	if err != nil {
		return err
	}

	if issueJSON {
		return ui.JSON(issues)
	}
	if len(issues) == 0 {
		ui.Info("No issues found in %s.", project)
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Created By", "Assigned To", "Status", "State", "Updated"})
	for _, issue := range issues {
		_ = table.Append([]string{
			output.Cyan(issue.ID),
			output.Truncate(issue.Title, 40),
			issue.CreatedBy,
			issue.AssignedTo,
			issue.StatusText,
			output.OpenColor(issue.Open),
			issue.UpdatedOn.Local().Format(time.DateTime),
		})
	}
	_ = table.Render()
	return nil
}

func issueAddRun(ctx context.Context, project string, fields map[string]string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if dryRun {
		ui.DryRunMsg("Would add issue %q to %s", fields[models.FieldTitle], project)
		return nil
	}

	issue, err := newClient().Create(ctx, project, fields)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	ui.Success("Created issue %s: %s", output.Cyan(issue.ID), issue.Title)
	return nil
}

func issueUpdateRun(ctx context.Context, project, id string, fields map[string]string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if dryRun {
		ui.DryRunMsg("Would update issue %s in %s (%d field(s))", id, project, len(fields))
		return nil
	}

	fields[models.FieldID] = id
	res, err := newClient().Update(ctx, project, fields)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	ui.Success("%s %s", res.Result, output.Cyan(res.ID))
	return nil
}

func issueDeleteRun(ctx context.Context, project, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if dryRun {
		ui.DryRunMsg("Would delete issue %s from %s", id, project)
		return nil
	}

	res, err := newClient().Delete(ctx, project, id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	ui.Success("%s %s", res.Result, output.Cyan(res.ID))
	return nil
}

func issueProjectsRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	names, err := newClient().Projects(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		ui.Info("No projects yet.")
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(ui.Out, name)
	}
	return nil
}
