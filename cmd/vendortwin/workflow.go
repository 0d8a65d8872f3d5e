package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/efebarandurmaz/vendortwin/internal/app"
	"github.com/efebarandurmaz/vendortwin/internal/config"
	"github.com/efebarandurmaz/vendortwin/internal/maintenance"
	"github.com/efebarandurmaz/vendortwin/internal/temporal"
)

func newWorkflowCmd(cfg *config.Config) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Submit load and maintenance runs to the Temporal worker",
	}
	cmd.PersistentFlags().BoolVar(&wait, "wait", false, "Wait for the workflow result")

	var (
		complianceFile  string
		clearFirst      bool
		discovery       bool
		skipMaintenance bool
	)
	loadCmd := &cobra.Command{
		Use:   "load [dependencies]",
		Short: "Start a LoadWorkflow: dependencies, compliance, maintenance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := temporal.LoadInput{
				Dependencies:    cfg.Data.Dependencies,
				Discovery:       discovery,
				Clear:           clearFirst,
				Compliance:      complianceFile,
				SkipMaintenance: skipMaintenance,
			}
			if len(args) == 1 {
				input.Dependencies = args[0]
			}
			if !cmd.Flags().Changed("compliance-file") {
				input.Compliance = cfg.Data.Compliance
			}
			return submit(cmd, cfg, wait, func(ctx context.Context, c client.Client) (client.WorkflowRun, error) {
				return temporal.StartLoad(ctx, c, cfg.Temporal.TaskQueue, input)
			}, func(run client.WorkflowRun) error {
				var out temporal.LoadOutput
				if err := run.Get(cmd.Context(), &out); err != nil {
					return err
				}
				if out.Dependencies != nil {
					printReport(cmd.OutOrStdout(), "dependencies", *out.Dependencies)
				}
				if out.Compliance != nil {
					printReport(cmd.OutOrStdout(), "compliance", *out.Compliance)
				}
				if out.Maintenance != nil {
					printMaintenance(cmd.OutOrStdout(), out.Maintenance)
				}
				return nil
			})
		},
	}
	loadCmd.Flags().StringVar(&complianceFile, "compliance-file", "", `Compliance dataset (default data.compliance, "" to skip)`)
	loadCmd.Flags().BoolVar(&clearFirst, "clear", false, "Delete every vendortwin node before loading")
	loadCmd.Flags().BoolVar(&discovery, "discovery", false, "Treat the document as a cloud discovery export")
	loadCmd.Flags().BoolVar(&skipMaintenance, "skip-maintenance", false, "Do not run maintenance after loading")

	var dryRun bool
	maintainCmd := &cobra.Command{
		Use:   "maintain",
		Short: "Start the MaintenanceWorkflow; only one may run at a time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd, cfg, wait, func(ctx context.Context, c client.Client) (client.WorkflowRun, error) {
				return temporal.StartMaintenance(ctx, c, cfg.Temporal.TaskQueue, temporal.MaintenanceInput{DryRun: dryRun})
			}, func(run client.WorkflowRun) error {
				var report maintenance.Report
				if err := run.Get(cmd.Context(), &report); err != nil {
					return err
				}
				printMaintenance(cmd.OutOrStdout(), &report)
				return nil
			})
		},
	}
	maintainCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan merges without writing")

	cmd.AddCommand(loadCmd, maintainCmd)
	return cmd
}

// submit starts a workflow and, with wait, prints its result.
func submit(cmd *cobra.Command, cfg *config.Config, wait bool,
	start func(context.Context, client.Client) (client.WorkflowRun, error),
	result func(client.WorkflowRun) error,
) error {
	ctx := cmd.Context()
	c, err := app.TemporalClient(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer c.Close()

	run, err := start(ctx, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Started workflow %s (run %s)\n", run.GetID(), run.GetRunID())
	if !wait {
		return nil
	}
	return result(run)
}
