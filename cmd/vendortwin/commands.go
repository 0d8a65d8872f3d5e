package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/vendortwin/internal/app"
	"github.com/efebarandurmaz/vendortwin/internal/config"
	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
	"github.com/efebarandurmaz/vendortwin/internal/loader"
	"github.com/efebarandurmaz/vendortwin/internal/maintenance"
	"github.com/efebarandurmaz/vendortwin/internal/observability"
	"github.com/efebarandurmaz/vendortwin/internal/simulation"
)

// loadConfig reads path. A missing default file falls back to defaults and
// the environment; a missing file the user named is an error.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		fmt.Fprintf(os.Stderr, "Warning: %s not found, using defaults\n", path)
		path = ""
	}
	return config.Load(path)
}

func setupLogging(cfg *config.Config) {
	slog.SetDefault(observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr))
}

// openApp builds the application. Serving connects the result cache and
// the dashboard feed, which one-shot commands do not need.
func openApp(ctx context.Context, cfg *config.Config, serving bool) (*app.App, error) {
	return app.New(ctx, cfg, app.Options{Version: version, Logger: slog.Default(), Results: serving, Feed: serving})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(w io.Writer, kind string, r loader.Report) {
	fmt.Fprintf(w, "Loaded %s: %d vendors, %d services, %d processes, %d controls, %d edges",
		kind, r.Vendors, r.Services, r.Processes, r.Controls, r.Edges)
	if r.Skipped > 0 {
		fmt.Fprintf(w, " (%d entries skipped)", r.Skipped)
	}
	fmt.Fprintln(w)
}

func newLoadCmd(cfg *config.Config) *cobra.Command {
	var (
		complianceFile string
		noCompliance   bool
		clearFirst     bool
		discovery      bool
	)
	cmd := &cobra.Command{
		Use:   "load [dependencies]",
		Short: "Load a dependency document, then the compliance dataset",
		Long: "Load a dependency document from a local path or gs:// URI into the graph.\n" +
			"Defaults to data.dependencies and data.compliance from the config.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location := cfg.Data.Dependencies
			if len(args) == 1 {
				location = args[0]
			}
			if complianceFile == "" && !noCompliance {
				complianceFile = cfg.Data.Compliance
			}
			if noCompliance {
				complianceFile = ""
			}
			return runLoad(cmd.Context(), cmd.OutOrStdout(), cfg, location, complianceFile, clearFirst, discovery)
		},
	}
	cmd.Flags().StringVar(&complianceFile, "compliance-file", "", "Compliance dataset (default data.compliance)")
	cmd.Flags().BoolVar(&noCompliance, "no-compliance", false, "Skip loading the compliance dataset")
	cmd.Flags().BoolVar(&clearFirst, "clear", false, "Delete every vendortwin node before loading")
	cmd.Flags().BoolVar(&discovery, "discovery", false, "Treat the document as a cloud discovery export")
	return cmd
}

func runLoad(ctx context.Context, w io.Writer, cfg *config.Config, location, complianceFile string, clearFirst, discovery bool) error {
	a, err := openApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if clearFirst {
		slog.Warn("clearing graph before load")
		if err := a.Store.Clear(ctx); err != nil {
			return err
		}
		a.Audit.LogClear(location)
	}

	doc, err := loader.ReadDependencies(ctx, location, a.SourceOptions(), discovery, nil)
	if err != nil {
		return err
	}
	report, err := a.Loader(location).Load(ctx, doc)
	if err != nil {
		return err
	}
	printReport(w, "dependencies", report)

	if complianceFile != "" {
		cdoc, err := loader.ReadCompliance(ctx, complianceFile, a.SourceOptions())
		if err != nil {
			return err
		}
		creport, err := a.Loader(complianceFile).LoadCompliance(ctx, cdoc)
		if err != nil {
			return err
		}
		printReport(w, "compliance", creport)
	}

	stats, err := a.Store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, depgraph.FormatStats(stats))
	return nil
}

func newLoadComplianceCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "load-compliance [dataset]",
		Short: "Load compliance controls and link them to vendors",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location := cfg.Data.Compliance
			if len(args) == 1 {
				location = args[0]
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			doc, err := loader.ReadCompliance(ctx, location, a.SourceOptions())
			if err != nil {
				return err
			}
			report, err := a.Loader(location).LoadCompliance(ctx, doc)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), "compliance", report)
			return nil
		},
	}
}

func newMaintainCmd(cfg *config.Config) *cobra.Command {
	var (
		dryRun  bool
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Merge duplicate vendors and services, then create the schema constraints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			report, err := maintenance.Run(ctx, a.Store, a.MaintenanceOptions(dryRun))
			if err != nil {
				return err
			}
			if !dryRun && report.Remaining() == 0 {
				if err := a.Store.EnsureSchema(ctx); err != nil {
					return err
				}
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), report)
			}
			printMaintenance(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan merges without writing")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the report as JSON")
	return cmd
}

func printMaintenance(w io.Writer, r *maintenance.Report) {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "Maintenance%s finished in %s\n", mode, r.Duration)
	for _, p := range []maintenance.PassReport{r.Vendors, r.Services} {
		fmt.Fprintf(w, "  %-8s %d groups, %d merged, %d remaining\n", p.Label, p.Groups, p.Merged, p.Remaining)
		for _, plan := range p.Plans {
			fmt.Fprintf(w, "    %s: keep %s, fold %d\n", plan.Key, plan.CanonicalID, len(plan.DuplicateIDs))
		}
	}
	if r.Warning != "" {
		fmt.Fprintf(w, "Warning: %s\n", r.Warning)
	}
}

func newSimulateCmd(cfg *config.Config) *cobra.Command {
	var (
		vendor   string
		duration float64
		format   string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate a vendor outage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("duration") {
				duration = cfg.Simulation.DefaultDuration
			}
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), cfg, vendor, duration, format, output)
		},
	}
	cmd.Flags().StringVar(&vendor, "vendor", "", `Vendor name (e.g. "Stripe", "auth0")`)
	cmd.Flags().Float64Var(&duration, "duration", 4, "Outage duration in hours (default simulation.default_duration)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json, dot, mermaid")
	cmd.Flags().StringVar(&output, "output", "", "Also write the result JSON to this file")
	_ = cmd.MarkFlagRequired("vendor")
	return cmd
}

func runSimulate(ctx context.Context, w io.Writer, cfg *config.Config, vendor string, hours float64, format, output string) error {
	switch format {
	case "text", "json", "dot", "mermaid":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	a, err := openApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	result, err := a.Simulator.Simulate(ctx, vendor, hours)
	if err != nil {
		return err
	}

	if output != "" {
		if err := writeResult(output, result); err != nil {
			return err
		}
	}

	switch format {
	case "json":
		return printJSON(w, result)
	case "dot":
		fmt.Fprint(w, depgraph.ExportDOT(result.BlastRadius()))
	case "mermaid":
		fmt.Fprint(w, depgraph.ExportMermaid(result.BlastRadius()))
	default:
		fmt.Fprint(w, simulation.FormatSummary(result))
		if output != "" {
			fmt.Fprintf(w, "Results saved to: %s\n", output)
		}
	}
	return nil
}

func writeResult(path string, result *simulation.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := printJSON(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newVendorsCmd(cfg *config.Config) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "vendors",
		Short: "List vendors in the graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			vendors, err := a.Store.ListVendors(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), vendors)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tNAME\tCATEGORY\tCRITICALITY")
			for _, v := range vendors {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.IdentityKey, v.DisplayName, v.Category, v.Criticality)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}

func newStatsCmd(cfg *config.Config) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print node and relationship counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			stats, err := a.Store.Stats(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			fmt.Fprint(cmd.OutOrStdout(), depgraph.FormatStats(stats))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}
