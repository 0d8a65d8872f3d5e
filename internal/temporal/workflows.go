package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/efebarandurmaz/vendortwin/internal/loader"
	"github.com/efebarandurmaz/vendortwin/internal/maintenance"
	"github.com/efebarandurmaz/vendortwin/internal/simulation"
)

// MaintenanceWorkflowID is the fixed id maintenance runs start under, so
// Temporal rejects a second concurrent run.
const MaintenanceWorkflowID = "vendortwin-maintenance"

const maxAttempts = 3

// LoadInput holds the load workflow parameters.
type LoadInput struct {
	// Dependencies is a local path or gs:// URI. Empty skips the step.
	Dependencies string
	// Discovery marks Dependencies as a cloud discovery export.
	Discovery bool
	// Clear wipes the graph before loading.
	Clear bool
	// Compliance is a local path or gs:// URI. Empty skips the step.
	Compliance string
	// SkipMaintenance leaves duplicate repair to a separate run.
	SkipMaintenance bool
}

// LoadOutput holds the load workflow result.
type LoadOutput struct {
	Dependencies *loader.Report
	Compliance   *loader.Report
	Maintenance  *maintenance.Report
}

// MaintenanceInput holds the maintenance workflow parameters.
type MaintenanceInput struct {
	DryRun bool
}

// SimulationInput holds the simulation workflow parameters.
type SimulationInput struct {
	Vendor        string
	DurationHours float64
}

func activityContext(ctx workflow.Context, timeout time.Duration) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    maxAttempts,
		},
	})
}

// LoadWorkflow loads dependencies, then compliance, then repairs duplicates.
func LoadWorkflow(ctx workflow.Context, input LoadInput) (*LoadOutput, error) {
	ctx = activityContext(ctx, 10*time.Minute)
	logger := workflow.GetLogger(ctx)
	var a *Activities
	out := &LoadOutput{}

	if input.Dependencies != "" {
		var report loader.Report
		if err := workflow.ExecuteActivity(ctx, a.LoadDependencies, input).Get(ctx, &report); err != nil {
			return nil, fmt.Errorf("load dependencies: %w", err)
		}
		out.Dependencies = &report
		logger.Info("dependencies loaded", "vendors", report.Vendors, "services", report.Services)
	}

	if input.Compliance != "" {
		var report loader.Report
		if err := workflow.ExecuteActivity(ctx, a.LoadCompliance, input.Compliance).Get(ctx, &report); err != nil {
			return nil, fmt.Errorf("load compliance: %w", err)
		}
		out.Compliance = &report
		logger.Info("compliance loaded", "controls", report.Controls)
	}

	if !input.SkipMaintenance {
		var report maintenance.Report
		if err := workflow.ExecuteActivity(ctx, a.Maintain, MaintenanceInput{}).Get(ctx, &report); err != nil {
			return nil, fmt.Errorf("maintenance: %w", err)
		}
		out.Maintenance = &report
	}
	return out, nil
}

// MaintenanceWorkflow runs the duplicate merge passes on their own.
func MaintenanceWorkflow(ctx workflow.Context, input MaintenanceInput) (*maintenance.Report, error) {
	ctx = activityContext(ctx, 30*time.Minute)
	var a *Activities
	var report maintenance.Report
	if err := workflow.ExecuteActivity(ctx, a.Maintain, input).Get(ctx, &report); err != nil {
		return nil, fmt.Errorf("maintenance: %w", err)
	}
	if report.Warning != "" {
		workflow.GetLogger(ctx).Warn("duplicates remain", "warning", report.Warning)
	}
	return &report, nil
}

// SimulationWorkflow runs one simulation as a durable job.
func SimulationWorkflow(ctx workflow.Context, input SimulationInput) (*simulation.Result, error) {
	ctx = activityContext(ctx, 2*time.Minute)
	var a *Activities
	var result simulation.Result
	if err := workflow.ExecuteActivity(ctx, a.Simulate, input).Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("simulate %s: %w", input.Vendor, err)
	}
	return &result, nil
}
