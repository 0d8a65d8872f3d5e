package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

// ClientConfig locates the Temporal frontend.
type ClientConfig struct {
	Host      string
	Namespace string
	// APIKey authenticates against Temporal Cloud when set.
	APIKey string
	Logger *slog.Logger
}

// Dial connects a Temporal client.
func Dial(cfg ClientConfig) (client.Client, error) {
	opts := client.Options{HostPort: cfg.Host, Namespace: cfg.Namespace}
	if cfg.APIKey != "" {
		opts.Credentials = client.NewAPIKeyStaticCredentials(cfg.APIKey)
	}
	if cfg.Logger != nil {
		opts.Logger = tlog.NewStructuredLogger(cfg.Logger)
	}
	c, err := client.Dial(opts)
	if err != nil {
		return nil, fmt.Errorf("temporal client: %w", err)
	}
	return c, nil
}

// StartLoad starts a LoadWorkflow.
func StartLoad(ctx context.Context, c client.Client, taskQueue string, input LoadInput) (client.WorkflowRun, error) {
	return c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{TaskQueue: taskQueue}, LoadWorkflow, input)
}

// StartMaintenance starts a MaintenanceWorkflow under MaintenanceWorkflowID.
// It fails while another maintenance run is open.
func StartMaintenance(ctx context.Context, c client.Client, taskQueue string, input MaintenanceInput) (client.WorkflowRun, error) {
	return c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        MaintenanceWorkflowID,
		TaskQueue: taskQueue,
		// Without this the client returns a handle to the open run instead.
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, MaintenanceWorkflow, input)
}
