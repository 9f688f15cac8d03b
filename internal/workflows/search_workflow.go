package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/store"
)

type SearchInput struct {
	RunID string
}

type SearchResult struct {
	Status string
}

// SearchWorkflow runs one stored search request. The answer activity is
// attempted once; a failure is recorded by HandleSearchFailure.
func SearchWorkflow(ctx workflow.Context, input SearchInput) (SearchResult, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)
	logger := workflow.GetLogger(ctx)

	output := ExecuteSearchOutput{}
	err := workflow.ExecuteActivity(ctx, "ExecuteSearch", ExecuteSearchInput{RunID: input.RunID}).Get(ctx, &output)
	if err == nil {
		return SearchResult{Status: output.Status}, nil
	}
	if temporal.IsCanceledError(err) || ctx.Err() != nil {
		logger.Info("search run cancelled", "run_id", input.RunID)
		return SearchResult{Status: store.RunStatusCancelled}, nil
	}

	logger.Error("search activity failed", "run_id", input.RunID, "error", err)
	failureInput := RunFailureInput{
		RunID: input.RunID,
		Error: "search: " + err.Error(),
	}
	if failureErr := workflow.ExecuteActivity(ctx, "HandleSearchFailure", failureInput).Get(ctx, nil); failureErr != nil {
		logger.Error("failed to persist run failure", "error", failureErr)
	}
	return SearchResult{Status: store.RunStatusFailed}, nil
}
