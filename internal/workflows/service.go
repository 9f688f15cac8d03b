package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

const DefaultTaskQueue = "livesearch-runs"

type Service struct {
	client    client.Client
	taskQueue string
}

func NewService(client client.Client, taskQueue string) *Service {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &Service{client: client, taskQueue: taskQueue}
}

func (s *Service) StartSearch(ctx context.Context, runID string) error {
	options := client.StartWorkflowOptions{
		ID:        workflowID(runID),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.ExecuteWorkflow(ctx, options, SearchWorkflow, SearchInput{RunID: runID})
	return err
}

func (s *Service) CancelSearch(ctx context.Context, runID string) error {
	return s.client.CancelWorkflow(ctx, workflowID(runID), "")
}

func workflowID(runID string) string {
	return fmt.Sprintf("run:%s", runID)
}
