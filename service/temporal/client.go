package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// CreateSweepSchedule creates the recurring checkpoint sweep schedule.
// Creating a schedule that already exists returns an error; callers that
// want upsert semantics should delete first.
func (c *Client) CreateSweepSchedule(ctx context.Context, interval, olderThan time.Duration) error {
	c.logger.Debug("creating checkpoint sweep schedule",
		"schedule_id", sweepScheduleID,
		"interval", interval,
		"older_than", olderThan,
	)

	scheduleSpec := client.ScheduleSpec{
		Intervals: []client.ScheduleIntervalSpec{
			{
				Every: interval,
			},
		},
	}

	workflowAction := client.ScheduleWorkflowAction{
		ID:        "sweep-checkpoints-run",
		Workflow:  "SweepCheckpointsWorkflow",
		TaskQueue: c.taskQueue,
		Args: []interface{}{SweepCheckpointsInput{
			OlderThan: olderThan,
		}},
	}

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID:     sweepScheduleID,
		Spec:   scheduleSpec,
		Action: &workflowAction,
		Memo: map[string]interface{}{
			"older_than": olderThan.String(),
			"created_by": "solspray",
		},
	})

	if err != nil {
		c.logger.Error("failed to create sweep schedule",
			"schedule_id", sweepScheduleID,
			"error", err,
		)
		return fmt.Errorf("failed to create schedule %q: %w", sweepScheduleID, err)
	}

	c.logger.Info("checkpoint sweep schedule created",
		"schedule_id", sweepScheduleID,
		"interval", interval,
		"older_than", olderThan,
	)

	return nil
}

// DeleteSweepSchedule deletes the recurring checkpoint sweep schedule.
func (c *Client) DeleteSweepSchedule(ctx context.Context) error {
	c.logger.Debug("deleting checkpoint sweep schedule", "schedule_id", sweepScheduleID)

	handle := c.client.ScheduleClient().GetHandle(ctx, sweepScheduleID)
	if err := handle.Delete(ctx); err != nil {
		c.logger.Error("failed to delete sweep schedule",
			"schedule_id", sweepScheduleID,
			"error", err,
		)
		return fmt.Errorf("failed to delete schedule %q: %w", sweepScheduleID, err)
	}

	c.logger.Info("checkpoint sweep schedule deleted", "schedule_id", sweepScheduleID)
	return nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
