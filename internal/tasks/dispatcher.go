package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/go-studio/pkg/queue"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher hands background work to the worker. With no Enqueuer (Redis
// unavailable) tasks are dropped with a warning; request handling never
// fails because the queue is down.
type Dispatcher struct {
	client Enqueuer
	logger *slog.Logger
}

func NewDispatcher(client Enqueuer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{client: client, logger: logger}
}

func (d *Dispatcher) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	if d == nil || d.client == nil {
		if d != nil && d.logger != nil {
			d.logger.Warn("task queue unavailable, dropping task", "type", task.Type())
		}
		return nil
	}
	info, err := d.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	d.logger.Debug("enqueued task", "type", task.Type(), "id", info.ID, "queue", info.Queue)
	return nil
}

func (d *Dispatcher) AssignStarterProjects(ctx context.Context, userID uuid.UUID) error {
	task, err := NewStarterProjectsTask(StarterProjectsPayload{UserID: userID})
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task, asynq.Queue(queue.QueueDefault), asynq.MaxRetry(3))
}

func (d *Dispatcher) IndexProject(ctx context.Context, projectID uuid.UUID) error {
	task, err := NewIndexProjectTask(ProjectIndexPayload{ProjectID: projectID})
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task, asynq.Queue(queue.QueueLow))
}

func (d *Dispatcher) RemoveProject(ctx context.Context, payload ProjectRemovalPayload) error {
	task, err := NewRemoveProjectTask(payload)
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task, asynq.Queue(queue.QueueLow))
}

func (d *Dispatcher) TeamInvite(ctx context.Context, payload TeamInvitePayload) error {
	task, err := NewTeamInviteTask(payload)
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task, asynq.Queue(queue.QueueCritical))
}

func (d *Dispatcher) UsageReport(ctx context.Context, day string) error {
	task, err := NewUsageReportTask(UsageReportPayload{Day: day})
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task, asynq.Queue(queue.QueueLow))
}
