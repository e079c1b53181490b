package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openmaraude/apitaxi/internal/hails"
	"github.com/openmaraude/apitaxi/pkg/config"
	"github.com/openmaraude/apitaxi/pkg/db"
	"github.com/openmaraude/apitaxi/pkg/logger"
	"github.com/openmaraude/apitaxi/pkg/pubsub"
	"github.com/openmaraude/apitaxi/pkg/redis"
	"github.com/openmaraude/apitaxi/pkg/taskqueue"
)

const (
	defaultPollInterval = time.Second
	defaultClaimBatch   = 20

	// taskRetryDelay spaces out retries of a watchdog task whose
	// handler failed, typically on a transient database error.
	taskRetryDelay = 5 * time.Second
)

// taskHandler consumes the payload of one claimed task.
type taskHandler func(ctx context.Context, payload json.RawMessage) error

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               *db.Client
	Redis            *redis.Client
	PubSub           *pubsub.Client
	Queue            *taskqueue.Queue
	DeliveryConsumer *hails.DeliveryConsumer
	Hails            *hails.Service
}

type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	db       *db.Client
	redis    *redis.Client
	pubsub   *pubsub.Client
	queue    *taskqueue.Queue
	consumer *hails.DeliveryConsumer
	handlers map[string]taskHandler
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Queue == nil {
		return nil, errors.New("task queue is required")
	}
	if params.DeliveryConsumer == nil {
		return nil, errors.New("delivery consumer is required")
	}
	if params.Hails == nil {
		return nil, errors.New("hails service is required")
	}

	return &Service{
		cfg:      params.Config,
		logg:     params.Logger,
		db:       params.DB,
		redis:    params.Redis,
		pubsub:   params.PubSub,
		queue:    params.Queue,
		consumer: params.DeliveryConsumer,
		handlers: map[string]taskHandler{
			hails.TaskStatusCheck: params.Hails.HandleStatusCheck,
		},
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.consumer.Run(ctx)
	}()
	go func() {
		errCh <- s.pollTasks(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "worker loop stopped unexpectedly", err)
			return err
		}
		return err
	}
}

// pollTasks drains due watchdog tasks from the queue. A handler error
// puts the task back with a delay, so the check is never lost.
func (s *Service) pollTasks(ctx context.Context) error {
	interval := s.cfg.TaskQueue.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	batch := s.cfg.TaskQueue.ClaimBatch
	if batch <= 0 {
		batch = defaultClaimBatch
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		now := time.Now()
		tasks, err := s.queue.Claim(ctx, now, batch)
		if err != nil {
			s.logg.Error(ctx, "claim queued tasks", err)
			continue
		}
		for _, task := range tasks {
			s.runTask(ctx, task, now)
		}
	}
}

func (s *Service) runTask(ctx context.Context, task taskqueue.Task, now time.Time) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"task_id":   task.ID,
		"task_type": task.Type,
	})

	handler, ok := s.handlers[task.Type]
	if !ok {
		s.logg.Warn(logCtx, "dropping task of unknown type")
		return
	}

	if err := handler(logCtx, task.Payload); err != nil {
		s.logg.Error(logCtx, "task handler failed", err)
		if err := s.queue.Enqueue(ctx, task.Type, task.Payload, now.Add(taskRetryDelay)); err != nil {
			s.logg.Error(logCtx, "requeue failed task", err)
		}
	}
}
