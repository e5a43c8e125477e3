package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/config"
	"github.com/flowmarket/marketplace/internal/models"
)

// Tracker records observable job state. Backed by Redis in production.
type Tracker interface {
	SetJobStatus(ctx context.Context, status *models.JobStatus) error
}

type Producer struct {
	writer  *kafka.Writer
	tracker Tracker
	logger  *zap.Logger
}

func NewProducer(cfg config.KafkaConfig, tracker Tracker, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicJobs,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxRetries,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}

	logger.Info("kafka producer created", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.TopicJobs))

	return &Producer{
		writer:  w,
		tracker: tracker,
		logger:  logger,
	}
}

// EnqueueImport publishes an import job for the given GitHub repository and
// records it as queued. The returned job carries the ID clients poll with.
func (p *Producer) EnqueueImport(ctx context.Context, owner, repo string) (*models.Job, error) {
	job := &models.Job{
		ID:         uuid.New().String(),
		Type:       models.JobTypeImport,
		RepoOwner:  owner,
		RepoName:   repo,
		EnqueuedAt: time.Now().UTC(),
	}
	return job, p.publish(ctx, job)
}

// EnqueueReindex publishes a full search-index rebuild job.
func (p *Producer) EnqueueReindex(ctx context.Context) (*models.Job, error) {
	job := &models.Job{
		ID:         uuid.New().String(),
		Type:       models.JobTypeReindex,
		EnqueuedAt: time.Now().UTC(),
	}
	return job, p.publish(ctx, job)
}

func (p *Producer) publish(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(job.ID),
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "job_type", Value: []byte(job.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing job %s: %w", job.ID, err)
	}

	// Tracker failure is not fatal: the job is already on the topic and will
	// be re-recorded as running once the worker picks it up.
	status := &models.JobStatus{
		ID:         job.ID,
		Type:       job.Type,
		Status:     models.JobStatusQueued,
		EnqueuedAt: job.EnqueuedAt,
	}
	if err := p.tracker.SetJobStatus(ctx, status); err != nil {
		p.logger.Warn("recording queued job status", zap.String("job_id", job.ID), zap.Error(err))
	}

	p.logger.Info("job enqueued", zap.String("job_id", job.ID), zap.String("type", job.Type))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
