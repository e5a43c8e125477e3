package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/config"
	"github.com/flowmarket/marketplace/internal/importer"
	"github.com/flowmarket/marketplace/internal/models"
	"github.com/flowmarket/marketplace/internal/observability"
	"github.com/flowmarket/marketplace/internal/store"
)

// ImportRunner executes a single import sweep. Empty owner and repo
// mean the configured source repository.
type ImportRunner interface {
	Run(ctx context.Context, owner, repo string) (*importer.Result, error)
}

// Indexer is the slice of the search client the worker needs for rebuilds.
type Indexer interface {
	IndexDocuments(ctx context.Context, index string, docs []any) int
	ClearIndex(ctx context.Context, index string) error
	TemplatesIndex() string
	FreelancersIndex() string
}

// Catalog lists the authoritative rows that feed the search indexes.
type Catalog interface {
	ListAllTemplates(ctx context.Context) ([]store.Template, error)
	ListAllFreelancers(ctx context.Context) ([]store.Freelancer, error)
}

// Worker processes jobs fetched from the jobs topic. It owns the status
// lifecycle: every job it touches moves queued -> running -> succeeded|failed
// in the tracker, so callers can poll progress without reaching into Kafka.
type Worker struct {
	importer ImportRunner
	indexer  Indexer
	catalog  Catalog
	tracker  Tracker
	cfg      config.ImportConfig
	logger   *zap.Logger
}

func NewWorker(imp ImportRunner, idx Indexer, catalog Catalog, tracker Tracker, cfg config.ImportConfig, logger *zap.Logger) *Worker {
	return &Worker{
		importer: imp,
		indexer:  idx,
		catalog:  catalog,
		tracker:  tracker,
		cfg:      cfg,
		logger:   logger,
	}
}

// Handle runs one job to completion. The returned error drives the consumer's
// retry-then-DLQ path, so it is only non-nil for failures worth retrying.
func (w *Worker) Handle(ctx context.Context, job *models.Job) error {
	start := time.Now()
	now := start.UTC()

	status := &models.JobStatus{
		ID:         job.ID,
		Type:       job.Type,
		Status:     models.JobStatusRunning,
		EnqueuedAt: job.EnqueuedAt,
		StartedAt:  &now,
	}
	w.setStatus(ctx, status)

	var (
		documents int
		err       error
	)
	switch job.Type {
	case models.JobTypeImport:
		documents, err = w.runImport(ctx, job.RepoOwner, job.RepoName)
	case models.JobTypeReindex:
		documents, err = w.runReindex(ctx)
	default:
		err = fmt.Errorf("unknown job type %q", job.Type)
	}

	finished := time.Now().UTC()
	status.FinishedAt = &finished
	status.Documents = documents

	duration := time.Since(start)
	observability.JobDuration.WithLabelValues(job.Type).Observe(duration.Seconds())

	if err != nil {
		status.Status = models.JobStatusFailed
		status.Error = err.Error()
		w.setStatus(ctx, status)
		observability.JobsTotal.WithLabelValues(job.Type, "failed").Inc()
		w.logger.Error("job failed",
			zap.String("job_id", job.ID),
			zap.String("type", job.Type),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return err
	}

	status.Status = models.JobStatusSucceeded
	w.setStatus(ctx, status)
	observability.JobsTotal.WithLabelValues(job.Type, "succeeded").Inc()
	w.logger.Info("job succeeded",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("documents", documents),
		zap.Duration("duration", duration),
	)
	return nil
}

// runImport sweeps the job's repository into MySQL, then pushes the full
// template catalog into the search index so new rows are queryable.
func (w *Worker) runImport(ctx context.Context, owner, repo string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	result, err := w.importer.Run(ctx, owner, repo)
	if err != nil {
		return 0, fmt.Errorf("import run: %w", err)
	}

	indexed, err := w.reindexTemplates(ctx)
	if err != nil {
		return result.Imported, fmt.Errorf("indexing imported templates: %w", err)
	}

	w.logger.Info("import complete",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("indexed", indexed),
	)
	return result.Imported, nil
}

// runReindex rebuilds both search indexes from the authoritative store.
func (w *Worker) runReindex(ctx context.Context) (int, error) {
	templates, err := w.reindexTemplates(ctx)
	if err != nil {
		return 0, err
	}

	freelancers, err := w.reindexFreelancers(ctx)
	if err != nil {
		return templates, err
	}

	return templates + freelancers, nil
}

func (w *Worker) reindexTemplates(ctx context.Context) (int, error) {
	templates, err := w.catalog.ListAllTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing templates: %w", err)
	}

	index := w.indexer.TemplatesIndex()
	if err := w.indexer.ClearIndex(ctx, index); err != nil {
		return 0, fmt.Errorf("clearing index %s: %w", index, err)
	}

	docs := make([]any, len(templates))
	for i := range templates {
		docs[i] = templates[i].SearchDocument()
	}
	return w.indexer.IndexDocuments(ctx, index, docs), nil
}

func (w *Worker) reindexFreelancers(ctx context.Context) (int, error) {
	freelancers, err := w.catalog.ListAllFreelancers(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing freelancers: %w", err)
	}

	index := w.indexer.FreelancersIndex()
	if err := w.indexer.ClearIndex(ctx, index); err != nil {
		return 0, fmt.Errorf("clearing index %s: %w", index, err)
	}

	docs := make([]any, len(freelancers))
	for i := range freelancers {
		docs[i] = freelancers[i].SearchDocument()
	}
	return w.indexer.IndexDocuments(ctx, index, docs), nil
}

func (w *Worker) setStatus(ctx context.Context, status *models.JobStatus) {
	if err := w.tracker.SetJobStatus(ctx, status); err != nil {
		w.logger.Warn("recording job status",
			zap.String("job_id", status.ID),
			zap.String("status", status.Status),
			zap.Error(err),
		)
	}
}
