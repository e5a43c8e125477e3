package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/config"
	"github.com/flowmarket/marketplace/internal/importer"
	"github.com/flowmarket/marketplace/internal/models"
	"github.com/flowmarket/marketplace/internal/store"
)

type fakeRunner struct {
	result *importer.Result
	err    error
	owner  string
	repo   string
}

func (f *fakeRunner) Run(ctx context.Context, owner, repo string) (*importer.Result, error) {
	f.owner, f.repo = owner, repo
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeIndexer struct {
	cleared []string
	indexed map[string]int
}

func (f *fakeIndexer) IndexDocuments(ctx context.Context, index string, docs []any) int {
	if f.indexed == nil {
		f.indexed = make(map[string]int)
	}
	f.indexed[index] = len(docs)
	return len(docs)
}

func (f *fakeIndexer) ClearIndex(ctx context.Context, index string) error {
	f.cleared = append(f.cleared, index)
	return nil
}

func (f *fakeIndexer) TemplatesIndex() string   { return "templates" }
func (f *fakeIndexer) FreelancersIndex() string { return "freelancers" }

type fakeCatalog struct {
	templates   []store.Template
	freelancers []store.Freelancer
	listErr     error
}

func (f *fakeCatalog) ListAllTemplates(ctx context.Context) ([]store.Template, error) {
	return f.templates, f.listErr
}

func (f *fakeCatalog) ListAllFreelancers(ctx context.Context) ([]store.Freelancer, error) {
	return f.freelancers, f.listErr
}

type fakeTracker struct {
	statuses []models.JobStatus
}

func (f *fakeTracker) SetJobStatus(ctx context.Context, status *models.JobStatus) error {
	f.statuses = append(f.statuses, *status)
	return nil
}

func (f *fakeTracker) last(t *testing.T) models.JobStatus {
	t.Helper()
	if len(f.statuses) == 0 {
		t.Fatal("no statuses recorded")
	}
	return f.statuses[len(f.statuses)-1]
}

func newTestWorker(runner ImportRunner, catalog Catalog) (*Worker, *fakeIndexer, *fakeTracker) {
	idx := &fakeIndexer{}
	tracker := &fakeTracker{}
	cfg := config.ImportConfig{JobTimeout: time.Minute}
	return NewWorker(runner, idx, catalog, tracker, cfg, zap.NewNop()), idx, tracker
}

func TestWorker_ImportJob(t *testing.T) {
	runner := &fakeRunner{result: &importer.Result{Imported: 3, Skipped: 1}}
	catalog := &fakeCatalog{templates: []store.Template{{ID: 1}, {ID: 2}, {ID: 3}}}
	w, idx, tracker := newTestWorker(runner, catalog)

	job := &models.Job{ID: "j1", Type: models.JobTypeImport, EnqueuedAt: time.Now()}
	if err := w.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	last := tracker.last(t)
	if last.Status != models.JobStatusSucceeded {
		t.Errorf("final status = %q, want %q", last.Status, models.JobStatusSucceeded)
	}
	if last.Documents != 3 {
		t.Errorf("documents = %d, want 3", last.Documents)
	}
	if last.StartedAt == nil || last.FinishedAt == nil {
		t.Error("expected started_at and finished_at to be set")
	}
	if idx.indexed["templates"] != 3 {
		t.Errorf("indexed %d templates, want 3", idx.indexed["templates"])
	}
}

func TestWorker_ImportJob_UsesJobRepo(t *testing.T) {
	runner := &fakeRunner{result: &importer.Result{Imported: 1}}
	w, _, _ := newTestWorker(runner, &fakeCatalog{})

	job := &models.Job{
		ID:         "j7",
		Type:       models.JobTypeImport,
		RepoOwner:  "alice",
		RepoName:   "custom-flows",
		EnqueuedAt: time.Now(),
	}
	if err := w.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if runner.owner != "alice" || runner.repo != "custom-flows" {
		t.Errorf("import ran against %s/%s, want alice/custom-flows", runner.owner, runner.repo)
	}
}

func TestWorker_ImportJob_StatusTransitions(t *testing.T) {
	runner := &fakeRunner{result: &importer.Result{}}
	w, _, tracker := newTestWorker(runner, &fakeCatalog{})

	job := &models.Job{ID: "j2", Type: models.JobTypeImport, EnqueuedAt: time.Now()}
	if err := w.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(tracker.statuses) != 2 {
		t.Fatalf("recorded %d statuses, want 2", len(tracker.statuses))
	}
	if tracker.statuses[0].Status != models.JobStatusRunning {
		t.Errorf("first status = %q, want %q", tracker.statuses[0].Status, models.JobStatusRunning)
	}
	if tracker.statuses[1].Status != models.JobStatusSucceeded {
		t.Errorf("second status = %q, want %q", tracker.statuses[1].Status, models.JobStatusSucceeded)
	}
}

func TestWorker_ImportJob_Failure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("rate limited")}
	w, _, tracker := newTestWorker(runner, &fakeCatalog{})

	job := &models.Job{ID: "j3", Type: models.JobTypeImport, EnqueuedAt: time.Now()}
	err := w.Handle(context.Background(), job)
	if err == nil {
		t.Fatal("Handle() expected error")
	}

	last := tracker.last(t)
	if last.Status != models.JobStatusFailed {
		t.Errorf("final status = %q, want %q", last.Status, models.JobStatusFailed)
	}
	if !strings.Contains(last.Error, "rate limited") {
		t.Errorf("status error = %q, want it to mention the cause", last.Error)
	}
}

func TestWorker_ReindexJob(t *testing.T) {
	catalog := &fakeCatalog{
		templates:   []store.Template{{ID: 1}, {ID: 2}},
		freelancers: []store.Freelancer{{ID: 1}},
	}
	w, idx, tracker := newTestWorker(&fakeRunner{}, catalog)

	job := &models.Job{ID: "j4", Type: models.JobTypeReindex, EnqueuedAt: time.Now()}
	if err := w.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	last := tracker.last(t)
	if last.Documents != 3 {
		t.Errorf("documents = %d, want 3", last.Documents)
	}
	if len(idx.cleared) != 2 {
		t.Errorf("cleared %d indexes, want 2", len(idx.cleared))
	}
	if idx.indexed["freelancers"] != 1 {
		t.Errorf("indexed %d freelancers, want 1", idx.indexed["freelancers"])
	}
}

func TestWorker_ReindexJob_ListError(t *testing.T) {
	catalog := &fakeCatalog{listErr: errors.New("db down")}
	w, _, tracker := newTestWorker(&fakeRunner{}, catalog)

	job := &models.Job{ID: "j5", Type: models.JobTypeReindex, EnqueuedAt: time.Now()}
	if err := w.Handle(context.Background(), job); err == nil {
		t.Fatal("Handle() expected error")
	}
	if tracker.last(t).Status != models.JobStatusFailed {
		t.Errorf("final status = %q, want %q", tracker.last(t).Status, models.JobStatusFailed)
	}
}

func TestWorker_UnknownJobType(t *testing.T) {
	w, _, tracker := newTestWorker(&fakeRunner{}, &fakeCatalog{})

	job := &models.Job{ID: "j6", Type: "compact", EnqueuedAt: time.Now()}
	if err := w.Handle(context.Background(), job); err == nil {
		t.Fatal("Handle() expected error for unknown type")
	}
	if tracker.last(t).Status != models.JobStatusFailed {
		t.Errorf("final status = %q, want %q", tracker.last(t).Status, models.JobStatusFailed)
	}
}
