package importer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/config"
	"github.com/flowmarket/marketplace/internal/store"
)

// TemplateStore is the slice of the store the importer writes through.
type TemplateStore interface {
	UpsertTemplateBySlug(ctx context.Context, t *store.Template) (bool, error)
	GetTemplateBySlug(ctx context.Context, slug string) (*store.Template, error)
	CreateTemplate(ctx context.Context, t *store.Template) error
}

// Importer walks a GitHub repository of workflow templates and loads
// them into the store. Every write keys on the slug, so re-running an
// import refreshes existing rows instead of duplicating them.
type Importer struct {
	store  TemplateStore
	gh     *githubClient
	cfg    config.ImportConfig
	logger *zap.Logger
}

func New(st TemplateStore, cfg config.ImportConfig, logger *zap.Logger) *Importer {
	return &Importer{
		store:  st,
		gh:     newGitHubClient(cfg.GitHubToken, logger),
		cfg:    cfg,
		logger: logger,
	}
}

// Result summarizes one import run.
type Result struct {
	Imported int
	Skipped  int
}

// Run imports templates from a repository: JSON workflow files from the
// tree, then metadata rows from the README tables. Empty owner or repo
// fall back to the configured source repository. A single bad file is
// logged and skipped, never fatal.
func (imp *Importer) Run(ctx context.Context, owner, repo string) (*Result, error) {
	if owner == "" {
		owner = imp.cfg.RepoOwner
	}
	if repo == "" {
		repo = imp.cfg.RepoName
	}
	imp.logger.Info("starting template import",
		zap.String("repo", owner+"/"+repo),
	)

	items, err := imp.gh.listContents(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	for _, item := range items {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		switch {
		case item.Type == "dir":
			imp.importDirectory(ctx, item, owner, result)
		case strings.HasSuffix(item.Name, ".json"):
			imp.importFile(ctx, item, "General", owner, result)
		}
	}

	imp.importReadmeMetadata(ctx, owner, repo, result)

	imp.logger.Info("template import finished",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (imp *Importer) importDirectory(ctx context.Context, dir repoItem, owner string, result *Result) {
	category := categoryFromDirName(dir.Name)

	files, err := imp.gh.listURL(ctx, dir.URL)
	if err != nil {
		imp.logger.Warn("listing category directory failed",
			zap.String("category", category),
			zap.Error(err),
		)
		return
	}

	for _, file := range files {
		if ctx.Err() != nil {
			return
		}
		if strings.HasSuffix(file.Name, ".json") {
			imp.importFile(ctx, file, category, owner, result)
		}
	}
}

func (imp *Importer) importFile(ctx context.Context, file repoItem, category, owner string, result *Result) {
	workflow, raw, err := imp.gh.fetchJSON(ctx, file.DownloadURL)
	if err != nil {
		imp.logger.Warn("skipping template file",
			zap.String("file", file.Name),
			zap.Error(err),
		)
		result.Skipped++
		return
	}

	tmpl := &store.Template{
		Title:       titleFromFilename(file.Name),
		Slug:        GenerateSlug(file.Name),
		Description: stringField(workflow, "description"),
		Category:    category,
		Tags:        store.StringList(ExtractTags(workflow)),
		SourceURL:   file.HTMLURL,
		Workflow:    json.RawMessage(raw),
		AuthorName:  owner,
		License:     "unknown",
	}

	if _, err := imp.store.UpsertTemplateBySlug(ctx, tmpl); err != nil {
		imp.logger.Warn("saving template failed",
			zap.String("slug", tmpl.Slug),
			zap.Error(err),
		)
		result.Skipped++
		return
	}
	result.Imported++
}

// importReadmeMetadata adds README table rows as metadata-only
// templates. Rows whose slug already exists are left untouched: a
// workflow file import is richer than a README row.
func (imp *Importer) importReadmeMetadata(ctx context.Context, owner, repo string, result *Result) {
	content, err := imp.gh.fetchReadme(ctx, owner, repo)
	if err != nil {
		imp.logger.Warn("fetching readme failed", zap.Error(err))
		return
	}

	for _, meta := range parseReadmeTemplates(content, owner) {
		if ctx.Err() != nil {
			return
		}

		slug := GenerateSlug(meta.Title)
		if _, err := imp.store.GetTemplateBySlug(ctx, slug); err == nil {
			result.Skipped++
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			imp.logger.Warn("slug lookup failed", zap.String("slug", slug), zap.Error(err))
			continue
		}

		var tags store.StringList
		if meta.Department != "" {
			tags = store.StringList{meta.Department}
		}

		tmpl := &store.Template{
			Title:       meta.Title,
			Slug:        slug,
			Description: meta.Description,
			Category:    meta.Category,
			Tags:        tags,
			SourceURL:   meta.SourceURL,
			AuthorName:  meta.AuthorName,
			License:     "unknown",
		}
		if err := imp.store.CreateTemplate(ctx, tmpl); err != nil {
			imp.logger.Warn("saving readme template failed",
				zap.String("slug", slug),
				zap.Error(err),
			)
			result.Skipped++
			continue
		}
		result.Imported++
	}
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
