package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"time"

	"autogensocial/internal/util"
	"autogensocial/pkg/ai"
	"autogensocial/pkg/domain"
	"autogensocial/pkg/metrics"
	"autogensocial/pkg/prompt"
	"autogensocial/pkg/queue"
	"autogensocial/pkg/social"
	"autogensocial/pkg/storage"
	"autogensocial/pkg/store"
)

// Publisher posts uploaded assets to the post's social accounts.
type Publisher interface {
	Publish(ctx context.Context, accounts []domain.SocialAccount, brand domain.Brand, imageURLs []string, caption string) social.Outcome
}

// Config holds runtime dependencies for the orchestration core.
type Config struct {
	Store       store.Store
	DatabaseURL string
	Completion  ai.CompletionClient
	Assembler   *prompt.Assembler
	Renderer    Renderer
	Objects     storage.ObjectStore
	Publisher   Publisher
	Metrics     *metrics.Collector
	// CheckpointStages also persists the record after content and asset
	// generation. Off by default: a run writes the record twice.
	CheckpointStages bool
}

// App runs the post orchestration pipeline.
type App struct {
	store      store.Store
	completion ai.CompletionClient
	assembler  *prompt.Assembler
	renderer   Renderer
	objects    storage.ObjectStore
	publisher  Publisher
	metrics    *metrics.Collector
	checkpoint bool
	now        func() time.Time
}

// New constructs the application. A database-backed store is opened when no
// Store is supplied.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		gs, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		dataStore = gs
	}
	if cfg.Completion == nil {
		return nil, fmt.Errorf("completion client required")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("image renderer required")
	}
	if cfg.Objects == nil {
		return nil, fmt.Errorf("object store required")
	}
	assembler := cfg.Assembler
	if assembler == nil {
		assembler = prompt.NewAssembler(nil, nil)
	}
	return &App{
		store:      dataStore,
		completion: cfg.Completion,
		assembler:  assembler,
		renderer:   cfg.Renderer,
		objects:    cfg.Objects,
		publisher:  cfg.Publisher,
		metrics:    cfg.Metrics,
		checkpoint: cfg.CheckpointStages,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the backing store when it holds resources.
func (a *App) Close() error {
	if c, ok := a.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Orchestrate runs one pipeline for (brandID, templateID). Input and template
// errors are returned before any record exists. Once the record is created the
// returned post is always the last persisted state, also on error.
func (a *App) Orchestrate(ctx context.Context, brandID, templateID string) (domain.PostRecord, error) {
	brandID = strings.TrimSpace(brandID)
	templateID = strings.TrimSpace(templateID)
	if brandID == "" || templateID == "" {
		return domain.PostRecord{}, ErrInvalidInput
	}

	tpl, ok, err := a.store.GetTemplate(ctx, templateID, brandID)
	if err != nil {
		return domain.PostRecord{}, fmt.Errorf("load template: %w", err)
	}
	if !ok {
		return domain.PostRecord{}, ErrTemplateNotFound
	}
	if pt := tpl.Settings.PromptTemplate; pt == nil || strings.TrimSpace(pt.UserPrompt) == "" {
		return domain.PostRecord{}, ErrInvalidTemplate
	}
	brand, brandOK, err := a.store.GetBrand(ctx, brandID)
	if err != nil {
		return domain.PostRecord{}, fmt.Errorf("load brand: %w", err)
	}

	now := a.now()
	base := domain.PostRecord{
		ID:             util.NewID(),
		BrandID:        brandID,
		TemplateID:     templateID,
		Status:         domain.StatusGeneratingContent,
		SocialAccounts: socialAccounts(tpl, brand),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.store.CreatePost(ctx, base); err != nil {
		return domain.PostRecord{}, fmt.Errorf("create post: %w", err)
	}

	logger := util.LoggerFromContext(ctx).With("post_id", base.ID, "brand_id", brandID, "template_id", templateID)
	ctx = util.ContextWithLogger(ctx, logger)
	logger.Info("post created")

	post, runErr := a.run(ctx, tpl, brand, brandOK, base)
	persistCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		logger.Error("pipeline failed", "err", runErr)
		failed := base
		failed.Status = domain.StatusError
		failed.Error = failureMessage(runErr)
		failed.UpdatedAt = a.now()
		if err := a.store.ReplacePost(persistCtx, failed); err != nil {
			logger.Error("persist error state failed", "err", err)
			return base, errors.Join(runErr, fmt.Errorf("persist post: %w", err))
		}
		a.metrics.PipelineRun(string(domain.StatusError))
		return failed, runErr
	}

	post.UpdatedAt = a.now()
	if err := a.store.ReplacePost(persistCtx, post); err != nil {
		logger.Error("persist final state failed", "err", err)
		return base, fmt.Errorf("persist post: %w", err)
	}
	a.metrics.PipelineRun(string(post.Status))
	logger.Info("pipeline finished", "status", post.Status, "images", len(post.ImageURLs))
	return post, nil
}

func (a *App) run(ctx context.Context, tpl domain.Template, brand domain.Brand, brandOK bool, post domain.PostRecord) (domain.PostRecord, error) {
	contentType := tpl.Settings.ContentTypeOrDefault()

	var content domain.GeneratedContent
	err := a.runStage(ctx, StageContent, func(ctx context.Context) error {
		var err error
		content, err = a.generateContent(ctx, tpl.Settings.PromptTemplate, contentType)
		return err
	})
	if err != nil {
		return post, err
	}
	post.ContentResponse = content.Raw
	a.checkpointPost(ctx, post)

	if plan, ok := planAssets(contentType, tpl.Settings.ContentItem, content); ok {
		err = a.runStage(ctx, StageAssets, func(ctx context.Context) error {
			urls, err := a.generateAssets(ctx, plan, brand.UserID, post)
			post.ImageURLs = urls
			return err
		})
		if err != nil {
			return post, err
		}
		a.checkpointPost(ctx, post)
	}

	logger := util.LoggerFromContext(ctx)
	switch {
	case len(post.ImageURLs) == 0:
		logger.Info("publish skipped", "reason", social.MsgNoAssets)
	case !brandOK:
		logger.Info("publish skipped", "reason", "brand not found")
	default:
		err = a.runStage(ctx, StagePublish, func(ctx context.Context) error {
			if a.publisher == nil {
				return fmt.Errorf("%w: no publisher configured", ErrPublish)
			}
			outcome := a.publisher.Publish(ctx, post.SocialAccounts, brand, post.ImageURLs, social.Caption(content.Comment, content.Hashtags))
			post.PostResult = outcome.Result
			a.recordPublish(outcome.Result)
			if !outcome.Attempted {
				logger.Info("publish skipped", "reason", outcome.Message)
				return nil
			}
			logger.Info("publish finished", "success", outcome.Result != nil && outcome.Result.Success, "message", outcome.Message)
			return nil
		})
		if err != nil {
			return post, err
		}
	}

	post.Status = domain.StatusGenerated
	if post.PostResult != nil && post.PostResult.Success {
		post.Status = domain.StatusPosted
	}
	return post, nil
}

func (a *App) generateContent(ctx context.Context, tpl *domain.PromptTemplate, contentType domain.ContentType) (domain.GeneratedContent, error) {
	req, err := a.assembler.Assemble(ctx, tpl, contentType)
	if err != nil {
		return domain.GeneratedContent{}, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	raw, err := a.completion.Complete(ctx, req)
	if err != nil {
		if errors.Is(err, ai.ErrEmptyCompletion) {
			return domain.GeneratedContent{}, err
		}
		return domain.GeneratedContent{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return parseContent(raw)
}

// runStage times fn and converts a panic inside it into a stage failure.
func (a *App) runStage(ctx context.Context, stage string, fn func(context.Context) error) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			util.LoggerFromContext(ctx).Error("pipeline stage panic", "stage", stage, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("unexpected fault: %v", r)
			if stage == StagePublish {
				err = fmt.Errorf("%w: %w", ErrPublish, err)
			}
		}
		a.metrics.ObserveStage(stage, time.Since(start))
		if err != nil {
			err = &StageError{Stage: stage, Err: err}
		}
	}()
	return fn(ctx)
}

func (a *App) checkpointPost(ctx context.Context, post domain.PostRecord) {
	if !a.checkpoint {
		return
	}
	post.UpdatedAt = a.now()
	if err := a.store.ReplacePost(context.WithoutCancel(ctx), post); err != nil {
		util.LoggerFromContext(ctx).Warn("checkpoint post failed", "err", err)
	}
}

func (a *App) recordPublish(result *domain.PostResult) {
	if result == nil {
		return
	}
	for _, pr := range result.Platforms {
		outcome := "failure"
		switch {
		case pr.Skipped:
			outcome = "skipped"
		case pr.Success:
			outcome = "success"
		}
		a.metrics.PublishResult(string(pr.Platform), outcome)
	}
}

// GetPost returns a stored post record.
func (a *App) GetPost(ctx context.Context, postID, brandID string) (domain.PostRecord, error) {
	postID = strings.TrimSpace(postID)
	brandID = strings.TrimSpace(brandID)
	if postID == "" || brandID == "" {
		return domain.PostRecord{}, ErrInvalidInput
	}
	post, ok, err := a.store.GetPost(ctx, postID, brandID)
	if err != nil {
		return domain.PostRecord{}, err
	}
	if !ok {
		return domain.PostRecord{}, ErrPostNotFound
	}
	return post, nil
}

// ListPosts returns a brand's posts, newest first.
func (a *App) ListPosts(ctx context.Context, brandID string, limit int) ([]domain.PostRecord, error) {
	brandID = strings.TrimSpace(brandID)
	if brandID == "" {
		return nil, ErrInvalidInput
	}
	return a.store.ListPostsByBrand(ctx, brandID, limit)
}

func socialAccounts(tpl domain.Template, brand domain.Brand) []domain.SocialAccount {
	out := make([]domain.SocialAccount, 0, len(tpl.Info.SocialAccounts))
	for _, acc := range tpl.Info.SocialAccounts {
		platform := domain.NormalizePlatform(string(acc.Platform))
		if platform == "" {
			continue
		}
		entry := domain.SocialAccount{Platform: platform}
		if _, ok := brand.Credentials(platform); ok {
			entry.CredentialsRef = fmt.Sprintf("brand:%s:%s", brand.ID, platform)
		}
		out = append(out, entry)
	}
	return out
}

// failureMessage is the cause of a stage failure without the stage prefix.
func failureMessage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Err.Error()
	}
	return err.Error()
}

// RunJob is the queue handler for asynchronous orchestration requests.
func (a *App) RunJob(ctx context.Context, job queue.JobStatus) (queue.JobResult, error) {
	logger := util.LoggerFromContext(ctx).With("job_id", job.ID)
	post, err := a.Orchestrate(util.ContextWithLogger(ctx, logger), job.BrandID, job.TemplateID)
	return queue.JobResult{PostID: post.ID, PostStatus: string(post.Status)}, err
}
