// Package recipe provides the application layer for recipe extraction
// and access. ProcessVideo drives the full pipeline from URL to stored
// recipe; the remaining use cases serve what the pipeline stored.
package recipe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/domain/shared"
	"github.com/yambati03/touille/internal/ports/inbound"
	"github.com/yambati03/touille/internal/ports/outbound"
	apperrors "github.com/yambati03/touille/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PipelineOptions carries the runtime knobs for the extraction
// pipeline. Zero values are replaced with safe defaults.
type PipelineOptions struct {
	// WorkDir is where downloads land. Empty means the OS temp dir.
	WorkDir string
	// KeepLocalFiles disables deletion of the downloaded video after
	// transcription.
	KeepLocalFiles bool
	// LockTTL bounds how long one run can hold the per (url, user)
	// process lock.
	LockTTL time.Duration
	// LockPoll and LockWait shape how a second identical request waits
	// for the in-flight run's result.
	LockPoll time.Duration
	LockWait time.Duration
}

func (o PipelineOptions) withDefaults() PipelineOptions {
	if o.LockTTL <= 0 {
		o.LockTTL = 10 * time.Minute
	}
	if o.LockPoll <= 0 {
		o.LockPoll = 2 * time.Second
	}
	if o.LockWait <= 0 {
		o.LockWait = 5 * time.Minute
	}
	return o
}

// RecipeService implements the recipe use cases
type RecipeService struct {
	recipeRepo   outbound.RecipeRepository
	settingsRepo outbound.SettingsRepository
	downloader   outbound.VideoDownloader
	transcriber  outbound.Transcriber
	extractor    outbound.RecipeExtractor
	transcripts  outbound.TranscriptCache
	archive      outbound.MediaArchive
	opts         PipelineOptions
	logger       *zap.Logger
}

// NewRecipeService creates a new recipe service. archive may be nil
// when media archiving is disabled.
func NewRecipeService(
	recipeRepo outbound.RecipeRepository,
	settingsRepo outbound.SettingsRepository,
	downloader outbound.VideoDownloader,
	transcriber outbound.Transcriber,
	extractor outbound.RecipeExtractor,
	transcripts outbound.TranscriptCache,
	archive outbound.MediaArchive,
	opts PipelineOptions,
	logger *zap.Logger,
) inbound.RecipeService {
	return &RecipeService{
		recipeRepo:   recipeRepo,
		settingsRepo: settingsRepo,
		downloader:   downloader,
		transcriber:  transcriber,
		extractor:    extractor,
		transcripts:  transcripts,
		archive:      archive,
		opts:         opts.withDefaults(),
		logger:       logger.Named("recipe-service"),
	}
}

// ProcessVideo runs the extraction pipeline for a video URL. A stored
// recipe for the same (url, user) short-circuits the pipeline unless
// Refresh is set, and a second identical request arriving while one is
// in flight waits for that run's result instead of repeating the work.
func (s *RecipeService) ProcessVideo(ctx context.Context, cmd inbound.ProcessVideoCommand) (*inbound.RecipeDTO, error) {
	normalized, err := recipe.NormalizeURL(cmd.URL)
	if err != nil {
		return nil, apperrors.NewInvalidVideoURLError(cmd.URL)
	}
	ownerID := cmd.UserID
	if ownerID == "" {
		ownerID = recipe.AnonymousUserID
	}
	logger := s.logger.With(
		zap.String("url", normalized),
		zap.String("user_id", ownerID),
	)

	if !cmd.Refresh {
		existing, err := s.recipeRepo.FindByURL(ctx, normalized, ownerID)
		switch {
		case err == nil:
			logger.Debug("Returning stored recipe")
			return s.entityToDTO(existing), nil
		case !errors.Is(err, recipe.ErrRecipeNotFound):
			return nil, apperrors.NewDatabaseError("find recipe by url", err)
		}
	}

	acquired, err := s.transcripts.AcquireProcessLock(ctx, normalized, ownerID, s.opts.LockTTL)
	switch {
	case err != nil:
		// A broken lock store must not take extraction down with it.
		logger.Warn("Process lock unavailable, continuing without it", zap.Error(err))
	case !acquired:
		logger.Info("Identical extraction already in flight, waiting for its result")
		return s.waitForResult(ctx, normalized, ownerID)
	default:
		defer s.transcripts.ReleaseProcessLock(ctx, normalized, ownerID)
	}

	start := time.Now()
	logger.Info("Processing video")

	transcript, caption, err := s.gatherText(ctx, normalized, cmd.Refresh, logger)
	if err != nil {
		return nil, err
	}

	doc, err := s.extractor.Extract(ctx, transcript, caption, s.preferences(ctx, ownerID))
	if err != nil {
		return nil, apperrors.NewExtractionFailedError("the video does not describe a usable recipe", err)
	}

	rec, err := recipe.NewRecipe(normalized, ownerID, transcript, caption, doc)
	if err != nil {
		return nil, apperrors.NewExtractionFailedError("extracted recipe failed validation", err)
	}
	if err := s.recipeRepo.Upsert(ctx, rec); err != nil {
		return nil, apperrors.NewDatabaseError("store recipe", err)
	}
	s.logEvents(logger, rec.Events())

	logger.Info("Video processed",
		zap.String("recipe_id", rec.ID().String()),
		zap.String("title", rec.Document().Title),
		zap.Int("steps", len(rec.Document().Steps)),
		zap.Duration("duration", time.Since(start)),
	)
	return s.entityToDTO(rec), nil
}

// GetRecipe returns one stored recipe. Recipes belonging to another
// user read as not found.
func (s *RecipeService) GetRecipe(ctx context.Context, recipeID uuid.UUID, userID string) (*inbound.RecipeDTO, error) {
	rec, err := s.recipeRepo.FindByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, recipe.ErrRecipeNotFound) {
			return nil, apperrors.NewRecipeNotFoundError(recipeID.String())
		}
		return nil, apperrors.NewDatabaseError("find recipe", err)
	}
	if !rec.OwnedBy(userID) {
		return nil, apperrors.NewRecipeNotFoundError(recipeID.String())
	}
	return s.entityToDTO(rec), nil
}

// ListRecipes returns one page of the user's recipes, newest first.
func (s *RecipeService) ListRecipes(ctx context.Context, userID string, params inbound.PaginationParams) (*inbound.RecipeList, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	size := params.PageSize
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	if userID == "" {
		userID = recipe.AnonymousUserID
	}

	recipes, total, err := s.recipeRepo.FindByUserID(ctx, userID, (page-1)*size, size)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list recipes", err)
	}

	dtos := make([]inbound.RecipeDTO, 0, len(recipes))
	for _, rec := range recipes {
		dtos = append(dtos, *s.entityToDTO(rec))
	}
	return &inbound.RecipeList{
		Recipes:    dtos,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: (total + size - 1) / size,
	}, nil
}

// DeleteRecipe removes a stored recipe the user owns.
func (s *RecipeService) DeleteRecipe(ctx context.Context, recipeID uuid.UUID, userID string) error {
	if userID == "" {
		userID = recipe.AnonymousUserID
	}
	if err := s.recipeRepo.Delete(ctx, recipeID, userID); err != nil {
		if errors.Is(err, recipe.ErrRecipeNotFound) {
			return apperrors.NewRecipeNotFoundError(recipeID.String())
		}
		return apperrors.NewDatabaseError("delete recipe", err)
	}
	s.logger.Info("Recipe deleted",
		zap.String("recipe_id", recipeID.String()),
		zap.String("user_id", userID),
	)
	return nil
}

// gatherText produces the transcript and caption for a URL, from the
// transcript cache when possible and from the full download and
// transcribe path otherwise.
func (s *RecipeService) gatherText(ctx context.Context, url string, refresh bool, logger *zap.Logger) (string, *string, error) {
	if !refresh {
		if transcript, caption, ok := s.transcripts.GetTranscript(ctx, url); ok {
			logger.Info("Using cached transcript")
			return transcript, caption, nil
		}
	}

	// The caption rides along in the metadata probe. A failed probe
	// only costs the caption, the transcript still carries the run.
	var caption *string
	info, err := s.downloader.Probe(ctx, url)
	if err != nil {
		logger.Warn("Video probe failed, continuing without caption", zap.Error(err))
	} else if strings.TrimSpace(info.Description) != "" {
		caption = &info.Description
	}

	if s.opts.WorkDir != "" {
		if err := os.MkdirAll(s.opts.WorkDir, 0o755); err != nil {
			return "", nil, apperrors.NewInternalError("failed to prepare work directory").WithCause(err)
		}
	}
	workDir, err := os.MkdirTemp(s.opts.WorkDir, "touille-*")
	if err != nil {
		return "", nil, apperrors.NewInternalError("failed to create work directory").WithCause(err)
	}
	if !s.opts.KeepLocalFiles {
		defer os.RemoveAll(workDir)
	}

	mediaPath, err := s.downloader.Download(ctx, url, workDir)
	if err != nil {
		return "", nil, apperrors.NewDownloadFailedError(url, err)
	}

	transcript, err := s.transcriber.Transcribe(ctx, mediaPath)
	if err != nil {
		return "", nil, apperrors.NewTranscriptionFailedError(err)
	}

	s.archiveMedia(ctx, info, url, mediaPath, logger)
	s.transcripts.StoreTranscript(ctx, url, transcript, caption)
	return transcript, caption, nil
}

// waitForResult polls for the recipe an in-flight identical run is
// about to store.
func (s *RecipeService) waitForResult(ctx context.Context, url, ownerID string) (*inbound.RecipeDTO, error) {
	deadline := time.Now().Add(s.opts.LockWait)
	ticker := time.NewTicker(s.opts.LockPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			rec, err := s.recipeRepo.FindByURL(ctx, url, ownerID)
			if err == nil {
				return s.entityToDTO(rec), nil
			}
			if !errors.Is(err, recipe.ErrRecipeNotFound) {
				return nil, apperrors.NewDatabaseError("find recipe by url", err)
			}
			if time.Now().After(deadline) {
				return nil, apperrors.NewUpstreamError("extraction", fmt.Errorf("timed out waiting for the in-flight run"))
			}
		}
	}
}

// archiveMedia uploads the downloaded video for long-term storage.
// Failures are logged, never fatal.
func (s *RecipeService) archiveMedia(ctx context.Context, info *outbound.VideoInfo, url, mediaPath string, logger *zap.Logger) {
	if s.archive == nil {
		return
	}
	file, err := os.Open(mediaPath)
	if err != nil {
		logger.Warn("Skipping media archive, cannot reopen download", zap.Error(err))
		return
	}
	defer file.Close()

	key := fmt.Sprintf("videos/%s.mp4", archiveID(info, url))
	if _, err := s.archive.Store(ctx, key, file, "video/mp4"); err != nil {
		logger.Warn("Media archive failed", zap.Error(err))
	}
}

// archiveID prefers the platform's own video ID and falls back to a
// URL digest when the probe did not run.
func archiveID(info *outbound.VideoInfo, url string) string {
	if info != nil && info.ID != "" {
		return info.ID
	}
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:8])
}

// preferences loads the extraction preferences for a user. Anonymous
// runs read the shared anonymous record; a missing record means no
// preferences.
func (s *RecipeService) preferences(ctx context.Context, ownerID string) outbound.ExtractionPreferences {
	settings, err := s.settingsRepo.Find(ctx, ownerID)
	if err != nil {
		s.logger.Warn("Failed to load settings, extracting without preferences",
			zap.String("user_id", ownerID),
			zap.Error(err),
		)
		return outbound.ExtractionPreferences{}
	}
	if settings == nil {
		return outbound.ExtractionPreferences{}
	}

	prefs := outbound.ExtractionPreferences{SpiceTolerance: settings.SpiceTolerance()}
	if v := settings.DietaryRestrictions(); v != nil {
		prefs.DietaryRestrictions = *v
	}
	if v := settings.CustomRules(); v != nil {
		prefs.CustomRules = *v
	}
	return prefs
}

func (s *RecipeService) logEvents(logger *zap.Logger, events []shared.DomainEvent) {
	for _, event := range events {
		logger.Info("Domain event",
			zap.String("event", event.EventName()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
}

func (s *RecipeService) entityToDTO(rec *recipe.Recipe) *inbound.RecipeDTO {
	return &inbound.RecipeDTO{
		ID:        rec.ID(),
		URL:       rec.URL(),
		Caption:   rec.Caption(),
		Recipe:    rec.Document(),
		CreatedAt: rec.CreatedAt(),
	}
}
