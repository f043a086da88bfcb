package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"parley/internal/media"
	"parley/internal/models"
	"parley/internal/observability"
	"parley/internal/repository"
)

// mediaCallTimeout bounds every call into the media processor so a stalled
// pipeline cannot hold a request or a cascade hostage.
const mediaCallTimeout = 5 * time.Second

// MediaService owns the attachment lifecycle: uploads go through the
// processor, rows land in the media table, and cascades come back here to
// dispose of orphaned assets.
type MediaService struct {
	mediaRepo repository.MediaRepository
	userRepo  repository.UserRepository
	processor media.Processor
	timeout   time.Duration
}

// NewMediaService creates a media service backed by the given processor.
func NewMediaService(mediaRepo repository.MediaRepository, userRepo repository.UserRepository, processor media.Processor) *MediaService {
	return &MediaService{
		mediaRepo: mediaRepo,
		userRepo:  userRepo,
		processor: processor,
		timeout:   mediaCallTimeout,
	}
}

// UploadMediaInput carries one raw upload into the service.
type UploadMediaInput struct {
	OwnerID     uint
	Filename    string
	ContentType string
	Content     []byte
}

// Upload processes the raw content and records the stored asset. Identical
// content from the same owner resolves to the already stored asset because
// refs are deterministic.
func (s *MediaService) Upload(ctx context.Context, in UploadMediaInput) (*models.MediaAsset, error) {
	if s.processor == nil {
		return nil, models.NewUpstreamFailureError("Media processing is not configured", nil)
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.processor.Process(pctx, media.ProcessInput{
		OwnerID:     in.OwnerID,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Content:     in.Content,
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		observability.MediaProcessorFailures.WithLabelValues("process").Inc()
		return nil, models.NewUpstreamFailureError("Media processing failed", err)
	}

	asset := &models.MediaAsset{
		OwnerID:     in.OwnerID,
		Filename:    in.Filename,
		ContentType: result.ContentType,
		SizeBytes:   result.SizeBytes,
		Ref:         result.Ref,
		Width:       result.Width,
		Height:      result.Height,
	}
	if err := s.mediaRepo.Create(ctx, asset); err != nil {
		if models.CodeOf(err) == models.CodeConflict {
			existing, getErr := s.mediaRepo.GetByRef(ctx, result.Ref)
			if getErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return asset, nil
}

// Get returns the asset by ID.
func (s *MediaService) Get(ctx context.Context, assetID uint) (*models.MediaAsset, error) {
	return s.mediaRepo.GetByID(ctx, assetID)
}

// Resolve returns the asset for ref together with a local filesystem path
// when the processor stores assets on disk. Path is empty for remote
// processors; the handler then redirects or proxies instead of serving.
func (s *MediaService) Resolve(ctx context.Context, ref string) (*models.MediaAsset, string, error) {
	asset, err := s.mediaRepo.GetByRef(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	if asset == nil {
		return nil, "", models.NewNotFoundError("Media", ref)
	}

	resolver, ok := s.processor.(media.PathResolver)
	if !ok {
		return asset, "", nil
	}
	path, err := resolver.ResolvePath(ref)
	if err != nil {
		return nil, "", models.NewNotFoundError("Media", ref)
	}
	return asset, path, nil
}

// Delete removes an asset. Only the owner or an elevated user may delete;
// store removal failures surface so the caller knows the asset may linger.
func (s *MediaService) Delete(ctx context.Context, assetID, actorID uint) error {
	asset, err := s.mediaRepo.GetByID(ctx, assetID)
	if err != nil {
		return err
	}

	if asset.OwnerID != actorID {
		actor, err := s.userRepo.GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		if !actor.Role.Elevated() {
			return models.NewForbiddenError("You can only delete your own media")
		}
	}

	if err := s.removeFromStore(ctx, asset.Ref); err != nil {
		observability.MediaProcessorFailures.WithLabelValues("remove").Inc()
		return models.NewUpstreamFailureError("Media removal failed", err)
	}
	return s.mediaRepo.Delete(ctx, asset.ID)
}

// CleanupAssets disposes of assets orphaned by a cascade (expired
// conversation, deleted room, trimmed history). Failures are logged and
// counted, never returned: a cascade must finish regardless.
func (s *MediaService) CleanupAssets(ctx context.Context, mediaIDs []uint) {
	if len(mediaIDs) == 0 {
		return
	}

	assets, err := s.mediaRepo.ListByIDs(ctx, mediaIDs)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load media assets for cleanup", "count", len(mediaIDs), "error", err)
		return
	}

	removed := make([]uint, 0, len(assets))
	for i := range assets {
		asset := &assets[i]
		if err := s.removeFromStore(ctx, asset.Ref); err != nil {
			observability.MediaProcessorFailures.WithLabelValues("remove").Inc()
			slog.WarnContext(ctx, "failed to remove media asset from store",
				"media_id", asset.ID, "ref", asset.Ref, "error", err)
			// Keep the row so the asset stays discoverable for a retry.
			continue
		}
		removed = append(removed, asset.ID)
	}

	if len(removed) == 0 {
		return
	}
	if err := s.mediaRepo.DeleteByIDs(ctx, removed); err != nil {
		slog.ErrorContext(ctx, "failed to delete media rows after cleanup", "count", len(removed), "error", err)
	}
}

func (s *MediaService) removeFromStore(ctx context.Context, ref string) error {
	if s.processor == nil {
		return nil
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.processor.Remove(pctx, ref)
}
