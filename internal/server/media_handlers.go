package server

import (
	"io"
	"strings"

	"parley/internal/models"
	"parley/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadMedia handles POST /api/media/upload
// @Summary Upload media
// @Description Upload an attachment; identical content re-uploads resolve to the stored asset
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "File to upload"
// @Success 201 {object} object{media=models.MediaAsset,url=string}
// @Failure 400 {object} object{error=string}
// @Failure 502 {object} object{error=string}
// @Router /media/upload [post]
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	file, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No file uploaded"))
	}

	maxBytes := int64(s.config.MediaMaxUploadMB) << 20
	if file.Size > maxBytes {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("File too large"))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Cannot read uploaded file"))
	}
	defer src.Close()

	content := make([]byte, file.Size)
	if _, err := io.ReadFull(src, content); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Cannot read uploaded file"))
	}

	asset, err := s.mediaService.Upload(ctx, service.UploadMediaInput{
		OwnerID:     userID,
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"media": asset,
		"url":   service.MediaURLPrefix + asset.Ref,
	})
}

// ServeMedia handles GET /api/media/:ref
// @Summary Serve media
// @Description Serve a stored asset by its unguessable content reference
// @Tags media
// @Param ref path string true "Asset reference"
// @Success 200 {file} binary
// @Failure 404 {object} object{error=string}
// @Router /media/{ref} [get]
func (s *Server) ServeMedia(c *fiber.Ctx) error {
	ctx := c.UserContext()

	asset, path, err := s.mediaService.Resolve(ctx, c.Params("ref"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	// Refs are content hashes, so the bytes behind one never change.
	c.Set("Cache-Control", "public, max-age=31536000, immutable")

	if path == "" {
		// Remote store; hand the client to it.
		return c.Redirect(
			strings.TrimRight(s.config.MediaRemoteURL, "/")+"/assets/"+asset.Ref,
			fiber.StatusFound)
	}

	c.Set("Content-Type", asset.ContentType)
	return c.SendFile(path)
}

// DeleteMedia handles DELETE /api/media/:id
// @Summary Delete media
// @Description Delete an asset; owner or moderator only
// @Tags media
// @Produce json
// @Security BearerAuth
// @Param id path int true "Asset ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Failure 502 {object} object{error=string}
// @Router /media/{id} [delete]
func (s *Server) DeleteMedia(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	assetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.mediaService.Delete(ctx, assetID, userID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Media deleted",
	})
}
