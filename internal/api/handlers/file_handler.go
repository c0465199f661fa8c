package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/internal/files"
	"github.com/JRChen0927/SimuAgent/internal/metrics"
	"github.com/JRChen0927/SimuAgent/pkg/logger"
)

type FileHandler struct {
	files *files.Service
}

func NewFileHandler(files *files.Service) *FileHandler {
	return &FileHandler{files: files}
}

func (h *FileHandler) Upload(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file is required",
		})
	}

	f, err := header.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		logger.Error("Failed to read uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}

	info, err := h.files.Upload(header.Filename, content)
	if err != nil {
		return respondError(c, err)
	}

	metrics.FilesUploaded.WithLabelValues(info.Type).Inc()

	return c.JSON(info)
}

func (h *FileHandler) List(c *fiber.Ctx) error {
	infos, err := h.files.List()
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(infos)
}

func (h *FileHandler) Get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	info, err := h.files.Get(id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(info)
}

func (h *FileHandler) Preview(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	preview, err := h.files.Preview(id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(preview)
}

func (h *FileHandler) Delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.files.Delete(id); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "File deleted successfully",
	})
}

func (h *FileHandler) Process(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	result, err := h.files.Process(c.Context(), id)
	if err != nil {
		metrics.FilesProcessed.WithLabelValues("error").Inc()
		return respondError(c, err)
	}

	metrics.FilesProcessed.WithLabelValues("success").Inc()

	return c.JSON(result)
}
