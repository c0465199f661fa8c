package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/internal/config"
	"github.com/JRChen0927/SimuAgent/pkg/logger"
)

type ConfigHandler struct {
	registry *config.Store
}

func NewConfigHandler(registry *config.Store) *ConfigHandler {
	return &ConfigHandler{registry: registry}
}

func (h *ConfigHandler) Get(c *fiber.Ctx) error {
	return c.JSON(h.registry.Document())
}

func (h *ConfigHandler) GetModels(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"default_provider": h.registry.DefaultProvider(),
		"providers":        h.registry.ProviderConfig(),
	})
}

func (h *ConfigHandler) GetProviders(c *fiber.Ctx) error {
	return c.JSON(h.registry.Providers())
}

func (h *ConfigHandler) GetProviderModels(c *fiber.Ctx) error {
	provider := c.Params("provider")

	models := h.registry.Models(provider)
	if len(models) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Provider '" + provider + "' not found or has no models",
		})
	}

	return c.JSON(models)
}

func (h *ConfigHandler) GetEnabledModels(c *fiber.Ctx) error {
	provider := c.Params("provider")
	return c.JSON(h.registry.EnabledModels(provider))
}

func (h *ConfigHandler) ToggleModel(c *fiber.Ctx) error {
	provider := c.Params("provider")
	modelName := c.Params("model")

	if err := h.registry.ToggleModel(provider, modelName); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Model '" + modelName + "' toggled successfully",
	})
}

func (h *ConfigHandler) GetStorage(c *fiber.Ctx) error {
	return c.JSON(h.registry.StorageSettings())
}

func (h *ConfigHandler) GetSupportedFormats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"formats": h.registry.SupportedFormats(),
	})
}

// Update accepts top-level sections and replaces each one wholesale.
func (h *ConfigHandler) Update(c *fiber.Ctx) error {
	var req struct {
		Models     map[string]interface{} `json:"models"`
		Storage    map[string]interface{} `json:"storage"`
		Agent      map[string]interface{} `json:"agent"`
		Evaluation map[string]interface{} `json:"evaluation"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	sections := map[string]interface{}{}
	if req.Models != nil {
		sections["models"] = req.Models
	}
	if req.Storage != nil {
		sections["storage"] = req.Storage
	}
	if req.Agent != nil {
		sections["agent"] = req.Agent
	}
	if req.Evaluation != nil {
		sections["evaluation"] = req.Evaluation
	}

	if err := h.registry.Update(sections); err != nil {
		logger.Error("Failed to update configuration", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update configuration",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Configuration updated successfully",
	})
}

func (h *ConfigHandler) Reload(c *fiber.Ctx) error {
	if err := h.registry.Reload(); err != nil {
		logger.Error("Failed to reload configuration", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reload configuration",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Configuration reloaded successfully",
	})
}

func (h *ConfigHandler) GetAgentDefaults(c *fiber.Ctx) error {
	return c.JSON(h.registry.Section("agent"))
}

func (h *ConfigHandler) GetEvaluationConfig(c *fiber.Ctx) error {
	return c.JSON(h.registry.Section("evaluation"))
}
