package api

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"citywatch/internal/failure"
	"citywatch/internal/tracker"
)

var validate = validator.New()

type Handler struct {
	tracker *tracker.Tracker
	weather tracker.WeatherService
	logger  *zap.Logger
}

func NewHandler(t *tracker.Tracker, weather tracker.WeatherService, logger *zap.Logger) *Handler {
	return &Handler{
		tracker: t,
		weather: weather,
		logger:  logger,
	}
}

// GetCities handles GET /api/v1/cities
func (h *Handler) GetCities(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"cities":  h.tracker.Cities(),
		"mode":    h.tracker.Mode(),
		"message": h.tracker.Message(),
	})
}

type addCityRequest struct {
	Name string `json:"name" validate:"required"`
}

// AddCity handles POST /api/v1/cities
func (h *Handler) AddCity(c *fiber.Ctx) error {
	var req addCityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Request body must be JSON with a name field",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "City name is required",
		})
	}

	h.logger.Info("Adding city", zap.String("name", req.Name))

	city, err := h.tracker.Add(c.Context(), req.Name)
	if err != nil {
		return h.failureResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(city)
}

// RemoveCity handles DELETE /api/v1/cities/:id
func (h *Handler) RemoveCity(c *fiber.Ctx) error {
	id := c.Params("id")

	h.logger.Info("Removing city", zap.String("id", id))

	if err := h.tracker.Remove(c.Context(), id); err != nil {
		return h.failureResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type reorderRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// ReorderCities handles PUT /api/v1/cities/order
func (h *Handler) ReorderCities(c *fiber.Ctx) error {
	var req reorderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Request body must be JSON with an ids list",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A non-empty ids list is required",
		})
	}

	if err := h.tracker.Reorder(c.Context(), req.IDs); err != nil {
		return h.failureResponse(c, err)
	}
	return c.JSON(fiber.Map{"cities": h.tracker.Cities()})
}

// ToggleMode handles POST /api/v1/mode
func (h *Handler) ToggleMode(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"mode": h.tracker.ToggleMode()})
}

// GetCityWeather handles GET /api/v1/cities/:id/weather
func (h *Handler) GetCityWeather(c *fiber.Ctx) error {
	snap, err := h.tracker.Snapshot(c.Context(), c.Params("id"))
	if err != nil {
		return h.failureResponse(c, err)
	}
	return c.JSON(snap)
}

// GetCurrentWeather handles GET /api/v1/weather/current
func (h *Handler) GetCurrentWeather(c *fiber.Ctx) error {
	city := c.Query("city")
	latStr, lonStr := c.Query("lat"), c.Query("lon")

	switch {
	case city != "":
		snap, err := h.weather.CurrentByCity(c.Context(), city)
		if err != nil {
			return h.failureResponse(c, err)
		}
		return c.JSON(snap)
	case latStr != "" && lonStr != "":
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lon, errLon := strconv.ParseFloat(lonStr, 64)
		if errLat != nil || errLon != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "lat and lon must be numbers",
			})
		}
		snap, err := h.weather.CurrentByCoords(c.Context(), lat, lon)
		if err != nil {
			return h.failureResponse(c, err)
		}
		return c.JSON(snap)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Either city or lat/lon parameters are required",
		})
	}
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"cities": len(h.tracker.Cities()),
		"mode":   h.tracker.Mode(),
	})
}

// failureResponse maps a classified failure to an HTTP status and its
// fixed user-facing sentence. Raw detail stays in the logs.
func (h *Handler) failureResponse(c *fiber.Ctx, err error) error {
	h.logger.Error("Request failed",
		zap.String("path", c.Path()),
		zap.String("kind", failure.KindOf(err).String()),
		zap.Error(err))

	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": failure.Message(err),
	})
}

func statusFor(err error) int {
	switch failure.KindOf(err) {
	case failure.Validation:
		return fiber.StatusBadRequest
	case failure.NotFound:
		return fiber.StatusNotFound
	case failure.RateLimited:
		return fiber.StatusTooManyRequests
	case failure.Timeout:
		return fiber.StatusGatewayTimeout
	case failure.Network, failure.InvalidCredential, failure.Format:
		return fiber.StatusBadGateway
	case failure.StorageCapacity:
		return fiber.StatusInsufficientStorage
	default:
		return fiber.StatusInternalServerError
	}
}
