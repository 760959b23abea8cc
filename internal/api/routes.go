package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func SetupRoutes(app *fiber.App, handler *Handler) {
	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} ${pid} ${locals:requestid} ${status} - ${method} ${path}\n",
		TimeFormat: time.RFC3339,
	}))

	// API v1 routes
	v1 := app.Group("/api/v1")

	v1.Get("/health", handler.GetHealth)

	// Tracked cities
	cities := v1.Group("/cities")
	cities.Get("/", handler.GetCities)
	cities.Post("/", handler.AddCity)
	cities.Put("/order", handler.ReorderCities)
	cities.Get("/:id/weather", handler.GetCityWeather)
	cities.Delete("/:id", handler.RemoveCity)

	// Presentation mode
	v1.Post("/mode", handler.ToggleMode)

	// Ad-hoc weather lookup
	v1.Get("/weather/current", handler.GetCurrentWeather)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
			"path":  c.Path(),
		})
	})
}
