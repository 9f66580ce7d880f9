package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/config"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type Handlers struct {
	Auth         *handlers.AuthHandler
	Health       *handlers.HealthHandler
	Users        *handlers.UserHandler
	Quests       *handlers.QuestHandler
	Marketplace  *handlers.MarketplaceHandler
	Transactions *handlers.TransactionHandler
	Payments     *handlers.PaymentHandler
	Settings     *handlers.SettingsHandler
}

func rateLimit(perMinute int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               perMinute,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
}

func Setup(app *fiber.App, cfg *config.Config, users store.Reader, h Handlers) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(rateLimit(60))

	api.Get("/health", h.Health.Check)
	api.Get("/config", h.Settings.GetConfig)
	api.Get("/users/leaderboard", h.Users.Leaderboard)

	// Auth-specific rate limit: 10 req/min per IP (stricter)
	auth := api.Group("/auth")
	auth.Use(rateLimit(10))
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.Refresh)

	jwt := middleware.JWTProtected(cfg)
	auth.Post("/logout", jwt, h.Auth.Logout)
	auth.Get("/verify", jwt, h.Auth.Verify)

	u := api.Group("/users", jwt)
	u.Get("/profile", h.Users.GetProfile)
	u.Put("/profile", h.Users.UpdateProfile)
	u.Get("/stats", h.Users.Stats)
	u.Post("/premium/subscribe", h.Users.SubscribePremium)

	q := api.Group("/quests", jwt)
	q.Get("/", h.Quests.List)
	q.Get("/mine", h.Quests.ListMine)
	q.Post("/:id/accept", h.Quests.Accept)
	q.Post("/:id/progress", h.Quests.UpdateProgress)
	q.Get("/:id/progress", h.Quests.GetProgress)
	q.Post("/:id/claim", h.Quests.ClaimRewards)
	q.Post("/:id/abandon", h.Quests.Abandon)

	m := api.Group("/marketplace", jwt)
	m.Get("/items", h.Marketplace.ListItems)
	m.Post("/items/:id/purchase", h.Marketplace.Purchase)
	m.Get("/categories", h.Marketplace.Categories)
	m.Get("/featured", h.Marketplace.Featured)
	m.Get("/inventory", h.Marketplace.Inventory)

	t := api.Group("/transactions", jwt)
	t.Get("/history", h.Transactions.History)
	t.Get("/summary", h.Transactions.Summary)
	t.Get("/:id", h.Transactions.Detail)

	p := api.Group("/payments", jwt)
	p.Post("/", h.Payments.Create)
	p.Get("/:id", h.Payments.Get)
	p.Post("/:id/approve", h.Payments.Approve)
	p.Post("/:id/complete", h.Payments.Complete)
	p.Post("/:id/cancel", h.Payments.Cancel)

	admin := api.Group("/admin", jwt, middleware.AdminRequired(users, cfg))
	admin.Post("/quests", h.Quests.Create)
	admin.Patch("/quests/:id/active", h.Quests.SetActive)
	admin.Post("/items", h.Marketplace.CreateItem)
	admin.Patch("/items/:id/availability", h.Marketplace.SetAvailability)
	admin.Put("/config/:key", h.Settings.SetConfigKey)
	admin.Delete("/config/:key", h.Settings.DeleteConfigKey)
}
