package api

import (
	"time"

	"github.com/asiradnan/SoulSpeak/internal/auth"
	"github.com/asiradnan/SoulSpeak/internal/config"
	"github.com/asiradnan/SoulSpeak/internal/service"
	"github.com/asiradnan/SoulSpeak/internal/ws"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func NewServer(cfg *config.Config, svc *service.ChatService, wsrv *ws.Server, jv *auth.Validator, rdb *redis.Client, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: cfg.App.Env == "production"})
	app.Use(logger.New())

	h := NewHandlers(svc, log)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// gateway handshake; the token is validated inside the ws handler
	app.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsrv.HandleWS()))

	limiter := NewRateLimiter(rdb, cfg.Redis.Prefix, cfg.Chat.SendRatePerMinute, time.Minute)
	byUser := func(c *fiber.Ctx) string { return c.Locals("user_id").(string) }

	chat := app.Group("/chat", JWTAuth(jv))
	chat.Get("/", h.getChats)
	chat.Post("/create", h.createChat)
	chat.Post("/send", limiter.ByKey(byUser), h.sendMessage)
	chat.Post("/mark-read", h.markRead)

	return app
}
