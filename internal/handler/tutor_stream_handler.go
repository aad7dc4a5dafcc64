package handler

import (
	"ai-tutoring-engine/internal/pkg/logger"
	"ai-tutoring-engine/internal/pkg/serverutils"
	internalWS "ai-tutoring-engine/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// TutorStreamHandler upgrades UI connections that receive state snapshots.
type TutorStreamHandler struct {
	hub       *internalWS.Hub
	jwtSecret string
	logger    logger.ILogger
}

func NewTutorStreamHandler(hub *internalWS.Hub, jwtSecret string, log logger.ILogger) *TutorStreamHandler {
	return &TutorStreamHandler{
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

func (h *TutorStreamHandler) RegisterRoutes(r fiber.Router) {
	// Browsers cannot set headers on a websocket handshake, so the
	// middleware also reads the "token" query parameter.
	r.Get("/ws/tutor", serverutils.JwtMiddleware(h.jwtSecret), h.ServeWs)
}

// ServeWs handles websocket requests from the UI.
func (h *TutorStreamHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("TutorStreamHandler", "Starting UI session", map[string]interface{}{"remote": conn.RemoteAddr().String()})
		internalWS.ServeWs(h.hub, conn)
		h.logger.Info("TutorStreamHandler", "UI session ended", nil)
	})(c)
}
