package controller

import (
	"os"

	"rizal-chat-be/internal/dto"
	"rizal-chat-be/internal/pkg/serverutils"
	"rizal-chat-be/internal/service"
	internalWS "rizal-chat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendChat(ctx *fiber.Ctx) error
	FlatHistory(ctx *fiber.Ctx) error
	CreateSession(ctx *fiber.Ctx) error
	ListSessions(ctx *fiber.Ctx) error
	ShowSession(ctx *fiber.Ctx) error
	RenameSession(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
	TruncateSession(ctx *fiber.Ctx) error
	ServeWs(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	hub         *internalWS.Hub
}

func NewChatController(chatService service.IChatService, hub *internalWS.Hub) IChatController {
	return &chatController{
		chatService: chatService,
		hub:         hub,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	// Websocket handshake carries its own token, the rest goes through the
	// JWT middleware.
	h.Get("ws", c.ServeWs)
	h.Use(serverutils.JwtMiddleware)
	h.Post("", c.SendChat)
	h.Get("history", c.FlatHistory) // deprecated, pre-session clients only
	h.Get("sessions", c.ListSessions)
	h.Post("sessions", c.CreateSession)
	h.Get("sessions/:id", c.ShowSession)
	h.Patch("sessions/:id", c.RenameSession)
	h.Delete("sessions/:id", c.DeleteSession)
	h.Post("sessions/:id/truncate", c.TruncateSession)
}

func ownerId(ctx *fiber.Ctx) uuid.UUID {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	return userId
}

func (c *chatController) SendChat(ctx *fiber.Ctx) error {
	userId := ownerId(ctx)

	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.SendChat(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send chat", res))
}

func (c *chatController) FlatHistory(ctx *fiber.Ctx) error {
	userId := ownerId(ctx)

	res, err := c.chatService.GetFlatHistory(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	userId := ownerId(ctx)

	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.CreateSession(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *chatController) ListSessions(ctx *fiber.Ctx) error {
	userId := ownerId(ctx)

	res, err := c.chatService.GetAllSessions(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list sessions", res))
}

func (c *chatController) ShowSession(ctx *fiber.Ctx) error {
	userId := ownerId(ctx)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	res, err := c.chatService.GetChatHistory(ctx.Context(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

func (c *chatController) RenameSession(ctx *fiber.Ctx) error {
	userId := ownerId(ctx)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	var req dto.RenameSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.RenameSession(ctx.Context(), userId, id, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success rename session", res))
}

func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	userId := ownerId(ctx)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	if err := c.chatService.DeleteSession(ctx.Context(), userId, id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete session", nil))
}

func (c *chatController) TruncateSession(ctx *fiber.Ctx) error {
	userId := ownerId(ctx)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	var req dto.TruncateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.TruncateSession(ctx.Context(), userId, id, req.From)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success truncate session", res))
}

// ServeWs upgrades the connection and registers it with the hub. The token
// comes from the query string because browsers cannot set headers on
// websocket handshakes.
func (c *chatController) ServeWs(ctx *fiber.Ctx) error {
	tokenStr := ctx.Query("token")
	if tokenStr == "" {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token"})
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	userIdStr, ok := claims["user_id"].(string)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing user_id"})
	}
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID format in token"})
	}

	if websocket.IsWebSocketUpgrade(ctx) {
		return websocket.New(func(conn *websocket.Conn) {
			internalWS.ServeWs(c.hub, conn, userId)
		})(ctx)
	}
	return fiber.ErrUpgradeRequired
}
