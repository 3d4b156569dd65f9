package api

import (
	"encoding/json"
	"log"
	"strings"

	domain "github.com/MossTheFox/coursework-jtodo-server/domain/account"
	"github.com/MossTheFox/coursework-jtodo-server/modules/activity"
	"github.com/MossTheFox/coursework-jtodo-server/modules/auth"
	todomod "github.com/MossTheFox/coursework-jtodo-server/modules/todo"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/gofiber/fiber/v2"
)

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	authContainer mono.ServiceContainer
	authAdapter   auth.AuthPort
	todoAdapter   todomod.TodoPort
	activityPort  activity.ActivityPort
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	authContainer mono.ServiceContainer,
	authAdapter auth.AuthPort,
	todoAdapter todomod.TodoPort,
	activityPort activity.ActivityPort,
) *Handlers {
	return &Handlers{
		authContainer: authContainer,
		authAdapter:   authAdapter,
		todoAdapter:   todoAdapter,
		activityPort:  activityPort,
	}
}

// Login handles POST /api/v1/auth/login: the QQ OAuth code exchange.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(StatusResponse{
			Code:    "error",
			Message: "Bad Request",
		})
	}

	if req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(StatusResponse{
			Code:    "error",
			Message: "Authorization code is required",
		})
	}

	authReq := auth.LoginRequest{Code: req.Code, RedirectURI: req.RedirectURI}
	var resp auth.LoginResponse

	if err := helper.CallRequestReplyService(
		c.UserContext(), h.authContainer, "login",
		json.Marshal, json.Unmarshal, &authReq, &resp,
	); err != nil {
		return h.handleLoginError(c, err)
	}

	return c.JSON(LoginResponse{
		Code: "ok",
		Data: LoginData{
			Token:        resp.Token,
			ExpiresIn:    resp.ExpiresIn,
			Username:     resp.Username,
			AvatarURL:    resp.AvatarURL,
			RegisteredAt: resp.RegisteredAt,
		},
	})
}

// Data handles GET /api/v1/data: the authenticated user's full state.
func (h *Handlers) Data(c *fiber.Ctx) error {
	claims, ok := c.Locals(UserContextKey).(*domain.Claims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(StatusResponse{
			Code:    "error",
			Message: "Unauthorized",
		})
	}

	snap, err := h.todoAdapter.Snapshot(c.UserContext(), claims.QQUnionID)
	if err != nil {
		log.Printf("[api] Snapshot failed for %s: %v", claims.QQUnionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(StatusResponse{
			Code:    "error",
			Message: "Internal Server Error",
		})
	}

	return c.JSON(SnapshotResponse{Code: "ok", Data: *snap})
}

// Sync handles PATCH /api/v1/data/sync: one ordered action batch. The client
// receives exactly one aggregate outcome; a retried batch is safe because
// every action kind is idempotent.
func (h *Handlers) Sync(c *fiber.Ctx) error {
	claims, ok := c.Locals(UserContextKey).(*domain.Claims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(StatusResponse{
			Code:    "error",
			Message: "Unauthorized",
		})
	}

	var req SyncRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(StatusResponse{
			Code:    "error",
			Message: "Bad Request",
		})
	}
	if req.Actions == nil {
		return c.Status(fiber.StatusBadRequest).JSON(StatusResponse{
			Code:    "error",
			Message: "Bad Request",
		})
	}

	if _, err := h.todoAdapter.Sync(c.UserContext(), claims.QQUnionID, req.Actions); err != nil {
		// A structurally invalid batch is rejected before any mutation;
		// anything else is a store failure with possible partial effects.
		if strings.Contains(err.Error(), "batch rejected") {
			return c.Status(fiber.StatusBadRequest).JSON(StatusResponse{
				Code:    "error",
				Message: "Bad Request",
			})
		}
		log.Printf("[api] Sync failed for %s: %v", claims.QQUnionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(StatusResponse{
			Code:    "error",
			Message: "Internal Server Error",
		})
	}

	return c.JSON(StatusResponse{
		Code:    "ok",
		Message: "Nothing goes wrong",
	})
}

// Activity handles GET /api/v1/activity/recent.
func (h *Handlers) Activity(c *fiber.Ctx) error {
	claims, ok := c.Locals(UserContextKey).(*domain.Claims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(StatusResponse{
			Code:    "error",
			Message: "Unauthorized",
		})
	}

	entries, err := h.activityPort.Recent(c.UserContext(), claims.QQUnionID, c.QueryInt("limit", 20))
	if err != nil {
		log.Printf("[api] Activity lookup failed for %s: %v", claims.QQUnionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(StatusResponse{
			Code:    "error",
			Message: "Internal Server Error",
		})
	}

	return c.JSON(ActivityResponse{Code: "ok", Data: entries})
}

// handleLoginError maps login failures without exposing internals.
func (h *Handlers) handleLoginError(c *fiber.Ctx, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "code exchange failed"),
		strings.Contains(errStr, "identity lookup failed"),
		strings.Contains(errStr, "oauth exchange rejected"):
		return c.Status(fiber.StatusUnauthorized).JSON(StatusResponse{
			Code:    "error",
			Message: "OAuth authorization was not completed",
		})
	default:
		log.Printf("[api] Internal error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(StatusResponse{
			Code:    "error",
			Message: "Internal Server Error",
		})
	}
}
