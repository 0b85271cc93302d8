package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/ludus_arena/internal/middleware"
	"github.com/mroshb/ludus_arena/internal/security"
	"github.com/mroshb/ludus_arena/internal/services"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"github.com/mroshb/ludus_arena/pkg/logger"
)

type ArenaHandler struct {
	// Streams end when ctx is cancelled, so shutdown does not wait on them.
	ctx context.Context

	Queue      *services.QueueService
	Acceptance *services.AcceptanceService
	Matches    *services.MatchService
	Streamer   *services.LogStreamer
	Contacts   *services.ContactService
}

func NewArenaHandler(
	ctx context.Context,
	queue *services.QueueService,
	acceptance *services.AcceptanceService,
	matches *services.MatchService,
	streamer *services.LogStreamer,
	contacts *services.ContactService,
) *ArenaHandler {
	return &ArenaHandler{
		ctx:        ctx,
		Queue:      queue,
		Acceptance: acceptance,
		Matches:    matches,
		Streamer:   streamer,
		Contacts:   contacts,
	}
}

func SetupArenaRoutes(app *fiber.App, h *ArenaHandler, jwtSecret string, limiter *middleware.RateLimiter) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Anyone may trigger the timeout check; it is a no-op before the deadline.
	app.Post("/matches/:match_id/timeout", h.Timeout)

	app.Get("/matches/:match_id/stream", middleware.Auth(jwtSecret, true), limiter.Handler(), h.StreamLog)

	// Attached per route so unknown paths still fall through to 404.
	auth := middleware.Auth(jwtSecret, false)
	limit := limiter.Handler()

	app.Post("/arenas/:arena_id/queue", auth, limit, h.JoinQueue)
	app.Get("/arenas/:arena_id/queue", auth, limit, h.ListQueue)
	app.Delete("/queue/:queue_id", auth, limit, h.LeaveQueue)

	app.Get("/matches/:match_id", auth, limit, h.GetMatch)
	app.Post("/matches/:match_id/accept", auth, limit, h.Accept)
	app.Post("/matches/:match_id/decline", auth, limit, h.Decline)

	app.Put("/me/telegram", auth, limit, h.LinkTelegram)
}

type joinQueueBody struct {
	ServerID    string `json:"server_id"`
	GladiatorID string `json:"gladiator_id"`
}

func (h *ArenaHandler) JoinQueue(c *fiber.Ctx) error {
	var body joinQueueBody
	if err := c.BodyParser(&body); err != nil {
		return errors.New(errors.ErrCodeValidation, "invalid request body")
	}

	res, err := h.Queue.Join(c.UserContext(), middleware.OwnerID(c), services.JoinRequest{
		ArenaID:     c.Params("arena_id"),
		ServerID:    security.SanitizeString(body.ServerID),
		GladiatorID: security.SanitizeString(body.GladiatorID),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *ArenaHandler) ListQueue(c *fiber.Ctx) error {
	entries, err := h.Queue.ListWaiting(c.UserContext(), c.Params("arena_id"), security.SanitizeString(c.Query("server_id")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"entries": entries})
}

func (h *ArenaHandler) LeaveQueue(c *fiber.Ctx) error {
	entry, err := h.Queue.Leave(c.UserContext(), c.Params("queue_id"), middleware.OwnerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"entry": entry})
}

func (h *ArenaHandler) GetMatch(c *fiber.Ctx) error {
	detail, err := h.Matches.Get(c.UserContext(), c.Params("match_id"), middleware.OwnerID(c))
	if err != nil {
		return err
	}
	return c.JSON(detail)
}

func (h *ArenaHandler) Accept(c *fiber.Ctx) error {
	res, err := h.Acceptance.Accept(c.UserContext(), c.Params("match_id"), middleware.OwnerID(c))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *ArenaHandler) Decline(c *fiber.Ctx) error {
	res, err := h.Acceptance.Decline(c.UserContext(), c.Params("match_id"), middleware.OwnerID(c))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *ArenaHandler) Timeout(c *fiber.Ctx) error {
	res, err := h.Acceptance.Timeout(c.UserContext(), c.Params("match_id"))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

type linkTelegramBody struct {
	Code string `json:"code"`
}

// LinkTelegram redeems a code the bot sent in reply to /start.
func (h *ArenaHandler) LinkTelegram(c *fiber.Ctx) error {
	var body linkTelegramBody
	if err := c.BodyParser(&body); err != nil {
		return errors.New(errors.ErrCodeValidation, "invalid request body")
	}

	contact, err := h.Contacts.Link(c.UserContext(), middleware.OwnerID(c), security.SanitizeString(body.Code))
	if err != nil {
		return err
	}
	return c.JSON(contact)
}

// StreamLog serves the combat log as server-sent events until the match
// ends or the client goes away.
func (h *ArenaHandler) StreamLog(c *fiber.Ctx) error {
	// Params point into the request buffer, which is reused once this returns.
	matchID := strings.Clone(c.Params("match_id"))
	ownerID := middleware.OwnerID(c)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(h.ctx)
		defer cancel()

		logger.Debug("Log stream opened", "match_id", matchID, "owner_id", ownerID)
		err := h.Streamer.Stream(ctx, matchID, func(e services.Event) error {
			return writeSSE(w, e)
		})
		logger.Debug("Log stream closed", "match_id", matchID, "owner_id", ownerID, "reason", err)
	})
	return nil
}

// writeSSE writes one event frame. A failed flush means the client is gone.
func writeSSE(w *bufio.Writer, e services.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", e.Type); err != nil {
		return err
	}
	if e.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", e.ID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}
