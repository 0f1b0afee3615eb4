package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/utils/v2"

	"github.com/dukex/watcher/pkg/execution"
	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/persistence"
	"github.com/dukex/watcher/pkg/watch"
)

// Scheduler keeps the trigger engines in sync with stored watches.
type Scheduler interface {
	Add(watch *models.Watch) error
	Remove(watchID string)
}

// Firer fires watches on demand through the trigger listener.
type Firer interface {
	Fire(ctx context.Context, data map[string]any, watchIDs ...string) error
}

// HistoryReader reads execution records and reports backend health.
type HistoryReader interface {
	Records(ctx context.Context, watchID string, limit int) ([]*models.WatchRecord, error)
	HealthCheck(ctx context.Context) error
}

type APIHandlers struct {
	ctx          context.Context
	store        *watch.Store
	parser       *watch.Parser
	service      *execution.Service
	scheduler    Scheduler
	firer        Firer
	history      HistoryReader
	validator    *validator.Validate
	historyLimit int
}

func NewAPIHandlers(
	store *watch.Store,
	parser *watch.Parser,
	service *execution.Service,
	scheduler Scheduler,
	firer Firer,
	history HistoryReader,
	validator *validator.Validate,
	historyLimit int,
) *APIHandlers {
	return &APIHandlers{
		ctx:          context.Background(),
		store:        store,
		parser:       parser,
		service:      service,
		scheduler:    scheduler,
		firer:        firer,
		history:      history,
		validator:    validator,
		historyLimit: historyLimit,
	}
}

// WithContext sets the parent context of firings started by TriggerWatch.
// They outlive the request, so the request context cannot be their parent.
func (h *APIHandlers) WithContext(ctx context.Context) *APIHandlers {
	h.ctx = ctx

	return h
}

// Register mounts every route on app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Get("/stats", h.GetStats)

	w := app.Group("/watches")
	w.Get("/", h.GetWatches)
	w.Get("/:id", h.GetWatch)
	w.Put("/:id", h.PutWatch)
	w.Delete("/:id", h.DeleteWatch)
	w.Post("/:id/_execute", h.ExecuteWatch)
	w.Post("/:id/_ack", h.AckWatch)
	w.Post("/:id/_trigger", h.TriggerWatch)
	w.Get("/:id/history", h.GetHistory)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK
	checks := fiber.Map{"persistence": "ok", "execution": "ok"}

	if err := h.history.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		checks["persistence"] = err.Error()
	}

	if !h.service.Started() {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		checks["execution"] = execution.ErrNotStarted.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"checkers":  checks,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetStats(c fiber.Ctx) error {
	return c.JSON(h.service.Stats())
}

func (h *APIHandlers) GetWatches(c fiber.Ctx) error {
	watches := h.store.All()

	return c.JSON(fiber.Map{
		"watches":     watches,
		"total_count": len(watches),
	})
}

func (h *APIHandlers) GetWatch(c fiber.Ctx) error {
	w, err := h.store.Get(c.Context(), watchID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(w)
}

// PutWatch creates or replaces a watch and reschedules it.
func (h *APIHandlers) PutWatch(c fiber.Ctx) error {
	id := watchID(c)

	parsed, err := h.parser.Parse(id, c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	_, err = h.store.Get(c.Context(), id)
	created := persistence.IsWatchNotFound(err)

	stored, err := h.store.Put(c.Context(), parsed)
	if err != nil {
		return internalError(c, err)
	}

	err = h.scheduler.Add(stored)
	if err != nil {
		return internalError(c, err)
	}

	if created {
		return c.Status(fiber.StatusCreated).JSON(stored)
	}

	return c.JSON(stored)
}

func (h *APIHandlers) DeleteWatch(c fiber.Ctx) error {
	id := watchID(c)

	existed, err := h.store.Delete(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	if !existed {
		return notFound(c, "Watch not found")
	}

	h.scheduler.Remove(id)

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ExecuteWatch(c fiber.Ctx) error {
	var req ExecuteWatchRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	record, err := h.service.Execute(c.Context(), req.ExecuteRequest(watchID(c)))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) AckWatch(c fiber.Ctx) error {
	var req AckRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	status, err := h.service.Ack(c.Context(), watchID(c), req.ActionIDs...)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(status)
}

// TriggerWatch fires the watch through the trigger listener; it runs on the
// executor like a scheduled firing.
func (h *APIHandlers) TriggerWatch(c fiber.Ctx) error {
	var req TriggerRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	id := watchID(c)

	err := h.firer.Fire(h.ctx, req.Data, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"watch_id": id, "triggered": true})
}

func (h *APIHandlers) GetHistory(c fiber.Ctx) error {
	id := watchID(c)

	limit := h.historyLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return badRequest(c, "Invalid query parameters: limit must be a positive integer")
		}

		limit = min(parsed, h.historyLimit)
	}

	records, err := h.history.Records(c.Context(), id, limit)
	if err != nil {
		return internalError(c, err)
	}

	if records == nil {
		records = []*models.WatchRecord{}
	}

	return c.JSON(HistoryResponse{WatchID: id, Records: records})
}

// watchID copies the id route parameter out of the request buffer, which
// fasthttp reuses once the handler returns.
func watchID(c fiber.Ctx) string {
	return utils.CopyString(c.Params("id"))
}
