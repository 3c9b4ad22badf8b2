package httpgin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/repository"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
	"github.com/kirinyoku/ferry-go/internal/service"
	"github.com/kirinyoku/ferry-go/internal/service/booking"
	"github.com/kirinyoku/ferry-go/internal/service/inventory"
	"github.com/kirinyoku/ferry-go/internal/service/query"
	"github.com/kirinyoku/ferry-go/internal/service/schedule"
	"github.com/kirinyoku/ferry-go/internal/station"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// VoyageStream delivers voyage-changed signals until ctx is done.
type VoyageStream interface {
	Subscribe(ctx context.Context, handler func(ctx context.Context, voyageID int64)) error
}

// Options carries optional router collaborators; nil fields disable the
// feature they back.
type Options struct {
	Limiter  Limiter
	Gatherer prometheus.Gatherer
	Stream   VoyageStream
}

func NewRouter(
	svcs *service.Services,
	opts Options,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(logger), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	// Public API
	r.GET("/voyages/:id", handleGetVoyage(svcs))
	r.GET("/voyages/:id/seats", handleGetSeatMap(svcs))
	r.GET("/voyages/:id/availability", handleGetAvailability(svcs))
	r.GET("/voyages/:id/archive", handleVoyageArchive(svcs))
	r.GET("/users/:id/archive", handleUserArchive(svcs))
	if opts.Stream != nil {
		r.GET("/voyages/:id/stream", handleVoyageStream(svcs, opts.Stream))
	}

	intake := []gin.HandlerFunc{handleTicketEvent(svcs)}
	if opts.Limiter != nil {
		intake = append([]gin.HandlerFunc{RateLimit(opts.Limiter, "ticket-events", logger)}, intake...)
	}
	r.POST("/voyages/:id/tickets/events", intake...)

	// Admin-API; authorization is enforced in front of this service.
	admin := r.Group("/admin")
	{
		admin.POST("/templates", handleCreateTemplate(svcs))
		admin.GET("/templates", handleListTemplates(svcs))
		admin.GET("/templates/:id", handleGetTemplate(svcs))
		admin.PATCH("/templates/:id", handleUpdateTemplate(svcs))
		admin.POST("/templates/:id/deactivate", handleDeactivateTemplate(svcs))
		admin.POST("/templates/:id/regenerate", handleRegenerate(svcs))
		admin.POST("/templates/:id/cancel-future", handleCancelFuture(svcs))
		admin.POST("/templates/:id/delete-unmodified", handleDeleteUnmodified(svcs))
		admin.GET("/templates/:id/counts", handleTemplateCounts(svcs))

		admin.POST("/voyages", handleCreateVoyage(svcs))
		admin.PATCH("/voyages/:id", handleUpdateVoyage(svcs))
		admin.POST("/voyages/:id/cancel", handleCancelVoyage(svcs))
		admin.POST("/routes/cancel", handleCancelRoute(svcs))

		admin.POST("/sweep", handleSweep(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get voyage
// @Param    id  path  int  true  "Voyage ID"
// @Success  200  {object}  domain.Voyage
// @Failure  404  {object}  ErrorResponse
// @Router   /voyages/{id} [get]
func handleGetVoyage(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		v, err := svcs.Query.GetVoyage(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeCached(c, v, 60*time.Second)
	}
}

// @Summary  Get decoded seat map
// @Param    id  path  int  true  "Voyage ID"
// @Success  200  {object}  query.SeatMap
// @Failure  404  {object}  ErrorResponse
// @Router   /voyages/{id}/seats [get]
func handleGetSeatMap(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		m, err := svcs.Query.GetSeatMap(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeCached(c, m, 15*time.Second)
	}
}

// @Summary  Get per-class availability
// @Param    id  path  int  true  "Voyage ID"
// @Success  200  {object}  query.Availability
// @Failure  404  {object}  ErrorResponse
// @Router   /voyages/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		a, err := svcs.Query.GetAvailability(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeCached(c, a, 15*time.Second)
	}
}

// @Summary  Stream availability changes (SSE)
// @Param    id  path  int  true  "Voyage ID"
// @Router   /voyages/{id}/stream [get]
func handleVoyageStream(svcs *service.Services, stream VoyageStream) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()

		first, err := svcs.Query.GetAvailability(ctx, id)
		if err != nil {
			respondErr(c, err)
			return
		}

		changed := make(chan struct{}, 1)
		go func() {
			_ = stream.Subscribe(ctx, func(_ context.Context, voyageID int64) {
				if voyageID != id {
					return
				}
				select {
				case changed <- struct{}{}:
				default:
				}
			})
		}()

		c.SSEvent("availability", first)
		c.Stream(func(io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case <-changed:
				a, err := svcs.Query.GetAvailability(ctx, id)
				if err != nil {
					return false
				}
				c.SSEvent("availability", a)
				return true
			}
		})
	}
}

// @Summary  Apply a ticket event (idempotent by event_id)
// @Param    id   path  int                  true  "Voyage ID"
// @Param    req  body  booking.TicketEvent  true  "event"
// @Success  201  {object}  booking.Result
// @Success  200  {object}  booking.Result  "replayed or cancelled"
// @Failure  400  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "seat taken / event in progress"
// @Failure  429  {object}  ErrorResponse  "rate limited"
// @Router   /voyages/{id}/tickets/events [post]
func handleTicketEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		voyageID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var ev booking.TicketEvent
		if err := c.ShouldBindJSON(&ev); err != nil {
			badRequest(c, err.Error())
			return
		}
		if ev.VoyageID == 0 {
			ev.VoyageID = voyageID
		}
		if ev.VoyageID != voyageID {
			badRequest(c, "voyage_id does not match path")
			return
		}
		if ev.EventID == "" {
			ev.EventID = strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		}

		res, err := svcs.Booking.Apply(c.Request.Context(), ev)
		if err != nil {
			if errors.Is(err, booking.ErrEventInProgress) {
				c.Header("Retry-After", "1")
			}
			respondErr(c, err)
			return
		}

		status := http.StatusOK
		if ev.Type == booking.TicketCreated && !res.Replayed {
			status = http.StatusCreated
		}
		c.JSON(status, res)
	}
}

// @Summary  Archived tickets of a voyage
// @Param    id  path  int  true  "Voyage ID"
// @Success  200  {array}  domain.ArchivedTicket
// @Router   /voyages/{id}/archive [get]
func handleVoyageArchive(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		out, err := svcs.Query.ListArchivedByVoyage(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(out))
	}
}

// @Summary  Archived tickets of a user
// @Param    id      path   int  true   "User ID"
// @Param    limit   query  int  false  "page size"
// @Param    offset  query  int  false  "offset"
// @Success  200  {array}  domain.ArchivedTicket
// @Router   /users/{id}/archive [get]
func handleUserArchive(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		limit := parseIntDefault(c.Query("limit"), 0)
		offset := parseIntDefault(c.Query("offset"), 0)

		out, err := svcs.Query.ListArchivedByUser(c.Request.Context(), id, limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(out))
	}
}

// @Summary  Create schedule template and generate its voyages
// @Param    req  body  CreateTemplateRequest  true  "payload"
// @Success  201  {object}  CreateTemplateResponse
// @Failure  400  {object}  ErrorResponse
// @Router   /admin/templates [post]
func handleCreateTemplate(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTemplateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		t, n, err := svcs.Schedule.CreateTemplate(c.Request.Context(), req.toDomain())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateTemplateResponse{Template: t, Generated: n})
	}
}

// @Summary  List schedule templates
// @Param    active  query  bool  false  "only active templates"
// @Success  200  {array}  domain.ScheduleTemplate
// @Router   /admin/templates [get]
func handleListTemplates(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		activeOnly := c.Query("active") == "true"
		out, err := svcs.Schedule.ListTemplates(c.Request.Context(), activeOnly)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(out))
	}
}

// @Summary  Get schedule template
// @Param    id  path  int  true  "Template ID"
// @Success  200  {object}  domain.ScheduleTemplate
// @Failure  404  {object}  ErrorResponse
// @Router   /admin/templates/{id} [get]
func handleGetTemplate(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		t, err := svcs.Schedule.GetTemplate(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// @Summary  Update template and regenerate future voyages
// @Param    id   path  int                    true  "Template ID"
// @Param    req  body  UpdateTemplateRequest  true  "patch"
// @Success  200  {object}  UpdateTemplateResponse
// @Router   /admin/templates/{id} [patch]
func handleUpdateTemplate(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req UpdateTemplateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		start, err := optionalDate("start_date", req.StartDate)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		end, err := optionalDate("end_date", req.EndDate)
		if err != nil {
			badRequest(c, err.Error())
			return
		}

		cur, err := svcs.Schedule.GetTemplate(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		t, n, err := svcs.Schedule.UpdateTemplateAndFutureVoyages(
			c.Request.Context(),
			id,
			req.patch(cur.Route),
			start,
			end,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, UpdateTemplateResponse{Template: t, Generated: n})
	}
}

// @Summary  Deactivate template and cancel its future voyages
// @Param    id  path  int  true  "Template ID"
// @Success  200  {object}  CountResponse
// @Router   /admin/templates/{id}/deactivate [post]
func handleDeactivateTemplate(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		n, err := svcs.Schedule.DeactivateTemplate(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, CountResponse{Count: n})
	}
}

// @Summary  Regenerate template voyages in a date range
// @Param    id   path  int               true   "Template ID"
// @Param    req  body  DateRangeRequest  false  "range"
// @Success  200  {object}  GeneratedResponse
// @Router   /admin/templates/{id}/regenerate [post]
func handleRegenerate(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req DateRangeRequest
		if !bindOptionalJSON(c, &req) {
			return
		}
		start, err := optionalDate("start_date", req.StartDate)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		end, err := optionalDate("end_date", req.EndDate)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		n, err := svcs.Schedule.Regenerate(c.Request.Context(), id, start, end)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, GeneratedResponse{Generated: n})
	}
}

// @Summary  Cancel future unmodified voyages of a template
// @Param    id   path  int              true   "Template ID"
// @Param    req  body  FromDateRequest  false  "from"
// @Success  200  {object}  CountResponse
// @Router   /admin/templates/{id}/cancel-future [post]
func handleCancelFuture(svcs *service.Services) gin.HandlerFunc {
	return templateFromDate(svcs.Schedule.CancelFutureVoyagesForTemplate)
}

// @Summary  Delete future unmodified voyages of a template
// @Param    id   path  int              true   "Template ID"
// @Param    req  body  FromDateRequest  false  "from"
// @Success  200  {object}  CountResponse
// @Router   /admin/templates/{id}/delete-unmodified [post]
func handleDeleteUnmodified(svcs *service.Services) gin.HandlerFunc {
	return templateFromDate(svcs.Schedule.DeleteUnmodifiedVoyagesForTemplate)
}

func templateFromDate(fn func(ctx context.Context, templateID int64, from time.Time) (int64, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req FromDateRequest
		if !bindOptionalJSON(c, &req) {
			return
		}
		from, err := optionalDate("from_date", req.FromDate)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		n, err := fn(c.Request.Context(), id, from)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, CountResponse{Count: n})
	}
}

// @Summary  Voyage counts of a template by state
// @Param    id  path  int  true  "Template ID"
// @Success  200  {object}  domain.TemplateVoyageCounts
// @Router   /admin/templates/{id}/counts [get]
func handleTemplateCounts(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		counts, err := svcs.Schedule.CountVoyagesByTemplate(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, counts)
	}
}

// @Summary  Create ad hoc voyage
// @Param    req  body  CreateVoyageRequest  true  "payload"
// @Success  201  {object}  domain.Voyage
// @Router   /admin/voyages [post]
func handleCreateVoyage(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateVoyageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		in, err := req.toInput()
		if err != nil {
			badRequest(c, "invalid departure_date")
			return
		}
		v, err := svcs.Schedule.CreateVoyage(c.Request.Context(), in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, v)
	}
}

// @Summary  Edit one voyage (marks it operator-modified)
// @Param    id   path  int                  true  "Voyage ID"
// @Param    req  body  UpdateVoyageRequest  true  "patch"
// @Success  200  {object}  domain.Voyage
// @Router   /admin/voyages/{id} [patch]
func handleUpdateVoyage(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req UpdateVoyageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		patch, err := req.toPatch()
		if err != nil {
			badRequest(c, "invalid departure_date")
			return
		}
		v, err := svcs.Schedule.UpdateVoyage(c.Request.Context(), id, patch)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

// @Summary  Cancel one voyage
// @Param    id  path  int  true  "Voyage ID"
// @Success  204
// @Router   /admin/voyages/{id}/cancel [post]
func handleCancelVoyage(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Schedule.CancelVoyage(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Cancel every active voyage of a route from a date
// @Param    req  body  CancelRouteRequest  true  "route"
// @Success  200  {object}  CountResponse
// @Router   /admin/routes/cancel [post]
func handleCancelRoute(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CancelRouteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		from, err := optionalDate("from_date", req.FromDate)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		n, err := svcs.Schedule.CancelVoyagesByRoute(
			c.Request.Context(),
			domain.Route{FromStationID: req.FromStationID, ToStationID: req.ToStationID},
			from,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, CountResponse{Count: n})
	}
}

// @Summary  Run one retirement sweep pass now
// @Success  200  {object}  sweep.Stats
// @Router   /admin/sweep [post]
func handleSweep(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svcs.Sweep.SweepNow(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// bindOptionalJSON binds a body when one is sent.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var seat *domain.SeatRef
	var se *inventory.SeatError
	if errors.As(err, &se) {
		seat = &se.Seat
	}

	switch {
	// inventory
	case errors.Is(err, inventory.ErrSeatOutOfRange):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "seat out of range", Seat: seat})
	case errors.Is(err, inventory.ErrSeatAlreadyTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "seat already taken", Seat: seat})
	case errors.Is(err, inventory.ErrSeatNotTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "seat not taken", Seat: seat})
	case errors.Is(err, inventory.ErrVoyageNotBookable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "voyage is not bookable"})
	case errors.Is(err, inventory.ErrEmptySelection):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no seats selected"})
	case errors.Is(err, inventory.ErrVoyageNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "voyage not found"})
	// booking
	case errors.Is(err, booking.ErrClassMismatch):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "seat does not belong to the ticket class"})
	case errors.Is(err, booking.ErrInvalidEvent):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, booking.ErrEventInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "event in progress"})
	case errors.Is(err, booking.ErrTicketExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "ticket already exists"})
	case errors.Is(err, booking.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ticket not found"})
	// schedule
	case errors.Is(err, schedule.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "template not found"})
	case errors.Is(err, schedule.ErrInvalidTemplate),
		errors.Is(err, seatmap.ErrUnknownVehicleType),
		errors.Is(err, station.ErrStationNotFound):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, schedule.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, schedule.ErrVoyageHasSales):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "voyage has sold seats"})
	case errors.Is(err, schedule.ErrVoyageClosed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "voyage is closed"})
	// query
	case errors.Is(err, query.ErrInvalidPage):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
	case errors.Is(err, repository.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict, retry"})
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
