package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tably/tably-go/internal/availability"
	"github.com/tably/tably-go/internal/broadcast"
	"github.com/tably/tably-go/internal/catalog"
	"github.com/tably/tably-go/internal/domain"
	"github.com/tably/tably-go/internal/finalize"
	"github.com/tably/tably-go/internal/hold"
	"github.com/tably/tably-go/internal/repository"
	redisrepo "github.com/tably/tably-go/internal/repository/redis"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Services bundles everything the router serves.
type Services struct {
	Holds        *hold.Manager
	Availability *availability.Service
	Finalizer    *finalize.Service
	Catalog      *catalog.Service
	Hub          *broadcast.Hub
}

func NewRouter(
	svcs Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
	jwtSecret string,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health + metrics
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public API
	r.GET("/tables", handleListTables(svcs))
	r.GET("/availability", handleGetAvailability(svcs))
	r.GET("/seatmap/subscribe", handleSeatMapSubscribe(svcs.Hub))

	// Session-scoped API
	auth := r.Group("/", SessionAuth(jwtSecret))
	{
		auth.POST("/holds", handleCreateHold(svcs, idem, limiter))
		auth.POST("/holds/:id/extend", handleExtendHold(svcs))
		auth.DELETE("/holds/:id", handleReleaseHold(svcs))

		auth.POST("/reservations", handleFinalizeReservation(svcs))
		auth.GET("/reservations/:id", handleGetReservation(svcs))
	}

	// Admin API
	// TODO: add role check once the auth service issues role claims
	admin := r.Group("/admin", SessionAuth(jwtSecret))
	{
		admin.POST("/tables", handleUpsertTables(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  List active dining tables
// @Success  200  {array}  domain.DiningTable
// @Router   /tables [get]
func handleListTables(svcs Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		tables, err := svcs.Catalog.ListActive(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, tables, "public, max-age=60", true)
	}
}

// @Summary  Get availability for a slot
// @Param    date        query  string  true   "2006-01-02"
// @Param    time        query  string  true   "15:04"
// @Param    party_size  query  int     false  "suggest combos for this party"
// @Success  200  {object}  domain.AvailabilityPayload
// @Failure  400  {object}  ErrorResponse
// @Router   /availability [get]
func handleGetAvailability(svcs Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		slot, ok := parseSlotQuery(c)
		if !ok {
			return
		}
		partySize := parseIntDefault(c.Query("party_size"), 0)

		payload, err := svcs.Availability.Snapshot(c.Request.Context(), slot, partySize)
		if err != nil {
			respondErr(c, err)
			return
		}
		// holds move fast; keep the edge cache short
		writeJSONWithCache(c, http.StatusOK, payload, "public, max-age=5", true)
	}
}

// @Summary  Create hold (idempotent)
// @Param    req body  CreateHoldRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} CreateHoldResponse
// @Failure  400 {object} ErrorResponse "unknown or inactive table"
// @Failure  403 {object} ErrorResponse "slot blackout"
// @Failure  409 {object} ErrorResponse "tables already taken"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /holds [post]
func handleCreateHold(
	svcs Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateHoldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		slot := domain.Slot{Date: req.Date, Time: req.Time}
		if err := slot.Validate(); err != nil {
			badRequest(c, err.Error())
			return
		}

		if limiter != nil {
			ok, _, retry, err := limiter.Allow(c.Request.Context(), "ip:"+c.ClientIP())
			if err != nil {
				respondErr(c, err)
				return
			}
			if !ok {
				c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
				c.JSON(http.StatusTooManyRequests,
					ErrorResponse{Error: "rate limited"})
				return
			}
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemHold(slot, idemKey)

			if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			}

			locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, 60*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		rec, err := svcs.Holds.Create(c.Request.Context(), sessionID(c), slot, req.TableIDs)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := CreateHoldResponse{
			HoldID:    rec.ID.String(),
			ExpiresAt: rec.ExpiresAt,
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Extend hold
// @Param    id  path  string  true  "Hold ID (uuid)"
// @Success  200 {object} ExtendHoldResponse
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /holds/{id}/extend [post]
func handleExtendHold(svcs Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		holdID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		rec, err := svcs.Holds.Extend(c.Request.Context(), sessionID(c), holdID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ExtendHoldResponse{
			HoldID:    rec.ID.String(),
			ExpiresAt: rec.ExpiresAt,
		})
	}
}

// @Summary  Release hold
// @Param    id  path  string  true  "Hold ID (uuid)"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /holds/{id} [delete]
func handleReleaseHold(svcs Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		holdID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Holds.Release(c.Request.Context(), sessionID(c), holdID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Finalize reservation from a live hold
// @Param    req body  FinalizeReservationRequest true "payload"
// @Success  201 {object} domain.Reservation
// @Failure  400 {object} ErrorResponse "validation"
// @Failure  404 {object} ErrorResponse "hold not found"
// @Failure  410 {object} ErrorResponse "hold expired"
// @Router   /reservations [post]
func handleFinalizeReservation(svcs Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req FinalizeReservationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		holdID, err := uuid.Parse(req.HoldID)
		if err != nil {
			badRequest(c, "invalid hold_id")
			return
		}
		res, err := svcs.Finalizer.Finalize(
			c.Request.Context(),
			sessionID(c),
			holdID,
			req.PartySize,
			req.Guest,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

// @Summary  Get reservation
// @Param    id  path  string  true  "Reservation ID (uuid)"
// @Success  200 {object} domain.Reservation
// @Failure  404 {object} ErrorResponse
// @Router   /reservations/{id} [get]
func handleGetReservation(svcs Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		res, err := svcs.Finalizer.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Seed or update dining tables
// @Param    req body  UpsertTablesRequest true "payload"
// @Success  201 {object} map[string]int
// @Router   /admin/tables [post]
func handleUpsertTables(svcs Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpsertTablesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		tables := make([]domain.DiningTable, 0, len(req.Tables))
		for _, t := range req.Tables {
			active := true
			if t.Active != nil {
				active = *t.Active
			}
			tables = append(tables, domain.DiningTable{
				ID:       t.ID,
				Label:    t.Label,
				Capacity: t.Capacity,
				Position: domain.Position{X: t.X, Y: t.Y, Rotation: t.Rotation},
				Zone:     t.Zone,
				Active:   active,
			})
		}
		if err := svcs.Catalog.Upsert(c.Request.Context(), tables); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"upserted": len(tables)})
	}
}

// --- Helpers ---

func parseSlotQuery(c *gin.Context) (domain.Slot, bool) {
	slot := domain.Slot{Date: c.Query("date"), Time: c.Query("time")}
	if err := slot.Validate(); err != nil {
		badRequest(c, err.Error())
		return domain.Slot{}, false
	}
	return slot, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
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

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var conflict *hold.ConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:    "tables already taken",
			TableIDs: conflict.TableIDs,
		})
		return
	}

	var invalid *hold.InvalidTableError
	if errors.As(err, &invalid) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:    "unknown or inactive tables",
			TableIDs: invalid.TableIDs,
		})
		return
	}

	var blackout *hold.BlackoutError
	if errors.As(err, &blackout) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: blackout.Error()})
		return
	}

	var validation *finalize.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: validation.Error()})
		return
	}

	switch {
	// hold lifecycle
	case errors.Is(err, hold.ErrNotFound), errors.Is(err, hold.ErrExpired):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "hold not found"})
		return
	case errors.Is(err, hold.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "hold belongs to another session"})
		return
	// finalizer
	case errors.Is(err, finalize.ErrHoldExpired):
		c.JSON(http.StatusGone, ErrorResponse{Error: "hold expired"})
		return
	case errors.Is(err, finalize.ErrHoldNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "hold not found"})
		return
	// persistence
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
		return
	case errors.Is(err, repository.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
