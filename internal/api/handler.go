package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"booking-backend/config"
	"booking-backend/internal/model"
	"booking-backend/internal/notification"
	"booking-backend/internal/scheduler"
	"booking-backend/internal/store"
)

// Exposure is the permission check supplied by the content layer: it decides
// whether a view is available to the current request. It never mutates.
type Exposure interface {
	IsViewExposed(c *gin.Context, view string) bool
}

// exposeAll is the default Exposure; deployments embed their own.
type exposeAll struct{}

func (exposeAll) IsViewExposed(*gin.Context, string) bool { return true }

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store              store.Store
	webpush            *webpush.Options
	pool               *notification.WorkerPool
	cache              *cache.Cache
	exposure           Exposure
	translate          scheduler.Translator
	maxRetries         int
	defaultWaitinglist int
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithExposure installs the permission check for management views.
func WithExposure(e Exposure) HandlerOption {
	return func(h *Handler) {
		if e != nil {
			h.exposure = e
		}
	}
}

// WithTranslator installs the message-key translation hook used for
// availability texts.
func WithTranslator(t scheduler.Translator) HandlerOption {
	return func(h *Handler) {
		if t != nil {
			h.translate = t
		}
	}
}

// WithBookingConfig applies the scheduler tuning from configuration.
func WithBookingConfig(cfg config.BookingConfig) HandlerOption {
	return func(h *Handler) {
		h.maxRetries = cfg.MaxConflictRetries
		h.defaultWaitinglist = cfg.DefaultWaitinglistSpots
	}
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, webpushOptions *webpush.Options, pool *notification.WorkerPool, responseCache *cache.Cache, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:    s,
		webpush:  webpushOptions,
		pool:     pool,
		cache:    responseCache,
		exposure: exposeAll{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// schedulerFor builds the per-resource scheduler façade.
func (h *Handler) schedulerFor(resourceID string) *scheduler.Scheduler {
	opts := []scheduler.Option{scheduler.WithTranslator(h.translate)}
	if h.maxRetries > 0 {
		opts = append(opts, scheduler.WithMaxRetries(h.maxRetries))
	}
	return scheduler.New(h.store, resourceID, opts...)
}

// flushCache drops cached availability/report responses after a mutation.
func (h *Handler) flushCache() {
	if h.cache != nil {
		h.cache.Flush()
	}
}

// ResolveResourceTitle implements report.TitleResolver from the resource
// table.
func (h *Handler) ResolveResourceTitle(ctx context.Context, resourceID string) (string, error) {
	resource, err := h.store.GetResource(ctx, resourceID)
	if err != nil {
		return "", err
	}
	return resource.Title, nil
}

// abortWithError maps domain errors to HTTP status codes.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidRange):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrCapacityExceeded),
		errors.Is(err, model.ErrAlreadyConfirmed),
		errors.Is(err, model.ErrConflict):
		status = http.StatusConflict
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
