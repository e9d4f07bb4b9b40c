// Package api serves the HTTP surface: previews of arbitrary product URLs,
// tracked item management and on-demand checks.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/maltedev/product-extractor/internal/database"
	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/ratelimit"
	"github.com/maltedev/product-extractor/internal/scrapeerr"
	"github.com/maltedev/product-extractor/internal/scraper"
	"github.com/maltedev/product-extractor/internal/worker"
)

const (
	defaultListLimit      = 50
	maxListLimit          = 500
	historyLimit          = 50
	backlogWarnPending    = 1000
	backlogFailDeadLetter = 100
)

type Previewer interface {
	ScrapeProductFromURL(ctx context.Context, rawURL string) (*models.ScrapedProduct, error)
}

type ItemStore interface {
	CreateItem(ctx context.Context, url string) (*models.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ListItems(ctx context.Context, status models.ItemStatus, limit int) ([]*models.Item, error)
	PriceHistory(ctx context.Context, itemID uuid.UUID, limit int) ([]*models.PriceHistoryEntry, error)
	ResetForRecheck(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

type Checker interface {
	CheckItem(ctx context.Context, item *models.Item) (*worker.Result, error)
}

// BacklogReader reports the outbox backlog for health checks.
type BacklogReader interface {
	Backlog(ctx context.Context) (pending, dead int64, err error)
}

type Handlers struct {
	previewer Previewer
	store     ItemStore
	checker   Checker
	backlog   BacklogReader
	limiter   ratelimit.RateLimiter
	cache     *expirable.LRU[string, *models.ScrapedProduct]
	logger    *slog.Logger
}

type Config struct {
	CacheSize int
	CacheTTL  time.Duration
	// Limiter paces preview fetches; nil disables pacing.
	Limiter ratelimit.RateLimiter
	// Backlog is optional.
	Backlog BacklogReader
}

func NewHandlers(previewer Previewer, store ItemStore, checker Checker, cfg Config, logger *slog.Logger) *Handlers {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		previewer: previewer,
		store:     store,
		checker:   checker,
		backlog:   cfg.Backlog,
		limiter:   cfg.Limiter,
		cache:     expirable.NewLRU[string, *models.ScrapedProduct](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:    logger.With("component", "api"),
	}
}

type URLRequest struct {
	URL string `json:"url"`
}

type PreviewResponse struct {
	URL     string                 `json:"url"`
	Cached  bool                   `json:"cached"`
	Product *models.ScrapedProduct `json:"product"`
}

// Preview extracts a product from any URL with the generic extractor.
func (h *Handlers) Preview(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeURL(w, r)
	if !ok {
		return
	}

	if product, ok := h.cache.Get(req.URL); ok {
		h.respondJSON(w, http.StatusOK, PreviewResponse{URL: req.URL, Cached: true, Product: product})
		return
	}

	if h.limiter != nil {
		if err := h.limiter.Wait(r.Context()); err != nil {
			h.respondError(w, http.StatusServiceUnavailable, "request cancelled")
			return
		}
	}

	product, err := h.previewer.ScrapeProductFromURL(r.Context(), req.URL)
	if err != nil {
		h.logger.Warn("preview failed", "url", req.URL, "kind", scrapeerr.Kind(err), "error", err)
		h.respondError(w, statusForScrapeError(err), err.Error())
		return
	}

	h.cache.Add(req.URL, product)
	h.respondJSON(w, http.StatusOK, PreviewResponse{URL: req.URL, Product: product})
}

// CreateItem queues a URL for tracking. Re-submitting a URL returns the
// existing item.
func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeURL(w, r)
	if !ok {
		return
	}

	item, err := h.store.CreateItem(r.Context(), req.URL)
	if err != nil {
		h.logger.Error("failed to create item", "url", req.URL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	h.respondJSON(w, http.StatusCreated, item)
}

func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	status := models.ItemStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		h.respondError(w, http.StatusBadRequest, "invalid status")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	items, err := h.store.ListItems(r.Context(), status, limit)
	if err != nil {
		h.logger.Error("failed to list items", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list items")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

type ItemResponse struct {
	Item         *models.Item                `json:"item"`
	PriceHistory []*models.PriceHistoryEntry `json:"price_history"`
}

func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.loadItem(w, r)
	if !ok {
		return
	}

	history, err := h.store.PriceHistory(r.Context(), item.ID, historyLimit)
	if err != nil {
		h.logger.Error("failed to get price history", "item_id", item.ID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get price history")
		return
	}

	h.respondJSON(w, http.StatusOK, ItemResponse{Item: item, PriceHistory: history})
}

type CheckResponse struct {
	Item    *models.Item           `json:"item"`
	Product *models.ScrapedProduct `json:"product,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// CheckItem runs a check right away. Extraction failures are reported in the
// body with their raw message; the item is persisted the same way the
// background worker would.
func (h *Handlers) CheckItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.loadItem(w, r)
	if !ok {
		return
	}

	result, err := h.checker.CheckItem(r.Context(), item)
	if err != nil {
		h.logger.Error("failed to check item", "item_id", item.ID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to check item")
		return
	}

	resp := CheckResponse{Item: result.Item, Product: result.Product}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// Recheck puts every processed or failed item back in the queue.
func (h *Handlers) Recheck(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.ResetForRecheck(r.Context())
	if err != nil {
		h.logger.Error("failed to reset items", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to reset items")
		return
	}

	h.logger.Info("items queued for recheck", "count", n)
	h.respondJSON(w, http.StatusOK, map[string]int64{"queued": n})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}
	status := http.StatusOK

	if err := h.store.Ping(r.Context()); err != nil {
		health["status"] = "error"
		health["message"] = "database unreachable"
		h.respondJSON(w, http.StatusServiceUnavailable, health)
		return
	}

	if h.backlog != nil {
		pending, dead, err := h.backlog.Backlog(r.Context())
		if err != nil {
			h.logger.Warn("failed to read outbox backlog", "error", err)
		} else {
			health["outbox"] = map[string]int64{"pending": pending, "dead_letter": dead}
			if pending > backlogWarnPending {
				health["status"] = "warning"
				health["message"] = "High number of pending outbox events"
			}
			if dead > backlogFailDeadLetter {
				health["status"] = "error"
				health["message"] = "High number of dead letter events"
				status = http.StatusServiceUnavailable
			}
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) decodeURL(w http.ResponseWriter, r *http.Request) (URLRequest, bool) {
	var req URLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if _, err := scraper.ParseProductURL(req.URL); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

func (h *Handlers) loadItem(w http.ResponseWriter, r *http.Request) (*models.Item, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid item ID")
		return nil, false
	}

	item, err := h.store.GetItem(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "item not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("failed to get item", "item_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get item")
		return nil, false
	}
	return item, true
}

func statusForScrapeError(err error) int {
	switch scrapeerr.Kind(err) {
	case "invalid_url", "unregistered_domain":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "timeout":
		return http.StatusGatewayTimeout
	case "canceled":
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
