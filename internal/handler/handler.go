// Package handler exposes the order builder over HTTP. Each order gets a
// long-lived session holding the in-memory cart; handlers translate
// requests into session mutations and rejections into structured JSON
// notices.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/stemvault/orderbuilder/internal/builder"
)

// Handler routes order builder requests to per-order sessions.
type Handler struct {
	mu       sync.Mutex
	sessions map[string]*builder.Controller

	sources builder.Sources
	lg      *zap.Logger
}

// NewHandler constructs a Handler creating sessions from the given
// sources.
func NewHandler(lg *zap.Logger, sources builder.Sources) *Handler {
	sources.Prompter = httpPrompter{}
	return &Handler{
		sessions: make(map[string]*builder.Controller),
		sources:  sources,
		lg:       lg.Named("handler"),
	}
}

// Routes mounts the order builder API onto a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/orders/{orderID}", func(r chi.Router) {
		r.Get("/", h.getOrder)
		r.Delete("/", h.clearOrder)
		r.Get("/catalog", h.getCatalog)
		r.Get("/payment-options", h.getPaymentOptions)

		r.Post("/items", h.selectItem)
		r.Post("/codes", h.redeemCode)

		r.Delete("/products/{selectorID}", h.removeProduct)
		r.Delete("/bundles/{selectorID}", h.removeBundle)
		r.Delete("/discounts/{selectorID}", h.removeDiscount)

		r.Put("/products/{selectorID}/quantity", h.setProductQuantity)
		r.Put("/bundles/{selectorID}/quantity", h.setBundleQuantity)

		r.Put("/payment-plan", h.selectPaymentPlan)
		r.Put("/payment-plan/additional-first-payment", h.setAdditionalFirstPayment)
	})
	return r
}

// session returns the cached controller for an order, loading it on first
// use.
func (h *Handler) session(ctx context.Context, orderID string) (*builder.Controller, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.sessions[orderID]; ok {
		return c, nil
	}
	c, err := builder.Load(ctx, h.lg, orderID, h.sources)
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	h.sessions[orderID] = c
	return c, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.lg.Error("encode response", zap.Error(err))
	}
}

// notice is the error payload the operator surface renders as a toast.
type notice struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var rej *builder.Rejection
	if errors.As(err, &rej) {
		status := http.StatusUnprocessableEntity
		if rej == builder.ErrBusy {
			status = http.StatusConflict
		}
		h.writeJSON(w, status, notice{Title: rej.Title, Message: rej.Message, Severity: rej.Severity})
		return
	}

	var perr *builder.PersistenceError
	if errors.As(err, &perr) {
		h.writeJSON(w, http.StatusBadGateway, notice{
			Title:    "Save Failed",
			Message:  "The change could not be saved. The cart may be out of sync until it reloads.",
			Severity: builder.SeverityError,
		})
		return
	}

	h.lg.Error("request failed", zap.Error(err))
	h.writeJSON(w, http.StatusInternalServerError, notice{
		Title:    "Unexpected Error",
		Message:  "Something went wrong. Try again.",
		Severity: builder.SeverityError,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, notice{
			Title:    "Invalid Request",
			Message:  "The request body could not be parsed.",
			Severity: builder.SeverityError,
		})
		return false
	}
	return true
}
