package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/stemvault/orderbuilder/internal/builder"
	"github.com/stemvault/orderbuilder/internal/domain/catalog"
	"github.com/stemvault/orderbuilder/internal/domain/order"
)

type orderResponse struct {
	Order          *order.Order        `json:"order"`
	PaymentOptions []order.PaymentPlan `json:"paymentOptions"`
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	c, err := h.session(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orderResponse{
		Order:          c.Order(),
		PaymentOptions: c.PaymentOptions(),
	})
}

func (h *Handler) getCatalog(w http.ResponseWriter, r *http.Request) {
	c, err := h.session(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]catalog.Item{"items": c.CatalogItems()})
}

func (h *Handler) getPaymentOptions(w http.ResponseWriter, r *http.Request) {
	c, err := h.session(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]order.PaymentPlan{"paymentOptions": c.PaymentOptions()})
}

type selectItemRequest struct {
	SelectorID string `json:"selectorId"`
	Quantity   int64  `json:"quantity"`

	// Suggestion decision on the second round of a suggested swap.
	AcceptBundleID    string `json:"acceptBundleId,omitempty"`
	DeclineSuggestion bool   `json:"declineSuggestion,omitempty"`
}

type suggestionResponse struct {
	Suggestions []catalog.Suggestion `json:"suggestions"`
}

func (h *Handler) selectItem(w http.ResponseWriter, r *http.Request) {
	var req selectItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.session(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	st := &promptState{
		decided: req.AcceptBundleID != "" || req.DeclineSuggestion,
		chosen:  req.AcceptBundleID,
	}
	ctx := withPromptState(r.Context(), st)

	if err := c.SelectItem(ctx, req.SelectorID, req.Quantity); err != nil {
		if errors.Is(err, errSuggestionPending) {
			h.writeJSON(w, http.StatusConflict, suggestionResponse{Suggestions: st.options})
			return
		}
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orderResponse{Order: c.Order(), PaymentOptions: c.PaymentOptions()})
}

type redeemCodeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) redeemCode(w http.ResponseWriter, r *http.Request) {
	var req redeemCodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.mutate(w, r, func(c *builder.Controller) error {
		return c.RedeemCode(r.Context(), req.Code)
	})
}

func (h *Handler) removeProduct(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *builder.Controller) error {
		return c.RemoveProduct(r.Context(), chi.URLParam(r, "selectorID"))
	})
}

func (h *Handler) removeBundle(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *builder.Controller) error {
		return c.RemoveBundle(r.Context(), chi.URLParam(r, "selectorID"))
	})
}

func (h *Handler) removeDiscount(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *builder.Controller) error {
		return c.RemoveDiscount(r.Context(), chi.URLParam(r, "selectorID"))
	})
}

type quantityRequest struct {
	Quantity int64 `json:"quantity"`
}

func (h *Handler) setProductQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.mutate(w, r, func(c *builder.Controller) error {
		return c.SetProductQuantity(r.Context(), chi.URLParam(r, "selectorID"), req.Quantity)
	})
}

func (h *Handler) setBundleQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.mutate(w, r, func(c *builder.Controller) error {
		return c.SetBundleQuantity(r.Context(), chi.URLParam(r, "selectorID"), req.Quantity)
	})
}

type paymentPlanRequest struct {
	PlanID string `json:"planId"`
}

func (h *Handler) selectPaymentPlan(w http.ResponseWriter, r *http.Request) {
	var req paymentPlanRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.mutate(w, r, func(c *builder.Controller) error {
		return c.SelectPaymentPlan(r.Context(), req.PlanID)
	})
}

type additionalFirstPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) setAdditionalFirstPayment(w http.ResponseWriter, r *http.Request) {
	var req additionalFirstPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.mutate(w, r, func(c *builder.Controller) error {
		return c.SetAdditionalFirstPayment(r.Context(), req.Amount)
	})
}

func (h *Handler) clearOrder(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *builder.Controller) error {
		return c.ClearOrder(r.Context())
	})
}

// mutate runs a session mutation and responds with the refreshed cart.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(*builder.Controller) error) {
	c, err := h.session(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := fn(c); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orderResponse{Order: c.Order(), PaymentOptions: c.PaymentOptions()})
}
