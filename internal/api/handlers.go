package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/pos-checkout/internal/catalog"
	"github.com/example/pos-checkout/internal/checkout"
	"github.com/example/pos-checkout/internal/domain/cart"
	"github.com/example/pos-checkout/internal/domain/payment"
	"github.com/example/pos-checkout/internal/domain/pricing"
	"github.com/example/pos-checkout/internal/domain/promotion"
	"github.com/example/pos-checkout/internal/ledger"
)

// Handlers carries the wired collaborators for the HTTP surface.
// SessionDeps is the template every new checkout session is built from.
type Handlers struct {
	Registry    *Registry
	SessionDeps checkout.Deps
	Catalog     *catalog.MemorySource
	Promotions  *promotion.MemorySource
	Ledger      *ledger.Ledger
	Logger      *zap.Logger
}

func NewHandlers(registry *Registry, deps checkout.Deps, cat *catalog.MemorySource, promos *promotion.MemorySource, l *ledger.Ledger, logger *zap.Logger) *Handlers {
	return &Handlers{
		Registry:    registry,
		SessionDeps: deps,
		Catalog:     cat,
		Promotions:  promos,
		Ledger:      l,
		Logger:      logger,
	}
}

func (h *Handlers) CreateSession(c *gin.Context) {
	s := h.Registry.Create(h.SessionDeps)
	c.JSON(http.StatusCreated, s.Summary())
}

func (h *Handlers) GetSession(c *gin.Context) {
	s, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Summary())
}

func (h *Handlers) AddItem(c *gin.Context) {
	s, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req struct {
		ProductID string `json:"product_id" binding:"required"`
		Quantity  int    `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.AddItem(req.ProductID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Summary())
}

func (h *Handlers) UpdateQuantity(c *gin.Context) {
	s, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.UpdateQuantity(c.Param("productID"), req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Summary())
}

func (h *Handlers) RemoveItem(c *gin.Context) {
	s, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.RemoveItem(c.Param("productID")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Summary())
}

func (h *Handlers) SetLineDiscount(c *gin.Context) {
	s, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.SetLineDiscount(c.Param("productID"), req.Amount); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Summary())
}

func (h *Handlers) SetGlobalDiscount(c *gin.Context) {
	s, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req struct {
		Percent float64 `json:"percent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.SetGlobalDiscount(req.Percent); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Summary())
}

func (h *Handlers) SetPricingMode(c *gin.Context) {
	s, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode := pricing.Mode(req.Mode)
	if mode != pricing.ModeRetail && mode != pricing.ModeWholesale {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be retail or wholesale"})
		return
	}
	if err := s.SetPricingMode(mode); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Summary())
}

func (h *Handlers) ApplyPromotion(c *gin.Context) {
	s, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.ApplyPromotionCode(req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Summary())
}

func (h *Handlers) RemovePromotion(c *gin.Context) {
	s, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.RemovePromotionCode(c.Param("code")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Summary())
}

func (h *Handlers) AddPayment(c *gin.Context) {
	s, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req struct {
		Method    string `json:"method" binding:"required"`
		Amount    int64  `json:"amount" binding:"required"`
		Reference string `json:"reference"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := s.AddPayment(payment.Method(req.Method), req.Amount, req.Reference)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry, "session": s.Summary()})
}

func (h *Handlers) RemovePayment(c *gin.Context) {
	s, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.RemovePayment(c.Param("entryID")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Summary())
}

func (h *Handlers) Finalize(c *gin.Context) {
	s, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	sale, err := s.Finalize(c.Request.Context())
	if err != nil {
		var recErr *checkout.ReconciliationError
		if errors.As(err, &recErr) {
			// Stock already moved. The sale is handed back with the
			// reconciliation details instead of being dropped.
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":        recErr.Error(),
				"sale":         sale,
				"movement_ids": recErr.MovementIDs,
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (h *Handlers) Cancel(c *gin.Context) {
	s, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.Cancel(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": s.Status()})
}

// respondError maps domain errors onto HTTP statuses. Validation and
// availability problems are client errors; everything unexpected is a
// plain 500.
func respondError(c *gin.Context, err error) {
	var finalizeErr *checkout.FinalizeError
	var promoErr *checkout.PromotionError

	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, catalog.ErrItemNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, payment.ErrEntryNotFound),
		errors.Is(err, ledger.ErrUnknownProduct),
		errors.Is(err, ledger.ErrAlertNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrSessionClosed),
		errors.Is(err, checkout.ErrInvalidTransition),
		errors.Is(err, checkout.ErrNotFullyPaid),
		errors.Is(err, ledger.ErrProductExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &finalizeErr):
		c.JSON(http.StatusConflict, gin.H{"error": "finalize failed", "details": finalizeErr.Errors})
	case errors.As(err, &promoErr),
		errors.Is(err, cart.ErrInsufficientStock),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidDiscount),
		errors.Is(err, cart.ErrInvalidPercent),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrUnknownMethod),
		errors.Is(err, payment.ErrReferenceRequired):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
