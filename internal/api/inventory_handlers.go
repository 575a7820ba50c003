package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/pos-checkout/internal/catalog"
	"github.com/example/pos-checkout/internal/ledger"
)

// RegisterProduct adds a catalog item and seeds it in the stock ledger.
func (h *Handlers) RegisterProduct(c *gin.Context) {
	var req struct {
		ID             string  `json:"id" binding:"required"`
		Name           string  `json:"name" binding:"required"`
		SKU            string  `json:"sku"`
		Category       string  `json:"category"`
		RetailPrice    int64   `json:"retail_price" binding:"required"`
		WholesalePrice int64   `json:"wholesale_price"`
		TaxRate        float64 `json:"tax_rate"`
		InitialStock   int     `json:"initial_stock"`
		MinStock       int     `json:"min_stock"`
		MaxStock       int     `json:"max_stock"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	th := ledger.Thresholds{MinStock: req.MinStock, MaxStock: req.MaxStock}
	if err := h.Ledger.Register(req.ID, req.InitialStock, th); err != nil {
		respondError(c, err)
		return
	}
	item := catalog.Item{
		ID:             req.ID,
		Name:           req.Name,
		SKU:            req.SKU,
		Category:       req.Category,
		RetailPrice:    req.RetailPrice,
		WholesalePrice: req.WholesalePrice,
		TaxRate:        req.TaxRate,
		MinStock:       req.MinStock,
		MaxStock:       req.MaxStock,
	}
	h.Catalog.Put(item)
	h.Logger.Info("product registered",
		zap.String("product_id", req.ID),
		zap.Int("initial_stock", req.InitialStock))
	c.JSON(http.StatusCreated, item)
}

func (h *Handlers) ListProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": h.Catalog.ListItems()})
}

// GetProductStock returns the current projection and the movement log.
func (h *Handlers) GetProductStock(c *gin.Context) {
	id := c.Param("id")
	stock, err := h.Ledger.CurrentStock(id)
	if err != nil {
		respondError(c, err)
		return
	}
	movements, err := h.Ledger.Movements(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product_id": id,
		"stock":      stock,
		"movements":  movements,
	})
}

func (h *Handlers) Restock(c *gin.Context) {
	var req struct {
		Quantity  int    `json:"quantity" binding:"required"`
		Reference string `json:"reference"`
		Notes     string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "quantity must be positive"})
		return
	}

	movement, err := h.Ledger.UpdateStock(c.Request.Context(), c.Param("id"), req.Quantity, ledger.TypeRestock, req.Reference, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movement)
}

// AdjustStock records a manual correction, positive or negative.
func (h *Handlers) AdjustStock(c *gin.Context) {
	var req struct {
		Quantity int    `json:"quantity" binding:"required"`
		Notes    string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	movement, err := h.Ledger.UpdateStock(c.Request.Context(), c.Param("id"), req.Quantity, ledger.TypeAdjustment, "", req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movement)
}

func (h *Handlers) ListAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": h.Ledger.Alerts()})
}

func (h *Handlers) AcknowledgeAlert(c *gin.Context) {
	if err := h.Ledger.Acknowledge(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

func (h *Handlers) AlertHistory(c *gin.Context) {
	history, err := h.Ledger.AlertHistory(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": history})
}
