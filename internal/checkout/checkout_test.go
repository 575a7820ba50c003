package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pos-checkout/internal/catalog"
	"github.com/example/pos-checkout/internal/domain/payment"
	"github.com/example/pos-checkout/internal/domain/promotion"
	"github.com/example/pos-checkout/internal/infrastructure/store/mocks"
	"github.com/example/pos-checkout/internal/ledger"
)

type fixture struct {
	session *Session
	ledger  *ledger.Ledger
	promos  *promotion.MemorySource
	sales   *mocks.MockSaleStore
}

// newFixture wires a session around one product: retail price 1000,
// ledger stock 10, session tax rate 10%.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat := catalog.NewMemorySource()
	cat.Put(catalog.Item{
		ID:          "prod-1",
		Name:        "Americano",
		SKU:         "AME-001",
		Category:    "drinks",
		RetailPrice: 1000,
	})

	l := ledger.New()
	require.NoError(t, l.Register("prod-1", 10, ledger.Thresholds{}))

	engine, err := promotion.NewEngine(promotion.Config{MaxPromotionsPerOrder: 3, AllowStacking: true})
	require.NoError(t, err)

	promos := promotion.NewMemorySource()
	sales := mocks.NewMockSaleStore()

	session := NewSession(Deps{
		Catalog:    cat,
		Promotions: promos,
		Engine:     engine,
		Ledger:     l,
		Sales:      sales,
		TaxRate:    10,
	})
	return &fixture{session: session, ledger: l, promos: promos, sales: sales}
}

// ============================================
// Building
// ============================================

func TestSession_AddItem(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.session.AddItem("prod-1", 2))

	view := f.session.Summary()
	assert.Equal(t, StatusBuilding, view.Status)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Equal(t, int64(2000), view.Summary.Subtotal)
}

func TestSession_AddItem_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	err := f.session.AddItem("ghost", 1)

	assert.ErrorIs(t, err, catalog.ErrItemNotFound)
	assert.True(t, f.session.Summary().Summary.Total == 0)
}

func TestSession_AddItem_InsufficientStock(t *testing.T) {
	f := newFixture(t)

	err := f.session.AddItem("prod-1", 11)

	require.Error(t, err)
	assert.Empty(t, f.session.Summary().Lines)
}

func TestSession_WorkedExample(t *testing.T) {
	// price 1000 x2, global discount 10%, tax 10%.
	f := newFixture(t)
	require.NoError(t, f.session.AddItem("prod-1", 2))
	require.NoError(t, f.session.SetGlobalDiscount(10))

	sum := f.session.Summary().Summary

	assert.Equal(t, int64(2000), sum.Subtotal)
	assert.Equal(t, int64(200), sum.DiscountAmount)
	assert.Equal(t, int64(1800), sum.TaxableAmount)
	assert.Equal(t, int64(180), sum.TaxAmount)
	assert.Equal(t, int64(1980), sum.Total)
}

// ============================================
// Promotions
// ============================================

func TestSession_ApplyPromotionCode(t *testing.T) {
	f := newFixture(t)
	f.promos.Put(&promotion.Promotion{
		Code:    "TENOFF",
		Type:    promotion.TypePercentage,
		Percent: 10,
		Active:  true,
	})
	require.NoError(t, f.session.AddItem("prod-1", 2))

	require.NoError(t, f.session.ApplyPromotionCode("TENOFF"))

	view := f.session.Summary()
	require.Len(t, view.Promotions, 1)
	assert.True(t, view.Promotions[0].Applied)
	assert.Equal(t, int64(200), view.Summary.DiscountAmount)
	assert.Equal(t, int64(1980), view.Summary.Total)
}

func TestSession_ApplyPromotionCode_Unknown(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.AddItem("prod-1", 1))

	err := f.session.ApplyPromotionCode("NOPE")

	var promoErr *PromotionError
	require.ErrorAs(t, err, &promoErr)
	assert.Equal(t, promotion.ReasonUnknownCode, promoErr.Reason)
	assert.Empty(t, f.session.Summary().Promotions)
}

func TestSession_ApplyPromotionCode_Expired(t *testing.T) {
	f := newFixture(t)
	f.promos.Put(&promotion.Promotion{
		Code:    "OLD",
		Type:    promotion.TypePercentage,
		Percent: 50,
		Active:  true,
		EndsAt:  time.Now().Add(-time.Hour),
	})
	require.NoError(t, f.session.AddItem("prod-1", 1))

	err := f.session.ApplyPromotionCode("OLD")

	var promoErr *PromotionError
	require.ErrorAs(t, err, &promoErr)
	assert.Equal(t, promotion.ReasonExpired, promoErr.Reason)
}

// ============================================
// Payments & Status
// ============================================

func TestSession_StatusFollowsPayments(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.AddItem("prod-1", 2)) // total 2200 with 10% tax

	_, err := f.session.AddPayment(payment.MethodCash, 1000, "")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingPayment, f.session.Status())

	entry, err := f.session.AddPayment(payment.MethodCash, 1500, "")
	require.NoError(t, err)
	assert.Equal(t, StatusFullyPaid, f.session.Status())

	require.NoError(t, f.session.RemovePayment(entry.ID))
	assert.Equal(t, StatusAwaitingPayment, f.session.Status())
}

func TestSession_AddPayment_RejectedLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.AddItem("prod-1", 1))

	_, err := f.session.AddPayment(payment.MethodCard, 500, "")

	assert.ErrorIs(t, err, payment.ErrReferenceRequired)
	assert.Equal(t, StatusBuilding, f.session.Status())
	assert.Empty(t, f.session.Summary().Payments.Entries)
}

func TestSession_AddingItemsDropsFullyPaid(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.AddItem("prod-1", 1))
	_, err := f.session.AddPayment(payment.MethodCash, 1100, "")
	require.NoError(t, err)
	require.Equal(t, StatusFullyPaid, f.session.Status())

	require.NoError(t, f.session.AddItem("prod-1", 1))

	assert.Equal(t, StatusAwaitingPayment, f.session.Status())
}

// ============================================
// Finalize
// ============================================

func TestSession_Finalize(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.AddItem("prod-1", 2)) // total 2200
	_, err := f.session.AddPayment(payment.MethodCash, 2500, "")
	require.NoError(t, err)

	sale, err := f.session.Finalize(context.Background())

	require.NoError(t, err)
	require.NotNil(t, sale)
	assert.Equal(t, int64(2200), sale.Total)
	assert.Equal(t, int64(300), sale.Change)
	require.Len(t, sale.Lines, 1)
	assert.Equal(t, int64(2000), sale.Lines[0].Subtotal)

	// Stock moved, sale persisted, session closed and cart cleared.
	stock, err := f.ledger.CurrentStock("prod-1")
	require.NoError(t, err)
	assert.Equal(t, 8, stock)
	require.Len(t, f.sales.InsertCalls, 1)
	assert.Equal(t, sale.ID, f.sales.InsertCalls[0].Sale.ID)
	assert.Len(t, f.sales.InsertCalls[0].Lines, 1)
	assert.Len(t, f.sales.InsertCalls[0].Payments, 1)
	assert.Equal(t, StatusCompleted, f.session.Status())
	assert.Empty(t, f.session.Summary().Lines)
}

func TestSession_Finalize_ZeroTotalWithoutPayments(t *testing.T) {
	// A fully discounted cart owes nothing, so the paid >= total gate
	// holds with no payment entries at all.
	f := newFixture(t)
	require.NoError(t, f.session.AddItem("prod-1", 2))
	require.NoError(t, f.session.SetGlobalDiscount(100))

	view := f.session.Summary()
	assert.Equal(t, int64(0), view.Summary.Total)
	assert.True(t, view.Payments.FullyPaid)
	assert.Equal(t, StatusFullyPaid, view.Status)

	sale, err := f.session.Finalize(context.Background())

	require.NoError(t, err)
	require.NotNil(t, sale)
	assert.Equal(t, int64(0), sale.Total)
	assert.Equal(t, int64(0), sale.Change)
	assert.Empty(t, sale.Payments)

	stock, err := f.ledger.CurrentStock("prod-1")
	require.NoError(t, err)
	assert.Equal(t, 8, stock)
	require.Len(t, f.sales.InsertCalls, 1)
	assert.Equal(t, StatusCompleted, f.session.Status())
}

func TestSession_EmptySessionStaysBuilding(t *testing.T) {
	// Zero total on an empty cart is not "fully paid"; there is
	// nothing to pay for yet.
	f := newFixture(t)

	// The reconciler reports 0 >= 0 as fully paid, but an empty cart
	// never advances the session.
	view := f.session.Summary()
	assert.True(t, view.Payments.FullyPaid)
	assert.Equal(t, StatusBuilding, view.Status)

	_, err := f.session.Finalize(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestSession_Finalize_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.Finalize(context.Background())

	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestSession_Finalize_NotFullyPaid(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.AddItem("prod-1", 2))
	_, err := f.session.AddPayment(payment.MethodCash, 100, "")
	require.NoError(t, err)

	_, err = f.session.Finalize(context.Background())

	assert.ErrorIs(t, err, ErrNotFullyPaid)
	assert.Empty(t, f.sales.InsertCalls)
	stock, err := f.ledger.CurrentStock("prod-1")
	require.NoError(t, err)
	assert.Equal(t, 10, stock)
}

func TestSession_Finalize_StockFailureAbortsCleanly(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.AddItem("prod-1", 2))
	_, err := f.session.AddPayment(payment.MethodCash, 2200, "")
	require.NoError(t, err)

	// Another sale drains the stock between building and finalize.
	_, err = f.ledger.UpdateStock(context.Background(), "prod-1", -9, ledger.TypeSale, "other-sale", "")
	require.NoError(t, err)

	sale, err := f.session.Finalize(context.Background())

	assert.Nil(t, sale)
	var finalizeErr *FinalizeError
	require.ErrorAs(t, err, &finalizeErr)
	require.Len(t, finalizeErr.Errors, 1)
	assert.Empty(t, f.sales.InsertCalls)

	// Session stays open for the cashier to adjust the cart.
	assert.Equal(t, StatusFullyPaid, f.session.Status())
	stock, err := f.ledger.CurrentStock("prod-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stock)
}

func TestSession_Finalize_PersistenceFailureIsReconciliation(t *testing.T) {
	f := newFixture(t)
	f.sales.InsertErr = errors.New("connection refused")
	require.NoError(t, f.session.AddItem("prod-1", 2))
	_, err := f.session.AddPayment(payment.MethodCash, 2200, "")
	require.NoError(t, err)

	sale, err := f.session.Finalize(context.Background())

	// Stock is committed, so the sale comes back alongside the error.
	require.NotNil(t, sale)
	var recErr *ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, sale.ID, recErr.SaleID)
	assert.Len(t, recErr.MovementIDs, 1)
	assert.ErrorContains(t, recErr, "connection refused")

	stock, err := f.ledger.CurrentStock("prod-1")
	require.NoError(t, err)
	assert.Equal(t, 8, stock)
	assert.Equal(t, StatusCompleted, f.session.Status())
}

func TestSession_Finalize_AppliedPromotionRecordedOnSale(t *testing.T) {
	f := newFixture(t)
	f.promos.Put(&promotion.Promotion{
		Code:    "TENOFF",
		Type:    promotion.TypePercentage,
		Percent: 10,
		Active:  true,
	})
	require.NoError(t, f.session.AddItem("prod-1", 2))
	require.NoError(t, f.session.ApplyPromotionCode("TENOFF"))
	_, err := f.session.AddPayment(payment.MethodCash, 1980, "")
	require.NoError(t, err)

	sale, err := f.session.Finalize(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"TENOFF"}, sale.PromotionCodes)
	assert.Equal(t, int64(200), sale.Discount)
	assert.Equal(t, int64(1980), sale.Total)
}

// ============================================
// Cancel & Closed Sessions
// ============================================

func TestSession_Cancel(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.AddItem("prod-1", 2))

	require.NoError(t, f.session.Cancel())

	assert.Equal(t, StatusCancelled, f.session.Status())
	assert.ErrorIs(t, f.session.AddItem("prod-1", 1), ErrSessionClosed)
	_, err := f.session.Finalize(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)

	stock, err := f.ledger.CurrentStock("prod-1")
	require.NoError(t, err)
	assert.Equal(t, 10, stock)
}

func TestSession_CancelAfterComplete(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.AddItem("prod-1", 1))
	_, err := f.session.AddPayment(payment.MethodCash, 1100, "")
	require.NoError(t, err)
	_, err = f.session.Finalize(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, f.session.Cancel(), ErrInvalidTransition)
}
