package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pos-checkout/internal/infrastructure/store/mocks"
)

func newTestLedger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()
	return New(opts...)
}

func registerProduct(t *testing.T, l *Ledger, id string, stock int, th Thresholds) {
	t.Helper()
	require.NoError(t, l.Register(id, stock, th))
}

// ============================================
// Registration & Projection
// ============================================

func TestLedger_Register_Duplicate(t *testing.T) {
	l := newTestLedger(t)
	registerProduct(t, l, "prod-1", 10, Thresholds{})

	assert.ErrorIs(t, l.Register("prod-1", 5, Thresholds{}), ErrProductExists)
}

func TestLedger_CurrentStock_Unknown(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.CurrentStock("ghost")

	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestLedger_UpdateStock_ProjectionFollowsDeltas(t *testing.T) {
	l := newTestLedger(t)
	registerProduct(t, l, "prod-1", 10, Thresholds{})
	ctx := context.Background()

	_, err := l.UpdateStock(ctx, "prod-1", -3, TypeSale, "sale-1", "")
	require.NoError(t, err)
	_, err = l.UpdateStock(ctx, "prod-1", 5, TypeRestock, "po-9", "weekly delivery")
	require.NoError(t, err)
	_, err = l.UpdateStock(ctx, "prod-1", 1, TypeReturn, "sale-1", "")
	require.NoError(t, err)

	stock, err := l.CurrentStock("prod-1")
	require.NoError(t, err)
	assert.Equal(t, 13, stock)

	movements, err := l.Movements("prod-1")
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.Equal(t, TypeSale, movements[0].Type)
	assert.Equal(t, 10, movements[0].PreviousStock)
	assert.Equal(t, 7, movements[0].ResultingStock)
	assert.Equal(t, 12, movements[1].ResultingStock)
	assert.Equal(t, 13, movements[2].ResultingStock)
}

func TestLedger_UpdateStock_ClampsAtZero(t *testing.T) {
	l := newTestLedger(t)
	registerProduct(t, l, "prod-1", 3, Thresholds{})

	movement, err := l.UpdateStock(context.Background(), "prod-1", -10, TypeAdjustment, "", "shrinkage")

	require.NoError(t, err)
	assert.Equal(t, 0, movement.ResultingStock)
	stock, err := l.CurrentStock("prod-1")
	require.NoError(t, err)
	assert.Zero(t, stock)
}

func TestLedger_UpdateStock_UnknownProduct(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.UpdateStock(context.Background(), "ghost", 1, TypeRestock, "", "")

	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestLedger_UpdateStock_PersistsToStore(t *testing.T) {
	movementStore := mocks.NewMockMovementStore()
	l := newTestLedger(t, WithMovementStore(movementStore))
	registerProduct(t, l, "prod-1", 10, Thresholds{})

	_, err := l.UpdateStock(context.Background(), "prod-1", -2, TypeSale, "sale-7", "")

	require.NoError(t, err)
	require.Len(t, movementStore.InsertCalls, 1)
	rec := movementStore.InsertCalls[0]
	assert.Equal(t, "prod-1", rec.ProductID)
	assert.Equal(t, string(TypeSale), rec.Type)
	assert.Equal(t, -2, rec.Quantity)
	assert.Equal(t, 8, rec.ResultingStock)
	assert.Equal(t, "sale-7", rec.Reference)
}

// ============================================
// Availability
// ============================================

func TestLedger_CheckAvailability(t *testing.T) {
	l := newTestLedger(t)
	registerProduct(t, l, "prod-1", 3, Thresholds{})
	registerProduct(t, l, "prod-empty", 0, Thresholds{})

	tests := []struct {
		name         string
		productID    string
		qty          int
		available    bool
		maxAvailable int
	}{
		{"within stock", "prod-1", 2, true, 3},
		{"exact stock", "prod-1", 3, true, 3},
		{"exceeds stock reports max available", "prod-1", 5, false, 3},
		{"zero stock", "prod-empty", 1, false, 0},
		{"unknown product", "ghost", 1, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			av := l.CheckAvailability(tt.productID, tt.qty)

			assert.Equal(t, tt.available, av.Available)
			assert.Equal(t, tt.maxAvailable, av.MaxAvailable)
			if !tt.available {
				assert.NotEmpty(t, av.Reason)
			}
		})
	}
}

// ============================================
// ProcessSale: All-or-Nothing
// ============================================

func TestLedger_ProcessSale_Success(t *testing.T) {
	l := newTestLedger(t)
	registerProduct(t, l, "prod-1", 10, Thresholds{})
	registerProduct(t, l, "prod-2", 5, Thresholds{})

	result := l.ProcessSale(context.Background(), []SaleLine{
		{ProductID: "prod-1", Quantity: 2},
		{ProductID: "prod-2", Quantity: 5},
	}, "sale-1")

	require.True(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.Movements, 2)

	stock1, err := l.CurrentStock("prod-1")
	require.NoError(t, err)
	stock2, err := l.CurrentStock("prod-2")
	require.NoError(t, err)
	assert.Equal(t, 8, stock1)
	assert.Equal(t, 0, stock2)

	for _, m := range result.Movements {
		assert.Equal(t, TypeSale, m.Type)
		assert.Equal(t, "sale-1", m.Reference)
		assert.Negative(t, m.Quantity)
	}
}

func TestLedger_ProcessSale_OneFailingLineWritesNothing(t *testing.T) {
	l := newTestLedger(t)
	registerProduct(t, l, "prod-1", 10, Thresholds{})
	registerProduct(t, l, "prod-2", 1, Thresholds{})

	result := l.ProcessSale(context.Background(), []SaleLine{
		{ProductID: "prod-1", Quantity: 2},
		{ProductID: "prod-2", Quantity: 5},
	}, "sale-1")

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "prod-2")
	assert.Empty(t, result.Movements)

	// Stock untouched for every product, including the passing line.
	stock1, err := l.CurrentStock("prod-1")
	require.NoError(t, err)
	stock2, err := l.CurrentStock("prod-2")
	require.NoError(t, err)
	assert.Equal(t, 10, stock1)
	assert.Equal(t, 1, stock2)

	movements, err := l.Movements("prod-1")
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestLedger_ProcessSale_AllErrorsReported(t *testing.T) {
	l := newTestLedger(t)
	registerProduct(t, l, "prod-1", 0, Thresholds{})
	registerProduct(t, l, "prod-2", 2, Thresholds{})

	result := l.ProcessSale(context.Background(), []SaleLine{
		{ProductID: "prod-1", Quantity: 1},
		{ProductID: "prod-2", Quantity: 9},
		{ProductID: "ghost", Quantity: 1},
	}, "sale-1")

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 3)
	joined := fmt.Sprint(result.Errors)
	assert.Contains(t, joined, "ghost")
	assert.Contains(t, joined, "prod-1: out of stock")
	assert.Contains(t, joined, "prod-2: requested 9")
}

func TestLedger_ProcessSale_DuplicateLinesMerged(t *testing.T) {
	l := newTestLedger(t)
	registerProduct(t, l, "prod-1", 5, Thresholds{})

	result := l.ProcessSale(context.Background(), []SaleLine{
		{ProductID: "prod-1", Quantity: 3},
		{ProductID: "prod-1", Quantity: 3},
	}, "sale-1")

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "requested 6")
}

func TestLedger_ProcessSale_EmptySale(t *testing.T) {
	l := newTestLedger(t)

	result := l.ProcessSale(context.Background(), nil, "sale-1")

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Errors)
}

func TestLedger_ProcessSale_ConcurrentSalesNeverOversell(t *testing.T) {
	l := newTestLedger(t)
	registerProduct(t, l, "prod-1", 50, Thresholds{})

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			result := l.ProcessSale(context.Background(), []SaleLine{
				{ProductID: "prod-1", Quantity: 4},
			}, fmt.Sprintf("sale-%d", n))
			if result.Success {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	stock, err := l.CurrentStock("prod-1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stock, 0)
	assert.Equal(t, 50-succeeded*4, stock)
	// 50/4 = 12 sales fit, the rest must have been rejected.
	assert.Equal(t, 12, succeeded)
}

// ============================================
// Subscriptions
// ============================================

func TestLedger_Subscribe_ReceivesMovementEvents(t *testing.T) {
	l := newTestLedger(t)
	registerProduct(t, l, "prod-1", 10, Thresholds{})

	var events []Event
	unsubscribe := l.Subscribe(func(e Event) { events = append(events, e) })
	defer unsubscribe()

	_, err := l.UpdateStock(context.Background(), "prod-1", -1, TypeSale, "sale-1", "")
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, EventMovement, events[0].Kind)
	assert.Equal(t, "prod-1", events[0].ProductID)
	require.NotNil(t, events[0].Movement)
	assert.Equal(t, 9, events[0].Movement.ResultingStock)
}

func TestLedger_Subscribe_UnsubscribeStopsDelivery(t *testing.T) {
	l := newTestLedger(t)
	registerProduct(t, l, "prod-1", 10, Thresholds{})

	count := 0
	unsubscribe := l.Subscribe(func(Event) { count++ })

	_, err := l.UpdateStock(context.Background(), "prod-1", -1, TypeSale, "", "")
	require.NoError(t, err)
	unsubscribe()
	_, err = l.UpdateStock(context.Background(), "prod-1", -1, TypeSale, "", "")
	require.NoError(t, err)

	assert.Equal(t, 1, count)
}
