package order

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/example/chefmarket/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrderService() (*Service, *mocks.MockEventStore) {
	eventStore := mocks.NewMockEventStore()
	service := NewService(eventStore)
	return service, eventStore
}

func seller(id string) Actor { return Actor{ID: id, Role: "seller"} }
func buyer(id string) Actor  { return Actor{ID: id, Role: "buyer"} }

var admin = Actor{ID: "admin-1", Role: "admin"}

// seedOrder puts an order at the given status by replaying created + status
// change events through the mock store.
func seedOrder(es *mocks.MockEventStore, orderID string, status Status) {
	_ = es.AddEvent(orderID, AggregateType, EventOrderCreated, OrderCreated{
		OrderID:  orderID,
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Items:    []LineItem{{DishID: "dish-1", Name: "Pad Thai", Quantity: 1, Price: 1200}},
		Total:    1200,
	})

	path := map[Status][]Status{
		StatusPending:   {},
		StatusConfirmed: {StatusConfirmed},
		StatusPreparing: {StatusConfirmed, StatusPreparing},
		StatusReady:     {StatusConfirmed, StatusPreparing, StatusReady},
		StatusOnTheWay:  {StatusConfirmed, StatusPreparing, StatusOnTheWay},
		StatusCompleted: {StatusConfirmed, StatusPreparing, StatusOnTheWay, StatusCompleted},
		StatusCancelled: {StatusCancelled},
	}
	prev := StatusPending
	for _, next := range path[status] {
		_ = es.AddEvent(orderID, AggregateType, EventOrderStatusChanged, OrderStatusChanged{
			OrderID:        orderID,
			PreviousStatus: prev,
			NewStatus:      next,
			ActorID:        "seller-1",
		})
		prev = next
	}
}

// ============================================
// Create Order Tests
// ============================================

func TestService_Create_Success(t *testing.T) {
	service, eventStore := newTestOrderService()
	ctx := context.Background()

	items := []LineItem{
		{DishID: "dish-1", Name: "Pad Thai", Quantity: 2, Price: 1200},
		{DishID: "dish-2", Name: "Spring Rolls", Quantity: 1, Price: 600},
	}

	order, err := service.Create(ctx, CreateParams{
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Items:    items,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "buyer-1", order.BuyerID)
	assert.Equal(t, "seller-1", order.SellerID)
	assert.Equal(t, 3000, order.Total) // 2*1200 + 1*600
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, 1, order.Version)

	assert.Len(t, eventStore.AppendCalls, 1)
	assert.Equal(t, EventOrderCreated, eventStore.AppendCalls[0].EventType)
	assert.Equal(t, AggregateType, eventStore.AppendCalls[0].AggregateType)
	assert.Equal(t, 0, eventStore.AppendCalls[0].ExpectedVersion)
}

func TestService_Create_EmptyItems(t *testing.T) {
	service, eventStore := newTestOrderService()
	ctx := context.Background()

	order, err := service.Create(ctx, CreateParams{BuyerID: "buyer-1", SellerID: "seller-1"})

	assert.ErrorIs(t, err, ErrEmptyOrder)
	assert.Nil(t, order)
	assert.Empty(t, eventStore.AppendCalls)
}

func TestService_Create_InvalidLineItem(t *testing.T) {
	service, _ := newTestOrderService()
	ctx := context.Background()

	tests := []struct {
		name string
		item LineItem
	}{
		{"zero quantity", LineItem{DishID: "dish-1", Quantity: 0, Price: 100}},
		{"negative quantity", LineItem{DishID: "dish-1", Quantity: -1, Price: 100}},
		{"negative price", LineItem{DishID: "dish-1", Quantity: 1, Price: -100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := service.Create(ctx, CreateParams{
				BuyerID:  "buyer-1",
				SellerID: "seller-1",
				Items:    []LineItem{tt.item},
			})
			assert.ErrorIs(t, err, ErrInvalidLineItem)
			assert.Nil(t, order)
		})
	}
}

func TestService_Create_PublishFailureDoesNotFail(t *testing.T) {
	service, eventStore := newTestOrderService()
	ctx := context.Background()

	eventStore.AppendCallback = func(ctx context.Context, aggregateID, aggregateType, eventType string, data any, expectedVersion int) (*store.Event, error) {
		jsonData, _ := json.Marshal(data)
		event := store.Event{AggregateID: aggregateID, EventType: eventType, Data: jsonData, Version: 1}
		return &event, errors.Join(store.ErrPublishFailed, errors.New("broker unavailable"))
	}

	order, err := service.Create(ctx, CreateParams{
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Items:    []LineItem{{DishID: "dish-1", Quantity: 1, Price: 500}},
	})

	require.NoError(t, err)
	assert.Equal(t, StatusPending, order.Status)
}

func TestService_Create_EventStoreError(t *testing.T) {
	service, eventStore := newTestOrderService()
	ctx := context.Background()

	eventStore.AppendErr = errors.New("database error")

	order, err := service.Create(ctx, CreateParams{
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Items:    []LineItem{{DishID: "dish-1", Quantity: 1, Price: 500}},
	})

	assert.Error(t, err)
	assert.Nil(t, order)
}

// ============================================
// Status Parsing
// ============================================

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "confirmed", "preparing", "ready", "on_the_way", "completed", "cancelled"} {
		status, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, Status(s), status)
	}
}

func TestParseStatus_Unknown(t *testing.T) {
	for _, s := range []string{"", "shipped", "PENDING", "in_transit", "delivered"} {
		_, err := ParseStatus(s)
		assert.ErrorIs(t, err, ErrUnknownStatus, "status %q", s)
	}
}

// ============================================
// Transition Matrix Tests
// ============================================

func TestService_Transition_Matrix(t *testing.T) {
	all := []Status{StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusOnTheWay, StatusCompleted, StatusCancelled}

	allowed := map[Status]map[Status]bool{
		StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
		StatusConfirmed: {StatusPreparing: true, StatusCancelled: true},
		StatusPreparing: {StatusReady: true, StatusOnTheWay: true, StatusCancelled: true},
		StatusReady:     {StatusOnTheWay: true, StatusCancelled: true},
		StatusOnTheWay:  {StatusCompleted: true, StatusCancelled: true},
		StatusCompleted: {},
		StatusCancelled: {},
	}

	for _, from := range all {
		for _, to := range all {
			t.Run(string(from)+"_to_"+string(to), func(t *testing.T) {
				service, eventStore := newTestOrderService()
				orderID := "order-" + string(from) + "-" + string(to)
				seedOrder(eventStore, orderID, from)

				_, err := service.Transition(context.Background(), orderID, to, admin, "")

				if allowed[from][to] {
					require.NoError(t, err)
				} else {
					require.Error(t, err)
					switch from {
					case StatusCompleted:
						assert.ErrorIs(t, err, ErrOrderCompleted)
					case StatusCancelled:
						assert.ErrorIs(t, err, ErrOrderCancelled)
					default:
						assert.ErrorIs(t, err, ErrIllegalTransition)
					}
				}
			})
		}
	}
}

func TestService_Transition_OrderNotFound(t *testing.T) {
	service, _ := newTestOrderService()

	_, err := service.Transition(context.Background(), "missing-order", StatusConfirmed, admin, "")

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestService_Transition_RecordsActorAndReason(t *testing.T) {
	service, eventStore := newTestOrderService()
	orderID := "order-123"
	seedOrder(eventStore, orderID, StatusPending)

	order, err := service.Transition(context.Background(), orderID, StatusConfirmed, seller("seller-1"), "accepted by kitchen")

	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, order.Status)

	require.Len(t, eventStore.AppendCalls, 1)
	data := eventStore.AppendCalls[0].Data.(OrderStatusChanged)
	assert.Equal(t, StatusPending, data.PreviousStatus)
	assert.Equal(t, StatusConfirmed, data.NewStatus)
	assert.Equal(t, "seller-1", data.ActorID)
	assert.Equal(t, "accepted by kitchen", data.Reason)
}

// ============================================
// Authorization Tests
// ============================================

func TestService_Transition_BuyerCannotMoveForward(t *testing.T) {
	service, eventStore := newTestOrderService()
	orderID := "order-123"
	seedOrder(eventStore, orderID, StatusPending)

	_, err := service.Transition(context.Background(), orderID, StatusConfirmed, buyer("buyer-1"), "")

	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestService_Transition_OtherSellerDenied(t *testing.T) {
	service, eventStore := newTestOrderService()
	orderID := "order-123"
	seedOrder(eventStore, orderID, StatusPending)

	_, err := service.Transition(context.Background(), orderID, StatusConfirmed, seller("seller-2"), "")

	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestService_Cancel_ByBuyer(t *testing.T) {
	service, eventStore := newTestOrderService()
	orderID := "order-123"
	seedOrder(eventStore, orderID, StatusConfirmed)

	order, err := service.Cancel(context.Background(), orderID, buyer("buyer-1"), "changed my mind")

	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, order.Status)
}

func TestService_Cancel_BySeller(t *testing.T) {
	service, eventStore := newTestOrderService()
	orderID := "order-123"
	seedOrder(eventStore, orderID, StatusPreparing)

	order, err := service.Cancel(context.Background(), orderID, seller("seller-1"), "out of ingredients")

	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, order.Status)
}

func TestService_Cancel_StrangerDenied(t *testing.T) {
	service, eventStore := newTestOrderService()
	orderID := "order-123"
	seedOrder(eventStore, orderID, StatusPending)

	_, err := service.Cancel(context.Background(), orderID, buyer("buyer-99"), "")

	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestService_Cancel_CompletedOrder(t *testing.T) {
	service, eventStore := newTestOrderService()
	orderID := "order-123"
	seedOrder(eventStore, orderID, StatusCompleted)

	_, err := service.Cancel(context.Background(), orderID, admin, "")

	assert.ErrorIs(t, err, ErrOrderCompleted)
}

// ============================================
// Concurrency Tests
// ============================================

func TestService_Transition_VersionConflict(t *testing.T) {
	service, eventStore := newTestOrderService()
	orderID := "order-123"
	seedOrder(eventStore, orderID, StatusPending)

	// A concurrent writer bumps the stream between load and append.
	eventStore.AppendCallback = func(ctx context.Context, aggregateID, aggregateType, eventType string, data any, expectedVersion int) (*store.Event, error) {
		return nil, store.ErrVersionConflict
	}

	_, err := service.Transition(context.Background(), orderID, StatusConfirmed, admin, "")

	assert.ErrorIs(t, err, store.ErrVersionConflict)
}

func TestService_Transition_AppendCarriesCurrentVersion(t *testing.T) {
	service, eventStore := newTestOrderService()
	orderID := "order-123"
	seedOrder(eventStore, orderID, StatusConfirmed) // created + 1 transition = version 2

	_, err := service.Transition(context.Background(), orderID, StatusPreparing, admin, "")

	require.NoError(t, err)
	require.Len(t, eventStore.AppendCalls, 1)
	assert.Equal(t, 2, eventStore.AppendCalls[0].ExpectedVersion)
}

// ============================================
// Lifecycle Tests
// ============================================

func TestOrderLifecycle_HappyPath(t *testing.T) {
	service, _ := newTestOrderService()
	ctx := context.Background()

	order, err := service.Create(ctx, CreateParams{
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Items:    []LineItem{{DishID: "dish-1", Name: "Ramen", Quantity: 1, Price: 1500}},
	})
	require.NoError(t, err)

	for _, next := range []Status{StatusConfirmed, StatusPreparing, StatusReady, StatusOnTheWay, StatusCompleted} {
		order, err = service.Transition(ctx, order.ID, next, seller("seller-1"), "")
		require.NoError(t, err)
		assert.Equal(t, next, order.Status)
	}

	// Terminal: no further mutation sticks
	_, err = service.Transition(ctx, order.ID, StatusCancelled, admin, "")
	assert.ErrorIs(t, err, ErrOrderCompleted)

	got, err := service.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestOrderLifecycle_SkipReady(t *testing.T) {
	service, _ := newTestOrderService()
	ctx := context.Background()

	order, err := service.Create(ctx, CreateParams{
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Items:    []LineItem{{DishID: "dish-1", Quantity: 1, Price: 900}},
	})
	require.NoError(t, err)

	// preparing -> on_the_way without passing through ready
	for _, next := range []Status{StatusConfirmed, StatusPreparing, StatusOnTheWay, StatusCompleted} {
		order, err = service.Transition(ctx, order.ID, next, seller("seller-1"), "")
		require.NoError(t, err)
	}
	assert.Equal(t, StatusCompleted, order.Status)
}

// ============================================
// Snapshot Tests
// ============================================

func TestService_SnapshotCreatedAtThreshold(t *testing.T) {
	service, eventStore := newTestOrderService()
	ctx := context.Background()

	orderID := "snapshot-order"

	// Nine events on the stream; the tenth append crosses the threshold.
	events := make([]store.Event, 9)
	events[0] = store.Event{
		Version:   1,
		EventType: EventOrderCreated,
		Data: mustMarshal(OrderCreated{
			OrderID:  orderID,
			BuyerID:  "buyer-1",
			SellerID: "seller-1",
			Items:    []LineItem{{DishID: "dish-1", Quantity: 1, Price: 100}},
			Total:    100,
		}),
	}
	statuses := []Status{StatusConfirmed, StatusPreparing, StatusReady, StatusOnTheWay}
	prev := StatusPending
	for i := 1; i < 9; i++ {
		next := statuses[(i-1)%len(statuses)]
		events[i] = store.Event{
			Version:   i + 1,
			EventType: EventOrderStatusChanged,
			Data:      mustMarshal(OrderStatusChanged{OrderID: orderID, PreviousStatus: prev, NewStatus: next}),
		}
		prev = next
	}
	eventStore.SetEvents(orderID, events)

	_, err := service.Transition(ctx, orderID, StatusCompleted, admin, "")
	require.NoError(t, err)

	require.Len(t, eventStore.SaveSnapshotCalls, 1)
	assert.Equal(t, orderID, eventStore.SaveSnapshotCalls[0].Snapshot.AggregateID)
	assert.Equal(t, 10, eventStore.SaveSnapshotCalls[0].Snapshot.Version)
}

func TestService_LoadFromSnapshot(t *testing.T) {
	service, eventStore := newTestOrderService()
	ctx := context.Background()

	orderID := "order-with-snapshot"

	state := Order{
		ID:       orderID,
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Items:    []LineItem{{DishID: "dish-1", Quantity: 2, Price: 1000}},
		Total:    2000,
		Status:   StatusPreparing,
	}
	stateJSON, _ := json.Marshal(state)
	eventStore.SetSnapshot(&store.Snapshot{
		AggregateID:   orderID,
		AggregateType: AggregateType,
		Version:       10,
		State:         stateJSON,
	})
	eventStore.SetEvents(orderID, []store.Event{
		{Version: 11, EventType: EventOrderStatusChanged, Data: mustMarshal(OrderStatusChanged{
			OrderID: orderID, PreviousStatus: StatusPreparing, NewStatus: StatusOnTheWay,
		})},
	})

	got, err := service.Get(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, StatusOnTheWay, got.Status)
	assert.Equal(t, 11, got.Version)
}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
