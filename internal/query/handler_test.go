package query

import (
	"testing"
	"time"

	"github.com/example/chefmarket/internal/infrastructure/store/mocks"
	"github.com/example/chefmarket/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueryHandler() (*Handler, *mocks.MockReadStore) {
	readStore := mocks.NewMockReadStore()
	handler := NewHandler(readStore)
	return handler, readStore
}

// ============================================
// Order Query Tests
// ============================================

func TestHandler_GetOrder_Found(t *testing.T) {
	handler, readStore := newTestQueryHandler()

	expected := &readmodel.OrderReadModel{
		ID:       "order-123",
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Status:   "pending",
		Total:    2400,
	}
	_ = readStore.Set(readmodel.CollectionOrders, "order-123", expected)

	order, found := handler.GetOrder("order-123")

	assert.True(t, found)
	assert.Equal(t, expected.ID, order.ID)
	assert.Equal(t, expected.Total, order.Total)
}

func TestHandler_GetOrder_NotFound(t *testing.T) {
	handler, _ := newTestQueryHandler()

	order, found := handler.GetOrder("non-existent")

	assert.False(t, found)
	assert.Nil(t, order)
}

func TestHandler_ListOrdersByBuyer(t *testing.T) {
	handler, readStore := newTestQueryHandler()

	_ = readStore.Set(readmodel.CollectionOrders, "order-1", &readmodel.OrderReadModel{ID: "order-1", BuyerID: "buyer-1"})
	_ = readStore.Set(readmodel.CollectionOrders, "order-2", &readmodel.OrderReadModel{ID: "order-2", BuyerID: "buyer-2"})
	_ = readStore.Set(readmodel.CollectionOrders, "order-3", &readmodel.OrderReadModel{ID: "order-3", BuyerID: "buyer-1"})

	orders := handler.ListOrdersByBuyer("buyer-1")

	assert.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, "buyer-1", o.BuyerID)
	}
}

func TestHandler_ListOrdersBySeller_NewestFirst(t *testing.T) {
	handler, readStore := newTestQueryHandler()

	base := time.Now()
	_ = readStore.Set(readmodel.CollectionOrders, "order-old", &readmodel.OrderReadModel{
		ID: "order-old", SellerID: "seller-1", CreatedAt: base.Add(-time.Hour),
	})
	_ = readStore.Set(readmodel.CollectionOrders, "order-new", &readmodel.OrderReadModel{
		ID: "order-new", SellerID: "seller-1", CreatedAt: base,
	})

	orders := handler.ListOrdersBySeller("seller-1")

	require.Len(t, orders, 2)
	assert.Equal(t, "order-new", orders[0].ID)
	assert.Equal(t, "order-old", orders[1].ID)
}

func TestHandler_ListAllOrders(t *testing.T) {
	handler, readStore := newTestQueryHandler()

	_ = readStore.Set(readmodel.CollectionOrders, "order-1", &readmodel.OrderReadModel{ID: "order-1"})
	_ = readStore.Set(readmodel.CollectionOrders, "order-2", &readmodel.OrderReadModel{ID: "order-2"})

	assert.Len(t, handler.ListAllOrders(), 2)
}

// ============================================
// Group Order Query Tests
// ============================================

func TestHandler_GetGroupOrder(t *testing.T) {
	handler, readStore := newTestQueryHandler()

	_ = readStore.Set(readmodel.CollectionGroupOrders, "group-1", &readmodel.GroupOrderReadModel{
		ID: "group-1", Title: "Team lunch", ShareToken: "tok-abc",
	})

	g, found := handler.GetGroupOrder("group-1")
	assert.True(t, found)
	assert.Equal(t, "Team lunch", g.Title)

	_, found = handler.GetGroupOrder("missing")
	assert.False(t, found)
}

func TestHandler_GetGroupOrderByToken(t *testing.T) {
	handler, readStore := newTestQueryHandler()

	_ = readStore.Set(readmodel.CollectionGroupOrders, "group-1", &readmodel.GroupOrderReadModel{
		ID: "group-1", ShareToken: "tok-abc",
	})

	g, found := handler.GetGroupOrderByToken("tok-abc")
	assert.True(t, found)
	assert.Equal(t, "group-1", g.ID)

	_, found = handler.GetGroupOrderByToken("wrong")
	assert.False(t, found)

	_, found = handler.GetGroupOrderByToken("")
	assert.False(t, found)
}

// ============================================
// Progress Query Tests
// ============================================

func TestHandler_GetProgress(t *testing.T) {
	handler, readStore := newTestQueryHandler()

	_ = readStore.Set(readmodel.CollectionProgress, "actor-1:course-1:mod-1", &readmodel.ProgressReadModel{
		ActorID: "actor-1", CourseID: "course-1", ModuleID: "mod-1", VideoIndex: 3,
	})

	record, found := handler.GetProgress("actor-1", "course-1", "mod-1")
	assert.True(t, found)
	assert.Equal(t, 3, record.VideoIndex)

	_, found = handler.GetProgress("actor-1", "course-1", "mod-2")
	assert.False(t, found)
}

func TestHandler_ListCourseProgress_OrderedByModule(t *testing.T) {
	handler, readStore := newTestQueryHandler()

	_ = readStore.Set(readmodel.CollectionProgress, "actor-1:course-1:mod-2", &readmodel.ProgressReadModel{
		ActorID: "actor-1", CourseID: "course-1", ModuleID: "mod-2", ModuleNumber: 2,
	})
	_ = readStore.Set(readmodel.CollectionProgress, "actor-1:course-1:mod-1", &readmodel.ProgressReadModel{
		ActorID: "actor-1", CourseID: "course-1", ModuleID: "mod-1", ModuleNumber: 1,
	})
	_ = readStore.Set(readmodel.CollectionProgress, "actor-2:course-1:mod-1", &readmodel.ProgressReadModel{
		ActorID: "actor-2", CourseID: "course-1", ModuleID: "mod-1", ModuleNumber: 1,
	})

	records := handler.ListCourseProgress("actor-1", "course-1")

	require.Len(t, records, 2)
	assert.Equal(t, "mod-1", records[0].ModuleID)
	assert.Equal(t, "mod-2", records[1].ModuleID)
}

// ============================================
// Course Query Tests
// ============================================

func TestHandler_ListCourses_SortedByTitle(t *testing.T) {
	handler, readStore := newTestQueryHandler()

	_ = readStore.Set(readmodel.CollectionCourses, "course-2", &readmodel.CourseReadModel{ID: "course-2", Title: "Sushi Basics"})
	_ = readStore.Set(readmodel.CollectionCourses, "course-1", &readmodel.CourseReadModel{ID: "course-1", Title: "Knife Skills"})

	courses := handler.ListCourses()

	require.Len(t, courses, 2)
	assert.Equal(t, "Knife Skills", courses[0].Title)
	assert.Equal(t, "Sushi Basics", courses[1].Title)
}

// ============================================
// Actor Query Tests
// ============================================

func TestHandler_GetActorByEmail(t *testing.T) {
	handler, readStore := newTestQueryHandler()

	_ = readStore.Set(readmodel.CollectionActors, "actor-1", &readmodel.ActorReadModel{
		ID: "actor-1", Email: "chef@example.com", Role: "seller",
	})

	a, found := handler.GetActorByEmail("chef@example.com")
	assert.True(t, found)
	assert.Equal(t, "actor-1", a.ID)

	_, found = handler.GetActorByEmail("nobody@example.com")
	assert.False(t, found)
}
