package query

import (
	"log"
	"sort"

	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/example/chefmarket/internal/readmodel"
)

type Handler struct {
	readStore store.ReadStoreInterface
}

func NewHandler(readStore store.ReadStoreInterface) *Handler {
	return &Handler{readStore: readStore}
}

// Orders

func (h *Handler) GetOrder(id string) (*readmodel.OrderReadModel, bool) {
	data, ok, err := h.readStore.Get(readmodel.CollectionOrders, id)
	if err != nil {
		log.Printf("[Query] Error getting order %s: %v", id, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return data.(*readmodel.OrderReadModel), true
}

func (h *Handler) listOrders(match func(*readmodel.OrderReadModel) bool) []*readmodel.OrderReadModel {
	items, err := h.readStore.GetAll(readmodel.CollectionOrders)
	if err != nil {
		log.Printf("[Query] Error listing orders: %v", err)
		return nil
	}
	orders := make([]*readmodel.OrderReadModel, 0)
	for _, item := range items {
		o := item.(*readmodel.OrderReadModel)
		if match(o) {
			orders = append(orders, o)
		}
	}
	// Newest first; read store iteration order is not stable
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}

func (h *Handler) ListOrdersByBuyer(buyerID string) []*readmodel.OrderReadModel {
	return h.listOrders(func(o *readmodel.OrderReadModel) bool { return o.BuyerID == buyerID })
}

func (h *Handler) ListOrdersBySeller(sellerID string) []*readmodel.OrderReadModel {
	return h.listOrders(func(o *readmodel.OrderReadModel) bool { return o.SellerID == sellerID })
}

// ListAllOrders returns all orders (for admin use)
func (h *Handler) ListAllOrders() []*readmodel.OrderReadModel {
	return h.listOrders(func(*readmodel.OrderReadModel) bool { return true })
}

// Group orders

func (h *Handler) GetGroupOrder(id string) (*readmodel.GroupOrderReadModel, bool) {
	data, ok, err := h.readStore.Get(readmodel.CollectionGroupOrders, id)
	if err != nil {
		log.Printf("[Query] Error getting group order %s: %v", id, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return data.(*readmodel.GroupOrderReadModel), true
}

// GetGroupOrderByToken resolves a share link to its group order
func (h *Handler) GetGroupOrderByToken(token string) (*readmodel.GroupOrderReadModel, bool) {
	if token == "" {
		return nil, false
	}
	items, err := h.readStore.GetAll(readmodel.CollectionGroupOrders)
	if err != nil {
		log.Printf("[Query] Error listing group orders: %v", err)
		return nil, false
	}
	for _, item := range items {
		g := item.(*readmodel.GroupOrderReadModel)
		if g.ShareToken == token {
			return g, true
		}
	}
	return nil, false
}

// Progress

func (h *Handler) GetProgress(actorID, courseID, moduleID string) (*readmodel.ProgressReadModel, bool) {
	key := actorID + ":" + courseID + ":" + moduleID
	data, ok, err := h.readStore.Get(readmodel.CollectionProgress, key)
	if err != nil {
		log.Printf("[Query] Error getting progress %s: %v", key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return data.(*readmodel.ProgressReadModel), true
}

// ListCourseProgress returns one actor's records for a course, ordered by
// module number
func (h *Handler) ListCourseProgress(actorID, courseID string) []*readmodel.ProgressReadModel {
	items, err := h.readStore.GetAll(readmodel.CollectionProgress)
	if err != nil {
		log.Printf("[Query] Error listing progress: %v", err)
		return nil
	}
	records := make([]*readmodel.ProgressReadModel, 0)
	for _, item := range items {
		r := item.(*readmodel.ProgressReadModel)
		if r.ActorID == actorID && r.CourseID == courseID {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ModuleNumber < records[j].ModuleNumber
	})
	return records
}

// Courses

func (h *Handler) ListCourses() []*readmodel.CourseReadModel {
	items, err := h.readStore.GetAll(readmodel.CollectionCourses)
	if err != nil {
		log.Printf("[Query] Error listing courses: %v", err)
		return nil
	}
	courses := make([]*readmodel.CourseReadModel, 0)
	for _, item := range items {
		courses = append(courses, item.(*readmodel.CourseReadModel))
	}
	sort.Slice(courses, func(i, j int) bool {
		return courses[i].Title < courses[j].Title
	})
	return courses
}

func (h *Handler) GetCourse(id string) (*readmodel.CourseReadModel, bool) {
	data, ok, err := h.readStore.Get(readmodel.CollectionCourses, id)
	if err != nil {
		log.Printf("[Query] Error getting course %s: %v", id, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return data.(*readmodel.CourseReadModel), true
}

// Actors

func (h *Handler) GetActor(id string) (*readmodel.ActorReadModel, bool) {
	data, ok, err := h.readStore.Get(readmodel.CollectionActors, id)
	if err != nil {
		log.Printf("[Query] Error getting actor %s: %v", id, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return data.(*readmodel.ActorReadModel), true
}

func (h *Handler) GetActorByEmail(email string) (*readmodel.ActorReadModel, bool) {
	items, err := h.readStore.GetAll(readmodel.CollectionActors)
	if err != nil {
		log.Printf("[Query] Error listing actors: %v", err)
		return nil, false
	}
	for _, item := range items {
		a := item.(*readmodel.ActorReadModel)
		if a.Email == email {
			return a, true
		}
	}
	return nil, false
}
