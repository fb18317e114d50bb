package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/chefmarket/internal/domain/grouporder"
	"github.com/example/chefmarket/internal/domain/order"
	"github.com/example/chefmarket/internal/email"
	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/example/chefmarket/internal/progress"
	"github.com/example/chefmarket/internal/readmodel"
)

// Handler turns domain events into push notifications and emails. It runs
// inside the notifier daemon, fed by the Kafka consumer; Kafka keys events
// by aggregate id, so one entity's events arrive here in order.
type Handler struct {
	hub          *Hub
	emailService *email.Service
	readStore    store.ReadStoreInterface
}

// NewHandler creates a new notification handler. emailSvc may be nil when
// email delivery is disabled.
func NewHandler(hub *Hub, emailSvc *email.Service, readStore store.ReadStoreInterface) *Handler {
	return &Handler{
		hub:          hub,
		emailService: emailSvc,
		readStore:    readStore,
	}
}

// HandleEvent processes one event from Kafka. Errors are returned only for
// malformed payloads; a failed email or missing read model is logged and
// skipped so the consumer keeps draining the partition.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	switch event.EventType {
	case order.EventOrderCreated:
		return h.handleOrderCreated(event)
	case order.EventOrderStatusChanged:
		return h.handleOrderStatusChanged(event)
	case progress.EventProgressUpdated:
		return h.handleProgressUpdated(event)
	case grouporder.EventParticipantJoined,
		grouporder.EventBudgetContributed,
		grouporder.EventGroupOrderClosed:
		return h.handleGroupOrderEvent(event)
	}

	return nil
}

// push fans one notification out to several topics
func (h *Handler) push(notificationType string, payload json.RawMessage, topics ...string) {
	n := Notification{
		Type:     notificationType,
		EntityID: topics[0],
		Payload:  payload,
	}
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		h.hub.Publish(topic, n)
	}
}

func (h *Handler) buyerEmail(buyerID string) string {
	raw, exists, err := h.readStore.Get(readmodel.CollectionActors, buyerID)
	if err != nil || !exists {
		log.Printf("[Notifier] Actor not found: %s", buyerID)
		return ""
	}
	actor, ok := raw.(*readmodel.ActorReadModel)
	if !ok {
		log.Printf("[Notifier] Invalid actor data type for: %s", buyerID)
		return ""
	}
	return actor.Email
}

func (h *Handler) handleOrderCreated(event store.Event) error {
	var e order.OrderCreated
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal OrderCreated event: %v", err)
		return err
	}

	h.push(TypeOrderStatus, event.Data, e.OrderID, e.BuyerID, e.SellerID)

	if h.emailService == nil {
		return nil
	}
	to := h.buyerEmail(e.BuyerID)
	if to == "" {
		return nil
	}

	emailItems := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		emailItems[i] = email.OrderItem{
			DishID:   item.DishID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		}
	}

	if err := h.emailService.SendOrderConfirmation(to, e.OrderID, e.Total, emailItems); err != nil {
		log.Printf("[Notifier] Failed to send confirmation email to %s: %v", to, err)
		return nil
	}

	log.Printf("[Notifier] Order confirmation email sent to %s for order %s", to, e.OrderID)
	return nil
}

func (h *Handler) handleOrderStatusChanged(event store.Event) error {
	var e order.OrderStatusChanged
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal OrderStatusChanged event: %v", err)
		return err
	}

	// Buyer and seller come from the read model; the transition event
	// itself only carries the acting party.
	var buyerID, sellerID string
	if raw, exists, _ := h.readStore.Get(readmodel.CollectionOrders, e.OrderID); exists {
		if o, ok := raw.(*readmodel.OrderReadModel); ok {
			buyerID = o.BuyerID
			sellerID = o.SellerID
		}
	}

	h.push(TypeOrderStatus, event.Data, e.OrderID, buyerID, sellerID)

	if h.emailService == nil || buyerID == "" {
		return nil
	}
	to := h.buyerEmail(buyerID)
	if to == "" {
		return nil
	}

	if err := h.emailService.SendOrderStatusUpdate(to, e.OrderID, string(e.NewStatus)); err != nil {
		log.Printf("[Notifier] Failed to send status email to %s: %v", to, err)
	}
	return nil
}

func (h *Handler) handleProgressUpdated(event store.Event) error {
	var e progress.ProgressUpdated
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal ProgressUpdated event: %v", err)
		return err
	}

	h.push(TypeProgress, event.Data, e.ActorID)
	return nil
}

func (h *Handler) handleGroupOrderEvent(event store.Event) error {
	// Everyone watching the group order (creator included) subscribes by
	// its id; the payload carries the event as-is.
	groupOrderID := event.AggregateID

	topics := []string{groupOrderID}
	if raw, exists, _ := h.readStore.Get(readmodel.CollectionGroupOrders, groupOrderID); exists {
		if g, ok := raw.(*readmodel.GroupOrderReadModel); ok {
			topics = append(topics, g.CreatorID)
		}
	}

	h.push(TypeGroupOrder, event.Data, topics...)
	return nil
}
