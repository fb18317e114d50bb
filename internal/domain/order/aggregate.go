package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/chefmarket/internal/domain/aggregate"
	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/google/uuid"
)

const AggregateType = "Order"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusOnTheWay  Status = "on_the_way"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrEmptyOrder         = errors.New("order must have at least one item")
	ErrInvalidLineItem    = errors.New("line item must have positive price and quantity")
	ErrUnknownStatus      = errors.New("unknown order status")
	ErrIllegalTransition  = errors.New("illegal order status transition")
	ErrOrderCompleted     = errors.New("order is already completed")
	ErrOrderCancelled     = errors.New("order is already cancelled")
	ErrNotAuthorized      = errors.New("actor is not authorized for this transition")
	ErrSellerNotAccepting = errors.New("seller is not accepting orders")
)

// validTransitions defines allowed state transitions. Unknown statuses are
// rejected outright; they are never coerced to a default.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusOnTheWay, StatusCancelled},
	StatusReady:     {StatusOnTheWay, StatusCancelled},
	StatusOnTheWay:  {StatusCompleted, StatusCancelled},
	StatusCompleted: {}, // terminal state
	StatusCancelled: {}, // terminal state
}

// ParseStatus validates a status string from an untrusted caller
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validTransitions[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return status, nil
}

// IsTerminal reports whether a status has no outgoing transitions
func (s Status) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// transitionError returns an appropriate error for an invalid transition
func (o *Order) transitionError(target Status) error {
	switch o.Status {
	case StatusCompleted:
		return ErrOrderCompleted
	case StatusCancelled:
		return ErrOrderCancelled
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrIllegalTransition, o.Status, target)
	}
}

// Actor identifies who is requesting a mutation. The id is an opaque,
// pre-authenticated identity; the role comes from the same credential.
type Actor struct {
	ID   string
	Role string // "buyer", "seller" or "admin"
}

// authorizeTransition enforces who may drive a transition: sellers (their
// own orders) and admins move orders forward; cancellation is additionally
// open to the order's buyer while the order is non-terminal.
func (o *Order) authorizeTransition(target Status, actor Actor) error {
	if actor.Role == "admin" {
		return nil
	}
	if target == StatusCancelled {
		if actor.ID == o.SellerID || actor.ID == o.BuyerID {
			return nil
		}
		return fmt.Errorf("%w: only the buyer, seller or an admin may cancel", ErrNotAuthorized)
	}
	if actor.ID == o.SellerID {
		return nil
	}
	return fmt.Errorf("%w: only the seller or an admin may move an order to %s", ErrNotAuthorized, target)
}

type Order struct {
	ID                   string           `json:"id"`
	BuyerID              string           `json:"buyer_id"`
	SellerID             string           `json:"seller_id"`
	Items                []LineItem       `json:"items"`
	Total                int              `json:"total"`
	Status               Status           `json:"status"`
	GroupOrderID         string           `json:"group_order_id,omitempty"`
	DeliveryAddress      *DeliveryAddress `json:"delivery_address,omitempty"`
	EstimatedPrepMinutes int              `json:"estimated_prep_minutes,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
	Version              int              `json:"version"` // Current event version
}

// Aggregate interface implementation
func (o *Order) GetID() string    { return o.ID }
func (o *Order) GetVersion() int  { return o.Version }
func (o *Order) SetVersion(v int) { o.Version = v }

// ApplyEvent applies a single event to the order state (implements aggregate.Aggregate)
func (o *Order) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventOrderCreated:
		var data OrderCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.ID = data.OrderID
		o.BuyerID = data.BuyerID
		o.SellerID = data.SellerID
		o.Items = data.Items
		o.Total = data.Total
		o.GroupOrderID = data.GroupOrderID
		o.DeliveryAddress = data.DeliveryAddress
		o.EstimatedPrepMinutes = data.EstimatedPrepMinutes
		o.Status = StatusPending
		o.CreatedAt = data.CreatedAt
		o.UpdatedAt = data.CreatedAt
	case EventOrderStatusChanged:
		var data OrderStatusChanged
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = data.NewStatus
		o.UpdatedAt = data.ChangedAt
	}
	o.Version = event.Version
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

// loadOrder loads an order by replaying events, using snapshot if available
func (s *Service) loadOrder(ctx context.Context, orderID string) (*Order, error) {
	order, found, err := aggregate.LoadAggregate(ctx, s.eventStore, orderID, func() *Order {
		return &Order{}
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// Get returns the current state of an order
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.loadOrder(ctx, orderID)
}

// CreateParams carries the checkout payload for a new order
type CreateParams struct {
	BuyerID              string
	SellerID             string
	Items                []LineItem
	GroupOrderID         string
	DeliveryAddress      *DeliveryAddress
	EstimatedPrepMinutes int
}

// Create validates a checkout and emits OrderCreated. The total is always
// computed from the line items, never trusted from the caller.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Order, error) {
	if len(p.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	var total int
	for _, item := range p.Items {
		if item.Price < 0 || item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidLineItem, item.DishID)
		}
		total += item.Price * item.Quantity
	}

	orderID := uuid.New().String()
	now := time.Now()

	event := OrderCreated{
		OrderID:              orderID,
		BuyerID:              p.BuyerID,
		SellerID:             p.SellerID,
		Items:                p.Items,
		Total:                total,
		GroupOrderID:         p.GroupOrderID,
		DeliveryAddress:      p.DeliveryAddress,
		EstimatedPrepMinutes: p.EstimatedPrepMinutes,
		CreatedAt:            now,
	}

	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, EventOrderCreated, event, 0)
	if err != nil {
		// A failed publish does not undo the committed append; subscribers
		// reconcile on their next query.
		if !errors.Is(err, store.ErrPublishFailed) {
			return nil, err
		}
		log.Printf("[Order] Event stored but publish failed for order %s: %v", orderID, err)
	}

	order := &Order{
		ID:                   orderID,
		BuyerID:              p.BuyerID,
		SellerID:             p.SellerID,
		Items:                p.Items,
		Total:                total,
		GroupOrderID:         p.GroupOrderID,
		DeliveryAddress:      p.DeliveryAddress,
		EstimatedPrepMinutes: p.EstimatedPrepMinutes,
		Status:               StatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
		Version:              storedEvent.Version,
	}

	return order, nil
}

// Transition applies one status transition. Legality is checked against the
// transition table, authorization against the actor, and the append carries
// the order's current version so a concurrent writer surfaces as
// store.ErrVersionConflict rather than a lost update.
func (s *Service) Transition(ctx context.Context, orderID string, target Status, actor Actor, reason string) (*Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.CanTransitionTo(target) {
		return nil, order.transitionError(target)
	}
	if err := order.authorizeTransition(target, actor); err != nil {
		return nil, err
	}

	event := OrderStatusChanged{
		OrderID:        orderID,
		PreviousStatus: order.Status,
		NewStatus:      target,
		ActorID:        actor.ID,
		Reason:         reason,
		ChangedAt:      time.Now(),
	}

	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, EventOrderStatusChanged, event, order.Version)
	if err != nil {
		if !errors.Is(err, store.ErrPublishFailed) {
			return nil, err
		}
		log.Printf("[Order] Event stored but publish failed for order %s: %v", orderID, err)
	}

	order.Status = target
	order.UpdatedAt = event.ChangedAt
	order.Version = storedEvent.Version

	if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, order, AggregateType); err != nil {
		log.Printf("[Order] Failed to create snapshot for order %s: %v", order.ID, err)
	}

	return order, nil
}

// Cancel requests the cancelled status on behalf of an actor
func (s *Service) Cancel(ctx context.Context, orderID string, actor Actor, reason string) (*Order, error) {
	return s.Transition(ctx, orderID, StatusCancelled, actor, reason)
}
