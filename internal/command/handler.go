package command

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/example/chefmarket/internal/domain/grouporder"
	"github.com/example/chefmarket/internal/domain/order"
	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/example/chefmarket/internal/metrics"
	"github.com/example/chefmarket/internal/progress"
	"github.com/example/chefmarket/internal/readmodel"
)

// conflictRetries bounds how often a transition is replayed against a fresh
// aggregate after a concurrent writer won the append.
const conflictRetries = 3

type Handler struct {
	orderSvc  *order.Service
	groupSvc  *grouporder.Service
	tracker   *progress.Tracker
	readStore store.ReadStoreInterface
}

func NewHandler(
	orderSvc *order.Service,
	groupSvc *grouporder.Service,
	tracker *progress.Tracker,
	readStore store.ReadStoreInterface,
) *Handler {
	return &Handler{
		orderSvc:  orderSvc,
		groupSvc:  groupSvc,
		tracker:   tracker,
		readStore: readStore,
	}
}

// CreateOrder validates the seller is open for business and places the order
func (h *Handler) CreateOrder(ctx context.Context, cmd CreateOrder) (*order.Order, error) {
	if raw, ok, err := h.readStore.Get(readmodel.CollectionActors, cmd.SellerID); err == nil && ok {
		if seller, isActor := raw.(*readmodel.ActorReadModel); isActor {
			if !seller.IsActive || !seller.AcceptingOrders {
				return nil, order.ErrSellerNotAccepting
			}
		}
	}

	items := make([]order.LineItem, len(cmd.Items))
	for i, item := range cmd.Items {
		items[i] = order.LineItem{
			DishID:              item.DishID,
			Name:                item.Name,
			Quantity:            item.Quantity,
			Price:               item.Price,
			SpecialInstructions: item.SpecialInstructions,
		}
	}

	var addr *order.DeliveryAddress
	if cmd.DeliveryAddress != nil {
		addr = &order.DeliveryAddress{
			Street:   cmd.DeliveryAddress.Street,
			City:     cmd.DeliveryAddress.City,
			Postcode: cmd.DeliveryAddress.Postcode,
			Country:  cmd.DeliveryAddress.Country,
		}
	}

	o, err := h.orderSvc.Create(ctx, order.CreateParams{
		BuyerID:              cmd.BuyerID,
		SellerID:             cmd.SellerID,
		Items:                items,
		GroupOrderID:         cmd.GroupOrderID,
		DeliveryAddress:      addr,
		EstimatedPrepMinutes: cmd.EstimatedPrepMinutes,
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	return o, nil
}

// TransitionOrder applies one status change, retrying a bounded number of
// times when a concurrent writer bumped the stream first. Each retry reloads
// the aggregate, so legality is re-checked against the fresh state.
func (h *Handler) TransitionOrder(ctx context.Context, cmd TransitionOrder) (*order.Order, error) {
	target, err := order.ParseStatus(cmd.TargetStatus)
	if err != nil {
		metrics.TransitionsRejected.WithLabelValues("unknown_status").Inc()
		return nil, err
	}

	actor := order.Actor{ID: cmd.ActorID, Role: cmd.ActorRole}

	var o *order.Order
	for attempt := 0; ; attempt++ {
		o, err = h.orderSvc.Transition(ctx, cmd.OrderID, target, actor, cmd.Reason)
		if err == nil {
			metrics.TransitionsApplied.WithLabelValues(string(target)).Inc()
			return o, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			metrics.TransitionsRejected.WithLabelValues(rejectionReason(err)).Inc()
			return nil, err
		}
		metrics.VersionConflicts.Inc()
		if attempt+1 >= conflictRetries {
			metrics.TransitionsRejected.WithLabelValues("conflict").Inc()
			return nil, err
		}
		log.Printf("[Command] Version conflict on order %s, retrying (%d/%d)", cmd.OrderID, attempt+1, conflictRetries)
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, order.ErrIllegalTransition),
		errors.Is(err, order.ErrOrderCompleted),
		errors.Is(err, order.ErrOrderCancelled):
		return "illegal_transition"
	case errors.Is(err, order.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, order.ErrOrderNotFound):
		return "not_found"
	default:
		return "other"
	}
}

// CancelOrder requests cancellation on behalf of an actor
func (h *Handler) CancelOrder(ctx context.Context, cmd CancelOrder) (*order.Order, error) {
	return h.TransitionOrder(ctx, TransitionOrder{
		OrderID:      cmd.OrderID,
		TargetStatus: string(order.StatusCancelled),
		ActorID:      cmd.ActorID,
		ActorRole:    cmd.ActorRole,
		Reason:       cmd.Reason,
	})
}

// CreateGroupOrder opens a shared order pool
func (h *Handler) CreateGroupOrder(ctx context.Context, cmd CreateGroupOrder) (*grouporder.GroupOrder, error) {
	expiresIn := time.Duration(cmd.ExpiresInHours) * time.Hour
	return h.groupSvc.Create(ctx, cmd.CreatorID, cmd.SellerID, cmd.Title, cmd.InitialBudget, expiresIn)
}

// JoinGroupOrder adds a participant with their dish selection
func (h *Handler) JoinGroupOrder(ctx context.Context, cmd JoinGroupOrder) (*grouporder.GroupOrder, error) {
	items := make([]order.LineItem, len(cmd.Items))
	for i, item := range cmd.Items {
		items[i] = order.LineItem{
			DishID:   item.DishID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		}
	}
	return h.groupSvc.Join(ctx, cmd.GroupOrderID, cmd.ActorID, items)
}

// ContributeBudget adds funds to a group order
func (h *Handler) ContributeBudget(ctx context.Context, cmd ContributeBudget) (*grouporder.GroupOrder, error) {
	return h.groupSvc.Contribute(ctx, cmd.GroupOrderID, cmd.ActorID, cmd.Amount)
}

// CloseGroupOrder finishes a group order on explicit checkout
func (h *Handler) CloseGroupOrder(ctx context.Context, cmd CloseGroupOrder) (*grouporder.GroupOrder, error) {
	return h.groupSvc.Close(ctx, cmd.GroupOrderID, order.Actor{ID: cmd.ActorID, Role: cmd.ActorRole})
}

// RecordPosition buffers a viewing-position update
func (h *Handler) RecordPosition(ctx context.Context, cmd RecordPosition) error {
	return h.tracker.RecordPosition(ctx, cmd.ActorID, cmd.CourseID, cmd.ModuleID, cmd.VideoIndex, cmd.TimeSpentSeconds)
}

// MarkModuleCompleted records a finished module
func (h *Handler) MarkModuleCompleted(ctx context.Context, cmd MarkModuleCompleted) (*readmodel.ProgressReadModel, error) {
	record, err := h.tracker.MarkCompleted(ctx, cmd.ActorID, cmd.CourseID, cmd.ModuleID, cmd.QuizScore)
	if err != nil {
		return nil, err
	}
	metrics.ProgressWrites.Inc()
	return record, nil
}
