package projection

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/chefmarket/internal/domain/actor"
	"github.com/example/chefmarket/internal/domain/grouporder"
	"github.com/example/chefmarket/internal/domain/order"
	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/example/chefmarket/internal/metrics"
	"github.com/example/chefmarket/internal/readmodel"
)

type Projector struct {
	readStore store.ReadStoreInterface
}

func NewProjector(readStore store.ReadStoreInterface) *Projector {
	return &Projector{readStore: readStore}
}

func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}

	log.Printf("[Projector] Received event: %s (aggregate: %s)", event.EventType, event.AggregateType)

	var err error
	switch event.AggregateType {
	case order.AggregateType:
		err = p.handleOrderEvent(event)
	case grouporder.AggregateType:
		err = p.handleGroupOrderEvent(event)
	case actor.AggregateType:
		err = p.handleActorEvent(event)
	}
	if err == nil {
		metrics.EventsProjected.WithLabelValues(event.EventType).Inc()
	}
	return err
}

func (p *Projector) handleOrderEvent(event store.Event) error {
	switch event.EventType {
	case order.EventOrderCreated:
		var e order.OrderCreated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		items := make([]readmodel.OrderItemReadModel, len(e.Items))
		for i, item := range e.Items {
			items[i] = readmodel.OrderItemReadModel{
				DishID:              item.DishID,
				Name:                item.Name,
				Quantity:            item.Quantity,
				Price:               item.Price,
				SpecialInstructions: item.SpecialInstructions,
			}
		}
		var addr *readmodel.DeliveryAddress
		if e.DeliveryAddress != nil {
			addr = &readmodel.DeliveryAddress{
				Street:   e.DeliveryAddress.Street,
				City:     e.DeliveryAddress.City,
				Postcode: e.DeliveryAddress.Postcode,
				Country:  e.DeliveryAddress.Country,
			}
		}
		p.readStore.Set(readmodel.CollectionOrders, e.OrderID, &readmodel.OrderReadModel{
			ID:                   e.OrderID,
			BuyerID:              e.BuyerID,
			SellerID:             e.SellerID,
			Items:                items,
			Total:                e.Total,
			Status:               string(order.StatusPending),
			GroupOrderID:         e.GroupOrderID,
			DeliveryAddress:      addr,
			EstimatedPrepMinutes: e.EstimatedPrepMinutes,
			History:              []readmodel.StatusChange{},
			Revision:             event.Version,
			CreatedAt:            e.CreatedAt,
			UpdatedAt:            e.CreatedAt,
		})

	case order.EventOrderStatusChanged:
		var e order.OrderStatusChanged
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.CollectionOrders, e.OrderID, func(current any) any {
			o := current.(*readmodel.OrderReadModel)
			o.Status = string(e.NewStatus)
			// History is append-only; earlier entries are never rewritten
			o.History = append(o.History, readmodel.StatusChange{
				From:    string(e.PreviousStatus),
				To:      string(e.NewStatus),
				ActorID: e.ActorID,
				At:      e.ChangedAt,
			})
			if e.NewStatus == order.StatusCompleted {
				completedAt := e.ChangedAt
				o.CompletedAt = &completedAt
			}
			o.Revision = event.Version
			o.UpdatedAt = e.ChangedAt
			return o
		})
	}

	return nil
}

func (p *Projector) handleGroupOrderEvent(event store.Event) error {
	switch event.EventType {
	case grouporder.EventGroupOrderCreated:
		var e grouporder.GroupOrderCreated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Set(readmodel.CollectionGroupOrders, e.GroupOrderID, &readmodel.GroupOrderReadModel{
			ID:               e.GroupOrderID,
			CreatorID:        e.CreatorID,
			SellerID:         e.SellerID,
			Title:            e.Title,
			InitialBudget:    e.InitialBudget,
			TotalContributed: e.InitialBudget,
			Participants:     []readmodel.ParticipantReadModel{},
			Contributions:    []readmodel.ContributionReadModel{},
			Status:           string(grouporder.StatusOpen),
			ShareToken:       e.ShareToken,
			ExpiresAt:        e.ExpiresAt,
			CreatedAt:        e.CreatedAt,
			UpdatedAt:        e.CreatedAt,
		})

	case grouporder.EventParticipantJoined:
		var e grouporder.ParticipantJoined
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.CollectionGroupOrders, e.GroupOrderID, func(current any) any {
			g := current.(*readmodel.GroupOrderReadModel)
			items := make([]readmodel.OrderItemReadModel, len(e.Items))
			for i, item := range e.Items {
				items[i] = readmodel.OrderItemReadModel{
					DishID:   item.DishID,
					Name:     item.Name,
					Quantity: item.Quantity,
					Price:    item.Price,
				}
			}
			g.Participants = append(g.Participants, readmodel.ParticipantReadModel{
				ActorID: e.ActorID,
				Items:   items,
				Amount:  e.Amount,
			})
			g.TotalSpent += e.Amount
			g.UpdatedAt = e.JoinedAt
			return g
		})

	case grouporder.EventBudgetContributed:
		var e grouporder.BudgetContributed
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.CollectionGroupOrders, e.GroupOrderID, func(current any) any {
			g := current.(*readmodel.GroupOrderReadModel)
			g.Contributions = append(g.Contributions, readmodel.ContributionReadModel{
				ActorID: e.ActorID,
				Amount:  e.Amount,
				At:      e.ContributedAt,
			})
			g.TotalContributed = e.TotalContributed
			g.UpdatedAt = e.ContributedAt
			return g
		})

	case grouporder.EventGroupOrderClosed:
		var e grouporder.GroupOrderClosed
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.CollectionGroupOrders, e.GroupOrderID, func(current any) any {
			g := current.(*readmodel.GroupOrderReadModel)
			g.Status = string(e.Status)
			g.UpdatedAt = e.ClosedAt
			return g
		})
	}

	return nil
}

func (p *Projector) handleActorEvent(event store.Event) error {
	switch event.EventType {
	case actor.EventActorRegistered:
		var e actor.ActorRegistered
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Set(readmodel.CollectionActors, e.ActorID, &readmodel.ActorReadModel{
			ID:              e.ActorID,
			Email:           e.Email,
			PasswordHash:    e.PasswordHash,
			Name:            e.Name,
			Role:            e.Role,
			IsActive:        true,
			AcceptingOrders: e.Role == actor.RoleSeller,
			CreatedAt:       e.CreatedAt,
			UpdatedAt:       e.CreatedAt,
		})

	case actor.EventActorProfileUpdated:
		var e actor.ActorProfileUpdated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.CollectionActors, e.ActorID, func(current any) any {
			a := current.(*readmodel.ActorReadModel)
			a.Name = e.Name
			a.UpdatedAt = e.UpdatedAt
			return a
		})

	case actor.EventActorPasswordChanged:
		var e actor.ActorPasswordChanged
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.CollectionActors, e.ActorID, func(current any) any {
			a := current.(*readmodel.ActorReadModel)
			a.PasswordHash = e.PasswordHash
			a.UpdatedAt = e.ChangedAt
			return a
		})

	case actor.EventSellerAvailabilityChanged:
		var e actor.SellerAvailabilityChanged
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.CollectionActors, e.ActorID, func(current any) any {
			a := current.(*readmodel.ActorReadModel)
			a.AcceptingOrders = e.AcceptingOrders
			a.UpdatedAt = e.ChangedAt
			return a
		})

	case actor.EventActorDeactivated:
		var e actor.ActorDeactivated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.CollectionActors, e.ActorID, func(current any) any {
			a := current.(*readmodel.ActorReadModel)
			a.IsActive = false
			a.UpdatedAt = e.DeactivatedAt
			return a
		})

	case actor.EventActorActivated:
		var e actor.ActorActivated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		p.readStore.Update(readmodel.CollectionActors, e.ActorID, func(current any) any {
			a := current.(*readmodel.ActorReadModel)
			a.IsActive = true
			a.UpdatedAt = e.ActivatedAt
			return a
		})
	}

	return nil
}
