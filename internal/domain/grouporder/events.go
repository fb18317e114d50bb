package grouporder

import (
	"time"

	"github.com/example/chefmarket/internal/domain/order"
)

const (
	EventGroupOrderCreated = "GroupOrderCreated"
	EventParticipantJoined = "ParticipantJoined"
	EventBudgetContributed = "BudgetContributed"
	EventGroupOrderClosed  = "GroupOrderClosed"
)

type GroupOrderCreated struct {
	GroupOrderID  string    `json:"group_order_id"`
	CreatorID     string    `json:"creator_id"`
	SellerID      string    `json:"seller_id"`
	Title         string    `json:"title"`
	InitialBudget int       `json:"initial_budget"`
	ShareToken    string    `json:"share_token"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

type ParticipantJoined struct {
	GroupOrderID     string           `json:"group_order_id"`
	ActorID          string           `json:"actor_id"`
	Items            []order.LineItem `json:"items,omitempty"`
	Amount           int              `json:"amount"`
	ParticipantCount int              `json:"participant_count"`
	TotalContributed int              `json:"total_contributed"`
	JoinedAt         time.Time        `json:"joined_at"`
}

type BudgetContributed struct {
	GroupOrderID     string    `json:"group_order_id"`
	ActorID          string    `json:"actor_id"`
	Amount           int       `json:"amount"`
	ParticipantCount int       `json:"participant_count"`
	TotalContributed int       `json:"total_contributed"`
	ContributedAt    time.Time `json:"contributed_at"`
}

type GroupOrderClosed struct {
	GroupOrderID string    `json:"group_order_id"`
	Status       Status    `json:"status"` // closed or expired
	ClosedBy     string    `json:"closed_by,omitempty"`
	ClosedAt     time.Time `json:"closed_at"`
}
