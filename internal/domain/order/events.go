package order

import "time"

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type LineItem struct {
	DishID              string `json:"dish_id"`
	Name                string `json:"name"`
	Quantity            int    `json:"quantity"`
	Price               int    `json:"price"` // unit price, minor currency units
	SpecialInstructions string `json:"special_instructions,omitempty"`
}

type DeliveryAddress struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

type OrderCreated struct {
	OrderID              string           `json:"order_id"`
	BuyerID              string           `json:"buyer_id"`
	SellerID             string           `json:"seller_id"`
	Items                []LineItem       `json:"items"`
	Total                int              `json:"total"`
	GroupOrderID         string           `json:"group_order_id,omitempty"`
	DeliveryAddress      *DeliveryAddress `json:"delivery_address,omitempty"`
	EstimatedPrepMinutes int              `json:"estimated_prep_minutes,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
}

// OrderStatusChanged records one accepted transition. Timestamps are written
// once and never rewritten; the projector keeps them as append-only history.
type OrderStatusChanged struct {
	OrderID        string    `json:"order_id"`
	PreviousStatus Status    `json:"previous_status"`
	NewStatus      Status    `json:"new_status"`
	ActorID        string    `json:"actor_id"`
	Reason         string    `json:"reason,omitempty"`
	ChangedAt      time.Time `json:"changed_at"`
}
