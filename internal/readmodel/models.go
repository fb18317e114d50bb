package readmodel

import "time"

// Collection names used across the read store.
const (
	CollectionOrders      = "orders"
	CollectionGroupOrders = "group_orders"
	CollectionProgress    = "progress"
	CollectionCourses     = "courses"
	CollectionActors      = "actors"
	CollectionSessions    = "sessions"
)

type DeliveryAddress struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

type OrderItemReadModel struct {
	DishID              string `json:"dish_id"`
	Name                string `json:"name"`
	Quantity            int    `json:"quantity"`
	Price               int    `json:"price"` // unit price, minor currency units
	SpecialInstructions string `json:"special_instructions,omitempty"`
}

// StatusChange is one entry in an order's append-only transition history.
type StatusChange struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	ActorID string    `json:"actor_id"`
	At      time.Time `json:"at"`
}

type OrderReadModel struct {
	ID                   string               `json:"id"`
	BuyerID              string               `json:"buyer_id"`
	SellerID             string               `json:"seller_id"`
	Items                []OrderItemReadModel `json:"items"`
	Total                int                  `json:"total"`
	Status               string               `json:"status"`
	GroupOrderID         string               `json:"group_order_id,omitempty"`
	DeliveryAddress      *DeliveryAddress     `json:"delivery_address,omitempty"`
	EstimatedPrepMinutes int                  `json:"estimated_prep_minutes,omitempty"`
	History              []StatusChange       `json:"history"`
	Revision             int                  `json:"revision"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
	CompletedAt          *time.Time           `json:"completed_at,omitempty"`
}

type ContributionReadModel struct {
	ActorID string    `json:"actor_id"`
	Amount  int       `json:"amount"`
	At      time.Time `json:"at"`
}

type ParticipantReadModel struct {
	ActorID string               `json:"actor_id"`
	Items   []OrderItemReadModel `json:"items"`
	Amount  int                  `json:"amount"`
}

type GroupOrderReadModel struct {
	ID               string                  `json:"id"`
	CreatorID        string                  `json:"creator_id"`
	SellerID         string                  `json:"seller_id"`
	Title            string                  `json:"title"`
	InitialBudget    int                     `json:"initial_budget"`
	TotalContributed int                     `json:"total_contributed"`
	TotalSpent       int                     `json:"total_spent"`
	Participants     []ParticipantReadModel  `json:"participants"`
	Contributions    []ContributionReadModel `json:"contributions"`
	Status           string                  `json:"status"`
	ShareToken       string                  `json:"share_token"`
	ExpiresAt        time.Time               `json:"expires_at"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

type ProgressReadModel struct {
	ActorID          string    `json:"actor_id"`
	CourseID         string    `json:"course_id"`
	ModuleID         string    `json:"module_id"`
	ModuleNumber     int       `json:"module_number"`
	VideoIndex       int       `json:"video_index"`
	Completed        bool      `json:"completed"`
	QuizScore        *int      `json:"quiz_score,omitempty"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type CourseModule struct {
	ModuleID         string `json:"module_id"`
	Number           int    `json:"number"`
	Name             string `json:"name"`
	VideoCount       int    `json:"video_count"`
	QuizPassingScore int    `json:"quiz_passing_score,omitempty"`
}

type CourseReadModel struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Modules []CourseModule `json:"modules"` // ordered by Number
}

type ActorReadModel struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	// AcceptingOrders only applies to sellers; checkout is refused while false.
	AcceptingOrders bool      `json:"accepting_orders"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SessionReadModel backs refresh token rotation. Only the hash of the
// refresh token is stored.
type SessionReadModel struct {
	ID               string    `json:"id"`
	ActorID          string    `json:"actor_id"`
	RefreshTokenHash string    `json:"refresh_token_hash"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	IPAddress        string    `json:"ip_address"`
	UserAgent        string    `json:"user_agent"`
}
