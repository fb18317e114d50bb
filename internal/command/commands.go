package command

// Order Commands

type LineItemInput struct {
	DishID              string `json:"dish_id"`
	Name                string `json:"name"`
	Quantity            int    `json:"quantity"`
	Price               int    `json:"price"`
	SpecialInstructions string `json:"special_instructions,omitempty"`
}

type AddressInput struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

type CreateOrder struct {
	BuyerID              string          `json:"buyer_id"`
	SellerID             string          `json:"seller_id"`
	Items                []LineItemInput `json:"items"`
	GroupOrderID         string          `json:"group_order_id,omitempty"`
	DeliveryAddress      *AddressInput   `json:"delivery_address,omitempty"`
	EstimatedPrepMinutes int             `json:"estimated_prep_minutes,omitempty"`
}

type TransitionOrder struct {
	OrderID      string `json:"order_id"`
	TargetStatus string `json:"target_status"`
	ActorID      string `json:"actor_id"`
	ActorRole    string `json:"actor_role"`
	Reason       string `json:"reason,omitempty"`
}

type CancelOrder struct {
	OrderID   string `json:"order_id"`
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	Reason    string `json:"reason"`
}

// Group Order Commands

type CreateGroupOrder struct {
	CreatorID      string `json:"creator_id"`
	SellerID       string `json:"seller_id"`
	Title          string `json:"title"`
	InitialBudget  int    `json:"initial_budget"`
	ExpiresInHours int    `json:"expires_in_hours,omitempty"`
}

type JoinGroupOrder struct {
	GroupOrderID string          `json:"group_order_id"`
	ActorID      string          `json:"actor_id"`
	Items        []LineItemInput `json:"items"`
}

type ContributeBudget struct {
	GroupOrderID string `json:"group_order_id"`
	ActorID      string `json:"actor_id"`
	Amount       int    `json:"amount"`
}

type CloseGroupOrder struct {
	GroupOrderID string `json:"group_order_id"`
	ActorID      string `json:"actor_id"`
	ActorRole    string `json:"actor_role"`
}

// Progress Commands

type RecordPosition struct {
	ActorID          string `json:"actor_id"`
	CourseID         string `json:"course_id"`
	ModuleID         string `json:"module_id"`
	VideoIndex       int    `json:"video_index"`
	TimeSpentSeconds int    `json:"time_spent_seconds,omitempty"`
}

type MarkModuleCompleted struct {
	ActorID   string `json:"actor_id"`
	CourseID  string `json:"course_id"`
	ModuleID  string `json:"module_id"`
	QuizScore *int   `json:"quiz_score,omitempty"`
}
