package actor

import "time"

const (
	EventActorRegistered           = "ActorRegistered"
	EventActorProfileUpdated       = "ActorProfileUpdated"
	EventActorPasswordChanged      = "ActorPasswordChanged"
	EventActorLoggedIn             = "ActorLoggedIn"
	EventActorLoggedOut            = "ActorLoggedOut"
	EventActorDeactivated          = "ActorDeactivated"
	EventActorActivated            = "ActorActivated"
	EventSellerAvailabilityChanged = "SellerAvailabilityChanged"
)

// ActorRegistered is emitted when a buyer, seller or admin account is created
type ActorRegistered struct {
	ActorID      string    `json:"actor_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// ActorProfileUpdated is emitted when profile details change
type ActorProfileUpdated struct {
	ActorID   string    `json:"actor_id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActorPasswordChanged is emitted when an actor changes their password
type ActorPasswordChanged struct {
	ActorID      string    `json:"actor_id"`
	PasswordHash string    `json:"password_hash"`
	ChangedAt    time.Time `json:"changed_at"`
}

// ActorLoggedIn is emitted on a successful login
type ActorLoggedIn struct {
	ActorID   string    `json:"actor_id"`
	SessionID string    `json:"session_id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	LoggedAt  time.Time `json:"logged_at"`
}

// ActorLoggedOut is emitted when an actor logs out
type ActorLoggedOut struct {
	ActorID   string    `json:"actor_id"`
	SessionID string    `json:"session_id"`
	LoggedAt  time.Time `json:"logged_at"`
}

// ActorDeactivated is emitted when an account is deactivated
type ActorDeactivated struct {
	ActorID       string    `json:"actor_id"`
	DeactivatedAt time.Time `json:"deactivated_at"`
}

// ActorActivated is emitted when an account is reactivated
type ActorActivated struct {
	ActorID     string    `json:"actor_id"`
	ActivatedAt time.Time `json:"activated_at"`
}

// SellerAvailabilityChanged is emitted when a seller opens or pauses checkout
type SellerAvailabilityChanged struct {
	ActorID         string    `json:"actor_id"`
	AcceptingOrders bool      `json:"accepting_orders"`
	ChangedAt       time.Time `json:"changed_at"`
}
