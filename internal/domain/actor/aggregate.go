package actor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/example/chefmarket/internal/auth"
	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/google/uuid"
)

const AggregateType = "Actor"

const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

var (
	ErrActorNotFound      = errors.New("actor not found")
	ErrInvalidEmail       = errors.New("email is required")
	ErrInvalidName        = errors.New("name is required")
	ErrInvalidRole        = errors.New("role must be buyer, seller or admin")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrActorDeactivated   = errors.New("account is deactivated")
	ErrNotSeller          = errors.New("only sellers can change order availability")
)

// Actor represents a marketplace account: a buyer, a seller or an admin.
type Actor struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         string
	IsActive     bool
	// AcceptingOrders only matters for sellers; new sellers start open.
	AcceptingOrders bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Service handles actor domain operations
type Service struct {
	eventStore store.EventStoreInterface
}

// NewService creates a new actor service
func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@.]+(\.[^\s@.]+)+$`)

func isValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailPattern.MatchString(email)
}

// Register creates a new account with the given role
func (s *Service) Register(ctx context.Context, email, password, name, role string) (*Actor, error) {
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if name == "" {
		return nil, ErrInvalidName
	}
	switch role {
	case RoleBuyer, RoleSeller, RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	actorID := uuid.New().String()
	now := time.Now()

	event := ActorRegistered{
		ActorID:      actorID,
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
	}

	if err := s.append(ctx, actorID, EventActorRegistered, event, 0); err != nil {
		return nil, err
	}

	return &Actor{
		ID:              actorID,
		Email:           email,
		Name:            name,
		Role:            role,
		IsActive:        true,
		AcceptingOrders: role == RoleSeller,
		CreatedAt:       now,
	}, nil
}

// RecordLogin records a login event
func (s *Service) RecordLogin(ctx context.Context, actorID, sessionID, ipAddress, userAgent string) error {
	event := ActorLoggedIn{
		ActorID:   actorID,
		SessionID: sessionID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		LoggedAt:  time.Now(),
	}

	return s.append(ctx, actorID, EventActorLoggedIn, event, store.AnyVersion)
}

// RecordLogout records a logout event
func (s *Service) RecordLogout(ctx context.Context, actorID, sessionID string) error {
	event := ActorLoggedOut{
		ActorID:   actorID,
		SessionID: sessionID,
		LoggedAt:  time.Now(),
	}

	return s.append(ctx, actorID, EventActorLoggedOut, event, store.AnyVersion)
}

// UpdateProfile updates profile information
func (s *Service) UpdateProfile(ctx context.Context, actorID, name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if err := s.mustExist(actorID); err != nil {
		return err
	}

	event := ActorProfileUpdated{
		ActorID:   actorID,
		Name:      name,
		UpdatedAt: time.Now(),
	}

	return s.append(ctx, actorID, EventActorProfileUpdated, event, store.AnyVersion)
}

// ChangePassword changes the account password
func (s *Service) ChangePassword(ctx context.Context, actorID, newPassword string) error {
	if err := s.mustExist(actorID); err != nil {
		return err
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	event := ActorPasswordChanged{
		ActorID:      actorID,
		PasswordHash: passwordHash,
		ChangedAt:    time.Now(),
	}

	return s.append(ctx, actorID, EventActorPasswordChanged, event, store.AnyVersion)
}

// SetAcceptingOrders opens or pauses a seller's checkout
func (s *Service) SetAcceptingOrders(ctx context.Context, actorID string, accepting bool) error {
	events := s.eventStore.GetEvents(actorID)
	if len(events) == 0 {
		return ErrActorNotFound
	}

	event := SellerAvailabilityChanged{
		ActorID:         actorID,
		AcceptingOrders: accepting,
		ChangedAt:       time.Now(),
	}

	return s.append(ctx, actorID, EventSellerAvailabilityChanged, event, store.AnyVersion)
}

// Deactivate deactivates an account
func (s *Service) Deactivate(ctx context.Context, actorID string) error {
	if err := s.mustExist(actorID); err != nil {
		return err
	}

	event := ActorDeactivated{
		ActorID:       actorID,
		DeactivatedAt: time.Now(),
	}

	return s.append(ctx, actorID, EventActorDeactivated, event, store.AnyVersion)
}

// Activate reactivates an account
func (s *Service) Activate(ctx context.Context, actorID string) error {
	if err := s.mustExist(actorID); err != nil {
		return err
	}

	event := ActorActivated{
		ActorID:     actorID,
		ActivatedAt: time.Now(),
	}

	return s.append(ctx, actorID, EventActorActivated, event, store.AnyVersion)
}

func (s *Service) mustExist(actorID string) error {
	if len(s.eventStore.GetEvents(actorID)) == 0 {
		return ErrActorNotFound
	}
	return nil
}

func (s *Service) append(ctx context.Context, actorID, eventType string, data any, expectedVersion int) error {
	_, err := s.eventStore.Append(ctx, actorID, AggregateType, eventType, data, expectedVersion)
	if err != nil {
		if !errors.Is(err, store.ErrPublishFailed) {
			return err
		}
		log.Printf("[Actor] Event stored but publish failed for %s: %v", actorID, err)
	}
	return nil
}
