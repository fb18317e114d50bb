package grouporder

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/chefmarket/internal/domain/aggregate"
	"github.com/example/chefmarket/internal/domain/order"
	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/google/uuid"
)

const AggregateType = "GroupOrder"

type Status string

const (
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
	StatusExpired Status = "expired"
)

// DefaultExpiry is how long a group order accepts participants when the
// creator does not pick a window.
const DefaultExpiry = 24 * time.Hour

var (
	ErrGroupOrderNotFound = errors.New("group order not found")
	ErrInvalidBudget      = errors.New("budget must be a non-negative amount")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrAlreadyJoined      = errors.New("user already joined this group order")
	ErrGroupClosed        = errors.New("group order is no longer accepting participants")
	ErrGroupExpired       = errors.New("group order has expired")
	ErrBudgetExceeded     = errors.New("group order budget exceeded")
	ErrNotCreator         = errors.New("only the creator or an admin may close a group order")
)

type Participant struct {
	ActorID string           `json:"actor_id"`
	Items   []order.LineItem `json:"items,omitempty"`
	Amount  int              `json:"amount"`
}

type Contribution struct {
	ActorID string    `json:"actor_id"`
	Amount  int       `json:"amount"`
	At      time.Time `json:"at"`
}

type GroupOrder struct {
	ID            string         `json:"id"`
	CreatorID     string         `json:"creator_id"`
	SellerID      string         `json:"seller_id"`
	Title         string         `json:"title"`
	InitialBudget int            `json:"initial_budget"`
	Contributions []Contribution `json:"contributions"`
	Participants  []Participant  `json:"participants"`
	Status        Status         `json:"status"`
	ShareToken    string         `json:"share_token"`
	ExpiresAt     time.Time      `json:"expires_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Version       int            `json:"version"`
}

// Aggregate interface implementation
func (g *GroupOrder) GetID() string    { return g.ID }
func (g *GroupOrder) GetVersion() int  { return g.Version }
func (g *GroupOrder) SetVersion(v int) { g.Version = v }

// TotalBudget is the initial budget plus every accepted contribution
func (g *GroupOrder) TotalBudget() int {
	total := g.InitialBudget
	for _, c := range g.Contributions {
		total += c.Amount
	}
	return total
}

// TotalSpent is the sum of all participant order amounts
func (g *GroupOrder) TotalSpent() int {
	var total int
	for _, p := range g.Participants {
		total += p.Amount
	}
	return total
}

func (g *GroupOrder) hasParticipant(actorID string) bool {
	for _, p := range g.Participants {
		if p.ActorID == actorID {
			return true
		}
	}
	return false
}

// acceptsMutations checks the group is open and within its expiry window
func (g *GroupOrder) acceptsMutations(now time.Time) error {
	switch g.Status {
	case StatusClosed:
		return ErrGroupClosed
	case StatusExpired:
		return ErrGroupExpired
	}
	if now.After(g.ExpiresAt) {
		return ErrGroupExpired
	}
	return nil
}

// ApplyEvent applies a single event to the group order state
func (g *GroupOrder) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventGroupOrderCreated:
		var data GroupOrderCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		g.ID = data.GroupOrderID
		g.CreatorID = data.CreatorID
		g.SellerID = data.SellerID
		g.Title = data.Title
		g.InitialBudget = data.InitialBudget
		g.ShareToken = data.ShareToken
		g.Status = StatusOpen
		g.ExpiresAt = data.ExpiresAt
		g.CreatedAt = data.CreatedAt
		g.UpdatedAt = data.CreatedAt
	case EventParticipantJoined:
		var data ParticipantJoined
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		g.Participants = append(g.Participants, Participant{
			ActorID: data.ActorID,
			Items:   data.Items,
			Amount:  data.Amount,
		})
		g.UpdatedAt = data.JoinedAt
	case EventBudgetContributed:
		var data BudgetContributed
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		g.Contributions = append(g.Contributions, Contribution{
			ActorID: data.ActorID,
			Amount:  data.Amount,
			At:      data.ContributedAt,
		})
		g.UpdatedAt = data.ContributedAt
	case EventGroupOrderClosed:
		var data GroupOrderClosed
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		g.Status = data.Status
		g.UpdatedAt = data.ClosedAt
	}
	g.Version = event.Version
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
	now        func() time.Time
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es, now: time.Now}
}

func (s *Service) load(ctx context.Context, groupOrderID string) (*GroupOrder, error) {
	g, found, err := aggregate.LoadAggregate(ctx, s.eventStore, groupOrderID, func() *GroupOrder {
		return &GroupOrder{}
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrGroupOrderNotFound
	}
	return g, nil
}

// Get returns the current state of a group order
func (s *Service) Get(ctx context.Context, groupOrderID string) (*GroupOrder, error) {
	return s.load(ctx, groupOrderID)
}

func newShareToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(buf)
}

// Create opens a new group order with an initial budget and expiry window
func (s *Service) Create(ctx context.Context, creatorID, sellerID, title string, initialBudget int, expiresIn time.Duration) (*GroupOrder, error) {
	if initialBudget < 0 {
		return nil, ErrInvalidBudget
	}
	if expiresIn <= 0 {
		expiresIn = DefaultExpiry
	}

	groupOrderID := uuid.New().String()
	now := s.now()

	event := GroupOrderCreated{
		GroupOrderID:  groupOrderID,
		CreatorID:     creatorID,
		SellerID:      sellerID,
		Title:         title,
		InitialBudget: initialBudget,
		ShareToken:    newShareToken(),
		ExpiresAt:     now.Add(expiresIn),
		CreatedAt:     now,
	}

	storedEvent, err := s.append(ctx, groupOrderID, EventGroupOrderCreated, event, 0)
	if err != nil {
		return nil, err
	}

	g := &GroupOrder{}
	if err := g.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	return g, nil
}

// Join adds a participant with an optional item selection. The selection
// amount must fit inside the remaining budget.
func (s *Service) Join(ctx context.Context, groupOrderID, actorID string, items []order.LineItem) (*GroupOrder, error) {
	g, err := s.load(ctx, groupOrderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := g.acceptsMutations(now); err != nil {
		return nil, err
	}
	if g.hasParticipant(actorID) {
		return nil, ErrAlreadyJoined
	}

	var amount int
	for _, item := range items {
		if item.Price < 0 || item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s", order.ErrInvalidLineItem, item.DishID)
		}
		amount += item.Price * item.Quantity
	}
	if g.TotalSpent()+amount > g.TotalBudget() {
		return nil, fmt.Errorf("%w: %d over budget %d", ErrBudgetExceeded, g.TotalSpent()+amount, g.TotalBudget())
	}

	event := ParticipantJoined{
		GroupOrderID:     groupOrderID,
		ActorID:          actorID,
		Items:            items,
		Amount:           amount,
		ParticipantCount: len(g.Participants) + 1,
		TotalContributed: g.TotalBudget(),
		JoinedAt:         now,
	}

	storedEvent, err := s.append(ctx, groupOrderID, EventParticipantJoined, event, g.Version)
	if err != nil {
		return nil, err
	}

	if err := g.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	return g, nil
}

// Contribute adds budget to an open group order
func (s *Service) Contribute(ctx context.Context, groupOrderID, actorID string, amount int) (*GroupOrder, error) {
	g, err := s.load(ctx, groupOrderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := g.acceptsMutations(now); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	event := BudgetContributed{
		GroupOrderID:     groupOrderID,
		ActorID:          actorID,
		Amount:           amount,
		ParticipantCount: len(g.Participants),
		TotalContributed: g.TotalBudget() + amount,
		ContributedAt:    now,
	}

	storedEvent, err := s.append(ctx, groupOrderID, EventBudgetContributed, event, g.Version)
	if err != nil {
		return nil, err
	}

	if err := g.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	return g, nil
}

// Close finishes a group order on explicit checkout. Only the creator or an
// admin may close.
func (s *Service) Close(ctx context.Context, groupOrderID string, actor order.Actor) (*GroupOrder, error) {
	g, err := s.load(ctx, groupOrderID)
	if err != nil {
		return nil, err
	}
	if g.Status != StatusOpen {
		return nil, ErrGroupClosed
	}
	if actor.Role != "admin" && actor.ID != g.CreatorID {
		return nil, ErrNotCreator
	}

	return s.close(ctx, g, StatusClosed, actor.ID)
}

// CloseExpired marks a group order expired once its window has passed. Safe
// to call from a sweeper; a no-op error is returned if still open.
func (s *Service) CloseExpired(ctx context.Context, groupOrderID string) (*GroupOrder, error) {
	g, err := s.load(ctx, groupOrderID)
	if err != nil {
		return nil, err
	}
	if g.Status != StatusOpen {
		return nil, ErrGroupClosed
	}
	if s.now().Before(g.ExpiresAt) {
		return nil, fmt.Errorf("group order %s has not expired yet", groupOrderID)
	}

	return s.close(ctx, g, StatusExpired, "")
}

func (s *Service) close(ctx context.Context, g *GroupOrder, status Status, closedBy string) (*GroupOrder, error) {
	event := GroupOrderClosed{
		GroupOrderID: g.ID,
		Status:       status,
		ClosedBy:     closedBy,
		ClosedAt:     s.now(),
	}

	storedEvent, err := s.append(ctx, g.ID, EventGroupOrderClosed, event, g.Version)
	if err != nil {
		return nil, err
	}

	if err := g.ApplyEvent(*storedEvent); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) append(ctx context.Context, groupOrderID, eventType string, data any, expectedVersion int) (*store.Event, error) {
	storedEvent, err := s.eventStore.Append(ctx, groupOrderID, AggregateType, eventType, data, expectedVersion)
	if err != nil {
		if !errors.Is(err, store.ErrPublishFailed) {
			return nil, err
		}
		log.Printf("[GroupOrder] Event stored but publish failed for %s: %v", groupOrderID, err)
	}
	return storedEvent, nil
}
