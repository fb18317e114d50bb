package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/example/chefmarket/internal/analytics"
	"github.com/example/chefmarket/internal/api/middleware"
	"github.com/example/chefmarket/internal/command"
	"github.com/example/chefmarket/internal/domain/grouporder"
	"github.com/example/chefmarket/internal/domain/order"
	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/example/chefmarket/internal/progress"
	"github.com/example/chefmarket/internal/query"
)

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	earnings     *analytics.Aggregator
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, earnings *analytics.Aggregator) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		earnings:     earnings,
	}
}

// Order Handlers

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateOrder
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd.BuyerID = getActorID(r)

	o, err := h.cmdHandler.CreateOrder(r.Context(), cmd)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, o)
}

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	actorID := getActorID(r)
	if getRole(r) == "seller" {
		respondJSON(w, http.StatusOK, h.queryHandler.ListOrdersBySeller(actorID))
		return
	}
	respondJSON(w, http.StatusOK, h.queryHandler.ListOrdersByBuyer(actorID))
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := pathSegment(r.URL.Path, "/orders/", 0)

	o, ok := h.queryHandler.GetOrder(id)
	if !ok {
		respondJSONError(w, "Order not found", http.StatusNotFound)
		return
	}

	// Buyers and sellers see their own orders, admins see all
	actorID := getActorID(r)
	if o.BuyerID != actorID && o.SellerID != actorID && !isAdmin(r) {
		respondJSONError(w, "Forbidden", http.StatusForbidden)
		return
	}

	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	id := pathSegment(r.URL.Path, "/orders/", 0)

	var req struct {
		TargetStatus string `json:"target_status"`
		Reason       string `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	o, err := h.cmdHandler.TransitionOrder(r.Context(), command.TransitionOrder{
		OrderID:      id,
		TargetStatus: req.TargetStatus,
		ActorID:      getActorID(r),
		ActorRole:    getRole(r),
		Reason:       req.Reason,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := pathSegment(r.URL.Path, "/orders/", 0)

	var req struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	o, err := h.cmdHandler.CancelOrder(r.Context(), command.CancelOrder{
		OrderID:   id,
		ActorID:   getActorID(r),
		ActorRole: getRole(r),
		Reason:    req.Reason,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, o)
}

// Admin Handlers

func (h *Handlers) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.queryHandler.ListAllOrders())
}

// Earnings Handlers

func (h *Handlers) GetEarnings(w http.ResponseWriter, r *http.Request) {
	timeRange, err := analytics.ParseTimeRange(r.URL.Query().Get("range"))
	if err != nil {
		respondJSONError(w, "Invalid range, use 7d, 30d or 90d", http.StatusBadRequest)
		return
	}

	sellerID := getActorID(r)
	if isAdmin(r) {
		if id := r.URL.Query().Get("seller_id"); id != "" {
			sellerID = id
		}
	}

	earnings, err := h.earnings.GetSellerEarnings(r.Context(), sellerID, timeRange)
	if err != nil {
		respondJSONError(w, "Failed to aggregate earnings", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, earnings)
}

// Group Order Handlers

func (h *Handlers) CreateGroupOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateGroupOrder
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd.CreatorID = getActorID(r)

	g, err := h.cmdHandler.CreateGroupOrder(r.Context(), cmd)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, g)
}

func (h *Handlers) GetGroupOrder(w http.ResponseWriter, r *http.Request) {
	id := pathSegment(r.URL.Path, "/group-orders/", 0)

	g, ok := h.queryHandler.GetGroupOrder(id)
	if !ok {
		respondJSONError(w, "Group order not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, g)
}

// GetGroupOrderByToken resolves a share link. No auth required.
func (h *Handlers) GetGroupOrderByToken(w http.ResponseWriter, r *http.Request) {
	token := pathSegment(r.URL.Path, "/group-orders/shared/", 0)

	g, ok := h.queryHandler.GetGroupOrderByToken(token)
	if !ok {
		respondJSONError(w, "Group order not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, g)
}

func (h *Handlers) JoinGroupOrder(w http.ResponseWriter, r *http.Request) {
	id := pathSegment(r.URL.Path, "/group-orders/", 0)

	var req struct {
		Items []command.LineItemInput `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	g, err := h.cmdHandler.JoinGroupOrder(r.Context(), command.JoinGroupOrder{
		GroupOrderID: id,
		ActorID:      getActorID(r),
		Items:        req.Items,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, g)
}

func (h *Handlers) ContributeBudget(w http.ResponseWriter, r *http.Request) {
	id := pathSegment(r.URL.Path, "/group-orders/", 0)

	var req struct {
		Amount int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	g, err := h.cmdHandler.ContributeBudget(r.Context(), command.ContributeBudget{
		GroupOrderID: id,
		ActorID:      getActorID(r),
		Amount:       req.Amount,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, g)
}

func (h *Handlers) CloseGroupOrder(w http.ResponseWriter, r *http.Request) {
	id := pathSegment(r.URL.Path, "/group-orders/", 0)

	g, err := h.cmdHandler.CloseGroupOrder(r.Context(), command.CloseGroupOrder{
		GroupOrderID: id,
		ActorID:      getActorID(r),
		ActorRole:    getRole(r),
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, g)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// respondDomainError maps domain errors to HTTP status codes
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, grouporder.ErrGroupOrderNotFound),
		errors.Is(err, progress.ErrCourseNotFound),
		errors.Is(err, progress.ErrModuleNotFound):
		respondJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, order.ErrNotAuthorized),
		errors.Is(err, grouporder.ErrNotCreator):
		respondJSONError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, order.ErrIllegalTransition),
		errors.Is(err, order.ErrOrderCompleted),
		errors.Is(err, order.ErrOrderCancelled),
		errors.Is(err, grouporder.ErrBudgetExceeded),
		errors.Is(err, grouporder.ErrAlreadyJoined),
		errors.Is(err, grouporder.ErrGroupClosed),
		errors.Is(err, grouporder.ErrGroupExpired),
		errors.Is(err, store.ErrVersionConflict):
		respondJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, order.ErrUnknownStatus),
		errors.Is(err, order.ErrSellerNotAccepting),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrInvalidLineItem),
		errors.Is(err, grouporder.ErrInvalidBudget),
		errors.Is(err, grouporder.ErrInvalidAmount),
		errors.Is(err, progress.ErrInvalidScore),
		errors.Is(err, progress.ErrQuizNotPassed):
		respondJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		respondJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}

// pathSegment returns the n-th path segment after the prefix
func pathSegment(path, prefix string, n int) string {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(rest, "/")
	if n >= len(parts) {
		return ""
	}
	return parts[n]
}

// getActorID extracts the actor ID from JWT context or falls back to the
// X-Actor-ID header
func getActorID(r *http.Request) string {
	if actorID := middleware.GetActorID(r.Context()); actorID != "" {
		return actorID
	}
	return r.Header.Get("X-Actor-ID")
}

func getRole(r *http.Request) string {
	claims, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		return ""
	}
	return claims.Role
}

// isAdmin checks if the current actor has admin role
func isAdmin(r *http.Request) bool {
	return getRole(r) == "admin"
}
