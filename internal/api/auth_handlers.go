package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/chefmarket/internal/api/middleware"
	"github.com/example/chefmarket/internal/auth"
	"github.com/example/chefmarket/internal/domain/actor"
	"github.com/example/chefmarket/internal/infrastructure/store"
	"github.com/example/chefmarket/internal/query"
	"github.com/example/chefmarket/internal/readmodel"
	"github.com/google/uuid"
)

// hashToken creates a SHA-256 hash of the token for secure storage
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	actorService *actor.Service
	jwtService   *auth.JWTService
	queryHandler *query.Handler
	readStore    store.ReadStoreInterface
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(actorService *actor.Service, jwtService *auth.JWTService, queryHandler *query.Handler, readStore store.ReadStoreInterface) *AuthHandlers {
	return &AuthHandlers{
		actorService: actorService,
		jwtService:   jwtService,
		queryHandler: queryHandler,
		readStore:    readStore,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Actor   ActorResponse `json:"actor"`
	Message string        `json:"message,omitempty"`
}

// ActorResponse represents actor data in responses
type ActorResponse struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Role            string    `json:"role"`
	AcceptingOrders bool      `json:"accepting_orders"`
	CreatedAt       time.Time `json:"created_at"`
}

// Register handles account registration
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = actor.RoleBuyer
	}
	// Admin accounts are provisioned out of band
	if req.Role == actor.RoleAdmin {
		respondJSONError(w, "Cannot self-register as admin", http.StatusForbidden)
		return
	}

	if _, exists := h.queryHandler.GetActorByEmail(req.Email); exists {
		respondJSONError(w, "Email already registered", http.StatusConflict)
		return
	}

	newActor, err := h.actorService.Register(r.Context(), req.Email, req.Password, req.Name, req.Role)
	if err != nil {
		switch err {
		case auth.ErrPasswordTooShort:
			respondJSONError(w, "Password must be at least 8 characters", http.StatusBadRequest)
		case actor.ErrInvalidEmail, actor.ErrInvalidName, actor.ErrInvalidRole:
			respondJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			respondJSONError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.setAuthCookies(w, newActor.ID, newActor.Email, newActor.Role, r)

	respondJSON(w, http.StatusCreated, AuthResponse{
		Actor: ActorResponse{
			ID:              newActor.ID,
			Email:           newActor.Email,
			Name:            newActor.Name,
			Role:            newActor.Role,
			AcceptingOrders: newActor.AcceptingOrders,
			CreatedAt:       newActor.CreatedAt,
		},
		Message: "Registration successful",
	})
}

// Login handles account login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	actorModel, exists := h.queryHandler.GetActorByEmail(req.Email)
	if !exists {
		respondJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	if !actorModel.IsActive {
		respondJSONError(w, "Account is deactivated", http.StatusForbidden)
		return
	}

	if !auth.CheckPassword(req.Password, actorModel.PasswordHash) {
		respondJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	h.setAuthCookies(w, actorModel.ID, actorModel.Email, actorModel.Role, r)

	// Record login event (best-effort, don't fail login on error)
	sessionID := uuid.New().String()
	_ = h.actorService.RecordLogin(r.Context(), actorModel.ID, sessionID, r.RemoteAddr, r.UserAgent())

	respondJSON(w, http.StatusOK, AuthResponse{
		Actor: ActorResponse{
			ID:              actorModel.ID,
			Email:           actorModel.Email,
			Name:            actorModel.Name,
			Role:            actorModel.Role,
			AcceptingOrders: actorModel.AcceptingOrders,
			CreatedAt:       actorModel.CreatedAt,
		},
		Message: "Login successful",
	})
}

// Logout handles account logout
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetActorFromContext(r.Context())
	if ok {
		sessionID := ""
		if cookie, err := r.Cookie("session_id"); err == nil {
			sessionID = cookie.Value
		}
		_ = h.actorService.RecordLogout(r.Context(), claims.ActorID, sessionID)
		if sessionID != "" {
			_ = h.readStore.Delete(readmodel.CollectionSessions, sessionID)
		}
	}

	h.clearAuthCookies(w)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Logout successful",
	})
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie("refresh_token")
	if err != nil {
		respondJSONError(w, "No refresh token", http.StatusUnauthorized)
		return
	}

	sessionCookie, err := r.Cookie("session_id")
	if err != nil {
		h.clearAuthCookies(w)
		respondJSONError(w, "No session", http.StatusUnauthorized)
		return
	}

	actorID, err := h.jwtService.ValidateRefreshToken(refreshCookie.Value)
	if err != nil {
		h.clearAuthCookies(w)
		respondJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	sessionData, exists, err := h.readStore.Get(readmodel.CollectionSessions, sessionCookie.Value)
	if err != nil || !exists {
		h.clearAuthCookies(w)
		respondJSONError(w, "Session not found", http.StatusUnauthorized)
		return
	}

	session := sessionData.(*readmodel.SessionReadModel)

	if time.Now().After(session.ExpiresAt) {
		_ = h.readStore.Delete(readmodel.CollectionSessions, sessionCookie.Value)
		h.clearAuthCookies(w)
		respondJSONError(w, "Session expired", http.StatusUnauthorized)
		return
	}

	// Verify refresh token hash matches stored hash
	if hashToken(refreshCookie.Value) != session.RefreshTokenHash {
		h.clearAuthCookies(w)
		respondJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	actorModel, exists := h.queryHandler.GetActor(actorID)
	if !exists {
		h.clearAuthCookies(w)
		respondJSONError(w, "Account not found", http.StatusUnauthorized)
		return
	}
	if !actorModel.IsActive {
		h.clearAuthCookies(w)
		respondJSONError(w, "Account is deactivated", http.StatusForbidden)
		return
	}

	// Rotate: delete old session, mint new tokens and session
	_ = h.readStore.Delete(readmodel.CollectionSessions, sessionCookie.Value)
	h.setAuthCookies(w, actorModel.ID, actorModel.Email, actorModel.Role, r)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Token refreshed",
	})
}

// Me returns the current authenticated actor's information
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	actorModel, exists := h.queryHandler.GetActor(claims.ActorID)
	if !exists {
		respondJSONError(w, "Account not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, ActorResponse{
		ID:              actorModel.ID,
		Email:           actorModel.Email,
		Name:            actorModel.Name,
		Role:            actorModel.Role,
		AcceptingOrders: actorModel.AcceptingOrders,
		CreatedAt:       actorModel.CreatedAt,
	})
}

// ChangePassword handles password change requests
func (h *AuthHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	actorModel, exists := h.queryHandler.GetActor(claims.ActorID)
	if !exists {
		respondJSONError(w, "Account not found", http.StatusNotFound)
		return
	}

	if !auth.CheckPassword(req.CurrentPassword, actorModel.PasswordHash) {
		respondJSONError(w, "Current password is incorrect", http.StatusBadRequest)
		return
	}

	if err := h.actorService.ChangePassword(r.Context(), claims.ActorID, req.NewPassword); err != nil {
		if err == auth.ErrPasswordTooShort {
			respondJSONError(w, "New password must be at least 8 characters", http.StatusBadRequest)
			return
		}
		respondJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Password changed successfully",
	})
}

// SetAvailability lets a seller open or pause their checkout
func (h *AuthHandlers) SetAvailability(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		AcceptingOrders bool `json:"accepting_orders"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.actorService.SetAcceptingOrders(r.Context(), claims.ActorID, req.AcceptingOrders); err != nil {
		if err == actor.ErrNotSeller {
			respondJSONError(w, err.Error(), http.StatusForbidden)
			return
		}
		respondJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"accepting_orders": req.AcceptingOrders})
}

// Helper methods

func (h *AuthHandlers) setAuthCookies(w http.ResponseWriter, actorID, email, role string, r *http.Request) {
	accessToken, accessExpiry, _ := h.jwtService.GenerateAccessToken(actorID, email, role)
	refreshToken, refreshExpiry, _ := h.jwtService.GenerateRefreshToken(actorID)

	sessionID := uuid.New().String()

	// Store session with hashed refresh token
	_ = h.readStore.Set(readmodel.CollectionSessions, sessionID, &readmodel.SessionReadModel{
		ID:               sessionID,
		ActorID:          actorID,
		RefreshTokenHash: hashToken(refreshToken),
		ExpiresAt:        refreshExpiry,
		CreatedAt:        time.Now(),
		IPAddress:        r.RemoteAddr,
		UserAgent:        r.UserAgent(),
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		Expires:  accessExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/auth/refresh",
		Expires:  refreshExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    sessionID,
		Path:     "/",
		Expires:  refreshExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandlers) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     "/auth/refresh",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
