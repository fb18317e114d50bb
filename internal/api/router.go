package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/example/chefmarket/internal/api/middleware"
	"github.com/example/chefmarket/internal/auth"
)

// RouterConfig wires the handler groups and shared middleware
type RouterConfig struct {
	Handlers       *Handlers
	AuthHandlers   *AuthHandlers
	CourseHandlers *CourseHandlers
	StreamHandlers *StreamHandlers
	JWTService     *auth.JWTService
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	requireAuth := middleware.AuthMiddleware(cfg.JWTService)
	requireAdmin := func(next http.Handler) http.Handler {
		return requireAuth(middleware.RequireRole("admin")(next))
	}
	requireSeller := func(next http.Handler) http.Handler {
		return requireAuth(middleware.RequireRole("seller", "admin")(next))
	}

	// Auth
	mux.HandleFunc("/auth/register", methodHandler(http.MethodPost, cfg.AuthHandlers.Register))
	mux.HandleFunc("/auth/login", methodHandler(http.MethodPost, cfg.AuthHandlers.Login))
	mux.HandleFunc("/auth/refresh", methodHandler(http.MethodPost, cfg.AuthHandlers.Refresh))
	mux.Handle("/auth/logout", requireAuth(methodHandler(http.MethodPost, cfg.AuthHandlers.Logout)))
	mux.Handle("/auth/me", requireAuth(methodHandler(http.MethodGet, cfg.AuthHandlers.Me)))
	mux.Handle("/auth/password", requireAuth(methodHandler(http.MethodPut, cfg.AuthHandlers.ChangePassword)))

	// Seller availability and earnings
	mux.Handle("/sellers/me/availability", requireSeller(methodHandler(http.MethodPut, cfg.AuthHandlers.SetAvailability)))
	mux.Handle("/sellers/me/earnings", requireSeller(methodHandler(http.MethodGet, cfg.Handlers.GetEarnings)))

	// Orders
	mux.Handle("/orders", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cfg.Handlers.GetOrders(w, r)
		case http.MethodPost:
			cfg.Handlers.CreateOrder(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	mux.Handle("/orders/", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/transition") && r.Method == http.MethodPost:
			cfg.Handlers.TransitionOrder(w, r)
		case strings.HasSuffix(path, "/cancel") && r.Method == http.MethodPost:
			cfg.Handlers.CancelOrder(w, r)
		case r.Method == http.MethodGet:
			cfg.Handlers.GetOrder(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	// Admin
	mux.Handle("/admin/orders", requireAdmin(methodHandler(http.MethodGet, cfg.Handlers.GetAllOrders)))

	// Group orders. Share links resolve without auth.
	mux.HandleFunc("/group-orders/shared/", methodHandler(http.MethodGet, cfg.Handlers.GetGroupOrderByToken))

	mux.Handle("/group-orders", requireAuth(methodHandler(http.MethodPost, cfg.Handlers.CreateGroupOrder)))

	mux.Handle("/group-orders/", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/join") && r.Method == http.MethodPost:
			cfg.Handlers.JoinGroupOrder(w, r)
		case strings.HasSuffix(path, "/contribute") && r.Method == http.MethodPost:
			cfg.Handlers.ContributeBudget(w, r)
		case strings.HasSuffix(path, "/close") && r.Method == http.MethodPost:
			cfg.Handlers.CloseGroupOrder(w, r)
		case r.Method == http.MethodGet:
			cfg.Handlers.GetGroupOrder(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	// Courses and progress
	mux.HandleFunc("/courses", methodHandler(http.MethodGet, cfg.CourseHandlers.ListCourses))

	mux.Handle("/courses/", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/position") && r.Method == http.MethodPut:
			cfg.CourseHandlers.RecordPosition(w, r)
		case strings.HasSuffix(path, "/complete") && r.Method == http.MethodPost:
			cfg.CourseHandlers.CompleteModule(w, r)
		case strings.HasSuffix(path, "/progress") && r.Method == http.MethodGet:
			cfg.CourseHandlers.GetCourseProgress(w, r)
		case strings.HasSuffix(path, "/next-module") && r.Method == http.MethodGet:
			cfg.CourseHandlers.NextModule(w, r)
		case r.Method == http.MethodGet:
			cfg.CourseHandlers.GetCourse(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	// Live notifications
	mux.Handle("/notifications/stream", requireAuth(methodHandler(http.MethodGet, cfg.StreamHandlers.Stream)))

	return withLogging(mux)
}

func methodHandler(method string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	}
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[API] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
