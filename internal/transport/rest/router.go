package rest

import (
	"net/http"
	"quizroom/internal/cache"
	"quizroom/internal/service"
	"quizroom/internal/transport/rest/handler"
	"quizroom/internal/transport/rest/middleware"
	"quizroom/internal/transport/ws"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService  *service.AuthService
	RoomService  *service.RoomService
	RoundService *service.RoundService
	Leaderboard  cache.LeaderboardCache
	WSHandler    *ws.Handler
	Gatherer     prometheus.Gatherer
	CORSOrigins  string
	Log          logrus.FieldLogger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	roomHandler := handler.NewRoomHandler(c.RoomService, c.Leaderboard)
	systemHandler := handler.NewSystemHandler(c.RoundService)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.CORSOrigins))
	r.Use(middleware.RequestLogger(c.Log))

	r.HandleFunc("/health", systemHandler.Health).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(c.Gatherer, promhttp.HandlerOpts{})).Methods("GET")

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/time", systemHandler.Time).Methods("GET", "OPTIONS")
	v1.HandleFunc("/rooms/{roomId}/leaderboard", roomHandler.Leaderboard).Methods("GET", "OPTIONS")

	// WebSocket entry point; every room event flows through it
	v1.HandleFunc("/ws", c.WSHandler.ServeWS).Methods("GET")

	// Player routes (require a resume token)
	playerRoutes := v1.NewRoute().Subrouter()
	playerRoutes.Use(authMW.RequirePlayer)

	playerRoutes.HandleFunc("/rooms/{roomId}", roomHandler.Get).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(allowedOrigins string) mux.MiddlewareFunc {
	origins := make(map[string]bool)
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = true
		}
	}
	allowAll := len(origins) == 0 || origins["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin := r.Header.Get("Origin"); origins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
