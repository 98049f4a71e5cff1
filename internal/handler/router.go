/*
Package handler provides the HTTP handlers and routing setup for the Group Navigation server.

Router applies logging, metrics, CORS and rate limiting before delegating to the REST
handlers under /api and to the WebSocket endpoint at /ws.
*/
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"groupnav/internal/metrics"
	"groupnav/internal/pkg/auth/jwt"
	"groupnav/internal/pkg/errs"
	"groupnav/internal/pkg/logx"
	"groupnav/internal/pkg/resp"
)

// Router builds the application's route table.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger("/health", "/metrics"))
	r.Use(recordMetrics)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondJSON(w, r, http.StatusOK, map[string]string{
			"app":    "groupnav",
			"status": "ok",
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	identity := jwt.IdentityExtractorMiddleware(deps.Tokens)

	r.Route("/api", func(api chi.Router) {
		api.Use(identity)

		api.Route("/auth", func(auth chi.Router) {
			auth.Use(authRateLimit(deps.Config.RateLimit.AuthRequests, deps.Config.RateLimit.AuthWindow))
			auth.Post("/register", HandleRegister(deps))
			auth.Post("/login", HandleLogin(deps))
			auth.Post("/change-password", HandleChangePassword(deps))
		})

		api.Get("/presence", HandlePresence(deps))

		api.Route("/profiles", func(profiles chi.Router) {
			profiles.Use(jwt.RequireIdentity)

			profiles.Get("/", HandleListProfiles(deps))
			profiles.Post("/", HandleCreateProfile(deps))
			profiles.Post("/me/avatar/presign", HandlePresignAvatar(deps))

			profiles.Route("/{id}", func(one chi.Router) {
				one.Get("/", HandleGetProfile(deps))
				one.Put("/", HandleUpdateProfile(deps))
				one.Delete("/", HandleDeleteProfile(deps))
				one.Get("/location", HandleGetLocation(deps))
				one.Get("/avatar", HandleAvatarDownload(deps))
			})
		})
	})

	r.With(identity, deps.SocketLimiter.Middleware).Get("/ws", HandleWebSocket(wsUpgrader, deps))

	return r
}

func authRateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RateLimited.WithLabelValues("auth").Inc()
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
		}),
	)
}

// recordMetrics counts every request by method, route pattern and status.
func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 && websocket.IsWebSocketUpgrade(r) {
			status = http.StatusSwitchingProtocols
		}
		metrics.RecordAPIRequest(r.Method, route, status, time.Since(start))
	})
}
