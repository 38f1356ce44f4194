package api

import (
	"ChatRelay/internal/config"
	"ChatRelay/internal/http-server/handlers/chats"
	"ChatRelay/internal/http-server/handlers/errors"
	"ChatRelay/internal/http-server/handlers/key"
	"ChatRelay/internal/http-server/handlers/performance"
	"ChatRelay/internal/http-server/middleware/authenticate"
	"ChatRelay/internal/http-server/middleware/ratelimit"
	"ChatRelay/internal/lib/api/response"
	"ChatRelay/internal/lib/sl"
	"ChatRelay/internal/ws"
	"context"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"log/slog"
	"net"
	"net/http"
	"time"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	chats.Core
	performance.Core
}

type Auth interface {
	authenticate.Authenticate
	ws.Authenticator
	key.Core
}

// NewRouter wires every route: the two socket endpoints, the authenticated
// REST API and the operational endpoints.
func NewRouter(conf *config.Config, log *slog.Logger, handler Handler, auth Auth, hub *ws.Hub) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   conf.Websocket.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID", "X-User"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok(map[string]int{"connections": hub.Count()}))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, w, r)
	})
	router.Get("/ws/admin", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeAdminWs(hub, auth, w, r)
	})

	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(middleware.Timeout(10 * time.Second))
		v1.Use(render.SetContentType(render.ContentTypeJSON))
		if conf.Listen.RateLimit > 0 {
			v1.Use(ratelimit.ByIP(conf.Listen.RateLimit, time.Minute))
		}
		v1.Use(authenticate.New(log, auth))
		if conf.Listen.RateLimit > 0 {
			v1.Use(ratelimit.ByAgent(conf.Listen.RateLimit, time.Minute))
		}

		v1.Route("/chats", func(r chi.Router) {
			r.Get("/", chats.List(log, handler))
			r.Get("/{user_id}/messages", chats.Messages(log, handler))
			r.Post("/{user_id}/reset", chats.Reset(log, handler))
			r.Post("/{user_id}/close", chats.Close(log, handler))
		})
		v1.Get("/performance", performance.Get(log, handler))
		v1.Route("/key", func(r chi.Router) {
			r.Post("/new", key.Generate(log, auth))
		})
	})

	return router
}

// New serves the API until ctx is done.
func New(ctx context.Context, conf *config.Config, log *slog.Logger, handler Handler, auth Auth, hub *ws.Hub) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:           NewRouter(conf, log, handler, auth, hub),
		ErrorLog:          httpLog,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIP, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.httpServer.Shutdown(shutdownCtx)
	}()

	server.log.Info("starting api server", slog.String("address", serverAddress))

	if err = server.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
