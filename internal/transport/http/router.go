package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"
)

type Deps struct {
	Handler  *Handler
	Verifier httpmw.TokenVerifier
	// WS — nil, если push-канал выключен.
	WS http.HandlerFunc

	CORSOrigins    []string
	BodyLimit      int64
	RequestTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	if len(d.CORSOrigins) == 0 {
		d.CORSOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}

	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httpmw.Logging)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{HeaderNextCursor},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// ws живёт дольше любого таймаута запроса
	if d.WS != nil {
		r.Get("/ws/chat/{userId}", d.WS)
	}

	r.Route("/api/chat", func(cr chi.Router) {
		cr.Use(httpmw.BodyLimit(d.BodyLimit))
		cr.Use(middlewareChi.Timeout(d.RequestTimeout))

		cr.With(httpmw.OptionalAuth(d.Verifier)).Get("/users", d.Handler.ListUsers)

		cr.Group(func(pr chi.Router) {
			pr.Use(httpmw.Auth(d.Verifier))

			pr.Route("/{userId}/messages", func(mr chi.Router) {
				mr.Get("/", d.Handler.ListMessages)
				mr.Post("/", d.Handler.CreateMessage)
				mr.Delete("/{messageId}", d.Handler.DeleteMessage)
			})
		})
	})

	return r
}
