package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jupiterclapton/agora/internal/adapters/primary/auth"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

const defaultMaxUploadBytes = 32 << 20

// Services regroupe les ports primaires exposés en REST.
type Services struct {
	Identity ports.IdentityService
	Profiles ports.ProfileService
	Graph    ports.GraphService
	Posts    ports.PostService
	Comments ports.CommentService
	Likes    ports.LikeService
	Stories  ports.StoryService
	Chat     ports.ChatService
	Feed     ports.FeedService
}

type Options struct {
	CORSOrigins []string
	// Limite par IP sur /auth (requêtes par seconde + rafale).
	AuthRateLimit float64
	AuthBurst     int
	// PublicURL sert à construire le lien de réinitialisation du mot de passe.
	PublicURL      string
	SecureCookies  bool
	MaxUploadBytes int64
}

// HealthCheck est une sonde de dépendance (Postgres, Redis, NATS).
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	svc      Services
	opts     Options
	logger   *slog.Logger
	validate *validator.Validate
	realtime http.Handler
	health   []HealthCheck
}

// NewServer : realtime est monté sur /api/v1/ws derrière l'auth (peut être nil).
func NewServer(svc Services, opts Options, logger *slog.Logger, realtime http.Handler, checks ...HealthCheck) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.AuthRateLimit <= 0 {
		opts.AuthRateLimit = 1
	}
	if opts.AuthBurst <= 0 {
		opts.AuthBurst = 10
	}
	return &Server{
		svc:      svc,
		opts:     opts,
		logger:   logger.With("component", "http.Server"),
		validate: newValidator(),
		realtime: realtime,
		health:   checks,
	}
}

// Handler construit le routeur complet, CORS et tracing compris.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.observe, s.recoverer)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())

	protected := auth.Middleware(s.svc.Identity, auth.Options{OnError: s.writeError})

	r.Route("/api/v1", func(r chi.Router) {
		// --- AUTH ---
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(s.rateLimit(newIPLimiter(s.opts.AuthRateLimit, s.opts.AuthBurst)))
				r.Post("/signup", s.signup)
				r.Post("/login", s.login)
				r.Post("/refresh-token", s.refreshToken)
				r.Post("/forget-password", s.forgotPassword)
				r.Post("/reset-password/{token}", s.resetPassword)
			})
			r.Group(func(r chi.Router) {
				r.Use(protected)
				r.Post("/logout", s.logout)
				r.Patch("/update-password", s.updatePassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(protected)

			// --- PROFILS ---
			r.Route("/profiles", func(r chi.Router) {
				r.Get("/me", s.getMe)
				r.Patch("/me", s.updateMe)
				r.Delete("/me", s.deactivateMe)
				r.Get("/search", s.searchProfiles)
				r.Post("/subscriptions", s.subscribe)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.getProfile)
					r.Get("/relation", s.relation)
					r.Get("/followers", s.followers)
					r.Get("/following", s.following)
					r.Post("/follow", s.follow)
					r.Delete("/follow", s.unfollow)
					r.Post("/block", s.block)
					r.Delete("/block", s.unblock)
					r.Get("/posts", s.profilePosts)
					r.Get("/stories", s.profileStories)
				})
			})

			// --- POSTS ---
			r.Route("/posts", func(r chi.Router) {
				r.Post("/", s.createPost)
				r.Get("/", s.feed)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.getPost)
					r.Patch("/", s.updatePost)
					r.Delete("/", s.deletePost)
					r.Post("/share", s.sharePost)
					r.Post("/likes", s.likePost)
					r.Delete("/likes", s.unlikePost)
					r.Get("/comments", s.listComments)
					r.Post("/comments", s.addComment)
				})
			})

			// --- COMMENTAIRES ---
			r.Route("/comments/{id}", func(r chi.Router) {
				r.Patch("/", s.updateComment)
				r.Delete("/", s.deleteComment)
				r.Post("/replies", s.replyToComment)
				r.Post("/likes", s.likeComment)
				r.Delete("/likes", s.unlikeComment)
			})

			// --- STORIES ---
			r.Route("/stories", func(r chi.Router) {
				r.Post("/", s.createStory)
				r.Get("/archive", s.storyArchive)
				r.Delete("/{id}", s.deleteStory)
			})

			// --- CHAT ---
			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", s.openConversation)
				r.Get("/with/{profileId}", s.conversationWith)
				r.Get("/{id}/messages", s.listMessages)
				r.Post("/{id}/messages", s.sendMessage)
			})
			r.Patch("/messages/{id}", s.updateMessage)
			r.Delete("/messages/{id}", s.deleteMessage)
		})

		// --- TEMPS RÉEL ---
		if s.realtime != nil {
			r.With(auth.Middleware(s.svc.Identity, auth.Options{AllowQuery: true, OnError: s.writeError})).
				Handle("/ws", s.realtime)
		}
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	return otelhttp.NewHandler(c.Handler(r), "agora.http")
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	report := make(map[string]string, len(s.health))
	for _, h := range s.health {
		if err := h.Check(ctx); err != nil {
			s.logger.WarnContext(ctx, "health check failed", "dependency", h.Name, "error", err)
			report[h.Name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		report[h.Name] = "up"
	}
	writeJSON(w, status, report)
}

// Run sert jusqu'à l'annulation de ctx puis draine les requêtes en cours.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("🚀 HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("🛑 Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
