package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/ba-analyser/internal/analyser"
	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/ratelimit"
	"github.com/kitbuilder587/ba-analyser/internal/session"
)

const shutdownTimeout = 15 * time.Second

type Detector interface {
	Detect(ctx context.Context, text string) (analyser.Detection, error)
	Resolve(ctx context.Context, text string, requested domain.ArtifactType) (domain.ArtifactType, *analyser.Detection, error)
}

type Recorder interface {
	RecordRequest(channel, operation, status string, duration time.Duration)
	IncInFlight()
	DecInFlight()
	RecordRateLimitHit(channel string)
	Handler() http.Handler
}

// Info - то, что отдает GET /api/config. Ключей здесь нет.
type Info struct {
	Provider             string  `json:"llm_provider"`
	Model                string  `json:"model"`
	Threshold            float64 `json:"analysis_quality_threshold"`
	DimensionConcurrency int     `json:"dimension_concurrency"`
	Store                string  `json:"store"`
}

type Deps struct {
	Sessions    *session.Manager
	Detector    Detector
	NewAnalyser func(domain.ArtifactType) analyser.Analyser
	Stories     StoryGenerator
	Limiter     *ratelimit.Limiter
	Metrics     Recorder
	Logger      *zap.Logger
	Info        Info
	CORSOrigins []string
}

type Server struct {
	deps   Deps
	router chi.Router
}

func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &Server{deps: deps}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", s.handleConfig)
		r.Post("/upload", s.handleUpload)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/detect-type", s.handleDetectType)
			r.Post("/analyse", s.handleAnalyse)
			r.Post("/compare", s.handleCompare)
			if s.deps.Stories != nil {
				r.Post("/stories/generate", s.handleGenerateStories)
				r.Post("/stories/refine", s.handleRefineStory)
			}
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.With(s.rateLimit).Post("/", s.handleCreateSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.With(s.rateLimit).Post("/analyse", s.handleSessionAnalyse)
				r.Get("/suggestions", s.handleSuggestions)
				r.With(s.rateLimit).Post("/apply-suggestions", s.handleApplySuggestions)
				r.Put("/artifact", s.handleUpdateArtifact)
				r.Get("/compare", s.handleSessionCompare)
				r.Get("/archive", s.handleArchive)
				if s.deps.Stories != nil {
					r.Get("/stories", s.handleGetSessionStories)
					r.With(s.rateLimit).Post("/stories", s.handleSessionStories)
				}
			})
		})
	})

	return r
}

// Run слушает addr до отмены ctx, потом мягко гасит сервер
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.deps.Logger.Info("http server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.deps.Logger.Info("http server stopping")
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
