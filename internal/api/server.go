// Package api exposes the management HTTP surface: plugin catalogue, instance
// CRUD, schedule editing and display control. It never touches the panel
// directly; display-affecting calls go through the orchestrator.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/inkframe/inkframe/internal/instance"
	"github.com/inkframe/inkframe/internal/orchestrator"
	"github.com/inkframe/inkframe/internal/plugin"
	"github.com/inkframe/inkframe/internal/registry"
	"github.com/inkframe/inkframe/internal/schedule"
)

// Orchestrator is the subset of the content orchestrator the API drives.
type Orchestrator interface {
	Refresh(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	NotifyScheduleChanged(ctx context.Context)
	CurrentSource(ctx context.Context) (orchestrator.Source, error)
	Status(ctx context.Context) (orchestrator.Status, error)
}

// PluginCatalogue is the subset of the registry the API reads.
type PluginCatalogue interface {
	List() []plugin.Descriptor
	Descriptor(id string) (plugin.Descriptor, error)
}

// Config holds API server settings.
type Config struct {
	RateLimitEnabled  bool
	RequestsPerMinute int
	Version           string
}

// Server wires the HTTP handlers to the daemon's stores.
type Server struct {
	cfg       Config
	plugins   PluginCatalogue
	instances *instance.Store
	schedule  *schedule.Store
	orch      Orchestrator
	started   time.Time
}

// NewServer creates the management API server.
func NewServer(cfg Config, plugins PluginCatalogue, instances *instance.Store, sched *schedule.Store, orch Orchestrator) *Server {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 120
	}
	return &Server{
		cfg:       cfg,
		plugins:   plugins,
		instances: instances,
		schedule:  sched,
		orch:      orch,
		started:   time.Now(),
	}
}

// Handler builds the full middleware stack and route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(RequestLogger)
	if s.cfg.RateLimitEnabled {
		r.Use(RateLimit(s.cfg.RequestsPerMinute, time.Minute))
	}

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Get("/plugins", s.handleListPlugins)
		r.Get("/plugins/{id}", s.handleGetPlugin)

		r.Route("/instances", func(r chi.Router) {
			r.Get("/", s.handleListInstances)
			r.Post("/", s.handleCreateInstance)
			r.Get("/{id}", s.handleGetInstance)
			r.Put("/{id}", s.handleUpdateInstance)
			r.Delete("/{id}", s.handleDeleteInstance)
			r.Post("/{id}/enable", s.handleEnableInstance)
			r.Post("/{id}/disable", s.handleDisableInstance)
		})

		r.Route("/schedule", func(r chi.Router) {
			r.Get("/", s.handleGetSchedule)
			r.Delete("/", s.handleClearSchedule)
			r.Post("/slots", s.handleBulkSetSlots)
			r.Put("/slots/{day}/{hour}", s.handleSetSlot)
			r.Delete("/slots/{day}/{hour}", s.handleClearSlot)
			r.Put("/default", s.handleSetDefault)
			r.Delete("/default", s.handleClearDefault)
		})

		r.Route("/display", func(r chi.Router) {
			r.Get("/current", s.handleCurrentSource)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/pause", s.handlePause)
			r.Post("/resume", s.handleResume)
		})
	})

	return otelhttp.NewHandler(r, "inkframe-api")
}

var _ Orchestrator = (*orchestrator.Orchestrator)(nil)
var _ PluginCatalogue = (*registry.Registry)(nil)
