package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hugh/go-studio/internal/api/handlers"
	"github.com/hugh/go-studio/internal/api/middleware"
	"github.com/hugh/go-studio/internal/api/validation"
	"github.com/hugh/go-studio/internal/auth"
	"github.com/hugh/go-studio/internal/lrs"
	"github.com/hugh/go-studio/internal/organization"
	"github.com/hugh/go-studio/internal/policy"
	"github.com/hugh/go-studio/internal/project"
	"github.com/hugh/go-studio/internal/publish"
	"github.com/hugh/go-studio/internal/team"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB     *gorm.DB
	Redis  *redis.Client // optional; enables the shared rate limiter
	Logger *slog.Logger

	JWTService    *auth.JWTService
	AuthService   *auth.Service
	Policy        policy.Authorizer
	Organizations *organization.Service
	Teams         *team.Service
	Projects      *project.Service
	Publisher     *publish.Service
	Recorder      lrs.Recorder
	Statements    *lrs.Builder

	AllowedOrigins []string
	RateLimitReqs  int
	RateLimitSecs  int
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimw.RequestID)
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.RateLimitReqs > 0 {
		var limiter middleware.Limiter
		if cfg.Redis != nil {
			limiter = middleware.NewRedisLimiter(cfg.Redis, cfg.RateLimitReqs, cfg.RateLimitSecs)
		} else {
			limiter = middleware.NewMemoryLimiter(cfg.RateLimitReqs, cfg.RateLimitSecs)
		}
		r.Use(middleware.RateLimit(limiter, cfg.Logger))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	v := validation.New()

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, v, cfg.Logger)
	orgHandler := handlers.NewOrganizationHandler(cfg.Organizations, cfg.Policy, v, cfg.Logger)
	teamHandler := handlers.NewTeamHandler(cfg.Teams, v, cfg.Logger)
	projectHandler := handlers.NewProjectHandler(cfg.Projects, v, cfg.Logger)
	publishHandler := handlers.NewPublishHandler(cfg.Publisher, v, cfg.Logger)
	xapiHandler := handlers.NewXAPIHandler(cfg.Recorder, cfg.Statements, cfg.Projects, v, cfg.Logger)

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))

			r.Get("/me", authHandler.Me)

			r.Route("/organizations", func(r chi.Router) {
				r.Get("/", orgHandler.List)
				r.Post("/", orgHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", orgHandler.Get)
					r.Put("/", orgHandler.Update)
					r.Delete("/", orgHandler.Delete)
					r.Get("/parent", orgHandler.Parent)
					r.Put("/parent", orgHandler.SetParent)
					r.Get("/children", orgHandler.Children)
					r.Get("/ancestors", orgHandler.Ancestors)
					r.Get("/activities", orgHandler.Activities)
					r.Get("/projects", orgHandler.Projects)
					r.Get("/users", orgHandler.Members)
					r.Post("/users", orgHandler.AddUser)
					r.Delete("/users/{userID}", orgHandler.RemoveUser)
					r.Get("/users/{userID}/role", orgHandler.Role)
				})
			})

			r.Route("/teams", func(r chi.Router) {
				r.Get("/", teamHandler.List)
				r.Post("/", teamHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", teamHandler.Get)
					r.Put("/", teamHandler.Update)
					r.Delete("/", teamHandler.Delete)
					r.Post("/users", teamHandler.AddMembers)
					r.Delete("/users/{userID}", teamHandler.RemoveMember)
					r.Post("/projects", teamHandler.AddProjects)
					r.Delete("/projects/{projectID}", teamHandler.RemoveProject)
				})
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.List)
				r.Post("/", projectHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", projectHandler.Get)
					r.Put("/", projectHandler.Update)
					r.Delete("/", projectHandler.Delete)
					r.Post("/clone", projectHandler.Clone)
					r.Post("/playlists", projectHandler.CreatePlaylist)
				})
			})

			r.Route("/playlists/{id}", func(r chi.Router) {
				r.Get("/", projectHandler.GetPlaylist)
				r.Put("/", projectHandler.UpdatePlaylist)
				r.Delete("/", projectHandler.DeletePlaylist)
				r.Post("/activities", projectHandler.CreateActivity)
				r.Post("/publish", publishHandler.Publish)
				r.Get("/publications", publishHandler.Publications)
			})

			r.Route("/activities/{id}", func(r chi.Router) {
				r.Get("/", projectHandler.GetActivity)
				r.Put("/", projectHandler.UpdateActivity)
				r.Delete("/", projectHandler.DeleteActivity)
			})

			r.Route("/lms-settings", func(r chi.Router) {
				r.Get("/", publishHandler.ListSettings)
				r.Post("/", publishHandler.CreateSetting)
				r.Get("/{id}", publishHandler.GetSetting)
				r.Delete("/{id}", publishHandler.DeleteSetting)
				r.Post("/{id}/validate", publishHandler.ValidateSetting)
			})

			r.Post("/xapi/statements", xapiHandler.Statements)
			r.Post("/xapi/events", xapiHandler.Event)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":["Not found"]}`))
	})

	return &Router{r}
}
