package handler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"knowledge-nest-backend/pkg/config"
	"knowledge-nest-backend/pkg/database"
	"knowledge-nest-backend/pkg/handlers"
	"knowledge-nest-backend/pkg/logger"
	customMiddleware "knowledge-nest-backend/pkg/middleware"
	"knowledge-nest-backend/pkg/nest"
	"knowledge-nest-backend/pkg/storage"
	"knowledge-nest-backend/pkg/utils"
)

var (
	routerOnce sync.Once
	router     *chi.Mux
	routerErr  error
)

// Handler is the serverless entry point. The router and its backing
// connections are built once per cold start and reused across warm
// invocations.
func Handler(w http.ResponseWriter, r *http.Request) {
	routerOnce.Do(func() {
		router, routerErr = BuildRouter(config.GetCached())
	})
	if routerErr != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+routerErr.Error())
		return
	}
	router.ServeHTTP(w, r)
}

// BuildRouter assembles the full application: config validation, stores,
// service, middleware and routes.
func BuildRouter(cfg *config.Config) (*chi.Mux, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.Init(cfg.Debug)

	db, err := database.GetDatabase(database.DatabaseConfig{
		PostgresDSN: cfg.PostgresDSN,
		UseMemoryDB: cfg.UseMemoryDB,
		Debug:       cfg.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}

	var blobs storage.BlobStore
	if cfg.UseMemoryBlobs() {
		log.Warnw("no S3 bucket configured, using in-memory blob store")
		blobs = storage.NewMemoryBlobStore()
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		blobs, err = storage.NewS3BlobStore(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			KeyPrefix:       cfg.S3KeyPrefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UploadURLTTL:    cfg.UploadURLTTL,
			DownloadURLTTL:  cfg.DownloadURLTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("blob store init: %w", err)
		}
	}

	svc := nest.NewService(db, blobs, log, cfg.MaxUploadBytes)

	r := chi.NewRouter()
	setupMiddleware(r, cfg)
	setupRoutes(r, cfg, db, svc)
	return r, nil
}

func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(cfg, logger.L()))
	router.Use(customMiddleware.Recovery(cfg, logger.L()))

	router.Use(customMiddleware.CORS(cfg))

	router.Use(middleware.Timeout(25 * time.Second))
	router.Use(middleware.Compress(5))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface, svc *nest.Service) {
	nestHandler := handlers.NewNestHandler(cfg, svc, logger.L())
	filesHandler := handlers.NewFilesHandler(cfg, svc, logger.L())
	orgsHandler := handlers.NewOrgsHandler(cfg, db, logger.L())

	// Health check
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(); err != nil {
			utils.WriteInternalServerErrorResponse(w, "database unavailable")
			return
		}
		utils.WriteSuccessResponse(w, map[string]interface{}{"status": "ok"})
	})

	// Public byte-proxy endpoints; username travels in the request because
	// these are fetched from iframes and download anchors
	router.Group(func(r chi.Router) {
		r.Use(customMiddleware.MaxBodySize(1 << 20))
		r.Use(customMiddleware.ContentTypeJSON)
		r.Post("/preview", filesHandler.PreviewPost)
		r.Get("/preview", filesHandler.PreviewGet)
		r.Post("/download", filesHandler.DownloadPost)
	})

	router.Route("/api", func(r chi.Router) {
		// Organization registration and lookup are open: orgs are created
		// during signup, before any token exists
		r.Route("/orgs", func(r chi.Router) {
			r.Use(customMiddleware.ContentTypeJSON)
			r.Post("/", orgsHandler.CreateOrganization)
			r.Get("/{id}", orgsHandler.GetOrganization)

			// Operator routes
			r.Group(func(r chi.Router) {
				r.Use(customMiddleware.RequireAPIKey(cfg.AdminAPIKey))
				r.Post("/verify", orgsHandler.VerifyOrganization)
				r.Post("/members", orgsHandler.UpsertMembership)
				r.Delete("/members/{username}", orgsHandler.DeactivateMembership)
			})
		})

		// Authenticated Knowledge Nest API
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg))
			r.Use(customMiddleware.MaxBodySize(1 << 20))

			r.Route("/nest", func(r chi.Router) {
				// upload-url takes no body, so it skips the content-type gate
				r.Post("/upload-url", nestHandler.GenerateUploadURL)
				r.With(customMiddleware.ContentTypeJSON).Post("/files", nestHandler.RecordUpload)
				r.Get("/files", nestHandler.ListFiles)
				r.Get("/files/{storage_id}/url", nestHandler.GetDownloadURL)
				r.Delete("/files/{storage_id}", nestHandler.DeleteFile)
				r.Get("/subjects", nestHandler.ListSubjects)
				r.Get("/context", nestHandler.GetOrgContext)
			})
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path))
	})
}
