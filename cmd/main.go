package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"

	"loginsight-backend/config"
	_ "loginsight-backend/docs"
	"loginsight-backend/internal/chart"
	"loginsight-backend/internal/controller"
	"loginsight-backend/internal/elasticsearch"
	"loginsight-backend/internal/kafka"
	"loginsight-backend/internal/kvstore"
	"loginsight-backend/internal/llm"
	"loginsight-backend/internal/normalizer"
	"loginsight-backend/internal/savedquery"
	"loginsight-backend/internal/scheduler"
	"loginsight-backend/internal/schema"
	"loginsight-backend/internal/service"
	"loginsight-backend/internal/session"
	"loginsight-backend/internal/translator"
)

// @title           Log Insight Chat API
// @version         1.0
// @description     Ask natural-language questions about your logs and get charts back.

// @host      localhost:8080
// @BasePath  /
// @schemes   http https

// @tag.name         sessions
// @tag.description  Chat sessions and their turns

// @tag.name         chat
// @tag.description  Questions and chart previews

// @tag.name         schema
// @tag.description  Indices and fields the assistant can query

// @tag.name         queries
// @tag.description  Reference queries offered to the model

func main() {
	var wg sync.WaitGroup

	app := fx.New(
		// Core Dependencies
		fx.Provide(
			config.NewConfig,
		),
		// Infrastructure Dependencies
		fx.Provide(
			NewGinEngine,
			kvstore.ProvideStore,
			elasticsearch.NewClients,
			elasticsearch.NewExecutor,
			elasticsearch.NewMappingSource,
			elasticsearch.ProvideTurnArchive,
			kafka.NewTurnPublisher,
			kafka.NewTurnConsumer,
			llm.NewGeminiCompleter,
		),
		// Domain
		fx.Provide(
			NewDiscoverer,
			NewSchemaSource,
			NewReferenceFinder,
			schema.NewOverrideStore,
			savedquery.NewStore,
			schema.ProvideRegistry,
			session.ProvideManager,
			translator.NewTranslator,
			normalizer.NewNormalizer,
			chart.NewRenderer,
			service.NewConversationService,
			service.NewTurnAuditService,
			controller.NewSessionController,
			controller.NewChatController,
			controller.NewSchemaController,
			controller.NewSavedQueryController,
		),
		fx.Invoke(RegisterAPIRoutes,
			RegisterScheduler,
			func(lc fx.Lifecycle, auditService service.TurnAuditService) {
				startTurnAudit(lc, &wg, auditService)
			},
		),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second) // Timeout for startup
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}
	<-app.Done()

	// Initiate shutdown
	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second) // Timeout for graceful shutdown
	defer cancelStop()
	log.Info().Msg("Shutting down application...")
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown due to error or timeout")
	}

	log.Info().Msg("Waiting for background goroutines to finish...")
	wg.Wait()
	log.Info().Msg("All background processes finished. Exiting.")
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func RegisterAPIRoutes(
	lifecycle fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	sessionController *controller.SessionController,
	chatController *controller.ChatController,
	schemaController *controller.SchemaController,
	savedQueryController *controller.SavedQueryController,
) {
	controller.RegisterSessionRoutes(router, sessionController)
	controller.RegisterChatRoutes(router, chatController)
	controller.RegisterSchemaRoutes(router, schemaController)
	controller.RegisterSavedQueryRoutes(router, savedQueryController)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Starting HTTP server on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error().Err(err).Msg("HTTP server ListenAndServe error")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Shutting down HTTP server...")
			return server.Shutdown(ctx)
		},
	})
}

// --- Factory Functions ---

func NewDiscoverer(source elasticsearch.MappingSource) schema.Discoverer {
	return source
}

func NewSchemaSource(registry schema.Registry) translator.SchemaSource {
	return registry
}

func NewReferenceFinder(queries savedquery.Store) translator.ReferenceFinder {
	return queries
}

// --- Invoker Functions ---

func RegisterScheduler(lc fx.Lifecycle, cfg *config.Config, registry schema.Registry, sessions session.Manager) error {
	_, err := scheduler.NewScheduler(lc, cfg, registry, sessions)
	return err
}

// startTurnAudit runs the audit consumer in a goroutine managed by the fx lifecycle.
func startTurnAudit(lc fx.Lifecycle, wg *sync.WaitGroup, auditService service.TurnAuditService) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info().Msg("Starting turn audit goroutine")
			wg.Add(1)
			go auditService.Run(ctx, wg)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			log.Info().Msg("Signaling turn audit goroutine to stop...")
			cancel()
			return nil
		},
	})
}
