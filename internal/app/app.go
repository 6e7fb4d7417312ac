package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fieldTasks/internal/blob"
	"fieldTasks/internal/capture"
	"fieldTasks/internal/completion"
	"fieldTasks/internal/config"
	"fieldTasks/internal/handlers"
	"fieldTasks/internal/logger"
	"fieldTasks/internal/middleware"
	"fieldTasks/internal/migrations"
	"fieldTasks/internal/models/task"
	"fieldTasks/internal/repository/task/inmemory"
	"fieldTasks/internal/repository/task/postgres"
	"fieldTasks/internal/service"
	"fieldTasks/internal/session"
	"fieldTasks/internal/telemetry"
	"fieldTasks/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Storage - всё, что приложение требует от хранилища задач
type Storage interface {
	service.TaskRepository
	service.IssueRepository
	session.RoleStore
}

type App struct {
	config    *config.Config
	server    *http.Server
	router    *chi.Mux
	storage   Storage
	drafts    *completion.Registry
	janitor   *worker.DraftJanitor
	shutdowns []func(context.Context) error // выполняются в обратном порядке
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(context.Context) error, 0),
	}
}

func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}
	a.onShutdown(func(context.Context) error {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
		return nil
	})

	shutdownTracing, err := telemetry.Setup(ctx, a.config.Telemetry.Endpoint, a.config.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("инициализация трассировки: %w", err)
	}
	a.onShutdown(shutdownTracing)

	if err := a.initStorage(ctx); err != nil {
		return err
	}

	store, err := blob.NewOnDisk(a.config.Storage.Root, a.config.Storage.Bucket, a.config.Storage.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("инициализация хранилища фото: %w", err)
	}

	provider, err := session.NewProvider(a.config.Auth.JWTSecret, a.storage)
	if err != nil {
		return fmt.Errorf("инициализация сессий: %w", err)
	}

	taskService := service.NewTaskService(a.storage)
	pipeline := service.NewCompletionService(a.storage, a.storage, store)

	positionOptions := capture.DefaultPositionOptions()
	positionOptions.Timeout = a.config.Capture.LocationTimeout
	a.drafts = completion.NewRegistry(func(p session.Principal, t *task.Task) *completion.Workflow {
		return completion.NewWorkflow(p, t, capture.NewDeviceGeolocator(), pipeline,
			completion.WithPositionOptions(positionOptions))
	})
	a.janitor = worker.NewDraftJanitor(a.drafts, &a.config.Capture.JanitorInterval, &a.config.Capture.DraftTTL)

	a.router = a.buildRouter(
		handlers.NewTaskHandler(taskService),
		handlers.NewCompletionHandler(taskService, a.drafts, a.config.Storage.MaxPhotoBytes),
		provider,
		store,
	)

	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           otelhttp.NewHandler(a.router, a.config.Telemetry.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("App: Инициализация завершена",
		zap.String("repository", a.config.Repository.Type),
		zap.String("addr", a.server.Addr))
	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	switch a.config.Repository.Type {
	case config.RepositoryPostgres:
		if a.config.Database.Migrate {
			if err := migrations.Up(a.config.Database.URL); err != nil {
				return fmt.Errorf("миграции: %w", err)
			}
		}

		storage, err := postgres.New(ctx, a.config.Database.URL, postgres.WithPoolLimits(
			a.config.Database.MaxConnections,
			a.config.Database.MinConnections,
			a.config.Database.IdleTimeout,
		))
		if err != nil {
			return fmt.Errorf("подключение к PostgreSQL: %w", err)
		}
		a.storage = storage
		a.onShutdown(func(context.Context) error {
			storage.Close()
			return nil
		})
	default:
		logger.Warn("App: Используется хранилище в памяти, данные не сохраняются")
		a.storage = inmemory.NewTaskStorage()
	}
	return nil
}

func (a *App) buildRouter(tasks *handlers.TaskHandler, completions *handlers.CompletionHandler, provider *session.Provider, store *blob.Store) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Timeout(a.config.Server.RequestTimeout))
	r.Use(middleware.RateLimit(a.config.Server.RateLimit))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", tasks.HealthCheck) // GET /health

	mediaPrefix := "/media/" + store.Bucket()
	r.Handle(mediaPrefix+"/*", http.StripPrefix(mediaPrefix, store.Handler())) // GET /media/{bucket}/{name}

	r.Route("/api/tasks", func(r chi.Router) {
		r.Use(middleware.Authenticate(provider, session.RoleStaff))
		handlers.TaskRoutes(r, tasks, completions)
	})

	return r
}

// Router отдаёт собранный маршрутизатор, нужен для тестов
func (a *App) Router() http.Handler {
	return a.router
}

// Run запускает сервер и очистку черновиков; останавливается по отмене ctx
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server started", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("сервер: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.janitor.Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("App: Остановка сервера")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.config.Server.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.Close()
	return err
}

// Close освобождает ресурсы в порядке, обратном созданию
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		if err := a.shutdowns[i](ctx); err != nil {
			logger.Warn("App: Ошибка при остановке", zap.Error(err))
		}
	}
	a.shutdowns = nil
}

func (a *App) onShutdown(fn func(context.Context) error) {
	a.shutdowns = append(a.shutdowns, fn)
}
