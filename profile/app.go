package profile

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/alovak/cardprofile/internal/docstore"
	"github.com/alovak/cardprofile/internal/middleware"
	"github.com/alovak/cardprofile/internal/payment"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	_ "github.com/lib/pq"
)

// App is the main application. It wires the document store, the profile
// state machine and the HTTP server, and is responsible for starting and
// stopping them.
type App struct {
	srv     *http.Server
	wg      *sync.WaitGroup
	Addr    string
	Profile *Service
	logger  *slog.Logger
	config  *Config
	closer  func() error
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "cardprofile"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:     &sync.WaitGroup{},
		logger: logger,
		config: config,
	}
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	router := chi.NewRouter()
	router.Use(middleware.NewStructuredLogger(a.logger))

	// Choose the store backend: default to pg for runtime; allow mem only
	// when explicitly enabled for tests
	var store docstore.Store
	backend := a.config.StoreBackend
	if backend == "" {
		backend = "pg"
	}
	allowMem := getenv("ALLOW_MEM_BACKEND_FOR_TESTS", "false") == "true"
	switch backend {
	case "pg":
		if a.config.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required for pg backend")
		}
		db, err := sql.Open("postgres", a.config.DBDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxIdleConns(5)
		db.SetMaxOpenConns(10)
		if err := db.Ping(); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		pg := docstore.NewPostgres(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			return fmt.Errorf("provisioning documents table: %w", err)
		}
		store = pg
		a.closer = db.Close
	case "redis":
		rdb, err := docstore.NewRedis(a.config.RedisAddr, a.config.RedisPassword, a.config.RedisDB)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		store = rdb
		a.closer = rdb.Close
	case "mem":
		if !allowMem {
			return fmt.Errorf("mem store is disabled at runtime; set ALLOW_MEM_BACKEND_FOR_TESTS=true only in tests")
		}
		store = docstore.NewMemory()
	default:
		return fmt.Errorf("unsupported STORE_BACKEND=%s", backend)
	}

	client := docstore.NewClient(store, a.config.CardKey)
	sim := payment.New(a.config.PaymentDelay)
	a.Profile = NewService(client, sim, a.logger, a.config.LoadTimeout)

	api := NewAPI(a.Profile)
	api.AppendRoutes(router)

	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := client.HealthCheck(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Establish the initial state before serving traffic. A timeout or
	// store error surfaces as a notice; it never blocks startup.
	if err := a.Profile.Load(context.Background()); err != nil {
		a.logger.Error("initial load", "err", err)
	}

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler: router,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	a.srv.Shutdown(context.Background())

	if a.closer != nil {
		if err := a.closer(); err != nil {
			a.logger.Error("closing store", "err", err)
		}
	}

	a.wg.Wait()

	a.logger.Info("app stopped")
}
