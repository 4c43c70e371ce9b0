package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Simplici0/molduraria/internal/catalog"
	"github.com/Simplici0/molduraria/internal/idempotency"
	"github.com/Simplici0/molduraria/internal/ledger"
	"github.com/Simplici0/molduraria/internal/marketplace"
	"github.com/Simplici0/molduraria/internal/metrics"
	"github.com/Simplici0/molduraria/internal/orders"
	"github.com/Simplici0/molduraria/internal/pricing"
)

type server struct {
	log      *zap.Logger
	products *catalog.Store
	calc     countedCalculator
	orders   *orders.Service
	ledger   *ledger.Store
	importer *marketplace.Importer
	meli     *marketplace.MeliClient
	metrics  *metrics.Metrics
	validate *validator.Validate

	maxUploadBytes int64
}

type serverOptions struct {
	Log            *zap.Logger
	Metrics        *metrics.Metrics
	Dedup          idempotency.Store
	DedupTTL       time.Duration
	Meli           *marketplace.MeliClient
	MaxUploadBytes int64
}

func newServer(database *sql.DB, opts serverOptions) *server {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	products := catalog.NewStore(database)
	calc := countedCalculator{calc: pricing.NewCalculator(products, pricing.DefaultRules()), metrics: opts.Metrics}
	book := ledger.NewStore(database)
	orderService := orders.NewService(orders.NewStore(database), calc, book, opts.Log)

	return &server{
		log:            opts.Log,
		products:       products,
		calc:           calc,
		orders:         orderService,
		ledger:         book,
		importer:       marketplace.NewImporter(orderService, opts.Dedup, opts.DedupTTL, opts.Metrics, opts.Log),
		meli:           opts.Meli,
		metrics:        opts.Metrics,
		validate:       newValidator(),
		maxUploadBytes: opts.MaxUploadBytes,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", s.handleProductsList)
		r.Post("/products", s.handleProductCreate)
		r.Get("/products/{id}", s.handleProductGet)
		r.Put("/products/{id}", s.handleProductUpdate)
		r.Post("/products/{id}/active", s.handleProductSetActive)

		r.Post("/calculator", s.handleCalculate)

		r.Get("/orders", s.handleOrdersList)
		r.Post("/orders", s.handleOrderCreate)
		r.Get("/orders/{id}", s.handleOrderGet)
		r.Post("/orders/{id}/stage", s.handleOrderMove)
		r.Get("/board", s.handleBoard)

		r.Get("/ledger", s.handleLedgerList)
		r.Post("/ledger", s.handleLedgerRecord)
		r.Get("/ledger/summary", s.handleLedgerSummary)
		r.Delete("/ledger/{id}", s.handleLedgerDelete)

		r.Post("/imports/mercadolivre/sync", s.handleMeliSync)
		r.Post("/imports/{marketplace}", s.handleImportFile)
	})

	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
