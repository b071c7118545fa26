package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"

	"tour-booking-api/backend"
	"tour-booking-api/config"
	"tour-booking-api/database"
	"tour-booking-api/handlers"
	"tour-booking-api/middleware"
	"tour-booking-api/models"
	"tour-booking-api/queue"
	"tour-booking-api/services/auth"
	"tour-booking-api/services/email"
	"tour-booking-api/storage"
	"tour-booking-api/store"
	"tour-booking-api/utils"
	"tour-booking-api/worker"
)

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, PATCH, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		// Only slow requests and errors are worth the log volume.
		elapsed := time.Since(start)
		if elapsed > 500*time.Millisecond || wrapper.status >= 400 {
			log.Printf(
				"%s %s %s %d %v",
				r.Method,
				r.RequestURI,
				r.RemoteAddr,
				wrapper.status,
				elapsed,
			)
		}
	})
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile | log.Lmicroseconds | log.LUTC)

	numCPU := runtime.NumCPU()
	runtime.GOMAXPROCS(numCPU)
	log.Printf("Server starting with %d CPUs available", numCPU)

	cfg := config.Load()
	log.Printf("Configuration loaded successfully")

	// Database with retry (checkout drafts)
	var db *database.Connection
	var err error
	for retries := 0; retries < 5; retries++ {
		db, err = database.NewConnection(cfg.Database)
		if err == nil {
			break
		}
		retryDelay := time.Duration(retries+1) * time.Second
		log.Printf("Failed to connect to database (attempt %d/5): %v. Retrying in %v...",
			retries+1, err, retryDelay)
		time.Sleep(retryDelay)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()
	log.Println("Successfully connected to database")

	// Redis: job queue plus the session persistence port
	jobQueue, err := queue.NewQueue(cfg.Redis.URL, "email_jobs")
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer jobQueue.Close()
	log.Println("Successfully connected to Redis")

	sessionStorage, err := storage.NewRedis(cfg.Redis.URL, time.Duration(cfg.Session.MaxAge)*time.Second)
	if err != nil {
		log.Fatalf("Failed to initialize session storage: %v", err)
	}
	defer sessionStorage.Close()

	// Services
	backendClient := backend.NewClient(cfg.Backend.BaseURL)
	emailService := email.NewSMTPService(cfg.SMTP)
	jwtService := auth.NewJWTService(cfg.JWT.Secret)

	// Session store bundles
	stores := store.NewManager(backendClient, sessionStorage, 2*time.Hour)
	defer stores.Close()

	// Job worker
	workerConcurrency := cfg.Redis.WorkerConcurrency
	if workerConcurrency < 2 {
		workerConcurrency = 2
	} else if workerConcurrency > 8 {
		workerConcurrency = 8
	}
	emailWorker := worker.NewWorker(jobQueue, emailService, stores)
	emailWorker.Start(workerConcurrency)
	defer emailWorker.Stop()
	log.Printf("Started job worker with %d threads", workerConcurrency)

	// Old abandoned drafts have no resume path once the email link expires
	go func() {
		ticker := time.NewTicker(6 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			purged, err := db.PurgeStaleDrafts(context.Background(), 30*24*time.Hour)
			if err != nil {
				log.Printf("Draft purge failed: %v", err)
				continue
			}
			if purged > 0 {
				log.Printf("Purged %d stale checkout drafts", purged)
			}
		}
	}()

	sessionManager := handlers.NewSessionManager(cfg, stores, jwtService)

	// Handlers
	cartHandler := handlers.NewCartHandler(sessionManager)
	checkoutHandler := handlers.NewCheckoutHandler(sessionManager, backendClient, db, jobQueue)
	paymentHandler := handlers.NewPaymentHandler(sessionManager, jobQueue)
	authHandler := handlers.NewAuthHandler(sessionManager, backendClient)
	proxyHandler := handlers.NewProxyHandler(backendClient)

	rateLimiter := middleware.NewRateLimiter(jobQueue.Client())
	loginLimit := rateLimiter.Limit(5, 15*time.Minute,
		"Too many login attempts. Please try again in 15 minutes.")
	paymentLimit := rateLimiter.Limit(10, time.Minute,
		"Too many payment attempts. Please slow down.")

	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Use(loggingMiddleware)

	api := router.PathPrefix("/api").Subrouter()

	// Cart
	api.HandleFunc("/cart", cartHandler.GetCart).Methods("GET", "OPTIONS")
	api.HandleFunc("/cart", cartHandler.AddItem).Methods("POST")
	api.HandleFunc("/cart/items", cartHandler.AddItem).Methods("POST", "OPTIONS")
	api.HandleFunc("/cart/items/{id}", cartHandler.RemoveItem).Methods("DELETE", "OPTIONS")

	// Checkout wizard
	api.HandleFunc("/checkout", checkoutHandler.GetCheckout).Methods("GET", "OPTIONS")
	api.HandleFunc("/checkout/contact", checkoutHandler.UpdateContact).Methods("PUT", "OPTIONS")
	api.HandleFunc("/checkout/participants/{index}", checkoutHandler.UpdateParticipant).Methods("PUT", "OPTIONS")
	api.HandleFunc("/checkout/participants/{index}/copy-first", checkoutHandler.CopyFromFirstParticipant).Methods("POST", "OPTIONS")
	api.HandleFunc("/checkout/payment-method", checkoutHandler.SelectPaymentMethod).Methods("PUT", "OPTIONS")
	api.HandleFunc("/checkout/step/next", checkoutHandler.NextStep).Methods("POST", "OPTIONS")
	api.HandleFunc("/checkout/step/prev", checkoutHandler.PrevStep).Methods("POST", "OPTIONS")
	api.HandleFunc("/checkout/draft", checkoutHandler.SaveDraft).Methods("POST", "OPTIONS")
	api.HandleFunc("/checkout/draft/{id}", checkoutHandler.LoadDraft).Methods("GET", "OPTIONS")
	api.HandleFunc("/checkout/draft/{id}", checkoutHandler.DeleteDraft).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/checkout/submit", checkoutHandler.Submit).Methods("POST", "OPTIONS")

	// Payments
	api.Handle("/payments", paymentLimit(http.HandlerFunc(paymentHandler.Initialize))).Methods("POST", "OPTIONS")
	api.HandleFunc("/payments/confirm", paymentHandler.Confirm).Methods("GET", "OPTIONS")
	api.HandleFunc("/payments/{id}/status", paymentHandler.Status).Methods("GET", "OPTIONS")
	api.HandleFunc("/payments/{id}/poll", paymentHandler.StartPolling).Methods("POST", "OPTIONS")
	api.HandleFunc("/payments/{id}/poll", paymentHandler.StopPolling).Methods("DELETE", "OPTIONS")

	// Auth
	api.Handle("/auth/login", loginLimit(http.HandlerFunc(authHandler.Login))).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/session", authHandler.Session).Methods("GET", "OPTIONS")

	// Public catalog (transparent proxy)
	api.HandleFunc("/tours", proxyHandler.Forward("/api/tours")).Methods("GET", "OPTIONS")
	api.HandleFunc("/tours/{id}", proxyHandler.Forward("/api/tours/{id}")).Methods("GET", "OPTIONS")
	api.HandleFunc("/tours/{id}/schedules", proxyHandler.Forward("/api/tours/{id}/schedules")).Methods("GET", "OPTIONS")
	api.HandleFunc("/schedules/{id}", proxyHandler.Forward("/api/schedules/{id}")).Methods("GET", "OPTIONS")

	// Admin back-office (role-gated transparent proxy)
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin(sessionManager))
	admin.HandleFunc("/tours", proxyHandler.Forward("/api/admin/tours")).Methods("GET", "POST")
	admin.HandleFunc("/tours/{id}", proxyHandler.Forward("/api/admin/tours/{id}")).Methods("GET", "PUT", "PATCH", "DELETE")
	admin.HandleFunc("/schedules", proxyHandler.Forward("/api/admin/schedules")).Methods("GET", "POST")
	admin.HandleFunc("/schedules/{id}", proxyHandler.Forward("/api/admin/schedules/{id}")).Methods("GET", "PUT", "PATCH", "DELETE")
	admin.HandleFunc("/bookings", proxyHandler.Forward("/api/admin/bookings")).Methods("GET")
	admin.HandleFunc("/bookings/{id}", proxyHandler.Forward("/api/admin/bookings/{id}")).Methods("GET", "PATCH", "DELETE")
	admin.HandleFunc("/users", proxyHandler.Forward("/api/admin/users")).Methods("GET", "POST")
	admin.HandleFunc("/users/{id}", proxyHandler.Forward("/api/admin/users/{id}")).Methods("GET", "PUT", "DELETE")
	admin.HandleFunc("/media", proxyHandler.Forward("/api/admin/media")).Methods("GET", "POST")
	admin.HandleFunc("/media/{id}", proxyHandler.Forward("/api/admin/media/{id}")).Methods("DELETE")
	admin.HandleFunc("/reports/{kind}", proxyHandler.Forward("/api/admin/reports/{kind}")).Methods("GET")

	// Local op: requeue a failed email job by id
	admin.HandleFunc("/jobs/{id}/retry", func(w http.ResponseWriter, r *http.Request) {
		jobID := mux.Vars(r)["id"]
		if err := jobQueue.RetryJob(r.Context(), jobID); err != nil {
			log.Printf("Job retry failed for %s: %v", jobID, err)
			utils.SendErrorResponse(w, http.StatusNotFound, err.Error())
			return
		}
		utils.SendSuccessResponse(w, models.APIResponse{
			Status:  "success",
			Message: "Job requeued",
		})
	}).Methods("POST")

	startTime := time.Now()

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		health := struct {
			Status    string `json:"status"`
			Time      string `json:"time"`
			Database  string `json:"database"`
			Redis     string `json:"redis"`
			Backend   string `json:"backend"`
			Uptime    string `json:"uptime"`
			GoVersion string `json:"go_version"`
		}{
			Status:    "ok",
			Time:      time.Now().Format(time.RFC3339),
			Database:  "connected",
			Redis:     "connected",
			Backend:   "reachable",
			Uptime:    fmt.Sprintf("%v", time.Since(startTime)),
			GoVersion: runtime.Version(),
		}

		dbCtx, dbCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer dbCancel()
		if err := db.GetDB().PingContext(dbCtx); err != nil {
			health.Status = "degraded"
			health.Database = "error"
		}

		redisCtx, redisCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer redisCancel()
		if err := jobQueue.Client().Ping(redisCtx).Err(); err != nil {
			health.Status = "degraded"
			health.Redis = "error"
		}

		if resp, err := backendClient.Do(ctx, http.MethodGet, "/api/health", nil, "", nil); err != nil {
			health.Status = "degraded"
			health.Backend = "error"
		} else {
			resp.Body.Close()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	}).Methods("GET")

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	<-stop
	log.Println("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Stopping email worker...")
	emailWorker.Stop()

	log.Println("Stopping session stores...")
	stores.Close()

	time.Sleep(2 * time.Second)

	log.Println("Closing database connections...")
	db.Close()

	log.Println("Closing Redis connections...")
	jobQueue.Close()
	sessionStorage.Close()

	log.Println("Server exited properly")
}
