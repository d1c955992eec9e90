package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"

	"github.com/cadooga/admin-backend/internal/audit"
	"github.com/cadooga/admin-backend/internal/database"
	mW "github.com/cadooga/admin-backend/internal/middleware"
	"github.com/cadooga/admin-backend/internal/services"
)

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("env", "APP_ENV")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	auditRecorder := audit.NewRecorder(db)

	authService := services.NewAuthService(db, redisClient)
	userService := services.NewUserService(db, auditRecorder)
	exportService := services.NewExportService(db)
	statsService := services.NewStatsService(db, redisClient)
	adminService := services.NewAdminService(db, auditRecorder)
	linkService := services.NewLinkService(db)

	// Initialize auth middleware with DB and Redis
	mW.InitAuthMiddleware(db, redisClient)

	r := newRouter(authService, userService, exportService, statsService, adminService, linkService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

// newRouter assembles the full route table. The two logins and the
// bootstrap route are the only endpoints outside the auth middleware;
// every mutation is reachable by both PATCH and POST.
func newRouter(
	authService *services.AuthService,
	userService *services.UserService,
	exportService *services.ExportService,
	statsService *services.StatsService,
	adminService *services.AdminService,
	linkService *services.LinkService,
) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Standalone bootstrap route, kept outside the authenticated API
	r.Post("/create-admin", adminService.BootstrapAdmin)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/login", authService.Login)
		r.Post("/admin/login", authService.AdminLogin)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/profile", authService.Profile)
			r.Post("/auth/logout", authService.Logout)

			r.Get("/users", userService.ListUsers)
			r.Get("/users/stats", statsService.GetStats)
			r.Get("/users/export", exportService.ExportUsers)
			r.Get("/users/{id}", userService.GetUser)
			r.Put("/users/{id}", userService.UpdateUser)
			r.Patch("/users/{id}", userService.UpdateUser)

			mutation := func(pattern string, handler http.HandlerFunc) {
				r.Patch(pattern, handler)
				r.Post(pattern, handler)
			}
			mutation("/users/{id}/ban", userService.BanUser)
			mutation("/users/{id}/unban", userService.UnbanUser)
			mutation("/users/{id}/status", userService.UpdateAccountStatus)
			mutation("/users/{id}/verify", userService.VerifyUser)
			mutation("/users/{id}/remove-verification", userService.RemoveVerification)
			mutation("/users/{id}/reset-password", userService.ResetPassword)
			mutation("/users/{id}/clear-device", userService.ClearDevice)
			mutation("/users/{id}/subscription", userService.UpdateSubscription)

			r.Get("/admin/admins", adminService.ListAdmins)
			r.Post("/admin/admins", adminService.CreateAdmin)
			r.Get("/admin/admins/{id}", adminService.GetAdmin)
			r.Put("/admin/admins/{id}", adminService.UpdateAdmin)
			r.Delete("/admin/admins/{id}", adminService.DeleteAdmin)
			r.Patch("/admin/admins/{id}/reset-password", adminService.ResetAdminPassword)
			r.Get("/admin/audit-log", adminService.ListAuditLog)

			r.Get("/links", linkService.ListLinks)
			r.Get("/links/{id}", linkService.GetLink)
			r.Patch("/links/{id}/status", linkService.UpdateLinkStatus)
		})
	})

	return r
}
