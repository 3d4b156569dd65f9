package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	activitymod "github.com/MossTheFox/coursework-jtodo-server/modules/activity"
	apimod "github.com/MossTheFox/coursework-jtodo-server/modules/api"
	authmod "github.com/MossTheFox/coursework-jtodo-server/modules/auth"
	cachemod "github.com/MossTheFox/coursework-jtodo-server/modules/cache"
	todomod "github.com/MossTheFox/coursework-jtodo-server/modules/todo"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration from environment
	todoDBPath := getEnv("TODO_DB_PATH", "./user-data.db")
	accountsDBPath := getEnv("ACCOUNTS_DB_PATH", "./accounts.db")
	httpPort := getEnvInt("HTTP_PORT", 3000)
	jwtSecret := getEnv("JWT_SECRET", "")
	qqAppID := getEnv("QAUTH_APPID", "")
	qqAppKey := getEnv("QAUTH_APPKEY", "")
	redisAddr := getEnv("REDIS_ADDR", "")
	cacheTTL := getEnvDuration("SNAPSHOT_CACHE_TTL", 5*time.Minute)

	if jwtSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	if qqAppID == "" || qqAppKey == "" {
		log.Fatal("QAUTH_APPID and QAUTH_APPKEY must be set")
	}

	log.Println("=== jtodo server ===")
	log.Printf("Todo database: %s", todoDBPath)
	log.Printf("Accounts database: %s", accountsDBPath)
	log.Printf("HTTP Port: %d", httpPort)

	// Create modules
	authModule := authmod.NewModule(authmod.Config{
		DBPath: accountsDBPath,
		QQ: authmod.QQConfig{
			AppID:  qqAppID,
			AppKey: qqAppKey,
		},
		Session: authmod.SessionConfig{
			SecretKey: jwtSecret,
		},
	})
	todoModule := todomod.NewModule(todomod.Config{DBPath: todoDBPath})
	activityModule := activitymod.NewModule()
	apiModule := apimod.NewModule(apimod.Config{Port: httpPort})

	var cacheModule *cachemod.Module
	if redisAddr != "" {
		log.Printf("Redis: %s (snapshot cache TTL %s)", redisAddr, cacheTTL)
		cacheModule = cachemod.NewModule(redisAddr, "jtodo:", cacheTTL)
	} else {
		log.Println("Redis: disabled (snapshots served straight from the database)")
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
	)
	if err != nil {
		log.Fatalf("Failed to create mono application: %v", err)
	}

	// Register modules
	if cacheModule != nil {
		app.Register(cacheModule)
	}
	app.Register(authModule)
	app.Register(todoModule)
	app.Register(activityModule)
	app.Register(apiModule)

	// Start modules (this handles Init and Start)
	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}

	// Wire up the snapshot cache after start
	if cacheModule != nil {
		todoModule.SetCache(cacheModule.GetCache())
	}

	log.Println("=== Application Started ===")
	log.Printf("API available at http://localhost:%d", httpPort)
	log.Println("Endpoints:")
	log.Println("  GET   /health                  - Health check")
	log.Println("  POST  /api/v1/auth/login       - QQ OAuth code exchange")
	log.Println("  GET   /api/v1/data             - Full state snapshot")
	log.Println("  PATCH /api/v1/data/sync        - Submit an action batch")
	log.Println("  GET   /api/v1/activity/recent  - Recent account activity")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown")

	// Setup graceful shutdown using gelmium/graceful-shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	// Wait for shutdown signal and exit with appropriate code
	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
