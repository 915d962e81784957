package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"sprintsync/microservices/dashboard-service/clients"
	"sprintsync/microservices/dashboard-service/handlers"
	"sprintsync/microservices/dashboard-service/logging"
	"sprintsync/microservices/dashboard-service/middleware"
	"sprintsync/microservices/dashboard-service/services"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sony/gobreaker"
)

func main() {
	logging.InitLogger()

	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting Dashboard Service...")
	if err := godotenv.Load(".env"); err != nil {
		logging.Logger.Warnf("Event ID: ENV_LOAD_WARNING, Description: No .env file loaded: %v", err)
	}

	taskServiceURL := os.Getenv("TASK_SERVICE_URL")
	if taskServiceURL == "" {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: TASK_SERVICE_URL is not set in the environment variables.")
	}
	if os.Getenv("JWT_SECRET") == "" {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: JWT_SECRET is not set in the environment variables.")
	}

	taskServiceBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "TaskServiceCB",
		MaxRequests: 1,
		Timeout:     2 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})

	httpClient := &http.Client{Timeout: 10 * time.Second}
	taskClient := clients.NewTaskAPIClient(taskServiceURL, httpClient, taskServiceBreaker)
	taskClient.SetUnauthorizedHook(func() {
		logging.Logger.Warn("Event ID: SESSION_INVALIDATED, Description: Task service rejected stored credentials")
	})

	analyticsService := services.NewAnalyticsService(taskClient)
	dashboardHandler := handlers.NewDashboardHandler(taskClient, analyticsService)

	r := mux.NewRouter()
	dashboardHandler.RegisterRoutes(r)

	handler := middleware.EnableCORS(middleware.JWTAuthMiddleware(r))

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: SERVER_PORT is not set in the environment variables.")
	}

	serverAddress := fmt.Sprintf(":%s", serverPort)
	logging.Logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", serverAddress)

	if err := http.ListenAndServe(serverAddress, handler); err != nil {
		logging.Logger.Fatalf("Event ID: SERVER_FATAL_ERROR, Description: Server failed to start: %v", err)
	}
}
