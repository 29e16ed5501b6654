package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/app"
	"github.com/shrimpsizemoose/semla/internal/handlers"
)

func main() {
	service, err := app.NewService("config.toml")
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := service.Start(ctx); err != nil {
		logger.Error.Fatalf("Failed to start sync layer: %v", err)
	}

	authHandler := handlers.NewAuthHandler(service)
	assignmentHandler := handlers.NewAssignmentHandler(service)
	submissionHandler := handlers.NewSubmissionHandler(service)

	http.HandleFunc("POST /api/v1/auth/login", authHandler.HandleLogin)
	http.HandleFunc("POST /api/v1/auth/logout", authHandler.HandleLogout)
	http.HandleFunc("GET /api/v1/me", authHandler.HandleMe)

	http.HandleFunc("GET /api/v1/assignments", assignmentHandler.HandleList)
	http.HandleFunc("POST /api/v1/assignments", assignmentHandler.HandleCreate)
	http.HandleFunc("GET /api/v1/dashboard", assignmentHandler.HandleDashboard)

	http.HandleFunc("POST /api/v1/assignments/{id}/submissions", submissionHandler.HandleSubmit)
	http.HandleFunc("GET /api/v1/assignments/{id}/submissions", submissionHandler.HandleAssignmentSubmissions)
	http.HandleFunc("GET /api/v1/students/{id}/submissions", submissionHandler.HandleStudentSubmissions)
	http.HandleFunc("PATCH /api/v1/submissions/{id}", submissionHandler.HandleGrade)

	http.HandleFunc("GET /files/{key...}", submissionHandler.HandleFile)

	http.Handle("/metrics", promhttp.Handler())

	logger.Info.Printf("Starting semla server on %s", service.Config.Server.Port)
	if err := http.ListenAndServe(service.Config.Server.Port, nil); err != nil {
		logger.Error.Fatalf("Semla server failed: %v", err)
	}
}
