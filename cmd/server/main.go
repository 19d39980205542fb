// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// *****************************************************************************************************//
// Package main is the entry point for the promo quality gate backend server.
//
// This application sets up and runs a web server using the Gin framework. It provides a REST API
// for registering promo scenes, evaluating their generated artifacts against the quality rubric,
// driving the adaptive regeneration loop, and authorizing final renders. The server is instrumented
// with OpenTelemetry for logging, tracing, and metrics.
//
// The main function initializes the application's configuration, sets up logging and telemetry,
// and initializes the application state, including clients for Google Cloud services. It defines
// API routes for project reports, render authorization, scene evaluation, regeneration, human
// review actions, attempt history, and review URLs.
//
// The server also manages a background Pub/Sub listener that scores artifacts automatically
// as they land in the artifact bucket.
//
// Functions:
//   - main: The main entry point of the application. It sets up the server, configures routes,
//     initializes services, and handles graceful shutdown.
//   - ProjectRouter: Sets up the API routes for projects: scene registration, full-project
//     evaluation, quality reports, and render authorization.
//   - SceneRouter: Sets up the API routes for individual scenes: evaluation, regeneration,
//     approval, rejection, attempt history, and signed review URLs.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jaycherian/gcp-go-promo-quality/internal/core/model"
	"github.com/jaycherian/gcp-go-promo-quality/internal/core/quality"
	"github.com/jaycherian/gcp-go-promo-quality/internal/telemetry"
)

// main is the primary entry point for the application.
// It orchestrates the setup of logging, telemetry, configuration, cloud services,
// the web server, API routes, and background listeners. It also handles graceful
// shutdown of the server upon receiving an interrupt signal.
func main() {
	// Initialize structured logging for the application.
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	// Create a new context that can be cancelled. This is the root context for the application.
	ctx, cancel := context.WithCancel(context.Background())
	// Defer the cancel function to be called when main exits, ensuring all child contexts are cancelled.
	defer cancel()

	// Load application configuration from TOML files.
	config := GetConfig()

	// Initialize OpenTelemetry for distributed tracing and metrics.
	_, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	// Initialize the application's state, including all necessary service clients.
	InitState(ctx)
	slog.Info("Initialized State")

	// Set up the Gin web server with default middleware.
	r := gin.Default()

	// Add OpenTelemetry middleware to the Gin router to trace incoming requests.
	// This will automatically create spans for each request.
	r.Use(otelgin.Middleware("promo-quality-server"))

	// Configure Cross-Origin Resource Sharing (CORS) middleware.
	// Using cors.Default() provides a permissive configuration suitable for development,
	// allowing requests from any origin.
	r.Use(cors.Default())

	// Group routes under the "/api/v1" prefix.
	apiV1 := r.Group("/api/v1")
	{
		// Register the project, scene, and dashboard routes within the API group.
		ProjectRouter(apiV1)
		SceneRouter(apiV1)
		DashboardRouter(apiV1)
	}

	// Configure the HTTP server with the address and handler.
	srv := &http.Server{
		Addr:         ":8080",
		Handler:      r,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	// Start the HTTP server in a separate goroutine so it doesn't block the main thread.
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to listen: ", "error", err)
		}
	}()
	slog.Info("Server Ready on port 8080")

	// Set up a channel to listen for OS interrupt signals (e.g., Ctrl+C).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	// Block until a signal is received on the quit channel.
	<-quit
	slog.Info("Shutdown Server ...")

	// Create a context with a timeout for the graceful shutdown.
	// This gives active requests 5 seconds to complete.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Attempt to gracefully shut down the server.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed:", "error", err)
	}

	log.Println("Server exiting")
}

// ProjectRouter sets up the API routes for project-level actions.
//
// Inputs:
//   - r: A *gin.RouterGroup to which the project routes will be added. This allows
//     nesting routes under a common path prefix (e.g., "/api/v1").
//
// Outputs:
//   - This function does not return any values. It modifies the provided *gin.RouterGroup
//     by adding new route handlers.
//
// This function defines the following endpoints:
//   - POST /projects/:id/scenes: Registers a scene in the project timeline.
//   - POST /projects/:id/evaluate: Scores every scene of the project that has an artifact.
//   - GET /projects/:id/report: Returns the project's current quality report.
//   - GET /projects/:id/review-queue: Lists scenes awaiting a human decision.
//   - POST /projects/:id/render: Asks the quality gate for render authorization.
func ProjectRouter(r *gin.RouterGroup) {
	// Group all project-related routes under the "/projects" path.
	projects := r.Group("/projects")
	{
		// Handler for POST /projects/:id/scenes
		// The body is the scene definition; the path decides the project it belongs to.
		projects.POST("/:id/scenes", func(c *gin.Context) {
			projectID := c.Param("id")
			scene := &model.Scene{}
			if err := c.ShouldBindJSON(scene); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			scene.ProjectID = projectID
			if scene.ID == "" {
				// Scenes submitted without an ID get a stable one derived from
				// the project and timeline position.
				scene.ID = model.NewScene(projectID, scene.Index, scene.SceneType, scene.MediaType, scene.Expected).ID
			}
			state.projectService.AddScene(scene)
			c.JSON(http.StatusCreated, scene)
		})

		// Handler for POST /projects/:id/evaluate
		// Runs the scoring pipeline over every scene with a current artifact.
		projects.POST("/:id/evaluate", func(c *gin.Context) {
			projectID := c.Param("id")
			report, err := state.projectService.EvaluateProject(c, projectID, state.evaluation)
			if err != nil {
				log.Printf("Error evaluating project %s: %v\n", projectID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": report})
				return
			}
			c.JSON(http.StatusOK, report)
		})

		// Handler for GET /projects/:id/report
		projects.GET("/:id/report", func(c *gin.Context) {
			c.JSON(http.StatusOK, state.projectService.Report(c.Param("id")))
		})

		// Handler for GET /projects/:id/review-queue
		// Lists the verdicts still waiting on a reviewer, in timeline order.
		projects.GET("/:id/review-queue", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"review_queue": state.projectService.ReviewQueue(c.Param("id"))})
		})

		// Handler for POST /projects/:id/render?force=<bool>
		// A denied authorization returns 403 with the blocking reasons so the
		// client can show exactly what still stands in the way.
		projects.POST("/:id/render", func(c *gin.Context) {
			projectID := c.Param("id")
			force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))
			report, err := state.projectService.AuthorizeRender(projectID, force)
			if err != nil {
				var violation *quality.PolicyViolationError
				if errors.As(err, &violation) {
					c.JSON(http.StatusForbidden, gin.H{
						"error":            violation.Error(),
						"blocking_reasons": violation.BlockingReasons,
						"report":           report,
					})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, report)
		})
	}
}

// SceneRouter sets up the API routes for scene-level actions.
//
// Inputs:
//   - r: A *gin.RouterGroup to which the scene routes will be added.
//
// Outputs:
//   - This function does not return any values. It registers route handlers on the
//     provided router group.
//
// This function defines the following endpoints:
//   - POST /scenes/:id/evaluate: Scores the scene's current artifact.
//   - POST /scenes/:id/regenerate: Runs the bounded regeneration loop for the scene.
//   - POST /scenes/:id/approve: Records a human approval of a needs_review verdict.
//   - POST /scenes/:id/reject: Records a human rejection.
//   - GET /scenes/:id/attempts: Returns the scene's attempt history from the audit table.
//   - GET /scenes/:id/review-url: Generates a time-limited signed URL for the current artifact.
func SceneRouter(r *gin.RouterGroup) {
	// Group all scene-related routes under the "/scenes" path.
	scenes := r.Group("/scenes")
	{
		// Handler for POST /scenes/:id/evaluate
		scenes.POST("/:id/evaluate", func(c *gin.Context) {
			scene, err := state.projectService.ResolveScene(c.Param("id"))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			if scene.CurrentArtifact == nil {
				c.JSON(http.StatusConflict, gin.H{"error": "scene has no artifact to evaluate"})
				return
			}
			verdict, err := state.evaluation.Evaluate(c, scene, scene.CurrentArtifact)
			if err != nil {
				log.Printf("Error evaluating scene %s: %v\n", scene.ID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			state.projectService.RecordVerdict(verdict)
			c.JSON(http.StatusOK, verdict)
		})

		// Handler for POST /scenes/:id/regenerate
		// Runs the adaptive regeneration loop. An exhausted budget is reported
		// as 422 together with the last verdict, so the caller knows the scene
		// has been escalated for human review.
		scenes.POST("/:id/regenerate", func(c *gin.Context) {
			scene, err := state.projectService.ResolveScene(c.Param("id"))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			verdict, err := state.regeneration.RegenerateScene(c, scene)
			if verdict != nil {
				state.projectService.RecordVerdict(verdict)
			}
			if err != nil {
				var exhausted *quality.BudgetExhaustedError
				if errors.As(err, &exhausted) {
					c.JSON(http.StatusUnprocessableEntity, gin.H{
						"error":   exhausted.Error(),
						"verdict": verdict,
					})
					return
				}
				log.Printf("Error regenerating scene %s: %v\n", scene.ID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, verdict)
		})

		// Handler for POST /scenes/:id/approve
		scenes.POST("/:id/approve", func(c *gin.Context) {
			verdict, err := state.projectService.ApproveScene(c.Param("id"))
			if err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, verdict)
		})

		// Handler for POST /scenes/:id/reject
		scenes.POST("/:id/reject", func(c *gin.Context) {
			verdict, err := state.projectService.RejectScene(c.Param("id"))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, verdict)
		})

		// Handler for GET /scenes/:id/attempts
		// Reads the durable attempt history from BigQuery rather than the
		// in-memory ledger, so it works across restarts.
		scenes.GET("/:id/attempts", func(c *gin.Context) {
			attempts, err := state.auditService.AttemptsForScene(c, c.Param("id"))
			if err != nil {
				log.Printf("Error reading attempts: %v\n", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, attempts)
		})

		// Handler for GET /scenes/:id/review-url
		// This endpoint provides a secure, time-limited URL for reviewers to
		// inspect the scene's current artifact in a browser.
		scenes.GET("/:id/review-url", func(c *gin.Context) {
			scene, err := state.projectService.ResolveScene(c.Param("id"))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			if scene.CurrentArtifact == nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "scene has no artifact"})
				return
			}

			// Generate a signed URL valid for 15 minutes for the artifact.
			signedURL, err := state.artifactService.GenerateSignedURL(c, scene.CurrentArtifact.URI, 15*time.Minute)
			if err != nil {
				log.Printf("Error generating signed URL: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not generate review URL"})
				return
			}
			// Return the signed URL in the JSON response.
			c.JSON(http.StatusOK, gin.H{"url": signedURL})
		})
	}
}
