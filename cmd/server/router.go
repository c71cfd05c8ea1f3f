package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cadence-learn/cadence-api/internal/api"
	apimiddleware "github.com/cadence-learn/cadence-api/internal/api/middleware"
	"github.com/cadence-learn/cadence-api/internal/domain"
)

// setupRouter builds the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)

	authHandler := api.NewAuthHandler(app.authService, app.logger)
	quizHandler := api.NewQuizHandler(app.gradingService, app.logger)
	assignmentHandler := api.NewAssignmentHandler(app.assignmentService, app.logger)
	analyticsHandler := api.NewAnalyticsHandler(app.analyticsService, app.logger)
	enrollmentHandler := api.NewEnrollmentHandler(app.enrollmentService, app.logger)

	authMiddleware := apimiddleware.NewAuthMiddleware(app.jwtService)
	requireTeacher := apimiddleware.RequireRole(domain.RoleTeacher)
	requireStudent := apimiddleware.RequireRole(domain.RoleStudent)

	r.Route("/api", func(r chi.Router) {
		// Public authentication endpoint
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Attempt submission and the student work queue
			r.Post("/activities/{id}/attempts", quizHandler.SubmitAttempt)
			r.Get("/students/{id}/next-activities", assignmentHandler.NextActivities)

			// Student metrics
			r.Get("/students/{id}/srs-health", analyticsHandler.SRSHealth)
			r.Get("/students/{id}/velocity", analyticsHandler.Velocity)

			// Classroom membership (student side)
			r.With(requireStudent).Post("/enrollments", enrollmentHandler.Enroll)
			r.With(requireStudent).Delete("/classrooms/{id}/enrollment", enrollmentHandler.Unenroll)
			r.With(requireStudent).Get("/students/me/classrooms", enrollmentHandler.ListClassrooms)

			// Teacher surface
			r.Group(func(r chi.Router) {
				r.Use(requireTeacher)
				r.Post("/classrooms/{id}/assignments", assignmentHandler.CreateAssignment)
				r.Get("/classrooms/{id}/assignments", assignmentHandler.ListAssignments)
				r.Get("/classrooms/{id}/rollup", analyticsHandler.ClassroomRollup)
				r.Post("/classrooms/{id}/code", enrollmentHandler.RotateCode)
			})
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
