package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"school_grading/backend/internal/gateway/handlers"
	"school_grading/backend/internal/gateway/util"
	"school_grading/backend/internal/shared"
)

// SetupRoutes configures the Chi router, middleware, and route handlers.
func SetupRoutes(svcs *Services, cfg *shared.ServiceConfig) *chi.Mux {
	r := chi.NewRouter()

	// 1. Global Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	// 2. Initialize Handlers
	identityHandler := &handlers.IdentityHandler{}
	studentHandler := &handlers.StudentHandler{Students: svcs.Students, Grades: svcs.Grades}
	catalogHandler := &handlers.CatalogHandler{Catalog: svcs.Catalog}
	classHandler := &handlers.ClassHandler{Classes: svcs.Classes, Assignments: svcs.Assignments}
	gradeHandler := &handlers.GradeHandler{Grades: svcs.Grades}
	rankingHandler := &handlers.RankingHandler{Engine: svcs.Ranking, Jobs: svcs.Jobs, Reporter: svcs.Reports}

	// 3. Define Routes (grouped by prefix)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": cfg.ServiceName})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(IdentityMiddleware(cfg.Security.JWTSecret))

		r.Get("/identity", identityHandler.Whoami)

		// documents addressed by id are scoped to the caller's school
		r.Route("/students", func(r chi.Router) {
			r.Post("/", studentHandler.Register)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(handlers.StudentScope(svcs.Students, "id"))
				r.Get("/", studentHandler.Get)
				r.Get("/years", studentHandler.ListYears)
			})
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Post("/subjects", catalogHandler.CreateSubject)
			r.Post("/years", catalogHandler.CreateYear)
			r.Get("/years/{id}/skeleton", catalogHandler.Skeleton)
			r.Post("/terms", catalogHandler.CreateTerm)
			r.Post("/sequences", catalogHandler.CreateSequence)
			r.Patch("/sequences/{id}/active", catalogHandler.SetSequenceActive)
			r.Post("/{kind}/{id}/current", catalogHandler.SetCurrent)
			r.Post("/refresh-status", catalogHandler.RefreshStatuses)
		})

		r.Route("/classes", func(r chi.Router) {
			r.Post("/", classHandler.CreateClass)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(handlers.ClassScope(svcs.Classes, "id"))
				r.Get("/", classHandler.GetClass)
				r.Put("/subjects/{subjectId}", classHandler.SetSubject)
				r.Delete("/subjects/{subjectId}", classHandler.RemoveSubject)
				r.Post("/assign", classHandler.AssignStudents)
			})
		})

		r.Route("/years", func(r chi.Router) {
			r.Post("/", gradeHandler.CreateYear)
			r.Get("/at-risk", gradeHandler.AtRisk)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(handlers.RecordScope(svcs.Grades, "id"))
				r.Get("/", gradeHandler.GetYear)
				r.Delete("/", gradeHandler.DeleteYear)
				r.Put("/marks", gradeHandler.UpdateMark)
				r.Post("/recalculate", gradeHandler.Recalculate)
				r.Post("/completion", gradeHandler.CheckCompletion)
				r.Post("/fees", gradeHandler.AddFee)
				r.Patch("/fees/{billId}", gradeHandler.UpdateFee)
				r.Delete("/fees/{billId}", gradeHandler.DeleteFee)
			})
		})

		r.Route("/rankings/{classId}/{year}", func(r chi.Router) {
			r.Use(handlers.ClassScope(svcs.Classes, "classId"))
			r.Post("/subject", rankingHandler.RankSubject)
			r.Post("/sequence", rankingHandler.RankSequence)
			r.Post("/term", rankingHandler.RankTerm)
			r.Post("/overall", rankingHandler.RankOverall)
			r.Post("/all", rankingHandler.RankAll)
			r.Post("/cohort", rankingHandler.RankCohort)
			r.Post("/jobs", rankingHandler.EnqueueCohort)
			r.Get("/report.xlsx", rankingHandler.Report)
		})
	})

	return r
}

// requestLogger writes one zerolog line per request
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}
