package gateway

import (
	"school_grading/backend/internal/assignment"
	"school_grading/backend/internal/catalog"
	"school_grading/backend/internal/gateway/handlers"
	"school_grading/backend/internal/grade"
	"school_grading/backend/internal/ranking"
	"school_grading/backend/internal/report"
	"school_grading/backend/internal/roster"
	"school_grading/backend/internal/store"
	"school_grading/backend/internal/student"
)

// Services holds every use case the HTTP layer calls.
// This struct is built once in main.go and injected into the handlers.
type Services struct {
	Students    *student.StudentService
	Catalog     *catalog.CatalogService
	Classes     *roster.Service
	Assignments *assignment.AssignmentService
	Grades      *grade.GradeService
	Ranking     *ranking.Engine
	Reports     *report.Reporter
	Jobs        handlers.JobQueue // optional
}

// NewServices builds every service on one store. rankConcurrency bounds
// the parallel saves of a ranking run.
func NewServices(st store.Store, rankConcurrency int, jobs handlers.JobQueue) *Services {
	cat := catalog.NewCatalogService(st)
	return &Services{
		Students:    student.NewStudentService(st),
		Catalog:     cat,
		Classes:     roster.NewService(st),
		Assignments: assignment.NewAssignmentService(st),
		Grades:      grade.NewGradeService(st, cat),
		Ranking:     ranking.NewEngine(st, rankConcurrency),
		Reports:     report.NewReporter(st),
		Jobs:        jobs,
	}
}
