package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"school_grading/backend/internal/academic"
	"school_grading/backend/internal/assignment"
	"school_grading/backend/internal/catalog"
	"school_grading/backend/internal/gateway"
	"school_grading/backend/internal/grade"
	"school_grading/backend/internal/ranking"
	"school_grading/backend/internal/roster"
	"school_grading/backend/internal/shared"
	"school_grading/backend/internal/store"
	"school_grading/backend/internal/student"
)

const (
	SchoolID = "SCH-DEMO"
	YearName = "2024-2025"

	TeacherID   = "teacher-001"
	TeacherName = "Mme Ngo"
)

// SubjectSeed is one catalog subject and its coefficient in the demo class
type SubjectSeed struct {
	Code        string
	Name        string
	Coefficient float64
}

// StudentSeed is one demo student and the first-sequence marks they get
type StudentSeed struct {
	Matricule string
	FirstName string
	LastName  string
	Gender    string
	Marks     map[string]float64 // by subject code
}

func main() {
	_ = shared.LoadEnv(".env")

	cfg, err := shared.LoadServiceConfig("seeder")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	shared.InitLogger(cfg.LogLevel, "console")
	log.Info().Msg("starting demo school seeder")

	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer shared.DisconnectMongoDB(client)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Start from an empty database
	if err := db.Drop(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to drop database")
	}
	st := store.NewMongoStore(client, db)
	if err := st.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create indexes")
	}
	log.Info().Msg("database cleared")

	cat := catalog.NewCatalogService(st)

	// --- 1. Seed Catalog ---
	subjects := seedSubjects(ctx, cat, []SubjectSeed{
		{"MTH", "Mathematics", 4},
		{"ENG", "English", 3},
		{"FRE", "French", 3},
		{"BIO", "Biology", 2},
		{"HIS", "History", 2},
	})
	firstSequence := seedCalendar(ctx, cat)

	// --- 2. Seed Class ---
	class := seedClass(ctx, roster.NewService(st), subjects)

	// --- 3. Seed Students and their records ---
	students := seedStudents(ctx, student.NewStudentService(st), []StudentSeed{
		{"MAT-0001", "Awa", "Bello", "F", map[string]float64{"MTH": 17, "ENG": 14, "FRE": 15, "BIO": 16, "HIS": 12}},
		{"MAT-0002", "Jean", "Eto", "M", map[string]float64{"MTH": 9, "ENG": 11, "FRE": 8, "BIO": 10, "HIS": 13}},
		{"MAT-0003", "Nadia", "Fotso", "F", map[string]float64{"MTH": 14, "ENG": 16, "FRE": 13, "BIO": 12, "HIS": 15}},
		{"MAT-0004", "Paul", "Kamga", "M", map[string]float64{"MTH": 14, "ENG": 12, "FRE": 11, "BIO": 9, "HIS": 7}},
	})
	assign(ctx, assignment.NewAssignmentService(st), class, students)

	// --- 4. Seed Marks ---
	grades := grade.NewGradeService(st, cat)
	seedMarks(ctx, grades, st, class, firstSequence, subjects, students)

	// --- 5. Rank the cohort ---
	out, err := ranking.NewEngine(st, cfg.Ranking.Concurrency).RankCohort(ctx, class.ID, YearName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to rank cohort")
	}
	log.Info().Int("records", out.Records).Msg("cohort ranked")

	// --- 6. Identity token for local requests ---
	if cfg.Security.JWTSecret != "" {
		token, err := gateway.SignIdentity(cfg.Security.JWTSecret, shared.Identity{UserID: TeacherID, Name: TeacherName, SchoolID: SchoolID}, 30*24*time.Hour)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to sign identity token")
		}
		fmt.Printf("\nBearer token for %s (%s):\n%s\n\n", TeacherName, SchoolID, token)
	}

	log.Info().Str("class_id", class.ID).Msg("demo school seeded")
}

// ============================================================================
// SEEDING FUNCTIONS
// ============================================================================

// seedSubjects returns the created subjects keyed by code
func seedSubjects(ctx context.Context, cat *catalog.CatalogService, seeds []SubjectSeed) map[string]subjectRef {
	log.Info().Msg("--- Seeding Subjects ---")
	out := make(map[string]subjectRef, len(seeds))
	for _, s := range seeds {
		sub, err := cat.CreateSubject(ctx, catalog.CreateSubjectRequest{SchoolID: SchoolID, Code: s.Code, Name: s.Name})
		if err != nil {
			log.Fatal().Err(err).Str("code", s.Code).Msg("error seeding subject")
		}
		out[s.Code] = subjectRef{ID: sub.ID, Coefficient: s.Coefficient}
		log.Info().Str("code", s.Code).Str("id", sub.ID).Msg("seeded subject")
	}
	return out
}

type subjectRef struct {
	ID          string
	Coefficient float64
}

// seedCalendar creates the year with three terms of two sequences each and
// returns the first term and sequence. Only the first sequence stays open.
func seedCalendar(ctx context.Context, cat *catalog.CatalogService) [2]string {
	log.Info().Msg("--- Seeding Calendar ---")
	start := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)

	yr, err := cat.CreateAcademicYear(ctx, catalog.CreateYearRequest{
		SchoolID: SchoolID, Name: YearName, StartDate: start, EndDate: start.AddDate(0, 10, 0),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("error seeding academic year")
	}
	if err := cat.SetCurrent(ctx, store.KindAcademicYear, yr.ID); err != nil {
		log.Fatal().Err(err).Msg("error marking year current")
	}

	var first [2]string
	for i := 0; i < 3; i++ {
		termStart := start.AddDate(0, 3*i, 0)
		term, err := cat.CreateTerm(ctx, catalog.CreateTermRequest{
			SchoolID: SchoolID, AcademicYearID: yr.ID, Name: fmt.Sprintf("Term %d", i+1),
			Order: i + 1, StartDate: termStart, EndDate: termStart.AddDate(0, 3, 0),
		})
		if err != nil {
			log.Fatal().Err(err).Int("term", i+1).Msg("error seeding term")
		}
		for j := 0; j < 2; j++ {
			seqStart := termStart.AddDate(0, j, 0)
			active := i == 0 && j == 0
			seq, err := cat.CreateSequence(ctx, catalog.CreateSequenceRequest{
				SchoolID: SchoolID, TermID: term.ID, Name: fmt.Sprintf("Sequence %d", 2*i+j+1),
				Order: j + 1, StartDate: seqStart, EndDate: seqStart.AddDate(0, 1, 0), IsActive: &active,
			})
			if err != nil {
				log.Fatal().Err(err).Int("term", i+1).Msg("error seeding sequence")
			}
			if active {
				first = [2]string{term.ID, seq.ID}
			}
		}
	}
	log.Info().Str("year_id", yr.ID).Msg("seeded calendar")
	return first
}

func seedClass(ctx context.Context, classes *roster.Service, subjects map[string]subjectRef) *shared.Class {
	log.Info().Msg("--- Seeding Class ---")
	table := make([]shared.ClassSubject, 0, len(subjects))
	for _, s := range subjects {
		table = append(table, shared.ClassSubject{SubjectID: s.ID, Coefficient: s.Coefficient})
	}

	class, err := classes.CreateClass(ctx, roster.CreateClassRequest{
		SchoolID: SchoolID, Name: "Form 1A", Level: "Form 1", Capacity: 40, FeeAmount: 75000,
		AcademicYear: YearName, Subjects: table,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("error seeding class")
	}
	log.Info().Str("class_id", class.ID).Msg("seeded class")
	return class
}

type seededStudent struct {
	ID    string
	Marks map[string]float64
}

func seedStudents(ctx context.Context, svc *student.StudentService, seeds []StudentSeed) []seededStudent {
	log.Info().Msg("--- Seeding Students ---")
	out := make([]seededStudent, 0, len(seeds))
	for _, s := range seeds {
		stu, err := svc.Register(ctx, student.RegisterRequest{
			SchoolID: SchoolID, Matricule: s.Matricule, FirstName: s.FirstName, LastName: s.LastName,
			Gender: s.Gender, Level: "Form 1",
		})
		if err != nil {
			log.Fatal().Err(err).Str("matricule", s.Matricule).Msg("error seeding student")
		}
		out = append(out, seededStudent{ID: stu.ID, Marks: s.Marks})
		log.Info().Str("matricule", s.Matricule).Str("id", stu.ID).Msg("seeded student")
	}
	return out
}

func assign(ctx context.Context, svc *assignment.AssignmentService, class *shared.Class, students []seededStudent) {
	ids := make([]string, len(students))
	for i, s := range students {
		ids[i] = s.ID
	}
	res, err := svc.AssignStudentsTx(ctx, assignment.AssignRequest{ClassID: class.ID, Year: YearName, StudentIDs: ids})
	if err != nil {
		log.Fatal().Err(err).Msg("error assigning students")
	}
	log.Info().Int("created", res.Created).Int("failed", res.FailedCount).Msg("students assigned")
}

func seedMarks(ctx context.Context, grades *grade.GradeService, st store.Store, class *shared.Class, slot [2]string, subjects map[string]subjectRef, students []seededStudent) {
	log.Info().Msg("--- Seeding Marks ---")
	teacher := academic.Modifier{UserID: TeacherID, Name: TeacherName}

	for _, s := range students {
		rec, err := st.FindYear(ctx, s.ID, YearName, SchoolID)
		if err != nil {
			log.Fatal().Err(err).Str("student_id", s.ID).Msg("record missing after assignment")
		}
		for code, mark := range s.Marks {
			mark := mark
			_, err := grades.UpdateMark(ctx, rec.ID, academic.MarkUpdate{
				TermID: slot[0], SequenceID: slot[1], SubjectID: subjects[code].ID, Mark: &mark, ModifiedBy: teacher,
			})
			if err != nil {
				log.Fatal().Err(err).Str("record_id", rec.ID).Str("subject", code).Msg("error seeding mark")
			}
		}
		log.Info().Str("record_id", rec.ID).Str("class_id", class.ID).Msg("seeded marks")
	}
}
