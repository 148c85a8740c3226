package models

import "time"

// ScoreRow is one (remote login, score) pair of a sheet score snapshot.
type ScoreRow struct {
	Login string  `json:"login"`
	Score float64 `json:"score"`
}

// SyncSheetReport records the outcome of synchronising one sheet.
type SyncSheetReport struct {
	Kind          SheetKind `json:"kind"`
	SheetID       int       `json:"sheet_id"`
	Title         string    `json:"title"`
	ItemNumber    int       `json:"item_number"`
	GradesUpdated int       `json:"grades_updated"`
	GradesFailed  int       `json:"grades_failed"`
	Error         string    `json:"error,omitempty"`
}

// SyncActivityReport records the outcome of one activity's iteration within
// a run. Skipped activities carry the reason instead of sheet entries.
type SyncActivityReport struct {
	ActivityID    int64             `json:"activity_id"`
	CourseID      int64             `json:"course_id"`
	ClassID       string            `json:"class_id,omitempty"`
	Skipped       bool              `json:"skipped"`
	SkipReason    string            `json:"skip_reason,omitempty"`
	ItemsUpdated  int               `json:"items_updated"`
	ItemsFailed   int               `json:"items_failed"`
	GradesUpdated int               `json:"grades_updated"`
	GradesFailed  int               `json:"grades_failed"`
	Sheets        []SyncSheetReport `json:"sheets,omitempty"`
}

// SyncRunReport is the per-run summary operators rely on to detect partial
// failure.
type SyncRunReport struct {
	ID            string               `json:"id"`
	StartedAt     time.Time            `json:"started_at"`
	FinishedAt    time.Time            `json:"finished_at"`
	Activities    []SyncActivityReport `json:"activities"`
	ItemsUpdated  int                  `json:"items_updated"`
	ItemsFailed   int                  `json:"items_failed"`
	GradesUpdated int                  `json:"grades_updated"`
	GradesFailed  int                  `json:"grades_failed"`
}

// ExportGradeRow is one line of a course grade export.
type ExportGradeRow struct {
	ItemNumber int     `db:"item_number" json:"item_number"`
	Title      string  `db:"title" json:"title"`
	UserID     int64   `db:"user_id" json:"user_id"`
	FirstName  string  `db:"first_name" json:"first_name"`
	LastName   string  `db:"last_name" json:"last_name"`
	RawGrade   float64 `db:"raw_grade" json:"raw_grade"`
}

// GradeColumn is the definition pushed to the gradebook for one sheet.
type GradeColumn struct {
	CourseID   int64   `db:"course_id" json:"course_id"`
	ItemNumber int     `db:"item_number" json:"item_number"`
	Title      string  `db:"title" json:"title"`
	GradeMin   float64 `db:"grade_min" json:"grade_min"`
	GradeMax   float64 `db:"grade_max" json:"grade_max"`
}

// UserGrade is one raw score pushed to the gradebook.
type UserGrade struct {
	CourseID   int64   `db:"course_id" json:"course_id"`
	ItemNumber int     `db:"item_number" json:"item_number"`
	UserID     int64   `db:"user_id" json:"user_id"`
	RawGrade   float64 `db:"raw_grade" json:"raw_grade"`
}
