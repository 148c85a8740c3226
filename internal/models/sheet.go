package models

import (
	"fmt"
	"strings"
)

// SheetKind distinguishes the two independently numbered gradable
// collections a WIMS class exposes.
type SheetKind string

const (
	SheetKindWorksheet SheetKind = "worksheet"
	SheetKindExam      SheetKind = "exam"
)

// Worksheets and exams are both numbered from 1 up, but the gradebook needs
// one flat item-number namespace, so worksheets get shifted by 1000. Exams
// keep the low range. A worksheet id reaching 1000 would collide with an
// exam item, hence the hard bound in GradeItemNumber.
const (
	WorksheetItemOffset = 1000
	ExamItemOffset      = 0
)

// ItemOffset returns the grade item-number offset for the kind.
func (k SheetKind) ItemOffset() int {
	if k == SheetKindWorksheet {
		return WorksheetItemOffset
	}
	return ExamItemOffset
}

// GradeItemNumber flattens (kind, sheet id) into the gradebook item-number
// namespace. Worksheet ids must stay below the offset.
func GradeItemNumber(kind SheetKind, sheetID int) (int, error) {
	if sheetID < 0 {
		return 0, fmt.Errorf("sheet id %d out of range", sheetID)
	}
	if kind == SheetKindWorksheet && sheetID >= WorksheetItemOffset {
		return 0, fmt.Errorf("worksheet id %d overflows the grade item namespace", sheetID)
	}
	return kind.ItemOffset() + sheetID, nil
}

// Sheet activation states as reported by the server. The values are raw
// protocol strings, compared, never parsed.
const (
	SheetStateInPreparation = "0"
	SheetStateActive        = "1"
	SheetStateExpired       = "2"
)

// GradedMarker is the trailing title character teachers use to flag a
// worksheet whose scores must be tracked in the local gradebook.
const GradedMarker = "*"

// SheetSummary is one entry of a class sheet index.
type SheetSummary struct {
	Title string `json:"title"`
	State string `json:"state"`
}

// SheetIndex lists the worksheets and exams of one class, keyed by their
// per-kind numeric id.
type SheetIndex struct {
	Worksheets map[int]SheetSummary `json:"worksheets"`
	Exams      map[int]SheetSummary `json:"exams"`
}

// SheetRequired applies the grading filter: sheets still in preparation are
// never required, worksheets need the graded marker, exams are always
// graded. The marker, when present, is stripped from the returned title.
func SheetRequired(kind SheetKind, summary SheetSummary) (string, bool) {
	title := summary.Title
	if summary.State == SheetStateInPreparation {
		return title, false
	}
	if strings.HasSuffix(title, GradedMarker) {
		return strings.TrimSpace(strings.TrimSuffix(title, GradedMarker)), true
	}
	if kind == SheetKindExam {
		return title, true
	}
	return title, false
}

// SheetProperties mirrors the getsheet job payload.
type SheetProperties struct {
	Status      string `json:"status"`
	Expiration  string `json:"expiration"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ExamProperties mirrors the getexam job payload.
type ExamProperties struct {
	Status      string `json:"status"`
	Opening     string `json:"opening"`
	Duration    string `json:"duration"`
	Attempts    string `json:"attempts"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CutHours    string `json:"cut_hours"`
	Expiration  string `json:"expiration"`
}

// BackupList describes the restorable yearly backups of a class.
type BackupList struct {
	Restorable []string `json:"restorable"`
	Total      int      `json:"total"`
}
