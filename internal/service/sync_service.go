package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	"github.com/noah-isme/wims-bridge-api/internal/session"
	"github.com/noah-isme/wims-bridge-api/pkg/config"
)

// Worksheet percentages arrive on a 0..100 scale; the gradebook columns are
// 0..10, so they get scaled down. Exam scores are already on that scale.
const (
	gradeMax             = 10.0
	worksheetScoreFactor = 0.1
)

type syncActivityRepository interface {
	ListProvisioned(ctx context.Context) ([]models.Activity, error)
}

type syncUserRepository interface {
	ListActive(ctx context.Context) ([]models.LocalUser, error)
}

type syncGradebook interface {
	UpsertColumn(ctx context.Context, column models.GradeColumn) error
	UpsertGrade(ctx context.Context, grade models.UserGrade) error
}

type syncRemote interface {
	CheckClass(ctx context.Context, qcl, rcl string, extended bool) error
	ListSheets(ctx context.Context, qcl, rcl string) (map[int]models.SheetSummary, error)
	ListExams(ctx context.Context, qcl, rcl string) (map[int]models.SheetSummary, error)
	GetSheetScores(ctx context.Context, qcl, rcl string, sheet int) ([]models.ScoreRow, error)
	GetExamScores(ctx context.Context, qcl, rcl string, exam int) ([]models.ScoreRow, error)
}

type syncReportStore interface {
	SaveRun(ctx context.Context, report *models.SyncRunReport) error
	FindRun(ctx context.Context, id string) (*models.SyncRunReport, error)
	LastRun(ctx context.Context) (*models.SyncRunReport, error)
}

type loginDeriver interface {
	Login(user models.LocalUser) string
}

type syncMetrics interface {
	ObserveSyncRun(failed bool, gradesUpdated, gradesFailed int)
}

// SyncService walks every provisioned activity, pulls the scores of all
// graded sheets from the WIMS server and writes them into the gradebook.
// One bad activity never stops the run; failures land in the run report.
type SyncService struct {
	activities syncActivityRepository
	users      syncUserRepository
	gradebook  syncGradebook
	remote     syncRemote
	reports    syncReportStore
	logins     loginDeriver
	metrics    syncMetrics
	logger     *zap.Logger
	workers    int
}

// NewSyncService constructs the service.
func NewSyncService(
	activities syncActivityRepository,
	users syncUserRepository,
	gradebook syncGradebook,
	remote syncRemote,
	reports syncReportStore,
	logins loginDeriver,
	metrics syncMetrics,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &SyncService{
		activities: activities,
		users:      users,
		gradebook:  gradebook,
		remote:     remote,
		reports:    reports,
		logins:     logins,
		metrics:    metrics,
		logger:     logger,
		workers:    workers,
	}
}

// Run performs one full synchronisation pass and returns the stored report.
func (s *SyncService) Run(ctx context.Context) (*models.SyncRunReport, error) {
	report := &models.SyncRunReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	users, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	// The login index is global: login derivation depends only on the
	// user, so it is computed once per run, not once per class.
	loginIndex := make(map[string]int64, len(users))
	for _, user := range users {
		loginIndex[s.logins.Login(user)] = user.ID
	}

	activities, err := s.activities.ListProvisioned(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]models.SyncActivityReport, len(activities))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)
	for i := range activities {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.syncActivity(ctx, activities[i], loginIndex)
		}(i)
	}
	wg.Wait()

	for _, result := range results {
		report.Activities = append(report.Activities, result)
		report.ItemsUpdated += result.ItemsUpdated
		report.ItemsFailed += result.ItemsFailed
		report.GradesUpdated += result.GradesUpdated
		report.GradesFailed += result.GradesFailed
	}
	report.FinishedAt = time.Now().UTC()

	failed := report.ItemsFailed > 0 || report.GradesFailed > 0
	if s.metrics != nil {
		s.metrics.ObserveSyncRun(failed, report.GradesUpdated, report.GradesFailed)
	}
	if err := s.reports.SaveRun(ctx, report); err != nil {
		s.logger.Warn("failed to store sync run report", zap.Error(err))
	}

	s.logger.Info("sync run finished",
		zap.String("run_id", report.ID),
		zap.Int("activities", len(report.Activities)),
		zap.Int("grades_updated", report.GradesUpdated),
		zap.Int("grades_failed", report.GradesFailed))
	return report, nil
}

func (s *SyncService) syncActivity(ctx context.Context, activity models.Activity, loginIndex map[string]int64) models.SyncActivityReport {
	result := models.SyncActivityReport{
		ActivityID: activity.ID,
		CourseID:   activity.CourseID,
	}
	if !activity.HasClass() {
		result.Skipped = true
		result.SkipReason = "no class bound"
		return result
	}
	qcl := *activity.ClassID
	rcl := session.OwnerToken(activity.ID)
	result.ClassID = qcl

	// The extended check also verifies our service access rights; a class
	// that fails it would fail every score fetch below anyway.
	if err := s.remote.CheckClass(ctx, qcl, rcl, true); err != nil {
		result.Skipped = true
		result.SkipReason = err.Error()
		s.logger.Warn("skipping activity, class unreachable",
			zap.Int64("activity_id", activity.ID),
			zap.String("class", qcl),
			zap.Error(err))
		return result
	}

	worksheets, err := s.remote.ListSheets(ctx, qcl, rcl)
	if err != nil {
		result.Skipped = true
		result.SkipReason = err.Error()
		return result
	}
	exams, err := s.remote.ListExams(ctx, qcl, rcl)
	if err != nil {
		result.Skipped = true
		result.SkipReason = err.Error()
		return result
	}

	for _, entry := range sortedSheets(worksheets) {
		s.syncSheet(ctx, &result, activity, qcl, rcl, models.SheetKindWorksheet, entry.id, entry.summary, loginIndex)
	}
	for _, entry := range sortedSheets(exams) {
		s.syncSheet(ctx, &result, activity, qcl, rcl, models.SheetKindExam, entry.id, entry.summary, loginIndex)
	}
	return result
}

type sheetEntry struct {
	id      int
	summary models.SheetSummary
}

func sortedSheets(index map[int]models.SheetSummary) []sheetEntry {
	entries := make([]sheetEntry, 0, len(index))
	for id, summary := range index {
		entries = append(entries, sheetEntry{id: id, summary: summary})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	return entries
}

func (s *SyncService) syncSheet(
	ctx context.Context,
	result *models.SyncActivityReport,
	activity models.Activity,
	qcl, rcl string,
	kind models.SheetKind,
	sheetID int,
	summary models.SheetSummary,
	loginIndex map[string]int64,
) {
	title, required := models.SheetRequired(kind, summary)
	if !required {
		return
	}

	sheetReport := models.SyncSheetReport{
		Kind:    kind,
		SheetID: sheetID,
		Title:   title,
	}
	defer func() {
		result.Sheets = append(result.Sheets, sheetReport)
		result.GradesUpdated += sheetReport.GradesUpdated
		result.GradesFailed += sheetReport.GradesFailed
	}()

	itemNumber, err := models.GradeItemNumber(kind, sheetID)
	if err != nil {
		sheetReport.Error = err.Error()
		result.ItemsFailed++
		s.logger.Error("sheet id out of range",
			zap.Int64("activity_id", activity.ID),
			zap.String("kind", string(kind)),
			zap.Int("sheet", sheetID))
		return
	}
	sheetReport.ItemNumber = itemNumber

	if err := s.gradebook.UpsertColumn(ctx, models.GradeColumn{
		CourseID:   activity.CourseID,
		ItemNumber: itemNumber,
		Title:      title,
		GradeMin:   0,
		GradeMax:   gradeMax,
	}); err != nil {
		sheetReport.Error = err.Error()
		result.ItemsFailed++
		return
	}
	result.ItemsUpdated++

	var rows []models.ScoreRow
	if kind == models.SheetKindWorksheet {
		rows, err = s.remote.GetSheetScores(ctx, qcl, rcl, sheetID)
	} else {
		rows, err = s.remote.GetExamScores(ctx, qcl, rcl, sheetID)
	}
	if err != nil {
		sheetReport.Error = err.Error()
		result.ItemsFailed++
		return
	}

	for _, row := range rows {
		userID, ok := loginIndex[row.Login]
		if !ok {
			// Supervisor and stale accounts have no local counterpart;
			// their rows count as failures so operators notice them.
			sheetReport.GradesFailed++
			s.logger.Warn("score row has no local user",
				zap.Int64("activity_id", activity.ID),
				zap.String("login", row.Login),
				zap.String("kind", string(kind)),
				zap.Int("sheet", sheetID))
			continue
		}
		grade := row.Score
		if kind == models.SheetKindWorksheet {
			grade *= worksheetScoreFactor
		}
		if err := s.gradebook.UpsertGrade(ctx, models.UserGrade{
			CourseID:   activity.CourseID,
			ItemNumber: itemNumber,
			UserID:     userID,
			RawGrade:   grade,
		}); err != nil {
			sheetReport.GradesFailed++
			continue
		}
		sheetReport.GradesUpdated++
	}
}

// Report returns one stored run report.
func (s *SyncService) Report(ctx context.Context, id string) (*models.SyncRunReport, error) {
	return s.reports.FindRun(ctx, id)
}

// LastReport returns the most recent run report.
func (s *SyncService) LastReport(ctx context.Context) (*models.SyncRunReport, error) {
	return s.reports.LastRun(ctx)
}
