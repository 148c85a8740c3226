package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	"github.com/noah-isme/wims-bridge-api/internal/wims"
	"github.com/noah-isme/wims-bridge-api/pkg/config"
)

type syncActivityStub struct {
	activities []models.Activity
}

func (s *syncActivityStub) ListProvisioned(_ context.Context) ([]models.Activity, error) {
	return s.activities, nil
}

type syncUserStub struct {
	users []models.LocalUser
}

func (s *syncUserStub) ListActive(_ context.Context) ([]models.LocalUser, error) {
	return s.users, nil
}

type gradebookStub struct {
	mu       sync.Mutex
	columns  []models.GradeColumn
	grades   []models.UserGrade
	gradeErr error
}

func (s *gradebookStub) UpsertColumn(_ context.Context, column models.GradeColumn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns = append(s.columns, column)
	return nil
}

func (s *gradebookStub) UpsertGrade(_ context.Context, grade models.UserGrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gradeErr != nil {
		return s.gradeErr
	}
	s.grades = append(s.grades, grade)
	return nil
}

type syncRemoteStub struct {
	checkErr    error
	sheets      map[int]models.SheetSummary
	exams       map[int]models.SheetSummary
	sheetScores map[int][]models.ScoreRow
	examScores  map[int][]models.ScoreRow
}

func (s *syncRemoteStub) CheckClass(_ context.Context, _, _ string, _ bool) error {
	return s.checkErr
}

func (s *syncRemoteStub) ListSheets(_ context.Context, _, _ string) (map[int]models.SheetSummary, error) {
	return s.sheets, nil
}

func (s *syncRemoteStub) ListExams(_ context.Context, _, _ string) (map[int]models.SheetSummary, error) {
	return s.exams, nil
}

func (s *syncRemoteStub) GetSheetScores(_ context.Context, _, _ string, sheet int) ([]models.ScoreRow, error) {
	return s.sheetScores[sheet], nil
}

func (s *syncRemoteStub) GetExamScores(_ context.Context, _, _ string, exam int) ([]models.ScoreRow, error) {
	return s.examScores[exam], nil
}

type reportStoreStub struct {
	saved *models.SyncRunReport
}

func (s *reportStoreStub) SaveRun(_ context.Context, report *models.SyncRunReport) error {
	s.saved = report
	return nil
}

func (s *reportStoreStub) FindRun(_ context.Context, _ string) (*models.SyncRunReport, error) {
	return s.saved, nil
}

func (s *reportStoreStub) LastRun(_ context.Context) (*models.SyncRunReport, error) {
	return s.saved, nil
}

type loginStub struct{}

func (loginStub) Login(user models.LocalUser) string {
	return "moodleuser" + string(rune('0'+user.ID))
}

type syncMetricsStub struct {
	runs    int
	failed  bool
	updated int
}

func (s *syncMetricsStub) ObserveSyncRun(failed bool, gradesUpdated, _ int) {
	s.runs++
	s.failed = failed
	s.updated = gradesUpdated
}

func newSyncService(activities *syncActivityStub, remote *syncRemoteStub, gradebook *gradebookStub, reports *reportStoreStub, metrics *syncMetricsStub) *SyncService {
	users := &syncUserStub{users: []models.LocalUser{
		{ID: 1, FirstName: "Ada", LastName: "Lovelace"},
		{ID: 2, FirstName: "Alan", LastName: "Turing"},
	}}
	return NewSyncService(activities, users, gradebook, remote, reports, loginStub{}, metrics, config.SyncConfig{Workers: 1}, nil)
}

func provisioned(id, courseID int64, qcl string) models.Activity {
	return models.Activity{ID: id, CourseID: courseID, ClassID: &qcl}
}

func TestSyncRunSyncsGradedSheets(t *testing.T) {
	remote := &syncRemoteStub{
		sheets: map[int]models.SheetSummary{
			1: {Title: "Derivatives *", State: "1"},
			2: {Title: "Ungraded practice", State: "1"},
			3: {Title: "Still in preparation *", State: "0"},
		},
		exams: map[int]models.SheetSummary{
			1: {Title: "Final", State: "1"},
		},
		sheetScores: map[int][]models.ScoreRow{
			1: {{Login: "moodleuser1", Score: 87.5}},
		},
		examScores: map[int][]models.ScoreRow{
			1: {{Login: "moodleuser2", Score: 6.5}},
		},
	}
	gradebook := &gradebookStub{}
	reports := &reportStoreStub{}
	metrics := &syncMetricsStub{}
	svc := newSyncService(&syncActivityStub{activities: []models.Activity{provisioned(17, 301, "9001")}}, remote, gradebook, reports, metrics)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	// Two graded sheets: worksheet 1 (marker) and exam 1. The unmarked
	// worksheet and the one still in preparation stay out.
	require.Len(t, gradebook.columns, 2)
	assert.Equal(t, 1001, gradebook.columns[0].ItemNumber)
	assert.Equal(t, "Derivatives", gradebook.columns[0].Title)
	assert.Equal(t, 10.0, gradebook.columns[0].GradeMax)
	assert.Equal(t, 1, gradebook.columns[1].ItemNumber)

	// Worksheet percentages are scaled to the 0..10 gradebook range; exam
	// scores pass through.
	require.Len(t, gradebook.grades, 2)
	assert.InDelta(t, 8.75, gradebook.grades[0].RawGrade, 1e-9)
	assert.Equal(t, int64(1), gradebook.grades[0].UserID)
	assert.InDelta(t, 6.5, gradebook.grades[1].RawGrade, 1e-9)

	assert.Equal(t, 2, report.ItemsUpdated)
	assert.Zero(t, report.ItemsFailed)
	assert.Equal(t, 2, report.GradesUpdated)
	require.NotNil(t, reports.saved)
	assert.Equal(t, report.ID, reports.saved.ID)
	assert.Equal(t, 1, metrics.runs)
	assert.False(t, metrics.failed)
}

func TestSyncRunSkipsUnreachableClass(t *testing.T) {
	remote := &syncRemoteStub{
		checkErr: &wims.RemoteError{Job: "getclass", Message: "class not found"},
	}
	gradebook := &gradebookStub{}
	svc := newSyncService(&syncActivityStub{activities: []models.Activity{provisioned(17, 301, "9001")}}, remote, gradebook, &reportStoreStub{}, &syncMetricsStub{})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Activities, 1)
	assert.True(t, report.Activities[0].Skipped)
	assert.NotEmpty(t, report.Activities[0].SkipReason)
	assert.Empty(t, gradebook.columns)
}

func TestSyncRunRejectsOverflowingWorksheetID(t *testing.T) {
	remote := &syncRemoteStub{
		sheets: map[int]models.SheetSummary{
			1000: {Title: "Overflow *", State: "1"},
		},
		exams: map[int]models.SheetSummary{},
	}
	svc := newSyncService(&syncActivityStub{activities: []models.Activity{provisioned(17, 301, "9001")}}, remote, &gradebookStub{}, &reportStoreStub{}, &syncMetricsStub{})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.ItemsFailed)
	assert.Zero(t, report.ItemsUpdated)
	require.Len(t, report.Activities[0].Sheets, 1)
	assert.NotEmpty(t, report.Activities[0].Sheets[0].Error)
}

func TestSyncRunCountsUnmappedLogins(t *testing.T) {
	remote := &syncRemoteStub{
		sheets: map[int]models.SheetSummary{},
		exams: map[int]models.SheetSummary{
			1: {Title: "Final", State: "1"},
		},
		examScores: map[int][]models.ScoreRow{
			1: {
				{Login: "ghostuser99", Score: 4},
				{Login: "moodleuser1", Score: 5},
			},
		},
	}
	gradebook := &gradebookStub{}
	metrics := &syncMetricsStub{}
	svc := newSyncService(&syncActivityStub{activities: []models.Activity{provisioned(17, 301, "9001")}}, remote, gradebook, &reportStoreStub{}, metrics)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	// The row without a local account fails without aborting the rest.
	assert.Equal(t, 1, report.GradesFailed)
	assert.Equal(t, 1, report.GradesUpdated)
	require.Len(t, gradebook.grades, 1)
	assert.Equal(t, int64(1), gradebook.grades[0].UserID)
	assert.True(t, metrics.failed)
}

func TestSyncRunCountsGradeFailures(t *testing.T) {
	remote := &syncRemoteStub{
		sheets: map[int]models.SheetSummary{},
		exams: map[int]models.SheetSummary{
			1: {Title: "Final", State: "1"},
		},
		examScores: map[int][]models.ScoreRow{
			1: {{Login: "moodleuser1", Score: 5}},
		},
	}
	gradebook := &gradebookStub{gradeErr: assert.AnError}
	metrics := &syncMetricsStub{}
	svc := newSyncService(&syncActivityStub{activities: []models.Activity{provisioned(17, 301, "9001")}}, remote, gradebook, &reportStoreStub{}, metrics)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.GradesFailed)
	assert.Zero(t, report.GradesUpdated)
	assert.True(t, metrics.failed)
}
