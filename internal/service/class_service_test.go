package service

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	"github.com/noah-isme/wims-bridge-api/internal/session"
	"github.com/noah-isme/wims-bridge-api/internal/wims"
	"github.com/noah-isme/wims-bridge-api/pkg/config"
	appErrors "github.com/noah-isme/wims-bridge-api/pkg/errors"
)

type activityRepoStub struct {
	setCalls map[int64]string
	setErr   error
}

func (s *activityRepoStub) FindByID(_ context.Context, id int64) (*models.Activity, error) {
	return &models.Activity{ID: id}, nil
}

func (s *activityRepoStub) SetClassID(_ context.Context, id int64, classID string) error {
	if s.setCalls == nil {
		s.setCalls = map[int64]string{}
	}
	s.setCalls[id] = classID
	return s.setErr
}

type remoteStub struct {
	checkErr       error
	checkCalls     int
	addedClassID   string
	addErr         error
	classData      string
	supervisorData string
	updates        []string
	backups        *models.BackupList
	backupsErr     error
	restoredYear   int
	restoreErr     error
	sheets         map[int]models.SheetSummary
	exams          map[int]models.SheetSummary
	scores         map[string]string
}

func (s *remoteStub) CheckIdent(_ context.Context) error { return nil }

func (s *remoteStub) CheckClass(_ context.Context, _, _ string, _ bool) error {
	s.checkCalls++
	return s.checkErr
}

func (s *remoteStub) AddClass(_ context.Context, _, classData, supervisorData string) (string, error) {
	s.classData = classData
	s.supervisorData = supervisorData
	return s.addedClassID, s.addErr
}

func (s *remoteStub) UpdateClass(_ context.Context, _, _, data string) error {
	s.updates = append(s.updates, data)
	return nil
}

func (s *remoteStub) UpdateClassSupervisor(_ context.Context, _, _, data string) error {
	s.updates = append(s.updates, "supervisor:"+data)
	return nil
}

func (s *remoteStub) GetClassConfig(_ context.Context, _, _ string) (map[string]string, error) {
	return map[string]string{"description": "Algebra"}, nil
}

func (s *remoteStub) GetUserConfig(_ context.Context, _, _, _ string) (map[string]string, error) {
	return nil, nil
}

func (s *remoteStub) ListSheets(_ context.Context, _, _ string) (map[int]models.SheetSummary, error) {
	return s.sheets, nil
}

func (s *remoteStub) ListExams(_ context.Context, _, _ string) (map[int]models.SheetSummary, error) {
	return s.exams, nil
}

func (s *remoteStub) GetSheetProperties(_ context.Context, _, _ string, _ int) (*models.SheetProperties, error) {
	return &models.SheetProperties{Title: "Derivatives"}, nil
}

func (s *remoteStub) GetExamProperties(_ context.Context, _, _ string, _ int) (*models.ExamProperties, error) {
	return &models.ExamProperties{Title: "Final"}, nil
}

func (s *remoteStub) UpdateSheetProperties(_ context.Context, _, _ string, _ int, data string) error {
	s.updates = append(s.updates, "sheet:"+data)
	return nil
}

func (s *remoteStub) UpdateExamProperties(_ context.Context, _, _ string, _ int, data string) error {
	s.updates = append(s.updates, "exam:"+data)
	return nil
}

func (s *remoteStub) GetScore(_ context.Context, _, _, _ string) (map[string]string, error) {
	return s.scores, nil
}

func (s *remoteStub) ListClassBackups(_ context.Context, _ string) (*models.BackupList, error) {
	return s.backups, s.backupsErr
}

func (s *remoteStub) RestoreClassBackup(_ context.Context, _ string, year int) error {
	s.restoredYear = year
	return s.restoreErr
}

type sessionStub struct {
	ensured    []string
	portalURL  string
	portalPage session.PageKind
	removed    string
	cleaned    bool
}

func (s *sessionStub) Login(user models.LocalUser) string {
	return "moodleuser" + strconv.FormatInt(user.ID, 10)
}

func (s *sessionStub) EnsureUser(_ context.Context, _, _ string, user models.LocalUser) (string, error) {
	login := s.Login(user)
	s.ensured = append(s.ensured, login)
	return login, nil
}

func (s *sessionStub) PortalURL(_ context.Context, _, _, login, _, _ string, page session.PageKind, _ int) (string, error) {
	s.portalPage = page
	return s.portalURL + "#" + login, nil
}

func (s *sessionStub) RemoveUser(_ context.Context, _, _, login string) error {
	s.removed = login
	return nil
}

func (s *sessionStub) CleanClass(_ context.Context, _, _ string) error {
	s.cleaned = true
	return nil
}

func strPtr(v string) *string { return &v }

func newClassService(repo *activityRepoStub, remote classRemote, sessions *sessionStub) *ClassService {
	return NewClassService(repo, remote, sessions, config.WIMSConfig{DefaultLang: "en"}, nil)
}

func TestEnsureClassExisting(t *testing.T) {
	repo := &activityRepoStub{}
	remote := &remoteStub{}
	svc := newClassService(repo, remote, &sessionStub{})
	activity := &models.Activity{ID: 17, ClassID: strPtr("9001")}

	qcl, rcl, err := svc.EnsureClass(context.Background(), activity)
	require.NoError(t, err)

	assert.Equal(t, "9001", qcl)
	assert.Equal(t, "moodle_17", rcl)
	assert.Empty(t, repo.setCalls)
}

func TestEnsureClassCreates(t *testing.T) {
	repo := &activityRepoStub{}
	remote := &remoteStub{addedClassID: "9002"}
	svc := newClassService(repo, remote, &sessionStub{})
	activity := &models.Activity{
		ID:                  17,
		Name:                "Calculus drills",
		Institution:         "Example University",
		SupervisorFirstName: "Ada",
		SupervisorLastName:  "Lovelace",
		SupervisorEmail:     "ada@example.org",
	}

	qcl, _, err := svc.EnsureClass(context.Background(), activity)
	require.NoError(t, err)

	assert.Equal(t, "9002", qcl)
	assert.Equal(t, "9002", repo.setCalls[17])
	assert.Contains(t, remote.classData, "description=Calculus drills\n")
	assert.Contains(t, remote.classData, "supervisor=Ada Lovelace\n")
	assert.Contains(t, remote.classData, "secure=all\n")
	assert.Contains(t, remote.classData, "lang=en\n")
	assert.Contains(t, remote.supervisorData, "lastname=Lovelace\n")

	// Both connection identities get registered right after creation.
	require.Len(t, remote.updates, 1)
	assert.Equal(t, "connections=+moodlejson/moodle_17+ +moodlejsonhttps/moodle_17+\n", remote.updates[0])
}

func TestEnsureClassRestoresFromBackup(t *testing.T) {
	remote := &remoteStub{
		backups: &models.BackupList{Restorable: []string{"2024", "2025"}, Total: 2},
	}
	svc := newClassService(&activityRepoStub{}, &restoreOnceRemote{remoteStub: remote}, &sessionStub{})
	activity := &models.Activity{ID: 17, ClassID: strPtr("9001")}

	qcl, _, err := svc.EnsureClass(context.Background(), activity)
	require.NoError(t, err)
	assert.Equal(t, "9001", qcl)
	assert.Equal(t, 2025, remote.restoredYear)
}

// restoreOnceRemote fails class checks until a restore happened.
type restoreOnceRemote struct {
	*remoteStub
}

func (s *restoreOnceRemote) CheckClass(ctx context.Context, qcl, rcl string, extended bool) error {
	if s.restoredYear != 0 {
		return nil
	}
	return &wims.RemoteError{Job: "checkclass", Message: "class not found"}
}

func TestEnsureClassMissingWithoutBackups(t *testing.T) {
	remote := &remoteStub{
		checkErr: &wims.RemoteError{Job: "checkclass", Message: "class not found"},
		backups:  &models.BackupList{},
	}
	svc := newClassService(&activityRepoStub{}, remote, &sessionStub{})
	activity := &models.Activity{ID: 17, ClassID: strPtr("9001")}

	_, _, err := svc.EnsureClass(context.Background(), activity)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrClassMissing.Code, appErr.Code)
	assert.Zero(t, remote.restoredYear)
}

func TestProvisionClassForceRecreatesVanishedClass(t *testing.T) {
	repo := &activityRepoStub{}
	remote := &remoteStub{
		checkErr:     &wims.RemoteError{Job: "checkclass", Message: "class not found"},
		addedClassID: "9100",
	}
	svc := newClassService(repo, remote, &sessionStub{})
	activity := &models.Activity{ID: 17, Name: "Calculus drills", ClassID: strPtr("9001")}

	qcl, _, err := svc.ProvisionClass(context.Background(), activity, true)
	require.NoError(t, err)

	// The stale binding is replaced by the fresh class, no restore attempt.
	assert.Equal(t, "9100", qcl)
	assert.Equal(t, "9100", repo.setCalls[17])
	assert.Zero(t, remote.restoredYear)
}

func TestProvisionClassForceKeepsLiveClass(t *testing.T) {
	repo := &activityRepoStub{}
	remote := &remoteStub{addedClassID: "9100"}
	svc := newClassService(repo, remote, &sessionStub{})
	activity := &models.Activity{ID: 17, ClassID: strPtr("9001")}

	qcl, _, err := svc.ProvisionClass(context.Background(), activity, true)
	require.NoError(t, err)

	assert.Equal(t, "9001", qcl)
	assert.Empty(t, repo.setCalls)
}

func TestEnsureClassCommsFailureNotTreatedAsMissing(t *testing.T) {
	remote := &remoteStub{
		checkErr: &wims.CommsError{Job: "checkclass", Err: errors.New("timeout")},
	}
	svc := newClassService(&activityRepoStub{}, remote, &sessionStub{})
	activity := &models.Activity{ID: 17, ClassID: strPtr("9001")}

	_, _, err := svc.EnsureClass(context.Background(), activity)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrServerUnreachable.Code, appErr.Code)
}

func TestStudentURL(t *testing.T) {
	sessions := &sessionStub{portalURL: "https://w/wims.cgi?session=S1"}
	svc := newClassService(&activityRepoStub{}, &remoteStub{}, sessions)
	activity := &models.Activity{ID: 17, ClassID: strPtr("9001")}

	url, err := svc.StudentURL(context.Background(), activity, models.LocalUser{ID: 2}, session.PageWorksheet, 3, "198.51.100.7")
	require.NoError(t, err)

	assert.Equal(t, session.PageWorksheet, sessions.portalPage)
	assert.Contains(t, url, "https://w/wims.cgi?session=S1")
	require.Len(t, sessions.ensured, 1)
}

func TestSupervisorURL(t *testing.T) {
	sessions := &sessionStub{portalURL: "https://w/wims.cgi?session=S2"}
	svc := newClassService(&activityRepoStub{}, &remoteStub{}, sessions)
	activity := &models.Activity{ID: 17, ClassID: strPtr("9001")}

	url, err := svc.SupervisorURL(context.Background(), activity, session.PageGrades, 0, "")
	require.NoError(t, err)

	assert.Contains(t, url, "#supervisor")
	assert.Empty(t, sessions.ensured)
}

func TestCleanClass(t *testing.T) {
	sessions := &sessionStub{}
	svc := newClassService(&activityRepoStub{}, &remoteStub{}, sessions)
	activity := &models.Activity{ID: 17, ClassID: strPtr("9001")}

	require.NoError(t, svc.CleanClass(context.Background(), activity))
	assert.True(t, sessions.cleaned)
}

func TestJobNotAllowedSurfaced(t *testing.T) {
	remote := &remoteStub{checkErr: &wims.NotAllowedError{Job: "checkclass"}}
	svc := newClassService(&activityRepoStub{}, remote, &sessionStub{})
	activity := &models.Activity{ID: 17, ClassID: strPtr("9001")}

	_, _, err := svc.EnsureClass(context.Background(), activity)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrJobNotAllowed.Code, appErr.Code)
}

func TestPropertyBlockSkipsEmpty(t *testing.T) {
	block := propertyBlock(map[string]string{"description": "Algebra", "expiration": "", "lang": "fr"})
	assert.Equal(t, "description=Algebra\nlang=fr\n", block)
}
