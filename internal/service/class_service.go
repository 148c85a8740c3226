package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	"github.com/noah-isme/wims-bridge-api/internal/session"
	"github.com/noah-isme/wims-bridge-api/internal/wims"
	"github.com/noah-isme/wims-bridge-api/pkg/config"
	appErrors "github.com/noah-isme/wims-bridge-api/pkg/errors"
)

type classActivityRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Activity, error)
	SetClassID(ctx context.Context, id int64, classID string) error
}

type classRemote interface {
	CheckIdent(ctx context.Context) error
	CheckClass(ctx context.Context, qcl, rcl string, extended bool) error
	AddClass(ctx context.Context, rcl, classData, supervisorData string) (string, error)
	UpdateClass(ctx context.Context, qcl, rcl, data string) error
	UpdateClassSupervisor(ctx context.Context, qcl, rcl, data string) error
	GetClassConfig(ctx context.Context, qcl, rcl string) (map[string]string, error)
	GetUserConfig(ctx context.Context, qcl, rcl, login string) (map[string]string, error)
	ListSheets(ctx context.Context, qcl, rcl string) (map[int]models.SheetSummary, error)
	ListExams(ctx context.Context, qcl, rcl string) (map[int]models.SheetSummary, error)
	GetSheetProperties(ctx context.Context, qcl, rcl string, sheet int) (*models.SheetProperties, error)
	GetExamProperties(ctx context.Context, qcl, rcl string, exam int) (*models.ExamProperties, error)
	UpdateSheetProperties(ctx context.Context, qcl, rcl string, sheet int, data string) error
	UpdateExamProperties(ctx context.Context, qcl, rcl string, exam int, data string) error
	GetScore(ctx context.Context, qcl, rcl, login string) (map[string]string, error)
	ListClassBackups(ctx context.Context, qcl string) (*models.BackupList, error)
	RestoreClassBackup(ctx context.Context, qcl string, year int) error
}

type sessionBroker interface {
	Login(user models.LocalUser) string
	EnsureUser(ctx context.Context, qcl, rcl string, user models.LocalUser) (string, error)
	PortalURL(ctx context.Context, qcl, rcl, login, userIP, lang string, page session.PageKind, ref int) (string, error)
	RemoveUser(ctx context.Context, qcl, rcl, login string) error
	CleanClass(ctx context.Context, qcl, rcl string) error
}

// ClassService owns the lifecycle of remote classes: provisioning them for
// activities, keeping their settings in step, and handing out access URLs.
type ClassService struct {
	activities classActivityRepository
	remote     classRemote
	sessions   sessionBroker
	logger     *zap.Logger
	lang       string
}

// NewClassService constructs the service.
func NewClassService(activities classActivityRepository, remote classRemote, sessions sessionBroker, cfg config.WIMSConfig, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{
		activities: activities,
		remote:     remote,
		sessions:   sessions,
		logger:     logger,
		lang:       cfg.DefaultLang,
	}
}

// mapRemoteError translates wims client errors into HTTP-aware ones.
func mapRemoteError(err error) error {
	if err == nil {
		return nil
	}
	var ce *wims.CommsError
	if errors.As(err, &ce) {
		return appErrors.Wrap(err, appErrors.ErrServerUnreachable.Code, appErrors.ErrServerUnreachable.Status, appErrors.ErrServerUnreachable.Message)
	}
	var na *wims.NotAllowedError
	if errors.As(err, &na) {
		return appErrors.Wrap(err, appErrors.ErrJobNotAllowed.Code, appErrors.ErrJobNotAllowed.Status, appErrors.ErrJobNotAllowed.Message)
	}
	var pe *wims.ProtocolError
	if errors.As(err, &pe) {
		return appErrors.Wrap(err, appErrors.ErrServerRejected.Code, appErrors.ErrServerRejected.Status, "wims server sent an unreadable response")
	}
	var re *wims.RemoteError
	if errors.As(err, &re) {
		return appErrors.Wrap(err, appErrors.ErrServerRejected.Code, appErrors.ErrServerRejected.Status, re.Message)
	}
	return err
}

// CheckConnection verifies the configured credentials against the server.
func (s *ClassService) CheckConnection(ctx context.Context) error {
	return mapRemoteError(s.remote.CheckIdent(ctx))
}

// EnsureClass guarantees the activity has a reachable remote class, creating
// or restoring one as needed, and returns its class id with the binding
// token. Looking up an already-bound class never creates anything.
func (s *ClassService) EnsureClass(ctx context.Context, activity *models.Activity) (string, string, error) {
	return s.ensureClass(ctx, activity, false)
}

// ProvisionClass is EnsureClass with an explicit recovery choice: with force
// set, a stored class that vanished server-side is replaced by a freshly
// created one instead of being restored from backup. A class that still
// exists is never replaced, forced or not.
func (s *ClassService) ProvisionClass(ctx context.Context, activity *models.Activity, force bool) (string, string, error) {
	return s.ensureClass(ctx, activity, force)
}

func (s *ClassService) ensureClass(ctx context.Context, activity *models.Activity, force bool) (string, string, error) {
	rcl := session.OwnerToken(activity.ID)

	if activity.HasClass() {
		qcl := *activity.ClassID
		err := s.remote.CheckClass(ctx, qcl, rcl, false)
		if err == nil {
			return qcl, rcl, nil
		}
		if !wims.IsRemoteFailure(err) {
			return "", "", mapRemoteError(err)
		}
		if force {
			// Abandon the vanished class; createClass overwrites the
			// stale binding with the new class id.
			s.logger.Info("forced class recreation",
				zap.Int64("activity_id", activity.ID),
				zap.String("stale_class", qcl))
			fresh, err := s.createClass(ctx, activity, rcl)
			if err != nil {
				return "", "", err
			}
			return fresh, rcl, nil
		}
		// The class vanished server-side. A yearly backup may still hold
		// it; restore the most recent one before giving up.
		if restoreErr := s.restoreLatestBackup(ctx, qcl, rcl); restoreErr != nil {
			return "", "", restoreErr
		}
		return qcl, rcl, nil
	}

	qcl, err := s.createClass(ctx, activity, rcl)
	if err != nil {
		return "", "", err
	}
	return qcl, rcl, nil
}

func (s *ClassService) restoreLatestBackup(ctx context.Context, qcl, rcl string) error {
	backups, err := s.remote.ListClassBackups(ctx, qcl)
	if err != nil {
		return appErrors.Clone(appErrors.ErrClassMissing, "")
	}
	years := make([]int, 0, len(backups.Restorable))
	for _, raw := range backups.Restorable {
		if year, err := strconv.Atoi(raw); err == nil {
			years = append(years, year)
		}
	}
	if len(years) == 0 {
		return appErrors.Clone(appErrors.ErrClassMissing, "")
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	if err := s.remote.RestoreClassBackup(ctx, qcl, years[0]); err != nil {
		return mapRemoteError(err)
	}
	if err := s.remote.CheckClass(ctx, qcl, rcl, false); err != nil {
		return mapRemoteError(err)
	}
	s.logger.Info("class restored from backup",
		zap.String("class", qcl),
		zap.Int("year", years[0]))
	return nil
}

func (s *ClassService) createClass(ctx context.Context, activity *models.Activity, rcl string) (string, error) {
	lang := activity.Lang
	if lang == "" {
		lang = s.lang
	}
	password := "Pwd" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	classData := propertyBlock(map[string]string{
		"description": activity.Name,
		"institution": activity.Institution,
		"supervisor":  strings.TrimSpace(activity.SupervisorFirstName + " " + activity.SupervisorLastName),
		"email":       activity.SupervisorEmail,
		"password":    password,
		"lang":        lang,
		"secure":      "all",
		"expiration":  activity.Expiration,
	})
	supervisorData := propertyBlock(map[string]string{
		"lastname":  activity.SupervisorLastName,
		"firstname": activity.SupervisorFirstName,
		"email":     activity.SupervisorEmail,
		"password":  password,
	})

	qcl, err := s.remote.AddClass(ctx, rcl, classData, supervisorData)
	if err != nil {
		return "", mapRemoteError(err)
	}

	if err := s.activities.SetClassID(ctx, activity.ID, qcl); err != nil {
		return "", err
	}
	classID := qcl
	activity.ClassID = &classID

	// Register both connection identities so the class accepts us over
	// plain HTTP and TLS alike.
	connections := "connections=+moodlejson/" + rcl + "+ +moodlejsonhttps/" + rcl + "+\n"
	if err := s.remote.UpdateClass(ctx, qcl, rcl, connections); err != nil {
		return "", mapRemoteError(err)
	}

	s.logger.Info("class created",
		zap.Int64("activity_id", activity.ID),
		zap.String("class", qcl))
	return qcl, nil
}

// propertyBlock renders a key=value block in the line format adm/raw data
// parameters expect. Empty values are omitted.
func propertyBlock(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for key, value := range values {
		if value != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(values[key])
		b.WriteString("\n")
	}
	return b.String()
}

// ClassConfig returns the remote class settings.
func (s *ClassService) ClassConfig(ctx context.Context, activity *models.Activity) (map[string]string, error) {
	qcl, rcl, err := s.EnsureClass(ctx, activity)
	if err != nil {
		return nil, err
	}
	cfg, err := s.remote.GetClassConfig(ctx, qcl, rcl)
	if err != nil {
		return nil, mapRemoteError(err)
	}
	return cfg, nil
}

// UpdateClassConfig pushes changed class and supervisor settings.
func (s *ClassService) UpdateClassConfig(ctx context.Context, activity *models.Activity, classValues, supervisorValues map[string]string) error {
	qcl, rcl, err := s.EnsureClass(ctx, activity)
	if err != nil {
		return err
	}
	if block := propertyBlock(classValues); block != "" {
		if err := s.remote.UpdateClass(ctx, qcl, rcl, block); err != nil {
			return mapRemoteError(err)
		}
	}
	if block := propertyBlock(supervisorValues); block != "" {
		if err := s.remote.UpdateClassSupervisor(ctx, qcl, rcl, block); err != nil {
			return mapRemoteError(err)
		}
	}
	return nil
}

// SupervisorURL opens a supervisor session and returns the landing URL.
func (s *ClassService) SupervisorURL(ctx context.Context, activity *models.Activity, page session.PageKind, ref int, userIP string) (string, error) {
	qcl, rcl, err := s.EnsureClass(ctx, activity)
	if err != nil {
		return "", err
	}
	url, err := s.sessions.PortalURL(ctx, qcl, rcl, session.SupervisorLogin, userIP, s.langFor(activity), page, ref)
	if err != nil {
		return "", mapRemoteError(err)
	}
	return url, nil
}

// StudentURL guarantees the student has an account, opens a session and
// returns the landing URL.
func (s *ClassService) StudentURL(ctx context.Context, activity *models.Activity, user models.LocalUser, page session.PageKind, ref int, userIP string) (string, error) {
	qcl, rcl, err := s.EnsureClass(ctx, activity)
	if err != nil {
		return "", err
	}
	login, err := s.sessions.EnsureUser(ctx, qcl, rcl, user)
	if err != nil {
		return "", mapRemoteError(err)
	}
	url, err := s.sessions.PortalURL(ctx, qcl, rcl, login, userIP, s.langFor(activity), page, ref)
	if err != nil {
		return "", mapRemoteError(err)
	}
	return url, nil
}

func (s *ClassService) langFor(activity *models.Activity) string {
	if activity.Lang != "" {
		return activity.Lang
	}
	return s.lang
}

// SheetIndex returns the worksheet and exam catalogue of the class.
func (s *ClassService) SheetIndex(ctx context.Context, activity *models.Activity) (*models.SheetIndex, error) {
	qcl, rcl, err := s.EnsureClass(ctx, activity)
	if err != nil {
		return nil, err
	}
	worksheets, err := s.remote.ListSheets(ctx, qcl, rcl)
	if err != nil {
		return nil, mapRemoteError(err)
	}
	exams, err := s.remote.ListExams(ctx, qcl, rcl)
	if err != nil {
		return nil, mapRemoteError(err)
	}
	return &models.SheetIndex{Worksheets: worksheets, Exams: exams}, nil
}

// SheetProperties returns one worksheet's settings.
func (s *ClassService) SheetProperties(ctx context.Context, activity *models.Activity, sheet int) (*models.SheetProperties, error) {
	qcl, rcl, err := s.EnsureClass(ctx, activity)
	if err != nil {
		return nil, err
	}
	props, err := s.remote.GetSheetProperties(ctx, qcl, rcl, sheet)
	if err != nil {
		return nil, mapRemoteError(err)
	}
	return props, nil
}

// ExamProperties returns one exam's settings.
func (s *ClassService) ExamProperties(ctx context.Context, activity *models.Activity, exam int) (*models.ExamProperties, error) {
	qcl, rcl, err := s.EnsureClass(ctx, activity)
	if err != nil {
		return nil, err
	}
	props, err := s.remote.GetExamProperties(ctx, qcl, rcl, exam)
	if err != nil {
		return nil, mapRemoteError(err)
	}
	return props, nil
}

// UpdateSheetProperties pushes changed worksheet settings.
func (s *ClassService) UpdateSheetProperties(ctx context.Context, activity *models.Activity, sheet int, values map[string]string) error {
	qcl, rcl, err := s.EnsureClass(ctx, activity)
	if err != nil {
		return err
	}
	if err := s.remote.UpdateSheetProperties(ctx, qcl, rcl, sheet, propertyBlock(values)); err != nil {
		return mapRemoteError(err)
	}
	return nil
}

// UpdateExamProperties pushes changed exam settings.
func (s *ClassService) UpdateExamProperties(ctx context.Context, activity *models.Activity, exam int, values map[string]string) error {
	qcl, rcl, err := s.EnsureClass(ctx, activity)
	if err != nil {
		return err
	}
	if err := s.remote.UpdateExamProperties(ctx, qcl, rcl, exam, propertyBlock(values)); err != nil {
		return mapRemoteError(err)
	}
	return nil
}

// UserScores returns every score the class holds for one local user.
func (s *ClassService) UserScores(ctx context.Context, activity *models.Activity, user models.LocalUser) (map[string]string, error) {
	qcl, rcl, err := s.EnsureClass(ctx, activity)
	if err != nil {
		return nil, err
	}
	scores, err := s.remote.GetScore(ctx, qcl, rcl, s.sessions.Login(user))
	if err != nil {
		return nil, mapRemoteError(err)
	}
	return scores, nil
}

// RemoveUser deletes one participant and their work from the class.
func (s *ClassService) RemoveUser(ctx context.Context, activity *models.Activity, user models.LocalUser) error {
	qcl, rcl, err := s.EnsureClass(ctx, activity)
	if err != nil {
		return err
	}
	if err := s.sessions.RemoveUser(ctx, qcl, rcl, s.sessions.Login(user)); err != nil {
		return mapRemoteError(err)
	}
	return nil
}

// CleanClass wipes all participants and their work from the class.
func (s *ClassService) CleanClass(ctx context.Context, activity *models.Activity) error {
	qcl, rcl, err := s.EnsureClass(ctx, activity)
	if err != nil {
		return err
	}
	if err := s.sessions.CleanClass(ctx, qcl, rcl); err != nil {
		return mapRemoteError(err)
	}
	return nil
}

// Backups lists the restorable yearly backups of the activity's class.
func (s *ClassService) Backups(ctx context.Context, activity *models.Activity) (*models.BackupList, error) {
	if !activity.HasClass() {
		return nil, appErrors.Clone(appErrors.ErrClassMissing, "activity has no class yet")
	}
	backups, err := s.remote.ListClassBackups(ctx, *activity.ClassID)
	if err != nil {
		return nil, mapRemoteError(err)
	}
	return backups, nil
}

// RestoreBackup restores the activity's class from one backup year.
func (s *ClassService) RestoreBackup(ctx context.Context, activity *models.Activity, year int) error {
	if !activity.HasClass() {
		return appErrors.Clone(appErrors.ErrClassMissing, "activity has no class yet")
	}
	if err := s.remote.RestoreClassBackup(ctx, *activity.ClassID, year); err != nil {
		return mapRemoteError(err)
	}
	return nil
}
