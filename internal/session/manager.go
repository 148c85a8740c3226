package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	"github.com/noah-isme/wims-bridge-api/pkg/config"
)

// SupervisorLogin is the reserved login of the class supervisor account.
const SupervisorLogin = "supervisor"

// PageKind selects which class page an access URL should land on.
type PageKind string

const (
	PageHome      PageKind = "home"
	PageGrades    PageKind = "grades"
	PageWorksheet PageKind = "worksheet"
	PageExam      PageKind = "exam"
)

// remoteAccount is the slice of the WIMS client the manager needs.
type remoteAccount interface {
	CheckUser(ctx context.Context, qcl, rcl, login string) (bool, error)
	AddUser(ctx context.Context, qcl, rcl, firstName, lastName, login string) error
	AuthUser(ctx context.Context, qcl, rcl, login, userIP string) (string, error)
	DelUser(ctx context.Context, qcl, rcl, login string) error
	CleanClass(ctx context.Context, qcl, rcl string) error
}

// Manager owns identity derivation and session URL caching for remote
// accounts. Sessions opened by authuser stay valid server-side for a while,
// so the home URL of a (class, login) pair is cached per process and reused
// until something invalidates the account.
type Manager struct {
	remote        remoteAccount
	logger        *zap.Logger
	useNameLogins bool

	mu       sync.Mutex
	sessions map[string]string
}

// NewManager builds a session manager over the given remote client.
func NewManager(remote remoteAccount, cfg config.WIMSConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		remote:        remote,
		logger:        logger,
		useNameLogins: cfg.UseNameInLogin,
		sessions:      map[string]string{},
	}
}

// OwnerToken derives the binding token a class carries for one activity.
// The token ties the remote class to exactly one course-module id.
func OwnerToken(activityID int64) string {
	return fmt.Sprintf("moodle_%d", activityID)
}

// Login derives the remote login for a local user. Opaque logins encode only
// the user id; readable logins prepend the first initial and last name,
// reduced to lowercase letters, so teachers can recognise participants in
// the class view. The id suffix keeps either form collision-free.
//
// The initial is the raw first character of the first name; a non-letter
// there is filtered out with the rest, and a name with no letters at all
// leaves the bare id as login.
func (m *Manager) Login(user models.LocalUser) string {
	if !m.useNameLogins {
		return "moodleuser" + strconv.FormatInt(user.ID, 10)
	}

	initial := ""
	if first := []rune(user.FirstName); len(first) > 0 {
		initial = string(first[0])
	}
	name := letters(initial + user.LastName)
	if len(name) > 16 {
		name = name[:16]
	}
	return name + strconv.FormatInt(user.ID, 10)
}

func letters(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EnsureUser guarantees the user has an account in the class, creating one
// when absent. A cached session for the login is proof enough of existence;
// the round trip is skipped then.
func (m *Manager) EnsureUser(ctx context.Context, qcl, rcl string, user models.LocalUser) (string, error) {
	login := m.Login(user)

	if m.cachedURL(qcl, rcl, login) != "" {
		return login, nil
	}

	present, err := m.remote.CheckUser(ctx, qcl, rcl, login)
	if err != nil {
		return "", err
	}
	if present {
		return login, nil
	}

	if err := m.remote.AddUser(ctx, qcl, rcl, user.FirstName, user.LastName, login); err != nil {
		return "", err
	}
	m.logger.Info("remote account created",
		zap.String("class", qcl),
		zap.String("login", login))
	return login, nil
}

// PortalURL returns a ready-to-open session URL for the login, landing on
// the requested page. The home URL comes from the cache when possible; the
// page suffix is recomputed on every call, so one cached session serves all
// page kinds.
func (m *Manager) PortalURL(ctx context.Context, qcl, rcl, login, userIP, lang string, page PageKind, ref int) (string, error) {
	homeURL := m.cachedURL(qcl, rcl, login)
	if homeURL == "" {
		fresh, err := m.remote.AuthUser(ctx, qcl, rcl, login, userIP)
		if err != nil {
			return "", err
		}
		homeURL = fresh
		m.storeURL(qcl, rcl, login, fresh)
	}
	return homeURL + pageSuffix(page, ref) + langSuffix(lang), nil
}

func pageSuffix(page PageKind, ref int) string {
	switch page {
	case PageGrades:
		return "&module=adm/class/userscore"
	case PageWorksheet:
		return "&module=adm/sheet&sh=" + strconv.Itoa(ref)
	case PageExam:
		return "&module=adm/class/exam&exam=" + strconv.Itoa(ref)
	default:
		return ""
	}
}

func langSuffix(lang string) string {
	if lang == "" {
		return ""
	}
	return "&lang=" + lang
}

// RemoveUser deletes the account and its work from the class, dropping any
// cached session for it.
func (m *Manager) RemoveUser(ctx context.Context, qcl, rcl, login string) error {
	if err := m.remote.DelUser(ctx, qcl, rcl, login); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, sessionKey(qcl, rcl, login))
	m.mu.Unlock()
	return nil
}

// CleanClass wipes every participant from the class, dropping all cached
// sessions of that class.
func (m *Manager) CleanClass(ctx context.Context, qcl, rcl string) error {
	if err := m.remote.CleanClass(ctx, qcl, rcl); err != nil {
		return err
	}
	prefix := sessionKey(qcl, rcl, "")
	m.mu.Lock()
	for key := range m.sessions {
		if strings.HasPrefix(key, prefix) {
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) cachedURL(qcl, rcl, login string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionKey(qcl, rcl, login)]
}

func (m *Manager) storeURL(qcl, rcl, login, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionKey(qcl, rcl, login)] = url
}

func sessionKey(qcl, rcl, login string) string {
	return qcl + "/" + rcl + "/" + login
}
