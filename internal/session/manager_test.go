package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	"github.com/noah-isme/wims-bridge-api/pkg/config"
)

type remoteStub struct {
	present      bool
	checkErr     error
	addErr       error
	authURL      string
	authErr      error
	checkCalls   int
	addCalls     int
	authCalls    int
	deletedLogin string
	cleaned      bool
}

func (s *remoteStub) CheckUser(_ context.Context, _, _, _ string) (bool, error) {
	s.checkCalls++
	return s.present, s.checkErr
}

func (s *remoteStub) AddUser(_ context.Context, _, _, _, _, _ string) error {
	s.addCalls++
	return s.addErr
}

func (s *remoteStub) AuthUser(_ context.Context, _, _, _, _ string) (string, error) {
	s.authCalls++
	return s.authURL, s.authErr
}

func (s *remoteStub) DelUser(_ context.Context, _, _, login string) error {
	s.deletedLogin = login
	return nil
}

func (s *remoteStub) CleanClass(_ context.Context, _, _ string) error {
	s.cleaned = true
	return nil
}

func newManager(stub *remoteStub, useNames bool) *Manager {
	return NewManager(stub, config.WIMSConfig{UseNameInLogin: useNames}, nil)
}

func TestOwnerToken(t *testing.T) {
	assert.Equal(t, "moodle_17", OwnerToken(17))
}

func TestLoginOpaque(t *testing.T) {
	m := newManager(&remoteStub{}, false)

	login := m.Login(models.LocalUser{ID: 42, FirstName: "Ada", LastName: "Lovelace"})

	assert.Equal(t, "moodleuser42", login)
}

func TestLoginReadable(t *testing.T) {
	m := newManager(&remoteStub{}, true)

	tests := []struct {
		name string
		user models.LocalUser
		want string
	}{
		{"plain name", models.LocalUser{ID: 42, FirstName: "Ada", LastName: "Lovelace"}, "alovelace42"},
		{"accents and spaces dropped", models.LocalUser{ID: 7, FirstName: "Jean-Luc", LastName: "O'Brien 2nd"}, "jobriennd7"},
		{"long name truncated", models.LocalUser{ID: 9, FirstName: "X", LastName: "Abcdefghijklmnopqrstuvwxyz"}, "xabcdefghijklmno9"},
		{"non-letter initial filtered out", models.LocalUser{ID: 5, FirstName: "Émile", LastName: "Zola"}, "zola5"},
		{"unusable name leaves bare id", models.LocalUser{ID: 3, FirstName: "123", LastName: "456"}, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Login(tt.user))
		})
	}
}

func TestEnsureUserExisting(t *testing.T) {
	stub := &remoteStub{present: true}
	m := newManager(stub, false)

	login, err := m.EnsureUser(context.Background(), "9001", "moodle_17", models.LocalUser{ID: 42})
	require.NoError(t, err)

	assert.Equal(t, "moodleuser42", login)
	assert.Equal(t, 1, stub.checkCalls)
	assert.Zero(t, stub.addCalls)
}

func TestEnsureUserCreatesAbsent(t *testing.T) {
	stub := &remoteStub{present: false}
	m := newManager(stub, false)

	_, err := m.EnsureUser(context.Background(), "9001", "moodle_17", models.LocalUser{ID: 42})
	require.NoError(t, err)

	assert.Equal(t, 1, stub.addCalls)
}

func TestEnsureUserSkipsCheckWithCachedSession(t *testing.T) {
	stub := &remoteStub{authURL: "https://w/wims.cgi?session=S1"}
	m := newManager(stub, false)

	_, err := m.PortalURL(context.Background(), "9001", "moodle_17", "moodleuser42", "", "", PageHome, 0)
	require.NoError(t, err)

	_, err = m.EnsureUser(context.Background(), "9001", "moodle_17", models.LocalUser{ID: 42})
	require.NoError(t, err)
	assert.Zero(t, stub.checkCalls)
}

func TestPortalURLCachesHomeURL(t *testing.T) {
	stub := &remoteStub{authURL: "https://w/wims.cgi?session=S1"}
	m := newManager(stub, false)
	ctx := context.Background()

	home, err := m.PortalURL(ctx, "9001", "moodle_17", "moodleuser42", "198.51.100.7", "fr", PageHome, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://w/wims.cgi?session=S1&lang=fr", home)

	// Same session, different landing pages: one authuser round trip.
	grades, err := m.PortalURL(ctx, "9001", "moodle_17", "moodleuser42", "198.51.100.7", "fr", PageGrades, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://w/wims.cgi?session=S1&module=adm/class/userscore&lang=fr", grades)

	sheet, err := m.PortalURL(ctx, "9001", "moodle_17", "moodleuser42", "", "", PageWorksheet, 3)
	require.NoError(t, err)
	assert.Equal(t, "https://w/wims.cgi?session=S1&module=adm/sheet&sh=3", sheet)

	exam, err := m.PortalURL(ctx, "9001", "moodle_17", "moodleuser42", "", "", PageExam, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://w/wims.cgi?session=S1&module=adm/class/exam&exam=1", exam)

	assert.Equal(t, 1, stub.authCalls)
}

func TestRemoveUserDropsCachedSession(t *testing.T) {
	stub := &remoteStub{authURL: "https://w/wims.cgi?session=S1"}
	m := newManager(stub, false)
	ctx := context.Background()

	_, err := m.PortalURL(ctx, "9001", "moodle_17", "moodleuser42", "", "", PageHome, 0)
	require.NoError(t, err)

	require.NoError(t, m.RemoveUser(ctx, "9001", "moodle_17", "moodleuser42"))
	assert.Equal(t, "moodleuser42", stub.deletedLogin)

	stub.authURL = "https://w/wims.cgi?session=S2"
	fresh, err := m.PortalURL(ctx, "9001", "moodle_17", "moodleuser42", "", "", PageHome, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://w/wims.cgi?session=S2", fresh)
	assert.Equal(t, 2, stub.authCalls)
}

func TestCleanClassDropsAllClassSessions(t *testing.T) {
	stub := &remoteStub{authURL: "https://w/wims.cgi?session=S1"}
	m := newManager(stub, false)
	ctx := context.Background()

	_, err := m.PortalURL(ctx, "9001", "moodle_17", "moodleuser1", "", "", PageHome, 0)
	require.NoError(t, err)
	_, err = m.PortalURL(ctx, "9001", "moodle_17", "moodleuser2", "", "", PageHome, 0)
	require.NoError(t, err)

	require.NoError(t, m.CleanClass(ctx, "9001", "moodle_17"))
	assert.True(t, stub.cleaned)

	_, err = m.PortalURL(ctx, "9001", "moodle_17", "moodleuser1", "", "", PageHome, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, stub.authCalls)
}

func TestPortalURLAuthFailure(t *testing.T) {
	stub := &remoteStub{authErr: errors.New("comms failure")}
	m := newManager(stub, false)

	_, err := m.PortalURL(context.Background(), "9001", "moodle_17", "moodleuser42", "", "", PageHome, 0)
	assert.Error(t, err)
}
