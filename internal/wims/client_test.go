package wims

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	"github.com/noah-isme/wims-bridge-api/pkg/config"
)

type recordedCall struct {
	job    string
	params url.Values
}

// fakeServer echoes the correlation code back and serves canned bodies per
// job, recording every request it sees.
type fakeServer struct {
	mu     sync.Mutex
	server *httptest.Server
	bodies map[string]string
	calls  []recordedCall
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{bodies: map[string]string{}}
	fs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		job := query.Get("job")

		fs.mu.Lock()
		fs.calls = append(fs.calls, recordedCall{job: job, params: query})
		body, ok := fs.bodies[job]
		fs.mu.Unlock()

		if !ok {
			body = `{"status":"OK","message":""}`
		}
		// The canned bodies leave the code to the server, as the real one
		// echoes whatever the caller sent.
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"` + query.Get("code") + `",` + body[1:]))
	}))
	t.Cleanup(fs.server.Close)
	return fs
}

func (fs *fakeServer) respond(job, body string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.bodies[job] = body
}

func (fs *fakeServer) recorded() []recordedCall {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]recordedCall, len(fs.calls))
	copy(out, fs.calls)
	return out
}

func (fs *fakeServer) client(observer CallObserver) *Client {
	return NewClient(config.WIMSConfig{
		ServerURL:       fs.server.URL,
		ServicePassword: "secret",
		RequestTimeout:  5 * time.Second,
	}, nil, observer)
}

type observerStub struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *observerStub) ObserveRemoteCall(job, outcome string, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, job+":"+outcome)
}

func TestClientSendsProtocolFields(t *testing.T) {
	fs := newFakeServer(t)
	client := fs.client(nil)

	err := client.CheckIdent(context.Background())
	require.NoError(t, err)

	calls := fs.recorded()
	require.Len(t, calls, 1)
	params := calls[0].params
	assert.Equal(t, "adm/raw", params.Get("module"))
	assert.Equal(t, "checkident", params.Get("job"))
	assert.Equal(t, "moodlejson", params.Get("ident"))
	assert.Equal(t, "secret", params.Get("passwd"))
	assert.Len(t, params.Get("code"), 3)
}

func TestClientCommsFailure(t *testing.T) {
	fs := newFakeServer(t)
	observer := &observerStub{}
	client := fs.client(observer)
	fs.server.Close()

	err := client.CheckIdent(context.Background())

	var ce *CommsError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"checkident:comms_fail"}, observer.outcomes)
}

func TestClientCheckUser(t *testing.T) {
	fs := newFakeServer(t)
	client := fs.client(nil)

	fs.respond("checkuser", `{"status":"OK","message":"","queryuser":"moodleuser42"}`)
	present, err := client.CheckUser(context.Background(), "9001", "moodle_17", "moodleuser42")
	require.NoError(t, err)
	assert.True(t, present)

	fs.respond("checkuser", `{"status":"ERROR","message":"user moodleuser42 not in this class"}`)
	present, err = client.CheckUser(context.Background(), "9001", "moodle_17", "moodleuser42")
	require.NoError(t, err)
	assert.False(t, present)

	calls := fs.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "9001", calls[0].params.Get("qclass"))
	assert.Equal(t, "moodle_17", calls[0].params.Get("rclass"))
	assert.Equal(t, "moodleuser42", calls[0].params.Get("quser"))
}

func TestClientAddClass(t *testing.T) {
	fs := newFakeServer(t)
	client := fs.client(nil)
	fs.respond("addclass", `{"status":"OK","message":"class 5005021 correctly added","class_id":5005021}`)

	classID, err := client.AddClass(context.Background(), "moodle_17", "description=Algebra\n", "lastname=Smith\n")
	require.NoError(t, err)
	assert.Equal(t, "5005021", classID)

	calls := fs.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "moodle_17", calls[0].params.Get("rclass"))
	assert.Contains(t, calls[0].params.Get("data1"), "description=Algebra")
	assert.Contains(t, calls[0].params.Get("data2"), "lastname=Smith")
}

func TestClientAddUserRecoversDeletedUser(t *testing.T) {
	fs := newFakeServer(t)
	client := fs.client(nil)
	fs.respond("adduser", `{"status":"ERROR","message":"Deleted user found in the trash"}`)
	fs.respond("recuser", `{"status":"OK","message":""}`)

	err := client.AddUser(context.Background(), "9001", "moodle_17", "Ada", "Lovelace", "alovelace42")
	require.NoError(t, err)

	calls := fs.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "adduser", calls[0].job)
	assert.Equal(t, "recuser", calls[1].job)
	assert.Equal(t, "alovelace42", calls[1].params.Get("quser"))
	assert.Contains(t, calls[0].params.Get("data1"), "firstname=Ada")
	assert.Contains(t, calls[0].params.Get("data1"), "lastname=Lovelace")
}

func TestClientAddUserOtherErrorsNotRecovered(t *testing.T) {
	fs := newFakeServer(t)
	client := fs.client(nil)
	fs.respond("adduser", `{"status":"ERROR","message":"class is full"}`)

	err := client.AddUser(context.Background(), "9001", "moodle_17", "Ada", "Lovelace", "alovelace42")

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	require.Len(t, fs.recorded(), 1)
}

func TestClientAuthUser(t *testing.T) {
	fs := newFakeServer(t)
	client := fs.client(nil)
	fs.respond("authuser", `{"status":"OK","message":"","home_url":"https://wims.example.org/wims/wims.cgi?session=ABC123"}`)

	homeURL, err := client.AuthUser(context.Background(), "9001", "moodle_17", "moodleuser42", "198.51.100.7")
	require.NoError(t, err)
	assert.Equal(t, "https://wims.example.org/wims/wims.cgi?session=ABC123", homeURL)

	calls := fs.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "198.51.100.7", calls[0].params.Get("data1"))
}

func TestClientListSheets(t *testing.T) {
	fs := newFakeServer(t)
	client := fs.client(nil)
	fs.respond("listsheets", `{"status":"OK","message":"","nbsheet":2,"sheetlist":["1","2"],"sheettitlelist":["1:Derivatives *:1","2:Draft sheet:0"]}`)

	index, err := client.ListSheets(context.Background(), "9001", "moodle_17")
	require.NoError(t, err)

	require.Len(t, index, 2)
	assert.Equal(t, models.SheetSummary{Title: "Derivatives *", State: "1"}, index[1])
	assert.Equal(t, models.SheetSummary{Title: "Draft sheet", State: "0"}, index[2])
}

func TestClientGetSheetScores(t *testing.T) {
	fs := newFakeServer(t)
	client := fs.client(nil)
	fs.respond("getsheetscores", `{"status":"OK","message":"","data_scores":[{"id":"moodleuser42","user_percent":"87.5","score":7},{"id":"moodleuser43","user_percent":40,"score":"3.2"}]}`)

	rows, err := client.GetSheetScores(context.Background(), "9001", "moodle_17", 1)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "moodleuser42", rows[0].Login)
	assert.InDelta(t, 87.5, rows[0].Score, 1e-9)
	assert.InDelta(t, 40, rows[1].Score, 1e-9)
}

func TestClientGetExamScores(t *testing.T) {
	fs := newFakeServer(t)
	client := fs.client(nil)
	fs.respond("getexamscores", `{"status":"OK","message":"","data_scores":[{"id":"moodleuser42","user_percent":87.5,"score":8.75}]}`)

	rows, err := client.GetExamScores(context.Background(), "9001", "moodle_17", 1)
	require.NoError(t, err)

	// Exams report the score verbatim, not the percentage.
	require.Len(t, rows, 1)
	assert.InDelta(t, 8.75, rows[0].Score, 1e-9)
}

func TestClientGetExamPropertiesExpirationSpellings(t *testing.T) {
	fs := newFakeServer(t)
	client := fs.client(nil)
	fs.respond("getexam", `{"status":"OK","message":"","exam_title":"Final","exam_status":"1","exam_expiration ":"20260901"}`)

	props, err := client.GetExamProperties(context.Background(), "9001", "moodle_17", 1)
	require.NoError(t, err)
	assert.Equal(t, "20260901", props.Expiration)
	assert.Equal(t, "Final", props.Title)
}

func TestClientNotAllowedObserved(t *testing.T) {
	fs := newFakeServer(t)
	observer := &observerStub{}
	client := fs.client(observer)
	fs.respond("cleanclass", `{"status":"ERROR","message":"connection refused (illegal job)"}`)

	err := client.CleanClass(context.Background(), "9001", "moodle_17")

	var na *NotAllowedError
	require.ErrorAs(t, err, &na)
	assert.Equal(t, []string{"cleanclass:not_allowed"}, observer.outcomes)
}

func TestClientGetClassConfigStripsCredentials(t *testing.T) {
	fs := newFakeServer(t)
	client := fs.client(nil)
	fs.respond("getclass", `{"status":"OK","message":"","query_class":"9001","rclass":"moodle_17","password":"hunter2","description":"Algebra","lang":"fr"}`)

	cfg, err := client.GetClassConfig(context.Background(), "9001", "moodle_17")
	require.NoError(t, err)

	assert.Equal(t, "Algebra", cfg["description"])
	assert.Equal(t, "fr", cfg["lang"])
	assert.NotContains(t, cfg, "password")
	assert.NotContains(t, cfg, "rclass")
	assert.NotContains(t, cfg, "query_class")
}

func TestClientListClassBackups(t *testing.T) {
	fs := newFakeServer(t)
	client := fs.client(nil)
	fs.respond("listclassbackups", `{"status":"OK","message":"","restorable":["2024","2025"],"total":2}`)

	list, err := client.ListClassBackups(context.Background(), "9001")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024", "2025"}, list.Restorable)
	assert.Equal(t, 2, list.Total)
}

func TestClientRestoreClassBackup(t *testing.T) {
	fs := newFakeServer(t)
	client := fs.client(nil)

	err := client.RestoreClassBackup(context.Background(), "9001", 2025)
	require.NoError(t, err)

	calls := fs.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "restoreclassbackup", calls[0].job)
	assert.Equal(t, "2025", calls[0].params.Get("qyear"))
}
