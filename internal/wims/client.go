package wims

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	"github.com/noah-isme/wims-bridge-api/pkg/config"
)

// CallObserver receives one observation per remote call for metrics.
type CallObserver interface {
	ObserveRemoteCall(job, outcome string, duration time.Duration)
}

// Client exposes one typed method per adm/raw job. Every method returns a
// typed error on any non-OK outcome; recoverable empty results are reported
// as success with an empty payload, never as errors.
type Client struct {
	transport *transport
	logger    *zap.Logger
	observer  CallObserver
}

// NewClient builds a client for the configured WIMS server.
func NewClient(cfg config.WIMSConfig, logger *zap.Logger, observer CallObserver) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		transport: newTransport(cfg, logger),
		logger:    logger,
		observer:  observer,
	}
}

func (c *Client) run(ctx context.Context, job string, params url.Values) (*result, error) {
	start := time.Now()
	raw, code, err := c.transport.call(ctx, job, params)
	if err != nil {
		c.observe(job, "comms_fail", start)
		return nil, err
	}

	res, err := decodeEnvelope(job, raw, code)
	if err != nil {
		switch {
		case isNotAllowed(err):
			c.observe(job, "not_allowed", start)
		case isProtocolBreak(err):
			c.observe(job, "protocol_break", start)
		default:
			c.observe(job, "wims_fail", start)
		}
		return nil, err
	}

	c.observe(job, "ok", start)
	return res, nil
}

func (c *Client) observe(job, outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRemoteCall(job, outcome, time.Since(start))
	}
}

func isNotAllowed(err error) bool {
	var na *NotAllowedError
	return errors.As(err, &na)
}

func isProtocolBreak(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsRemoteFailure reports whether err is a logical refusal (WIMS answered,
// but rejected the request), as opposed to a transport or protocol problem.
func IsRemoteFailure(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

func classParams(qcl, rcl string) url.Values {
	params := url.Values{}
	params.Set("qclass", qcl)
	params.Set("rclass", rcl)
	return params
}

// CheckIdent verifies that our connection credentials are valid.
func (c *Client) CheckIdent(ctx context.Context) error {
	_, err := c.run(ctx, "checkident", nil)
	return err
}

// CheckClass verifies that the class exists and is bound to rcl. With
// extended set, the stronger getclass job also verifies service access
// rights.
func (c *Client) CheckClass(ctx context.Context, qcl, rcl string, extended bool) error {
	job := "checkclass"
	if extended {
		job = "getclass"
	}
	_, err := c.run(ctx, job, classParams(qcl, rcl))
	return err
}

// CheckUser reports whether the login exists within the class. An absent
// user is a recoverable empty result, not an error.
func (c *Client) CheckUser(ctx context.Context, qcl, rcl, login string) (bool, error) {
	params := classParams(qcl, rcl)
	params.Set("quser", login)
	res, err := c.run(ctx, "checkuser", params)
	if err != nil {
		return false, err
	}
	return !res.Empty, nil
}

// AddClass creates a new class from the class and supervisor property
// blocks and returns the assigned remote class id.
func (c *Client) AddClass(ctx context.Context, rcl, classData, supervisorData string) (string, error) {
	params := url.Values{}
	params.Set("rclass", rcl)
	params.Set("data1", classData)
	params.Set("data2", supervisorData)
	res, err := c.run(ctx, "addclass", params)
	if err != nil {
		return "", err
	}
	classID := res.stringField("class_id")
	if classID == "" {
		return "", &RemoteError{Job: "addclass", Message: "no class_id in response"}
	}
	return classID, nil
}

// UpdateClass applies a class property block via modclass.
func (c *Client) UpdateClass(ctx context.Context, qcl, rcl, data string) error {
	params := classParams(qcl, rcl)
	params.Set("data1", data)
	_, err := c.run(ctx, "modclass", params)
	return err
}

// UpdateClassSupervisor applies a supervisor property block. The server
// models the supervisor as a reserved user, hence moduser.
func (c *Client) UpdateClassSupervisor(ctx context.Context, qcl, rcl, data string) error {
	params := classParams(qcl, rcl)
	params.Set("data1", data)
	params.Set("quser", "supervisor")
	_, err := c.run(ctx, "moduser", params)
	return err
}

// AddUser creates a user within the class. When the server reports a
// previously deleted user in the classroom trash, the recovery job is
// issued instead; this is a second, different remote call, not a retry.
func (c *Client) AddUser(ctx context.Context, qcl, rcl, firstName, lastName, login string) error {
	password := throwawayPassword()
	data := "firstname=" + firstName +
		"\nlastname=" + lastName +
		"\npassword=" + password + "\n"

	params := classParams(qcl, rcl)
	params.Set("quser", login)
	params.Set("data1", data)

	_, err := c.run(ctx, "adduser", params)
	var re *RemoteError
	if errors.As(err, &re) && strings.Contains(re.Message, deletedUserNeedle) {
		_, err = c.run(ctx, "recuser", params)
	}
	return err
}

// AuthUser opens a session for the login and returns the raw home URL.
// userIP may be empty; when set it is forwarded so the server can pin exam
// sessions to one address.
func (c *Client) AuthUser(ctx context.Context, qcl, rcl, login, userIP string) (string, error) {
	params := classParams(qcl, rcl)
	params.Set("quser", login)
	if userIP != "" {
		params.Set("data1", userIP)
	}
	res, err := c.run(ctx, "authuser", params)
	if err != nil {
		return "", err
	}
	homeURL := res.stringField("home_url")
	if homeURL == "" {
		return "", &RemoteError{Job: "authuser", Message: "no home_url in response"}
	}
	return homeURL, nil
}

// GetClassConfig fetches the class property map, with envelope and
// credential keys stripped.
func (c *Client) GetClassConfig(ctx context.Context, qcl, rcl string) (map[string]string, error) {
	res, err := c.run(ctx, "getclass", classParams(qcl, rcl))
	if err != nil {
		return nil, err
	}
	return res.stringMap("status", "message", "query_class", "rclass", "password"), nil
}

// GetUserConfig fetches a user's property map.
func (c *Client) GetUserConfig(ctx context.Context, qcl, rcl, login string) (map[string]string, error) {
	params := classParams(qcl, rcl)
	params.Set("quser", login)
	res, err := c.run(ctx, "getuser", params)
	if err != nil {
		return nil, err
	}
	return res.stringMap("status", "message", "query_class", "queryuser"), nil
}

// ListSheets returns the worksheet index of the class.
func (c *Client) ListSheets(ctx context.Context, qcl, rcl string) (map[int]models.SheetSummary, error) {
	res, err := c.run(ctx, "listsheets", classParams(qcl, rcl))
	if err != nil {
		return nil, err
	}
	return buildSheetIndex(res.stringSlice("sheetlist"), res.stringSlice("sheettitlelist")), nil
}

// ListExams returns the exam index of the class.
func (c *Client) ListExams(ctx context.Context, qcl, rcl string) (map[int]models.SheetSummary, error) {
	res, err := c.run(ctx, "listexams", classParams(qcl, rcl))
	if err != nil {
		return nil, err
	}
	return buildSheetIndex(res.stringSlice("examlist"), res.stringSlice("examtitlelist")), nil
}

// buildSheetIndex pairs sheet ids with their raw titles. Raw titles are
// colon-delimited; the middle part is the display title, the last the raw
// activation state.
func buildSheetIndex(ids, rawTitles []string) map[int]models.SheetSummary {
	index := make(map[int]models.SheetSummary, len(ids))
	for i, rawID := range ids {
		if i >= len(rawTitles) {
			break
		}
		id, err := strconv.Atoi(strings.TrimSpace(rawID))
		if err != nil {
			continue
		}
		parts := strings.Split(rawTitles[i], ":")
		if len(parts) < 3 {
			continue
		}
		index[id] = models.SheetSummary{
			Title: strings.TrimSpace(parts[1]),
			State: strings.TrimSpace(parts[2]),
		}
	}
	return index
}

// GetSheetProperties fetches one worksheet's properties.
func (c *Client) GetSheetProperties(ctx context.Context, qcl, rcl string, sheet int) (*models.SheetProperties, error) {
	params := classParams(qcl, rcl)
	params.Set("qsheet", strconv.Itoa(sheet))
	res, err := c.run(ctx, "getsheet", params)
	if err != nil {
		return nil, err
	}
	return &models.SheetProperties{
		Status:      res.stringField("sheet_status"),
		Expiration:  res.stringField("sheet_expiration"),
		Title:       res.stringField("sheet_title"),
		Description: res.stringField("sheet_description"),
	}, nil
}

// GetExamProperties fetches one exam's properties. Some server versions
// emit the expiration key with a trailing space; both spellings are
// accepted.
func (c *Client) GetExamProperties(ctx context.Context, qcl, rcl string, exam int) (*models.ExamProperties, error) {
	params := classParams(qcl, rcl)
	params.Set("qexam", strconv.Itoa(exam))
	res, err := c.run(ctx, "getexam", params)
	if err != nil {
		return nil, err
	}
	expiration := res.stringField("exam_expiration")
	if expiration == "" {
		expiration = res.stringField("exam_expiration ")
	}
	return &models.ExamProperties{
		Status:      res.stringField("exam_status"),
		Opening:     res.stringField("exam_opening"),
		Duration:    res.stringField("exam_duration"),
		Attempts:    res.stringField("exam_attempts"),
		Title:       res.stringField("exam_title"),
		Description: res.stringField("exam_description"),
		CutHours:    res.stringField("exam_cut_hours"),
		Expiration:  expiration,
	}, nil
}

type scoreRecord struct {
	ID          string    `json:"id"`
	UserPercent flexFloat `json:"user_percent"`
	Score       flexFloat `json:"score"`
}

// GetSheetScores fetches the score snapshot of one worksheet. Scores are
// returned as the server's raw percentages.
func (c *Client) GetSheetScores(ctx context.Context, qcl, rcl string, sheet int) ([]models.ScoreRow, error) {
	params := classParams(qcl, rcl)
	params.Set("qsheet", strconv.Itoa(sheet))
	res, err := c.run(ctx, "getsheetscores", params)
	if err != nil {
		return nil, err
	}
	var records []scoreRecord
	if err := res.decodeField("data_scores", &records); err != nil {
		return nil, &RemoteError{Job: "getsheetscores", Message: "malformed data_scores"}
	}
	rows := make([]models.ScoreRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, models.ScoreRow{Login: record.ID, Score: float64(record.UserPercent)})
	}
	return rows, nil
}

// GetExamScores fetches the score snapshot of one exam.
func (c *Client) GetExamScores(ctx context.Context, qcl, rcl string, exam int) ([]models.ScoreRow, error) {
	params := classParams(qcl, rcl)
	params.Set("qexam", strconv.Itoa(exam))
	res, err := c.run(ctx, "getexamscores", params)
	if err != nil {
		return nil, err
	}
	var records []scoreRecord
	if err := res.decodeField("data_scores", &records); err != nil {
		return nil, &RemoteError{Job: "getexamscores", Message: "malformed data_scores"}
	}
	rows := make([]models.ScoreRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, models.ScoreRow{Login: record.ID, Score: float64(record.Score)})
	}
	return rows, nil
}

// UpdateSheetProperties applies a property block to one worksheet.
func (c *Client) UpdateSheetProperties(ctx context.Context, qcl, rcl string, sheet int, data string) error {
	params := classParams(qcl, rcl)
	params.Set("qsheet", strconv.Itoa(sheet))
	params.Set("data1", data)
	_, err := c.run(ctx, "modsheet", params)
	return err
}

// UpdateExamProperties applies a property block to one exam.
func (c *Client) UpdateExamProperties(ctx context.Context, qcl, rcl string, exam int, data string) error {
	params := classParams(qcl, rcl)
	params.Set("qexam", strconv.Itoa(exam))
	params.Set("data1", data)
	_, err := c.run(ctx, "modexam", params)
	return err
}

// CleanClass removes all participants and their work from the class.
func (c *Client) CleanClass(ctx context.Context, qcl, rcl string) error {
	_, err := c.run(ctx, "cleanclass", classParams(qcl, rcl))
	return err
}

// DelUser removes one participant and their work from the class.
func (c *Client) DelUser(ctx context.Context, qcl, rcl, login string) error {
	params := classParams(qcl, rcl)
	params.Set("quser", login)
	_, err := c.run(ctx, "deluser", params)
	return err
}

// GetScore fetches all scores of one user in the class.
func (c *Client) GetScore(ctx context.Context, qcl, rcl, login string) (map[string]string, error) {
	params := classParams(qcl, rcl)
	params.Set("quser", login)
	res, err := c.run(ctx, "getscore", params)
	if err != nil {
		return nil, err
	}
	return res.stringMap("status", "message", "query_class", "query_user"), nil
}

// ListClassBackups lists the yearly backups the server can restore for the
// class.
func (c *Client) ListClassBackups(ctx context.Context, qcl string) (*models.BackupList, error) {
	params := url.Values{}
	params.Set("qclass", qcl)
	res, err := c.run(ctx, "listclassbackups", params)
	if err != nil {
		return nil, err
	}
	list := &models.BackupList{Restorable: res.stringSlice("restorable")}
	if total, err := strconv.Atoi(res.stringField("total")); err == nil {
		list.Total = total
	}
	return list, nil
}

// RestoreClassBackup restores the class from the given backup year.
func (c *Client) RestoreClassBackup(ctx context.Context, qcl string, year int) error {
	params := url.Values{}
	params.Set("qclass", qcl)
	params.Set("qyear", strconv.Itoa(year))
	_, err := c.run(ctx, "restoreclassbackup", params)
	return err
}

// throwawayPassword builds a non-useful password for accounts that only
// ever authenticate through authuser sessions.
func throwawayPassword() string {
	value := 1000 + rand.Intn(9000)
	return fmt.Sprintf("%d%d", value, value)
}
