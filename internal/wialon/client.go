package wialon

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	ajaxPath      = "/wialon/ajax.html"
	intervalFlags = 16777216
)

// Report job status codes as returned by get_report_status.
const (
	StatusProcessing = "1"
	StatusCollecting = "2"
	StatusBuilding   = "3"
	StatusDone       = "4"
	StatusFailed     = "5"
)

// APIError is a failure signaled by the remote through the error field of a
// response body.
type APIError struct {
	Code int
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wialon: api error %d: %s", e.Code, e.Body)
}

// Client speaks the form-encoded svc/params/sid protocol of the telemetry
// platform. All calls carry a bounded timeout through the embedded HTTP
// client; a call that exceeds it fails, it is never retried here.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient constructs a client against the platform base URL.
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("wialon: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Point is a GPS sample inside a report cell.
type Point struct {
	T string  `json:"t"`
	V int64   `json:"v"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	U int64   `json:"u"`
}

// Cell is one element of a report row's c array: either a plain label (unit
// name, zone name, the "-----" placeholder, a formatted duration) or a point.
type Cell struct {
	Text  string
	Point *Point
}

// UnmarshalJSON accepts both wire shapes.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Text = text
		c.Point = nil
		return nil
	}
	var point Point
	if err := json.Unmarshal(data, &point); err != nil {
		return err
	}
	c.Text = ""
	c.Point = &point
	return nil
}

// ReportItem is one row of a report result. Top-level rows aggregate one unit
// over the whole interval; the r array carries the per-crossing sub-rows,
// which share the same shape.
type ReportItem struct {
	N   int          `json:"n"`
	T1  int64        `json:"t1"`
	T2  int64        `json:"t2"`
	D   int64        `json:"d"`
	UID int64        `json:"uid"`
	C   []Cell       `json:"c"`
	R   []ReportItem `json:"r"`
}

// Table describes one result table of an applied report.
type Table struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// ApplyResult is the response of apply_report_result.
type ApplyResult struct {
	ReportResult struct {
		MsgsRendered int     `json:"msgsRendered"`
		Tables       []Table `json:"tables"`
	} `json:"reportResult"`
}

// LoginResult carries the session id issued by core/login.
type LoginResult struct {
	SessionID string `json:"eid"`
	User      struct {
		Name string `json:"nm"`
	} `json:"user"`
}

// Login authenticates with an MD5-hashed password and returns a session.
func (c *Client) Login(ctx context.Context, user, password string) (LoginResult, error) {
	if user == "" {
		return LoginResult{}, errors.New("wialon: empty user")
	}
	sum := md5.Sum([]byte(password))
	params := map[string]any{
		"user":     user,
		"password": hex.EncodeToString(sum[:]),
	}
	var result LoginResult
	if err := c.call(ctx, "core/login", "", params, &result); err != nil {
		return LoginResult{}, err
	}
	if result.SessionID == "" {
		return LoginResult{}, errors.New("wialon: login response without session id")
	}
	return result, nil
}

// ExecReportRequest identifies a report template and the interval to run it
// over. From/To are unix seconds.
type ExecReportRequest struct {
	ResourceID  int64
	TemplateID  int64
	ObjectID    int64
	ObjectSecID string
	From        int64
	To          int64
}

// ExecReport submits a report execution job. The job handle is implicit in
// the session: one session runs at most one report at a time.
func (c *Client) ExecReport(ctx context.Context, sid string, req ExecReportRequest) error {
	params := map[string]any{
		"reportResourceId":  req.ResourceID,
		"reportTemplateId":  req.TemplateID,
		"reportTemplate":    nil,
		"reportObjectId":    req.ObjectID,
		"reportObjectSecId": req.ObjectSecID,
		"interval": map[string]any{
			"flags": intervalFlags,
			"from":  req.From,
			"to":    req.To,
		},
		"remoteExec": 1,
	}
	return c.call(ctx, "report/exec_report", sid, params, nil)
}

// ReportStatus reads the state of the in-flight report job. The remote
// reports the status as a bare number or a quoted string depending on the
// deployment; both map to the Status* constants.
func (c *Client) ReportStatus(ctx context.Context, sid string) (string, error) {
	var result struct {
		Status json.RawMessage `json:"status"`
	}
	if err := c.call(ctx, "report/get_report_status", sid, map[string]any{}, &result); err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(string(result.Status)), `"`), nil
}

// ApplyReportResult materializes the finished job's result tables.
func (c *Client) ApplyReportResult(ctx context.Context, sid string) (ApplyResult, error) {
	var result ApplyResult
	if err := c.call(ctx, "report/apply_report_result", sid, map[string]any{}, &result); err != nil {
		return ApplyResult{}, err
	}
	return result, nil
}

// SelectResultRows fetches rows [from, to] of one result table. level selects
// the sub-row detail depth; unitInfo asks for unit metadata in the rows.
func (c *Client) SelectResultRows(ctx context.Context, sid string, tableIndex, from, to, level, unitInfo int) ([]ReportItem, error) {
	params := map[string]any{
		"tableIndex": tableIndex,
		"config": map[string]any{
			"type": "range",
			"data": map[string]any{
				"from":     from,
				"to":       to,
				"level":    level,
				"unitInfo": unitInfo,
			},
		},
	}
	var rows []ReportItem
	if err := c.call(ctx, "report/select_result_rows", sid, params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CleanupResult releases the server-side result state of the session.
func (c *Client) CleanupResult(ctx context.Context, sid string) error {
	return c.call(ctx, "report/cleanup_result", sid, map[string]any{}, nil)
}

func (c *Client) call(ctx context.Context, svc, sid string, params any, out any) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return err
	}
	form := url.Values{
		"svc":    {svc},
		"params": {string(payload)},
		"sid":    {sid},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ajaxPath, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("wialon: http %d on %s", resp.StatusCode, svc)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("wialon: decode %s response: %w", svc, err)
	}
	if err := checkAPIError(raw); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// checkAPIError detects the remote's in-body failure convention: a JSON
// object carrying a non-zero error field.
func checkAPIError(raw json.RawMessage) error {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var probe struct {
		Error *int `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil
	}
	if probe.Error != nil && *probe.Error != 0 {
		return &APIError{Code: *probe.Error, Body: trimmed}
	}
	return nil
}
