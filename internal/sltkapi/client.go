package sltkapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sltk-monitor/internal/model"
	"sltk-monitor/internal/version"
)

const (
	uploadFieldName = "excel_file"
	maxErrorBody    = 4 << 10
)

type Client struct {
	base string
	http *http.Client
}

func New(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) BaseURL() string {
	return c.base
}

type UploadOptions struct {
	LoadID string
}

type UploadResult struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	ServerPath string `json:"server_path,omitempty"`
	NextSteps  string `json:"next_steps,omitempty"`
}

type GroupErrors struct {
	GroupID    string              `json:"groupId"`
	ErrorCount int                 `json:"errorCount"`
	Errors     []model.ErrorRecord `json:"errors"`
}

type HistoryQuery struct {
	User     string
	Status   string
	FromDate int
	ToDate   int
	Limit    int
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// UploadExcel posts the workbook at path as multipart field excel_file. The
// file is streamed into the request body rather than buffered.
func (c *Client) UploadExcel(ctx context.Context, path string, opts UploadOptions) (UploadResult, error) {
	const op = "upload excel"
	f, err := os.Open(path)
	if err != nil {
		return UploadResult{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	var g errgroup.Group
	g.Go(func() error {
		err := writeUploadBody(mw, f, filepath.Base(path), opts)
		_ = pw.CloseWithError(err)
		return err
	})

	var out UploadResult
	status, err := c.postUpload(ctx, op, pr, mw.FormDataContentType(), &out)
	// unblocks the writer when the transport stopped reading early
	_ = pr.Close()
	if werr := g.Wait(); werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
		return UploadResult{}, werr
	}
	if err != nil {
		return UploadResult{}, err
	}
	if out.Status != "success" {
		return out, &APIError{Sentinel: ErrRejected, Operation: op, Status: status, Message: out.Message}
	}
	return out, nil
}

func (c *Client) postUpload(ctx context.Context, op string, body io.Reader, contentType string, out *UploadResult) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/upload/excel", body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.doJSON(req, op, out)
}

func writeUploadBody(w *multipart.Writer, src io.Reader, name string, opts UploadOptions) error {
	part, err := w.CreateFormFile(uploadFieldName, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("stream %s: %w", name, err)
	}
	if id := strings.TrimSpace(opts.LoadID); id != "" {
		if err := w.WriteField("load_id", id); err != nil {
			return err
		}
	}
	return w.Close()
}

func (c *Client) GroupErrors(ctx context.Context, groupID string) (GroupErrors, error) {
	var env envelope[GroupErrors]
	if err := c.getEnvelope(ctx, "group errors", "/api/errors/"+url.PathEscape(groupID), &env); err != nil {
		return GroupErrors{}, err
	}
	if env.Data.GroupID == "" {
		env.Data.GroupID = groupID
	}
	return env.Data, nil
}

func (c *Client) GroupStatus(ctx context.Context, groupID string) (model.UploadStatus, error) {
	var env envelope[model.UploadStatus]
	if err := c.getEnvelope(ctx, "group status", "/api/status/"+url.PathEscape(groupID), &env); err != nil {
		return model.UploadStatus{}, err
	}
	return env.Data, nil
}

func (c *Client) History(ctx context.Context, q HistoryQuery) ([]model.HistoryEntry, error) {
	v := url.Values{}
	if s := strings.TrimSpace(q.User); s != "" {
		v.Set("user", s)
	}
	if s := model.NormalizeStatus(q.Status); s != "" {
		v.Set("status", s)
	}
	if q.FromDate > 0 {
		v.Set("fromDate", strconv.Itoa(q.FromDate))
	}
	if q.ToDate > 0 {
		v.Set("toDate", strconv.Itoa(q.ToDate))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	path := "/api/history"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var env envelope[struct {
		Count   int                  `json:"count"`
		History []model.HistoryEntry `json:"history"`
	}]
	if err := c.getEnvelope(ctx, "history", path, &env); err != nil {
		return nil, err
	}
	return env.Data.History, nil
}

func (c *Client) Loads(ctx context.Context) ([]model.Load, error) {
	const op = "loads"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/loads", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Status  string       `json:"status"`
		Message string       `json:"message"`
		Loads   []model.Load `json:"loads"`
	}
	status, err := c.doJSON(req, op, &out)
	if err != nil {
		return nil, err
	}
	if out.Status != "success" {
		return nil, &APIError{Sentinel: ErrRejected, Operation: op, Status: status, Message: out.Message}
	}
	return out.Loads, nil
}

func (c *Client) Health(ctx context.Context) (model.HealthReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/", nil)
	if err != nil {
		return model.HealthReport{}, err
	}
	var out model.HealthReport
	if _, err := c.doJSON(req, "health", &out); err != nil {
		return model.HealthReport{}, err
	}
	if strings.TrimSpace(out.Status) == "" {
		out.Status = "ok"
	}
	return out, nil
}

func (c *Client) getEnvelope(ctx context.Context, op, path string, env interface {
	ok() (bool, string)
}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	status, err := c.doJSON(req, op, env)
	if err != nil {
		return err
	}
	if success, msg := env.ok(); !success {
		return &APIError{Sentinel: ErrRejected, Operation: op, Status: status, Message: msg}
	}
	return nil
}

func (e *envelope[T]) ok() (bool, string) {
	msg := e.Message
	if msg == "" {
		msg = e.Error
	}
	return e.Success, msg
}

// doJSON sends req and decodes a JSON body into out. The backend reports
// failures as JSON with a non-2xx status, so error bodies are decoded for
// their message before being classified.
func (c *Client) doJSON(req *http.Request, op string, out any) (int, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "sltk-monitor/"+version.Value)

	res, err := c.http.Do(req)
	if err != nil {
		return 0, &APIError{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return res.StatusCode, &APIError{
			Sentinel:  classifyStatus(res.StatusCode),
			Operation: op,
			Status:    res.StatusCode,
			Message:   errorMessage(raw),
		}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		return res.StatusCode, &APIError{Sentinel: ErrBadResponse, Operation: op, Status: res.StatusCode, Err: err}
	}
	return res.StatusCode, nil
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusServiceUnavailable || code == http.StatusBadGateway || code == http.StatusGatewayTimeout:
		return ErrUnavailable
	case code >= 500:
		return ErrUnavailable
	default:
		return ErrRejected
	}
}

func errorMessage(raw []byte) string {
	var p struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &p); err == nil {
		if p.Message != "" {
			return p.Message
		}
		if p.Error != "" {
			return p.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
