package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/bcrypt"

	"github.com/faceattend/attendance-console/internal/activity"
	"github.com/faceattend/attendance-console/internal/backend"
	"github.com/faceattend/attendance-console/internal/config"
	"github.com/faceattend/attendance-console/internal/dashboard"
	"github.com/faceattend/attendance-console/internal/enroll"
	"github.com/faceattend/attendance-console/internal/feed"
	"github.com/faceattend/attendance-console/internal/login"
)

type sourceStub struct{}

func (sourceStub) TodayCheckins(ctx context.Context) (*backend.TodayCheckins, error) {
	return &backend.TodayCheckins{Success: true, Total: 1, Data: []backend.AttendanceRecord{
		{StudentID: "SE100", Name: "Nguyen Van A", AttendanceTime: "2026-10-14T08:00:00"},
	}}, nil
}

type pipelineStub struct{ images []string }

func (p *pipelineStub) UploadSpreadsheet(ctx context.Context, part backend.Part) (json.RawMessage, error) {
	return nil, nil
}

func (p *pipelineStub) UploadImages(ctx context.Context, parts []backend.Part) (json.RawMessage, error) {
	for _, part := range parts {
		p.images = append(p.images, part.Filename)
	}
	return nil, nil
}

func (p *pipelineStub) ProcessData(ctx context.Context) (json.RawMessage, error) { return nil, nil }

func (p *pipelineStub) UpdateDatabase(ctx context.Context) (json.RawMessage, error) { return nil, nil }

type feedStub struct{}

func (feedStub) Status() feed.ConnectionStatus {
	return feed.ConnectionStatus{URL: "ws://backend/ws/attendance", Connected: true}
}

func newTestServer(t *testing.T) (*Server, *pipelineStub) {
	t.Helper()

	cfg := config.Default()
	ctrl, err := login.NewController(login.DefaultAccounts(), time.Second, nil, login.WithCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	notices := activity.NewNoticeBuffer(10, time.Hour)
	dash := dashboard.New(sourceStub{}, notices, dashboard.Options{Location: time.UTC}, nil)
	if err := dash.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	pipe := &pipelineStub{}
	logs := activity.NewLogBuffer(50)
	logs.Add("info", "console started")

	s := NewServer(Deps{
		Config:    cfg,
		Login:     ctrl,
		Dashboard: dash,
		Wizard:    enroll.NewWizard(pipe, time.Second, nil),
		Feed:      feedStub{},
		Notices:   notices,
		Logs:      logs,
	})
	return s, pipe
}

func do(t *testing.T, h http.Handler, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthAndStatus(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/status", nil, "")
	var status struct {
		Records int                   `json:"records"`
		Feed    feed.ConnectionStatus `json:"feed"`
	}
	decode(t, rec, &status)
	if status.Records != 1 || !status.Feed.Connected {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	h := s.Handler()

	cases := []struct {
		body   string
		status int
	}{
		{`{"email":"admin@fpt.edu.vn","password":"admin123"}`, http.StatusOK},
		{`{"email":"admin@fpt.edu.vn","password":"wrong"}`, http.StatusUnauthorized},
		{`{"email":"","password":""}`, http.StatusUnauthorized},
		{`not json`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := do(t, h, http.MethodPost, "/api/login", bytes.NewBufferString(tc.body), "application/json")
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.body, tc.status, rec.Code)
		}
	}

	rec := do(t, h, http.MethodPost, "/api/login", bytes.NewBufferString(`{"email":"admin@fpt.edu.vn","password":"x"}`), "application/json")
	var res login.Result
	decode(t, rec, &res)
	if res.FieldErrors[login.FieldPassword] != login.MsgInvalidCredentials || !res.Shake {
		t.Fatalf("unexpected rejection %+v", res)
	}

	hints := []struct {
		target string
		prefix string
	}{
		{"/api/login/hint", "Forgot Password feature will be implemented later."},
		{"/api/login/hint?kind=forgot", "Forgot Password feature will be implemented later."},
		{"/api/login/hint?kind=register", "Registration feature will be implemented later."},
	}
	for _, tc := range hints {
		rec = do(t, h, http.MethodGet, tc.target, nil, "")
		var body map[string]string
		decode(t, rec, &body)
		if !strings.HasPrefix(body["hint"], tc.prefix) || !strings.Contains(body["hint"], "teacher@fpt.edu.vn/teacher123") {
			t.Fatalf("%s: unexpected hint %q", tc.target, body["hint"])
		}
	}
}

func TestAttendanceRoutes(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	h := s.Handler()
	s.Dashboard.FeedMessage([]byte(`{"student_id":"SE200","name":"Tran Thi B","attendance_time":"2026-10-14T09:00:00"}`))

	rec := do(t, h, http.MethodGet, "/api/attendance?q=tran", nil, "")
	var list struct {
		Rows  []dashboard.Row `json:"rows"`
		Total int             `json:"total"`
	}
	decode(t, rec, &list)
	if list.Total != 2 || len(list.Rows) != 1 || list.Rows[0].StudentID != "SE200" {
		t.Fatalf("unexpected search result %+v", list)
	}

	rec = do(t, h, http.MethodGet, "/api/attendance/table", nil, "")
	if !strings.Contains(rec.Body.String(), `data-student-id="SE200"`) {
		t.Fatalf("unexpected table %s", rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/api/attendance/SE100/select", nil, "")
	if rec.Code != http.StatusOK || s.Dashboard.Selected() != "SE100" {
		t.Fatalf("select failed: %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/api/attendance/nobody/select", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/attendance/export", nil, "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("unexpected export response %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Fatal("export is not a zip container")
	}

	rec = do(t, h, http.MethodGet, "/api/notices", nil, "")
	if !strings.Contains(rec.Body.String(), "has successfully checked in!") {
		t.Fatalf("expected check-in notice, got %s", rec.Body.String())
	}
}

func TestLogs(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	s.Logs.Add("error", "backend down")

	rec := do(t, s.Handler(), http.MethodGet, "/api/logs?level=error", nil, "")
	var out struct {
		Logs []activity.LogEntry `json:"logs"`
	}
	decode(t, rec, &out)
	if len(out.Logs) != 1 || out.Logs[0].Message != "backend down" {
		t.Fatalf("unexpected logs %+v", out.Logs)
	}
}

func multipartBody(t *testing.T, build func(mw *multipart.Writer)) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	build(mw)
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestEnrollFlow(t *testing.T) {
	t.Parallel()

	s, pipe := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/enroll/submit", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected submit without selection to fail, got %d", rec.Code)
	}

	body, ct := multipartBody(t, func(mw *multipart.Writer) {
		fw, _ := mw.CreateFormFile("file", "students.csv")
		fw.Write([]byte("a,b"))
	})
	rec = do(t, h, http.MethodPost, "/api/enroll/spreadsheet", body, ct)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), ".xlsx or .xls") {
		t.Fatalf("expected csv to be rejected, got %d %s", rec.Code, rec.Body.String())
	}

	body, ct = multipartBody(t, func(mw *multipart.Writer) {
		fw, _ := mw.CreateFormFile("file", "students.xlsx")
		fw.Write([]byte("PK"))
	})
	rec = do(t, h, http.MethodPost, "/api/enroll/spreadsheet", body, ct)
	var snap enroll.Snapshot
	decode(t, rec, &snap)
	if snap.Spreadsheet == nil || snap.Spreadsheet.Name != "students.xlsx" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	body, ct = multipartBody(t, func(mw *multipart.Writer) {
		for _, p := range []string{"photos/SE1/a.jpg", "photos/SE2/b.jpg"} {
			fw, _ := mw.CreateFormFile("files", p[strings.LastIndex(p, "/")+1:])
			fw.Write([]byte("img"))
			mw.WriteField("paths", p)
		}
	})
	rec = do(t, h, http.MethodPost, "/api/enroll/images", body, ct)
	snap = enroll.Snapshot{}
	decode(t, rec, &snap)
	if !snap.CanSubmit || snap.ImagesText != "2 folders, 2 images" {
		t.Fatalf("unexpected snapshot after images %+v", snap)
	}

	rec = do(t, h, http.MethodPost, "/api/enroll/submit", nil, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d %s", rec.Code, rec.Body.String())
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		snap = s.Wizard.Snapshot()
		if snap.Completed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run did not complete: %+v", snap)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if strings.Join(pipe.images, ",") != "images_SE1_0_a.jpg,images_SE2_1_b.jpg" {
		t.Fatalf("unexpected upload names %v", pipe.images)
	}

	rec = do(t, h, http.MethodDelete, "/api/enroll/images", nil, "")
	snap = enroll.Snapshot{}
	decode(t, rec, &snap)
	if snap.CanSubmit {
		t.Fatal("removing images should disable submit")
	}
}

func TestUIAndMetrics(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "attendanceTableBody") {
		t.Fatalf("unexpected UI response %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/nope", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/metrics", nil, "")
	if !strings.Contains(rec.Body.String(), "attendconsole_login_attempts_total") && !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("unexpected metrics output")
	}
}

func TestSpreadsheetDropRejectsOtherFiles(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/", nil, "")
	for _, want := range []string{`id="sheet-drop"`, "uploadSpreadsheet(files[0])"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Fatalf("expected UI to contain %q", want)
		}
	}

	// a dropped file is posted the same way as a selected one
	for _, name := range []string{"notes.pdf", "students.xlsx.txt", "noext"} {
		body, ct := multipartBody(t, func(mw *multipart.Writer) {
			fw, _ := mw.CreateFormFile("file", name)
			fw.Write([]byte("%PDF-1.4"))
		})
		rec = do(t, h, http.MethodPost, "/api/enroll/spreadsheet", body, ct)
		if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), ".xlsx or .xls") {
			t.Fatalf("%s: expected 400, got %d %s", name, rec.Code, rec.Body.String())
		}
	}
	if snap := s.Wizard.Snapshot(); snap.Spreadsheet != nil {
		t.Fatalf("expected no spreadsheet after rejected drops, got %+v", snap.Spreadsheet)
	}
}

func TestLogLevelEndpoint(t *testing.T) {
	t.Parallel()

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	s := NewServer(Deps{Config: config.Default(), LogLevel: level})
	h := s.Handler()

	rec := do(t, h, http.MethodPut, "/api/log/level", bytes.NewBufferString(`{"level":"debug"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if level.Level() != zapcore.DebugLevel {
		t.Fatalf("expected debug, got %s", level.Level())
	}

	rec = do(t, h, http.MethodGet, "/api/log/level", nil, "")
	var body struct {
		Level string `json:"level"`
	}
	decode(t, rec, &body)
	if body.Level != "debug" {
		t.Fatalf("expected debug, got %q", body.Level)
	}

	rec = do(t, NewServer(Deps{Config: config.Default()}).Handler(), http.MethodGet, "/api/log/level", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a level, got %d", rec.Code)
	}
}

func TestCheckinSound(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	h := s.Handler()
	s.Dashboard.FeedMessage([]byte(`{"student_id":"SE200","name":"Tran Thi B","attendance_time":"2026-10-14T09:00:00"}`))

	rec := do(t, h, http.MethodGet, "/api/notices", nil, "")
	var out struct {
		Notices []activity.Notice `json:"notices"`
		Sound   bool              `json:"sound"`
	}
	decode(t, rec, &out)
	if !out.Sound {
		t.Fatal("expected sound to follow dashboard.sound")
	}
	if len(out.Notices) == 0 || out.Notices[len(out.Notices)-1].Level != activity.LevelSuccess {
		t.Fatalf("expected a success notice, got %+v", out.Notices)
	}

	rec = do(t, h, http.MethodGet, "/", nil, "")
	if !strings.Contains(rec.Body.String(), "if (ring && data.sound) chime();") {
		t.Fatal("expected UI to chime on new check-in notices")
	}

	s.Config.Dashboard.Sound = false
	rec = do(t, h, http.MethodGet, "/api/notices", nil, "")
	decode(t, rec, &out)
	if out.Sound {
		t.Fatal("expected sound off")
	}
}
