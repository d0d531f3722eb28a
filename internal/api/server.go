// Package api serves the console's local JSON API and web UI.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/faceattend/attendance-console/internal/activity"
	"github.com/faceattend/attendance-console/internal/config"
	"github.com/faceattend/attendance-console/internal/dashboard"
	"github.com/faceattend/attendance-console/internal/enroll"
	"github.com/faceattend/attendance-console/internal/feed"
	"github.com/faceattend/attendance-console/internal/logging"
	"github.com/faceattend/attendance-console/internal/login"
	"github.com/faceattend/attendance-console/internal/metrics"
)

const (
	maxUploadMemory = 64 << 20
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// FeedStatus reports the live feed connection
type FeedStatus interface {
	Status() feed.ConnectionStatus
}

// Deps are the components the server exposes
type Deps struct {
	Config    *config.Config
	Login     *login.Controller
	Dashboard *dashboard.Dashboard
	Wizard    *enroll.Wizard
	// Feed is nil when the live feed is disabled.
	Feed    FeedStatus
	Notices *activity.NoticeBuffer
	Logs    *activity.LogBuffer
	// LogLevel, when set, is served at /api/log/level (zap.AtomicLevel).
	LogLevel http.Handler
	Log      *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	Deps
	mux     *http.ServeMux
	log     *zap.Logger
	baseCtx context.Context
	reqID   atomic.Uint64
}

// NewServer creates a new HTTP server
func NewServer(d Deps) *Server {
	s := &Server{
		Deps:    d,
		mux:     http.NewServeMux(),
		log:     logging.OrNop(d.Log).Named("api"),
		baseCtx: context.Background(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)

	// Login
	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/login/hint", s.handleLoginHint)

	// Attendance dashboard
	s.mux.HandleFunc("GET /api/attendance", s.handleAttendance)
	s.mux.HandleFunc("GET /api/attendance/table", s.handleAttendanceTable)
	s.mux.HandleFunc("POST /api/attendance/reload", s.handleReload)
	s.mux.HandleFunc("POST /api/attendance/{id}/select", s.handleSelect)
	s.mux.HandleFunc("GET /api/attendance/export", s.handleExport)
	s.mux.HandleFunc("GET /api/notices", s.handleNotices)
	s.mux.HandleFunc("GET /api/logs", s.handleLogs)

	// Enrollment wizard
	s.mux.HandleFunc("GET /api/enroll", s.handleEnrollState)
	s.mux.HandleFunc("POST /api/enroll/spreadsheet", s.handleSpreadsheet)
	s.mux.HandleFunc("DELETE /api/enroll/spreadsheet", s.handleRemoveSpreadsheet)
	s.mux.HandleFunc("POST /api/enroll/images", s.handleImages)
	s.mux.HandleFunc("DELETE /api/enroll/images", s.handleRemoveImages)
	s.mux.HandleFunc("POST /api/enroll/submit", s.handleSubmit)

	if s.LogLevel != nil {
		s.mux.Handle("GET /api/log/level", s.LogLevel)
		s.mux.Handle("PUT /api/log/level", s.LogLevel)
	}

	s.mux.Handle("GET /metrics", metrics.Handler())

	// Web UI
	s.mux.HandleFunc("GET /", s.handleUI)
}

// Handler returns the routed handler wrapped in request logging
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := s.reqID.Add(1)
		start := time.Now()
		s.mux.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.Uint64("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// Start serves until ctx is cancelled. Enrollment runs started over HTTP
// live on ctx rather than on the request.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("listening", zap.String("addr", "http://"+addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// handleStatus returns server status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":       "running",
		"feed_enabled": s.Feed != nil,
		"records":      s.Dashboard.Len(),
		"loaded":       s.Dashboard.Loaded(),
		"backend":      s.Config.Backend.BaseURL,
	}
	if s.Feed != nil {
		resp["feed"] = s.Feed.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	res := s.Login.Submit(req.Email, req.Password)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, res)
}

func (s *Server) handleLoginHint(w http.ResponseWriter, r *http.Request) {
	hint := s.Login.ForgotHint()
	if r.URL.Query().Get("kind") == "register" {
		hint = s.Login.RegisterHint()
	}
	writeJSON(w, http.StatusOK, map[string]string{"hint": hint})
}

func (s *Server) handleAttendance(w http.ResponseWriter, r *http.Request) {
	rows := s.Dashboard.Search(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rows":  rows,
		"total": s.Dashboard.Len(),
	})
}

func (s *Server) handleAttendanceTable(w http.ResponseWriter, r *http.Request) {
	html, err := s.Dashboard.RenderTable(r.URL.Query().Get("q"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, html)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Dashboard.Bootstrap(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"total":   s.Dashboard.Len(),
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.Dashboard.Select(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("student %s not found", r.PathValue("id")))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := s.Dashboard.Workbook(r.URL.Query().Get("q"))
	if err != nil {
		s.log.Error("export failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dashboard.ExportName(time.Now())))
	if _, err := f.WriteTo(w); err != nil {
		s.log.Warn("export write failed", zap.Error(err))
	}
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notices": s.Notices.Active(),
		"sound":   s.Config.Dashboard.Sound,
	})
}

// handleLogs returns buffered log entries, optionally filtered by
// ?level=info,error
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var levels []string
	if lv := r.URL.Query().Get("level"); lv != "" {
		levels = strings.Split(lv, ",")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs": s.Logs.Entries(levels),
	})
}

func (s *Server) handleEnrollState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Wizard.Snapshot())
}

func (s *Server) writeWizard(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.Wizard.Snapshot())
	case errors.Is(err, enroll.ErrBusy):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, enroll.ErrUnsupportedSpreadsheet), errors.Is(err, enroll.ErrNoImages), errors.Is(err, enroll.ErrNotReady):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleSpreadsheet(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("missing file field"))
		return
	}
	f, err := readUpload(headers[0].Filename, headers[0].Header.Get("Content-Type"), headers[0].Open)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeWizard(w, s.Wizard.SelectSpreadsheet(f))
}

func (s *Server) handleRemoveSpreadsheet(w http.ResponseWriter, r *http.Request) {
	s.writeWizard(w, s.Wizard.RemoveSpreadsheet())
}

// handleImages takes the picked folder as repeated "files" parts. The
// multipart reader strips directories from part filenames, so the page
// sends each file's relative path in a matching "paths" value.
func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}
	headers := r.MultipartForm.File["files"]
	paths := r.MultipartForm.Value["paths"]

	files := make([]enroll.File, 0, len(headers))
	for i, h := range headers {
		rel := h.Filename
		if i < len(paths) && paths[i] != "" {
			rel = paths[i]
		}
		f, err := readUpload(rel, h.Header.Get("Content-Type"), h.Open)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		files = append(files, f)
	}
	s.writeWizard(w, s.Wizard.SelectImages(files))
}

func (s *Server) handleRemoveImages(w http.ResponseWriter, r *http.Request) {
	s.writeWizard(w, s.Wizard.RemoveImages())
}

// handleSubmit starts a run and returns at once; the page polls
// GET /api/enroll for progress.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	err := s.Wizard.Start(s.baseCtx, nil)
	if err != nil {
		s.writeWizard(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.Wizard.Snapshot())
}

// readUpload copies an uploaded part into memory, since the form's temp
// files are removed when the request ends.
func readUpload(rel, contentType string, open func() (multipart.File, error)) (enroll.File, error) {
	rc, err := open()
	if err != nil {
		return enroll.File{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return enroll.File{}, fmt.Errorf("read %s: %w", rel, err)
	}
	if contentType == "application/octet-stream" {
		contentType = ""
	}
	return enroll.BytesFile(rel, contentType, data), nil
}

// handleUI serves the web UI
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(webUI))
}
