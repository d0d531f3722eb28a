package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/faceattend/attendance-console/internal/config"
	"github.com/faceattend/attendance-console/internal/logging"
)

// Endpoint paths on the attendance backend
const (
	PathUploadExcel    = "/api/upload-excel"
	PathUploadImages   = "/api/upload-images"
	PathProcessData    = "/api/process-data"
	PathUpdateDatabase = "/api/update-database"
	PathTodayCheckins  = "/today-checkins"
)

// sniffLen is how much of a file is read to guess its content type
const sniffLen = 3072

// Client calls the attendance backend HTTP API
type Client struct {
	BaseURL string
	HTTP    *http.Client
	log     *zap.Logger
}

// New creates a client for the backend described by cfg
func New(cfg config.BackendConfig, log *zap.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		HTTP:    &http.Client{Timeout: cfg.RequestTimeout},
		log:     logging.OrNop(log).Named("backend"),
	}
}

// UploadSpreadsheet sends the student spreadsheet as multipart field "file"
func (c *Client) UploadSpreadsheet(ctx context.Context, part Part) (json.RawMessage, error) {
	return c.postMultipart(ctx, PathUploadExcel, "file", []Part{part}, "Excel file upload failed")
}

// UploadImages sends every image as a repeated multipart field "files"
func (c *Client) UploadImages(ctx context.Context, parts []Part) (json.RawMessage, error) {
	return c.postMultipart(ctx, PathUploadImages, "files", parts, "Image folder upload failed")
}

// ProcessData asks the backend to build embeddings from the uploaded data
func (c *Client) ProcessData(ctx context.Context) (json.RawMessage, error) {
	return c.postEmpty(ctx, PathProcessData, "Data processing failed")
}

// UpdateDatabase asks the backend to commit processed students
func (c *Client) UpdateDatabase(ctx context.Context) (json.RawMessage, error) {
	return c.postEmpty(ctx, PathUpdateDatabase, "Database update failed")
}

// TodayCheckins fetches today's attendance records, most recent first
func (c *Client) TodayCheckins(ctx context.Context) (*TodayCheckins, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+PathTodayCheckins, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "Unable to load attendance data")
	if err != nil {
		return nil, err
	}

	var result TodayCheckins
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse today checkins: %w", err)
	}
	return &result, nil
}

func (c *Client) postEmpty(ctx context.Context, path, fallback string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, fallback)
}

// postMultipart streams parts through a pipe so large image folders are not
// buffered in memory.
func (c *Client) postMultipart(ctx context.Context, path, field string, parts []Part, fallback string) (json.RawMessage, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	go func() {
		err := writeParts(mw, field, parts)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	c.log.Debug("uploading", zap.String("path", path), zap.Int("parts", len(parts)))
	return c.do(req, fallback)
}

func (c *Client) do(req *http.Request, fallback string) (json.RawMessage, error) {
	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fallback, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", fallback, err)
	}

	c.log.Debug("backend response",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Detail: parseDetail(body), Fallback: fallback}
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("%s: response is not JSON", fallback)
	}
	return json.RawMessage(body), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeParts(mw *multipart.Writer, field string, parts []Part) error {
	for _, p := range parts {
		if err := writePart(mw, field, p); err != nil {
			return fmt.Errorf("%s: %w", p.Filename, err)
		}
	}
	return nil
}

func writePart(mw *multipart.Writer, field string, p Part) error {
	rc, err := p.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	var r io.Reader = rc
	ct := p.ContentType
	if ct == "" {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(rc, head)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return err
		}
		head = head[:n]
		ct = mimetype.Detect(head).String()
		r = io.MultiReader(bytes.NewReader(head), rc)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(p.Filename)))
	h.Set("Content-Type", ct)

	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	return err
}
