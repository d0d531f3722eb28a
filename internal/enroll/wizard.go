// Package enroll implements the bulk student enrollment wizard: pick a
// spreadsheet and a folder of photos, then push them through the backend's
// four-stage import pipeline.
package enroll

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/faceattend/attendance-console/internal/activity"
	"github.com/faceattend/attendance-console/internal/backend"
	"github.com/faceattend/attendance-console/internal/logging"
	"github.com/faceattend/attendance-console/internal/metrics"
)

var (
	ErrUnsupportedSpreadsheet = errors.New("please select Excel file (.xlsx or .xls)")
	ErrNoImages               = errors.New("no image files selected")
	ErrNotReady               = errors.New("please upload both Excel file and image folder")
	ErrBusy                   = errors.New("processing already in progress")
)

// SpreadsheetExtensions are the accepted spreadsheet suffixes
var SpreadsheetExtensions = []string{".xlsx", ".xls"}

// StepStatus is the state of one wizard step or pipeline stage
type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusActive    StepStatus = "active"
	StatusCompleted StepStatus = "completed"
	StatusError     StepStatus = "error"
)

// Wizard step numbers
const (
	StepSpreadsheet = 1
	StepImages      = 2
	StepProcessing  = 3
	StepComplete    = 4
)

var stepTitles = [4]string{"Select Spreadsheet", "Select Images", "Processing", "Complete"}

// Button labels for the submit control
const (
	LabelStart      = "Start Processing"
	LabelProcessing = "Processing..."
	LabelRetry      = "Retry Processing"
)

// Backend is the part of the attendance API the pipeline drives
type Backend interface {
	UploadSpreadsheet(ctx context.Context, part backend.Part) (json.RawMessage, error)
	UploadImages(ctx context.Context, parts []backend.Part) (json.RawMessage, error)
	ProcessData(ctx context.Context) (json.RawMessage, error)
	UpdateDatabase(ctx context.Context) (json.RawMessage, error)
}

// Step is one entry of the progress indicator
type Step struct {
	Number int        `json:"number"`
	Title  string     `json:"title"`
	Status StepStatus `json:"status"`
}

// Stage is one network call of the pipeline
type Stage struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
}

type pipelineStage struct {
	name  string
	start string
	done  string
	call  func(ctx context.Context, s *submission) error
}

// submission carries the selection captured when a run starts
type submission struct {
	backend     Backend
	spreadsheet File
	images      []File
}

var pipeline = []pipelineStage{
	{
		name:  "upload_spreadsheet",
		start: "Uploading Excel file...",
		done:  "✓ Excel file uploaded successfully",
		call: func(ctx context.Context, r *submission) error {
			_, err := r.backend.UploadSpreadsheet(ctx, backend.Part{
				Filename:    r.spreadsheet.Name,
				ContentType: r.spreadsheet.ContentType,
				Open:        r.spreadsheet.Open,
			})
			return err
		},
	},
	{
		name:  "upload_images",
		start: "Uploading image folder...",
		done:  "✓ Image folder uploaded successfully",
		call: func(ctx context.Context, r *submission) error {
			_, err := r.backend.UploadImages(ctx, UploadParts(r.images))
			return err
		},
	},
	{
		name:  "process_data",
		start: "Processing data and creating embeddings...",
		done:  "✓ Data processing completed",
		call: func(ctx context.Context, r *submission) error {
			_, err := r.backend.ProcessData(ctx)
			return err
		},
	},
	{
		name:  "update_database",
		start: "Updating database...",
		done:  "✓ Database updated successfully",
		call: func(ctx context.Context, r *submission) error {
			_, err := r.backend.UpdateDatabase(ctx)
			return err
		},
	},
}

// Wizard holds one enrollment session's state. Each instance is
// independent; the zero value is not usable, use NewWizard.
type Wizard struct {
	mu          sync.Mutex
	backend     Backend
	log         *zap.Logger
	journal     *activity.LogBuffer
	promptDelay time.Duration
	now         func() time.Time

	spreadsheet *File
	images      []File
	steps       [4]StepStatus
	stages      []StepStatus
	progress    int
	running     bool
	failed      bool
	completed   bool
	promptAt    time.Time
	runID       string
}

// NewWizard creates a wizard that submits to b. promptDelay is how long
// after completion the page asks to return to the dashboard.
func NewWizard(b Backend, promptDelay time.Duration, log *zap.Logger) *Wizard {
	w := &Wizard{
		backend:     b,
		log:         logging.OrNop(log).Named("enroll"),
		journal:     activity.NewLogBuffer(0),
		promptDelay: promptDelay,
		now:         time.Now,
		stages:      make([]StepStatus, len(pipeline)),
	}
	w.resetStages()
	w.steps = [4]StepStatus{StatusActive, StatusPending, StatusPending, StatusPending}
	return w
}

func (w *Wizard) resetStages() {
	for i := range w.stages {
		w.stages[i] = StatusPending
	}
}

// IsSpreadsheetName reports whether name ends in an accepted suffix
func IsSpreadsheetName(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range SpreadsheetExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// SelectSpreadsheet accepts the student spreadsheet. A file with any other
// suffix is rejected and leaves the wizard unchanged.
func (w *Wizard) SelectSpreadsheet(f File) error {
	if !IsSpreadsheetName(f.Name) {
		return ErrUnsupportedSpreadsheet
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrBusy
	}

	w.spreadsheet = &f
	w.steps[StepSpreadsheet-1] = StatusCompleted
	w.steps[StepImages-1] = StatusActive
	w.log.Info("spreadsheet selected", zap.String("name", f.Name), zap.Int64("size", f.Size))
	return nil
}

// SelectImages accepts the image fileset; at least one file is required.
func (w *Wizard) SelectImages(files []File) error {
	if len(files) == 0 {
		return ErrNoImages
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrBusy
	}

	w.images = append([]File(nil), files...)
	w.steps[StepImages-1] = StatusCompleted
	// selection is synchronous, so progress jumps straight to done
	w.progress = 100
	w.log.Info("images selected", zap.Stringer("summary", Summarize(files)))
	return nil
}

// RemoveSpreadsheet clears the spreadsheet selection
func (w *Wizard) RemoveSpreadsheet() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrBusy
	}

	w.spreadsheet = nil
	w.steps[StepSpreadsheet-1] = StatusActive
	w.steps[StepImages-1] = StatusPending
	return nil
}

// RemoveImages clears the image selection
func (w *Wizard) RemoveImages() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrBusy
	}

	w.images = nil
	w.progress = 0
	w.steps[StepImages-1] = StatusActive
	return nil
}

// CanSubmit reports whether both a spreadsheet and at least one image are
// selected and no submission is running.
func (w *Wizard) CanSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ready() && !w.running
}

func (w *Wizard) ready() bool {
	return w.spreadsheet != nil && len(w.images) > 0
}

// Selection is what the user has picked so far
type Selection struct {
	Spreadsheet *File
	Images      []File
}

// Selection returns a copy of the current selection
func (w *Wizard) Selection() Selection {
	w.mu.Lock()
	defer w.mu.Unlock()
	var sel Selection
	if w.spreadsheet != nil {
		f := *w.spreadsheet
		sel.Spreadsheet = &f
	}
	sel.Images = append([]File(nil), w.images...)
	return sel
}

// Submit runs the four pipeline stages in order, each finishing before the
// next starts. The first failure stops the run and marks the processing step
// as errored; nothing already sent is rolled back. Calling Submit again
// re-runs every stage from the first.
func (w *Wizard) Submit(ctx context.Context) error {
	r, log, err := w.begin()
	if err != nil {
		return err
	}
	return w.execute(ctx, r, log)
}

// Start checks the preconditions like Submit, then runs the pipeline on its
// own goroutine and reports the outcome to done, which may be nil.
func (w *Wizard) Start(ctx context.Context, done func(error)) error {
	r, log, err := w.begin()
	if err != nil {
		return err
	}
	go func() {
		err := w.execute(ctx, r, log)
		if done != nil {
			done(err)
		}
	}()
	return nil
}

func (w *Wizard) begin() (*submission, *zap.Logger, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil, nil, ErrBusy
	}
	if !w.ready() {
		return nil, nil, ErrNotReady
	}

	r := &submission{
		backend:     w.backend,
		spreadsheet: *w.spreadsheet,
		images:      append([]File(nil), w.images...),
	}
	w.running = true
	w.failed = false
	w.completed = false
	w.promptAt = time.Time{}
	w.runID = uuid.NewString()
	w.resetStages()
	w.steps[StepProcessing-1] = StatusActive
	w.steps[StepComplete-1] = StatusPending
	w.journal.Clear()
	w.journal.Add(activity.LevelInfo, "Starting student data processing")
	return r, w.log.With(zap.String("run", w.runID)), nil
}

func (w *Wizard) execute(ctx context.Context, r *submission, log *zap.Logger) error {
	err := w.runStages(ctx, r, log)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false

	if err != nil {
		w.failed = true
		w.steps[StepProcessing-1] = StatusError
		w.journal.Add(activity.LevelError, "❌ Error: "+err.Error())
		metrics.EnrollRuns.WithLabelValues("failed").Inc()
		log.Warn("enrollment failed", zap.Error(err))
		return err
	}

	w.completed = true
	w.steps[StepProcessing-1] = StatusCompleted
	w.steps[StepComplete-1] = StatusCompleted
	w.promptAt = w.now().Add(w.promptDelay)
	w.journal.Add(activity.LevelSuccess, "🎉 Complete! All students have been added to the system.")
	metrics.EnrollRuns.WithLabelValues("completed").Inc()
	log.Info("enrollment completed", zap.Int("images", len(r.images)))
	return nil
}

func (w *Wizard) runStages(ctx context.Context, r *submission, log *zap.Logger) error {
	for i, st := range pipeline {
		w.setStage(i, StatusActive)
		w.journal.Add(activity.LevelInfo, st.start)

		start := time.Now()
		err := st.call(ctx, r)
		metrics.ObserveStage(st.name, time.Since(start))
		if err != nil {
			w.setStage(i, StatusError)
			log.Debug("stage failed", zap.String("stage", st.name), zap.Error(err))
			return err
		}

		w.setStage(i, StatusCompleted)
		w.journal.Add(activity.LevelSuccess, st.done)
	}
	return nil
}

func (w *Wizard) setStage(i int, s StepStatus) {
	w.mu.Lock()
	w.stages[i] = s
	w.mu.Unlock()
}

// SpreadsheetInfo describes the selected spreadsheet
type SpreadsheetInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	SizeText string `json:"size_text"`
}

// Snapshot is a point-in-time view of the wizard for rendering
type Snapshot struct {
	Steps          []Step              `json:"steps"`
	Stages         []Stage             `json:"stages"`
	Spreadsheet    *SpreadsheetInfo    `json:"spreadsheet,omitempty"`
	Images         *FolderSummary      `json:"images,omitempty"`
	ImagesText     string              `json:"images_text,omitempty"`
	Progress       int                 `json:"progress"`
	CanSubmit      bool                `json:"can_submit"`
	Running        bool                `json:"running"`
	ButtonLabel    string              `json:"button_label"`
	Completed      bool                `json:"completed"`
	ReturnPromptAt *time.Time          `json:"return_prompt_at,omitempty"`
	Log            []activity.LogEntry `json:"log"`
}

// Snapshot returns the current wizard state
func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Snapshot{
		Progress:  w.progress,
		CanSubmit: w.ready() && !w.running,
		Running:   w.running,
		Completed: w.completed,
		Log:       w.journal.Entries(nil),
	}
	for i, st := range w.steps {
		s.Steps = append(s.Steps, Step{Number: i + 1, Title: stepTitles[i], Status: st})
	}
	for i, st := range w.stages {
		s.Stages = append(s.Stages, Stage{Name: pipeline[i].name, Status: st})
	}
	if w.spreadsheet != nil {
		s.Spreadsheet = &SpreadsheetInfo{
			Name:     w.spreadsheet.Name,
			Size:     w.spreadsheet.Size,
			SizeText: FormatFileSize(w.spreadsheet.Size),
		}
	}
	if len(w.images) > 0 {
		sum := Summarize(w.images)
		s.Images = &sum
		s.ImagesText = sum.String()
	}
	switch {
	case w.running:
		s.ButtonLabel = LabelProcessing
	case w.failed:
		s.ButtonLabel = LabelRetry
	default:
		s.ButtonLabel = LabelStart
	}
	if !w.promptAt.IsZero() {
		at := w.promptAt
		s.ReturnPromptAt = &at
	}
	return s
}
