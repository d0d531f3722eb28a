// Package dashboard keeps today's attendance list and turns live feed events
// into notices.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/faceattend/attendance-console/internal/activity"
	"github.com/faceattend/attendance-console/internal/backend"
	"github.com/faceattend/attendance-console/internal/chime"
	"github.com/faceattend/attendance-console/internal/logging"
	"github.com/faceattend/attendance-console/internal/metrics"
)

// Notice texts
const (
	MsgLoadFailed      = "Unable to load attendance data"
	MsgLoadConnection  = "Connection error while loading data"
	MsgFeedOpened      = "Real-time connection successful"
	MsgFeedClosed      = "Real-time connection lost. Attempting to reconnect..."
	MsgFeedError       = "Real-time connection error"
	checkedInFormat    = "🎉 %s (%s) has successfully checked in!"
	errMalformedRecord = "record has no student_id"
)

// Source loads the day's check-ins
type Source interface {
	TodayCheckins(ctx context.Context) (*backend.TodayCheckins, error)
}

// Options tune a Dashboard
type Options struct {
	// Dedupe drops feed records whose (student_id, attendance_time) is
	// already listed.
	Dedupe bool
	Player chime.Player
	// Location is used to read and display zone-less timestamps.
	Location *time.Location
}

// Dashboard is the attendance list, most recent first. It implements
// feed.Handler.
type Dashboard struct {
	mu       sync.RWMutex
	records  []backend.AttendanceRecord
	loaded   bool
	selected string

	source  Source
	notices *activity.NoticeBuffer
	player  chime.Player
	dedupe  bool
	loc     *time.Location
	log     *zap.Logger
}

// New creates an empty dashboard
func New(src Source, notices *activity.NoticeBuffer, opts Options, log *zap.Logger) *Dashboard {
	if opts.Player == nil {
		opts.Player = chime.Silent{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Dashboard{
		source:  src,
		notices: notices,
		player:  opts.Player,
		dedupe:  opts.Dedupe,
		loc:     opts.Location,
		log:     logging.OrNop(log).Named("dashboard"),
	}
}

// Bootstrap loads the day's records once. On failure it posts an error
// notice and leaves the list as it was.
func (d *Dashboard) Bootstrap(ctx context.Context) error {
	result, err := d.source.TodayCheckins(ctx)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			d.notify(activity.LevelError, MsgLoadFailed)
		} else {
			d.notify(activity.LevelError, MsgLoadConnection)
		}
		d.log.Warn("load attendance failed", zap.Error(err))
		return err
	}
	if !result.Success {
		d.notify(activity.LevelError, MsgLoadFailed)
		d.log.Warn("load attendance failed", zap.String("reason", "success=false"))
		return errors.New(MsgLoadFailed)
	}

	d.mu.Lock()
	d.records = append([]backend.AttendanceRecord(nil), result.Data...)
	d.loaded = true
	d.mu.Unlock()

	d.log.Info("loaded attendance records", zap.Int("total", result.Total), zap.Int("received", len(result.Data)))
	return nil
}

// FeedOpened implements feed.Handler
func (d *Dashboard) FeedOpened() {
	d.notify(activity.LevelSuccess, MsgFeedOpened)
}

// FeedClosed implements feed.Handler
func (d *Dashboard) FeedClosed() {
	d.notify(activity.LevelWarning, MsgFeedClosed)
}

// FeedError implements feed.Handler
func (d *Dashboard) FeedError(err error) {
	d.log.Debug("feed error", zap.Error(err))
	d.notify(activity.LevelError, MsgFeedError)
}

// FeedMessage implements feed.Handler. A payload that is not a record is
// logged and dropped.
func (d *Dashboard) FeedMessage(data []byte) {
	rec, err := parseRecord(data)
	if err != nil {
		metrics.FeedMessages.WithLabelValues("malformed").Inc()
		d.log.Warn("dropping feed message", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}

	if !d.add(rec) {
		metrics.FeedMessages.WithLabelValues("duplicate").Inc()
		d.log.Debug("duplicate check-in", zap.String("student_id", rec.StudentID))
		return
	}
	metrics.FeedMessages.WithLabelValues("ok").Inc()
	d.log.Info("new check-in", zap.String("student_id", rec.StudentID), zap.String("name", rec.Name))

	d.notify(activity.LevelSuccess, fmt.Sprintf(checkedInFormat, rec.Name, rec.StudentID))
	if err := d.player.Play(); err != nil {
		d.log.Debug("notification sound failed", zap.String("player", d.player.Name()), zap.Error(err))
	}
}

func parseRecord(data []byte) (backend.AttendanceRecord, error) {
	var rec backend.AttendanceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, err
	}
	if rec.StudentID == "" {
		return rec, errors.New(errMalformedRecord)
	}
	return rec, nil
}

// add prepends rec, reporting false when dedupe rejected it
func (d *Dashboard) add(rec backend.AttendanceRecord) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dedupe {
		for _, r := range d.records {
			if r.StudentID == rec.StudentID && r.AttendanceTime == rec.AttendanceTime {
				return false
			}
		}
	}
	d.records = append(d.records, backend.AttendanceRecord{})
	copy(d.records[1:], d.records)
	d.records[0] = rec
	return true
}

func (d *Dashboard) notify(level, msg string) {
	if d.notices != nil {
		d.notices.Push(level, msg)
	}
}

// Records returns a copy of the list, most recent first
func (d *Dashboard) Records() []backend.AttendanceRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]backend.AttendanceRecord(nil), d.records...)
}

// Len returns the number of records
func (d *Dashboard) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// Loaded reports whether a bootstrap has succeeded
func (d *Dashboard) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

// Select marks a student as selected. The detail view has nothing to show
// yet, so this only records and logs the choice.
func (d *Dashboard) Select(studentID string) (backend.AttendanceRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.records {
		if r.StudentID == studentID {
			d.selected = studentID
			d.log.Info("student selected", zap.String("student_id", studentID))
			return r, true
		}
	}
	return backend.AttendanceRecord{}, false
}

// Selected returns the last selected student id
func (d *Dashboard) Selected() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selected
}

// Matches reports whether a record is visible for query. The query is
// matched as typed, surrounding spaces included.
func Matches(r backend.AttendanceRecord, query string) bool {
	q := strings.ToLower(query)
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Name), q) || strings.Contains(strings.ToLower(r.StudentID), q)
}
