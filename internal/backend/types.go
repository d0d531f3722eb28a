package backend

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// AttendanceRecord is one student's check-in for the current day, as sent by
// /today-checkins and the live feed.
type AttendanceRecord struct {
	StudentID         string `json:"student_id"`
	Name              string `json:"name"`
	ClassName         string `json:"class_name,omitempty"`
	Major             string `json:"major,omitempty"`
	AttendanceTime    string `json:"attendance_time"`
	CheckinFaceBase64 string `json:"checkin_face_base64,omitempty"`
	AvatarBase64      string `json:"avatar_base64,omitempty"`
	// Timestamp is set by the feed publisher, not by /today-checkins.
	Timestamp string `json:"timestamp,omitempty"`
}

// timeLayouts covers what the backend emits: ISO-8601 with or without a zone,
// and SQLite's space-separated datetime.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Time parses AttendanceTime. Zone-less values are read in loc.
func (r AttendanceRecord) Time(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s := strings.TrimSpace(r.AttendanceTime)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised attendance time %q", r.AttendanceTime)
}

// TodayCheckins is the /today-checkins response body
type TodayCheckins struct {
	Success bool               `json:"success"`
	Data    []AttendanceRecord `json:"data"`
	Total   int                `json:"total"`
}

// Part is one file sent in a multipart upload
type Part struct {
	Filename    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// APIError is a non-2xx response from the backend
type APIError struct {
	Status int
	Detail string
	// Fallback is used when the backend gave no detail.
	Fallback string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Fallback != "" {
		return e.Fallback
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// parseDetail pulls the FastAPI-style "detail" field out of an error body.
// Validation errors carry a list rather than a string; those are returned as
// compact JSON.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	if string(payload.Detail) == "null" {
		return ""
	}
	return string(payload.Detail)
}
