package dashboard

import (
	"bytes"
	"html/template"

	"github.com/faceattend/attendance-console/internal/backend"
)

const (
	dateLayout  = "01/02/2006"
	clockLayout = "03:04:05 PM"
)

// Row is one rendered table row
type Row struct {
	Index       int    `json:"index"`
	StudentID   string `json:"student_id"`
	Name        string `json:"name"`
	ClassName   string `json:"class_name,omitempty"`
	Major       string `json:"major,omitempty"`
	CheckinFace string `json:"checkin_face_base64,omitempty"`
	Avatar      string `json:"avatar_base64,omitempty"`
	// Time is "01/02/2006<br>03:04:05 PM", or the raw value when it does not
	// parse.
	Time string `json:"time"`

	date  string
	clock string
}

// CheckinSrc is the data URL of the check-in photo
func (r Row) CheckinSrc() template.URL { return dataURL(r.CheckinFace) }

// AvatarSrc is the data URL of the avatar
func (r Row) AvatarSrc() template.URL { return dataURL(r.Avatar) }

// Date is the date half of Time, or the raw timestamp
func (r Row) Date() string { return r.date }

// Clock is the time-of-day half of Time; empty when the timestamp did not parse
func (r Row) Clock() string { return r.clock }

func dataURL(b64 string) template.URL {
	return template.URL("data:image/jpeg;base64," + b64)
}

func (d *Dashboard) row(i int, rec backend.AttendanceRecord) Row {
	row := Row{
		Index:       i + 1,
		StudentID:   rec.StudentID,
		Name:        rec.Name,
		ClassName:   rec.ClassName,
		Major:       rec.Major,
		CheckinFace: rec.CheckinFaceBase64,
		Avatar:      rec.AvatarBase64,
	}
	if t, err := rec.Time(d.loc); err == nil {
		t = t.In(d.loc)
		row.date, row.clock = t.Format(dateLayout), t.Format(clockLayout)
		row.Time = row.date + "<br>" + row.clock
	} else {
		row.date = rec.AttendanceTime
		row.Time = rec.AttendanceTime
	}
	return row
}

// Rows maps the whole list to table rows
func (d *Dashboard) Rows() []Row {
	return d.Search("")
}

// Search returns the rows whose name or student id contains query, ignoring
// case. Rows keep their position in the full list.
func (d *Dashboard) Search(query string) []Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rows := make([]Row, 0, len(d.records))
	for i, rec := range d.records {
		if Matches(rec, query) {
			rows = append(rows, d.row(i, rec))
		}
	}
	return rows
}

var tableTmpl = template.Must(template.New("table").Parse(`
{{- if .Empty -}}
<tr id="noDataRow">
  <td colspan="6" class="empty">
    <p class="empty-title">No students have attended today</p>
    <p class="empty-hint">Data will automatically update when students attend</p>
  </td>
</tr>
{{- else -}}
{{- range .Rows}}
<tr data-student-id="{{.StudentID}}">
  <td>{{.Index}}</td>
  <td>{{if .CheckinFace}}<img src="{{.CheckinSrc}}" alt="Recent Check-in" class="attendance-image">{{else}}<div class="image-placeholder">&#x1F4F7;</div>{{end}}</td>
  <td>{{if .Avatar}}<img src="{{.AvatarSrc}}" alt="Avatar" class="attendance-image">{{else}}<div class="image-placeholder">&#x1F464;</div>{{end}}</td>
  <td class="name">{{.Name}}</td>
  <td>{{.StudentID}}</td>
  <td>{{if .Clock}}{{.Date}}<br>{{.Clock}}{{else}}{{.Date}}{{end}}</td>
</tr>
{{- end}}
{{- end}}
`))

// RenderTable renders the table body for query. The empty-state row only
// appears when there are no records at all.
func (d *Dashboard) RenderTable(query string) (string, error) {
	data := struct {
		Empty bool
		Rows  []Row
	}{
		Empty: d.Len() == 0,
		Rows:  d.Search(query),
	}
	var buf bytes.Buffer
	if err := tableTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
