package grader

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// HomeworkDetails describes one student's homework
type HomeworkDetails struct {
	AvailableFrom      string `json:"available_from"`
	SubmissionDeadline string `json:"submission_deadline"`
	AvailableUntil     string `json:"available_until"`
	CanObtainNotebook  bool   `json:"can_obtain_notebook"`
	DriveURL           string `json:"drive_url"`
	MaxIn24h           int    `json:"max_in_24h"`
	NumAIFeedback      int    `json:"num_ai_feedback"`
}

type Grade struct {
	GradeDate string  `json:"grade_date"`
	Grade     float64 `json:"grade"`
	IsValid   bool    `json:"is_valid"`
}

// Grades lists the grades of a homework, newest first
type Grades struct {
	Grades             []Grade `json:"grades"`
	MostRecentRequest  string  `json:"most_recent_request"`
	HasPendingRequests bool    `json:"has_pending_requests"`
}

// Latest returns the date of the newest grade, or ""
func (g Grades) Latest() string {
	if len(g.Grades) == 0 {
		return ""
	}
	return g.Grades[0].GradeDate
}

// GradeOutcome is the answer to a grading request
type GradeOutcome struct {
	IsError    bool   `json:"is_error"`
	Outcome    string `json:"outcome"`
	CellSource string `json:"cell_source"`
	Watch      bool   `json:"watch"`
}

type driveURL struct {
	DriveURL string `json:"drive_url"`
}

// Feedback is the state of the AI feedback of a homework
type Feedback struct {
	State       string `json:"state"`
	FeedbackURL string `json:"feedback_url"`
	Message     string `json:"message"`
}

// Rating is a star rating of a received feedback
type Rating struct {
	Stars int `json:"stars" validate:"min=1,max=5"`
}

type accessURL struct {
	AccessURL string `json:"access_url"`
}

// NotebookVersion links the Colab copies of an assignment
type NotebookVersion struct {
	InstructorVersion string `json:"instructor_version"`
	StudentVersion    string `json:"student_version"`
}

// GradesFile is the participants grades export
type GradesFile struct {
	CSVFile  string `json:"csvfile"`
	Filename string `json:"filename"`
}

// FileState describes the file held by an upload widget
type FileState struct {
	FileName    string `json:"file_name"`
	FileType    string `json:"file_type"`
	FileDate    string `json:"file_date"`
	FilePath    string `json:"file_path"`
	FileSize    int64  `json:"file_size"`
	Readonly    bool   `json:"readonly"`
	DownloadURL string `json:"download_url"`
}

// File actions of the upload endpoint
const (
	ActionObtainUploadURL   = "OBTAIN UPLOAD URL"
	ActionUploadComplete    = "UPLOAD COMPLETE"
	ActionObtainDeletionURL = "OBTAIN DELETION URL"
	ActionDeletionComplete  = "DELETION COMPLETE"
)

// FileAction is a POST to the upload endpoint
type FileAction struct {
	Action   string `json:"action" validate:"required"`
	MimeType string `json:"mimetype,omitempty"`
	FileName string `json:"file_name,omitempty"`
	FileType string `json:"file_type,omitempty"`
	FilePath string `json:"file_path,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// FileActionResult is the answer to a FileAction
type FileActionResult struct {
	SignedURL   string `json:"signed_url"`
	FilePath    string `json:"file_path"`
	FileDate    string `json:"file_date"`
	DownloadURL string `json:"download_url"`
}

// noTimestamp is what the server sends when there is no date at all
const noTimestamp = "0000-00-00 00:00:00"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses a server timestamp. Timestamps without a zone are UTC.
// The zero time is returned for "" and for the no-date placeholder.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == noTimestamp {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized timestamp %q", s)
}

// FormatTime renders t the way the server does (UTC, no zone)
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000")
}
