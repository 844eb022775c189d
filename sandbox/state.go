package sandbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/notebookgrader/grader-client/grader"
	"github.com/notebookgrader/grader-client/polling"
)

const colabBase = "https://colab.research.google.com/drive/"

// Student is a participant of an assignment
type Student struct {
	FirstName string
	LastName  string
	Email     string
}

// Assignment seeds a teacher assignment
type Assignment struct {
	ID        string
	Name      string
	MaxPoints float64
	// IsOwner lets the caller rotate the access URL
	IsOwner bool
}

// Homework seeds one student's copy of an assignment
type Homework struct {
	ID                 string
	AssignmentID       string
	Student            Student
	AvailableFrom      time.Time
	SubmissionDeadline time.Time
	AvailableUntil     time.Time
	CanObtainNotebook  bool
	MaxIn24h           int
	// Readonly freezes the attached file
	Readonly bool
	// Grades are newest first
	Grades []grader.Grade
}

// DefaultSeed is one open assignment with one homework, both with id "1"
func DefaultSeed(now time.Time) ([]Assignment, []Homework) {
	now = now.UTC()
	assignments := []Assignment{{ID: "1", Name: "Intro to Python", MaxPoints: 10, IsOwner: true}}
	homeworks := []Homework{{
		ID:                 "1",
		AssignmentID:       "1",
		Student:            Student{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		AvailableFrom:      now.Add(-24 * time.Hour),
		SubmissionDeadline: now.Add(6 * 24 * time.Hour),
		AvailableUntil:     now.Add(7 * 24 * time.Hour),
		CanObtainNotebook:  true,
		MaxIn24h:           3,
	}}
	return assignments, homeworks
}

type assignment struct {
	Assignment
	accessKey string
}

func newAssignment(a Assignment) *assignment {
	return &assignment{Assignment: a, accessKey: uuid.New().String()}
}

type feedback struct {
	state   polling.State
	url     string
	message string
	readyAt time.Time
	stars   int
}

type homework struct {
	Homework
	driveID           string
	pending           []time.Time
	mostRecentRequest time.Time
	numAIFeedback     int
	feedback          feedback
	file              *grader.FileState
}

func newHomework(hw Homework) *homework {
	return &homework{
		Homework: hw,
		feedback: feedback{state: polling.StateAsk},
	}
}

func (hw *homework) isOpen(now time.Time) bool {
	return !now.Before(hw.AvailableFrom) && now.Before(hw.AvailableUntil)
}

func (hw *homework) gradesSince(since time.Time) int {
	var n int
	for _, g := range hw.Grades {
		if t, err := grader.ParseTime(g.GradeDate); err == nil && t.After(since) {
			n++
		}
	}
	return n
}

// best is the highest valid grade
func (hw *homework) best() float64 {
	var best float64
	for _, g := range hw.Grades {
		if g.IsValid && g.Grade > best {
			best = g.Grade
		}
	}
	return best
}

// advance turns due grading and feedback requests into results
func (s *Server) advance(hw *homework, now time.Time) {
	var still []time.Time
	for _, due := range hw.pending {
		if due.After(now) {
			still = append(still, due)
			continue
		}
		g := grader.Grade{
			GradeDate: grader.FormatTime(due),
			Grade:     s.gradeFor(hw),
			IsValid:   true,
		}
		hw.Grades = append([]grader.Grade{g}, hw.Grades...)
		s.hub.publish(Event{Kind: EventGrade, HomeworkID: hw.ID, Date: g.GradeDate})
	}
	hw.pending = still

	if hw.feedback.state == polling.StateRequested && !hw.feedback.readyAt.After(now) {
		if s.opts.FeedbackError != "" {
			hw.feedback.state = polling.StateError
			hw.feedback.message = s.opts.FeedbackError
		} else {
			hw.feedback.state = polling.StateReceived
			hw.feedback.url = colabBase + "feedback-" + hw.ID
			hw.numAIFeedback++
		}
		s.hub.publish(Event{
			Kind:       EventFeedback,
			HomeworkID: hw.ID,
			State:      string(hw.feedback.state),
			Date:       grader.FormatTime(hw.feedback.readyAt),
		})
	}
}

// gradeFor cycles through 70%, 80%, 90% and 100% of the assignment points
func (s *Server) gradeFor(hw *homework) float64 {
	max := 10.0
	if a, ok := s.assignments[hw.AssignmentID]; ok && a.MaxPoints > 0 {
		max = a.MaxPoints
	}
	return max * (0.7 + 0.1*float64(len(hw.Grades)%4))
}

// lookupHomework returns the homework with its pending work advanced.
// s.mu must be held.
func (s *Server) lookupHomework(id string) (*homework, error) {
	hw, ok := s.homeworks[id]
	if !ok {
		return nil, errHTTPNotFound
	}
	s.advance(hw, s.now())
	return hw, nil
}

func (s *Server) lookupAssignment(id string) (*assignment, error) {
	a, ok := s.assignments[id]
	if !ok {
		return nil, errHTTPNotFound
	}
	return a, nil
}
