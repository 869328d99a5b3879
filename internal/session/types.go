package session

import (
	"time"

	"github.com/google/uuid"
)

// Client is one live connection as the coordinator sees it. The gateway's
// WebSocket connection implements it; tests use in-memory fakes.
type Client interface {
	Send(ev Event)
}

// Role distinguishes the two kinds of connected parties.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// PollStatus is the lifecycle state of a poll.
type PollStatus string

const (
	PollActive PollStatus = "active"
	PollEnded  PollStatus = "ended"
)

// Participant is a student record keyed by a stable ID that survives
// reconnects. The live connection handle is cleared on disconnect; the
// record itself is deleted only by an explicit teacher removal.
type Participant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	HasAnswered bool      `json:"hasAnswered"`
	Answer      *string   `json:"answer"`
	Connected   bool      `json:"connected"`
	JoinedAt    time.Time `json:"joinedAt"`

	client Client
}

// Poll is a single multiple-choice question with a countdown.
// Responses maps participant ID to the chosen option.
type Poll struct {
	ID            uuid.UUID         `json:"id"`
	Question      string            `json:"question"`
	Options       []string          `json:"options"`
	DurationSec   int               `json:"durationSeconds"`
	TimeLeftSec   int               `json:"timeLeft"`
	CorrectAnswer string            `json:"correctAnswer,omitempty"`
	Status        PollStatus        `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	EndedAt       *time.Time        `json:"endedAt,omitempty"`
	Responses     map[string]string `json:"responses"`
}

// CreatePollRequest is the payload of a create-poll command.
type CreatePollRequest struct {
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	DurationSeconds int      `json:"durationSeconds"`
	CorrectAnswer   string   `json:"correctAnswer,omitempty"`
}

func (r CreatePollRequest) validate() error {
	if r.Question == "" {
		return ErrEmptyQuestion
	}
	if len(r.Options) < 2 {
		return ErrTooFewOptions
	}
	if r.DurationSeconds <= 0 {
		return ErrInvalidDuration
	}
	return nil
}

// Results is the aggregated view of the current poll. Counts holds one
// bucket per declared option; responses that match no option are excluded.
type Results struct {
	Counts         map[string]int `json:"results"`
	TotalResponses int            `json:"totalResponses"`
	TotalStudents  int            `json:"totalStudents"`
}

// ParticipantOutcome is a participant's state frozen into a history entry.
type ParticipantOutcome struct {
	Name        string  `json:"name"`
	HasAnswered bool    `json:"hasAnswered"`
	Answer      *string `json:"answer"`
}

// HistoryEntry is an immutable snapshot of an ended poll plus every
// participant known at end time.
type HistoryEntry struct {
	Poll         Poll                 `json:"poll"`
	Participants []ParticipantOutcome `json:"participants"`
}

// ChatMessage is one entry in the session-wide chat log.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Role      Role      `json:"senderRole"`
	Timestamp time.Time `json:"timestamp"`
}
