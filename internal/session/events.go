package session

// Event is the outbound notification envelope pushed to connected clients.
// Data is marshaled at the transport edge; a nil Data serializes as null,
// which current-poll relies on to signal "no poll".
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// EventType identifies an outbound notification.
type EventType string

const (
	EventCurrentPoll       EventType = "current-poll"
	EventPollTimeUpdate    EventType = "poll-time-update"
	EventPollEnded         EventType = "poll-ended"
	EventPollResults       EventType = "poll-results"
	EventRoster            EventType = "roster"
	EventParticipantJoined EventType = "participant-joined"
	EventAttachConfirmed   EventType = "attach-confirmed"
	EventHistory           EventType = "history"
	EventRemoved           EventType = "removed"
	EventStudentResult     EventType = "per-student-result"
	EventChatLog           EventType = "chat-log"
	EventChatMessage       EventType = "chat-message"
	EventCommandRejected   EventType = "command-rejected"
)

// CommandType identifies an inbound client command.
type CommandType string

const (
	CmdTeacherAttach     CommandType = "teacher-attach"
	CmdStudentAttach     CommandType = "student-attach"
	CmdCreatePoll        CommandType = "create-poll"
	CmdSubmitAnswer      CommandType = "submit-answer"
	CmdEndPoll           CommandType = "end-poll"
	CmdRemoveParticipant CommandType = "remove-participant"
	CmdSendMessage       CommandType = "send-message"
)

// StudentAttachPayload is the payload of a student-attach command.
// StudentID is set on rejoin and empty on first join.
type StudentAttachPayload struct {
	Name      string `json:"name"`
	StudentID string `json:"studentId,omitempty"`
}

// SubmitAnswerPayload is the payload of a submit-answer command.
type SubmitAnswerPayload struct {
	ParticipantID string `json:"participantId"`
	Answer        string `json:"answer"`
}

// RemoveParticipantPayload is the payload of a remove-participant command.
type RemoveParticipantPayload struct {
	ParticipantID string `json:"participantId"`
}

// SendMessagePayload is the payload of a send-message command.
type SendMessagePayload struct {
	Text       string `json:"text"`
	SenderName string `json:"senderName"`
	SenderRole string `json:"senderRole"`
}

// AttachConfirmedPayload acknowledges a student attach with the issued identity.
type AttachConfirmedPayload struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
}

// StudentResultPayload is the private per-student grading notification sent
// when a poll with a designated correct option ends.
type StudentResultPayload struct {
	IsCorrect       bool   `json:"isCorrect"`
	SubmittedAnswer string `json:"submittedAnswer"`
	CorrectAnswer   string `json:"correctAnswer"`
}

// RejectedPayload carries the reason a command was refused back to its sender.
type RejectedPayload struct {
	Reason string `json:"reason"`
}
