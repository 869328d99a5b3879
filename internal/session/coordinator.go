package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Coordinator is the single logical actor that owns the Session. Every
// inbound command and every countdown tick is funneled through one run
// loop, so no operation ever observes a partially updated session.
type Coordinator struct {
	session *Session
	clock   clockwork.Clock
	cfg     Config
	cmdCh   chan command

	// Only the run loop touches this; exactly one countdown may exist.
	countdown *countdown
}

// Config holds coordinator tuning knobs.
type Config struct {
	// TickInterval is the countdown time unit; one decrement per tick.
	TickInterval time.Duration
	// QueueSize is the command channel buffer.
	QueueSize int
}

// DefaultConfig returns the production coordinator configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval: time.Second,
		QueueSize:    256,
	}
}

type command interface{}

type teacherAttachCmd struct{ client Client }

type studentAttachCmd struct {
	client    Client
	name      string
	studentID string
}

type createPollCmd struct {
	client Client
	req    CreatePollRequest
}

type submitAnswerCmd struct {
	client        Client
	participantID string
	answer        string
}

type endPollCmd struct{}

type removeParticipantCmd struct{ participantID string }

type sendChatCmd struct {
	text   string
	sender string
	role   Role
}

type disconnectCmd struct{ client Client }

// NewCoordinator creates a coordinator around an empty session. Pass
// clockwork.NewRealClock() in production and a fake clock in tests.
func NewCoordinator(cfg Config, clock clockwork.Clock) *Coordinator {
	return &Coordinator{
		session: NewSession(clock),
		clock:   clock,
		cfg:     cfg,
		cmdCh:   make(chan command, cfg.QueueSize),
	}
}

// Run processes commands until the context is cancelled. It must be running
// before any command is dispatched.
func (co *Coordinator) Run(ctx context.Context) {
	log.Info().Msg("session coordinator started")

	for {
		select {
		case <-ctx.Done():
			co.stopCountdown()
			log.Info().Msg("session coordinator shutting down")
			return
		case cmd := <-co.cmdCh:
			co.handle(ctx, cmd)
		}
	}
}

func (co *Coordinator) handle(ctx context.Context, cmd command) {
	switch c := cmd.(type) {
	case teacherAttachCmd:
		co.session.TeacherAttach(c.client)
	case studentAttachCmd:
		co.session.StudentAttach(c.client, c.name, c.studentID)
	case createPollCmd:
		if pollID, ok := co.session.CreatePoll(c.client, c.req); ok {
			co.startCountdown(ctx, pollID)
		}
	case submitAnswerCmd:
		if co.session.SubmitAnswer(c.client, c.participantID, c.answer) {
			co.stopCountdown()
		}
	case endPollCmd:
		if co.session.EndPoll() {
			co.stopCountdown()
		}
	case tickCmd:
		if co.session.Tick(c.pollID) {
			co.stopCountdownFor(c.pollID)
		}
	case removeParticipantCmd:
		co.session.RemoveParticipant(c.participantID)
	case sendChatCmd:
		co.session.SendChat(c.text, c.sender, c.role)
	case disconnectCmd:
		co.session.Disconnect(c.client)
	default:
		log.Warn().Msgf("unknown command %T ignored", cmd)
	}
}

// TeacherAttach declares the connection a teacher.
func (co *Coordinator) TeacherAttach(c Client) {
	co.enqueue(teacherAttachCmd{client: c})
}

// StudentAttach joins (empty studentID) or rejoins a student.
func (co *Coordinator) StudentAttach(c Client, name, studentID string) {
	co.enqueue(studentAttachCmd{client: c, name: name, studentID: studentID})
}

// CreatePoll starts a new poll and its countdown.
func (co *Coordinator) CreatePoll(c Client, req CreatePollRequest) {
	co.enqueue(createPollCmd{client: c, req: req})
}

// SubmitAnswer records an answer on the active poll.
func (co *Coordinator) SubmitAnswer(c Client, participantID, answer string) {
	co.enqueue(submitAnswerCmd{client: c, participantID: participantID, answer: answer})
}

// EndPoll ends the current poll if one is active.
func (co *Coordinator) EndPoll() {
	co.enqueue(endPollCmd{})
}

// RemoveParticipant hard-deletes a participant from the roster.
func (co *Coordinator) RemoveParticipant(participantID string) {
	co.enqueue(removeParticipantCmd{participantID: participantID})
}

// SendChat appends and broadcasts a chat message.
func (co *Coordinator) SendChat(text, sender string, role Role) {
	co.enqueue(sendChatCmd{text: text, sender: sender, role: role})
}

// Disconnect reports a dropped connection.
func (co *Coordinator) Disconnect(c Client) {
	co.enqueue(disconnectCmd{client: c})
}

func (co *Coordinator) enqueue(cmd command) {
	select {
	case co.cmdCh <- cmd:
	default:
		log.Warn().Msgf("command queue full, dropping %T", cmd)
	}
}
