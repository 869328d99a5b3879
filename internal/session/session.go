package session

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Session is the single global record of poll, roster, and chat state.
// It is a plain state machine: no goroutines, no I/O, no locking. Exactly
// one owner (the Coordinator's run loop) may call its methods, which keeps
// every mutation serialized without any shared-memory discipline here.
type Session struct {
	participants map[string]*Participant
	order        []string // participant IDs in join order; the roster order

	current *Poll
	history []HistoryEntry
	chat    []ChatMessage

	// Broadcast groups. A connection may sit in both (a client that
	// attached as teacher and student); fan-out deduplicates.
	teachers map[Client]struct{}
	students map[Client]struct{}

	clock clockwork.Clock
}

// NewSession creates an empty session. The clock is used only for
// timestamps; the countdown lives in the Coordinator.
func NewSession(clock clockwork.Clock) *Session {
	return &Session{
		participants: make(map[string]*Participant),
		order:        []string{},
		history:      []HistoryEntry{},
		chat:         []ChatMessage{},
		teachers:     make(map[Client]struct{}),
		students:     make(map[Client]struct{}),
		clock:        clock,
	}
}

// TeacherAttach adds the connection to the teacher group and replays the
// full session state to it alone. No session state is mutated.
func (s *Session) TeacherAttach(c Client) {
	s.teachers[c] = struct{}{}

	s.send(c, Event{Type: EventCurrentPoll, Data: s.currentPollData()})
	s.send(c, Event{Type: EventRoster, Data: s.Roster()})
	s.send(c, Event{Type: EventHistory, Data: s.history})
	s.send(c, Event{Type: EventChatLog, Data: s.chat})

	log.Info().Int("teachers", len(s.teachers)).Msg("teacher attached")
}

// StudentAttach handles both first joins (empty studentID) and rejoins.
// A rejoin with an unknown ID is a deliberate silent no-op: it is treated
// as stale client state, not a fault.
func (s *Session) StudentAttach(c Client, name, studentID string) {
	if studentID == "" {
		s.attachFresh(c, name)
		return
	}
	s.attachRejoin(c, studentID)
}

func (s *Session) attachFresh(c Client, name string) {
	p := &Participant{
		ID:        uuid.NewString(),
		Name:      name,
		Connected: true,
		JoinedAt:  s.clock.Now(),
		client:    c,
	}
	s.participants[p.ID] = p
	s.order = append(s.order, p.ID)
	s.students[c] = struct{}{}

	s.send(c, Event{Type: EventAttachConfirmed, Data: AttachConfirmedPayload{StudentID: p.ID, Name: p.Name}})
	s.send(c, Event{Type: EventRoster, Data: s.Roster()})
	if s.current != nil {
		s.send(c, Event{Type: EventCurrentPoll, Data: s.current})
	}

	s.broadcastTeachers(Event{Type: EventParticipantJoined, Data: p})
	roster := s.Roster()
	s.broadcastTeachers(Event{Type: EventRoster, Data: roster})
	s.broadcastStudents(Event{Type: EventRoster, Data: roster})

	log.Info().Str("student_id", p.ID).Str("name", name).Msg("student joined")
}

func (s *Session) attachRejoin(c Client, studentID string) {
	p, ok := s.participants[studentID]
	if !ok {
		log.Debug().Str("student_id", studentID).Msg("rejoin with unknown id ignored")
		return
	}

	p.client = c
	p.Connected = true
	s.students[c] = struct{}{}

	s.send(c, Event{Type: EventAttachConfirmed, Data: AttachConfirmedPayload{StudentID: p.ID, Name: p.Name}})
	s.send(c, Event{Type: EventRoster, Data: s.Roster()})
	if s.current != nil {
		s.send(c, Event{Type: EventCurrentPoll, Data: s.current})
		if s.current.Status == PollActive {
			s.send(c, Event{Type: EventPollResults, Data: s.Results()})
		}
	}

	log.Info().Str("student_id", p.ID).Str("name", p.Name).Msg("student rejoined")
}

// Disconnect degrades the participant behind the connection to "connection
// absent". The record and its answer state survive; no broadcast is issued.
func (s *Session) Disconnect(c Client) {
	delete(s.teachers, c)
	delete(s.students, c)

	for _, p := range s.participants {
		if p.client == c {
			p.client = nil
			p.Connected = false
			log.Info().Str("student_id", p.ID).Msg("student connection dropped")
		}
	}
}

// CreatePoll starts a new poll if none is active. On success it returns the
// poll ID so the caller can key the countdown to it.
func (s *Session) CreatePoll(c Client, req CreatePollRequest) (uuid.UUID, bool) {
	if s.current != nil && s.current.Status == PollActive {
		s.reject(c, ErrPollAlreadyActive)
		return uuid.Nil, false
	}
	if err := req.validate(); err != nil {
		s.reject(c, err)
		return uuid.Nil, false
	}

	s.current = &Poll{
		ID:            uuid.New(),
		Question:      req.Question,
		Options:       req.Options,
		DurationSec:   req.DurationSeconds,
		TimeLeftSec:   req.DurationSeconds,
		CorrectAnswer: req.CorrectAnswer,
		Status:        PollActive,
		CreatedAt:     s.clock.Now(),
		Responses:     make(map[string]string),
	}

	// Every participant starts the new poll unanswered, whatever they did
	// on the previous one.
	for _, p := range s.participants {
		p.HasAnswered = false
		p.Answer = nil
	}

	s.broadcastAll(Event{Type: EventCurrentPoll, Data: s.current})
	s.broadcastTeachers(Event{Type: EventRoster, Data: s.Roster()})

	log.Info().
		Str("poll_id", s.current.ID.String()).
		Str("question", req.Question).
		Int("duration_sec", req.DurationSeconds).
		Msg("poll created")
	return s.current.ID, true
}

// SubmitAnswer records a participant's answer on the active poll. A repeat
// submission overwrites the previous one (last write wins). Returns true
// when the submission completed the poll (all registered participants have
// answered) and the end transition ran.
func (s *Session) SubmitAnswer(c Client, participantID, answer string) bool {
	if s.current == nil || s.current.Status != PollActive {
		s.reject(c, ErrNoActivePoll)
		return false
	}
	p, ok := s.participants[participantID]
	if !ok {
		// Stale or replayed client state; not an error.
		log.Debug().Str("student_id", participantID).Msg("answer from unknown id ignored")
		return false
	}

	submitted := answer
	p.HasAnswered = true
	p.Answer = &submitted
	s.current.Responses[participantID] = answer

	s.broadcastAll(Event{Type: EventPollResults, Data: s.Results()})
	roster := s.Roster()
	s.broadcastTeachers(Event{Type: EventRoster, Data: roster})
	s.broadcastStudents(Event{Type: EventRoster, Data: roster})

	for _, other := range s.participants {
		if !other.HasAnswered {
			return false
		}
	}
	log.Info().Str("poll_id", s.current.ID.String()).Msg("all participants answered")
	return s.EndPoll()
}

// EndPoll transitions the current poll to ended. It is callable from any
// path (teacher command, countdown expiry, all-answered) and is a no-op
// unless a poll is currently active, which makes the transition
// exactly-once no matter how many paths race for it.
func (s *Session) EndPoll() bool {
	if s.current == nil || s.current.Status != PollActive {
		return false
	}

	now := s.clock.Now()
	s.current.Status = PollEnded
	s.current.EndedAt = &now

	// Private grading, only when a correct option was designated and only
	// to participants who are connected and answered.
	if s.current.CorrectAnswer != "" {
		for _, id := range s.order {
			p := s.participants[id]
			if p.client == nil || !p.HasAnswered {
				continue
			}
			res := StudentResultPayload{
				IsCorrect:     p.Answer != nil && *p.Answer == s.current.CorrectAnswer,
				CorrectAnswer: s.current.CorrectAnswer,
			}
			if p.Answer != nil {
				res.SubmittedAnswer = *p.Answer
			}
			s.send(p.client, Event{Type: EventStudentResult, Data: res})
		}
	}

	s.history = append(s.history, s.snapshot())
	s.broadcastAll(Event{Type: EventPollEnded, Data: s.current})
	s.broadcastTeachers(Event{Type: EventHistory, Data: s.history})

	log.Info().
		Str("poll_id", s.current.ID.String()).
		Int("responses", len(s.current.Responses)).
		Msg("poll ended")
	return true
}

// Tick advances the countdown of the poll identified by pollID by one
// second. It returns true when the countdown should stop: the tick was
// stale (poll replaced or already ended) or the decrement reached zero and
// triggered the end transition.
func (s *Session) Tick(pollID uuid.UUID) bool {
	if s.current == nil || s.current.ID != pollID || s.current.Status != PollActive {
		log.Debug().Str("poll_id", pollID.String()).Msg("stale countdown tick ignored")
		return true
	}

	s.current.TimeLeftSec--
	s.broadcastAll(Event{Type: EventPollTimeUpdate, Data: s.current.TimeLeftSec})

	if s.current.TimeLeftSec <= 0 {
		s.EndPoll()
		return true
	}
	return false
}

// RemoveParticipant hard-deletes a participant. Unlike a disconnect the
// record is gone for good: a later rejoin with the old ID is a no-op.
func (s *Session) RemoveParticipant(participantID string) {
	p, ok := s.participants[participantID]
	if !ok {
		return
	}

	if p.client != nil {
		s.send(p.client, Event{Type: EventRemoved})
	}
	delete(s.participants, participantID)
	for i, id := range s.order {
		if id == participantID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	roster := s.Roster()
	s.broadcastTeachers(Event{Type: EventRoster, Data: roster})
	s.broadcastStudents(Event{Type: EventRoster, Data: roster})

	log.Info().Str("student_id", participantID).Str("name", p.Name).Msg("participant removed")
}

// SendChat appends a message to the chat log and broadcasts it to everyone,
// sender included. Chat has no poll precondition.
func (s *Session) SendChat(text, sender string, role Role) {
	msg := ChatMessage{
		ID:        uuid.New(),
		Text:      text,
		Sender:    sender,
		Role:      role,
		Timestamp: s.clock.Now(),
	}
	s.chat = append(s.chat, msg)
	s.broadcastAll(Event{Type: EventChatMessage, Data: msg})
}

// Roster returns all participants in join order.
func (s *Session) Roster() []*Participant {
	roster := make([]*Participant, 0, len(s.order))
	for _, id := range s.order {
		roster = append(roster, s.participants[id])
	}
	return roster
}

// Results aggregates the current poll's responses per declared option, in
// declared order. Only exact matches count toward a bucket; totals cover
// every registered participant regardless of connection state.
func (s *Session) Results() *Results {
	if s.current == nil {
		return nil
	}
	counts := make(map[string]int, len(s.current.Options))
	for _, opt := range s.current.Options {
		counts[opt] = 0
	}
	for _, answer := range s.current.Responses {
		if _, declared := counts[answer]; declared {
			counts[answer]++
		}
	}
	return &Results{
		Counts:         counts,
		TotalResponses: len(s.current.Responses),
		TotalStudents:  len(s.participants),
	}
}

// snapshot freezes the ended poll and every participant's outcome into an
// immutable history entry.
func (s *Session) snapshot() HistoryEntry {
	frozen := *s.current
	frozen.Options = append([]string(nil), s.current.Options...)
	frozen.Responses = make(map[string]string, len(s.current.Responses))
	for id, answer := range s.current.Responses {
		frozen.Responses[id] = answer
	}

	outcomes := make([]ParticipantOutcome, 0, len(s.order))
	for _, id := range s.order {
		p := s.participants[id]
		out := ParticipantOutcome{Name: p.Name, HasAnswered: p.HasAnswered}
		if p.Answer != nil {
			answer := *p.Answer
			out.Answer = &answer
		}
		outcomes = append(outcomes, out)
	}
	return HistoryEntry{Poll: frozen, Participants: outcomes}
}

func (s *Session) currentPollData() any {
	if s.current == nil {
		return nil
	}
	return s.current
}

func (s *Session) reject(c Client, err error) {
	s.send(c, Event{Type: EventCommandRejected, Data: RejectedPayload{Reason: err.Error()}})
}

func (s *Session) send(c Client, ev Event) {
	c.Send(ev)
}

func (s *Session) broadcastTeachers(ev Event) {
	for c := range s.teachers {
		c.Send(ev)
	}
}

func (s *Session) broadcastStudents(ev Event) {
	for c := range s.students {
		c.Send(ev)
	}
}

func (s *Session) broadcastAll(ev Event) {
	for c := range s.teachers {
		c.Send(ev)
	}
	for c := range s.students {
		if _, dup := s.teachers[c]; dup {
			continue
		}
		c.Send(ev)
	}
}
