package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/classpoll/backend/internal/session"
)

// wireEvent mirrors the outbound envelope as it appears on the wire.
type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	co := session.NewCoordinator(session.DefaultConfig(), clockwork.NewRealClock())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go co.Run(ctx)

	h := NewHandler(co, DefaultConfig())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, typ session.CommandType, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "data": payload}); err != nil {
		t.Fatalf("failed to send %s: %v", typ, err)
	}
}

// readEvent reads frames until one of the wanted type arrives.
func readEvent(t *testing.T, conn *websocket.Conn, want session.EventType) wireEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var ev wireEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("reading until %s: %v", want, err)
		}
		if ev.Type == string(want) {
			return ev
		}
	}
}

func TestGateway_StudentAttachFlow(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	sendCommand(t, conn, session.CmdStudentAttach, session.StudentAttachPayload{Name: "ada"})

	ev := readEvent(t, conn, session.EventAttachConfirmed)
	var confirmed session.AttachConfirmedPayload
	if err := json.Unmarshal(ev.Data, &confirmed); err != nil {
		t.Fatalf("bad attach-confirmed payload: %v", err)
	}
	if confirmed.StudentID == "" || confirmed.Name != "ada" {
		t.Errorf("attach-confirmed = %+v", confirmed)
	}

	ev = readEvent(t, conn, session.EventRoster)
	var roster []session.Participant
	if err := json.Unmarshal(ev.Data, &roster); err != nil {
		t.Fatalf("bad roster payload: %v", err)
	}
	if len(roster) != 1 || roster[0].Name != "ada" || !roster[0].Connected {
		t.Errorf("roster = %+v", roster)
	}
}

func TestGateway_PollLifecycle(t *testing.T) {
	srv := newTestServer(t)
	teacher := dial(t, srv)
	student := dial(t, srv)

	sendCommand(t, teacher, session.CmdTeacherAttach, nil)
	readEvent(t, teacher, session.EventChatLog) // attach replay complete

	sendCommand(t, student, session.CmdStudentAttach, session.StudentAttachPayload{Name: "ada"})
	ev := readEvent(t, student, session.EventAttachConfirmed)
	var confirmed session.AttachConfirmedPayload
	if err := json.Unmarshal(ev.Data, &confirmed); err != nil {
		t.Fatalf("bad attach-confirmed payload: %v", err)
	}

	sendCommand(t, teacher, session.CmdCreatePoll, session.CreatePollRequest{
		Question:        "Q1",
		Options:         []string{"A", "B"},
		DurationSeconds: 30,
		CorrectAnswer:   "A",
	})
	readEvent(t, teacher, session.EventCurrentPoll)
	readEvent(t, student, session.EventCurrentPoll)

	sendCommand(t, student, session.CmdSubmitAnswer, session.SubmitAnswerPayload{
		ParticipantID: confirmed.StudentID,
		Answer:        "A",
	})

	ev = readEvent(t, teacher, session.EventPollResults)
	var results session.Results
	if err := json.Unmarshal(ev.Data, &results); err != nil {
		t.Fatalf("bad poll-results payload: %v", err)
	}
	if results.Counts["A"] != 1 || results.TotalResponses != 1 || results.TotalStudents != 1 {
		t.Errorf("results = %+v", results)
	}

	// The sole student answered, so the poll auto-ends. Grading is pushed to
	// the student just before the poll-ended broadcast.
	ev = readEvent(t, student, session.EventStudentResult)
	var grade session.StudentResultPayload
	if err := json.Unmarshal(ev.Data, &grade); err != nil {
		t.Fatalf("bad per-student-result payload: %v", err)
	}
	if !grade.IsCorrect || grade.SubmittedAnswer != "A" {
		t.Errorf("grade = %+v", grade)
	}
	readEvent(t, student, session.EventPollEnded)
	readEvent(t, teacher, session.EventPollEnded)
	readEvent(t, teacher, session.EventHistory)

	sendCommand(t, student, session.CmdSendMessage, session.SendMessagePayload{
		Text:       "done!",
		SenderName: "ada",
		SenderRole: "student",
	})
	ev = readEvent(t, teacher, session.EventChatMessage)
	var msg session.ChatMessage
	if err := json.Unmarshal(ev.Data, &msg); err != nil {
		t.Fatalf("bad chat-message payload: %v", err)
	}
	if msg.Text != "done!" || msg.Role != session.RoleStudent {
		t.Errorf("chat-message = %+v", msg)
	}
}

func TestGateway_MalformedFrameDoesNotKillConnection(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json at all")); err != nil {
		t.Fatalf("failed to send garbage: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"type": "no-such-command"}); err != nil {
		t.Fatalf("failed to send unknown command: %v", err)
	}

	sendCommand(t, conn, session.CmdStudentAttach, session.StudentAttachPayload{Name: "ada"})
	readEvent(t, conn, session.EventAttachConfirmed)
}

func TestGateway_StatsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	dial(t, srv)

	// Registration happens just after the upgrade handshake; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(srv.URL + "/ws/stats")
		if err != nil {
			t.Fatalf("stats request failed: %v", err)
		}
		var stats struct {
			Connections int `json:"connections"`
		}
		err = json.NewDecoder(resp.Body).Decode(&stats)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("bad stats body: %v", err)
		}
		if stats.Connections == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("connections = %d, want 1", stats.Connections)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGateway_DisconnectPreservesParticipant(t *testing.T) {
	srv := newTestServer(t)
	observer := dial(t, srv)
	student := dial(t, srv)

	sendCommand(t, observer, session.CmdTeacherAttach, nil)
	readEvent(t, observer, session.EventChatLog)

	sendCommand(t, student, session.CmdStudentAttach, session.StudentAttachPayload{Name: "ada"})
	readEvent(t, student, session.EventAttachConfirmed)
	readEvent(t, observer, session.EventParticipantJoined)

	student.Close()

	// The record must survive the drop; poll the roster via a fresh teacher
	// attach until the disconnect has been processed.
	deadline := time.Now().Add(2 * time.Second)
	for {
		late := dial(t, srv)
		sendCommand(t, late, session.CmdTeacherAttach, nil)
		ev := readEvent(t, late, session.EventRoster)
		var roster []session.Participant
		if err := json.Unmarshal(ev.Data, &roster); err != nil {
			t.Fatalf("bad roster payload: %v", err)
		}
		late.Close()
		if len(roster) != 1 {
			t.Fatalf("roster = %+v, want the dropped student retained", roster)
		}
		if !roster[0].Connected {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("disconnect never cleared the connection handle")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
