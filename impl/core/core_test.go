package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"ChatRelay/bot"
	"ChatRelay/entity"
	"ChatRelay/internal/ws"
)

type memoryHistory struct {
	mu        sync.Mutex
	messages  []entity.Message
	appendErr error
}

func (m *memoryHistory) Append(_ context.Context, msg *entity.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memoryHistory) Find(_ context.Context, userID string) ([]entity.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Message
	for _, msg := range m.messages {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memoryHistory) DeleteWhere(_ context.Context, userID string, filter entity.MessageFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.messages[:0]
	var n int64
	for i := range m.messages {
		msg := m.messages[i]
		if (userID == "" || msg.UserID == userID) && filter.Match(&msg) {
			n++
			continue
		}
		kept = append(kept, msg)
	}
	m.messages = kept
	return n, nil
}

func (m *memoryHistory) RenameUser(_ context.Context, userID, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].UserID == userID {
			m.messages[i].DisplayName = displayName
		}
	}
	return nil
}

func (m *memoryHistory) Digests(_ context.Context) ([]entity.ChatDigest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var order []string
	byUser := make(map[string][]entity.Message)
	for _, msg := range m.messages {
		if _, ok := byUser[msg.UserID]; !ok {
			order = append(order, msg.UserID)
		}
		byUser[msg.UserID] = append(byUser[msg.UserID], msg)
	}
	digests := make([]entity.ChatDigest, 0, len(order))
	for _, userID := range order {
		digests = append(digests, entity.Digest(userID, byUser[userID]))
	}
	return digests, nil
}

type memoryProfiles map[string]string

func (p memoryProfiles) DisplayName(_ context.Context, userID string) (string, error) {
	return p[userID], nil
}

func (p memoryProfiles) SetDisplayName(_ context.Context, userID, displayName string) error {
	p[userID] = displayName
	return nil
}

type memoryPerformance struct {
	counters map[string]int64
	err      error
}

func (p *memoryPerformance) IncrementClosures(_ context.Context, agent, day string) (int64, error) {
	if p.err != nil {
		return 0, p.err
	}
	p.counters[day+"/"+agent]++
	return p.counters[day+"/"+agent], nil
}

func (p *memoryPerformance) Performance(_ context.Context, day string) ([]entity.PerformanceCounter, error) {
	var out []entity.PerformanceCounter
	for key, n := range p.counters {
		if len(key) > len(day) && key[:len(day)] == day {
			out = append(out, entity.PerformanceCounter{Agent: key[len(day)+1:], Day: day, Count: n})
		}
	}
	return out, nil
}

type recordingConn struct {
	id     string
	mu     sync.Mutex
	events []*ws.Event
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Push(ev *ws.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

// messages returns the pushed messages of the given event type.
func (c *recordingConn) messages(eventType string) []*entity.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*entity.Message
	for _, ev := range c.events {
		if msg, ok := ev.Data.(*entity.Message); ok && ev.Type == eventType {
			out = append(out, msg)
		}
	}
	return out
}

func (c *recordingConn) count(eventType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

type testRouter struct {
	*Core
	history *memoryHistory
	perf    *memoryPerformance
}

func newTestRouter(t *testing.T) *testRouter {
	t.Helper()
	history := &memoryHistory{}
	perf := &memoryPerformance{counters: make(map[string]int64)}

	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.SetHistoryStore(history)
	c.SetProfileStore(memoryProfiles{})
	c.SetPerformanceStore(perf)
	c.SetResponder(bot.DefaultResponder())

	clock := time.Date(2024, 5, 4, 10, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})

	return &testRouter{Core: c, history: history, perf: perf}
}

func (r *testRouter) send(t *testing.T, conn ws.Conn, eventType string, payload interface{}) error {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return r.Handle(context.Background(), ws.Inbound{Conn: conn, Type: eventType, Data: data})
}

func (r *testRouter) mustSend(t *testing.T, conn ws.Conn, eventType string, payload interface{}) {
	t.Helper()
	if err := r.send(t, conn, eventType, payload); err != nil {
		t.Fatalf("%s: %v", eventType, err)
	}
}

func (r *testRouter) join(t *testing.T, conn ws.Conn, userID, name string) {
	t.Helper()
	r.mustSend(t, conn, ws.EventUserJoined, map[string]string{"userId": userID, "username": name})
}

func (r *testRouter) say(t *testing.T, conn ws.Conn, userID, text string) {
	t.Helper()
	r.mustSend(t, conn, ws.EventChatMessage, map[string]string{"userId": userID, "sender": "User", "message": text})
}

func (r *testRouter) stored(t *testing.T, userID string) []entity.Message {
	t.Helper()
	messages, err := r.history.Find(context.Background(), userID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	return messages
}

func (r *testRouter) summary(t *testing.T, userID string) entity.ConversationSummary {
	t.Helper()
	summaries, err := r.Summarize(context.Background())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	for _, s := range summaries {
		if s.UserID == userID {
			return s
		}
	}
	t.Fatalf("no summary for %s", userID)
	return entity.ConversationSummary{}
}

func countMarkers(messages []entity.Message, marker entity.Marker) int {
	n := 0
	for _, m := range messages {
		if m.Marker == marker {
			n++
		}
	}
	return n
}

func withoutSystem(messages []entity.Message) []entity.Message {
	var out []entity.Message
	for _, m := range messages {
		if m.Sender != entity.SenderSystem {
			out = append(out, m)
		}
	}
	return out
}

func TestHistoryReplayKeepsSubmissionOrder(t *testing.T) {
	r := newTestRouter(t)
	user := &recordingConn{id: "user"}
	agent := &recordingConn{id: "agent"}

	r.join(t, user, "u1", "Ana")
	texts := []string{"hola", "tengo una duda", "sigo aca", "gracias", "chau"}
	for _, text := range texts {
		r.say(t, user, "u1", text)
	}

	r.mustSend(t, agent, ws.EventRequestHistory, map[string]string{"userId": "u1"})

	if agent.count(ws.PushChatHistory) != 1 {
		t.Fatalf("Expected one history replay, got %d", agent.count(ws.PushChatHistory))
	}
	var replay entity.History
	for _, ev := range agent.events {
		if ev.Type == ws.PushChatHistory {
			replay = ev.Data.(entity.History)
		}
	}

	got := withoutSystem(replay.Messages)
	if len(got) != len(texts) {
		t.Fatalf("Expected %d user messages, got %d", len(texts), len(got))
	}
	for i, text := range texts {
		if got[i].Text != text {
			t.Errorf("Message %d: expected %q, got %q", i, text, got[i].Text)
		}
	}
	if last := replay.Messages[len(replay.Messages)-1]; last.Marker != entity.MarkerOpened {
		t.Errorf("Expected replay to end with opened marker, got %q", last.Marker)
	}
}

func TestDepositAppendsOneBotReply(t *testing.T) {
	r := newTestRouter(t)
	user := &recordingConn{id: "user"}

	r.join(t, user, "u1", "Ana")
	r.say(t, user, "u1", "Cargar Fichas")

	messages := withoutSystem(r.stored(t, "u1"))
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	if messages[0].Sender != entity.SenderEndUser || messages[0].Text != "Cargar Fichas" {
		t.Errorf("Expected user message first, got %+v", messages[0])
	}
	if messages[1].Sender != entity.SenderBot || messages[1].Text != bot.DepositReply {
		t.Errorf("Expected deposit reply second, got %+v", messages[1])
	}

	pushed := user.messages(ws.PushChatMessage)
	if len(pushed) != 2 || pushed[1].Text != bot.DepositReply {
		t.Errorf("Expected user to receive message and reply, got %d pushes", len(pushed))
	}
}

func TestImageGetsAcknowledged(t *testing.T) {
	r := newTestRouter(t)
	user := &recordingConn{id: "user"}

	r.join(t, user, "u1", "Ana")
	r.mustSend(t, user, ws.EventImage, map[string]string{"userId": "u1", "sender": "User", "image": "data:image/png;base64,AAA"})

	if n := len(user.messages(ws.PushImage)); n != 1 {
		t.Errorf("Expected one image push, got %d", n)
	}
	replies := user.messages(ws.PushChatMessage)
	if len(replies) != 1 || replies[0].Text != bot.ImageAckReply {
		t.Errorf("Expected image acknowledgment, got %v", replies)
	}
}

func TestCloseThenUserMessageReopens(t *testing.T) {
	r := newTestRouter(t)
	user := &recordingConn{id: "user"}
	agent := &recordingConn{id: "agent"}

	r.join(t, user, "u1", "Ana")
	r.say(t, user, "u1", "hola")
	r.mustSend(t, agent, ws.EventRequestHistory, map[string]string{"userId": "u1"})

	r.mustSend(t, agent, ws.EventCloseChat, map[string]string{"userId": "u1", "agentUsername": "maria"})

	if !r.summary(t, "u1").IsClosed {
		t.Fatalf("Expected chat to be closed")
	}
	if user.count(ws.PushChatClosed) != 1 {
		t.Errorf("Expected user to be notified of closure")
	}
	if r.summary(t, "u1").Online {
		t.Errorf("Expected session connection to be cleared on close")
	}

	rejoined := &recordingConn{id: "user-2"}
	r.join(t, rejoined, "u1", "Ana")
	r.say(t, rejoined, "u1", "volvi")

	if r.summary(t, "u1").IsClosed {
		t.Errorf("Expected chat to be open again")
	}

	messages := r.stored(t, "u1")
	if n := countMarkers(messages, entity.MarkerReopened); n != 1 {
		t.Fatalf("Expected exactly one reopened marker, got %d", n)
	}
	last := messages[len(messages)-1]
	prev := messages[len(messages)-2]
	if prev.Marker != entity.MarkerReopened || last.Text != "volvi" {
		t.Errorf("Expected reopened marker right before the message, got %q then %q", prev.Marker, last.Text)
	}

	for _, msg := range rejoined.messages(ws.PushChatMessage) {
		if msg.Marker == entity.MarkerReopened {
			t.Errorf("Reopened marker must not be pushed to the end-user")
		}
	}
	seen := false
	for _, msg := range agent.messages(ws.PushAdminMessage) {
		if msg.Marker == entity.MarkerReopened {
			seen = true
		}
	}
	if !seen {
		t.Errorf("Expected subscribed agent to receive the reopened marker")
	}
}

func TestClosingTwiceKeepsOneActiveMarker(t *testing.T) {
	r := newTestRouter(t)
	user := &recordingConn{id: "user"}

	r.join(t, user, "u1", "Ana")
	r.Close(context.Background(), "u1", "maria")
	r.Close(context.Background(), "u1", "juan")

	if n := countMarkers(r.stored(t, "u1"), entity.MarkerClosed); n != 1 {
		t.Errorf("Expected one closed marker, got %d", n)
	}

	day := "2024-05-04"
	if got := r.perf.counters[day+"/maria"]; got != 1 {
		t.Errorf("Expected maria to have 1 closure, got %d", got)
	}
	if got := r.perf.counters[day+"/juan"]; got != 1 {
		t.Errorf("Expected juan to have 1 closure, got %d", got)
	}

	r.Close(context.Background(), "u1", "maria")
	if got := r.perf.counters[day+"/maria"]; got != 2 {
		t.Errorf("Expected closures to add up across calls, got %d", got)
	}
}

func TestCloseSurvivesCounterFailure(t *testing.T) {
	r := newTestRouter(t)
	r.perf.err = errors.New("redis down")
	user := &recordingConn{id: "user"}

	r.join(t, user, "u1", "Ana")
	r.Close(context.Background(), "u1", "maria")

	if !r.summary(t, "u1").IsClosed {
		t.Errorf("Expected chat to be closed despite counter failure")
	}
	if user.count(ws.PushChatClosed) != 1 {
		t.Errorf("Expected closure notice despite counter failure")
	}
}

func TestFanOutReachesEverySubscriber(t *testing.T) {
	r := newTestRouter(t)
	user := &recordingConn{id: "user"}
	first := &recordingConn{id: "agent-1"}
	second := &recordingConn{id: "agent-2"}
	other := &recordingConn{id: "agent-3"}

	r.join(t, user, "u1", "Ana")
	r.join(t, &recordingConn{id: "user-b"}, "u2", "Beto")
	r.mustSend(t, first, ws.EventRequestHistory, map[string]string{"userId": "u1"})
	r.mustSend(t, second, ws.EventRequestHistory, map[string]string{"userId": "u1"})
	r.mustSend(t, other, ws.EventRequestHistory, map[string]string{"userId": "u2"})

	r.say(t, user, "u1", "hola")
	r.mustSend(t, first, ws.EventAgentMessage, map[string]string{"userId": "u1", "message": "en que te ayudo?"})

	for _, conn := range []*recordingConn{first, second} {
		var texts []string
		for _, msg := range conn.messages(ws.PushAdminMessage) {
			if msg.Sender != entity.SenderSystem {
				texts = append(texts, msg.Text)
			}
		}
		if len(texts) != 2 || texts[0] != "hola" || texts[1] != "en que te ayudo?" {
			t.Errorf("%s: expected both messages, got %v", conn.id, texts)
		}
	}
	for _, msg := range other.messages(ws.PushAdminMessage) {
		if msg.UserID == "u1" {
			t.Errorf("Agent watching u2 must not receive u1 messages")
		}
	}

	agentReplies := user.messages(ws.PushChatMessage)
	if len(agentReplies) != 2 || agentReplies[1].Sender != entity.SenderAgent {
		t.Errorf("Expected user to receive the agent reply, got %v", agentReplies)
	}
}

func TestOpenedMarkerSkipsRequester(t *testing.T) {
	r := newTestRouter(t)
	user := &recordingConn{id: "user"}
	first := &recordingConn{id: "agent-1"}
	second := &recordingConn{id: "agent-2"}

	r.join(t, user, "u1", "Ana")
	r.mustSend(t, first, ws.EventRequestHistory, map[string]string{"userId": "u1"})
	r.say(t, user, "u1", "hola")
	r.mustSend(t, second, ws.EventRequestHistory, map[string]string{"userId": "u1"})

	if n := len(second.messages(ws.PushAdminMessage)); n != 0 {
		t.Errorf("Expected requester to get no live marker, got %d", n)
	}
	opened := 0
	for _, msg := range first.messages(ws.PushAdminMessage) {
		if msg.Marker == entity.MarkerOpened {
			opened++
		}
	}
	if opened != 1 {
		t.Errorf("Expected first agent to see the second opened marker, got %d", opened)
	}

	// A repeated request right after does not stack markers.
	r.mustSend(t, second, ws.EventRequestHistory, map[string]string{"userId": "u1"})
	if n := countMarkers(r.stored(t, "u1"), entity.MarkerOpened); n != 2 {
		t.Errorf("Expected 2 opened markers, got %d", n)
	}
}

func TestRejoinKeepsSingleSession(t *testing.T) {
	r := newTestRouter(t)
	first := &recordingConn{id: "user-1"}
	second := &recordingConn{id: "user-2"}

	r.join(t, first, "u1", "Ana")
	r.say(t, first, "u1", "antes")
	r.join(t, second, "u1", "Ana")

	messages := r.stored(t, "u1")
	if n := countMarkers(messages, entity.MarkerStarted); n != 1 {
		t.Errorf("Expected one started marker, got %d", n)
	}

	r.say(t, second, "u1", "despues")
	if n := len(first.messages(ws.PushChatMessage)); n != 1 {
		t.Errorf("Expected superseded connection to get nothing new, got %d", n)
	}
	if n := len(second.messages(ws.PushChatMessage)); n != 1 {
		t.Errorf("Expected live connection to get the new message, got %d", n)
	}

	agent := &recordingConn{id: "agent"}
	r.mustSend(t, agent, ws.EventRequestHistory, map[string]string{"userId": "u1"})
	history, err := r.History(context.Background(), "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	texts := withoutSystem(history)
	if len(texts) != 2 || texts[0].Text != "antes" || texts[1].Text != "despues" {
		t.Errorf("Expected history across reconnect, got %v", texts)
	}
}

func TestJoinMintsIdentifier(t *testing.T) {
	r := newTestRouter(t)
	user := &recordingConn{id: "user"}

	userID, name := r.Join(context.Background(), user, "", "Ana")
	if userID == "" || name != "Ana" {
		t.Fatalf("Expected minted identifier, got %q %q", userID, name)
	}
	if user.count(ws.PushSession) != 1 {
		t.Errorf("Expected session info push")
	}
	if n := countMarkers(r.stored(t, userID), entity.MarkerStarted); n != 1 {
		t.Errorf("Expected started marker, got %d", n)
	}
}

func TestJoinUsesPersistedName(t *testing.T) {
	r := newTestRouter(t)
	profiles := memoryProfiles{"u1": "Ana Maria"}
	r.SetProfileStore(profiles)

	_, name := r.Join(context.Background(), &recordingConn{id: "user"}, "u1", "anon")
	if name != "Ana Maria" {
		t.Errorf("Expected persisted name, got %q", name)
	}
}

func TestRenamePropagates(t *testing.T) {
	r := newTestRouter(t)
	profiles := memoryProfiles{}
	r.SetProfileStore(profiles)
	user := &recordingConn{id: "user"}

	r.join(t, user, "u1", "Ana")
	r.say(t, user, "u1", "hola")
	r.mustSend(t, &recordingConn{id: "agent"}, ws.EventRenameUser, map[string]string{"userId": "u1", "newUsername": "Ana P"})

	for _, msg := range r.stored(t, "u1") {
		if msg.DisplayName != "Ana P" {
			t.Errorf("Expected stored name to be updated, got %q", msg.DisplayName)
		}
	}
	if profiles["u1"] != "Ana P" {
		t.Errorf("Expected override to be persisted, got %q", profiles["u1"])
	}
	if user.count(ws.PushNameUpdated) != 1 {
		t.Errorf("Expected user to be told the new name")
	}
	if got := r.summary(t, "u1").DisplayName; got != "Ana P" {
		t.Errorf("Expected summary to use new name, got %q", got)
	}
}

func TestWithdrawalExample(t *testing.T) {
	r := newTestRouter(t)
	user := &recordingConn{id: "user"}

	r.join(t, &recordingConn{id: "user-b"}, "userB", "Beto")
	r.say(t, nil, "userB", "hola")
	r.join(t, user, "userA", "Ana")
	r.say(t, user, "userA", "Retirar")

	messages := withoutSystem(r.stored(t, "userA"))
	if len(messages) != 2 {
		t.Fatalf("Expected 2 stored messages, got %d", len(messages))
	}
	if messages[1].Sender != entity.SenderBot || messages[1].Text != bot.WithdrawalReply {
		t.Errorf("Expected withdrawal template, got %+v", messages[1])
	}

	summaries, err := r.Summarize(context.Background())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(summaries))
	}
	top := summaries[0]
	if top.UserID != "userA" || top.IsClosed || !top.Online {
		t.Errorf("Expected open userA on top, got %+v", top)
	}
	if top.LastMessage != bot.WithdrawalReply {
		t.Errorf("Expected last message to be the bot reply, got %q", top.LastMessage)
	}
}

func TestAdminConnectReceivesChatList(t *testing.T) {
	r := newTestRouter(t)
	admin := &recordingConn{id: "admin"}

	r.join(t, &recordingConn{id: "user"}, "u1", "Ana")
	r.mustSend(t, admin, ws.EventAdminConnected, nil)
	if admin.count(ws.PushUserList) != 1 {
		t.Fatalf("Expected chat list on connect, got %d", admin.count(ws.PushUserList))
	}

	r.say(t, nil, "u1", "hola")
	if admin.count(ws.PushUserList) != 2 {
		t.Errorf("Expected chat list refresh, got %d", admin.count(ws.PushUserList))
	}

	r.mustSend(t, admin, ws.EventDisconnect, nil)
	r.say(t, nil, "u1", "otra")
	if admin.count(ws.PushUserList) != 2 {
		t.Errorf("Expected no refresh after disconnect, got %d", admin.count(ws.PushUserList))
	}
}

func TestDisconnectDropsSubscription(t *testing.T) {
	r := newTestRouter(t)
	user := &recordingConn{id: "user"}
	agent := &recordingConn{id: "agent"}

	r.join(t, user, "u1", "Ana")
	r.mustSend(t, agent, ws.EventRequestHistory, map[string]string{"userId": "u1"})
	r.mustSend(t, agent, ws.EventDisconnect, nil)
	r.mustSend(t, user, ws.EventDisconnect, nil)

	if r.summary(t, "u1").Online {
		t.Errorf("Expected user to be offline")
	}

	r.say(t, nil, "u1", "hola")
	if n := len(agent.messages(ws.PushAdminMessage)); n != 0 {
		t.Errorf("Expected no pushes after disconnect, got %d", n)
	}
}

func TestMalformedAndUnknownEvents(t *testing.T) {
	r := newTestRouter(t)
	user := &recordingConn{id: "user"}

	err := r.send(t, user, ws.EventChatMessage, map[string]string{"userId": "u1", "sender": "User"})
	if !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("Expected malformed event, got %v", err)
	}
	err = r.send(t, user, ws.EventUserJoined, map[string]string{"userId": "u1"})
	if !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("Expected malformed join, got %v", err)
	}
	err = r.send(t, user, "typing", map[string]string{"userId": "u1"})
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected unknown event, got %v", err)
	}
	if n := len(r.stored(t, "u1")); n != 0 {
		t.Errorf("Expected nothing stored, got %d", n)
	}
}

func TestStoreFailureStillDelivers(t *testing.T) {
	r := newTestRouter(t)
	user := &recordingConn{id: "user"}

	r.join(t, user, "u1", "Ana")
	r.history.appendErr = errors.New("disk full")
	r.say(t, user, "u1", "hola")

	if n := len(user.messages(ws.PushChatMessage)); n != 1 {
		t.Errorf("Expected message to be delivered despite store failure, got %d", n)
	}
}

func TestCloseFallsBackToConnectionAgent(t *testing.T) {
	r := newTestRouter(t)
	r.join(t, &recordingConn{id: "user"}, "u1", "Ana")

	data, _ := json.Marshal(map[string]string{"userId": "u1"})
	err := r.Handle(context.Background(), ws.Inbound{
		Conn:  &recordingConn{id: "agent"},
		Agent: "maria",
		Type:  ws.EventCloseChat,
		Data:  data,
	})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := r.perf.counters["2024-05-04/maria"]; got != 1 {
		t.Errorf("Expected closure counted for connection agent, got %d", got)
	}
}

func TestRouterLoop(t *testing.T) {
	r := newTestRouter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	user := &recordingConn{id: "user"}
	data, _ := json.Marshal(map[string]string{"userId": "u1", "username": "Ana"})
	r.Submit(ws.Inbound{Conn: user, Type: ws.EventUserJoined, Data: data})

	if err := r.CloseChat(ctx, "u1", "maria"); err != nil {
		t.Fatalf("close chat: %v", err)
	}
	if user.count(ws.PushChatClosed) != 1 {
		t.Errorf("Expected submitted join to run before the close")
	}

	deleted, err := r.ResetConversation(ctx, "u1", entity.StatusClosed)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected only the closed marker to be deleted, got %d", deleted)
	}

	counters, err := r.Performance(ctx, "2024-05-04")
	if err != nil {
		t.Fatalf("performance: %v", err)
	}
	if len(counters) != 1 || counters[0].Agent != "maria" || counters[0].Count != 1 {
		t.Errorf("Expected one counter for maria, got %v", counters)
	}
	if _, err := r.Performance(ctx, "yesterday"); err == nil {
		t.Errorf("Expected invalid day to be rejected")
	}
}

func TestPurgeDeletesOldMessages(t *testing.T) {
	r := newTestRouter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	old := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	_ = r.history.Append(ctx, &entity.Message{UserID: "u1", Sender: entity.SenderEndUser, Text: "viejo", CreatedAt: old})
	_ = r.history.Append(ctx, &entity.Message{UserID: "u1", Sender: entity.SenderEndUser, Text: "nuevo", CreatedAt: old.AddDate(0, 1, 0)})

	r.purge(ctx, 7)

	messages := r.stored(t, "u1")
	if len(messages) != 1 || messages[0].Text != "nuevo" {
		t.Errorf("Expected only recent message to remain, got %v", messages)
	}
}

type blockingNotifier struct {
	release chan struct{}
}

func (n *blockingNotifier) NotifyNewChat(_, _ string) {
	<-n.release
}

func TestSlowNotifierDoesNotStallRouter(t *testing.T) {
	r := newTestRouter(t)
	notifier := &blockingNotifier{release: make(chan struct{})}
	defer close(notifier.release)
	r.SetNotifier(notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	known := &recordingConn{id: "known"}
	r.join(t, known, "u1", "Ana")
	go r.Run(ctx)

	fresh := &recordingConn{id: "fresh"}
	data, _ := json.Marshal(map[string]string{"userId": "u2", "username": "Luis"})
	r.Submit(ws.Inbound{Conn: fresh, Type: ws.EventUserJoined, Data: data})

	data, _ = json.Marshal(map[string]string{"userId": "u1", "sender": "User", "message": "hola"})
	r.Submit(ws.Inbound{Conn: known, Type: ws.EventChatMessage, Data: data})

	deadline := time.Now().Add(time.Second)
	for len(known.messages(ws.PushChatMessage)) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected message of another user to be routed while the notifier blocks")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestUnknownChatGetsNoMarkers(t *testing.T) {
	r := newTestRouter(t)
	agent := &recordingConn{id: "agent"}

	r.mustSend(t, agent, ws.EventRequestHistory, map[string]string{"userId": "ghost"})
	r.mustSend(t, agent, ws.EventCloseChat, map[string]string{"userId": "ghost", "agentUsername": "maria"})

	if messages := r.stored(t, "ghost"); len(messages) != 0 {
		t.Errorf("Expected no stored markers for an unknown chat, got %v", messages)
	}
	if agent.count(ws.PushChatHistory) != 1 {
		t.Errorf("Expected an empty history reply")
	}
	if got := r.perf.counters["2024-05-04/maria"]; got != 0 {
		t.Errorf("Expected no closure counted for an unknown chat, got %d", got)
	}
	summaries, err := r.Summarize(context.Background())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("Expected no chat list row for an unknown chat, got %v", summaries)
	}
}
