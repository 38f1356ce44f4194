package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ChatRelay/entity"
	"ChatRelay/internal/lib/sl"
	"ChatRelay/internal/registry"
	"ChatRelay/internal/ws"
	"ChatRelay/pkg/metrics"
)

var (
	ErrMalformedEvent = errors.New("malformed event")
	ErrUnknownEvent   = errors.New("unknown event")
	ErrStoreFailure   = errors.New("store failure")
)

const inboxSize = 1024

// HistoryStore is the durable, ordered per-user message log.
type HistoryStore interface {
	Append(ctx context.Context, msg *entity.Message) error
	Find(ctx context.Context, userID string) ([]entity.Message, error)
	// DeleteWhere removes matching messages of userID, or of every user when
	// userID is empty.
	DeleteWhere(ctx context.Context, userID string, filter entity.MessageFilter) (int64, error)
	RenameUser(ctx context.Context, userID, displayName string) error
	Digests(ctx context.Context) ([]entity.ChatDigest, error)
}

// ProfileStore keeps display-name overrides across sessions.
type ProfileStore interface {
	DisplayName(ctx context.Context, userID string) (string, error)
	SetDisplayName(ctx context.Context, userID, displayName string) error
}

// PerformanceStore keeps per-agent daily closure counters.
type PerformanceStore interface {
	IncrementClosures(ctx context.Context, agent, day string) (int64, error)
	Performance(ctx context.Context, day string) ([]entity.PerformanceCounter, error)
}

type SessionRegistry interface {
	Upsert(userID, displayName string, conn ws.Conn) ws.Conn
	DisplayName(userID string) (string, bool)
	Rename(userID, displayName string) bool
	MarkDisconnected(userID string)
	MarkDisconnectedByConnection(connID string) (string, bool)
	LiveConnection(userID string) ws.Conn
}

type SubscriptionTable interface {
	Subscribe(conn ws.Conn, userID string)
	UnsubscribeAll(connID string)
	SubscribersOf(userID string) []ws.Conn
}

type BroadcastGroup interface {
	Join(conn ws.Conn)
	Leave(connID string)
	Members() []ws.Conn
}

type Responder interface {
	Reply(msg *entity.Message) (string, bool)
}

type Notifier interface {
	NotifyNewChat(userID, displayName string)
}

// Core is the session and subscription router. All mutations run on the
// goroutine executing Run.
type Core struct {
	history  HistoryStore
	profiles ProfileStore
	perf     PerformanceStore
	sessions SessionRegistry
	subs     SubscriptionTable
	admins   BroadcastGroup
	bot      Responder
	notifier Notifier
	inbox    chan func(context.Context)
	now      func() time.Time
	location *time.Location
	log      *slog.Logger
}

func New(log *slog.Logger) *Core {
	return &Core{
		sessions: registry.NewSessions(),
		subs:     registry.NewSubscriptions(),
		admins:   registry.NewGroup(),
		inbox:    make(chan func(context.Context), inboxSize),
		now:      time.Now,
		location: time.UTC,
		log:      log.With(sl.Module("core")),
	}
}

func (c *Core) SetHistoryStore(history HistoryStore) {
	c.history = history
}

func (c *Core) SetProfileStore(profiles ProfileStore) {
	c.profiles = profiles
}

func (c *Core) SetPerformanceStore(perf PerformanceStore) {
	c.perf = perf
}

func (c *Core) SetSessionRegistry(sessions SessionRegistry) {
	c.sessions = sessions
}

func (c *Core) SetSubscriptionTable(subs SubscriptionTable) {
	c.subs = subs
}

func (c *Core) SetBroadcastGroup(admins BroadcastGroup) {
	c.admins = admins
}

func (c *Core) SetResponder(bot Responder) {
	c.bot = bot
}

func (c *Core) SetNotifier(notifier Notifier) {
	c.notifier = notifier
}

func (c *Core) SetClock(now func() time.Time) {
	c.now = now
}

// SetLocation sets the timezone that decides performance counter days.
func (c *Core) SetLocation(location *time.Location) {
	if location != nil {
		c.location = location
	}
}

func (c *Core) storeFailed(op string, err error, attrs ...any) {
	metrics.RecordStoreFailure(op)
	c.log.With(attrs...).With(slog.String("op", op)).Error("store failure", sl.Err(err))
}

func (c *Core) today() string {
	return c.now().In(c.location).Format(entity.DayLayout)
}
