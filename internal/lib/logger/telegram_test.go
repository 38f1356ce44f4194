package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

type recordingSender struct {
	messages []string
}

func (s *recordingSender) SendMessage(msg string) {
	s.messages = append(s.messages, msg)
}

func TestTelegramHandlerForwardsOnlyAboveLevel(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sender := &recordingSender{}

	log := SetupTelegramHandler(base, sender, slog.LevelError).With(slog.String("module", "core"))
	log.Info("routine event")
	log.Error("store failure", slog.String("user_id", "u1"))

	if len(sender.messages) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(sender.messages))
	}
	alert := sender.messages[0]
	for _, want := range []string{"ERROR: store failure", "module: core", "user_id: u1"} {
		if !strings.Contains(alert, want) {
			t.Errorf("Expected alert to contain %q, got %q", want, alert)
		}
	}

	if !strings.Contains(buf.String(), "routine event") {
		t.Errorf("Expected wrapped handler to receive info record")
	}
}

func TestSetupTelegramHandlerWithoutSender(t *testing.T) {
	base := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if got := SetupTelegramHandler(base, nil, slog.LevelError); got != base {
		t.Errorf("Expected logger to be returned unchanged")
	}
}
