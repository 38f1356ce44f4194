package chats

import (
	"ChatRelay/internal/lib/api/cont"
	"ChatRelay/internal/lib/api/response"
	"ChatRelay/internal/lib/sl"
	"encoding/json"
	"errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"io"
	"log/slog"
	"net/http"
)

type closeRequest struct {
	AgentUsername string `json:"agentUsername"`
}

// Close closes a conversation on behalf of the authenticated agent, or of
// the agent named in the body.
func Close(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")
		logger := log.With(
			sl.Module("http.handlers.chats"),
			slog.String("user_id", userID),
		)

		var req closeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			logger.Warn("decode close request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request body"))
			return
		}

		agent := req.AgentUsername
		if agent == "" {
			if user := cont.GetUser(r.Context()); user != nil {
				agent = user.Username
			}
		}

		if err := handler.CloseChat(r.Context(), userID, agent); err != nil {
			logger.Error("close chat", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Close failed"))
			return
		}

		logger.With(slog.String("agent", agent)).Info("chat closed via api")
		render.JSON(w, r, response.Ok("Chat closed"))
	}
}
