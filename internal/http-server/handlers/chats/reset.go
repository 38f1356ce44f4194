package chats

import (
	"ChatRelay/internal/lib/api/response"
	"ChatRelay/internal/lib/sl"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
)

// Reset deletes a user's history. With ?status=closed only closing markers
// are removed.
func Reset(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if handler == nil {
			log.Error("reset conversation not available")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("Reset conversation not available"))
			return
		}

		userID := chi.URLParam(r, "user_id")
		status := r.URL.Query().Get("status")
		logger := log.With(
			sl.Module("http.handlers.chats"),
			slog.String("user_id", userID),
			slog.String("status", status),
		)

		deleted, err := handler.ResetConversation(r.Context(), userID, status)
		if err != nil {
			logger.Error("reset conversation", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Reset failed"))
			return
		}

		render.JSON(w, r, response.Ok(map[string]int64{"deleted": deleted}))
	}
}
