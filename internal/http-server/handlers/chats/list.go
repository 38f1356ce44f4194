package chats

import (
	"ChatRelay/internal/lib/api/response"
	"ChatRelay/internal/lib/sl"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
)

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	mod := sl.Module("http.handlers.chats")

	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		summaries, err := handler.Summarize(r.Context())
		if err != nil {
			logger.Error("summarize chats", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to list chats"))
			return
		}

		logger.Debug("chats listed", slog.Int("count", len(summaries)))
		render.JSON(w, r, response.Ok(summaries))
	}
}
