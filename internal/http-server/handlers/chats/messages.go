package chats

import (
	"ChatRelay/entity"
	"ChatRelay/internal/lib/api/response"
	"ChatRelay/internal/lib/sl"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
)

func Messages(log *slog.Logger, handler Core) http.HandlerFunc {
	mod := sl.Module("http.handlers.chats")

	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")
		logger := log.With(
			mod,
			slog.String("user_id", userID),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		messages, err := handler.History(r.Context(), userID)
		if err != nil {
			logger.Error("get chat history", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to load messages"))
			return
		}
		if messages == nil {
			messages = []entity.Message{}
		}

		render.JSON(w, r, response.Ok(messages))
	}
}
