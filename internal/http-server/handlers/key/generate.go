package key

import (
	"ChatRelay/internal/lib/api/cont"
	"ChatRelay/internal/lib/api/response"
	"ChatRelay/internal/lib/sl"
	"ChatRelay/internal/lib/validate"
	"context"
	"encoding/json"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
)

type Core interface {
	GenerateApiKey(ctx context.Context, username string) (string, error)
}

type GenerateRequest struct {
	Username string `json:"username" validate:"required"`
}

func Generate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.key"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if user := cont.GetUser(r.Context()); user == nil || !user.IsMaster() {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Error("Only the admin key can issue keys"))
			return
		}

		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request body"))
			return
		}
		if err := validate.Struct(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Username is required"))
			return
		}
		logger = logger.With(slog.String("username", req.Username))

		k, err := handler.GenerateApiKey(r.Context(), req.Username)
		if err != nil {
			logger.Error("generate api key", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to generate key"))
			return
		}

		render.JSON(w, r, response.Ok(map[string]string{"username": req.Username, "key": k}))
	}
}
