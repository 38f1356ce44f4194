package performance

import (
	"ChatRelay/entity"
	"ChatRelay/internal/lib/api/response"
	"ChatRelay/internal/lib/sl"
	"context"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
	"time"
)

type Core interface {
	Performance(ctx context.Context, day string) ([]entity.PerformanceCounter, error)
}

// Get returns per-agent closure counters for ?day=YYYY-MM-DD, today by default.
func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day := r.URL.Query().Get("day")
		if day != "" {
			if _, err := time.Parse(entity.DayLayout, day); err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("Invalid day, expected YYYY-MM-DD"))
				return
			}
		}

		counters, err := handler.Performance(r.Context(), day)
		if err != nil {
			log.With(
				sl.Module("http.handlers.performance"),
				slog.String("day", day),
			).Error("get performance", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to load performance"))
			return
		}

		render.JSON(w, r, response.Ok(counters))
	}
}
