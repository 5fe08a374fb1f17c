// Package skip реализует HTTP-обработчик пропуска ближайшего периода:
// курсор активного правила продвигается на один интервал без создания
// экземпляра.
package skip

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/recurrents-engine/internal/http/response"
	"github.com/magabrotheeeer/recurrents-engine/internal/lib/sl"
	"github.com/magabrotheeeer/recurrents-engine/internal/storage/repository"
)

// Handler управляет HTTP-запросами на пропуск ближайшего периода.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики пропуска периода.
type Service interface {
	SkipNext(ctx context.Context, id string) (time.Time, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Пропустить ближайший период
// @Description Продвигает курсор активного правила на один интервал без создания экземпляра. Возвращает новую дату запуска.
// @Tags Rules
// @Produce  json
// @Param id path string true "ID правила"
// @Success 200 {object} map[string]any "Период пропущен"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Правило не найдено"
// @Failure 409 {object} response.ErrorResponse "Правило не в статусе active"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /rules/{id}/skip [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.rule.skip"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		log.Error("invalid id format", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid id"))
		return
	}

	next, err := h.service.SkipNext(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRuleNotFound):
			log.Error("rule not found", slog.String("id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("rule not found"))
		case errors.Is(err, repository.ErrInvalidState):
			log.Error("rule is not active", slog.String("id", id))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("rule is not active"))
		default:
			log.Error("failed to skip next occurrence", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not skip next occurrence"))
		}
		return
	}

	log.Info("success to skip next occurrence", slog.String("id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"id":            id,
		"next_run_date": next.Format("2006-01-02"),
	}))
}
