// Package read реализует HTTP-обработчик чтения одного правила по его ID.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/recurrents-engine/internal/http/response"
	"github.com/magabrotheeeer/recurrents-engine/internal/lib/sl"
	"github.com/magabrotheeeer/recurrents-engine/internal/models"
	"github.com/magabrotheeeer/recurrents-engine/internal/storage/repository"
)

// Handler управляет HTTP-запросами на чтение правила.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики чтения правила.
type Service interface {
	Read(ctx context.Context, id string) (*models.RecurringRule, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить правило
// @Description Возвращает повторяющееся правило по его ID.
// @Tags Rules
// @Produce  json
// @Param id path string true "ID правила"
// @Success 200 {object} map[string]any "Правило"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Правило не найдено"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /rules/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.rule.read"

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

	rule, err := h.service.Read(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			log.Error("rule not found", slog.String("id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("rule not found"))
			return
		}
		log.Error("failed to read rule", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read rule"))
		return
	}

	log.Info("success to read rule", slog.String("id", id))
	render.JSON(w, r, response.OKWithData(rule))
}
