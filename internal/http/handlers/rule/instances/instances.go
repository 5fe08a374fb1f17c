// Package instances реализует HTTP-обработчик списка материализованных
// экземпляров правила, отсортированных по дате.
package instances

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/recurrents-engine/internal/http/response"
	"github.com/magabrotheeeer/recurrents-engine/internal/lib/sl"
	"github.com/magabrotheeeer/recurrents-engine/internal/models"
)

// Handler управляет HTTP-запросами на чтение экземпляров правила.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики чтения экземпляров.
type Service interface {
	Instances(ctx context.Context, ruleID string) ([]*models.RecurringInstance, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Экземпляры правила
// @Description Возвращает материализованные экземпляры правила, отсортированные по дате.
// @Tags Rules
// @Produce  json
// @Param id path string true "ID правила"
// @Success 200 {object} map[string]any "Список экземпляров"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /rules/{id}/instances [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.rule.instances"

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

	res, err := h.service.Instances(r.Context(), id)
	if err != nil {
		log.Error("failed to list instances", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list instances"))
		return
	}

	log.Info("list instances", "count", len(res))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"list_count": len(res),
		"instances":  res,
	}))
}
