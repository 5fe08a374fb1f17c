// Package preview реализует HTTP-обработчик предпросмотра ближайших периодов
// по конфигурации расписания. Обращений к хранилищу нет: расчёт чисто
// календарный, той же арифметикой, что использует движок материализации.
package preview

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/magabrotheeeer/recurrents-engine/internal/http/response"
	"github.com/magabrotheeeer/recurrents-engine/internal/lib/sl"
	"github.com/magabrotheeeer/recurrents-engine/internal/models"
)

// Handler управляет HTTP-запросами на предпросмотр периодов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс калькулятора предпросмотра.
type Service interface {
	Occurrences(next time.Time, unit models.IntervalUnit, count, n int) []models.Occurrence
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Предпросмотр периодов
// @Description Возвращает ближайшие N периодов для конфигурации расписания без обращения к хранилищу.
// @Tags Rules
// @Accept  json
// @Produce  json
// @Param request body models.DummyPreview true "Конфигурация расписания"
// @Success 200 {object} map[string]any "Спрогнозированные периоды"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /rules/preview [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.rule.preview"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyPreview
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	next, err := time.Parse("2006-01-02", req.NextRunDate)
	if err != nil {
		log.Error("invalid next run date", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid next run date"))
		return
	}

	occurrences := h.service.Occurrences(next, models.IntervalUnit(req.IntervalUnit), req.IntervalCount, req.Count)

	log.Info("preview calculated", slog.Int("count", len(occurrences)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"occurrences": occurrences,
	}))
}
