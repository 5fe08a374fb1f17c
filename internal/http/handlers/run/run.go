// Package run реализует HTTP-обработчик ручного запуска движка материализации.
// В режиме preview возвращает спрогнозированные периоды без записи в хранилище.
package run

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/magabrotheeeer/recurrents-engine/internal/http/response"
	"github.com/magabrotheeeer/recurrents-engine/internal/lib/sl"
	"github.com/magabrotheeeer/recurrents-engine/internal/models"
)

// Handler управляет HTTP-запросами на запуск материализации.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс движка материализации.
type Service interface {
	Run(ctx context.Context, opts models.RunOptions) (*models.RunReport, error)
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
// @Summary Запустить материализацию
// @Description Запускает прогон движка по всем активным правилам. Тело запроса опционально: preview и horizon_days.
// @Tags Run
// @Accept  json
// @Produce  json
// @Param request body models.DummyRunOptions false "Параметры прогона"
// @Success 200 {object} models.RunReport "Отчет о прогоне"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /run [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.run"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyRunOptions
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
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

	report, err := h.service.Run(r.Context(), models.RunOptions{
		Preview:     req.Preview,
		HorizonDays: req.HorizonDays,
	})
	if err != nil {
		log.Error("failed to run materializer", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not run materializer"))
		return
	}

	log.Info("materializer run finished",
		slog.Int("written", report.WrittenTotal),
		slog.Int("failed", report.RulesFailed))
	render.JSON(w, r, response.OKWithData(report))
}
