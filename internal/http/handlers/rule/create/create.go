// Package create реализует HTTP-обработчик для создания новых повторяющихся правил.
//
// Handler принимает JSON-запрос с конфигурацией правила, валидирует её, извлекает
// имя пользователя из контекста, вызывает бизнес-логику создания правила через сервис
// и возвращает ID созданной записи в JSON-формате.
//
// В случае ошибок формируются соответствующие HTTP-ответы с описанием проблемы.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/magabrotheeeer/recurrents-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/recurrents-engine/internal/http/response"
	"github.com/magabrotheeeer/recurrents-engine/internal/lib/sl"
	"github.com/magabrotheeeer/recurrents-engine/internal/models"
)

// Handler управляет HTTP-запросами на создание новых правил.
//
// Использует логгер для записи операций и ошибок,
// сервис бизнес-логики для создания правила,
// а также валидатор для проверки структуры входных данных.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики создания правила.
type Service interface {
	Create(ctx context.Context, username string, req models.DummyRule) (string, error)
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
// @Summary Создать новое правило
// @Description Создает новое повторяющееся правило для текущего пользователя. Возвращает ID созданной записи.
// @Tags Rules
// @Accept  json
// @Produce  json
// @Param request body models.DummyRule true "Конфигурация нового правила"
// @Success 200 {object} map[string]any "Успешное создание правила"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при создании правила"
// @Router /rules [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.rule.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyRule
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.Any("request", req))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	log.Info("all fields are validated")

	username, ok := r.Context().Value(middlewarectx.User).(string)
	if !ok || username == "" {
		log.Error("username not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	id, err := h.service.Create(r.Context(), username, req)
	if err != nil {
		log.Error("failed to create rule", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create rule"))
		return
	}

	log.Info("success to create rule", slog.String("id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"id": id,
	}))
}
