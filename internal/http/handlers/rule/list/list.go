// Package list реализует HTTP-обработчик списка правил пользователя
// с фильтром по области видимости и пагинацией.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/recurrents-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/recurrents-engine/internal/http/response"
	"github.com/magabrotheeeer/recurrents-engine/internal/lib/sl"
	"github.com/magabrotheeeer/recurrents-engine/internal/models"
)

// Handler управляет HTTP-запросами на получение списка правил.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики списка правил.
type Service interface {
	List(ctx context.Context, username, scope, familyID string, limit, offset int) ([]*models.RecurringRule, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Список правил
// @Description Возвращает правила текущего пользователя. Параметр scope выбирает личные или семейные правила.
// @Tags Rules
// @Produce  json
// @Param scope query string false "Область видимости: personal или family" default(personal)
// @Param family_id query string false "ID семьи для scope=family"
// @Param limit query int false "Размер страницы" default(10)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} map[string]any "Список правил"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /rules [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.rule.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limitStr := r.URL.Query().Get("limit")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 10
	}

	offsetStr := r.URL.Query().Get("offset")
	offset, err := strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		offset = 0
	}

	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = string(models.ScopePersonal)
	}
	familyID := r.URL.Query().Get("family_id")

	username, ok := r.Context().Value(middlewarectx.User).(string)
	if !ok || username == "" {
		log.Error("username not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	res, err := h.service.List(r.Context(), username, scope, familyID, limit, offset)
	if err != nil {
		log.Error("failed to list rules", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list"))
		return
	}

	log.Info("list rules", "count", len(res))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"list_count": len(res),
		"rules":      res,
	}))
}
