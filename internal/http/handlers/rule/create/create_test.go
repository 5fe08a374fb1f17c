package create

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/recurrents-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/recurrents-engine/internal/models"
)

// MockService реализует интерфейс create.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, username string, req models.DummyRule) (string, error) {
	args := m.Called(ctx, username, req)
	return args.String(0), args.Error(1)
}

func TestCreateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	validBody := `{
		"scope": "personal",
		"payee": "Netflix",
		"amount_cents": 1299,
		"currency": "EUR",
		"interval_unit": "month",
		"interval_count": 1,
		"start_date": "2025-01-31"
	}`

	tests := []struct {
		name           string
		body           string
		username       string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:     "успешное создание правила",
			body:     validBody,
			username: "testuser",
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "testuser", mock.Anything).
					Return("3e8e2a36-5ac2-47a1-b0a8-4bb13b34ec24", nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"id":"3e8e2a36-5ac2-47a1-b0a8-4bb13b34ec24"`,
		},
		{
			name:           "некорректный JSON",
			body:           `{invalid`,
			username:       "testuser",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid request body"`,
		},
		{
			name: "ошибка валидации scope",
			body: `{
				"scope": "global",
				"payee": "Netflix",
				"amount_cents": 1299,
				"currency": "EUR",
				"interval_unit": "month",
				"interval_count": 1,
				"start_date": "2025-01-31"
			}`,
			username:       "testuser",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Scope must be one of`,
		},
		{
			name:           "пользователь не авторизован",
			body:           validBody,
			username:       "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:     "ошибка сервиса создания",
			body:     validBody,
			username: "testuser",
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "testuser", mock.Anything).
					Return("", errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not create rule"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader(tt.body))
			if tt.username != "" {
				ctx := context.WithValue(req.Context(), middlewarectx.User, tt.username)
				req = req.WithContext(ctx)
			}

			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
