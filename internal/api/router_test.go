package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"widgetchat-backend/internal/config"
	"widgetchat-backend/internal/handlers"
	"widgetchat-backend/internal/models"
	"widgetchat-backend/internal/services"
)

type echoService struct{}

func (echoService) HandleMessage(_ context.Context, in services.ChatInput) (*services.ChatResult, error) {
	return &services.ChatResult{Response: "echo: " + in.Message, Confidence: 70, Mode: models.ModeEducation}, nil
}

type deadlineService struct {
	deadline time.Time
}

func (d *deadlineService) HandleMessage(ctx context.Context, in services.ChatInput) (*services.ChatResult, error) {
	d.deadline, _ = ctx.Deadline()
	return &services.ChatResult{Response: "ok", Confidence: 70, Mode: models.ModeEducation}, nil
}

func newTestRouter(t *testing.T, origins []string) http.Handler {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return NewRouter(RouterDependencies{
		ChatHandler: handlers.NewChatHandlers(echoService{}, false, logger),
		Config:      &config.Config{CORSAllowedOrigins: origins},
		Logger:      logger,
	})
}

func TestRouter_Health(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestRouter_Chat(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi","chatbotId":"edu-widget"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"response":"echo: hi"`)
	assert.Contains(t, rr.Body.String(), `"sources":[]`)
}

func TestRouter_ChatRejectsGet(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, []string{"https://tenant.example"})

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://tenant.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, "https://tenant.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi","chatbotId":"x"}`))
	router.ServeHTTP(httptest.NewRecorder(), req)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "chat_requests_total")
}

func TestRouter_RequestTimeoutFollowsGenerationTimeout(t *testing.T) {
	logger := zaptest.NewLogger(t)
	svc := &deadlineService{}
	cfg := &config.Config{GenerationTimeout: 90 * time.Second}
	router := NewRouter(RouterDependencies{
		ChatHandler: handlers.NewChatHandlers(svc, false, logger),
		Config:      cfg,
		Logger:      logger,
	})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi","chatbotId":"edu-widget"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	start := time.Now()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.False(t, svc.deadline.IsZero())
	assert.WithinDuration(t, start.Add(cfg.RequestTimeout()), svc.deadline, 5*time.Second)
	assert.True(t, svc.deadline.After(start.Add(cfg.GenerationTimeout)))
}
