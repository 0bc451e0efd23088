package http_test // 测试包

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpHandler "github.com/johna108/Comic-Sync/internal/handler/http"
	"github.com/johna108/Comic-Sync/internal/infra/memory"
	"github.com/johna108/Comic-Sync/internal/service"
)

func setupRouter() (*gin.Engine, *service.RoomService) {
	gin.SetMode(gin.TestMode)
	svc := service.NewRoomService(memory.NewRegistry())
	handler := httpHandler.NewRoomHandler(svc)

	router := gin.New()
	router.GET("/health", handler.Health)
	router.GET("/api/room/:roomCode", handler.GetRoom)
	router.POST("/api/rooms", handler.CreateRoomCode)
	return router, svc
}

func TestGetRoom_Found(t *testing.T) {
	// Arrange: 建一个有成员和消息的房间
	router, svc := setupRouter()
	ctx := context.Background()
	_, err := svc.Join(ctx, "AB12C9", "conn-1", "Alice", "https://example.com/ch1")
	require.NoError(t, err)
	_, err = svc.ToggleReaction(ctx, "AB12C9", "heart", "Alice")
	require.NoError(t, err)

	// Act
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/room/AB12C9", nil)
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "AB12C9", body["roomCode"])
	assert.Equal(t, true, body["exists"])
	assert.EqualValues(t, 1, body["userCount"])
	assert.EqualValues(t, 1, body["messageCount"], "reaction 的系统消息应计入消息数")
	assert.Equal(t, "https://example.com/ch1", body["sharedUrl"])
}

func TestGetRoom_NotFound(t *testing.T) {
	router, _ := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/room/NOPE99", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Room not found", body["error"])
	assert.Equal(t, false, body["exists"])
}

func TestCreateRoomCode(t *testing.T) {
	router, _ := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/rooms", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body httpHandler.CreateRoomCodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Regexp(t, `^[0-9A-Z]{6}$`, body.RoomCode)
}

func TestHealth(t *testing.T) {
	router, svc := setupRouter()
	_, err := svc.Join(context.Background(), "AB12C9", "conn-1", "Alice", "")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["rooms"])
	assert.EqualValues(t, 1, body["users"])
	assert.NotEmpty(t, body["timestamp"])
}
