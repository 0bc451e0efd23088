package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/johna108/Comic-Sync/internal/service"
)

// RoomHandler 封装了房间相关的 HTTP 查询端点。
// 这些端点只读取实时内存状态，不触发任何房间变更（变更全部走 WebSocket）。
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例。
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService}
}

// GetRoom 处理 GET /api/room/:roomCode，返回房间元数据快照。
// 未知房间码返回 404 和 exists=false——这是唯一会对外暴露 not-found
// 的地方（WebSocket 上对陌生房间的操作一律静默丢弃）。
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomCode := c.Param("roomCode")
	meta, err := h.roomService.Metadata(c.Request.Context(), roomCode)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found", "exists": false})
			return
		}
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{
		"roomCode":     meta.RoomCode,
		"userCount":    meta.UserCount,
		"users":        meta.Users,
		"messageCount": meta.MessageCount,
		"sharedUrl":    meta.SharedURL,
		"reactions":    meta.Reactions,
		"createdAt":    meta.CreatedAt,
		"exists":       true,
	})
}

// CreateRoomCodeResponse 定义生成房间码的响应结构体。
type CreateRoomCodeResponse struct {
	RoomCode string `json:"roomCode"`
}

// CreateRoomCode 处理 POST /api/rooms：生成一个未被占用的房间码。
// 房间本身要等首个 join 事件才真正建立。
func (h *RoomHandler) CreateRoomCode(c *gin.Context) {
	code, err := h.roomService.NewRoomCode(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Handler.CreateRoomCode: failed to generate room code")
		ErrorResponse(c, http.StatusInternalServerError, "Failed to create room")
		return
	}
	logrus.WithField("room_code", code).Info("Handler.CreateRoomCode: room code issued")
	SuccessResponse(c, http.StatusOK, CreateRoomCodeResponse{RoomCode: code})
}

// Health 处理 GET /health。
func (h *RoomHandler) Health(c *gin.Context) {
	rooms, users := h.roomService.Stats(c.Request.Context())
	SuccessResponse(c, http.StatusOK, gin.H{
		"status":    "ok",
		"rooms":     rooms,
		"users":     users,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
