package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/johna108/Comic-Sync/internal/service"
)

// RoomStatsHandler 处理周期性的房间统计任务。
// 房间状态全在内存里，进程重启即清零，所以周期性把活跃房间数
// 和在线人数打进日志，方便运维观察趋势。
type RoomStatsHandler struct {
	roomService *service.RoomService
}

// NewRoomStatsHandler 创建 Handler 实例
func NewRoomStatsHandler(roomService *service.RoomService) *RoomStatsHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomStatsHandler")
	}
	return &RoomStatsHandler{roomService: roomService}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomStatsHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
	})

	rooms, users := h.roomService.Stats(ctx)
	logCtx.WithFields(logrus.Fields{
		"active_rooms": rooms,
		"online_users": users,
	}).Info("Room stats report")
	return nil
}
