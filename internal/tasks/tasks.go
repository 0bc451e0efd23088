package tasks

import (
	"encoding/json"
	"time"
)

// 定义任务类型常量
const (
	TypeRoomStatsReport = "room:stats_report" // 周期性房间统计任务类型
	// 可以定义其他任务类型，例如:
	// TypeRoomCleanup = "room:cleanup"
)

// RoomStatsReportPayload 定义了统计任务的数据结构。
// 周期任务本身不携带房间数据，只记录调度时间。
type RoomStatsReportPayload struct {
	ScheduledAt time.Time `json:"scheduledAt"`
}

// NewRoomStatsReportTask 创建一个新的房间统计任务 payload
func NewRoomStatsReportTask() ([]byte, error) {
	payload := RoomStatsReportPayload{ScheduledAt: time.Now()}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return payloadBytes, nil
}
