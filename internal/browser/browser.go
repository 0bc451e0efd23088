// Package browser 定义无头浏览器子系统的协作边界。
// 核心只把它当黑盒：产出帧、接受输入指令。真正的自动化实现
// （Playwright/CDP 等驱动）在别的进程模块里，通过这里的接口接入。
package browser

import "github.com/sirupsen/logrus"

// ScrollPosition 是浏览器页面当前的滚动状态。
type ScrollPosition struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	MaxX       float64 `json:"maxX"`
	MaxY       float64 `json:"maxY"`
	PageWidth  float64 `json:"pageWidth"`
	PageHeight float64 `json:"pageHeight"`
}

// Frame 是浏览器会话产出的一帧截图。
type Frame struct {
	Screenshot     string         `json:"screenshot"` // base64 编码的 PNG
	ScrollPosition ScrollPosition `json:"scrollPosition"`
	Timestamp      int64          `json:"timestamp"` // 毫秒级 Unix 时间戳
}

// Status 是会话的生命周期通知：启动完成，或启动/运行出错。
// Ready 为 false 时 Message 携带错误描述。
type Status struct {
	Ready   bool
	Message string
}

// Publisher 是会话向房间回推数据的出口：帧流和生命周期通知。
// Hub 实现该接口。
type Publisher interface {
	PublishFrame(roomCode string, frame Frame)
	PublishStatus(roomCode string, status Status)
}

// Session 是单个房间的浏览器会话，接受输入指令。
// 所有方法都应是非阻塞的（指令入队即返回）。
type Session interface {
	Navigate(url string) error
	Back() error
	Forward() error
	Refresh() error
	Click(x, y float64) error
	SendKey(key, keyType string) error
	Scroll(x, y float64) error
}

// Manager 管理房间与浏览器会话的一一对应关系。
// 房间建立时启动会话，房间回收时停止会话。
type Manager interface {
	// StartSession 为房间启动一个会话并开始向 pub 推帧。
	StartSession(roomCode, url string, pub Publisher) error
	// StopSession 停止并释放房间的会话。对不存在的会话是无操作。
	StopSession(roomCode string)
	// Session 返回房间当前的会话。
	Session(roomCode string) (Session, bool)
}

// NopManager 是 Manager 的空实现：不启动任何浏览器，指令全部丢弃。
// 在没接入自动化驱动的部署形态下（纯聊天/同步中继）作为默认值。
type NopManager struct{}

func NewNopManager() *NopManager { return &NopManager{} }

func (m *NopManager) StartSession(roomCode, url string, pub Publisher) error {
	logrus.WithFields(logrus.Fields{"room_code": roomCode, "url": url}).
		Debug("NopManager: browser session requested, nothing to start")
	return nil
}

func (m *NopManager) StopSession(roomCode string) {}

func (m *NopManager) Session(roomCode string) (Session, bool) { return nil, false }
