package hub

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// 入站事件类型（客户端 → 服务器）。
const (
	EventJoin            = "join"
	EventLeave           = "leave"
	EventChatMessage     = "chat-message"
	EventReaction        = "reaction"
	EventScrollUpdate    = "scroll-update"
	EventMouseMove       = "mouse-move"
	EventNavigate        = "browser-navigate"
	EventNavigateBack    = "browser-navigate-back"
	EventNavigateForward = "browser-navigate-forward"
	EventRefresh         = "browser-refresh"
	EventBrowserScroll   = "browser-scroll"
	EventClick           = "browser-click"
	EventKey             = "browser-key"
)

// 出站事件类型（服务器 → 客户端）。
const (
	EventRoomUsers        = "room-users"
	EventUserJoined       = "user-joined"
	EventUserLeft         = "user-left"
	EventURLUpdate        = "webtoon-url-update"
	EventChatHistory      = "chat-history"
	EventReactionUpdate   = "reaction-update"
	EventScrollSync       = "scroll-sync"
	EventMousePosition    = "mouse-position"
	EventScreenshotUpdate = "screenshot-update"
	EventBrowserReady     = "browser-ready"
	EventBrowserError     = "browser-error"
	EventError            = "error"
)

// Envelope 是 WebSocket 上双向传输的统一信封：{"type": ..., "data": ...}。
// 入站时 Data 保持原始字节，按 Type 再二次解码。
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// encodeEvent 构造一条出站事件的线上字节。
func encodeEvent(eventType string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Data: data})
}

// decodePayload 把信封里的 Data 解码到具体载荷。
// 解码失败只记日志并丢弃事件，不回发错误（客户端格式错误不值得断连）。
func decodePayload(client *Client, env Envelope, v interface{}) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"conn_id": client.id,
			"event":   env.Type,
		}).Warn("Hub: failed to decode event payload")
		return false
	}
	return true
}

// --- 入站事件的载荷 ---

type joinPayload struct {
	RoomCode string `json:"roomCode"`
	UserName string `json:"userName"`
	// 原始协议里首个加入者（房主）用 webtoonUrl 指定初始内容。
	InitialURL string `json:"webtoonUrl"`
}

type leavePayload struct {
	RoomCode string `json:"roomCode"`
}

type chatPayload struct {
	RoomCode string `json:"roomCode"`
	Message  struct {
		UserName  string `json:"userName"`
		Message   string `json:"message"`
		Timestamp int64  `json:"timestamp"`
	} `json:"message"`
}

type reactionPayload struct {
	RoomCode string `json:"roomCode"`
	Reaction string `json:"reaction"`
	UserName string `json:"userName"`
}

type scrollPayload struct {
	RoomCode  string  `json:"roomCode"`
	ScrollTop float64 `json:"scrollTop"`
	UserName  string  `json:"userName"`
}

type mousePayload struct {
	RoomCode string  `json:"roomCode"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	UserName string  `json:"userName"`
}

type navigatePayload struct {
	RoomCode string `json:"roomCode"`
	URL      string `json:"url"`
	UserName string `json:"userName"`
}

type navActionPayload struct {
	RoomCode string `json:"roomCode"`
	UserName string `json:"userName"`
}

type browserScrollPayload struct {
	RoomCode string  `json:"roomCode"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	UserName string  `json:"userName"`
}

type clickPayload struct {
	RoomCode string  `json:"roomCode"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type keyPayload struct {
	RoomCode string `json:"roomCode"`
	Key      string `json:"key"`
	KeyType  string `json:"keyType"`
}

// --- 出站事件的载荷 ---

type urlUpdatePayload struct {
	URL string `json:"url"`
}

type scrollSyncPayload struct {
	ScrollTop float64 `json:"scrollTop"`
	UserName  string  `json:"userName,omitempty"`
}

type browserReadyPayload struct {
	Success bool `json:"success"`
}

type browserErrorPayload struct {
	Error string `json:"error"`
}

type errorPayload struct {
	Message string `json:"message"`
}
