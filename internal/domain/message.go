package domain

// 聊天消息类型。
const (
	MessageTypeUser   = "user"
	MessageTypeSystem = "system"
)

// ChatMessage 表示房间内的一条聊天消息。
// ID 由服务器在入库前分配，客户端提供的 ID 会被覆盖；
// Timestamp 是毫秒级 Unix 时间戳（客户端可以带上，服务器在缺省时补齐）。
type ChatMessage struct {
	ID        string `json:"id"`
	UserName  string `json:"userName"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type,omitempty"`
}
