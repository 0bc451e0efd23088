package domain

// RoomUser 表示房间内的一个参与者。
// ID 是连接级别的标识，由服务器在连接建立时分配；
// UserName 是客户端在 join 时提供的显示名。
type RoomUser struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
}
