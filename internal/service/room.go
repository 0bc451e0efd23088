package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/johna108/Comic-Sync/internal/domain"
	"github.com/johna108/Comic-Sync/internal/repository"
)

// historyReplayLimit 是 join 时回放给新成员的最大聊天条数。
// 存储上限是 100 条，但初始下发只取最近 50 条，控制首包体积。
const historyReplayLimit = 50

// RoomService 承载房间相关的业务流程：加入/离开、聊天、reaction 切换、
// 导航更新，以及给 HTTP 层用的元数据快照。
// 它只操作注册表中的内存状态，本身不持有任何连接。
type RoomService struct {
	registry repository.RoomRegistry
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(registry repository.RoomRegistry) *RoomService {
	if registry == nil {
		panic("RoomRegistry cannot be nil for RoomService")
	}
	return &RoomService{registry: registry}
}

// JoinResult 是 join 流程的产出：发给新成员的初始视图，
// 以及需要广播给其他成员的信息。
type JoinResult struct {
	User      domain.RoomUser
	Users     []domain.RoomUser
	SharedURL string
	Reactions domain.ReactionBoard
	History   []domain.ChatMessage
	// Created 表示本次 join 建立了房间（该用户是首位成员，
	// 其 initialURL 成为房间的共享 URL）。
	Created bool
}

// Join 将连接加入房间，房间不存在时隐式创建。
// 首位成员的 initialURL 成为房间共享 URL，后来者的 initialURL 被忽略。
// 调用方负责先把连接从之前的房间移出（成员关系是排他的）。
func (s *RoomService) Join(ctx context.Context, roomCode, connID, userName, initialURL string) (*JoinResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": roomCode,
		"conn_id":   connID,
		"user_name": userName,
	})

	room, _ := s.registry.GetOrCreate(roomCode)
	user := domain.RoomUser{ID: connID, UserName: userName}
	first := room.Join(user, initialURL)
	if first {
		logCtx.WithField("shared_url", initialURL).Info("First member joined, shared URL established")
	}

	res := &JoinResult{
		User:      user,
		Users:     room.Users(),
		SharedURL: room.SharedURL(),
		Reactions: room.Reactions(),
		History:   room.RecentMessages(historyReplayLimit),
		Created:   first,
	}
	logCtx.WithField("user_count", len(res.Users)).Info("User joined room")
	return res, nil
}

// LeaveResult 是 leave 流程的产出：广播给剩余成员的信息。
type LeaveResult struct {
	User      domain.RoomUser
	Users     []domain.RoomUser
	Reactions domain.ReactionBoard
	// RoomDeleted 表示该用户是最后一位成员，房间已从注册表回收。
	RoomDeleted bool
}

// Leave 将连接从房间移出。房间不存在或连接不是成员时返回 (nil, nil)，
// 即幂等的静默无操作——显式 leave 和传输层断开可能先后到达。
// 最后一位成员离开时房间立即从注册表删除。
func (s *RoomService) Leave(ctx context.Context, roomCode, connID string) (*LeaveResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_code": roomCode, "conn_id": connID})

	room, err := s.registry.Get(roomCode)
	if err != nil {
		logCtx.Debug("Leave on unknown room, no-op")
		return nil, nil
	}
	user, ok := room.Leave(connID)
	if !ok {
		logCtx.Debug("Leave from non-member connection, no-op")
		return nil, nil
	}

	res := &LeaveResult{
		User:      user,
		Users:     room.Users(),
		Reactions: room.Reactions(),
	}
	if len(res.Users) == 0 {
		res.RoomDeleted = s.registry.RemoveIfEmpty(roomCode)
	}
	logCtx.WithFields(logrus.Fields{
		"user_name":    user.UserName,
		"user_count":   len(res.Users),
		"room_deleted": res.RoomDeleted,
	}).Info("User left room")
	return res, nil
}

// AppendMessage 为消息分配服务器端 ID 并追加到房间聊天记录。
// 返回最终（带 ID 的）消息，由调用方广播给包括发送者在内的所有成员——
// 回显才是事实来源，客户端不做本地乐观渲染。
// 房间不存在时返回 ErrRoomNotFound（调用方应静默丢弃）。
func (s *RoomService) AppendMessage(ctx context.Context, roomCode string, msg domain.ChatMessage) (*domain.ChatMessage, error) {
	room, err := s.registry.Get(roomCode)
	if err != nil {
		return nil, ErrRoomNotFound
	}

	msg.ID = uuid.NewString()
	if msg.Type == "" {
		msg.Type = domain.MessageTypeUser
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	room.AppendMessage(msg)
	return &msg, nil
}

// ReactionResult 是 reaction 切换的产出：新的完整快照，
// 以及走聊天通道的系统消息（reaction 同时记入实时计数和聊天流）。
type ReactionResult struct {
	Reactions     domain.ReactionBoard
	SystemMessage domain.ChatMessage
}

// ToggleReaction 切换 userName 在 kind 上的 reaction 开关，
// 并合成一条 "{user} reacted with {emoji}" 系统消息。
// 房间不存在时返回 ErrRoomNotFound。
func (s *RoomService) ToggleReaction(ctx context.Context, roomCode, kind, userName string) (*ReactionResult, error) {
	room, err := s.registry.Get(roomCode)
	if err != nil {
		return nil, ErrRoomNotFound
	}

	board := room.ToggleReaction(kind, userName)
	notice := fmt.Sprintf("%s reacted with %s", userName, domain.EmojiFor(kind))
	sysMsg, err := s.appendSystemMessage(room, notice)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"room_code": roomCode,
		"reaction":  kind,
		"user_name": userName,
	}).Debug("Reaction toggled")
	return &ReactionResult{Reactions: board, SystemMessage: *sysMsg}, nil
}

// Navigate 更新房间的共享 URL 并合成一条系统消息。
// 房间不存在时返回 ErrRoomNotFound。
func (s *RoomService) Navigate(ctx context.Context, roomCode, userName, url string) (*domain.ChatMessage, error) {
	room, err := s.registry.Get(roomCode)
	if err != nil {
		return nil, ErrRoomNotFound
	}
	room.SetSharedURL(url)
	logrus.WithFields(logrus.Fields{"room_code": roomCode, "url": url}).Info("Shared URL updated")
	return s.appendSystemMessage(room, fmt.Sprintf("🌐 %s navigated to %s", userName, url))
}

// SystemNotice 向房间聊天流写入一条系统消息（如前进/后退/刷新通知）。
// 房间不存在时返回 ErrRoomNotFound。
func (s *RoomService) SystemNotice(ctx context.Context, roomCode, text string) (*domain.ChatMessage, error) {
	room, err := s.registry.Get(roomCode)
	if err != nil {
		return nil, ErrRoomNotFound
	}
	return s.appendSystemMessage(room, text)
}

// appendSystemMessage 走与普通聊天一致的路径：分配 ID、受 100 条上限约束。
func (s *RoomService) appendSystemMessage(room *domain.Room, text string) (*domain.ChatMessage, error) {
	msg := domain.ChatMessage{
		ID:        uuid.NewString(),
		UserName:  "System",
		Message:   text,
		Timestamp: time.Now().UnixMilli(),
		Type:      domain.MessageTypeSystem,
	}
	room.AppendMessage(msg)
	return &msg, nil
}

// RoomMetadata 是 HTTP 元数据端点的房间快照。
type RoomMetadata struct {
	RoomCode     string               `json:"roomCode"`
	UserCount    int                  `json:"userCount"`
	Users        []domain.RoomUser    `json:"users"`
	MessageCount int                  `json:"messageCount"`
	SharedURL    string               `json:"sharedUrl"`
	Reactions    domain.ReactionBoard `json:"reactions"`
	CreatedAt    time.Time            `json:"createdAt"`
}

// Metadata 返回房间的元数据快照，房间不存在时返回 ErrRoomNotFound。
func (s *RoomService) Metadata(ctx context.Context, roomCode string) (*RoomMetadata, error) {
	room, err := s.registry.Get(roomCode)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, ErrInternalServer
	}
	return &RoomMetadata{
		RoomCode:     room.Code(),
		UserCount:    room.UserCount(),
		Users:        room.Users(),
		MessageCount: room.MessageCount(),
		SharedURL:    room.SharedURL(),
		Reactions:    room.Reactions(),
		CreatedAt:    room.CreatedAt(),
	}, nil
}

// Stats 返回存活房间数和总成员数（健康检查和周期性报表用）。
func (s *RoomService) Stats(ctx context.Context) (rooms int, users int) {
	codes := s.registry.Codes()
	for _, code := range codes {
		if room, err := s.registry.Get(code); err == nil {
			users += room.UserCount()
		}
	}
	return len(codes), users
}

// NewRoomCode 生成一个未被占用的 6 位房间码（A-Z 与数字）。
// 码的唯一性只在生成时刻针对存活房间检查——房间本身要等首个 join 才创建。
func (s *RoomService) NewRoomCode(ctx context.Context) (string, error) {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	const codeLength = 6
	const maxAttempts = 10

	b := make([]byte, codeLength)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for i := range b {
			b[i] = letters[int(b[i])%len(letters)]
		}
		code := string(b)
		if !s.registry.Exists(code) {
			return code, nil
		}
		logrus.WithField("room_code", code).Warnf("Generated room code already in use, retrying (attempt %d)...", attempt+1)
	}
	return "", fmt.Errorf("failed to generate a unique room code after %d attempts", maxAttempts)
}
