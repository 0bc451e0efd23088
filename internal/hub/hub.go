package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/johna108/Comic-Sync/internal/browser"
	"github.com/johna108/Comic-Sync/internal/domain"
	"github.com/johna108/Comic-Sync/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用。
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型。
type HubMessage struct {
	Type    string // "register", "unregister", "event"
	Client  *Client
	RawData []byte // 仅用于 event（原始 WebSocket 消息）
}

// Hub 是事件路由器：维护活跃连接集合，把入站事件分发到 RoomService 的
// 房间操作上，再把产生的状态增量广播给房间内的连接。
//
// 所有会改变房间状态的事件都在 Run 的单个 goroutine 里按到达顺序内联处理，
// 因此任意单个房间的广播顺序与服务端的事件应用顺序一致；
// 每个连接的带缓冲 send 通道保证了到单个客户端的 FIFO。
type Hub struct {
	messageChan chan HubMessage

	// 按房间码组织的连接集合。只在 Run goroutine 内写入；
	// 读锁保护来自浏览器帧推送等外部读取方。
	rooms   map[string]map[*Client]bool
	roomsMu sync.RWMutex

	roomService *service.RoomService
	browser     browser.Manager
}

// NewHub 创建并返回一个新的 Hub 实例。
// browserMgr 传 nil 时使用 NopManager（不接浏览器驱动的部署形态）。
func NewHub(roomService *service.RoomService, browserMgr browser.Manager) *Hub {
	if roomService == nil {
		panic("RoomService cannot be nil for Hub")
	}
	if browserMgr == nil {
		browserMgr = browser.NewNopManager()
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[string]map[*Client]bool),
		roomService: roomService,
		browser:     browserMgr,
	}
}

// Run 启动 Hub 的主事件处理循环，应在单独的 goroutine 中运行。
// 事件不能并发处理（go handleEvent 会破坏单房间的广播顺序保证）。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		case "event":
			h.dispatch(msg.Client, msg.RawData)
		default:
			log.Warnf("Hub: received unknown message type: %s", msg.Type)
		}
	}
	log.Info("Hub is shutting down...")
}

// QueueMessage 将消息放入 Hub 的处理队列（非阻塞）。
// 返回 false 表示队列已满，消息被丢弃。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}

// registerClient 记录一个新建立的连接。此时连接还不属于任何房间，
// 要等它发出 join 事件。
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to register a nil client")
		return
	}
	logrus.WithField("conn_id", client.id).Info("Client registered to Hub")
}

// unregisterClient 处理传输层断开：触发一次 leave（幂等），再关闭发送通道。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to unregister a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": client.id, "room_code": client.room})

	h.leaveCurrentRoom(client)

	// 关闭 send 通道让 WritePump 退出。防止重复关闭。
	select {
	case <-client.send:
	default:
		close(client.send)
	}
	logCtx.Info("Client unregistered from Hub")
}

// dispatch 解码入站信封并路由到对应流程。
// 对不存在的房间的操作一律静默丢弃（房间可能刚被并发回收）。
func (h *Hub) dispatch(client *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logrus.WithError(err).WithField("conn_id", client.id).Warn("Failed to decode client envelope")
		return
	}

	switch env.Type {
	case EventJoin:
		var p joinPayload
		if decodePayload(client, env, &p) {
			h.handleJoin(client, p)
		}
	case EventLeave:
		var p leavePayload
		if decodePayload(client, env, &p) {
			// 只有对当前房间的 leave 才生效；过期的房间码是无操作。
			if client.room != "" && client.room == p.RoomCode {
				h.leaveCurrentRoom(client)
			}
		}
	case EventChatMessage:
		var p chatPayload
		if decodePayload(client, env, &p) {
			h.handleChat(client, p)
		}
	case EventReaction:
		var p reactionPayload
		if decodePayload(client, env, &p) {
			h.handleReaction(client, p)
		}
	case EventScrollUpdate:
		var p scrollPayload
		if decodePayload(client, env, &p) {
			h.handleScroll(client, p)
		}
	case EventMouseMove:
		var p mousePayload
		if decodePayload(client, env, &p) {
			h.handleMouseMove(client, p)
		}
	case EventNavigate:
		var p navigatePayload
		if decodePayload(client, env, &p) {
			h.handleNavigate(client, p)
		}
	case EventNavigateBack, EventNavigateForward, EventRefresh:
		var p navActionPayload
		if decodePayload(client, env, &p) {
			h.handleBrowserNav(client, env.Type, p)
		}
	case EventBrowserScroll:
		var p browserScrollPayload
		if decodePayload(client, env, &p) {
			if sess, ok := h.sessionFor(client, p.RoomCode); ok {
				_ = sess.Scroll(p.X, p.Y)
			}
		}
	case EventClick:
		var p clickPayload
		if decodePayload(client, env, &p) {
			if sess, ok := h.sessionFor(client, p.RoomCode); ok {
				_ = sess.Click(p.X, p.Y)
			}
		}
	case EventKey:
		var p keyPayload
		if decodePayload(client, env, &p) {
			if sess, ok := h.sessionFor(client, p.RoomCode); ok {
				_ = sess.SendKey(p.Key, p.KeyType)
			}
		}
	default:
		logrus.WithFields(logrus.Fields{"conn_id": client.id, "event": env.Type}).
			Warn("Received unknown event type")
	}
}

// handleJoin 处理 join 流程。成员关系是排他的：先退出旧房间再加入新房间。
func (h *Hub) handleJoin(client *Client, p joinPayload) {
	logCtx := logrus.WithFields(logrus.Fields{
		"conn_id":   client.id,
		"room_code": p.RoomCode,
		"user_name": p.UserName,
	})

	if client.room != "" {
		h.leaveCurrentRoom(client)
	}

	res, err := h.roomService.Join(context.Background(), p.RoomCode, client.id, p.UserName, p.InitialURL)
	if err != nil {
		logCtx.WithError(err).Error("Join failed")
		h.sendEvent(client, EventError, errorPayload{Message: "failed to join room"})
		return
	}

	client.room = p.RoomCode
	client.userName = p.UserName

	h.roomsMu.Lock()
	if _, ok := h.rooms[p.RoomCode]; !ok {
		h.rooms[p.RoomCode] = make(map[*Client]bool)
	}
	h.rooms[p.RoomCode][client] = true
	h.roomsMu.Unlock()

	if res.Created {
		if err := h.browser.StartSession(p.RoomCode, res.SharedURL, h); err != nil {
			logCtx.WithError(err).Error("Failed to start browser session for new room")
		}
	}

	// 新成员的初始视图：成员列表、共享 URL、reaction 快照、最近聊天记录。
	h.sendEvent(client, EventRoomUsers, res.Users)
	h.sendEvent(client, EventURLUpdate, urlUpdatePayload{URL: res.SharedURL})
	h.sendEvent(client, EventReactionUpdate, res.Reactions)
	h.sendEvent(client, EventChatHistory, res.History)

	// 其余成员收到加入通知和刷新后的成员列表。
	h.broadcastEvent(p.RoomCode, EventUserJoined, res.User, client)
	h.broadcastEvent(p.RoomCode, EventRoomUsers, res.Users, client)

	logCtx.WithField("user_count", len(res.Users)).Info("Client joined room")
}

// leaveCurrentRoom 把连接移出其当前房间并广播离开通知。
// 连接不在任何房间时是无操作。leave 和 disconnect 先后到达是安全的。
func (h *Hub) leaveCurrentRoom(client *Client) {
	roomCode := client.room
	if roomCode == "" {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"conn_id":   client.id,
		"room_code": roomCode,
		"user_name": client.userName,
	})

	res, err := h.roomService.Leave(context.Background(), roomCode, client.id)
	if err != nil {
		logCtx.WithError(err).Error("Leave failed")
	}

	h.roomsMu.Lock()
	if roomClients, ok := h.rooms[roomCode]; ok {
		delete(roomClients, client)
		if len(roomClients) == 0 {
			delete(h.rooms, roomCode)
		}
	}
	h.roomsMu.Unlock()
	client.room = ""
	client.userName = ""

	if res == nil {
		return // 幂等无操作（已离开过）
	}

	h.broadcastEvent(roomCode, EventUserLeft, res.User, nil)
	h.broadcastEvent(roomCode, EventRoomUsers, res.Users, nil)
	h.broadcastEvent(roomCode, EventReactionUpdate, res.Reactions, nil)

	if res.RoomDeleted {
		h.browser.StopSession(roomCode)
		logCtx.Info("Room garbage-collected, browser session stopped")
	}
}

// handleChat 处理聊天消息：服务器定稿后回显给包括发送者在内的所有成员。
func (h *Hub) handleChat(client *Client, p chatPayload) {
	if client.room == "" || client.room != p.RoomCode {
		return // 未加入或房间码过期，静默丢弃
	}
	in := toChatMessage(p)
	if in.UserName == "" {
		// 发送者的身份在 join 时就确定了，载荷缺省时用它补齐。
		in.UserName = client.userName
	}
	msg, err := h.roomService.AppendMessage(context.Background(), p.RoomCode, in)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			logrus.WithField("room_code", p.RoomCode).Debug("Chat message for unknown room dropped")
		} else {
			logrus.WithError(err).Error("Failed to append chat message")
		}
		return
	}
	h.broadcastEvent(p.RoomCode, EventChatMessage, msg, nil)
}

// handleReaction 处理 reaction 切换：广播新的完整快照和系统聊天消息。
func (h *Hub) handleReaction(client *Client, p reactionPayload) {
	if client.room == "" || client.room != p.RoomCode {
		return
	}
	res, err := h.roomService.ToggleReaction(context.Background(), p.RoomCode, p.Reaction, p.UserName)
	if err != nil {
		if !errors.Is(err, service.ErrRoomNotFound) {
			logrus.WithError(err).Error("Failed to toggle reaction")
		}
		return
	}
	h.broadcastEvent(p.RoomCode, EventReactionUpdate, res.Reactions, nil)
	h.broadcastEvent(p.RoomCode, EventChatMessage, res.SystemMessage, nil)
}

// handleScroll 是纯中继：把滚动位置转发给除发送者外的所有成员。
// 排除发送者，避免位置同步事件形成回显反馈环。
func (h *Hub) handleScroll(client *Client, p scrollPayload) {
	if client.room == "" || client.room != p.RoomCode {
		return
	}
	h.broadcastEvent(p.RoomCode, EventScrollSync, scrollSyncPayload{
		ScrollTop: p.ScrollTop,
		UserName:  p.UserName,
	}, client)
}

// handleMouseMove 把鼠标位置转发给除发送者外的所有成员。
func (h *Hub) handleMouseMove(client *Client, p mousePayload) {
	if client.room == "" || client.room != p.RoomCode {
		return
	}
	h.broadcastEvent(p.RoomCode, EventMousePosition, p, client)
}

// handleNavigate 处理显式导航：更新共享 URL、驱动浏览器会话、
// 给其他成员转发新 URL，并广播系统消息。
func (h *Hub) handleNavigate(client *Client, p navigatePayload) {
	if client.room == "" || client.room != p.RoomCode {
		return
	}
	sysMsg, err := h.roomService.Navigate(context.Background(), p.RoomCode, p.UserName, p.URL)
	if err != nil {
		if !errors.Is(err, service.ErrRoomNotFound) {
			logrus.WithError(err).Error("Failed to apply navigation")
		}
		return
	}
	if sess, ok := h.browser.Session(p.RoomCode); ok {
		_ = sess.Navigate(p.URL)
	}
	h.broadcastEvent(p.RoomCode, EventURLUpdate, urlUpdatePayload{URL: p.URL}, client)
	h.broadcastEvent(p.RoomCode, EventChatMessage, sysMsg, nil)
}

// handleBrowserNav 处理后退/前进/刷新指令并广播对应的系统消息。
func (h *Hub) handleBrowserNav(client *Client, eventType string, p navActionPayload) {
	sess, ok := h.sessionFor(client, p.RoomCode)
	if !ok {
		return
	}
	var notice string
	switch eventType {
	case EventNavigateBack:
		_ = sess.Back()
		notice = "⬅️ " + p.UserName + " navigated back"
	case EventNavigateForward:
		_ = sess.Forward()
		notice = "➡️ " + p.UserName + " navigated forward"
	case EventRefresh:
		_ = sess.Refresh()
		notice = "🔄 " + p.UserName + " refreshed the page"
	}
	sysMsg, err := h.roomService.SystemNotice(context.Background(), p.RoomCode, notice)
	if err != nil {
		return
	}
	h.broadcastEvent(p.RoomCode, EventChatMessage, sysMsg, nil)
}

// sessionFor 校验连接属于该房间并返回房间的浏览器会话。
func (h *Hub) sessionFor(client *Client, roomCode string) (browser.Session, bool) {
	if client.room == "" || client.room != roomCode {
		return nil, false
	}
	return h.browser.Session(roomCode)
}

// PublishFrame 实现 browser.Publisher：把浏览器帧广播给房间全员。
// 可能从会话自己的 goroutine 调用，只依赖读锁和连接通道，线程安全。
func (h *Hub) PublishFrame(roomCode string, frame browser.Frame) {
	payload, err := encodeEvent(EventScreenshotUpdate, frame)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode screenshot frame")
		return
	}
	h.broadcast(roomCode, payload, nil)
}

// PublishStatus 实现 browser.Publisher：把会话的启动结果通知房间全员。
func (h *Hub) PublishStatus(roomCode string, status browser.Status) {
	if status.Ready {
		h.broadcastEvent(roomCode, EventBrowserReady, browserReadyPayload{Success: true}, nil)
		return
	}
	logrus.WithFields(logrus.Fields{"room_code": roomCode, "error": status.Message}).
		Warn("Browser session reported an error")
	h.broadcastEvent(roomCode, EventBrowserError, browserErrorPayload{Error: status.Message}, nil)
}

// sendEvent 向单个连接发送一条事件（非阻塞，队列满则丢弃）。
func (h *Hub) sendEvent(client *Client, eventType string, payload interface{}) {
	data, err := encodeEvent(eventType, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", eventType).Error("Failed to encode event")
		return
	}
	select {
	case client.send <- data:
	default:
		logrus.WithFields(logrus.Fields{"conn_id": client.id, "event": eventType}).
			Warn("Client send channel full, event dropped")
	}
}

// broadcastEvent 把事件广播给房间的所有连接，except 不为 nil 时排除它。
func (h *Hub) broadcastEvent(roomCode, eventType string, payload interface{}, except *Client) {
	data, err := encodeEvent(eventType, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", eventType).Error("Failed to encode broadcast event")
		return
	}
	h.broadcast(roomCode, data, except)
}

// broadcast 把已编码的消息发给房间内的连接。
// 在读锁内拷贝接收者列表，锁外发送，避免慢客户端拖住锁。
func (h *Hub) broadcast(roomCode string, message []byte, except *Client) {
	h.roomsMu.RLock()
	roomClients, ok := h.rooms[roomCode]
	clientsToSend := make([]*Client, 0, len(roomClients))
	if ok {
		for client := range roomClients {
			if client != except {
				clientsToSend = append(clientsToSend, client)
			}
		}
	}
	h.roomsMu.RUnlock()

	for _, client := range clientsToSend {
		select {
		case client.send <- message:
		default:
			// 队列满说明客户端处理缓慢，交给它的 WritePump/断连清理处理。
			logrus.WithFields(logrus.Fields{"room_code": roomCode, "conn_id": client.id}).
				Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}

func toChatMessage(p chatPayload) domain.ChatMessage {
	return domain.ChatMessage{
		UserName:  p.Message.UserName,
		Message:   p.Message.Message,
		Timestamp: p.Message.Timestamp,
	}
}
