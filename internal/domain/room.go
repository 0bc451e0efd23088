package domain

import (
	"sync"
	"time"
)

// maxRoomMessages 是单个房间保留的最大聊天记录条数，超出后从头部淘汰（FIFO）。
const maxRoomMessages = 100

// Room 表示一个共享阅读会话的聚合：成员、聊天记录、共享 URL 和 reaction 计数。
// 所有可变字段由内部互斥锁保护；每个方法都是一个完整的临界区，
// 内部不做任何 IO，保证不会出现交错的部分更新。
type Room struct {
	mu sync.RWMutex

	code      string
	createdAt time.Time
	sharedURL string

	users     map[string]RoomUser // 按连接 ID 索引
	userOrder []string            // 按加入顺序排列的连接 ID
	messages  []ChatMessage
	reactions map[string]*reactionEntry
}

// reactionEntry 是 ReactionState 的内部可变形式。
// users 同时充当集合（toggle 语义保证名字至多出现一次）和顺序记录。
type reactionEntry struct {
	emoji string
	users []string
}

// NewRoom 创建一个空房间。
func NewRoom(code string) *Room {
	return &Room{
		code:      code,
		createdAt: time.Now(),
		users:     make(map[string]RoomUser),
		reactions: make(map[string]*reactionEntry),
	}
}

func (r *Room) Code() string { return r.code }

func (r *Room) CreatedAt() time.Time { return r.createdAt }

// Join 将用户加入房间。如果该用户是房间的首位成员（房间刚创建，或并发竞争下
// 逻辑上最先到达的 join），则把 initialURL 设为房间的共享 URL 并返回 true；
// 之后加入者携带的 initialURL 一律忽略。
func (r *Room) Join(user RoomUser, initialURL string) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.users) == 0 {
		r.sharedURL = initialURL
		first = true
	}
	if _, exists := r.users[user.ID]; !exists {
		r.userOrder = append(r.userOrder, user.ID)
	}
	r.users[user.ID] = user
	return first
}

// Leave 将连接从房间移除，并清掉该用户名下所有点亮的 reaction。
// 连接不在房间内时返回 ok=false（幂等，无副作用）。
func (r *Room) Leave(connID string) (user RoomUser, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok = r.users[connID]
	if !ok {
		return RoomUser{}, false
	}
	delete(r.users, connID)
	for i, id := range r.userOrder {
		if id == connID {
			r.userOrder = append(r.userOrder[:i], r.userOrder[i+1:]...)
			break
		}
	}

	// 撤销该用户的所有 reaction，计数归零的类型整条删除。
	for kind, entry := range r.reactions {
		entry.removeUser(user.UserName)
		if len(entry.users) == 0 {
			delete(r.reactions, kind)
		}
	}
	return user, true
}

// UserCount 返回当前成员数。
func (r *Room) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Users 返回按加入顺序排列的成员列表副本。
func (r *Room) Users() []RoomUser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]RoomUser, 0, len(r.userOrder))
	for _, id := range r.userOrder {
		if user, ok := r.users[id]; ok {
			users = append(users, user)
		}
	}
	return users
}

func (r *Room) SharedURL() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sharedURL
}

// SetSharedURL 更新房间的共享导航目标（仅由显式导航事件调用）。
func (r *Room) SetSharedURL(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sharedURL = url
}

// AppendMessage 追加一条聊天消息，超出上限时从最旧的一侧静默淘汰。
func (r *Room) AppendMessage(msg ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	if n := len(r.messages); n > maxRoomMessages {
		r.messages = append(r.messages[:0:0], r.messages[n-maxRoomMessages:]...)
	}
}

// RecentMessages 返回最近 limit 条消息的副本（不足时返回全部）。
func (r *Room) RecentMessages(limit int) []ChatMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	start := 0
	if limit >= 0 && len(r.messages) > limit {
		start = len(r.messages) - limit
	}
	out := make([]ChatMessage, len(r.messages)-start)
	copy(out, r.messages[start:])
	return out
}

// MessageCount 返回当前保留的聊天记录条数。
func (r *Room) MessageCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

// ToggleReaction 对 userName 在 kind 上的 reaction 做开关切换：
// 已点亮则撤销（计数归零时删除整个条目），未点亮则点亮。
// 返回切换后的完整 reaction 快照。
func (r *Room) ToggleReaction(kind, userName string) ReactionBoard {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.reactions[kind]
	if ok && entry.hasUser(userName) {
		entry.removeUser(userName)
		if len(entry.users) == 0 {
			delete(r.reactions, kind)
		}
	} else {
		if !ok {
			entry = &reactionEntry{emoji: EmojiFor(kind)}
			r.reactions[kind] = entry
		}
		entry.users = append(entry.users, userName)
	}
	return r.reactionsLocked()
}

// Reactions 返回当前 reaction 快照。
func (r *Room) Reactions() ReactionBoard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reactionsLocked()
}

// reactionsLocked 在持锁状态下构造快照副本。
func (r *Room) reactionsLocked() ReactionBoard {
	board := make(ReactionBoard, len(r.reactions))
	for kind, entry := range r.reactions {
		users := make([]string, len(entry.users))
		copy(users, entry.users)
		board[kind] = ReactionState{
			Emoji: entry.emoji,
			Count: len(users),
			Users: users,
		}
	}
	return board
}

func (e *reactionEntry) hasUser(userName string) bool {
	for _, name := range e.users {
		if name == userName {
			return true
		}
	}
	return false
}

func (e *reactionEntry) removeUser(userName string) {
	for i, name := range e.users {
		if name == userName {
			e.users = append(e.users[:i], e.users[i+1:]...)
			return
		}
	}
}
