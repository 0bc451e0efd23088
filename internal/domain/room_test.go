package domain_test // 测试包

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johna108/Comic-Sync/internal/domain"
)

// --- 测试成员管理 ---

func TestRoom_Join_FirstMemberSetsSharedURL(t *testing.T) {
	// Arrange
	room := domain.NewRoom("AB12C9")

	// Act: 首位成员携带初始 URL 加入
	first := room.Join(domain.RoomUser{ID: "conn-1", UserName: "Alice"}, "https://example.com/ch1")

	// Assert
	assert.True(t, first, "首位成员的 join 应返回 first=true")
	assert.Equal(t, "https://example.com/ch1", room.SharedURL())

	// Act: 第二位成员携带不同的 URL 加入
	first = room.Join(domain.RoomUser{ID: "conn-2", UserName: "Bob"}, "https://example.com/other")

	// Assert: 后来者的 URL 被忽略
	assert.False(t, first, "非首位成员的 join 应返回 first=false")
	assert.Equal(t, "https://example.com/ch1", room.SharedURL(), "后来者携带的 URL 不应覆盖共享 URL")
}

func TestRoom_Users_PreservesJoinOrder(t *testing.T) {
	room := domain.NewRoom("AB12C9")
	room.Join(domain.RoomUser{ID: "c1", UserName: "Alice"}, "")
	room.Join(domain.RoomUser{ID: "c2", UserName: "Bob"}, "")
	room.Join(domain.RoomUser{ID: "c3", UserName: "Carol"}, "")

	users := room.Users()
	require.Len(t, users, 3)
	assert.Equal(t, "Alice", users[0].UserName)
	assert.Equal(t, "Bob", users[1].UserName)
	assert.Equal(t, "Carol", users[2].UserName)
}

func TestRoom_Leave_IsIdempotent(t *testing.T) {
	room := domain.NewRoom("AB12C9")
	room.Join(domain.RoomUser{ID: "c1", UserName: "Alice"}, "")

	user, ok := room.Leave("c1")
	assert.True(t, ok)
	assert.Equal(t, "Alice", user.UserName)
	assert.Equal(t, 0, room.UserCount())

	// 重复 leave 和陌生连接的 leave 都是无操作
	_, ok = room.Leave("c1")
	assert.False(t, ok, "重复 leave 应返回 ok=false")
	_, ok = room.Leave("never-joined")
	assert.False(t, ok, "非成员连接的 leave 应返回 ok=false")
}

// --- 测试聊天记录上限 ---

func TestRoom_AppendMessage_EvictsOldestBeyondCap(t *testing.T) {
	room := domain.NewRoom("AB12C9")

	// Act: 写入 120 条消息，上限是 100
	for i := 1; i <= 120; i++ {
		room.AppendMessage(domain.ChatMessage{
			ID:      fmt.Sprintf("msg-%d", i),
			Message: fmt.Sprintf("message %d", i),
		})
	}

	// Assert: 只保留最近 100 条，最旧的 20 条被淘汰
	assert.Equal(t, 100, room.MessageCount())
	all := room.RecentMessages(200)
	require.Len(t, all, 100)
	assert.Equal(t, "msg-21", all[0].ID, "最旧的保留消息应是第 21 条")
	assert.Equal(t, "msg-120", all[99].ID)
}

func TestRoom_RecentMessages_LimitsReplay(t *testing.T) {
	room := domain.NewRoom("AB12C9")
	for i := 1; i <= 80; i++ {
		room.AppendMessage(domain.ChatMessage{ID: fmt.Sprintf("msg-%d", i)})
	}

	recent := room.RecentMessages(50)
	require.Len(t, recent, 50)
	assert.Equal(t, "msg-31", recent[0].ID)
	assert.Equal(t, "msg-80", recent[49].ID)

	// 消息不足 limit 时返回全部
	small := domain.NewRoom("XY34Z8")
	small.AppendMessage(domain.ChatMessage{ID: "only"})
	assert.Len(t, small.RecentMessages(50), 1)
}

// --- 测试 reaction 开关语义 ---

func TestRoom_ToggleReaction_OnOffPerUser(t *testing.T) {
	room := domain.NewRoom("AB12C9")

	// Act: Alice 点亮 heart
	board := room.ToggleReaction("heart", "Alice")
	require.Contains(t, board, "heart")
	assert.Equal(t, 1, board["heart"].Count)
	assert.Equal(t, []string{"Alice"}, board["heart"].Users)
	assert.Equal(t, "❤️", board["heart"].Emoji)

	// Act: Bob 也点亮 heart
	board = room.ToggleReaction("heart", "Bob")
	assert.Equal(t, 2, board["heart"].Count)
	assert.Equal(t, []string{"Alice", "Bob"}, board["heart"].Users)

	// Act: Alice 再点一次，撤销
	board = room.ToggleReaction("heart", "Alice")
	assert.Equal(t, 1, board["heart"].Count)
	assert.Equal(t, []string{"Bob"}, board["heart"].Users)

	// Act: Bob 撤销，计数归零的条目整条删除
	board = room.ToggleReaction("heart", "Bob")
	assert.NotContains(t, board, "heart", "计数归零的 reaction 条目应被删除")
}

func TestRoom_ToggleReaction_CountMatchesUsers(t *testing.T) {
	room := domain.NewRoom("AB12C9")
	room.ToggleReaction("laugh", "Alice")
	room.ToggleReaction("laugh", "Bob")
	room.ToggleReaction("thumbsup", "Alice")

	for kind, state := range room.Reactions() {
		assert.Equal(t, len(state.Users), state.Count, "reaction %s 的计数应等于用户列表长度", kind)
		assert.Greater(t, state.Count, 0, "不应存在计数为零的 reaction 条目")
	}
}

func TestRoom_ToggleReaction_UnknownKindUsesDefaultEmoji(t *testing.T) {
	room := domain.NewRoom("AB12C9")
	board := room.ToggleReaction("confetti", "Alice")
	require.Contains(t, board, "confetti")
	assert.Equal(t, domain.DefaultReactionEmoji, board["confetti"].Emoji)
}

func TestRoom_Leave_StripsUserReactions(t *testing.T) {
	room := domain.NewRoom("AB12C9")
	room.Join(domain.RoomUser{ID: "c1", UserName: "Alice"}, "")
	room.Join(domain.RoomUser{ID: "c2", UserName: "Bob"}, "")
	room.ToggleReaction("heart", "Alice")
	room.ToggleReaction("heart", "Bob")
	room.ToggleReaction("sad", "Alice")

	// Act: Alice 离开
	_, ok := room.Leave("c1")
	require.True(t, ok)

	// Assert: Alice 的 reaction 被撤销，Bob 的保留
	board := room.Reactions()
	require.Contains(t, board, "heart")
	assert.Equal(t, []string{"Bob"}, board["heart"].Users)
	assert.NotContains(t, board, "sad", "只剩 Alice 的条目应随她离开一并删除")
}
