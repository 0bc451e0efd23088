package memory_test // 测试包

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johna108/Comic-Sync/internal/domain"
	"github.com/johna108/Comic-Sync/internal/infra/memory"
	"github.com/johna108/Comic-Sync/internal/repository"
)

func TestRegistry_GetOrCreate(t *testing.T) {
	reg := memory.NewRegistry()

	room, created := reg.GetOrCreate("AB12C9")
	require.NotNil(t, room)
	assert.True(t, created, "首次 GetOrCreate 应创建房间")

	again, created := reg.GetOrCreate("AB12C9")
	assert.False(t, created, "二次 GetOrCreate 不应重复创建")
	assert.Same(t, room, again, "同一 code 应返回同一个房间实例")
	assert.Equal(t, 1, reg.Count())
}

func TestRegistry_Get_UnknownRoom(t *testing.T) {
	reg := memory.NewRegistry()
	_, err := reg.Get("NOPE99")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
	assert.False(t, reg.Exists("NOPE99"))
}

func TestRegistry_RemoveIfEmpty(t *testing.T) {
	reg := memory.NewRegistry()
	room, _ := reg.GetOrCreate("AB12C9")
	room.Join(domain.RoomUser{ID: "c1", UserName: "Alice"}, "")

	// 房间非空时不删除
	assert.False(t, reg.RemoveIfEmpty("AB12C9"), "有成员的房间不应被删除")
	assert.True(t, reg.Exists("AB12C9"))

	// 最后一位成员离开后立即可删
	room.Leave("c1")
	assert.True(t, reg.RemoveIfEmpty("AB12C9"))
	assert.False(t, reg.Exists("AB12C9"))

	// 对不存在的房间是无操作
	assert.False(t, reg.RemoveIfEmpty("AB12C9"))
}

// 并发 join 同一个 code 时，所有人必须落进同一个房间，
// 且只有一个人的初始 URL 成为共享 URL。
func TestRegistry_ConcurrentJoinsLandInSameRoom(t *testing.T) {
	reg := memory.NewRegistry()
	const workers = 32

	var wg sync.WaitGroup
	rooms := make([]*domain.Room, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room, _ := reg.GetOrCreate("AB12C9")
			room.Join(
				domain.RoomUser{ID: fmt.Sprintf("conn-%d", i), UserName: fmt.Sprintf("user-%d", i)},
				fmt.Sprintf("https://example.com/%d", i),
			)
			rooms[i] = room
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, reg.Count(), "并发创建不应产生多个房间")
	room, err := reg.Get("AB12C9")
	require.NoError(t, err)
	for i := 1; i < workers; i++ {
		assert.Same(t, rooms[0], rooms[i])
	}
	assert.Equal(t, workers, room.UserCount())
	assert.NotEmpty(t, room.SharedURL(), "必须有一个初始 URL 胜出")
}
