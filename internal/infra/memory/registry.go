package memory

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/johna108/Comic-Sync/internal/domain"
	"github.com/johna108/Comic-Sync/internal/repository"
)

// Registry 是 repository.RoomRegistry 的进程内实现。
// 一把读写锁保护整个 map：房间的创建/删除频率远低于房间内部的操作，
// 粗粒度的串行化在这里足够（房间内部状态由 Room 自己的锁保护）。
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

// NewRegistry 创建一个空的房间注册表。
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*domain.Room)}
}

// GetOrCreate 返回指定 code 的房间，不存在时创建。
// 整个查找-创建在注册表锁内完成，两个并发的 join 一定落进同一个房间。
func (r *Registry) GetOrCreate(code string) (*domain.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[code]; ok {
		return room, false
	}
	room := domain.NewRoom(code)
	r.rooms[code] = room
	logrus.WithField("room_code", code).Info("Room created in registry")
	return room, true
}

// Get 返回指定 code 的房间，不存在时返回 repository.ErrRoomNotFound。
func (r *Registry) Get(code string) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return room, nil
}

// Exists 检查 code 是否对应一个存活的房间。
func (r *Registry) Exists(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[code]
	return ok
}

// RemoveIfEmpty 在房间成员数为零时删除房间，返回是否删除。
// 成员数的检查和删除都在注册表锁内，避免与并发 join 竞争：
// join 必须先经过 GetOrCreate 拿到房间，再进入 Room 锁。
func (r *Registry) RemoveIfEmpty(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[code]
	if !ok || room.UserCount() > 0 {
		return false
	}
	delete(r.rooms, code)
	logrus.WithField("room_code", code).Info("Empty room removed from registry")
	return true
}

// Codes 返回当前所有存活房间的 code。
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	return codes
}

// Count 返回存活房间数量。
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
