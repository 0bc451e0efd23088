package repository

import (
	"github.com/johna108/Comic-Sync/internal/domain"
)

// RoomRegistry 定义进程内房间注册表的操作。
// 注册表是房间状态的唯一权威（单进程、纯内存，不跨进程持久化），
// 实现必须保证 GetOrCreate 的"查找或创建"在并发下是原子的，
// 以避免两个同时到达的 join 各自创建一个房间。
type RoomRegistry interface {
	// GetOrCreate 返回指定 code 的房间，不存在时创建空房间。
	// created 表示本次调用是否真正创建了房间。
	GetOrCreate(code string) (room *domain.Room, created bool)

	// Get 返回指定 code 的房间。
	// 房间不存在时返回 ErrRoomNotFound。
	Get(code string) (*domain.Room, error)

	// Exists 检查 code 是否对应一个存活的房间。
	Exists(code string) bool

	// RemoveIfEmpty 在房间成员数为零时将其从注册表删除。
	// 返回是否执行了删除。非空房间不受影响。
	RemoveIfEmpty(code string) bool

	// Codes 返回当前所有存活房间的 code 列表。
	Codes() []string

	// Count 返回存活房间数量。
	Count() int
}
