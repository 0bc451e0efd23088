package domain

// ReactionState 是某个 reaction 类型在房间内的聚合视图。
// Count 恒等于 len(Users)；Users 按首次点亮的顺序排列。
type ReactionState struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// ReactionBoard 是房间完整的 reaction 快照，按类型索引。
// 约定：count 为 0 的类型不会出现在 board 中（缺失即为零）。
type ReactionBoard map[string]ReactionState

// reactionEmojis 是固定的类型 → emoji 查找表，静态配置而非房间状态。
var reactionEmojis = map[string]string{
	"heart":    "❤️",
	"laugh":    "😂",
	"thumbsup": "👍",
	"angry":    "😡",
	"sad":      "😢",
}

// DefaultReactionEmoji 是未知 reaction 类型的回退符号。
const DefaultReactionEmoji = "✨"

// EmojiFor 返回 reaction 类型对应的 emoji，未知类型返回默认符号。
func EmojiFor(kind string) string {
	if emoji, ok := reactionEmojis[kind]; ok {
		return emoji
	}
	return DefaultReactionEmoji
}
