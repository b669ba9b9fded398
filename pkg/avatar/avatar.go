package avatar

import "regexp"

// 头像取值有两种表示：远程URL 或 内联的Base64图片数据
// 同一时刻只有一种表示生效：写入URL会删除内联记录，写入内联数据会清空URL

// Kind 头像表示类型
type Kind int

const (
	// KindNone 无头像
	KindNone Kind = iota
	// KindRemote 远程URL引用
	KindRemote
	// KindInline 内联Base64数据
	KindInline
)

var remotePattern = regexp.MustCompile(`^https?://`)

// Classify 判断头像值的表示类型
// 以 http:// 或 https:// 开头视为远程URL，其余非空值视为内联数据
func Classify(value string) Kind {
	if value == "" {
		return KindNone
	}
	if remotePattern.MatchString(value) {
		return KindRemote
	}
	return KindInline
}

// IsRemote 是否为远程URL
func IsRemote(value string) bool {
	return Classify(value) == KindRemote
}

// Effective 解析生效头像
// 内联数据优先于URL（创建/更新逻辑保证两者不会同时存在，这里做兜底排序）
func Effective(inline, url string) string {
	if inline != "" {
		return inline
	}
	return url
}
