package redis

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// 浏览量排行相关常量
const (
	// ViewRankKey 人设浏览量排行的有序集合key
	ViewRankKey = "persona:views:rank"
)

// RankEntry 排行条目
type RankEntry struct {
	PersonaUUID string  // 人设UUID
	Views       float64 // 缓存中的浏览次数
}

// IncrementViewRank 累加人设在排行中的浏览计数
// 使用ZINCRBY原子累加；Redis未启用时静默跳过（排行是尽力而为的缓存）
func IncrementViewRank(personaUUID string) error {
	if client == nil {
		return nil
	}

	err := client.ZIncrBy(ctx, ViewRankKey, 1, personaUUID).Err()
	if err != nil {
		return fmt.Errorf("累加浏览量排行失败: %w", err)
	}
	return nil
}

// TopViewed 获取浏览量最高的前limit个人设UUID
func TopViewed(limit int) ([]RankEntry, error) {
	if client == nil {
		return nil, fmt.Errorf("redis客户端未初始化")
	}
	if limit <= 0 {
		limit = 10
	}

	items, err := client.ZRevRangeWithScores(ctx, ViewRankKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("查询浏览量排行失败: %w", err)
	}

	entries := make([]RankEntry, 0, len(items))
	for _, item := range items {
		uuidStr, ok := item.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, RankEntry{PersonaUUID: uuidStr, Views: item.Score})
	}
	return entries, nil
}

// RemoveFromViewRank 从排行中移除人设（删除人设时调用）
func RemoveFromViewRank(personaUUID string) error {
	if client == nil {
		return nil
	}

	err := client.ZRem(ctx, ViewRankKey, personaUUID).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("移除浏览量排行失败: %w", err)
	}
	return nil
}
