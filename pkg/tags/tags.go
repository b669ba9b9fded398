package tags

import (
	"sort"
	"strings"
)

// 标签的规范序列化形式为逗号连接的字符串，如 "fantasy,dragon"
// 解析时去除空白并丢弃空token，保持原始顺序

// Parse 解析逗号分隔的标签字符串为token列表
// 去除首尾空白，丢弃空token，保序去重
func Parse(csv string) []string {
	if csv == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var result []string
	for _, part := range strings.Split(csv, ",") {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		result = append(result, token)
	}
	return result
}

// Join 将token列表连接为规范字符串
func Join(tokens []string) string {
	return strings.Join(tokens, ",")
}

// Canonicalize 将任意标签字符串归一化为规范形式
func Canonicalize(csv string) string {
	return Join(Parse(csv))
}

// SortedUnique 去重并按字典序排序（用于全量标签列表）
func SortedUnique(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	var result []string
	for _, token := range tokens {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		result = append(result, token)
	}
	sort.Strings(result)
	return result
}
