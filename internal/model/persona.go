package model

import (
	"time"

	"persona-market/pkg/avatar"
)

// Persona 人设模型
// name 全局唯一（唯一索引兜底写前检查的竞态窗口）
// tags 为规范的逗号分隔字符串（展示用序列化），查询走 PersonaTag 关联表
// avatar 仅存远程URL；内联Base64头像存于一对一的 PersonaAvatar

type Persona struct {
	ID          uint    `gorm:"primaryKey"`
	UUID        string  `gorm:"type:varchar(36);not null;uniqueIndex;comment:人设UUID"`
	ViewCount   int64   `gorm:"not null;default:0;comment:浏览量"`
	Name        string  `gorm:"type:varchar(255);not null;uniqueIndex;comment:人设名称"`
	Title       string  `gorm:"type:varchar(255);comment:人设标题"`
	Avatar      string  `gorm:"type:text;comment:头像URL"`
	Content     string  `gorm:"type:text;comment:人设内容"`
	Description string  `gorm:"type:text;comment:人设描述"`
	Tags        string  `gorm:"type:varchar(255);comment:标签列表(逗号分隔)"`
	ExtData     JSONMap `gorm:"type:json;comment:扩展数据"`
	AuthorUUID  string  `gorm:"type:varchar(36);not null;index;comment:作者UUID"`

	// 关系定义
	Author    *User          `gorm:"foreignKey:AuthorUUID;references:UUID"`
	AvatarRel *PersonaAvatar `gorm:"foreignKey:PersonaUUID;references:UUID;constraint:OnDelete:CASCADE"`
	TagRels   []PersonaTag   `gorm:"foreignKey:PersonaUUID;references:UUID;constraint:OnDelete:CASCADE"`

	CreateTime time.Time `gorm:"autoCreateTime;comment:创建时间"`
	UpdateTime time.Time `gorm:"autoUpdateTime;comment:更新时间"`
}

// TableName 指定表名
func (Persona) TableName() string { return "persona" }

// EffectiveAvatar 解析生效头像：内联Base64优先，其次URL，都没有返回空串
func (p *Persona) EffectiveAvatar() string {
	inline := ""
	if p.AvatarRel != nil {
		inline = p.AvatarRel.Base64
	}
	return avatar.Effective(inline, p.Avatar)
}

// AuthorNickname 作者昵称，作者未加载或昵称为空时返回空串
func (p *Persona) AuthorNickname() string {
	if p.Author == nil {
		return ""
	}
	return p.Author.Nickname
}

// AuthorUsername 作者用户名，作者未加载时返回空串
func (p *Persona) AuthorUsername() string {
	if p.Author == nil {
		return ""
	}
	return p.Author.Username
}

// PersonaAvatar 人设头像模型，存储Base64编码的头像
// 与Persona一对一（PersonaUUID唯一外键），与URL头像互斥：写入一方清除另一方
type PersonaAvatar struct {
	ID          uint   `gorm:"primaryKey"`
	PersonaUUID string `gorm:"type:varchar(36);not null;uniqueIndex;comment:人设UUID"`
	Base64      string `gorm:"type:mediumtext;not null;comment:Base64编码的头像"`
}

// TableName 指定表名
func (PersonaAvatar) TableName() string { return "persona_avatar" }

// PersonaTag 人设标签关联表
// 按token精确匹配做标签筛选，避免子串匹配的误命中（"art"不再命中"cart"）
type PersonaTag struct {
	ID          uint   `gorm:"primaryKey"`
	PersonaUUID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_persona_tag,priority:1;comment:人设UUID"`
	Tag         string `gorm:"type:varchar(255);not null;uniqueIndex:idx_persona_tag,priority:2;index;comment:标签token"`
}

// TableName 指定表名
func (PersonaTag) TableName() string { return "persona_tag" }
