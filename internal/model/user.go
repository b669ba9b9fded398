package model

import (
	"time"
)

// User 用户模型
// 唯一约束：邮箱唯一、用户名唯一、GitHub ID唯一（可空）
// 密码仅存储哈希（HashedPassword），纯OAuth账号没有密码哈希
// UUID 在创建时生成，全局唯一且不可变，作为对外标识和外键引用

type User struct {
	ID             uint    `gorm:"primaryKey"`
	UUID           string  `gorm:"type:varchar(36);not null;uniqueIndex;comment:用户UUID"`
	Email          string  `gorm:"type:varchar(255);not null;uniqueIndex;comment:邮箱"`
	Username       string  `gorm:"type:varchar(255);not null;uniqueIndex;comment:用户名"`
	Nickname       string  `gorm:"type:varchar(255);comment:昵称"`
	HashedPassword string  `gorm:"type:varchar(255);comment:密码哈希"`
	GithubID       *string `gorm:"type:varchar(255);uniqueIndex;comment:GitHub用户ID"`
	GithubUsername string  `gorm:"type:varchar(255);comment:GitHub用户名"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// 关系定义
	AvatarRel *AuthorAvatar `gorm:"foreignKey:UserUUID;references:UUID;constraint:OnDelete:CASCADE"`
	Personas  []Persona     `gorm:"foreignKey:AuthorUUID;references:UUID"`
}

// TableName 指定表名（全局配置使用单数表名）
func (User) TableName() string { return "user" }

// HasPassword 是否设置了密码（纯OAuth账号返回false）
func (u *User) HasPassword() bool {
	return u.HashedPassword != ""
}

// AuthorAvatar 作者头像模型，存储Base64编码的头像
// 与User一对一（UserUUID唯一外键），首次上传时惰性创建，之后原地更新
type AuthorAvatar struct {
	ID       uint   `gorm:"primaryKey"`
	UserUUID string `gorm:"type:varchar(36);not null;uniqueIndex;comment:用户UUID"`
	Base64   string `gorm:"type:mediumtext;not null;comment:Base64编码的头像"`
}

// TableName 指定表名
func (AuthorAvatar) TableName() string { return "author_avatar" }
