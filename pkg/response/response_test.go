package response

import (
	"testing"
	"time"

	"persona-market/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterPersonaInfo(t *testing.T) {
	now := time.Now()
	p := &model.Persona{
		ID:         1,
		UUID:       "p-uuid",
		Name:       "Elara",
		Avatar:     "https://cdn.example.com/elara.png",
		AvatarRel:  &model.PersonaAvatar{PersonaUUID: "p-uuid", Base64: "aW5saW5l"},
		AuthorUUID: "a-uuid",
		Author:     &model.User{UUID: "a-uuid", Username: "alice", Nickname: "Alice"},
		CreateTime: now,
	}

	info := FilterPersonaInfo(p)
	require.NotNil(t, info)
	// 内联头像优先于URL
	assert.Equal(t, "aW5saW5l", info.Avatar)
	require.NotNil(t, info.AuthorNickname)
	assert.Equal(t, "Alice", *info.AuthorNickname)
	require.NotNil(t, info.AuthorUsername)
	assert.Equal(t, "alice", *info.AuthorUsername)
	require.NotNil(t, info.CreateTime)
	assert.Equal(t, now.Format(time.RFC3339), *info.CreateTime)
	// 零值时间序列化为null
	assert.Nil(t, info.UpdateTime)
}

func TestFilterPersonaInfoWithoutAuthor(t *testing.T) {
	p := &model.Persona{UUID: "p-uuid", Name: "Orphan"}

	info := FilterPersonaInfo(p)
	require.NotNil(t, info)
	assert.Nil(t, info.AuthorNickname)
	assert.Nil(t, info.AuthorUsername)
	assert.Empty(t, info.Avatar)
}

func TestFilterUserInfoHidesSensitiveFields(t *testing.T) {
	u := &model.User{
		UUID:           "a-uuid",
		Email:          "alice@example.com",
		Username:       "alice",
		Nickname:       "Alice",
		HashedPassword: "$2a$10$hash",
	}

	info := FilterUserInfo(u)
	require.NotNil(t, info)
	assert.Equal(t, "alice", info.Username)
	// 视图结构体不包含密码哈希字段，这里仅验证空值透传
	assert.Nil(t, FilterUserInfo(nil))
}

func TestFilterAuthorInfo(t *testing.T) {
	u := &model.User{
		UUID:           "a-uuid",
		Email:          "alice@example.com",
		Username:       "alice",
		Nickname:       "Alice",
		HashedPassword: "$2a$10$hash",
	}

	info := FilterAuthorInfo(u)
	require.NotNil(t, info)
	assert.Equal(t, "a-uuid", info.UUID)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, "Alice", info.Nickname)

	// 昵称为空时回落为用户名
	u.Nickname = ""
	info = FilterAuthorInfo(u)
	assert.Equal(t, "alice", info.Nickname)

	assert.Nil(t, FilterAuthorInfo(nil))
}

func TestFilterPersonaList(t *testing.T) {
	items := FilterPersonaList([]*model.Persona{{Name: "A"}, {Name: "B"}})
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].Name)

	assert.NotNil(t, FilterPersonaList(nil))
	assert.Empty(t, FilterPersonaList(nil))
}
