package repository

import (
	"fmt"
	"testing"

	"persona-market/internal/model"
	"persona-market/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inlineAvatar = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAAB" // 非URL即视为内联Base64

func seedPersona(t *testing.T, repo *PersonaRepository, authorUUID, name, tags string) *model.Persona {
	t.Helper()

	p, err := repo.Create(&PersonaCreate{
		Name:       name,
		Title:      name + " title",
		Content:    name + " content",
		Tags:       tags,
		AuthorUUID: authorUUID,
	})
	require.NoError(t, err)
	return p
}

func TestPersonaCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "alice@example.com", "alice", "Alice")
	repo := NewPersonaRepository(db)

	p, err := repo.Create(&PersonaCreate{
		Name:        "Elara",
		Title:       "森林女巫",
		Avatar:      "https://cdn.example.com/elara.png",
		Content:     "Elara is a forest witch",
		Description: "a witch persona",
		Tags:        " fantasy , magic ,, fantasy ",
		ExtData:     model.JSONMap{"rarity": "epic"},
		AuthorUUID:  author.UUID,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, p.UUID)
	assert.Equal(t, int64(0), p.ViewCount)
	// 标签规范化：去空白、去空项、去重
	assert.Equal(t, "fantasy,magic", p.Tags)
	// URL头像落在实体列上，无内联子记录
	assert.Equal(t, "https://cdn.example.com/elara.png", p.Avatar)
	assert.Nil(t, p.AvatarRel)
	assert.Equal(t, "https://cdn.example.com/elara.png", p.EffectiveAvatar())
	// 作者已预加载
	require.NotNil(t, p.Author)
	assert.Equal(t, "Alice", p.Author.Nickname)
	assert.Equal(t, "epic", p.ExtData["rarity"])

	got, err := repo.GetByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Elara", got.Name)
}

func TestPersonaGetNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewPersonaRepository(db)

	_, err := repo.GetByID(9999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPersonaDuplicateName(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "alice@example.com", "alice", "Alice")
	repo := NewPersonaRepository(db)

	seedPersona(t, repo, author.UUID, "Elara", "fantasy")

	_, err := repo.Create(&PersonaCreate{
		Name:       "Elara",
		Content:    "another one",
		AuthorUUID: author.UUID,
	})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestPersonaInlineAvatar(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "alice@example.com", "alice", "Alice")
	repo := NewPersonaRepository(db)

	p, err := repo.Create(&PersonaCreate{
		Name:       "Inline",
		Content:    "c",
		Avatar:     inlineAvatar,
		AuthorUUID: author.UUID,
	})
	require.NoError(t, err)

	// 内联头像走子记录，实体URL列保持为空
	assert.Empty(t, p.Avatar)
	require.NotNil(t, p.AvatarRel)
	assert.Equal(t, inlineAvatar, p.AvatarRel.Base64)
	assert.Equal(t, inlineAvatar, p.EffectiveAvatar())

	b64, err := repo.GetAvatar(p.UUID)
	require.NoError(t, err)
	assert.Equal(t, inlineAvatar, b64)
}

func TestPersonaAvatarTransition(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "alice@example.com", "alice", "Alice")
	repo := NewPersonaRepository(db)

	p, err := repo.Create(&PersonaCreate{
		Name:       "Shifty",
		Content:    "c",
		Avatar:     inlineAvatar,
		AuthorUUID: author.UUID,
	})
	require.NoError(t, err)

	// 内联 -> URL：写实体列，删除内联子记录
	url := "https://cdn.example.com/shifty.png"
	p, err = repo.Update(p.ID, &PersonaUpdate{Avatar: &url})
	require.NoError(t, err)
	assert.Equal(t, url, p.Avatar)
	assert.Nil(t, p.AvatarRel)

	_, err = repo.GetAvatar(p.UUID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// URL -> 内联：清空实体列，重建子记录
	inline := inlineAvatar
	p, err = repo.Update(p.ID, &PersonaUpdate{Avatar: &inline})
	require.NoError(t, err)
	assert.Empty(t, p.Avatar)
	require.NotNil(t, p.AvatarRel)
	assert.Equal(t, inlineAvatar, p.AvatarRel.Base64)
}

func TestPersonaUpdatePatchSemantics(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "alice@example.com", "alice", "Alice")
	repo := NewPersonaRepository(db)

	p := seedPersona(t, repo, author.UUID, "Patchy", "fantasy,magic")

	// 只改标题，其他字段保持不变
	title := "新标题"
	updated, err := repo.Update(p.ID, &PersonaUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "新标题", updated.Title)
	assert.Equal(t, "Patchy", updated.Name)
	assert.Equal(t, "fantasy,magic", updated.Tags)

	// 改名撞上已有名称
	seedPersona(t, repo, author.UUID, "Taken", "")
	taken := "Taken"
	_, err = repo.Update(p.ID, &PersonaUpdate{Name: &taken})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	// 更新不存在的人设
	_, err = repo.Update(9999, &PersonaUpdate{Title: &title})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPersonaUpdateTags(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "alice@example.com", "alice", "Alice")
	repo := NewPersonaRepository(db)

	p := seedPersona(t, repo, author.UUID, "Tagged", "fantasy,magic")

	newTags := " scifi , robot "
	updated, err := repo.Update(p.ID, &PersonaUpdate{Tags: &newTags})
	require.NoError(t, err)
	assert.Equal(t, "scifi,robot", updated.Tags)

	// 关联表同步重建：旧标签不再出现
	all, err := repo.AllTags()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"scifi", "robot"}, all)
}

func TestPersonaListPagination(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "alice@example.com", "alice", "Alice")
	repo := NewPersonaRepository(db)

	for i := 1; i <= 5; i++ {
		seedPersona(t, repo, author.UUID, fmt.Sprintf("P%d", i), "")
	}

	items, err := repo.List(2, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	// id升序分页稳定
	assert.Equal(t, "P3", items[0].Name)
	assert.Equal(t, "P4", items[1].Name)

	total, err := repo.Total()
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func TestPersonaSearch(t *testing.T) {
	db := newTestDB(t)
	alice := seedUser(t, db, "alice@example.com", "alice", "Alice")
	bob := seedUser(t, db, "bob@example.com", "bob", "Bob")
	repo := NewPersonaRepository(db)

	seedPersona(t, repo, alice.UUID, "Forest Witch", "fantasy,magic")
	seedPersona(t, repo, alice.UUID, "Space Pilot", "scifi")
	seedPersona(t, repo, bob.UUID, "Cart Vendor", "cart")

	// 关键词在名称/描述/内容中模糊匹配
	items, total, err := repo.Search(&PersonaSearch{Keyword: "Witch", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "Forest Witch", items[0].Name)

	// 多标签AND语义：必须全部命中
	items, total, err = repo.Search(&PersonaSearch{Tags: "fantasy,magic", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "Forest Witch", items[0].Name)

	// token精确匹配："art" 不命中标签 "cart"
	_, total, err = repo.Search(&PersonaSearch{Tags: "art", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	// 按作者过滤
	items, total, err = repo.Search(&PersonaSearch{AuthorUUID: bob.UUID, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Cart Vendor", items[0].Name)

	// 组合条件：关键词+作者
	_, total, err = repo.Search(&PersonaSearch{Keyword: "Witch", AuthorUUID: bob.UUID, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestPersonaListByAuthorAndTags(t *testing.T) {
	db := newTestDB(t)
	alice := seedUser(t, db, "alice@example.com", "alice", "Alice")
	repo := NewPersonaRepository(db)

	seedPersona(t, repo, alice.UUID, "A", "fantasy")
	seedPersona(t, repo, alice.UUID, "B", "fantasy,magic")

	items, total, err := repo.ListByAuthor(alice.UUID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	byTags, err := repo.ListByTags("fantasy,magic", 0, 10)
	require.NoError(t, err)
	require.Len(t, byTags, 1)
	assert.Equal(t, "B", byTags[0].Name)
}

func TestPersonaIncrementView(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "alice@example.com", "alice", "Alice")
	repo := NewPersonaRepository(db)

	p := seedPersona(t, repo, author.UUID, "Viewed", "")

	// 匿名浏览 +1
	got, err := repo.IncrementView(p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ViewCount)

	// 其他用户浏览 +1
	got, err = repo.IncrementView(p.ID, "someone-else")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ViewCount)

	// 作者本人浏览不计数
	got, err = repo.IncrementView(p.ID, author.UUID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ViewCount)
}

func TestPersonaDelete(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "alice@example.com", "alice", "Alice")
	repo := NewPersonaRepository(db)

	p, err := repo.Create(&PersonaCreate{
		Name:       "Doomed",
		Content:    "c",
		Avatar:     inlineAvatar,
		Tags:       "gone",
		AuthorUUID: author.UUID,
	})
	require.NoError(t, err)

	snapshot, err := repo.Delete(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Doomed", snapshot.Name)

	_, err = repo.GetByID(p.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// 内联头像与标签关联一并清理
	var avatarCount, tagCount int64
	require.NoError(t, db.Model(&model.PersonaAvatar{}).Where("persona_uuid = ?", p.UUID).Count(&avatarCount).Error)
	require.NoError(t, db.Model(&model.PersonaTag{}).Where("persona_uuid = ?", p.UUID).Count(&tagCount).Error)
	assert.Zero(t, avatarCount)
	assert.Zero(t, tagCount)
}

func TestTagAggregations(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "alice@example.com", "alice", "Alice")
	repo := NewPersonaRepository(db)

	seedPersona(t, repo, author.UUID, "A", "fantasy,magic")
	seedPersona(t, repo, author.UUID, "B", "fantasy")
	seedPersona(t, repo, author.UUID, "C", "scifi")

	all, err := repo.AllTags()
	require.NoError(t, err)
	// 去重后按字典序
	assert.Equal(t, []string{"fantasy", "magic", "scifi"}, all)

	stats, err := repo.TagStats()
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, TagStat{Tag: "fantasy", Count: 2}, stats[0])
	// 同次数按标签名升序
	assert.Equal(t, TagStat{Tag: "magic", Count: 1}, stats[1])
	assert.Equal(t, TagStat{Tag: "scifi", Count: 1}, stats[2])
}

func TestAuthorAggregations(t *testing.T) {
	db := newTestDB(t)
	alice := seedUser(t, db, "alice@example.com", "alice", "Alice")
	noname := seedUser(t, db, "noname@example.com", "noname", "")
	repo := NewPersonaRepository(db)

	seedPersona(t, repo, alice.UUID, "A1", "")
	seedPersona(t, repo, alice.UUID, "A2", "")
	seedPersona(t, repo, alice.UUID, "A3", "")
	seedPersona(t, repo, noname.UUID, "N1", "")

	authors, err := repo.Authors()
	require.NoError(t, err)
	require.Len(t, authors, 2)
	// 昵称为空时回落为 Unknown
	byUUID := map[string]string{}
	for _, a := range authors {
		byUUID[a.UUID] = a.Nickname
	}
	assert.Equal(t, "Alice", byUUID[alice.UUID])
	assert.Equal(t, "Unknown", byUUID[noname.UUID])

	stats, err := repo.AuthorStats()
	require.NoError(t, err)
	assert.Len(t, stats, 2)

	top, err := repo.TopAuthors(1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, alice.UUID, top[0].UUID)
	assert.Equal(t, int64(3), top[0].Count)
}

func TestTopAuthorsLimit(t *testing.T) {
	db := newTestDB(t)
	alice := seedUser(t, db, "alice@example.com", "alice", "Alice")
	bob := seedUser(t, db, "bob@example.com", "bob", "Bob")
	carol := seedUser(t, db, "carol@example.com", "carol", "Carol")
	repo := NewPersonaRepository(db)

	seedPersona(t, repo, alice.UUID, "A1", "")
	seedPersona(t, repo, alice.UUID, "A2", "")
	seedPersona(t, repo, alice.UUID, "A3", "")
	seedPersona(t, repo, bob.UUID, "B1", "")
	seedPersona(t, repo, bob.UUID, "B2", "")
	seedPersona(t, repo, carol.UUID, "C1", "")

	// limit=2 只返回前两名，按数量降序
	top, err := repo.TopAuthors(2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, alice.UUID, top[0].UUID)
	assert.Equal(t, int64(3), top[0].Count)
	assert.Equal(t, bob.UUID, top[1].UUID)
	assert.Equal(t, int64(2), top[1].Count)

	// 非法limit收敛到下界1
	top, err = repo.TopAuthors(0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, alice.UUID, top[0].UUID)

	// 上界50：大于作者总数时返回全部
	top, err = repo.TopAuthors(100)
	require.NoError(t, err)
	assert.Len(t, top, 3)
}

func TestGetByUUID(t *testing.T) {
	db := newTestDB(t)
	author := seedUser(t, db, "alice@example.com", "alice", "Alice")
	repo := NewPersonaRepository(db)

	p := seedPersona(t, repo, author.UUID, "ByUUID", "")

	got, err := repo.GetByUUID(p.UUID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = repo.GetByUUID("missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
