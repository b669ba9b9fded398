package repository

import (
	"errors"
	"fmt"

	"persona-market/internal/model"
	"persona-market/pkg/apperror"
	"persona-market/pkg/avatar"
	"persona-market/pkg/tags"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PersonaCreate 创建人设的入参
type PersonaCreate struct {
	Name        string
	Title       string
	Avatar      string // URL或内联Base64，由头像分类逻辑路由存储
	Content     string
	Description string
	Tags        string // 逗号分隔
	ExtData     model.JSONMap
	AuthorUUID  string
}

// PersonaUpdate 更新人设的入参
// nil表示该字段未出现在补丁中，保持原值不变
type PersonaUpdate struct {
	Name        *string
	Title       *string
	Avatar      *string
	Content     *string
	Description *string
	Tags        *string
	ExtData     *model.JSONMap
}

// PersonaSearch 搜索人设的入参，条件之间为AND关系
type PersonaSearch struct {
	Keyword    string // 在名称/描述/内容中模糊匹配
	Tags       string // 逗号分隔，所有标签都必须命中
	AuthorUUID string // 作者精确匹配
	Skip       int
	Limit      int
}

// AuthorEntry 作者条目（去重后的作者列表）
type AuthorEntry struct {
	UUID     string `json:"uuid"`
	Nickname string `json:"nickname"`
}

// AuthorStat 作者统计条目
type AuthorStat struct {
	UUID     string `json:"uuid"`
	Nickname string `json:"nickname"`
	Count    int64  `json:"count"`
}

// TagStat 标签统计条目
type TagStat struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// PersonaRepository 人设数据仓储
type PersonaRepository struct {
	db *gorm.DB
}

// NewPersonaRepository 创建PersonaRepository实例
func NewPersonaRepository(db *gorm.DB) *PersonaRepository {
	return &PersonaRepository{db: db}
}

// conflictOnDuplicate 将唯一键冲突翻译为业务冲突错误
func conflictOnDuplicate(err error, message string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Conflict(message)
	}
	return err
}

// Create 创建人设
// 写前检查名称是否重复（唯一索引兜底并发窗口）；UUID服务端生成
// URL头像直接存avatar列，内联头像写入persona_avatar子记录
func (r *PersonaRepository) Create(in *PersonaCreate) (*model.Persona, error) {
	p := &model.Persona{
		UUID:        uuid.NewString(),
		Name:        in.Name,
		Title:       in.Title,
		Content:     in.Content,
		Description: in.Description,
		Tags:        tags.Canonicalize(in.Tags),
		ExtData:     in.ExtData,
		AuthorUUID:  in.AuthorUUID,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		// 写前检查名称重复
		var count int64
		if err := tx.Model(&model.Persona{}).Where("name = ?", in.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperror.Conflict(fmt.Sprintf("人设名称 '%s' 已存在", in.Name))
		}

		// URL头像直接落在实体上
		if avatar.Classify(in.Avatar) == avatar.KindRemote {
			p.Avatar = in.Avatar
		}

		if err := tx.Create(p).Error; err != nil {
			return conflictOnDuplicate(err, fmt.Sprintf("人设名称 '%s' 已存在", in.Name))
		}

		// 内联头像写入子记录
		if avatar.Classify(in.Avatar) == avatar.KindInline {
			rel := &model.PersonaAvatar{PersonaUUID: p.UUID, Base64: in.Avatar}
			if err := tx.Create(rel).Error; err != nil {
				return err
			}
		}

		return r.replaceTags(tx, p.UUID, p.Tags)
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(p.ID)
}

// GetByID 根据ID获取人设，作者与内联头像一并预加载（避免N+1查询）
func (r *PersonaRepository) GetByID(id uint) (*model.Persona, error) {
	var p model.Persona
	err := r.db.Preload("Author").Preload("AvatarRel").First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("人设", id)
		}
		return nil, err
	}
	return &p, nil
}

// List 分页获取人设列表
// 按id升序（即创建顺序）保证分页稳定
func (r *PersonaRepository) List(skip, limit int) ([]*model.Persona, error) {
	var items []*model.Persona
	err := r.db.Preload("Author").Preload("AvatarRel").
		Order("id ASC").
		Offset(skip).Limit(limit).
		Find(&items).Error
	return items, err
}

// Total 全量人设总数
func (r *PersonaRepository) Total() (int64, error) {
	var total int64
	err := r.db.Model(&model.Persona{}).Count(&total).Error
	return total, err
}

// buildSearchQuery 构建搜索过滤条件（不含分页与预加载）
// 标签筛选走persona_tag关联表按token精确匹配，要求全部命中（AND语义）
func (r *PersonaRepository) buildSearchQuery(s *PersonaSearch) *gorm.DB {
	q := r.db.Model(&model.Persona{})

	if s.Keyword != "" {
		kw := "%" + s.Keyword + "%"
		q = q.Where("name LIKE ? OR description LIKE ? OR content LIKE ?", kw, kw, kw)
	}

	if tokens := tags.Parse(s.Tags); len(tokens) > 0 {
		sub := r.db.Model(&model.PersonaTag{}).
			Select("persona_uuid").
			Where("tag IN ?", tokens).
			Group("persona_uuid").
			Having("COUNT(DISTINCT tag) = ?", len(tokens))
		q = q.Where("uuid IN (?)", sub)
	}

	if s.AuthorUUID != "" {
		q = q.Where("author_uuid = ?", s.AuthorUUID)
	}

	return q
}

// Search 搜索人设，返回命中的分页结果与同条件下的总数
func (r *PersonaRepository) Search(s *PersonaSearch) ([]*model.Persona, int64, error) {
	var total int64
	if err := r.buildSearchQuery(s).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []*model.Persona
	err := r.buildSearchQuery(s).
		Preload("Author").Preload("AvatarRel").
		Order("id ASC").
		Offset(s.Skip).Limit(s.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// ListByAuthor 根据作者UUID分页获取人设，返回同条件总数
func (r *PersonaRepository) ListByAuthor(authorUUID string, skip, limit int) ([]*model.Persona, int64, error) {
	var total int64
	if err := r.db.Model(&model.Persona{}).Where("author_uuid = ?", authorUUID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []*model.Persona
	err := r.db.Preload("Author").Preload("AvatarRel").
		Where("author_uuid = ?", authorUUID).
		Order("id ASC").
		Offset(skip).Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// ListByTags 根据标签获取人设（AND语义），只返回列表不返回总数
func (r *PersonaRepository) ListByTags(tagsCsv string, skip, limit int) ([]*model.Persona, error) {
	var items []*model.Persona
	err := r.buildSearchQuery(&PersonaSearch{Tags: tagsCsv}).
		Preload("Author").Preload("AvatarRel").
		Order("id ASC").
		Offset(skip).Limit(limit).
		Find(&items).Error
	return items, err
}

// Update 更新人设
// 补丁中未出现的字段保持不变；名称变更时检查重复
// 头像按类型路由：内联写子记录并清空URL，URL写实体并删除子记录
func (r *PersonaRepository) Update(id uint, patch *PersonaUpdate) (*model.Persona, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var p model.Persona
		if err := tx.Preload("AvatarRel").First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("人设", id)
			}
			return err
		}

		// 名称变更时检查重复（排除自身）
		if patch.Name != nil && *patch.Name != p.Name {
			var count int64
			if err := tx.Model(&model.Persona{}).
				Where("name = ? AND id <> ?", *patch.Name, id).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return apperror.Conflict(fmt.Sprintf("人设名称 '%s' 已存在", *patch.Name))
			}
		}

		updates := make(map[string]interface{})
		if patch.Name != nil {
			updates["name"] = *patch.Name
		}
		if patch.Title != nil {
			updates["title"] = *patch.Title
		}
		if patch.Content != nil {
			updates["content"] = *patch.Content
		}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		if patch.ExtData != nil {
			updates["ext_data"] = *patch.ExtData
		}

		// 头像字段出现在补丁中才处理，缺席则保持现状
		if patch.Avatar != nil {
			value := *patch.Avatar
			if avatar.Classify(value) == avatar.KindInline {
				// 内联头像：清空URL，子记录存在则原地更新，否则新建
				updates["avatar"] = ""
				if p.AvatarRel != nil {
					if err := tx.Model(p.AvatarRel).Update("base64", value).Error; err != nil {
						return err
					}
				} else {
					rel := &model.PersonaAvatar{PersonaUUID: p.UUID, Base64: value}
					if err := tx.Create(rel).Error; err != nil {
						return err
					}
				}
			} else {
				// URL头像（或清空）：写实体字段，删除遗留的内联子记录
				updates["avatar"] = value
				if p.AvatarRel != nil {
					if err := tx.Delete(p.AvatarRel).Error; err != nil {
						return err
					}
				}
			}
		}

		if patch.Tags != nil {
			canonical := tags.Canonicalize(*patch.Tags)
			updates["tags"] = canonical
			if err := r.replaceTags(tx, p.UUID, canonical); err != nil {
				return err
			}
		}

		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&p).Updates(updates).Error; err != nil {
			name := p.Name
			if patch.Name != nil {
				name = *patch.Name
			}
			return conflictOnDuplicate(err, fmt.Sprintf("人设名称 '%s' 已存在", name))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(id)
}

// Delete 删除人设，返回删除前的快照
// 内联头像与标签关联一并清理，避免孤儿记录
func (r *PersonaRepository) Delete(id uint) (*model.Persona, error) {
	snapshot, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("persona_uuid = ?", snapshot.UUID).Delete(&model.PersonaAvatar{}).Error; err != nil {
			return err
		}
		if err := tx.Where("persona_uuid = ?", snapshot.UUID).Delete(&model.PersonaTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Persona{}, id).Error
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// IncrementView 增加人设浏览量
// 访问者为作者本人时不计数（自浏览不算浏览）
// 计数使用单条原子UPDATE，避免并发下的丢失更新
func (r *PersonaRepository) IncrementView(id uint, viewerUUID string) (*model.Persona, error) {
	p, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	if viewerUUID != "" && viewerUUID == p.AuthorUUID {
		return p, nil
	}

	// UpdateColumn 不触发update_time：浏览不是编辑
	err = r.db.Model(&model.Persona{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
	if err != nil {
		return nil, err
	}

	return r.GetByID(id)
}

// Authors 获取所有不重复的作者列表（UUID与昵称）
// 昵称为空时回落为 "Unknown"
func (r *PersonaRepository) Authors() ([]AuthorEntry, error) {
	var entries []AuthorEntry
	err := r.db.Model(&model.Persona{}).
		Distinct("persona.author_uuid AS uuid, user.nickname AS nickname").
		Joins("JOIN user ON persona.author_uuid = user.uuid").
		Where("persona.author_uuid <> ''").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}

	for i := range entries {
		if entries[i].Nickname == "" {
			entries[i].Nickname = "Unknown"
		}
	}
	return entries, nil
}

// AllTags 获取全量去重标签列表，按字典序排序
func (r *PersonaRepository) AllTags() ([]string, error) {
	var result []string
	err := r.db.Model(&model.PersonaTag{}).
		Distinct("tag").
		Order("tag ASC").
		Pluck("tag", &result).Error
	return result, err
}

// TagStats 统计每个标签的使用次数，按次数降序（同次数按标签名升序，保证确定性）
func (r *PersonaRepository) TagStats() ([]TagStat, error) {
	var stats []TagStat
	err := r.db.Model(&model.PersonaTag{}).
		Select("tag, COUNT(*) AS count").
		Group("tag").
		Order("count DESC, tag ASC").
		Scan(&stats).Error
	return stats, err
}

// AuthorStats 统计每个作者的人设数量
func (r *PersonaRepository) AuthorStats() ([]AuthorStat, error) {
	var stats []AuthorStat
	err := r.db.Model(&model.Persona{}).
		Select("persona.author_uuid AS uuid, user.nickname AS nickname, COUNT(persona.id) AS count").
		Joins("JOIN user ON persona.author_uuid = user.uuid").
		Where("persona.author_uuid <> ''").
		Group("persona.author_uuid, user.nickname").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}

	for i := range stats {
		if stats[i].Nickname == "" {
			stats[i].Nickname = "Unknown"
		}
	}
	return stats, nil
}

// TopAuthors 获取创作数量最多的作者，limit限制在1..50
func (r *PersonaRepository) TopAuthors(limit int) ([]AuthorStat, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}

	var stats []AuthorStat
	err := r.db.Model(&model.Persona{}).
		Select("persona.author_uuid AS uuid, user.nickname AS nickname, COUNT(persona.id) AS count").
		Joins("JOIN user ON persona.author_uuid = user.uuid").
		Where("persona.author_uuid <> ''").
		Group("persona.author_uuid, user.nickname").
		Order("count DESC").
		Limit(limit).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}

	for i := range stats {
		if stats[i].Nickname == "" {
			stats[i].Nickname = "Unknown"
		}
	}
	return stats, nil
}

// GetAvatar 获取人设的内联头像Base64
func (r *PersonaRepository) GetAvatar(personaUUID string) (string, error) {
	var rel model.PersonaAvatar
	err := r.db.Where("persona_uuid = ?", personaUUID).First(&rel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperror.NotFound("人设头像", personaUUID)
		}
		return "", err
	}
	return rel.Base64, nil
}

// GetByUUID 根据UUID获取人设（浏览量排行回查用）
func (r *PersonaRepository) GetByUUID(personaUUID string) (*model.Persona, error) {
	var p model.Persona
	err := r.db.Preload("Author").Preload("AvatarRel").
		Where("uuid = ?", personaUUID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("人设", personaUUID)
		}
		return nil, err
	}
	return &p, nil
}

// replaceTags 重建人设的标签关联（先删后插）
func (r *PersonaRepository) replaceTags(tx *gorm.DB, personaUUID, canonical string) error {
	if err := tx.Where("persona_uuid = ?", personaUUID).Delete(&model.PersonaTag{}).Error; err != nil {
		return err
	}

	tokens := tags.Parse(canonical)
	if len(tokens) == 0 {
		return nil
	}

	rels := make([]model.PersonaTag, 0, len(tokens))
	for _, token := range tokens {
		rels = append(rels, model.PersonaTag{PersonaUUID: personaUUID, Tag: token})
	}
	return tx.Create(&rels).Error
}
