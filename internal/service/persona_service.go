package service

import (
	"errors"
	"strings"

	"persona-market/internal/model"
	"persona-market/internal/repository"
	"persona-market/pkg/apperror"
	"persona-market/pkg/logger"
	"persona-market/pkg/redis"

	"go.uber.org/zap"
)

// PersonaService 人设业务逻辑
// 浏览量排行走Redis有序集合，属尽力而为的缓存：Redis故障不影响主流程
type PersonaService struct {
	repo *repository.PersonaRepository
}

func NewPersonaService(repo *repository.PersonaRepository) *PersonaService {
	return &PersonaService{repo: repo}
}

// PersonaCreateInput 创建人设的入参
type PersonaCreateInput struct {
	Name        string
	Title       string
	Avatar      string
	Content     string
	Description string
	Tags        string
	ExtData     model.JSONMap
}

// PersonaUpdateInput 更新人设的入参，nil字段不修改
type PersonaUpdateInput struct {
	Name        *string
	Title       *string
	Avatar      *string
	Content     *string
	Description *string
	Tags        *string
	ExtData     *model.JSONMap
}

// SearchInput 搜索条件
type SearchInput struct {
	Keyword    string
	Tags       string
	AuthorUUID string
	Skip       int
	Limit      int
}

// normalizePage 分页参数兜底：skip非负，limit限制在1..100
func normalizePage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return skip, limit
}

// Create 创建人设，作者为当前登录用户
func (s *PersonaService) Create(authorUUID string, in *PersonaCreateInput) (*model.Persona, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.Validation("name", "人设名称不能为空")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperror.Validation("content", "人设内容不能为空")
	}

	return s.repo.Create(&repository.PersonaCreate{
		Name:        name,
		Title:       in.Title,
		Avatar:      in.Avatar,
		Content:     in.Content,
		Description: in.Description,
		Tags:        in.Tags,
		ExtData:     in.ExtData,
		AuthorUUID:  authorUUID,
	})
}

// Get 获取单个人设
func (s *PersonaService) Get(id uint) (*model.Persona, error) {
	return s.repo.GetByID(id)
}

// List 分页获取人设列表，返回全量总数
func (s *PersonaService) List(skip, limit int) ([]*model.Persona, int64, error) {
	skip, limit = normalizePage(skip, limit)

	items, err := s.repo.List(skip, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Total()
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Search 组合条件搜索
func (s *PersonaService) Search(in *SearchInput) ([]*model.Persona, int64, error) {
	skip, limit := normalizePage(in.Skip, in.Limit)
	return s.repo.Search(&repository.PersonaSearch{
		Keyword:    strings.TrimSpace(in.Keyword),
		Tags:       in.Tags,
		AuthorUUID: strings.TrimSpace(in.AuthorUUID),
		Skip:       skip,
		Limit:      limit,
	})
}

// ListByAuthor 获取指定作者的人设
func (s *PersonaService) ListByAuthor(authorUUID string, skip, limit int) ([]*model.Persona, int64, error) {
	skip, limit = normalizePage(skip, limit)
	return s.repo.ListByAuthor(authorUUID, skip, limit)
}

// ListByTags 获取命中全部标签的人设
func (s *PersonaService) ListByTags(tagsCsv string, skip, limit int) ([]*model.Persona, error) {
	skip, limit = normalizePage(skip, limit)
	return s.repo.ListByTags(tagsCsv, skip, limit)
}

// Update 更新人设
func (s *PersonaService) Update(id uint, in *PersonaUpdateInput) (*model.Persona, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperror.Validation("name", "人设名称不能为空")
		}
		in.Name = &name
	}
	if in.Content != nil && strings.TrimSpace(*in.Content) == "" {
		return nil, apperror.Validation("content", "人设内容不能为空")
	}

	return s.repo.Update(id, &repository.PersonaUpdate{
		Name:        in.Name,
		Title:       in.Title,
		Avatar:      in.Avatar,
		Content:     in.Content,
		Description: in.Description,
		Tags:        in.Tags,
		ExtData:     in.ExtData,
	})
}

// Delete 删除人设，返回删除前的快照；同步清理浏览量排行
func (s *PersonaService) Delete(id uint) (*model.Persona, error) {
	snapshot, err := s.repo.Delete(id)
	if err != nil {
		return nil, err
	}

	if err := redis.RemoveFromViewRank(snapshot.UUID); err != nil {
		logger.Warn("清理浏览量排行失败", zap.String("persona_uuid", snapshot.UUID), zap.Error(err))
	}
	return snapshot, nil
}

// View 记录一次浏览并返回最新人设
// viewerUUID为空表示匿名访问；作者浏览自己的人设不计数
// Redis排行累加失败只记日志，不影响数据库计数
func (s *PersonaService) View(id uint, viewerUUID string) (*model.Persona, error) {
	p, err := s.repo.IncrementView(id, viewerUUID)
	if err != nil {
		return nil, err
	}

	if viewerUUID == "" || viewerUUID != p.AuthorUUID {
		if err := redis.IncrementViewRank(p.UUID); err != nil {
			logger.Warn("累加浏览量排行失败", zap.String("persona_uuid", p.UUID), zap.Error(err))
		}
	}
	return p, nil
}

// Trending 获取浏览量最高的人设
// 排行来自Redis缓存；Redis未启用时降级为空列表
func (s *PersonaService) Trending(limit int) ([]*model.Persona, error) {
	if !redis.Enabled() {
		return []*model.Persona{}, nil
	}

	entries, err := redis.TopViewed(limit)
	if err != nil {
		return nil, err
	}

	items := make([]*model.Persona, 0, len(entries))
	for _, entry := range entries {
		p, err := s.repo.GetByUUID(entry.PersonaUUID)
		if err != nil {
			// 排行中可能残留已删除的人设，跳过即可
			if errors.Is(err, apperror.ErrNotFound) {
				continue
			}
			return nil, err
		}
		items = append(items, p)
	}
	return items, nil
}

// Authors 获取全部作者
func (s *PersonaService) Authors() ([]repository.AuthorEntry, error) {
	return s.repo.Authors()
}

// AuthorStats 作者创作统计
func (s *PersonaService) AuthorStats() ([]repository.AuthorStat, error) {
	return s.repo.AuthorStats()
}

// TopAuthors 创作数量排行
func (s *PersonaService) TopAuthors(limit int) ([]repository.AuthorStat, error) {
	return s.repo.TopAuthors(limit)
}

// AllTags 全量去重标签
func (s *PersonaService) AllTags() ([]string, error) {
	return s.repo.AllTags()
}

// TagStats 标签使用统计
func (s *PersonaService) TagStats() ([]repository.TagStat, error) {
	return s.repo.TagStats()
}

// GetAvatar 获取人设的内联头像
func (s *PersonaService) GetAvatar(personaUUID string) (string, error) {
	return s.repo.GetAvatar(personaUUID)
}
