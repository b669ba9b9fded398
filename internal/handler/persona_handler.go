package handler

import (
	"strconv"

	"persona-market/internal/model"
	"persona-market/internal/service"
	"persona-market/pkg/jwt"
	"persona-market/pkg/response"

	"github.com/gin-gonic/gin"
)

type PersonaHandler struct {
	service *service.PersonaService
}

func NewPersonaHandler(s *service.PersonaService) *PersonaHandler {
	return &PersonaHandler{service: s}
}

// parseID 解析路径中的人设ID
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "无效的人设ID")
		return 0, false
	}
	return uint(id), true
}

// parsePage 解析query中的分页参数
func parsePage(c *gin.Context) (int, int) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return skip, limit
}

// Create 创建人设（需要JWT认证），作者为当前用户
func (h *PersonaHandler) Create(c *gin.Context) {
	type req struct {
		Name        string        `json:"name" binding:"required"`
		Title       string        `json:"title"`
		Avatar      string        `json:"avatar"`
		Content     string        `json:"content" binding:"required"`
		Description string        `json:"description"`
		Tags        string        `json:"tags"`
		ExtData     model.JSONMap `json:"ext_data"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	p, err := h.service.Create(jwt.GetUserUUID(c), &service.PersonaCreateInput{
		Name:        r.Name,
		Title:       r.Title,
		Avatar:      r.Avatar,
		Content:     r.Content,
		Description: r.Description,
		Tags:        r.Tags,
		ExtData:     r.ExtData,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "创建成功", response.FilterPersonaInfo(p))
}

// Get 获取单个人设
func (h *PersonaHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	p, err := h.service.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, response.FilterPersonaInfo(p))
}

// List 分页获取人设列表
func (h *PersonaHandler) List(c *gin.Context) {
	skip, limit := parsePage(c)

	items, total, err := h.service.List(skip, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, &response.PersonaListResponse{
		Items: response.FilterPersonaList(items),
		Total: total,
		Skip:  skip,
		Limit: limit,
	})
}

// Search 组合条件搜索：关键词、标签（全部命中）、作者
func (h *PersonaHandler) Search(c *gin.Context) {
	type req struct {
		Keyword    string `json:"keyword"`
		Tags       string `json:"tags"`
		AuthorUUID string `json:"author_uuid"`
		Skip       int    `json:"skip"`
		Limit      int    `json:"limit"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	items, total, err := h.service.Search(&service.SearchInput{
		Keyword:    r.Keyword,
		Tags:       r.Tags,
		AuthorUUID: r.AuthorUUID,
		Skip:       r.Skip,
		Limit:      r.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, &response.PersonaListResponse{
		Items: response.FilterPersonaList(items),
		Total: total,
		Skip:  r.Skip,
		Limit: r.Limit,
	})
}

// ListByAuthor 获取指定作者的人设
func (h *PersonaHandler) ListByAuthor(c *gin.Context) {
	skip, limit := parsePage(c)

	items, total, err := h.service.ListByAuthor(c.Param("uuid"), skip, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, &response.PersonaListResponse{
		Items: response.FilterPersonaList(items),
		Total: total,
		Skip:  skip,
		Limit: limit,
	})
}

// ListByTags 获取命中全部标签的人设，路径参数为逗号分隔的标签
func (h *PersonaHandler) ListByTags(c *gin.Context) {
	skip, limit := parsePage(c)

	items, err := h.service.ListByTags(c.Param("tags"), skip, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, response.FilterPersonaList(items))
}

// Update 更新人设（需要JWT认证）
// 补丁语义：请求体中未出现的字段保持不变
func (h *PersonaHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	type req struct {
		Name        *string        `json:"name"`
		Title       *string        `json:"title"`
		Avatar      *string        `json:"avatar"`
		Content     *string        `json:"content"`
		Description *string        `json:"description"`
		Tags        *string        `json:"tags"`
		ExtData     *model.JSONMap `json:"ext_data"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	p, err := h.service.Update(id, &service.PersonaUpdateInput{
		Name:        r.Name,
		Title:       r.Title,
		Avatar:      r.Avatar,
		Content:     r.Content,
		Description: r.Description,
		Tags:        r.Tags,
		ExtData:     r.ExtData,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "更新成功", response.FilterPersonaInfo(p))
}

// Delete 删除人设（需要JWT认证），返回删除前的快照
func (h *PersonaHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	snapshot, err := h.service.Delete(id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "删除成功", response.FilterPersonaInfo(snapshot))
}

// View 记录一次浏览并返回最新人设
// 挂可选认证中间件：匿名可访问，登录用户浏览自己的人设不计数
func (h *PersonaHandler) View(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	p, err := h.service.View(id, jwt.GetUserUUID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, response.FilterPersonaInfo(p))
}

// Trending 获取浏览量最高的人设（来自Redis排行缓存）
func (h *PersonaHandler) Trending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	items, err := h.service.Trending(limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, response.FilterPersonaList(items))
}

// GetAvatar 获取人设的内联头像Base64
func (h *PersonaHandler) GetAvatar(c *gin.Context) {
	b64, err := h.service.GetAvatar(c.Param("uuid"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"avatar": b64})
}
