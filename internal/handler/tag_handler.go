package handler

import (
	"persona-market/internal/service"
	"persona-market/pkg/response"

	"github.com/gin-gonic/gin"
)

type TagHandler struct {
	service *service.PersonaService
}

func NewTagHandler(s *service.PersonaService) *TagHandler {
	return &TagHandler{service: s}
}

// List 获取全量去重标签，按字典序排序
func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.service.AllTags()
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, tags)
}

// Stats 标签使用统计，按使用次数降序
func (h *TagHandler) Stats(c *gin.Context) {
	stats, err := h.service.TagStats()
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]response.TagCountItem, 0, len(stats))
	for _, s := range stats {
		items = append(items, response.TagCountItem{Tag: s.Tag, Count: s.Count})
	}
	response.Success(c, &response.TagStatsResponse{
		TotalTags: len(items),
		TagCounts: items,
	})
}
