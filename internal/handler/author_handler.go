package handler

import (
	"strconv"

	"persona-market/internal/service"
	"persona-market/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthorHandler struct {
	personas *service.PersonaService
	users    *service.UserService
}

func NewAuthorHandler(personas *service.PersonaService, users *service.UserService) *AuthorHandler {
	return &AuthorHandler{personas: personas, users: users}
}

// List 获取所有发表过人设的作者（去重）
func (h *AuthorHandler) List(c *gin.Context) {
	entries, err := h.personas.Authors()
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, entries)
}

// Stats 每个作者的人设数量统计
func (h *AuthorHandler) Stats(c *gin.Context) {
	stats, err := h.personas.AuthorStats()
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, stats)
}

// Top 创作数量最多的作者排行
func (h *AuthorHandler) Top(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	stats, err := h.personas.TopAuthors(limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, stats)
}

// Get 获取作者公开信息（仅uuid、用户名、昵称，不含邮箱等账号字段）
func (h *AuthorHandler) Get(c *gin.Context) {
	user, err := h.users.Me(c.Param("uuid"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, response.FilterAuthorInfo(user))
}

// GetAvatar 获取作者的内联头像Base64
func (h *AuthorHandler) GetAvatar(c *gin.Context) {
	b64, err := h.users.GetAvatar(c.Param("uuid"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"avatar": b64})
}
