package response

import (
	"net/http"
	"time"

	"persona-market/internal/model"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`           // 状态码：0表示成功，其他表示错误
	Message string      `json:"message"`        // 响应消息
	Data    interface{} `json:"data,omitempty"` // 响应数据
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 400错误
func BadRequest(c *gin.Context, message string) {
	Error(c, 400, message)
}

// Unauthorized 401错误
func Unauthorized(c *gin.Context, message string) {
	Error(c, 401, message)
}

// Forbidden 403错误
func Forbidden(c *gin.Context, message string) {
	Error(c, 403, message)
}

// NotFound 404错误
func NotFound(c *gin.Context, message string) {
	Error(c, 404, message)
}

// InternalError 500错误
func InternalError(c *gin.Context, message string) {
	Error(c, 500, message)
}

// formatTime ISO-8601格式化时间，零值返回nil（序列化为null）
func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

// UserInfo 用户信息（隐藏密码哈希等敏感字段）
type UserInfo struct {
	ID             uint    `json:"id"`
	UUID           string  `json:"uuid"`
	Email          string  `json:"email"`
	Username       string  `json:"username"`
	Nickname       string  `json:"nickname"`
	GithubUsername string  `json:"github_username,omitempty"`
	CreatedAt      *string `json:"created_at"`
	UpdatedAt      *string `json:"updated_at"`
}

// FilterUserInfo 过滤用户信息，隐藏敏感字段
func FilterUserInfo(user *model.User) *UserInfo {
	if user == nil {
		return nil
	}

	return &UserInfo{
		ID:             user.ID,
		UUID:           user.UUID,
		Email:          user.Email,
		Username:       user.Username,
		Nickname:       user.Nickname,
		GithubUsername: user.GithubUsername,
		CreatedAt:      formatTime(user.CreatedAt),
		UpdatedAt:      formatTime(user.UpdatedAt),
	}
}

// AuthorInfo 作者公开视图
// 仅暴露uuid、用户名和昵称；昵称为空时回落为用户名
type AuthorInfo struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

// FilterAuthorInfo 将用户压平为作者公开视图，不含邮箱等账号信息
func FilterAuthorInfo(user *model.User) *AuthorInfo {
	if user == nil {
		return nil
	}

	nickname := user.Nickname
	if nickname == "" {
		nickname = user.Username
	}
	return &AuthorInfo{
		UUID:     user.UUID,
		Username: user.Username,
		Nickname: nickname,
	}
}

// PersonaInfo 人设对外视图
// avatar 为生效头像（内联Base64优先于URL）
// author_nickname / author_username 来自预加载的作者关联，作者缺失时为null
type PersonaInfo struct {
	ID             uint          `json:"id"`
	UUID           string        `json:"uuid"`
	ViewCount      int64         `json:"view_count"`
	Name           string        `json:"name"`
	Title          string        `json:"title"`
	Avatar         string        `json:"avatar"`
	Content        string        `json:"content"`
	Description    string        `json:"description"`
	Tags           string        `json:"tags"`
	ExtData        model.JSONMap `json:"ext_data"`
	AuthorUUID     string        `json:"author_uuid"`
	AuthorNickname *string       `json:"author_nickname"`
	AuthorUsername *string       `json:"author_username"`
	CreateTime     *string       `json:"create_time"`
	UpdateTime     *string       `json:"update_time"`
}

// FilterPersonaInfo 将人设实体（含预加载的作者与内联头像）压平为对外视图
func FilterPersonaInfo(p *model.Persona) *PersonaInfo {
	if p == nil {
		return nil
	}

	info := &PersonaInfo{
		ID:          p.ID,
		UUID:        p.UUID,
		ViewCount:   p.ViewCount,
		Name:        p.Name,
		Title:       p.Title,
		Avatar:      p.EffectiveAvatar(),
		Content:     p.Content,
		Description: p.Description,
		Tags:        p.Tags,
		ExtData:     p.ExtData,
		AuthorUUID:  p.AuthorUUID,
		CreateTime:  formatTime(p.CreateTime),
		UpdateTime:  formatTime(p.UpdateTime),
	}

	if p.Author != nil {
		nickname := p.Author.Nickname
		username := p.Author.Username
		info.AuthorNickname = &nickname
		info.AuthorUsername = &username
	}

	return info
}

// FilterPersonaList 批量转换人设列表
func FilterPersonaList(items []*model.Persona) []*PersonaInfo {
	result := make([]*PersonaInfo, 0, len(items))
	for _, p := range items {
		result = append(result, FilterPersonaInfo(p))
	}
	return result
}

// PersonaListResponse 人设分页响应
type PersonaListResponse struct {
	Items []*PersonaInfo `json:"items"`
	Total int64          `json:"total"`
	Skip  int            `json:"skip"`
	Limit int            `json:"limit"`
}

// TokenResponse 访问令牌响应
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	User        *UserInfo `json:"user"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
}

// TagStatsResponse 标签统计响应
type TagStatsResponse struct {
	TotalTags int            `json:"total_tags"`
	TagCounts []TagCountItem `json:"tag_counts"`
}

// TagCountItem 单个标签的使用次数
type TagCountItem struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}
