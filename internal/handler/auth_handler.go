package handler

import (
	"errors"

	"persona-market/internal/service"
	"persona-market/pkg/apperror"
	"persona-market/pkg/jwt"
	"persona-market/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthHandler struct {
	service *service.UserService
}

func NewAuthHandler(s *service.UserService) *AuthHandler {
	return &AuthHandler{service: s}
}

// Register 用户注册
func (h *AuthHandler) Register(c *gin.Context) {
	type req struct {
		Email    string `json:"email" binding:"required"`
		Username string `json:"username" binding:"required"`
		Nickname string `json:"nickname"`
		Password string `json:"password" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, token, err := h.service.Register(r.Email, r.Username, r.Nickname, r.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	response.SuccessWithMessage(c, "注册成功", &response.LoginResponse{
		User:        response.FilterUserInfo(user),
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// Login 邮箱密码登录
func (h *AuthHandler) Login(c *gin.Context) {
	type req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, token, err := h.service.Login(r.Email, r.Password)
	if err != nil {
		// 凭证错误统一返回401，不区分账号不存在与密码错误
		if errors.Is(err, apperror.ErrForbidden) {
			response.Unauthorized(c, err.Error())
			return
		}
		writeError(c, err)
		return
	}

	response.SuccessWithMessage(c, "登录成功", &response.LoginResponse{
		User:        response.FilterUserInfo(user),
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// GithubLogin 跳转到GitHub授权页
func (h *AuthHandler) GithubLogin(c *gin.Context) {
	state := uuid.NewString()
	response.Success(c, gin.H{
		"auth_url": h.service.GithubAuthURL(state),
		"state":    state,
	})
}

// GithubCallback GitHub授权回调：换取用户信息并签发令牌
func (h *AuthHandler) GithubCallback(c *gin.Context) {
	code := c.Query("code")

	user, token, err := h.service.GithubCallback(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, apperror.ErrForbidden) {
			response.Unauthorized(c, err.Error())
			return
		}
		writeError(c, err)
		return
	}

	response.SuccessWithMessage(c, "登录成功", &response.LoginResponse{
		User:        response.FilterUserInfo(user),
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// Me 获取当前登录用户（需要JWT认证）
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.service.Me(jwt.GetUserUUID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, response.FilterUserInfo(user))
}

// UpdateProfile 更新当前用户资料（需要JWT认证）
// 补丁语义：请求体中未出现的字段保持不变
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	type req struct {
		Email    *string `json:"email"`
		Username *string `json:"username"`
		Nickname *string `json:"nickname"`
		Password *string `json:"password"`
		Avatar   *string `json:"avatar"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.service.UpdateProfile(jwt.GetUserUUID(c), &service.UpdateProfileInput{
		Email:    r.Email,
		Username: r.Username,
		Nickname: r.Nickname,
		Password: r.Password,
		Avatar:   r.Avatar,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "资料更新成功", response.FilterUserInfo(user))
}
