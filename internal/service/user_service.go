package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"persona-market/internal/model"
	"persona-market/internal/repository"
	"persona-market/pkg/apperror"
	"persona-market/pkg/jwt"
	"persona-market/pkg/oauth"
	"persona-market/pkg/password"
)

// UserService 用户业务逻辑：注册、登录、GitHub OAuth、资料维护
type UserService struct {
	repo       *repository.UserRepository
	jwtService *jwt.JWTService
	github     *oauth.GitHubProvider
}

func NewUserService(repo *repository.UserRepository, jwtService *jwt.JWTService, github *oauth.GitHubProvider) *UserService {
	return &UserService{repo: repo, jwtService: jwtService, github: github}
}

// issueToken 为用户签发访问令牌，subject为用户UUID
func (s *UserService) issueToken(u *model.User) (string, error) {
	return s.jwtService.GenerateToken(u.UUID, map[string]interface{}{
		"username": u.Username,
	})
}

// Register 邮箱密码注册
// 邮箱和用户名都要求唯一，昵称缺省用用户名
func (s *UserService) Register(email, username, nickname, plainPassword string) (*model.User, string, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	nickname = strings.TrimSpace(nickname)

	if email == "" {
		return nil, "", apperror.Validation("email", "邮箱不能为空")
	}
	if username == "" {
		return nil, "", apperror.Validation("username", "用户名不能为空")
	}
	if plainPassword == "" {
		return nil, "", apperror.Validation("password", "密码不能为空")
	}
	if nickname == "" {
		nickname = username
	}

	// 写前检查给出明确错误，唯一索引兜底并发竞态
	if _, err := s.repo.GetByEmail(email); err == nil {
		return nil, "", apperror.Conflict("该邮箱已被注册")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, "", err
	}
	if _, err := s.repo.GetByUsername(username); err == nil {
		return nil, "", apperror.Conflict("该用户名已被使用")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, "", err
	}

	u, err := s.repo.Create(&repository.UserCreate{
		Email:    email,
		Username: username,
		Nickname: nickname,
		Password: plainPassword,
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login 邮箱密码登录
// 纯OAuth账号没有密码哈希，不允许走密码登录
func (s *UserService) Login(email, plainPassword string) (*model.User, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || plainPassword == "" {
		return nil, "", apperror.Validation("email", "邮箱和密码不能为空")
	}

	u, err := s.repo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, "", apperror.Forbidden("邮箱或密码错误")
		}
		return nil, "", err
	}
	if !u.HasPassword() || !password.Verify(plainPassword, u.HashedPassword) {
		return nil, "", apperror.Forbidden("邮箱或密码错误")
	}

	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// GithubAuthURL 生成GitHub授权跳转地址
func (s *UserService) GithubAuthURL(state string) string {
	return s.github.AuthURL(state)
}

// GithubCallback 处理GitHub回调：换取用户信息并完成登录/注册
func (s *UserService) GithubCallback(ctx context.Context, code string) (*model.User, string, error) {
	if code == "" {
		return nil, "", apperror.Validation("code", "缺少授权码")
	}

	gu, err := s.github.Exchange(ctx, code)
	if err != nil {
		return nil, "", apperror.Forbidden("GitHub授权失败")
	}

	return s.signInWithGithub(gu)
}

// signInWithGithub 用GitHub用户信息完成登录
// 查找按GitHub ID优先、用户名兜底：同名的存量邮箱账号首次OAuth登录时关联GitHub身份
// 都未命中则建号；已绑定其他GitHub账号的同名用户不动，走建号分支
func (s *UserService) signInWithGithub(gu *oauth.GitHubUser) (*model.User, string, error) {
	githubID := fmt.Sprintf("%d", gu.ID)
	u, err := s.repo.GetByGithubIDOrUsername(githubID, gu.Login)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		u, err = s.createGithubUser(githubID, gu)
		if err != nil {
			return nil, "", err
		}
	case err != nil:
		return nil, "", err
	case u.GithubID != nil && *u.GithubID != githubID:
		// 用户名撞上已绑定其他GitHub账号的用户
		u, err = s.createGithubUser(githubID, gu)
		if err != nil {
			return nil, "", err
		}
	default:
		// 老用户或待关联的同名账号：绑定GitHub身份并同步资料
		patch := &repository.UserUpdate{GithubUsername: &gu.Login}
		if u.GithubID == nil {
			patch.GithubID = &githubID
		}
		if gu.Email != "" && gu.Email != u.Email {
			patch.Email = &gu.Email
		}
		u, err = s.repo.Update(u, patch)
		if err != nil {
			return nil, "", err
		}
	}

	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// createGithubUser 为首次OAuth登录的用户建号
// GitHub未公开邮箱时用占位邮箱；随机密码仅为满足哈希列，不可用于密码登录
func (s *UserService) createGithubUser(githubID string, gu *oauth.GitHubUser) (*model.User, error) {
	email := gu.Email
	if email == "" {
		email = fmt.Sprintf("%s@github.com", gu.Login)
	}

	username := gu.Login
	if _, err := s.repo.GetByUsername(username); err == nil {
		username = fmt.Sprintf("%s_%s", gu.Login, githubID)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	return s.repo.Create(&repository.UserCreate{
		Email:          email,
		Username:       username,
		Nickname:       gu.Login,
		Password:       randomPassword(),
		GithubID:       githubID,
		GithubUsername: gu.Login,
	})
}

// randomPassword 生成不可猜测的随机密码
func randomPassword() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// Me 获取当前用户
func (s *UserService) Me(userUUID string) (*model.User, error) {
	return s.repo.GetByUUID(userUUID)
}

// GetAvatar 获取用户的内联头像
func (s *UserService) GetAvatar(userUUID string) (string, error) {
	return s.repo.GetAvatar(userUUID)
}

// UpdateProfileInput 资料更新入参，nil字段不修改
type UpdateProfileInput struct {
	Email    *string
	Username *string
	Nickname *string
	Password *string
	Avatar   *string
}

// UpdateProfile 更新当前用户资料
// 邮箱/用户名改动需要排除自身后检查唯一性
func (s *UserService) UpdateProfile(userUUID string, in *UpdateProfileInput) (*model.User, error) {
	u, err := s.repo.GetByUUID(userUUID)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email == "" {
			return nil, apperror.Validation("email", "邮箱不能为空")
		}
		if email != u.Email {
			if _, err := s.repo.GetByEmail(email); err == nil {
				return nil, apperror.Conflict("该邮箱已被注册")
			} else if !errors.Is(err, apperror.ErrNotFound) {
				return nil, err
			}
		}
		in.Email = &email
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return nil, apperror.Validation("username", "用户名不能为空")
		}
		if username != u.Username {
			if _, err := s.repo.GetByUsername(username); err == nil {
				return nil, apperror.Conflict("该用户名已被使用")
			} else if !errors.Is(err, apperror.ErrNotFound) {
				return nil, err
			}
		}
		in.Username = &username
	}

	return s.repo.Update(u, &repository.UserUpdate{
		Email:    in.Email,
		Username: in.Username,
		Nickname: in.Nickname,
		Password: in.Password,
		Avatar:   in.Avatar,
	})
}
