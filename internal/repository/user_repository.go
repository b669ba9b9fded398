package repository

import (
	"errors"

	"persona-market/internal/model"
	"persona-market/pkg/apperror"
	"persona-market/pkg/password"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserCreate 创建用户的入参
// Password 为空表示纯OAuth账号，不存储密码哈希
type UserCreate struct {
	Email          string
	Username       string
	Nickname       string
	Password       string
	GithubID       string
	GithubUsername string
}

// UserUpdate 更新用户的入参
// nil表示该字段未出现在补丁中，保持原值不变
// Avatar 为内联Base64（用户头像没有URL形态）
type UserUpdate struct {
	Email          *string
	Username       *string
	Nickname       *string
	Password       *string
	Avatar         *string
	GithubID       *string
	GithubUsername *string
}

// UserRepository 用户数据仓储
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建UserRepository实例
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByEmail 根据邮箱获取用户
func (r *UserRepository) GetByEmail(email string) (*model.User, error) {
	return r.getOne("email = ?", email)
}

// GetByUsername 根据用户名获取用户
func (r *UserRepository) GetByUsername(username string) (*model.User, error) {
	return r.getOne("username = ?", username)
}

// GetByUUID 根据UUID获取用户
func (r *UserRepository) GetByUUID(userUUID string) (*model.User, error) {
	return r.getOne("uuid = ?", userUUID)
}

// GetByGithubID 根据GitHub ID获取用户
func (r *UserRepository) GetByGithubID(githubID string) (*model.User, error) {
	return r.getOne("github_id = ?", githubID)
}

// GetByGithubIDOrUsername 根据GitHub ID或用户名获取用户
// GitHub ID优先命中，未命中再回落到用户名（OAuth账号关联流程用）
func (r *UserRepository) GetByGithubIDOrUsername(githubID, username string) (*model.User, error) {
	u, err := r.getOne("github_id = ?", githubID)
	if err == nil || !errors.Is(err, apperror.ErrNotFound) {
		return u, err
	}
	return r.getOne("username = ?", username)
}

// getOne 按条件查询单个用户
func (r *UserRepository) getOne(query string, args ...interface{}) (*model.User, error) {
	var u model.User
	err := r.db.Where(query, args...).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("用户", args[0])
		}
		return nil, err
	}
	return &u, nil
}

// Create 创建用户
// 提供了密码则存储bcrypt哈希；UUID服务端生成
func (r *UserRepository) Create(in *UserCreate) (*model.User, error) {
	u := &model.User{
		UUID:           uuid.NewString(),
		Email:          in.Email,
		Username:       in.Username,
		Nickname:       in.Nickname,
		GithubUsername: in.GithubUsername,
	}

	if in.Password != "" {
		hash, err := password.Hash(in.Password)
		if err != nil {
			return nil, err
		}
		u.HashedPassword = hash
	}

	if in.GithubID != "" {
		githubID := in.GithubID
		u.GithubID = &githubID
	}

	if err := r.db.Create(u).Error; err != nil {
		return nil, conflictOnDuplicate(err, "邮箱或用户名已被注册")
	}
	return u, nil
}

// Update 更新用户
// 密码非空时重新哈希，明文不落库；头像走一对一子记录的找到即更新、缺失则创建
func (r *UserRepository) Update(u *model.User, patch *UserUpdate) (*model.User, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := make(map[string]interface{})

		if patch.Email != nil {
			updates["email"] = *patch.Email
		}
		if patch.Username != nil {
			updates["username"] = *patch.Username
		}
		if patch.Nickname != nil {
			updates["nickname"] = *patch.Nickname
		}
		if patch.GithubID != nil {
			updates["github_id"] = *patch.GithubID
		}
		if patch.GithubUsername != nil {
			updates["github_username"] = *patch.GithubUsername
		}

		// 密码：非空才重新哈希，空串视为未修改
		if patch.Password != nil && *patch.Password != "" {
			hash, err := password.Hash(*patch.Password)
			if err != nil {
				return err
			}
			updates["hashed_password"] = hash
		}

		// 头像：查找或创建一对一子记录
		if patch.Avatar != nil && *patch.Avatar != "" {
			var rel model.AuthorAvatar
			err := tx.Where("user_uuid = ?", u.UUID).First(&rel).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				rel = model.AuthorAvatar{UserUUID: u.UUID, Base64: *patch.Avatar}
				if err := tx.Create(&rel).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if err := tx.Model(&rel).Update("base64", *patch.Avatar).Error; err != nil {
					return err
				}
			}
		}

		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(u).Updates(updates).Error; err != nil {
			return conflictOnDuplicate(err, "邮箱或用户名已被使用")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.GetByUUID(u.UUID)
}

// GetAvatar 获取用户的内联头像Base64
func (r *UserRepository) GetAvatar(userUUID string) (string, error) {
	var rel model.AuthorAvatar
	err := r.db.Where("user_uuid = ?", userUUID).First(&rel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperror.NotFound("用户头像", userUUID)
		}
		return "", err
	}
	return rel.Base64, nil
}
