package repository

import (
	"path/filepath"
	"testing"

	"persona-market/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 创建隔离的sqlite测试库并完成建表
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.AuthorAvatar{},
		&model.Persona{},
		&model.PersonaAvatar{},
		&model.PersonaTag{},
	))
	return db
}

// seedUser 创建测试用户，返回实体
func seedUser(t *testing.T, db *gorm.DB, email, username, nickname string) *model.User {
	t.Helper()

	u, err := NewUserRepository(db).Create(&UserCreate{
		Email:    email,
		Username: username,
		Nickname: nickname,
		Password: "secret123",
	})
	require.NoError(t, err)
	return u
}
