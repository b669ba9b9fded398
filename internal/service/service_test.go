package service

import (
	"path/filepath"
	"testing"
	"time"

	"persona-market/config"
	"persona-market/internal/model"
	"persona-market/internal/repository"
	"persona-market/pkg/jwt"

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

func newTestJWT() *jwt.JWTService {
	return jwt.NewJWTService(config.JWTConfig{
		Secret:     "test-secret",
		ExpireTime: time.Hour,
		Issuer:     "persona-market-test",
	})
}

func newUserService(t *testing.T, db *gorm.DB) *UserService {
	t.Helper()
	return NewUserService(repository.NewUserRepository(db), newTestJWT(), nil)
}

func newPersonaService(t *testing.T, db *gorm.DB) *PersonaService {
	t.Helper()
	return NewPersonaService(repository.NewPersonaRepository(db))
}
