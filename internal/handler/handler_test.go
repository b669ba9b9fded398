package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"persona-market/config"
	"persona-market/internal/model"
	"persona-market/internal/repository"
	"persona-market/internal/service"
	"persona-market/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// envelope 统一响应结构的测试视图
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// newTestRouter 搭建与生产一致的路由（sqlite内存库，不含Redis）
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	jwtSvc := jwt.NewJWTService(config.JWTConfig{
		Secret:     "test-secret",
		ExpireTime: time.Hour,
		Issuer:     "persona-market-test",
	})

	userSvc := service.NewUserService(repository.NewUserRepository(db), jwtSvc, nil)
	personaSvc := service.NewPersonaService(repository.NewPersonaRepository(db))

	authHandler := NewAuthHandler(userSvc)
	personaHandler := NewPersonaHandler(personaSvc)
	authorHandler := NewAuthorHandler(personaSvc, userSvc)
	tagHandler := NewTagHandler(personaSvc)

	router := gin.New()
	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	authed := auth.Group("", jwtSvc.AuthMiddleware())
	authed.GET("/me", authHandler.Me)
	authed.PUT("/profile", authHandler.UpdateProfile)

	personas := v1.Group("/personas")
	personas.GET("", personaHandler.List)
	personas.POST("/search", personaHandler.Search)
	personas.GET("/author/:uuid", personaHandler.ListByAuthor)
	personas.GET("/tags/:tags", personaHandler.ListByTags)
	personas.GET("/avatar/:uuid", personaHandler.GetAvatar)
	personas.GET("/:id", personaHandler.Get)
	personas.POST("/:id/view", jwtSvc.OptionalAuthMiddleware(), personaHandler.View)
	personasAuthed := personas.Group("", jwtSvc.AuthMiddleware())
	personasAuthed.POST("", personaHandler.Create)
	personasAuthed.PUT("/:id", personaHandler.Update)
	personasAuthed.DELETE("/:id", personaHandler.Delete)

	authors := v1.Group("/authors")
	authors.GET("", authorHandler.List)
	authors.GET("/stats", authorHandler.Stats)
	authors.GET("/top", authorHandler.Top)
	authors.GET("/avatar/:uuid", authorHandler.GetAvatar)
	authors.GET("/:uuid", authorHandler.Get)

	tags := v1.Group("/tags")
	tags.GET("", tagHandler.List)
	tags.GET("/stats", tagHandler.Stats)

	return router
}

// doJSON 发送JSON请求并解析统一响应
func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *envelope {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return &env
}

// registerAndLogin 注册用户并返回访问令牌
func registerAndLogin(t *testing.T, router *gin.Engine, email, username string) string {
	t.Helper()

	env := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    email,
		"username": username,
		"password": "secret123",
	})
	require.Equal(t, 0, env.Code)

	var data struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.AccessToken)
	return data.AccessToken
}

func createPersona(t *testing.T, router *gin.Engine, token string, body gin.H) map[string]interface{} {
	t.Helper()

	env := doJSON(t, router, http.MethodPost, "/api/v1/personas", token, body)
	require.Equal(t, 0, env.Code, env.Message)

	var p map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return p
}

func TestAuthFlow(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice@example.com", "alice")

	// /me 返回当前用户且不含敏感字段
	env := doJSON(t, router, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, 0, env.Code)
	var me map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "alice", me["username"])
	assert.NotContains(t, me, "hashed_password")

	// 未携带token访问受保护接口
	env = doJSON(t, router, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, 401, env.Code)

	// 错误密码登录
	env = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, 401, env.Code)
}

func TestAuthorPublicInfo(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice@example.com", "alice")

	// 清空昵称，验证公开视图的回落逻辑
	env := doJSON(t, router, http.MethodPut, "/api/v1/auth/profile", token, gin.H{
		"nickname": "",
	})
	require.Equal(t, 0, env.Code)

	env = doJSON(t, router, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, 0, env.Code)
	var me map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	uuid := me["uuid"].(string)

	env = doJSON(t, router, http.MethodGet, "/api/v1/authors/"+uuid, "", nil)
	require.Equal(t, 0, env.Code)
	var author map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &author))

	// 公开视图只含uuid、用户名、昵称；邮箱等账号字段不外泄
	assert.Equal(t, uuid, author["uuid"])
	assert.Equal(t, "alice", author["username"])
	// 昵称为空时回落为用户名
	assert.Equal(t, "alice", author["nickname"])
	assert.NotContains(t, author, "email")
	assert.NotContains(t, author, "created_at")
	assert.NotContains(t, author, "id")

	// 不存在的作者
	env = doJSON(t, router, http.MethodGet, "/api/v1/authors/missing-uuid", "", nil)
	assert.Equal(t, 404, env.Code)
}

func TestPersonaCRUDFlow(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice@example.com", "alice")

	p := createPersona(t, router, token, gin.H{
		"name":    "Elara",
		"content": "forest witch",
		"avatar":  "https://cdn.example.com/elara.png",
		"tags":    "fantasy,magic",
	})
	assert.Equal(t, "https://cdn.example.com/elara.png", p["avatar"])
	id := int(p["id"].(float64))

	// 匿名创建被拒绝
	env := doJSON(t, router, http.MethodPost, "/api/v1/personas", "", gin.H{
		"name": "X", "content": "y",
	})
	assert.Equal(t, 401, env.Code)

	// 重名冲突按参数错误返回
	env = doJSON(t, router, http.MethodPost, "/api/v1/personas", token, gin.H{
		"name": "Elara", "content": "copycat",
	})
	assert.Equal(t, 400, env.Code)

	// 获取并更新
	env = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/personas/%d", id), "", nil)
	assert.Equal(t, 0, env.Code)

	env = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/v1/personas/%d", id), token, gin.H{
		"title": "新标题",
	})
	assert.Equal(t, 0, env.Code)

	// 不存在的人设
	env = doJSON(t, router, http.MethodGet, "/api/v1/personas/9999", "", nil)
	assert.Equal(t, 404, env.Code)

	// 删除后再取404
	env = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/personas/%d", id), token, nil)
	assert.Equal(t, 0, env.Code)
	env = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/personas/%d", id), "", nil)
	assert.Equal(t, 404, env.Code)
}

func TestPersonaViewCounting(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice@example.com", "alice")

	p := createPersona(t, router, token, gin.H{"name": "Viewed", "content": "c"})
	id := int(p["id"].(float64))

	// 匿名浏览 +1
	env := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/personas/%d/view", id), "", nil)
	require.Equal(t, 0, env.Code)
	var viewed map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &viewed))
	assert.Equal(t, float64(1), viewed["view_count"])

	// 作者本人浏览不计数
	env = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/personas/%d/view", id), token, nil)
	require.Equal(t, 0, env.Code)
	require.NoError(t, json.Unmarshal(env.Data, &viewed))
	assert.Equal(t, float64(1), viewed["view_count"])
}

func TestSearchAndAggregations(t *testing.T) {
	router := newTestRouter(t)
	alice := registerAndLogin(t, router, "alice@example.com", "alice")
	bob := registerAndLogin(t, router, "bob@example.com", "bob")

	createPersona(t, router, alice, gin.H{"name": "Forest Witch", "content": "w", "tags": "fantasy,magic"})
	createPersona(t, router, alice, gin.H{"name": "Space Pilot", "content": "p", "tags": "scifi"})
	createPersona(t, router, bob, gin.H{"name": "Cart Vendor", "content": "v", "tags": "cart"})

	// 搜索：标签AND语义
	env := doJSON(t, router, http.MethodPost, "/api/v1/personas/search", "", gin.H{
		"tags": "fantasy,magic", "limit": 10,
	})
	require.Equal(t, 0, env.Code)
	var page struct {
		Items []map[string]interface{} `json:"items"`
		Total int64                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Forest Witch", page.Items[0]["name"])

	// 标签列表去重排序
	env = doJSON(t, router, http.MethodGet, "/api/v1/tags", "", nil)
	require.Equal(t, 0, env.Code)
	var tags []string
	require.NoError(t, json.Unmarshal(env.Data, &tags))
	assert.Equal(t, []string{"cart", "fantasy", "magic", "scifi"}, tags)

	// 标签统计
	env = doJSON(t, router, http.MethodGet, "/api/v1/tags/stats", "", nil)
	require.Equal(t, 0, env.Code)
	var stats struct {
		TotalTags int `json:"total_tags"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 4, stats.TotalTags)

	// 作者排行
	env = doJSON(t, router, http.MethodGet, "/api/v1/authors/top?limit=1", "", nil)
	require.Equal(t, 0, env.Code)
	var top []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &top))
	require.Len(t, top, 1)
	assert.Equal(t, float64(2), top[0]["count"])
}
