package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"persona-market/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubUser GitHub /user 接口返回中关心的字段
type GitHubUser struct {
	ID        int64  `json:"id"`         // GitHub数字ID，稳定不变
	Login     string `json:"login"`      // GitHub用户名
	Email     string `json:"email"`      // 主邮箱（用户隐藏时为空）
	AvatarURL string `json:"avatar_url"` // 头像URL
}

// GitHubProvider 封装GitHub授权码模式的OAuth流程
// 1. 重定向用户到GitHub授权页
// 2. GitHub携带code回调
// 3. 服务端用code换取access token并拉取用户信息
type GitHubProvider struct {
	config *oauth2.Config
}

// NewGitHubProvider 创建GitHub OAuth客户端
// RedirectURI 必须与OAuth App中配置的回调地址完全一致
func NewGitHubProvider(cfg config.GitHubConfig) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

// AuthURL 返回GitHub授权页地址
// state 为随机字符串，回调时校验以防CSRF
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange 用授权码完成OAuth流程，返回GitHub用户信息
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	// code换取access token（服务端到服务端，token不经过浏览器）
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("换取GitHub access token失败: %w", err)
	}

	// 携带token拉取用户信息
	client := p.config.Client(ctx, oauthToken)
	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		return nil, fmt.Errorf("请求GitHub用户信息失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub用户信息接口返回状态码 %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("解析GitHub用户信息失败: %w", err)
	}
	if ghUser.ID == 0 {
		return nil, fmt.Errorf("GitHub返回了无效的用户信息")
	}

	return &ghUser, nil
}
