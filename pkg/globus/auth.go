package globus

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// AuthBaseURL 是 Globus Auth 的地址
	AuthBaseURL = "https://auth.globus.org"
	// TransferScope 是 Transfer API 所需的 scope
	TransferScope = "urn:globus:auth:scope:transfer.api.globus.org:all"
	// DefaultListen 是本地回调服务的默认监听地址
	DefaultListen = "localhost:4443"

	transferResourceServer = "transfer.api.globus.org"
)

// Authenticator 执行 native app 授权流程：打印授权地址、
// 在本地接收回调拿到 code、换取 token。token 不做持久化。
type Authenticator struct {
	Config oauth2.Config
	Listen string
	Stdout io.Writer
}

// NewAuthenticator 按 client id 创建授权器
func NewAuthenticator(clientID string) *Authenticator {
	return &Authenticator{
		Config: oauth2.Config{
			ClientID:    clientID,
			Scopes:      []string{"openid", TransferScope},
			RedirectURL: "http://" + DefaultListen,
			Endpoint: oauth2.Endpoint{
				AuthURL:  AuthBaseURL + "/v2/oauth2/authorize",
				TokenURL: AuthBaseURL + "/v2/oauth2/token",
			},
		},
		Listen: DefaultListen,
		Stdout: os.Stdout,
	}
}

// Authorize 走完整授权流程并返回 token 响应
func (a *Authenticator) Authorize(ctx context.Context) (*oauth2.Token, error) {
	state := uuid.NewString()
	authorizeURL := a.Config.AuthCodeURL(state)
	fmt.Fprintf(a.stdout(), "请在浏览器中打开以下地址并登录: %s\n", authorizeURL)

	code, err := a.waitForCode(ctx, state)
	if err != nil {
		return nil, err
	}
	token, err := a.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("换取 token 失败: %w", err)
	}
	return token, nil
}

// waitForCode 启动本地回调服务，阻塞等待授权 code
func (a *Authenticator) waitForCode(ctx context.Context, state string) (string, error) {
	listener, err := net.Listen("tcp", a.Listen)
	if err != nil {
		return "", fmt.Errorf("启动本地回调服务失败: %w", err)
	}
	codeCh := make(chan string, 1)
	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "You're all set, you can close this window!")
		select {
		case codeCh <- query.Get("code"):
		default:
		}
	})}
	go func() { _ = server.Serve(listener) }()
	defer server.Close()

	select {
	case code := <-codeCh:
		if code == "" {
			return "", fmt.Errorf("回调中没有携带 code")
		}
		return code, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *Authenticator) stdout() io.Writer {
	if a.Stdout != nil {
		return a.Stdout
	}
	return os.Stdout
}

// TransferToken 从 token 响应的 other_tokens 中取 transfer 服务的 access token，
// 对应 Globus 按 resource server 分发 token 的约定
func TransferToken(token *oauth2.Token) string {
	others, ok := token.Extra("other_tokens").([]any)
	if !ok {
		return token.AccessToken
	}
	for _, raw := range others {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if entry["resource_server"] != transferResourceServer {
			continue
		}
		if accessToken, ok := entry["access_token"].(string); ok {
			return accessToken
		}
	}
	return token.AccessToken
}
