package globus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/goccy/go-json"

	"globusannex/pkg/ui"
)

// DefaultBaseURL 是 Globus Transfer API 的地址
const DefaultBaseURL = "https://transfer.api.globus.org/v0.10"

// Client 是 Globus Transfer API 的最小客户端，只覆盖本 remote 用到的操作
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
	Progress   ui.Progress
}

// NewClient 用 transfer access token 创建客户端
func NewClient(token string) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: http.DefaultClient,
		Token:      token,
		Progress:   ui.NoopProgress{},
	}
}

// LsEntry 描述端点目录中的一项
type LsEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// IsFile 报告该项是否为普通文件
func (e LsEntry) IsFile() bool { return e.Type == "file" }

type lsResponse struct {
	Data []LsEntry `json:"DATA"`
}

// EndpointInfo 描述一个 Globus 端点
type EndpointInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	HTTPSServer string `json:"https_server"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Ls 列出端点上某目录的内容
func (c *Client) Ls(ctx context.Context, endpointID, dir string) ([]LsEntry, error) {
	query := url.Values{"path": {dir}}
	endpoint := fmt.Sprintf("%s/operation/endpoint/%s/ls?%s",
		c.BaseURL, url.PathEscape(endpointID), query.Encode())
	var out lsResponse
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, fmt.Errorf("列目录失败: %s:%s: %w", endpointID, dir, err)
	}
	return out.Data, nil
}

// Stat 查询端点上某文件是否存在，不存在返回 nil
func (c *Client) Stat(ctx context.Context, endpointID, filePath string) (*LsEntry, error) {
	dir := path.Dir(filePath)
	name := path.Base(filePath)
	entries, err := c.Ls(ctx, endpointID, dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.Name == name && entry.IsFile() {
			return &entry, nil
		}
	}
	return nil, nil
}

// Endpoint 读取端点信息，包括其 HTTPS 服务地址
func (c *Client) Endpoint(ctx context.Context, endpointID string) (*EndpointInfo, error) {
	endpoint := fmt.Sprintf("%s/endpoint/%s", c.BaseURL, url.PathEscape(endpointID))
	var out EndpointInfo
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, fmt.Errorf("读取端点信息失败: %s: %w", endpointID, err)
	}
	return &out, nil
}

// Download 经端点的 HTTPS 服务下载文件，返回写入的字节数
func (c *Client) Download(ctx context.Context, rawURL string, dst io.Writer) (int64, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return 0, fmt.Errorf("下载失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("下载失败: %s 返回 %s", rawURL, resp.Status)
	}
	progress := c.Progress
	if progress == nil {
		progress = ui.NoopProgress{}
	}
	progress.Start(resp.ContentLength, path.Base(rawURL))
	n, err := io.Copy(io.MultiWriter(dst, ui.Writer(progress)), resp.Body)
	progress.Finish()
	if err != nil {
		return n, fmt.Errorf("下载中断: %w", err)
	}
	return n, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != "" {
			return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("API 返回 %s", resp.Status)
	}
	return json.Unmarshal(body, out)
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

// FileURL 拼接端点 HTTPS 服务上某路径的下载地址
func FileURL(httpsServer, filePath string) string {
	return strings.TrimRight(httpsServer, "/") + "/" + strings.TrimLeft(filePath, "/")
}
