package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/opencontainers/go-digest"

	"globusannex/pkg/globus"
	"globusannex/pkg/keys"
)

// ErrReadOnly 表示 Globus 端不支持写操作
var ErrReadOnly = errors.New("globus remote 是只读的")

// GlobusStore 经 Globus 端点的 HTTPS 服务取回内容，经 Transfer API
// 查询存在性。数据集由发布方托管，store/remove 一律拒绝。
type GlobusStore struct {
	Client     *globus.Client
	EndpointID string
	Prefix     string

	httpsServer string
}

// NewGlobusStore 创建 Globus 后端
func NewGlobusStore(client *globus.Client, endpointID, prefix string) *GlobusStore {
	return &GlobusStore{Client: client, EndpointID: endpointID, Prefix: prefix}
}

func (g *GlobusStore) Join(elem ...string) string {
	return path.Join(append([]string{g.Prefix}, elem...)...)
}

func (g *GlobusStore) Store(ctx context.Context, key, src, location string) error {
	return ErrReadOnly
}

// Retrieve 下载 location 到 dst。SHA256 系列 key 下载后校验内容摘要，
// 不匹配时删除半成品并报错。
func (g *GlobusStore) Retrieve(ctx context.Context, key, location, dst string) error {
	server, err := g.server(ctx)
	if err != nil {
		return err
	}
	writer, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("创建目标文件失败: %w", err)
	}

	digester := digest.SHA256.Digester()
	_, err = g.Client.Download(ctx, globus.FileURL(server, location), io.MultiWriter(writer, digester.Hash()))
	if err != nil {
		writer.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	if parsed, parseErr := keys.Parse(key); parseErr == nil && parsed.IsSHA256() {
		if sum := digester.Digest().Encoded(); sum != parsed.Hash {
			_ = os.Remove(dst)
			return fmt.Errorf("内容校验失败: 期望 %s 实际 %s", parsed.Hash, sum)
		}
	}
	return nil
}

func (g *GlobusStore) Present(ctx context.Context, location string) (bool, error) {
	entry, err := g.Client.Stat(ctx, g.EndpointID, location)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

func (g *GlobusStore) Remove(ctx context.Context, location string) error {
	return ErrReadOnly
}

func (g *GlobusStore) RemoveDirectory(ctx context.Context, location string) error {
	return ErrReadOnly
}

func (g *GlobusStore) Rename(ctx context.Context, oldLocation, newLocation string) error {
	return ErrReadOnly
}

// server 懒加载端点的 HTTPS 服务地址
func (g *GlobusStore) server(ctx context.Context) (string, error) {
	if g.httpsServer != "" {
		return g.httpsServer, nil
	}
	info, err := g.Client.Endpoint(ctx, g.EndpointID)
	if err != nil {
		return "", err
	}
	if info.HTTPSServer == "" {
		return "", fmt.Errorf("端点 %s 没有开放 HTTPS 服务", g.EndpointID)
	}
	g.httpsServer = info.HTTPSServer
	return g.httpsServer, nil
}
