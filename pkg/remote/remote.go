package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"globusannex/pkg/globus"
	"globusannex/pkg/protocol"
	"globusannex/pkg/ui"
)

// Options 是 GlobusRemote 的装配参数
type Options struct {
	Logger *slog.Logger
	// Token 是 Globus transfer access token，endpoint 模式必填
	Token string
	// Progress 额外的进度接收方（如 stderr 进度条），PROGRESS 消息照常发
	Progress ui.Progress
	// HTTPClient 与 BaseURL 供测试替换
	HTTPClient *http.Client
	BaseURL    string
}

// GlobusRemote 实现 special remote 的各项操作。配置经 GETCONFIG 读取：
// directory= 走本地目录后端，endpoint=（可选 fileprefix=）走 Globus 后端。
type GlobusRemote struct {
	opts      Options
	logger    *slog.Logger
	store     Store
	directory string
}

// New 创建 GlobusRemote
func New(opts Options) *GlobusRemote {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &GlobusRemote{opts: opts, logger: logger}
}

var _ protocol.ExportHandler = (*GlobusRemote)(nil)

// InitRemote 响应 initremote，目录模式下创建根目录。幂等。
func (r *GlobusRemote) InitRemote(a *protocol.Annex) error {
	if err := r.configure(a); err != nil {
		return err
	}
	if r.directory != "" {
		if err := os.MkdirAll(r.directory, 0o755); err != nil {
			return fmt.Errorf("创建 %s 失败: %w", r.directory, err)
		}
	}
	return nil
}

// Prepare 在每次会话开始时执行，校验后端可用
func (r *GlobusRemote) Prepare(a *protocol.Annex) error {
	if err := r.configure(a); err != nil {
		return err
	}
	if r.directory != "" {
		if _, err := os.Stat(r.directory); err != nil {
			return fmt.Errorf("%s 不存在", r.directory)
		}
	}
	return nil
}

func (r *GlobusRemote) Store(a *protocol.Annex, key, file string) error {
	location, err := r.keyLocation(a, key)
	if err != nil {
		return err
	}
	r.logger.Debug("store", "key", key, "location", location)
	return r.store.Store(context.Background(), key, file, location)
}

func (r *GlobusRemote) Retrieve(a *protocol.Annex, key, file string) error {
	location, err := r.keyLocation(a, key)
	if err != nil {
		return err
	}
	r.logger.Debug("retrieve", "key", key, "location", location)
	return r.store.Retrieve(context.Background(), key, location, file)
}

func (r *GlobusRemote) CheckPresent(a *protocol.Annex, key string) (bool, error) {
	location, err := r.keyLocation(a, key)
	if err != nil {
		return false, err
	}
	return r.store.Present(context.Background(), location)
}

func (r *GlobusRemote) Remove(a *protocol.Annex, key string) error {
	location, err := r.keyLocation(a, key)
	if err != nil {
		return err
	}
	return r.store.Remove(context.Background(), location)
}

func (r *GlobusRemote) StoreExport(a *protocol.Annex, key, file, name string) error {
	return r.store.Store(context.Background(), key, file, r.store.Join(name))
}

func (r *GlobusRemote) RetrieveExport(a *protocol.Annex, key, file, name string) error {
	return r.store.Retrieve(context.Background(), key, r.store.Join(name), file)
}

func (r *GlobusRemote) CheckPresentExport(a *protocol.Annex, key, name string) (bool, error) {
	return r.store.Present(context.Background(), r.store.Join(name))
}

func (r *GlobusRemote) RemoveExport(a *protocol.Annex, key, name string) error {
	return r.store.Remove(context.Background(), r.store.Join(name))
}

func (r *GlobusRemote) RemoveExportDirectory(a *protocol.Annex, dir string) error {
	return r.store.RemoveDirectory(context.Background(), r.store.Join(dir))
}

func (r *GlobusRemote) RenameExport(a *protocol.Annex, key, name, newName string) error {
	return r.store.Rename(context.Background(), r.store.Join(name), r.store.Join(newName))
}

// configure 读取 remote 配置并装配后端，重复调用只装配一次
func (r *GlobusRemote) configure(a *protocol.Annex) error {
	if r.store != nil {
		return nil
	}
	directory, err := a.GetConfig("directory")
	if err != nil {
		return err
	}
	if directory != "" {
		abs, err := filepath.Abs(directory)
		if err != nil {
			return err
		}
		r.directory = abs
		store := NewDirectoryStore(abs)
		store.Progress = r.annexProgress(a)
		r.store = store
		return nil
	}

	endpointID, err := a.GetConfig("endpoint")
	if err != nil {
		return err
	}
	if endpointID == "" {
		return errors.New("需要设置 directory= 或 endpoint=")
	}
	prefix, err := a.GetConfig("fileprefix")
	if err != nil {
		return err
	}
	if r.opts.Token == "" {
		return errors.New("缺少 transfer token，请先执行 setup 并导出 GLOBUS_TRANSFER_TOKEN")
	}
	client := globus.NewClient(r.opts.Token)
	if r.opts.BaseURL != "" {
		client.BaseURL = r.opts.BaseURL
	}
	if r.opts.HTTPClient != nil {
		client.HTTPClient = r.opts.HTTPClient
	}
	client.Progress = r.annexProgress(a)
	r.store = NewGlobusStore(client, endpointID, prefix)
	return nil
}

// keyLocation 按 git-annex 的 dirhash 布局计算 key 的存放位置
func (r *GlobusRemote) keyLocation(a *protocol.Annex, key string) (string, error) {
	if r.store == nil {
		return "", errors.New("remote 尚未配置")
	}
	dirHash, err := a.DirHash(key)
	if err != nil {
		return "", err
	}
	return r.store.Join(dirHash, key), nil
}

// annexProgress 把字节进度转成 PROGRESS 消息回报给 git-annex
func (r *GlobusRemote) annexProgress(a *protocol.Annex) ui.Progress {
	reporter := ui.Progress(ui.NewFuncProgress(func(done int64) {
		a.Progress(done)
	}))
	if r.opts.Progress != nil {
		reporter = ui.Multi(reporter, r.opts.Progress)
	}
	return reporter
}
