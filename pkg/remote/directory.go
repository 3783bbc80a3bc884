package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"globusannex/pkg/ui"
)

// ErrUnavailable 表示远端根目录当前不可达
var ErrUnavailable = errors.New("远端当前不可用")

// DirectoryStore 把 key 存进本地目录树。写入先落到 tmp/<key>
// 再 rename 到最终位置，避免出现半截文件。
type DirectoryStore struct {
	Root     string
	Progress ui.Progress
}

// NewDirectoryStore 创建目录后端
func NewDirectoryStore(root string) *DirectoryStore {
	return &DirectoryStore{Root: root, Progress: ui.NoopProgress{}}
}

func (d *DirectoryStore) Join(elem ...string) string {
	return filepath.Join(append([]string{d.Root}, elem...)...)
}

func (d *DirectoryStore) Store(ctx context.Context, key, src, location string) error {
	if err := os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
		return fmt.Errorf("创建目标目录失败: %w", err)
	}
	tempLocation := filepath.Join(d.Root, "tmp", key)
	if err := os.MkdirAll(filepath.Dir(tempLocation), 0o755); err != nil {
		return fmt.Errorf("创建暂存目录失败: %w", err)
	}
	if err := d.copyFile(src, tempLocation); err != nil {
		return err
	}
	if err := os.Rename(tempLocation, location); err != nil {
		return fmt.Errorf("移动到最终位置失败: %w", err)
	}
	// 暂存目录非空时留着即可
	_ = os.Remove(filepath.Dir(tempLocation))
	return nil
}

func (d *DirectoryStore) Retrieve(ctx context.Context, key, location, dst string) error {
	return d.copyFile(location, dst)
}

func (d *DirectoryStore) Present(ctx context.Context, location string) (bool, error) {
	if _, err := os.Stat(d.Root); err != nil {
		return false, ErrUnavailable
	}
	info, err := os.Stat(location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (d *DirectoryStore) Remove(ctx context.Context, location string) error {
	if _, err := os.Stat(d.Root); err != nil {
		return ErrUnavailable
	}
	if err := os.Remove(location); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// 删除不存在的文件不算失败
		return fmt.Errorf("删除失败: %w", err)
	}
	return nil
}

func (d *DirectoryStore) RemoveDirectory(ctx context.Context, location string) error {
	if err := os.Remove(location); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("删除目录失败: %w", err)
	}
	return nil
}

func (d *DirectoryStore) Rename(ctx context.Context, oldLocation, newLocation string) error {
	if err := os.MkdirAll(filepath.Dir(newLocation), 0o755); err != nil {
		return fmt.Errorf("创建目标目录失败: %w", err)
	}
	if err := os.Rename(oldLocation, newLocation); err != nil {
		return fmt.Errorf("重命名失败: %w", err)
	}
	return nil
}

func (d *DirectoryStore) copyFile(src, dst string) error {
	reader, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("读取源文件失败: %w", err)
	}
	defer reader.Close()

	writer, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("创建目标文件失败: %w", err)
	}

	progress := d.Progress
	if progress == nil {
		progress = ui.NoopProgress{}
	}
	var total int64
	if info, err := reader.Stat(); err == nil {
		total = info.Size()
	}
	progress.Start(total, filepath.Base(dst))
	_, copyErr := io.Copy(io.MultiWriter(writer, ui.Writer(progress)), reader)
	progress.Finish()
	if copyErr != nil {
		writer.Close()
		return fmt.Errorf("复制失败: %w", copyErr)
	}
	return writer.Close()
}
