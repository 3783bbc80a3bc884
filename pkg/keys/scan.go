package keys

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// Entry 表示一个已 annex 的文件在远端的寻址信息
type Entry struct {
	Hash string
	Path string
}

// Line 按 hash:path 格式输出，与 fingerprint 的 digest:reference 保持一致
func (e Entry) Line() string {
	return e.Hash + ":" + e.Path
}

// Scan 遍历 annex 仓库目录，读取符号链接指向的 key，
// 提取其 hash 部分并与远端路径配对。普通文件跳过。
func Scan(root, remotePrefix string) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(root, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		target, err := os.Readlink(fullPath)
		if err != nil {
			return err
		}
		key, err := Parse(filepath.Base(target))
		if err != nil {
			// 指向非 annex 对象的链接不是错误
			return nil
		}
		rel, err := filepath.Rel(root, fullPath)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			Hash: key.Hash,
			Path: path.Join(remotePrefix, filepath.ToSlash(rel)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}
