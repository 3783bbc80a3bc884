package keys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Key 表示一个 git-annex key，如 SHA256E-s1048576--<hex>.tar.gz
type Key struct {
	Name    string
	Backend string
	Size    int64
	Hash    string
	Ext     string
}

// Parse 解析 key 字符串。hash 部分取最后一个 "--" 之后、首个 "." 之前的内容。
func Parse(raw string) (Key, error) {
	raw = strings.TrimSpace(raw)
	idx := strings.LastIndex(raw, "--")
	if idx <= 0 || idx == len(raw)-2 {
		return Key{}, fmt.Errorf("非法 key: %s", raw)
	}
	prefix := raw[:idx]
	rest := raw[idx+2:]

	key := Key{Name: raw, Hash: rest}
	if dot := strings.Index(rest, "."); dot >= 0 {
		key.Hash = rest[:dot]
		key.Ext = rest[dot+1:]
	}

	fields := strings.Split(prefix, "-")
	key.Backend = fields[0]
	for _, field := range fields[1:] {
		if strings.HasPrefix(field, "s") {
			if size, err := strconv.ParseInt(field[1:], 10, 64); err == nil {
				key.Size = size
			}
		}
	}
	if key.Backend == "" || key.Hash == "" {
		return Key{}, fmt.Errorf("非法 key: %s", raw)
	}
	if key.IsSHA256() {
		if _, err := digest.Parse("sha256:" + key.Hash); err != nil {
			return Key{}, fmt.Errorf("key 的 hash 部分非法: %s: %w", raw, err)
		}
	}
	return key, nil
}

// IsSHA256 报告 key 是否属于 SHA256 系列 backend
func (k Key) IsSHA256() bool {
	return strings.HasPrefix(k.Backend, "SHA256")
}
