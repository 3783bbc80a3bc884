package remote

import "context"

// Store 抽象 key 内容的后端存取。location 是后端内部的完整路径，
// 由 GlobusRemote 按 dirhash 布局或 export 路径算好后传入。
type Store interface {
	// Join 按后端的路径规则拼接 location
	Join(elem ...string) string
	Store(ctx context.Context, key, src, location string) error
	Retrieve(ctx context.Context, key, location, dst string) error
	Present(ctx context.Context, location string) (bool, error)
	Remove(ctx context.Context, location string) error
	RemoveDirectory(ctx context.Context, location string) error
	Rename(ctx context.Context, oldLocation, newLocation string) error
}
