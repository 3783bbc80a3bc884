// Package protocol 实现 git-annex external special remote 协议（版本 1）。
// remote 进程通过 stdin/stdout 与 git-annex 对话：启动时上报 VERSION 1，
// 之后逐行接收命令并用协议关键字回复；处理命令期间还可以反向向
// git-annex 发起 GETCONFIG / DIRHASH / PROGRESS 等请求。
package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Handler 定义一个 special remote 必须实现的操作
type Handler interface {
	InitRemote(a *Annex) error
	Prepare(a *Annex) error
	Store(a *Annex, key, file string) error
	Retrieve(a *Annex, key, file string) error
	// CheckPresent 返回 key 是否存在；err 非空时回复 CHECKPRESENT-UNKNOWN
	CheckPresent(a *Annex, key string) (bool, error)
	Remove(a *Annex, key string) error
}

// ExportHandler 是可选的 export 扩展
type ExportHandler interface {
	Handler
	StoreExport(a *Annex, key, file, name string) error
	RetrieveExport(a *Annex, key, file, name string) error
	CheckPresentExport(a *Annex, key, name string) (bool, error)
	RemoveExport(a *Annex, key, name string) error
	RemoveExportDirectory(a *Annex, dir string) error
	RenameExport(a *Annex, key, name, newName string) error
}

// Annex 代表协议另一端的 git-annex，供 handler 反向发起请求
type Annex struct {
	in  *bufio.Scanner
	out io.Writer
}

func (a *Annex) send(fields ...string) {
	fmt.Fprintln(a.out, strings.Join(fields, " "))
}

// readValue 读取 VALUE 回复
func (a *Annex) readValue() (string, error) {
	if !a.in.Scan() {
		if err := a.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	line := a.in.Text()
	if line == "VALUE" {
		return "", nil
	}
	if !strings.HasPrefix(line, "VALUE ") {
		return "", fmt.Errorf("期望 VALUE 回复，收到: %s", line)
	}
	return strings.TrimPrefix(line, "VALUE "), nil
}

// GetConfig 读取 remote 配置项，未设置时返回空串
func (a *Annex) GetConfig(name string) (string, error) {
	a.send("GETCONFIG", name)
	return a.readValue()
}

// SetConfig 写入 remote 配置项
func (a *Annex) SetConfig(name, value string) {
	a.send("SETCONFIG", name, value)
}

// DirHash 询问 key 的目录散列前缀（如 "f87/4d5/"）
func (a *Annex) DirHash(key string) (string, error) {
	a.send("DIRHASH", key)
	return a.readValue()
}

// Progress 回报当前传输已完成的字节数
func (a *Annex) Progress(bytes int64) {
	a.send("PROGRESS", fmt.Sprintf("%d", bytes))
}

// Info 让 git-annex 把消息展示给用户
func (a *Annex) Info(message string) {
	a.send("INFO", sanitize(message))
}

// Debug 输出调试消息
func (a *Annex) Debug(message string) {
	a.send("DEBUG", sanitize(message))
}

// Error 上报不可恢复错误
func (a *Annex) Error(message string) {
	a.send("ERROR", sanitize(message))
}

// sanitize 把消息压成协议允许的单行
func sanitize(message string) string {
	return strings.Join(strings.Fields(message), " ")
}
