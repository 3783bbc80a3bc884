package ui

import (
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Progress 定义传输过程中统一的进度汇报接口
type Progress interface {
	Start(total int64, desc string)
	Add(n int64)
	Finish()
}

// BarProgress 基于 progressbar 的终端进度条。
// 协议模式下 stdout 被占用，进度条只能写 stderr。
type BarProgress struct {
	mu     sync.Mutex
	writer io.Writer
	bar    *progressbar.ProgressBar
}

// NewBarProgress 创建进度条实例，输出到给定 writer
func NewBarProgress(writer io.Writer) *BarProgress {
	return &BarProgress{writer: writer}
}

func (p *BarProgress) Start(total int64, desc string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *BarProgress) Add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	_ = p.bar.Add64(n)
}

func (p *BarProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}

// FuncProgress 把累计完成字节交给回调，用于向 git-annex 回报 PROGRESS
type FuncProgress struct {
	mu   sync.Mutex
	done int64
	fn   func(done int64)
}

// NewFuncProgress 创建回调式进度汇报
func NewFuncProgress(fn func(done int64)) *FuncProgress {
	return &FuncProgress{fn: fn}
}

func (p *FuncProgress) Start(total int64, desc string) {
	p.mu.Lock()
	p.done = 0
	p.mu.Unlock()
}

func (p *FuncProgress) Add(n int64) {
	if n == 0 {
		return
	}
	p.mu.Lock()
	p.done += n
	done := p.done
	fn := p.fn
	p.mu.Unlock()
	if fn != nil {
		fn(done)
	}
}

func (p *FuncProgress) Finish() {}

// Multi 把同一份进度同时汇报给多个接收方
func Multi(progresses ...Progress) Progress {
	return multiProgress(progresses)
}

type multiProgress []Progress

func (m multiProgress) Start(total int64, desc string) {
	for _, p := range m {
		p.Start(total, desc)
	}
}

func (m multiProgress) Add(n int64) {
	for _, p := range m {
		p.Add(n)
	}
}

func (m multiProgress) Finish() {
	for _, p := range m {
		p.Finish()
	}
}

// NoopProgress 在不需要进度显示时使用
type NoopProgress struct{}

func (NoopProgress) Start(total int64, desc string) {}
func (NoopProgress) Add(n int64)                    {}
func (NoopProgress) Finish()                        {}

// Writer 返回一个 writer，把写入字节数转发给 Progress
func Writer(p Progress) io.Writer {
	return progressWriter{progress: p}
}

type progressWriter struct {
	progress Progress
}

func (w progressWriter) Write(b []byte) (int, error) {
	w.progress.Add(int64(len(b)))
	return len(b), nil
}
