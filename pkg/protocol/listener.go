package protocol

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
)

// Listener 驱动协议主循环：读一条命令、交给 handler、写一条回复。
// 协议是严格串行的，任一时刻只有一条命令在处理。
type Listener struct {
	handler Handler
	annex   *Annex
	logger  *slog.Logger
	export  string
}

// NewListener 创建协议监听器，r/w 通常是 stdin/stdout
func NewListener(handler Handler, r io.Reader, w io.Writer, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Listener{
		handler: handler,
		annex:   &Annex{in: bufio.NewScanner(r), out: w},
		logger:  logger,
	}
}

// Run 发送版本握手并处理命令直到输入结束
func (l *Listener) Run() error {
	l.annex.send("VERSION", "1")
	for l.annex.in.Scan() {
		line := l.annex.in.Text()
		if line == "" {
			continue
		}
		l.logger.Debug("收到命令", "line", line)
		l.dispatch(line)
	}
	return l.annex.in.Err()
}

func (l *Listener) dispatch(line string) {
	cmd, rest, _ := strings.Cut(line, " ")
	a := l.annex
	switch cmd {
	case "INITREMOTE":
		l.replyResult("INITREMOTE", l.handler.InitRemote(a))
	case "PREPARE":
		l.replyResult("PREPARE", l.handler.Prepare(a))
	case "TRANSFER":
		l.handleTransfer(rest, false)
	case "CHECKPRESENT":
		l.replyPresence(rest, func() (bool, error) { return l.handler.CheckPresent(a, rest) })
	case "REMOVE":
		l.replyKeyed("REMOVE", rest, l.handler.Remove(a, rest))
	case "GETAVAILABILITY":
		a.send("AVAILABILITY", "GLOBAL")
	case "EXTENSIONS":
		a.send("EXTENSIONS")
	case "EXPORTSUPPORTED":
		if _, ok := l.handler.(ExportHandler); ok {
			a.send("EXPORTSUPPORTED-SUCCESS")
		} else {
			a.send("EXPORTSUPPORTED-FAILURE")
		}
	case "EXPORT":
		l.export = rest
	case "TRANSFEREXPORT":
		l.handleTransfer(rest, true)
	case "CHECKPRESENTEXPORT":
		handler, ok := l.handler.(ExportHandler)
		if !ok {
			a.send("UNSUPPORTED-REQUEST")
			return
		}
		l.replyPresence(rest, func() (bool, error) { return handler.CheckPresentExport(a, rest, l.export) })
	case "REMOVEEXPORT":
		handler, ok := l.handler.(ExportHandler)
		if !ok {
			a.send("UNSUPPORTED-REQUEST")
			return
		}
		l.replyKeyed("REMOVE", rest, handler.RemoveExport(a, rest, l.export))
	case "REMOVEEXPORTDIRECTORY":
		handler, ok := l.handler.(ExportHandler)
		if !ok {
			a.send("UNSUPPORTED-REQUEST")
			return
		}
		if err := handler.RemoveExportDirectory(a, rest); err != nil {
			a.send("REMOVEEXPORTDIRECTORY-FAILURE")
		} else {
			a.send("REMOVEEXPORTDIRECTORY-SUCCESS")
		}
	case "RENAMEEXPORT":
		handler, ok := l.handler.(ExportHandler)
		if !ok {
			a.send("UNSUPPORTED-REQUEST")
			return
		}
		key, newName, found := strings.Cut(rest, " ")
		if !found {
			a.send("RENAMEEXPORT-FAILURE", key)
			return
		}
		if err := handler.RenameExport(a, key, l.export, newName); err != nil {
			l.logger.Warn("重命名失败", "key", key, "err", err)
			a.send("RENAMEEXPORT-FAILURE", key)
		} else {
			a.send("RENAMEEXPORT-SUCCESS", key)
		}
	default:
		a.send("UNSUPPORTED-REQUEST")
	}
}

// handleTransfer 处理 TRANSFER 与 TRANSFEREXPORT，文件名可能含空格，
// 取 key 之后的整段剩余内容
func (l *Listener) handleTransfer(rest string, export bool) {
	a := l.annex
	direction, rest, _ := strings.Cut(rest, " ")
	key, file, found := strings.Cut(rest, " ")
	if !found || file == "" {
		a.send("TRANSFER-FAILURE", direction, key, "缺少文件参数")
		return
	}

	var err error
	switch {
	case export:
		handler, ok := l.handler.(ExportHandler)
		if !ok {
			a.send("UNSUPPORTED-REQUEST")
			return
		}
		switch direction {
		case "STORE":
			err = handler.StoreExport(a, key, file, l.export)
		case "RETRIEVE":
			err = handler.RetrieveExport(a, key, file, l.export)
		default:
			a.send("UNSUPPORTED-REQUEST")
			return
		}
	case direction == "STORE":
		err = l.handler.Store(a, key, file)
	case direction == "RETRIEVE":
		err = l.handler.Retrieve(a, key, file)
	default:
		a.send("UNSUPPORTED-REQUEST")
		return
	}

	if err != nil {
		l.logger.Warn("传输失败", "direction", direction, "key", key, "err", err)
		a.send("TRANSFER-FAILURE", direction, key, sanitize(err.Error()))
		return
	}
	a.send("TRANSFER-SUCCESS", direction, key)
}

func (l *Listener) replyResult(command string, err error) {
	if err != nil {
		l.logger.Warn("命令失败", "command", command, "err", err)
		l.annex.send(command+"-FAILURE", sanitize(err.Error()))
		return
	}
	l.annex.send(command + "-SUCCESS")
}

func (l *Listener) replyKeyed(command, key string, err error) {
	if err != nil {
		l.logger.Warn("命令失败", "command", command, "key", key, "err", err)
		l.annex.send(command+"-FAILURE", key, sanitize(err.Error()))
		return
	}
	l.annex.send(command+"-SUCCESS", key)
}

func (l *Listener) replyPresence(key string, check func() (bool, error)) {
	present, err := check()
	switch {
	case err != nil:
		l.annex.send("CHECKPRESENT-UNKNOWN", key, sanitize(err.Error()))
	case present:
		l.annex.send("CHECKPRESENT-SUCCESS", key)
	default:
		l.annex.send("CHECKPRESENT-FAILURE", key)
	}
}
