package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote 记录被调用的操作，按需返回预设错误
type fakeRemote struct {
	calls     []string
	configs   map[string]string
	presence  bool
	presenceE error
	failWith  error
}

func (f *fakeRemote) InitRemote(a *Annex) error {
	dir, err := a.GetConfig("directory")
	if err != nil {
		return err
	}
	if dir == "" {
		return errors.New("You need to set directory=")
	}
	f.calls = append(f.calls, "initremote "+dir)
	return f.failWith
}

func (f *fakeRemote) Prepare(a *Annex) error {
	f.calls = append(f.calls, "prepare")
	return f.failWith
}

func (f *fakeRemote) Store(a *Annex, key, file string) error {
	f.calls = append(f.calls, "store "+key+" "+file)
	return f.failWith
}

func (f *fakeRemote) Retrieve(a *Annex, key, file string) error {
	a.Progress(42)
	f.calls = append(f.calls, "retrieve "+key+" "+file)
	return f.failWith
}

func (f *fakeRemote) CheckPresent(a *Annex, key string) (bool, error) {
	f.calls = append(f.calls, "checkpresent "+key)
	return f.presence, f.presenceE
}

func (f *fakeRemote) Remove(a *Annex, key string) error {
	f.calls = append(f.calls, "remove "+key)
	return f.failWith
}

type fakeExportRemote struct {
	fakeRemote
}

func (f *fakeExportRemote) StoreExport(a *Annex, key, file, name string) error {
	f.calls = append(f.calls, "storeexport "+key+" "+file+" "+name)
	return f.failWith
}

func (f *fakeExportRemote) RetrieveExport(a *Annex, key, file, name string) error {
	f.calls = append(f.calls, "retrieveexport "+key+" "+file+" "+name)
	return f.failWith
}

func (f *fakeExportRemote) CheckPresentExport(a *Annex, key, name string) (bool, error) {
	f.calls = append(f.calls, "checkpresentexport "+key+" "+name)
	return f.presence, f.presenceE
}

func (f *fakeExportRemote) RemoveExport(a *Annex, key, name string) error {
	f.calls = append(f.calls, "removeexport "+key+" "+name)
	return f.failWith
}

func (f *fakeExportRemote) RemoveExportDirectory(a *Annex, dir string) error {
	f.calls = append(f.calls, "removeexportdirectory "+dir)
	return f.failWith
}

func (f *fakeExportRemote) RenameExport(a *Annex, key, name, newName string) error {
	f.calls = append(f.calls, "renameexport "+key+" "+name+" "+newName)
	return f.failWith
}

func runSession(t *testing.T, handler Handler, input string) []string {
	t.Helper()
	var out bytes.Buffer
	listener := NewListener(handler, strings.NewReader(input), &out, nil)
	require.NoError(t, listener.Run())
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	return lines
}

func TestHandshakeAndUnsupported(t *testing.T) {
	lines := runSession(t, &fakeRemote{}, "BOGUS COMMAND\n")
	assert.Equal(t, []string{"VERSION 1", "UNSUPPORTED-REQUEST"}, lines)
}

func TestInitRemoteReadsConfig(t *testing.T) {
	remote := &fakeRemote{}
	lines := runSession(t, remote, "INITREMOTE\nVALUE /srv/annex\n")
	assert.Equal(t, []string{
		"VERSION 1",
		"GETCONFIG directory",
		"INITREMOTE-SUCCESS",
	}, lines)
	assert.Contains(t, remote.calls, "initremote /srv/annex")
}

func TestInitRemoteFailureWhenUnconfigured(t *testing.T) {
	lines := runSession(t, &fakeRemote{}, "INITREMOTE\nVALUE\n")
	assert.Equal(t, "INITREMOTE-FAILURE You need to set directory=", lines[len(lines)-1])
}

func TestTransferRetrieveReportsProgress(t *testing.T) {
	key := "SHA256E-s5--aaaa"
	lines := runSession(t, &fakeRemote{}, "TRANSFER RETRIEVE "+key+" /tmp/dest file.bin\n")
	assert.Equal(t, []string{
		"VERSION 1",
		"PROGRESS 42",
		"TRANSFER-SUCCESS RETRIEVE " + key,
	}, lines)
}

func TestTransferFileNameWithSpaces(t *testing.T) {
	remote := &fakeRemote{}
	runSession(t, remote, "TRANSFER STORE KEY1 /tmp/has space/file.bin\n")
	assert.Contains(t, remote.calls, "store KEY1 /tmp/has space/file.bin")
}

func TestTransferFailureReply(t *testing.T) {
	remote := &fakeRemote{failWith: errors.New("连接被拒绝\n第二行")}
	lines := runSession(t, remote, "TRANSFER STORE KEY1 /tmp/f\n")
	last := lines[len(lines)-1]
	assert.True(t, strings.HasPrefix(last, "TRANSFER-FAILURE STORE KEY1 "), last)
	assert.NotContains(t, last, "\n")
}

func TestCheckPresentReplies(t *testing.T) {
	lines := runSession(t, &fakeRemote{presence: true}, "CHECKPRESENT KEY1\n")
	assert.Equal(t, "CHECKPRESENT-SUCCESS KEY1", lines[len(lines)-1])

	lines = runSession(t, &fakeRemote{presence: false}, "CHECKPRESENT KEY1\n")
	assert.Equal(t, "CHECKPRESENT-FAILURE KEY1", lines[len(lines)-1])

	lines = runSession(t, &fakeRemote{presenceE: errors.New("remote unavailable")}, "CHECKPRESENT KEY1\n")
	assert.Equal(t, "CHECKPRESENT-UNKNOWN KEY1 remote unavailable", lines[len(lines)-1])
}

func TestRemoveReplies(t *testing.T) {
	lines := runSession(t, &fakeRemote{}, "REMOVE KEY1\n")
	assert.Equal(t, "REMOVE-SUCCESS KEY1", lines[len(lines)-1])

	lines = runSession(t, &fakeRemote{failWith: errors.New("nope")}, "REMOVE KEY1\n")
	assert.Equal(t, "REMOVE-FAILURE KEY1 nope", lines[len(lines)-1])
}

func TestExportSupport(t *testing.T) {
	lines := runSession(t, &fakeRemote{}, "EXPORTSUPPORTED\n")
	assert.Equal(t, "EXPORTSUPPORTED-FAILURE", lines[len(lines)-1])

	lines = runSession(t, &fakeExportRemote{}, "EXPORTSUPPORTED\n")
	assert.Equal(t, "EXPORTSUPPORTED-SUCCESS", lines[len(lines)-1])
}

func TestExportFlow(t *testing.T) {
	remote := &fakeExportRemote{}
	input := strings.Join([]string{
		"EXPORT data/report.pdf",
		"TRANSFEREXPORT STORE KEY1 /tmp/local.pdf",
		"CHECKPRESENTEXPORT KEY1",
		"REMOVEEXPORT KEY1",
		"RENAMEEXPORT KEY1 data/renamed.pdf",
		"REMOVEEXPORTDIRECTORY data",
	}, "\n") + "\n"
	lines := runSession(t, remote, input)

	assert.Contains(t, remote.calls, "storeexport KEY1 /tmp/local.pdf data/report.pdf")
	assert.Contains(t, remote.calls, "checkpresentexport KEY1 data/report.pdf")
	assert.Contains(t, remote.calls, "removeexport KEY1 data/report.pdf")
	assert.Contains(t, remote.calls, "renameexport KEY1 data/report.pdf data/renamed.pdf")
	assert.Contains(t, remote.calls, "removeexportdirectory data")

	assert.Contains(t, lines, "TRANSFER-SUCCESS STORE KEY1")
	assert.Contains(t, lines, "RENAMEEXPORT-SUCCESS KEY1")
	assert.Contains(t, lines, "REMOVEEXPORTDIRECTORY-SUCCESS")
}

func TestExportCommandsOnPlainRemote(t *testing.T) {
	lines := runSession(t, &fakeRemote{}, "TRANSFEREXPORT STORE KEY1 /tmp/f\n")
	assert.Equal(t, "UNSUPPORTED-REQUEST", lines[len(lines)-1])
}

func TestAvailabilityAndExtensions(t *testing.T) {
	lines := runSession(t, &fakeRemote{}, "GETAVAILABILITY\nEXTENSIONS INFO ASYNC\n")
	assert.Equal(t, []string{"VERSION 1", "AVAILABILITY GLOBAL", "EXTENSIONS"}, lines)
}

func TestGetCostIsUnsupported(t *testing.T) {
	// 不实现 GETCOST，让 git-annex 按默认成本处理
	lines := runSession(t, &fakeRemote{}, "GETCOST\n")
	assert.Equal(t, []string{"VERSION 1", "UNSUPPORTED-REQUEST"}, lines)
}

func TestDirHashRoundTrip(t *testing.T) {
	var out bytes.Buffer
	input := "VALUE f87/4d5/\n"
	annex := &Annex{in: bufio.NewScanner(strings.NewReader(input)), out: &out}
	hash, err := annex.DirHash("KEY1")
	require.NoError(t, err)
	assert.Equal(t, "f87/4d5/", hash)
	assert.Equal(t, "DIRHASH KEY1\n", out.String())
}
