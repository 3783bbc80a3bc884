package fingerprint

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/opencontainers/go-digest"
)

// Sum 流式计算内容的 SHA-256 摘要，返回小写十六进制
func Sum(r io.Reader) (string, error) {
	digester := digest.SHA256.Digester()
	if _, err := io.Copy(digester.Hash(), r); err != nil {
		return "", fmt.Errorf("计算摘要失败: %w", err)
	}
	return digester.Digest().Encoded(), nil
}

// Fingerprint 同步拉取资源全部内容并返回其 SHA-256 摘要。
// 非 2xx 状态码视为失败，不产生任何摘要。
func Fingerprint(ctx context.Context, client *http.Client, reference string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reference, nil)
	if err != nil {
		return "", fmt.Errorf("构造请求失败: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("拉取资源失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("拉取资源失败: %s 返回 %s", reference, resp.Status)
	}
	sum, err := Sum(resp.Body)
	if err != nil {
		return "", err
	}
	return sum, nil
}

// Line 按 digest:reference 格式拼装输出行
func Line(digestHex, reference string) string {
	return digestHex + ":" + reference
}
