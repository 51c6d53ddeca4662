package dicelog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// backupTimeout 是转发到远端备份接口的整体超时
const backupTimeout = 30 * time.Second

// BackupClient 负责在主存储彻底写不进去时，
// 把原始上传用相同的multipart字段名转发给远端备份接口。
// 它只是容量溢出时的泄压阀，非容量错误不会走到这里。
type BackupClient struct {
	apiURL string
	client *http.Client
}

// NewBackupClient 创建备份转发客户端，apiURL为空时表示备份路径被禁用
func NewBackupClient(apiURL string) *BackupClient {
	return &BackupClient{
		apiURL: apiURL,
		client: &http.Client{Timeout: backupTimeout},
	}
}

// Enabled 返回备份路径是否可用
func (b *BackupClient) Enabled() bool {
	return b != nil && b.apiURL != ""
}

// Forward 用等价的PUT请求把上传转发到备份接口，原样返回其JSON响应体。
// 字段名与上传契约完全一致：name、uniform_id、file。
func (b *BackupClient) Forward(ctx context.Context, name, uniformID string, fileData []byte) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("name", name); err != nil {
		return nil, fmt.Errorf("无法构造备份请求: %w", err)
	}
	if err := writer.WriteField("uniform_id", uniformID); err != nil {
		return nil, fmt.Errorf("无法构造备份请求: %w", err)
	}
	part, err := writer.CreateFormFile("file", "log.txt")
	if err != nil {
		return nil, fmt.Errorf("无法构造备份请求: %w", err)
	}
	if _, err := part.Write(fileData); err != nil {
		return nil, fmt.Errorf("无法构造备份请求: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("无法构造备份请求: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.apiURL, &body)
	if err != nil {
		return nil, fmt.Errorf("无法构造备份请求: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("备份接口请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取备份接口响应失败: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("备份接口返回异常状态 %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
