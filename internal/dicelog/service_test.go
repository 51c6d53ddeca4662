package dicelog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/SlpAus/sealdice-log-backend/internal/logindex"
	"github.com/SlpAus/sealdice-log-backend/internal/retention"
	"github.com/SlpAus/sealdice-log-backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, ms *store.MemoryStore, opts Options) (*Service, *logindex.Manager) {
	t.Helper()
	idx := logindex.NewManager(ms, 3)
	engine := retention.NewEngine(ms, idx)
	if opts.FrontendURL == "" {
		opts.FrontendURL = "https://front.example.com/"
	}
	if opts.RetentionDays == 0 {
		opts.RetentionDays = 30
	}
	svc, err := NewService(ms, idx, engine, opts)
	require.NoError(t, err)
	return svc, idx
}

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := NewService(nil, nil, nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRITICAL ERROR")
}

func TestUploadRoundTrip(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	svc, idx := newTestService(t, ms, Options{})

	payload := []byte("0123456789")
	result, err := svc.Upload(ctx, "t", "grp:123", payload)
	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)

	urlPattern := regexp.MustCompile(`^https://front\.example\.com/\?key=([A-Za-z0-9]{4})#(\d{6})$`)
	matches := urlPattern.FindStringSubmatch(result.URL)
	require.Len(t, matches, 3, "返回URL格式不正确: %s", result.URL)
	key, password := matches[1], matches[2]

	// 上传完成后索引中必须已有对应条目
	assert.True(t, idx.Contains(ctx, key+"#"+password))

	raw, err := svc.Retrieve(ctx, key, password)
	require.NoError(t, err)

	var data StorageData
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	assert.Equal(t, ClientName, data.Client)
	assert.Equal(t, "t", data.Name)
	assert.Empty(t, data.Note)
	assert.Equal(t, data.CreatedAt, data.UpdatedAt)

	decoded, err := base64.StdEncoding.DecodeString(data.Data)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded, "base64负载必须精确还原上传的原始字节")
}

func TestUploadValidation(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	svc, _ := newTestService(t, ms, Options{})

	_, err := svc.Upload(ctx, "t", "no-colon-or-digits", []byte("x"))
	assert.ErrorIs(t, err, ErrBadUniformID)

	_, err = svc.Upload(ctx, "t", "grp:abc", []byte("x"))
	assert.ErrorIs(t, err, ErrBadUniformID)

	_, err = svc.Upload(ctx, "t", "grp:123", make([]byte, FileSizeLimit+1))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	// 恰好到上限的文件可以接受
	_, err = svc.Upload(ctx, "t", "grp:123", make([]byte, FileSizeLimit))
	assert.NoError(t, err)
}

func TestRetrieveErrors(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	svc, _ := newTestService(t, ms, Options{})

	_, err := svc.Retrieve(ctx, "", "123456")
	assert.ErrorIs(t, err, ErrMissingParams)
	_, err = svc.Retrieve(ctx, "aB3x", "")
	assert.ErrorIs(t, err, ErrMissingParams)

	// 保留的索引键不允许被当作日志取回
	_, err = svc.Retrieve(ctx, logindex.IndexKey, "123456")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.Retrieve(ctx, "nope", "000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

// seedOldLog 直接写入一条过期日志并登记索引
func seedOldLog(t *testing.T, ms *store.MemoryStore, idx *logindex.Manager, key string, age time.Duration) {
	t.Helper()
	ctx := context.Background()
	ts := time.Now().Add(-age).UTC().Format(time.RFC3339)
	payload, err := json.Marshal(StorageData{
		Client: ClientName, CreatedAt: ts, UpdatedAt: ts,
		Data: base64.StdEncoding.EncodeToString([]byte("old")), Name: "old",
	})
	require.NoError(t, err)
	require.NoError(t, ms.Put(ctx, key, string(payload)))
	require.NoError(t, idx.Add(ctx, key, ts))
}

func TestUploadCapacityEmergencyRetrySucceeds(t *testing.T) {
	// 场景：首次写入容量耗尽 → 紧急清理腾出空间 → 单次重试成功 → 仍然返回200
	ctx := context.Background()
	ms := store.NewMemoryStore()
	svc, idx := newTestService(t, ms, Options{
		EmergencyDays:   1,
		EmergencyBudget: 5 * time.Second,
	})

	seedOldLog(t, ms, idx, "old1#111111", 10*24*time.Hour)
	seedOldLog(t, ms, idx, "old2#222222", 5*24*time.Hour)
	// 索引表本身占一个条目，配额3意味着没有新日志的空位
	ms.MaxEntries = 3

	result, err := svc.Upload(ctx, "t", "grp:123", []byte("fresh"))
	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)
	assert.Contains(t, result.URL, "?key=")

	// 旧条目已被紧急清理淘汰
	_, ok, _ := ms.Get(ctx, "old1#111111")
	assert.False(t, ok)
}

func TestUploadCapacityBackupFallback(t *testing.T) {
	// 场景：紧急清理后重试仍失败，备份接口接受 → 202并原样转发其JSON响应
	ctx := context.Background()

	var gotMethod, gotName, gotUniformID string
	var gotFile []byte
	backupSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		require.NoError(t, r.ParseMultipartForm(32<<20))
		gotName = r.FormValue("name")
		gotUniformID = r.FormValue("uniform_id")
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		gotFile, err = io.ReadAll(f)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"url":"https://backup.example.com/?key=zzzz#000000"}`))
	}))
	defer backupSrv.Close()

	ms := store.NewMemoryStore()
	// 所有日志键的写入都报容量错误，索引键放行
	ms.PutHook = func(key string) error {
		if key == logindex.IndexKey {
			return nil
		}
		return fmt.Errorf("%w: injected", store.ErrCapacityExceeded)
	}
	svc, _ := newTestService(t, ms, Options{
		BackupAPIURL:    backupSrv.URL,
		EmergencyDays:   1,
		EmergencyBudget: time.Second,
	})

	result, err := svc.Upload(ctx, "t", "grp:123", []byte("payload-bytes"))
	require.NoError(t, err)
	assert.Equal(t, 202, result.Status)
	assert.JSONEq(t, `{"url":"https://backup.example.com/?key=zzzz#000000"}`, string(result.BackupBody))

	// 转发契约：等价的PUT，字段名完全一致
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "t", gotName)
	assert.Equal(t, "grp:123", gotUniformID)
	assert.Equal(t, "payload-bytes", string(gotFile))
}

func TestUploadCapacityNoBackupCompositeError(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	ms.PutHook = func(key string) error {
		if key == logindex.IndexKey {
			return nil
		}
		return fmt.Errorf("%w: injected", store.ErrCapacityExceeded)
	}
	svc, _ := newTestService(t, ms, Options{
		EmergencyDays:   1,
		EmergencyBudget: time.Second,
	})

	_, err := svc.Upload(ctx, "t", "grp:123", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "未配置备份接口")
}

func TestUploadNonCapacityErrorIsFatal(t *testing.T) {
	// 非容量错误不重试、不走备份，直接上抛
	ctx := context.Background()
	backupCalled := false
	backupSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupCalled = true
	}))
	defer backupSrv.Close()

	ms := store.NewMemoryStore()
	puts := 0
	ms.PutHook = func(key string) error {
		if key == logindex.IndexKey {
			return nil
		}
		puts++
		return fmt.Errorf("%w: connection reset", store.ErrUnavailable)
	}
	svc, _ := newTestService(t, ms, Options{BackupAPIURL: backupSrv.URL})

	_, err := svc.Upload(ctx, "t", "grp:123", []byte("x"))
	require.Error(t, err)
	assert.True(t, store.IsUnavailable(err))
	assert.Equal(t, 1, puts, "非容量错误不应触发重试")
	assert.False(t, backupCalled, "非容量错误不应触发备份转发")
}

func TestBackgroundSweepReconciles(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	svc, idx := newTestService(t, ms, Options{RetentionDays: 30})

	seedOldLog(t, ms, idx, "old1#111111", 40*24*time.Hour)

	svc.TriggerBackgroundSweep()
	svc.WaitBackground()

	_, ok, _ := ms.Get(ctx, "old1#111111")
	assert.False(t, ok, "后台清理应删除超过保留窗口的条目")
	assert.False(t, idx.Contains(ctx, "old1#111111"))
}
