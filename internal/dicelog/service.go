package dicelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/SlpAus/sealdice-log-backend/internal/logindex"
	"github.com/SlpAus/sealdice-log-backend/internal/retention"
	"github.com/SlpAus/sealdice-log-backend/internal/store"
	"github.com/SlpAus/sealdice-log-backend/pkg/keygen"
)

const (
	// FileSizeLimitMB 是单次上传的大小上限
	FileSizeLimitMB = 5
	// FileSizeLimit 是以字节计的大小上限
	FileSizeLimit = FileSizeLimitMB * 1024 * 1024
	// capacityRetryDelay 是紧急清理之后、重试写入之前的固定等待
	capacityRetryDelay = 500 * time.Millisecond
)

// uniformIDPattern 校验uniform_id字段：非冒号字符 ":" 数字
var uniformIDPattern = regexp.MustCompile(`^[^:]+:\d+$`)

// 校验与访问类错误，由handler映射为对应的HTTP状态码
var (
	ErrBadUniformID  = errors.New("uniform_id field did not pass validation")
	ErrFileTooLarge  = errors.New("Size is too big!")
	ErrMissingParams = errors.New("Missing key or password")
	ErrAccessDenied  = errors.New("Access denied: this key is reserved")
	ErrNotFound      = errors.New("Data not found")
)

// Options 汇总Service需要的全部配置项
type Options struct {
	FrontendURL     string
	BackupAPIURL    string
	RetentionDays   int
	EmergencyDays   int
	EmergencyBudget time.Duration
}

// Service 实现上传与取回的业务逻辑。
// 所有依赖都显式注入，store缺失在setup阶段就会被拦下。
type Service struct {
	store   store.Store
	index   *logindex.Manager
	engine  *retention.Engine
	backup  *BackupClient
	opts    Options
	sweepWG sync.WaitGroup
}

// NewService 创建dicelog服务
func NewService(s store.Store, index *logindex.Manager, engine *retention.Engine, opts Options) (*Service, error) {
	if s == nil {
		return nil, errors.New("严重错误：API服务找不到KV存储绑定。请检查存储后端配置。CRITICAL ERROR: KV store binding not found.")
	}
	if opts.EmergencyDays < 1 {
		opts.EmergencyDays = 1
	}
	if opts.EmergencyBudget <= 0 {
		opts.EmergencyBudget = 5000 * time.Millisecond
	}
	return &Service{
		store:  s,
		index:  index,
		engine: engine,
		backup: NewBackupClient(opts.BackupAPIURL),
		opts:   opts,
	}, nil
}

// UploadResult 描述一次上传的结果。
// Status为200时URL有效；为202时BackupBody是备份接口的原样JSON响应。
type UploadResult struct {
	Status     int
	URL        string
	BackupBody []byte
}

// Upload 执行单次上传的完整状态机：
// 校验 → 生成寻址 → 主写入 → 索引登记与校验；
// 容量耗尽时走紧急清理加单次重试，最后才是备份转发。
func (s *Service) Upload(ctx context.Context, name, uniformID string, fileData []byte) (*UploadResult, error) {
	if !uniformIDPattern.MatchString(uniformID) {
		return nil, ErrBadUniformID
	}
	if len(fileData) > FileSizeLimit {
		return nil, ErrFileTooLarge
	}

	key, err := keygen.RandomString(keygen.KeyLength)
	if err != nil {
		return nil, err
	}
	password, err := keygen.NumericPassword()
	if err != nil {
		return nil, err
	}
	storageKey := keygen.ComposeStorageKey(key, password)

	data := NewStorageData(fileData, name)
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("无法序列化日志条目: %w", err)
	}

	putErr := s.store.Put(ctx, storageKey, string(payload))
	if putErr == nil {
		// 主写入成功：同步登记索引并校验登记结果。
		// 没进索引的上传在保留清理的账目上不算完全持久，按失败处理。
		if err := s.index.Add(ctx, storageKey, data.CreatedAt); err != nil {
			return nil, fmt.Errorf("日志已写入但索引登记失败: %w", err)
		}
		if !s.index.Contains(ctx, storageKey) {
			return nil, fmt.Errorf("日志已写入但索引登记校验失败: key=%s", storageKey)
		}
		return &UploadResult{Status: 200, URL: s.viewerURL(key, password)}, nil
	}

	if !store.IsCapacityExceeded(putErr) {
		// 非容量错误不重试也不走备份，备份只是容量溢出的泄压阀
		return nil, putErr
	}

	// 容量耗尽：紧急清理 → 固定等待 → 单次重试
	fmt.Printf("上传: 存储容量耗尽，开始紧急清理: %v\n", putErr)
	if _, err := s.engine.EmergencySweep(ctx, s.opts.EmergencyDays, s.opts.EmergencyBudget); err != nil {
		fmt.Printf("上传: 紧急清理失败（继续重试写入）: %v\n", err)
	}
	if err := sleepCtx(ctx, capacityRetryDelay); err != nil {
		return nil, err
	}

	retryErr := s.store.Put(ctx, storageKey, string(payload))
	if retryErr == nil {
		// 重试成功后索引登记只做尽力而为，失败打日志不影响响应
		if err := s.index.Add(ctx, storageKey, data.CreatedAt); err != nil {
			fmt.Printf("上传: 重试成功但索引登记失败（忽略）: %v\n", err)
		}
		return &UploadResult{Status: 200, URL: s.viewerURL(key, password)}, nil
	}

	if !s.backup.Enabled() {
		return nil, fmt.Errorf("主存储写入失败: %v; 重试也失败: %v; 未配置备份接口", putErr, retryErr)
	}

	respBody, backupErr := s.backup.Forward(ctx, name, uniformID, fileData)
	if backupErr != nil {
		return nil, fmt.Errorf("主存储写入失败: %v; 备份转发也失败: %v", retryErr, backupErr)
	}
	return &UploadResult{Status: 202, BackupBody: respBody}, nil
}

// Retrieve 按key和密码取回一条日志，返回存储中的原始JSON值。
// 保留的索引键被伪装成日志访问时直接拒绝。
func (s *Service) Retrieve(ctx context.Context, key, password string) (string, error) {
	if key == "" || password == "" {
		return "", ErrMissingParams
	}

	storageKey := key + "#" + password
	if key == logindex.IndexKey || storageKey == logindex.IndexKey {
		return "", ErrAccessDenied
	}

	raw, ok, err := s.store.Get(ctx, storageKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotFound
	}
	return raw, nil
}

// TriggerBackgroundSweep 在响应返回后异步执行一次索引清理。
// 结果只打日志，失败永远不影响已经返回的HTTP状态。
func (s *Service) TriggerBackgroundSweep() {
	s.sweepWG.Add(1)
	go func() {
		defer s.sweepWG.Done()
		result, err := s.engine.SweepWithIndex(context.Background(), s.opts.RetentionDays)
		if err != nil {
			fmt.Printf("后台清理失败（不影响响应）: %v\n", err)
			return
		}
		if result.DeletedCount > 0 {
			fmt.Printf("后台清理完成: 已删除%d条超过%d天的日志。\n", result.DeletedCount, result.RetentionDays)
		}
	}()
}

// WaitBackground 等待所有在途的后台清理结束，优雅停机时调用
func (s *Service) WaitBackground() {
	s.sweepWG.Wait()
}

// Cleanup 手动触发一次索引清理，cleanup接口使用
func (s *Service) Cleanup(ctx context.Context) (*retention.Result, error) {
	return s.engine.SweepWithIndex(ctx, s.opts.RetentionDays)
}

// viewerURL 构造带key和密码的查看器链接
func (s *Service) viewerURL(key, password string) string {
	return fmt.Sprintf("%s?key=%s#%s", s.opts.FrontendURL, key, password)
}

// sleepCtx 是可被上下文打断的休眠
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
