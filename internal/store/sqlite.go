package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record 定义了SQLite后端存储键值对的表结构
type Record struct {
	ID    uint   `gorm:"primarykey"`
	Key   string `gorm:"uniqueIndex;not null;type:varchar(255)"`
	Value string `gorm:"type:text"`
}

// SqliteStore 是基于gorm/SQLite的Store实现，
// 面向没有Redis的小型部署。MaxEntries>0时启用条目配额。
type SqliteStore struct {
	db         *gorm.DB
	maxEntries int64
}

// NewSqliteStore 创建SqliteStore并迁移表结构
func NewSqliteStore(db *gorm.DB, maxEntries int64) (*SqliteStore, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("无法迁移KV记录表: %w", err)
	}
	return &SqliteStore{db: db, maxEntries: maxEntries}, nil
}

// Get 读取键对应的值，不存在时返回("", false, nil)
func (s *SqliteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rec.Value, true, nil
}

// Put 写入键值。新键会先检查条目配额，超限返回ErrCapacityExceeded。
func (s *SqliteStore) Put(ctx context.Context, key string, value string) error {
	db := s.db.WithContext(ctx)

	if s.maxEntries > 0 {
		var exists int64
		if err := db.Model(&Record{}).Where("key = ?", key).Count(&exists).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if exists == 0 {
			var total int64
			if err := db.Model(&Record{}).Count(&total).Error; err != nil {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			if total >= s.maxEntries {
				return fmt.Errorf("%w: 已达到条目配额 %d", ErrCapacityExceeded, s.maxEntries)
			}
		}
	}

	// 使用OnConflict执行原子的UPSERT操作
	rec := Record{Key: key, Value: value}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete 幂等删除
func (s *SqliteStore) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&Record{}).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// List 按键升序做keyset分页，游标是上一页的最后一个键
func (s *SqliteStore) List(ctx context.Context, cursor string, limit int64) (*ListResult, error) {
	if limit <= 0 {
		limit = 1000
	}

	var recs []Record
	q := s.db.WithContext(ctx).Model(&Record{}).Order("key asc").Limit(int(limit))
	if cursor != "" {
		q = q.Where("key > ?", cursor)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	result := &ListResult{Keys: make([]KeyInfo, 0, len(recs))}
	for _, r := range recs {
		result.Keys = append(result.Keys, KeyInfo{Name: r.Key})
	}
	if int64(len(recs)) < limit {
		result.Complete = true
	} else {
		result.Cursor = recs[len(recs)-1].Key
	}
	return result, nil
}
