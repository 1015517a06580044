package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sshcollectorpro/clisession/internal/model"
)

// ErrRunNotFound 执行记录不存在
var ErrRunNotFound = errors.New("run not found")

// RunStore 执行记录的读写
type RunStore struct {
	db *gorm.DB
}

// NewRunStore 基于给定连接创建；db 为 nil 时使用全局实例
func NewRunStore(conn *gorm.DB) *RunStore {
	if conn == nil {
		conn = db
	}
	return &RunStore{db: conn}
}

// Save 写入执行记录与全部命令输出
func (s *RunStore) Save(ctx context.Context, run *model.Run) error {
	for i := range run.Commands {
		run.Commands[i].RunID = run.ID
		run.Commands[i].Seq = i
	}
	return withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(run).Error
		})
	}, 5, 50*time.Millisecond)
}

// Get 按 ID 读取，命令按提交顺序返回
func (s *RunStore) Get(ctx context.Context, id string) (*model.Run, error) {
	var run model.Run
	err := s.db.WithContext(ctx).
		Preload("Commands", func(tx *gorm.DB) *gorm.DB { return tx.Order("seq ASC") }).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List 最近的执行记录，不含命令输出；hostname 为空时不过滤
func (s *RunStore) List(ctx context.Context, hostname string, limit int) ([]model.Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Order("start_time DESC").Limit(limit)
	if hostname != "" {
		q = q.Where("hostname = ?", hostname)
	}
	var runs []model.Run
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
