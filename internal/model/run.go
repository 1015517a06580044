package model

import (
	"time"
)

// Run 一次命令批次的执行记录
type Run struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(64)"`
	SessionID  string `json:"session_id" gorm:"type:varchar(64);index"`
	Hostname   string `json:"hostname" gorm:"type:varchar(128);not null;index"`
	Port       int    `json:"port"`
	Protocol   string `json:"protocol" gorm:"type:varchar(16);not null"`
	DeviceType string `json:"device_type" gorm:"type:varchar(64);not null"`
	Mode       string `json:"mode" gorm:"type:varchar(16);not null"`
	Status     string `json:"status" gorm:"type:varchar(16);not null;default:'running'"`
	// ErrorKind 错误类别代码，见 clierr.Kind
	ErrorKind  string       `json:"error_kind,omitempty" gorm:"type:varchar(32)"`
	ErrorMsg   string       `json:"error_msg,omitempty" gorm:"type:text"`
	ArchiveURI string       `json:"archive_uri,omitempty" gorm:"type:varchar(512)"`
	StartTime  time.Time    `json:"start_time"`
	EndTime    time.Time    `json:"end_time"`
	Duration   int64        `json:"duration"` // 毫秒
	Commands   []RunCommand `json:"commands,omitempty" gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time    `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (Run) TableName() string {
	return "runs"
}

// RunStatus 执行状态
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// RunCommand 批次中单条命令的输出，Seq 保持提交顺序
type RunCommand struct {
	ID      uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	RunID   string `json:"-" gorm:"type:varchar(64);not null;index"`
	Seq     int    `json:"seq" gorm:"not null"`
	Command string `json:"command" gorm:"type:text;not null"`
	Output  string `json:"output" gorm:"type:text"`
}

// TableName 表名
func (RunCommand) TableName() string {
	return "run_commands"
}
