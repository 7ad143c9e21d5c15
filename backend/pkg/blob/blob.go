package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// Driver 存储后端类型
type Driver string

const (
	DriverFS     Driver = "fs"
	DriverS3     Driver = "s3"
	DriverMemory Driver = "memory"
)

var (
	ErrNotFound   = errors.New("文件不存在")
	ErrInvalidKey = errors.New("文件键不合法")
)

// PutOptions 写入选项
type PutOptions struct {
	ContentType string
}

// Info 已存储对象的描述
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store 上传文件存储接口
// key 使用 / 分隔的相对路径，同一 key 再次写入会覆盖
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Driver() Driver
}

// CleanKey 规范化 key，拒绝绝对路径与 .. 穿越
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", ErrInvalidKey
		}
	}
	clean := path.Clean(key)
	if clean == "." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}
