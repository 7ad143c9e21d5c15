package blob

import (
	"context"
	"fmt"

	"upms-teamup/backend/config"
)

// Open 根据配置选择存储实现
func Open(ctx context.Context, cfg *config.BlobConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFS, "":
		return NewFSStore(cfg.FSRoot)
	case DriverS3:
		return NewS3Store(ctx, cfg.S3)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("不支持的存储驱动: %s", cfg.Driver)
	}
}
