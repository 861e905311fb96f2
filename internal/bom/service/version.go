package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bitfantasy/nimo-bom/internal/bom/repository"
)

const initialVersion = "v1"

// versionAllocationRetries 唯一索引冲突时的重试次数上限
const versionAllocationRetries = 3

// NextVersion 计算(name, level, parent_id)标识下的下一个版本标签
// 必须与其服务的插入跑在同一事务内：先取标识级咨询锁串行化读取-插入，
// 唯一索引加调用方重试兜底
func NextVersion(ctx context.Context, bomRepo *repository.BOMRepository, name string, level int, parentID *string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	if err := bomRepo.LockIdentity(ctx, name, level, parentID); err != nil {
		return "", fmt.Errorf("lock identity: %w", err)
	}

	versions, err := bomRepo.ListVersions(ctx, name, level, parentID)
	if err != nil {
		return "", fmt.Errorf("list versions: %w", err)
	}

	max := 0
	for _, v := range versions {
		if n, ok := parseVersion(v); ok && n > max {
			max = n
		}
	}
	if max == 0 {
		return initialVersion, nil
	}
	return fmt.Sprintf("v%d", max+1), nil
}

// parseVersion 解析"v<n>"标签的数字后缀
func parseVersion(label string) (int, bool) {
	trimmed := strings.TrimPrefix(label, "v")
	n, err := strconv.Atoi(trimmed)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
