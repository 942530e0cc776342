package code

import (
	"fmt"
	"path/filepath"
	"strings"
)

// OutsideRootError 表示文件不在扫描根目录的父目录之下，无法推导出稳定的 code。
type OutsideRootError struct {
	File string
	Base string // 扫描根目录的父目录
}

func (e *OutsideRootError) Error() string {
	return fmt.Sprintf("文件 %q 不在 %q 之下，无法推导 code", e.File, e.Base)
}

// Derive 从文件路径推导目录中的 code：相对于 root 的父目录的路径。
//
// 约束：
// - 结果包含 root 的最后一段（例如 root=/data/gallery，file=/data/gallery/a/x.mp4 → "gallery/a/x.mp4"）
// - 分隔符统一为 "/"，与平台无关
// - 只做纯路径运算，不访问文件系统；不解析符号链接
// - file 与 root 必须同为绝对路径或同为相对路径
func Derive(file, root string) (string, error) {
	base := filepath.Dir(filepath.Clean(root))
	rel, err := filepath.Rel(base, filepath.Clean(file))
	if err != nil {
		return "", fmt.Errorf("推导 code 失败：%w", err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &OutsideRootError{File: file, Base: base}
	}
	return filepath.ToSlash(rel), nil
}
