package poster

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/gallerycat/internal/infra/fsx"
)

const (
	FormatJPG  = "jpg"
	FormatWebP = "webp"
)

// Store 描述海报的落盘目录与对外公开路径。
//
// 约束：
// - 海报文件名 = 视频 basename 去扩展名 + "." + Format（同名视频会互相覆盖，与目录布局无关）
// - 公开路径 = Prefix + "/" + 文件名（Prefix 只是字符串前缀，不做 URL 规范化）
type Store struct {
	Dir    string // 海报输出目录（绝对路径）
	Prefix string // 公开 URL 前缀，例如 "posters"
	Format string // "jpg" | "webp"
}

func New(dir, prefix, format string) (Store, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatJPG
	}
	if err := ValidateFormat(format); err != nil {
		return Store{}, err
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return Store{}, fmt.Errorf("海报目录不能为空")
	}
	return Store{
		Dir:    filepath.Clean(dir),
		Prefix: strings.TrimSuffix(prefix, "/"),
		Format: format,
	}, nil
}

func ValidateFormat(format string) error {
	switch format {
	case FormatJPG, FormatWebP:
		return nil
	default:
		return fmt.Errorf("poster_format 只能是 jpg 或 webp，实际是 %q", format)
	}
}

// FileName 由视频路径推导海报文件名。
func (s Store) FileName(videoPath string) (string, error) {
	base := filepath.Base(videoPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return "", fmt.Errorf("无法从 %q 推导海报文件名", videoPath)
	}
	return stem + "." + s.format(), nil
}

// OutputPath 返回海报落盘的绝对路径。
func (s Store) OutputPath(name string) string {
	return filepath.Join(s.Dir, name)
}

// PublicPath 返回海报对外公开的路径。
func (s Store) PublicPath(name string) string {
	return s.Prefix + "/" + name
}

// EnsureDir 创建海报目录（已存在同名文件时返回 *fsx.PathTypeConflictError）。
func (s Store) EnsureDir() error {
	return fsx.EnsureDir(s.Dir)
}

// Replace 让 write 把新海报写到同目录临时路径，成功后原子覆盖 name。
// write 失败时旧海报（若有）保持不变。
func (s Store) Replace(name string, write func(tmpPath string) error) error {
	return fsx.ReplaceVia(s.Dir, name, write)
}

func (s Store) format() string {
	if s.Format == "" {
		return FormatJPG
	}
	return s.Format
}
