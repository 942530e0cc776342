package scan

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/gallerycat/internal/domain"
)

var errNotDir = errors.New("不是目录")

// DefaultExtensions 是默认匹配的视频扩展名（大小写敏感）。
var DefaultExtensions = []string{".mp4"}

// Options 控制一次扫描。
type Options struct {
	// Extensions 为空时使用 DefaultExtensions；按文件名后缀精确匹配，大小写敏感。
	Extensions []string
	// ExcludeDirs 均视为相对 root 的路径（若是绝对路径，则按绝对路径处理）。
	ExcludeDirs []string
}

// ScanVideos 递归扫描 root 下的视频文件。
//
// 规则（硬约束）：
// - root 必须存在且可读；遍历中任何 IO 错误都直接返回
// - 以 "." 开头的文件与目录一律跳过（root 本身除外）
// - 结果顺序 = filepath.WalkDir 的遍历顺序，不额外排序
//
// 注意：扫描阶段只做 stat（DirEntry.Info），不读文件内容。
func ScanVideos(root string, opt Options) ([]domain.VideoFile, error) {
	root = filepath.Clean(root)
	exts := opt.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	excluded := buildExcluded(root, opt.ExcludeDirs)

	files := make([]domain.VideoFile, 0, 128)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			if !d.IsDir() {
				return &fs.PathError{Op: "scan", Path: root, Err: errNotDir}
			}
			return nil
		}

		// 统一的跳过判断：目录用 SkipDir，文件则直接跳过。
		if isHidden(d.Name()) || isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		ext, ok := matchExt(name, exts)
		if !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		// 设备、管道等特殊文件不算视频；符号链接保留。
		if !info.Mode().IsRegular() && info.Mode()&fs.ModeSymlink == 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, domain.VideoFile{
			AbsPath: path,
			RelPath: rel,
			Base:    strings.TrimSuffix(name, ext),
			Ext:     ext,
			Size:    info.Size(),
			ModUnix: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// matchExt 返回命中的扩展名。文件名必须比扩展名长（".mp4" 本身不算）。
func matchExt(name string, exts []string) (string, bool) {
	for _, ext := range exts {
		if len(name) > len(ext) && strings.HasSuffix(name, ext) {
			return ext, true
		}
	}
	return "", false
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		// x 是相对路径：相对 root。
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
