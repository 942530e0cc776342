package app

import (
	"sort"

	"github.com/John-Robertt/gallerycat/internal/domain"
	"github.com/John-Robertt/gallerycat/internal/infra/poster"
)

// PosterCollision 是一组会写到同一个海报文件的视频（后解析的覆盖先解析的）。
type PosterCollision struct {
	Name  string   // 海报文件名
	Files []string // 相对扫描根目录的路径，按字典序
}

// GroupByPosterName 把视频文件按海报文件名分组，只返回有冲突（>1 个文件）的组。
//
// 海报文件名只取 basename，不同子目录下的同名视频会共用一张海报。
// - 结果稳定排序：按 Name 字典序
// - 组内 Files 稳定排序：按 RelPath 字典序
func GroupByPosterName(files []domain.VideoFile, st poster.Store) []PosterCollision {
	index := make(map[string]int, len(files))
	groups := make([]PosterCollision, 0, 8)

	for i := range files {
		name, err := st.FileName(files[i].AbsPath)
		if err != nil {
			// 无法推导文件名的视频在解析阶段会单独报错，这里不重复处理。
			continue
		}
		if idx, ok := index[name]; ok {
			groups[idx].Files = append(groups[idx].Files, files[i].RelPath)
			continue
		}
		index[name] = len(groups)
		groups = append(groups, PosterCollision{Name: name, Files: []string{files[i].RelPath}})
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.Files) > 1 {
			sort.Strings(g.Files)
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
