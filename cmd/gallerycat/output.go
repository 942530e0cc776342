package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/John-Robertt/gallerycat/internal/domain"
	"github.com/John-Robertt/gallerycat/internal/infra/fsx"
)

// scanOutput 是 scan 在 stdout（非 TTY）与 --out 中输出的唯一 JSON 值。
type scanOutput struct {
	Report domain.BuildReport `json:"report"`
	Videos domain.Catalog     `json:"videos"`
}

type errorOutput struct {
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

func (c *cli) printUsage() {
	fmt.Fprint(c.stdout, `用法：
  gallerycat scan [gallery_path] [选项]
  gallerycat resolve <file> [选项]

命令：
  scan     扫描目录，为每个视频生成海报并输出目录
  resolve  解析单个视频

使用 "gallerycat scan --help" / "gallerycat resolve --help" 查看详细说明。
`)
}

const commonUsage = `  --config f     配置文件（必须存在）；未指定时可选读取 ./gallerycat.yaml
  --posters dir  海报输出目录（默认 $DATA_PATH/posters）
  --prefix p     海报公开路径前缀（默认 posters；--prefix= 表示空前缀）
  --no-poster    不生成海报（宽高只能来自探测）
  -v, --verbose  输出调试日志，并透传 ffmpeg 输出到 stderr
  -h, --help     显示帮助
`

func (c *cli) printScanUsage() {
	fmt.Fprint(c.stdout, `用法：
  gallerycat scan [gallery_path] [选项]

参数：
  gallery_path   扫描根目录（默认 $DATA_PATH/gallery）
  --keep-going   单个视频失败时跳过并记入报告（默认中止）
  --out file     以原子写导出 {"report":…, "videos":…} JSON
`+commonUsage)
}

func (c *cli) printResolveUsage() {
	fmt.Fprint(c.stdout, `用法：
  gallerycat resolve <file> [选项]

参数：
  --root dir       扫描根目录，code 相对它的父目录计算（默认 gallery_path）
  --file-key k     覆盖输出中的 path
  --width n        已知宽度（生成海报时会被海报尺寸覆盖）
  --height n       已知高度（同上）
  --fps x          已知帧率
  --duration x     已知时长（秒）
  --frames n       已知帧数
`+commonUsage)
}

func (c *cli) emitScan(rr domain.BuildReport, cat domain.Catalog) {
	summary := fmt.Sprintf("完成：scanned=%d resolved=%d failed=%d\n",
		rr.Summary.Scanned, rr.Summary.Resolved, rr.Summary.Failed,
	)

	if c.stdoutTTY {
		fmt.Fprint(c.stdout, summary)
		for _, f := range rr.Failures {
			key := f.Path
			if key == "" {
				key = "<unknown>"
			}
			fmt.Fprintf(c.stderr, "%s %s: %s\n", key, f.ErrorCode, f.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(c.stdout)
	_ = enc.Encode(scanOutput{Report: rr, Videos: cat})
	fmt.Fprint(c.stderr, summary)
}

func (c *cli) emitVideo(v domain.Video) {
	if c.stdoutTTY {
		b, _ := json.MarshalIndent(v, "", "  ")
		fmt.Fprintln(c.stdout, string(b))
		return
	}
	_ = json.NewEncoder(c.stdout).Encode(v)
}

func (c *cli) emitResolveError(err error) {
	code := errorCode(err)
	fmt.Fprintf(c.stderr, "%s: %v\n", code, err)
	if !c.stdoutTTY {
		_ = json.NewEncoder(c.stdout).Encode(errorOutput{ErrorCode: code, ErrorMsg: err.Error()})
	}
}

// reportForError 为“还没开始构建就失败”的情况（例如配置错误）生成一份报告。
func reportForError(root string, err error) domain.BuildReport {
	now := time.Now().UTC()
	rr := domain.BuildReport{
		Root:       root,
		StartedAt:  now,
		FinishedAt: now,
	}
	addFailure(&rr, err)
	return rr
}

// addFailure 确保错误出现在报告里：构建层已经记录的（逐视频失败）不重复记录。
func addFailure(rr *domain.BuildReport, err error) {
	if err == nil {
		return
	}
	code := errorCode(err)
	for _, f := range rr.Failures {
		if f.ErrorCode == code && f.ErrorMsg == err.Error() {
			rr.Finalize()
			return
		}
	}
	rr.Failures = append(rr.Failures, domain.ResolveFailed{
		Path:      "",
		ErrorCode: code,
		ErrorMsg:  err.Error(),
	})
	rr.Finalize()
}

func writeScanFile(path string, rr domain.BuildReport, cat domain.Catalog) error {
	b, err := json.MarshalIndent(scanOutput{Report: rr, Videos: cat}, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if err := fsx.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), b)
}
