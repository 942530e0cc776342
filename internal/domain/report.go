package domain

import (
	"sort"
	"time"
)

const (
	ErrCodeScanFailed       = "scan_failed"
	ErrCodePosterFailed     = "poster_failed"
	ErrCodePosterUnreadable = "poster_unreadable"
	ErrCodeResolveFailed    = "resolve_failed"
	ErrCodeConfigNotFound   = "config_not_found"
	ErrCodeConfigInvalid    = "config_invalid"
	ErrCodeCanceled         = "canceled"
)

// BuildReport 是一次目录构建的对外稳定摘要（stdout JSON / --out 导出）。
type BuildReport struct {
	RunID string `json:"run_id"`
	Root  string `json:"root"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary  BuildSummary    `json:"summary"`
	Failures []ResolveFailed `json:"failures"`
}

type BuildSummary struct {
	Scanned  int `json:"scanned"`
	Resolved int `json:"resolved"`
	Failed   int `json:"failed"`
}

// ResolveFailed 记录 keep-going 模式下被跳过的文件。
type ResolveFailed struct {
	Path      string `json:"path"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) failures 稳定排序：按 path 字典序
// 3) summary.failed 由 failures 计算得出（scanned/resolved 由调用方填写）
func (r *BuildReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Failures == nil {
		r.Failures = []ResolveFailed{}
	}
	sort.SliceStable(r.Failures, func(i, j int) bool { return r.Failures[i].Path < r.Failures[j].Path })
	r.Summary.Failed = len(r.Failures)
}
