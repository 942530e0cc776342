// Package probe 通过外部 ffprobe 读取视频的基本元数据。
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/John-Robertt/gallerycat/internal/domain"
	"github.com/John-Robertt/gallerycat/internal/infra/ffmpeg"
)

// 失败阶段。
const (
	StageLookup = "lookup" // ffprobe 不可用
	StageExec   = "exec"   // 进程启动失败或非零退出
	StageParse  = "parse"  // 输出不是合法 JSON
	StageStream = "stream" // 没有可用的视频流
)

// Prober 返回视频的元数据；未知字段为 nil。
type Prober interface {
	Probe(ctx context.Context, path string) (domain.Metadata, error)
}

// Error 是一次可识别的探测失败。调用方可以把它当作“没有额外信息”处理。
type Error struct {
	Path  string
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("ffprobe %s 失败：%v", e.Stage, e.Err)
	}
	return fmt.Sprintf("ffprobe %s 失败 %q：%v", e.Stage, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsUnavailable 报告 err 是否为可识别的探测失败（*Error）。
//
// 约束：调用方 ctx 的取消/超时不算可识别失败，即使它发生在 ffprobe 运行期间；
// FFprobe.Timeout 触发的超时不包装 ctx 错误，属于可识别失败。
func IsUnavailable(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Args 返回单次 JSON 探测的 ffprobe 参数。
func Args(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	}
}

// FFprobe 是基于 ffprobe 可执行文件的 Prober。
type FFprobe struct {
	Bin     string // 为空表示 ffprobe 不可用
	Runner  ffmpeg.Runner
	Timeout time.Duration // 0 表示不限
}

func (p *FFprobe) Probe(ctx context.Context, path string) (domain.Metadata, error) {
	if p.Bin == "" {
		return domain.Metadata{}, &Error{Path: path, Stage: StageLookup, Err: ffmpeg.ErrFFprobeNotFound}
	}
	runner := p.Runner
	if runner == nil {
		runner = ffmpeg.ExecRunner{}
	}
	runCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	var out bytes.Buffer
	if err := runner.Run(runCtx, p.Bin, Args(path), &out, nil); err != nil {
		switch {
		case ctx.Err() != nil:
			// 调用方取消：向上传递，不能当作“没有额外信息”。
			err = fmt.Errorf("%w（%v）", ctx.Err(), err)
		case runCtx.Err() != nil:
			// 只是本次探测超时：普通的探测失败。
			err = fmt.Errorf("超过 %s 未完成（%v）", p.Timeout, err)
		}
		return domain.Metadata{}, &Error{Path: path, Stage: StageExec, Err: err}
	}

	md, err := ParseJSON(out.Bytes())
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return domain.Metadata{}, err
	}
	return md, nil
}
