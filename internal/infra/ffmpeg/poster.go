package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// DefaultPixFmt 是海报帧的像素格式（浏览器与 JPEG 编码器都能直接处理）。
const DefaultPixFmt = "yuv420p"

// stderr 只保留尾部，用于错误信息；ffmpeg 的 banner 很长，全部保留没有意义。
const stderrTailBytes = 2048

// PosterError 表示海报生成失败（ffmpeg 缺失、启动失败或非零退出）。
type PosterError struct {
	Src    string
	Dst    string
	Stderr string // ffmpeg stderr 尾部（verbose 模式下为空，输出已透传）
	Err    error
}

func (e *PosterError) Error() string {
	msg := fmt.Sprintf("生成海报失败 %q -> %q：%v", e.Src, e.Dst, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "；ffmpeg 输出：" + lastLine(s)
	}
	return msg
}

func (e *PosterError) Unwrap() error { return e.Err }

// PosterExtractor 调用 ffmpeg 从视频中解出一帧并写成静态图片。
type PosterExtractor struct {
	Bin    string // ffmpeg 可执行文件路径；为空表示未找到
	Runner Runner
	PixFmt string

	// Timeout > 0 时限制单次调用时长；0 表示不限（一个卡死的 ffmpeg 会一直阻塞构建）。
	Timeout time.Duration

	// VerboseOut 是 verbose 模式下 ffmpeg stdout/stderr 的去向；nil 时为 os.Stderr。
	VerboseOut io.Writer
}

// PosterArgs 返回生成海报的 ffmpeg 参数（不含可执行文件本身）。
//
//	-y                 覆盖已有输出
//	-i src             单个输入
//	-pix_fmt           固定像素格式
//	-frames:v 1        只输出一帧
//	-update 1          单图输出模式，原地覆盖
//	-strict unofficial 允许解码不严格符合规范的流
func PosterArgs(src, dst, pixFmt string) []string {
	if pixFmt == "" {
		pixFmt = DefaultPixFmt
	}
	return []string{
		"-y",
		"-i", src,
		"-pix_fmt", pixFmt,
		"-frames:v", "1",
		"-update", "1",
		"-strict", "unofficial",
		dst,
	}
}

// Extract 运行一次 ffmpeg，把 src 的一帧写到 dst。
//
// 无重试；退出状态非 0 一律返回 *PosterError。
func (e *PosterExtractor) Extract(ctx context.Context, src, dst string, verbose bool) error {
	if strings.TrimSpace(e.Bin) == "" {
		return &PosterError{Src: src, Dst: dst, Err: ErrFFmpegNotFound}
	}
	runner := e.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	var (
		stdout io.Writer
		stderr io.Writer
		tail   *tailBuffer
	)
	if verbose {
		out := e.VerboseOut
		if out == nil {
			out = os.Stderr
		}
		stdout, stderr = out, out
	} else {
		tail = &tailBuffer{max: stderrTailBytes}
		stderr = tail
	}

	err := runner.Run(ctx, e.Bin, PosterArgs(src, dst, e.PixFmt), stdout, stderr)
	if err == nil {
		return nil
	}

	pe := &PosterError{Src: src, Dst: dst, Err: err}
	if ctxErr := ctx.Err(); ctxErr != nil {
		pe.Err = fmt.Errorf("%w（%v）", ctxErr, err)
	}
	if tail != nil {
		pe.Stderr = tail.String()
	}
	return pe
}

// tailBuffer 只保留最后 max 字节。
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
