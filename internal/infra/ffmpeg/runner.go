// Package ffmpeg 封装对外部 ffmpeg/ffprobe 可执行文件的调用。
//
// 本包只负责“怎么调用”：定位可执行文件、拼参数、检查退出状态；
// 不做任何编解码。
package ffmpeg

import (
	"context"
	"errors"
	"io"
	"os/exec"
)

// 哨兵错误：可执行文件不在 PATH 上。
var (
	ErrFFmpegNotFound  = errors.New("ffmpeg 不在 PATH 上")
	ErrFFprobeNotFound = errors.New("ffprobe 不在 PATH 上")
)

// Runner 执行一个外部命令并阻塞到它退出。
//
// stdout/stderr 为 nil 时丢弃对应输出。测试可用假实现替换，避免依赖真实 ffmpeg。
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

// ExecRunner 是基于 os/exec 的 Runner。
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Run 返回前会等待进程退出并关闭所有标准流句柄。
	return cmd.Run()
}

// Locate 在可执行搜索路径中查找 name；override 非空时优先使用 override。
func Locate(name, override string) (string, error) {
	target := name
	if override != "" {
		target = override
	}
	p, err := exec.LookPath(target)
	if err == nil {
		return p, nil
	}
	switch name {
	case "ffmpeg":
		return "", errors.Join(ErrFFmpegNotFound, err)
	case "ffprobe":
		return "", errors.Join(ErrFFprobeNotFound, err)
	default:
		return "", err
	}
}
