// Package catalog 把目录树中的视频文件解析成有序目录（code → Video）。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/John-Robertt/gallerycat/internal/code"
	"github.com/John-Robertt/gallerycat/internal/domain"
	"github.com/John-Robertt/gallerycat/internal/infra/imgx"
	"github.com/John-Robertt/gallerycat/internal/infra/poster"
	"github.com/John-Robertt/gallerycat/internal/probe"
)

// Extractor 从视频中解出一帧写到 dst（由 ffmpeg.PosterExtractor 实现）。
type Extractor interface {
	Extract(ctx context.Context, src, dst string, verbose bool) error
}

// Request 是一次单视频解析的输入。
type Request struct {
	File         string // 视频文件路径
	AbsolutePath string // 扫描根目录；code 相对它的父目录计算
	FileKey      string // 非空时作为 Video.Path（对外服务路径与发现路径不同时使用）

	// SkipPoster 为 true 时不生成海报，宽高沿用 Known。
	SkipPoster bool
	// Known 是调用方已知的元数据；生成海报时宽高会被海报实际尺寸覆盖。
	Known domain.Metadata

	Verbose bool
}

// Resolver 为单个视频生成目录记录。
//
// 约束：
// - 每次 Resolve 至多调用一次 ffmpeg 与一次 ffprobe，无重试
// - 探测失败（*probe.Error）被吞掉，对应字段保持 nil；其他错误照常返回
// - 海报失败不会回退读取旧海报
type Resolver struct {
	Posters   *poster.Store // SkipPoster=false 时必填
	Extractor Extractor     // SkipPoster=false 时必填
	Prober    probe.Prober  // nil 表示不探测
	Logger    hclog.Logger

	// SizeOf 读取海报像素尺寸；nil 时使用 imgx.Size。
	SizeOf func(path string) (width, height int, err error)
}

// Resolve 解析一个视频文件。
func (r *Resolver) Resolve(ctx context.Context, req Request) (domain.Video, error) {
	log := r.logger()

	if strings.TrimSpace(req.File) == "" || strings.TrimSpace(req.AbsolutePath) == "" {
		return domain.Video{}, &Error{Code: domain.ErrCodeResolveFailed, Path: req.File, Err: errors.New("file 与 absolute_path 都必须非空")}
	}
	if err := ctx.Err(); err != nil {
		return domain.Video{}, err
	}

	c, err := code.Derive(req.File, req.AbsolutePath)
	if err != nil {
		return domain.Video{}, &Error{Code: domain.ErrCodeResolveFailed, Path: req.File, Err: err}
	}

	v := domain.Video{Code: c, Path: c}
	if req.FileKey != "" {
		v.Path = req.FileKey
	}

	md := req.Known
	if !req.SkipPoster {
		public, w, h, err := r.makePoster(ctx, req)
		if err != nil {
			return domain.Video{}, err
		}
		v.PosterPath = domain.String(public)
		md.Width = domain.Int(w)
		md.Height = domain.Int(h)
	}

	if md.Missing() && r.Prober != nil {
		probed, err := r.Prober.Probe(ctx, req.File)
		switch {
		case err == nil:
			md = md.FillMissing(probed)
		case probe.IsUnavailable(err):
			log.Debug("探测失败，缺失字段保持未知", "file", req.File, "error", err)
		default:
			return domain.Video{}, &Error{Code: domain.ErrCodeResolveFailed, Path: req.File, Err: err}
		}
	}

	v.Width = md.Width
	v.Height = md.Height
	v.FPS = md.FPS
	v.DurationSec = md.DurationSec
	v.NumVideoFrames = md.NumVideoFrames
	return v, nil
}

// makePoster 生成海报并返回 (公开路径, 宽, 高)。
func (r *Resolver) makePoster(ctx context.Context, req Request) (string, int, int, error) {
	if r.Posters == nil || r.Extractor == nil {
		return "", 0, 0, &Error{Code: domain.ErrCodePosterFailed, Path: req.File, Err: errors.New("未配置海报输出")}
	}
	name, err := r.Posters.FileName(req.File)
	if err != nil {
		return "", 0, 0, &Error{Code: domain.ErrCodePosterFailed, Path: req.File, Err: err}
	}
	if err := r.Posters.EnsureDir(); err != nil {
		return "", 0, 0, &Error{Code: domain.ErrCodePosterFailed, Path: req.File, Err: err}
	}

	sizeOf := r.SizeOf
	if sizeOf == nil {
		sizeOf = imgx.Size
	}

	// ffmpeg 写同目录临时文件，读出尺寸后才原子替换；任一步失败旧海报保持不变。
	var (
		w, h    int
		sizeErr error
	)
	out := r.Posters.OutputPath(name)
	err = r.Posters.Replace(name, func(tmp string) error {
		if err := r.Extractor.Extract(ctx, req.File, tmp, req.Verbose); err != nil {
			return err
		}
		w, h, sizeErr = sizeOf(tmp)
		return sizeErr
	})
	switch {
	case err == nil:
	case sizeErr != nil:
		return "", 0, 0, &Error{Code: domain.ErrCodePosterUnreadable, Path: out, Err: sizeErr}
	case ctx.Err() != nil:
		return "", 0, 0, fmt.Errorf("%w：%v", ctx.Err(), err)
	default:
		return "", 0, 0, &Error{Code: domain.ErrCodePosterFailed, Path: req.File, Err: err}
	}

	r.logger().Debug("海报已生成", "file", req.File, "poster", out, "width", w, "height", h)
	return r.Posters.PublicPath(name), w, h, nil
}

func (r *Resolver) logger() hclog.Logger {
	if r.Logger == nil {
		return hclog.NewNullLogger()
	}
	return r.Logger
}
