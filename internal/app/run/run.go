package run

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/John-Robertt/gallerycat/internal/app"
	"github.com/John-Robertt/gallerycat/internal/catalog"
	"github.com/John-Robertt/gallerycat/internal/config"
	"github.com/John-Robertt/gallerycat/internal/domain"
	"github.com/John-Robertt/gallerycat/internal/infra/ffmpeg"
	"github.com/John-Robertt/gallerycat/internal/infra/poster"
	"github.com/John-Robertt/gallerycat/internal/probe"
	"github.com/John-Robertt/gallerycat/internal/scan"
)

// Deps 是 run 层的可替换外部依赖（nil 字段使用真实实现）。
type Deps struct {
	Runner ffmpeg.Runner
	Logger hclog.Logger

	// Locate 查找外部工具；默认 ffmpeg.Locate。
	Locate func(name, override string) (string, error)
}

func (d Deps) logger() hclog.Logger {
	if d.Logger == nil {
		return hclog.NewNullLogger()
	}
	return d.Logger
}

// Execute 构建 eff.GalleryPath 的目录，并返回对外稳定的 BuildReport。
//
// 失败策略由 eff.KeepGoing 决定：默认任一视频失败即返回错误与零值 Catalog。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) (domain.Catalog, domain.BuildReport, error) {
	if obs != nil {
		obs.OnStart(eff)
	}
	log := deps.logger()

	resolver, err := NewResolver(eff, deps, eff.GeneratePosters)
	if err != nil {
		now := time.Now()
		rr := domain.BuildReport{RunID: uuid.NewString(), Root: eff.GalleryPath, StartedAt: now, FinishedAt: now}
		rr.Finalize()
		return domain.Catalog{}, rr, err
	}

	b := &catalog.Builder{
		Resolver: resolver,
		Scan: scan.Options{
			Extensions:  eff.Extensions,
			ExcludeDirs: eff.ExcludeDirs,
		},
		SkipPoster: !eff.GeneratePosters,
		KeepGoing:  eff.KeepGoing,
		Verbose:    eff.Verbose,
		Logger:     log.Named("build"),
	}
	b.Hooks.OnScanDone = func(files []domain.VideoFile, dur time.Duration) {
		if resolver.Posters != nil {
			for _, c := range app.GroupByPosterName(files, *resolver.Posters) {
				log.Warn("多个视频共用同一张海报，后解析的会覆盖先解析的", "poster", c.Name, "files", c.Files)
			}
		}
		if obs != nil {
			obs.OnScanDone(len(files), dur)
		}
	}
	if obs != nil {
		b.Hooks.OnVideoDone = func(idx, total int, f domain.VideoFile, v domain.Video, err error, dur time.Duration) {
			obs.OnVideoDone(idx, total, filepath.ToSlash(f.RelPath), v, err, dur)
		}
	}

	return b.Build(ctx, eff.GalleryPath)
}

// ResolveOne 解析单个视频（不扫描目录）。req.AbsolutePath 为空时使用 eff.GalleryPath。
func ResolveOne(ctx context.Context, eff config.EffectiveConfig, deps Deps, req catalog.Request) (domain.Video, error) {
	if req.AbsolutePath == "" {
		req.AbsolutePath = eff.GalleryPath
	}
	r, err := NewResolver(eff, deps, !req.SkipPoster)
	if err != nil {
		return domain.Video{}, err
	}
	return r.Resolve(ctx, req)
}

// NewResolver 按配置组装 Resolver：定位外部工具、准备海报目录。
//
// 约束：
// - 需要海报但 ffmpeg 不可用：直接返回 poster_failed（不逐个视频失败）
// - ffprobe 不可用：只记录警告；探测失败本来就会被吞掉
func NewResolver(eff config.EffectiveConfig, deps Deps, withPoster bool) (*catalog.Resolver, error) {
	log := deps.logger()
	locate := deps.Locate
	if locate == nil {
		locate = ffmpeg.Locate
	}

	r := &catalog.Resolver{Logger: log.Named("resolve")}

	if withPoster {
		bin, err := locate("ffmpeg", eff.FFmpegPath)
		if err != nil {
			return nil, &catalog.Error{Code: domain.ErrCodePosterFailed, Path: eff.FFmpegPath, Err: err}
		}
		st, err := poster.New(eff.PostersPath, eff.PostersPrefix, eff.PosterFormat)
		if err != nil {
			return nil, &catalog.Error{Code: domain.ErrCodePosterFailed, Path: eff.PostersPath, Err: err}
		}
		r.Posters = &st
		r.Extractor = &ffmpeg.PosterExtractor{
			Bin:     bin,
			Runner:  deps.Runner,
			Timeout: eff.ToolTimeout,
		}
		log.Debug("ffmpeg 已就绪", "path", bin, "posters", st.Dir, "format", st.Format)
	}

	probeBin, err := locate("ffprobe", eff.FFprobePath)
	if err != nil {
		log.Warn("未找到 ffprobe，无法补齐缺失的元数据", "error", err)
	}
	r.Prober = &probe.FFprobe{Bin: probeBin, Runner: deps.Runner, Timeout: eff.ToolTimeout}
	return r, nil
}
