package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/John-Robertt/gallerycat/internal/domain"
	"github.com/John-Robertt/gallerycat/internal/scan"
)

// Hooks 把构建进度从核心流程中解耦出来（nil 字段表示不关心）。
type Hooks struct {
	OnScanDone  func(files []domain.VideoFile, dur time.Duration)
	OnVideoDone func(idx, total int, file domain.VideoFile, v domain.Video, err error, dur time.Duration)
}

// Builder 扫描根目录并逐个解析视频，组装成 Catalog。
//
// 约束：
// - 单线程、按扫描顺序逐个解析；目录顺序 = 扫描顺序
// - 默认任一文件失败即中止，不返回部分目录；KeepGoing 时跳过失败文件并记入报告
// - ctx 取消总是中止构建（KeepGoing 也一样）
type Builder struct {
	Resolver *Resolver
	Scan     scan.Options

	SkipPoster bool
	KeepGoing  bool
	Verbose    bool

	Logger hclog.Logger
	Hooks  Hooks

	// 测试用；nil 时分别为 uuid.NewString 与 time.Now。
	NewRunID func() string
	Now      func() time.Time
}

// Build 构建 root 下所有视频的目录。
//
// 返回的 BuildReport 总是已 Finalize；出错时 Catalog 为零值。
func (b *Builder) Build(ctx context.Context, root string) (domain.Catalog, domain.BuildReport, error) {
	log := b.logger()
	now := b.now()

	rr := domain.BuildReport{
		RunID:     b.runID(),
		Root:      root,
		StartedAt: now(),
	}
	finish := func() domain.BuildReport {
		rr.FinishedAt = now()
		rr.Finalize()
		return rr
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return domain.Catalog{}, finish(), &Error{Code: domain.ErrCodeScanFailed, Path: root, Err: err}
	}
	rr.Root = absRoot

	scanStarted := time.Now()
	files, err := scan.ScanVideos(absRoot, b.Scan)
	if err != nil {
		return domain.Catalog{}, finish(), &Error{Code: domain.ErrCodeScanFailed, Path: absRoot, Err: err}
	}
	rr.Summary.Scanned = len(files)
	log.Debug("扫描完成", "root", absRoot, "files", len(files))
	if b.Hooks.OnScanDone != nil {
		b.Hooks.OnScanDone(files, time.Since(scanStarted))
	}

	if b.Resolver == nil {
		return domain.Catalog{}, finish(), &Error{Code: domain.ErrCodeResolveFailed, Path: absRoot, Err: errors.New("未配置 resolver")}
	}

	cb := domain.NewCatalogBuilder(len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return domain.Catalog{}, finish(), err
		}

		oneStarted := time.Now()
		v, err := b.Resolver.Resolve(ctx, Request{
			File:         f.AbsPath,
			AbsolutePath: absRoot,
			SkipPoster:   b.SkipPoster,
			Verbose:      b.Verbose,
		})
		if b.Hooks.OnVideoDone != nil {
			b.Hooks.OnVideoDone(i+1, len(files), f, v, err, time.Since(oneStarted))
		}

		if err != nil {
			if !b.KeepGoing || ctx.Err() != nil {
				rr.Failures = append(rr.Failures, failed(f, err))
				return domain.Catalog{}, finish(), err
			}
			log.Warn("跳过解析失败的视频", "file", f.AbsPath, "error", err)
			rr.Failures = append(rr.Failures, failed(f, err))
			continue
		}

		if cb.Has(v.Code) {
			log.Warn("重复的 code，后写入的记录覆盖先前的值", "code", v.Code)
		}
		cb.Put(v)
		rr.Summary.Resolved++
	}

	return cb.Catalog(), finish(), nil
}

func failed(f domain.VideoFile, err error) domain.ResolveFailed {
	code := Code(err)
	switch {
	case code != "":
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = domain.ErrCodeCanceled
	default:
		code = domain.ErrCodeResolveFailed
	}
	return domain.ResolveFailed{
		Path:      filepath.ToSlash(f.RelPath),
		ErrorCode: code,
		ErrorMsg:  err.Error(),
	}
}

func (b *Builder) logger() hclog.Logger {
	if b.Logger == nil {
		return hclog.NewNullLogger()
	}
	return b.Logger
}

func (b *Builder) runID() string {
	if b.NewRunID != nil {
		return b.NewRunID()
	}
	return uuid.NewString()
}

func (b *Builder) now() func() time.Time {
	if b.Now != nil {
		return b.Now
	}
	return time.Now
}
