package run

import (
	"time"

	"github.com/John-Robertt/gallerycat/internal/config"
	"github.com/John-Robertt/gallerycat/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 事件在构建 goroutine 上同步触发；实现若另有 goroutine 读取状态（例如 keepalive），需自行加锁。
type Observer interface {
	// OnStart 在 Execute 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnScanDone 在扫描结束时调用（files = 匹配到的视频数）。
	OnScanDone(files int, dur time.Duration)
	// OnVideoDone 在某个视频解析完成（成功或失败）时调用。
	OnVideoDone(idx, total int, relPath string, v domain.Video, err error, dur time.Duration)
}
