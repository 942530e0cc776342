package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/John-Robertt/gallerycat/internal/app/run"
	"github.com/John-Robertt/gallerycat/internal/catalog"
	"github.com/John-Robertt/gallerycat/internal/config"
	"github.com/John-Robertt/gallerycat/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是一个“简洁版”的交互终端进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：单个 ffmpeg 调用很慢时也会定期输出一行，降低等待焦虑
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total int
	done  int
	ok    int
	fail  int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] gallerycat scan\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  gallery: %s\n", eff.GalleryPath)
	fmt.Fprintf(p.w, "  extensions: %s\n", formatStringListJSON(eff.Extensions))
	if len(eff.ExcludeDirs) > 0 {
		fmt.Fprintf(p.w, "  exclude_dirs: %s\n", formatStringListJSON(eff.ExcludeDirs))
	}
	if eff.GeneratePosters {
		fmt.Fprintf(p.w, "  posters: %s (%s, prefix=%q)\n", eff.PostersPath, eff.PosterFormat, eff.PostersPrefix)
	} else {
		fmt.Fprintln(p.w, "  posters: off")
	}
	fmt.Fprintf(p.w, "  on_error: %s\n", onErrorMode(eff.KeepGoing))
	fmt.Fprintf(p.w, "  tool_timeout: %s\n", formatTimeout(eff.ToolTimeout))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnScanDone(files int, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = files
	fmt.Fprintf(p.w, "扫描: files=%d (%s)\n\n", files, formatShortDuration(dur))
	if p.total > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnVideoDone(idx, total int, relPath string, v domain.Video, err error, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// idx/total 由 run 层给出；这里同时维护自己的计数，供 keepalive 使用。
	p.done = idx
	p.total = total

	if err != nil {
		p.fail++
		code := catalog.Code(err)
		if code == "" {
			code = domain.ErrCodeResolveFailed
		}
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s (%s)\n",
			idx, total, relPath, code, truncate(err.Error(), 160), formatShortDuration(dur),
		)
	} else {
		p.ok++
		fmt.Fprintf(p.w, "[%d/%d] %s OK %s (%s)\n",
			idx, total, relPath, formatVideo(v), formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.done >= p.total {
		p.stopLocked()
	}
}

// Stop 停止 keepalive（构建提前中止时由 CLI 调用；重复调用安全）。
func (p *progressUI) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *progressUI) stopLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stopCh := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d elapsed=%s\n",
						p.done, p.total, p.ok, p.fail, formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

// formatVideo 输出一行可读的元数据摘要；未知值显示为 "?"。
func formatVideo(v domain.Video) string {
	parts := []string{
		"size=" + optInt(v.Width) + "x" + optInt(v.Height),
		"fps=" + optFloat(v.FPS),
		"dur=" + optFloat(v.DurationSec),
		"frames=" + optInt(v.NumVideoFrames),
	}
	if v.PosterPath != nil {
		parts = append(parts, "poster="+*v.PosterPath)
	}
	return strings.Join(parts, " ")
}

func optInt(p *int) string {
	if p == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *p)
}

func optFloat(p *float64) string {
	if p == nil {
		return "?"
	}
	return fmt.Sprintf("%.2f", *p)
}

func onErrorMode(keepGoing bool) string {
	if keepGoing {
		return "keep-going"
	}
	return "abort"
}

func formatTimeout(d time.Duration) string {
	if d <= 0 {
		return "off"
	}
	return d.String()
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// truncate 按字符（rune）截断，max 是字符数；错误信息多为中文，按字节截会切坏 UTF-8。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
