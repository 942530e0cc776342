package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/John-Robertt/gallerycat/internal/catalog"
	"github.com/John-Robertt/gallerycat/internal/config"
	"github.com/John-Robertt/gallerycat/internal/domain"
)

func TestFormatVideo_UnknownFieldsShowQuestionMark(t *testing.T) {
	got := formatVideo(domain.Video{Width: domain.Int(320)})
	if got != "size=320x? fps=? dur=? frames=?" {
		t.Fatalf("格式不符合预期：%q", got)
	}

	got = formatVideo(domain.Video{PosterPath: domain.String("posters/a.jpg")})
	if !strings.HasSuffix(got, "poster=posters/a.jpg") {
		t.Fatalf("期望包含海报路径：%q", got)
	}
}

func TestProgressUI_Lines(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	p.OnStart(config.EffectiveConfig{GalleryPath: "/data/gallery", Extensions: []string{".mp4"}})
	p.OnScanDone(2, time.Second)
	p.OnVideoDone(1, 2, "a.mp4", domain.Video{Code: "gallery/a.mp4"}, nil, time.Second)
	p.OnVideoDone(2, 2, "b.mp4", domain.Video{}, &catalog.Error{Code: domain.ErrCodePosterFailed, Path: "b.mp4", Err: errors.New("exit status 1")}, time.Second)
	p.Stop()

	out := buf.String()
	for _, want := range []string{"gallery: /data/gallery", "posters: off", "扫描: files=2", "[1/2] a.mp4 OK", "[2/2] b.mp4 FAIL poster_failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
	if p.tickerStarted {
		t.Fatalf("全部完成后 ticker 应已停止")
	}
}

func TestProgressUI_Keepalive(t *testing.T) {
	var buf safeBuffer
	p := newProgressUI(&buf)
	p.tickerInterval = 5 * time.Millisecond
	p.keepaliveThreshold = 10 * time.Millisecond

	p.OnStart(config.EffectiveConfig{})
	p.OnScanDone(3, 0)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !strings.Contains(buf.String(), "进度: done=0/3") {
		time.Sleep(5 * time.Millisecond)
	}
	p.Stop()
	p.Stop()

	if !strings.Contains(buf.String(), "进度: done=0/3") {
		t.Fatalf("期望出现 keepalive 行：\n%s", buf.String())
	}
}

func TestTruncate_KeepsUTF8(t *testing.T) {
	msg := "生成海报失败：ffmpeg 退出状态 1，无法解码输入文件"
	for max := 1; max <= utf8.RuneCountInString(msg)+1; max++ {
		got := truncate(msg, max)
		if !utf8.ValidString(got) {
			t.Fatalf("max=%d 截断出非法 UTF-8：%q", max, got)
		}
		if n := utf8.RuneCountInString(got); n > max {
			t.Fatalf("max=%d 期望不超过 %d 个字符，实际 %d：%q", max, max, n, got)
		}
	}
	if got := truncate("短消息", 10); got != "短消息" {
		t.Fatalf("未超长时不应截断：%q", got)
	}
	if got := truncate("一二三四五六", 5); got != "一二..." {
		t.Fatalf("期望 %q，实际 %q", "一二...", got)
	}
}
