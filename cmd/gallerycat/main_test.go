package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/John-Robertt/gallerycat/internal/app/run"
	"github.com/John-Robertt/gallerycat/internal/domain"
	"github.com/John-Robertt/gallerycat/internal/infra/ffmpeg"
)

// safeBuffer 供 keepalive goroutine 与测试 goroutine 同时读写。
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// probeOnlyRunner 只支持 ffprobe：输出固定 JSON。
type probeOnlyRunner struct{}

func (probeOnlyRunner) Run(_ context.Context, name string, _ []string, stdout, _ io.Writer) error {
	_, err := io.WriteString(stdout, `{"streams":[{"codec_type":"video","width":640,"height":360,"avg_frame_rate":"24/1","duration":"2.0"}],"format":{}}`)
	return err
}

func testCLI(t *testing.T) (*cli, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	return &cli{
		stdout:  &stdout,
		stderr:  &stderr,
		cwd:     t.TempDir(),
		environ: map[string]string{},
		deps: run.Deps{
			Runner: probeOnlyRunner{},
			Locate: func(name, _ string) (string, error) {
				if name == "ffmpeg" {
					return "", ffmpeg.ErrFFmpegNotFound
				}
				return name, nil
			},
		},
	}, &stdout, &stderr
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func TestScan_NoTTY_StdoutOnlyJSON(t *testing.T) {
	c, stdout, stderr := testCLI(t)
	gallery := filepath.Join(c.cwd, "gallery")
	touch(t, filepath.Join(gallery, "a", "b", "clip1.mp4"))

	code := c.main(context.Background(), []string{"scan", gallery, "--no-poster", "--out", "catalog.json"})
	if code != 0 {
		t.Fatalf("期望退出码 0，实际 %d；stderr=%s", code, stderr.String())
	}

	var out struct {
		Report domain.BuildReport      `json:"report"`
		Videos map[string]domain.Video `json:"videos"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("stdout 不是合法 JSON：%v\n%q", err, stdout.String())
	}
	v, ok := out.Videos["gallery/a/b/clip1.mp4"]
	if !ok {
		t.Fatalf("目录缺少条目：%+v", out.Videos)
	}
	if v.PosterPath != nil || v.Width == nil || *v.Width != 640 || v.NumVideoFrames == nil || *v.NumVideoFrames != 48 {
		t.Fatalf("条目不符合预期：%+v", v)
	}
	if out.Report.Summary.Resolved != 1 {
		t.Fatalf("summary 不符合预期：%+v", out.Report.Summary)
	}
	if !strings.Contains(stderr.String(), "完成：scanned=1 resolved=1 failed=0") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}

	b, err := os.ReadFile(filepath.Join(c.cwd, "catalog.json"))
	if err != nil {
		t.Fatalf("--out 未写入：%v", err)
	}
	if !bytes.Contains(b, []byte(`"gallery/a/b/clip1.mp4"`)) {
		t.Fatalf("--out 内容缺少条目：%s", b)
	}
}

func TestScan_MissingFFmpegExitsOne(t *testing.T) {
	c, stdout, _ := testCLI(t)
	gallery := filepath.Join(c.cwd, "gallery")
	touch(t, filepath.Join(gallery, "x.mp4"))

	if code := c.main(context.Background(), []string{"scan", gallery}); code != 1 {
		t.Fatalf("期望退出码 1，实际 %d", code)
	}
	var out struct {
		Report domain.BuildReport `json:"report"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("stdout 不是合法 JSON：%v", err)
	}
	if len(out.Report.Failures) != 1 || out.Report.Failures[0].ErrorCode != domain.ErrCodePosterFailed {
		t.Fatalf("期望一条 poster_failed：%+v", out.Report.Failures)
	}
}

func TestScan_ConfigNotFound(t *testing.T) {
	c, stdout, _ := testCLI(t)

	if code := c.main(context.Background(), []string{"scan", "--config", "nope.yaml"}); code != 1 {
		t.Fatalf("期望退出码 1，实际 %d", code)
	}
	if !strings.Contains(stdout.String(), domain.ErrCodeConfigNotFound) {
		t.Fatalf("stdout 应包含 %s：%s", domain.ErrCodeConfigNotFound, stdout.String())
	}
}

func TestResolve_JSON(t *testing.T) {
	c, stdout, stderr := testCLI(t)
	root := filepath.Join(c.cwd, "media")
	touch(t, filepath.Join(root, "v.mp4"))

	code := c.main(context.Background(), []string{
		"resolve", filepath.Join("media", "v.mp4"),
		"--root", "media", "--file-key", "cdn/v.mp4", "--no-poster", "--fps", "30",
	})
	if code != 0 {
		t.Fatalf("期望退出码 0，实际 %d；stderr=%s", code, stderr.String())
	}
	var v domain.Video
	if err := json.Unmarshal(stdout.Bytes(), &v); err != nil {
		t.Fatalf("stdout 不是合法 JSON：%v", err)
	}
	if v.Code != "media/v.mp4" || v.Path != "cdn/v.mp4" || *v.FPS != 30 || *v.Width != 640 {
		t.Fatalf("结果不符合预期：%+v", v)
	}
}

func TestArgErrorsExitTwo(t *testing.T) {
	cases := [][]string{
		{"bogus"},
		{"scan", "--nope"},
		{"scan", "a", "b"},
		{"scan", "--out"},
		{"resolve"},
		{"resolve", "x.mp4", "--width", "0"},
		{"resolve", "x.mp4", "--fps", "abc"},
	}
	for _, args := range cases {
		c, _, _ := testCLI(t)
		if code := c.main(context.Background(), args); code != 2 {
			t.Fatalf("%v：期望退出码 2，实际 %d", args, code)
		}
	}
}

func TestParseScanArgs(t *testing.T) {
	sa, err := parseScanArgs([]string{"g", "--prefix=", "--posters", "p", "--keep-going", "-v", "--config=c.yaml"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if sa.GalleryPath != "g" || !sa.PostersPrefixSet || sa.PostersPrefix != "" || sa.PostersPath != "p" ||
		!sa.KeepGoing || !sa.Verbose || sa.ConfigPath != "c.yaml" {
		t.Fatalf("解析结果不符合预期：%+v", sa)
	}
}
