package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/gallerycat/internal/infra/ffmpeg"
)

// 典型 MP4：封面图在前（应跳过），H.264 主视频流，AAC 音频。
const sampleMP4 = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "mjpeg",
      "codec_type": "video",
      "width": 600,
      "height": 900,
      "avg_frame_rate": "0/0",
      "disposition": { "default": 0, "attached_pic": 1 }
    },
    {
      "index": 1,
      "codec_name": "h264",
      "codec_type": "video",
      "width": 1280,
      "height": 720,
      "avg_frame_rate": "30000/1001",
      "r_frame_rate": "30000/1001",
      "duration": "10.010000",
      "nb_frames": "300",
      "disposition": { "default": 1, "attached_pic": 0 }
    },
    {
      "index": 2,
      "codec_name": "aac",
      "codec_type": "audio",
      "sample_rate": "48000",
      "disposition": { "default": 1 }
    }
  ],
  "format": {
    "filename": "/data/gallery/clip.mp4",
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "duration": "10.031000"
  }
}`

// 流级信息不全：avg_frame_rate 无效，无流级 duration，无 nb_frames。
const samplePartial = `{
  "streams": [
    {
      "codec_type": "video",
      "width": 640,
      "height": 0,
      "avg_frame_rate": "0/0",
      "r_frame_rate": "25/1"
    }
  ],
  "format": { "duration": "4.000000" }
}`

const sampleAudioOnly = `{
  "streams": [ { "codec_type": "audio", "sample_rate": "44100" } ],
  "format": { "duration": "180.0" }
}`

func TestParseJSON_PrimaryVideo(t *testing.T) {
	md, err := ParseJSON([]byte(sampleMP4))
	require.NoError(t, err)

	require.NotNil(t, md.Width)
	require.NotNil(t, md.Height)
	assert.Equal(t, 1280, *md.Width)
	assert.Equal(t, 720, *md.Height)
	require.NotNil(t, md.FPS)
	assert.InDelta(t, 29.97, *md.FPS, 0.001)
	require.NotNil(t, md.DurationSec)
	assert.InDelta(t, 10.01, *md.DurationSec, 1e-9)
	require.NotNil(t, md.NumVideoFrames)
	assert.Equal(t, 300, *md.NumVideoFrames)
	assert.False(t, md.Missing())
}

func TestParseJSON_Fallbacks(t *testing.T) {
	md, err := ParseJSON([]byte(samplePartial))
	require.NoError(t, err)

	require.NotNil(t, md.Width)
	assert.Equal(t, 640, *md.Width)
	assert.Nil(t, md.Height, "高度为 0 不能当作已知值")
	require.NotNil(t, md.FPS)
	assert.Equal(t, 25.0, *md.FPS)
	require.NotNil(t, md.DurationSec)
	assert.Equal(t, 4.0, *md.DurationSec)
	require.NotNil(t, md.NumVideoFrames)
	assert.Equal(t, 100, *md.NumVideoFrames)
}

func TestParseJSON_NoVideoStream(t *testing.T) {
	_, err := ParseJSON([]byte(sampleAudioOnly))
	require.ErrorIs(t, err, ErrNoVideoStream)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageStream, pe.Stage)
	assert.True(t, IsUnavailable(err))
}

func TestParseJSON_Malformed(t *testing.T) {
	_, err := ParseJSON([]byte("{not json"))
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageParse, pe.Stage)
}

func TestParseRate(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"30/1", 30, true},
		{"24000/1001", 24000.0 / 1001.0, true},
		{"0/0", 0, false},
		{"25", 25, true},
		{"", 0, false},
		{"abc/1", 0, false},
		{"-1/1", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseRate(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-9, tc.in)
		}
	}
}

type stubRunner struct {
	out  string
	err  error
	args []string
}

func (s *stubRunner) Run(_ context.Context, name string, args []string, stdout, _ io.Writer) error {
	s.args = append([]string{name}, args...)
	if stdout != nil {
		_, _ = io.WriteString(stdout, s.out)
	}
	return s.err
}

func TestFFprobe_Probe(t *testing.T) {
	r := &stubRunner{out: sampleMP4}
	p := &FFprobe{Bin: "/usr/bin/ffprobe", Runner: r}

	md, err := p.Probe(context.Background(), "/data/gallery/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, 1280, *md.Width)
	assert.Equal(t, []string{
		"/usr/bin/ffprobe", "-v", "quiet", "-print_format", "json",
		"-show_format", "-show_streams", "/data/gallery/clip.mp4",
	}, r.args)
}

func TestFFprobe_Failures(t *testing.T) {
	ctx := context.Background()

	_, err := (&FFprobe{}).Probe(ctx, "a.mp4")
	assert.True(t, IsUnavailable(err))
	assert.ErrorIs(t, err, ffmpeg.ErrFFprobeNotFound)

	_, err = (&FFprobe{Bin: "ffprobe", Runner: &stubRunner{err: errors.New("exit status 1")}}).Probe(ctx, "a.mp4")
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageExec, pe.Stage)
	assert.True(t, IsUnavailable(err))

	_, err = (&FFprobe{Bin: "ffprobe", Runner: &stubRunner{out: "garbage"}}).Probe(ctx, "a.mp4")
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageParse, pe.Stage)
	assert.Equal(t, "a.mp4", pe.Path)
}

func TestIsUnavailable_ContextCancelIsNotSwallowed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&FFprobe{Bin: "ffprobe", Runner: &stubRunner{err: errors.New("signal: killed")}}).Probe(ctx, "a.mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsUnavailable(err))

	assert.False(t, IsUnavailable(nil))
	assert.False(t, IsUnavailable(fmt.Errorf("other: %w", io.EOF)))
}

// hangRunner 一直阻塞到 ctx 结束，模拟卡死的 ffprobe。
type hangRunner struct{}

func (hangRunner) Run(ctx context.Context, _ string, _ []string, _, _ io.Writer) error {
	<-ctx.Done()
	return errors.New("signal: killed")
}

func TestFFprobe_OwnTimeoutIsUnavailable(t *testing.T) {
	p := &FFprobe{Bin: "ffprobe", Runner: hangRunner{}, Timeout: 20 * time.Millisecond}

	_, err := p.Probe(context.Background(), "a.mp4")
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageExec, pe.Stage)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsUnavailable(err), "探测自身超时应视为普通探测失败：%v", err)
}

func TestFFprobe_CallerDeadlineIsNotSwallowed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p := &FFprobe{Bin: "ffprobe", Runner: hangRunner{}, Timeout: time.Hour}

	_, err := p.Probe(ctx, "a.mp4")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsUnavailable(err))
}
