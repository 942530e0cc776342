package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls  [][]string
	stdout string
	stderr string
	err    error
	block  bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	if stdout != nil && f.stdout != "" {
		_, _ = io.WriteString(stdout, f.stdout)
	}
	if stderr != nil && f.stderr != "" {
		_, _ = io.WriteString(stderr, f.stderr)
	}
	if f.block {
		<-ctx.Done()
		return errors.New("signal: killed")
	}
	return f.err
}

func TestPosterArgs(t *testing.T) {
	got := PosterArgs("/g/a.mp4", "/p/a.jpg", "")
	want := []string{
		"-y", "-i", "/g/a.mp4",
		"-pix_fmt", "yuv420p",
		"-frames:v", "1",
		"-update", "1",
		"-strict", "unofficial",
		"/p/a.jpg",
	}
	assert.Equal(t, want, got)
	assert.Equal(t, "rgb24", PosterArgs("a", "b", "rgb24")[4])
}

func TestExtract_Success(t *testing.T) {
	r := &fakeRunner{stderr: "banner\n"}
	e := &PosterExtractor{Bin: "/usr/bin/ffmpeg", Runner: r}

	require.NoError(t, e.Extract(context.Background(), "/g/a.mp4", "/p/.a.tmp-1.jpg", false))
	require.Len(t, r.calls, 1)
	assert.Equal(t, "/usr/bin/ffmpeg", r.calls[0][0])
	assert.Equal(t, "/p/.a.tmp-1.jpg", r.calls[0][len(r.calls[0])-1])
}

func TestExtract_NonZeroExitIsError(t *testing.T) {
	r := &fakeRunner{
		stderr: "ffmpeg version n6\n/g/a.mp4: Invalid data found when processing input\n",
		err:    errors.New("exit status 1"),
	}
	e := &PosterExtractor{Bin: "ffmpeg", Runner: r}

	err := e.Extract(context.Background(), "/g/a.mp4", "/p/a.jpg", false)
	var pe *PosterError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "/g/a.mp4", pe.Src)
	assert.Contains(t, pe.Stderr, "Invalid data")
	assert.Contains(t, err.Error(), "Invalid data found when processing input")
}

func TestExtract_MissingBinary(t *testing.T) {
	e := &PosterExtractor{Runner: &fakeRunner{}}
	err := e.Extract(context.Background(), "a.mp4", "a.jpg", false)
	assert.ErrorIs(t, err, ErrFFmpegNotFound)
}

func TestExtract_VerboseForwardsOutput(t *testing.T) {
	var out bytes.Buffer
	r := &fakeRunner{stdout: "o\n", stderr: "e\n", err: errors.New("exit status 1")}
	e := &PosterExtractor{Bin: "ffmpeg", Runner: r, VerboseOut: &out}

	err := e.Extract(context.Background(), "a.mp4", "a.jpg", true)
	var pe *PosterError
	require.ErrorAs(t, err, &pe)
	assert.Empty(t, pe.Stderr)
	assert.Equal(t, "o\ne\n", out.String())
}

func TestExtract_Timeout(t *testing.T) {
	e := &PosterExtractor{Bin: "ffmpeg", Runner: &fakeRunner{block: true}, Timeout: 20 * time.Millisecond}
	err := e.Extract(context.Background(), "a.mp4", "a.jpg", false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTailBuffer_KeepsLastBytes(t *testing.T) {
	tb := &tailBuffer{max: 8}
	_, _ = tb.Write([]byte(strings.Repeat("a", 10)))
	_, _ = tb.Write([]byte("XYZ"))
	assert.Equal(t, "aaaaaXYZ", tb.String())
}
