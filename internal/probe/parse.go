package probe

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/John-Robertt/gallerycat/internal/domain"
)

// ErrNoVideoStream 表示输出中没有可用的视频流（只有音频或只有封面图）。
var ErrNoVideoStream = errors.New("没有视频流")

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType    string         `json:"codec_type"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	RFrameRate   string         `json:"r_frame_rate"`
	Duration     string         `json:"duration"`
	NbFrames     string         `json:"nb_frames"`
	Disposition  map[string]int `json:"disposition"`
}

// ParseJSON 把 ffprobe 的 JSON 输出转换为 Metadata。
//
// 约束：
// - 取第一个非 attached_pic 的视频流
// - 宽高、帧率、时长、帧数必须为正数才算已知；否则保持 nil
// - 帧率优先 avg_frame_rate，为 "0/0" 等无效值时回退 r_frame_rate
// - 时长优先流级 duration，缺失时回退容器级 duration
// - 帧数优先 nb_frames；缺失且帧率与时长都已知时按 round(duration*fps) 估算
func ParseJSON(data []byte) (domain.Metadata, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Metadata{}, &Error{Stage: StageParse, Err: err}
	}

	var vs *ffprobeStream
	for i := range raw.Streams {
		s := &raw.Streams[i]
		if s.CodecType == "video" && s.Disposition["attached_pic"] != 1 {
			vs = s
			break
		}
	}
	if vs == nil {
		return domain.Metadata{}, &Error{Stage: StageStream, Err: ErrNoVideoStream}
	}

	var md domain.Metadata
	if vs.Width > 0 {
		md.Width = domain.Int(vs.Width)
	}
	if vs.Height > 0 {
		md.Height = domain.Int(vs.Height)
	}

	fps, ok := parseRate(vs.AvgFrameRate)
	if !ok {
		fps, ok = parseRate(vs.RFrameRate)
	}
	if ok {
		md.FPS = domain.Float(fps)
	}

	dur, ok := parsePositiveFloat(vs.Duration)
	if !ok {
		dur, ok = parsePositiveFloat(raw.Format.Duration)
	}
	if ok {
		md.DurationSec = domain.Float(dur)
	}

	if n, err := strconv.Atoi(strings.TrimSpace(vs.NbFrames)); err == nil && n > 0 {
		md.NumVideoFrames = domain.Int(n)
	} else if md.FPS != nil && md.DurationSec != nil {
		if est := int(math.Round(*md.DurationSec * *md.FPS)); est > 0 {
			md.NumVideoFrames = domain.Int(est)
		}
	}
	return md, nil
}

// parseRate 解析 "num/den" 或纯数字形式的帧率。
func parseRate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	num, den, isFrac := strings.Cut(s, "/")
	if !isFrac {
		return parsePositiveFloat(s)
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0, false
	}
	r := n / d
	if r <= 0 || math.IsInf(r, 0) || math.IsNaN(r) {
		return 0, false
	}
	return r, true
}

func parsePositiveFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
