package domain

// VideoFile 描述一次扫描得到的视频文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - 扫描阶段只做 stat，不读文件内容
type VideoFile struct {
	AbsPath string
	RelPath string // 相对扫描根目录
	Base    string // filename without ext
	Ext     string // ".mp4"
	Size    int64
	ModUnix int64
}

// Video 是目录中的一条记录：一个视频及其展示用元数据。
//
// 约束：
// - Code 只能由文件系统路径推导（相对扫描根目录的父目录），不接受用户直接传入
// - 所有可选字段未知时必须为 nil，禁止用 0 冒充“未知”
// - 构造一次后不再原地修改（值类型，按值传递）
type Video struct {
	Code           string   `json:"code"`
	Path           string   `json:"path"`
	PosterPath     *string  `json:"poster_path"`
	Width          *int     `json:"width"`
	Height         *int     `json:"height"`
	FPS            *float64 `json:"fps"`
	DurationSec    *float64 `json:"duration_sec"`
	NumVideoFrames *int     `json:"num_video_frames"`
}

// Metadata 返回记录中的五个可选元数据字段。
func (v Video) Metadata() Metadata {
	return Metadata{
		Width:          v.Width,
		Height:         v.Height,
		FPS:            v.FPS,
		DurationSec:    v.DurationSec,
		NumVideoFrames: v.NumVideoFrames,
	}
}
