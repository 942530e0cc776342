package domain

// Metadata 是视频展示元数据的可选字段集合（nil = 未知）。
//
// 用于两处：调用方在 resolve 之前已经知道的值，以及 probe 读出的值。
type Metadata struct {
	Width          *int
	Height         *int
	FPS            *float64
	DurationSec    *float64
	NumVideoFrames *int
}

// Missing 报告是否仍有任一字段未知。
func (m Metadata) Missing() bool {
	return m.Width == nil || m.Height == nil || m.FPS == nil || m.DurationSec == nil || m.NumVideoFrames == nil
}

// FillMissing 只用 other 填充 m 中为 nil 的字段；已知字段永不覆盖。
func (m Metadata) FillMissing(other Metadata) Metadata {
	if m.Width == nil {
		m.Width = other.Width
	}
	if m.Height == nil {
		m.Height = other.Height
	}
	if m.FPS == nil {
		m.FPS = other.FPS
	}
	if m.DurationSec == nil {
		m.DurationSec = other.DurationSec
	}
	if m.NumVideoFrames == nil {
		m.NumVideoFrames = other.NumVideoFrames
	}
	return m
}

// Int 返回指向 v 副本的指针（构造可选字段用）。
func Int(v int) *int { return &v }

// Float 返回指向 v 副本的指针。
func Float(v float64) *float64 { return &v }

// String 返回指向 v 副本的指针。
func String(v string) *string { return &v }
