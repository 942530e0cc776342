package catalog

import (
	"errors"
	"fmt"

	"github.com/John-Robertt/gallerycat/internal/domain"
)

// Error 是构建/解析阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	var what string
	switch e.Code {
	case domain.ErrCodeScanFailed:
		what = "扫描目录失败"
	case domain.ErrCodePosterFailed:
		what = "生成海报失败"
	case domain.ErrCodePosterUnreadable:
		what = "读取海报尺寸失败"
	case domain.ErrCodeResolveFailed:
		what = "解析视频失败"
	default:
		what = e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s：%s %q：%v", e.Code, what, e.Path, e.Err)
	}
	return fmt.Sprintf("%s：%s %q", e.Code, what, e.Path)
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
