package imgx

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // 注册 JPEG 解码器（默认海报格式）
	_ "image/png"  // 注册 PNG 解码器（外部工具偶尔按内容而非扩展名输出）
	"os"

	_ "github.com/chai2010/webp" // 注册 WebP 解码器（poster_format=webp）
)

// ErrInvalidSize 表示图片头部可以解析，但宽高不是正数。
var ErrInvalidSize = errors.New("图片尺寸无效")

// Size 只读取图片头部，返回像素宽高。
//
// 约束：
// - 不解码像素数据（海报可能很大，只需要尺寸）
// - 支持 JPEG/PNG/WebP；格式由内容识别，与扩展名无关
func Size(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return 0, 0, fmt.Errorf("读取图片头部失败 %q：%w", path, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("%s %q：%w", format, path, ErrInvalidSize)
	}
	return cfg.Width, cfg.Height, nil
}
