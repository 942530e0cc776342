package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/gallerycat/internal/domain"
	"github.com/John-Robertt/gallerycat/internal/infra/poster"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	// FileName 是 cwd 下自动发现的配置文件名。
	FileName = "gallerycat.yaml"

	DefaultDataPath      = "/data"
	DefaultPostersPrefix = "posters"
)

// CLIArgs 是 CLI 暴露的覆盖项，保留“是否显式指定”的信息。
type CLIArgs struct {
	ConfigPath string

	GalleryPath string
	PostersPath string

	PostersPrefix    string
	PostersPrefixSet bool // 允许用 --prefix= 显式设为空串

	NoPoster  bool
	KeepGoing bool
	Verbose   bool
}

// FileConfig 对应 gallerycat.yaml 的解析结构（未知字段报错）。
type FileConfig struct {
	DataPath        string   `yaml:"data_path"`
	GalleryPath     string   `yaml:"gallery_path"`
	PostersPath     string   `yaml:"posters_path"`
	PostersPrefix   *string  `yaml:"posters_prefix"`
	PosterFormat    string   `yaml:"poster_format"`
	GeneratePosters *bool    `yaml:"generate_posters"`
	Extensions      []string `yaml:"extensions"`
	ExcludeDirs     []string `yaml:"exclude_dirs"`
	KeepGoing       *bool    `yaml:"keep_going"`
	ToolTimeout     string   `yaml:"tool_timeout"` // Go duration，例如 "90s"
	FFmpegPath      string   `yaml:"ffmpeg_path"`
	FFprobePath     string   `yaml:"ffprobe_path"`
}

// EnvConfig 对应环境变量。空值视为未设置；布尔与时长用指针区分“未设置”与显式的 false/0。
type EnvConfig struct {
	DataPath      string         `env:"DATA_PATH"`
	GalleryPath   string         `env:"GALLERY_PATH"`
	PostersPath   string         `env:"POSTERS_PATH"`
	PostersPrefix string         `env:"POSTERS_PREFIX"`
	PosterFormat  string         `env:"GALLERYCAT_POSTER_FORMAT"`
	NoPoster      *bool          `env:"GALLERYCAT_NO_POSTER"`
	Extensions    []string       `env:"GALLERYCAT_EXTENSIONS" envSeparator:","`
	KeepGoing     *bool          `env:"GALLERYCAT_KEEP_GOING"`
	ToolTimeout   *time.Duration `env:"GALLERYCAT_TOOL_TIMEOUT"`
	FFmpegPath    string         `env:"GALLERYCAT_FFMPEG"`
	FFprobePath   string         `env:"GALLERYCAT_FFPROBE"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 为实际读取的配置文件；没有读取任何文件时为空。
	ConfigPath string

	DataPath      string
	GalleryPath   string
	PostersPath   string
	PostersPrefix string
	PosterFormat  string

	GeneratePosters bool
	Extensions      []string
	ExcludeDirs     []string
	KeepGoing       bool
	Verbose         bool

	// ToolTimeout 限制单次 ffmpeg/ffprobe 调用；0 表示不限。
	ToolTimeout time.Duration
	FFmpegPath  string
	FFprobePath string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：配置无效：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
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

// LoadEffective 读取配置文件与环境变量，并与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在（否则 config_not_found）
// 2) 否则：可选读取 <cwd>/gallerycat.yaml
//
// 覆盖优先级（固定）：CLI > 环境变量 > 配置文件 > 默认值。
// 相对路径一律以 cwd 为基准。environ 为 nil 时读取进程环境变量。
func LoadEffective(cwd string, cli CLIArgs, environ map[string]string) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		var exists bool
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		p := filepath.Join(cwdAbs, FileName)
		var exists bool
		fc, exists, err = readFileConfig(p)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
		}
		if exists {
			cfgPath = p
		}
	}

	ec, err := readEnvConfig(environ)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("环境变量：%w", err)}
	}

	return merge(cwdAbs, cli, ec, fc, cfgPath)
}

func merge(cwd string, cli CLIArgs, ec EnvConfig, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	dataPath := absCleanFrom(cwd, first(ec.DataPath, fc.DataPath, DefaultDataPath))
	gallery := absCleanFrom(cwd, first(cli.GalleryPath, ec.GalleryPath, fc.GalleryPath, filepath.Join(dataPath, "gallery")))
	posters := absCleanFrom(cwd, first(cli.PostersPath, ec.PostersPath, fc.PostersPath, filepath.Join(dataPath, "posters")))

	prefix := DefaultPostersPrefix
	switch {
	case cli.PostersPrefixSet:
		prefix = cli.PostersPrefix
	case ec.PostersPrefix != "":
		prefix = ec.PostersPrefix
	case fc.PostersPrefix != nil:
		prefix = *fc.PostersPrefix
	}

	format := strings.ToLower(first(ec.PosterFormat, fc.PosterFormat, poster.FormatJPG))
	if err := poster.ValidateFormat(format); err != nil {
		return EffectiveConfig{}, invalid("%w", err)
	}

	generate := true
	if fc.GeneratePosters != nil {
		generate = *fc.GeneratePosters
	}
	if ec.NoPoster != nil {
		generate = !*ec.NoPoster
	}
	if cli.NoPoster {
		generate = false
	}

	exts := fc.Extensions
	if len(ec.Extensions) > 0 {
		exts = ec.Extensions
	}
	exts, err := normalizeExtensions(exts)
	if err != nil {
		return EffectiveConfig{}, invalid("%w", err)
	}

	keepGoing := false
	if fc.KeepGoing != nil {
		keepGoing = *fc.KeepGoing
	}
	if ec.KeepGoing != nil {
		keepGoing = *ec.KeepGoing
	}
	if cli.KeepGoing {
		keepGoing = true
	}

	var timeout time.Duration
	switch {
	case ec.ToolTimeout != nil:
		timeout = *ec.ToolTimeout
	case strings.TrimSpace(fc.ToolTimeout) != "":
		d, err := time.ParseDuration(strings.TrimSpace(fc.ToolTimeout))
		if err != nil {
			return EffectiveConfig{}, invalid("tool_timeout 无效：%w", err)
		}
		timeout = d
	}
	if timeout < 0 {
		return EffectiveConfig{}, invalid("tool_timeout 不能为负数：%s", timeout)
	}

	return EffectiveConfig{
		ConfigPath:      cfgPath,
		DataPath:        dataPath,
		GalleryPath:     gallery,
		PostersPath:     posters,
		PostersPrefix:   prefix,
		PosterFormat:    format,
		GeneratePosters: generate,
		Extensions:      exts,
		ExcludeDirs:     append([]string(nil), fc.ExcludeDirs...),
		KeepGoing:       keepGoing,
		Verbose:         cli.Verbose,
		ToolTimeout:     timeout,
		FFmpegPath:      first(ec.FFmpegPath, fc.FFmpegPath),
		FFprobePath:     first(ec.FFprobePath, fc.FFprobePath),
	}, nil
}

// normalizeExtensions 去空白与重复；为空时返回默认 [".mp4"]。
// 不做大小写折叠：匹配本身大小写敏感。
func normalizeExtensions(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, x := range in {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if !strings.HasPrefix(x, ".") || len(x) < 2 || strings.ContainsAny(x, `/\`) {
			return nil, fmt.Errorf("extensions 中的 %q 无效：必须以 \".\" 开头且不含路径分隔符", x)
		}
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	if len(out) == 0 {
		out = append(out, ".mp4")
	}
	return out, nil
}

func first(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			// 空文件等价于没有任何设置。
			return FileConfig{}, true, nil
		}
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

func readEnvConfig(environ map[string]string) (EnvConfig, error) {
	var ec EnvConfig
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&ec, opts); err != nil {
		return EnvConfig{}, err
	}
	return ec, nil
}
