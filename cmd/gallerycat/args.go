package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/John-Robertt/gallerycat/internal/catalog"
	"github.com/John-Robertt/gallerycat/internal/config"
	"github.com/John-Robertt/gallerycat/internal/domain"
)

type scanArgs struct {
	config.CLIArgs
	Out string
}

type resolveArgs struct {
	config.CLIArgs
	Request catalog.Request
}

// flagValue 取出 "--name v" 或 "--name=v" 形式的值；ok=false 表示 a 不是该参数。
func flagValue(args []string, i *int, name string) (v string, ok bool, err error) {
	a := args[*i]
	if a == name {
		if *i+1 >= len(args) {
			return "", true, fmt.Errorf("%s 需要一个值", name)
		}
		*i++
		return args[*i], true, nil
	}
	if strings.HasPrefix(a, name+"=") {
		return strings.TrimPrefix(a, name+"="), true, nil
	}
	return "", false, nil
}

// parseCommon 处理 scan/resolve 共用的参数；handled=false 表示 args[*i] 不是共用参数。
func parseCommon(args []string, i *int, ca *config.CLIArgs) (handled bool, err error) {
	a := args[*i]
	switch a {
	case "--no-poster":
		ca.NoPoster = true
		return true, nil
	case "--verbose", "-v":
		ca.Verbose = true
		return true, nil
	}

	if v, ok, err := flagValue(args, i, "--config"); ok {
		ca.ConfigPath = v
		return true, err
	}
	if v, ok, err := flagValue(args, i, "--posters"); ok {
		ca.PostersPath = v
		return true, err
	}
	if v, ok, err := flagValue(args, i, "--prefix"); ok {
		ca.PostersPrefix = v
		ca.PostersPrefixSet = true
		return true, err
	}
	return false, nil
}

func parseScanArgs(args []string) (scanArgs, error) {
	sa := scanArgs{}

	for i := 0; i < len(args); i++ {
		handled, err := parseCommon(args, &i, &sa.CLIArgs)
		if err != nil {
			return scanArgs{}, err
		}
		if handled {
			continue
		}

		a := args[i]
		if a == "--keep-going" {
			sa.KeepGoing = true
			continue
		}
		if v, ok, err := flagValue(args, &i, "--out"); ok {
			if err != nil {
				return scanArgs{}, err
			}
			if strings.TrimSpace(v) == "" {
				return scanArgs{}, fmt.Errorf("--out 不能为空")
			}
			sa.Out = v
			continue
		}
		if strings.HasPrefix(a, "-") {
			return scanArgs{}, fmt.Errorf("未知参数 %q", a)
		}
		if sa.GalleryPath != "" {
			return scanArgs{}, fmt.Errorf("重复的 gallery_path：%q 与 %q", sa.GalleryPath, a)
		}
		sa.GalleryPath = a
	}
	return sa, nil
}

func parseResolveArgs(args []string) (resolveArgs, error) {
	ra := resolveArgs{}

	for i := 0; i < len(args); i++ {
		handled, err := parseCommon(args, &i, &ra.CLIArgs)
		if err != nil {
			return resolveArgs{}, err
		}
		if handled {
			continue
		}

		a := args[i]
		if v, ok, err := flagValue(args, &i, "--root"); ok {
			if err != nil {
				return resolveArgs{}, err
			}
			ra.Request.AbsolutePath = v
			continue
		}
		if v, ok, err := flagValue(args, &i, "--file-key"); ok {
			if err != nil {
				return resolveArgs{}, err
			}
			ra.Request.FileKey = v
			continue
		}
		if handled, err := parseKnown(args, &i, &ra.Request.Known); handled || err != nil {
			if err != nil {
				return resolveArgs{}, err
			}
			continue
		}
		if strings.HasPrefix(a, "-") {
			return resolveArgs{}, fmt.Errorf("未知参数 %q", a)
		}
		if ra.Request.File != "" {
			return resolveArgs{}, fmt.Errorf("重复的 file：%q 与 %q", ra.Request.File, a)
		}
		ra.Request.File = a
	}

	if ra.Request.File == "" {
		return resolveArgs{}, fmt.Errorf("缺少 file")
	}
	return ra, nil
}

// parseKnown 解析调用方预先已知的元数据；必须为正数（未知请直接省略参数）。
func parseKnown(args []string, i *int, md *domain.Metadata) (bool, error) {
	ints := []struct {
		name string
		dst  **int
	}{
		{"--width", &md.Width},
		{"--height", &md.Height},
		{"--frames", &md.NumVideoFrames},
	}
	for _, f := range ints {
		v, ok, err := flagValue(args, i, f.name)
		if !ok {
			continue
		}
		if err != nil {
			return true, err
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return true, fmt.Errorf("%s 必须是正整数，实际是 %q", f.name, v)
		}
		*f.dst = domain.Int(n)
		return true, nil
	}

	floats := []struct {
		name string
		dst  **float64
	}{
		{"--fps", &md.FPS},
		{"--duration", &md.DurationSec},
	}
	for _, f := range floats {
		v, ok, err := flagValue(args, i, f.name)
		if !ok {
			continue
		}
		if err != nil {
			return true, err
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil || !(x > 0) || math.IsInf(x, 0) {
			return true, fmt.Errorf("%s 必须是正数，实际是 %q", f.name, v)
		}
		*f.dst = domain.Float(x)
		return true, nil
	}
	return false, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}
