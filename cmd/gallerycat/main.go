package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-isatty"

	"github.com/John-Robertt/gallerycat/internal/app/run"
	"github.com/John-Robertt/gallerycat/internal/catalog"
	"github.com/John-Robertt/gallerycat/internal/config"
	"github.com/John-Robertt/gallerycat/internal/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := newCLI().main(ctx, os.Args[1:])
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

// cli 持有一次命令执行的全部外部环境，测试可替换。
type cli struct {
	stdout io.Writer
	stderr io.Writer

	stdoutTTY bool
	stderrTTY bool

	cwd     string
	environ map[string]string // nil 时读取进程环境变量
	deps    run.Deps
}

func newCLI() *cli {
	cwd, _ := os.Getwd()
	return &cli{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		stdoutTTY: isTTY(os.Stdout),
		stderrTTY: isTTY(os.Stderr),
		cwd:       cwd,
	}
}

func (c *cli) main(ctx context.Context, args []string) int {
	if len(args) == 0 || isHelp(args[0]) {
		c.printUsage()
		return 0
	}

	switch args[0] {
	case "scan":
		return c.scanCmd(ctx, args[1:])
	case "resolve":
		return c.resolveCmd(ctx, args[1:])
	default:
		fmt.Fprintf(c.stderr, "未知命令：%q\n\n", args[0])
		c.printUsage()
		return 2
	}
}

func (c *cli) scanCmd(ctx context.Context, args []string) int {
	for _, a := range args {
		if isHelp(a) {
			c.printScanUsage()
			return 0
		}
	}

	sa, err := parseScanArgs(args)
	if err != nil {
		fmt.Fprintf(c.stderr, "参数错误：%v\n\n", err)
		c.printScanUsage()
		return 2
	}

	eff, err := config.LoadEffective(c.cwd, sa.CLIArgs, c.environ)
	if err != nil {
		rr := reportForError(c.cwd, err)
		c.emitScan(rr, domain.Catalog{})
		return 1
	}

	deps := c.deps
	deps.Logger = c.newLogger(eff.Verbose)

	progressW, interactive := c.pickProgressWriter()
	var obs run.Observer
	var ui *progressUI
	if interactive {
		ui = newProgressUI(progressW)
		obs = ui
	}

	cat, rr, err := run.Execute(ctx, eff, deps, obs)
	if ui != nil {
		ui.Stop()
	}
	if err != nil {
		addFailure(&rr, err)
	}

	if sa.Out != "" {
		out := sa.Out
		if !filepath.IsAbs(out) {
			out = filepath.Join(c.cwd, out)
		}
		if werr := writeScanFile(out, rr, cat); werr != nil {
			fmt.Fprintf(c.stderr, "写入 %s 失败：%v\n", out, werr)
			c.emitScan(rr, cat)
			return 1
		}
		if interactive {
			fmt.Fprintf(progressW, "catalog: %s\n", out)
		}
	}

	c.emitScan(rr, cat)
	if err == nil && rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

func (c *cli) resolveCmd(ctx context.Context, args []string) int {
	for _, a := range args {
		if isHelp(a) {
			c.printResolveUsage()
			return 0
		}
	}

	ra, err := parseResolveArgs(args)
	if err != nil {
		fmt.Fprintf(c.stderr, "参数错误：%v\n\n", err)
		c.printResolveUsage()
		return 2
	}

	eff, err := config.LoadEffective(c.cwd, ra.CLIArgs, c.environ)
	if err != nil {
		c.emitResolveError(err)
		return 1
	}

	deps := c.deps
	deps.Logger = c.newLogger(eff.Verbose)

	req := ra.Request
	req.File = absFrom(c.cwd, req.File)
	if req.AbsolutePath != "" {
		req.AbsolutePath = absFrom(c.cwd, req.AbsolutePath)
	}
	req.SkipPoster = !eff.GeneratePosters
	req.Verbose = eff.Verbose

	v, err := run.ResolveOne(ctx, eff, deps, req)
	if err != nil {
		c.emitResolveError(err)
		return 1
	}
	c.emitVideo(v)
	return 0
}

func (c *cli) newLogger(verbose bool) hclog.Logger {
	level := hclog.Warn
	if verbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "gallerycat",
		Output: c.stderr,
		Level:  level,
		Color:  hclog.AutoColor,
	})
}

func (c *cli) pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if c.stderrTTY {
		return c.stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if c.stdoutTTY {
		return c.stdout, true
	}
	return nil, false
}

func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func absFrom(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// errorCode 提取各层的 error_code；都不是时按解析失败处理。
func errorCode(err error) string {
	if c := config.Code(err); c != "" {
		return c
	}
	if c := catalog.Code(err); c != "" {
		return c
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrCodeCanceled
	}
	return domain.ErrCodeResolveFailed
}
