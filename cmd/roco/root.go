package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1602/roco/internal/config"
	"github.com/1602/roco/internal/executor"
	"github.com/1602/roco/internal/reporter/console"
	"github.com/1602/roco/internal/runner"
	"github.com/1602/roco/pkg/logger"
)

// Version 是当前版本号
const Version = "0.2.0"

// cliOptions 命令行参数
type cliOptions struct {
	listTasks    bool
	noDesc       bool
	jsonOutput   bool
	hosts        string
	app          string
	configFiles  []string
	settingsFile string
	cwd          string
	debug        bool
	quiet        bool
	noColor      bool
	noSummary    bool
	logFormat    string
	logFile      string
	timeout      time.Duration
	grace        time.Duration
}

// newRootCmd 创建根命令
func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:   "roco [env] <task>",
		Short: "部署自动化任务运行器",
		Long: `roco 从 rocofile 中读取命名空间化的任务，按 before/after 钩子与
sequence 顺序执行，并通过 ssh 将命令并行分发到所有目标主机。

rocofile 查找顺序：
  /etc/roco.{yaml,yml,js}
  ~/.roco.{yaml,yml,js}
  ./Roco.{yaml,yml,js}
  ./config/Roco.{yaml,yml,js}`,
		Example: `  # 列出所有任务
  roco -T

  # 在 staging 环境执行 deploy 命名空间的默认任务
  HOSTS=web1,web2:2222 roco staging deploy

  # 指定额外的 rocofile
  roco --config ./deploy/Roco.js deploy:restart`,
		Version:       Version,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.listTasks, "tasks", "T", false, "列出所有任务")
	flags.BoolVar(&opts.noDesc, "no-desc", false, "列出任务时不显示描述")
	flags.BoolVar(&opts.jsonOutput, "json", false, "以 JSON 格式列出任务")
	flags.StringVar(&opts.hosts, "hosts", "", "目标主机，逗号分隔 (覆盖 HOSTS)")
	flags.StringVar(&opts.app, "app", "", "应用名称 (覆盖 APP)")
	flags.StringArrayVarP(&opts.configFiles, "config", "c", nil, "额外的 rocofile (可多次指定)")
	flags.StringVar(&opts.settingsFile, "settings", "", "配置文件路径 (默认 ~/.roco/settings.yaml)")
	flags.StringVar(&opts.cwd, "cwd", "", "工作目录")
	flags.BoolVar(&opts.debug, "debug", false, "启用调试日志")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "静默模式，不显示主机输出")
	flags.BoolVar(&opts.noColor, "no-color", false, "禁用彩色输出")
	flags.BoolVar(&opts.noSummary, "no-summary", false, "结束时不打印各主机耗时统计")
	flags.StringVar(&opts.logFormat, "log-format", "", "日志格式 (console, json)")
	flags.StringVar(&opts.logFile, "log-file", "", "同时写入日志文件")
	flags.DurationVar(&opts.timeout, "timeout", 0, "任务执行超时，0 表示不限制")
	flags.DurationVar(&opts.grace, "grace", 0, "尽力模式命令的宽限时间 (默认 5s)")

	cmd.CompletionOptions.DisableDefaultCmd = true
	return cmd
}

// Execute 执行根命令
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, opts *cliOptions, args []string) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	config.SetSettings(settings)
	logger.Init(logger.ApplyEnv(&settings.Log))
	defer logger.Sync()

	if opts.cwd != "" {
		if err := os.Chdir(opts.cwd); err != nil {
			return err
		}
	}

	grace := settings.Remote.GraceTimeout
	if opts.grace > 0 {
		grace = opts.grace
	}
	r := runner.New(runner.Options{
		Shell:        settings.Shell.Path,
		ShellArgs:    settings.Shell.Args,
		Transport:    &executor.SSHTransport{Binary: settings.SSH.Binary, Options: settings.SSH.Options},
		GraceTimeout: grace,
		Exit: func(code int) {
			logger.Sync()
			os.Exit(code)
		},
	})

	listing := opts.listTasks || len(args) == 0
	if !listing || !opts.jsonOutput {
		reporterCfg := console.DefaultConfig()
		reporterCfg.Writer = cmd.OutOrStdout()
		reporterCfg.Quiet = opts.quiet
		if opts.noColor {
			reporterCfg.ColorOutput = false
		}
		reporterCfg.Summary = !opts.noSummary
		console.New(reporterCfg).Attach(r.Bus())
	}

	loadOpts := config.OptionsFromEnv()
	if opts.hosts != "" {
		loadOpts.Hosts = opts.hosts
	}
	if opts.app != "" {
		loadOpts.App = opts.app
	}
	loadOpts.Extra = opts.configFiles
	if err := config.NewLoader(r.Runtime(), loadOpts).Load(); err != nil {
		r.Abort(err)
		return err
	}

	if listing {
		if opts.jsonOutput {
			return r.ListJSON(cmd.OutOrStdout())
		}
		r.List(cmd.OutOrStdout(), opts.noDesc)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	err = r.Perform(ctx, args...)
	r.Close()
	if err != nil {
		logger.Debug("task failed", zap.Strings("args", args), zap.Error(err))
		r.Abort(err)
	}
	return err
}

// loadSettings 读取配置文件并应用命令行覆盖
func loadSettings(opts *cliOptions) (*config.Settings, error) {
	path, optional := opts.settingsFile, false
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path, optional = filepath.Join(home, ".roco", "settings.yaml"), true
		}
	}
	settings, err := config.LoadSettings(path, optional)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if opts.debug {
		settings.Log.Level = "debug"
	}
	if opts.logFormat != "" {
		settings.Log.Format = opts.logFormat
	}
	if opts.logFile != "" {
		settings.Log.FilePath = opts.logFile
		settings.Log.Output = "both"
	}
	return settings, nil
}
