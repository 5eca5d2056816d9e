package application

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"

	"github.com/lk2023060901/roomchat/internal/chat"
	zlog "github.com/lk2023060901/roomchat/pkg/log"
	"github.com/lk2023060901/roomchat/pkg/util/merr"
	zviper "github.com/lk2023060901/roomchat/pkg/util/viper"
)

const (
	// DefaultConfigPath 不存在时被忽略。
	DefaultConfigPath = "./config.yaml"

	EnvConfigPath = "ROOMCHAT_CONFIG_FILE_PATH"
	EnvLogEnable  = "ROOMCHAT_LOG_ENABLE"
	EnvLogLevel   = "ROOMCHAT_LOG_LEVEL"
	EnvLogStdout  = "ROOMCHAT_LOG_STDOUT"
	EnvLogFormat  = "ROOMCHAT_LOG_FORMAT"
	EnvLogFileDir = "ROOMCHAT_LOG_FILE_DIR"
	EnvLogFile    = "ROOMCHAT_LOG_FILE"

	Usage = "usage: server [--config <path>] <port> <maxrooms>"
)

// Args 是命令行解析结果。
type Args struct {
	ConfigPath string
	Port       int
	MaxRooms   int
}

// ParseArgs 解析 `[--config <path>] <port> <maxrooms>`，不做范围校验。
// --config 可以出现在任意位置，也可以写成 --config=<path>。
func ParseArgs(args []string) (Args, error) {
	var parsed Args
	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.StringVar(&parsed.ConfigPath, "config", "", "path of the YAML/JSON config file")
	if err := flags.Parse(args); err != nil {
		return Args{}, merr.WrapErrConfigInvalid("args", strings.Join(args, " "), err.Error())
	}
	if flags.Changed("config") && parsed.ConfigPath == "" {
		return Args{}, merr.WrapErrConfigMissing("--config")
	}
	positional := flags.Args()

	switch {
	case len(positional) < 1:
		return Args{}, merr.WrapErrConfigMissing("port")
	case len(positional) < 2:
		return Args{}, merr.WrapErrConfigMissing("maxrooms")
	case len(positional) > 2:
		return Args{}, merr.WrapErrConfigInvalid("args", strings.Join(positional[2:], " "), "unexpected arguments")
	}

	port, err := strconv.Atoi(positional[0])
	if err != nil {
		return Args{}, merr.WrapErrConfigInvalid("port", positional[0], "not an integer")
	}
	maxRooms, err := strconv.Atoi(positional[1])
	if err != nil {
		return Args{}, merr.WrapErrConfigInvalid("maxrooms", positional[1], "not an integer")
	}
	parsed.Port = port
	parsed.MaxRooms = maxRooms
	return parsed, nil
}

// Application 持有进程级配置与模块日志。
type Application struct {
	args    Args
	cfg     *zviper.Config
	server  chat.Config
	loggers map[string]*zlog.MLogger
}

// New creates a new Application instance.
func New() *Application {
	return &Application{}
}

// Run 解析命令行、加载配置文件并初始化日志，所有错误都是 ConfigurationError。
//
// 配置文件路径优先级（后者覆盖前者）：
//  1. 默认：./config.yaml，不存在时忽略；
//  2. 环境变量：ROOMCHAT_CONFIG_FILE_PATH；
//  3. 命令行：--config <path> 或 --config=<path>。
func (a *Application) Run(args []string) error {
	parsed, err := ParseArgs(args)
	if err != nil {
		return err
	}
	a.args = parsed

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	server := chat.DefaultConfig()
	if err := a.cfg.UnmarshalKey("server", &server); err != nil {
		return err
	}
	server.Port = parsed.Port
	server.MaxRooms = parsed.MaxRooms
	if err := server.Validate(); err != nil {
		return err
	}
	a.server = server

	return a.initLogging()
}

// Args 返回解析后的命令行参数。
func (a *Application) Args() Args {
	return a.args
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// ServerConfig 返回合并了命令行与配置文件的服务配置。
func (a *Application) ServerConfig() chat.Config {
	return a.server
}

// Logger 返回配置文件中 logging.<name> 对应的日志，未配置时退回全局日志。
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return zlog.With(zlog.FieldModule(name))
}

func (a *Application) loadConfig() (*zviper.Config, error) {
	configPath := DefaultConfigPath
	explicit := false

	if envPath := strings.TrimSpace(os.Getenv(EnvConfigPath)); envPath != "" {
		configPath = envPath
		explicit = true
	}
	if a.args.ConfigPath != "" {
		configPath = a.args.ConfigPath
		explicit = true
	}

	cfg := zviper.New()
	if !explicit {
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
	}
	if err := cfg.LoadFile(configPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *Application) initLogging() error {
	if err := a.initGlobalLoggerFromEnv(); err != nil {
		return err
	}
	return a.initModuleLoggersFromConfig()
}

// initGlobalLoggerFromEnv 根据 ROOMCHAT_LOG_* 环境变量配置全局日志。
//
//   - ROOMCHAT_LOG_ENABLE：默认开启，关闭后所有输出被丢弃；
//   - ROOMCHAT_LOG_LEVEL：默认 info；
//   - ROOMCHAT_LOG_STDOUT：默认输出到标准输出；
//   - ROOMCHAT_LOG_FORMAT：text 或 json，默认 text；
//   - ROOMCHAT_LOG_FILE_DIR / ROOMCHAT_LOG_FILE：文件日志，文件名留空表示关闭。
func (a *Application) initGlobalLoggerFromEnv() error {
	cfg := &zlog.Config{
		Level:  getenvDefault(EnvLogLevel, "info"),
		Format: getenvDefault(EnvLogFormat, zlog.FormatText),
		Stdout: getenvBool(EnvLogStdout, true),
		File: zlog.FileLogConfig{
			RootPath: getenvDefault(EnvLogFileDir, ""),
			Filename: getenvDefault(EnvLogFile, ""),
		},
	}

	if !getenvBool(EnvLogEnable, true) {
		cfg.Stdout = false
		cfg.File.Filename = ""
	}

	logger, props, err := zlog.InitLogger(cfg)
	if err != nil {
		return merr.WrapErrConfigInvalid("log", cfg.Level, err.Error())
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}

// initModuleLoggersFromConfig 按 logging 节创建命名日志，例如：
//
//	logging:
//	  chat:
//	    level: debug
//	    stdout: true
//	    file:
//	      rootpath: ./logs
//	      filename: chat.log
func (a *Application) initModuleLoggersFromConfig() error {
	raw := make(map[string]zlog.Config)
	if err := a.cfg.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return merr.WrapErrConfigInvalid("logging."+name, cfgCopy.Level, err.Error())
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger.With(zlog.FieldModule(name))}
	}
	return nil
}

func getenvDefault(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func getenvBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
