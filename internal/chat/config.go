package chat

import (
	"net"
	"strconv"
	"time"

	"github.com/lk2023060901/roomchat/internal/network/framer"
	"github.com/lk2023060901/roomchat/pkg/util/merr"
)

const (
	MinPort = 1
	MaxPort = 65535
	// ReservedPortLimit 以下的端口需要特权，只给出警告。
	ReservedPortLimit = 1024
)

// Config 描述聊天服务的运行参数。
type Config struct {
	// Host 为监听地址，留空表示所有网卡。
	Host string `mapstructure:"host" json:"host"`
	// Port 为监听端口，取值 1..65535。
	Port int `mapstructure:"port" json:"port"`
	// MaxRooms 在握手时发送给客户端，至少为 1。
	MaxRooms int `mapstructure:"maxRooms" json:"maxRooms"`
	// MaxSessions 为并发会话上限，0 表示不限制。
	MaxSessions int `mapstructure:"maxSessions" json:"maxSessions"`
	// MaxLineBytes 为单行上限（含换行符），0 使用默认值。
	MaxLineBytes int `mapstructure:"maxLineBytes" json:"maxLineBytes"`
	// WriteTimeout 限制单次写出的时长，0 表示不限制。
	WriteTimeout time.Duration `mapstructure:"writeTimeout" json:"writeTimeout"`
	// MetricsAddr 非空时在该地址暴露 /metrics 与 pprof。
	MetricsAddr string `mapstructure:"metricsAddr" json:"metricsAddr"`
}

// DefaultConfig 返回除端口与房间数以外的默认配置。
func DefaultConfig() Config {
	return Config{
		MaxLineBytes: framer.DefaultMaxLineBytes,
	}
}

// Validate 检查配置，失败时返回 merr.ErrConfigInvalid。
func (c *Config) Validate() error {
	if c.Port < MinPort || c.Port > MaxPort {
		return merr.WrapErrConfigOutOfRange("port", c.Port, MinPort, MaxPort)
	}
	if c.MaxRooms < 1 {
		return merr.WrapErrConfigInvalid("maxrooms", c.MaxRooms, "must be at least 1")
	}
	if c.MaxSessions < 0 {
		return merr.WrapErrConfigInvalid("maxSessions", c.MaxSessions, "must not be negative")
	}
	if c.MaxLineBytes < 0 {
		return merr.WrapErrConfigInvalid("maxLineBytes", c.MaxLineBytes, "must not be negative")
	}
	if c.WriteTimeout < 0 {
		return merr.WrapErrConfigInvalid("writeTimeout", c.WriteTimeout, "must not be negative")
	}
	return nil
}

// Reserved 返回端口是否位于特权端口范围。
func (c *Config) Reserved() bool {
	return c.Port < ReservedPortLimit
}

// Addr 返回 host:port 形式的监听地址。
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
