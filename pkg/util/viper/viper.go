package viper

import (
	"path/filepath"
	"strings"

	spfviper "github.com/spf13/viper"

	"github.com/lk2023060901/roomchat/pkg/util/merr"
)

// Config 封装 spf13/viper 实例，对外提供精简的 YAML/JSON 配置加载接口。
type Config struct {
	v    *spfviper.Viper
	path string
}

// New 创建一个空的 Config。
// 未加载文件时 Unmarshal/UnmarshalKey 只会得到默认值。
func New() *Config {
	return &Config{
		v: spfviper.New(),
	}
}

// LoadFile 将 YAML 或 JSON 配置文件加载到 Config 中。
// 文件类型通过扩展名（.yaml/.yml/.json）推断，失败时返回 merr.ErrConfigFileInvalid。
func (c *Config) LoadFile(path string) error {
	if c.v == nil {
		c.v = spfviper.New()
	}

	c.v.SetConfigFile(path)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		c.v.SetConfigType("yaml")
	case ".json":
		c.v.SetConfigType("json")
	default:
		return merr.WrapErrConfigFileInvalid(path, errUnsupportedExt(ext))
	}

	if err := c.v.ReadInConfig(); err != nil {
		return merr.WrapErrConfigFileInvalid(path, err)
	}
	c.path = path
	return nil
}

// Path 返回已加载的配置文件路径，未加载时为空。
func (c *Config) Path() string {
	return c.path
}

// SetDefault 为 key 设置默认值，配置文件中的值优先。
func (c *Config) SetDefault(key string, value any) {
	c.v.SetDefault(key, value)
}

// IsSet 判断 key 是否在配置文件或默认值中出现。
func (c *Config) IsSet(key string) bool {
	return c.v.IsSet(key)
}

// Unmarshal 将完整配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) Unmarshal(dst any) error {
	if c.v == nil {
		return nil
	}
	if err := c.v.Unmarshal(dst); err != nil {
		return merr.WrapErrConfigFileInvalid(c.path, err)
	}
	return nil
}

// UnmarshalKey 将指定 key 对应的子配置反序列化到 dst。
func (c *Config) UnmarshalKey(key string, dst any) error {
	if c.v == nil {
		return nil
	}
	if err := c.v.UnmarshalKey(key, dst); err != nil {
		return merr.WrapErrConfigInvalid(key, c.path, err.Error())
	}
	return nil
}

type errUnsupportedExt string

func (e errUnsupportedExt) Error() string {
	if e == "" {
		return "missing file extension, expect .yaml, .yml or .json"
	}
	return "unsupported file extension " + string(e) + ", expect .yaml, .yml or .json"
}
