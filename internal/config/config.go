// Package config adapts Viper to the plugin.Config interface and builds the
// process logger.
package config

import (
	"strings"
	"time"

	"github.com/HerbHall/beacon/pkg/plugin"
	"github.com/spf13/viper"
)

// Compile-time interface guard.
var _ plugin.Config = (*ViperConfig)(nil)

// ViperConfig wraps a Viper instance to implement plugin.Config.
type ViperConfig struct {
	v *viper.Viper
}

// New creates a Config backed by v. A nil v yields an empty config, which
// is what plugins see when their section is absent.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

func (c *ViperConfig) Unmarshal(target any) error { return c.v.Unmarshal(target) }

func (c *ViperConfig) Get(key string) any { return c.v.Get(key) }

func (c *ViperConfig) GetString(key string) string { return c.v.GetString(key) }

func (c *ViperConfig) GetInt(key string) int { return c.v.GetInt(key) }

func (c *ViperConfig) GetBool(key string) bool { return c.v.GetBool(key) }

func (c *ViperConfig) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }

func (c *ViperConfig) IsSet(key string) bool { return c.v.IsSet(key) }

// Sub scopes the config to key. viper.Sub only sees one layer (file, env or
// defaults), so the section is rebuilt leaf by leaf from the merged view.
func (c *ViperConfig) Sub(key string) plugin.Config {
	prefix := strings.ToLower(key) + "."
	sub := viper.New()
	for _, k := range c.v.AllKeys() {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			sub.Set(rest, c.v.Get(k))
		}
	}
	return New(sub)
}

// Viper returns the underlying instance for top-level keys like server.port.
func (c *ViperConfig) Viper() *viper.Viper {
	return c.v
}
