package config

import (
	"strings"

	"github.com/spf13/viper"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// envKeys lists the keys AutomaticEnv must know about so Unmarshal sees env-only values
var envKeys = []string{
	"catalog.url",
	"catalog.cache_ttl",
	"player.command",
	"player.socket_dir",
	"player.volume",
	"player.max_bandwidth",
	"player.resume_threshold",
	"cache.max_entries",
	"cache.max_age",
	"cache.stagger",
	"cache.concurrency",
	"cache.max_dimension",
	"ui.theme",
	"ui.wave_count",
	"ui.narrow_width",
	"logging.file",
	"logging.level",
	"metrics.listen",
}

func bindEnv(v *viper.Viper) {
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
}
