package app

import (
	"context"
	"os"

	"github.com/topolvm/topofix/internal/repair"
	"github.com/topolvm/topofix/internal/thinpool"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/yaml"
)

// Config represents the optional configuration file of topofix
type Config struct {
	// SizeOverrides divides the stored size of the listed volumes before
	// brick sizes are derived from it, keyed by volume id.
	SizeOverrides map[string]int `json:"size-overrides"`
	// IncreaseUsage is the default of restore --increase-usage. Unset
	// means the flag default, true.
	IncreaseUsage *bool `json:"increase-usage"`
	// ExtentSize overrides the LVM extent size in KiB.
	ExtentSize uint64 `json:"extent-size"`
	// MaxMetadataSize overrides the pool metadata size cap in KiB.
	MaxMetadataSize uint64 `json:"max-metadata-size"`
	// MetadataTable adds expected pool metadata sizes, keyed by GiB.
	MetadataTable thinpool.Table `json:"metadata-table"`
}

func loadConfFile(ctx context.Context, cfgFilePath string) (*Config, error) {
	config := &Config{}
	if cfgFilePath == "" {
		return config, nil
	}
	b, err := os.ReadFile(cfgFilePath)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(b, config)
	if err != nil {
		return nil, err
	}
	log.FromContext(ctx).Info("configuration file loaded",
		"size_overrides", config.SizeOverrides,
		"increase_usage", config.IncreaseUsage,
		"file_name", cfgFilePath,
	)
	return config, nil
}

func (c *Config) sizer() *thinpool.Sizer {
	s := thinpool.NewSizer()
	if c.ExtentSize != 0 {
		s.ExtentSize = c.ExtentSize
	}
	if c.MaxMetadataSize != 0 {
		s.MaxMetadataSize = c.MaxMetadataSize
	}
	if len(c.MetadataTable) > 0 {
		s.Table = s.Table.Merge(c.MetadataTable)
	}
	return s
}

// increaseUsage resolves restore --increase-usage: an explicit flag wins
// over the config file, which wins over the flag default.
func (c *Config) increaseUsage(flagChanged, flagValue bool) bool {
	if flagChanged || c.IncreaseUsage == nil {
		return flagValue
	}
	return *c.IncreaseUsage
}

func (c *Config) engineOptions() repair.Options {
	return repair.Options{
		Sizer:        c.sizer(),
		SizeDivisors: c.SizeOverrides,
	}
}
