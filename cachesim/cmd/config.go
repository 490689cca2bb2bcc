package cmd

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/cachesim/mem"
	"github.com/sarchlab/cachesim/mem/cache"
)

// Environment variables that configure the cache.
const (
	EnvSize   = "CACHESIM_SIZE"
	EnvWays   = "CACHESIM_WAYS"
	EnvLine   = "CACHESIM_LINE"
	EnvPolicy = "CACHESIM_POLICY"
)

// Settings is the cache configuration as users write it. Flags override
// environment variables, which override the YAML file, which overrides the
// defaults.
type Settings struct {
	SizeKB   uint64 `yaml:"size"`
	Ways     uint64 `yaml:"ways"`
	LineSize uint64 `yaml:"line"`
	Policy   string `yaml:"policy"`
}

// DefaultSettings returns a 32 KB direct mapped cache with 32-byte lines and
// FIFO replacement.
func DefaultSettings() Settings {
	return Settings{
		SizeKB:   32,
		Ways:     1,
		LineSize: 32,
		Policy:   cache.FIFO.String(),
	}
}

// LoadYAML overrides the settings present in a YAML file.
func (s *Settings) LoadYAML(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)

	err = decoder.Decode(s)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	return nil
}

// ApplyEnv overrides the settings whose variables are set.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	numbers := []struct {
		name  string
		value *uint64
	}{
		{EnvSize, &s.SizeKB},
		{EnvWays, &s.Ways},
		{EnvLine, &s.LineSize},
	}

	for _, n := range numbers {
		str, ok := lookup(n.name)
		if !ok || str == "" {
			continue
		}

		v, err := strconv.ParseUint(str, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", n.name, err)
		}

		*n.value = v
	}

	if policy, ok := lookup(EnvPolicy); ok && policy != "" {
		s.Policy = policy
	}

	return nil
}

func (s *Settings) applyFlags(cmd *cobra.Command) error {
	numbers := []struct {
		name  string
		value *uint64
	}{
		{"size", &s.SizeKB},
		{"ways", &s.Ways},
		{"line", &s.LineSize},
	}

	for _, n := range numbers {
		if !flagChanged(cmd, n.name) {
			continue
		}

		v, err := cmd.Flags().GetUint64(n.name)
		if err != nil {
			return err
		}

		*n.value = v
	}

	if flagChanged(cmd, "policy") {
		s.Policy, _ = cmd.Flags().GetString("policy")
	}

	if flagChanged(cmd, "lru") {
		if lru, _ := cmd.Flags().GetBool("lru"); lru {
			s.Policy = cache.LRU.String()
		}
	}

	return nil
}

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// CacheConfig converts the settings into a cache configuration. The
// configuration is validated when the simulator is built.
func (s Settings) CacheConfig() (cache.Config, error) {
	policy, err := cache.ParseReplacePolicy(s.Policy)
	if err != nil {
		return cache.Config{}, err
	}

	if s.SizeKB > math.MaxUint64/mem.KB {
		return cache.Config{}, fmt.Errorf("%w: cache size %dKB is too large",
			cache.ErrInvalidConfig, s.SizeKB)
	}

	return cache.Config{
		ByteSize:         s.SizeKB * mem.KB,
		WayAssociativity: s.Ways,
		LineSize:         s.LineSize,
		Policy:           policy,
	}, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

func resolveSettings(cmd *cobra.Command) (Settings, error) {
	s := DefaultSettings()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := s.LoadYAML(path); err != nil {
			return s, err
		}
	}

	envFile, _ := cmd.Flags().GetString("env-file")
	if err := loadEnvFile(envFile); err != nil {
		return s, err
	}

	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return s, err
	}

	if err := s.applyFlags(cmd); err != nil {
		return s, err
	}

	return s, nil
}
