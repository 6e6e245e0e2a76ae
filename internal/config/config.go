package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/gregLibert/sd-card/pkg/sdspi"
)

const (
	DefaultKind    = "sdhc"
	DefaultSectors = 65536 // 32 MiB
	NoGPIO         = -1
)

// Config holds the tool configuration.
type Config struct {
	// Image is a disk image served by a simulated card.
	Image string
	// Kind is the simulated card kind: sdhc, sdsc or v1.
	Kind string
	// Sectors is the size used when the image has to be created.
	Sectors uint64

	// Device is a spidev device path, for a real card.
	Device string
	// CSGPIO is the chip select GPIO, NoGPIO to let the kernel drive it.
	CSGPIO int

	SlowHz       uint32
	FastHz       uint32
	Retries      int
	OpenAttempts int
}

// Load reads configuration from environment variables with sensible defaults.
// Malformed values are ignored.
func Load() *Config {
	def := sdspi.DefaultConfig()
	cfg := &Config{
		Kind:         DefaultKind,
		Sectors:      DefaultSectors,
		CSGPIO:       NoGPIO,
		SlowHz:       def.SlowClock,
		FastHz:       def.FastClock,
		Retries:      def.ResponseRetries,
		OpenAttempts: def.OpenAttempts,
	}

	cfg.Image = os.Getenv("SDCARD_IMAGE")
	cfg.Device = os.Getenv("SDCARD_DEVICE")

	switch kind := os.Getenv("SDCARD_KIND"); kind {
	case "sdhc", "sdsc", "v1":
		cfg.Kind = kind
	}

	if v, ok := positive("SDCARD_SECTORS", 1<<40); ok {
		cfg.Sectors = uint64(v)
	}
	if s := os.Getenv("SDCARD_CS_GPIO"); s != "" {
		if pin, err := strconv.Atoi(s); err == nil && pin >= 0 {
			cfg.CSGPIO = pin
		}
	}
	if v, ok := positive("SDCARD_SLOW_HZ", 1<<32-1); ok {
		cfg.SlowHz = uint32(v)
	}
	if v, ok := positive("SDCARD_FAST_HZ", 1<<32-1); ok {
		cfg.FastHz = uint32(v)
	}
	if v, ok := positive("SDCARD_RETRIES", 1<<31-1); ok {
		cfg.Retries = int(v)
	}
	if v, ok := positive("SDCARD_OPEN_ATTEMPTS", 1<<31-1); ok {
		cfg.OpenAttempts = int(v)
	}

	return cfg
}

// positive parses a decimal variable in [1, limit].
func positive(name string, limit uint64) (uint64, bool) {
	s := os.Getenv(name)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 || v > limit {
		return 0, false
	}
	return v, true
}

// Validate checks that exactly one card source is configured and the clocks
// are ordered.
func (c *Config) Validate() error {
	switch {
	case c.Image == "" && c.Device == "":
		return errors.New("config: no card source, set an image or a device")
	case c.Image != "" && c.Device != "":
		return errors.New("config: image and device are mutually exclusive")
	case c.SlowHz > c.FastHz:
		return errors.New("config: slow clock above fast clock")
	}
	return nil
}

// Driver returns the sdspi configuration. Retries bounds every byte-level
// wait; the busy wait keeps its larger default.
func (c *Config) Driver() sdspi.Config {
	cfg := sdspi.DefaultConfig()
	cfg.SlowClock = c.SlowHz
	cfg.FastClock = c.FastHz
	cfg.OpenAttempts = c.OpenAttempts
	cfg.ResponseRetries = c.Retries
	cfg.TokenRetries = c.Retries
	cfg.ActivationRetries = c.Retries
	return cfg
}
