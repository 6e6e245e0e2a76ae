package spidev

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang/glog"

	"github.com/gregLibert/sd-card/pkg/sdspi"
)

// sysfsGPIO is the root of the legacy GPIO interface.
var sysfsGPIO = "/sys/class/gpio"

// GPIO is an active-low chip select line driven through sysfs.
type GPIO struct {
	pin   int
	value *os.File
}

// OpenGPIO exports pin, configures it as an output driven high (card
// deselected) and returns it.
func OpenGPIO(pin int) (*GPIO, error) {
	dir := filepath.Join(sysfsGPIO, "gpio"+strconv.Itoa(pin))
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(filepath.Join(sysfsGPIO, "export"), []byte(strconv.Itoa(pin)), 0o644); err != nil {
			return nil, fmt.Errorf("spidev: export gpio %d: %w", pin, err)
		}
	}

	// "high" sets the direction and the initial level atomically.
	if err := os.WriteFile(filepath.Join(dir, "direction"), []byte("high"), 0o644); err != nil {
		return nil, fmt.Errorf("spidev: gpio %d direction: %w", pin, err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "value"), os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("spidev: gpio %d value: %w", pin, err)
	}
	return &GPIO{pin: pin, value: f}, nil
}

// Set drives the line low when asserted.
func (g *GPIO) Set(asserted bool) {
	level := []byte("1")
	if asserted {
		level = []byte("0")
	}
	if _, err := g.value.WriteAt(level, 0); err != nil {
		glog.Errorf("spidev: gpio %d: %v", g.pin, err)
	}
}

// ChipSelect returns g as an sdspi chip select.
func (g *GPIO) ChipSelect() sdspi.ChipSelect {
	return g.Set
}

// Close releases the value file. The pin stays exported and deselected.
func (g *GPIO) Close() error {
	g.Set(false)
	return g.value.Close()
}
