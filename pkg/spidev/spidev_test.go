package spidev

import (
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoctlNumbers(t *testing.T) {
	tests := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"SPI_IOC_WR_MODE", iocWrMode, 0x40016B01},
		{"SPI_IOC_WR_BITS_PER_WORD", iocWrBitsPerWord, 0x40016B03},
		{"SPI_IOC_WR_MAX_SPEED_HZ", iocWrMaxSpeedHz, 0x40046B04},
		{"SPI_IOC_MESSAGE(1)", iocMessage(1), 0x40206B00},
		{"SPI_IOC_MESSAGE(2)", iocMessage(2), 0x40406B00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = 0x%08X; want 0x%08X", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestTransferStructSize(t *testing.T) {
	if got := unsafe.Sizeof(spiIocTransfer{}); got != transferSize {
		t.Errorf("sizeof(spiIocTransfer) = %d; want %d", got, transferSize)
	}
}

func TestBus_Path(t *testing.T) {
	assert.Equal(t, "/dev/spidev1.0", Bus{}.path(1))
	assert.Equal(t, "/dev/spidev0.1", Bus{Device: "/dev/spidev0.1"}.path(3))
}

func TestGPIO(t *testing.T) {
	root := t.TempDir()
	old := sysfsGPIO
	sysfsGPIO = root
	t.Cleanup(func() { sysfsGPIO = old })

	dir := filepath.Join(root, "gpio25")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "value"), []byte("1"), 0o644))

	g, err := OpenGPIO(25)
	require.NoError(t, err)

	direction, err := os.ReadFile(filepath.Join(dir, "direction"))
	require.NoError(t, err)
	assert.Equal(t, "high", string(direction))

	cs := g.ChipSelect()
	cs(true)
	value, err := os.ReadFile(filepath.Join(dir, "value"))
	require.NoError(t, err)
	assert.Equal(t, "0", string(value))

	require.NoError(t, g.Close())
	value, err = os.ReadFile(filepath.Join(dir, "value"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(value))
}

func TestGPIO_ExportFailure(t *testing.T) {
	old := sysfsGPIO
	sysfsGPIO = filepath.Join(t.TempDir(), "missing")
	t.Cleanup(func() { sysfsGPIO = old })

	_, err := OpenGPIO(7)
	assert.Error(t, err)
}
