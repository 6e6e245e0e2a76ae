package diskio_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregLibert/sd-card/pkg/diskio"
	"github.com/gregLibert/sd-card/pkg/sdsim"
	"github.com/gregLibert/sd-card/pkg/sdspi"
)

func TestDisk_OverSimulatedCard(t *testing.T) {
	store := sdsim.NewMemStore(2048)
	sim, err := sdsim.New(sdsim.KindSDSC, store)
	require.NoError(t, err)

	card, err := sdspi.NewRegistry(sim, sdspi.DefaultConfig()).Open(0, sim.Select)
	require.NoError(t, err)
	defer card.Close()

	d := diskio.New(card)
	assert.Equal(t, int64(2048*diskio.SectorSize), d.Size())

	msg := []byte("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A\n")
	off := int64(5*diskio.SectorSize - 20)
	n, err := d.WriteAt(msg, off)
	require.NoError(t, err)
	assert.Equal(t, len(msg), n)

	assert.True(t, bytes.Equal(msg, store.Bytes()[off:off+int64(len(msg))]))

	d.Invalidate()
	got := make([]byte, len(msg))
	_, err = d.ReadAt(got, off)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}
