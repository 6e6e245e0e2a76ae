package sdsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregLibert/sd-card/pkg/sdspi"
)

// wire drives a card by hand, one selected exchange at a time.
type wire struct {
	t    *testing.T
	card *Card
	tr   sdspi.Transport
}

func newWire(t *testing.T, kind Kind, opts ...Option) *wire {
	card, err := New(kind, NewMemStore(4096), opts...)
	require.NoError(t, err)
	tr, err := card.Open(0, 400_000)
	require.NoError(t, err)
	return &wire{t: t, card: card, tr: tr}
}

// send transmits a frame and returns the next n bytes the card drives.
func (w *wire) send(f sdspi.Frame, n int) []byte {
	w.card.Select(true)
	defer w.card.Select(false)
	require.NoError(w.t, w.tr.Transfer(f[:], nil))
	rx := make([]byte, n)
	require.NoError(w.t, w.tr.Transfer(nil, rx))
	return rx
}

// r1 sends a command and returns the first response byte.
func (w *wire) r1(cmd sdspi.Command, arg uint32) sdspi.R1 {
	for _, b := range w.send(sdspi.BuildCommand(cmd, arg), 8) {
		if b&0x80 == 0 {
			return sdspi.R1(b)
		}
	}
	return 0xFF
}

func TestCard_IgnoresCommandsBeforeReset(t *testing.T) {
	w := newWire(t, KindSDHC)
	assert.Equal(t, sdspi.R1(0xFF), w.r1(sdspi.SEND_IF_COND, sdspi.IfCondPattern))
	assert.Equal(t, sdspi.R1Idle, w.r1(sdspi.GO_IDLE_STATE, 0))
}

func TestCard_InterfaceCondition(t *testing.T) {
	w := newWire(t, KindSDHC)
	w.r1(sdspi.GO_IDLE_STATE, 0)

	rx := w.send(sdspi.BuildCommand(sdspi.SEND_IF_COND, sdspi.IfCondPattern), 6)
	assert.Equal(t, []byte{0xFF, 0x01, 0x00, 0x00, 0x01, 0xAA}, rx)

	v1 := newWire(t, KindV1)
	v1.r1(sdspi.GO_IDLE_STATE, 0)
	assert.Equal(t, sdspi.R1Idle|sdspi.R1IllegalCmd, v1.r1(sdspi.SEND_IF_COND, sdspi.IfCondPattern))
}

func TestCard_RejectsBadCRC(t *testing.T) {
	w := newWire(t, KindSDHC)
	f := sdspi.BuildCommand(sdspi.GO_IDLE_STATE, 0)
	f[5] ^= 0x10

	rx := w.send(f, 2)
	assert.True(t, sdspi.R1(rx[1]).Has(sdspi.R1CRCError), "R1 = %02X", rx[1])
	assert.Len(t, w.card.Commands(), 1)
}

func TestCard_HighCapacityNeedsHCS(t *testing.T) {
	w := newWire(t, KindSDHC, ActivationPolls(1))
	w.r1(sdspi.GO_IDLE_STATE, 0)

	for i := 0; i < 5; i++ {
		require.Equal(t, sdspi.R1Idle, w.r1(sdspi.APP_CMD, 0))
		require.Equal(t, sdspi.R1Idle, w.r1(sdspi.SD_SEND_OP_COND, 0))
	}

	w.r1(sdspi.APP_CMD, 0)
	assert.Equal(t, sdspi.R1Ready, w.r1(sdspi.SD_SEND_OP_COND, sdspi.ArgHighCapacity))
}

func TestCard_OpCondNeedsAppPrefix(t *testing.T) {
	w := newWire(t, KindSDSC)
	w.r1(sdspi.GO_IDLE_STATE, 0)
	assert.Equal(t, sdspi.R1Idle|sdspi.R1IllegalCmd, w.r1(sdspi.SD_SEND_OP_COND, 0))
}

func TestCard_CRCOnChecksEveryCommand(t *testing.T) {
	w := newWire(t, KindSDHC)
	w.r1(sdspi.GO_IDLE_STATE, 0)

	bad := sdspi.BuildCommand(sdspi.APP_CMD, 0)
	bad[5] = 0xFF
	assert.Equal(t, sdspi.R1Idle, sdspi.R1(w.send(bad, 2)[1]), "CRC is off")

	w.r1(sdspi.CRC_ON_OFF, sdspi.ArgCRCOn)
	require.True(t, w.card.CRCEnabled())
	assert.True(t, sdspi.R1(w.send(bad, 2)[1]).Has(sdspi.R1CRCError))
}

func TestCard_OpenPairing(t *testing.T) {
	card, err := New(KindSDHC, NewMemStore(2048), MaxClock(1_000_000))
	require.NoError(t, err)

	tr, err := card.Open(0, 400_000)
	require.NoError(t, err)
	assert.Equal(t, uint32(400_000), card.Clock())

	_, err = card.Open(0, 400_000)
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Close(), ErrNotOpen)
	assert.ErrorIs(t, tr.Transfer(nil, make([]byte, 1)), ErrNotOpen)
	assert.False(t, card.IsOpen())

	_, err = card.Open(0, 12_500_000)
	assert.ErrorIs(t, err, ErrClockRejected)
	assert.Equal(t, 1, card.Opens())
}

func TestCard_StrayTraffic(t *testing.T) {
	w := newWire(t, KindSDHC)
	require.NoError(t, w.tr.Transfer([]byte{0xFF, 0x40, 0x00}, nil))
	assert.Equal(t, 2, w.card.Stray())
	assert.Empty(t, w.card.Commands())
}

func TestNew_Geometry(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		sectors uint64
		want    uint64
	}{
		{"SDHC exact", KindSDHC, 4096, 4096},
		{"SDHC rounds down", KindSDHC, 5000, 4096},
		{"SDSC exact", KindSDSC, 4096, 4096},
		{"SDSC rounds down", KindSDSC, 4097, 4096},
		{"V1 small", KindV1, 1000, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, err := New(tt.kind, NewMemStore(tt.sectors))
			require.NoError(t, err)
			assert.Equal(t, tt.want, card.Sectors())

			csd, err := sdspi.ParseCSD(card.csd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, csd.SectorCount)
			assert.Equal(t, tt.kind == KindSDHC, csd.Capacity == sdspi.CapacityHigh)
		})
	}

	_, err := New(KindSDHC, NewMemStore(512))
	assert.Error(t, err)
	_, err = New(KindSDSC, NewMemStore(2))
	assert.Error(t, err)
}

func TestLegacyGeometry(t *testing.T) {
	tests := []struct {
		sectors            uint64
		cSize, mult, blLen uint32
		advertised         uint64
	}{
		{4096, 1023, 0, 9, 4096},
		{2015232, 3935, 7, 9, 2015232},
		{1000, 249, 0, 9, 1000},
		{10_000_000, 4095, 7, 11, 4096 << 11},
		{3, 0, 0, 9, 0},
	}

	for _, tt := range tests {
		cSize, mult, blLen, adv := legacyGeometry(tt.sectors)
		assert.Equal(t, []any{tt.cSize, tt.mult, tt.blLen, tt.advertised}, []any{cSize, mult, blLen, adv}, "sectors %d", tt.sectors)
	}
}

func TestSimCID(t *testing.T) {
	cid := sdspi.ParseCID(simCID())
	assert.Equal(t, "MID:1B OID:SM PNM:SIMSD PRV:1.0 PSN:C0FFEE01 MDT:2024/03", cid.Describe())
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindSDHC, KindSDSC, KindV1} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("mmc")
	assert.Error(t, err)
}
