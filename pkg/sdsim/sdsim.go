// Package sdsim simulates an SD card on an SPI bus, byte by byte.
//
// A Card implements sdspi.Bus: Open hands out a transport whose Transfer
// clocks bytes through the card state machine, and Select is the chip select
// line to pass to sdspi.Registry.Open. The card parses command frames,
// answers R1/R3/R7 responses, serves CSD and CID registers and reads or
// writes 512-byte data blocks against a Store, with CRC16 on every block.
//
// Faults are injected with Options.
package sdsim

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/gregLibert/sd-card/pkg/sdspi"
)

// Kind selects the card generation and capacity class.
type Kind uint8

const (
	// KindSDHC is a v2 high capacity card, block addressed.
	KindSDHC Kind = iota
	// KindSDSC is a v2 standard capacity card, byte addressed.
	KindSDSC
	// KindV1 is a legacy card that rejects SEND_IF_COND.
	KindV1
)

func (k Kind) String() string {
	switch k {
	case KindSDHC:
		return "SDHC"
	case KindSDSC:
		return "SDSC"
	case KindV1:
		return "SDv1"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind returns the Kind named by s ("sdhc", "sdsc" or "v1").
func ParseKind(s string) (Kind, error) {
	switch s {
	case "sdhc", "SDHC":
		return KindSDHC, nil
	case "sdsc", "SDSC":
		return KindSDSC, nil
	case "v1", "SDv1":
		return KindV1, nil
	}
	return 0, fmt.Errorf("sdsim: unknown card kind %q", s)
}

// Errors returned by the simulated bus.
var (
	ErrBusy          = errors.New("sdsim: bus already open")
	ErrNotOpen       = errors.New("sdsim: bus not open")
	ErrClockRejected = errors.New("sdsim: clock rate rejected")
)

type options struct {
	neverReady      bool
	activationPolls int
	noVoltage       bool
	badEcho         bool
	corruptReads    bool
	readErrorToken  bool
	rejectWrites    bool
	maxClock        uint32
	responseDelay   int
	busyBytes       int
	idleOCRIllegal  bool
}

// Option injects a behaviour or a fault.
type Option func(*options)

// NeverReady keeps the card idle forever during activation.
func NeverReady() Option { return func(o *options) { o.neverReady = true } }

// ActivationPolls sets how many SD_SEND_OP_COND the card needs before it
// reports ready. The default is 3.
func ActivationPolls(n int) Option { return func(o *options) { o.activationPolls = n } }

// NoVoltage clears the voltage window of the OCR.
func NoVoltage() Option { return func(o *options) { o.noVoltage = true } }

// BadEcho corrupts the check pattern echoed by SEND_IF_COND.
func BadEcho() Option { return func(o *options) { o.badEcho = true } }

// CorruptReads sends sector data with a wrong CRC16.
func CorruptReads() Option { return func(o *options) { o.corruptReads = true } }

// ReadErrorToken answers sector reads with an out of range data error token.
func ReadErrorToken() Option { return func(o *options) { o.readErrorToken = true } }

// RejectWrites answers every data block with a write error token.
func RejectWrites() Option { return func(o *options) { o.rejectWrites = true } }

// MaxClock makes Open fail for clock rates above hz.
func MaxClock(hz uint32) Option { return func(o *options) { o.maxClock = hz } }

// ResponseDelay sets the idle bytes sent before each R1. The default is 1.
func ResponseDelay(n int) Option { return func(o *options) { o.responseDelay = n } }

// BusyBytes sets how long the card holds the line low after a write.
// The default is 4.
func BusyBytes(n int) Option { return func(o *options) { o.busyBytes = n } }

// IllegalOCRWhileIdle rejects READ_OCR until the card is activated, like
// some legacy cards do.
func IllegalOCRWhileIdle() Option { return func(o *options) { o.idleOCRIllegal = true } }

type mode uint8

const (
	modeCommand mode = iota
	modeWriteToken
	modeWriteData
)

// Card is a simulated SD card.
type Card struct {
	kind    Kind
	store   Store
	sectors uint64
	csd     []byte
	cid     []byte
	opts    options

	open     bool
	clock    uint32
	selected bool

	// protocol state
	spi    bool
	idle   bool
	appCmd bool
	crcOn  bool
	polls  int

	mode     mode
	in       []byte
	out      []byte
	writeOff int64
	writeBuf []byte

	// counters
	transfers int
	opens     int
	stray     int
	log       []sdspi.Frame
}

// New returns a card of the given kind over store.
func New(kind Kind, store Store, opts ...Option) (*Card, error) {
	c := &Card{
		kind:  kind,
		store: store,
		cid:   simCID(),
		opts: options{
			activationPolls: 3,
			responseDelay:   1,
			busyBytes:       4,
		},
	}
	for _, opt := range opts {
		opt(&c.opts)
	}

	switch kind {
	case KindSDHC:
		if store.Sectors() < 1024 {
			return nil, fmt.Errorf("sdsim: %s needs at least 1024 sectors, store has %d", kind, store.Sectors())
		}
		c.sectors = store.Sectors() / 1024 * 1024
		c.csd = modernCSD(c.sectors)
	case KindSDSC, KindV1:
		cSize, mult, blLen, advertised := legacyGeometry(store.Sectors())
		if advertised == 0 {
			return nil, fmt.Errorf("sdsim: store of %d sectors is too small", store.Sectors())
		}
		c.sectors = advertised
		c.csd = legacyCSD(cSize, mult, blLen)
	default:
		return nil, fmt.Errorf("sdsim: unknown kind %d", kind)
	}
	return c, nil
}

// Kind returns the card kind.
func (c *Card) Kind() Kind { return c.kind }

// Sectors returns the capacity advertised by the CSD.
func (c *Card) Sectors() uint64 { return c.sectors }

// Transfers returns the number of Transfer calls served.
func (c *Card) Transfers() int { return c.transfers }

// Opens returns the number of successful Open calls.
func (c *Card) Opens() int { return c.opens }

// Clock returns the rate of the current transport, 0 when closed.
func (c *Card) Clock() uint32 { return c.clock }

// IsOpen reports whether a transport is held.
func (c *Card) IsOpen() bool { return c.open }

// Stray returns the number of non-idle bytes clocked while deselected.
func (c *Card) Stray() int { return c.stray }

// Commands returns every complete command frame received, in order.
func (c *Card) Commands() []sdspi.Frame {
	return append([]sdspi.Frame(nil), c.log...)
}

// Count returns how many frames carried cmd.
func (c *Card) Count(cmd sdspi.Command) int {
	n := 0
	for _, f := range c.log {
		if f.Command() == cmd {
			n++
		}
	}
	return n
}

// CRCEnabled reports whether the card checks command CRCs.
func (c *Card) CRCEnabled() bool { return c.crcOn }

// Select drives the chip select line. It has the sdspi.ChipSelect signature.
func (c *Card) Select(asserted bool) {
	if c.selected && !asserted {
		// Deselecting aborts whatever was in flight.
		c.in = c.in[:0]
		c.out = c.out[:0]
		c.mode = modeCommand
	}
	c.selected = asserted
}

// Open acquires the simulated bus. Only one transport may be held at a time.
func (c *Card) Open(index uint8, hz uint32) (sdspi.Transport, error) {
	if c.open {
		return nil, ErrBusy
	}
	if c.opts.maxClock != 0 && hz > c.opts.maxClock {
		return nil, fmt.Errorf("%w: %d Hz above %d Hz", ErrClockRejected, hz, c.opts.maxClock)
	}
	c.open = true
	c.clock = hz
	c.opens++
	glog.V(2).Infof("sdsim: bus %d open at %d Hz", index, hz)
	return &link{card: c}, nil
}

// link is a transport handed out by Open.
type link struct {
	card   *Card
	closed bool
}

func (l *link) Transfer(tx, rx []byte) error {
	if l.closed {
		return ErrNotOpen
	}
	c := l.card
	c.transfers++
	for _, b := range tx {
		c.clockByte(b)
	}
	for i := range rx {
		rx[i] = c.clockByte(0xFF)
	}
	return nil
}

func (l *link) Close() error {
	if l.closed {
		return ErrNotOpen
	}
	l.closed = true
	l.card.open = false
	l.card.clock = 0
	return nil
}
