package sdspi

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
)

// Registry owns a bounded table of card slots on one Bus.
type Registry struct {
	bus   Bus
	cfg   Config
	slots []*Card
}

// NewRegistry returns a registry with every slot free.
// Zero fields of cfg take their DefaultConfig value.
func NewRegistry(bus Bus, cfg Config) *Registry {
	cfg = cfg.withDefaults()
	return &Registry{
		bus:   bus,
		cfg:   cfg,
		slots: make([]*Card, cfg.Slots),
	}
}

// Config returns the effective configuration.
func (r *Registry) Config() Config {
	return r.cfg
}

// Reset closes every open card and frees all slots.
func (r *Registry) Reset() {
	for _, card := range r.slots {
		if card != nil {
			if err := card.Close(); err != nil {
				glog.Warningf("sdspi: reset: closing slot %d: %v", card.slot, err)
			}
		}
	}
	clear(r.slots)
}

// InUse returns the number of occupied slots.
func (r *Registry) InUse() int {
	n := 0
	for _, card := range r.slots {
		if card != nil {
			n++
		}
	}
	return n
}

// Open claims the first free slot and brings up the card on bus index.
// Bring-up is attempted up to Config.OpenAttempts times at the slow clock,
// the transport being released and reacquired between attempts.
func (r *Registry) Open(index uint8, cs ChipSelect) (*Card, error) {
	slot := -1
	for i, card := range r.slots {
		if card == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoCard, ErrNoSlot)
	}

	var last error
	for attempt := 1; attempt <= r.cfg.OpenAttempts; attempt++ {
		card, err := r.attempt(slot, index, cs)
		if err == nil {
			r.slots[slot] = card
			glog.V(1).Infof("sdspi: bus %d: card ready in slot %d after %d attempt(s)", index, slot, attempt)
			return card, nil
		}
		last = err
		glog.V(1).Infof("sdspi: bus %d: attempt %d: %v", index, attempt, err)
	}

	glog.Warningf("sdspi: bus %d: no card after %d attempts: %v", index, r.cfg.OpenAttempts, last)
	return nil, fmt.Errorf("%w: %w", ErrNoCard, last)
}

func (r *Registry) attempt(slot int, index uint8, cs ChipSelect) (*Card, error) {
	t, err := r.bus.Open(index, r.cfg.SlowClock)
	if err != nil {
		return nil, fmt.Errorf("%w: open at %d Hz: %w", ErrBusUnavailable, r.cfg.SlowClock, err)
	}

	c := &conn{t: t, cs: cs, cfg: r.cfg}
	b := &bringUp{c: c, bus: r.bus, index: index}
	if err := b.run(); err != nil {
		if c.t != nil {
			if cerr := c.t.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
		return nil, err
	}

	return &Card{
		reg:      r,
		slot:     slot,
		index:    index,
		c:        c,
		sectors:  b.csd.SectorCount,
		capacity: b.capacity,
		version:  b.version,
		cid:      b.cid,
		csd:      b.csd,
		trace:    b.trace,
	}, nil
}

// Close releases card and frees its slot.
func (r *Registry) Close(card *Card) error {
	if card == nil {
		return nil
	}
	return card.Close()
}

func (r *Registry) release(card *Card) {
	if card.slot < len(r.slots) && r.slots[card.slot] == card {
		r.slots[card.slot] = nil
	}
}
