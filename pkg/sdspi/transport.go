package sdspi

// Transport is an acquired serial bus running at a fixed clock rate.
//
// Transfer clocks out every byte of tx, then clocks in len(rx) bytes while
// holding the data line high (0xFF). Either slice may be nil.
type Transport interface {
	Transfer(tx, rx []byte) error
	Close() error
}

// Bus hands out transports. Open acquires (or reacquires) the bus identified
// by index at the given clock rate in Hz.
type Bus interface {
	Open(index uint8, hz uint32) (Transport, error)
}

// ChipSelect drives the card select line. asserted=true selects the card
// (line low). A nil ChipSelect means the bus manages selection itself.
type ChipSelect func(asserted bool)

func (cs ChipSelect) set(asserted bool) {
	if cs != nil {
		cs(asserted)
	}
}
