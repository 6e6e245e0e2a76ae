package sdspi

// scripted is a Transport that answers reads from a fixed byte script and
// records everything written. Reads past the script return 0xFF.
type scripted struct {
	replies   []byte
	sent      []byte
	transfers int
	closed    bool
}

func newScripted(replies ...byte) *scripted {
	return &scripted{replies: replies}
}

func (s *scripted) Transfer(tx, rx []byte) error {
	s.transfers++
	s.sent = append(s.sent, tx...)
	for i := range rx {
		if len(s.replies) == 0 {
			rx[i] = 0xFF
			continue
		}
		rx[i] = s.replies[0]
		s.replies = s.replies[1:]
	}
	return nil
}

func (s *scripted) Close() error {
	s.closed = true
	return nil
}

// csLog records chip select transitions.
type csLog []bool

func (l *csLog) set(asserted bool) {
	*l = append(*l, asserted)
}

func testConn(t Transport) *conn {
	cfg := DefaultConfig()
	cfg.ResponseRetries = 8
	cfg.TokenRetries = 8
	cfg.BusyRetries = 16
	return &conn{t: t, cfg: cfg}
}
