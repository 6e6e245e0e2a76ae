package sdspi

// Config holds the timing and retry budget of the driver.
// Every wait performed by the driver is bounded by one of these limits.
type Config struct {
	// Slots is the number of cards a Registry can hold open at once.
	Slots int
	// SlowClock is the bus rate used during bring-up, in Hz.
	SlowClock uint32
	// FastClock is the bus rate used once the card is ready, in Hz.
	FastClock uint32

	// OpenAttempts bounds the full bring-up attempts made by Open.
	OpenAttempts int
	// ResponseRetries bounds the bytes read while waiting for an R1.
	ResponseRetries int
	// TokenRetries bounds the bytes read while waiting for a start token or
	// a data response token.
	TokenRetries int
	// ActivationRetries bounds the APP_CMD + SD_SEND_OP_COND rounds.
	ActivationRetries int
	// BusyRetries bounds the bytes read while the card is programming.
	BusyRetries int
}

// DefaultConfig returns the limits used by the reference firmware.
func DefaultConfig() Config {
	return Config{
		Slots:             1,
		SlowClock:         400_000,
		FastClock:         12_500_000,
		OpenAttempts:      1000,
		ResponseRetries:   1000,
		TokenRetries:      1000,
		ActivationRetries: 1000,
		BusyRetries:       100_000,
	}
}

// withDefaults replaces zero or negative fields by their default value.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Slots <= 0 {
		c.Slots = d.Slots
	}
	if c.SlowClock == 0 {
		c.SlowClock = d.SlowClock
	}
	if c.FastClock == 0 {
		c.FastClock = d.FastClock
	}
	if c.OpenAttempts <= 0 {
		c.OpenAttempts = d.OpenAttempts
	}
	if c.ResponseRetries <= 0 {
		c.ResponseRetries = d.ResponseRetries
	}
	if c.TokenRetries <= 0 {
		c.TokenRetries = d.TokenRetries
	}
	if c.ActivationRetries <= 0 {
		c.ActivationRetries = d.ActivationRetries
	}
	if c.BusyRetries <= 0 {
		c.BusyRetries = d.BusyRetries
	}
	return c
}
