package sdspi

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is.
var (
	// ErrProtocol is returned when the card answers with an error flag or an
	// unexpected value.
	ErrProtocol = errors.New("sdspi: protocol error")
	// ErrTimeout is returned when a bounded wait runs out of attempts.
	ErrTimeout = errors.New("sdspi: timeout")
	// ErrCRC is returned when a received data block fails its CRC16 check.
	ErrCRC = errors.New("sdspi: crc mismatch")
	// ErrBusUnavailable is returned when the bus cannot be acquired or reconfigured.
	ErrBusUnavailable = errors.New("sdspi: bus unavailable")
	// ErrRange is returned for a sector beyond the card or a length above one block.
	ErrRange = errors.New("sdspi: out of range")
	// ErrNoCard is returned when Open could not bring a card up.
	ErrNoCard = errors.New("sdspi: no card")
	// ErrNoSlot is returned when every slot of the registry is in use.
	ErrNoSlot = errors.New("sdspi: no free slot")
	// ErrClosed is returned when a closed card is used.
	ErrClosed = errors.New("sdspi: card closed")
	// ErrWriteRejected is returned when the card does not accept a data block.
	ErrWriteRejected = errors.New("sdspi: write rejected")
)

// ResponseError reports an R1 status carrying error flags.
type ResponseError struct {
	Cmd Command
	R1  R1
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("sdspi: %s answered %s", e.Cmd, e.R1.Verbose())
}

// Unwrap makes every ResponseError an ErrProtocol.
func (e *ResponseError) Unwrap() error {
	return ErrProtocol
}

// InitError reports the bring-up step that failed, together with the commands
// exchanged up to that point.
type InitError struct {
	Step  Step
	Err   error
	Trace Trace
}

func (e *InitError) Error() string {
	return fmt.Sprintf("sdspi: bring-up failed at %s: %v", e.Step, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
