package sdspi

import (
	"fmt"

	"github.com/golang/glog"
)

// Every exchange is bracketed the same way:
//
//	CS asserted -> command frame -> response (-> data) -> 8 x 0xFF -> CS deasserted
//
// The trailing bytes give the card the clocks it needs to finish the
// operation internally before it is deselected.

const (
	trailingClocks = 8
	powerUpClocks  = 10 // 80 clocks, the card needs at least 74
)

var idleBytes = [powerUpClocks]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// conn binds a transport and a chip select to the retry budget of a Config.
type conn struct {
	t   Transport
	cs  ChipSelect
	cfg Config

	// trace collects transactions while non-nil.
	trace *Trace

	// scratch holds an outbound frame (token, payload, CRC) or an inbound
	// payload plus its CRC.
	scratch [1 + BlockSize + 2]byte
}

func (c *conn) transfer(tx, rx []byte) error {
	if err := c.t.Transfer(tx, rx); err != nil {
		return fmt.Errorf("%w: %w", ErrBusUnavailable, err)
	}
	return nil
}

func (c *conn) readByte() (byte, error) {
	var b [1]byte
	err := c.transfer(nil, b[:])
	return b[0], err
}

// clocks sends n idle bytes.
func (c *conn) clocks(n int) error {
	return c.transfer(idleBytes[:n], nil)
}

// readR1 polls for the first byte with bit 7 clear.
func (c *conn) readR1() (R1, error) {
	r := R1(0xFF)
	err := Poll(c.cfg.ResponseRetries, func() (bool, error) {
		b, err := c.readByte()
		if err != nil {
			return false, err
		}
		r = R1(b)
		return r.Valid(), nil
	})
	if err != nil {
		return r, fmt.Errorf("waiting for R1: %w", err)
	}
	return r, nil
}

// readR3orR7 reads an R1 and, when it is free of errors, the 32-bit register
// that follows it.
func (c *conn) readR3orR7() (Response, error) {
	r1, err := c.readR1()
	if err != nil {
		return Response{R1: r1}, err
	}
	resp := Response{R1: r1}
	if r1.Failed() {
		return resp, nil
	}

	var reg [4]byte
	if err := c.transfer(nil, reg[:]); err != nil {
		return resp, err
	}
	resp.Register = uint32(reg[0])<<24 | uint32(reg[1])<<16 | uint32(reg[2])<<8 | uint32(reg[3])
	resp.HasRegister = true
	return resp, nil
}

// exchange runs one selected command. withRegister selects the R3/R7 shape.
// data, when not nil, runs while the card is still selected and may read or
// write a data block.
func (c *conn) exchange(cmd Command, arg uint32, withRegister bool, data func(Response) error) (Response, error) {
	frame := BuildCommand(cmd, arg)

	c.cs.set(true)
	err := c.transfer(frame[:], nil)

	var resp Response
	if err == nil {
		if withRegister {
			resp, err = c.readR3orR7()
		} else {
			resp.R1, err = c.readR1()
		}
	}
	if err == nil && data != nil {
		err = data(resp)
	}

	if clkErr := c.clocks(trailingClocks); err == nil {
		err = clkErr
	}
	c.cs.set(false)

	if glog.V(3) {
		glog.Infof("sdspi: %s -> %s (err=%v)", frame, resp, err)
	}
	if c.trace != nil {
		*c.trace = append(*c.trace, Transaction{Frame: frame, Response: resp, Err: err})
	}
	return resp, err
}

// command runs a command whose R1 must be free of errors.
func (c *conn) command(cmd Command, arg uint32) (R1, error) {
	resp, err := c.exchange(cmd, arg, false, nil)
	if err != nil {
		return resp.R1, err
	}
	if resp.R1.Failed() {
		return resp.R1, &ResponseError{Cmd: cmd, R1: resp.R1}
	}
	return resp.R1, nil
}

// readData runs a command followed by a data block read into dst.
func (c *conn) readData(cmd Command, arg uint32, dst []byte) error {
	_, err := c.exchange(cmd, arg, false, func(resp Response) error {
		if resp.R1.Failed() {
			return &ResponseError{Cmd: cmd, R1: resp.R1}
		}
		return c.receiveBlock(dst)
	})
	return err
}

// writeData runs a command followed by a data block write of src.
func (c *conn) writeData(cmd Command, arg uint32, src []byte) error {
	_, err := c.exchange(cmd, arg, false, func(resp Response) error {
		if resp.R1.Failed() {
			return &ResponseError{Cmd: cmd, R1: resp.R1}
		}
		// One byte of gap before the start token.
		if _, err := c.readByte(); err != nil {
			return err
		}
		return c.sendBlock(src)
	})
	return err
}
