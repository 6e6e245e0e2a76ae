package sdspi

import (
	"fmt"

	"github.com/golang/glog"
)

// BRING-UP:
// A freshly powered card is in SD bus mode. Selecting it while it receives
// GO_IDLE_STATE switches it to SPI mode, after which it must be walked
// through the following steps before it serves any data:
//
// 1. RESET: GO_IDLE_STATE, the card answers "idle".
// 2. INTERFACE CHECK: SEND_IF_COND(0x1AA). A v2 card echoes the pattern, a
//    v1 card flags the command as illegal.
// 3. VOLTAGE CHECK: READ_OCR, the card must support the 2.7V to 3.6V window.
// 4. ACTIVATION LOOP: APP_CMD + SD_SEND_OP_COND until the card leaves idle.
//    v2 hosts announce high capacity support (HCS).
// 5. CAPACITY CLASS: READ_OCR again, CCS set means block addressing.
// 6. BLOCK LENGTH: SET_BLOCKLEN(512) on standard capacity cards.
// 7. IDENTIFICATION: SEND_CID, 16-byte data block.
// 8. CAPACITY REGISTER: SEND_CSD, 16-byte data block, gives the sector count.
// 9. CRC ENABLE: CRC_ON_OFF(1), every later frame is checked by the card.
// 10. SPEED-UP: the bus is reacquired at the fast clock.
//
// Each step is gated on the previous one. Any failure discards the attempt.

// Step identifies a bring-up step.
type Step uint8

const (
	StepReset Step = iota + 1
	StepInterfaceCheck
	StepVoltageCheck
	StepActivation
	StepCapacityClass
	StepBlockLength
	StepIdentification
	StepCapacityRegister
	StepCRCEnable
	StepSpeedUp
)

func (s Step) String() string {
	switch s {
	case StepReset:
		return "RESET"
	case StepInterfaceCheck:
		return "INTERFACE CHECK"
	case StepVoltageCheck:
		return "VOLTAGE CHECK"
	case StepActivation:
		return "ACTIVATION LOOP"
	case StepCapacityClass:
		return "CAPACITY CLASS"
	case StepBlockLength:
		return "BLOCK LENGTH"
	case StepIdentification:
		return "IDENTIFICATION"
	case StepCapacityRegister:
		return "CAPACITY REGISTER"
	case StepCRCEnable:
		return "CRC ENABLE"
	case StepSpeedUp:
		return "SPEED-UP"
	default:
		return fmt.Sprintf("Step(%d)", uint8(s))
	}
}

// bringUp holds the state of one bring-up attempt.
type bringUp struct {
	c     *conn
	bus   Bus
	index uint8
	trace Trace

	version  Version
	capacity Capacity
	cid      CID
	csd      CSD
}

// run executes the ten steps in order. On success b.c.t is the transport
// running at the fast clock.
func (b *bringUp) run() error {
	b.c.trace = &b.trace
	defer func() { b.c.trace = nil }()

	steps := []struct {
		step Step
		fn   func() error
	}{
		{StepReset, b.reset},
		{StepInterfaceCheck, b.interfaceCheck},
		{StepVoltageCheck, b.voltageCheck},
		{StepActivation, b.activate},
		{StepCapacityClass, b.capacityClass},
		{StepBlockLength, b.blockLength},
		{StepIdentification, b.identify},
		{StepCapacityRegister, b.capacityRegister},
		{StepCRCEnable, b.enableCRC},
		{StepSpeedUp, b.speedUp},
	}

	for _, s := range steps {
		if err := s.fn(); err != nil {
			return &InitError{Step: s.step, Err: err, Trace: b.trace}
		}
		glog.V(2).Infof("sdspi: bus %d: %s ok", b.index, s.step)
	}
	return nil
}

func (b *bringUp) reset() error {
	b.c.cs.set(false)
	if err := b.c.clocks(powerUpClocks); err != nil {
		return err
	}

	r1, err := b.c.command(GO_IDLE_STATE, 0)
	if err != nil {
		return err
	}
	if r1 != R1Idle {
		return &ResponseError{Cmd: GO_IDLE_STATE, R1: r1}
	}
	return nil
}

func (b *bringUp) interfaceCheck() error {
	resp, err := b.c.exchange(SEND_IF_COND, IfCondPattern, true, nil)
	if err != nil {
		return err
	}

	switch {
	case resp.R1 == R1Idle:
		if echo := resp.Register & IfCondMask; echo != IfCondPattern {
			return fmt.Errorf("%w: interface condition echo 0x%03X, want 0x%03X", ErrProtocol, echo, IfCondPattern)
		}
		b.version = V2
	case resp.R1.Has(R1IllegalCmd):
		b.version = V1
	default:
		return &ResponseError{Cmd: SEND_IF_COND, R1: resp.R1}
	}
	return nil
}

func (b *bringUp) voltageCheck() error {
	resp, err := b.c.exchange(READ_OCR, 0, true, nil)
	if err != nil {
		return err
	}

	switch {
	case resp.R1 == R1Idle:
		if resp.Register&OCRVoltageWindow == 0 {
			return fmt.Errorf("%w: OCR 0x%08X outside the 2.7-3.6V window", ErrProtocol, resp.Register)
		}
	case resp.R1.Has(R1IllegalCmd):
		// Some legacy cards do not implement READ_OCR while idle.
	default:
		return &ResponseError{Cmd: READ_OCR, R1: resp.R1}
	}
	return nil
}

func (b *bringUp) activate() error {
	var arg uint32
	if b.version == V2 {
		arg = ArgHighCapacity
	}

	rounds := 0
	err := Poll(b.c.cfg.ActivationRetries, func() (bool, error) {
		rounds++
		if _, err := b.c.command(APP_CMD, 0); err != nil {
			return false, err
		}
		r1, err := b.c.command(SD_SEND_OP_COND, arg)
		if err != nil {
			return false, err
		}
		return r1 == R1Ready, nil
	})
	if err != nil {
		return err
	}
	glog.V(2).Infof("sdspi: bus %d: card ready after %d activation rounds", b.index, rounds)
	return nil
}

func (b *bringUp) capacityClass() error {
	resp, err := b.c.exchange(READ_OCR, 0, true, nil)
	if err != nil {
		return err
	}
	if resp.R1.Failed() {
		return &ResponseError{Cmd: READ_OCR, R1: resp.R1}
	}

	b.capacity = CapacityStandard
	if resp.Register&OCRCapacity != 0 {
		b.capacity = CapacityHigh
	}
	return nil
}

func (b *bringUp) blockLength() error {
	if b.capacity == CapacityHigh {
		return nil
	}
	_, err := b.c.command(SET_BLOCKLEN, BlockSize)
	return err
}

func (b *bringUp) identify() error {
	var raw [RegisterSize]byte
	if err := b.c.readData(SEND_CID, 0, raw[:]); err != nil {
		return err
	}
	b.cid = ParseCID(raw[:])
	glog.V(1).Infof("sdspi: bus %d: %s", b.index, b.cid.Describe())
	return nil
}

func (b *bringUp) capacityRegister() error {
	var raw [RegisterSize]byte
	if err := b.c.readData(SEND_CSD, 0, raw[:]); err != nil {
		return err
	}
	csd, err := ParseCSD(raw[:])
	if err != nil {
		return err
	}
	if csd.Capacity == CapacityHigh {
		b.capacity = CapacityHigh
	}
	b.csd = csd
	glog.V(1).Infof("sdspi: bus %d: %s, %d sectors (%d bytes)", b.index, b.capacity, csd.SectorCount, csd.Bytes())
	return nil
}

func (b *bringUp) enableCRC() error {
	_, err := b.c.command(CRC_ON_OFF, ArgCRCOn)
	return err
}

func (b *bringUp) speedUp() error {
	if err := b.c.t.Close(); err != nil {
		glog.Warningf("sdspi: bus %d: release before speed-up: %v", b.index, err)
	}
	b.c.t = nil

	t, err := b.bus.Open(b.index, b.c.cfg.FastClock)
	if err != nil {
		return fmt.Errorf("%w: reopen at %d Hz: %w", ErrBusUnavailable, b.c.cfg.FastClock, err)
	}
	b.c.t = t
	return nil
}
