package sdsim

import (
	"github.com/golang/glog"

	"github.com/gregLibert/sd-card/pkg/crc"
	"github.com/gregLibert/sd-card/pkg/sdspi"
)

// clockByte exchanges one byte: in is what the host drives, the result is
// what the card drives during the same eight clocks.
func (c *Card) clockByte(in byte) byte {
	if !c.selected {
		if in != 0xFF {
			c.stray++
		}
		return 0xFF
	}

	out := byte(0xFF)
	if len(c.out) > 0 {
		out = c.out[0]
		c.out = c.out[1:]
	}

	switch c.mode {
	case modeCommand:
		if len(c.in) == 0 && in&0xC0 != 0x40 {
			break
		}
		c.in = append(c.in, in)
		if len(c.in) == sdspi.FrameSize {
			var f sdspi.Frame
			copy(f[:], c.in)
			c.in = c.in[:0]
			c.command(f)
		}
	case modeWriteToken:
		if in == sdspi.StartToken {
			c.writeBuf = c.writeBuf[:0]
			c.mode = modeWriteData
		}
	case modeWriteData:
		c.writeBuf = append(c.writeBuf, in)
		if len(c.writeBuf) == sdspi.BlockSize+2 {
			c.mode = modeCommand
			c.finishWrite()
		}
	}
	return out
}

// status returns the R1 base of the current state.
func (c *Card) status() sdspi.R1 {
	if c.idle {
		return sdspi.R1Idle
	}
	return sdspi.R1Ready
}

func (c *Card) respond(r1 sdspi.R1, extra ...byte) {
	for i := 0; i < c.opts.responseDelay; i++ {
		c.out = append(c.out, 0xFF)
	}
	c.out = append(c.out, byte(r1))
	c.out = append(c.out, extra...)
}

func (c *Card) respondRegister(r1 sdspi.R1, reg uint32) {
	c.respond(r1, byte(reg>>24), byte(reg>>16), byte(reg>>8), byte(reg))
}

// queueBlock appends a data packet after a short access delay.
func (c *Card) queueBlock(payload []byte, corrupt bool) {
	sum := crc.CRC16(payload)
	if corrupt {
		sum ^= 0x0100
	}
	c.out = append(c.out, 0xFF, 0xFF, sdspi.StartToken)
	c.out = append(c.out, payload...)
	c.out = append(c.out, byte(sum>>8), byte(sum))
}

func (c *Card) command(f sdspi.Frame) {
	c.log = append(c.log, f)
	cmd := f.Command()
	arg := f.Arg()

	// A card that has not seen GO_IDLE_STATE is still in SD bus mode.
	if !c.spi && cmd != sdspi.GO_IDLE_STATE {
		return
	}

	if (c.crcOn || cmd == sdspi.GO_IDLE_STATE || cmd == sdspi.SEND_IF_COND) && !f.Valid() {
		glog.V(2).Infof("sdsim: bad CRC on %s", f)
		c.appCmd = false
		c.respond(c.status() | sdspi.R1CRCError)
		return
	}

	app := c.appCmd
	c.appCmd = false

	switch {
	case cmd == sdspi.GO_IDLE_STATE:
		c.spi = true
		c.idle = true
		c.crcOn = false
		c.polls = 0
		c.respond(sdspi.R1Idle)

	case cmd == sdspi.SEND_IF_COND:
		if c.kind == KindV1 {
			c.illegal()
			return
		}
		echo := arg & 0xFFF
		if c.opts.badEcho {
			echo ^= 0x0FF
		}
		c.respondRegister(c.status(), echo)

	case cmd == sdspi.READ_OCR:
		if c.idle && c.opts.idleOCRIllegal {
			c.illegal()
			return
		}
		ocr := uint32(ocrVoltages)
		if c.opts.noVoltage {
			ocr = 0
		}
		if !c.idle {
			ocr |= sdspi.OCRPowerUp
			if c.kind == KindSDHC {
				ocr |= sdspi.OCRCapacity
			}
		}
		c.respondRegister(c.status(), ocr)

	case cmd == sdspi.APP_CMD:
		c.appCmd = true
		c.respond(c.status())

	case cmd == sdspi.SD_SEND_OP_COND && app:
		c.activate(arg)
		c.respond(c.status())

	case cmd == sdspi.SET_BLOCKLEN:
		if arg != sdspi.BlockSize {
			c.respond(c.status() | sdspi.R1ParamError)
			return
		}
		c.respond(c.status())

	case cmd == sdspi.CRC_ON_OFF:
		c.crcOn = arg&1 == 1
		c.respond(c.status())

	case cmd == sdspi.SEND_CSD && !c.idle:
		c.respond(sdspi.R1Ready)
		c.queueBlock(c.csd, false)

	case cmd == sdspi.SEND_CID && !c.idle:
		c.respond(sdspi.R1Ready)
		c.queueBlock(c.cid, false)

	case cmd == sdspi.READ_SINGLE_BLOCK && !c.idle:
		off, ok := c.offset(arg)
		if !ok {
			c.respond(sdspi.R1AddressError)
			return
		}
		c.respond(sdspi.R1Ready)
		if c.opts.readErrorToken {
			c.out = append(c.out, 0xFF, 0x08)
			return
		}
		block := make([]byte, sdspi.BlockSize)
		if _, err := c.store.ReadAt(block, off); err != nil {
			glog.Errorf("sdsim: read at %d: %v", off, err)
			c.out = append(c.out, 0xFF, 0x02)
			return
		}
		c.queueBlock(block, c.opts.corruptReads)

	case cmd == sdspi.WRITE_BLOCK && !c.idle:
		off, ok := c.offset(arg)
		if !ok {
			c.respond(sdspi.R1AddressError)
			return
		}
		c.writeOff = off
		c.mode = modeWriteToken
		c.respond(sdspi.R1Ready)

	default:
		c.illegal()
	}
}

func (c *Card) illegal() {
	c.respond(c.status() | sdspi.R1IllegalCmd)
}

// activate handles SD_SEND_OP_COND.
func (c *Card) activate(arg uint32) {
	if !c.idle || c.opts.neverReady {
		return
	}
	// A high capacity card cannot start for a host without HCS.
	if c.kind == KindSDHC && arg&sdspi.ArgHighCapacity == 0 {
		return
	}
	c.polls++
	if c.polls >= c.opts.activationPolls {
		c.idle = false
	}
}

// offset converts a block command argument to a byte offset in the store.
func (c *Card) offset(arg uint32) (int64, bool) {
	var sector uint64
	if c.kind == KindSDHC {
		sector = uint64(arg)
	} else {
		if arg%sdspi.BlockSize != 0 {
			return 0, false
		}
		sector = uint64(arg) / sdspi.BlockSize
	}
	if sector >= c.sectors {
		return 0, false
	}
	return int64(sector) * sdspi.BlockSize, true
}

func (c *Card) finishWrite() {
	payload := c.writeBuf[:sdspi.BlockSize]
	got := uint16(c.writeBuf[sdspi.BlockSize])<<8 | uint16(c.writeBuf[sdspi.BlockSize+1])

	token := byte(0xE0 | byte(sdspi.DataAccepted))
	switch {
	case c.crcOn && got != crc.CRC16(payload):
		token = 0xE0 | byte(sdspi.DataCRCRejected)
	case c.opts.rejectWrites:
		token = 0xE0 | byte(sdspi.DataWriteError)
	default:
		if _, err := c.store.WriteAt(payload, c.writeOff); err != nil {
			glog.Errorf("sdsim: write at %d: %v", c.writeOff, err)
			token = 0xE0 | byte(sdspi.DataWriteError)
		}
	}

	c.out = append(c.out, token)
	for i := 0; i < c.opts.busyBytes; i++ {
		c.out = append(c.out, 0x00)
	}
}
