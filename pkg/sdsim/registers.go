package sdsim

import (
	"github.com/gregLibert/sd-card/pkg/bits"
	"github.com/gregLibert/sd-card/pkg/crc"
	"github.com/gregLibert/sd-card/pkg/sdspi"
)

const ocrVoltages = sdspi.OCRVoltageWindow

// legacyGeometry finds C_SIZE, C_SIZE_MULT and READ_BL_LEN describing at most
// sectors sectors. The returned count is the capacity the CSD advertises.
func legacyGeometry(sectors uint64) (cSize, mult, blLen uint32, advertised uint64) {
	for blLen = 9; blLen <= 11; blLen++ {
		for mult = 0; mult <= 7; mult++ {
			shift := uint64(mult + 2 + blLen - 9)
			units := sectors >> shift
			if units == 0 {
				return 0, 0, 9, 0
			}
			if units <= 4096 {
				return uint32(units - 1), mult, blLen, units << shift
			}
		}
	}
	// Clamp to the largest legacy card.
	return 4095, 7, 11, 4096 << 11
}

func sealRegister(reg []byte) {
	reg[15] = crc.CommandCRC(reg[:15])
}

// legacyCSD builds a structure 0 CSD.
func legacyCSD(cSize, mult, blLen uint32) []byte {
	reg := make([]byte, sdspi.RegisterSize)
	bits.SetField(reg, 127, 126, 0)
	bits.SetField(reg, 119, 112, 0x26) // TAAC
	bits.SetField(reg, 103, 96, 0x32)  // TRAN_SPEED 25 MHz
	bits.SetField(reg, 95, 84, 0x5B5)  // CCC
	bits.SetField(reg, 83, 80, blLen)
	bits.SetField(reg, 73, 62, cSize)
	bits.SetField(reg, 49, 47, mult)
	bits.SetField(reg, 25, 22, blLen) // WRITE_BL_LEN
	sealRegister(reg)
	return reg
}

// modernCSD builds a structure 1 CSD for sectors, which must be a multiple
// of 1024.
func modernCSD(sectors uint64) []byte {
	reg := make([]byte, sdspi.RegisterSize)
	bits.SetField(reg, 127, 126, 1)
	bits.SetField(reg, 119, 112, 0x0E)
	bits.SetField(reg, 103, 96, 0x32)
	bits.SetField(reg, 95, 84, 0x5B5)
	bits.SetField(reg, 83, 80, 9)
	bits.SetField(reg, 69, 48, uint32(sectors/1024-1))
	bits.SetField(reg, 25, 22, 9)
	sealRegister(reg)
	return reg
}

// simCID is the identification of every simulated card.
func simCID() []byte {
	reg := make([]byte, sdspi.RegisterSize)
	reg[0] = 0x1B
	copy(reg[1:3], "SM")
	copy(reg[3:8], "SIMSD")
	reg[8] = 0x10
	bits.SetField(reg, 55, 24, 0xC0FFEE01)
	bits.SetField(reg, 19, 12, 24)
	bits.SetField(reg, 11, 8, 3)
	sealRegister(reg)
	return reg
}
