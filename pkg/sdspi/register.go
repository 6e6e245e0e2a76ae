package sdspi

import (
	"fmt"
	"strings"

	"github.com/gregLibert/sd-card/pkg/bits"
)

// Capacity is the addressing class of a card.
type Capacity uint8

const (
	// CapacityStandard cards (SDSC) take byte addresses.
	CapacityStandard Capacity = iota
	// CapacityHigh cards (SDHC, SDXC) take sector addresses.
	CapacityHigh
)

func (c Capacity) String() string {
	switch c {
	case CapacityStandard:
		return "SDSC"
	case CapacityHigh:
		return "SDHC/SDXC"
	default:
		return fmt.Sprintf("Capacity(%d)", uint8(c))
	}
}

// Version is the physical layer generation negotiated by SEND_IF_COND.
type Version uint8

const (
	// V1 cards reject SEND_IF_COND as an illegal command.
	V1 Version = iota + 1
	// V2 cards echo the SEND_IF_COND check pattern.
	V2
)

func (v Version) String() string {
	switch v {
	case V1:
		return "SD 1.x"
	case V2:
		return "SD 2.0+"
	default:
		return fmt.Sprintf("Version(%d)", uint8(v))
	}
}

// RegisterSize is the length of the CSD and CID registers.
const RegisterSize = 16

// CSD LAYOUT:
// The Card Specific Data register exists in two layouts selected by
// CSD_STRUCTURE [127:126].
//
// Structure 0 (standard capacity):
//   READ_BL_LEN [83:80], C_SIZE [73:62], C_SIZE_MULT [49:47]
//   capacity = (C_SIZE+1) * 2^(C_SIZE_MULT+2) * 2^READ_BL_LEN bytes
//
// Structure 1 (high and extended capacity):
//   C_SIZE [69:48]
//   capacity = (C_SIZE+1) * 512 KiB

// CSD is the decoded Card Specific Data register.
type CSD struct {
	Structure   uint8
	SectorCount uint64
	Capacity    Capacity
	Raw         [RegisterSize]byte
}

// ParseCSD decodes a 16-byte CSD.
func ParseCSD(raw []byte) (CSD, error) {
	if len(raw) != RegisterSize {
		return CSD{}, fmt.Errorf("%w: CSD of %d bytes", ErrProtocol, len(raw))
	}

	var csd CSD
	copy(csd.Raw[:], raw)
	csd.Structure = uint8(bits.Field(raw, 127, 126))

	switch csd.Structure {
	case 0:
		readBlLen := bits.Field(raw, 83, 80)
		cSize := uint64(bits.Field(raw, 73, 62))
		mult := bits.Field(raw, 49, 47)
		bytes := (cSize + 1) << (mult + 2) << readBlLen
		csd.SectorCount = bytes >> 9
		csd.Capacity = CapacityStandard
	case 1:
		cSize := uint64(bits.Field(raw, 69, 48))
		csd.SectorCount = (cSize + 1) * 1024
		csd.Capacity = CapacityHigh
	default:
		return CSD{}, fmt.Errorf("%w: unsupported CSD structure %d", ErrProtocol, csd.Structure)
	}
	return csd, nil
}

// Bytes returns the card capacity in bytes.
func (c CSD) Bytes() uint64 {
	return c.SectorCount * BlockSize
}

// CID is the decoded Card Identification register. It is informational only.
type CID struct {
	ManufacturerID uint8
	OEMID          string
	ProductName    string
	RevisionMajor  uint8
	RevisionMinor  uint8
	Serial         uint32
	Year           int
	Month          int
	Raw            [RegisterSize]byte
}

// ParseCID decodes a CID. A short register decodes as if zero padded.
func ParseCID(raw []byte) CID {
	var cid CID
	copy(cid.Raw[:], raw)
	r := cid.Raw[:]

	cid.ManufacturerID = uint8(bits.Field(r, 127, 120))
	cid.OEMID = printable(r[1:3])
	cid.ProductName = printable(r[3:8])
	cid.RevisionMajor = uint8(bits.Field(r, 63, 60))
	cid.RevisionMinor = uint8(bits.Field(r, 59, 56))
	cid.Serial = bits.Field(r, 55, 24)
	cid.Year = 2000 + int(bits.Field(r, 19, 12))
	cid.Month = int(bits.Field(r, 11, 8))
	return cid
}

func printable(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			c = '.'
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// Describe returns a one-line human-readable identification.
func (c CID) Describe() string {
	return fmt.Sprintf("MID:%02X OID:%s PNM:%s PRV:%d.%d PSN:%08X MDT:%04d/%02d",
		c.ManufacturerID, c.OEMID, c.ProductName,
		c.RevisionMajor, c.RevisionMinor, c.Serial, c.Year, c.Month)
}
