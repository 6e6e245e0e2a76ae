/*
Package sdspi drives SD memory cards in SPI mode, one 512-byte sector at a time.

The card speaks a simple synchronous protocol over a full-duplex serial bus:
 1. The Host selects the card (chip select low) and clocks out a 6-byte command frame.
 2. The Card answers with an R1 status byte, optionally followed by a 32-bit register (R3/R7)
    or by a data block framed with a start token and a CRC16.
 3. The Host clocks eight more bytes of 0xFF and deselects the card.

# Bring-up

A card must be brought from power-up into data transfer mode before any sector access.
The sequence is strictly ordered, each step gated on the success of the previous one:

	RESET -> INTERFACE CHECK -> VOLTAGE CHECK -> ACTIVATION LOOP -> CAPACITY CLASS ->
	BLOCK LENGTH -> IDENTIFICATION -> CAPACITY REGISTER -> CRC ENABLE -> SPEED-UP

The outcome is a Card carrying the capacity class, the total sector count and the
identification register. Every command exchanged during bring-up is recorded in a Trace.

# Addressing

Standard capacity cards (SDSC) are byte addressed: sector N lives at address N*512.
High capacity cards (SDHC/SDXC) are block addressed: sector N lives at address N.
Card.ReadSector and Card.WriteSector hide the difference.

# Usage Example

	reg := sdspi.NewRegistry(bus, sdspi.DefaultConfig())
	card, err := reg.Open(0, chipSelect)
	if err != nil {
	    log.Fatal(err)
	}
	defer card.Close()

	buf := make([]byte, sdspi.BlockSize)
	if _, err := card.ReadSector(0, buf); err != nil {
	    log.Fatal(err)
	}

A Registry and the cards it hands out are not safe for concurrent use.
*/
package sdspi
