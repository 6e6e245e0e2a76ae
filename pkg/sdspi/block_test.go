package sdspi

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gregLibert/sd-card/pkg/crc"
)

// packet frames payload the way a card sends it after a read command.
func packet(payload []byte, gap int) []byte {
	out := bytes.Repeat([]byte{0xFF}, gap)
	out = append(out, StartToken)
	out = append(out, payload...)
	sum := crc.CRC16(payload)
	return append(out, byte(sum>>8), byte(sum))
}

func TestReceiveBlock(t *testing.T) {
	payload := make([]byte, BlockSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	dst := make([]byte, BlockSize)
	if err := testConn(newScripted(packet(payload, 3)...)).receiveBlock(dst); err != nil {
		t.Fatalf("receiveBlock() error: %v", err)
	}
	if !bytes.Equal(dst, payload) {
		t.Error("receiveBlock() payload mismatch")
	}
}

func TestReceiveBlock_Failures(t *testing.T) {
	payload := bytes.Repeat([]byte{0xA5}, RegisterSize)

	corrupted := packet(payload, 1)
	corrupted[5] ^= 0x80

	tests := []struct {
		name    string
		replies []byte
		wantErr error
	}{
		{"CRC mismatch", corrupted, ErrCRC},
		{"Data error token", []byte{0xFF, 0x08}, ErrProtocol},
		{"No start token", nil, ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := bytes.Repeat([]byte{0x11}, RegisterSize)
			err := testConn(newScripted(tt.replies...)).receiveBlock(dst)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("receiveBlock() error = %v; want %v", err, tt.wantErr)
			}
			if !bytes.Equal(dst, bytes.Repeat([]byte{0x11}, RegisterSize)) {
				t.Errorf("receiveBlock() wrote into dst on failure: % X", dst)
			}
		})
	}
}

func TestSendBlock(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5A}, BlockSize)

	tests := []struct {
		name    string
		replies []byte
		wantErr error
	}{
		{"Accepted with busy", []byte{0xFF, 0xE5, 0x00, 0x00, 0x00, 0xFF}, nil},
		{"Accepted no busy", []byte{0x05, 0xFF}, nil},
		{"CRC rejected", []byte{0x0B, 0xFF}, ErrWriteRejected},
		{"Write error", []byte{0x0D, 0x00, 0xFF}, ErrWriteRejected},
		{"No data response", nil, ErrTimeout},
		{"Stuck busy", append([]byte{0x05}, make([]byte, 32)...), ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newScripted(tt.replies...)
			err := testConn(tr).sendBlock(payload)

			if tt.wantErr == nil && err != nil {
				t.Fatalf("sendBlock() error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("sendBlock() error = %v; want %v", err, tt.wantErr)
			}

			sum := crc.CRC16(payload)
			want := append([]byte{StartToken}, payload...)
			want = append(want, byte(sum>>8), byte(sum))
			if !bytes.Equal(tr.sent, want) {
				t.Errorf("sendBlock() sent %d bytes, want token + payload + CRC", len(tr.sent))
			}
		})
	}
}

func TestDataResponse(t *testing.T) {
	tests := []struct {
		token    DataResponse
		accepted bool
		str      string
	}{
		{0x05, true, "accepted"},
		{0xE5, true, "accepted"},
		{0x0B, false, "rejected: crc error"},
		{0x0D, false, "rejected: write error"},
		{0x07, false, "invalid data response 0x07"},
	}

	for _, tt := range tests {
		if got := tt.token.Accepted(); got != tt.accepted {
			t.Errorf("DataResponse(0x%02X).Accepted() = %v; want %v", byte(tt.token), got, tt.accepted)
		}
		if got := tt.token.String(); got != tt.str {
			t.Errorf("DataResponse(0x%02X).String() = %q; want %q", byte(tt.token), got, tt.str)
		}
	}
}
