package sdspi

import (
	"errors"
	"testing"
)

func TestPoll(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		limit     int
		doneAt    int // call number reporting done, 0 = never
		failAt    int // call number returning boom, 0 = never
		wantCalls int
		wantErr   error
	}{
		{"Done on first call", 5, 1, 0, 1, nil},
		{"Done on last call", 5, 5, 0, 5, nil},
		{"Exhausted", 5, 0, 0, 5, ErrTimeout},
		{"Error stops early", 5, 0, 2, 2, boom},
		{"Zero limit", 0, 1, 0, 0, ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Poll(tt.limit, func() (bool, error) {
				calls++
				if calls == tt.failAt {
					return false, boom
				}
				return calls == tt.doneAt, nil
			})

			if calls != tt.wantCalls {
				t.Errorf("Poll() made %d calls; want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("Poll() unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Poll() error = %v; want %v", err, tt.wantErr)
			}
		})
	}
}
