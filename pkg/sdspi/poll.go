package sdspi

import "fmt"

// Poll calls fn until it reports done, returns an error, or has been called
// limit times. Exhaustion returns an error wrapping ErrTimeout.
func Poll(limit int, fn func() (bool, error)) error {
	for i := 0; i < limit; i++ {
		done, err := fn()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrTimeout, limit)
}
