package sdspi

import (
	"fmt"
	"strings"
)

// TRANSACTION:
// A Transaction is one selected exchange on the bus: a command frame sent by
// the host, the response decoded from the card and, when a data block
// followed, the outcome of that block.
//
// TRACE:
// A Trace is the chronological list of Transactions of a logical operation.
// Bring-up is the main producer: a single Open may issue dozens of commands
// (the activation loop alone polls until the card leaves the idle state), and
// when it fails the Trace shows exactly where the card stopped cooperating.

// Transaction represents a completed command exchange.
type Transaction struct {
	Frame    Frame
	Response Response
	Err      error
}

// IsSuccess reports whether the exchange completed and the card reported no error.
func (t *Transaction) IsSuccess() bool {
	return t.Err == nil && t.Response.R1.Valid() && !t.Response.R1.Failed()
}

// Trace is a sequence of transactions.
type Trace []Transaction

// Last returns the final transaction of the trace.
// Returns nil if the trace is empty.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess checks if the FINAL transaction in the trace was successful.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	if last == nil {
		return false
	}
	return last.IsSuccess()
}

// Count returns the number of transactions that carried cmd.
func (t Trace) Count(cmd Command) int {
	n := 0
	for i := range t {
		if t[i].Frame.Command() == cmd {
			n++
		}
	}
	return n
}

// Describe returns one line per transaction.
func (t Trace) Describe() string {
	var sb strings.Builder
	for i, tx := range t {
		fmt.Fprintf(&sb, "%3d  %-40s %s", i, tx.Frame, tx.Response)
		if tx.Err != nil {
			fmt.Fprintf(&sb, "  error: %v", tx.Err)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
