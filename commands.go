package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gregLibert/sd-card/internal/config"
	"github.com/gregLibert/sd-card/pkg/sdspi"
)

// withCard opens a session for the duration of fn.
func withCard(cfg *config.Config, fn func(*sdspi.Card) error) (err error) {
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s.card)
}

func newInfoCmd(cfg *config.Config) *cobra.Command {
	var trace bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Bring the card up and print its registers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCard(cfg, func(card *sdspi.Card) error {
				out := cmd.OutOrStdout()
				fmt.Fprint(out, card.Describe())
				if trace {
					fmt.Fprintf(out, "\nBring-up (%d commands):\n%s", len(card.Trace()), card.Trace().Describe())
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "print every bring-up command and response")
	return cmd
}

func newReadCmd(cfg *config.Config) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "read SECTOR [COUNT]",
		Short: "Read sectors as a hex dump, or raw when redirected",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sector, err := parseSector(args[0])
			if err != nil {
				return err
			}
			count := uint32(1)
			if len(args) == 2 {
				if count, err = parseSector(args[1]); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			dump := out == "" && isTerminal(w)
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			return withCard(cfg, func(card *sdspi.Card) error {
				return readSectors(card, w, sector, count, dump)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write raw sectors to this file")
	return cmd
}

// isTerminal reports whether w is an interactive terminal. Sectors are
// dumped as hex there and written raw to pipes and files. Writers that are
// not files (tests, buffers) get the dump.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return true
	}
	return term.IsTerminal(int(f.Fd()))
}

func readSectors(card *sdspi.Card, w io.Writer, sector, count uint32, dump bool) error {
	buf := make([]byte, sdspi.BlockSize)
	for i := uint32(0); i < count; i++ {
		if _, err := card.ReadSector(sector+i, buf); err != nil {
			return err
		}
		if !dump {
			if _, err := w.Write(buf); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(w, "sector %d\n%s", sector+i, hex.Dump(buf))
	}
	return nil
}

func newWriteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "write SECTOR FILE",
		Short: "Write a file to consecutive sectors, zero padding the last one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sector, err := parseSector(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			return withCard(cfg, func(card *sdspi.Card) error {
				n, err := writeSectors(card, sector, data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %d sector(s) from %d\n", len(data), n, sector)
				return nil
			})
		},
	}
}

// writeSectors writes data from sector on and returns the sectors written.
func writeSectors(card *sdspi.Card, sector uint32, data []byte) (uint32, error) {
	var n uint32
	for len(data) > 0 {
		chunk := data[:min(len(data), sdspi.BlockSize)]
		if _, err := card.WriteSector(sector+n, chunk); err != nil {
			return n, err
		}
		glog.V(2).Infof("sector %d: %d bytes", sector+n, len(chunk))
		data = data[len(chunk):]
		n++
	}
	return n, nil
}

func parseSector(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid sector %q: %w", s, err)
	}
	return uint32(v), nil
}
