package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/spf13/cobra"

	"github.com/gregLibert/sd-card/internal/config"
	"github.com/gregLibert/sd-card/pkg/diskio"
	"github.com/gregLibert/sd-card/pkg/sdspi"
)

const (
	consoleKey     = "$console"
	closedPrompt   = "[no card] > "
	openPromptForm = "[%s %d MiB] > "
)

var errNotOpen = errors.New("no card open, use \"open\"")

// console is the state shared by shell commands.
type console struct {
	cfg  *config.Config
	sess *session
	disk *diskio.Disk

	shell *ishell.Shell
}

func newConsole(cfg *config.Config) *console {
	c := &console{cfg: cfg, shell: ishell.New()}
	c.shell.Set(consoleKey, c)
	c.shell.SetPrompt(closedPrompt)
	for _, cmd := range consoleCmds {
		c.shell.AddCmd(cmd)
	}
	return c
}

func consoleFrom(c *ishell.Context) *console {
	return c.Get(consoleKey).(*console)
}

func (c *console) open() error {
	if c.sess != nil {
		return nil
	}
	s, err := openSession(c.cfg)
	if err != nil {
		return err
	}
	c.sess = s
	c.disk = diskio.New(s.card)
	c.shell.SetPrompt(fmt.Sprintf(openPromptForm, s.card.Capacity(), s.card.Sectors()*sdspi.BlockSize>>20))
	return nil
}

func (c *console) close() error {
	if c.sess == nil {
		return nil
	}
	err := c.sess.Close()
	c.sess, c.disk = nil, nil
	c.shell.SetPrompt(closedPrompt)
	return err
}

// mustBeOpen wraps commands that need a card.
func mustBeOpen(fn func(c *ishell.Context, con *console)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		con := consoleFrom(c)
		if con.sess == nil {
			c.Err(errNotOpen)
			return
		}
		fn(c, con)
	}
}

func parseArgs(c *ishell.Context, want int, usage string) bool {
	if len(c.Args) < want {
		c.Err(fmt.Errorf("usage: %s", usage))
		return false
	}
	return true
}

var consoleCmds = []*ishell.Cmd{
	{
		Name: "open",
		Help: "bring the card up",
		Func: func(c *ishell.Context) {
			con := consoleFrom(c)
			if err := con.open(); err != nil {
				c.Err(err)
				return
			}
			c.Println(con.sess.card.Describe())
		},
	},
	{
		Name: "close",
		Help: "release the card",
		Func: func(c *ishell.Context) {
			if err := consoleFrom(c).close(); err != nil {
				c.Err(err)
			}
		},
	},
	{
		Name:    "info",
		Aliases: []string{"i"},
		Help:    "print card registers",
		Func: mustBeOpen(func(c *ishell.Context, con *console) {
			c.Print(con.sess.card.Describe())
		}),
	},
	{
		Name: "trace",
		Help: "print the bring-up command trace",
		Func: mustBeOpen(func(c *ishell.Context, con *console) {
			c.Print(con.sess.card.Trace().Describe())
		}),
	},
	{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "SECTOR [COUNT]",
		Func: mustBeOpen(func(c *ishell.Context, con *console) {
			if !parseArgs(c, 1, "read SECTOR [COUNT]") {
				return
			}
			sector, err := parseSector(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			count := uint32(1)
			if len(c.Args) > 1 {
				if count, err = parseSector(c.Args[1]); err != nil {
					c.Err(err)
					return
				}
			}
			var sb strings.Builder
			err = readSectors(con.sess.card, &sb, sector, count, true)
			c.Print(sb.String())
			if err != nil {
				c.Err(err)
			}
			// Sector reads bypass the cache.
			con.disk.Invalidate()
		}),
	},
	{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "SECTOR TEXT... (zero padded)",
		Func: mustBeOpen(func(c *ishell.Context, con *console) {
			if !parseArgs(c, 2, "write SECTOR TEXT...") {
				return
			}
			sector, err := parseSector(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			n, err := writeSectors(con.sess.card, sector, []byte(strings.Join(c.Args[1:], " ")))
			con.disk.Invalidate()
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%d sector(s) written\n", n)
		}),
	},
	{
		Name: "peek",
		Help: "OFFSET LENGTH (byte addressed, cached)",
		Func: mustBeOpen(func(c *ishell.Context, con *console) {
			if !parseArgs(c, 2, "peek OFFSET LENGTH") {
				return
			}
			off, err := strconv.ParseInt(c.Args[0], 0, 64)
			if err != nil {
				c.Err(err)
				return
			}
			length, err := strconv.ParseUint(c.Args[1], 0, 16)
			if err != nil {
				c.Err(err)
				return
			}
			buf := make([]byte, length)
			n, err := con.disk.ReadAt(buf, off)
			c.Print(hex.Dump(buf[:n]))
			if err != nil {
				c.Err(err)
			}
		}),
	},
	{
		Name: "poke",
		Help: "OFFSET HEXBYTES (read-modify-write)",
		Func: mustBeOpen(func(c *ishell.Context, con *console) {
			if !parseArgs(c, 2, "poke OFFSET HEXBYTES") {
				return
			}
			off, err := strconv.ParseInt(c.Args[0], 0, 64)
			if err != nil {
				c.Err(err)
				return
			}
			data, err := hex.DecodeString(strings.Join(c.Args[1:], ""))
			if err != nil {
				c.Err(err)
				return
			}
			if _, err := con.disk.WriteAt(data, off); err != nil {
				c.Err(err)
				return
			}
			c.Printf("%d byte(s) written at %d\n", len(data), off)
		}),
	},
	{
		Name: "stats",
		Help: "print sector cache hits and misses",
		Func: mustBeOpen(func(c *ishell.Context, con *console) {
			hits, misses := con.disk.Stats()
			c.Printf("hits %d, misses %d\n", hits, misses)
		}),
	},
}

func newShellCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "shell [COMMAND ARGS...]",
		Short: "Interactive console; with arguments, run one console command",
		RunE: func(_ *cobra.Command, args []string) error {
			con := newConsole(cfg)
			defer con.close()

			if err := con.open(); err != nil {
				return err
			}
			if len(args) > 0 {
				return con.shell.Process(args...)
			}
			con.shell.Printf("%s card, %d sectors. Type help for commands.\n",
				con.sess.card.Capacity(), con.sess.card.Sectors())
			con.shell.Run()
			return nil
		},
	}
}
