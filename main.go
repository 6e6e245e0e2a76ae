// Command sd-card brings up an SD card over SPI and reads or writes its
// sectors. The card is either a real one behind a Linux spidev device or a
// simulated one serving a disk image.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/gregLibert/sd-card/internal/config"
)

func main() {
	cfg := config.Load()
	root := newRootCmd(cfg)

	err := root.Execute()
	glog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "sd-card",
		Short:         "SD card over SPI: bring-up, sector read and write",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// glog registers its flags on the standard set; cobra parsed them.
			if err := flag.CommandLine.Parse(nil); err != nil {
				return err
			}
			return cfg.Validate()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.Image, "image", cfg.Image, "disk image served by a simulated card (created if missing)")
	pf.StringVar(&cfg.Kind, "kind", cfg.Kind, "simulated card kind: sdhc|sdsc|v1")
	pf.Uint64Var(&cfg.Sectors, "sectors", cfg.Sectors, "size of a newly created image, in sectors")
	pf.StringVar(&cfg.Device, "device", cfg.Device, "spidev device of a real card (e.g. /dev/spidev0.0)")
	pf.IntVar(&cfg.CSGPIO, "cs-gpio", cfg.CSGPIO, "GPIO driving chip select, -1 for the kernel chip select")
	pf.Uint32Var(&cfg.SlowHz, "slow-hz", cfg.SlowHz, "bring-up clock rate")
	pf.Uint32Var(&cfg.FastHz, "fast-hz", cfg.FastHz, "transfer clock rate")
	pf.IntVar(&cfg.Retries, "retries", cfg.Retries, "polling budget for responses, tokens and activation")
	pf.IntVar(&cfg.OpenAttempts, "attempts", cfg.OpenAttempts, "bring-up attempts before giving up")
	pf.AddGoFlagSet(flag.CommandLine)

	root.AddCommand(
		newInfoCmd(cfg),
		newReadCmd(cfg),
		newWriteCmd(cfg),
		newShellCmd(cfg),
	)
	return root
}
