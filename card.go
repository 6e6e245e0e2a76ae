package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang/glog"

	"github.com/gregLibert/sd-card/internal/config"
	"github.com/gregLibert/sd-card/pkg/sdsim"
	"github.com/gregLibert/sd-card/pkg/sdspi"
	"github.com/gregLibert/sd-card/pkg/spidev"
)

// session is an open card and everything that must be released with it.
type session struct {
	card    *sdspi.Card
	cleanup []func() error
}

func (s *session) Close() error {
	var errs []error
	if err := s.card.Close(); err != nil {
		errs = append(errs, err)
	}
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		if err := s.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openSession brings up the card described by cfg.
func openSession(cfg *config.Config) (*session, error) {
	if cfg.Device != "" {
		return openDevice(cfg)
	}
	return openImage(cfg)
}

func openImage(cfg *config.Config) (*session, error) {
	kind, err := sdsim.ParseKind(cfg.Kind)
	if err != nil {
		return nil, err
	}

	img, err := sdsim.OpenImage(cfg.Image)
	if errors.Is(err, fs.ErrNotExist) {
		glog.Infof("creating %s, %d sectors", cfg.Image, cfg.Sectors)
		img, err = sdsim.CreateImage(cfg.Image, cfg.Sectors)
	}
	if err != nil {
		return nil, err
	}

	sim, err := sdsim.New(kind, img)
	if err != nil {
		img.Close()
		return nil, err
	}

	card, err := sdspi.NewRegistry(sim, cfg.Driver()).Open(0, sim.Select)
	if err != nil {
		img.Close()
		return nil, err
	}
	glog.V(1).Infof("simulated %s card on %s", kind, cfg.Image)
	return &session{card: card, cleanup: []func() error{img.Close}}, nil
}

func openDevice(cfg *config.Config) (*session, error) {
	bus := spidev.Bus{Device: cfg.Device, Mode: spidev.Mode0}
	s := &session{}

	var cs sdspi.ChipSelect
	if cfg.CSGPIO != config.NoGPIO {
		gpio, err := spidev.OpenGPIO(cfg.CSGPIO)
		if err != nil {
			return nil, err
		}
		bus.Mode |= spidev.ModeNoCS
		cs = gpio.ChipSelect()
		s.cleanup = append(s.cleanup, gpio.Close)
	}

	card, err := sdspi.NewRegistry(bus, cfg.Driver()).Open(0, cs)
	if err != nil {
		for _, c := range s.cleanup {
			c()
		}
		return nil, fmt.Errorf("%s: %w", cfg.Device, err)
	}
	s.card = card
	return s, nil
}
