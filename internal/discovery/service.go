// Package discovery makes the control server discoverable on the local
// network by publishing an mDNS service record.
package discovery

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/mdns"
)

const serviceType = "_podradio._tcp"

// Config describes the advertised service record.
type Config struct {
	ServiceName string
	Description string
	Port        int
}

// publisher is the seam for tests; production uses hashicorp/mdns.
type publisher interface {
	Shutdown() error
}

var newPublisher = func(cfg Config) (publisher, error) {
	service, err := mdns.NewMDNSService(
		cfg.ServiceName,
		serviceType,
		"",
		"",
		cfg.Port,
		nil,
		[]string{cfg.Description},
	)
	if err != nil {
		return nil, err
	}
	return mdns.NewServer(&mdns.Config{Zone: service})
}

// MDNSAdvertiser registers one service record at a time. Advertise and
// Withdraw are paired; withdrawing without an active record is a no-op.
type MDNSAdvertiser struct {
	mu     sync.Mutex
	server publisher
}

func NewMDNSAdvertiser() *MDNSAdvertiser {
	return &MDNSAdvertiser{}
}

func (a *MDNSAdvertiser) Advertise(cfg Config) error {
	if strings.TrimSpace(cfg.ServiceName) == "" {
		return errors.New("service name must not be empty")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid advertisement port %d", cfg.Port)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return errors.New("service is already advertised")
	}

	server, err := newPublisher(cfg)
	if err != nil {
		return fmt.Errorf("register mdns service: %w", err)
	}
	a.server = server
	return nil
}

func (a *MDNSAdvertiser) Withdraw() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		_ = a.server.Shutdown()
		a.server = nil
	}
}
