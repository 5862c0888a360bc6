// Package discovery advertises the gateway on the local network.
package discovery

import (
	"fmt"
	"log/slog"
	"sync"

	"pymata-gateway/internal/model"

	"github.com/enbility/zeroconf/v3"
)

const (
	ServiceType = "_pymata._tcp"
	Domain      = "local."
)

// Advertiser publishes one mDNS service record for the gateway.
type Advertiser struct {
	Instance string
	Path     string

	mu     sync.Mutex
	server *zeroconf.Server
	log    *slog.Logger
}

func NewAdvertiser(instance string, logger *slog.Logger) *Advertiser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advertiser{
		Instance: instance,
		Path:     "/",
		log:      logger.With("component", "mdns"),
	}
}

// TXT returns the TXT records published with the service.
func (a *Advertiser) TXT() []string {
	path := a.Path
	if path == "" {
		path = "/"
	}
	return []string{
		"version=" + model.Version,
		"path=" + path,
		"proto=ws",
	}
}

// Start registers the service on port, replacing any earlier registration.
func (a *Advertiser) Start(port int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	server, err := zeroconf.Register(a.Instance, ServiceType, Domain, port, a.TXT(), nil)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", ServiceType, err)
	}
	a.server = server
	a.log.Info("advertising", "instance", a.Instance, "service", ServiceType, "port", port)
	return nil
}

// Stop withdraws the service. It is safe to call when not started.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
