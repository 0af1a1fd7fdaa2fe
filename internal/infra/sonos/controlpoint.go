// Package sonos implements the speaker control point for Sonos players over
// UPnP: SSDP discovery and SOAP actions on port 1400.
package sonos

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/edumarques81/spl/internal/domain/speaker"
	"github.com/huin/goupnp"
	"github.com/huin/goupnp/httpu"
	"github.com/huin/goupnp/ssdp"
	"github.com/rs/zerolog/log"
)

// ZonePlayerURN is the SSDP search target answered by Sonos players.
const ZonePlayerURN = "urn:schemas-upnp-org:device:ZonePlayer:1"

// DefaultPort is the player's UPnP control port.
const DefaultPort = "1400"

// DefaultDiscoveryTimeout bounds the SSDP search.
const DefaultDiscoveryTimeout = 5 * time.Second

// ControlPoint discovers Sonos zones and hands out speaker handles.
type ControlPoint struct {
	timeout time.Duration

	mu  sync.RWMutex
	top *speaker.Topology
	// hosts maps zone UUIDs to the host:port their description was served from.
	hosts map[string]string
}

// NewControlPoint creates a control point. A non-positive timeout uses
// DefaultDiscoveryTimeout.
func NewControlPoint(timeout time.Duration) *ControlPoint {
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}
	return &ControlPoint{
		timeout: timeout,
		hosts:   make(map[string]string),
	}
}

// Discover searches for players and reads the household topology from the
// first one that answers. iface pins the local address used for the search.
func (c *ControlPoint) Discover(ctx context.Context, iface string) (*speaker.Topology, error) {
	searchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	hosts, err := c.search(searchCtx, iface)
	cancel()
	if err != nil {
		return nil, err
	}
	log.Debug().Strs("hosts", hosts).Msg("SSDP search finished")

	if len(hosts) == 0 {
		return speaker.NewTopology(nil, nil), nil
	}

	var lastErr error
	for _, host := range hosts {
		top, err := c.loadTopology(ctx, host)
		if err != nil {
			log.Debug().Err(err).Str("host", host).Msg("Cannot read zone group state")
			lastErr = err
			continue
		}
		return top, nil
	}
	return nil, lastErr
}

func (c *ControlPoint) search(ctx context.Context, iface string) ([]string, error) {
	var locations []*url.URL

	if iface == "" {
		devices, err := goupnp.DiscoverDevicesCtx(ctx, ZonePlayerURN)
		if err != nil {
			return nil, fmt.Errorf("failed to discover speakers: %w", err)
		}
		for _, d := range devices {
			if d.Err != nil {
				log.Debug().Err(d.Err).Str("usn", d.USN).Msg("Ignoring device description error")
			}
			if d.Location != nil {
				locations = append(locations, d.Location)
			}
		}
	} else {
		client, err := httpu.NewHTTPUClientAddr(iface)
		if err != nil {
			return nil, fmt.Errorf("failed to bind discovery to %s: %w", iface, err)
		}
		defer client.Close()

		responses, err := ssdp.SSDPRawSearchCtx(ctx, client, ZonePlayerURN, 2, 3)
		if err != nil {
			return nil, fmt.Errorf("failed to discover speakers on %s: %w", iface, err)
		}
		for _, r := range responses {
			loc, err := url.Parse(r.Header.Get("Location"))
			if err != nil {
				continue
			}
			locations = append(locations, loc)
		}
	}

	seen := make(map[string]bool)
	var hosts []string
	for _, loc := range locations {
		if loc.Host == "" || seen[loc.Host] {
			continue
		}
		seen[loc.Host] = true
		hosts = append(hosts, loc.Host)
	}
	return hosts, nil
}

// loadTopology reads ZoneGroupState from the player at host and replaces the
// cached topology.
func (c *ControlPoint) loadTopology(ctx context.Context, host string) (*speaker.Topology, error) {
	var out struct {
		ZoneGroupState string
	}
	client := newSOAPClient(host, pathZoneGroupTopology)
	if err := client.PerformActionCtx(ctx, nsZoneGroupTopology, "GetZoneGroupState", nil, &out); err != nil {
		return nil, speaker.WrapDeviceError("GetZoneGroupState", host, err)
	}

	state, err := parseZoneGroupState(out.ZoneGroupState)
	if err != nil {
		return nil, err
	}
	top := speaker.NewTopology(state.zones, state.groups)

	c.mu.Lock()
	c.top = top
	for id, h := range state.hosts {
		c.hosts[id] = h
	}
	c.mu.Unlock()

	return top, nil
}

// Speaker returns a handle for z.
func (c *ControlPoint) Speaker(z speaker.Zone) speaker.Speaker {
	return &Speaker{cp: c, zone: z}
}

func (c *ControlPoint) hostFor(z speaker.Zone) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if h, ok := c.hosts[z.ID]; ok {
		return h
	}
	return net.JoinHostPort(z.Address, DefaultPort)
}

func (c *ControlPoint) topology() *speaker.Topology {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.top
}

// hostFromLocation extracts host:port from a device description URL.
func hostFromLocation(location string) (string, string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", err
	}
	if u.Hostname() == "" {
		return "", "", fmt.Errorf("location %q has no host", location)
	}
	return u.Host, u.Hostname(), nil
}
