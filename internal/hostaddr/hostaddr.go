// Package hostaddr finds the address other pods should use to reach this host.
package hostaddr

import (
	"net"
	"os"

	"github.com/pkg/errors"

	"github.com/wangxicoding/edl/pkg/cluster"
)

// Resolver resolves the local host name to an address.
type Resolver struct {
	// Address, when set, is returned as is and no lookup happens.
	Address string

	hostname   func() (string, error)
	lookupHost func(string) ([]string, error)
}

var _ cluster.HostResolver = (*Resolver)(nil)

// New returns a resolver backed by the system resolver.
func New(address string) *Resolver {
	return &Resolver{Address: address, hostname: os.Hostname, lookupHost: net.LookupHost}
}

// Resolve returns the host name and the first non-loopback address it resolves to, preferring
// IPv4. A loopback address is only returned when nothing else is available.
func (r *Resolver) Resolve() (string, string, error) {
	hostname, err := r.hostname()
	if err != nil {
		return "", "", errors.Wrap(err, "unable to get hostname")
	}
	if r.Address != "" {
		return hostname, r.Address, nil
	}

	addrs, err := r.lookupHost(hostname)
	if err != nil {
		return "", "", errors.Wrapf(err, "unable to resolve hostname %s", hostname)
	}
	return hostname, pick(addrs), nil
}

func pick(addrs []string) string {
	var fallback string
	for _, a := range addrs {
		ip := net.ParseIP(a)
		switch {
		case ip == nil:
			continue
		case ip.IsLoopback():
			if fallback == "" {
				fallback = a
			}
		case ip.To4() != nil:
			return a
		}
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && !ip.IsLoopback() {
			return a
		}
	}
	return fallback
}
