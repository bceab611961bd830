package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrResolution is returned when a name cannot be turned into an IPv4
// address, or an address into a name.
var ErrResolution = errors.New("resolution failure")

type lookupIPFunc func(ctx context.Context, network, host string) ([]net.IP, error)

type lookupAddrFunc func(ctx context.Context, addr string) ([]string, error)

// Options overrides the lookups used by a Resolver.
type Options struct {
	LookupIP   lookupIPFunc
	LookupAddr lookupAddrFunc
}

// Resolver maps ping targets to IPv4 addresses and back.
type Resolver struct {
	lookupIP   lookupIPFunc
	lookupAddr lookupAddrFunc
}

// NewResolver returns a Resolver backed by net.DefaultResolver.
func NewResolver() *Resolver {
	return NewResolverWithOptions(Options{})
}

// NewResolverWithOptions returns a Resolver with the given lookups.
func NewResolverWithOptions(opts Options) *Resolver {
	r := &Resolver{
		lookupIP:   opts.LookupIP,
		lookupAddr: opts.LookupAddr,
	}
	if r.lookupIP == nil {
		r.lookupIP = net.DefaultResolver.LookupIP
	}
	if r.lookupAddr == nil {
		r.lookupAddr = net.DefaultResolver.LookupAddr
	}
	return r
}

// Resolve returns the first IPv4 address of host. Literal addresses are
// returned without a lookup.
func (r *Resolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	if host == "" {
		return nil, fmt.Errorf("%w: empty target", ErrResolution)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
		return nil, fmt.Errorf("%w: %s is not an IPv4 address", ErrResolution, host)
	}

	ips, err := r.lookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrResolution, host, err)
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no IPv4 address", ErrResolution, host)
}

// Reverse returns the host name registered for ip.
func (r *Resolver) Reverse(ctx context.Context, ip net.IP) (string, error) {
	names, err := r.lookupAddr(ctx, ip.String())
	if err != nil {
		return "", fmt.Errorf("%w: reverse lookup of %s: %v", ErrResolution, ip, err)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: no name for %s", ErrResolution, ip)
	}
	return strings.TrimSuffix(names[0], "."), nil
}
