// Package geoip resolves client IPs to a coarse location.
package geoip

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/oschwald/geoip2-golang"
)

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = time.Second

// Location is the result of a lookup. Empty fields mean unknown.
type Location struct {
	Country string
	City    string
}

// Resolver looks up the location of an IP address. Implementations never
// return errors; failures yield an empty Location.
type Resolver interface {
	Lookup(ctx context.Context, ip string) Location
}

// Noop is used when no GeoIP database is configured.
type Noop struct{}

// Lookup always returns an empty Location.
func (Noop) Lookup(context.Context, string) Location { return Location{} }

// cityReader is the subset of *geoip2.Reader used here.
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
}

// MaxMind resolves locations from a local GeoLite2/GeoIP2 City database.
// The reader is opened once and shared read-only.
type MaxMind struct {
	reader  cityReader
	closer  func() error
	timeout time.Duration
	logger  *slog.Logger
}

// Open opens the database at path.
func Open(path string, timeout time.Duration, logger *slog.Logger) (*MaxMind, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return newMaxMind(reader, reader.Close, timeout, logger), nil
}

func newMaxMind(reader cityReader, closer func() error, timeout time.Duration, logger *slog.Logger) *MaxMind {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MaxMind{
		reader:  reader,
		closer:  closer,
		timeout: timeout,
		logger:  logger.With("component", "geoip"),
	}
}

// Close releases the underlying database.
func (m *MaxMind) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer()
}

// Lookup resolves ip. Private, loopback and unparseable addresses are not
// looked up.
func (m *MaxMind) Lookup(ctx context.Context, ip string) Location {
	parsed := net.ParseIP(ip)
	if parsed == nil || !IsPublic(parsed) {
		return Location{}
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	type result struct {
		city *geoip2.City
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		city, err := m.reader.City(parsed)
		ch <- result{city, err}
	}()

	select {
	case <-ctx.Done():
		m.logger.Debug("geoip lookup timed out", "ip", ip)
		return Location{}
	case res := <-ch:
		if res.err != nil {
			m.logger.Debug("geoip lookup failed", "ip", ip, "error", res.err)
			return Location{}
		}
		return Location{
			Country: res.city.Country.IsoCode,
			City:    res.city.City.Names["en"],
		}
	}
}

// IsPublic reports whether ip is a globally routable unicast address.
func IsPublic(ip net.IP) bool {
	return !(ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast())
}
