package geoip

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/oschwald/geoip2-golang"
)

type fakeReader struct {
	city  *geoip2.City
	err   error
	delay time.Duration
	calls int
}

func (f *fakeReader) City(net.IP) (*geoip2.City, error) {
	f.calls++
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.city, f.err
}

func berlin() *geoip2.City {
	c := &geoip2.City{}
	c.Country.IsoCode = "DE"
	c.City.Names = map[string]string{"en": "Berlin"}
	return c
}

func TestMaxMind_Lookup(t *testing.T) {
	testCases := []struct {
		name      string
		ip        string
		reader    *fakeReader
		want      Location
		wantCalls int
	}{
		{
			name:      "public ip",
			ip:        "85.214.132.117",
			reader:    &fakeReader{city: berlin()},
			want:      Location{Country: "DE", City: "Berlin"},
			wantCalls: 1,
		},
		{
			name:   "private ip skipped",
			ip:     "10.1.2.3",
			reader: &fakeReader{city: berlin()},
		},
		{
			name:   "loopback skipped",
			ip:     "127.0.0.1",
			reader: &fakeReader{city: berlin()},
		},
		{
			name:   "unparseable skipped",
			ip:     "not-an-ip",
			reader: &fakeReader{city: berlin()},
		},
		{
			name:      "reader error",
			ip:        "8.8.8.8",
			reader:    &fakeReader{err: errors.New("corrupt db")},
			wantCalls: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := newMaxMind(tc.reader, nil, time.Second, nil)
			got := m.Lookup(context.Background(), tc.ip)
			if got != tc.want {
				t.Errorf("Lookup() = %+v, want %+v", got, tc.want)
			}
			if tc.reader.calls != tc.wantCalls {
				t.Errorf("reader calls = %d, want %d", tc.reader.calls, tc.wantCalls)
			}
		})
	}
}

func TestMaxMind_LookupTimeout(t *testing.T) {
	reader := &fakeReader{city: berlin(), delay: 200 * time.Millisecond}
	m := newMaxMind(reader, nil, 10*time.Millisecond, nil)

	start := time.Now()
	got := m.Lookup(context.Background(), "8.8.8.8")
	if got != (Location{}) {
		t.Errorf("Lookup() = %+v, want empty on timeout", got)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("Lookup() took %v, expected timeout to bound it", elapsed)
	}
}

func TestNoop(t *testing.T) {
	var r Resolver = Noop{}
	if got := r.Lookup(context.Background(), "8.8.8.8"); got != (Location{}) {
		t.Errorf("Noop.Lookup() = %+v", got)
	}
}
