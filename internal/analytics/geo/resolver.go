// Package geo maps client IPs to locations using a MaxMind GeoIP2/GeoLite2
// city database.
package geo

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"

	geoip2 "github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

// Location is the enrichment attached to a click. Empty fields were unknown.
type Location struct {
	CountryCode string
	CountryName string
	Region      string
	City        string
	Latitude    *float64
	Longitude   *float64
}

// Resolver looks up IPs. Without a database every lookup returns nil.
type Resolver struct {
	db *geoip2.Reader
}

// NewResolver opens the database at path. An empty path or a missing file
// yields a resolver that never resolves; a corrupt file is an error.
func NewResolver(path string, logger *zap.Logger) (*Resolver, error) {
	if path == "" {
		logger.Info("geo database not configured, clicks will not be geo-enriched")
		return &Resolver{}, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logger.Warn("geo database missing, clicks will not be geo-enriched", zap.String("path", path))
		return &Resolver{}, nil
	}

	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geo database %s: %w", path, err)
	}
	return &Resolver{db: db}, nil
}

func (r *Resolver) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Lookup returns nil for unparseable, private, loopback or unknown addresses
// and whenever no database is loaded.
func (r *Resolver) Lookup(ipStr string) *Location {
	if r.db == nil {
		return nil
	}
	ip := net.ParseIP(ipStr)
	if ip == nil || !routable(ip) {
		return nil
	}

	record, err := r.db.City(ip)
	if err != nil || record.Country.IsoCode == "" {
		return nil
	}

	loc := &Location{
		CountryCode: record.Country.IsoCode,
		CountryName: record.Country.Names["en"],
		City:        record.City.Names["en"],
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}
	if record.Location.Latitude != 0 || record.Location.Longitude != 0 {
		lat, lon := record.Location.Latitude, record.Location.Longitude
		loc.Latitude, loc.Longitude = &lat, &lon
	}
	return loc
}

func routable(ip net.IP) bool {
	return !(ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast())
}
