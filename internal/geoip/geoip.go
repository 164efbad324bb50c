// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package geoip resolves client addresses to ISO country codes using a
// MaxMind GeoLite2-Country database. Lookups degrade to "" when no database
// is configured.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/oschwald/maxminddb-golang"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/olegiv/tegsite/internal/util"
)

// Local is reported for loopback, private and reserved addresses.
const Local = "LOCAL"

// Lookup maps IP addresses to countries. The zero value answers only Local.
type Lookup struct {
	mu      sync.RWMutex
	reader  *maxminddb.Reader
	path    string
	modTime time.Time
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// NewLookup creates a Lookup with no database loaded.
func NewLookup() *Lookup {
	return &Lookup{}
}

// Init loads the database at path. An empty path leaves lookups disabled.
func (g *Lookup) Init(path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.path = path
	if path == "" {
		return nil
	}
	return g.open()
}

// Reload reopens the database when the file on disk has changed.
func (g *Lookup) Reload() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.path == "" {
		return nil
	}
	return g.open()
}

// open must be called with g.mu held.
func (g *Lookup) open() error {
	info, err := os.Stat(g.path)
	if err != nil {
		g.closeReader()
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("geoip database not found: %s", g.path)
		}
		return fmt.Errorf("geoip database: %w", err)
	}
	if g.reader != nil && info.ModTime().Equal(g.modTime) {
		return nil
	}

	reader, err := maxminddb.Open(g.path)
	if err != nil {
		g.closeReader()
		return fmt.Errorf("opening geoip database: %w", err)
	}

	g.closeReader()
	g.reader = reader
	g.modTime = info.ModTime()
	return nil
}

func (g *Lookup) closeReader() {
	if g.reader != nil {
		_ = g.reader.Close()
		g.reader = nil
	}
}

// LookupCountry returns the ISO 3166 alpha-2 code for ip, Local for
// private addresses, and "" when unknown.
func (g *Lookup) LookupCountry(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if util.IsPrivateIP(parsed) {
		return Local
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.reader == nil {
		return ""
	}
	var rec countryRecord
	if err := g.reader.Lookup(parsed, &rec); err != nil {
		return ""
	}
	return rec.Country.ISOCode
}

// IsEnabled reports whether a database is loaded.
func (g *Lookup) IsEnabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.reader != nil
}

// Close releases the database.
func (g *Lookup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.reader == nil {
		return nil
	}
	err := g.reader.Close()
	g.reader = nil
	return err
}

// CountryName returns the English name for a country code from LookupCountry.
func CountryName(code string) string {
	switch code {
	case "":
		return "Unknown"
	case Local:
		return "Local Network"
	}
	region, err := language.ParseRegion(code)
	if err != nil {
		return code
	}
	if name := display.English.Regions().Name(region); name != "" {
		return name
	}
	return code
}
