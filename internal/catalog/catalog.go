// Package catalog lists audio endpoints and locates the virtual cable among
// them.
package catalog

import (
	"fmt"

	"github.com/breeze-rmm/cablerouter/internal/audio"
	"github.com/breeze-rmm/cablerouter/internal/logging"
)

var log = logging.L("catalog")

// UnknownName is reported for devices whose name cannot be read.
const UnknownName = "Unknown"

// Catalog reads endpoints through an enumerator it does not own.
type Catalog struct {
	enum audio.Enumerator
}

// New returns a Catalog backed by enum. The caller keeps ownership of enum.
func New(enum audio.Enumerator) *Catalog {
	return &Catalog{enum: enum}
}

// Endpoints returns the active endpoints for dir in enumeration order. The
// caller owns every returned device.
func (c *Catalog) Endpoints(dir audio.Direction) ([]audio.Device, error) {
	devs, err := c.enum.EnumEndpoints(dir, audio.StateActive)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s endpoints: %w", dir, err)
	}
	return devs, nil
}

// Default returns the default console endpoint for dir.
func (c *Catalog) Default(dir audio.Direction) (audio.Device, error) {
	dev, err := c.enum.DefaultEndpoint(dir, audio.RoleConsole)
	if err != nil {
		return nil, fmt.Errorf("default %s endpoint: %w", dir, err)
	}
	return dev, nil
}

// Name returns the display name of dev, or UnknownName if it cannot be read.
func Name(dev audio.Device) string {
	name, err := dev.FriendlyName()
	if err != nil {
		log.Debug("friendly name unavailable", logging.Err(err))
		return UnknownName
	}
	if name == "" {
		return UnknownName
	}
	return name
}

// ID returns the endpoint ID of dev, or "" if it cannot be read.
func ID(dev audio.Device) string {
	id, err := dev.ID()
	if err != nil {
		return ""
	}
	return id
}

// Entry is a released snapshot of one endpoint.
type Entry struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Default bool   `yaml:"default" json:"default"`
	Cable   bool   `yaml:"cable" json:"cable"`
}

// List returns a snapshot of the active endpoints for dir. Devices are
// released before List returns. Failing to resolve the default endpoint is
// not an error; no entry is marked default in that case.
func (c *Catalog) List(dir audio.Direction) ([]Entry, error) {
	devs, err := c.Endpoints(dir)
	if err != nil {
		return nil, err
	}
	defer releaseAll(devs)

	var defaultID string
	if def, err := c.Default(dir); err == nil {
		defaultID = ID(def)
		def.Release()
	} else {
		log.Debug("no default endpoint", "direction", dir.String(), logging.Err(err))
	}

	entries := make([]Entry, 0, len(devs))
	for _, dev := range devs {
		e := Entry{ID: ID(dev), Name: Name(dev)}
		e.Default = e.ID != "" && e.ID == defaultID
		e.Cable = MatchesCableSignature(e.Name)
		entries = append(entries, e)
	}
	return entries, nil
}

func releaseAll(devs []audio.Device) {
	for _, d := range devs {
		d.Release()
	}
}
