package catalog

import (
	"strings"

	"github.com/breeze-rmm/cablerouter/internal/audio"
	"github.com/breeze-rmm/cablerouter/internal/logging"
)

// cableSignatures are case-sensitive substrings of known virtual cable
// product names.
var cableSignatures = []string{"VB-Audio", "CABLE"}

// MatchesCableSignature reports whether name identifies a virtual cable.
func MatchesCableSignature(name string) bool {
	for _, sig := range cableSignatures {
		if strings.Contains(name, sig) {
			return true
		}
	}
	return false
}

// FindVirtualCable returns the first render endpoint, in enumeration order,
// whose name matches a cable signature. found is false when none matches;
// err is reserved for enumeration failures. Every device other than the
// returned one is released.
func FindVirtualCable(c *Catalog) (dev audio.Device, found bool, err error) {
	devs, err := c.Endpoints(audio.Render)
	if err != nil {
		return nil, false, err
	}

	for i, d := range devs {
		name := Name(d)
		log.Info("render endpoint", logging.KeyDevice, name)
		if !found && MatchesCableSignature(name) {
			dev, found = d, true
			log.Debug("virtual cable candidate", logging.KeyDevice, name, logging.KeyDeviceID, ID(d), "index", i)
			continue
		}
		d.Release()
	}
	return dev, found, nil
}
