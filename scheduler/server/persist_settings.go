package server

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Persistor persists and restores scheduler settings across restarts.
type Persistor interface {
	PersistSettings(settings *PersistedSettings) error
	LoadSettings() (*PersistedSettings, error)
}

// PersistedSettings is the persisted scheduler settings structure for
// encoding/decoding as json. The capacity-share model has a single
// piece of operator-set state worth surviving a restart: the
// scheduler-wide throttle.
type PersistedSettings struct {
	Throttle int `json:"throttle"`
}

// nopPersistor provides nop implementations of persist and load, used
// when no durable settings store is configured.
type nopPersistor struct{}

func (p *nopPersistor) PersistSettings(settings *PersistedSettings) error {
	return nil
}

func (p *nopPersistor) LoadSettings() (*PersistedSettings, error) {
	return nil, nil
}

// PersistSettings snapshots the current throttle through the
// configured Persistor.
func (d *Dispatcher) PersistSettings() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.persistSettingsLocked()
}

// persistSettingsLocked assumes the caller already holds d.mu.
func (d *Dispatcher) persistSettingsLocked() error {
	ps := &PersistedSettings{Throttle: d.throttle}
	if err := d.persistor.PersistSettings(ps); err != nil {
		return fmt.Errorf("settings were not persisted, default scheduler settings will be used on next restart: %s", err)
	}
	return nil
}

// loadSettingsLocked assumes the caller already holds d.mu; it is only
// called from Start, before the dispatcher is visible to other
// goroutines.
func (d *Dispatcher) loadSettingsLocked() {
	settings, err := d.persistor.LoadSettings()
	if err != nil {
		log.Errorf("error loading settings, scheduler will use the default settings. %s", err)
		return
	}
	if settings == nil {
		log.Infof("no persisted settings found. Scheduler will use default values")
		return
	}
	log.Info("loaded persisted settings")
	d.throttle = settings.Throttle
}
