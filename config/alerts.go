package config

import (
	"fmt"

	"github.com/kilianp07/fillcast/core/simulator"
	"github.com/kilianp07/fillcast/infra/mqtt"
)

// AlertConfig controls overflow notifications.
type AlertConfig struct {
	Enabled bool `json:"enabled"`
	// Threshold is the fill fraction that raises an alert.
	Threshold float64     `json:"threshold"`
	MQTT      mqtt.Config `json:"mqtt"`
}

func (c *AlertConfig) SetDefaults() {
	if c.Threshold == 0 {
		c.Threshold = simulator.DefaultOverflowThreshold
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = mqtt.DefaultTopicPrefix
	}
}

func (c AlertConfig) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in (0, 1]")
	}
	if c.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when alerts are enabled")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}
