// Package config loads blinkenmatrixd's on-disk configuration: pool
// sizing, GPIO/ADC wiring, transport endpoints and the preferences
// file path.
// It follows the same JSON-file load/default pattern the original
// FluidNC bridge used for its own config.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// PoolConfig sizes the animation and frame pools.
type PoolConfig struct {
	MaxAnimations int `json:"maxAnimations"`
	MaxFrames     int `json:"maxFrames"`
}

// SerialConfig configures the wired transport.
type SerialConfig struct {
	Device string `json:"device"`
	Baud   uint32 `json:"baud"`
}

// WirelessConfig configures the websocket pairing endpoint.
type WirelessConfig struct {
	ListenAddr string `json:"listenAddr"`
}

// GPIOConfig names the chip and offsets the firmware drives.
type GPIOConfig struct {
	Chip string `json:"chip"`
	// PairingButtons are the three capacitive touch lines spec.md
	// section 4.8 requires be held simultaneously to enter pairing.
	PairingButtons [3]int `json:"pairingButtonOffsets"`
	StatusLED      int    `json:"statusLEDOffset"`
	PowerRailA     int    `json:"powerRailAOffset"`
	PowerRailB     int    `json:"powerRailBOffset"`
}

// ADCConfig locates the memory-mapped CC-pin comparator registers.
type ADCConfig struct {
	BaseAddr  uint64  `json:"baseAddr"`
	Size      uint64  `json:"size"`
	CC1Offset uint64  `json:"cc1Offset"`
	CC2Offset uint64  `json:"cc2Offset"`
	VRef      float64 `json:"vRef"`
	FullScale uint32  `json:"fullScale"`
}

// Config is blinkenmatrixd's full startup configuration.
type Config struct {
	Pool      PoolConfig     `json:"pool"`
	Serial    SerialConfig   `json:"serial"`
	Wireless  WirelessConfig `json:"wireless"`
	GPIO      GPIOConfig     `json:"gpio"`
	ADC       ADCConfig      `json:"adc"`
	PrefsPath string         `json:"prefsPath"`
}

// LoadConfig reads and decodes a JSON config file.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &cfg, nil
}

// DefaultConfig returns the reference board's wiring and a
// reasonably sized animation pool.
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			MaxAnimations: 32,
			MaxFrames:     16,
		},
		Serial: SerialConfig{
			Device: "/dev/ttyAMA0",
			Baud:   115200,
		},
		Wireless: WirelessConfig{
			ListenAddr: ":8642",
		},
		GPIO: GPIOConfig{
			Chip:           "gpiochip0",
			PairingButtons: [3]int{4, 23, 24},
			StatusLED:      5,
			PowerRailA:     6,
			PowerRailB:     7,
		},
		ADC: ADCConfig{
			BaseAddr:  0xfe200000,
			Size:      0x1000,
			CC1Offset: 0x00,
			CC2Offset: 0x04,
			VRef:      3.3,
			FullScale: 4095,
		},
		PrefsPath: "/var/lib/blinkenmatrix/prefs.json",
	}
}
