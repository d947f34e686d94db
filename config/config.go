// Package config loads the twi command line configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mklimuk/twi"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

// Injected at build time.
var (
	Version = "dev"
	Commit  string
	Date    string
)

const (
	BackendSim     = "sim"
	BackendHost    = "host"
	BackendMCP2221 = "mcp2221"
)

const (
	PeerLoopback = "loopback"
	PeerMemory   = "memory"
	PeerDS1307   = "ds1307"
)

var ErrInvalid = errors.New("invalid configuration")

// Frequency reads and writes values such as 100kHz.
type Frequency physic.Frequency

func (f *Frequency) UnmarshalText(b []byte) error {
	var v physic.Frequency
	err := v.Set(string(b))
	if err != nil {
		return err
	}
	*f = Frequency(v)
	return nil
}

func (f *Frequency) UnmarshalYAML(value *yaml.Node) error {
	err := f.UnmarshalText([]byte(value.Value))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	return nil
}

func (f Frequency) MarshalYAML() (any, error) {
	return physic.Frequency(f).String(), nil
}

func (f Frequency) Hz() physic.Frequency {
	return physic.Frequency(f)
}

type Config struct {
	Backend string    `yaml:"backend"`
	Clock   Frequency `yaml:"clock"`
	// Device names the host bus, empty for the first one found.
	Device  string  `yaml:"device,omitempty"`
	Adapter int     `yaml:"adapter"`
	Master  Master  `yaml:"master"`
	Slave   Slave   `yaml:"slave"`
	Sim     Sim     `yaml:"sim"`
	Log     Logging `yaml:"log"`
}

type Master struct {
	BufferSize int           `yaml:"buffer_size"`
	Timeout    time.Duration `yaml:"timeout"`
}

type Slave struct {
	Address    twi.Address `yaml:"address"`
	BufferSize int         `yaml:"buffer_size"`
}

type Sim struct {
	CPU   Frequency `yaml:"cpu"`
	Peers []Peer    `yaml:"peers"`
}

type Peer struct {
	Kind         string      `yaml:"kind"`
	Address      twi.Address `yaml:"address"`
	Size         int         `yaml:"size,omitempty"`
	AddressWidth int         `yaml:"address_width,omitempty"`
	PageSize     int         `yaml:"page_size,omitempty"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// Default describes a simulated bus with a 24C32 EEPROM and a DS1307.
func Default() Config {
	return Config{
		Backend: BackendSim,
		Clock:   Frequency(100 * physic.KiloHertz),
		Adapter: -1,
		Master: Master{
			BufferSize: 32,
			Timeout:    10 * time.Millisecond,
		},
		Slave: Slave{
			Address:    0x10,
			BufferSize: 32,
		},
		Sim: Sim{
			CPU: Frequency(16 * physic.MegaHertz),
			Peers: []Peer{
				{Kind: PeerMemory, Address: 0x50, Size: 4096, AddressWidth: 2, PageSize: 32},
				{Kind: PeerDS1307, Address: 0x68},
			},
		},
		Log: Logging{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("could not open config: %w", err)
	}
	defer f.Close()
	err = yaml.NewDecoder(f).Decode(&c)
	if err != nil {
		return c, fmt.Errorf("could not decode config %s: %w", path, err)
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendSim, BackendHost, BackendMCP2221:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend)
	}
	if c.Clock <= 0 {
		return fmt.Errorf("%w: clock must be positive", ErrInvalid)
	}
	if c.Master.BufferSize < 1 || c.Slave.BufferSize < 1 {
		return fmt.Errorf("%w: buffer size must be positive", ErrInvalid)
	}
	if !c.Slave.Address.Valid() {
		return fmt.Errorf("%w: slave address %s", ErrInvalid, c.Slave.Address)
	}
	seen := make(map[twi.Address]bool)
	for _, p := range c.Sim.Peers {
		if !p.Address.Valid() || p.Address == c.Slave.Address || seen[p.Address] {
			return fmt.Errorf("%w: peer address %s", ErrInvalid, p.Address)
		}
		seen[p.Address] = true
		switch p.Kind {
		case PeerLoopback, PeerMemory, PeerDS1307:
		default:
			return fmt.Errorf("%w: unknown peer kind %q", ErrInvalid, p.Kind)
		}
	}
	return nil
}

// String renders the configuration as YAML.
func (c Config) String() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
