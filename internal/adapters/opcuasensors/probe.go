// Package opcuasensors reads temperatures from an external OPC UA sensor
// bank. Unlike the host's own thermal zones these sensors sit on the
// fieldbus side, so readings arrive via attribute reads against named
// nodes rather than sysfs.
package opcuasensors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
)

type Config struct {
	Endpoint       string         `yaml:"endpoint"`
	Username       string         `yaml:"username"`
	Password       string         `yaml:"password"`
	SecurityMode   string         `yaml:"security_mode"`
	SecurityPolicy string         `yaml:"security_policy"`
	ReadTimeout    time.Duration  `yaml:"read_timeout"`
	Sensors        []SensorConfig `yaml:"sensors"`
}

// SensorConfig maps a monitored node to the temperature key it reports as.
type SensorConfig struct {
	NodeID string `yaml:"node_id"`
	Name   string `yaml:"name"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	for i := range c.Sensors {
		if c.Sensors[i].Name == "" {
			c.Sensors[i].Name = c.Sensors[i].NodeID
		}
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Sensors) == 0 {
		return errors.New("at least one sensor must be configured")
	}
	for _, s := range c.Sensors {
		if _, err := ua.ParseNodeID(s.NodeID); err != nil {
			return fmt.Errorf("parse node id %q: %w", s.NodeID, err)
		}
	}
	return nil
}

// Probe polls the configured nodes with attribute reads on demand. The
// connection is opened lazily on first read and kept for reuse.
type Probe struct {
	cfg Config

	mu     sync.Mutex
	client *opcua.Client
	nodes  []*ua.ReadValueID
}

func NewProbe(cfg Config) (*Probe, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nodes := make([]*ua.ReadValueID, len(cfg.Sensors))
	for i, s := range cfg.Sensors {
		id, _ := ua.ParseNodeID(s.NodeID)
		nodes[i] = &ua.ReadValueID{NodeID: id, AttributeID: ua.AttributeIDValue}
	}
	return &Probe{cfg: cfg, nodes: nodes}, nil
}

// ReadTemperatures reads every configured sensor in a single request.
// Sensors with a bad status or non-numeric value are skipped.
func (p *Probe) ReadTemperatures(ctx context.Context) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.ReadTimeout)
	defer cancel()

	if err := p.connectLocked(ctx); err != nil {
		return nil, err
	}

	resp, err := p.client.Read(ctx, &ua.ReadRequest{
		NodesToRead:        p.nodes,
		TimestampsToReturn: ua.TimestampsToReturnNeither,
	})
	if err != nil {
		// force a reconnect on the next read
		_ = p.client.Close(ctx)
		p.client = nil
		return nil, fmt.Errorf("opcua read: %w", err)
	}

	temps := make(map[string]float64, len(resp.Results))
	for i, res := range resp.Results {
		if i >= len(p.cfg.Sensors) {
			break
		}
		if res.Status != ua.StatusOK {
			continue
		}
		if v, ok := variantToFloat(res.Value); ok {
			temps[p.cfg.Sensors[i].Name] = v
		}
	}
	return temps, nil
}

func (p *Probe) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Close(ctx)
	p.client = nil
	return err
}

func (p *Probe) connectLocked(ctx context.Context) error {
	if p.client != nil {
		return nil
	}

	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(p.cfg.SecurityMode)),
		opcua.SecurityPolicy(p.cfg.SecurityPolicy),
		opcua.ApplicationName("jetsonazure edge agent"),
		opcua.AutoReconnect(true),
	}
	if p.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(p.cfg.Username, p.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}

	client, err := opcua.NewClient(p.cfg.Endpoint, opts...)
	if err != nil {
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("opcua connect: %w", err)
	}
	p.client = client
	return nil
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}
