package config

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the node's startup configuration. Malformed values are rejected
// here, never clamped: a silently-corrected payload size would corrupt the
// airtime accounting downstream.
type Config struct {
	Node        NodeConfig        `mapstructure:"node"`
	Sensors     SensorsConfig     `mapstructure:"sensors"`
	Environment EnvironmentConfig `mapstructure:"environment"`
	Radio       RadioConfig       `mapstructure:"radio"`
	Payload     PayloadConfig     `mapstructure:"payload"`
	Broker      BrokerConfig      `mapstructure:"broker"`
	Stats       StatsConfig       `mapstructure:"stats"`
	Sim         SimConfig         `mapstructure:"sim"`
}

type NodeConfig struct {
	ID string `mapstructure:"id"`
}

// SensorsConfig holds the per-sensor sampling intervals (zero disables a
// sensor) and the global jitter fraction applied at every rescheduling.
type SensorsConfig struct {
	TemperatureInterval    time.Duration `mapstructure:"temperature_interval"`
	GasInterval            time.Duration `mapstructure:"gas_interval"`
	HumidityInterval       time.Duration `mapstructure:"humidity_interval"`
	CounterInterval        time.Duration `mapstructure:"counter_interval"`
	IntervalJitterFraction float64       `mapstructure:"interval_jitter_fraction"`
}

type EnvironmentConfig struct {
	BaseTemperature      float64 `mapstructure:"base_temperature"`
	AmplitudeTemperature float64 `mapstructure:"amplitude_temperature"`
	BaseHumidity         float64 `mapstructure:"base_humidity"`
	AmplitudeHumidity    float64 `mapstructure:"amplitude_humidity"`
	BaseGas              float64 `mapstructure:"base_gas"`
	AmplitudeGas         float64 `mapstructure:"amplitude_gas"`
}

type RadioConfig struct {
	TxPowerDbm        float64 `mapstructure:"tx_power_dbm"`
	CenterFrequencyHz float64 `mapstructure:"center_frequency_hz"`
	SpreadingFactor   int     `mapstructure:"spreading_factor"`
	BandwidthHz       float64 `mapstructure:"bandwidth_hz"`
	CodingRate        int     `mapstructure:"coding_rate"`
}

type PayloadConfig struct {
	BaseBytes    int `mapstructure:"base_bytes"`
	CounterBytes int `mapstructure:"counter_bytes"`
}

type BrokerConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	ClientID      string `mapstructure:"client_id"`
	UplinkTopic   string `mapstructure:"uplink_topic"`
	DownlinkTopic string `mapstructure:"downlink_topic"`
}

type StatsConfig struct {
	PrometheusAddr string       `mapstructure:"prometheus_addr"`
	Influx         InfluxConfig `mapstructure:"influx"`
}

type InfluxConfig struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

type SimConfig struct {
	// Seed 0 draws a seed from crypto/rand at startup.
	Seed int64 `mapstructure:"seed"`
	// Duration caps the simulated run; zero means unbounded.
	Duration time.Duration `mapstructure:"duration"`
	// TimeScale maps simulated onto wall-clock time; 0 or negative runs
	// as fast as possible.
	TimeScale float64 `mapstructure:"time_scale"`
}

// Load reads the YAML config at path, applies defaults and environment
// overrides (prefix WLAM_), and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("WLAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("node.id", "")
	v.SetDefault("sensors.interval_jitter_fraction", 0.0)
	v.SetDefault("radio.tx_power_dbm", 14.0)
	v.SetDefault("radio.center_frequency_hz", 868e6)
	v.SetDefault("radio.spreading_factor", 7)
	v.SetDefault("radio.bandwidth_hz", 125e3)
	v.SetDefault("radio.coding_rate", 1)
	v.SetDefault("payload.base_bytes", 8)
	v.SetDefault("payload.counter_bytes", 4)
	v.SetDefault("broker.host", "localhost")
	v.SetDefault("broker.port", 1883)
	v.SetDefault("broker.user", "guest")
	v.SetDefault("broker.password", "guest")
	v.SetDefault("broker.uplink_topic", "node/uplink")
	v.SetDefault("broker.downlink_topic", "node/downlink")
	v.SetDefault("stats.prometheus_addr", ":9100")
	v.SetDefault("sim.time_scale", 1.0)
}

// Validate rejects configurations that would corrupt size accounting or
// scheduling. A sensor interval <= 0 is a valid "disabled" setting and is
// deliberately not an error.
func (c *Config) Validate() error {
	if j := c.Sensors.IntervalJitterFraction; j < 0 || j > 1 {
		return fmt.Errorf("config: interval_jitter_fraction %v outside [0,1]", j)
	}
	if c.Payload.BaseBytes < 0 {
		return fmt.Errorf("config: payload.base_bytes must not be negative, got %d", c.Payload.BaseBytes)
	}
	if c.Payload.CounterBytes < 0 || c.Payload.CounterBytes > 8 {
		return fmt.Errorf("config: payload.counter_bytes %d outside [0,8]", c.Payload.CounterBytes)
	}
	if c.Radio.SpreadingFactor < 0 {
		return fmt.Errorf("config: radio.spreading_factor must not be negative, got %d", c.Radio.SpreadingFactor)
	}
	return nil
}

// ResolveSeed returns the configured seed, drawing one from crypto/rand when
// unset. A failing entropy source is a fatal startup condition, reported to
// the caller, never retried per cycle.
func (c *Config) ResolveSeed() (int64, error) {
	if c.Sim.Seed != 0 {
		return c.Sim.Seed, nil
	}
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("config: randomness source unavailable: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}
