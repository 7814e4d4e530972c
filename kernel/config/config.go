package config

import (
	"fmt"
	"math"
	"net/netip"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const ConfigFileEnv = "VPNCTL_CONFIG_FILE"

type Config struct {
	InstanceId  string          `yaml:"instance_id"`
	Region      string          `yaml:"region"`
	Timezone    string          `yaml:"timezone"`
	LogLevel    string          `yaml:"log_level"`
	Handler     string          `yaml:"handler"`
	HistoryPath string          `yaml:"history_path"`
	Monitor     MonitorConfig   `yaml:"monitor"`
	Start       StartConfig     `yaml:"start"`
	Registrar   RegistrarConfig `yaml:"registrar"`
	Influx      InfluxConfig    `yaml:"influx"`
	Serve       ServeConfig     `yaml:"serve"`

	location *time.Location
}

type MonitorConfig struct {
	ThresholdMb   float64 `yaml:"threshold_mb"`
	WindowHours   float64 `yaml:"window_hours"`
	PeriodSeconds int     `yaml:"period_seconds"`
}

type StartConfig struct {
	WeekdayStartHour     int    `yaml:"weekday_start_hour"`
	WeekdayEndHour       int    `yaml:"weekday_end_hour"`
	NotificationTopicArn string `yaml:"notification_topic_arn"`
}

type RegistrarConfig struct {
	ClientSubnetCidr      string    `yaml:"client_subnet_cidr"`
	ServerAddress         string    `yaml:"server_address"`
	Interface             string    `yaml:"interface"`
	ConfPath              string    `yaml:"conf_path"`
	CommandTimeoutSeconds int       `yaml:"command_timeout_seconds"`
	PollIntervalSeconds   int       `yaml:"poll_interval_seconds"`
	Executor              string    `yaml:"executor"`
	SSH                   SSHConfig `yaml:"ssh"`
}

type SSHConfig struct {
	Host           string `yaml:"host"`
	User           string `yaml:"user"`
	KeyPath        string `yaml:"key_path"`
	KnownHostsPath string `yaml:"known_hosts_path"`
}

type InfluxConfig struct {
	Url    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

type ServeConfig struct {
	ListenAddr        string `yaml:"listen_addr"`
	AdminUser         string `yaml:"admin_user"`
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

func Default() *Config {
	return &Config{
		Timezone: "UTC",
		LogLevel: "info",
		Monitor: MonitorConfig{
			ThresholdMb:   1,
			WindowHours:   1.5,
			PeriodSeconds: 900,
		},
		Start: StartConfig{
			WeekdayStartHour: 13,
			WeekdayEndHour:   24,
		},
		Registrar: RegistrarConfig{
			Interface:             "wg0",
			ConfPath:              "/etc/wireguard/wg0.conf",
			CommandTimeoutSeconds: 60,
			PollIntervalSeconds:   2,
			Executor:              "ssm",
			SSH: SSHConfig{
				User: "ec2-user",
			},
		},
		Serve: ServeConfig{
			ListenAddr: ":8080",
		},
	}
}

// Load builds the configuration once: defaults, then the optional YAML file, then the
// environment. An empty path falls back to VPNCTL_CONFIG_FILE.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		if err := cfg.loadYaml(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYaml(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "config: read %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "config: parse %s", path)
	}
	return nil
}

// Validate checks the fields every handler needs. Registrar specific fields are
// checked by RegistrarConfig.Validate when a registrar is built.
func (c *Config) Validate() error {
	if c.InstanceId == "" {
		return errors.New("config: INSTANCE_ID is required")
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return errors.Wrapf(err, "config: invalid timezone %q", c.Timezone)
	}
	c.location = loc

	if c.Monitor.ThresholdMb < 0 {
		return errors.Errorf("config: monitor threshold must be >= 0, got %v", c.Monitor.ThresholdMb)
	}
	if c.Monitor.WindowHours <= 0 {
		return errors.Errorf("config: monitor window must be > 0 hours, got %v", c.Monitor.WindowHours)
	}
	if c.Monitor.PeriodSeconds <= 0 {
		return errors.Errorf("config: monitor period must be > 0 seconds, got %d", c.Monitor.PeriodSeconds)
	}
	if c.Start.WeekdayStartHour < 0 || c.Start.WeekdayStartHour > 24 ||
		c.Start.WeekdayEndHour < 0 || c.Start.WeekdayEndHour > 24 {
		return errors.Errorf("config: weekday hours must lie in [0,24], got [%d,%d)", c.Start.WeekdayStartHour, c.Start.WeekdayEndHour)
	}
	if c.Registrar.CommandTimeoutSeconds <= 0 {
		c.Registrar.CommandTimeoutSeconds = 60
	}
	if c.Registrar.PollIntervalSeconds <= 0 {
		c.Registrar.PollIntervalSeconds = 2
	}
	return nil
}

// Location is resolved once by Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) WithLocation(loc *time.Location) *Config {
	c.location = loc
	c.Timezone = loc.String()
	return c
}

// RequiredPoints is the number of trailing buckets that must all be below the threshold.
func (m MonitorConfig) RequiredPoints() int {
	points := int(math.Ceil(m.WindowHours * 3600 / float64(m.PeriodSeconds)))
	if points < 1 {
		return 1
	}
	return points
}

func (m MonitorConfig) Window() time.Duration {
	return time.Duration(m.WindowHours * float64(time.Hour))
}

func (m MonitorConfig) Period() time.Duration {
	return time.Duration(m.PeriodSeconds) * time.Second
}

func (r RegistrarConfig) Validate() error {
	if r.ClientSubnetCidr == "" {
		return errors.New("config: CLIENT_SUBNET_CIDR is required for peer registration")
	}
	if _, err := r.Subnet(); err != nil {
		return err
	}
	if r.ServerAddress == "" {
		return errors.New("config: SERVER_ADDRESS is required for peer registration")
	}
	if _, err := r.Server(); err != nil {
		return err
	}
	if r.Interface == "" || r.ConfPath == "" {
		return errors.New("config: WG_INTERFACE and WG_CONF_PATH must not be empty")
	}
	switch strings.ToLower(r.Executor) {
	case "ssm":
	case "ssh":
		if r.SSH.Host == "" || r.SSH.KeyPath == "" {
			return errors.New("config: SSH_HOST and SSH_KEY_PATH are required for the ssh executor")
		}
	default:
		return errors.Errorf("config: unknown remote executor %q", r.Executor)
	}
	return nil
}

// Subnet parses CLIENT_SUBNET_CIDR non-strictly: host bits are masked off.
func (r RegistrarConfig) Subnet() (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(r.ClientSubnetCidr))
	if err != nil {
		return netip.Prefix{}, errors.Wrapf(err, "config: invalid CLIENT_SUBNET_CIDR %q", r.ClientSubnetCidr)
	}
	return prefix.Masked(), nil
}

// Server accepts a bare address or an interface style address with a prefix length.
func (r RegistrarConfig) Server() (netip.Addr, error) {
	value := strings.TrimSpace(r.ServerAddress)
	if strings.Contains(value, "/") {
		prefix, err := netip.ParsePrefix(value)
		if err != nil {
			return netip.Addr{}, errors.Wrapf(err, "config: invalid SERVER_ADDRESS %q", r.ServerAddress)
		}
		return prefix.Addr(), nil
	}
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, "config: invalid SERVER_ADDRESS %q", r.ServerAddress)
	}
	return addr, nil
}

func (r RegistrarConfig) CommandTimeout() time.Duration {
	return time.Duration(r.CommandTimeoutSeconds) * time.Second
}

func (r RegistrarConfig) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalSeconds) * time.Second
}

func (i InfluxConfig) Enabled() bool {
	return i.Url != ""
}

func (c *Config) String() string {
	return fmt.Sprintf("instance=%s region=%s tz=%s", c.InstanceId, c.Region, c.Timezone)
}
