package dnsmgr

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Control-D-Inc/dnsmgr/internal/dns"
)

// SetConfigName set the config name that dnsmgr will look for.
func SetConfigName(v *viper.Viper, name string) {
	v.SetConfigName(name)

	configPath := "$HOME"
	// viper has its own way to get user home directory:  https://github.com/spf13/viper/blob/v1.14.0/util.go#L134
	// To be consistent, we prefer os.UserHomeDir instead.
	if homeDir, err := os.UserHomeDir(); err == nil {
		configPath = homeDir
	}
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
}

// Default config values.
const (
	DefaultControlSocket   = "/run/dnsmgr/control.sock"
	DefaultDnsmasqPath     = "/usr/sbin/dnsmasq"
	DefaultDnsmasqConfDir  = "/run/dnsmgr/dnsmasq"
	DefaultUnboundHelper   = "/usr/libexec/dnssec-trigger-script"
	DefaultPluginInterval  = 30 * time.Second
	DefaultPluginBurst     = 5
	DefaultPluginDelay     = 300 * time.Second
	defaultKeyDelimiter    = "::"
	configKeyDNS           = "dns"
	configKeyService       = "service"
	configKeyPluginLimiter = configKeyDNS + defaultKeyDelimiter + "plugin_ratelimit"
)

// InitConfig initializes default config values for given *viper.Viper instance.
// The viper instance must use "::" as key delimiter.
func InitConfig(v *viper.Viper, name string) {
	SetConfigName(v, name)

	v.SetDefault(configKeyService+"::log_level", "info")
	v.SetDefault(configKeyService+"::control_socket", DefaultControlSocket)

	v.SetDefault(configKeyDNS+"::mode", dns.DNSModeDefault)
	v.SetDefault(configKeyDNS+"::resolv_conf_path", dns.DefaultResolvConfPath)
	v.SetDefault(configKeyDNS+"::private_resolv_conf", dns.DefaultPrivatePath)
	v.SetDefault(configKeyDNS+"::resolvconf_path", dns.DefaultResolvconfPath)
	v.SetDefault(configKeyDNS+"::netconfig_path", dns.DefaultNetconfigPath)
	v.SetDefault(configKeyDNS+"::helper_timeout", dns.DefaultHelperTimeout)
	v.SetDefault(configKeyDNS+"::watch_resolv_conf", true)

	v.SetDefault(configKeyPluginLimiter+"::interval", DefaultPluginInterval)
	v.SetDefault(configKeyPluginLimiter+"::burst", DefaultPluginBurst)
	v.SetDefault(configKeyPluginLimiter+"::delay", DefaultPluginDelay)

	v.SetDefault(configKeyDNS+"::dnsmasq::path", DefaultDnsmasqPath)
	v.SetDefault(configKeyDNS+"::dnsmasq::conf_dir", DefaultDnsmasqConfDir)
	v.SetDefault(configKeyDNS+"::unbound::path", DefaultUnboundHelper)
}

// Config represents dnsmgr supported configuration.
type Config struct {
	Service   ServiceConfig    `mapstructure:"service" toml:"service,omitempty"`
	DNS       DNSConfig        `mapstructure:"dns" toml:"dns"`
	GlobalDNS *GlobalDNSConfig `mapstructure:"global_dns" toml:"global_dns,omitempty" validate:"omitempty"`
}

// ServiceConfig specifies the general dnsmgr config.
type ServiceConfig struct {
	LogLevel        string `mapstructure:"log_level" toml:"log_level,omitempty"`
	LogPath         string `mapstructure:"log_path" toml:"log_path,omitempty"`
	MetricsListener string `mapstructure:"metrics_listener" toml:"metrics_listener,omitempty" validate:"omitempty,hostname_port"`
	ControlSocket   string `mapstructure:"control_socket" toml:"control_socket,omitempty"`
}

// DNSConfig specifies how the resolver state is processed and written.
type DNSConfig struct {
	Mode              string                `mapstructure:"mode" toml:"mode,omitempty"`
	RCManager         string                `mapstructure:"rc_manager" toml:"rc_manager,omitempty"`
	ResolvConfPath    string                `mapstructure:"resolv_conf_path" toml:"resolv_conf_path,omitempty"`
	PrivateResolvConf string                `mapstructure:"private_resolv_conf" toml:"private_resolv_conf,omitempty"`
	ResolvconfPath    string                `mapstructure:"resolvconf_path" toml:"resolvconf_path,omitempty"`
	NetconfigPath     string                `mapstructure:"netconfig_path" toml:"netconfig_path,omitempty"`
	HelperTimeout     time.Duration         `mapstructure:"helper_timeout" toml:"helper_timeout,omitempty" validate:"gte=0"`
	WatchResolvConf   bool                  `mapstructure:"watch_resolv_conf" toml:"watch_resolv_conf"`
	PluginRateLimit   PluginRateLimitConfig `mapstructure:"plugin_ratelimit" toml:"plugin_ratelimit"`
	Dnsmasq           DnsmasqConfig         `mapstructure:"dnsmasq" toml:"dnsmasq"`
	Unbound           UnboundConfig         `mapstructure:"unbound" toml:"unbound"`
}

// PluginRateLimitConfig limits how often a crashed plugin child is respawned.
type PluginRateLimitConfig struct {
	Interval time.Duration `mapstructure:"interval" toml:"interval" validate:"gt=0"`
	Burst    int           `mapstructure:"burst" toml:"burst" validate:"gte=1"`
	Delay    time.Duration `mapstructure:"delay" toml:"delay" validate:"gt=0"`
}

// DnsmasqConfig specifies how the dnsmasq plugin runs dnsmasq.
type DnsmasqConfig struct {
	Path    string `mapstructure:"path" toml:"path,omitempty"`
	ConfDir string `mapstructure:"conf_dir" toml:"conf_dir,omitempty"`
}

// UnboundConfig specifies the helper used by the unbound plugin.
type UnboundConfig struct {
	Path string `mapstructure:"path" toml:"path,omitempty"`
}

// Paths returns the resolver file locations of the config.
func (c *DNSConfig) Paths() dns.Paths {
	return dns.Paths{
		ResolvConf: c.ResolvConfPath,
		Private:    c.PrivateResolvConf,
	}.WithDefaults()
}

// ValidateConfig validates the given config.
func ValidateConfig(validate *validator.Validate, cfg *Config) error {
	validate.RegisterStructValidation(validateGlobalDNS, GlobalDNSConfig{})
	return validate.Struct(cfg)
}

// validateGlobalDNS requires the default domain in a global DNS config.
func validateGlobalDNS(sl validator.StructLevel) {
	g := sl.Current().Interface().(GlobalDNSConfig)
	if g.Domains[GlobalDomainDefault] == nil {
		sl.ReportError(g.Domains, "Domains", "domain", "default_domain", "")
	}
}
