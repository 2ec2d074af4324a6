package testhelper

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/Control-D-Inc/dnsmgr"
)

// SampleConfig returns the config parsed from a sample config file.
func SampleConfig(t *testing.T) *dnsmgr.Config {
	return LoadConfig(t, sampleConfigContent)
}

// LoadConfig parses content as a dnsmgr TOML config, with defaults applied.
func LoadConfig(t *testing.T, content string) *dnsmgr.Config {
	t.Helper()
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	dnsmgr.InitConfig(v, "test_load_config")
	v.SetConfigType("toml")
	require.NoError(t, v.ReadConfig(strings.NewReader(content)))
	var cfg dnsmgr.Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

var sampleConfigContent = `
[service]
log_level = "debug"
log_path = "/path/to/log.log"
metrics_listener = "127.0.0.1:9153"

[dns]
mode = "dnsmasq"
rc_manager = "file"
private_resolv_conf = "/run/test/resolv.conf"
helper_timeout = "2s"

[dns.plugin_ratelimit]
burst = 3

[dns.dnsmasq]
conf_dir = "/run/test/dnsmasq"

[global_dns]
searches = ["corp.example"]
options = ["rotate"]

[global_dns.domain."*"]
servers = ["1.1.1.1", "1.0.0.1"]

[global_dns.domain."lab.example"]
servers = ["10.0.0.53"]
`
