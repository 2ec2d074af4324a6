package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/kardianos/service"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Control-D-Inc/dnsmgr"
	"github.com/Control-D-Inc/dnsmgr/internal/dns"
	"github.com/Control-D-Inc/dnsmgr/internal/dnsmanager"
	"github.com/Control-D-Inc/dnsmgr/internal/resolvconffile"
)

func initRunCmd(rootCmd *cobra.Command) {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the DNS manager daemon",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			initConsoleLogging()
			if daemon && runtime.GOOS == "windows" {
				mainLog.Load().Fatal().Msg("Cannot run in daemon mode. Please install a Windows service.")
			}
			readConfig()
			if logPath != "" {
				cfg.Service.LogPath = logPath
			}
			initLogging()

			if daemon {
				exe, err := os.Executable()
				if err != nil {
					mainLog.Load().Error().Err(err).Msg("failed to find the binary")
					os.Exit(1)
				}
				curDir, err := os.Getwd()
				if err != nil {
					mainLog.Load().Error().Err(err).Msg("failed to get current working directory")
					os.Exit(1)
				}
				// If running as daemon, re-run the command in background, with daemon off.
				cmdArgs := []string{"run"}
				cmd.Flags().Visit(func(flag *pflag.Flag) {
					if flag.Name == "daemon" {
						return
					}
					cmdArgs = append(cmdArgs, fmt.Sprintf("--%s=%s", flag.Name, flag.Value))
				})
				command := exec.Command(exe, cmdArgs...)
				command.Dir = curDir
				if err := command.Start(); err != nil {
					mainLog.Load().Error().Err(err).Msg("failed to start process as daemon")
					os.Exit(1)
				}
				mainLog.Load().Info().Int("pid", command.Process.Pid).Msg("DNS manager started")
				os.Exit(0)
			}

			p := newProg(&cfg, v.ConfigFileUsed())
			s, err := service.New(p, svcConfig)
			if err != nil {
				mainLog.Load().Fatal().Err(err).Msg("failed create new service")
			}
			serviceLogger, err := s.Logger(nil)
			if err != nil {
				mainLog.Load().Error().Err(err).Msg("failed to get service logger")
				return
			}

			if err := s.Run(); err != nil {
				if sErr := serviceLogger.Error(err); sErr != nil {
					mainLog.Load().Error().Err(sErr).Msg("failed to write service log")
				}
				mainLog.Load().Error().Err(err).Msg("failed to start service")
			}
		},
	}
	runCmd.Flags().BoolVarP(&daemon, "daemon", "d", false, "Run as daemon")
	runCmd.Flags().StringVarP(&logPath, "log", "", "", "Path to log file")
	rootCmd.AddCommand(runCmd)
}

// newClientFromConfig returns a control client for the socket of the current config.
func newClientFromConfig() *controlClient {
	initConsoleLogging()
	readConfig()
	return newControlClient(cfg.Service.ControlSocket)
}

func initStatusCmd(rootCmd *cobra.Command) {
	var asJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the DNS manager status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := newClientFromConfig()
			res, err := cc.get(statusPath)
			if err != nil {
				return fmt.Errorf("could not connect to dnsmgr: %w", err)
			}
			defer res.Body.Close()
			var st dnsmanager.Status
			if err := decodeResponse(res, &st); err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			rc, err := resolvconffile.Read(cfg.DNS.Paths().ResolvConf)
			if err != nil {
				mainLog.Load().Debug().Err(err).Msg("could not read resolv.conf")
			}
			renderStatus(cmd.OutOrStdout(), st, rc)
			return nil
		},
	}
	statusCmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Print status as JSON")
	rootCmd.AddCommand(statusCmd)
}

// renderStatus writes st as a table. rc, if not nil, is the resolv.conf read back from disk.
func renderStatus(w io.Writer, st dnsmanager.Status, rc *resolvconffile.File) {
	plugin := st.Plugin
	if plugin == "" {
		plugin = "none"
	}
	data := [][]string{
		{"Mode", st.Mode},
		{"DNS mode", st.DNSMode},
		{"Plugin", plugin},
		{"Explicit", strconv.FormatBool(st.Explicit)},
		{"Hostname", st.Hostname},
		{"Configs", strconv.Itoa(st.Configs)},
		{"Nameservers", strings.Join(st.Nameservers, " ")},
		{"Searches", strings.Join(st.Searches, " ")},
		{"Options", strings.Join(st.Options, " ")},
	}
	if rc != nil {
		state := "in sync"
		if !rc.Matches(dns.OSConfig{Nameservers: st.Nameservers, SearchDomains: st.Searches}) {
			state = "differs"
		}
		data = append(data, []string{rc.Path, state})
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Key", "Value"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(data)
	table.Render()
}

func initConfigCmd(rootCmd *cobra.Command) {
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initConsoleLogging()
			path := defaultConfigFile
			if configPath != "" {
				path = configPath
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists", path)
			}
			var c dnsmgr.Config
			if err := v.Unmarshal(&c); err != nil {
				return fmt.Errorf("could not unmarshal default config: %w", err)
			}
			if err := writeConfigFile(&c, path); err != nil {
				return fmt.Errorf("could not write config file: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Wrote config file:", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing config file")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initConsoleLogging()
			if _, err := loadConfigFile(configPath); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Config is valid")
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
		Args:  cobra.OnlyValidArgs,
		ValidArgs: []string{
			initCmd.Use,
			validateCmd.Use,
		},
	}
	configCmd.AddCommand(initCmd, validateCmd)
	rootCmd.AddCommand(configCmd)
}

// applyFile is the content of a file given to the apply command.
type applyFile struct {
	Hostname string             `json:"hostname,omitempty"`
	Configs  []addConfigRequest `json:"configs"`
}

func initApplyCmd(rootCmd *cobra.Command) {
	applyCmd := &cobra.Command{
		Use:   "apply FILE",
		Short: "Add the IP configs of a JSON file in a single batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var af applyFile
			if err := json.Unmarshal(buf, &af); err != nil {
				return fmt.Errorf("could not parse %s: %w", args[0], err)
			}
			ids, err := applyConfigs(newClientFromConfig(), &af)
			for _, id := range ids {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return err
		},
	}
	rootCmd.AddCommand(applyCmd)
}

// applyConfigs sends the content of af to the control server inside a batch.
// It returns the ids of the configs added.
func applyConfigs(cc *controlClient, af *applyFile) ([]uint64, error) {
	const caller = "apply"
	if err := cc.call(beginPath, &batchRequest{Caller: caller}, nil); err != nil {
		return nil, err
	}
	var ids []uint64
	var errs *multierror.Error
	for i := range af.Configs {
		var resp addConfigResponse
		if err := cc.call(addConfigPath, &af.Configs[i], &resp); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("config %d: %w", i, err))
			continue
		}
		ids = append(ids, resp.ID)
	}
	if af.Hostname != "" {
		if err := cc.call(hostnamePath, &hostnameRequest{Hostname: af.Hostname}, nil); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := cc.call(endPath, &batchRequest{Caller: caller}, nil); err != nil {
		errs = multierror.Append(errs, err)
	}
	return ids, errs.ErrorOrNil()
}

func initRemoveCmd(rootCmd *cobra.Command) {
	removeCmd := &cobra.Command{
		Use:   "remove ID...",
		Short: "Remove IP configs added by apply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := newClientFromConfig()
			for _, arg := range args {
				id, err := strconv.ParseUint(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid config id %q: %w", arg, err)
				}
				if err := cc.call(removeConfigPath, &removeConfigRequest{ID: id}, nil); err != nil {
					return err
				}
			}
			return nil
		},
	}
	rootCmd.AddCommand(removeCmd)
}

func initHostnameCmd(rootCmd *cobra.Command) {
	hostnameCmd := &cobra.Command{
		Use:   "hostname NAME",
		Short: "Set the hostname used to derive a search domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClientFromConfig().call(hostnamePath, &hostnameRequest{Hostname: args[0]}, nil)
		},
	}
	rootCmd.AddCommand(hostnameCmd)
}

func initReloadCmd(rootCmd *cobra.Command) {
	reloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Reload the config file of the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClientFromConfig().call(reloadPath, nil, nil)
		},
	}
	rootCmd.AddCommand(reloadCmd)
}
