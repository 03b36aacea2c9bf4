package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"pve-lxc/internal/config"
	"pve-lxc/internal/logger"
	"pve-lxc/internal/service"

	"github.com/spf13/cobra"
)

type cmdGlobal struct {
	out io.Writer
	svc *service.ProxmoxService

	flagConfig    string
	flagHost      string
	flagNode      string
	flagUser      string
	flagTokenID   string
	flagLogLevel  string
	flagLogFormat string
	flagInsecure  bool
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := &cmdGlobal{out: out}

	app := &cobra.Command{}
	app.Use = "pve-lxc"
	app.Short = "Manage the LXC containers of a Proxmox VE node"
	app.SilenceUsage = true
	app.SilenceErrors = true
	app.PersistentPreRunE = global.PreRun

	app.PersistentFlags().StringVarP(&global.flagConfig, "config", "c", "", "Path to a YAML or JSON config file")
	app.PersistentFlags().StringVar(&global.flagHost, "host", "", "Proxmox host[:port] (env PVE_HOST)")
	app.PersistentFlags().StringVar(&global.flagNode, "node", "", "Proxmox node name (env PVE_NODE)")
	app.PersistentFlags().StringVar(&global.flagUser, "user", "", "User for ticket login, e.g. root@pam (env PVE_USER, password in PVE_PASSWORD)")
	app.PersistentFlags().StringVar(&global.flagTokenID, "token-id", "", "API token id user@realm!name (env PVE_TOKEN_ID, secret in PVE_TOKEN_SECRET)")
	app.PersistentFlags().StringVar(&global.flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	app.PersistentFlags().StringVar(&global.flagLogFormat, "log-format", "", "Log format (text, json)")
	app.PersistentFlags().BoolVar(&global.flagInsecure, "insecure", false, "Skip TLS certificate verification")

	listCmd := cmdList{global: global}
	app.AddCommand(listCmd.Command())

	createCmd := cmdCreate{global: global}
	app.AddCommand(createCmd.Command())

	deleteCmd := cmdDelete{global: global}
	app.AddCommand(deleteCmd.Command())

	statusCmd := cmdStatus{global: global}
	app.AddCommand(statusCmd.Command())

	for _, action := range []string{"start", "stop", "shutdown"} {
		actionCmd := cmdAction{global: global, action: action}
		app.AddCommand(actionCmd.Command())
	}

	configCmd := cmdConfig{global: global}
	app.AddCommand(configCmd.Command())

	checkCmd := cmdCheck{global: global}
	app.AddCommand(checkCmd.Command())

	app.SetArgs(args)
	app.SetOut(out)

	return app.ExecuteContext(ctx)
}

// PreRun builds the configuration from file, environment and flags, in that
// order of precedence, and connects the service.
func (c *cmdGlobal) PreRun(cmd *cobra.Command, args []string) error {
	if !needsService(cmd) {
		return nil
	}

	var cfg *config.AppConfig
	if c.flagConfig != "" {
		loaded, err := config.Load(c.flagConfig)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = config.NewConfig(&config.ProxmoxConfig{}, config.NewLog(config.DefaultLogLevel, config.DefaultLogFormat))
	}

	pve := cfg.Proxmox
	override(&pve.Host, os.Getenv("PVE_HOST"), c.flagHost)
	override(&pve.Node, os.Getenv("PVE_NODE"), c.flagNode)
	override(&pve.Username, os.Getenv("PVE_USER"), c.flagUser)
	override(&pve.Password, os.Getenv("PVE_PASSWORD"))
	override(&pve.TokenID, os.Getenv("PVE_TOKEN_ID"), c.flagTokenID)
	override(&pve.TokenSecret, os.Getenv("PVE_TOKEN_SECRET"))
	override(&cfg.Log.Level, c.flagLogLevel)
	override(&cfg.Log.Format, c.flagLogFormat)

	if c.flagInsecure {
		pve.InsecureSkipVerify = true
	}

	if err := logger.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	svc, err := service.NewProxmoxServiceFromConfig(pve)
	if err != nil {
		return err
	}

	c.svc = svc

	return nil
}

// needsService is false for cobra's own help and completion commands.
func needsService(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		switch cmd.Name() {
		case "help", "completion":
			return false
		}
	}

	return true
}

// override sets *dst to the last non-empty value.
func override(dst *string, values ...string) {
	for _, v := range values {
		if v != "" {
			*dst = v
		}
	}
}
