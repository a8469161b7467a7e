package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dedpaste/dedpaste/internal/appconfig"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage dedpaste configuration",
	Long:  `Get, set, or list the settings stored in ~/.dedpaste/config.yaml.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	RunE:  runConfigList,
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	ctx, err := buildContext()
	if err != nil {
		return err
	}

	value, ok := configValues(ctx)[args[0]]
	if !ok {
		return fmt.Errorf("unknown config key: %s", args[0])
	}
	fmt.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	ctx, err := buildContext()
	if err != nil {
		return err
	}

	key, value := args[0], args[1]
	boolValue, parseErr := strconv.ParseBool(value)

	switch key {
	case "use_host_agent":
		if parseErr != nil {
			return fmt.Errorf("%s expects a bool, got %q", key, value)
		}
		ctx.UseHostAgent = boolValue
	case "auto_fetch":
		if parseErr != nil {
			return fmt.Errorf("%s expects a bool, got %q", key, value)
		}
		ctx.AutoFetch = boolValue
	case "refresh_github_keys":
		if parseErr != nil {
			return fmt.Errorf("%s expects a bool, got %q", key, value)
		}
		ctx.RefreshGithubKeys = boolValue
	case "verify_keybase_proofs":
		if parseErr != nil {
			return fmt.Errorf("%s expects a bool, got %q", key, value)
		}
		ctx.VerifyKeybaseProofs = boolValue
	case "force_pgp":
		if parseErr != nil {
			return fmt.Errorf("%s expects a bool, got %q", key, value)
		}
		ctx.ForcePgp = boolValue
	case "remember_passphrase":
		if parseErr != nil {
			return fmt.Errorf("%s expects a bool, got %q", key, value)
		}
		ctx.RememberPassphrase = boolValue
	case "host_agent_exec":
		ctx.HostAgentExec = value
	default:
		return fmt.Errorf("unknown or read-only config key: %s", key)
	}

	if err := ctx.SaveFile(); err != nil {
		return fmt.Errorf("saving config.yaml: %w", err)
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

func runConfigList(cmd *cobra.Command, args []string) error {
	ctx, err := buildContext()
	if err != nil {
		return err
	}

	values := configValues(ctx)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s = %s\n", k, values[k])
	}
	return nil
}

// configValues flattens the settings config.yaml persists into the
// same key = value shape the teacher's config.List returns, plus a
// read-only keyservers entry sourced from keyservers.ini / the
// documented defaults.
func configValues(ctx *appconfig.Context) map[string]string {
	return map[string]string{
		"use_host_agent":        strconv.FormatBool(ctx.UseHostAgent),
		"auto_fetch":            strconv.FormatBool(ctx.AutoFetch),
		"refresh_github_keys":   strconv.FormatBool(ctx.RefreshGithubKeys),
		"verify_keybase_proofs": strconv.FormatBool(ctx.VerifyKeybaseProofs),
		"force_pgp":             strconv.FormatBool(ctx.ForcePgp),
		"remember_passphrase":   strconv.FormatBool(ctx.RememberPassphrase),
		"host_agent_exec":       ctx.HostAgentExec,
		"keyservers":            strings.Join(ctx.Keyservers, ","),
	}
}
