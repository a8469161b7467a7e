package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dedpaste/dedpaste/internal/keyfetch"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.AddCommand(fetchHkpCmd)
	fetchCmd.AddCommand(fetchHostAgentCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Query an external key source directly, bypassing the resolver",
	Long: `fetch talks to C2's external key sources on demand, without going
through recipient resolution or touching the local store.`,
}

var fetchHkpCmd = &cobra.Command{
	Use:   "hkp <identifier>",
	Short: "Look up a key by email or hex key-ID against the configured HKP servers",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetchHkp,
}

var fetchHostAgentCmd = &cobra.Command{
	Use:   "host-agent",
	Short: "List keys known to the local host OpenPGP agent",
	RunE:  runFetchHostAgent,
}

func runFetchHkp(cmd *cobra.Command, args []string) error {
	ctx, err := buildContext()
	if err != nil {
		return err
	}
	fetch, err := keyfetch.New(ctx)
	if err != nil {
		return err
	}

	result, err := fetch.FetchHKP(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("hkp lookup failed: %w", err)
	}

	fmt.Printf("# source: %s\n", result.Origin)
	_, writeErr := os.Stdout.Write(result.Armored)
	return writeErr
}

func runFetchHostAgent(cmd *cobra.Command, args []string) error {
	ctx, err := buildContext()
	if err != nil {
		return err
	}
	fetch, err := keyfetch.New(ctx)
	if err != nil {
		return err
	}

	keys, err := fetch.ListHostAgentKeys(context.Background())
	if err != nil {
		return fmt.Errorf("listing host agent keys: %w", err)
	}
	if len(keys) == 0 {
		fmt.Println("No keys reported by the host agent")
		return nil
	}
	for _, k := range keys {
		fmt.Printf("%s  %s  created=%s expires=%s trust=%s  %s\n", k.RecordType, k.KeyID, k.CreatedAt, k.ExpiresAt, k.Trust, k.UID)
	}
	return nil
}
