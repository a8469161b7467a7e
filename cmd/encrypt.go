package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dedpaste/dedpaste/internal/resolver"
	"github.com/spf13/cobra"
)

var (
	encryptRecipients     []string
	encryptForcePgp       bool
	encryptRefreshGithub  bool
	encryptOutputFile     string
)

func init() {
	rootCmd.AddCommand(encryptCmd)

	encryptCmd.Flags().StringSliceVarP(&encryptRecipients, "recipient", "r", nil, "Recipient identifier (repeatable); omit to encrypt for yourself")
	encryptCmd.Flags().BoolVar(&encryptForcePgp, "pgp", false, "Force the OpenPGP path even for an rsa-natured recipient")
	encryptCmd.Flags().BoolVar(&encryptRefreshGithub, "refresh-github", false, "Bypass the GitHub key cache")
	encryptCmd.Flags().StringVarP(&encryptOutputFile, "output", "o", "", "Write the envelope to a file instead of stdout")
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt [file]",
	Short: "Encrypt plaintext into a versioned envelope",
	Long: `Encrypt reads plaintext from a file argument or stdin, resolves the
given recipients (or self, if none are given), and writes a versioned
JSON envelope.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEncrypt,
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	plaintext, err := readPlaintext(args)
	if err != nil {
		return err
	}

	orch, ctx, _, err := buildOrchestrator()
	if err != nil {
		return err
	}

	spec := recipientSpecFromFlags(encryptRecipients)

	forcePgp := encryptForcePgp || ctx.ForcePgp
	refreshGithub := encryptRefreshGithub || ctx.RefreshGithubKeys
	envelopeBytes, err := orch.Encrypt(context.Background(), plaintext, spec, forcePgp, refreshGithub)
	if err != nil {
		return fmt.Errorf("encrypt failed: %w", err)
	}

	return writeEnvelope(envelopeBytes, encryptOutputFile)
}

func recipientSpecFromFlags(recipients []string) resolver.RecipientSpec {
	switch len(recipients) {
	case 0:
		return resolver.Self()
	case 1:
		return resolver.One(recipients[0])
	default:
		return resolver.Many(recipients)
	}
}

func readPlaintext(args []string) ([]byte, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", args[0], err)
		}
		return data, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return data, nil
}

func writeEnvelope(envelopeBytes []byte, outputFile string) error {
	if outputFile == "" {
		_, err := os.Stdout.Write(append(envelopeBytes, '\n'))
		return err
	}
	if err := os.WriteFile(outputFile, envelopeBytes, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", outputFile, err)
	}
	fmt.Printf("Wrote envelope to %s\n", outputFile)
	return nil
}
