package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dedpaste/dedpaste/internal/paste"
	"github.com/spf13/cobra"
)

var (
	decryptPrivateKeyPath string
	decryptPassphrase     string
	decryptOutputFile     string
)

func init() {
	rootCmd.AddCommand(decryptCmd)

	decryptCmd.Flags().StringVar(&decryptPrivateKeyPath, "private-key", "", "Armored OpenPGP private key file for the V3 fallback path")
	decryptCmd.Flags().StringVar(&decryptPassphrase, "passphrase", "", "Passphrase for --private-key")
	decryptCmd.Flags().StringVarP(&decryptOutputFile, "output", "o", "", "Write the decrypted plaintext to a file instead of stdout")
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt [file]",
	Short: "Decrypt a versioned envelope",
	Long: `Decrypt reads an envelope from a file argument or stdin, routes it by
version, and writes the recovered plaintext.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecrypt,
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	envelopeBytes, err := readEnvelope(args)
	if err != nil {
		return err
	}

	orch, _, _, err := buildOrchestrator()
	if err != nil {
		return err
	}

	plaintext, info, err := orch.Decrypt(context.Background(), envelopeBytes, paste.DecryptOpts{
		PrivateKeyPath: decryptPrivateKeyPath,
		Passphrase:     decryptPassphrase,
	})
	if err != nil {
		return fmt.Errorf("decrypt failed: %w", err)
	}

	if decryptOutputFile == "" {
		if _, err := os.Stdout.Write(plaintext); err != nil {
			return err
		}
	} else {
		if err := os.WriteFile(decryptOutputFile, plaintext, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", decryptOutputFile, err)
		}
		fmt.Printf("Wrote plaintext to %s\n", decryptOutputFile)
	}

	if info != nil && info.Sender != "" {
		fmt.Fprintf(os.Stderr, "sender: %s\n", info.Sender)
	}
	return nil
}

func readEnvelope(args []string) ([]byte, error) {
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
