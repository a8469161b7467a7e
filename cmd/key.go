package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dedpaste/dedpaste/internal/cipher"
	"github.com/dedpaste/dedpaste/internal/keyfetch"
	"github.com/dedpaste/dedpaste/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keySelfCmd)
	keyCmd.AddCommand(keyFriendCmd)
	keyCmd.AddCommand(keyPgpCmd)
	keyCmd.AddCommand(keyKeybaseCmd)
	keyCmd.AddCommand(keyGithubCmd)
	keyCmd.AddCommand(keyListCmd)
	keyCmd.AddCommand(keyRemoveCmd)
	keyCmd.AddCommand(keySearchCmd)

	keyListCmd.Flags().String("backend", "", "Restrict listing to one backend (self, friend, pgp, keybase, github)")
	keyRemoveCmd.Flags().String("backend", "", "Backend to remove from (required)")
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage keys in the local key store",
	Long:  `Add, list, remove, or search keys across the store's five backends.`,
}

var keySelfCmd = &cobra.Command{
	Use:   "self",
	Short: "Generate (or regenerate) your own RSA-4096 keypair",
	RunE:  runKeySelf,
}

var keyFriendCmd = &cobra.Command{
	Use:   "friend <name> <pem-file>",
	Short: "Add a friend's RSA public key by name",
	Args:  cobra.ExactArgs(2),
	RunE:  runKeyFriend,
}

var keyPgpCmd = &cobra.Command{
	Use:   "pgp <id> <armored-file>",
	Short: "Import an ASCII-armored OpenPGP public key under the pgp backend",
	Args:  cobra.ExactArgs(2),
	RunE:  runKeyPgp,
}

var keyKeybaseCmd = &cobra.Command{
	Use:   "keybase <username>",
	Short: "Fetch and store a Keybase user's OpenPGP key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeyKeybase,
}

var keyGithubCmd = &cobra.Command{
	Use:   "github <username>",
	Short: "Fetch and store a GitHub user's OpenPGP key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeyGithub,
}

var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keys in every backend, or in one with --backend",
	RunE:  runKeyList,
}

var keyRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a key by backend and id",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeyRemove,
}

var keySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search keys across every backend",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeySearch,
}

func runKeySelf(cmd *cobra.Command, args []string) error {
	_, _, st, err := buildOrchestrator()
	if err != nil {
		return err
	}

	pub, priv, err := cipher.GenerateSelfKeypair()
	if err != nil {
		return fmt.Errorf("generating keypair: %w", err)
	}
	fingerprint, err := store.FingerprintRSA(pub)
	if err != nil {
		return err
	}

	rec, err := st.PutSelf(pub, priv, fingerprint)
	if err != nil {
		return fmt.Errorf("storing self key: %w", err)
	}

	fmt.Printf("Generated self key (fingerprint %s)\n", rec.Fingerprint)
	fmt.Printf("  public:  %s\n", rec.PublicPath)
	fmt.Printf("  private: %s\n", rec.PrivatePath)
	return nil
}

func runKeyFriend(cmd *cobra.Command, args []string) error {
	_, _, st, err := buildOrchestrator()
	if err != nil {
		return err
	}

	name, pemPath := args[0], args[1]
	pemBytes, err := os.ReadFile(pemPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", pemPath, err)
	}

	rec, err := st.PutFriend(name, pemBytes)
	if err != nil {
		return fmt.Errorf("storing friend key: %w", err)
	}
	fmt.Printf("Added friend %q (fingerprint %s)\n", rec.ID, rec.Fingerprint)
	return nil
}

func runKeyPgp(cmd *cobra.Command, args []string) error {
	_, _, st, err := buildOrchestrator()
	if err != nil {
		return err
	}

	id, armorPath := args[0], args[1]
	armored, err := os.ReadFile(armorPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", armorPath, err)
	}

	entity, err := cipher.ReadArmoredPublicKey(armored)
	if err != nil {
		return fmt.Errorf("parsing openpgp key: %w", err)
	}
	fingerprint := fmt.Sprintf("%X", entity.PrimaryKey.Fingerprint)

	rec, err := st.PutOpenPGP(store.BackendPgp, id, fingerprint, armored, store.KeyAttrs{
		Name: cipher.PrimaryUserID(entity),
	})
	if err != nil {
		return fmt.Errorf("storing pgp key: %w", err)
	}
	fmt.Printf("Imported pgp key %q (fingerprint %s)\n", rec.ID, rec.Fingerprint)
	return nil
}

func runKeyKeybase(cmd *cobra.Command, args []string) error {
	_, ctx, st, err := buildOrchestrator()
	if err != nil {
		return err
	}

	username := args[0]
	fetch, err := keyfetch.New(ctx)
	if err != nil {
		return err
	}

	result, err := fetch.FetchKeybase(context.Background(), username, ctx.VerifyKeybaseProofs)
	if err != nil {
		return fmt.Errorf("fetching keybase key: %w", err)
	}

	rec, err := st.PutOpenPGP(store.BackendKeybase, username, result.Fingerprint, result.Armored, store.KeyAttrs{
		Username:          username,
		SourceURLOrOrigin: result.Origin,
	})
	if err != nil {
		return fmt.Errorf("storing keybase key: %w", err)
	}
	fmt.Printf("Fetched keybase key for %q (fingerprint %s)\n", rec.ID, rec.Fingerprint)
	return nil
}

func runKeyGithub(cmd *cobra.Command, args []string) error {
	_, ctx, st, err := buildOrchestrator()
	if err != nil {
		return err
	}

	username := args[0]
	fetch, err := keyfetch.New(ctx)
	if err != nil {
		return err
	}

	result, err := fetch.FetchGithub(context.Background(), username, ctx.RefreshGithubKeys)
	if err != nil {
		return fmt.Errorf("fetching github key: %w", err)
	}

	entity, err := cipher.ReadArmoredPublicKey(result.Armored)
	fingerprint := result.Fingerprint
	if err == nil && fingerprint == "" {
		fingerprint = fmt.Sprintf("%X", entity.PrimaryKey.Fingerprint)
	}

	rec, err := st.PutOpenPGP(store.BackendGithub, username, fingerprint, result.Armored, store.KeyAttrs{
		Username:          username,
		SourceURLOrOrigin: result.Origin,
	})
	if err != nil {
		return fmt.Errorf("storing github key: %w", err)
	}
	fmt.Printf("Fetched github key for %q (fingerprint %s)\n", rec.ID, rec.Fingerprint)
	return nil
}

func runKeyList(cmd *cobra.Command, args []string) error {
	_, _, st, err := buildOrchestrator()
	if err != nil {
		return err
	}

	backendFlag, _ := cmd.Flags().GetString("backend")
	backends := []store.Backend{store.BackendSelf, store.BackendFriend, store.BackendPgp, store.BackendKeybase, store.BackendGithub}
	if backendFlag != "" {
		backends = []store.Backend{store.Backend(backendFlag)}
	}

	any := false
	for _, b := range backends {
		recs, err := st.List(b)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			any = true
			fmt.Printf("%s/%s  fingerprint=%s  last_used=%s\n", rec.Backend, rec.ID, rec.Fingerprint, formatTime(rec.LastUsedAt))
		}
	}
	if !any {
		fmt.Println("No keys found")
	}
	return nil
}

func runKeyRemove(cmd *cobra.Command, args []string) error {
	_, _, st, err := buildOrchestrator()
	if err != nil {
		return err
	}

	backendFlag, _ := cmd.Flags().GetString("backend")
	if backendFlag == "" {
		return fmt.Errorf("--backend is required")
	}

	removed, err := st.Remove(store.Backend(backendFlag), args[0])
	if err != nil {
		return err
	}
	if !removed {
		fmt.Printf("No key found for %s/%s\n", backendFlag, args[0])
		return nil
	}
	fmt.Printf("Removed %s/%s\n", backendFlag, args[0])
	return nil
}

func runKeySearch(cmd *cobra.Command, args []string) error {
	_, _, st, err := buildOrchestrator()
	if err != nil {
		return err
	}

	results, err := st.Search(args[0])
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matches")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%s/%s  fingerprint=%s\n", r.Record.Backend, r.Record.ID, r.Record.Fingerprint)
	}
	return nil
}

func formatTime(t interface{ IsZero() bool }) string {
	if t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%v", t)
}
