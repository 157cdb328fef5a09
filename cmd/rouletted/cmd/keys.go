package cmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rugroulette/internal/codec"
	"rugroulette/internal/config"
	"rugroulette/internal/derive"
)

// keyFile is the on-disk form of a devnet signing key.
type keyFile struct {
	Name    string         `json:"name"`
	Address derive.Address `json:"address"`
	Seed    string         `json:"seed"` // hex ed25519 seed
}

func KeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage local ed25519 signing keys",
	}
	cmd.AddCommand(keysNewCmd(), keysShowCmd())
	return cmd
}

func keysNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <name>",
		Short: "Generate a key and store it under <home>/keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path := keyPath(cfg, args[0])
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("key %q already exists at %s", args[0], path)
			}
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			addr, err := codec.SignerAddress(pub)
			if err != nil {
				return err
			}
			kf := keyFile{Name: args[0], Address: addr, Seed: hex.EncodeToString(priv.Seed())}
			bz, err := json.MarshalIndent(kf, "", "  ")
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return fmt.Errorf("create keys dir: %w", err)
			}
			if err := os.WriteFile(path, bz, 0o600); err != nil {
				return fmt.Errorf("write key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.String())
			return nil
		},
	}
}

func keysShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print the address of a stored key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			priv, err := loadKey(cfg, args[0])
			if err != nil {
				return err
			}
			addr, err := codec.SignerAddress(priv.Public().(ed25519.PublicKey))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.String())
			return nil
		},
	}
}

func keyPath(cfg config.Config, name string) string {
	return filepath.Join(cfg.Home, "keys", name+".json")
}

func loadKey(cfg config.Config, name string) (ed25519.PrivateKey, error) {
	bz, err := os.ReadFile(keyPath(cfg, name))
	if err != nil {
		return nil, fmt.Errorf("read key %q: %w", name, err)
	}
	var kf keyFile
	if err := json.Unmarshal(bz, &kf); err != nil {
		return nil, fmt.Errorf("decode key %q: %w", name, err)
	}
	seed, err := hex.DecodeString(kf.Seed)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key %q: invalid seed", name)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
