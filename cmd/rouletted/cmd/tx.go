package cmd

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"rugroulette/internal/codec"
	"rugroulette/internal/config"
	"rugroulette/internal/derive"
	"rugroulette/internal/units"
)

const (
	flagKey   = "key"
	flagNonce = "nonce"
	flagHex   = "hex"
)

// TxCmd builds txs and prints them for broadcast_tx. Amounts are decimal
// units ("0.1"); nonces default to the current unix time in nanoseconds,
// which keeps them increasing across invocations.
func TxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Build and sign transactions",
	}
	cmd.PersistentFlags().String(flagKey, "", "name of the signing key under <home>/keys")
	cmd.PersistentFlags().Uint64(flagNonce, 0, "tx nonce (default: unix time in ns)")
	cmd.PersistentFlags().Bool(flagHex, false, "print 0x-prefixed hex instead of JSON")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "mint <to> <amount>",
			Short: "Unsigned devnet faucet mint",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				to, err := derive.ParseAddress(args[0])
				if err != nil {
					return err
				}
				amount, err := units.ParseAmount(args[1])
				if err != nil {
					return err
				}
				tx, err := codec.EncodeTx(codec.TypeBankMint, codec.BankMintTx{To: to, Amount: amount})
				if err != nil {
					return err
				}
				return printTx(cmd, tx)
			},
		},
		signedTxCmd("send <to> <amount>", "Transfer units to another account", 2,
			func(signer derive.Address, args []string) (string, any, error) {
				to, err := derive.ParseAddress(args[0])
				if err != nil {
					return "", nil, err
				}
				amount, err := units.ParseAmount(args[1])
				if err != nil {
					return "", nil, err
				}
				return codec.TypeBankSend, codec.BankSendTx{From: signer, To: to, Amount: amount}, nil
			}),
		signedTxCmd("create-round <entry-fee>", "Create the round owned by the signing key", 1,
			func(signer derive.Address, args []string) (string, any, error) {
				fee, err := units.ParseAmount(args[0])
				if err != nil {
					return "", nil, err
				}
				return codec.TypeCreateRound, codec.CreateRoundTx{Authority: signer, EntryFee: fee}, nil
			}),
		signedTxCmd("enter <round> <outcome>", "Stake the entry fee on an outcome in [0,6)", 2,
			func(signer derive.Address, args []string) (string, any, error) {
				round, err := derive.ParseAddress(args[0])
				if err != nil {
					return "", nil, err
				}
				outcome, err := strconv.ParseUint(args[1], 10, 8)
				if err != nil {
					return "", nil, fmt.Errorf("invalid outcome %q: %w", args[1], err)
				}
				return codec.TypeEnterRound, codec.EnterRoundTx{Participant: signer, Round: round, Outcome: uint8(outcome)}, nil
			}),
		signedTxCmd("resolve <round>", "Resolve a round the signing key owns", 1,
			func(signer derive.Address, args []string) (string, any, error) {
				round, err := derive.ParseAddress(args[0])
				if err != nil {
					return "", nil, err
				}
				return codec.TypeResolveRound, codec.ResolveRoundTx{Authority: signer, Round: round}, nil
			}),
		signedTxCmd("claim <round>", "Claim the signing key's payout share", 1,
			func(signer derive.Address, args []string) (string, any, error) {
				round, err := derive.ParseAddress(args[0])
				if err != nil {
					return "", nil, err
				}
				return codec.TypeClaimPayout, codec.ClaimPayoutTx{Participant: signer, Round: round}, nil
			}),
		signedTxCmd("close <round>", "Close a resolved round and sweep its vault to the authority", 1,
			func(signer derive.Address, args []string) (string, any, error) {
				round, err := derive.ParseAddress(args[0])
				if err != nil {
					return "", nil, err
				}
				return codec.TypeCloseRound, codec.CloseRoundTx{Authority: signer, Round: round}, nil
			}),
	)
	return cmd
}

func signedTxCmd(use, short string, nargs int, build func(signer derive.Address, args []string) (string, any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			priv, err := signingKey(cmd, cfg)
			if err != nil {
				return err
			}
			signer, err := codec.SignerAddress(priv.Public().(ed25519.PublicKey))
			if err != nil {
				return err
			}
			typ, value, err := build(signer, args)
			if err != nil {
				return err
			}
			nonce, err := cmd.Flags().GetUint64(flagNonce)
			if err != nil {
				return err
			}
			if nonce == 0 {
				nonce = uint64(time.Now().UnixNano())
			}
			tx, err := codec.EncodeSignedTx(priv, typ, value, nonce)
			if err != nil {
				return err
			}
			return printTx(cmd, tx)
		},
	}
}

func signingKey(cmd *cobra.Command, cfg config.Config) (ed25519.PrivateKey, error) {
	name, err := cmd.Flags().GetString(flagKey)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("--%s is required", flagKey)
	}
	return loadKey(cfg, name)
}

func printTx(cmd *cobra.Command, tx []byte) error {
	asHex, err := cmd.Flags().GetBool(flagHex)
	if err != nil {
		return err
	}
	if asHex {
		fmt.Fprintf(cmd.OutOrStdout(), "0x%s\n", hex.EncodeToString(tx))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(tx))
	return nil
}
