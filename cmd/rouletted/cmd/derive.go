package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"rugroulette/internal/derive"
)

// DeriveCmd prints the identities a client must pass to enter and claim.
func DeriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive round, vault and entry identities offline",
	}
	cmd.AddCommand(
		deriveSubCmd("round <authority>", "Round identity owned by an authority", 1,
			func(d *derive.Deriver, addrs []derive.Address) (derive.Address, uint8, error) {
				return d.Round(addrs[0])
			}),
		deriveSubCmd("vault <round>", "Custody vault of a round", 1,
			func(d *derive.Deriver, addrs []derive.Address) (derive.Address, uint8, error) {
				return d.Vault(addrs[0])
			}),
		deriveSubCmd("entry <round> <participant>", "Entry record of a participant in a round", 2,
			func(d *derive.Deriver, addrs []derive.Address) (derive.Address, uint8, error) {
				return d.Entry(addrs[0], addrs[1])
			}),
	)
	return cmd
}

func deriveSubCmd(use, short string, nargs int, fn func(*derive.Deriver, []derive.Address) (derive.Address, uint8, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			program, err := cfg.Program()
			if err != nil {
				return err
			}
			addrs := make([]derive.Address, len(args))
			for i, raw := range args {
				if addrs[i], err = derive.ParseAddress(raw); err != nil {
					return fmt.Errorf("arg %d: %w", i+1, err)
				}
			}
			addr, bump, err := fn(derive.NewDeriver(program), addrs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s bump=%d\n", addr, bump)
			return nil
		},
	}
}
