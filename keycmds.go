package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/TxnLab/tokenfarm/internal/lib/keys"
)

func GetKeyCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "key",
		Aliases: []string{"k"},
		Usage:   "Local signing key related commands",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List accounts whose mnemonics are loaded",
				Action:  KeysList,
			},
			{
				Name:    "new",
				Aliases: []string{"n"},
				Usage:   "Generate a new account, printing its mnemonic as an env entry",
				Action:  KeysNew,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Suffix for the env var name, ie: OWNER gives " + keys.MnemonicEnvPrefix + "_OWNER",
						Value: "NEW",
					},
				},
			},
		},
	}
}

func KeysList(ctx context.Context, command *cli.Command) error {
	accounts := App.signer.Accounts()
	if len(accounts) == 0 {
		fmt.Printf("No keys loaded - add %s_* entries to your environment or .env file\n", keys.MnemonicEnvPrefix)
		return nil
	}
	var owner string
	if App.deployment != nil {
		owner = App.deployment.Farm.Owner().String()
	}
	for _, account := range accounts {
		if account == owner {
			fmt.Println(account, "(farm owner)")
			continue
		}
		fmt.Println(account)
	}
	return nil
}

func KeysNew(ctx context.Context, command *cli.Command) error {
	addr, phrase, err := keys.NewAccount()
	if err != nil {
		return err
	}
	fmt.Println("Address:", addr)
	fmt.Println("Add to your .env file to use this account:")
	fmt.Printf("%s_%s=\"%s\"\n", keys.MnemonicEnvPrefix, strings.ToUpper(command.String("name")), phrase)
	return nil
}
