package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/tokenfarm/internal/lib/token"
)

func tokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "token",
		Usage:   "Which token: stake or reward",
		Value:   "stake",
		Aliases: []string{"t"},
	}
}

func GetTokenCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "token",
		Aliases: []string{"t"},
		Usage:   "Query and move the stake and reward tokens",
		Before:  checkInitialized,
		Commands: []*cli.Command{
			{
				Name:    "info",
				Aliases: []string{"i"},
				Usage:   "Display token details",
				Action:  TokenInfo,
				Flags:   []cli.Flag{tokenFlag()},
			},
			{
				Name:    "balance",
				Aliases: []string{"b"},
				Usage:   "Display the balance of an account",
				Action:  TokenBalance,
				Flags: []cli.Flag{
					tokenFlag(),
					&cli.StringFlag{
						Name:     "account",
						Usage:    "Account to check",
						Required: true,
					},
				},
			},
			{
				Name:   "allowance",
				Usage:  "Display how much a spender may transfer on behalf of an owner",
				Action: TokenAllowance,
				Flags: []cli.Flag{
					tokenFlag(),
					&cli.StringFlag{
						Name:     "owner",
						Usage:    "Account that granted the allowance",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "spender",
						Usage: "Spender.  Defaults to the farm",
					},
				},
			},
			{
				Name:   "approve",
				Usage:  "Approve a spender (the farm by default) to transfer tokens on behalf of an account whose key is loaded",
				Action: TokenApprove,
				Flags: []cli.Flag{
					tokenFlag(),
					&cli.StringFlag{
						Name:     "from",
						Usage:    "Account granting the allowance",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "spender",
						Usage: "Spender.  Defaults to the farm",
					},
					&cli.StringFlag{
						Name:     "amount",
						Usage:    "Allowance in whole tokens, or 'max' for unlimited",
						Required: true,
					},
				},
			},
			{
				Name:   "transfer",
				Usage:  "Transfer tokens from an account whose key is loaded",
				Action: TokenTransfer,
				Flags: []cli.Flag{
					tokenFlag(),
					&cli.StringFlag{
						Name:     "from",
						Usage:    "Sending account",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "to",
						Usage:    "Receiving account",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "amount",
						Usage:    "Amount in whole tokens",
						Required: true,
					},
				},
			},
		},
	}
}

func selectedToken(command *cli.Command) (*token.Ledger, error) {
	tok, err := App.deployment.Token(command.String("token"))
	if err != nil {
		return nil, cli.Exit(err, 1)
	}
	return tok, nil
}

func TokenInfo(ctx context.Context, command *cli.Command) error {
	tok, err := selectedToken(command)
	if err != nil {
		return err
	}
	fmt.Println("Name:", tok.Name())
	fmt.Println("Symbol:", tok.Symbol())
	fmt.Println("Decimals:", tok.Decimals())
	fmt.Println("Total Supply:", formatAmount(tok, tok.TotalSupply()))
	fmt.Println("Farm Holds:", formatAmount(tok, tok.BalanceOf(App.deployment.Farm.Address())))
	return nil
}

func TokenBalance(ctx context.Context, command *cli.Command) error {
	tok, err := selectedToken(command)
	if err != nil {
		return err
	}
	account, err := types.DecodeAddress(command.String("account"))
	if err != nil {
		return cli.Exit(fmt.Errorf("invalid account: %w", err), 1)
	}
	fmt.Println(formatAmount(tok, tok.BalanceOf(account)))
	return nil
}

func TokenAllowance(ctx context.Context, command *cli.Command) error {
	tok, err := selectedToken(command)
	if err != nil {
		return err
	}
	owner, err := types.DecodeAddress(command.String("owner"))
	if err != nil {
		return cli.Exit(fmt.Errorf("invalid owner: %w", err), 1)
	}
	spender, err := spenderOrFarm(command)
	if err != nil {
		return err
	}
	allowance := tok.Allowance(owner, spender)
	if allowance.Eq(token.MaxAmount()) {
		fmt.Println("unlimited")
		return nil
	}
	fmt.Println(formatAmount(tok, allowance))
	return nil
}

func TokenApprove(ctx context.Context, command *cli.Command) error {
	tok, err := selectedToken(command)
	if err != nil {
		return err
	}
	owner, err := App.signerFor(command, "from")
	if err != nil {
		return cli.Exit(err, 1)
	}
	spender, err := spenderOrFarm(command)
	if err != nil {
		return err
	}
	var amount *uint256.Int
	if strings.EqualFold(command.String("amount"), "max") {
		amount = token.MaxAmount()
	} else if amount, err = token.ParseAmount(command.String("amount"), tok.Decimals()); err != nil {
		return cli.Exit(err, 1)
	}
	if err := tok.Approve(owner, spender, amount); err != nil {
		return cli.Exit(err, 1)
	}
	if _, err := App.save(nil); err != nil {
		return err
	}
	fmt.Printf("Approved %s to spend %s of %s\n", spender, command.String("amount"), tok.Symbol())
	return nil
}

func TokenTransfer(ctx context.Context, command *cli.Command) error {
	tok, err := selectedToken(command)
	if err != nil {
		return err
	}
	from, err := App.signerFor(command, "from")
	if err != nil {
		return cli.Exit(err, 1)
	}
	to, err := types.DecodeAddress(command.String("to"))
	if err != nil {
		return cli.Exit(fmt.Errorf("invalid --to address: %w", err), 1)
	}
	amount, err := token.ParseAmount(command.String("amount"), tok.Decimals())
	if err != nil {
		return cli.Exit(err, 1)
	}
	if err := tok.Transfer(from, to, amount); err != nil {
		return cli.Exit(err, 1)
	}
	if _, err := App.save(nil); err != nil {
		return err
	}
	fmt.Printf("Transferred %s to %s\n", formatAmount(tok, amount), to)
	return nil
}

func spenderOrFarm(command *cli.Command) (types.Address, error) {
	if command.String("spender") == "" {
		return App.deployment.Farm.Address(), nil
	}
	spender, err := types.DecodeAddress(command.String("spender"))
	if err != nil {
		return types.Address{}, cli.Exit(fmt.Errorf("invalid spender: %w", err), 1)
	}
	return spender, nil
}
