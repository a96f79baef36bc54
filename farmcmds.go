package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/tokenfarm/internal/lib/keys"
	"github.com/TxnLab/tokenfarm/internal/lib/misc"
	"github.com/TxnLab/tokenfarm/internal/lib/store"
	"github.com/TxnLab/tokenfarm/internal/lib/token"
)

func GetFarmCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "farm",
		Aliases: []string{"f"},
		Usage:   "Stake, unstake and issue rewards",
		Before:  checkInitialized,
		Commands: []*cli.Command{
			{
				Name:    "info",
				Aliases: []string{"i"},
				Usage:   "Display farm summary",
				Action:  FarmInfo,
			},
			{
				Name:   "balance",
				Usage:  "Display the staking balance and status of an account",
				Action: FarmBalance,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "account",
						Usage:    "Account to check",
						Required: true,
					},
				},
			},
			{
				Name:   "stake",
				Usage:  "Stake tokens from an account whose key is loaded.  The farm must be approved to spend them first (see --approve)",
				Action: FarmStake,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "from",
						Usage:    "Account staking",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "amount",
						Usage:    "Amount of stake token to stake, in whole tokens (ie: 100 or 12.5)",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "approve",
						Usage: "Approve the farm for the amount first",
					},
				},
			},
			{
				Name:   "unstake",
				Usage:  "Withdraw the entire staking balance of an account",
				Action: FarmUnstake,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "from",
						Usage:    "Account unstaking",
						Required: true,
					},
				},
			},
			{
				Name:   "issue",
				Usage:  "Pay every staker reward token equal to their staking balance.  Normally happens automatically as part of daemon operations",
				Action: FarmIssue,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "from",
						Usage: "Account issuing - must be the farm owner.  Defaults to the owner",
					},
					&cli.BoolFlag{
						Name:    "yes",
						Usage:   "Don't ask for confirmation",
						Aliases: []string{"y"},
					},
				},
			},
			{
				Name:    "ledger",
				Aliases: []string{"l"},
				Usage:   "List every staker in registry order",
				Action:  FarmLedger,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Include stakers that are no longer staking",
						Value: false,
					},
				},
			},
			{
				Name:   "audit",
				Usage:  "Verify custody and registry invariants",
				Action: FarmAudit,
			},
			{
				Name:   "receipts",
				Usage:  "List issuance receipts, verifying each signature",
				Action: FarmReceipts,
			},
		},
	}
}

func FarmInfo(ctx context.Context, command *cli.Command) error {
	ledger := App.deployment.Farm
	stakers := ledger.Stakers()
	var active int
	for _, staker := range stakers {
		if staker.IsStaking {
			active++
		}
	}
	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", ledger.Name())
	fmt.Fprintf(tw, "ID:\t%d\n", ledger.ID())
	fmt.Fprintf(tw, "Address:\t%s\n", ledger.Address())
	fmt.Fprintf(tw, "Owner:\t%s\n", ledger.Owner())
	fmt.Fprintf(tw, "Stake Token:\t%s\n", App.deployment.StakeToken)
	fmt.Fprintf(tw, "Reward Token:\t%s\n", App.deployment.RewardToken)
	fmt.Fprintf(tw, "Stakers:\t%d (%d active)\n", len(stakers), active)
	fmt.Fprintf(tw, "Total Staked:\t%s\n", formatStake(ledger.TotalStaked()))
	fmt.Fprintf(tw, "Reward Avail:\t%s\n", formatReward(App.deployment.RewardToken.BalanceOf(ledger.Address())))
	tw.Flush()
	fmt.Print(out.String())
	return nil
}

func FarmBalance(ctx context.Context, command *cli.Command) error {
	account, err := types.DecodeAddress(command.String("account"))
	if err != nil {
		return cli.Exit(fmt.Errorf("invalid account: %w", err), 1)
	}
	ledger := App.deployment.Farm
	fmt.Printf("Staking balance: %s\n", formatStake(ledger.StakingBalance(account)))
	fmt.Printf("Staking: %v\n", ledger.IsStaking(account))
	return nil
}

func FarmStake(ctx context.Context, command *cli.Command) error {
	staker, err := App.signerFor(command, "from")
	if err != nil {
		return cli.Exit(err, 1)
	}
	amount, err := token.ParseAmount(command.String("amount"), App.deployment.StakeToken.Decimals())
	if err != nil {
		return cli.Exit(err, 1)
	}
	if command.Bool("approve") {
		if err := App.deployment.StakeToken.Approve(staker, App.deployment.Farm.Address(), amount); err != nil {
			return err
		}
	}
	if err := App.deployment.Farm.Stake(staker, amount); err != nil {
		return cli.Exit(err, 1)
	}
	if _, err := App.save(nil); err != nil {
		return err
	}
	fmt.Printf("Staked %s, staking balance now %s\n", formatStake(amount), formatStake(App.deployment.Farm.StakingBalance(staker)))
	return nil
}

func FarmUnstake(ctx context.Context, command *cli.Command) error {
	staker, err := App.signerFor(command, "from")
	if err != nil {
		return cli.Exit(err, 1)
	}
	amount := App.deployment.Farm.StakingBalance(staker)
	if err := App.deployment.Farm.Unstake(staker); err != nil {
		return cli.Exit(err, 1)
	}
	if _, err := App.save(nil); err != nil {
		return err
	}
	fmt.Printf("Unstaked %s\n", formatStake(amount))
	return nil
}

func FarmIssue(ctx context.Context, command *cli.Command) error {
	issuer := App.deployment.Farm.Owner()
	if from := command.String("from"); from != "" {
		var err error
		issuer, err = types.DecodeAddress(from)
		if err != nil {
			return cli.Exit(fmt.Errorf("invalid --from address: %w", err), 1)
		}
	}
	if !command.Bool("yes") {
		if _, err := yesNo(fmt.Sprintf("Issue %s to all stakers", formatReward(App.deployment.Farm.TotalStaked()))); err != nil {
			return cli.Exit(errors.New("issuance cancelled"), 1)
		}
	}
	receipt, err := issueAndRecord(issuer)
	if err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Printf("Issued %s to %d stakers, receipt #%d\n", formatRewardDec(receipt.Body.Total), len(receipt.Body.Payouts), receipt.Seq)
	return nil
}

// issueAndRecord issues rewards as issuer, persisting the resulting state together with a receipt
// signed by the issuer.  If the state can't be saved, the in-memory deployment is reloaded so
// it matches what's stored.
func issueAndRecord(issuer types.Address) (*store.Receipt, error) {
	signer, err := App.signer.FindFirstSigner([]string{issuer.String()})
	if err != nil {
		return nil, err
	}
	issuance, err := App.deployment.Farm.IssueRewards(issuer)
	if err != nil {
		return nil, err
	}
	receipt := &store.Receipt{Body: store.NewReceiptBody(App.deployment.Farm.ID(), issuer, time.Now().Unix(), issuance)}
	receipt.Signature, err = App.signer.SignBytes(signer, receipt.Body.SigningBytes())
	if err == nil {
		_, err = App.save(receipt)
	}
	if err != nil {
		if reloadErr := App.loadDeployment(); reloadErr != nil {
			misc.Errorf(App.logger, "unable to reload farm state after failed save: %v", reloadErr)
		}
		return nil, fmt.Errorf("issuance not recorded: %w", err)
	}
	return receipt, nil
}

func FarmLedger(ctx context.Context, command *cli.Command) error {
	stakers := App.deployment.Farm.Stakers()
	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tAccount\tStaked\tStaking\t")
	for i, staker := range stakers {
		if !staker.IsStaking && !command.Bool("all") {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%v\t\n", i+1, staker.Account, formatStake(staker.Balance), staker.IsStaking)
	}
	fmt.Fprintf(tw, "TOTAL\t\t%s\t\t\n", formatStake(App.deployment.Farm.TotalStaked()))
	tw.Flush()
	fmt.Print(out.String())
	return nil
}

func FarmAudit(ctx context.Context, command *cli.Command) error {
	report := App.deployment.Farm.Audit()
	fmt.Printf("Stakers: %d (%d active)\n", report.Stakers, report.ActiveStakers)
	fmt.Printf("Total staked: %s\n", formatStake(report.TotalStaked))
	fmt.Printf("Custody balance: %s\n", formatStake(report.Custody))
	fmt.Printf("Reward available: %s\n", formatReward(report.RewardAvailable))
	if report.OK() {
		fmt.Println("OK")
		return nil
	}
	for _, problem := range report.Problems {
		fmt.Println("PROBLEM:", problem)
	}
	return cli.Exit(fmt.Errorf("audit found %d problems", len(report.Problems)), 2)
}

func FarmReceipts(ctx context.Context, command *cli.Command) error {
	receipts, err := App.store.Receipts()
	if err != nil {
		return err
	}
	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTime\tIssuer\tStakers\tTotal\tSignature\t")
	var invalid int
	for _, receipt := range receipts {
		sigStatus := "valid"
		if !keys.VerifySignature(receipt.Body.Issuer.String(), receipt.Body.SigningBytes(), receipt.Signature) {
			sigStatus = "INVALID"
			invalid++
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t\n", receipt.Seq, time.Unix(receipt.Body.Time, 0).UTC().Format(time.RFC3339),
			receipt.Body.Issuer, len(receipt.Body.Payouts), formatRewardDec(receipt.Body.Total), sigStatus)
	}
	tw.Flush()
	fmt.Print(out.String())
	if invalid > 0 {
		return cli.Exit(fmt.Errorf("%d receipts have invalid signatures", invalid), 2)
	}
	return nil
}

func formatStake(amount *uint256.Int) string {
	return formatAmount(App.deployment.StakeToken, amount)
}

func formatReward(amount *uint256.Int) string {
	return formatAmount(App.deployment.RewardToken, amount)
}

// formatRewardDec formats a base unit decimal string, as stored in receipts.
func formatRewardDec(amount string) string {
	val, err := uint256.FromDecimal(amount)
	if err != nil {
		return amount
	}
	return formatReward(val)
}

func formatAmount(tok *token.Ledger, amount *uint256.Int) string {
	return token.FormatAmount(amount, tok.Decimals()) + " " + tok.Symbol()
}
