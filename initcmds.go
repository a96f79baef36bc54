package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/tokenfarm/internal/lib/deploy"
	"github.com/TxnLab/tokenfarm/internal/lib/misc"
)

func GetInitCmdOpts() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Deploy the stake token, reward token and farm - from a genesis file or the reference deployment",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "genesis",
				Usage:   "YAML genesis file to deploy.  If not set, the reference deployment is used with --owner and --investor",
				Aliases: []string{"g"},
			},
			&cli.StringFlag{
				Name:  "owner",
				Usage: "Farm owner for the reference deployment (receives the mDAI not given to the investor)",
			},
			&cli.StringFlag{
				Name:  "investor",
				Usage: "Investor for the reference deployment (receives 100 mDAI)",
			},
			&cli.BoolFlag{
				Name:  "print",
				Usage: "Print the genesis that would be deployed, as YAML, and exit",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Usage:   "Don't ask for confirmation before replacing an existing deployment",
				Aliases: []string{"y"},
			},
		},
		Action: InitFarm,
	}
}

func InitFarm(ctx context.Context, command *cli.Command) error {
	gen, err := loadOrReferenceGenesis(command)
	if err != nil {
		return cli.Exit(err, 1)
	}
	if App.farmID != 0 {
		gen.Farm.ID = App.farmID
	}
	if command.Bool("print") {
		data, err := gen.Marshal()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	}

	initialized, err := App.store.Initialized()
	if err != nil {
		return err
	}
	if initialized {
		if !command.Bool("yes") {
			if _, err := yesNo("Farm state already exists - replace it, discarding all balances and receipts"); err != nil {
				return cli.Exit(errors.New("init cancelled"), 1)
			}
		}
		if err := App.store.Reset(); err != nil {
			return err
		}
	}

	deployment, err := deploy.Build(App.logger, gen)
	if err != nil {
		return cli.Exit(err, 1)
	}
	App.deployment = deployment
	if _, err := App.save(nil); err != nil {
		return err
	}

	if !nodeConfigExists() {
		err = SaveNodeConfig(&NodeConfig{
			Owner:        gen.Farm.Owner,
			EpochMinutes: DefaultEpochMinutes,
			MetricsAddr:  DefaultMetricsAddr,
		})
		if err != nil {
			return err
		}
	}
	if !App.signer.HasAccount(gen.Farm.Owner) {
		misc.Warnf(App.logger, "no key loaded for farm owner %s - rewards can't be issued from this node until it is", gen.Farm.Owner)
	}
	fmt.Printf("Deployed %s id:%d\n", deployment.Farm.Name(), deployment.Farm.ID())
	fmt.Println("Farm address:", deployment.Farm.Address())
	fmt.Println("Stake token:", deployment.StakeToken)
	fmt.Println("Reward token:", deployment.RewardToken)
	return nil
}

func loadOrReferenceGenesis(command *cli.Command) (*deploy.Genesis, error) {
	if path := command.String("genesis"); path != "" {
		return deploy.LoadGenesis(path)
	}
	owner, err := getAccount(command, "owner", "Farm owner account")
	if err != nil {
		return nil, err
	}
	investor, err := getAccount(command, "investor", "Investor account")
	if err != nil {
		return nil, err
	}
	return deploy.ReferenceGenesis(owner, investor), nil
}

// getAccount returns the address in the named flag, prompting for it if not set.
func getAccount(command *cli.Command, flagName string, prompt string) (types.Address, error) {
	val := command.String(flagName)
	if val == "" {
		var err error
		val, err = getAlgoAccount(prompt, "")
		if err != nil {
			return types.Address{}, err
		}
	}
	addr, err := types.DecodeAddress(val)
	if err != nil {
		return types.Address{}, fmt.Errorf("invalid --%s address: %w", flagName, err)
	}
	return addr, nil
}

func getAlgoAccount(prompt string, defVal string) (string, error) {
	return (&promptui.Prompt{
		Label:   prompt,
		Default: defVal,
		Validate: func(s string) error {
			_, err := types.DecodeAddress(s)
			return err
		},
	}).Run()
}

func yesNo(prompt string) (string, error) {
	return (&promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	}).Run()
}
