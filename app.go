package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/joho/godotenv"
	"github.com/ssgreg/repeat"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/TxnLab/tokenfarm/internal/lib/deploy"
	"github.com/TxnLab/tokenfarm/internal/lib/keys"
	"github.com/TxnLab/tokenfarm/internal/lib/misc"
	"github.com/TxnLab/tokenfarm/internal/lib/store"
)

var logLevel = new(slog.LevelVar) // Info by default

func initApp() *FarmApp {
	log.SetFlags(0)
	var logger *slog.Logger
	if term.IsTerminal(int(os.Stdout.Fd())) {
		// Are we running on something where output is a tty - so we're being run as CLI vs as a daemon
		logger = slog.New(misc.NewMinimalHandler(os.Stdout,
			misc.MinimalHandlerOptions{SlogOpts: slog.HandlerOptions{Level: logLevel, AddSource: true}}))
	} else {
		// not on console - output as json, but change json key names to be more compatible w/ what google logging
		// expects
		opts := &slog.HandlerOptions{
			AddSource: true,
			Level:     logLevel,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.MessageKey {
					a.Key = "message"
				} else if a.Key == slog.LevelKey && len(groups) == 0 {
					a.Key = "severity"
				}
				return a
			},
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	slog.SetDefault(logger)
	if os.Getenv("DEBUG") == "1" {
		logLevel.Set(slog.LevelDebug)
	}

	misc.LoadEnvSettings(logger)

	// We initialize our wrapper instance first, so we can call its methods in the 'Before' lambda func
	// in initialization of cli App instance.
	appConfig := &FarmApp{logger: logger}

	appConfig.cliCmd = &cli.Command{
		Name:    "tokenfarm",
		Usage:   "Stake tokens into a Dapp Token Farm and issue rewards to stakers",
		Version: misc.GetVersionInfo(),
		Before: func(ctx context.Context, cmd *cli.Command) error {
			// This is further bootstrap of the 'app' but within context of 'cli' helper as it will
			// have access to flags and options already set.
			return appConfig.initClients(ctx, cmd)
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			return appConfig.close()
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "envfile",
				Usage:   "env file to load",
				Sources: cli.EnvVars("FARM_ENVFILE"),
				Aliases: []string{"e"},
			},
			&cli.StringFlag{
				Name:    "profile",
				Usage:   "Load .env.{profile} overrides - ie: locally generated mnemonics for a dev profile",
				Sources: cli.EnvVars("FARM_PROFILE"),
				Aliases: []string{"p"},
			},
			&cli.StringFlag{
				Name:    "datadir",
				Usage:   "Directory holding the farm state database.  Defaults to a directory in the user config dir",
				Sources: cli.EnvVars("FARM_DATADIR"),
				Aliases: []string{"d"},
			},
			&cli.UintFlag{
				Name:        "farm",
				Usage:       "The farm id.  Used by init to override the genesis farm id, and otherwise checked against the stored farm",
				Sources:     cli.EnvVars("FARM_ID"),
				Destination: &appConfig.farmID,
				OnlyOnce:    true,
			},
		},
		Commands: []*cli.Command{
			GetInitCmdOpts(),
			GetFarmCmdOpts(),
			GetTokenCmdOpts(),
			GetKeyCmdOpts(),
			GetDaemonCmdOpts(),
		},
	}
	return appConfig
}

type FarmApp struct {
	cliCmd     *cli.Command
	logger     *slog.Logger
	signer     keys.MultipleWalletSigner
	store      *store.Store
	deployment *deploy.Deployment

	// just here for flag bootstrapping destination
	farmID uint64
}

// initClients loads env overrides and signing keys, then opens the state db and loads the
// deployment if one has been initialized.
func (ac *FarmApp) initClients(ctx context.Context, cmd *cli.Command) error {
	if envfile := cmd.String("envfile"); envfile != "" {
		err := loadNamedEnvFile(ctx, envfile)
		if err != nil {
			return err
		}
	}
	if profile := cmd.String("profile"); profile != "" {
		misc.LoadEnvForProfile(ac.logger, profile)
	}

	// This will load and initialize mnemonics from the environment - and handles all 'local' signing for the app
	keyStore := keys.NewLocalKeyStore(ac.logger)
	if _, err := keyStore.LoadFromEnvironment(); err != nil {
		return err
	}
	ac.signer = keyStore

	dataDir := cmd.String("datadir")
	if dataDir == "" {
		cfgDir, err := ConfigDir()
		if err != nil {
			return err
		}
		dataDir = filepath.Join(cfgDir, "data")
	}
	if err := ac.openStore(ctx, dataDir); err != nil {
		return err
	}
	return ac.loadDeployment()
}

// openStore retries for a short while as the daemon may briefly hold the db lock.
func (ac *FarmApp) openStore(ctx context.Context, dataDir string) error {
	var err error
	err = repeat.Repeat(
		repeat.Fn(func() error {
			ac.store, err = store.Open(ac.logger, dataDir)
			if err != nil {
				return repeat.HintTemporary(err)
			}
			return nil
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(5),
		repeat.FnOnError(func(err error) error {
			misc.Warnf(ac.logger, "retrying open of state db, error:%v", err)
			return err
		}),
		repeat.WithDelay(
			repeat.SetContextHintStop(),
			(&repeat.FullJitterBackoffBuilder{
				BaseDelay: 250 * time.Millisecond,
				MaxDelay:  2 * time.Second,
			}).Set(),
		),
	)
	return err
}

// loadDeployment rebuilds the deployment from the state db.  An uninitialized db isn't an error
// here - commands needing a deployment check via checkInitialized.
func (ac *FarmApp) loadDeployment() error {
	state, err := ac.store.Load()
	if errors.Is(err, store.ErrNotInitialized) {
		ac.deployment = nil
		return nil
	}
	if err != nil {
		return err
	}
	deployment, err := deploy.FromState(ac.logger, state)
	if err != nil {
		return fmt.Errorf("unable to restore farm state: %w", err)
	}
	ac.deployment = deployment
	return nil
}

// save persists the current deployment, along with receipt if not nil.
func (ac *FarmApp) save(receipt *store.Receipt) (uint64, error) {
	// nothing before this point can be rolled back any longer
	ac.deployment.StakeToken.Commit()
	ac.deployment.RewardToken.Commit()
	return ac.store.Save(ac.deployment.State(), receipt)
}

func (ac *FarmApp) close() error {
	if ac.store == nil {
		return nil
	}
	err := ac.store.Close()
	ac.store = nil
	return err
}

// signerFor decodes the address in the named flag and verifies we hold its key.
func (ac *FarmApp) signerFor(command *cli.Command, flagName string) (types.Address, error) {
	addr, err := types.DecodeAddress(command.String(flagName))
	if err != nil {
		return types.Address{}, fmt.Errorf("invalid --%s address: %w", flagName, err)
	}
	if !ac.signer.HasAccount(addr.String()) {
		return types.Address{}, fmt.Errorf("%w: %s", keys.ErrNoSigner, addr)
	}
	return addr, nil
}

func checkInitialized(ctx context.Context, command *cli.Command) error {
	if App.deployment == nil {
		return cli.Exit(store.ErrNotInitialized, 1)
	}
	if App.farmID != 0 && App.farmID != App.deployment.Farm.ID() {
		return cli.Exit(fmt.Errorf("farm id %d requested but state db holds farm %d", App.farmID, App.deployment.Farm.ID()), 1)
	}
	return nil
}

func loadNamedEnvFile(ctx context.Context, envFile string) error {
	misc.Infof(App.logger, "loading env file:%s", envFile)
	return godotenv.Load(envFile)
}
