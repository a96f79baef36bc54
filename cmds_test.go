package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/tokenfarm/internal/lib/deploy"
	"github.com/TxnLab/tokenfarm/internal/lib/keys"
	"github.com/TxnLab/tokenfarm/internal/lib/store"
	"github.com/TxnLab/tokenfarm/internal/lib/token"
)

type cliHarness struct {
	dataDir  string
	owner    types.Address
	investor types.Address
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	cfgHome := t.TempDir()
	t.Setenv("HOME", cfgHome)
	t.Setenv("XDG_CONFIG_HOME", cfgHome)

	owner, ownerPhrase, err := keys.NewAccount()
	require.NoError(t, err)
	investor, investorPhrase, err := keys.NewAccount()
	require.NoError(t, err)
	t.Setenv(keys.MnemonicEnvPrefix+"_OWNER", ownerPhrase)
	t.Setenv(keys.MnemonicEnvPrefix+"_INVESTOR", investorPhrase)

	// exit codes are asserted via the returned errors instead
	exiter := cli.OsExiter
	cli.OsExiter = func(int) {}
	t.Cleanup(func() { cli.OsExiter = exiter })

	return &cliHarness{dataDir: filepath.Join(t.TempDir(), "data"), owner: owner, investor: investor}
}

func (h *cliHarness) run(args ...string) error {
	App = initApp()
	defer App.close()
	return App.cliCmd.Run(context.Background(), append([]string{"tokenfarm", "--datadir", h.dataDir}, args...))
}

func (h *cliHarness) load(t *testing.T) (*deploy.Deployment, []store.Receipt) {
	t.Helper()
	s, err := store.Open(slog.Default(), h.dataDir)
	require.NoError(t, err)
	defer s.Close()
	state, err := s.Load()
	require.NoError(t, err)
	d, err := deploy.FromState(slog.Default(), state)
	require.NoError(t, err)
	receipts, err := s.Receipts()
	require.NoError(t, err)
	return d, receipts
}

func TestCLIStakeIssueUnstake(t *testing.T) {
	h := newCLIHarness(t)

	require.NoError(t, h.run("init", "--owner", h.owner.String(), "--investor", h.investor.String()))
	cfg, err := LoadNodeConfig()
	require.NoError(t, err)
	assert.Equal(t, h.owner.String(), cfg.Owner)

	require.NoError(t, h.run("farm", "stake", "--from", h.investor.String(), "--amount", "100", "--approve"))
	d, _ := h.load(t)
	assert.True(t, d.StakeToken.BalanceOf(h.investor).IsZero())
	assert.Equal(t, token.Tokens(100), d.StakeToken.BalanceOf(d.Farm.Address()))
	assert.True(t, d.Farm.IsStaking(h.investor))

	// only the owner may issue
	assert.Error(t, h.run("farm", "issue", "--from", h.investor.String(), "--yes"))
	require.NoError(t, h.run("farm", "issue", "--yes"))
	d, receipts := h.load(t)
	assert.Equal(t, token.Tokens(100), d.RewardToken.BalanceOf(h.investor))
	require.Len(t, receipts, 1)
	assert.Equal(t, h.owner, receipts[0].Body.Issuer)
	assert.True(t, keys.VerifySignature(h.owner.String(), receipts[0].Body.SigningBytes(), receipts[0].Signature))

	require.NoError(t, h.run("farm", "unstake", "--from", h.investor.String()))
	d, _ = h.load(t)
	assert.Equal(t, token.Tokens(100), d.StakeToken.BalanceOf(h.investor))
	assert.True(t, d.StakeToken.BalanceOf(d.Farm.Address()).IsZero())
	assert.False(t, d.Farm.IsStaking(h.investor))

	require.NoError(t, h.run("farm", "audit"))
	require.NoError(t, h.run("farm", "receipts"))
}

func TestCLIRequiresInit(t *testing.T) {
	h := newCLIHarness(t)
	assert.Error(t, h.run("farm", "info"))
	assert.Error(t, h.run("token", "balance", "--account", h.investor.String()))
}

func TestCLIRequiresLocalKey(t *testing.T) {
	h := newCLIHarness(t)
	require.NoError(t, h.run("init", "--owner", h.owner.String(), "--investor", h.investor.String()))

	stranger, _, err := keys.NewAccount()
	require.NoError(t, err)
	assert.Error(t, h.run("farm", "stake", "--from", stranger.String(), "--amount", "1", "--approve"))
	assert.Error(t, h.run("token", "transfer", "--from", stranger.String(), "--to", h.investor.String(), "--amount", "1"))

	// issuing needs the issuer's key to sign the receipt
	require.NoError(t, h.run("farm", "stake", "--from", h.investor.String(), "--amount", "10", "--approve"))
	assert.Error(t, h.run("farm", "issue", "--from", stranger.String(), "--yes"))
	d, receipts := h.load(t)
	assert.Empty(t, receipts)
	assert.True(t, d.RewardToken.BalanceOf(h.investor).IsZero())
}

func TestCLITokenCommands(t *testing.T) {
	h := newCLIHarness(t)
	require.NoError(t, h.run("init", "--owner", h.owner.String(), "--investor", h.investor.String()))

	require.NoError(t, h.run("token", "transfer", "--from", h.owner.String(), "--to", h.investor.String(), "--amount", "50"))
	require.NoError(t, h.run("token", "approve", "--from", h.investor.String(), "--amount", "max"))
	require.NoError(t, h.run("token", "info", "--token", "reward"))
	assert.Error(t, h.run("token", "info", "--token", "other"))

	d, _ := h.load(t)
	assert.Equal(t, token.Tokens(150), d.StakeToken.BalanceOf(h.investor))
	assert.Equal(t, token.MaxAmount(), d.StakeToken.Allowance(h.investor, d.Farm.Address()))

	// stake twice under the unlimited allowance, which is never consumed
	require.NoError(t, h.run("farm", "stake", "--from", h.investor.String(), "--amount", "100"))
	require.NoError(t, h.run("farm", "stake", "--from", h.investor.String(), "--amount", "50"))
	d, _ = h.load(t)
	assert.Equal(t, token.Tokens(150), d.Farm.StakingBalance(h.investor))
	assert.Len(t, d.Farm.Stakers(), 1)
}
