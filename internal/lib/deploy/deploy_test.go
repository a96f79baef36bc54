package deploy

import (
	"log/slog"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TxnLab/tokenfarm/internal/lib/farm"
	"github.com/TxnLab/tokenfarm/internal/lib/token"
)

var (
	owner    = crypto.GetApplicationAddress(500)
	investor = crypto.GetApplicationAddress(501)
)

func TestReferenceDeployment(t *testing.T) {
	d, err := Build(slog.Default(), ReferenceGenesis(owner, investor))
	require.NoError(t, err)

	assert.Equal(t, "Mock DAI Token", d.StakeToken.Name())
	assert.Equal(t, "DApp Token", d.RewardToken.Name())
	assert.Equal(t, "Dapp Token Farm", d.Farm.Name())
	assert.Equal(t, token.Tokens(1_000_000), d.RewardToken.BalanceOf(d.Farm.Address()))
	assert.Equal(t, token.Tokens(100), d.StakeToken.BalanceOf(investor))
	assert.Equal(t, token.Tokens(1_000_000), d.StakeToken.TotalSupply())
	assert.Equal(t, owner, d.Farm.Owner())
	assert.Equal(t, farm.AddressForFarm(DefaultFarmID), d.Farm.Address())
}

func TestGenesisYAML(t *testing.T) {
	data, err := ReferenceGenesis(owner, investor).Marshal()
	require.NoError(t, err)

	gen, err := ParseGenesis(data)
	require.NoError(t, err)
	assert.Equal(t, ReferenceGenesis(owner, investor), gen)
}

func TestParseGenesis(t *testing.T) {
	doc := `
farm:
  owner: ` + owner.String() + `
stakeToken:
  name: Stake
  symbol: STK
  decimals: 6
  allocations:
    - account: ` + investor.String() + `
      amount: "12.5"
rewardToken:
  name: Reward
  symbol: RWD
  farmFunding: "500"
`
	gen, err := ParseGenesis([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultFarmID), gen.Farm.ID)

	d, err := Build(slog.Default(), gen)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), d.StakeToken.Decimals())
	assert.Equal(t, "12500000", d.StakeToken.BalanceOf(investor).Dec())
	assert.Equal(t, token.Tokens(500), d.RewardToken.BalanceOf(d.Farm.Address()))
}

func TestParseGenesisErrors(t *testing.T) {
	testCases := map[string]string{
		"bad yaml":     "farm: [",
		"bad owner":    "farm:\n  owner: nope\n",
		"missing name": "farm:\n  owner: " + owner.String() + "\nstakeToken:\n  symbol: X\nrewardToken:\n  name: R\n  symbol: R\n",
	}
	for name, doc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGenesis([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidGenesis)
		})
	}
}

func TestBuildRejectsBadAllocation(t *testing.T) {
	gen := ReferenceGenesis(owner, investor)
	gen.StakeToken.Allocations[0].Amount = "lots"
	_, err := Build(slog.Default(), gen)
	assert.ErrorIs(t, err, ErrInvalidGenesis)
}

func TestStakeTokenCustodyStartsEmpty(t *testing.T) {
	farmAddr := farm.AddressForFarm(DefaultFarmID)
	testCases := map[string]func(gen *Genesis){
		"farm funding": func(gen *Genesis) { gen.StakeToken.FarmFunding = "50" },
		"allocation to farm": func(gen *Genesis) {
			gen.StakeToken.Allocations = append(gen.StakeToken.Allocations, Allocation{Account: farmAddr.String(), Amount: "50"})
		},
	}
	for name, mutate := range testCases {
		t.Run(name, func(t *testing.T) {
			gen := ReferenceGenesis(owner, investor)
			mutate(gen)
			_, err := Build(slog.Default(), gen)
			assert.ErrorIs(t, err, ErrInvalidGenesis)

			data, err := gen.Marshal()
			require.NoError(t, err)
			_, err = ParseGenesis(data)
			assert.ErrorIs(t, err, ErrInvalidGenesis)
		})
	}

	// the reward token may still fund the farm
	d, err := Build(slog.Default(), ReferenceGenesis(owner, investor))
	require.NoError(t, err)
	assert.True(t, d.Farm.Audit().OK())
}

func TestStateRoundTrip(t *testing.T) {
	d, err := Build(slog.Default(), ReferenceGenesis(owner, investor))
	require.NoError(t, err)
	require.NoError(t, d.StakeToken.Approve(investor, d.Farm.Address(), token.Tokens(100)))
	require.NoError(t, d.Farm.Stake(investor, token.Tokens(100)))

	restored, err := FromState(slog.Default(), d.State())
	require.NoError(t, err)
	assert.Equal(t, d.State(), restored.State())
	assert.Equal(t, token.Tokens(100), restored.Farm.StakingBalance(investor))

	tok, err := restored.Token("reward")
	require.NoError(t, err)
	assert.Same(t, restored.RewardToken, tok)
	_, err = restored.Token("other")
	assert.Error(t, err)
}
