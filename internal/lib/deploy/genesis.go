package deploy

import (
	"errors"
	"fmt"
	"os"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/TxnLab/tokenfarm/internal/lib/farm"
	"github.com/TxnLab/tokenfarm/internal/lib/token"
)

// DefaultFarmID is the farm id used when a genesis file doesn't set one.
const DefaultFarmID = 1001

var ErrInvalidGenesis = errors.New("invalid genesis")

// Genesis describes the initial state of a deployment: the two tokens with their allocations,
// and the farm with its owner.  Amounts are whole-token decimal strings.
type Genesis struct {
	Farm struct {
		ID    uint64 `yaml:"id"`
		Owner string `yaml:"owner"`
	} `yaml:"farm"`
	StakeToken  TokenGenesis `yaml:"stakeToken"`
	RewardToken TokenGenesis `yaml:"rewardToken"`
}

type TokenGenesis struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals *uint8 `yaml:"decimals,omitempty"`
	// FarmFunding is minted directly into the farm's custody account.
	FarmFunding string       `yaml:"farmFunding,omitempty"`
	Allocations []Allocation `yaml:"allocations,omitempty"`
}

type Allocation struct {
	Account string `yaml:"account"`
	Amount  string `yaml:"amount"`
}

func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseGenesis(data)
}

func ParseGenesis(data []byte) (*Genesis, error) {
	var gen Genesis
	if err := yaml.Unmarshal(data, &gen); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGenesis, err)
	}
	if gen.Farm.ID == 0 {
		gen.Farm.ID = DefaultFarmID
	}
	if err := gen.validate(); err != nil {
		return nil, err
	}
	return &gen, nil
}

// validate checks the genesis is deployable.  Farm custody of the stake token must start empty,
// since every unit in custody has to be backed by a staking balance.
func (g *Genesis) validate() error {
	if _, err := types.DecodeAddress(g.Farm.Owner); err != nil {
		return fmt.Errorf("%w: farm owner %q: %v", ErrInvalidGenesis, g.Farm.Owner, err)
	}
	for _, tg := range []*TokenGenesis{&g.StakeToken, &g.RewardToken} {
		if tg.Name == "" || tg.Symbol == "" {
			return fmt.Errorf("%w: tokens need a name and symbol", ErrInvalidGenesis)
		}
	}
	if g.StakeToken.FarmFunding != "" {
		return fmt.Errorf("%w: stake token can't fund the farm", ErrInvalidGenesis)
	}
	farmAddr := farm.AddressForFarm(g.Farm.ID)
	for _, alloc := range g.StakeToken.Allocations {
		if alloc.Account == farmAddr.String() {
			return fmt.Errorf("%w: stake token allocation to farm custody account %s", ErrInvalidGenesis, farmAddr)
		}
	}
	return nil
}

func (g *Genesis) Marshal() ([]byte, error) {
	return yaml.Marshal(g)
}

// ReferenceGenesis is the reference deployment: a 1,000,000 mDAI supply held by the owner with
// 100 mDAI given to the investor, and the entire 1,000,000 DApp supply funding the farm.
func ReferenceGenesis(owner, investor types.Address) *Genesis {
	decimals := uint8(token.DefaultDecimals)
	gen := &Genesis{}
	gen.Farm.ID = DefaultFarmID
	gen.Farm.Owner = owner.String()
	gen.StakeToken = TokenGenesis{
		Name:     "Mock DAI Token",
		Symbol:   "mDAI",
		Decimals: &decimals,
		Allocations: []Allocation{
			{Account: owner.String(), Amount: "999900"},
			{Account: investor.String(), Amount: "100"},
		},
	}
	gen.RewardToken = TokenGenesis{
		Name:        "DApp Token",
		Symbol:      "DAPP",
		Decimals:    &decimals,
		FarmFunding: "1000000",
	}
	return gen
}
