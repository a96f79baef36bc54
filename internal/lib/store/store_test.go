package store

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TxnLab/tokenfarm/internal/lib/farm"
	"github.com/TxnLab/tokenfarm/internal/lib/token"
)

var (
	owner    = crypto.GetApplicationAddress(100)
	investor = crypto.GetApplicationAddress(101)
)

func testState(t *testing.T) *State {
	t.Helper()
	dai := token.New("Mock DAI Token", "mDAI", token.DefaultDecimals)
	dapp := token.New("DApp Token", "DAPP", token.DefaultDecimals)
	require.NoError(t, dai.Mint(investor, token.Tokens(100)))
	ledger, err := farm.New(slog.Default(), 1, owner, dai, dapp)
	require.NoError(t, err)
	require.NoError(t, dapp.Mint(ledger.Address(), token.Tokens(1_000_000)))
	require.NoError(t, dai.Approve(investor, ledger.Address(), token.Tokens(100)))
	require.NoError(t, ledger.Stake(investor, token.Tokens(60)))

	return &State{StakeToken: dai.Snapshot(), RewardToken: dapp.Snapshot(), Farm: ledger.Snapshot()}
}

func TestLoadUninitialized(t *testing.T) {
	s, err := OpenInMemory(slog.Default())
	require.NoError(t, err)
	defer s.Close()

	initialized, err := s.Initialized()
	require.NoError(t, err)
	assert.False(t, initialized)

	_, err = s.Load()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestSaveLoad(t *testing.T) {
	s, err := OpenInMemory(slog.Default())
	require.NoError(t, err)
	defer s.Close()

	state := testState(t)
	seq, err := s.Save(state, nil)
	require.NoError(t, err)
	assert.Zero(t, seq)

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, state.Farm, loaded.Farm)
	assert.Equal(t, state.StakeToken.Balances, loaded.StakeToken.Balances)
	assert.Equal(t, state.StakeToken.Allowances, loaded.StakeToken.Allowances)
	assert.Equal(t, "60000000000000000000", loaded.Farm.Stakers[0].Balance)

	dai, err := token.FromSnapshot(loaded.StakeToken)
	require.NoError(t, err)
	dapp, err := token.FromSnapshot(loaded.RewardToken)
	require.NoError(t, err)
	ledger, err := farm.FromSnapshot(slog.Default(), loaded.Farm, dai, dapp)
	require.NoError(t, err)
	assert.Equal(t, token.Tokens(40), dai.BalanceOf(investor))
	assert.Equal(t, token.Tokens(60), dai.BalanceOf(ledger.Address()))
	assert.Equal(t, token.Tokens(40), dai.Allowance(investor, ledger.Address()))
	assert.Equal(t, token.Tokens(1_000_000), dapp.BalanceOf(ledger.Address()))
	assert.Equal(t, "DApp Token", dapp.Name())
	assert.True(t, ledger.IsStaking(investor))
	assert.Equal(t, owner, ledger.Owner())
}

func TestReceipts(t *testing.T) {
	s, err := OpenInMemory(slog.Default())
	require.NoError(t, err)
	defer s.Close()

	state := testState(t)
	issuance := &farm.Issuance{
		Payouts: []farm.Payout{{Account: investor, Amount: token.Tokens(60)}},
		Total:   token.Tokens(60),
	}
	for i := 0; i < 3; i++ {
		body := NewReceiptBody(1, owner, int64(1_700_000_000+i), issuance)
		seq, err := s.Save(state, &Receipt{Body: body, Signature: []byte{byte(i)}})
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), seq)
	}

	receipts, err := s.Receipts()
	require.NoError(t, err)
	require.Len(t, receipts, 3)
	for i, receipt := range receipts {
		assert.Equal(t, uint64(i+1), receipt.Seq)
		assert.Equal(t, int64(1_700_000_000+i), receipt.Body.Time)
		assert.Equal(t, investor, receipt.Body.Payouts[0].Account)
	}
	assert.Equal(t, receipts[0].Body.Payouts, NewReceiptBody(1, owner, 0, issuance).Payouts)
}

func TestReset(t *testing.T) {
	s, err := OpenInMemory(slog.Default())
	require.NoError(t, err)
	defer s.Close()

	state := testState(t)
	body := NewReceiptBody(1, owner, 1_700_000_000, &farm.Issuance{Total: token.Tokens(0)})
	_, err = s.Save(state, &Receipt{Body: body})
	require.NoError(t, err)

	require.NoError(t, s.Reset())
	initialized, err := s.Initialized()
	require.NoError(t, err)
	assert.False(t, initialized)
	receipts, err := s.Receipts()
	require.NoError(t, err)
	assert.Empty(t, receipts)

	// receipt numbering restarts
	seq, err := s.Save(state, &Receipt{Body: body})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	s, err := Open(slog.Default(), path)
	require.NoError(t, err)
	state := testState(t)
	_, err = s.Save(state, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(slog.Default(), path)
	require.NoError(t, err)
	defer s.Close()
	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, state.Farm, loaded.Farm)
}
