/*
 * Copyright (c) 2022. TxnLab Inc.
 * All Rights reserved.
 */

package keys

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"golang.org/x/crypto/ed25519"

	"github.com/TxnLab/tokenfarm/internal/lib/misc"
)

// MnemonicEnvPrefix is the prefix of env vars (or .env entries) holding account mnemonics.
const MnemonicEnvPrefix = "ALGO_MNEMONIC"

var ErrNoSigner = errors.New("no local keys present for any of the accounts")

// MultipleWalletSigner is the set of accounts this process can act as.  A farm operation is only
// performed 'from' an account whose key is held locally.
type MultipleWalletSigner interface {
	HasAccount(publicAddress string) bool
	FindFirstSigner(addresses []string) (string, error)
	Accounts() []string
	SignBytes(publicAddress string, data []byte) ([]byte, error)
}

func NewLocalKeyStore(log *slog.Logger) *LocalKeyStore {
	keyStore := &LocalKeyStore{
		log:  log,
		keys: map[string]ed25519.PrivateKey{},
	}
	return keyStore
}

type LocalKeyStore struct {
	log *slog.Logger

	sync.RWMutex
	keys map[string]ed25519.PrivateKey
}

func (lk *LocalKeyStore) HasAccount(publicAddress string) bool {
	lk.RLock()
	defer lk.RUnlock()
	_, found := lk.keys[publicAddress]
	return found
}

// FindFirstSigner returns the first of addresses we hold keys for.
func (lk *LocalKeyStore) FindFirstSigner(addresses []string) (string, error) {
	for _, addr := range addresses {
		if lk.HasAccount(addr) {
			return addr, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoSigner, strings.Join(addresses, ", "))
}

func (lk *LocalKeyStore) Accounts() []string {
	lk.RLock()
	defer lk.RUnlock()
	var accounts []string
	for account := range lk.keys {
		accounts = append(accounts, account)
	}
	slices.Sort(accounts)
	return accounts
}

// SignBytes signs arbitrary data with the key of publicAddress.
func (lk *LocalKeyStore) SignBytes(publicAddress string, data []byte) ([]byte, error) {
	lk.RLock()
	key, found := lk.keys[publicAddress]
	lk.RUnlock()
	if !found {
		return nil, fmt.Errorf("key not found for address %s", publicAddress)
	}
	return crypto.SignBytes(key, data)
}

// LoadFromEnvironment loads mnemonics from every secret (env var, .env entry) starting with
// MnemonicEnvPrefix, returning the number loaded.
func (lk *LocalKeyStore) LoadFromEnvironment() (int, error) {
	var numMnemonics int
	for _, key := range misc.SecretKeys(MnemonicEnvPrefix) {
		envMnemonic := misc.GetSecret(key)
		if envMnemonic == "" {
			continue
		}
		if err := lk.AddMnemonic(envMnemonic); err != nil {
			return numMnemonics, fmt.Errorf("mnemonic in %s: %w", key, err)
		}
		numMnemonics++
	}
	misc.Infof(lk.log, "loaded %d mnemonics", numMnemonics)
	return numMnemonics, nil
}

func (lk *LocalKeyStore) AddMnemonic(mnemonicPhrase string) error {
	key, err := mnemonic.ToPrivateKey(mnemonicPhrase)
	if err != nil {
		return fmt.Errorf("failed to add mnemonic: %w", err)
	}
	account, err := crypto.AccountFromPrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to add mnemonic: %w", err)
	}
	lk.Lock()
	lk.keys[account.Address.String()] = key
	lk.Unlock()
	misc.Debugf(lk.log, "Added data for pk:%s", account.Address.String())
	return nil
}

// NewAccount generates a fresh account, returning its address and 25-word mnemonic.
func NewAccount() (types.Address, string, error) {
	account := crypto.GenerateAccount()
	phrase, err := mnemonic.FromPrivateKey(account.PrivateKey)
	if err != nil {
		return types.Address{}, "", err
	}
	return account.Address, phrase, nil
}

// VerifySignature checks a signature produced by SignBytes.
func VerifySignature(publicAddress string, data []byte, signature []byte) bool {
	addr, err := types.DecodeAddress(publicAddress)
	if err != nil {
		return false
	}
	return crypto.VerifyBytes(addr[:], data, signature)
}
