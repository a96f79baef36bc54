package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/syndtr/goleveldb/leveldb"
	dberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/TxnLab/tokenfarm/internal/lib/farm"
	"github.com/TxnLab/tokenfarm/internal/lib/misc"
	"github.com/TxnLab/tokenfarm/internal/lib/token"
)

const schemaVersion uint64 = 1

var (
	ErrNotInitialized     = errors.New("farm state not initialized - run init first")
	ErrUnsupportedVersion = errors.New("unsupported state schema version")
)

var (
	keyVersion     = []byte("meta/version")
	keyReceiptSeq  = []byte("meta/receiptseq")
	keyStakeToken  = []byte("token/stake")
	keyRewardToken = []byte("token/reward")
	keyFarm        = []byte("farm")
	receiptPrefix  = []byte("receipt/")
)

// State is everything needed to rebuild a farm deployment: both token ledgers and the farm.
type State struct {
	StakeToken  token.Snapshot
	RewardToken token.Snapshot
	Farm        farm.Snapshot
}

// Store persists farm state in leveldb.  Each Save is a single atomic batch.
type Store struct {
	logger *slog.Logger
	db     *leveldb.DB
}

func Open(logger *slog.Logger, path string) (*Store, error) {
	ldbOpts := opt.Options{
		BlockCacheCapacity: 8 * opt.MiB,
		WriteBuffer:        4 * opt.MiB,
	}
	db, err := leveldb.OpenFile(path, &ldbOpts)
	if _, corrupted := err.(*dberrors.ErrCorrupted); corrupted {
		misc.Warnf(logger, "state db at %s corrupted, attempting recovery: %v", path, err)
		db, err = leveldb.RecoverFile(path, &ldbOpts)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open state db at %s: %w", path, err)
	}
	misc.Debugf(logger, "opened state db at %s", path)
	return &Store{logger: logger, db: db}, nil
}

// OpenInMemory returns a store backed by memory only - for tests and dry runs.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Store{logger: logger, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Initialized() (bool, error) {
	return s.db.Has(keyVersion, nil)
}

func (s *Store) Load() (*State, error) {
	raw, err := s.db.Get(keyVersion, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	if len(raw) != 8 || binary.BigEndian.Uint64(raw) != schemaVersion {
		return nil, ErrUnsupportedVersion
	}
	var state State
	for _, item := range []struct {
		key []byte
		obj any
	}{
		{keyStakeToken, &state.StakeToken},
		{keyRewardToken, &state.RewardToken},
		{keyFarm, &state.Farm},
	} {
		if err := s.get(item.key, item.obj); err != nil {
			return nil, err
		}
	}
	return &state, nil
}

// Save writes state, and the receipt if not nil, in one batch.  The receipt is assigned the next
// sequence number, which is returned.
func (s *Store) Save(state *State, receipt *Receipt) (uint64, error) {
	var (
		batch = new(leveldb.Batch)
		seq   uint64
	)
	batch.Put(keyVersion, uint64Bytes(schemaVersion))
	batch.Put(keyStakeToken, msgpack.Encode(state.StakeToken))
	batch.Put(keyRewardToken, msgpack.Encode(state.RewardToken))
	batch.Put(keyFarm, msgpack.Encode(state.Farm))

	if receipt != nil {
		lastSeq, err := s.lastReceiptSeq()
		if err != nil {
			return 0, err
		}
		seq = lastSeq + 1
		receipt.Seq = seq
		batch.Put(keyReceiptSeq, uint64Bytes(seq))
		batch.Put(receiptKey(seq), msgpack.Encode(receipt))
	}
	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return 0, fmt.Errorf("unable to save farm state: %w", err)
	}
	misc.Debugf(s.logger, "state saved, receipt seq:%d", seq)
	return seq, nil
}

// Reset deletes all state and receipts, leaving an uninitialized store.
func (s *Store) Reset() error {
	batch := new(leveldb.Batch)
	iter := s.db.NewIterator(nil, nil)
	for iter.Next() {
		batch.Delete(append([]byte{}, iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return err
	}
	misc.Infof(s.logger, "resetting state db, removing %d keys", batch.Len())
	return s.db.Write(batch, &opt.WriteOptions{Sync: true})
}

func (s *Store) get(key []byte, obj any) error {
	raw, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return fmt.Errorf("%w: missing %s", ErrNotInitialized, key)
	}
	if err != nil {
		return err
	}
	if err := msgpack.Decode(raw, obj); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

func (s *Store) lastReceiptSeq() (uint64, error) {
	raw, err := s.db.Get(keyReceiptSeq, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

func uint64Bytes(val uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, val)
	return b
}

func receiptKey(seq uint64) []byte {
	return append(append([]byte{}, receiptPrefix...), uint64Bytes(seq)...)
}
