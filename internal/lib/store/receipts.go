package store

import (
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/TxnLab/tokenfarm/internal/lib/farm"
)

// Receipt records one successful reward issuance, signed by the owner that triggered it.
type Receipt struct {
	Seq       uint64      `codec:"seq"`
	Body      ReceiptBody `codec:"body"`
	Signature []byte      `codec:"sig"`
}

type ReceiptBody struct {
	FarmID  uint64          `codec:"farm"`
	Issuer  types.Address   `codec:"iss"`
	Time    int64           `codec:"ts"`
	Total   string          `codec:"tot"`
	Payouts []ReceiptPayout `codec:"pay"`
}

type ReceiptPayout struct {
	Account types.Address `codec:"acct"`
	Amount  string        `codec:"amt"`
}

// NewReceiptBody captures an issuance made by issuer at unix time 'at'.
func NewReceiptBody(farmID uint64, issuer types.Address, at int64, issuance *farm.Issuance) ReceiptBody {
	body := ReceiptBody{FarmID: farmID, Issuer: issuer, Time: at, Total: issuance.Total.Dec()}
	for _, payout := range issuance.Payouts {
		body.Payouts = append(body.Payouts, ReceiptPayout{Account: payout.Account, Amount: payout.Amount.Dec()})
	}
	return body
}

// SigningBytes is the canonical encoding of the body - what the issuer signs.
func (b ReceiptBody) SigningBytes() []byte {
	return msgpack.Encode(b)
}

// Receipts returns every stored receipt in sequence order.
func (s *Store) Receipts() ([]Receipt, error) {
	var receipts []Receipt
	iter := s.db.NewIterator(util.BytesPrefix(receiptPrefix), nil)
	defer iter.Release()
	for iter.Next() {
		var receipt Receipt
		if err := msgpack.Decode(iter.Value(), &receipt); err != nil {
			return nil, fmt.Errorf("decoding receipt %x: %w", iter.Key(), err)
		}
		receipts = append(receipts, receipt)
	}
	return receipts, iter.Error()
}
