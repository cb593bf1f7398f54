package services

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/pubkeyapp/realms-vsr-holders/internal/config"
	"github.com/pubkeyapp/realms-vsr-holders/internal/governance"
	"github.com/pubkeyapp/realms-vsr-holders/internal/vsr"
)

const testNow = 1_750_000_000

var errRPCDown = errors.New("connection refused")

// fakeSource is an in-memory AccountSource keyed by owning program
type fakeSource struct {
	mu       sync.Mutex
	programs map[solana.PublicKey][]RawAccount
	scanErr  map[solana.PublicKey]error
	fetchErr error
	scans    atomic.Int32
	fetches  atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		programs: make(map[solana.PublicKey][]RawAccount),
		scanErr:  make(map[solana.PublicKey]error),
	}
}

func (f *fakeSource) add(program solana.PublicKey, address solana.PublicKey, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.programs[program] = append(f.programs[program], RawAccount{Address: address, Data: data})
}

func (f *fakeSource) ScanProgramAccounts(_ context.Context, programID solana.PublicKey, filters ...ScanFilter) ([]RawAccount, error) {
	f.scans.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.scanErr[programID]; err != nil {
		return nil, errors.Join(ErrAccountSource, err)
	}
	var out []RawAccount
	for _, account := range f.programs[programID] {
		ok := true
		for _, filter := range filters {
			ok = ok && filter.Matches(account.Data)
		}
		if ok {
			out = append(out, account)
		}
	}
	return out, nil
}

func (f *fakeSource) FetchAccount(_ context.Context, address solana.PublicKey) (*RawAccount, error) {
	f.fetches.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fetchErr != nil {
		return nil, errors.Join(ErrAccountSource, f.fetchErr)
	}
	for _, accounts := range f.programs {
		for _, account := range accounts {
			if account.Address.Equals(address) {
				acc := account
				return &acc, nil
			}
		}
	}
	return nil, nil
}

func testKeys(t *testing.T) config.GovernanceKeys {
	t.Helper()
	keys, err := config.GovernanceConfig{
		VSRProgramID:        "vsr2nfGVNHmSY8uxoBGqq8AQbwz3JwaEaHqGbsTPXqQ",
		GovernanceProgramID: "GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw",
		Realm:               "F9VL4wo49aUe8FufjMbU6uhdfyDRqKY54WpzdpncUSk9",
		Registrar:           "5sGLEKcJ35UGdbHtSWMtGbhLqRycQJSCaUAyEpnz6TA2",
		GoverningMint:       "Ds52CDgqdWbTWsua1hgT3AuSSy4FNx2Ezge1br3jQ14a",
	}.Keys()
	require.NoError(t, err)
	return keys
}

// voterAccount builds a voter buffer owned by authority with unlocked
// deposits in the lockup bearing slots, in table order
func voterAccount(authority solana.PublicKey, amounts ...float64) []byte {
	data := make([]byte, vsr.VoterV1.AccountSize)
	copy(data[vsr.VoterV1.AuthorityOffset:], authority[:])
	for i, amount := range amounts {
		offset := vsr.VoterV1.DepositSlots[i].AmountOffset
		binary.LittleEndian.PutUint64(data[offset:], uint64(amount*1e6))
	}
	return data
}

// delegatedRecord builds a record delegated to delegate
func delegatedRecord(delegate solana.PublicKey, amount float64) []byte {
	data := make([]byte, governance.TokenOwnerRecordV1.Size)
	binary.LittleEndian.PutUint64(data[governance.DelegatedRecordV1.AmountOffset:], uint64(amount*1e6))
	copy(data[governance.DelegatedRecordV1.DelegateOffset:], delegate[:])
	return data
}

// tokenOwnerRecord builds wallet's record in the configured realm
func tokenOwnerRecord(keys config.GovernanceKeys, owner solana.PublicKey, raw uint64) []byte {
	l := governance.TokenOwnerRecordV1
	data := make([]byte, l.Size)
	copy(data[l.RealmOffset:], keys.Realm[:])
	copy(data[l.MintOffset:], keys.GoverningMint[:])
	copy(data[l.OwnerOffset:], owner[:])
	binary.LittleEndian.PutUint64(data[l.AmountOffset:], raw)
	return data
}

func newWallet() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}
