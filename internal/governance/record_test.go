package governance

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testProgram = solana.MustPublicKeyFromBase58("GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw")
	testRealm   = solana.MustPublicKeyFromBase58("F9VL4wo49aUe8FufjMbU6uhdfyDRqKY54WpzdpncUSk9")
	testMint    = solana.MustPublicKeyFromBase58("Ds52CDgqdWbTWsua1hgT3AuSSy4FNx2Ezge1br3jQ14a")
)

func recordData(owner solana.PublicKey, raw uint64, delegate *solana.PublicKey) []byte {
	l := TokenOwnerRecordV1
	data := make([]byte, l.Size)
	copy(data[l.RealmOffset:], testRealm[:])
	copy(data[l.MintOffset:], testMint[:])
	copy(data[l.OwnerOffset:], owner[:])
	binary.LittleEndian.PutUint64(data[l.AmountOffset:], raw)
	if delegate != nil {
		data[l.HasDelegateOffset] = 1
		copy(data[l.DelegateOffset:], delegate[:])
	}
	return data
}

func TestDecodeTokenOwnerRecord(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	addr := solana.NewWallet().PublicKey()

	t.Run("WithoutDelegate", func(t *testing.T) {
		rec, err := TokenOwnerRecordV1.Decode(addr, recordData(owner, 123_456_789, nil))
		require.NoError(t, err)
		assert.Equal(t, addr, rec.Address)
		assert.Equal(t, testRealm, rec.Realm)
		assert.Equal(t, testMint, rec.Mint)
		assert.Equal(t, owner, rec.Owner)
		assert.Equal(t, uint64(123_456_789), rec.DepositAmount)
		assert.InDelta(t, 123.456789, rec.Tokens(), 1e-9)
		assert.Nil(t, rec.Delegate)
	})

	t.Run("WithDelegate", func(t *testing.T) {
		delegate := solana.NewWallet().PublicKey()
		rec, err := TokenOwnerRecordV1.Decode(addr, recordData(owner, 1, &delegate))
		require.NoError(t, err)
		require.NotNil(t, rec.Delegate)
		assert.Equal(t, delegate, *rec.Delegate)
	})

	t.Run("DelegateFlagOnlyOnOne", func(t *testing.T) {
		data := recordData(owner, 1, nil)
		data[TokenOwnerRecordV1.HasDelegateOffset] = 2
		rec, err := TokenOwnerRecordV1.Decode(addr, data)
		require.NoError(t, err)
		assert.Nil(t, rec.Delegate)
	})

	t.Run("Short", func(t *testing.T) {
		_, err := TokenOwnerRecordV1.Decode(addr, make([]byte, 100))
		assert.ErrorIs(t, err, ErrShortRecord)
	})

	t.Run("TruncatedDelegate", func(t *testing.T) {
		delegate := solana.NewWallet().PublicKey()
		data := recordData(owner, 1, &delegate)[:120]
		_, err := TokenOwnerRecordV1.Decode(addr, data)
		assert.ErrorIs(t, err, ErrShortRecord)
	})

	t.Run("ExactlyAmountLength", func(t *testing.T) {
		rec, err := TokenOwnerRecordV1.Decode(addr, recordData(owner, 42, nil)[:104])
		require.NoError(t, err)
		assert.Equal(t, uint64(42), rec.DepositAmount)
	})
}

func TestRecordMatches(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	data := recordData(owner, 1, nil)

	assert.True(t, TokenOwnerRecordV1.Matches(data, testRealm, testMint, owner))
	assert.False(t, TokenOwnerRecordV1.Matches(data, testRealm, testMint, solana.NewWallet().PublicKey()))
	assert.False(t, TokenOwnerRecordV1.Matches(data, testRealm, solana.SystemProgramID, owner))
	assert.False(t, TokenOwnerRecordV1.Matches(data[:90], testRealm, testMint, owner))
}

func TestDelegatedAmount(t *testing.T) {
	data := make([]byte, 200)
	binary.LittleEndian.PutUint64(data[33:], 5_000_000_000)

	amount, err := DelegatedRecordV1.Amount(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000_000), amount)

	_, err = DelegatedRecordV1.Amount(data[:40])
	assert.ErrorIs(t, err, ErrShortDelegation)
}

func TestDeriveTokenOwnerRecordAddress(t *testing.T) {
	owner := solana.NewWallet().PublicKey()

	a, err := DeriveTokenOwnerRecordAddress(testProgram, testRealm, testMint, owner)
	require.NoError(t, err)
	b, err := DeriveTokenOwnerRecordAddress(testProgram, testRealm, testMint, owner)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	expected, _, err := solana.FindProgramAddress([][]byte{
		[]byte("governance"), testRealm[:], testMint[:], owner[:],
	}, testProgram)
	require.NoError(t, err)
	assert.Equal(t, expected, a)

	other, err := DeriveTokenOwnerRecordAddress(testProgram, testRealm, testMint, solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}
