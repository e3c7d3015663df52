package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	gotMsg ethereum.CallMsg
	result []byte
	err    error
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.gotMsg = msg
	return f.result, f.err
}

func TestBalance(t *testing.T) {
	owner := common.HexToAddress("0x365f0CA36Ae1f641E02fE3B7743673da42A13A70")
	caller := &fakeCaller{result: common.LeftPadBytes(big.NewInt(12_345_678).Bytes(), 32)}
	r := NewBalanceReader(caller, USDCe, USDCDecimals)

	bal, err := r.Balance(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, "12.345678", bal.String())

	require.NotNil(t, caller.gotMsg.To)
	assert.Equal(t, USDCe, *caller.gotMsg.To)
	require.Len(t, caller.gotMsg.Data, 36)
	assert.Equal(t, []byte{0x70, 0xa0, 0x82, 0x31}, caller.gotMsg.Data[:4])
	assert.Equal(t, owner.Bytes(), caller.gotMsg.Data[16:])
}

func TestBalanceErrors(t *testing.T) {
	r := NewBalanceReader(&fakeCaller{err: errors.New("rpc down")}, USDCe, USDCDecimals)
	_, err := r.Balance(context.Background(), common.Address{})
	assert.ErrorContains(t, err, "rpc down")

	r = NewBalanceReader(&fakeCaller{result: []byte{1}}, USDCe, USDCDecimals)
	_, err = r.Balance(context.Background(), common.Address{})
	assert.ErrorContains(t, err, "short result")
}
