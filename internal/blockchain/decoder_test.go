package blockchain

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func mustDecoder(t *testing.T, decimals int) *Decoder {
	t.Helper()
	d, err := NewDecoder(decimals)
	require.NoError(t, err)
	return d
}

func packLog(t *testing.T, d *Decoder, eventName string, topics []common.Hash, args ...interface{}) types.Log {
	t.Helper()

	data, err := d.abi.Events[eventName].Inputs.NonIndexed().Pack(args...)
	require.NoError(t, err)

	id, ok := d.EventID(eventName)
	require.True(t, ok)

	return types.Log{
		Topics:      append([]common.Hash{id}, topics...),
		Data:        data,
		TxHash:      common.HexToHash("0x1111"),
		BlockNumber: 123,
	}
}

func TestDecodeReviewAdded(t *testing.T) {
	d := mustDecoder(t, 18)
	reviewer := common.HexToAddress("0xAbCdEf0000000000000000000000000000000AAA")

	log := packLog(t, d, EventReviewAdded,
		[]common.Hash{
			common.BytesToHash(reviewer.Bytes()),
			common.BigToHash(big.NewInt(550)),
		},
		big.NewInt(1), "Great film", big.NewInt(1700000000), uint8(5))

	ev, err := d.DecodeLog(log)
	require.NoError(t, err)

	added, ok := ev.(*ReviewAddedEvent)
	require.True(t, ok)
	require.Equal(t, EventReviewAdded, added.Kind())
	require.Equal(t, "0xabcdef0000000000000000000000000000000aaa", added.Reviewer)
	require.EqualValues(t, 550, added.MovieID)
	require.EqualValues(t, 1, added.ReviewID)
	require.Equal(t, "Great film", added.ReviewText)
	require.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), added.Timestamp)
	require.Equal(t, 5, added.Rating)
	require.EqualValues(t, 123, added.Meta().BlockNumber)
}

func TestDecodeSupported(t *testing.T) {
	d := mustDecoder(t, 18)
	supporter := common.HexToAddress("0x0000000000000000000000000000000000000BBB")
	amount := new(big.Int).Mul(big.NewInt(3), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

	log := packLog(t, d, EventSupported,
		[]common.Hash{
			common.BigToHash(big.NewInt(1)),
			common.BytesToHash(supporter.Bytes()),
		},
		amount, big.NewInt(5), big.NewInt(0), amount)

	ev, err := d.DecodeLog(log)
	require.NoError(t, err)

	supported, ok := ev.(*SupportedEvent)
	require.True(t, ok)
	require.EqualValues(t, 1, supported.ReviewID)
	require.Equal(t, "0x0000000000000000000000000000000000000bbb", supported.Supporter)
	require.Zero(t, amount.Cmp(supported.Amount))

	require.EqualValues(t, 3, d.AmountToUnits(supported.Amount))
	require.EqualValues(t, 60, d.AmountToPoints(supported.Amount, 20))
}

func TestFractionalSupportStillEarnsPoints(t *testing.T) {
	d := mustDecoder(t, 18)

	// 0.5 tokens in subunits
	half := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	half.Div(half, big.NewInt(2))

	require.EqualValues(t, 0, d.AmountToUnits(half))
	require.EqualValues(t, 10, d.AmountToPoints(half, 20))
}

func TestDecodeReviewLiked(t *testing.T) {
	d := mustDecoder(t, 18)
	liker := common.HexToAddress("0x0000000000000000000000000000000000000CCC")

	log := packLog(t, d, EventReviewLiked,
		[]common.Hash{
			common.BigToHash(big.NewInt(7)),
			common.BytesToHash(liker.Bytes()),
		},
		big.NewInt(12))

	ev, err := d.DecodeLog(log)
	require.NoError(t, err)

	liked, ok := ev.(*ReviewLikedEvent)
	require.True(t, ok)
	require.EqualValues(t, 7, liked.ReviewID)
	require.Equal(t, "0x0000000000000000000000000000000000000ccc", liked.Liker)
	require.EqualValues(t, 12, liked.NewLikeCount)
}

func TestDecodeCheckin(t *testing.T) {
	d := mustDecoder(t, 18)
	user := common.HexToAddress("0x0000000000000000000000000000000000000DDD")

	id, _ := d.EventID(EventCheckinSuccessful)
	log := types.Log{
		Topics:      []common.Hash{id, common.BytesToHash(user.Bytes())},
		TxHash:      common.HexToHash("0x2222"),
		BlockNumber: 124,
	}

	ev, err := d.DecodeLog(log)
	require.NoError(t, err)

	checkin, ok := ev.(*CheckinEvent)
	require.True(t, ok)
	require.Equal(t, "0x0000000000000000000000000000000000000ddd", checkin.User)
}

func TestDecodeRejectsMalformedLog(t *testing.T) {
	d := mustDecoder(t, 18)

	// no topics at all
	_, err := d.DecodeLog(types.Log{})
	require.Error(t, err)

	// unknown topic0
	_, err = d.DecodeLog(types.Log{Topics: []common.Hash{common.HexToHash("0xdead")}})
	require.Error(t, err)

	// right topic, truncated data
	id, _ := d.EventID(EventReviewAdded)
	_, err = d.DecodeLog(types.Log{
		Topics: []common.Hash{
			id,
			common.BytesToHash(common.HexToAddress("0x1").Bytes()),
			common.BigToHash(big.NewInt(550)),
		},
		Data: []byte{0x01, 0x02},
	})
	require.Error(t, err)

	// missing indexed topics
	_, err = d.DecodeLog(types.Log{Topics: []common.Hash{id}})
	require.Error(t, err)
}
