package blockchain

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/frombarmars/flickshare-sub000/pkg/errors"
)

// contractABI covers the four review-contract events this service cares
// about. Anything else emitted by the contract is ignored at the filter
// level, not here.
const contractABIJSON = `[
  {"type":"event","name":"ReviewAdded","inputs":[
    {"name":"reviewer","type":"address","indexed":true},
    {"name":"movieId","type":"uint256","indexed":true},
    {"name":"reviewId","type":"uint256","indexed":false},
    {"name":"reviewText","type":"string","indexed":false},
    {"name":"timestamp","type":"uint256","indexed":false},
    {"name":"rating","type":"uint8","indexed":false}]},
  {"type":"event","name":"Supported","inputs":[
    {"name":"reviewId","type":"uint256","indexed":true},
    {"name":"supporter","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"feePercent","type":"uint256","indexed":false},
    {"name":"devFee","type":"uint256","indexed":false},
    {"name":"reviewerAmount","type":"uint256","indexed":false}]},
  {"type":"event","name":"ReviewLiked","inputs":[
    {"name":"reviewId","type":"uint256","indexed":true},
    {"name":"liker","type":"address","indexed":true},
    {"name":"newLikeCount","type":"uint256","indexed":false}]},
  {"type":"event","name":"CheckinSuccessful","inputs":[
    {"name":"user","type":"address","indexed":true}]}
]`

const (
	EventReviewAdded       = "ReviewAdded"
	EventSupported         = "Supported"
	EventReviewLiked       = "ReviewLiked"
	EventCheckinSuccessful = "CheckinSuccessful"
)

// EventMeta carries the chain provenance shared by every decoded event.
type EventMeta struct {
	TxHash      string
	BlockNumber uint64
}

func (m EventMeta) Meta() EventMeta { return m }

// Event is the tagged union produced by the decoder. Downstream code
// type-switches on the concrete variant.
type Event interface {
	Kind() string
	Meta() EventMeta
}

type ReviewAddedEvent struct {
	EventMeta
	Reviewer   string
	MovieID    int64
	ReviewID   int64
	ReviewText string
	Timestamp  time.Time
	Rating     int
}

func (ReviewAddedEvent) Kind() string { return EventReviewAdded }

type SupportedEvent struct {
	EventMeta
	ReviewID       int64
	Supporter      string
	Amount         *big.Int
	FeePercent     *big.Int
	DevFee         *big.Int
	ReviewerAmount *big.Int
}

func (SupportedEvent) Kind() string { return EventSupported }

type ReviewLikedEvent struct {
	EventMeta
	ReviewID     int64
	Liker        string
	NewLikeCount int64
}

func (ReviewLikedEvent) Kind() string { return EventReviewLiked }

type CheckinEvent struct {
	EventMeta
	User string
}

func (CheckinEvent) Kind() string { return EventCheckinSuccessful }

type Decoder struct {
	abi           abi.ABI
	eventByTopic  map[common.Hash]string
	tokenDecimals int
}

func NewDecoder(tokenDecimals int) (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(contractABIJSON))
	if err != nil {
		return nil, errors.New(errors.ErrEventDecode, "failed to parse contract ABI", err)
	}

	byTopic := make(map[common.Hash]string, len(parsed.Events))
	for name, ev := range parsed.Events {
		byTopic[ev.ID] = name
	}

	return &Decoder{
		abi:           parsed,
		eventByTopic:  byTopic,
		tokenDecimals: tokenDecimals,
	}, nil
}

// EventID returns the topic0 hash for a named event.
func (d *Decoder) EventID(name string) (common.Hash, bool) {
	ev, ok := d.abi.Events[name]
	if !ok {
		return common.Hash{}, false
	}
	return ev.ID, true
}

// Topics returns topic0 hashes for all four events, for subscription
// filter queries.
func (d *Decoder) Topics() []common.Hash {
	topics := make([]common.Hash, 0, len(d.eventByTopic))
	for topic := range d.eventByTopic {
		topics = append(topics, topic)
	}
	return topics
}

// DecodeLog converts a raw contract log into a typed domain event.
// Decoding is pure; a malformed log yields an EVENT_DECODE_ERROR and the
// caller drops it (chain replay re-delivers it unchanged).
func (d *Decoder) DecodeLog(log types.Log) (Event, error) {
	if len(log.Topics) == 0 {
		return nil, errors.New(errors.ErrEventDecode, "log has no topics", nil)
	}

	name, ok := d.eventByTopic[log.Topics[0]]
	if !ok {
		return nil, errors.New(errors.ErrEventDecode,
			fmt.Sprintf("unknown event topic %s", log.Topics[0].Hex()), nil)
	}

	meta := EventMeta{
		TxHash:      log.TxHash.Hex(),
		BlockNumber: log.BlockNumber,
	}

	switch name {
	case EventReviewAdded:
		return d.decodeReviewAdded(log, meta)
	case EventSupported:
		return d.decodeSupported(log, meta)
	case EventReviewLiked:
		return d.decodeReviewLiked(log, meta)
	case EventCheckinSuccessful:
		return d.decodeCheckin(log, meta)
	}
	return nil, errors.New(errors.ErrEventDecode, "unhandled event "+name, nil)
}

func (d *Decoder) decodeReviewAdded(log types.Log, meta EventMeta) (Event, error) {
	if len(log.Topics) < 3 {
		return nil, errors.New(errors.ErrEventDecode, "ReviewAdded: insufficient topics", nil)
	}

	values, err := d.abi.Events[EventReviewAdded].Inputs.NonIndexed().UnpackValues(log.Data)
	if err != nil || len(values) != 4 {
		return nil, errors.New(errors.ErrEventDecode, "ReviewAdded: bad data payload", err)
	}

	reviewID, ok1 := asInt64(values[0])
	reviewText, ok2 := values[1].(string)
	timestamp, ok3 := asInt64(values[2])
	rating, ok4 := values[3].(uint8)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, errors.New(errors.ErrEventDecode, "ReviewAdded: unexpected argument types", nil)
	}

	movieID, ok := topicInt64(log.Topics[2])
	if !ok {
		return nil, errors.New(errors.ErrEventDecode, "ReviewAdded: movieId out of range", nil)
	}

	return &ReviewAddedEvent{
		EventMeta:  meta,
		Reviewer:   topicAddress(log.Topics[1]),
		MovieID:    movieID,
		ReviewID:   reviewID,
		ReviewText: reviewText,
		Timestamp:  time.Unix(timestamp, 0).UTC(),
		Rating:     int(rating),
	}, nil
}

func (d *Decoder) decodeSupported(log types.Log, meta EventMeta) (Event, error) {
	if len(log.Topics) < 3 {
		return nil, errors.New(errors.ErrEventDecode, "Supported: insufficient topics", nil)
	}

	values, err := d.abi.Events[EventSupported].Inputs.NonIndexed().UnpackValues(log.Data)
	if err != nil || len(values) != 4 {
		return nil, errors.New(errors.ErrEventDecode, "Supported: bad data payload", err)
	}

	amount, ok1 := values[0].(*big.Int)
	feePercent, ok2 := values[1].(*big.Int)
	devFee, ok3 := values[2].(*big.Int)
	reviewerAmount, ok4 := values[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, errors.New(errors.ErrEventDecode, "Supported: unexpected argument types", nil)
	}

	reviewID, ok := topicInt64(log.Topics[1])
	if !ok {
		return nil, errors.New(errors.ErrEventDecode, "Supported: reviewId out of range", nil)
	}

	return &SupportedEvent{
		EventMeta:      meta,
		ReviewID:       reviewID,
		Supporter:      topicAddress(log.Topics[2]),
		Amount:         amount,
		FeePercent:     feePercent,
		DevFee:         devFee,
		ReviewerAmount: reviewerAmount,
	}, nil
}

func (d *Decoder) decodeReviewLiked(log types.Log, meta EventMeta) (Event, error) {
	if len(log.Topics) < 3 {
		return nil, errors.New(errors.ErrEventDecode, "ReviewLiked: insufficient topics", nil)
	}

	values, err := d.abi.Events[EventReviewLiked].Inputs.NonIndexed().UnpackValues(log.Data)
	if err != nil || len(values) != 1 {
		return nil, errors.New(errors.ErrEventDecode, "ReviewLiked: bad data payload", err)
	}

	likeCount, ok := asInt64(values[0])
	if !ok {
		return nil, errors.New(errors.ErrEventDecode, "ReviewLiked: unexpected argument types", nil)
	}

	reviewID, ok := topicInt64(log.Topics[1])
	if !ok {
		return nil, errors.New(errors.ErrEventDecode, "ReviewLiked: reviewId out of range", nil)
	}

	return &ReviewLikedEvent{
		EventMeta:    meta,
		ReviewID:     reviewID,
		Liker:        topicAddress(log.Topics[2]),
		NewLikeCount: likeCount,
	}, nil
}

func (d *Decoder) decodeCheckin(log types.Log, meta EventMeta) (Event, error) {
	if len(log.Topics) < 2 {
		return nil, errors.New(errors.ErrEventDecode, "CheckinSuccessful: insufficient topics", nil)
	}

	return &CheckinEvent{
		EventMeta: meta,
		User:      topicAddress(log.Topics[1]),
	}, nil
}

// AmountToUnits truncates a raw token amount to whole business units.
func (d *Decoder) AmountToUnits(raw *big.Int) int64 {
	units := new(big.Int).Div(raw, pow10(d.tokenDecimals))
	if !units.IsInt64() {
		return 0
	}
	return units.Int64()
}

// AmountToPoints converts a raw token amount to ledger points at the
// given rate. Multiplies before dividing so fractional supports still
// earn their share.
func (d *Decoder) AmountToPoints(raw *big.Int, rate int64) int64 {
	points := new(big.Int).Mul(raw, big.NewInt(rate))
	points.Div(points, pow10(d.tokenDecimals))
	if !points.IsInt64() || points.Sign() < 0 {
		return 0
	}
	return points.Int64()
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// NormalizeAddress lower-cases a wallet address for storage and lookup.
func NormalizeAddress(addr string) string {
	return strings.ToLower(addr)
}

func topicAddress(topic common.Hash) string {
	return NormalizeAddress(common.BytesToAddress(topic.Bytes()).Hex())
}

func topicInt64(topic common.Hash) (int64, bool) {
	v := new(big.Int).SetBytes(topic.Bytes())
	if !v.IsInt64() {
		return 0, false
	}
	return v.Int64(), true
}

func asInt64(v interface{}) (int64, bool) {
	b, ok := v.(*big.Int)
	if !ok || !b.IsInt64() {
		return 0, false
	}
	return b.Int64(), true
}
