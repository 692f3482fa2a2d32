package chat

import (
	"fmt"
	"math/big"
	"strconv"
	"unicode/utf16"

	"golang.org/x/crypto/blake2b"
)

const channelIDPrefix = "match_"

// ChannelIDFunc derives a channel id from an unordered pair of user ids.
type ChannelIDFunc func(a, b string) string

func joinSorted(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

// DeriveChannelID folds the sorted, "_"-joined pair into a signed 32-bit
// rolling hash (h = h*31 + c over UTF-16 code units) and returns
// "match_" + base36(|h|).
//
// These ids match the ones already stored for existing conversations.
// Distinct pairs collide with probability around 2^-32 per pair.
func DeriveChannelID(a, b string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(joinSorted(a, b))) {
		h = h*31 + int32(c)
	}
	mag := int64(h)
	if mag < 0 {
		mag = -mag
	}
	return channelIDPrefix + strconv.FormatInt(mag, 36)
}

// DigestChannelID is the content-addressed scheme: the first 80 bits of
// BLAKE2b-256 over the same joined pair, base36. Still short enough to
// read in logs.
func DigestChannelID(a, b string) string {
	sum := blake2b.Sum256([]byte(joinSorted(a, b)))
	return channelIDPrefix + new(big.Int).SetBytes(sum[:10]).Text(36)
}

// ChannelIDScheme returns the derivation registered under name.
func ChannelIDScheme(name string) (ChannelIDFunc, error) {
	switch name {
	case "", "hash32":
		return DeriveChannelID, nil
	case "blake2b":
		return DigestChannelID, nil
	default:
		return nil, fmt.Errorf("unknown channel id scheme %q", name)
	}
}
