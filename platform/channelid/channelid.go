// Package channelid provides the reversible identifier codec used to address
// messaging-bus channels: a Base62 string codec, suffix-based channel id
// builders for visitors and project staff groups, and the deterministic
// session id derivation for two-party personal channels.
// This is part of the platform layer and contains no business logic.
package channelid

import (
	"hash/crc32"
	"math/big"
	"strconv"
	"strings"

	"support_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Channel id suffixes. Other services route on these, so they are part of the
// public wire contract and must never change.
const (
	// VisitorChannelSuffix marks a visitor's customer-service channel.
	VisitorChannelSuffix = "-vtr"
	// ProjectStaffChannelSuffix marks a project-wide staff broadcast channel.
	ProjectStaffChannelSuffix = "-prj"
)

// channelTypePerson is the messaging bus channel type for two-party personal
// channels, the only type requiring symmetric session id derivation.
const channelTypePerson = 1

var base62Base = big.NewInt(62)

// Encode encodes an arbitrary UTF-8 string as Base62 by interpreting its bytes
// as a big-endian unsigned integer. The mapping is deterministic and exactly
// reversible via Decode. The empty string encodes to "0".
func Encode(raw string) string {
	if raw == "" {
		return "0"
	}

	n := new(big.Int).SetBytes([]byte(raw))
	if n.Sign() == 0 {
		return "0"
	}

	var digits []byte
	rem := new(big.Int)
	for n.Sign() > 0 {
		n.QuoRem(n, base62Base, rem)
		digits = append(digits, base62Alphabet[rem.Int64()])
	}

	// Digits come out least-significant first.
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

// Decode reverses Encode. Decoding "0" (or the empty string) yields "".
// Characters outside the Base62 alphabet produce a format error.
func Decode(encoded string) (string, error) {
	n := big.NewInt(0)
	for _, ch := range strings.TrimSpace(encoded) {
		idx := strings.IndexRune(base62Alphabet, ch)
		if idx < 0 {
			return "", apperr.Format("invalid base62 character: " + strconv.QuoteRune(ch))
		}
		n.Mul(n, base62Base)
		n.Add(n, big.NewInt(int64(idx)))
	}

	if n.Sign() == 0 {
		return "", nil
	}
	return string(n.Bytes()), nil
}

// BuildVisitorChannelID builds the customer-service channel id for a visitor,
// in the form {visitor_uuid}-vtr.
func BuildVisitorChannelID(visitorID uuid.UUID) string {
	return visitorID.String() + VisitorChannelSuffix
}

// BuildProjectStaffChannelID builds the broadcast channel id for all staff in
// a project, in the form {project_uuid}-prj.
func BuildProjectStaffChannelID(projectID uuid.UUID) string {
	return projectID.String() + ProjectStaffChannelSuffix
}

// ParseVisitorChannelID extracts the visitor UUID from a customer-service
// channel id. It returns a format error when the suffix is absent or the
// remainder is not a valid UUID.
func ParseVisitorChannelID(channelID string) (uuid.UUID, error) {
	return parseSuffixed(channelID, VisitorChannelSuffix, "visitor")
}

// ParseProjectStaffChannelID extracts the project UUID from a project staff
// channel id.
func ParseProjectStaffChannelID(channelID string) (uuid.UUID, error) {
	return parseSuffixed(channelID, ProjectStaffChannelSuffix, "project staff")
}

func parseSuffixed(channelID, suffix, kind string) (uuid.UUID, error) {
	if !strings.HasSuffix(channelID, suffix) {
		return uuid.UUID{}, apperr.Format("invalid " + kind + " channel id format")
	}

	id, err := uuid.Parse(strings.TrimSuffix(channelID, suffix))
	if err != nil {
		return uuid.UUID{}, apperr.Wrap(apperr.KindFormat, "invalid "+kind+" channel id value", err)
	}
	return id, nil
}

// SessionID derives the deterministic session id for a conversation.
//
// For personal channels both participants must compute the identical id
// without coordination, regardless of who initiates: the party whose CRC-32
// checksum is larger is ordered first, falling back to lexicographic
// comparison when the checksums collide. For every other channel type the
// session id is {to_uid}@{channel_type}.
func SessionID(fromUID, toUID string, channelType uint8) string {
	if channelType != channelTypePerson {
		return toUID + "@" + strconv.Itoa(int(channelType))
	}

	fromHash := crc32.ChecksumIEEE([]byte(fromUID))
	toHash := crc32.ChecksumIEEE([]byte(toUID))

	if fromHash > toHash {
		return fromUID + "@" + toUID
	}
	if fromHash == toHash && fromUID != toUID && fromUID > toUID {
		return fromUID + "@" + toUID
	}
	return toUID + "@" + fromUID
}
