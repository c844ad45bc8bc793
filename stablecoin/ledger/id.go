package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidID is returned for ids that are not shard.realm.num.
var ErrInvalidID = errors.New("invalid ledger entity id")

// ID identifies an account, token or contract as shard.realm.num.
type ID struct {
	Shard int64 `cbor:"1,keyasint"`
	Realm int64 `cbor:"2,keyasint"`
	Num   int64 `cbor:"3,keyasint"`
}

// NewID returns 0.0.num.
func NewID(num int64) ID { return ID{Num: num} }

// ParseID parses "shard.realm.num".
func ParseID(s string) (ID, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	var nums [3]int64

	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
		}

		nums[i] = n
	}

	return ID{Shard: nums[0], Realm: nums[1], Num: nums[2]}, nil
}

// MustParseID is ParseID for literals known to be valid.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}

	return id
}

// IsValidID reports whether s parses as an entity id.
func IsValidID(s string) bool {
	_, err := ParseID(s)
	return err == nil
}

// IsZero reports whether id is 0.0.0.
func (id ID) IsZero() bool { return id == ID{} }

func (id ID) String() string {
	return fmt.Sprintf("%d.%d.%d", id.Shard, id.Realm, id.Num)
}

// ToEVMAddress returns the long-zero EVM address of the entity:
// 4 bytes shard, 8 bytes realm, 8 bytes num, big endian.
func (id ID) ToEVMAddress() common.Address {
	var addr common.Address

	binary.BigEndian.PutUint32(addr[0:4], uint32(id.Shard))
	binary.BigEndian.PutUint64(addr[4:12], uint64(id.Realm))
	binary.BigEndian.PutUint64(addr[12:20], uint64(id.Num))

	return addr
}

// IDFromEVMAddress reverses ToEVMAddress for shard 0, realm 0 entities. ok
// is false for any other address, such as an ECDSA alias.
func IDFromEVMAddress(addr common.Address) (ID, bool) {
	for _, b := range addr[:12] {
		if b != 0 {
			return ID{}, false
		}
	}

	num := binary.BigEndian.Uint64(addr[12:20])
	if num > math.MaxInt64 {
		return ID{}, false
	}

	return ID{Num: int64(num)}, true
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}

	*id = parsed

	return nil
}
