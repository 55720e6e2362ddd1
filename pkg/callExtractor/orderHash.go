package callExtractor

import (
	"crypto/sha256"
	"sort"

	"github.com/dorothy-zbornak/0x-user-clusters/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// HashOrder computes the content identity of an order: the fields sorted by
// name are serialised as a list of [name, value] pairs and hashed with
// SHA-256. Field order in the record does not affect the result.
func HashOrder(fields *types.Record) (string, error) {
	keys := fields.Keys()
	sort.Strings(keys)

	pairs := make(types.Sequence, 0, len(keys))
	for _, key := range keys {
		v, _ := fields.Get(key)
		pairs = append(pairs, types.Sequence{types.NewScalar(key), v})
	}

	serialized, err := types.MarshalCanonical(pairs)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize order")
	}
	digest := sha256.Sum256(serialized)
	return hexutil.Encode(digest[:]), nil
}
