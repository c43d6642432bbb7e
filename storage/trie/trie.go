package trie

import (
	"bytes"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	gethtrie "github.com/ethereum/go-ethereum/trie"
)

// ErrEmptyKey is returned when an entry is added without a key.
var ErrEmptyKey = errors.New("trie: empty key")

// Commitment collects key/value pairs and computes the Merkle Patricia root
// over them. Keys are hashed with keccak256 before insertion and values are
// RLP encoded, so the root does not depend on insertion order.
//
// Commitment is not safe for concurrent use.
type Commitment struct {
	entries map[common.Hash][]byte
}

// NewCommitment returns an empty commitment.
func NewCommitment() *Commitment {
	return &Commitment{entries: make(map[common.Hash][]byte)}
}

// Put records value under key, replacing any earlier value.
func (c *Commitment) Put(key []byte, value interface{}) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	c.entries[crypto.Keccak256Hash(key)] = encoded
	return nil
}

// Len reports the number of distinct keys.
func (c *Commitment) Len() int {
	return len(c.entries)
}

// Root returns the trie root. An empty commitment yields the canonical empty
// root hash.
func (c *Commitment) Root() (common.Hash, error) {
	keys := make([]common.Hash, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	// The stack trie requires ascending keys.
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})
	st := gethtrie.NewStackTrie(nil)
	for _, k := range keys {
		if err := st.Update(k[:], c.entries[k]); err != nil {
			return common.Hash{}, err
		}
	}
	return st.Hash(), nil
}
