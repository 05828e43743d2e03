// Package audit provides a tamper-evident hash chain for append-only
// records. Each entry's hash covers its payload and the previous entry's
// hash, so any modification or reordering is detectable.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// GenesisHash anchors the first entry of every chain.
var GenesisHash = strings.Repeat("0", 64)

// Entry represents a single hash-chained record.
type Entry struct {
	Seq          int64  `json:"seq"`
	Timestamp    string `json:"timestamp"`
	PreviousHash string `json:"previous_hash"`
	Payload      string `json:"payload"`
	Hash         string `json:"hash"`
}

// Chain produces hash-chained entries. It is safe for concurrent use.
type Chain struct {
	mu           sync.Mutex
	seq          int64
	previousHash string
}

// NewChain creates a chain anchored at the genesis hash.
func NewChain() *Chain {
	return &Chain{previousHash: GenesisHash}
}

// ResumeChain continues a chain from its persisted tail, so a restarted
// process keeps extending the same chain instead of starting a new one.
func ResumeChain(seq int64, tailHash string) *Chain {
	if tailHash == "" {
		tailHash = GenesisHash
	}
	return &Chain{seq: seq, previousHash: tailHash}
}

// Append adds a new entry to the chain.
func (c *Chain) Append(payload string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	entry := &Entry{
		Seq:          c.seq,
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		PreviousHash: c.previousHash,
		Payload:      payload,
	}
	entry.Hash = HashEntry(entry.PreviousHash, entry.Timestamp, entry.Payload)

	c.previousHash = entry.Hash
	return entry
}

// HashEntry computes the chained hash over an entry's fields.
func HashEntry(previousHash, timestamp, payload string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", previousHash, timestamp, payload)))
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks whether entries, in sequence order, form a valid hash
// chain anchored at the genesis hash.
func VerifyChain(entries []*Entry) bool {
	prevHash := GenesisHash
	for i, entry := range entries {
		if entry.PreviousHash != prevHash {
			return false
		}
		if entry.Seq != int64(i)+1 {
			return false
		}
		if HashEntry(entry.PreviousHash, entry.Timestamp, entry.Payload) != entry.Hash {
			return false
		}
		prevHash = entry.Hash
	}
	return true
}
