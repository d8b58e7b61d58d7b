// Package keyring manages ordered collections of dated symmetric keys and
// their on-disk representation.
//
// A keyring entry pairs a key with two timestamps: when the key was created
// and when it becomes valid for encryption.  Encryption always uses the
// newest valid key so that rings roll forward; decryption uses a timestamp
// hint from the ciphertext to find the key most likely contemporaneous with
// it.
//
// A Keyring is a mutable owned object.  Callers serialize concurrent
// mutation; read-only operations are safe to run in parallel with each
// other.
package keyring

import (
	"fmt"
	"time"

	"github.com/oarkflow/webauth"
	"github.com/oarkflow/webauth/attrs"
)

// ringVersion is the keyring file format version we implement.
const ringVersion = 1

// Usage says what a best-key query will use the key for.
type Usage int

const (
	// Encrypt selects the newest valid key.
	Encrypt Usage = iota
	// Decrypt selects the key most likely used at the hint time.
	Decrypt
)

// Entry is a dated key in a keyring.  The entry owns its Key; entries are
// never shared across keyrings.
type Entry struct {
	Creation   time.Time
	ValidAfter time.Time
	Key        *webauth.Key
}

// Keyring is an ordered, index-addressable sequence of entries.
type Keyring struct {
	entries []Entry
}

// New returns an empty keyring with room for capacity entries.
func New(capacity int) *Keyring {
	if capacity < 1 {
		capacity = 1
	}
	return &Keyring{entries: make([]Entry, 0, capacity)}
}

// FromKey wraps a keyring around a single key with zero creation and
// valid-after times, which every selection treats as valid since the
// epoch.
func FromKey(key *webauth.Key) *Keyring {
	ring := New(1)
	ring.Add(time.Time{}, time.Time{}, key)
	return ring
}

// Len returns the number of entries.
func (r *Keyring) Len() int { return len(r.entries) }

// Entries returns the entries in order.  The slice is the ring's own
// storage; callers must not modify it.
func (r *Keyring) Entries() []Entry { return r.entries }

// Add appends an entry holding a copy of key.  Either time may be zero;
// what zero means is up to the caller (auto-rotation writes the current
// time, FromKey leaves it as the epoch).
func (r *Keyring) Add(creation, validAfter time.Time, key *webauth.Key) {
	r.entries = append(r.entries, Entry{
		Creation:   creation,
		ValidAfter: validAfter,
		Key:        key.Copy(),
	})
}

// Remove deletes the entry at index i, shifting later entries down by
// one.  The removed entry's key material is wiped, so key references
// obtained from BestKey must not outlive a Remove of their entry.
func (r *Keyring) Remove(i int) error {
	if i < 0 || i >= len(r.entries) {
		return fmt.Errorf("%w: keyring index %d out of range", webauth.ErrNotFound, i)
	}
	r.entries[i].Key.Zero()
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
	return nil
}

// BestKey returns the key of the best entry for the given usage, as
// selected by BestEntry.
func (r *Keyring) BestKey(usage Usage, hint time.Time) (*webauth.Key, error) {
	entry, err := r.BestEntry(usage, hint)
	if err != nil {
		return nil, err
	}
	return entry.Key, nil
}

// BestEntry selects the best entry for the given usage.  Only entries
// whose valid-after time is not in the future are considered.  For
// encryption the hint is ignored and the entry with the greatest
// valid-after time wins, so fresh keys take over as soon as they become
// valid.  For decryption the winner is the entry with the greatest
// valid-after time not after the hint, the key most likely in service when
// the ciphertext was made.  Ties go to the entry added last.
func (r *Keyring) BestEntry(usage Usage, hint time.Time) (*Entry, error) {
	now := webauth.Now()
	var best *Entry
	for i := range r.entries {
		entry := &r.entries[i]
		valid := entry.ValidAfter
		if valid.After(now) {
			continue
		}
		switch usage {
		case Encrypt:
			if best == nil || !valid.Before(best.ValidAfter) {
				best = entry
			}
		case Decrypt:
			if valid.After(hint) {
				continue
			}
			if best == nil || !valid.Before(best.ValidAfter) {
				best = entry
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no valid keys found", webauth.ErrNotFound)
	}
	return best, nil
}

// Encode serializes the keyring to its file representation: an attribute
// list carrying the format version, the entry count, and per-entry
// creation time, valid-after time, key type, and key material.
func (r *Keyring) Encode() ([]byte, error) {
	list := attrs.New(2 + 4*len(r.entries))
	list.AddUint32("v", ringVersion)
	list.AddUint32("n", uint32(len(r.entries)))
	for i, entry := range r.entries {
		list.AddTime(fmt.Sprintf("ct%d", i), entry.Creation)
		list.AddTime(fmt.Sprintf("va%d", i), entry.ValidAfter)
		list.AddUint32(fmt.Sprintf("kt%d", i), uint32(entry.Key.Type()))
		list.Add(fmt.Sprintf("kd%d", i), entry.Key.Data())
	}
	return list.Encode(), nil
}

// Decode parses the file representation produced by Encode.  A version
// other than 1 fails with ErrFileVersion; missing attributes and unusable
// key material fail with ErrCorrupt and ErrBadKey respectively.
func Decode(data []byte) (*Keyring, error) {
	list, err := attrs.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding keyring: %w", err)
	}
	version, ok, err := list.GetUint32("v")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing version in keyring data", webauth.ErrCorrupt)
	}
	if version != ringVersion {
		return nil, fmt.Errorf("%w: unsupported keyring data version %d",
			webauth.ErrFileVersion, version)
	}
	count, ok, err := list.GetUint32("n")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing entry count in keyring data", webauth.ErrCorrupt)
	}
	ring := New(int(count))
	for i := 0; i < int(count); i++ {
		creation, ok, err := list.GetTime(fmt.Sprintf("ct%d", i))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, missingEntry("creation time", i)
		}
		validAfter, ok, err := list.GetTime(fmt.Sprintf("va%d", i))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, missingEntry("valid-after time", i)
		}
		keyType, ok, err := list.GetUint32(fmt.Sprintf("kt%d", i))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, missingEntry("key type", i)
		}
		keyData, ok := list.Get(fmt.Sprintf("kd%d", i))
		if !ok {
			return nil, missingEntry("key data", i)
		}
		key, err := webauth.NewKey(webauth.KeyType(keyType), webauth.KeySize(len(keyData)), keyData)
		if err != nil {
			return nil, fmt.Errorf("keyring entry %d: %w", i, err)
		}
		ring.entries = append(ring.entries, Entry{
			Creation:   creation,
			ValidAfter: validAfter,
			Key:        key,
		})
	}
	return ring, nil
}

func missingEntry(what string, i int) error {
	return fmt.Errorf("%w: missing %s for keyring entry %d", webauth.ErrCorrupt, what, i)
}
