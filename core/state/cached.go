package state

import (
	"github.com/NethermindEth/devnet/core"
	"github.com/NethermindEth/devnet/core/felt"
)

var _ State = (*Cached)(nil)

// Cached buffers writes on top of a Reader. Buffered writes are visible to
// later reads through the same Cached and are never written to the parent;
// callers move them with Apply or Committer.Commit.
type Cached struct {
	parent Reader
	diff   *core.StateDiff
}

func NewCached(parent Reader) *Cached {
	return &Cached{
		parent: parent,
		diff:   core.EmptyStateDiff(),
	}
}

func (c *Cached) ContractStorage(addr, key *felt.Felt) (felt.Felt, error) {
	if storage, ok := c.diff.StorageDiffs[*addr]; ok {
		if value, ok := storage[*key]; ok {
			return *value, nil
		}
	}
	return c.parent.ContractStorage(addr, key)
}

func (c *Cached) ContractNonce(addr *felt.Felt) (felt.Felt, error) {
	if nonce, ok := c.diff.Nonces[*addr]; ok {
		return *nonce, nil
	}
	return c.parent.ContractNonce(addr)
}

func (c *Cached) ContractClassHash(addr *felt.Felt) (felt.Felt, error) {
	if classHash, ok := c.diff.DeployedContracts[*addr]; ok {
		return *classHash, nil
	}
	return c.parent.ContractClassHash(addr)
}

func (c *Cached) Class(classHash *felt.Felt) (*core.Class, error) {
	if class, ok := c.diff.DeclaredClasses[*classHash]; ok {
		return class, nil
	}
	return c.parent.Class(classHash)
}

func (c *Cached) SetStorage(addr, key, value *felt.Felt) error {
	storage, ok := c.diff.StorageDiffs[*addr]
	if !ok {
		storage = make(map[felt.Felt]*felt.Felt)
		c.diff.StorageDiffs[*addr] = storage
	}
	storage[*key] = value.Clone()
	return nil
}

func (c *Cached) SetNonce(addr, nonce *felt.Felt) error {
	c.diff.Nonces[*addr] = nonce.Clone()
	return nil
}

func (c *Cached) SetClassHash(addr, classHash *felt.Felt) error {
	c.diff.DeployedContracts[*addr] = classHash.Clone()
	return nil
}

func (c *Cached) SetClass(classHash *felt.Felt, class *core.Class) error {
	c.diff.DeclaredClasses[*classHash] = class
	return nil
}

// StateDiff returns the buffered writes. The diff stays owned by c.
func (c *Cached) StateDiff() *core.StateDiff {
	return c.diff
}

// Reset drops the buffered writes and returns them
func (c *Cached) Reset() *core.StateDiff {
	diff := c.diff
	c.diff = core.EmptyStateDiff()
	return diff
}
