package model

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// PoolSet is a set of pool addresses.
type PoolSet map[common.Address]struct{}

func NewPoolSet(addresses ...common.Address) PoolSet {
	set := make(PoolSet, len(addresses))
	for _, addr := range addresses {
		set.Add(addr)
	}
	return set
}

func (s PoolSet) Add(addr common.Address) {
	s[addr] = struct{}{}
}

func (s PoolSet) Contains(addr common.Address) bool {
	_, ok := s[addr]
	return ok
}

// Sorted returns the addresses in byte order.
func (s PoolSet) Sorted() []common.Address {
	out := make([]common.Address, 0, len(s))
	for addr := range s {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
