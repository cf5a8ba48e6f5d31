package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseAddress converts a hex string into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}

// ParseTopic converts a 32-byte hex topic into common.Hash.
func ParseTopic(input string) (common.Hash, error) {
	input = strings.TrimSpace(input)
	data, err := hexutil.Decode(input)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid topic: %s", input)
	}
	if len(data) != 32 {
		return common.Hash{}, fmt.Errorf("invalid topic length: %s", input)
	}
	return common.BytesToHash(data), nil
}

// ParseCheckingBlocks converts a pool->block string map into typed overrides.
func ParseCheckingBlocks(inputs map[string]string) (map[common.Address]uint64, error) {
	out := make(map[common.Address]uint64, len(inputs))
	for key, value := range inputs {
		addr, err := ParseAddress(key)
		if err != nil {
			return nil, fmt.Errorf("checking block: %w", err)
		}
		block, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("checking block for %s: %w", addr.Hex(), err)
		}
		out[addr] = block
	}
	return out, nil
}
