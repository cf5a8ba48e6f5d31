package storage

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/drmick/unichecker/internal/model"
)

// WritePoolList writes pool addresses one per line in address order.
func WritePoolList(path string, pools model.PoolSet) error {
	return writeAtomic(path, func(w *bufio.Writer) error {
		for _, addr := range pools.Sorted() {
			if _, err := w.WriteString(addr.Hex() + "\n"); err != nil {
				return fmt.Errorf("write pool address: %w", err)
			}
		}
		return nil
	})
}

// ReadPoolList loads a pool list written by WritePoolList. Blank lines and
// lines starting with # are ignored.
func ReadPoolList(path string) (model.PoolSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pool list: %w", err)
	}
	defer file.Close()

	pools := make(model.PoolSet)
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !common.IsHexAddress(line) {
			return nil, fmt.Errorf("pool list line %d: invalid address %q", lineNo, line)
		}
		pools.Add(common.HexToAddress(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pool list: %w", err)
	}
	return pools, nil
}
