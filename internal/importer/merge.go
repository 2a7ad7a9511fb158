package importer

import (
	"fmt"
	"os"
	"strings"

	"kicomport/internal/sexpr"
)

// symbolHeader opens the accumulated destination library. The version token
// matches the oldest format the merge output stays compatible with.
const (
	symbolHeader = "(kicad_symbol_lib (version 20211014) (generator kicomport)\n"
	symbolFooter = "\n)"
)

// mergeSymbolLib folds the symbols from the source library into the
// destination library file, skipping symbols whose name already exists in
// the destination. It returns the number of symbols added. Callers must hold
// the destination lock.
func mergeSymbolLib(src, dest string) (int, error) {
	srcData, err := os.ReadFile(src)
	if err != nil {
		return 0, fmt.Errorf("read source library %s: %w", src, err)
	}
	newSymbols := sexpr.TopLevelBlocks(string(srcData), "symbol")

	destData, err := os.ReadFile(dest)
	if os.IsNotExist(err) {
		if writeErr := atomicWrite(dest, renderSymbolLib(newSymbols)); writeErr != nil {
			return 0, writeErr
		}
		return len(newSymbols), nil
	}
	if err != nil {
		return 0, fmt.Errorf("read destination library %s: %w", dest, err)
	}

	existing := sexpr.TopLevelBlocks(string(destData), "symbol")
	names := make(map[string]struct{}, len(existing))
	for _, block := range existing {
		names[sexpr.BlockName(block, "symbol")] = struct{}{}
	}

	added := 0
	merged := existing
	for _, block := range newSymbols {
		name := sexpr.BlockName(block, "symbol")
		if name == "" {
			continue
		}
		if _, ok := names[name]; ok {
			continue
		}
		names[name] = struct{}{}
		merged = append(merged, block)
		added++
	}

	if err := atomicWrite(dest, renderSymbolLib(merged)); err != nil {
		return 0, err
	}
	return added, nil
}

func renderSymbolLib(symbols []string) string {
	return symbolHeader + strings.Join(symbols, "\n") + symbolFooter
}
