// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package interchange

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianIndex/services/symbols/slab"
)

// Export writes symbols to w as a multi-document YAML stream, one
// symbol per document, in the order given.
//
// Outputs:
//   - error: the first encoding or write failure.
func Export(w io.Writer, symbols []slab.Symbol) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()

	for i := range symbols {
		rec := FromSymbol(&symbols[i])
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("interchange: encode symbol %s: %w", rec.ID, err)
		}
	}
	return nil
}

// Import reads a multi-document YAML stream back into symbols.
//
// Description:
//
//	Decodes documents until end of stream. A malformed document stops
//	the import with an error naming its position; nothing is skipped
//	silently. An empty stream imports zero symbols without error.
//
// Outputs:
//   - []slab.Symbol: the decoded symbols in stream order.
//   - error: decoding or validation failure, positioned by document.
func Import(r io.Reader) ([]slab.Symbol, error) {
	dec := yaml.NewDecoder(r)

	var symbols []slab.Symbol
	for doc := 0; ; doc++ {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return symbols, nil
			}
			return nil, fmt.Errorf("interchange: decode document %d: %w", doc, err)
		}
		sym, err := rec.ToSymbol()
		if err != nil {
			return nil, fmt.Errorf("interchange: document %d: %w", doc, err)
		}
		symbols = append(symbols, sym)
	}
}

// ImportSlab reads a stream and freezes it straight into a symbol
// slab, deduplicating by ID with last-wins semantics.
func ImportSlab(r io.Reader) (*slab.SymbolSlab, error) {
	symbols, err := Import(r)
	if err != nil {
		return nil, err
	}
	b := slab.NewBuilder()
	for _, sym := range symbols {
		b.Insert(sym)
	}
	return b.Build(), nil
}
