// cartstore/codec.go

package cartstore

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/norun9/harvestbasket/catalog"
)

const layoutVersion = 1

type persistedCart struct {
	Version int             `json:"version"`
	Lines   []persistedLine `json:"lines"`
}

// persistedLine stores the whole catalog record so a cart renders and prices
// itself without going back to the catalog.
type persistedLine struct {
	Product  *catalog.Product `json:"product"`
	Quantity int              `json:"quantity"`
}

func encodeLines(lines []Line) ([]byte, error) {
	out := persistedCart{Version: layoutVersion, Lines: make([]persistedLine, 0, len(lines))}
	for _, l := range lines {
		p := l.Product
		out.Lines = append(out.Lines, persistedLine{Product: &p, Quantity: l.Quantity})
	}
	return json.Marshal(out)
}

// decodeLines accepts the versioned layout as well as a bare array of lines.
// Lines without a product id, with a quantity outside 1..MaxLineQuantity or
// with a negative price are dropped; repeated product ids are merged into the
// first occurrence, capped at MaxLineQuantity.
func decodeLines(data []byte) ([]Line, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raw []persistedLine
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(err, "decode cart lines")
		}
	} else {
		var pc persistedCart
		if err := json.Unmarshal(data, &pc); err != nil {
			return nil, errors.Wrap(err, "decode cart")
		}
		if pc.Version > layoutVersion {
			return nil, errors.Errorf("unsupported cart layout version %d", pc.Version)
		}
		raw = pc.Lines
	}

	var lines []Line
	index := make(map[string]int, len(raw))
	for _, pl := range raw {
		if pl.Product == nil || pl.Product.ID == "" || pl.Quantity <= 0 || pl.Quantity > MaxLineQuantity || pl.Product.Price.IsNegative() {
			continue
		}
		if i, ok := index[pl.Product.ID]; ok {
			lines[i].Quantity = min(lines[i].Quantity+pl.Quantity, MaxLineQuantity)
			continue
		}
		index[pl.Product.ID] = len(lines)
		lines = append(lines, Line{Product: *pl.Product, Quantity: pl.Quantity})
	}
	return lines, nil
}
