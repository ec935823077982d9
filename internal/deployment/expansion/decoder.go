package expansion

import (
	"encoding/json"
	"fmt"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine"
)

// Decoder turns request lines into engine requests for the request loop.
type Decoder struct {
	x *Expander
}

// NewDecoder creates a Decoder that builds requests the way x does.
func NewDecoder(x *Expander) *Decoder {
	return &Decoder{x: x}
}

func (d *Decoder) String() string {
	return Name
}

func (d *Decoder) Decode(line []byte) (engine.Request, error) {
	var r Request
	if err := json.Unmarshal(line, &r); err != nil {
		return engine.Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := r.Validate(); err != nil {
		return engine.Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return d.x.request(r), nil
}
