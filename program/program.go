// Package program loads the compiled-program artifact (spec §6): the
// external, JSON-encoded collaborator a CairoRunner is built from.
package program

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/sarchlab/cairo-vm-go/field"
)

// Hint is one hint snippet registered at a program-counter offset, kept
// as opaque source text — interpreting it is out of core scope (spec §9).
type Hint struct {
	Code             string          `json:"code"`
	AccessibleScopes []string        `json:"accessible_scopes,omitempty"`
	FlowTrackingData json.RawMessage `json:"flow_tracking_data,omitempty"`
}

// Program is the deserialized compiled-program artifact.
type Program struct {
	Prime     string            `json:"prime"`
	Data      []string          `json:"data"`
	Builtins  []string          `json:"builtins"`
	Hints     map[string][]Hint `json:"hints,omitempty"`
	MainScope string            `json:"main_scope,omitempty"`
	DebugInfo json.RawMessage   `json:"debug_info,omitempty"`

	// Identifiers and ReferenceManager are consumed by the hint interface,
	// never by the core VM, so they are kept as opaque passthrough values
	// (spec §6) rather than modeled field-by-field.
	Identifiers      json.RawMessage `json:"identifiers,omitempty"`
	ReferenceManager json.RawMessage `json:"reference_manager,omitempty"`
}

// Load parses a compiled-program artifact from JSON.
func Load(raw []byte) (*Program, error) {
	var p Program
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("program: decoding: %w", err)
	}
	if len(p.Data) == 0 {
		return nil, fmt.Errorf("program: empty program data")
	}
	return &p, nil
}

// CheckPrime verifies the program's declared prime matches the VM's
// field modulus, per spec §6 ("must equal the VM prime").
func (p *Program) CheckPrime() error {
	// Compared as plain integers: field.FromHex reduces mod P, which would
	// turn the correct prime into 0.
	got, ok := new(big.Int).SetString(p.Prime, 0)
	if !ok {
		return fmt.Errorf("program: invalid prime %q", p.Prime)
	}
	want := field.Prime().BytesBE()
	if got.Cmp(new(big.Int).SetBytes(want[:])) != 0 {
		return fmt.Errorf("program: prime %q does not match the VM field modulus", p.Prime)
	}
	return nil
}

// Felts decodes Data into field elements, in program order.
func (p *Program) Felts() ([]field.Felt, error) {
	out := make([]field.Felt, len(p.Data))
	for i, s := range p.Data {
		f, err := field.FromHex(s)
		if err != nil {
			return nil, fmt.Errorf("program: data[%d]: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// HintsByOffset flattens the JSON hints map (string pc offsets, per the
// artifact's on-disk encoding) into the uint64-keyed table hints.Runner
// consumes, one code string per registered Hint, in declaration order.
func (p *Program) HintsByOffset() (map[uint64][]string, error) {
	out := make(map[uint64][]string, len(p.Hints))
	for offsetStr, hintList := range p.Hints {
		var offset uint64
		if _, err := fmt.Sscanf(offsetStr, "%d", &offset); err != nil {
			return nil, fmt.Errorf("program: invalid hint offset key %q: %w", offsetStr, err)
		}
		codes := make([]string, len(hintList))
		for i, h := range hintList {
			codes[i] = h.Code
		}
		out[offset] = codes
	}
	return out, nil
}
