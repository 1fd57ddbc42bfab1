// Package puzzles defines the puzzle templates used by streamed CATs and the
// commitment scheme that identifies a stream instance on-chain.
package puzzles

import (
	"errors"
	"fmt"
	"sort"

	"go.streamcat.tech/core/clvm"
	"go.streamcat.tech/core/types"
)

// ErrNoReveal is returned when a puzzle must be built from a template whose
// reveal is not known.
var ErrNoReveal = errors.New("template reveal not available")

// A Template is a fixed, content-addressed puzzle module. Stream templates
// carry the version of the streaming puzzle they implement; other templates
// (such as the token layer) have a zero Version.
type Template struct {
	Version types.StreamVersion
	Name    string
	Hash    types.Hash256

	reveal    clvm.Node
	hasReveal bool
}

// Reveal returns the template's program.
func (t Template) Reveal() (clvm.Node, error) {
	if !t.hasReveal {
		return clvm.Nil, fmt.Errorf("%s: %w", t.Name, ErrNoReveal)
	}
	return t.reveal, nil
}

// HasReveal reports whether the template's program is known.
func (t Template) HasReveal() bool { return t.hasReveal }

// WithReveal returns a copy of t carrying reveal. The reveal must hash to
// t.Hash.
func (t Template) WithReveal(reveal clvm.Node) (Template, error) {
	if h := clvm.TreeHash(reveal); h != t.Hash {
		return Template{}, fmt.Errorf("%s: reveal hashes to %v, expected %v", t.Name, h, t.Hash)
	}
	t.reveal, t.hasReveal = reveal, true
	return t, nil
}

// NewTemplate returns a template whose hash is derived from reveal.
func NewTemplate(name string, version types.StreamVersion, reveal clvm.Node) Template {
	return Template{
		Version:   version,
		Name:      name,
		Hash:      clvm.TreeHash(reveal),
		reveal:    reveal,
		hasReveal: true,
	}
}

// LoadTemplate parses a hex-encoded reveal. If expected is non-zero, the
// reveal must hash to it.
func LoadTemplate(name string, version types.StreamVersion, hexReveal string, expected types.Hash256) (Template, error) {
	reveal, err := clvm.DeserializeHex(hexReveal)
	if err != nil {
		return Template{}, fmt.Errorf("%s: failed to parse reveal: %w", name, err)
	}
	t := NewTemplate(name, version, reveal)
	if expected != (types.Hash256{}) && t.Hash != expected {
		return Template{}, fmt.Errorf("%s: reveal hashes to %v, expected %v", name, t.Hash, expected)
	}
	return t, nil
}

// streamV1Reveal is the deployed v1 streaming puzzle. It is curried twice:
// first with (RECIPIENT END_TIME), then with (SELF_HASH LAST_PAYMENT_TIME),
// and is solved with (my_amount payment_time).
const streamV1Reveal = "ff02ffff01ff02ffff03ffff15ff81bfff2f80ffff01ff02ff16ffff04ff02ffff04ff05ffff04ff17ffff04ffff05ffff14ffff12ff5fffff11ff81bfff2f8080ffff11ff0bff2f808080ffff04ff5fffff04ff81bfffff04ffff04ffff04ff14ffff04ff81bfff808080ffff04ffff04ff08ffff04ff5fff808080ffff04ffff04ff12ffff04ff81bfffff04ff05ff80808080ff80808080ff808080808080808080ffff01ff088080ff0180ffff04ffff01ffff49ff5133ffff4302ffff04ffff04ff1cffff04ff05ffff04ff2fffff04ffff04ff05ff8080ff8080808080ffff04ffff04ff1cffff04ffff0bff5effff0bff1affff0bff1aff6eff0b80ffff0bff1affff0bff7effff0bff1affff0bff1aff6effff0bffff0101ff0b8080ffff0bff1affff0bff7effff0bff1affff0bff1aff6effff0bffff0101ff5f8080ffff0bff1aff6eff4e808080ff4e808080ff4e808080ffff04ffff11ff17ff2f80ffff04ffff04ff05ff8080ff8080808080ff81bf8080ffffa04bf5122f344554c53bde2ebb8cd2b7e3d1600ad631c385a5d7cce23c7785459aa09dcf97a184f32623d11a73124ceb99a5709b083721e878a16d78f596718ba7b2ffa102a12871fee210fb8619291eaea194581cbd2531e4b23759d225f6806923f63222a102a8d5dd63fba471ebcb1f3e8f7c1e1879b7152a6e7298a91ce119a63400ade7c5ff018080"

// StreamV1Hash is the tree hash of the v1 streaming puzzle.
var StreamV1Hash = mustParseHash("3dbd86c0b4b09e4767adf8d8d149539480b7fbf38381acb326c03898d5d73233")

// StreamV1Template is the v1 (no clawback) streaming puzzle.
var StreamV1Template = Template{
	Version:   types.StreamV1,
	Name:      "stream_v1",
	Hash:      StreamV1Hash,
	reveal:    mustDeserializeHex(streamV1Reveal),
	hasReveal: true,
}

func mustParseHash(s string) types.Hash256 {
	h, err := types.ParseHash256(s)
	if err != nil {
		panic(err)
	}
	return h
}

func mustDeserializeHex(s string) clvm.Node {
	n, err := clvm.DeserializeHex(s)
	if err != nil {
		panic(err)
	}
	return n
}

// A Registry is an immutable set of stream templates, indexed by version and
// by hash.
type Registry struct {
	byVersion map[types.StreamVersion]Template
}

// NewRegistry returns a Registry containing the given templates. Each template
// must have a distinct, non-zero version and a distinct hash.
func NewRegistry(templates ...Template) (Registry, error) {
	r := Registry{byVersion: make(map[types.StreamVersion]Template)}
	seen := make(map[types.Hash256]bool)
	for _, t := range templates {
		if t.Version == 0 {
			return Registry{}, fmt.Errorf("%s: not a stream template", t.Name)
		} else if _, ok := r.byVersion[t.Version]; ok {
			return Registry{}, fmt.Errorf("%s: duplicate template for version %v", t.Name, t.Version)
		} else if seen[t.Hash] {
			return Registry{}, fmt.Errorf("%s: duplicate template hash %v", t.Name, t.Hash)
		}
		r.byVersion[t.Version] = t
		seen[t.Hash] = true
	}
	return r, nil
}

// DefaultRegistry returns a Registry containing the templates whose reveals
// ship with this package.
func DefaultRegistry() Registry {
	r, err := NewRegistry(StreamV1Template)
	if err != nil {
		panic(err)
	}
	return r
}

// With returns a copy of r with t added, replacing any existing template of
// the same version.
func (r Registry) With(t Template) (Registry, error) {
	templates := []Template{t}
	for _, existing := range r.Templates() {
		if existing.Version != t.Version {
			templates = append(templates, existing)
		}
	}
	return NewRegistry(templates...)
}

// Template returns the template for the given version.
func (r Registry) Template(v types.StreamVersion) (Template, bool) {
	t, ok := r.byVersion[v]
	return t, ok
}

// ByHash returns the template with the given hash.
func (r Registry) ByHash(h types.Hash256) (Template, bool) {
	for _, t := range r.byVersion {
		if t.Hash == h {
			return t, true
		}
	}
	return Template{}, false
}

// Templates returns the registered templates in version order.
func (r Registry) Templates() []Template {
	ts := make([]Template, 0, len(r.byVersion))
	for _, t := range r.byVersion {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Version < ts[j].Version })
	return ts
}
