package vrm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// CapabilityProfile is the set of bone and expression channels an avatar
// model actually supports. It is derived once when the model is loaded and
// never mutated afterwards; pipelines hold it by reference.
type CapabilityProfile struct {
	name        string
	bones       map[string]struct{}
	expressions map[string]struct{}

	// Sorted copies, computed at construction so encoders can iterate
	// deterministically without re-sorting per frame.
	boneNames       []string
	expressionNames []string
}

// profileDocument is the on-disk JSON shape, matching the humanoid and
// expression lists the model loader extracts from a VRM file.
type profileDocument struct {
	Name        string   `json:"name"`
	Humanoid    []string `json:"humanoid"`
	Expressions []string `json:"expressions"`
}

// NewProfile builds a CapabilityProfile from explicit channel lists.
// Bone names outside the humanoid vocabulary are rejected; duplicate names
// collapse. Expression names are free-form (models may define custom
// blendshape targets beyond the ARKit set).
func NewProfile(name string, bones, expressions []string) (*CapabilityProfile, error) {
	p := &CapabilityProfile{
		name:        name,
		bones:       make(map[string]struct{}, len(bones)),
		expressions: make(map[string]struct{}, len(expressions)),
	}
	for _, b := range bones {
		if !IsHumanoidBone(b) {
			return nil, fmt.Errorf("profile %q: unknown humanoid bone %q", name, b)
		}
		p.bones[b] = struct{}{}
	}
	for _, e := range expressions {
		if e == "" {
			return nil, fmt.Errorf("profile %q: empty expression name", name)
		}
		p.expressions[e] = struct{}{}
	}
	p.boneNames = sortedKeys(p.bones)
	p.expressionNames = sortedKeys(p.expressions)
	return p, nil
}

// LoadProfile reads a profile JSON document from disk.
func LoadProfile(path string) (*CapabilityProfile, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("profile file must have .json extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	var doc profileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return NewProfile(doc.Name, doc.Humanoid, doc.Expressions)
}

// ParseProfile builds a profile from raw JSON, the form stored in the app
// database's avatar records.
func ParseProfile(name string, humanoidJSON, expressionsJSON []byte) (*CapabilityProfile, error) {
	var bones, expressions []string
	if err := json.Unmarshal(humanoidJSON, &bones); err != nil {
		return nil, fmt.Errorf("failed to parse humanoid list: %w", err)
	}
	if err := json.Unmarshal(expressionsJSON, &expressions); err != nil {
		return nil, fmt.Errorf("failed to parse expression list: %w", err)
	}
	return NewProfile(name, bones, expressions)
}

// Name returns the model name the profile was derived from.
func (p *CapabilityProfile) Name() string { return p.name }

// HasBone reports whether the profile exposes the named bone channel.
func (p *CapabilityProfile) HasBone(name string) bool {
	_, ok := p.bones[name]
	return ok
}

// HasExpression reports whether the profile exposes the named expression channel.
func (p *CapabilityProfile) HasExpression(name string) bool {
	_, ok := p.expressions[name]
	return ok
}

// BoneNames returns the profile's bone channels in sorted order.
// The returned slice must not be modified.
func (p *CapabilityProfile) BoneNames() []string { return p.boneNames }

// ExpressionNames returns the profile's expression channels in sorted order.
// The returned slice must not be modified.
func (p *CapabilityProfile) ExpressionNames() []string { return p.expressionNames }

// BoneCount returns the number of bone channels.
func (p *CapabilityProfile) BoneCount() int { return len(p.bones) }

// ExpressionCount returns the number of expression channels.
func (p *CapabilityProfile) ExpressionCount() int { return len(p.expressions) }

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
