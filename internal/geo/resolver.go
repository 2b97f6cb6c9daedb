// Package geo resolves the region → province → city → barangay cascade over
// a static reference table embedded at build time. Lookups are pure; an
// unknown parent simply yields an empty child set.
package geo

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed reference.yaml
var rawReference []byte

// Level is one tier of the location hierarchy.
type Level string

const (
	LevelRegion   Level = "region"
	LevelProvince Level = "province"
	LevelCity     Level = "city"
	LevelBarangay Level = "barangay"
)

// Descendants lists the levels below l, nearest first.
func Descendants(l Level) []Level {
	switch l {
	case LevelRegion:
		return []Level{LevelProvince, LevelCity, LevelBarangay}
	case LevelProvince:
		return []Level{LevelCity, LevelBarangay}
	case LevelCity:
		return []Level{LevelBarangay}
	default:
		return nil
	}
}

type cityEntry struct {
	Name      string   `yaml:"name"`
	Barangays []string `yaml:"barangays"`
}

type provinceEntry struct {
	Name   string      `yaml:"name"`
	Cities []cityEntry `yaml:"cities"`
}

type regionEntry struct {
	Name      string          `yaml:"name"`
	Provinces []provinceEntry `yaml:"provinces"`
}

type referenceFile struct {
	Regions []regionEntry `yaml:"regions"`
}

// Resolver answers child-set queries against the reference table.
type Resolver struct {
	regions  []string
	children map[Level]map[string][]string
}

// NewResolver parses the embedded reference table. It fails only if the
// embedded data is malformed, which is a build defect rather than a runtime
// condition.
func NewResolver() (*Resolver, error) {
	var ref referenceFile
	if err := yaml.Unmarshal(rawReference, &ref); err != nil {
		return nil, fmt.Errorf("parse geo reference: %w", err)
	}
	r := &Resolver{
		children: map[Level]map[string][]string{
			LevelProvince: {},
			LevelCity:     {},
			LevelBarangay: {},
		},
	}
	for _, region := range ref.Regions {
		r.regions = append(r.regions, region.Name)
		for _, prov := range region.Provinces {
			r.children[LevelProvince][region.Name] = append(r.children[LevelProvince][region.Name], prov.Name)
			for _, city := range prov.Cities {
				r.children[LevelCity][prov.Name] = append(r.children[LevelCity][prov.Name], city.Name)
				r.children[LevelBarangay][city.Name] = append(r.children[LevelBarangay][city.Name], city.Barangays...)
			}
		}
	}
	return r, nil
}

// Regions returns the top-level option set in table order.
func (r *Resolver) Regions() []string {
	return append([]string(nil), r.regions...)
}

// ChildrenOf returns the ordered set of valid children at the given level
// under parent. Unknown parents yield an empty set.
func (r *Resolver) ChildrenOf(level Level, parent string) []string {
	if level == LevelRegion {
		return r.Regions()
	}
	kids := r.children[level][parent]
	return append([]string(nil), kids...)
}

// Contains reports whether value is a valid child of parent at level.
func (r *Resolver) Contains(level Level, parent, value string) bool {
	for _, c := range r.ChildrenOf(level, parent) {
		if c == value {
			return true
		}
	}
	return false
}
