// params.go: Parameter info cache and rescan reconciliation across reloads
//
// The host only ever sees the wrapper's parameter list, which is served from
// a cache. After a reload the cache is diffed against the new instance and
// the diff decides which rescan flags the host receives, and whether the
// swap can happen while audio keeps running.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"strings"
)

// ParamInfoFlags describe a parameter's capabilities.
type ParamInfoFlags uint32

const (
	ParamIsStepped ParamInfoFlags = 1 << iota
	ParamIsPeriodic
	ParamIsHidden
	ParamIsReadonly
	ParamIsBypass
	ParamIsAutomatable
	ParamIsAutomatablePerNoteID
	ParamIsAutomatablePerKey
	ParamIsAutomatablePerChannel
	ParamIsAutomatablePerPort
	ParamIsModulatable
	ParamIsModulatablePerNoteID
	ParamIsModulatablePerKey
	ParamIsModulatablePerChannel
	ParamIsModulatablePerPort
	ParamRequiresProcess
	ParamIsEnum
)

// paramInfoOnlyFlags can change with a plain info rescan. Every other flag
// changes how the host addresses or automates the parameter.
const paramInfoOnlyFlags = ParamIsHidden | ParamRequiresProcess | ParamIsEnum

// ParamInfo is the host-visible description of one parameter.
type ParamInfo struct {
	ID           uint32         `json:"id"`
	Flags        ParamInfoFlags `json:"flags"`
	Cookie       uintptr        `json:"-"`
	Name         string         `json:"name"`
	Module       string         `json:"module"`
	MinValue     float64        `json:"min_value"`
	MaxValue     float64        `json:"max_value"`
	DefaultValue float64        `json:"default_value"`
}

// ParamRescanFlags select what the host must re-query.
type ParamRescanFlags uint32

const (
	// ParamRescanValues: parameter values changed.
	ParamRescanValues ParamRescanFlags = 1 << iota
	// ParamRescanText: value to text conversions changed.
	ParamRescanText
	// ParamRescanInfo: names, modules or cosmetic flags changed.
	ParamRescanInfo
	// ParamRescanAll: the parameter list changed structurally. Only allowed
	// while the plugin is deactivated.
	ParamRescanAll
)

// Has reports whether every bit of other is set.
func (f ParamRescanFlags) Has(other ParamRescanFlags) bool { return f&other == other }

// RequiresRestart reports whether the host must deactivate the plugin
// before the rescan can be applied.
func (f ParamRescanFlags) RequiresRestart() bool { return f.Has(ParamRescanAll) }

// String lists the set flags.
func (f ParamRescanFlags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	if f.Has(ParamRescanValues) {
		parts = append(parts, "values")
	}
	if f.Has(ParamRescanText) {
		parts = append(parts, "text")
	}
	if f.Has(ParamRescanInfo) {
		parts = append(parts, "info")
	}
	if f.Has(ParamRescanAll) {
		parts = append(parts, "all")
	}
	return strings.Join(parts, "|")
}

// diffForRescan returns the flags needed to move the host from p to next.
// Default values are not part of the diff.
func (p ParamInfo) diffForRescan(next ParamInfo) ParamRescanFlags {
	var flags ParamRescanFlags

	if p.MinValue != next.MinValue || p.MaxValue != next.MaxValue || p.Cookie != next.Cookie {
		flags |= ParamRescanAll
	}

	changed := p.Flags ^ next.Flags
	if changed&^paramInfoOnlyFlags != 0 {
		flags |= ParamRescanAll
	}
	if changed&paramInfoOnlyFlags != 0 {
		flags |= ParamRescanInfo
	}

	if p.Name != next.Name {
		flags |= ParamRescanText
	}
	if p.Module != next.Module {
		flags |= ParamRescanInfo
	}
	return flags
}

// changes names the fields that differ between p and next.
func (p ParamInfo) changes(next ParamInfo) []string {
	var out []string
	if p.MinValue != next.MinValue || p.MaxValue != next.MaxValue {
		out = append(out, "range")
	}
	if p.Cookie != next.Cookie {
		out = append(out, "cookie")
	}
	if p.Flags != next.Flags {
		out = append(out, "flags")
	}
	if p.Name != next.Name {
		out = append(out, "name")
	}
	if p.Module != next.Module {
		out = append(out, "module")
	}
	if p.DefaultValue != next.DefaultValue {
		out = append(out, "default")
	}
	return out
}

// ParamUpdate describes one parameter present before and after a reload.
type ParamUpdate struct {
	ID      uint32   `json:"id"`
	Changes []string `json:"changes"`
}

// ParamDiff is the result of comparing a cache with a new parameter list.
type ParamDiff struct {
	Added   []uint32         `json:"added"`
	Updated []ParamUpdate    `json:"updated"`
	Removed []uint32         `json:"removed"`
	Flags   ParamRescanFlags `json:"flags"`
	next    []ParamInfo
}

// IsEmpty reports whether no parameter changed.
func (d ParamDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

// ParamInfoCache is the wrapper's view of the wrapped plugin's parameters,
// in the order the plugin reports them. It is owned by the main thread.
type ParamInfoCache struct {
	params []ParamInfo
	byID   map[uint32]int
}

// NewParamInfoCache builds a cache from ext. A nil ext gives an empty cache.
func NewParamInfoCache(ext ParamsExtension) *ParamInfoCache {
	c := &ParamInfoCache{byID: make(map[uint32]int)}
	c.Apply(c.Diff(ext))
	return c
}

// readParamInfos lists the parameters reported by ext.
func readParamInfos(ext ParamsExtension) []ParamInfo {
	if ext == nil {
		return nil
	}
	count := ext.ParamCount()
	out := make([]ParamInfo, 0, count)
	seen := make(map[uint32]struct{}, count)
	for i := uint32(0); i < count; i++ {
		info, ok := ext.ParamInfo(i)
		if !ok {
			continue
		}
		if _, dup := seen[info.ID]; dup {
			continue
		}
		seen[info.ID] = struct{}{}
		out = append(out, info)
	}
	return out
}

// Diff compares the cache with the parameters currently reported by ext
// without modifying the cache.
//
// Per parameter, matched by id: a new id or a removed id yields
// ParamRescanAll; a changed range, cookie or addressing flag yields
// ParamRescanAll; a changed name yields ParamRescanText; a changed module or
// cosmetic flag yields ParamRescanInfo. Default values are refreshed silently.
func (c *ParamInfoCache) Diff(ext ParamsExtension) ParamDiff {
	next := readParamInfos(ext)
	diff := ParamDiff{next: next}

	seen := make(map[uint32]struct{}, len(next))
	for _, info := range next {
		seen[info.ID] = struct{}{}

		idx, ok := c.byID[info.ID]
		if !ok {
			diff.Added = append(diff.Added, info.ID)
			diff.Flags |= ParamRescanAll
			continue
		}

		old := c.params[idx]
		if changes := old.changes(info); len(changes) > 0 {
			diff.Updated = append(diff.Updated, ParamUpdate{ID: info.ID, Changes: changes})
		}
		diff.Flags |= old.diffForRescan(info)
	}

	for _, old := range c.params {
		if _, ok := seen[old.ID]; !ok {
			diff.Removed = append(diff.Removed, old.ID)
			diff.Flags |= ParamRescanAll
		}
	}

	return diff
}

// Apply replaces the cached list with the one captured by d.
func (c *ParamInfoCache) Apply(d ParamDiff) {
	c.params = append([]ParamInfo(nil), d.next...)
	c.byID = make(map[uint32]int, len(c.params))
	for i, p := range c.params {
		c.byID[p.ID] = i
	}
}

// Update diffs and applies in one step, returning the rescan flags.
func (c *ParamInfoCache) Update(ext ParamsExtension) ParamRescanFlags {
	d := c.Diff(ext)
	c.Apply(d)
	return d.Flags
}

// Len returns the number of cached parameters.
func (c *ParamInfoCache) Len() int { return len(c.params) }

// At returns the parameter at index.
func (c *ParamInfoCache) At(index uint32) (ParamInfo, bool) {
	if int(index) >= len(c.params) {
		return ParamInfo{}, false
	}
	return c.params[index], true
}

// Get returns the parameter with id.
func (c *ParamInfoCache) Get(id uint32) (ParamInfo, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return ParamInfo{}, false
	}
	return c.params[idx], true
}

// IDs returns the cached ids in order.
func (c *ParamInfoCache) IDs() []uint32 {
	out := make([]uint32, len(c.params))
	for i, p := range c.params {
		out[i] = p.ID
	}
	return out
}
