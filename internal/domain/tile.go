package domain

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Tile represents a registered tile and the plans built for it.
type Tile struct {
	ID          string                // Unique identifier (derived from the tile root)
	Path        string                // metadata.xml path
	Root        string                // Tile root directory
	GroupName   string                // T<zone><band><square>
	ProductName string                // Product name from tileInfo.json
	Plans       map[string]*BuildPlan // Plans keyed by profile tag
	Status      TileStatus            // Lifecycle status
	Error       string                // Last build error
	LoadedAt    time.Time             // Load timestamp
	BuiltAt     time.Time             // Last successful build
}

// IsReady returns true if the tile has been built for every requested profile.
func (t *Tile) IsReady() bool {
	return t.Status == TileStatusReady && len(t.Plans) > 0
}

// PlanCount returns the number of built plans.
func (t *Tile) PlanCount() int {
	return len(t.Plans)
}

// GetPlan returns the plan for a profile tag.
func (t *Tile) GetPlan(profile string) (*BuildPlan, bool) {
	p, ok := t.Plans[profile]
	return p, ok
}

// Profiles returns the tags of all built plans in sorted order.
func (t *Tile) Profiles() []string {
	tags := make([]string, 0, len(t.Plans))
	for tag := range t.Plans {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// TileStatus represents the status of a tile.
type TileStatus string

const (
	TileStatusLoading   TileStatus = "loading"
	TileStatusReady     TileStatus = "ready"
	TileStatusError     TileStatus = "error"
	TileStatusUnloading TileStatus = "unloading"
)

// TileID derives a tile identifier from its root relative to base.
// Path separators become underscores: tiles/32/T/QM/2020/1/1/0 -> tiles_32_T_QM_2020_1_1_0.
func TileID(base, root string) string {
	rel, err := filepath.Rel(base, root)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(root)
	}
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", "_")
}
