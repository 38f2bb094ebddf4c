// Package assets collects the supporting files (logos, fonts, source images)
// bundled alongside a campaign's renders.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shipyard/internal/config"
	"shipyard/internal/rendersource"
	"shipyard/internal/services"
)

// Item is one exported asset.
type Item struct {
	Kind string
	Name string
	Data []byte
}

// Exporter returns the assets of a campaign, filtered to the requested kinds.
// An empty kinds list selects every kind.
type Exporter interface {
	Export(ctx context.Context, campaign *rendersource.Campaign, kinds []string) ([]Item, error)
}

// Directory reads assets from <Root>/<campaign-id>/<Subdir>/<kind>/<name>.
// Files placed directly under the campaign asset directory have kind "misc".
type Directory struct {
	Root   string
	Subdir string
}

// NewDirectory builds the asset exporter described by the render source
// config: the shared asset library when configured, otherwise the assets
// directory inside each catalog entry.
func NewDirectory(cfg *config.Config) *Directory {
	if cfg == nil {
		return &Directory{}
	}
	if dir := strings.TrimSpace(cfg.RenderSource.AssetDir); dir != "" {
		return &Directory{Root: dir}
	}
	return &Directory{Root: cfg.RenderSource.CatalogDir, Subdir: "assets"}
}

const miscKind = "misc"

func (d *Directory) Export(ctx context.Context, campaign *rendersource.Campaign, kinds []string) ([]Item, error) {
	if campaign == nil || strings.TrimSpace(campaign.ID) == "" {
		return nil, services.Wrap(services.ErrValidation, "assets", "export", "campaign is required", nil)
	}
	if strings.ContainsAny(campaign.ID, `/\`) || campaign.ID == ".." {
		return nil, services.Wrap(services.ErrValidation, "assets", "export", fmt.Sprintf("invalid campaign id %q", campaign.ID), nil)
	}
	base := filepath.Join(d.Root, campaign.ID, d.Subdir)
	if _, err := os.Stat(base); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, services.Wrap(services.ErrTransient, "assets", "export", "stat asset dir", err)
	}

	wanted := make(map[string]struct{}, len(kinds))
	for _, kind := range kinds {
		if kind = strings.ToLower(strings.TrimSpace(kind)); kind != "" {
			wanted[kind] = struct{}{}
		}
	}

	var items []Item
	err := filepath.WalkDir(base, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		kind := miscKind
		if parts := strings.Split(filepath.ToSlash(rel), "/"); len(parts) > 1 {
			kind = strings.ToLower(parts[0])
		}
		if len(wanted) > 0 {
			if _, ok := wanted[kind]; !ok {
				return nil
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		items = append(items, Item{Kind: kind, Name: entry.Name(), Data: data})
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrTransient, "assets", "export", "read assets", err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Kind != items[j].Kind {
			return items[i].Kind < items[j].Kind
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}
