package rendersource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shipyard/internal/services"
)

const descriptorName = "campaign.json"

// Catalog is a Source backed by a directory tree.
type Catalog struct {
	root   string
	client *http.Client
}

// NewCatalog constructs a directory catalog rooted at root. A nil client gets
// a default client with the provided timeout.
func NewCatalog(root string, client *http.Client, timeout time.Duration) *Catalog {
	if client == nil {
		if timeout <= 0 {
			timeout = time.Minute
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Catalog{root: root, client: client}
}

// Root returns the catalog directory.
func (c *Catalog) Root() string {
	return c.root
}

// Campaign reads <root>/<id>/campaign.json.
func (c *Catalog) Campaign(ctx context.Context, id string) (*Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := c.campaignDir(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, descriptorName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, "rendersource", "campaign", fmt.Sprintf("campaign %s not found", id), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "rendersource", "campaign", "read descriptor", err)
	}
	var campaign Campaign
	if err := json.Unmarshal(data, &campaign); err != nil {
		return nil, services.Wrap(services.ErrValidation, "rendersource", "campaign", "decode descriptor", err)
	}
	if campaign.ID == "" {
		campaign.ID = id
	}
	return &campaign, nil
}

// Open streams an output from disk or over HTTP.
func (c *Catalog) Open(ctx context.Context, campaignID string, output Output) (io.ReadCloser, error) {
	if url := strings.TrimSpace(output.URL); url != "" {
		return c.fetch(ctx, url)
	}
	dir, err := c.campaignDir(campaignID)
	if err != nil {
		return nil, err
	}
	rel := output.Path
	if rel == "" {
		rel = output.Name
	}
	target := filepath.Join(dir, filepath.Clean("/"+rel))
	file, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, "rendersource", "open", fmt.Sprintf("output %s missing", output.ID), err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "rendersource", "open", output.ID, err)
	}
	return file, nil
}

// List returns the identifiers of every campaign in the catalog.
func (c *Catalog) List() ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(c.root, entry.Name(), descriptorName)); err == nil {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

func (c *Catalog) campaignDir(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", services.Wrap(services.ErrValidation, "rendersource", "campaign", fmt.Sprintf("invalid campaign id %q", id), nil)
	}
	return filepath.Join(c.root, id), nil
}

func (c *Catalog) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "rendersource", "fetch", "build request", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "rendersource", "fetch", url, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, services.Wrap(services.ErrNotFound, "rendersource", "fetch", url, nil)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, services.Wrap(services.ErrTransient, "rendersource", "fetch", fmt.Sprintf("%s: unexpected status %s", url, resp.Status), nil)
	}
	return resp.Body, nil
}
