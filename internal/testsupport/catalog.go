package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"shipyard/internal/rendersource"
)

// WriteCampaign lays out a campaign in a directory catalog: campaign.json plus
// one file per output. Outputs without a payload get Size bytes of filler.
// Output paths default to the output name.
func WriteCampaign(t testing.TB, root string, campaign rendersource.Campaign, payloads map[string][]byte) {
	t.Helper()

	dir := filepath.Join(root, campaign.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir campaign dir: %v", err)
	}
	campaign.Outputs = append([]rendersource.Output(nil), campaign.Outputs...)
	for idx := range campaign.Outputs {
		output := &campaign.Outputs[idx]
		if output.URL != "" {
			continue
		}
		if output.Path == "" {
			output.Path = output.Name
		}
		target := filepath.Join(dir, output.Path)
		if payload, ok := payloads[output.ID]; ok {
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				t.Fatalf("mkdir output dir: %v", err)
			}
			if err := os.WriteFile(target, payload, 0o644); err != nil {
				t.Fatalf("write output %s: %v", output.ID, err)
			}
			output.Size = int64(len(payload))
			continue
		}
		WriteFile(t, target, output.Size)
	}
	data, err := json.MarshalIndent(campaign, "", "  ")
	if err != nil {
		t.Fatalf("marshal campaign: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "campaign.json"), data, 0o644); err != nil {
		t.Fatalf("write campaign.json: %v", err)
	}
}

// WriteAsset places an asset file under <root>/<campaign>/assets/<kind>/<name>.
func WriteAsset(t testing.TB, root, campaignID, kind, name string, payload []byte) {
	t.Helper()

	target := filepath.Join(root, campaignID, "assets", kind, name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir asset dir: %v", err)
	}
	if err := os.WriteFile(target, payload, 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}
}
