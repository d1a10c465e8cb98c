package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/arthur-debert/ledgerview/ledgerview/remote/jsonfile"
	"github.com/arthur-debert/ledgerview/types"
)

// LedgerData provides typed access to the test fixture records, as stored
// (server-assigned ids and versions filled in)
type LedgerData struct {
	HostingMarch   types.Record // invoice, Acme, hosting, 120, 2024-03-01
	RentJanuary    types.Record // invoice, Globex, rent, 900, 2024-01-05
	HostingReceipt types.Record // receipt, acme, hosting, 120, 2024-03-04
	UndatedInvoice types.Record // invoice, Initech, untagged, 45.5, no date
	Refund         types.Record // credit note, Acme, hosting, -20, 2024-02-10
	Untotaled      types.Record // invoice, Globex, consulting, no total, 2024-02-28
	Kickoff        types.Record // briefing, Acme, 2024-04-01

	// All records by fixture name
	ByName map[string]types.Record
}

// Documents returns the fixture's billing documents in creation order
func (d *LedgerData) Documents() []types.Record {
	return []types.Record{d.HostingMarch, d.RentJanuary, d.HostingReceipt, d.UndatedInvoice, d.Refund, d.Untotaled}
}

type fixtureRecord struct {
	Name   string       `json:"name"`
	Record types.Record `json:"record"`
}

type fixtureData struct {
	Records []fixtureRecord `json:"records"`
}

// LoadLedger creates a JSON file store in a temporary directory and fills it
// with the ledger fixture
func LoadLedger(t *testing.T) (*jsonfile.Store, *LedgerData) {
	t.Helper()

	store := jsonfile.Open(filepath.Join(t.TempDir(), "ledger.json"))
	t.Cleanup(func() { _ = store.Close() })

	// Load fixture data - use runtime to find the correct path
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to get runtime caller info")
	}
	fixturePath := filepath.Join(filepath.Dir(filename), "..", "testdata", "ledger.json")
	raw, err := os.ReadFile(fixturePath)
	if err != nil {
		t.Fatalf("failed to read fixture file: %v", err)
	}

	var fixture fixtureData
	if err := json.Unmarshal(raw, &fixture); err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}

	data := &LedgerData{ByName: make(map[string]types.Record)}
	for _, fr := range fixture.Records {
		created, err := store.Create(context.Background(), fr.Record)
		if err != nil {
			t.Fatalf("failed to add fixture record %s: %v", fr.Name, err)
		}
		data.ByName[fr.Name] = created
	}

	data.HostingMarch = data.mustGet(t, "hosting_march")
	data.RentJanuary = data.mustGet(t, "rent_january")
	data.HostingReceipt = data.mustGet(t, "hosting_receipt")
	data.UndatedInvoice = data.mustGet(t, "undated_invoice")
	data.Refund = data.mustGet(t, "refund")
	data.Untotaled = data.mustGet(t, "untotaled")
	data.Kickoff = data.mustGet(t, "kickoff")

	return store, data
}

func (d *LedgerData) mustGet(t *testing.T, name string) types.Record {
	t.Helper()
	r, ok := d.ByName[name]
	if !ok {
		t.Fatalf("fixture record %s missing", name)
	}
	return r
}
