package protocol_test

import (
	"testing"

	"ratitude/pkg/protocol"
)

func sampleEntries() []protocol.ObjectInfo {
	return []protocol.ObjectInfo{
		{
			ObjectID:         0x959930BF,
			Name:             "battery.soc",
			Group:            protocol.GroupBattery,
			Description:      "Battery state of charge",
			Unit:             "%",
			RequestDataType:  protocol.DataTypeFloat,
			ResponseDataType: protocol.DataTypeFloat,
		},
		{
			ObjectID:         0x400F015B,
			Name:             "grid.power_w",
			Group:            protocol.GroupGridMon,
			Description:      "Grid power",
			Unit:             "W",
			RequestDataType:  protocol.DataTypeFloat,
			ResponseDataType: protocol.DataTypeFloat,
		},
	}
}

func TestRegistryLookupRoundTrip(t *testing.T) {
	reg, err := protocol.NewRegistry(sampleEntries())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}

	byID, err := reg.GetByID(0x959930BF)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.Name != "battery.soc" {
		t.Fatalf("GetByID name = %q, want battery.soc", byID.Name)
	}

	byName, err := reg.GetByName("grid.power_w")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if byName.ObjectID != 0x400F015B {
		t.Fatalf("GetByName id = 0x%08X, want 0x400F015B", byName.ObjectID)
	}
}

func TestRegistryLookupMiss(t *testing.T) {
	reg, err := protocol.NewRegistry(sampleEntries())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, err := reg.GetByID(0xDEADBEEF); err == nil {
		t.Fatalf("expected a LookupError for an unknown id")
	}
	if _, err := reg.GetByName("does.not.exist"); err == nil {
		t.Fatalf("expected a LookupError for an unknown name")
	}
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	entries := sampleEntries()
	entries = append(entries, protocol.ObjectInfo{
		ObjectID: entries[0].ObjectID,
		Name:     "some.other.name",
	})
	if _, err := protocol.NewRegistry(entries); err == nil {
		t.Fatalf("expected an error for a duplicate object id")
	}
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	entries := sampleEntries()
	entries = append(entries, protocol.ObjectInfo{
		ObjectID: 0xAAAAAAAA,
		Name:     entries[0].Name,
	})
	if _, err := protocol.NewRegistry(entries); err == nil {
		t.Fatalf("expected an error for a duplicate name")
	}
}

func TestRegistryAllReachesEveryEntry(t *testing.T) {
	reg, err := protocol.NewRegistry(sampleEntries())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	all := reg.All()
	if len(all) != reg.Len() {
		t.Fatalf("len(All()) = %d, want %d", len(all), reg.Len())
	}
}
