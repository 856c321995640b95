package txdb

import "testing"

func TestUpdateInsertsThenOverwritesBlockContext(t *testing.T) {
	db := New()

	idx := db.Update(TxInfo{ID: "tx1", BlockHeight: -1})
	info, ok := db.InfoAt(idx)
	if !ok || info.BlockHeight != -1 {
		t.Fatalf("initial insert: %+v, %v", info, ok)
	}

	idx2 := db.Update(TxInfo{ID: "tx1", BlockHeight: 100, BlockHash: "h100"})
	if idx2 != idx {
		t.Fatalf("index changed on overwrite: %d != %d", idx2, idx)
	}

	info, _ = db.InfoAt(idx)
	if info.BlockHeight != 100 || info.BlockHash != "h100" {
		t.Fatalf("block context not overwritten: %+v", info)
	}

	if db.Len() != 1 {
		t.Fatalf("len = %d, want 1 (overwrite must not duplicate)", db.Len())
	}
}

func TestIndexOfInfoOfRoundTrip(t *testing.T) {
	db := New()
	db.Update(TxInfo{ID: "tx1"})
	db.Update(TxInfo{ID: "tx2"})

	info, ok := db.InfoOf("tx2")
	if !ok || info.ID != "tx2" {
		t.Fatalf("InfoOf(tx2) = %+v, %v", info, ok)
	}
}

func TestStoreRestoreRoundTrip(t *testing.T) {
	db := New()
	db.Update(TxInfo{ID: "tx1", BlockHeight: 1})
	db.Update(TxInfo{ID: "tx2", BlockHeight: 2})

	blob := db.Store()

	restored := New()
	if err := restored.Restore(blob); err != nil {
		t.Fatalf("restore: %v", err)
	}

	for i, info := range blob {
		got, ok := restored.InfoAt(i)
		if !ok || got.ID != info.ID {
			t.Fatalf("restored position %d = %+v, want %+v", i, got, info)
		}
	}
}

func TestRestoreRejectsDuplicateIDs(t *testing.T) {
	db := New()
	err := db.Restore([]TxInfo{{ID: "tx1"}, {ID: "tx1"}})
	if err == nil {
		t.Fatal("expected serialization error for duplicate ids")
	}
}
