package store

import (
	"context"
	"testing"

	"github.com/dukerupert/menuboard/internal/database"
)

func setupFavoriteTestDB(t *testing.T) *FavoriteStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewFavoriteStore(db)
}

func TestFavoriteAddAndList(t *testing.T) {
	fs := setupFavoriteTestDB(t)
	ctx := context.Background()

	if err := fs.Add(ctx, "c1", "estX", "p1", "p2"); err != nil {
		t.Fatalf("add: %v", err)
	}

	favs, err := fs.List(ctx, "c1", "estX")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(favs) != 2 {
		t.Fatalf("len = %d, want 2", len(favs))
	}
	if favs[0].ProductID != "p1" || favs[1].ProductID != "p2" {
		t.Errorf("products = %s,%s, want p1,p2", favs[0].ProductID, favs[1].ProductID)
	}
	if favs[0].CustomerID != "c1" || favs[0].EstablishmentID != "estX" {
		t.Errorf("scope = (%s, %s), want (c1, estX)", favs[0].CustomerID, favs[0].EstablishmentID)
	}
}

func TestFavoriteAddIgnoresDuplicates(t *testing.T) {
	fs := setupFavoriteTestDB(t)
	ctx := context.Background()

	fs.Add(ctx, "c1", "estX", "p1")
	if err := fs.Add(ctx, "c1", "estX", "p1", "p2"); err != nil {
		t.Fatalf("add with duplicate: %v", err)
	}

	ids, _ := fs.ProductIDs(ctx, "c1", "estX")
	if len(ids) != 2 {
		t.Errorf("ids = %v, want 2 entries", ids)
	}
}

func TestFavoriteScoping(t *testing.T) {
	fs := setupFavoriteTestDB(t)
	ctx := context.Background()

	fs.Add(ctx, "c1", "estX", "p1")
	fs.Add(ctx, "c1", "estY", "p9")
	fs.Add(ctx, "c2", "estX", "p5")

	ids, _ := fs.ProductIDs(ctx, "c1", "estX")
	if len(ids) != 1 || ids[0] != "p1" {
		t.Errorf("ids = %v, want [p1]", ids)
	}
}

func TestFavoriteRemoveAndClear(t *testing.T) {
	fs := setupFavoriteTestDB(t)
	ctx := context.Background()

	fs.Add(ctx, "c1", "estX", "p1", "p2", "p3")

	if err := fs.Remove(ctx, "c1", "estX", "p2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ids, _ := fs.ProductIDs(ctx, "c1", "estX")
	if len(ids) != 2 {
		t.Fatalf("after remove ids = %v, want 2 entries", ids)
	}

	if err := fs.Clear(ctx, "c1", "estX"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	ids, _ = fs.ProductIDs(ctx, "c1", "estX")
	if len(ids) != 0 {
		t.Errorf("after clear ids = %v, want none", ids)
	}
}
