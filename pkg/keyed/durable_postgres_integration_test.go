//go:build integration

package keyed

import (
	"context"
	"fmt"
	"testing"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestDurablePostgresContract(t *testing.T) {
	ctx := context.Background()
	pg, err := tcpostgres.RunContainer(ctx,
		tcpostgres.WithDatabase("parlor"),
		tcpostgres.WithUsername("parlor"),
		tcpostgres.WithPassword("parlor"),
		tcpostgres.WithSQLDriver("pgx"),
	)
	if err != nil {
		t.Skipf("skip: cannot start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	db, err := Open(fmt.Sprintf("postgres://%s", dsn))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	st := NewDurable(db, "counter", newCounter)
	if _, err := st.Mutate(ctx, "k", func(c *counter) error { c.N = 42; return nil }); err != nil {
		t.Fatal(err)
	}
	got, err := st.Load(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if got.N != 42 {
		t.Fatalf("N=%d want 42", got.N)
	}
}
