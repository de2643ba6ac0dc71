//go:build integration

package gormstore

import (
	"context"
	"testing"
	"time"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/wilhg/parlor/pkg/chat"
	"github.com/wilhg/parlor/pkg/errmodel"
)

func TestPostgresThreadFlow(t *testing.T) {
	ctx := context.Background()
	pg, err := tcpostgres.RunContainer(ctx,
		tcpostgres.WithDatabase("parlor"),
		tcpostgres.WithUsername("parlor"),
		tcpostgres.WithPassword("parlor"),
	)
	if err != nil {
		t.Skipf("skip: cannot start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	st, err := Open(dsn)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := st.LoadThread(ctx, "missing"); !errmodel.IsCategory(err, errmodel.CategoryNotFound) {
		t.Fatalf("want not-found, got %v", err)
	}

	thread := chat.ThreadMetadata{ID: "t1", Title: "Lounge", CreatedAt: time.Now().UTC()}
	if err := st.SaveThread(ctx, thread); err != nil {
		t.Fatal(err)
	}

	item := chat.NewUserMessage("t1", "hello", nil)
	if err := st.AddThreadItem(ctx, "t1", item); err != nil {
		t.Fatal(err)
	}
	item.Text = "hello edited"
	if err := st.SaveItem(ctx, "t1", item); err != nil {
		t.Fatal(err)
	}

	page, err := st.LoadThreadItems(ctx, "t1", "", 0, chat.OrderAsc)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 1 || page.Data[0].Text != "hello edited" {
		t.Fatalf("page=%+v", page)
	}
}
