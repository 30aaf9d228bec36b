// Package dbtest opens throwaway sqlite databases migrated with the domain models.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/pkg/db"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
)

var counter atomic.Int64

// AllModels lists every table the services read or write.
func AllModels() []any {
	return []any{
		&models.Vendor{},
		&models.Household{},
		&models.HouseholdMember{},
		&models.Product{},
		&models.CartLineItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Notification{},
		&models.FulfillmentStepLog{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// Open returns a client over a private in-memory database with all models migrated.
func Open(t *testing.T) *db.Client {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, counter.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	client := db.FromGorm(conn)
	t.Cleanup(func() { _ = client.Close() })
	return client
}
