/*
scenarios.go - Demo shop seed

PURPOSE:

	Populates an empty store with one realistic shop so the frontend has
	something to show: a tenant, its branch, two articles, a mill, a
	printer, a boutique customer and a short history that exercises
	purchase, work, sale, recovery and payment.

HOW THE SEED WORKS:
 1. Skip if the demo username already exists
 2. Register the tenant (creates the default branch)
 3. Create articles and parties through the catalog
 4. Record transactions through Ledger.RecordTransaction, so every
    invariant the API enforces also holds for seeded data

LOGIN:

	username: aqeel  password: 1234

NOTE:

	Only use in development/demo environments (SEED_DEMO=true).

SEE ALSO:
  - cmd/server/main.go: Calls SeedDemo on startup
  - textile/ledger.go: RecordTransaction
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/textile-ledger/generic"
	"github.com/warp/textile-ledger/textile"
)

const (
	DemoUsername = "aqeel"
	DemoPassword = "1234"
)

// SeedDemo loads the demo shop unless it already exists. It returns the
// tenant either way.
func SeedDemo(ctx context.Context, ledger *textile.Ledger, log *logrus.Logger) (*textile.Tenant, error) {
	tenants := textile.NewTenants(ledger)
	catalog := textile.NewCatalog(ledger)

	tenant, branch, err := tenants.Register(ctx, textile.Registration{
		Username:      DemoUsername,
		Password:      DemoPassword,
		ShopName:      "Aqeel Fabrics",
		OwnerName:     "Aqeel Ahmad",
		PhoneNumber:   "0300-1234567",
		BranchName:    "Main Outlet",
		BranchAddress: "Shop #12, Fabric Market",
	})
	if errors.Is(err, textile.ErrUsernameTaken) {
		log.Info("demo shop already present")
		return tenants.Authenticate(ctx, DemoUsername, DemoPassword)
	}
	if err != nil {
		return nil, err
	}

	id := tenant.ID
	silk, err := catalog.CreateArticle(ctx, id, "Cotton Silk", textile.DefaultUnit)
	if err != nil {
		return nil, err
	}
	if _, err := catalog.CreateArticle(ctx, id, "Wash n Wear", textile.DefaultUnit); err != nil {
		return nil, err
	}
	mill, err := catalog.CreateParty(ctx, id, textile.PartySupplier, "Faisalabad Mills", "041-5550101")
	if err != nil {
		return nil, err
	}
	printer, err := catalog.CreateParty(ctx, id, textile.PartySupplier, "Rang Printers", "042-5550202")
	if err != nil {
		return nil, err
	}
	boutique, err := catalog.CreateParty(ctx, id, textile.PartyCustomer, "Zara Boutique", "0321-5550303")
	if err != nil {
		return nil, err
	}
	counter, err := catalog.CreateParty(ctx, id, textile.PartyCustomer, "Walk-in", "")
	if err != nil {
		return nil, err
	}

	day := func(n int) time.Time {
		return time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, n-7)
	}
	header := func(amount, paid int64, n int) textile.Header {
		return textile.Header{
			TenantID:   id,
			BranchID:   generic.BranchID(branch.ID),
			Date:       day(n),
			Amount:     decimal.NewFromInt(amount),
			PaidAmount: decimal.NewFromInt(paid),
		}
	}

	purchase, err := ledger.RecordTransaction(ctx, textile.Purchase{
		Header:     header(50000, 20000, 1),
		SupplierID: mill.ID,
		Items: []textile.PurchaseItem{{
			ArticleID: silk.ID, Quantity: decimal.NewFromInt(500), Price: decimal.NewFromInt(100),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("seed purchase: %w", err)
	}
	raw := purchase.Items[0].BatchID

	work, err := ledger.RecordTransaction(ctx, textile.Work{
		Header:        header(6000, 0, 2),
		VendorID:      printer.ID,
		SourceBatchID: raw,
		Stage:         textile.StagePrinted,
		Quantity:      decimal.NewFromInt(200),
		PricePerUnit:  decimal.NewFromInt(30),
		Description:   "Block print, floral",
	})
	if err != nil {
		return nil, fmt.Errorf("seed work: %w", err)
	}
	printed := work.Items[0].BatchID

	steps := []textile.Command{
		textile.Sale{
			Header:     header(10500, 6000, 3),
			CustomerID: boutique.ID,
			Items: []textile.SaleItem{{
				BatchID: printed, Quantity: decimal.NewFromInt(50), Price: decimal.NewFromInt(210),
			}},
		},
		textile.Sale{
			Header:     header(3000, 3000, 4),
			CustomerID: counter.ID,
			Items: []textile.SaleItem{{
				BatchID: raw, Quantity: decimal.NewFromInt(20), Price: decimal.NewFromInt(150),
			}},
		},
		textile.Recovery{
			Header:      header(2500, 0, 5),
			CustomerID:  boutique.ID,
			Mode:        textile.PaymentCheque,
			ReferenceNo: "CHQ-100231",
		},
		textile.Payment{
			Header:     header(10000, 0, 6),
			SupplierID: mill.ID,
			Mode:       textile.PaymentCash,
		},
		textile.Expense{
			Header:   header(1500, 1500, 6),
			Category: "Rent",
		},
	}
	for _, cmd := range steps {
		if _, err := ledger.RecordTransaction(ctx, cmd); err != nil {
			return nil, fmt.Errorf("seed %s: %w", cmd.Type(), err)
		}
	}

	log.WithFields(logrus.Fields{
		"tenant_id": id,
		"username":  DemoUsername,
	}).Info("demo shop seeded")
	return tenant, nil
}
