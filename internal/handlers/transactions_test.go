package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/evorto/evorto-api/internal/auth"
	"github.com/evorto/evorto-api/internal/models"
)

func TestFindTransactions(t *testing.T) {
	f := newFixture(t)
	h := NewTransactionHandler(f.db)

	for i := 0; i < 30; i++ {
		status := models.TransactionSuccessful
		if i%10 == 0 {
			status = models.TransactionCancelled
		}
		f.db.Create(&models.Transaction{
			TenantID:  f.tenant.ID,
			Reference: fmt.Sprintf("ref-%d", i),
			Amount:    int64(100 + i),
			Currency:  "EUR",
			Type:      models.TransactionRegistration,
			Method:    models.MethodStripe,
			Status:    status,
		})
	}
	f.db.Create(&models.Transaction{TenantID: f.other.ID, Reference: "vienna", Amount: 1, Status: models.TransactionSuccessful})

	_, err := h.HandleFindMany(f.ctx(f.user), &FindTransactionsInput{})
	expectStatus(t, err, http.StatusForbidden)

	ctx := f.ctx(f.admin, auth.PermFinanceViewTransactions)
	page, err := h.HandleFindMany(ctx, &FindTransactionsInput{})
	if err != nil {
		t.Fatalf("HandleFindMany returned error: %v", err)
	}
	if page.Body.Total != 27 {
		t.Errorf("expected 27 visible transactions, got %d", page.Body.Total)
	}
	if len(page.Body.Data) != 25 {
		t.Errorf("expected default page of 25, got %d", len(page.Body.Data))
	}
	if page.Body.Data[0].Reference != "ref-29" {
		t.Errorf("expected newest first, got %s", page.Body.Data[0].Reference)
	}

	in := &FindTransactionsInput{}
	in.Body.Limit = 10
	in.Body.Offset = 20
	page, err = h.HandleFindMany(ctx, in)
	if err != nil {
		t.Fatalf("HandleFindMany returned error: %v", err)
	}
	if len(page.Body.Data) != 7 || page.Body.Total != 27 {
		t.Errorf("expected 7 of 27, got %d of %d", len(page.Body.Data), page.Body.Total)
	}
	for _, row := range page.Body.Data {
		if row.Status == models.TransactionCancelled {
			t.Errorf("cancelled transaction %s listed", row.Reference)
		}
	}
}
