package summary

import (
	"context"

	"github.com/brewgator/fixpet/internal/db"
)

// LedgerReader is the part of the store the audit needs.
type LedgerReader interface {
	ListProfiles(ctx context.Context) ([]db.Profile, error)
	GetCompletedTransactions(ctx context.Context, userID string) ([]db.Transaction, error)
}

// ExpectedBalance sums completed transactions with their balance sign.
func ExpectedBalance(txs []db.Transaction) int64 {
	var total int64
	for _, tx := range txs {
		if tx.Status != db.TxStatusCompleted {
			continue
		}
		total += tx.SignedAmount()
	}
	return total
}

// Audit compares each profile's stored balance with its ledger.
// systemProfileID is skipped. Profiles missing from ledgers have an
// expected balance of zero.
func Audit(profiles []db.Profile, ledgers map[string][]db.Transaction, systemProfileID string) AuditResult {
	result := AuditResult{Status: AuditPassed, Discrepancies: []Discrepancy{}}

	for _, p := range profiles {
		if systemProfileID != "" && p.ID == systemProfileID {
			continue
		}
		result.TotalUsers++

		calculated := ExpectedBalance(ledgers[p.ID])
		if calculated == p.Balance {
			continue
		}

		diff := p.Balance - calculated
		result.Discrepancies = append(result.Discrepancies, Discrepancy{
			Email:             p.Email,
			ProfileBalance:    p.Balance,
			CalculatedBalance: calculated,
			Difference:        diff,
		})
		if diff < 0 {
			diff = -diff
		}
		result.TotalDiscrepancy += diff
	}

	result.UsersWithDiscrepancies = len(result.Discrepancies)
	if result.UsersWithDiscrepancies > 0 {
		result.Status = AuditFailed
	}
	return result
}

// RunAudit loads the ledger and audits it. A read failure yields an
// AuditError result instead of an error.
func RunAudit(ctx context.Context, store LedgerReader, systemProfileID string) AuditResult {
	profiles, err := store.ListProfiles(ctx)
	if err != nil {
		return auditError(err)
	}

	ledgers := make(map[string][]db.Transaction, len(profiles))
	for _, p := range profiles {
		if systemProfileID != "" && p.ID == systemProfileID {
			continue
		}
		txs, err := store.GetCompletedTransactions(ctx, p.ID)
		if err != nil {
			return auditError(err)
		}
		ledgers[p.ID] = txs
	}

	return Audit(profiles, ledgers, systemProfileID)
}

func auditError(err error) AuditResult {
	return AuditResult{
		Status:        AuditError,
		Discrepancies: []Discrepancy{},
		Error:         err.Error(),
	}
}
