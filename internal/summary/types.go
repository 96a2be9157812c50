package summary

import (
	"time"

	"github.com/brewgator/fixpet/internal/db"
	"github.com/brewgator/fixpet/internal/lnd"
)

// Audit statuses. AuditError means the ledger could not be read.
const (
	AuditPassed = "passed"
	AuditFailed = "failed"
	AuditError  = "error"
)

// HealthStatus is the outcome of probing one external service.
type HealthStatus string

const (
	HealthOnline  HealthStatus = "online"
	HealthOffline HealthStatus = "offline"
	HealthError   HealthStatus = "error"
)

// Discrepancy is a profile whose stored balance disagrees with its ledger.
// Difference is ProfileBalance - CalculatedBalance.
type Discrepancy struct {
	Email             string `json:"email"`
	ProfileBalance    int64  `json:"profileBalance"`
	CalculatedBalance int64  `json:"calculatedBalance"`
	Difference        int64  `json:"difference"`
}

// AuditResult is the outcome of reconciling every profile.
type AuditResult struct {
	Status                 string        `json:"status"`
	TotalUsers             int           `json:"totalUsers"`
	UsersWithDiscrepancies int           `json:"usersWithDiscrepancies"`
	TotalDiscrepancy       int64         `json:"totalDiscrepancy"`
	Discrepancies          []Discrepancy `json:"discrepancies"`
	Error                  string        `json:"error,omitempty"`
}

// APIHealth holds one probe result per external service.
type APIHealth struct {
	Lightning HealthStatus `json:"lightning"`
	Groq      HealthStatus `json:"groq"`
	Resend    HealthStatus `json:"resend"`
}

// Last24Hours is the rolling activity window.
type Last24Hours struct {
	Deposits       db.TransactionStats `json:"deposits"`
	Withdrawals    db.TransactionStats `json:"withdrawals"`
	PostsCreated   db.PostStats        `json:"postsCreated"`
	PostsCompleted db.PostStats        `json:"postsCompleted"`
	ActiveUsers    int64               `json:"activeUsers"`
}

// Data is everything one run gathers before rendering.
type Data struct {
	GeneratedAt      time.Time           `json:"generatedAt"`
	NodeBalance      lnd.BalanceSnapshot `json:"nodeBalance"`
	NodeBalanceError string              `json:"nodeBalanceError,omitempty"`
	AppTotalBalance  int64               `json:"appTotalBalance"`
	Audit            AuditResult         `json:"balanceAudit"`
	APIHealth        APIHealth           `json:"apiHealth"`
	Last24Hours      Last24Hours         `json:"last24Hours"`
}

// Result is a finished run.
type Result struct {
	MessageID string `json:"messageId"`
	Subject   string `json:"subject"`
	HTML      string `json:"-"`
	Data      *Data  `json:"data"`
}
