package custody

import (
	"context"
	"log"
)

// LogFundMover is the default custody adapter: it records requested transfers
// to the log and reports success. Deployments integrate a real payment rail by
// replacing it at wiring time.
type LogFundMover struct{}

func NewLogFundMover() *LogFundMover { return &LogFundMover{} }

func (LogFundMover) Disburse(ctx context.Context, account string, amount uint64) error {
	log.Printf("custody: disburse %d to %s", amount, account)
	return nil
}

func (LogFundMover) Collect(ctx context.Context, account string, amount uint64) error {
	log.Printf("custody: collect %d from %s", amount, account)
	return nil
}

func (LogFundMover) Refund(ctx context.Context, account string, amount uint64) error {
	log.Printf("custody: refund %d to %s", amount, account)
	return nil
}

// LogCreditPolicy approves every loan and logs lifecycle transitions.
type LogCreditPolicy struct{}

func NewLogCreditPolicy() *LogCreditPolicy { return &LogCreditPolicy{} }

func (LogCreditPolicy) BeforeOpen(ctx context.Context, borrowerID string, principal uint64) error {
	log.Printf("policy: pre-open check borrower=%s principal=%d", borrowerID, principal)
	return nil
}

func (LogCreditPolicy) LoanOpened(ctx context.Context, borrowerID, loanRef string) error {
	log.Printf("policy: loan opened borrower=%s ref=%s", borrowerID, loanRef)
	return nil
}

func (LogCreditPolicy) LoanClosed(ctx context.Context, borrowerID, loanRef string) error {
	log.Printf("policy: loan closed borrower=%s ref=%s", borrowerID, loanRef)
	return nil
}
