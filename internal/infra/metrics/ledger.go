package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ledgerOpsTotal,
		ledgerCreditsMoved,
		insufficientFundsTotal,
	)
}

var (
	// result: applied|replay|insufficient|error
	ledgerOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_ops_total",
			Help: "Ledger mutations by entry type and result.",
		},
		[]string{"type", "result"},
	)

	ledgerCreditsMoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_credits_moved_total",
			Help: "Absolute credit units moved through the ledger, by direction.",
		},
		[]string{"direction"},
	)

	insufficientFundsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_insufficient_funds_total",
			Help: "Debits rejected because the balance would go negative.",
		},
	)
)

func IncLedgerOp(entryType, result string) {
	ledgerOpsTotal.WithLabelValues(norm(entryType), norm(result)).Inc()
}

func AddCreditsMoved(amount int64) {
	if amount >= 0 {
		ledgerCreditsMoved.WithLabelValues("credit").Add(float64(amount))
	} else {
		ledgerCreditsMoved.WithLabelValues("debit").Add(float64(-amount))
	}
}

func IncInsufficientFunds() { insufficientFundsTotal.Inc() }
