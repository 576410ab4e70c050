// package formatter renders sync and migration state for the CLI (plain text, CSV)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/desertthunder/ledgersync/internal/migrate"
	"github.com/desertthunder/ledgersync/internal/models"
)

// StatusToText renders a SyncStatus as aligned key/value lines.
func StatusToText(status models.SyncStatus) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Online:     %t\n", status.IsOnline))
	buf.WriteString(fmt.Sprintf("Syncing:    %t\n", status.IsSyncing))
	buf.WriteString(fmt.Sprintf("Pending:    %d\n", status.PendingOperations))
	if status.LastSyncTime != nil {
		buf.WriteString(fmt.Sprintf("Last sync:  %s\n", status.LastSyncTime.Format(time.RFC3339)))
	} else {
		buf.WriteString("Last sync:  never\n")
	}
	if status.Error != "" {
		buf.WriteString(fmt.Sprintf("Error:      %s\n", status.Error))
	}

	return buf.Bytes()
}

// QueueToText renders the pending queue one operation per line, in queue order.
func QueueToText(ops []models.SyncOperation) []byte {
	var buf bytes.Buffer

	if len(ops) == 0 {
		buf.WriteString("Queue is empty\n")
		return buf.Bytes()
	}

	buf.WriteString(fmt.Sprintf("Pending operations: %d\n\n", len(ops)))
	for i, op := range ops {
		target := op.TargetID
		if target == "" {
			target = "-"
		}
		buf.WriteString(fmt.Sprintf("%d. %s %s %s (retries: %d, queued: %s)\n",
			i+1, op.Type, op.Domain, target, op.RetryCount,
			op.EnqueuedAt.Format(time.RFC3339)))
	}

	return buf.Bytes()
}

// QueueToCSV renders the pending queue as CSV with columns:
// ID, Type, Domain, TargetID, RetryCount, EnqueuedAt
func QueueToCSV(ops []models.SyncOperation) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Type", "Domain", "TargetID", "RetryCount", "EnqueuedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, op := range ops {
		record := []string{
			op.ID,
			string(op.Type),
			string(op.Domain),
			op.TargetID,
			strconv.Itoa(op.RetryCount),
			op.EnqueuedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// DeadLetterToText renders dropped operations one per line.
func DeadLetterToText(entries []models.DeadLetterEntry) []byte {
	var buf bytes.Buffer

	if len(entries) == 0 {
		buf.WriteString("Dead-letter list is empty\n")
		return buf.Bytes()
	}

	buf.WriteString(fmt.Sprintf("Dropped operations: %d\n\n", len(entries)))
	for i, entry := range entries {
		buf.WriteString(fmt.Sprintf("%d. %s %s %s (op: %s, dropped: %s)\n",
			i+1, entry.Op.Type, entry.Op.Domain, entry.Op.TargetID, entry.Op.ID,
			entry.DroppedAt.Format(time.RFC3339)))
		buf.WriteString(fmt.Sprintf("   reason: %s\n", entry.Reason))
	}

	return buf.Bytes()
}

// SummaryToText renders a LocalDataSummary.
func SummaryToText(summary models.LocalDataSummary) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Transactions:           %d\n", summary.Transactions))
	buf.WriteString(fmt.Sprintf("Recurring transactions: %d\n", summary.Recurring))
	buf.WriteString(fmt.Sprintf("Category budgets:       %d\n", summary.CategoryBudgets))
	buf.WriteString(fmt.Sprintf("Goals:                  %d\n", summary.Goals))
	buf.WriteString(fmt.Sprintf("Budget:                 %t\n", summary.HasBudget))
	buf.WriteString(fmt.Sprintf("Settings:               %t\n", summary.HasSettings))
	buf.WriteString(fmt.Sprintf("Total items:            %d\n", summary.Total()))

	return buf.Bytes()
}

// ResultToText renders a migration Result with per-domain counts in a stable order.
func ResultToText(res migrate.Result) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Success: %t\n", res.Success))

	domains := make([]string, 0, len(res.MigratedCounts)+len(res.SkippedCounts))
	seen := map[string]bool{}
	for d := range res.MigratedCounts {
		if !seen[string(d)] {
			domains = append(domains, string(d))
			seen[string(d)] = true
		}
	}
	for d := range res.SkippedCounts {
		if !seen[string(d)] {
			domains = append(domains, string(d))
			seen[string(d)] = true
		}
	}
	sort.Strings(domains)

	for _, d := range domains {
		buf.WriteString(fmt.Sprintf("%s: migrated %d, skipped %d\n",
			d, res.MigratedCounts[models.Domain(d)], res.SkippedCounts[models.Domain(d)]))
	}

	if len(res.Errors) > 0 {
		buf.WriteString(fmt.Sprintf("\nErrors: %d\n", len(res.Errors)))
		for _, e := range res.Errors {
			buf.WriteString(fmt.Sprintf("  - %s\n", e))
		}
	}

	return buf.Bytes()
}
