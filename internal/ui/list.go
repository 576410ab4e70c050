package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/ledgersync/internal/models"
)

var (
	_ list.Item = opItem{}
	_ list.Item = deadLetterItem{}
)

// opItem wraps [models.SyncOperation] to implement [list.Item].
type opItem struct {
	op models.SyncOperation
}

func (i opItem) FilterValue() string { return string(i.op.Domain) }
func (i opItem) Title() string {
	return fmt.Sprintf("%s %s", i.op.Type, i.op.Domain)
}
func (i opItem) Description() string {
	desc := fmt.Sprintf("queued %s", i.op.EnqueuedAt.Format(time.RFC3339))
	if i.op.RetryCount > 0 {
		desc = fmt.Sprintf("%s • %d retries", desc, i.op.RetryCount)
	}
	if i.op.TargetID != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.op.TargetID)
	}
	return desc
}

// deadLetterItem wraps [models.DeadLetterEntry] to implement [list.Item].
type deadLetterItem struct {
	entry models.DeadLetterEntry
}

func (i deadLetterItem) FilterValue() string { return string(i.entry.Op.Domain) }
func (i deadLetterItem) Title() string {
	return fmt.Sprintf("%s %s", i.entry.Op.Type, i.entry.Op.Domain)
}
func (i deadLetterItem) Description() string {
	return fmt.Sprintf("dropped %s • %s", i.entry.DroppedAt.Format(time.RFC3339), i.entry.Reason)
}
