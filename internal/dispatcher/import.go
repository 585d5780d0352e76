package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/phillip-england/estatecrm/internal/crm"
	"github.com/phillip-england/estatecrm/internal/crmapi"
)

// ImportRow is one spreadsheet row turned into a creation draft. Line is the
// 1-based sheet row it came from.
type ImportRow struct {
	Line  int
	Draft crm.Draft
}

type ImportFailure struct {
	Line   int
	Reason string
}

type ImportResult struct {
	Created  int
	Failures []ImportFailure
}

// Summary is the notice text shown after an import.
func (r ImportResult) Summary(kind crm.RecordKind) string {
	s := fmt.Sprintf("Imported %d %s", r.Created, kind.Singular())
	if r.Created != 1 {
		s += "s"
	}
	if len(r.Failures) == 0 {
		return s
	}
	first := r.Failures[0]
	return fmt.Sprintf("%s, %d failed (row %d: %s)", s, len(r.Failures), first.Line, first.Reason)
}

// Import creates each row in order. Rows that fail validation or are
// rejected are recorded and skipped. The list is refreshed once at the end
// and a single summary notice is queued.
func (d *Dispatcher) Import(ctx context.Context, kind crm.RecordKind, rows []ImportRow) ImportResult {
	d.mu.Lock()
	api := d.api
	d.mu.Unlock()

	var result ImportResult
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			result.Failures = append(result.Failures, ImportFailure{Line: row.Line, Reason: err.Error()})
			continue
		}
		payload := crm.Payload(kind, row.Draft)
		if err := crm.Validate(kind, payload); err != nil {
			reason := msgCreateFailed
			var draftErr *crm.DraftError
			if errors.As(err, &draftErr) {
				reason = draftErr.Notice(kind)
			}
			result.Failures = append(result.Failures, ImportFailure{Line: row.Line, Reason: reason})
			continue
		}
		if _, err := api.Create(ctx, kind, payload); err != nil {
			d.logger.WarnContext(ctx, "import row rejected", "kind", kind.Kind(), "line", row.Line, "error", err)
			result.Failures = append(result.Failures, ImportFailure{Line: row.Line, Reason: crmapi.UserMessage(err, msgCreateFailed)})
			continue
		}
		result.Created++
	}

	d.logger.InfoContext(ctx, "import finished", "kind", kind.Kind(), "created", result.Created, "failed", len(result.Failures))
	level := LevelSuccess
	if len(result.Failures) > 0 {
		level = LevelError
	}
	d.notify(level, result.Summary(kind))
	if result.Created > 0 {
		_ = d.List(ctx, kind)
	}
	return result
}
