package sync

import (
	"context"
	"fmt"

	"github.com/joescharf/kan/internal/forge"
	"github.com/joescharf/kan/internal/models"
)

// EnsureStatusLabels creates any of the five status labels missing from the
// repository. Existing labels are left alone, colors included.
func (e *Engine) EnsureStatusLabels(ctx context.Context, owner, name string) error {
	existing, err := e.forge.ListLabels(ctx, owner, name)
	if err != nil {
		return fmt.Errorf("list labels: %w", err)
	}

	have := make(map[string]bool, len(existing))
	for _, l := range existing {
		have[l.Name] = true
	}

	for _, st := range models.AllStatuses() {
		tok := st.Label()
		if tok == "" || have[tok] {
			continue
		}
		if _, err := e.forge.CreateLabel(ctx, owner, name, forge.CreateLabelRequest{
			Name:  tok,
			Color: st.LabelColor(),
		}); err != nil {
			return fmt.Errorf("create label %q: %w", tok, err)
		}
	}
	return nil
}
