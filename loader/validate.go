package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/nathoo/pactcore/engine/state"
	"github.com/nathoo/pactcore/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

// validate checks the compiled catalog for referential integrity and
// winnability. Warnings go to stderr; errors fail the load.
func validate(cat *state.Catalog) error {
	ve := &ValidationError{}

	if len(cat.Demons) == 0 {
		ve.Errors = append(ve.Errors, "world has no demons")
	}
	if len(cat.Questions) == 0 {
		ve.Errors = append(ve.Errors, "world has no questions")
	}

	for id, d := range cat.Demons {
		if d.Patience < 1 {
			ve.Errors = append(ve.Errors, fmt.Sprintf("demon %q: patience must be at least 1", id))
		}
		if d.Tolerance < 1 {
			ve.Errors = append(ve.Errors, fmt.Sprintf("demon %q: tolerance must be at least 1", id))
		}
		if d.RapportNeeded > cat.Limits.RapportMax {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"demon %q: rapport_needed %d exceeds the rapport cap %d, unwinnable",
				id, d.RapportNeeded, cat.Limits.RapportMax))
		}
		if d.Alignment.LawChaos < cat.Limits.AxisMin || d.Alignment.LawChaos > cat.Limits.AxisMax ||
			d.Alignment.LightDark < cat.Limits.AxisMin || d.Alignment.LightDark > cat.Limits.AxisMax {
			ve.Errors = append(ve.Errors, fmt.Sprintf("demon %q: alignment outside axis limits", id))
		}
		if _, ok := cat.Weights[d.Personality]; !ok && len(cat.Weights) > 0 {
			ve.Warnings = append(ve.Warnings, fmt.Sprintf(
				"demon %q: no weights for personality %s, tag bonuses will be zero", id, d.Personality))
		}
	}

	for _, q := range cat.Questions {
		for i, c := range q.Choices {
			if c.Effect.EventRef != "" {
				if _, ok := cat.Events[c.Effect.EventRef]; !ok {
					ve.Errors = append(ve.Errors, fmt.Sprintf(
						"question %q choice %d: unknown event %q", q.ID, i+1, c.Effect.EventRef))
				}
			}
			if c.Effect.Event != nil {
				validateEventItems(*c.Effect.Event, cat, ve)
			}
		}
	}

	for _, ev := range cat.Events {
		validateEventItems(ev, cat, ve)
	}
	for _, tmpl := range cat.WhimTemplates {
		validateEventItems(tmpl, cat, ve)
	}

	if cat.Limits.RapportMin >= cat.Limits.RapportMax {
		ve.Errors = append(ve.Errors, "limits: rapport_min must be below rapport_max")
	}
	if cat.Limits.AxisMin >= cat.Limits.AxisMax {
		ve.Errors = append(ve.Errors, "limits: axis_min must be below axis_max")
	}
	if cat.Limits.NoiseMin > cat.Limits.NoiseMax {
		ve.Errors = append(ve.Errors, "limits: noise_min must not exceed noise_max")
	}

	for _, w := range ve.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateEventItems checks that an explicit demanded item exists.
func validateEventItems(ev types.EventPayload, cat *state.Catalog, ve *ValidationError) {
	if ev.Kind != types.EventAskItem || ev.ItemID == "" {
		return
	}
	if _, ok := cat.Items[ev.ItemID]; !ok {
		ve.Errors = append(ve.Errors, fmt.Sprintf("event %q: unknown item %q", ev.ID, ev.ItemID))
	}
}
