// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle output formatting but delegate
// business logic to services.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/example/khal/internal/models"
	"github.com/example/khal/internal/ports/primary"
)

const rule = "────────────────────────────────────────────────────────────────"

// SyncAdapter is a thin adapter that translates CLI operations to
// SyncService calls. It depends only on the SyncService interface.
type SyncAdapter struct {
	service primary.SyncService
	out     io.Writer
}

// NewSyncAdapter creates a new SyncAdapter with the given service.
func NewSyncAdapter(service primary.SyncService, out io.Writer) *SyncAdapter {
	return &SyncAdapter{
		service: service,
		out:     out,
	}
}

// State prints the dashboard, or the whole snapshot as JSON.
func (a *SyncAdapter) State(ctx context.Context, asJSON bool) error {
	snap, err := a.service.LoadState(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return a.writeJSON(snap)
	}

	fmt.Fprintf(a.out, "\nBackend: %s (%s)\n", snap.Sync.Path, snap.Sync.Backend)
	fmt.Fprintf(a.out, "Modified: %s\n", formatStamp(snap.Sync.ModifiedAt))
	fmt.Fprintf(a.out, "Domains: %d  Affairs: %d  Interests: %d  Tasks: %d  Crafts: %d  Laws: %d\n",
		len(snap.State.Domains), len(snap.State.Affairs), len(snap.State.Interests),
		len(snap.State.Tasks), len(snap.State.Crafts), len(snap.State.Laws))
	fmt.Fprintf(a.out, "Optionality index: %s  Robustness: %s%%\n",
		formatNumber(snap.Dashboard.OptionalityIndex), formatNumber(snap.Dashboard.RobustnessProgress))

	fmt.Fprintf(a.out, "\n%-9s %-8s %-36s %s\n", "TYPE", "SCORE", "TITLE", "WHY")
	fmt.Fprintln(a.out, rule)
	if len(snap.Dashboard.DoNow) == 0 {
		fmt.Fprintln(a.out, "Nothing to do")
	}
	for _, item := range snap.Dashboard.DoNow {
		fmt.Fprintf(a.out, "%s %-8s %-36s %s\n",
			refColor(item.RefType).Sprintf("%-9s", item.RefType), formatNumber(item.Score), truncate(item.Title, 36), item.Why)
	}

	if len(snap.Sync.SkippedRows) > 0 {
		warn := color.New(color.FgYellow)
		fmt.Fprintln(a.out)
		for _, row := range snap.Sync.SkippedRows {
			fmt.Fprintln(a.out, warn.Sprintf("⚠ skipped %s row %d: %s", row.Sheet, row.Row, row.Reason))
		}
	}
	fmt.Fprintln(a.out)
	return nil
}

// Validate prints the structural check result.
func (a *SyncAdapter) Validate(ctx context.Context) error {
	if err := a.service.Validate(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "✓ Backend structure is valid")
	return nil
}

// Normalize prints what was added to the backend.
func (a *SyncAdapter) Normalize(ctx context.Context) error {
	added, err := a.service.Normalize(ctx)
	if err != nil {
		return err
	}
	if len(added) == 0 {
		fmt.Fprintln(a.out, "✓ Backend already normalized")
		return nil
	}
	for _, line := range added {
		fmt.Fprintf(a.out, "✓ %s\n", line)
	}
	return nil
}

// Conflict prints whether the backend changed after lastSeen.
func (a *SyncAdapter) Conflict(ctx context.Context, lastSeen *time.Time) error {
	info, err := a.service.SyncStatus(ctx, lastSeen)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Backend:  %s (%s)\n", info.Path, info.Backend)
	fmt.Fprintf(a.out, "Modified: %s\n", formatStamp(info.ModifiedAt))
	if info.Stale {
		fmt.Fprintln(a.out, color.New(color.FgRed).Sprint("✗ Changed externally: refresh required"))
	} else {
		fmt.Fprintln(a.out, "✓ No external changes")
	}
	return nil
}

// WriteAffair saves an affair and prints the result.
func (a *SyncAdapter) WriteAffair(ctx context.Context, req primary.WriteAffairRequest) error {
	res, err := a.service.WriteAffair(ctx, req)
	if err != nil {
		return err
	}
	af := res.Entity
	fmt.Fprintf(a.out, "✓ Saved affair %s: %s (fragility=%s)\n", af.ID, af.Title, formatNumber(af.FragilityScore))
	a.printModified(res.ModifiedAt)
	return nil
}

// WriteInterest saves an interest and prints the result.
func (a *SyncAdapter) WriteInterest(ctx context.Context, req primary.WriteInterestRequest) error {
	res, err := a.service.WriteInterest(ctx, req)
	if err != nil {
		return err
	}
	in := res.Entity
	fmt.Fprintf(a.out, "✓ Saved interest %s: %s (convexity=%s)\n", in.ID, in.Title, formatNumber(in.Convexity))
	a.printModified(res.ModifiedAt)
	return nil
}

// WriteTask saves a task and prints the result.
func (a *SyncAdapter) WriteTask(ctx context.Context, req primary.WriteTaskRequest) error {
	res, err := a.service.WriteTask(ctx, req)
	if err != nil {
		return err
	}
	t := res.Entity
	fmt.Fprintf(a.out, "✓ Saved task %s: %s [%s]\n", t.ID, t.Title, t.Status)
	if len(t.DependencyIDs) > 0 {
		fmt.Fprintf(a.out, "  depends on: %s\n", strings.Join(t.DependencyIDs, ", "))
	}
	a.printModified(res.ModifiedAt)
	return nil
}

// WriteCraft saves a craft and prints the result.
func (a *SyncAdapter) WriteCraft(ctx context.Context, req primary.WriteCraftRequest) error {
	res, err := a.service.WriteCraft(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Saved craft %s: %s\n", res.Entity.ID, res.Entity.Name)
	a.printModified(res.ModifiedAt)
	return nil
}

// WriteCraftEntity saves one craft entity and prints its references.
func (a *SyncAdapter) WriteCraftEntity(ctx context.Context, req primary.WriteCraftEntityRequest) error {
	res, err := a.service.WriteCraftEntity(ctx, req)
	if err != nil {
		return err
	}
	a.printEntity(res.Entity)
	a.printModified(res.ModifiedAt)
	return nil
}

// ReplaceCraftLinks replaces the references of one entity.
func (a *SyncAdapter) ReplaceCraftLinks(ctx context.Context, req primary.ReplaceCraftLinksRequest) error {
	res, err := a.service.ReplaceCraftLinks(ctx, req)
	if err != nil {
		return err
	}
	a.printEntity(res.Entity)
	a.printModified(res.ModifiedAt)
	return nil
}

func (a *SyncAdapter) printEntity(e models.CraftEntity) {
	fmt.Fprintf(a.out, "✓ Saved %s %s: %s\n", e.Level, e.ID, e.Title)
	if _, ok := e.Level.Child(); ok {
		if len(e.RefIDs) == 0 {
			fmt.Fprintln(a.out, "  references: (none)")
		} else {
			fmt.Fprintf(a.out, "  references: %s\n", strings.Join(e.RefIDs, ", "))
		}
	}
}

// WriteLaw saves a law and prints the result.
func (a *SyncAdapter) WriteLaw(ctx context.Context, req primary.WriteLawRequest) error {
	res, err := a.service.WriteLaw(ctx, req)
	if err != nil {
		return err
	}
	l := res.Entity
	fmt.Fprintf(a.out, "✓ Saved law %s: %s\n", l.ID, l.Name)
	if len(l.CraftIDs) > 0 {
		fmt.Fprintf(a.out, "  crafts: %s\n", strings.Join(l.CraftIDs, ", "))
	}
	a.printModified(res.ModifiedAt)
	return nil
}

// ListCrafts prints every craft with its level counts.
func (a *SyncAdapter) ListCrafts(ctx context.Context) error {
	crafts, err := a.service.ListCrafts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list crafts: %w", err)
	}
	if len(crafts) == 0 {
		fmt.Fprintln(a.out, "No crafts found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-38s %-24s %s\n", "ID", "NAME", "H/M/F/B/R")
	fmt.Fprintln(a.out, rule)
	for _, c := range crafts {
		fmt.Fprintf(a.out, "%-38s %-24s %d/%d/%d/%d/%d\n", c.ID, truncate(c.Name, 24),
			len(c.Heaps), len(c.Models), len(c.Frameworks), len(c.BarbellStrategies), len(c.Heuristics))
	}
	fmt.Fprintln(a.out)
	return nil
}

// ShowCraft prints a craft level by level, or as JSON.
func (a *SyncAdapter) ShowCraft(ctx context.Context, id string, asJSON bool) error {
	c, err := a.service.GetCraft(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get craft: %w", err)
	}
	if asJSON {
		return a.writeJSON(c)
	}

	heading := color.New(color.FgHiMagenta)
	fmt.Fprintf(a.out, "\nCraft: %s\n", c.ID)
	fmt.Fprintf(a.out, "Name:  %s\n", c.Name)
	if c.Description != "" {
		fmt.Fprintf(a.out, "Description: %s\n", c.Description)
	}

	fmt.Fprintln(a.out, heading.Sprint("\nHeaps"))
	for _, h := range c.Heaps {
		fmt.Fprintf(a.out, "  %s  %s [%s] %s\n", h.ID, h.Title, h.Type, h.URL)
	}
	fmt.Fprintln(a.out, heading.Sprint("Models"))
	for _, m := range c.Models {
		fmt.Fprintf(a.out, "  %s  %s -> %s\n", m.ID, m.Title, refs(m.HeapIDs))
	}
	fmt.Fprintln(a.out, heading.Sprint("Frameworks"))
	for _, f := range c.Frameworks {
		fmt.Fprintf(a.out, "  %s  %s -> %s\n", f.ID, f.Title, refs(f.ModelIDs))
	}
	fmt.Fprintln(a.out, heading.Sprint("Barbell strategies"))
	for _, b := range c.BarbellStrategies {
		fmt.Fprintf(a.out, "  %s  %s -> %s\n", b.ID, b.Title, refs(b.FrameworkIDs))
	}
	fmt.Fprintln(a.out, heading.Sprint("Heuristics"))
	for _, h := range c.Heuristics {
		fmt.Fprintf(a.out, "  %s  %s -> %s\n", h.ID, h.Title, refs(h.BarbellStrategyIDs))
	}
	fmt.Fprintln(a.out)
	return nil
}

// Log prints the most recent changes.
func (a *SyncAdapter) Log(ctx context.Context, limit int) error {
	changes, err := a.service.ListChanges(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list changes: %w", err)
	}
	if len(changes) == 0 {
		fmt.Fprintln(a.out, "No changes recorded")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-20s %-8s %-26s %-38s %s\n", "TIME", "ACTION", "ENTITY", "ID", "ACTOR")
	fmt.Fprintln(a.out, rule)
	for _, c := range changes {
		fmt.Fprintf(a.out, "%-20s %-8s %-26s %-38s %s\n",
			c.CreatedAt.Local().Format("2006-01-02 15:04:05"), c.Action, c.EntityType, c.EntityID, c.Actor)
	}
	fmt.Fprintln(a.out)
	return nil
}

// Import copies another backend into the configured one.
func (a *SyncAdapter) Import(ctx context.Context, source string) error {
	res, err := a.service.Import(ctx, primary.ImportRequest{SourcePath: source})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Imported %s: %d domains, %d affairs, %d interests, %d tasks, %d crafts, %d laws\n",
		source, res.Domains, res.Affairs, res.Interests, res.Tasks, res.Crafts, res.Laws)
	for _, row := range res.Skipped {
		fmt.Fprintln(a.out, color.New(color.FgYellow).Sprintf("⚠ skipped %s row %d: %s", row.Sheet, row.Row, row.Reason))
	}
	return nil
}

func (a *SyncAdapter) printModified(t time.Time) {
	fmt.Fprintf(a.out, "  modified: %s\n", formatStamp(t))
}

func (a *SyncAdapter) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func refColor(t models.RefType) *color.Color {
	switch t {
	case models.RefAffair:
		return color.New(color.FgRed)
	case models.RefInterest:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgCyan)
	}
}

// formatStamp renders a modification time so it can be passed back through
// --last-seen unchanged.
func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "(missing)"
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNumber(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return s
}

func refs(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
