package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/services"
	"github.com/dmitrijs2005/memosync/internal/common"
)

var errUsage = errors.New("usage")

func usage(format string) error {
	return fmt.Errorf("%w: %s", errUsage, format)
}

const shortID = 8

func short(id string) string {
	if len(id) > shortID {
		return id[:shortID]
	}
	return id
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if len(line) > 60 {
		line = line[:57] + "..."
	}
	return line
}

func formatMemo(m *models.Memo) string {
	flags := ""
	if m.Pinned {
		flags += "^"
	}
	if m.NeedsSync {
		flags += "*"
	}
	line := fmt.Sprintf("%-8s %-2s %s  %s", short(m.Identifier), flags, m.Date.Local().Format("2006-01-02 15:04"), firstLine(m.Content))
	if n := len(m.Resources); n > 0 {
		line += fmt.Sprintf("  [%d file(s)]", n)
	}
	return line
}

// resolveMemo maps an id prefix onto exactly one memo of the list.
func resolveMemo(list []*models.Memo, prefix string) (*models.Memo, error) {
	var found *models.Memo
	for _, m := range list {
		if strings.HasPrefix(m.Identifier, prefix) {
			if found != nil {
				return nil, fmt.Errorf("id prefix %q is ambiguous", prefix)
			}
			found = m
		}
	}
	if found == nil {
		return nil, fmt.Errorf("memo %q: %w", prefix, common.ErrNotFound)
	}
	return found, nil
}

// findMemo looks the prefix up among live and archived memos.
func (a *App) findMemo(ctx context.Context, args []string, use string) (*models.Memo, error) {
	if len(args) == 0 {
		return nil, usage(use)
	}
	live, err := a.memos.ListMemos(ctx)
	if err != nil {
		return nil, err
	}
	archived, err := a.memos.ListArchivedMemos(ctx)
	if err != nil {
		return nil, err
	}
	return resolveMemo(append(live, archived...), args[0])
}

func (a *App) printMemos(list []*models.Memo) {
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No memos.")
		return
	}
	for _, m := range list {
		fmt.Fprintln(a.out, formatMemo(m))
	}
}

func (a *App) List(ctx context.Context, _ []string) error {
	list, err := a.memos.ListMemos(ctx)
	if err != nil {
		return err
	}
	a.printMemos(list)
	return nil
}

func (a *App) Archived(ctx context.Context, _ []string) error {
	list, err := a.memos.ListArchivedMemos(ctx)
	if err != nil {
		return err
	}
	a.printMemos(list)
	return nil
}

func (a *App) New(ctx context.Context, args []string) error {
	var vis models.Visibility
	if len(args) > 0 {
		v, err := models.ParseVisibility(args[0])
		if err != nil {
			return err
		}
		vis = v
	}

	text, err := GetMultiline(a.reader, "Enter memo text:", a.out)
	if err != nil {
		return err
	}
	m, err := a.memos.CreateMemo(ctx, services.MemoInput{Content: text, Visibility: vis})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Created", short(m.Identifier))
	return nil
}

func (a *App) Edit(ctx context.Context, args []string) error {
	m, err := a.findMemo(ctx, args, "edit <id>")
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, m.Content)
	text, err := GetMultiline(a.reader, "Enter new text (empty keeps the memo unchanged):", a.out)
	if err != nil {
		return err
	}
	if text == "" {
		fmt.Fprintln(a.out, "Unchanged.")
		return nil
	}
	if _, err := a.memos.UpdateMemo(ctx, m.Identifier, services.MemoUpdate{Content: &text}); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Saved.")
	return nil
}

func (a *App) setPinned(ctx context.Context, args []string, pinned bool, use string) error {
	m, err := a.findMemo(ctx, args, use)
	if err != nil {
		return err
	}
	_, err = a.memos.UpdateMemo(ctx, m.Identifier, services.MemoUpdate{Pinned: &pinned})
	return err
}

func (a *App) Pin(ctx context.Context, args []string) error {
	return a.setPinned(ctx, args, true, "pin <id>")
}

func (a *App) Unpin(ctx context.Context, args []string) error {
	return a.setPinned(ctx, args, false, "unpin <id>")
}

func (a *App) Archive(ctx context.Context, args []string) error {
	m, err := a.findMemo(ctx, args, "archive <id>")
	if err != nil {
		return err
	}
	_, err = a.memos.ArchiveMemo(ctx, m.Identifier)
	return err
}

func (a *App) Restore(ctx context.Context, args []string) error {
	m, err := a.findMemo(ctx, args, "restore <id>")
	if err != nil {
		return err
	}
	_, err = a.memos.RestoreMemo(ctx, m.Identifier)
	return err
}

func (a *App) Delete(ctx context.Context, args []string) error {
	m, err := a.findMemo(ctx, args, "delete <id>")
	if err != nil {
		return err
	}
	if !confirm(a.reader, fmt.Sprintf("Delete memo %s?", short(m.Identifier)), a.out) {
		fmt.Fprintln(a.out, "Kept.")
		return nil
	}
	if err := a.memos.DeleteMemo(ctx, m.Identifier); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted", short(m.Identifier))
	return nil
}

func (a *App) Attach(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("attach <id> <path>")
	}
	m, err := a.findMemo(ctx, args[:1], "attach <id> <path>")
	if err != nil {
		return err
	}
	path := strings.Join(args[1:], " ")
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	r, err := a.memos.CreateResource(ctx, services.ResourceInput{
		Filename: filepath.Base(path),
		Data:     data,
		MemoID:   m.Identifier,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Attached %s (%s) as %s\n", r.Filename, r.MimeType, short(r.Identifier))
	return nil
}

func (a *App) Resources(ctx context.Context, _ []string) error {
	list, err := a.memos.ListResources(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No resources.")
		return nil
	}
	for _, r := range list {
		memo := "-"
		if r.MemoID != nil {
			memo = short(*r.MemoID)
		}
		state := "local"
		if r.RemoteID != "" {
			state = "uploaded"
		}
		fmt.Fprintf(a.out, "%-8s memo %-8s %-8s %s (%s)\n", short(r.Identifier), memo, state, r.Filename, r.MimeType)
	}
	return nil
}

func (a *App) RemoveResource(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("rmres <id>")
	}
	list, err := a.memos.ListResources(ctx)
	if err != nil {
		return err
	}
	var id string
	for _, r := range list {
		if strings.HasPrefix(r.Identifier, args[0]) {
			if id != "" {
				return fmt.Errorf("id prefix %q is ambiguous", args[0])
			}
			id = r.Identifier
		}
	}
	if id == "" {
		return fmt.Errorf("resource %q: %w", args[0], common.ErrNotFound)
	}
	return a.memos.DeleteResource(ctx, id)
}

func (a *App) Tags(ctx context.Context, _ []string) error {
	tags, err := a.memos.ListTags(ctx)
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		fmt.Fprintln(a.out, "No tags.")
		return nil
	}
	fmt.Fprintln(a.out, "#"+strings.Join(tags, " #"))
	return nil
}

func (a *App) Sync(ctx context.Context, _ []string) error {
	if a.mode() == ModeLocal {
		fmt.Fprintln(a.out, "Local account, nothing to sync.")
		return nil
	}

	err := a.syncOnce(ctx)
	var partial *common.PartialSyncError
	switch {
	case err == nil:
		fmt.Fprintln(a.out, "Synced.")
	case errors.As(err, &partial):
		fmt.Fprintf(a.out, "Synced with %d failure(s):\n", len(partial.Failures()))
		for _, f := range partial.Failures() {
			fmt.Fprintln(a.out, "  -", f.Error())
		}
		return nil
	default:
		return err
	}
	return nil
}

func (a *App) Pending(ctx context.Context, _ []string) error {
	n, err := a.memos.PendingCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d memo(s) waiting to sync\n", n)
	return nil
}

func (a *App) WhoAmI(ctx context.Context, _ []string) error {
	u, err := a.memos.CurrentUser(ctx)
	if err != nil {
		return err
	}
	a.setUser(u.DisplayName())
	fmt.Fprintf(a.out, "%s (%s) on %s\n", u.DisplayName(), u.Username, a.memos.AccountKey())
	return nil
}
