package cli

import (
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/iudanet/synccore/internal/iocli"
	"github.com/iudanet/synccore/internal/models"
	"github.com/iudanet/synccore/internal/sync"
)

// formatter renders command results as text templates or JSON
type formatter struct {
	io     iocli.IO
	format string
}

// render writes v with the named template, or as JSON
func (f *formatter) render(tmpl *template.Template, v any) error {
	if f.format == "json" {
		enc := json.NewEncoder(f.io)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	if err := tmpl.Execute(f.io, v); err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	return nil
}

// fieldView is a field as shown to the user
type fieldView struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Value     string `json:"value"`
	Timestamp string `json:"timestamp"`
	Replica   string `json:"replica"`
}

// recordView is a record as shown to the user
type recordView struct {
	SyncID  string      `json:"sync_id"`
	Kind    string      `json:"kind"`
	Clock   string      `json:"clock"`
	Fields  []fieldView `json:"fields"`
	Pending bool        `json:"pending"`
	Deleted bool        `json:"deleted"`
}

func newRecordView(rec *models.Record) recordView {
	view := recordView{
		SyncID:  rec.ID,
		Kind:    rec.Type,
		Clock:   rec.Version.String(),
		Pending: rec.IsPendingSync(),
		Deleted: rec.IsDeleted(),
		Fields:  make([]fieldView, 0, rec.Fields.Len()),
	}
	for _, name := range rec.Fields.Fields() {
		if name == models.FieldDeleted {
			continue
		}
		reg, _ := rec.Fields.Register(name)
		view.Fields = append(view.Fields, fieldView{
			Name:      name,
			Kind:      reg.Value.Kind().String(),
			Value:     reg.Value.String(),
			Timestamp: reg.Timestamp.Format(time.RFC3339Nano),
			Replica:   reg.ReplicaID,
		})
	}
	return view
}

func newRecordViews(records []*models.Record) []recordView {
	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		views = append(views, newRecordView(rec))
	}
	return views
}

// conflictView is an open conflict with its alternatives
type conflictView struct {
	DetectedAt time.Time    `json:"detected_at"`
	SyncID     string       `json:"sync_id"`
	Kind       string       `json:"kind"`
	Versions   []recordView `json:"versions"`
}

func newConflictView(c *models.Conflict) conflictView {
	return conflictView{
		SyncID:     c.SyncID,
		Kind:       c.Kind,
		DetectedAt: c.DetectedAt,
		Versions:   newRecordViews(c.Versions()),
	}
}

// resultView is the outcome of exchange or import
type resultView struct {
	Received  int `json:"received"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Merged    int `json:"merged"`
	Conflicts int `json:"conflicts"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Pushed    int `json:"pushed"`
}

func newResultView(r *sync.Result) resultView {
	return resultView{
		Received:  r.Received,
		Inserted:  r.Inserted,
		Updated:   r.Updated,
		Merged:    r.Merged,
		Conflicts: r.Conflicts,
		Unchanged: r.Unchanged,
		Skipped:   r.Skipped,
		Pushed:    r.Pushed,
	}
}

// statusView is the summary printed by status
type statusView struct {
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	ReplicaID  string     `json:"replica_id"`
	DBPath     string     `json:"db_path"`
	Records    int        `json:"records"`
	Deleted    int        `json:"deleted"`
	Pending    int        `json:"pending"`
	Conflicts  int        `json:"conflicts"`
	Sealed     bool       `json:"sealed"`
}
