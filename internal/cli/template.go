package cli

import "text/template"

var recordTemplate = template.Must(template.New("record").Parse(`
ID:      {{.SyncID}}
Kind:    {{.Kind}}
Clock:   {{.Clock}}
Pending: {{.Pending}}
{{- if .Deleted}}
Deleted: yes
{{- end}}
Fields:
{{- range .Fields}}
  {{.Name}} = {{.Value}} ({{.Kind}}, {{.Replica}} @ {{.Timestamp}})
{{- else}}
  (none)
{{- end}}
`))

var recordListTemplate = template.Must(template.New("records").Parse(`
{{- range .}}{{.SyncID}}  {{.Kind}}  {{.Clock}}{{if .Pending}}  [pending]{{end}}{{if .Deleted}}  [deleted]{{end}}
{{else}}No records found.
{{end}}`))

var conflictListTemplate = template.Must(template.New("conflicts").Parse(`
{{- range .}}=== {{.SyncID}} ({{.Kind}}) detected {{.DetectedAt.Format "2006-01-02 15:04:05"}} ===
{{- range $i, $v := .Versions}}
  [{{$i}}] clock {{$v.Clock}}
{{- range $v.Fields}}
      {{.Name}} = {{.Value}}
{{- end}}
{{- end}}
{{else}}No open conflicts.
{{end}}`))

var resultTemplate = template.Must(template.New("result").Parse(`Received:  {{.Received}}
Inserted:  {{.Inserted}}
Updated:   {{.Updated}}
Merged:    {{.Merged}}
Conflicts: {{.Conflicts}}
Unchanged: {{.Unchanged}}
Skipped:   {{.Skipped}}
Pushed:    {{.Pushed}}
`))

var statusTemplate = template.Must(template.New("status").Parse(`=== Replica Status ===
Replica:   {{.ReplicaID}}
Database:  {{.DBPath}}{{if .Sealed}} (sealed){{end}}
Records:   {{.Records}} ({{.Deleted}} deleted)
Pending:   {{.Pending}}
Conflicts: {{.Conflicts}}
Last sync: {{if .LastSyncAt}}{{.LastSyncAt.Format "2006-01-02 15:04:05"}}{{else}}never{{end}}
`))

var versionTemplate = template.Must(template.New("version").Parse(`syncctl {{.Version}}
  Build date: {{.BuildDate}}
  Git commit: {{.GitCommit}}
`))

var initTemplate = template.Must(template.New("init").Parse(`Replica {{.ReplicaID}} initialized at {{.DBPath}}{{if .Sealed}} (sealed){{end}}
`))
