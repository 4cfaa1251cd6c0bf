package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/linemodel/internal/core"
)

// procedureForm holds the extra fields a procedure's upload form shows.
var procedureForm = map[string][]formField{
	core.ProcedureLayout: {
		{Name: "encoding", Label: "Encoding", Placeholder: "tis-620"},
	},
	core.ProcedureRawData: {
		{Name: "preset", Label: "Preset", Placeholder: core.PresetGroup},
		{Name: "encoding", Label: "Encoding", Placeholder: "preset default"},
		{Name: "join_key", Label: "Join key", Placeholder: "group or style"},
		{Name: "rank_ceiling", Label: "Rank ceiling", Placeholder: "3"},
		{Name: "eff_floor", Label: "Eff floor", Placeholder: "35"},
		{Name: "rank_by", Label: "Rank by", Placeholder: "id,group,jobtitle"},
		{Name: "missing_policy", Label: "Missing columns", Placeholder: "strict or fill"},
	},
}

type formField struct {
	Name        string
	Label       string
	Placeholder string
}

// Dashboard lists every procedure with an upload form.
func Dashboard(procs []core.ProcedureInfo, presets []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<title>Line model</title></head><body><main>`)
		b.WriteString(`<h1>Line model</h1>`)
		fmt.Fprintf(&b, `<p>Presets: %s</p>`, templ.EscapeString(strings.Join(presets, ", ")))

		for _, p := range procs {
			fmt.Fprintf(&b, `<section id="%s"><h2>%s</h2><p>%s</p>`,
				templ.EscapeString(p.Key), templ.EscapeString(p.Label), templ.EscapeString(p.Description))
			fmt.Fprintf(&b, `<form method="post" action="/api/%s" enctype="multipart/form-data">`,
				templ.EscapeString(p.Key))
			for _, in := range p.Inputs {
				fmt.Fprintf(&b, `<label>%s <input type="file" name="%s" accept=".csv,text/csv" required></label><br>`,
					templ.EscapeString(in), templ.EscapeString(in))
			}
			for _, f := range procedureForm[p.Key] {
				fmt.Fprintf(&b, `<label>%s <input type="text" name="%s" placeholder="%s"></label><br>`,
					templ.EscapeString(f.Label), templ.EscapeString(f.Name), templ.EscapeString(f.Placeholder))
			}
			b.WriteString(`<label>Format <select name="format">`)
			b.WriteString(`<option value="csv">CSV</option><option value="xlsx">XLSX</option><option value="json">JSON</option>`)
			b.WriteString(`</select></label><br>`)
			fmt.Fprintf(&b, `<button type="submit">Run</button> <small>Downloads %s</small>`,
				templ.EscapeString(p.DefaultFileName))
			b.WriteString(`</form></section>`)
		}

		b.WriteString(`</main></body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	templ.Handler(Dashboard(s.service.Procedures(), s.service.PresetNames())).ServeHTTP(w, r)
}
