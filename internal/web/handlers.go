package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"

	"github.com/JonMunkholm/linemodel/internal/core"
	"github.com/JonMunkholm/linemodel/internal/export"
	"github.com/JonMunkholm/linemodel/internal/logging"
	"github.com/JonMunkholm/linemodel/internal/table"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

// ProceduresResponse lists procedures and the raw-data presets.
type ProceduresResponse struct {
	Procedures []core.ProcedureInfo  `json:"procedures"`
	Presets    []string              `json:"presets"`
	RunLimiter core.RunLimiterStatus `json:"run_limiter"`
}

// ResultResponse is the JSON form of a procedure result.
type ResultResponse struct {
	RunID       string     `json:"run_id"`
	Procedure   string     `json:"procedure"`
	Empty       bool       `json:"empty"`
	Columns     []string   `json:"columns"`
	Rows        [][]string `json:"rows"`
	Diagnostics []string   `json:"diagnostics"`
	DurationMs  int64      `json:"duration_ms"`
}

func (s *Server) handleListProcedures(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, ProceduresResponse{
		Procedures: s.service.Procedures(),
		Presets:    s.service.PresetNames(),
		RunLimiter: s.service.Limiter().Status(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":      "ok",
		"active_runs": s.service.Limiter().ActiveCount(),
	})
}

// handleLayout runs the layout join on uploaded layout and stylelist files.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	files, err := s.readUploads(w, r, core.InputLayout, core.InputStyleList)
	if err != nil {
		respondError(w, r, err)
		return
	}
	format, err := export.ParseFormat(r.FormValue("format"))
	if err != nil {
		respondError(w, r, badRequest("invalid options: %v", err))
		return
	}

	res, err := s.service.RunLayout(r.Context(), files[core.InputLayout], files[core.InputStyleList], r.FormValue("encoding"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.writeResult(w, r, res, format)
}

// handleRawData runs the raw-data aggregation. Form fields override the
// selected preset.
func (s *Server) handleRawData(w http.ResponseWriter, r *http.Request) {
	files, err := s.readUploads(w, r, core.InputRawData, core.InputStyleList)
	if err != nil {
		respondError(w, r, err)
		return
	}
	format, err := export.ParseFormat(r.FormValue("format"))
	if err != nil {
		respondError(w, r, badRequest("invalid options: %v", err))
		return
	}
	ov, err := parseOverrides(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	res, err := s.service.RunRawData(r.Context(), files[core.InputRawData], files[core.InputStyleList], ov)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.writeResult(w, r, res, format)
}

// readUploads parses the multipart body and reads each named file field.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request, names ...string) (map[string][]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &requestError{status: http.StatusRequestEntityTooLarge, err: fmt.Errorf("file too large: %w", err)}
		}
		return nil, badRequest("invalid csv upload: %v", err)
	}

	files := make(map[string][]byte, len(names))
	for _, name := range names {
		data, err := readFormFile(r.MultipartForm, name)
		if err != nil {
			return nil, err
		}
		files[name] = data
	}
	return files, nil
}

func readFormFile(form *multipart.Form, name string) ([]byte, error) {
	headers := form.File[name]
	if len(headers) == 0 {
		return nil, badRequest("no file provided for %s", name)
	}
	f, err := headers[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open %s upload: %w", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s upload: %w", name, err)
	}
	return data, nil
}

// parseOverrides reads raw-data option overrides from form values. An
// empty drop_columns field that is present means "drop nothing".
func parseOverrides(r *http.Request) (core.Overrides, error) {
	ov := core.Overrides{
		Preset:        strings.TrimSpace(r.FormValue("preset")),
		Encoding:      strings.TrimSpace(r.FormValue("encoding")),
		JoinKey:       strings.TrimSpace(r.FormValue("join_key")),
		MissingPolicy: strings.TrimSpace(r.FormValue("missing_policy")),
		RankBy:        splitList(r.FormValue("rank_by")),
	}

	if v := strings.TrimSpace(r.FormValue("rank_ceiling")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ov, badRequest("invalid options: rank_ceiling %q is not an integer", v)
		}
		if n < 1 {
			return ov, badRequest("invalid options: rank_ceiling must be at least 1")
		}
		ov.RankCeiling = n
	}

	if v := strings.TrimSpace(r.FormValue("eff_floor")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return ov, badRequest("invalid options: eff_floor %q is not a number", v)
		}
		ov.EffFloor = &f
	}

	if _, ok := r.Form["drop_columns"]; ok {
		ov.DropColumns = splitList(r.FormValue("drop_columns"))
		if ov.DropColumns == nil {
			ov.DropColumns = []string{}
		}
	}
	return ov, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// writeResult sends a result in the requested format. CSV and XLSX are
// downloads named after the procedure's default file.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res *core.Result, format export.Format) {
	w.Header().Set("X-Run-ID", res.RunID.String())
	w.Header().Set("X-Result-Empty", strconv.FormatBool(res.Empty))

	if format == export.FormatJSON {
		records := res.Table.Records()
		render.JSON(w, r, ResultResponse{
			RunID:       res.RunID.String(),
			Procedure:   res.Procedure,
			Empty:       res.Empty,
			Columns:     records[0],
			Rows:        records[1:],
			Diagnostics: res.Diagnostics,
			DurationMs:  res.Duration.Milliseconds(),
		})
		return
	}

	fileName := "result.csv"
	if info, ok := core.Get(res.Procedure); ok {
		fileName = info.DefaultFileName
	}
	fileName = format.FileName(fileName)

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	var err error
	if format == export.FormatXLSX {
		err = export.WriteXLSX(w, res.Table, res.Procedure)
	} else {
		err = table.WriteCSV(w, res.Table)
	}
	if err != nil {
		// Headers are already sent.
		logging.FromContext(r.Context()).Error("write result",
			"run_id", res.RunID,
			"format", format,
			"error", err,
		)
	}
}
