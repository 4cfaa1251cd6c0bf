package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/linemodel/internal/config"
	"github.com/JonMunkholm/linemodel/internal/core"
	"github.com/JonMunkholm/linemodel/internal/export"
	"github.com/JonMunkholm/linemodel/internal/table"
)

// outputOptions are the flags shared by commands that write a result.
type outputOptions struct {
	out    string
	format string
}

func (o *outputOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.out, "output", "o", "", `Output file ("-" for stdout; default: the procedure's file name)`)
	cmd.Flags().StringVar(&o.format, "format", "csv", "Output format: csv|xlsx|json")
}

func newLayoutCmd(a *app) *cobra.Command {
	var layoutPath, stylePath, encoding string
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Inner-join a line layout export with the style list on LINELAYOUT",
		Example: `  linemodel layout --layout Layout.csv --stylelist StyleList.csv
  linemodel layout --layout Layout.csv --stylelist StyleList.csv --format xlsx -o week22.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			layout, styles, err := readInputs(layoutPath, stylePath)
			if err != nil {
				return err
			}
			res, err := a.service.RunLayout(cmd.Context(), layout, styles, encoding)
			if err != nil {
				return err
			}
			return writeResult(cmd, res, out)
		},
	}

	cmd.Flags().StringVar(&layoutPath, "layout", "", "Layout CSV file (required)")
	cmd.Flags().StringVar(&stylePath, "stylelist", "", "Style list CSV file (required)")
	cmd.Flags().StringVar(&encoding, "encoding", "", "Input encoding (default tis-620)")
	out.register(cmd)

	_ = cmd.MarkFlagRequired("layout")
	_ = cmd.MarkFlagRequired("stylelist")
	return cmd
}

func newRawDataCmd(a *app) *cobra.Command {
	var rawPath, stylePath, presetFile string
	var ov core.Overrides
	var effFloor float64
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "rawdata",
		Short: "Rank operator efficiency per group and average the best records",
		Long: `Join raw efficiency records with the style list, rank each operator's
records by eff*1.05, keep ranks up to the ceiling with eff at or above the
floor, and write the mean as AvgEff.

Options resolve in order: preset, --config file, flags.`,
		Example: `  linemodel rawdata --rawdata RAWDATA.csv --stylelist StyleList.csv
  linemodel rawdata --rawdata RAWDATA.csv --stylelist StyleList.csv --preset style
  linemodel rawdata --rawdata RAWDATA.csv --stylelist StyleList.csv --config night.yaml --rank-ceiling 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("eff-floor") {
				ov.EffFloor = &effFloor
			}
			if cmd.Flags().Changed("drop-columns") && ov.DropColumns == nil {
				ov.DropColumns = []string{}
			}
			if presetFile != "" {
				spec, err := config.LoadPreset(presetFile)
				if err != nil {
					return err
				}
				ov = core.OverridesFromSpec(spec).Merge(ov)
			}

			raw, styles, err := readInputs(rawPath, stylePath)
			if err != nil {
				return err
			}
			res, err := a.service.RunRawData(cmd.Context(), raw, styles, ov)
			if err != nil {
				return err
			}
			return writeResult(cmd, res, out)
		},
	}

	cmd.Flags().StringVar(&rawPath, "rawdata", "", "Raw data CSV file (required)")
	cmd.Flags().StringVar(&stylePath, "stylelist", "", "Style list CSV file (required)")
	cmd.Flags().StringVar(&presetFile, "config", "", "YAML preset file (base, encoding, rank_ceiling, ...)")
	cmd.Flags().StringVar(&ov.Preset, "preset", "", "Preset name (default from RAWDATA_PRESET, else group)")
	cmd.Flags().StringVar(&ov.Encoding, "encoding", "", "Input encoding")
	cmd.Flags().StringVar(&ov.JoinKey, "join-key", "", "Join column: group|style")
	cmd.Flags().IntVar(&ov.RankCeiling, "rank-ceiling", 0, "Highest rank kept per group")
	cmd.Flags().Float64Var(&effFloor, "eff-floor", core.DefaultEffFloor, "Minimum eff kept")
	cmd.Flags().StringSliceVar(&ov.DropColumns, "drop-columns", nil, "Style list columns dropped before the join")
	cmd.Flags().StringSliceVar(&ov.RankBy, "rank-by", nil, "Columns that partition ranking")
	cmd.Flags().StringVar(&ov.MissingPolicy, "missing", "", "Missing required columns: strict|fill")
	out.register(cmd)

	_ = cmd.MarkFlagRequired("rawdata")
	_ = cmd.MarkFlagRequired("stylelist")
	return cmd
}

func newPresetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "Print the raw-data presets as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := make(map[string]config.PresetSpec)
			for _, name := range a.service.PresetNames() {
				opts, _ := a.service.Preset(name)
				specs[name] = opts.Spec()
			}
			data, err := config.MarshalPresets(specs)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func readInputs(left, right string) ([]byte, []byte, error) {
	l, err := os.ReadFile(left)
	if err != nil {
		return nil, nil, fmt.Errorf("read input: %w", err)
	}
	r, err := os.ReadFile(right)
	if err != nil {
		return nil, nil, fmt.Errorf("read input: %w", err)
	}
	return l, r, nil
}

// writeResult writes res to the chosen file, or stdout for "-".
func writeResult(cmd *cobra.Command, res *core.Result, o outputOptions) error {
	format, err := export.ParseFormat(o.format)
	if err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	path := o.out
	if path == "" {
		name := "result.csv"
		if info, ok := core.Get(res.Procedure); ok {
			name = info.DefaultFileName
		}
		path = format.FileName(name)
	}

	if path == "-" {
		if err := encodeResult(cmd.OutOrStdout(), res, format); err != nil {
			return err
		}
	} else if err := writeFile(path, res, format); err != nil {
		return err
	}

	for _, d := range res.Diagnostics {
		slog.Info("diagnostic", "run_id", res.RunID, "message", d)
	}
	if res.Empty {
		slog.Warn("result is empty", "procedure", res.Procedure)
	}
	slog.Info("wrote result", "path", path, "rows", res.Rows(), "format", format)
	return nil
}

func writeFile(path string, res *core.Result, format export.Format) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := encodeResult(f, res, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func encodeResult(w io.Writer, res *core.Result, format export.Format) error {
	switch format {
	case export.FormatXLSX:
		return export.WriteXLSX(w, res.Table, res.Procedure)
	case export.FormatJSON:
		return export.WriteJSON(w, res.Table)
	default:
		return table.WriteCSV(w, res.Table)
	}
}
