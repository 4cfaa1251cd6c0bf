// Package core provides the line-model procedures and the service that runs
// them.
//
// This package holds all domain logic independent of any UI or transport
// layer. The web server and the linemodel CLI both call into it.
//
// # Procedures
//
// Two procedures are registered at init time (see [All]):
//
//   - layout: [JoinLayout] inner-joins a line layout table with a style list
//     on LINELAYOUT.
//   - rawdata: [AggregateRawData] joins raw operator efficiency records with a
//     style list, ranks each operator's records by adjusted efficiency and
//     averages the best ones into AvgEff.
//
// # Options
//
// Raw-data behavior is driven by [AggregateOptions]. Named presets ("group"
// and "style") cover the two historical variants; [Overrides] layer
// environment and request settings on top:
//
//	opts, err := core.Preset(core.PresetStyle)
//	ov := core.Overrides{RankCeiling: 1}
//	res, err := core.AggregateRawData(raw, styles, ov.Apply(opts))
//
// # Errors
//
// Procedure failures are returned as [*Failure] values that match the
// [ErrParse], [ErrMissingKey], [ErrMissingColumn] and [ErrInvalidOptions]
// sentinels with errors.Is. [MapError] turns any error into a [UserMessage]
// with a stable code.
//
// # Concurrency
//
// [Service] bounds concurrent runs with a [RunLimiter]. The procedure
// functions themselves hold no shared state and are safe to call
// concurrently.
package core
