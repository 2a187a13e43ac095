package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRoute      = "route"
	KeyPath       = "path"
	KeyBatchID    = "batch_id"
	KeyKind       = "kind"
	KeyTemplate   = "template"
	KeyDurationMS = "duration_ms"
	KeyDocuments  = "documents"
	KeySnapshot   = "snapshot"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Route(r string) slog.Attr        { return slog.String(KeyRoute, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func BatchID(id string) slog.Attr     { return slog.String(KeyBatchID, id) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func Template(name string) slog.Attr  { return slog.String(KeyTemplate, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Documents(n int) slog.Attr       { return slog.Int(KeyDocuments, n) }
func SnapshotID(id string) slog.Attr  { return slog.String(KeySnapshot, id) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
