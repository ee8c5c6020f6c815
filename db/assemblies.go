package db

import (
	"database/sql"
	"time"

	"github.com/rohanthewiz/serr"
)

// Assembly is one served assembly of a root shader.
type Assembly struct {
	Shader    string
	Files     int
	Controls  int
	Bytes     int
	Duration  time.Duration
	Cached    bool
	ErrorKind string // "io", "parse" or empty
	Error     string
}

// ShaderStat summarizes the assemblies of one root shader.
type ShaderStat struct {
	Shader     string    `json:"shader"`
	Count      int64     `json:"count"`
	Failures   int64     `json:"failures"`
	AvgMicros  float64   `json:"avg_us"`
	LastServed time.Time `json:"last_served"`
}

// AssemblyStats summarizes the whole assembly log.
type AssemblyStats struct {
	Total    int64        `json:"total"`
	Failures int64        `json:"failures"`
	Cached   int64        `json:"cached"`
	Shaders  []ShaderStat `json:"shaders"`
}

// RecordAssembly appends a to the assembly log.
func (db *DB) RecordAssembly(a Assembly) error {
	_, err := db.Exec(`
		INSERT INTO assemblies (shader, files, controls, bytes, duration_us, cached, error_kind, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Shader, a.Files, a.Controls, a.Bytes, a.Duration.Microseconds(), a.Cached,
		nullableString(a.ErrorKind), nullableString(a.Error),
	)
	if err != nil {
		return serr.Wrap(err, "failed to record assembly", "shader", a.Shader)
	}
	return nil
}

// AssemblyStats returns totals and the per-shader summary, most served first.
func (db *DB) AssemblyStats() (AssemblyStats, error) {
	var st AssemblyStats
	err := db.QueryRow(`
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE error_kind IS NOT NULL),
			COUNT(*) FILTER (WHERE cached)
		FROM assemblies`,
	).Scan(&st.Total, &st.Failures, &st.Cached)
	if err != nil {
		return st, serr.Wrap(err, "failed to read assembly totals")
	}

	rows, err := db.Query(`
		SELECT shader,
			COUNT(*) AS n,
			COUNT(*) FILTER (WHERE error_kind IS NOT NULL),
			AVG(duration_us),
			MAX(created_at)
		FROM assemblies
		GROUP BY shader
		ORDER BY n DESC, shader`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	st.Shaders = []ShaderStat{}
	for rows.Next() {
		var s ShaderStat
		if err := rows.Scan(&s.Shader, &s.Count, &s.Failures, &s.AvgMicros, &s.LastServed); err != nil {
			return st, serr.Wrap(err, "failed to scan shader stats")
		}
		st.Shaders = append(st.Shaders, s)
	}
	return st, rows.Err()
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
