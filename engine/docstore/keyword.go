package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jurisgraph/jurisgraph/engine/domain"
	"github.com/jurisgraph/jurisgraph/engine/search"
)

// KeywordSearch is the fallback retrieval path: an OR of case-insensitive
// substring matches over chunk text, title, and cite, restricted by the same
// source and jurisdiction predicates as the vector path. Scores and the
// fallback tag are assigned by the caller.
func (s *Store) KeywordSearch(ctx context.Context, terms []string, source domain.Source, filter search.Filter, limit int) ([]search.Result, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = search.DefaultLimit
	}

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var termConds []string
	for _, t := range terms {
		p := arg("%" + t + "%")
		termConds = append(termConds,
			fmt.Sprintf("(chunk_text ILIKE %s OR title ILIKE %s OR cite ILIKE %s)", p, p, p))
	}
	conds = append(conds, "("+strings.Join(termConds, " OR ")+")")

	if source != "" {
		conds = append(conds, "source = "+arg(string(source)))
	}
	if sql := renderFilterSQL(filter, arg); sql != "" {
		conds = append(conds, sql)
	}

	q := fmt.Sprintf(`
		SELECT chunk_id, cite, title, chunk_text, source, COALESCE(region_name, '')
		FROM chunks
		WHERE %s
		ORDER BY chunk_id
		LIMIT %s`, strings.Join(conds, " AND "), arg(limit))

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("docstore: keyword search: %w", err)
	}
	defer rows.Close()

	var out []search.Result
	for rows.Next() {
		var r search.Result
		var src string
		if err := rows.Scan(&r.ChunkID, &r.Cite, &r.Title, &r.Text, &src, &r.RegionName); err != nil {
			return nil, fmt.Errorf("docstore: scan result: %w", err)
		}
		r.Source = domain.Source(src)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: keyword search: %w", err)
	}
	return out, nil
}

// renderFilterSQL turns the jurisdiction filter into an OR of equality
// predicates. An empty filter renders to nothing (no jurisdiction scope).
func renderFilterSQL(f search.Filter, arg func(any) string) string {
	var clauses []string
	for _, c := range f.Clauses {
		switch len(c.Values) {
		case 0:
		case 1:
			clauses = append(clauses, fmt.Sprintf("%s = %s", c.Field, arg(c.Values[0])))
		default:
			ps := make([]string, len(c.Values))
			for i, v := range c.Values {
				ps[i] = arg(v)
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", c.Field, strings.Join(ps, ", ")))
		}
	}
	if len(clauses) == 0 {
		return ""
	}
	return "(" + strings.Join(clauses, " OR ") + ")"
}

// LogSearch appends a row to search_history.
func (s *Store) LogSearch(ctx context.Context, query, sourceFilter, regionFilter string, resultCount int, fallback bool) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO search_history (query, source_filter, region_filter, results_count, fallback)
		VALUES ($1, $2, $3, $4, $5)`,
		query, sourceFilter, regionFilter, resultCount, fallback)
	if err != nil {
		return fmt.Errorf("docstore: log search: %w", err)
	}
	return nil
}
