package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/polyrel/internal/domain"
)

const documentsTable = "documents"

// numericPattern avoids "?" so squirrel does not read it as a placeholder.
const numericPattern = `^-{0,1}[0-9]+(\.[0-9]+){0,1}([eE][-+]{0,1}[0-9]+){0,1}$`

// Querier is the subset of pgxpool.Pool used by the repository.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDocumentRepository reads documents stored as JSONB rows.
type PostgresDocumentRepository struct {
	db Querier
	sq sq.StatementBuilderType
}

// NewPostgresDocumentRepository creates a document repository backed by Postgres.
func NewPostgresDocumentRepository(db Querier) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{
		db: db,
		sq: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// FindOne returns the published row of a document when one exists, otherwise the latest draft.
func (r *PostgresDocumentRepository) FindOne(ctx context.Context, contentType, documentID string, opts domain.FindOptions) (domain.Entity, error) {
	query, args, err := r.buildFindOneQuery(contentType, documentID, opts)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, query, args...)
	entity, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to find %s %s: %w", contentType, documentID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find %s %s: %w", contentType, documentID, err)
	}
	return entity, nil
}

// FindMany lists rows of a content type in insertion order.
func (r *PostgresDocumentRepository) FindMany(ctx context.Context, contentType string, opts domain.FindOptions) ([]domain.Entity, error) {
	query, args, err := r.buildFindManyQuery(contentType, opts)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", contentType, err)
	}
	defer rows.Close()

	entities := []domain.Entity{}
	for rows.Next() {
		entity, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", contentType, err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", contentType, err)
	}
	return entities, nil
}

// Insert stores a document row. A missing documentId is generated.
func (r *PostgresDocumentRepository) Insert(ctx context.Context, contentType string, doc domain.Entity) (domain.Entity, error) {
	documentID, ok := domain.DocumentID(doc)
	if !ok {
		documentID = uuid.NewString()
	}

	var publishedAt *time.Time
	if raw, ok := doc[domain.FieldPublishedAt].(string); ok && raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse publishedAt %q: %w", raw, err)
		}
		publishedAt = &parsed
	}

	var locale *string
	if raw, ok := doc["locale"].(string); ok && raw != "" {
		locale = &raw
	}

	data := make(map[string]any, len(doc))
	for key, value := range doc {
		switch key {
		case domain.FieldID, domain.FieldDocumentID, domain.FieldPublishedAt, domain.FieldContentTypeTag:
			continue
		}
		data[key] = value
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	query, args, err := r.sq.Insert(documentsTable).
		Columns("document_id", "content_type", "locale", "published_at", "data").
		Values(documentID, contentType, locale, publishedAt, payload).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", contentType, err)
	}

	stored := domain.CloneEntity(data)
	stored[domain.FieldID] = id
	stored[domain.FieldDocumentID] = documentID
	if publishedAt != nil {
		stored[domain.FieldPublishedAt] = publishedAt.UTC().Format(time.RFC3339Nano)
	} else {
		stored[domain.FieldPublishedAt] = nil
	}
	return stored, nil
}

func (r *PostgresDocumentRepository) selectDocuments(opts domain.FindOptions) (sq.SelectBuilder, error) {
	projection, err := projectData(opts.Select)
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	return r.sq.Select("id", "document_id", "published_at").
		Column(projection).
		From(documentsTable), nil
}

func (r *PostgresDocumentRepository) buildFindManyQuery(contentType string, opts domain.FindOptions) (string, []any, error) {
	builder, err := r.selectDocuments(opts)
	if err != nil {
		return "", nil, err
	}
	builder = builder.Where(sq.Eq{"content_type": contentType})

	if len(opts.Filters) > 0 {
		where, err := translateTree(opts.Filters, nil)
		if err != nil {
			return "", nil, err
		}
		builder = builder.Where(where)
	}

	builder = builder.OrderBy("id ASC")
	if opts.Limit > 0 {
		builder = builder.Limit(uint64(opts.Limit))
	}
	if opts.Offset > 0 {
		builder = builder.Offset(uint64(opts.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build query for %s: %w", contentType, err)
	}
	return query, args, nil
}

func (r *PostgresDocumentRepository) buildFindOneQuery(contentType, documentID string, opts domain.FindOptions) (string, []any, error) {
	builder, err := r.selectDocuments(opts)
	if err != nil {
		return "", nil, err
	}
	query, args, err := builder.
		Where(sq.Eq{"content_type": contentType, "document_id": documentID}).
		OrderBy("published_at DESC NULLS LAST", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build query for %s: %w", contentType, err)
	}
	return query, args, nil
}

// projectData selects the data column, or a jsonb object holding only the
// selected attributes. Identity columns are always returned separately.
func projectData(fields []string) (sq.Sqlizer, error) {
	if len(fields) == 0 {
		return sq.Expr("data"), nil
	}

	var parts []string
	var args []any
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		switch field {
		case domain.FieldID, domain.FieldDocumentID, domain.FieldPublishedAt:
			continue
		}
		if strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("empty field in select")
		}
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		parts = append(parts, "?::text, data -> ?::text")
		args = append(args, field, field)
	}
	if len(parts) == 0 {
		return sq.Expr("'{}'::jsonb AS data"), nil
	}
	return sq.Expr("jsonb_build_object("+strings.Join(parts, ", ")+") AS data", args...), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Entity, error) {
	var (
		id          int64
		documentID  string
		publishedAt *time.Time
		data        []byte
	)
	if err := row.Scan(&id, &documentID, &publishedAt, &data); err != nil {
		return nil, err
	}

	entity := domain.Entity{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document %s: %w", documentID, err)
		}
	}
	entity[domain.FieldID] = id
	entity[domain.FieldDocumentID] = documentID
	if publishedAt != nil {
		entity[domain.FieldPublishedAt] = publishedAt.UTC().Format(time.RFC3339Nano)
	} else {
		entity[domain.FieldPublishedAt] = nil
	}
	return entity, nil
}

// column is an SQL expression yielding the text value of an attribute.
type column struct {
	sql  string
	args []any
	// typed columns compare with their native type instead of text.
	typed bool
}

func columnFor(path []string) column {
	if len(path) == 1 {
		switch path[0] {
		case domain.FieldDocumentID:
			return column{sql: "document_id"}
		case domain.FieldID:
			return column{sql: "id::text"}
		case domain.FieldPublishedAt:
			return column{sql: "published_at", typed: true}
		}
	}
	return column{sql: "(data #>> ?)", args: []any{path}}
}

func (c column) expr(format string, args ...any) sq.Sqlizer {
	all := append(append([]any{}, c.args...), args...)
	return sq.Expr(fmt.Sprintf(format, c.sql), all...)
}

// repeatedArgs returns the column's args n times, for formats that mention the column n times.
func (c column) repeatedArgs(n int) []any {
	out := make([]any, 0, len(c.args)*n)
	for i := 0; i < n; i++ {
		out = append(out, c.args...)
	}
	return out
}

func translateTree(tree domain.FilterTree, path []string) (sq.Sqlizer, error) {
	clauses := sq.And{}
	for key, cond := range tree {
		clause, err := translateEntry(key, cond, path)
		if err != nil {
			return nil, err
		}
		if clause != nil {
			clauses = append(clauses, clause)
		}
	}
	return clauses, nil
}

func translateEntry(key string, cond any, path []string) (sq.Sqlizer, error) {
	switch key {
	case domain.OpAnd, domain.OpOr:
		items, ok := cond.([]any)
		if !ok {
			sub, ok := domain.AsFilterTree(cond)
			if !ok {
				return nil, fmt.Errorf("%s expects a list of filters", key)
			}
			return translateTree(sub, path)
		}
		var group []sq.Sqlizer
		for _, item := range items {
			sub, ok := domain.AsFilterTree(item)
			if !ok {
				return nil, fmt.Errorf("%s expects a list of filters", key)
			}
			clause, err := translateTree(sub, path)
			if err != nil {
				return nil, err
			}
			group = append(group, clause)
		}
		if key == domain.OpOr {
			if len(group) == 0 {
				return nil, nil
			}
			return sq.Or(group), nil
		}
		return sq.And(group), nil
	case domain.OpNot:
		sub, ok := domain.AsFilterTree(cond)
		if !ok {
			return nil, fmt.Errorf("$not expects a filter")
		}
		inner, err := translateTree(sub, path)
		if err != nil {
			return nil, err
		}
		sql, args, err := inner.ToSql()
		if err != nil {
			return nil, err
		}
		return sq.Expr("NOT ("+sql+")", args...), nil
	}

	if domain.IsOperatorKey(key) {
		if len(path) == 0 {
			return nil, nil
		}
		return translateOperator(columnFor(path), key, cond), nil
	}

	fieldPath := append(append([]string{}, path...), key)
	tree, ok := domain.AsFilterTree(cond)
	if !ok {
		return translateOperator(columnFor(fieldPath), domain.OpEq, cond), nil
	}
	return translateTree(tree, fieldPath)
}

func translateOperator(col column, op string, arg any) sq.Sqlizer {
	switch op {
	case domain.OpEq:
		if arg == nil {
			return col.expr("%s IS NULL")
		}
		return col.expr("%s = ?", textArg(col, arg))
	case domain.OpNe:
		return col.expr("%s IS DISTINCT FROM ?", textArg(col, arg))
	case domain.OpContains:
		return col.expr("COALESCE(%s, '') LIKE ?", "%"+escapeLike(domain.Stringify(arg))+"%")
	case domain.OpContainsi:
		return col.expr("COALESCE(%s, '') ILIKE ?", "%"+escapeLike(domain.Stringify(arg))+"%")
	case domain.OpNotContains:
		return col.expr("COALESCE(%s, '') NOT LIKE ?", "%"+escapeLike(domain.Stringify(arg))+"%")
	case domain.OpNotContainsi:
		return col.expr("COALESCE(%s, '') NOT ILIKE ?", "%"+escapeLike(domain.Stringify(arg))+"%")
	case domain.OpStartsWith:
		return col.expr("COALESCE(%s, '') LIKE ?", escapeLike(domain.Stringify(arg))+"%")
	case domain.OpEndsWith:
		return col.expr("COALESCE(%s, '') LIKE ?", "%"+escapeLike(domain.Stringify(arg)))
	case domain.OpIn:
		values, ok := textArray(arg)
		if !ok {
			return sq.Expr("FALSE")
		}
		return col.expr("%s = ANY(?)", values)
	case domain.OpNotIn:
		values, ok := textArray(arg)
		if !ok {
			return sq.Expr("TRUE")
		}
		sql := fmt.Sprintf("(%[1]s IS NULL OR NOT (%[1]s = ANY(?)))", col.sql)
		return sq.Expr(sql, append(col.repeatedArgs(2), values)...)
	case domain.OpLt:
		return ordered(col, "<", arg)
	case domain.OpLte:
		return ordered(col, "<=", arg)
	case domain.OpGt:
		return ordered(col, ">", arg)
	case domain.OpGte:
		return ordered(col, ">=", arg)
	case domain.OpNull:
		if domain.FlagValue(arg) {
			return col.expr("%s IS NULL")
		}
		return col.expr("%s IS NOT NULL")
	case domain.OpNotNull:
		if domain.FlagValue(arg) {
			return col.expr("%s IS NOT NULL")
		}
		return col.expr("%s IS NULL")
	default:
		return nil
	}
}

func ordered(col column, cmp string, arg any) sq.Sqlizer {
	if arg == nil {
		return sq.Expr("FALSE")
	}
	if !col.typed && isNumber(arg) {
		sql := fmt.Sprintf("(CASE WHEN %[1]s ~ '%[2]s' THEN (%[1]s)::numeric END) %[3]s ?", col.sql, numericPattern, cmp)
		return sq.Expr(sql, append(col.repeatedArgs(2), domain.Stringify(arg))...)
	}
	return col.expr("%s "+cmp+" ?", textArg(col, arg))
}

func textArg(col column, arg any) any {
	if col.typed {
		return arg
	}
	if arg == nil {
		return nil
	}
	return domain.Stringify(arg)
}

func textArray(arg any) ([]string, bool) {
	switch v := arg.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = domain.Stringify(item)
		}
		return out, true
	}
	return nil, false
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return true
	}
	return false
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
