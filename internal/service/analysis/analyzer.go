package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/ashwinyue/tracesmith/internal/model"
)

// Column 表结构中的一列
type Column struct {
	Name string
	Type string
}

// Result 查询结果
type Result struct {
	SQL     string
	Columns []string
	Rows    []map[string]string
}

// Stats 数据集统计
type Stats struct {
	Format         model.DatasetType
	Rows           int64
	AvgAnswerChars float64
	// PassingRate 仅在导出时包含 metadata 才可计算
	PassingRate *float64
}

// Analyzer 在内存 DuckDB 中加载一份 JSONL 数据集
type Analyzer struct {
	db        *sql.DB
	validator *Validator
	path      string
}

// Open 打开 JSONL 文件并加载为 traces 表
func Open(ctx context.Context, path string) (*Analyzer, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("dataset file not found: %w", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	createSQL := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM read_json_auto('%s', format = 'newline_delimited')",
		TableName, strings.ReplaceAll(path, "'", "''"))
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	return &Analyzer{db: db, validator: NewValidator(), path: path}, nil
}

// Close 关闭连接
func (a *Analyzer) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Query 验证并执行用户查询
func (a *Analyzer) Query(ctx context.Context, userSQL string) (*Result, error) {
	secured, err := a.validator.Validate(userSQL)
	if err != nil {
		return nil, fmt.Errorf("sql validation failed: %w", err)
	}
	return a.executeQuery(ctx, secured)
}

// Schema 返回 traces 表结构
func (a *Analyzer) Schema(ctx context.Context) ([]Column, error) {
	res, err := a.executeQuery(ctx, "DESCRIBE "+TableName)
	if err != nil {
		return nil, err
	}
	cols := make([]Column, 0, len(res.Rows))
	for _, row := range res.Rows {
		cols = append(cols, Column{Name: row["column_name"], Type: row["column_type"]})
	}
	return cols, nil
}

// Stats 计算行数、平均回答长度，以及有 metadata 时的通过率
func (a *Analyzer) Stats(ctx context.Context) (*Stats, error) {
	cols, err := a.Schema(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(cols))
	for _, c := range cols {
		names[c.Name] = true
	}

	stats := &Stats{}
	answerExpr := ""
	switch {
	case names["messages"]:
		stats.Format = model.DatasetTypeSFT
		answerExpr = "messages[3].content"
	case names["question"] && names["answer"]:
		stats.Format = model.DatasetTypeQA
		answerExpr = "answer"
	default:
		return nil, fmt.Errorf("unrecognized dataset layout in %s", a.path)
	}

	query := fmt.Sprintf("SELECT count(*), coalesce(avg(length(%s)), 0) FROM %s", answerExpr, TableName)
	if err := a.db.QueryRowContext(ctx, query).Scan(&stats.Rows, &stats.AvgAnswerChars); err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	if names["metadata"] {
		var rate sql.NullFloat64
		query := fmt.Sprintf("SELECT avg(CASE WHEN metadata.passed THEN 1.0 ELSE 0.0 END) FROM %s", TableName)
		if err := a.db.QueryRowContext(ctx, query).Scan(&rate); err != nil {
			return nil, fmt.Errorf("failed to compute passing rate: %w", err)
		}
		if rate.Valid {
			stats.PassingRate = &rate.Float64
		}
	}
	return stats, nil
}

// executeQuery 执行查询
func (a *Analyzer) executeQuery(ctx context.Context, sqlQuery string) (*Result, error) {
	rows, err := a.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{SQL: sqlQuery, Columns: columns, Rows: make([]map[string]string, 0)}
	for rows.Next() {
		columnValues := make([]interface{}, len(columns))
		columnPointers := make([]interface{}, len(columns))
		for i := range columnValues {
			columnPointers[i] = &columnValues[i]
		}

		if err := rows.Scan(columnPointers...); err != nil {
			return nil, err
		}

		rowMap := make(map[string]string)
		for i, colName := range columns {
			val := columnValues[i]
			switch v := val.(type) {
			case nil:
				rowMap[colName] = "NULL"
			case []byte:
				rowMap[colName] = string(v)
			default:
				rowMap[colName] = fmt.Sprintf("%v", v)
			}
		}
		result.Rows = append(result.Rows, rowMap)
	}
	return result, rows.Err()
}
