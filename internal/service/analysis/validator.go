// Package analysis 使用 DuckDB 对导出的 JSONL 数据集做只读 SQL 分析
package analysis

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// TableName 数据集加载后的表名
const TableName = "traces"

// maxQueryLength 查询最大长度
const maxQueryLength = 4096

// Validator SQL 安全验证器，使用 PostgreSQL 官方解析器
// 只允许对 traces 表的单条 SELECT，且函数调用必须在白名单内
type Validator struct {
	allowedTables    map[string]bool
	allowedFunctions map[string]bool
}

// NewValidator 创建 SQL 安全验证器
func NewValidator() *Validator {
	return &Validator{
		allowedTables: map[string]bool{
			TableName: true,
		},
		allowedFunctions: map[string]bool{
			// 聚合函数
			"count": true, "sum": true, "avg": true, "min": true, "max": true,
			"median": true, "stddev": true, "bool_and": true, "bool_or": true,
			"array_agg": true, "string_agg": true, "list": true,
			// 字符串与列表函数
			"coalesce": true, "nullif": true,
			"greatest": true, "least": true,
			"abs": true, "ceil": true, "floor": true, "round": true,
			"length": true, "len": true, "strlen": true, "array_length": true,
			"lower": true, "upper": true,
			"trim": true, "ltrim": true, "rtrim": true,
			"substring": true, "concat": true, "concat_ws": true,
			"replace": true, "left": true, "right": true,
			"contains": true, "starts_with": true, "ends_with": true,
			"regexp_matches": true, "list_extract": true,
			"json_extract": true, "json_extract_string": true,
		},
	}
}

// Validate 验证查询并返回标准化后的 SQL
func (v *Validator) Validate(sqlQuery string) (string, error) {
	// 阶段 1: 基本输入验证
	if err := v.validateInput(sqlQuery); err != nil {
		return "", err
	}

	// 阶段 2: 解析
	result, err := pg_query.Parse(sqlQuery)
	if err != nil {
		return "", fmt.Errorf("sql parse error: %v", err)
	}

	// 阶段 3: 只允许一条语句
	if len(result.Stmts) == 0 {
		return "", fmt.Errorf("empty query")
	}
	if len(result.Stmts) > 1 {
		return "", fmt.Errorf("multiple statements are not allowed")
	}

	// 阶段 4: 只允许 SELECT
	selectStmt := result.Stmts[0].Stmt.GetSelectStmt()
	if selectStmt == nil {
		return "", fmt.Errorf("only SELECT queries are allowed")
	}

	// 阶段 5: 递归验证
	if err := v.validateSelectStmt(selectStmt); err != nil {
		return "", err
	}

	// 阶段 6: 标准化
	normalized, err := pg_query.Deparse(result)
	if err != nil {
		return "", fmt.Errorf("failed to normalize sql: %v", err)
	}
	return normalized, nil
}

// validateInput 基本输入验证
func (v *Validator) validateInput(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return fmt.Errorf("empty query")
	}
	if strings.Contains(sql, "\x00") {
		return fmt.Errorf("query contains illegal characters")
	}
	if len(sql) > maxQueryLength {
		return fmt.Errorf("query too long (max %d characters)", maxQueryLength)
	}
	return nil
}

// validateSelectStmt 验证 SELECT 语句
func (v *Validator) validateSelectStmt(stmt *pg_query.SelectStmt) error {
	// 复合查询 (UNION/INTERSECT/EXCEPT)
	if stmt.Op != pg_query.SetOperation_SETOP_NONE {
		return fmt.Errorf("compound queries (UNION/INTERSECT/EXCEPT) are not allowed")
	}
	if stmt.WithClause != nil {
		return fmt.Errorf("WITH clauses are not allowed")
	}
	if stmt.IntoClause != nil {
		return fmt.Errorf("SELECT INTO is not allowed")
	}
	if len(stmt.LockingClause) > 0 {
		return fmt.Errorf("locking clauses are not allowed")
	}

	tables := 0
	for _, fromItem := range stmt.FromClause {
		n, err := v.validateFromItem(fromItem)
		if err != nil {
			return err
		}
		tables += n
	}
	if tables == 0 {
		return fmt.Errorf("query must read from table %q", TableName)
	}

	nodes := make([]*pg_query.Node, 0, len(stmt.TargetList)+len(stmt.GroupClause)+len(stmt.SortClause)+2)
	nodes = append(nodes, stmt.TargetList...)
	nodes = append(nodes, stmt.GroupClause...)
	nodes = append(nodes, stmt.SortClause...)
	nodes = append(nodes, stmt.WhereClause, stmt.HavingClause)
	for _, n := range nodes {
		if err := v.validateNode(n); err != nil {
			return err
		}
	}
	return nil
}

// validateFromItem 验证 FROM 子句项，返回引用的表数量
func (v *Validator) validateFromItem(node *pg_query.Node) (int, error) {
	if node == nil {
		return 0, nil
	}

	// 简单表引用
	if rv := node.GetRangeVar(); rv != nil {
		if rv.Schemaname != "" && !strings.EqualFold(rv.Schemaname, "main") {
			return 0, fmt.Errorf("schema %q is not allowed", rv.Schemaname)
		}
		if !v.allowedTables[strings.ToLower(rv.Relname)] {
			return 0, fmt.Errorf("table not allowed: %s", rv.Relname)
		}
		return 1, nil
	}

	// JOIN
	if je := node.GetJoinExpr(); je != nil {
		l, err := v.validateFromItem(je.Larg)
		if err != nil {
			return 0, err
		}
		r, err := v.validateFromItem(je.Rarg)
		if err != nil {
			return 0, err
		}
		return l + r, v.validateNode(je.Quals)
	}

	if node.GetRangeSubselect() != nil {
		return 0, fmt.Errorf("subqueries in FROM are not allowed")
	}
	// 表函数 (read_csv、read_text 等) 可以读取任意文件
	if node.GetRangeFunction() != nil {
		return 0, fmt.Errorf("table functions are not allowed")
	}
	return 0, fmt.Errorf("unsupported FROM item")
}

// validateNode 递归验证表达式节点
func (v *Validator) validateNode(node *pg_query.Node) error {
	if node == nil {
		return nil
	}

	if node.GetSubLink() != nil {
		return fmt.Errorf("subqueries are not allowed")
	}
	if fc := node.GetFuncCall(); fc != nil {
		return v.validateFuncCall(fc)
	}

	var children []*pg_query.Node
	switch {
	case node.GetResTarget() != nil:
		children = append(children, node.GetResTarget().Val)
	case node.GetAExpr() != nil:
		children = append(children, node.GetAExpr().Lexpr, node.GetAExpr().Rexpr)
	case node.GetBoolExpr() != nil:
		children = append(children, node.GetBoolExpr().Args...)
	case node.GetTypeCast() != nil:
		children = append(children, node.GetTypeCast().Arg)
	case node.GetNullTest() != nil:
		children = append(children, node.GetNullTest().Arg)
	case node.GetSortBy() != nil:
		children = append(children, node.GetSortBy().Node)
	case node.GetAIndirection() != nil:
		children = append(children, node.GetAIndirection().Arg)
	case node.GetCoalesceExpr() != nil:
		children = append(children, node.GetCoalesceExpr().Args...)
	case node.GetCaseExpr() != nil:
		ce := node.GetCaseExpr()
		children = append(children, ce.Arg, ce.Defresult)
		children = append(children, ce.Args...)
	case node.GetCaseWhen() != nil:
		children = append(children, node.GetCaseWhen().Expr, node.GetCaseWhen().Result)
	case node.GetList() != nil:
		children = append(children, node.GetList().Items...)
	}

	for _, child := range children {
		if err := v.validateNode(child); err != nil {
			return err
		}
	}
	return nil
}

// validateFuncCall 验证函数调用
func (v *Validator) validateFuncCall(fc *pg_query.FuncCall) error {
	funcName := ""
	for _, namePart := range fc.Funcname {
		if s := namePart.GetString_(); s != nil {
			funcName = strings.ToLower(s.Sval)
		}
	}

	// schema 限定的函数调用
	if len(fc.Funcname) > 1 {
		if s := fc.Funcname[0].GetString_(); s != nil && !strings.EqualFold(s.Sval, "pg_catalog") {
			return fmt.Errorf("schema-qualified function calls are not allowed: %s", s.Sval)
		}
	}

	// 危险函数前缀
	for _, prefix := range []string{"pg_", "read_", "glob", "file_", "copy_"} {
		if strings.HasPrefix(funcName, prefix) {
			return fmt.Errorf("function not allowed: %s", funcName)
		}
	}
	if !v.allowedFunctions[funcName] {
		return fmt.Errorf("function not allowed: %s", funcName)
	}

	for _, arg := range fc.Args {
		if err := v.validateNode(arg); err != nil {
			return err
		}
	}
	if fc.AggFilter != nil {
		return v.validateNode(fc.AggFilter)
	}
	return nil
}
