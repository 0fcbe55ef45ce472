// Package database provides database tools for AI agents.
// These tools enable agents to query and manage MySQL, PostgreSQL, and Redis
// databases on the user's behalf.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	toolutils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/cadenza-chat/cadenza/pkg/tools"
)

func init() {
	tools.Register(tools.ToolDefinition{
		ID:          "mysql_query",
		Name:        "MySQL Query",
		Description: "Execute a read-only SQL query on a MySQL database",
		Category:    tools.CategoryDatabase,
		Dangerous:   false,
	}, NewMySQLQueryTool)

	tools.Register(tools.ToolDefinition{
		ID:          "mysql_execute",
		Name:        "MySQL Execute",
		Description: "Execute a SQL statement (INSERT/UPDATE/DELETE) on a MySQL database",
		Category:    tools.CategoryDatabase,
		Dangerous:   true,
	}, NewMySQLExecuteTool)

	tools.Register(tools.ToolDefinition{
		ID:          "postgres_query",
		Name:        "PostgreSQL Query",
		Description: "Execute a read-only SQL query on a PostgreSQL database",
		Category:    tools.CategoryDatabase,
		Dangerous:   false,
	}, NewPostgresQueryTool)

	tools.Register(tools.ToolDefinition{
		ID:          "postgres_execute",
		Name:        "PostgreSQL Execute",
		Description: "Execute a SQL statement (INSERT/UPDATE/DELETE) on a PostgreSQL database",
		Category:    tools.CategoryDatabase,
		Dangerous:   true,
	}, NewPostgresExecuteTool)
}

// SQLConnInput carries connection parameters shared by every SQL tool.
type SQLConnInput struct {
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	SSLMode  string `json:"ssl_mode,omitempty"` // postgres only
}

type sqlQueryInput struct {
	SQLConnInput
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type sqlExecuteInput struct {
	SQLConnInput
	Statement string `json:"statement"`
}

func connParams(driver string) map[string]*schema.ParameterInfo {
	params := map[string]*schema.ParameterInfo{
		"host":     {Type: schema.String, Required: true, Desc: "Database server host"},
		"port":     {Type: schema.Integer, Required: false, Desc: "Database server port"},
		"database": {Type: schema.String, Required: true, Desc: "Database name"},
		"username": {Type: schema.String, Required: true, Desc: "Database username"},
		"password": {Type: schema.String, Required: false, Desc: "Database password"},
	}
	if driver == "postgres" {
		params["ssl_mode"] = &schema.ParameterInfo{Type: schema.String, Required: false, Desc: "SSL mode (disable, require, verify-ca, verify-full)"}
	}
	return params
}

func openSQL(driver string, in SQLConnInput) (*sql.DB, error) {
	port := in.Port
	var dsn string
	switch driver {
	case "mysql":
		if port <= 0 {
			port = 3306
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=10s",
			in.Username, in.Password, in.Host, port, in.Database)
	case "postgres":
		if port <= 0 {
			port = 5432
		}
		sslMode := in.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=10",
			in.Host, port, in.Username, in.Password, in.Database, sslMode)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(30 * time.Second)
	db.SetMaxOpenConns(1)
	return db, nil
}

// scanRows converts a result set into column names and row maps.
func scanRows(rows *sql.Rows) ([]string, []map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, nil, err
		}
		row := make(map[string]interface{})
		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = val
			}
		}
		results = append(results, row)
	}
	return columns, results, rows.Err()
}

func isReadOnlyQuery(query string) bool {
	queryUpper := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "SHOW", "DESCRIBE", "EXPLAIN"} {
		if strings.HasPrefix(queryUpper, prefix) {
			return true
		}
	}
	return false
}

func runQuery(ctx context.Context, driver string, in *sqlQueryInput) (string, error) {
	if !isReadOnlyQuery(in.Query) {
		return "Error: only SELECT, SHOW, DESCRIBE, and EXPLAIN queries are allowed", nil
	}

	limit := in.Limit
	if limit <= 0 {
		limit = 100
	}

	db, err := openSQL(driver, in.SQLConnInput)
	if err != nil {
		return fmt.Sprintf("Error: failed to connect: %v", err), nil
	}
	defer db.Close()

	query := in.Query
	if !strings.Contains(strings.ToUpper(query), "LIMIT") {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Sprintf("Error: query failed: %v", err), nil
	}
	defer rows.Close()

	columns, results, err := scanRows(rows)
	if err != nil {
		return fmt.Sprintf("Error: failed to read rows: %v", err), nil
	}

	output := map[string]interface{}{
		"database": in.Database,
		"query":    in.Query,
		"columns":  columns,
		"rows":     len(results),
		"data":     results,
	}
	data, _ := json.MarshalIndent(output, "", "  ")
	return string(data), nil
}

func runExecute(ctx context.Context, driver string, in *sqlExecuteInput) (string, error) {
	db, err := openSQL(driver, in.SQLConnInput)
	if err != nil {
		return fmt.Sprintf("Error: failed to connect: %v", err), nil
	}
	defer db.Close()

	result, err := db.ExecContext(ctx, in.Statement)
	if err != nil {
		return fmt.Sprintf("Error: statement failed: %v", err), nil
	}

	rowsAffected, _ := result.RowsAffected()
	output := map[string]interface{}{
		"database":      in.Database,
		"statement":     in.Statement,
		"rows_affected": rowsAffected,
	}
	if driver == "mysql" {
		lastInsertId, _ := result.LastInsertId()
		output["last_insert_id"] = lastInsertId
	}
	data, _ := json.MarshalIndent(output, "", "  ")
	return string(data), nil
}

func queryParams(driver string) map[string]*schema.ParameterInfo {
	params := connParams(driver)
	params["query"] = &schema.ParameterInfo{Type: schema.String, Required: true, Desc: "SQL SELECT query to execute"}
	params["limit"] = &schema.ParameterInfo{Type: schema.Integer, Required: false, Desc: "Maximum rows to return (default: 100)"}
	return params
}

func executeParams(driver string) map[string]*schema.ParameterInfo {
	params := connParams(driver)
	params["statement"] = &schema.ParameterInfo{Type: schema.String, Required: true, Desc: "SQL statement to execute"}
	return params
}

func NewMySQLQueryTool(tc *tools.ToolContext) tool.InvokableTool {
	return toolutils.NewTool(&schema.ToolInfo{
		Name:        "mysql_query",
		Desc:        "Execute a read-only SQL query on a MySQL database. Returns results as JSON. Only SELECT queries are allowed.",
		ParamsOneOf: schema.NewParamsOneOfByParams(queryParams("mysql")),
	}, func(ctx context.Context, input *sqlQueryInput) (string, error) {
		return runQuery(ctx, "mysql", input)
	})
}

func NewMySQLExecuteTool(tc *tools.ToolContext) tool.InvokableTool {
	return toolutils.NewTool(&schema.ToolInfo{
		Name:        "mysql_execute",
		Desc:        "Execute a SQL statement (INSERT/UPDATE/DELETE) on a MySQL database. Use with caution.",
		ParamsOneOf: schema.NewParamsOneOfByParams(executeParams("mysql")),
	}, func(ctx context.Context, input *sqlExecuteInput) (string, error) {
		return runExecute(ctx, "mysql", input)
	})
}

func NewPostgresQueryTool(tc *tools.ToolContext) tool.InvokableTool {
	return toolutils.NewTool(&schema.ToolInfo{
		Name:        "postgres_query",
		Desc:        "Execute a read-only SQL query on a PostgreSQL database. Returns results as JSON. Only SELECT queries are allowed.",
		ParamsOneOf: schema.NewParamsOneOfByParams(queryParams("postgres")),
	}, func(ctx context.Context, input *sqlQueryInput) (string, error) {
		return runQuery(ctx, "postgres", input)
	})
}

func NewPostgresExecuteTool(tc *tools.ToolContext) tool.InvokableTool {
	return toolutils.NewTool(&schema.ToolInfo{
		Name:        "postgres_execute",
		Desc:        "Execute a SQL statement (INSERT/UPDATE/DELETE) on a PostgreSQL database. Use with caution.",
		ParamsOneOf: schema.NewParamsOneOfByParams(executeParams("postgres")),
	}, func(ctx context.Context, input *sqlExecuteInput) (string, error) {
		return runExecute(ctx, "postgres", input)
	})
}
