package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Source is resolved analyzer input: the raw EXPLAIN JSON document plus,
// when the input was a query, the SQL text it came from.
type Source struct {
	SQL  string
	JSON []byte
}

// Resolve turns user input (a file path, "-" for stdin, or nothing for an
// interactive prompt) into an EXPLAIN JSON document. SQL inputs are passed
// to explain, which callers wire to a database; a nil explain rejects SQL
// input.
func Resolve(input string, explain func(sql string) ([]byte, error)) (*Source, error) {
	data, err := readInput(input)
	if err != nil {
		return nil, err
	}

	switch detectType(data, input) {
	case "json":
		return &Source{JSON: data}, nil
	case "sql":
		sql := strings.TrimSpace(string(data))
		if strings.HasPrefix(strings.ToUpper(sql), "EXPLAIN") {
			return nil, fmt.Errorf("input should not include EXPLAIN prefix - provide the raw query only")
		}
		if explain == nil {
			return nil, fmt.Errorf("SQL input requires a database connection")
		}
		doc, err := explain(sql)
		if err != nil {
			return nil, err
		}
		return &Source{SQL: sql, JSON: doc}, nil
	case "text":
		return nil, fmt.Errorf(`text format not supported - use JSON format:

EXPLAIN (ANALYZE, VERBOSE, BUFFERS, FORMAT JSON) <your query>

Then provide the complete JSON output.`)
	default:
		return nil, fmt.Errorf("unable to detect input type: expected JSON plan, SQL query, or .json/.sql file")
	}
}

// ReadSQL reads input the same way Resolve does but requires it to be a
// SQL statement, returning the trimmed text without running EXPLAIN.
func ReadSQL(input string) (string, error) {
	data, err := readInput(input)
	if err != nil {
		return "", err
	}
	if detectType(data, input) != "sql" {
		return "", fmt.Errorf("expected a SQL statement, not a plan document")
	}
	sql := strings.TrimSpace(string(data))
	if strings.HasPrefix(strings.ToUpper(sql), "EXPLAIN") {
		return "", fmt.Errorf("input should not include EXPLAIN prefix - provide the raw query only")
	}
	return sql, nil
}

func readInput(input string) ([]byte, error) {
	switch input {
	case "":
		return readInteractive()
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		return os.ReadFile(input)
	}
}

func readInteractive() ([]byte, error) {
	fmt.Print("Paste EXPLAIN (ANALYZE, VERBOSE, BUFFERS, FORMAT JSON) output or SQL query")
	if runtime.GOOS == "windows" {
		fmt.Print(" (Ctrl+Z, Enter to submit)\n")
	} else {
		fmt.Print(" (Ctrl+D to submit)\n")
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(data))

	if (strings.HasPrefix(trimmed, "[") ||
		strings.HasPrefix(trimmed, "{")) &&
		!json.Valid(data) {
		return nil, fmt.Errorf("input appears truncated; for large inputs use: pglens analyze <file>")
	}

	return data, nil
}

func detectType(data []byte, filename string) string {
	if strings.HasSuffix(filename, ".json") {
		return "json"
	}
	if strings.HasSuffix(filename, ".sql") {
		return "sql"
	}
	if strings.HasSuffix(filename, ".txt") {
		return "text"
	}

	trimmed := strings.TrimSpace(string(data))

	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		return "json"
	}

	if strings.Contains(trimmed, "(cost=") {
		return "text"
	}

	upper := strings.ToUpper(trimmed)
	for _, prefix := range []string{"SELECT", "WITH", "INSERT", "UPDATE", "DELETE", "EXPLAIN"} {
		if strings.HasPrefix(upper, prefix) {
			return "sql"
		}
	}

	return "unknown"
}
