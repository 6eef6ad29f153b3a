// miniql is a command-line driver for the embedded SQL engine: it opens a
// database file and runs statements from stdin (or a -exec flag) against
// it, one at a time, printing SELECT/EXPLAIN results to stdout.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nainya/miniql"
	"github.com/nainya/miniql/internal/logger"
	"github.com/nainya/miniql/sql/exec"
)

var (
	dbPath  = flag.String("db", "miniql.db", "Database file path")
	execSQL = flag.String("exec", "", "Run a single statement and exit")
	logLvl  = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	pretty  = flag.Bool("pretty-log", true, "Pretty-print logs for a terminal")
)

func main() {
	flag.Parse()

	logger.InitGlobal(logger.Config{Level: *logLvl, Pretty: *pretty})
	log := logger.Global()

	log.Info("opening database").Str("path", *dbPath).Send()

	db, err := miniql.Open(miniql.Config{DataPath: *dbPath})
	if err != nil {
		log.Fatal("failed to open database").Err(err).Send()
	}
	defer db.Close()

	if *execSQL != "" {
		runStatement(db, *execSQL)
		return
	}

	repl(db)
}

func repl(db *miniql.DB) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Fprint(os.Stderr, "miniql> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(os.Stderr, "miniql> ")
			continue
		}
		if line == ".exit" || line == ".quit" {
			return
		}
		runStatement(db, line)
		fmt.Fprint(os.Stderr, "miniql> ")
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		fmt.Fprintln(os.Stderr, "read error:", err)
	}
}

func runStatement(db *miniql.DB, sql string) {
	res, err := db.Execute(sql)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return
	}
	if res == nil {
		return
	}
	if res.Explain != "" {
		fmt.Println(res.Explain)
		return
	}
	printRows(res)
}

func printRows(res *exec.Result) {
	if len(res.Columns) == 0 {
		return
	}
	fmt.Println(strings.Join(res.Columns, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
}
