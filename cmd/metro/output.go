package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
)

// Shared output helpers: every command renders either a table or JSON,
// and errors follow the same convention so scripts can rely on it.

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// failOutput reports an error in the selected format and returns an error
// so the command exits non-zero.
func failOutput(format string, err error) error {
	if format == "json" {
		payload, _ := json.Marshal(map[string]string{"status": "error", "message": err.Error()})
		fmt.Println(string(payload))
	} else {
		fmt.Fprintf(os.Stderr, "\x1b[31mError:\x1b[0m %v\n", err)
	}
	return err
}

func printTable(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	fmt.Fprintln(w, strings.Join(underlines(headers), "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}

func underlines(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = strings.Repeat("─", len([]rune(h)))
	}
	return out
}
