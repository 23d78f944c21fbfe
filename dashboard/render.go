package dashboard

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"dataplatform/config"
	"dataplatform/models"
	"dataplatform/storage"
)

const (
	ruleWidth = 54
	maxCell   = 32
)

func header(w io.Writer, title string) {
	sep := strings.Repeat("═", ruleWidth)
	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  %s\033[0m\n", title)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", strings.Repeat("─", ruleWidth))
}

// RenderConfig prints the resolved configuration.
func RenderConfig(w io.Writer, cfg *config.Config) {
	header(w, "CONFIGURAZIONE RILEVATA")
	fmt.Fprintf(w, "  Project ID  : \033[1m%s\033[0m\n", cfg.ProjectID)
	fmt.Fprintf(w, "  Backend URL : \033[1m%s\033[0m\n", cfg.BackendURL)
	fmt.Fprintf(w, "  Port        : \033[1m%d\033[0m\n", cfg.Port)
	fmt.Fprintf(w, "  Ambiente    : \033[1m%s\033[0m\n", strings.ToUpper(cfg.Environment()))
	fmt.Fprintln(w)

	section(w, "Progetto")
	fmt.Fprintf(w, "  Backend service   : %s\n", cfg.BackendService)
	fmt.Fprintf(w, "  Dashboard service : %s\n", cfg.DashboardService)
	fmt.Fprintf(w, "  Analytics table   : %s\n", cfg.AnalyticsTable())
	fmt.Fprintf(w, "  Credentials       : %s (%s)\n", cfg.CredentialsMode, cfg.CredentialsFile)
	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", strings.Repeat("═", ruleWidth))
}

// RenderIngestion prints the outcome of an upload.
func RenderIngestion(w io.Writer, source string, res *models.IngestionResult) {
	header(w, "INGESTIONE API")
	fmt.Fprintf(w, "  Sorgente : %s\n", source)
	fmt.Fprintf(w, "  Stato    : \033[1;32m%s\033[0m\n", res.Status)
	fmt.Fprintf(w, "  Righe    : \033[1m%d\033[0m\n\n", res.Rows)
}

// RenderError prints err with the kind of failure spelled out, so an operator
// can tell an unreachable backend from a slow one or a rejected request.
func RenderError(w io.Writer, err error) {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		fmt.Fprintf(w, "  \033[1;31mErrore HTTP %d\033[0m: %s\n", httpErr.Status, httpErr.Detail)
	case errors.Is(err, ErrTimeout):
		fmt.Fprintf(w, "  \033[1;31mTimeout\033[0m: %v\n", err)
	case errors.Is(err, ErrConnection):
		fmt.Fprintf(w, "  \033[1;31mErrore di connessione\033[0m: %v\n", err)
	default:
		fmt.Fprintf(w, "  \033[1;31mErrore\033[0m: %v\n", err)
	}
}

// RenderResult prints a query result as an aligned table.
func RenderResult(w io.Writer, res *models.QueryResult) {
	section(w, fmt.Sprintf("Risultato (%d righe)", len(res.Rows)))
	if len(res.Columns) == 0 {
		fmt.Fprintf(w, "  Nessuna colonna\n\n")
		return
	}

	widths := make([]int, len(res.Columns))
	cells := make([][]string, len(res.Rows))
	for i, c := range res.Columns {
		widths[i] = utf8.RuneCountInString(truncate(c, maxCell))
	}
	for r, row := range res.Rows {
		cells[r] = make([]string, len(res.Columns))
		for i := range res.Columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			s := truncate(storage.FormatCell(v), maxCell)
			if v == nil {
				s = "NULL"
			}
			cells[r][i] = s
			if n := utf8.RuneCountInString(s); n > widths[i] {
				widths[i] = n
			}
		}
	}

	fmt.Fprint(w, " ")
	for i, c := range res.Columns {
		fmt.Fprintf(w, " \033[1m%s\033[0m", pad(truncate(c, maxCell), widths[i]))
	}
	fmt.Fprintln(w)
	for _, row := range cells {
		fmt.Fprint(w, " ")
		for i, s := range row {
			fmt.Fprintf(w, " %s", pad(s, widths[i]))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
