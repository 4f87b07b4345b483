package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"sltk-monitor/internal/model"
)

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func promptRequired(label string) (string, error) {
	if !stdinIsTTY() {
		return "", fmt.Errorf("%s is required", label)
	}
	fmt.Fprintf(stdout, "%s: ", label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", fmt.Errorf("%s is required", label)
	}
	return value, nil
}

func stdinIsTTY() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func formatBytesIEC(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for q := n / unit; q >= unit; q /= unit {
		div *= unit
		exp++
	}
	value := float64(n) / float64(div)
	suffix := "KMGTPE"[exp]
	return strconv.FormatFloat(value, 'f', 1, 64) + " " + string(suffix) + "iB"
}

func printErrorRecords(w io.Writer, records []model.ErrorRecord) {
	for _, r := range records {
		fmt.Fprintf(w, "[%d] %s: %s\n", r.Sequence, defaultIfEmpty(r.Token, "-"), r.Headline())
		if r.MessageID != "" && r.MessageText != "" {
			fmt.Fprintf(w, "  message_id: %s\n", r.MessageID)
		}
		if r.MessageData != "" {
			fmt.Fprintf(w, "  data: %s\n", r.MessageData)
		}
		if r.Resolution.Issue != "" {
			fmt.Fprintf(w, "  issue: %s\n", r.Resolution.Issue)
		}
		if r.Resolution.Fix != "" {
			fmt.Fprintf(w, "  fix: %s\n", r.Resolution.Fix)
		}
		if cmd := r.Resolution.Command(); cmd != "" {
			fmt.Fprintf(w, "  sql: %s\n", cmd)
		}
	}
}
