// Package profile runs the interactive setup that writes the user's global
// minutes configuration at ~/.config/minutes/config.json.
package profile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fakeyudi/minutes/internal/config"
	"github.com/fakeyudi/minutes/internal/gemini"
)

// Answers is the outcome of the setup wizard. The API key is kept apart from
// the config because it lives in the data store, not the config file.
type Answers struct {
	Config config.Config
	APIKey string
}

// Exists reports whether a global config file is present on disk.
func Exists() bool {
	p, err := config.GlobalPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// RunSetup asks for each setting on out and reads answers from in. existing
// supplies the default for each prompt (edit mode).
func RunSetup(existing config.Config, in io.Reader, out io.Writer) (*Answers, error) {
	r := bufio.NewReader(in)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, err := r.ReadString('\n')
		if err != nil && !(err == io.EOF && line != "") {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	askInt := func(prompt string, defaultVal int) (int, error) {
		for {
			ans, err := ask(prompt, strconv.Itoa(defaultVal))
			if err != nil {
				return 0, err
			}
			n, err := strconv.Atoi(ans)
			if err == nil {
				return n, nil
			}
			fmt.Fprintf(out, "  %q is not a number\n", ans)
		}
	}

	cfg := existing
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  ┌─────────────────────────────────┐")
	fmt.Fprintln(out, "  │   minutes: first-time setup     │")
	fmt.Fprintln(out, "  └─────────────────────────────────┘")
	fmt.Fprintln(out)

	var err error

	fmt.Fprintf(out, "  Models: %s\n", strings.Join(models(), ", "))
	cfg.Model, err = ask("  Gemini model", cfg.Model)
	if err != nil {
		return nil, err
	}

	storage, err := ask("  Storage backend (file/sqlite)", cfg.Storage)
	if err != nil {
		return nil, err
	}
	if storage == "sqlite" {
		cfg.Storage = "sqlite"
	} else {
		cfg.Storage = "file"
	}

	cfg.HistoryMaxItems, err = askInt("  History size", cfg.HistoryMaxItems)
	if err != nil {
		return nil, err
	}

	cfg.HistoryRetentionDays, err = askInt("  Keep history for days (-1 forever)", cfg.HistoryRetentionDays)
	if err != nil {
		return nil, err
	}

	cfg.Locale, err = ask("  Recognition language", cfg.Locale)
	if err != nil {
		return nil, err
	}

	key, err := ask("  Gemini API key (empty to skip)", "")
	if err != nil {
		return nil, err
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	fmt.Fprintln(out)
	return &Answers{Config: cfg, APIKey: key}, nil
}

func models() []string {
	out := make([]string, 0, len(gemini.DefaultLimits))
	for m := range gemini.DefaultLimits {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
