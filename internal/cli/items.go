package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// collectItems gathers items from the items file (or stdin for "-") followed
// by the --item values. Blank lines and lines starting with # are skipped.
func collectItems(stdin io.Reader, itemsFile string, extra []string) ([]string, error) {
	items := make([]string, 0, len(extra))

	if itemsFile != "" {
		var r io.Reader
		if itemsFile == "-" {
			r = stdin
		} else {
			f, err := os.Open(itemsFile)
			if err != nil {
				return nil, fmt.Errorf("opening items file: %w", err)
			}
			defer f.Close()
			r = f
		}

		fromFile, err := readItems(r)
		if err != nil {
			return nil, fmt.Errorf("reading items: %w", err)
		}
		items = append(items, fromFile...)
	}

	for _, item := range extra {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items, nil
}

// maxItemLineSize bounds a single line of an items file.
const maxItemLineSize = 16 << 20

func readItems(r io.Reader) ([]string, error) {
	var items []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxItemLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, line)
	}
	return items, scanner.Err()
}
