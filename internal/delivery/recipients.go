package delivery

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoRecipients means there is nobody to deliver to: the list is missing or empty.
var ErrNoRecipients = errors.New("delivery: no recipients")

// LoadRecipients reads a newline-delimited recipient file.
func LoadRecipients(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNoRecipients, path)
		}
		return nil, fmt.Errorf("open recipients %s: %w", path, err)
	}
	defer f.Close()

	list, err := ParseRecipients(f)
	if err != nil {
		return nil, fmt.Errorf("read recipients %s: %w", path, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoRecipients, path)
	}
	return list, nil
}

// ParseRecipients trims every line, skips blanks and # comments and drops
// case-insensitive duplicates while keeping the first spelling and order.
func ParseRecipients(r io.Reader) ([]string, error) {
	var (
		out  []string
		seen = map[string]struct{}{}
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key := strings.ToLower(line)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
