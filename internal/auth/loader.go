package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadTokenFile loads the operator-provided credential list: one token per
// line, surrounding whitespace trimmed, blank lines skipped. A missing file
// is an error; the caller treats it as fatal at startup.
func ReadTokenFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		token := strings.TrimSpace(scanner.Text())
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	return tokens, nil
}
