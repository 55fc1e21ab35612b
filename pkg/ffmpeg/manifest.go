package ffmpeg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnsafePath indicates a path that cannot be represented in a concat manifest.
var ErrUnsafePath = errors.New("path cannot be written to concat manifest")

// QuoteManifestPath renders a path as a concat demuxer "file" directive.
// The path is wrapped in single quotes; embedded quotes are closed, escaped
// and reopened, so the directive always parses back to exactly path.
func QuoteManifestPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrUnsafePath)
	}
	if strings.ContainsAny(path, "\n\r\x00") {
		return "", fmt.Errorf("%w: %q contains a line break or NUL", ErrUnsafePath, path)
	}
	return "file '" + strings.ReplaceAll(path, "'", `'\''`) + "'", nil
}

// WriteManifest writes one file directive per path, preserving order.
func WriteManifest(w io.Writer, paths []string) error {
	buf := bufio.NewWriter(w)
	for _, path := range paths {
		line, err := QuoteManifestPath(path)
		if err != nil {
			return err
		}
		if _, err := buf.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return buf.Flush()
}

// ParseManifest reads the paths back out of a manifest written by WriteManifest.
func ParseManifest(r io.Reader) ([]string, error) {
	var paths []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rest, ok := strings.CutPrefix(line, "file ")
		if !ok {
			return nil, fmt.Errorf("unexpected manifest line %q", line)
		}
		path, err := unquote(strings.TrimSpace(rest))
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, scanner.Err()
}

func unquote(token string) (string, error) {
	var out strings.Builder
	inQuote := false
	for i := 0; i < len(token); i++ {
		ch := token[i]
		switch {
		case ch == '\'':
			inQuote = !inQuote
		case ch == '\\' && !inQuote:
			if i+1 >= len(token) {
				return "", fmt.Errorf("dangling escape in %q", token)
			}
			i++
			out.WriteByte(token[i])
		default:
			out.WriteByte(ch)
		}
	}
	if inQuote {
		return "", fmt.Errorf("unterminated quote in %q", token)
	}
	return out.String(), nil
}
