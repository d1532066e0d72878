package braidproto

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// separator ends every update in a subscription stream
const separator = "\r\n\r\n\r\n\r\n\r\n"

// WriteUpdate writes u in the subscription stream format. Updates with
// patches list them after a Patches header; others carry Body.
func WriteUpdate(w io.Writer, u Update) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Version: %s\r\n", strings.Join(u.Version, ", "))
	fmt.Fprintf(bw, "Parents: %s\r\n", strings.Join(u.Parents, ", "))

	if len(u.Patches) > 0 {
		fmt.Fprintf(bw, "Patches: %d\r\n\r\n", len(u.Patches))
		for i, p := range u.Patches {
			if i > 0 {
				bw.WriteString("\r\n\r\n")
			}
			fmt.Fprintf(bw, "Content-Length: %d\r\n", len(p.Content))
			fmt.Fprintf(bw, "Content-Range: %s %s\r\n", p.Unit, p.Range)
			if p.OldPosition != "" {
				fmt.Fprintf(bw, "Old-Position: %s\r\n", p.OldPosition)
			}
			if p.BeforeKey != "" {
				fmt.Fprintf(bw, "Before-Key: %s\r\n", p.BeforeKey)
			}
			bw.WriteString("\r\n")
			bw.WriteString(p.Content)
		}
	} else {
		fmt.Fprintf(bw, "Content-Length: %d\r\n\r\n", len(u.Body))
		bw.WriteString(u.Body)
	}

	bw.WriteString(separator)
	return bw.Flush()
}

// ReadUpdate reads the next update written by WriteUpdate
func ReadUpdate(r *bufio.Reader) (*Update, error) {
	headers, err := readHeaders(r)
	if err != nil {
		return nil, err
	}
	u := &Update{
		Version: splitList(headers["version"]),
		Parents: splitList(headers["parents"]),
	}

	count := headers["patches"]
	if count == "" {
		body, err := readBody(r, headers)
		if err != nil {
			return nil, err
		}
		u.Body = body
		return u, nil
	}

	n, err := strconv.Atoi(count)
	if err != nil {
		return nil, fmt.Errorf("invalid Patches header %q", count)
	}
	for i := 0; i < n; i++ {
		ph, err := readHeaders(r)
		if err != nil {
			return nil, err
		}
		content, err := readBody(r, ph)
		if err != nil {
			return nil, err
		}
		unit, rng, _ := strings.Cut(ph["content-range"], " ")
		u.Patches = append(u.Patches, Patch{
			Unit:        unit,
			Range:       rng,
			Content:     content,
			OldPosition: ph["old-position"],
			BeforeKey:   ph["before-key"],
		})
	}
	return u, nil
}

// readHeaders skips blank lines, then reads headers up to the next one
func readHeaders(r *bufio.Reader) (map[string]string, error) {
	headers := make(map[string]string)
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err != nil {
				if err == io.EOF && len(headers) > 0 {
					return headers, nil
				}
				return nil, err
			}
			if len(headers) > 0 {
				return headers, nil
			}
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
		if err != nil {
			return nil, err
		}
	}
}

func readBody(r *bufio.Reader, headers map[string]string) (string, error) {
	n, err := strconv.Atoi(headers["content-length"])
	if err != nil {
		return "", fmt.Errorf("invalid Content-Length %q", headers["content-length"])
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
