package worktree

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
)

// LineSpan is a run of consecutive lines, 1-based.
type LineSpan struct {
	Start int `json:"start"`
	Count int `json:"count"`
}

// Hunk is one @@ section of a unified diff.
type Hunk struct {
	File     string     `json:"file"`
	OldFile  string     `json:"old_file,omitempty"`
	OldStart int        `json:"old_start"`
	OldLines int        `json:"old_lines"`
	NewStart int        `json:"new_start"`
	NewLines int        `json:"new_lines"`
	Section  string     `json:"section,omitempty"`
	Added    []LineSpan `json:"added,omitempty"`
	Removed  []LineSpan `json:"removed,omitempty"`
	Lines    []string   `json:"lines,omitempty"`
	Binary   bool       `json:"binary,omitempty"`
}

// ParseHunks lazily parses a unified diff. Parsing stops as soon as the
// consumer stops iterating.
func ParseHunks(r io.Reader) iter.Seq2[Hunk, error] {
	return func(yield func(Hunk, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
		var p diffParser
		for sc.Scan() {
			h, err := p.feed(sc.Text())
			if err != nil {
				yield(Hunk{}, err)
				return
			}
			if h != nil && !yield(*h, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(Hunk{}, fmt.Errorf("read diff: %w", err))
			return
		}
		if h := p.flush(); h != nil {
			yield(*h, nil)
		}
	}
}

type diffParser struct {
	oldFile string
	newFile string
	cur     *Hunk
	oldLine int
	newLine int
}

// feed consumes one line and returns a hunk when the line completes one.
func (p *diffParser) feed(line string) (*Hunk, error) {
	switch {
	case strings.HasPrefix(line, "diff --git "):
		done := p.flush()
		p.oldFile, p.newFile = parseGitHeader(line)
		return done, nil
	case p.cur == nil && strings.HasPrefix(line, "--- "):
		p.oldFile = stripPrefix(strings.TrimPrefix(line, "--- "), "a/")
		return nil, nil
	case p.cur == nil && strings.HasPrefix(line, "+++ "):
		p.newFile = stripPrefix(strings.TrimPrefix(line, "+++ "), "b/")
		return nil, nil
	case p.cur == nil && strings.HasPrefix(line, "Binary files "):
		return &Hunk{File: p.file(), OldFile: p.renamedFrom(), Binary: true}, nil
	case strings.HasPrefix(line, "@@"):
		done := p.flush()
		h, err := parseHunkHeader(line)
		if err != nil {
			return nil, err
		}
		h.File = p.file()
		h.OldFile = p.renamedFrom()
		p.cur = h
		p.oldLine, p.newLine = h.OldStart, h.NewStart
		return done, nil
	}

	if p.cur == nil {
		return nil, nil
	}
	if len(line) == 0 {
		// Some tools strip the leading space of empty context lines.
		line = " "
	}
	switch line[0] {
	case ' ':
		p.oldLine++
		p.newLine++
	case '-':
		p.cur.Removed = extend(p.cur.Removed, p.oldLine)
		p.oldLine++
	case '+':
		p.cur.Added = extend(p.cur.Added, p.newLine)
		p.newLine++
	case '\\':
		// "\ No newline at end of file"
	default:
		done := p.flush()
		return done, nil
	}
	p.cur.Lines = append(p.cur.Lines, line)
	return nil, nil
}

func (p *diffParser) flush() *Hunk {
	h := p.cur
	p.cur = nil
	return h
}

func (p *diffParser) file() string {
	if p.newFile == "" || p.newFile == "/dev/null" {
		return p.oldFile
	}
	return p.newFile
}

func (p *diffParser) renamedFrom() string {
	if p.oldFile != "" && p.oldFile != "/dev/null" && p.oldFile != p.file() {
		return p.oldFile
	}
	return ""
}

func extend(spans []LineSpan, line int) []LineSpan {
	if n := len(spans); n > 0 && spans[n-1].Start+spans[n-1].Count == line {
		spans[n-1].Count++
		return spans
	}
	return append(spans, LineSpan{Start: line, Count: 1})
}

func parseGitHeader(line string) (string, string) {
	rest := strings.TrimPrefix(line, "diff --git ")
	if i := strings.Index(rest, " b/"); i >= 0 {
		return stripPrefix(rest[:i], "a/"), rest[i+3:]
	}
	return rest, rest
}

func stripPrefix(s, prefix string) string {
	if i := strings.IndexByte(s, '\t'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimPrefix(s, prefix)
}

// parseHunkHeader parses "@@ -a,b +c,d @@ section".
func parseHunkHeader(line string) (*Hunk, error) {
	fields := strings.SplitN(line, "@@", 3)
	if len(fields) < 3 {
		return nil, fmt.Errorf("malformed hunk header %q", line)
	}
	ranges := strings.Fields(fields[1])
	if len(ranges) != 2 || ranges[0][0] != '-' || ranges[1][0] != '+' {
		return nil, fmt.Errorf("malformed hunk header %q", line)
	}
	oldStart, oldLines, err := parseRange(ranges[0][1:])
	if err != nil {
		return nil, fmt.Errorf("hunk header %q: %w", line, err)
	}
	newStart, newLines, err := parseRange(ranges[1][1:])
	if err != nil {
		return nil, fmt.Errorf("hunk header %q: %w", line, err)
	}
	return &Hunk{
		OldStart: oldStart,
		OldLines: oldLines,
		NewStart: newStart,
		NewLines: newLines,
		Section:  strings.TrimSpace(fields[2]),
	}, nil
}

func parseRange(s string) (int, int, error) {
	start, count, found := strings.Cut(s, ",")
	a, err := strconv.Atoi(start)
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return a, 1, nil
	}
	b, err := strconv.Atoi(count)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
