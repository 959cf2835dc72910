// Package output renders commits, object ids and resolved objects for the CLI.
package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format selects how records are rendered.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ErrUnknownFormat indicates a format name other than text or json.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat validates a --format flag value. An empty value means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q (want text or json)", ErrUnknownFormat, s)
	}
}

// Writer writes records to the configured output destination, one per line
// in JSON mode. By default, it writes text to stdout.
type Writer struct {
	out    io.Writer
	format Format
}

// NewWriter creates a new Writer that writes text to stdout.
func NewWriter() *Writer {
	return &Writer{out: os.Stdout, format: FormatText}
}

// NewWriterWithOutput creates a new Writer with a custom output destination.
func NewWriterWithOutput(out io.Writer, format Format) *Writer {
	if format == "" {
		format = FormatText
	}
	return &Writer{out: out, format: format}
}

type signatureRecord struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type commitRecord struct {
	Type      string          `json:"type"`
	Oid       domain.Oid      `json:"oid"`
	Summary   string          `json:"summary"`
	Message   string          `json:"message"`
	Date      string          `json:"date"`
	Author    signatureRecord `json:"author"`
	Committer signatureRecord `json:"committer"`
	Parents   []domain.Oid    `json:"parents"`
	Tree      domain.Oid      `json:"tree"`
}

type entryRecord struct {
	Sha  domain.Oid `json:"sha"`
	Path string     `json:"path"`
	Mode string     `json:"mode"`
}

type treeRecord struct {
	Type    string        `json:"type"`
	Oid     domain.Oid    `json:"oid"`
	Entries []entryRecord `json:"entries"`
}

// WriteCommit writes one commit. Text mode prints "<oid> <summary>".
func (w *Writer) WriteCommit(c *domain.Commit) error {
	if w.format == FormatJSON {
		return w.encode(newCommitRecord(c))
	}
	_, err := fmt.Fprintf(w.out, "%s %s\n", c.Oid, c.Summary())
	return err
}

// WriteOid writes a bare object id.
func (w *Writer) WriteOid(oid domain.Oid) error {
	if w.format == FormatJSON {
		return w.encode(map[string]domain.Oid{"oid": oid})
	}
	_, err := fmt.Fprintln(w.out, oid)
	return err
}

// WriteObject writes a commit with its full message, or a tree listing in
// ls-tree layout.
func (w *Writer) WriteObject(obj domain.Object) error {
	switch o := obj.(type) {
	case *domain.Commit:
		if w.format == FormatJSON {
			return w.encode(newCommitRecord(o))
		}
		return w.writeCommitText(o)
	case *domain.Tree:
		if w.format == FormatJSON {
			return w.encode(newTreeRecord(o))
		}
		return w.writeTreeText(o)
	default:
		return &domain.UnsupportedObjectKindError{Oid: obj.ID(), Kind: obj.Kind()}
	}
}

func (w *Writer) encode(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')
	_, err = w.out.Write(data)
	return err
}

func (w *Writer) writeCommitText(c *domain.Commit) error {
	var b strings.Builder
	fmt.Fprintf(&b, "commit %s\n", c.Oid)
	fmt.Fprintf(&b, "tree %s\n", c.TreeOid)
	for _, p := range c.ParentOids {
		fmt.Fprintf(&b, "parent %s\n", p)
	}
	fmt.Fprintf(&b, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
	fmt.Fprintf(&b, "Date:   %s\n\n", c.Date())
	for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
		fmt.Fprintf(&b, "    %s\n", line)
	}
	_, err := io.WriteString(w.out, b.String())
	return err
}

func (w *Writer) writeTreeText(t *domain.Tree) error {
	var b strings.Builder
	for _, e := range t.Entries {
		mode, kind := e.Mode, "blob"
		switch mode {
		case "40000":
			kind = "tree"
		case "160000":
			kind = "commit"
		}
		if len(mode) < 6 {
			mode = strings.Repeat("0", 6-len(mode)) + mode
		}
		fmt.Fprintf(&b, "%s %s %s\t%s\n", mode, kind, e.Oid, e.Path)
	}
	_, err := io.WriteString(w.out, b.String())
	return err
}

func newCommitRecord(c *domain.Commit) commitRecord {
	parents := c.ParentOids
	if parents == nil {
		parents = []domain.Oid{}
	}
	return commitRecord{
		Type:      domain.KindCommit.String(),
		Oid:       c.Oid,
		Summary:   c.Summary(),
		Message:   c.Message,
		Date:      c.Date(),
		Author:    signatureRecord{Name: c.Author.Name, Email: c.Author.Email},
		Committer: signatureRecord{Name: c.Committer.Name, Email: c.Committer.Email},
		Parents:   parents,
		Tree:      c.TreeOid,
	}
}

func newTreeRecord(t *domain.Tree) treeRecord {
	entries := make([]entryRecord, 0, len(t.Entries))
	for _, e := range t.Entries {
		entries = append(entries, entryRecord{Sha: e.Oid, Path: e.Path, Mode: e.Mode})
	}
	return treeRecord{Type: domain.KindTree.String(), Oid: t.Oid, Entries: entries}
}
