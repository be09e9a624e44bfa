// Package yamlutil splits and joins multi-document YAML streams.
package yamlutil

import (
	"bufio"
	"bytes"
	"strings"
)

// Document is one non-empty document of a YAML stream.
type Document struct {
	// Line is the 1-based line of the stream the document starts on.
	Line int
	Data []byte
}

// SplitDocuments splits a multi-document YAML byte slice into individual
// documents, filtering out empty and comment-only ones. A separator is a
// line holding only "---", optionally followed by whitespace or a comment.
func SplitDocuments(data []byte) []Document {
	var (
		docs    []Document
		current bytes.Buffer
		start   = 1
		line    = 0
	)

	flush := func() {
		if hasContent(current.Bytes()) {
			docs = append(docs, Document{Line: start, Data: bytes.Clone(current.Bytes())})
		}

		current.Reset()
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)

	for sc.Scan() {
		line++
		text := sc.Text()

		if isSeparator(text) {
			flush()
			start = line + 1

			continue
		}

		current.WriteString(text)
		current.WriteByte('\n')
	}

	flush()

	return docs
}

// JoinDocuments joins documents into one stream, each preceded by "---".
func JoinDocuments(docs [][]byte) []byte {
	var buf bytes.Buffer

	for _, d := range docs {
		buf.WriteString("---\n")
		buf.Write(d)

		if len(d) > 0 && d[len(d)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}

	return buf.Bytes()
}

func isSeparator(line string) bool {
	rest, ok := strings.CutPrefix(line, "---")
	if !ok {
		return false
	}

	rest = strings.TrimSpace(rest)

	return rest == "" || strings.HasPrefix(rest, "#")
}

func hasContent(doc []byte) bool {
	for _, l := range strings.Split(string(doc), "\n") {
		l = strings.TrimSpace(l)
		if l != "" && !strings.HasPrefix(l, "#") {
			return true
		}
	}

	return false
}
