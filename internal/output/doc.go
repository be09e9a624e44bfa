// Package output encodes generated templates, writes them to their
// destination, and lints template documents.
//
//   - Encoding (encode.go): YAML with a fixed key order via gopkg.in/yaml.v3,
//     and indented JSON.
//
//   - Formats (registry.go): named encoders with their file extension.
//
//   - Writers (writer.go): one document per template, either streamed to
//     stdout or written as <name><ext> into a directory.
//
//   - Lint (lint.go): structural checks of scaffolder Template documents.
package output
