package processor

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// archive is an in-memory view of a DOCX package. Part order is preserved from
// the source zip so that repacking keeps the package structurally identical
// apart from rewritten payloads.
type archive struct {
	order []string
	parts map[string][]byte
}

func openArchive(data []byte) (*archive, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx package: %w", err)
	}

	a := &archive{parts: make(map[string][]byte)}
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open part %s: %w", file.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read part %s: %w", file.Name, err)
		}
		a.order = append(a.order, file.Name)
		a.parts[file.Name] = content
	}

	return a, nil
}

// textParts returns the names of the text-bearing payload parts in package
// order. Placeholder scanning and rewriting only ever touch these.
func (a *archive) textParts() []string {
	var names []string
	for _, name := range a.order {
		if isTextPart(name) {
			names = append(names, name)
		}
	}
	return names
}

func isTextPart(name string) bool {
	if name == "word/document.xml" {
		return true
	}
	if !strings.HasSuffix(name, ".xml") {
		return false
	}
	return strings.HasPrefix(name, "word/header") || strings.HasPrefix(name, "word/footer")
}

func (a *archive) put(name string, content []byte) {
	if _, exists := a.parts[name]; !exists {
		a.order = append(a.order, name)
	}
	a.parts[name] = content
}

// bytes repacks the archive. File headers carry no timestamps so that two
// renders of the same inputs produce byte-identical packages.
func (a *archive) bytes() ([]byte, error) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)

	for _, name := range a.order {
		header := &zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		}
		part, err := writer.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("failed to create part %s: %w", name, err)
		}
		if _, err := part.Write(a.parts[name]); err != nil {
			return nil, fmt.Errorf("failed to write part %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize package: %w", err)
	}
	return buf.Bytes(), nil
}

// relsPartName maps a payload part to its relationships part, e.g.
// word/document.xml -> word/_rels/document.xml.rels.
func relsPartName(partName string) string {
	slash := strings.LastIndex(partName, "/")
	return partName[:slash+1] + "_rels/" + partName[slash+1:] + ".rels"
}
