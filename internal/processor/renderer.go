package processor

import (
	"fmt"
	"strings"
)

// notSelectedRun is rendered for every mirror-field occurrence that does not
// correspond to the selected dropdown option.
const notSelectedRun = "__________"

// Render merges a template package with field values and produces a new,
// structurally valid package. Only text-bearing parts are rewritten; every
// other part passes through unchanged apart from newly injected signature
// images. Metadata is resolved fresh from the unmodified template bytes on
// every call, so template edits can never leak stale structure into a render.
//
// Resolution rules, applied in one pass over each part:
//   - {#name# label} collapses to the escaped literal label.
//   - {@name} renders the value of name for exactly the occurrence whose
//     per-name running counter equals the index of the selected option of the
//     bound dropdown; every other occurrence renders a fixed glyph run. The
//     counter is global across the whole document, not per part.
//   - {name} renders the escaped value of name (empty when absent), unless
//     name is a signature field, in which case the occurrence becomes an
//     inline image anchor fed from the submitted image bytes, or a blank 1x1
//     image when those are absent or malformed.
//
// Template problems are aggregated into a single *RenderError; a failed render
// returns no partial output.
func Render(template []byte, values FieldValues, signatureFields map[string]bool) ([]byte, error) {
	a, err := openArchive(template)
	if err != nil {
		return nil, err
	}
	meta := resolveMeta(a)

	// Selected option index per dropdown; -1 selects nothing, leaving every
	// mirror occurrence unselected.
	selected := make(map[string]int, len(meta.Options))
	for name, options := range meta.Options {
		selected[name] = -1
		if v, ok := values[name]; ok {
			for i, label := range options {
				if label == v.Text {
					selected[name] = i
					break
				}
			}
		}
	}

	var details []RenderDetail
	var images []injectedImage
	mirrorCount := make(map[string]int)
	imageCount := 0

	for _, partName := range a.textParts() {
		xml := string(a.parts[partName])
		var out strings.Builder
		out.Grow(len(xml))
		last := 0

		for _, s := range scanSpans(xml) {
			tok, ok, reason := parseToken(s.raw)
			if !ok {
				if reason != "" {
					details = append(details, RenderDetail{
						Explanation: fmt.Sprintf("placeholder %q: %s", s.raw, reason),
					})
				}
				continue
			}

			out.WriteString(xml[last:s.start])
			last = s.end

			switch tok.kind {
			case tokenOption:
				out.WriteString(escapeXML(tok.label))

			case tokenMirror:
				dropdown, bound := meta.Mirrors[tok.name]
				if !bound {
					details = append(details, RenderDetail{
						Field:       tok.name,
						Explanation: "mirror field is not preceded by any dropdown",
					})
					continue
				}
				occurrence := mirrorCount[tok.name]
				mirrorCount[tok.name]++
				if occurrence == selected[dropdown] {
					out.WriteString(escapeXML(values[tok.name].Text))
				} else {
					out.WriteString(notSelectedRun)
				}

			case tokenField:
				if signatureFields[tok.name] {
					imageCount++
					img := injectedImage{
						partName:  partName,
						relID:     fmt.Sprintf("rIdSig%d", imageCount),
						mediaPath: fmt.Sprintf("word/media/signature%d.png", imageCount),
						docPrID:   1000 + imageCount,
						data:      imageBytes(values[tok.name]),
					}
					images = append(images, img)
					out.WriteString(drawingXML(img, tok.name))
				} else {
					out.WriteString(escapeXML(values[tok.name].Text))
				}
			}
		}

		out.WriteString(xml[last:])
		a.put(partName, []byte(out.String()))
	}

	if len(details) > 0 {
		return nil, &RenderError{Details: details}
	}

	applyInjections(a, images)
	return a.bytes()
}

func imageBytes(v FieldValue) []byte {
	if v.Kind == ValueImage && len(v.Image) > 0 {
		return v.Image
	}
	return blankPNG
}
