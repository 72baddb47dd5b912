package processor

// Metadata is the resolved placeholder structure of one template package.
type Metadata struct {
	// Fields lists variable names in first-appearance order across all
	// text-bearing parts.
	Fields []string
	// Options maps a dropdown field name to its option labels, in the order
	// the option occurrences appear in the document.
	Options map[string][]string
	// Mirrors maps a mirror field name to the dropdown it follows.
	Mirrors map[string]string
}

// IsDropdown reports whether name accumulated at least one option.
func (m *Metadata) IsDropdown(name string) bool {
	_, ok := m.Options[name]
	return ok
}

// Resolve extracts placeholder metadata from raw package bytes. All text
// parts are scanned as one left-to-right pass in package order: the "last
// dropdown seen" state deliberately carries across part boundaries, because a
// mirror field binds to the dropdown most recently scanned before it, even
// when the two live in different parts.
func Resolve(data []byte) (*Metadata, error) {
	a, err := openArchive(data)
	if err != nil {
		return nil, err
	}
	return resolveMeta(a), nil
}

func resolveMeta(a *archive) *Metadata {
	meta := &Metadata{
		Options: make(map[string][]string),
		Mirrors: make(map[string]string),
	}
	seen := make(map[string]bool)
	lastDropdown := ""

	appendField := func(name string) {
		if !seen[name] {
			seen[name] = true
			meta.Fields = append(meta.Fields, name)
		}
	}

	for _, partName := range a.textParts() {
		xml := string(a.parts[partName])
		for _, s := range scanSpans(xml) {
			tok, ok, _ := parseToken(s.raw)
			if !ok {
				continue
			}
			switch tok.kind {
			case tokenOption:
				meta.Options[tok.name] = append(meta.Options[tok.name], tok.label)
				lastDropdown = tok.name
				appendField(tok.name)
			case tokenMirror:
				if lastDropdown != "" {
					if _, bound := meta.Mirrors[tok.name]; !bound {
						meta.Mirrors[tok.name] = lastDropdown
					}
				}
				appendField(tok.name)
			case tokenField:
				appendField(tok.name)
			}
		}
	}

	return meta
}
