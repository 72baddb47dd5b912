package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
)

// Rendered signature images are placed at a fixed 2cm x 1cm regardless of the
// source image's native resolution. OOXML measures in EMUs: 1 cm = 360000.
const (
	signatureWidthEMU  = 720000
	signatureHeightEMU = 360000
)

const imageRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

// blankPNG is the 1x1 transparent fallback substituted for absent or
// malformed signature values.
var blankPNG = func() []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		panic(fmt.Sprintf("failed to encode blank png: %v", err))
	}
	return buf.Bytes()
}()

// injectedImage tracks one signature image added to the package during a
// render pass.
type injectedImage struct {
	partName  string // text part whose rels must reference the image
	relID     string
	mediaPath string // zip part name under word/media
	docPrID   int
	data      []byte
}

// drawingXML builds the inline image anchor that replaces a signature
// placeholder. The placeholder sits inside a w:t, so the anchor closes the
// text element, emits the drawing as a sibling, and reopens the text element.
func drawingXML(img injectedImage, fieldName string) string {
	name := escapeXML(fieldName)
	return fmt.Sprintf(`</w:t><w:drawing>`+
		`<wp:inline distT="0" distB="0" distL="0" distR="0" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing">`+
		`<wp:extent cx="%d" cy="%d"/>`+
		`<wp:docPr id="%d" name="%s"/>`+
		`<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">`+
		`<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:nvPicPr><pic:cNvPr id="%d" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing><w:t xml:space="preserve">`,
		signatureWidthEMU, signatureHeightEMU,
		img.docPrID, name,
		img.docPrID, name,
		img.relID,
		signatureWidthEMU, signatureHeightEMU)
}

// applyInjections writes the media parts, relationship entries and content
// type default that the injected images need. New parts are appended in
// injection order, keeping repacking deterministic.
func applyInjections(a *archive, images []injectedImage) {
	if len(images) == 0 {
		return
	}

	byPart := make(map[string][]injectedImage)
	var partOrder []string
	for _, img := range images {
		a.put(img.mediaPath, img.data)
		if _, seen := byPart[img.partName]; !seen {
			partOrder = append(partOrder, img.partName)
		}
		byPart[img.partName] = append(byPart[img.partName], img)
	}

	for _, partName := range partOrder {
		relsName := relsPartName(partName)
		var entries strings.Builder
		for _, img := range byPart[partName] {
			// Relationship targets are resolved relative to the word/ folder.
			target := strings.TrimPrefix(img.mediaPath, "word/")
			fmt.Fprintf(&entries, `<Relationship Id="%s" Type="%s" Target="%s"/>`, img.relID, imageRelType, target)
		}

		if existing, ok := a.parts[relsName]; ok {
			content := strings.Replace(string(existing), "</Relationships>", entries.String()+"</Relationships>", 1)
			a.put(relsName, []byte(content))
		} else {
			content := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
				`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
				entries.String() + `</Relationships>`
			a.put(relsName, []byte(content))
		}
	}

	ensurePNGContentType(a)
}

func ensurePNGContentType(a *archive) {
	const contentTypesPart = "[Content_Types].xml"
	existing, ok := a.parts[contentTypesPart]
	if !ok {
		return
	}
	content := string(existing)
	if strings.Contains(content, `Extension="png"`) {
		return
	}
	content = strings.Replace(content, "</Types>",
		`<Default Extension="png" ContentType="image/png"/></Types>`, 1)
	a.put(contentTypesPart, []byte(content))
}
