package processor

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngDataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(blankPNG)
}

func TestRenderReplacesEveryPlainField(t *testing.T) {
	pkg := buildDoc(t, para("Dear {name},")+para("your id is {tax_number} ({name})."))

	out, err := Render(pkg, FieldValues{
		"name":       TextValue("SENTINEL"),
		"tax_number": TextValue("SENTINEL"),
	}, nil)
	require.NoError(t, err)

	doc := string(readPart(t, out, "word/document.xml"))
	assert.NotContains(t, doc, "{name}")
	assert.NotContains(t, doc, "{tax_number}")
	assert.Equal(t, 3, strings.Count(doc, "SENTINEL"))
}

func TestRenderAbsentFieldBecomesEmpty(t *testing.T) {
	pkg := buildDoc(t, para("[{missing}]"))

	out, err := Render(pkg, FieldValues{}, nil)
	require.NoError(t, err)

	doc := string(readPart(t, out, "word/document.xml"))
	assert.Contains(t, doc, "[]")
	assert.NotContains(t, doc, "{missing}")
}

func TestRenderEscapesMarkupInValues(t *testing.T) {
	pkg := buildDoc(t, para("{company}"))

	out, err := Render(pkg, FieldValues{
		"company": TextValue(`Fischer & Söhne <GmbH> "quoted" 'single'`),
	}, nil)
	require.NoError(t, err)

	doc := string(readPart(t, out, "word/document.xml"))
	assert.Contains(t, doc, "Fischer &amp; Söhne &lt;GmbH&gt; &quot;quoted&quot; &apos;single&apos;")
	assert.NotContains(t, doc, "<GmbH>")
}

func TestRenderCollapsesDropdownMarkupToLabels(t *testing.T) {
	pkg := buildDoc(t, para("{#kind# Lease}")+para("{#kind# Sale & Purchase}"))

	out, err := Render(pkg, FieldValues{"kind": TextValue("Lease")}, nil)
	require.NoError(t, err)

	doc := string(readPart(t, out, "word/document.xml"))
	assert.Contains(t, doc, ">Lease<")
	assert.Contains(t, doc, "Sale &amp; Purchase")
	assert.NotContains(t, doc, "{#kind#")
}

func TestRenderMirrorExclusivity(t *testing.T) {
	body := para("{#kind# A}{#kind# B}{#kind# C}") +
		para("a: {@amount}") +
		para("b: {@amount}") +
		para("c: {@amount}")
	pkg := buildDoc(t, body)

	out, err := Render(pkg, FieldValues{
		"kind":   TextValue("B"),
		"amount": TextValue("1250.00"),
	}, nil)
	require.NoError(t, err)

	doc := string(readPart(t, out, "word/document.xml"))
	assert.Equal(t, 1, strings.Count(doc, "1250.00"))
	assert.Equal(t, 2, strings.Count(doc, notSelectedRun))
	assert.Contains(t, doc, "b: 1250.00")
}

func TestRenderMirrorCounterIsGlobalAcrossParts(t *testing.T) {
	// One mirror occurrence in the header, one in the body: the occurrence
	// counter spans both, so selecting the second option picks the body one.
	pkg := buildPackage(t,
		docxPart{name: "word/header1.xml", content: docXML(para("{#kind# A}{#kind# B}") + para("h: {@amount}"))},
		docxPart{name: "word/document.xml", content: docXML(para("d: {@amount}"))},
	)

	out, err := Render(pkg, FieldValues{
		"kind":   TextValue("B"),
		"amount": TextValue("77"),
	}, nil)
	require.NoError(t, err)

	header := string(readPart(t, out, "word/header1.xml"))
	doc := string(readPart(t, out, "word/document.xml"))
	assert.Contains(t, header, "h: "+notSelectedRun)
	assert.Contains(t, doc, "d: 77")
}

func TestRenderMirrorWithNoSelectionLeavesAllUnselected(t *testing.T) {
	pkg := buildDoc(t, para("{#kind# A}{#kind# B}") + para("{@amount}{@amount}"))

	out, err := Render(pkg, FieldValues{"amount": TextValue("9")}, nil)
	require.NoError(t, err)

	doc := string(readPart(t, out, "word/document.xml"))
	assert.Equal(t, 2, strings.Count(doc, notSelectedRun))
	assert.NotContains(t, doc, ">9<")
}

func TestRenderSignatureFieldInjectsImage(t *testing.T) {
	pkg := buildDoc(t, para("Signed: {sig}"))

	out, err := Render(pkg, FieldValues{
		"sig": ImageFromDataURL(pngDataURL()),
	}, map[string]bool{"sig": true})
	require.NoError(t, err)

	doc := string(readPart(t, out, "word/document.xml"))
	assert.Contains(t, doc, `r:embed="rIdSig1"`)
	assert.Contains(t, doc, `<wp:extent cx="720000" cy="360000"/>`)
	assert.NotContains(t, doc, "{sig}")

	media := readPart(t, out, "word/media/signature1.png")
	assert.Equal(t, blankPNG, media)

	rels := string(readPart(t, out, "word/_rels/document.xml.rels"))
	assert.Contains(t, rels, `Id="rIdSig1"`)
	assert.Contains(t, rels, `Target="media/signature1.png"`)

	types := string(readPart(t, out, "[Content_Types].xml"))
	assert.Contains(t, types, `Extension="png"`)
}

func TestRenderSignatureFallsBackToBlankImage(t *testing.T) {
	pkg := buildDoc(t, para("{sig}"))

	for name, value := range map[string]FieldValue{
		"absent":    {},
		"malformed": ImageFromDataURL("data:image/png;base64,@@@@"),
		"not a png": ImageFromDataURL("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("plain"))),
	} {
		values := FieldValues{}
		if name != "absent" {
			values["sig"] = value
		}
		out, err := Render(pkg, values, map[string]bool{"sig": true})
		require.NoError(t, err, name)
		assert.Equal(t, blankPNG, readPart(t, out, "word/media/signature1.png"), name)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	body := para("{#kind# A}{#kind# B}") + para("{@amount}") + para("{name} {sig}")
	pkg := buildDoc(t, body)
	values := FieldValues{
		"kind":   TextValue("A"),
		"amount": TextValue("10"),
		"name":   TextValue("Ana"),
		"sig":    ImageFromDataURL(pngDataURL()),
	}
	sig := map[string]bool{"sig": true}

	first, err := Render(pkg, values, sig)
	require.NoError(t, err)
	second, err := Render(pkg, values, sig)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRenderPassesUnrelatedPartsThroughUnchanged(t *testing.T) {
	styles := `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`
	pkg := buildPackage(t,
		docxPart{name: "word/document.xml", content: docXML(para("{a}"))},
		docxPart{name: "word/styles.xml", content: styles},
	)

	out, err := Render(pkg, FieldValues{"a": TextValue("x")}, nil)
	require.NoError(t, err)

	assert.Equal(t, []byte(styles), readPart(t, out, "word/styles.xml"))
}

func TestRenderAggregatesAuthoringErrors(t *testing.T) {
	body := para("{#broken_one}") + para("{@orphan}")
	pkg := buildDoc(t, body)

	_, err := Render(pkg, FieldValues{}, nil)
	require.Error(t, err)

	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	require.Len(t, renderErr.Details, 2)
	assert.Contains(t, err.Error(), "1)")
	assert.Contains(t, err.Error(), "2)")
	assert.Contains(t, err.Error(), "orphan")
}

func TestRenderSingleAuthoringErrorHasNoNumberPrefix(t *testing.T) {
	pkg := buildDoc(t, para("{@orphan}"))

	_, err := Render(pkg, FieldValues{}, nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "1)")
	assert.Contains(t, err.Error(), "orphan")
}
