package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hadijannat/titan-aas/model"
)

func TestParseAndValidateSortsKeysAndStripsWhitespace(t *testing.T) {
	raw := []byte(`{
		"idShort": "A1",
		"id": "urn:ex:aas:1",
		"assetInformation": { "globalAssetId": "urn:ex:asset:1", "assetKind": "Instance" }
	}`)

	doc, canonical, etag, err := ParseAndValidate(raw, model.KindShell)
	require.NoError(t, err)
	assert.Equal(t, `{"assetInformation":{"assetKind":"Instance","globalAssetId":"urn:ex:asset:1"},"id":"urn:ex:aas:1","idShort":"A1"}`, string(canonical))
	assert.Len(t, etag, 64)
	assert.Equal(t, model.KindShell, doc.Kind)
}

func TestParseAndValidateRejectsDuplicateKeys(t *testing.T) {
	raw := []byte(`{"id":"urn:ex:1","id":"urn:ex:2"}`)
	_, _, _, err := ParseAndValidate(raw, model.KindShell)
	require.Error(t, err)
}

func TestParseAndValidateRejectsMissingID(t *testing.T) {
	raw := []byte(`{"idShort":"A1"}`)
	_, _, _, err := ParseAndValidate(raw, model.KindShell)
	require.Error(t, err)
}

func TestParseAndValidatePreservesNumericText(t *testing.T) {
	raw := []byte(`{
		"id":"urn:ex:1",
		"kind":"Instance",
		"submodelElements":[{"modelType":"Property","idShort":"p","valueType":"xs:double","value":"1.100"}]
	}`)
	_, canonical, _, err := ParseAndValidate(raw, model.KindSubmodel)
	require.NoError(t, err)
	assert.Contains(t, string(canonical), `"value":"1.100"`)
}

func TestParseAndValidateRejectsUnknownField(t *testing.T) {
	raw := []byte(`{"id":"urn:ex:1","bogus":true}`)
	_, _, _, err := ParseAndValidate(raw, model.KindShell)
	require.Error(t, err)
}

func TestParseAndValidateRejectsInvalidAssetKind(t *testing.T) {
	raw := []byte(`{"id":"urn:ex:1","assetInformation":{"assetKind":"Bogus"}}`)
	_, _, _, err := ParseAndValidate(raw, model.KindShell)
	require.Error(t, err)
}

func TestParseAndValidateRejectsUnknownElementType(t *testing.T) {
	raw := []byte(`{
		"id":"urn:ex:1",
		"kind":"Instance",
		"submodelElements":[{"modelType":"BogusElement","idShort":"p"}]
	}`)
	_, _, _, err := ParseAndValidate(raw, model.KindSubmodel)
	require.Error(t, err)
}

func TestParseAndValidateRejectsMalformedValueTypeSyntax(t *testing.T) {
	raw := []byte(`{
		"id":"urn:ex:1",
		"kind":"Instance",
		"submodelElements":[{"modelType":"Property","idShort":"p","valueType":"xs:integer","value":"not-a-number"}]
	}`)
	_, _, _, err := ParseAndValidate(raw, model.KindSubmodel)
	require.Error(t, err)
}

func TestParseAndValidateOmitsNullFields(t *testing.T) {
	raw := []byte(`{"id":"urn:ex:1","description":null}`)
	_, canonical, _, err := ParseAndValidate(raw, model.KindShell)
	require.NoError(t, err)
	assert.NotContains(t, string(canonical), "description")
}

func TestParseAndValidateRejectsRecursionOverflow(t *testing.T) {
	raw := []byte(`{"id":"urn:ex:1"`)
	for i := 0; i < DefaultRecursionDepthLimit+5; i++ {
		raw = append(raw, []byte(`,"nested":{"id":"urn:ex:1"`)...)
	}
	for i := 0; i < DefaultRecursionDepthLimit+5; i++ {
		raw = append(raw, '}')
	}
	raw = append(raw, '}')

	_, _, _, err := ParseAndValidate(raw, model.KindShell)
	require.Error(t, err)
}

func TestParseAndValidateRejectsNonUTF8(t *testing.T) {
	raw := []byte{'{', '"', 'i', 'd', '"', ':', '"', 0xff, 0xfe, '"', '}'}
	_, _, _, err := ParseAndValidate(raw, model.KindShell)
	require.Error(t, err)
}

func TestRecanonicalizeIsIdempotent(t *testing.T) {
	raw := []byte(`{"idShort":"B","id":"urn:ex:1","description":null}`)
	doc, first, firstEtag, err := ParseAndValidate(raw, model.KindShell)
	require.NoError(t, err)

	second, secondEtag, err := Recanonicalize(doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, firstEtag, secondEtag)
}
