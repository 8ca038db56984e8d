package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hadijannat/titan-aas/model"
)

func sampleSubmodel() *model.Submodel {
	return &model.Submodel{
		ID:      "urn:ex:sm:1",
		IDShort: "TechnicalData",
		Kind:    model.SubmodelKindInstance,
		Elements: []model.Element{
			{
				ModelType: model.ElementSubmodelElementCollection,
				IDShort:   "Group",
				Children: []model.Element{
					{ModelType: model.ElementProperty, IDShort: "Weight", ValueType: "xs:double", Value: "12.500"},
					{ModelType: model.ElementBlob, IDShort: "Photo", ContentType: "image/png", BlobValue: []byte{1, 2, 3}},
				},
			},
		},
	}
}

func TestParseModifiersDefaults(t *testing.T) {
	m, err := ParseModifiers("", "", "")
	require.NoError(t, err)
	assert.Equal(t, LevelDeep, m.Level)
	assert.Equal(t, ExtentWithoutBlobValue, m.Extent)
	assert.Equal(t, ContentNormal, m.Content)
}

func TestParseModifiersRejectsUnknown(t *testing.T) {
	_, err := ParseModifiers("shallow", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BadModifier")
}

func TestApplyToSubmodelPathLists(t *testing.T) {
	sm := sampleSubmodel()
	m, err := ParseModifiers("", "", "path")
	require.NoError(t, err)

	result, err := ApplyToSubmodel(sm, m)
	require.NoError(t, err)
	paths := result.([]string)
	assert.Contains(t, paths, "Group")
	assert.Contains(t, paths, "Group.Weight")
	assert.Contains(t, paths, "Group.Photo")
}

func TestApplyToSubmodelValuePreservesNumericText(t *testing.T) {
	sm := sampleSubmodel()
	m, err := ParseModifiers("", "", "value")
	require.NoError(t, err)

	result, err := ApplyToSubmodel(sm, m)
	require.NoError(t, err)
	values := result.(map[string]interface{})
	group := values["Group"].(map[string]interface{})
	assert.Equal(t, "12.500", group["Weight"])
}

func TestApplyToSubmodelExtentWithoutBlobOmitsBytes(t *testing.T) {
	sm := sampleSubmodel()
	m, err := ParseModifiers("", "withoutBlobValue", "")
	require.NoError(t, err)

	result, err := ApplyToSubmodel(sm, m)
	require.NoError(t, err)
	projected := result.(*model.Submodel)
	assert.Nil(t, projected.Elements[0].Children[1].BlobValue)
}

func TestApplyToSubmodelLevelCoreKeepsOneLevel(t *testing.T) {
	sm := sampleSubmodel()
	m, err := ParseModifiers("core", "", "")
	require.NoError(t, err)

	result, err := ApplyToSubmodel(sm, m)
	require.NoError(t, err)
	projected := result.(*model.Submodel)
	require.Len(t, projected.Elements, 1)
	assert.Len(t, projected.Elements[0].Children, 2)
	assert.Empty(t, projected.Elements[0].Children[0].Children)
}

func TestApplyToShellRejectsValueAndMetadata(t *testing.T) {
	shell := &model.Shell{ID: "urn:ex:aas:1"}

	m, err := ParseModifiers("", "", "value")
	require.NoError(t, err)
	_, err = ApplyToShell(shell, m)
	require.Error(t, err)

	m, err = ParseModifiers("", "", "metadata")
	require.NoError(t, err)
	_, err = ApplyToShell(shell, m)
	require.Error(t, err)
}

func TestResolveFindsNestedElement(t *testing.T) {
	sm := sampleSubmodel()
	el, err := Resolve(sm.Elements, "Group.Weight")
	require.NoError(t, err)
	assert.Equal(t, "12.500", el.Value)
}

func TestResolveUnknownPathIsNotFound(t *testing.T) {
	sm := sampleSubmodel()
	_, err := Resolve(sm.Elements, "Group.Missing")
	require.Error(t, err)
}

func TestReplaceSwapsElementValue(t *testing.T) {
	sm := sampleSubmodel()
	updated, err := Replace(sm.Elements, "Group.Weight", model.Element{ModelType: model.ElementProperty, IDShort: "Weight", ValueType: "xs:double", Value: "99.000"})
	require.NoError(t, err)

	el, err := Resolve(updated, "Group.Weight")
	require.NoError(t, err)
	assert.Equal(t, "99.000", el.Value)
	// original is untouched
	original, err := Resolve(sm.Elements, "Group.Weight")
	require.NoError(t, err)
	assert.Equal(t, "12.500", original.Value)
}

func TestRemoveDropsElement(t *testing.T) {
	sm := sampleSubmodel()
	updated, err := Remove(sm.Elements, "Group.Photo")
	require.NoError(t, err)

	_, err = Resolve(updated, "Group.Photo")
	require.Error(t, err)
	_, err = Resolve(updated, "Group.Weight")
	require.NoError(t, err)
}

func TestApplyToShellPathIsEmpty(t *testing.T) {
	shell := &model.Shell{ID: "urn:ex:aas:1"}
	m, err := ParseModifiers("", "", "path")
	require.NoError(t, err)

	result, err := ApplyToShell(shell, m)
	require.NoError(t, err)
	assert.Equal(t, []string{}, result)
}
