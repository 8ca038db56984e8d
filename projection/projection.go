// Package projection applies AAS query modifiers (level, extent, $value,
// $metadata, $path) to a parsed Submodel or Shell. It is purely
// functional: no I/O, no access to Store or Cache, just a tree
// transformation over the model package's types.
package projection

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/hadijannat/titan-aas/model"
	"github.com/hadijannat/titan-aas/titanerr"
)

// Level selects how deep the element tree is kept.
type Level string

const (
	LevelCore Level = "core"
	LevelDeep Level = "deep"
)

// Extent controls whether Blob values are included.
type Extent string

const (
	ExtentWithBlobValue    Extent = "withBlobValue"
	ExtentWithoutBlobValue Extent = "withoutBlobValue"
)

// Content selects the $value/$metadata/$path rendering, if any.
type Content string

const (
	ContentNormal   Content = ""
	ContentValue    Content = "value"
	ContentMetadata Content = "metadata"
	ContentPath     Content = "path"
)

// Modifiers bundles every query modifier a request can carry, applied in
// the fixed order level -> extent -> content.
type Modifiers struct {
	Level   Level
	Extent  Extent
	Content Content
}

// ParseModifiers validates raw query string values into a Modifiers set,
// defaulting level to deep and extent to withoutBlobValue. Any value
// outside the fixed enumerations is a BadModifier.
func ParseModifiers(levelParam, extentParam, contentParam string) (Modifiers, error) {
	m := Modifiers{Level: LevelDeep, Extent: ExtentWithoutBlobValue, Content: ContentNormal}

	switch levelParam {
	case "", string(LevelDeep):
		m.Level = LevelDeep
	case string(LevelCore):
		m.Level = LevelCore
	default:
		return m, titanerr.Newf(titanerr.BadModifier, "unknown level modifier %q", levelParam)
	}

	switch extentParam {
	case "", string(ExtentWithoutBlobValue):
		m.Extent = ExtentWithoutBlobValue
	case string(ExtentWithBlobValue):
		m.Extent = ExtentWithBlobValue
	default:
		return m, titanerr.Newf(titanerr.BadModifier, "unknown extent modifier %q", extentParam)
	}

	switch contentParam {
	case "":
		m.Content = ContentNormal
	case string(ContentValue), string(ContentMetadata), string(ContentPath):
		m.Content = Content(contentParam)
	default:
		return m, titanerr.Newf(titanerr.BadModifier, "unknown content modifier %q", contentParam)
	}

	return m, nil
}

// ApplyToSubmodel renders sm under the given modifiers. The returned
// value is a generic tree (map/slice/string) ready for JSON encoding.
func ApplyToSubmodel(sm *model.Submodel, m Modifiers) (interface{}, error) {
	switch m.Content {
	case ContentPath:
		return pathsOf(sm.Elements, ""), nil
	case ContentValue:
		return elementsValue(applyLevel(sm.Elements, m.Level, 0), m.Extent), nil
	case ContentMetadata:
		return elementsMetadata(applyLevel(sm.Elements, m.Level, 0)), nil
	default:
		return submodelNormal(sm, applyLevel(sm.Elements, m.Level, 0), m.Extent), nil
	}
}

// ApplyToShell renders a Shell under the given modifiers. $value and
// $metadata are undefined for a Shell (it has no element tree) and
// reject with BadModifier; $path returns an empty list since a Shell has
// no addressable sub-paths.
func ApplyToShell(shell *model.Shell, m Modifiers) (interface{}, error) {
	switch m.Content {
	case ContentValue, ContentMetadata:
		return nil, titanerr.Newf(titanerr.BadModifier, "%s is not defined for a Shell", m.Content)
	case ContentPath:
		return []string{}, nil
	default:
		return shell, nil
	}
}

// applyLevel returns a (possibly shallow) copy of elements per Level.
// At depth 0, level=core keeps children of container variants one
// level deep (resolved open question: list/collection items count as
// top-level for this purpose) and drops everything nested below that.
func applyLevel(elements []model.Element, level Level, depth int) []model.Element {
	if level == LevelDeep {
		return elements
	}
	out := make([]model.Element, len(elements))
	for i, el := range elements {
		shallow := el
		if depth >= 1 {
			shallow.Children = nil
			shallow.Annotations = nil
			shallow.InputVariables = nil
			shallow.OutputVariables = nil
		} else if len(el.Children) > 0 {
			shallow.Children = applyLevel(el.Children, level, depth+1)
		}
		out[i] = shallow
	}
	return out
}

// Resolve walks a dot-separated, idShort-segmented path (list positions
// as Name[i], per spec §4.6) down elements and returns the addressed
// Element. Resolution is greedy: idShort uniqueness within a container
// (invariant I4) rules out ambiguity.
func Resolve(elements []model.Element, path string) (*model.Element, error) {
	if path == "" {
		return nil, titanerr.New(titanerr.ValidationError, "element path is required")
	}
	segments := strings.Split(path, ".")
	current := elements
	var found *model.Element

	for i, seg := range segments {
		idShort, index, hasIndex, err := parsePathSegment(seg)
		if err != nil {
			return nil, err
		}

		var match *model.Element
		for j := range current {
			if current[j].IDShort == idShort {
				match = &current[j]
				break
			}
		}
		if match == nil {
			return nil, titanerr.Newf(titanerr.NotFound, "element path %q not found", path)
		}
		if hasIndex {
			if index < 0 || index >= len(match.Children) {
				return nil, titanerr.Newf(titanerr.NotFound, "element path %q not found", path)
			}
			match = &match.Children[index]
		}

		found = match
		if i < len(segments)-1 {
			current = match.Children
		}
	}
	return found, nil
}

// parsePathSegment splits "Name[2]" into ("Name", 2, true) or "Name"
// into ("Name", 0, false).
func parsePathSegment(seg string) (string, int, bool, error) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return seg, 0, false, nil
	}
	if !strings.HasSuffix(seg, "]") {
		return "", 0, false, titanerr.Newf(titanerr.ValidationError, "malformed path segment %q", seg)
	}
	idShort := seg[:open]
	indexText := seg[open+1 : len(seg)-1]
	index, err := strconv.Atoi(indexText)
	if err != nil {
		return "", 0, false, titanerr.Newf(titanerr.ValidationError, "malformed list index in %q", seg)
	}
	return idShort, index, true, nil
}

func pathsOf(elements []model.Element, prefix string) []string {
	var paths []string
	for _, el := range elements {
		path := el.IDShort
		if prefix != "" {
			path = prefix + "." + el.IDShort
		}
		paths = append(paths, path)
		if len(el.Children) > 0 {
			paths = append(paths, pathsOf(el.Children, path)...)
		}
	}
	return paths
}

// elementsValue strips everything but values, recursively.
func elementsValue(elements []model.Element, extent Extent) map[string]interface{} {
	out := make(map[string]interface{}, len(elements))
	for _, el := range elements {
		out[el.IDShort] = elementValue(el, extent)
	}
	return out
}

func elementValue(el model.Element, extent Extent) interface{} {
	switch el.ModelType {
	case model.ElementSubmodelElementCollection, model.ElementEntity:
		return elementsValue(el.Children, extent)
	case model.ElementSubmodelElementList:
		items := make([]interface{}, len(el.Children))
		for i, child := range el.Children {
			items[i] = elementValue(child, extent)
		}
		return items
	case model.ElementBlob:
		if extent == ExtentWithBlobValue {
			return base64.StdEncoding.EncodeToString(el.BlobValue)
		}
		return nil
	case model.ElementMultiLanguageProperty:
		out := make(map[string]string, len(el.LangValue))
		for _, ls := range el.LangValue {
			out[ls.Language] = ls.Text
		}
		return out
	case model.ElementRange:
		return map[string]string{"min": el.Min, "max": el.Max}
	default:
		return el.Value
	}
}

// elementsMetadata strips values, keeping type/semantic/description info.
func elementsMetadata(elements []model.Element) []map[string]interface{} {
	out := make([]map[string]interface{}, len(elements))
	for i, el := range elements {
		entry := map[string]interface{}{
			"idShort":   el.IDShort,
			"modelType": el.ModelType,
		}
		if el.SemanticID != nil {
			entry["semanticId"] = el.SemanticID
		}
		if len(el.Description) > 0 {
			entry["description"] = el.Description
		}
		if el.ValueType != "" {
			entry["valueType"] = el.ValueType
		}
		if len(el.Children) > 0 {
			entry["children"] = elementsMetadata(el.Children)
		}
		out[i] = entry
	}
	return out
}

// submodelNormal renders a full (non-$value/$metadata/$path) projection,
// stripping Blob bytes unless extent says otherwise.
func submodelNormal(sm *model.Submodel, elements []model.Element, extent Extent) *model.Submodel {
	projected := *sm
	projected.Elements = stripBlobs(elements, extent)
	return &projected
}

func stripBlobs(elements []model.Element, extent Extent) []model.Element {
	out := make([]model.Element, len(elements))
	for i, el := range elements {
		shallow := el
		if el.ModelType == model.ElementBlob && extent != ExtentWithBlobValue {
			shallow.BlobValue = nil
		}
		if len(el.Children) > 0 {
			shallow.Children = stripBlobs(el.Children, extent)
		}
		out[i] = shallow
	}
	return out
}

// Replace returns a copy of elements with the element addressed by path
// replaced by newElement. Used by the submodel-elements PUT handler.
func Replace(elements []model.Element, path string, newElement model.Element) ([]model.Element, error) {
	segments := strings.Split(path, ".")
	out, replaced, err := replaceAt(elements, segments, newElement)
	if err != nil {
		return nil, err
	}
	if !replaced {
		return nil, titanerr.Newf(titanerr.NotFound, "element path %q not found", path)
	}
	return out, nil
}

func replaceAt(elements []model.Element, segments []string, newElement model.Element) ([]model.Element, bool, error) {
	idShort, index, hasIndex, err := parsePathSegment(segments[0])
	if err != nil {
		return nil, false, err
	}

	out := make([]model.Element, len(elements))
	copy(out, elements)

	for i := range out {
		if out[i].IDShort != idShort {
			continue
		}
		if hasIndex {
			if index < 0 || index >= len(out[i].Children) {
				return nil, false, nil
			}
			if len(segments) == 1 {
				out[i].Children = replaceSlice(out[i].Children, index, newElement)
				return out, true, nil
			}
			children, ok, err := replaceAt(out[i].Children, segments[1:], newElement)
			if err != nil || !ok {
				return nil, ok, err
			}
			out[i].Children = children
			return out, true, nil
		}
		if len(segments) == 1 {
			out[i] = newElement
			return out, true, nil
		}
		children, ok, err := replaceAt(out[i].Children, segments[1:], newElement)
		if err != nil || !ok {
			return nil, ok, err
		}
		out[i].Children = children
		return out, true, nil
	}
	return nil, false, nil
}

func replaceSlice(items []model.Element, index int, newElement model.Element) []model.Element {
	out := make([]model.Element, len(items))
	copy(out, items)
	out[index] = newElement
	return out
}

// Remove returns a copy of elements with the element addressed by path
// removed. Used by the submodel-elements DELETE handler.
func Remove(elements []model.Element, path string) ([]model.Element, error) {
	segments := strings.Split(path, ".")
	out, removed, err := removeAt(elements, segments)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, titanerr.Newf(titanerr.NotFound, "element path %q not found", path)
	}
	return out, nil
}

func removeAt(elements []model.Element, segments []string) ([]model.Element, bool, error) {
	idShort, index, hasIndex, err := parsePathSegment(segments[0])
	if err != nil {
		return nil, false, err
	}

	for i := range elements {
		if elements[i].IDShort != idShort {
			continue
		}
		if hasIndex {
			if index < 0 || index >= len(elements[i].Children) {
				return nil, false, nil
			}
			if len(segments) == 1 {
				out := make([]model.Element, len(elements))
				copy(out, elements)
				out[i].Children = append(out[i].Children[:index:index], out[i].Children[index+1:]...)
				return out, true, nil
			}
			children, ok, err := removeAt(elements[i].Children, segments[1:])
			if err != nil || !ok {
				return nil, ok, err
			}
			out := make([]model.Element, len(elements))
			copy(out, elements)
			out[i].Children = children
			return out, true, nil
		}
		if len(segments) == 1 {
			out := make([]model.Element, 0, len(elements)-1)
			out = append(out, elements[:i]...)
			out = append(out, elements[i+1:]...)
			return out, true, nil
		}
		children, ok, err := removeAt(elements[i].Children, segments[1:])
		if err != nil || !ok {
			return nil, ok, err
		}
		out := make([]model.Element, len(elements))
		copy(out, elements)
		out[i].Children = children
		return out, true, nil
	}
	return nil, false, nil
}

// String renders Content for interpolation into error messages.
func (c Content) String() string {
	return strings.TrimSpace(string(c))
}
