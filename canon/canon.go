// Package canon implements the Canonicalizer & Validator: it parses raw
// JSON into a structurally validated document, and renders documents back
// to a deterministic canonical byte form so two callers that submit
// semantically identical data always produce the same ETag.
//
// There is no third-party canonical-JSON library in the retrieved example
// corpus, so this package is built on encoding/json's token-level decoder
// (json.Decoder.Token) rather than an ecosystem dependency; see DESIGN.md.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hadijannat/titan-aas/model"
	"github.com/hadijannat/titan-aas/titanerr"
)

// Kind is the entity kind a document is being validated against.
type Kind = model.Kind

// MaxIdentifierBytes is the size cap on entity identifiers (spec §4.1).
const MaxIdentifierBytes = 2048

// DefaultRecursionDepthLimit bounds nested object/array depth during parsing.
const DefaultRecursionDepthLimit = 64

// valueKind distinguishes the handful of JSON shapes a Value can hold.
type valueKind int

const (
	kindObject valueKind = iota
	kindArray
	kindString
	kindNumber
	kindBool
	kindNull
)

// member is one ordered (key, value) pair inside an object-kind Value.
type member struct {
	key   string
	value *Value
}

// Value is a parsed JSON node. Object members retain insertion order so
// validation can walk them, but canonical output always re-sorts keys.
// Numbers and strings keep their original source text so precision
// supplied by the caller is never altered by a float round-trip.
type Value struct {
	kind    valueKind
	text    string // raw text for string/number leaves (string already unescaped)
	boolean bool
	members []member
	items   []*Value
}

// Document wraps a validated root Value together with the kind it was
// validated as, which downstream components use to pick table/encoding.
type Document struct {
	Kind Kind
	Root *Value
}

// Parser holds configuration for parsing and validating raw documents.
type Parser struct {
	RecursionDepthLimit int
}

// NewParser builds a Parser with the given recursion depth limit; a
// non-positive value falls back to DefaultRecursionDepthLimit.
func NewParser(recursionDepthLimit int) *Parser {
	if recursionDepthLimit <= 0 {
		recursionDepthLimit = DefaultRecursionDepthLimit
	}
	return &Parser{RecursionDepthLimit: recursionDepthLimit}
}

// defaultParser is used by the package-level ParseAndValidate convenience
// function; callers that need a non-default recursion limit should build
// their own Parser instead.
var defaultParser = NewParser(DefaultRecursionDepthLimit)

// ParseAndValidate is the package-level entry point used throughout the
// rest of the repository. It delegates to a Parser configured with
// DefaultRecursionDepthLimit.
func ParseAndValidate(raw []byte, kind Kind) (*Document, []byte, string, error) {
	return defaultParser.ParseAndValidate(raw, kind)
}

// ParseAndValidate decodes raw bytes, rejecting unknown structural
// problems (duplicate keys, depth overruns, malformed literals), validates
// identifier constraints, and returns the parsed document alongside its
// canonical byte form and ETag in one pass.
func (p *Parser) ParseAndValidate(raw []byte, kind Kind) (*Document, []byte, string, error) {
	if !utf8.Valid(raw) {
		return nil, nil, "", titanerr.New(titanerr.ValidationError, "body is not valid UTF-8")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	root, err := p.parseValue(dec, 0)
	if err != nil {
		return nil, nil, "", err
	}
	if err := expectEOF(dec); err != nil {
		return nil, nil, "", err
	}

	doc := &Document{Kind: kind, Root: root}
	if err := validateIdentifier(root); err != nil {
		return nil, nil, "", err
	}
	if err := validateSchema(doc); err != nil {
		return nil, nil, "", err
	}

	canonicalBytes, etag, err := Recanonicalize(doc)
	if err != nil {
		return nil, nil, "", err
	}
	return doc, canonicalBytes, etag, nil
}

// Recanonicalize renders an already-parsed document back to canonical
// bytes and its ETag, without re-running structural validation.
func Recanonicalize(doc *Document) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, doc.Root); err != nil {
		return nil, "", titanerr.Wrap(titanerr.Internal, err)
	}
	return buf.Bytes(), sha256Hex(buf.Bytes()), nil
}

// StringField returns the string value of a top-level object field, or
// "" if the field is absent, not an object, or not a string leaf.
func (d *Document) StringField(field string) string {
	if d == nil || d.Root == nil || d.Root.kind != kindObject {
		return ""
	}
	for _, m := range d.Root.members {
		if m.key == field && m.value.kind == kindString {
			return m.value.text
		}
	}
	return ""
}

// NestedField walks successive object keys and returns the string leaf
// at the end of the path, or "" if any segment is absent, not an
// object, or the leaf itself is not a string (e.g. Shell.assetInformation.globalAssetId).
func (d *Document) NestedField(path ...string) string {
	if d == nil || d.Root == nil {
		return ""
	}
	v := d.Root
	for i, key := range path {
		if v.kind != kindObject {
			return ""
		}
		child, ok := v.field(key)
		if !ok {
			return ""
		}
		if i == len(path)-1 {
			if child.kind == kindString {
				return child.text
			}
			return ""
		}
		v = child
	}
	return ""
}

func expectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); err != io.EOF {
		return titanerr.New(titanerr.ValidationError, "trailing data after document")
	}
	return nil
}

// parseValue reads one JSON value from dec, enforcing the recursion
// depth cap and duplicate-key rejection for objects.
func (p *Parser) parseValue(dec *json.Decoder, depth int) (*Value, error) {
	if depth > p.RecursionDepthLimit {
		return nil, titanerr.New(titanerr.ValidationError, "document exceeds recursion depth limit")
	}

	tok, err := dec.Token()
	if err != nil {
		return nil, titanerr.Wrap(titanerr.ValidationError, err)
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return p.parseObject(dec, depth)
		case '[':
			return p.parseArray(dec, depth)
		default:
			return nil, titanerr.New(titanerr.ValidationError, "unexpected token")
		}
	case json.Number:
		return &Value{kind: kindNumber, text: t.String()}, nil
	case string:
		return &Value{kind: kindString, text: t}, nil
	case bool:
		return &Value{kind: kindBool, boolean: t}, nil
	case nil:
		return &Value{kind: kindNull}, nil
	default:
		return nil, titanerr.Newf(titanerr.ValidationError, "unsupported token type %T", tok)
	}
}

func (p *Parser) parseObject(dec *json.Decoder, depth int) (*Value, error) {
	seen := make(map[string]bool)
	v := &Value{kind: kindObject}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, titanerr.Wrap(titanerr.ValidationError, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, titanerr.New(titanerr.ValidationError, "object key must be a string")
		}
		if seen[key] {
			return nil, titanerr.Newf(titanerr.ValidationError, "duplicate key %q", key)
		}
		seen[key] = true

		child, err := p.parseValue(dec, depth+1)
		if err != nil {
			return nil, err
		}
		v.members = append(v.members, member{key: key, value: child})
	}

	if _, err := dec.Token(); err != nil { // consume closing '}'
		return nil, titanerr.Wrap(titanerr.ValidationError, err)
	}
	return v, nil
}

func (p *Parser) parseArray(dec *json.Decoder, depth int) (*Value, error) {
	v := &Value{kind: kindArray}
	for dec.More() {
		child, err := p.parseValue(dec, depth+1)
		if err != nil {
			return nil, err
		}
		v.items = append(v.items, child)
	}
	if _, err := dec.Token(); err != nil { // consume closing ']'
		return nil, titanerr.Wrap(titanerr.ValidationError, err)
	}
	return v, nil
}

// validateIdentifier enforces the non-empty, size-capped "id" rule shared
// by every entity kind.
func validateIdentifier(root *Value) error {
	if root.kind != kindObject {
		return titanerr.New(titanerr.ValidationError, "document root must be an object")
	}
	idVal, ok := root.field("id")
	if !ok || idVal.kind != kindString || idVal.text == "" {
		return titanerr.New(titanerr.ValidationError, "id is required and must be a non-empty string")
	}
	if len(idVal.text) > MaxIdentifierBytes {
		return titanerr.Newf(titanerr.ValidationError, "id exceeds %d bytes", MaxIdentifierBytes)
	}
	return nil
}

func (v *Value) field(key string) (*Value, bool) {
	for _, m := range v.members {
		if m.key == key {
			return m.value, true
		}
	}
	return nil, false
}

// fieldSet builds a membership set from a list of allowed key names.
func fieldSet(keys ...string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// Closed field sets per entity kind (spec §4.1's strict mode: unknown
// top-level fields are rejected rather than silently ignored).
var (
	shellFields              = fieldSet("id", "idShort", "description", "assetInformation", "submodels")
	submodelFields           = fieldSet("id", "idShort", "description", "kind", "semanticId", "submodelElements")
	conceptDescriptionFields = fieldSet("id", "idShort", "description", "category", "isCaseOf")
	shellDescriptorFields    = fieldSet("id", "idShort", "globalAssetId", "endpoints")
	submodelDescriptorFields = fieldSet("id", "idShort", "semanticId", "endpoints")
	assetInformationFields   = fieldSet("assetKind", "globalAssetId")

	assetKinds = fieldSet(string(model.AssetKindInstance), string(model.AssetKindTemplate), string(model.AssetKindNotApplicable))
	submodelKinds = fieldSet(string(model.SubmodelKindInstance), string(model.SubmodelKindTemplate))

	// elementFieldsByType lists the fields each closed Element variant
	// may carry beyond the common modelType/idShort/semanticId/description set.
	elementFieldsByType = map[model.ElementType][]string{
		model.ElementProperty:                     {"valueType", "value"},
		model.ElementMultiLanguageProperty:        {"langStrings"},
		model.ElementRange:                        {"valueType", "min", "max"},
		model.ElementBlob:                         {"contentType", "value"},
		model.ElementFile:                         {"contentType", "value"},
		model.ElementReferenceElement:             {"value"},
		model.ElementRelationshipElement:          {"first", "second"},
		model.ElementAnnotatedRelationshipElement: {"first", "second", "annotations"},
		model.ElementSubmodelElementCollection:    {"value"},
		model.ElementSubmodelElementList:          {"value"},
		model.ElementEntity:                       {"entityType", "globalAssetId", "value"},
		model.ElementBasicEventElement:            {"observed", "direction", "state"},
		model.ElementOperation:                    {"inputVariables", "outputVariables"},
		model.ElementCapability:                   {},
	}
)

// validateSchema enforces spec.md §4.1's strict-mode checks beyond bare
// structural well-formedness: only known top-level fields per entity
// kind, the closed AssetKind/SubmodelKind/ElementType enumerations, and
// Property/Range value text that parses under its declared valueType.
func validateSchema(doc *Document) error {
	switch doc.Kind {
	case model.KindShell:
		if err := validateKeys(doc.Root, shellFields, "Shell"); err != nil {
			return err
		}
		if ai, ok := doc.Root.field("assetInformation"); ok {
			if err := validateAssetInformation(ai); err != nil {
				return err
			}
		}
	case model.KindSubmodel:
		if err := validateKeys(doc.Root, submodelFields, "Submodel"); err != nil {
			return err
		}
		if kindVal, ok := doc.Root.field("kind"); ok {
			if err := validateEnum(kindVal, submodelKinds, "Submodel.kind"); err != nil {
				return err
			}
		}
		if elements, ok := doc.Root.field("submodelElements"); ok {
			if err := validateElements(elements); err != nil {
				return err
			}
		}
	case model.KindConceptDescription:
		return validateKeys(doc.Root, conceptDescriptionFields, "ConceptDescription")
	case model.KindShellDescriptor:
		return validateKeys(doc.Root, shellDescriptorFields, "ShellDescriptor")
	case model.KindSubmodelDescriptor:
		return validateKeys(doc.Root, submodelDescriptorFields, "SubmodelDescriptor")
	}
	return nil
}

// validateKeys rejects any object member not named in allowed. Non-object
// values are left to the caller that dereferenced them; this only guards
// the object case.
func validateKeys(v *Value, allowed map[string]bool, context string) error {
	if v == nil || v.kind != kindObject {
		return nil
	}
	for _, m := range v.members {
		if !allowed[m.key] {
			return titanerr.Newf(titanerr.ValidationError, "%s: unknown field %q", context, m.key)
		}
	}
	return nil
}

// validateEnum checks that v is a string present in allowed.
func validateEnum(v *Value, allowed map[string]bool, field string) error {
	if v.kind != kindString || !allowed[v.text] {
		return titanerr.Newf(titanerr.ValidationError, "%s: invalid value", field)
	}
	return nil
}

func validateAssetInformation(v *Value) error {
	if err := validateKeys(v, assetInformationFields, "assetInformation"); err != nil {
		return err
	}
	if kindVal, ok := v.field("assetKind"); ok {
		if err := validateEnum(kindVal, assetKinds, "assetInformation.assetKind"); err != nil {
			return err
		}
	}
	return nil
}

// validateElements walks a submodelElements (or Operation/annotation/
// collection child) array, validating each element's modelType and
// field set.
func validateElements(v *Value) error {
	if v.kind != kindArray {
		return titanerr.New(titanerr.ValidationError, "submodelElements must be an array")
	}
	for _, item := range v.items {
		if err := validateElement(item); err != nil {
			return err
		}
	}
	return nil
}

func validateElement(v *Value) error {
	if v.kind != kindObject {
		return titanerr.New(titanerr.ValidationError, "submodel element must be an object")
	}
	modelTypeVal, ok := v.field("modelType")
	if !ok || modelTypeVal.kind != kindString {
		return titanerr.New(titanerr.ValidationError, "submodel element: modelType is required")
	}
	elementType := model.ElementType(modelTypeVal.text)
	if !model.ValidElementTypes[elementType] {
		return titanerr.Newf(titanerr.ValidationError, "submodel element: unknown modelType %q", modelTypeVal.text)
	}

	allowed := fieldSet(append([]string{"modelType", "idShort", "semanticId", "description"}, elementFieldsByType[elementType]...)...)
	if err := validateKeys(v, allowed, "submodel element "+modelTypeVal.text); err != nil {
		return err
	}

	switch elementType {
	case model.ElementProperty:
		if err := validateValueSyntax(v, "value"); err != nil {
			return err
		}
	case model.ElementRange:
		if err := validateValueSyntax(v, "min"); err != nil {
			return err
		}
		if err := validateValueSyntax(v, "max"); err != nil {
			return err
		}
	case model.ElementAnnotatedRelationshipElement:
		if annotations, ok := v.field("annotations"); ok {
			if err := validateElements(annotations); err != nil {
				return err
			}
		}
	case model.ElementSubmodelElementCollection, model.ElementSubmodelElementList, model.ElementEntity:
		if children, ok := v.field("value"); ok && children.kind == kindArray {
			if err := validateElements(children); err != nil {
				return err
			}
		}
	case model.ElementOperation:
		if in, ok := v.field("inputVariables"); ok {
			if err := validateElements(in); err != nil {
				return err
			}
		}
		if out, ok := v.field("outputVariables"); ok {
			if err := validateElements(out); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateValueSyntax checks field ("value"/"min"/"max") against the
// element's declared valueType. A missing field is not an error here
// (Range's min/max are each independently optional); a present field
// must be a JSON string (the AAS wire encoding for every primitive
// value) whose text parses under that valueType.
func validateValueSyntax(el *Value, field string) error {
	value, ok := el.field(field)
	if !ok {
		return nil
	}
	valueTypeVal, ok := el.field("valueType")
	if !ok || valueTypeVal.kind != kindString {
		return titanerr.New(titanerr.ValidationError, "valueType is required when a value is present")
	}
	if value.kind != kindString {
		return titanerr.Newf(titanerr.ValidationError, "%s must be a string", field)
	}
	return checkValueTypeSyntax(valueTypeVal.text, value.text)
}

// checkValueTypeSyntax validates text against the xsd primitive named by
// valueType (an "xs:" prefix, if present, is stripped). valueTypes this
// package does not recognize are accepted as opaque strings rather than
// rejected, since spec.md's named xsd list is not exhaustive of every
// valueType AAS permits.
func checkValueTypeSyntax(valueType, text string) error {
	name := strings.TrimPrefix(valueType, "xs:")
	switch name {
	case "boolean":
		if text != "true" && text != "false" {
			return titanerr.Newf(titanerr.ValidationError, "value %q is not a valid xs:boolean", text)
		}
	case "integer", "int", "long", "short", "byte",
		"unsignedInt", "unsignedLong", "unsignedShort", "unsignedByte",
		"nonNegativeInteger", "positiveInteger", "negativeInteger", "nonPositiveInteger":
		if _, err := strconv.ParseInt(text, 10, 64); err != nil {
			return titanerr.Newf(titanerr.ValidationError, "value %q is not a valid xs:%s", text, name)
		}
	case "double", "float", "decimal":
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return titanerr.Newf(titanerr.ValidationError, "value %q is not a valid xs:%s", text, name)
		}
	case "date":
		if _, err := time.Parse("2006-01-02", text); err != nil {
			return titanerr.Newf(titanerr.ValidationError, "value %q is not a valid xs:date", text)
		}
	case "dateTime":
		if _, err := time.Parse(time.RFC3339, text); err != nil {
			if _, err2 := time.Parse("2006-01-02T15:04:05", text); err2 != nil {
				return titanerr.Newf(titanerr.ValidationError, "value %q is not a valid xs:dateTime", text)
			}
		}
	case "time":
		if _, err := time.Parse("15:04:05", text); err != nil {
			return titanerr.Newf(titanerr.ValidationError, "value %q is not a valid xs:time", text)
		}
	}
	return nil
}

// writeCanonical serializes v in canonical form: sorted object keys, no
// insignificant whitespace, numbers/strings emitted verbatim, null
// suppressed only at the object-member level (per spec I6, absent means
// omitted — callers that do not want a field omitted leave it off rather
// than sending JSON null).
func writeCanonical(buf *bytes.Buffer, v *Value) error {
	switch v.kind {
	case kindObject:
		sorted := make([]member, len(v.members))
		copy(sorted, v.members)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].key < sorted[j].key })

		buf.WriteByte('{')
		first := true
		for _, m := range sorted {
			if m.value.kind == kindNull {
				continue
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			writeJSONString(buf, m.key)
			buf.WriteByte(':')
			if err := writeCanonical(buf, m.value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case kindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case kindString:
		writeJSONString(buf, v.text)
	case kindNumber:
		buf.WriteString(v.text)
	case kindBool:
		if v.boolean {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case kindNull:
		buf.WriteString("null")
	default:
		return fmt.Errorf("unknown value kind %d", v.kind)
	}
	return nil
}

// writeJSONString writes s as a minimal JSON string literal without the
// redundant unicode escaping encoding/json's Marshal applies by default.
func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}
