// Package model defines the Asset Administration Shell data types stored
// and served by Titan-AAS: Shells, Submodels, their fixed set of Elements,
// ConceptDescriptions, and the registry descriptors.
package model

import "time"

// Kind identifies the entity table a record belongs to.
type Kind string

const (
	KindShell              Kind = "Shell"
	KindSubmodel           Kind = "Submodel"
	KindConceptDescription Kind = "ConceptDescription"
	KindShellDescriptor    Kind = "ShellDescriptor"
	KindSubmodelDescriptor Kind = "SubmodelDescriptor"
)

// AssetKind is the fixed enumeration for AssetInformation.assetKind.
type AssetKind string

const (
	AssetKindInstance      AssetKind = "Instance"
	AssetKindTemplate      AssetKind = "Template"
	AssetKindNotApplicable AssetKind = "NotApplicable"
)

// SubmodelKind is the fixed enumeration for Submodel.kind.
type SubmodelKind string

const (
	SubmodelKindInstance SubmodelKind = "Instance"
	SubmodelKindTemplate SubmodelKind = "Template"
)

// ElementType enumerates the closed set of Submodel element variants.
type ElementType string

const (
	ElementProperty                     ElementType = "Property"
	ElementMultiLanguageProperty        ElementType = "MultiLanguageProperty"
	ElementRange                        ElementType = "Range"
	ElementBlob                         ElementType = "Blob"
	ElementFile                         ElementType = "File"
	ElementReferenceElement             ElementType = "ReferenceElement"
	ElementRelationshipElement          ElementType = "RelationshipElement"
	ElementAnnotatedRelationshipElement ElementType = "AnnotatedRelationshipElement"
	ElementSubmodelElementCollection    ElementType = "SubmodelElementCollection"
	ElementSubmodelElementList          ElementType = "SubmodelElementList"
	ElementEntity                       ElementType = "Entity"
	ElementBasicEventElement            ElementType = "BasicEventElement"
	ElementOperation                    ElementType = "Operation"
	ElementCapability                   ElementType = "Capability"
)

// ValidElementTypes lists the closed set for enumeration checks.
var ValidElementTypes = map[ElementType]bool{
	ElementProperty:                     true,
	ElementMultiLanguageProperty:        true,
	ElementRange:                        true,
	ElementBlob:                         true,
	ElementFile:                         true,
	ElementReferenceElement:             true,
	ElementRelationshipElement:          true,
	ElementAnnotatedRelationshipElement: true,
	ElementSubmodelElementCollection:    true,
	ElementSubmodelElementList:          true,
	ElementEntity:                       true,
	ElementBasicEventElement:            true,
	ElementOperation:                    true,
	ElementCapability:                   true,
}

// LangString is a single localized text entry.
type LangString struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// Reference is a weak pointer to another entity by id and kind.
type Reference struct {
	Type  string   `json:"type"`
	Keys  []RefKey `json:"keys"`
}

// RefKey is one segment of a Reference's key chain.
type RefKey struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// AssetInformation describes the physical or virtual asset a Shell represents.
type AssetInformation struct {
	AssetKind     AssetKind `json:"assetKind"`
	GlobalAssetID string    `json:"globalAssetId,omitempty"`
}

// Shell is a single Asset Administration Shell entity.
type Shell struct {
	ID               string             `json:"id"`
	IDShort          string             `json:"idShort"`
	Description      []LangString       `json:"description,omitempty"`
	AssetInformation AssetInformation   `json:"assetInformation"`
	SubmodelRefs     []Reference        `json:"submodels,omitempty"`
	CreatedAt        time.Time          `json:"-"`
	UpdatedAt        time.Time          `json:"-"`
	ETag             string             `json:"-"`
}

// Element is one node of a Submodel's element tree. Its Value and Children
// fields are mutually exclusive depending on ModelType: leaf variants
// (Property, Range, Blob, File, ReferenceElement, ...) populate Value or
// the variant-specific fields; container variants (SubmodelElementCollection,
// SubmodelElementList, Entity) populate Children.
type Element struct {
	ModelType   ElementType  `json:"modelType"`
	IDShort     string       `json:"idShort"`
	SemanticID  *Reference   `json:"semanticId,omitempty"`
	Description []LangString `json:"description,omitempty"`

	// Property / Range / MultiLanguageProperty
	ValueType string       `json:"valueType,omitempty"`
	Value     string       `json:"value,omitempty"`
	Min       string       `json:"min,omitempty"`
	Max       string       `json:"max,omitempty"`
	LangValue []LangString `json:"langStrings,omitempty"`

	// Blob / File
	ContentType string `json:"contentType,omitempty"`
	BlobValue   []byte `json:"value,omitempty"`
	FileValue   string `json:"value,omitempty"`

	// ReferenceElement / RelationshipElement / AnnotatedRelationshipElement
	ReferenceValue *Reference `json:"value,omitempty"`
	First          *Reference `json:"first,omitempty"`
	Second         *Reference `json:"second,omitempty"`
	Annotations    []Element  `json:"annotations,omitempty"`

	// Entity
	EntityType    string      `json:"entityType,omitempty"`
	GlobalAssetID string      `json:"globalAssetId,omitempty"`

	// BasicEventElement
	Observed *Reference `json:"observed,omitempty"`
	Direction string    `json:"direction,omitempty"`
	State     string    `json:"state,omitempty"`

	// Operation
	InputVariables  []Element `json:"inputVariables,omitempty"`
	OutputVariables []Element `json:"outputVariables,omitempty"`

	// SubmodelElementCollection / SubmodelElementList / Entity statements
	Children []Element `json:"value,omitempty"`
}

// Submodel holds the element tree referenced by Shells.
type Submodel struct {
	ID          string       `json:"id"`
	IDShort     string       `json:"idShort"`
	Description []LangString `json:"description,omitempty"`
	Kind        SubmodelKind `json:"kind"`
	SemanticID  *Reference   `json:"semanticId,omitempty"`
	Elements    []Element    `json:"submodelElements,omitempty"`
	CreatedAt   time.Time    `json:"-"`
	UpdatedAt   time.Time    `json:"-"`
	ETag        string       `json:"-"`
}

// ConceptDescription is a standalone dictionary entry referenced by
// Elements via their semanticId.
type ConceptDescription struct {
	ID          string       `json:"id"`
	IDShort     string       `json:"idShort"`
	Description []LangString `json:"description,omitempty"`
	Category    string       `json:"category,omitempty"`
	IsCaseOf    []Reference  `json:"isCaseOf,omitempty"`
	CreatedAt   time.Time    `json:"-"`
	UpdatedAt   time.Time    `json:"-"`
	ETag        string       `json:"-"`
}

// Endpoint is one registry-advertised access point for a descriptor.
type Endpoint struct {
	Interface string `json:"interface"`
	Href      string `json:"href"`
}

// ShellDescriptor is a registry entry pairing a Shell id with endpoints.
type ShellDescriptor struct {
	ID            string     `json:"id"`
	IDShort       string     `json:"idShort"`
	GlobalAssetID string     `json:"globalAssetId,omitempty"`
	Endpoints     []Endpoint `json:"endpoints"`
	CreatedAt     time.Time  `json:"-"`
	UpdatedAt     time.Time  `json:"-"`
	ETag          string     `json:"-"`
}

// SubmodelDescriptor is a registry entry pairing a Submodel id with endpoints.
type SubmodelDescriptor struct {
	ID         string     `json:"id"`
	IDShort    string     `json:"idShort"`
	SemanticID *Reference `json:"semanticId,omitempty"`
	Endpoints  []Endpoint `json:"endpoints"`
	CreatedAt  time.Time  `json:"-"`
	UpdatedAt  time.Time  `json:"-"`
	ETag       string     `json:"-"`
}
