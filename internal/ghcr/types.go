package ghcr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"
)

const (
	shortDigestLengthConstant             = 12
	missingFieldErrorMessageConstant      = "required field is missing"
	missingVersionFieldTemplateConstant   = "version at index %d: %w: %s"
	versionIdentifierFieldNameConstant    = "id"
	versionNameFieldNameConstant          = "name"
	versionMetadataFieldNameConstant      = "metadata"
	versionContainerFieldNameConstant     = "metadata.container"
	versionContainerTagsFieldNameConstant = "metadata.container.tags"
)

// ErrMissingVersionField indicates a list response record without a required field.
var ErrMissingVersionField = errors.New(missingFieldErrorMessageConstant)

// PackageVersion is one stored artifact revision as returned by the package versions endpoint.
type PackageVersion struct {
	ID       int64                  `json:"id"`
	Name     string                 `json:"name"`
	Metadata PackageVersionMetadata `json:"metadata"`
}

// PackageVersionMetadata carries the package-type specific details of a version.
type PackageVersionMetadata struct {
	PackageType string                   `json:"package_type"`
	Container   ContainerVersionMetadata `json:"container"`
}

// ContainerVersionMetadata lists the tags attached to a container version.
type ContainerVersionMetadata struct {
	Tags []string `json:"tags"`
}

// Tags returns the tags attached to the version.
func (version PackageVersion) Tags() []string {
	return version.Metadata.Container.Tags
}

// IsUntagged reports whether no tag references the version.
func (version PackageVersion) IsUntagged() bool {
	return len(version.Metadata.Container.Tags) == 0
}

// Digest parses the version name as a content digest.
func (version PackageVersion) Digest() (digest.Digest, error) {
	return digest.Parse(version.Name)
}

// ShortName abbreviates digest names to algorithm:prefix and returns other names unchanged.
func (version PackageVersion) ShortName() string {
	parsedDigest, parseError := version.Digest()
	if parseError != nil {
		return version.Name
	}

	encoded := parsedDigest.Encoded()
	if len(encoded) > shortDigestLengthConstant {
		encoded = encoded[:shortDigestLengthConstant]
	}

	return parsedDigest.Algorithm().String() + ":" + encoded
}

// packageVersionPayload mirrors the wire record with pointers so absent and null fields are detectable.
type packageVersionPayload struct {
	ID       *int64                         `json:"id"`
	Name     *string                        `json:"name"`
	Metadata *packageVersionMetadataPayload `json:"metadata"`
}

type packageVersionMetadataPayload struct {
	PackageType string                    `json:"package_type"`
	Container   *containerMetadataPayload `json:"container"`
}

type containerMetadataPayload struct {
	Tags *[]string `json:"tags"`
}

// decodePackageVersions parses a list response and rejects records missing the id, name, or tag list.
// A record without a tag list must never be mistaken for an untagged version.
func decodePackageVersions(body io.Reader) ([]PackageVersion, error) {
	var payloads []packageVersionPayload
	if decodeError := json.NewDecoder(body).Decode(&payloads); decodeError != nil {
		return nil, decodeError
	}

	versions := make([]PackageVersion, 0, len(payloads))
	for payloadIndex, payload := range payloads {
		if missingField := payload.missingField(); len(missingField) > 0 {
			return nil, fmt.Errorf(missingVersionFieldTemplateConstant, payloadIndex, ErrMissingVersionField, missingField)
		}
		versions = append(versions, PackageVersion{
			ID:   *payload.ID,
			Name: *payload.Name,
			Metadata: PackageVersionMetadata{
				PackageType: payload.Metadata.PackageType,
				Container:   ContainerVersionMetadata{Tags: *payload.Metadata.Container.Tags},
			},
		})
	}
	return versions, nil
}

func (payload packageVersionPayload) missingField() string {
	switch {
	case payload.ID == nil:
		return versionIdentifierFieldNameConstant
	case payload.Name == nil:
		return versionNameFieldNameConstant
	case payload.Metadata == nil:
		return versionMetadataFieldNameConstant
	case payload.Metadata.Container == nil:
		return versionContainerFieldNameConstant
	case payload.Metadata.Container.Tags == nil:
		return versionContainerTagsFieldNameConstant
	default:
		return ""
	}
}
