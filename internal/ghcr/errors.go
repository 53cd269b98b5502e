package ghcr

import (
	"errors"
	"fmt"
)

const (
	packageNotFoundErrorTemplateConstant  = "package %s/%s does not exist"
	unexpectedStatusErrorTemplateConstant = "server returned status %d"
	responseDecodingErrorTemplateConstant = "failed to parse reply as json: %v"
	tokenRequiredErrorMessageConstant     = "github token must be provided"
)

// ErrTokenRequired indicates the client was configured without a bearer token.
var ErrTokenRequired = errors.New(tokenRequiredErrorMessageConstant)

// PackageNotFoundError reports that the registry has no such package for the owner.
type PackageNotFoundError struct {
	Owner       PackageOwner
	PackageName string
}

// Error describes the missing package.
func (notFoundError *PackageNotFoundError) Error() string {
	return fmt.Sprintf(packageNotFoundErrorTemplateConstant, notFoundError.Owner, notFoundError.PackageName)
}

// UnexpectedStatusError reports a non-success status other than 404.
type UnexpectedStatusError struct {
	StatusCode int
}

// Error describes the status.
func (statusError *UnexpectedStatusError) Error() string {
	return fmt.Sprintf(unexpectedStatusErrorTemplateConstant, statusError.StatusCode)
}

// ResponseDecodingError reports a malformed list response body.
type ResponseDecodingError struct {
	Cause error
}

// Error describes the decoding failure.
func (decodingError *ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Cause)
}

// Unwrap exposes the decoder error.
func (decodingError *ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}
