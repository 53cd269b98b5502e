// Package ghcr provides a typed client for the GitHub Container Registry package APIs.
//
// It defines PackageOwner (user or organization scope), the PackageVersion model
// decoded from the package versions endpoint, and PackageVersionClient which lists
// versions one page at a time and deletes versions by identifier. Error types
// distinguish a missing package, an unexpected status, and a malformed response.
package ghcr
