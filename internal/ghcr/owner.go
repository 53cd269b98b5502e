package ghcr

import (
	"errors"
	"net/url"
	"strings"
)

const (
	ownerTypeUserConstant                OwnerType = "user"
	ownerTypeOrganizationConstant        OwnerType = "org"
	usersPathSegmentConstant                       = "users"
	organizationsPathSegmentConstant               = "orgs"
	ownerPathSeparatorConstant                     = "/"
	ownerNotProvidedErrorMessageConstant           = "neither a user nor an organization owner was provided"
	ownerConflictErrorMessageConstant              = "a user owner and an organization owner cannot both be provided"
)

var (
	// ErrOwnerNotProvided indicates that neither a user nor an organization was supplied.
	ErrOwnerNotProvided = errors.New(ownerNotProvidedErrorMessageConstant)
	// ErrOwnerConflict indicates that both a user and an organization were supplied.
	ErrOwnerConflict = errors.New(ownerConflictErrorMessageConstant)
)

// OwnerType enumerates supported GHCR owner scopes.
type OwnerType string

// UserOwnerType identifies GitHub user-owned container packages.
const UserOwnerType OwnerType = ownerTypeUserConstant

// OrganizationOwnerType identifies organization-owned container packages.
const OrganizationOwnerType OwnerType = ownerTypeOrganizationConstant

// PathSegment resolves the REST API collection segment for the owner type.
func (ownerType OwnerType) PathSegment() string {
	switch ownerType {
	case OrganizationOwnerType:
		return organizationsPathSegmentConstant
	default:
		return usersPathSegmentConstant
	}
}

// PackageOwner identifies the account a container package is published under.
// The zero value is not a valid owner.
type PackageOwner struct {
	ownerType OwnerType
	name      string
}

// NewPackageOwner builds an owner from mutually exclusive user and organization names.
func NewPackageOwner(userName string, organizationName string) (PackageOwner, error) {
	trimmedUserName := strings.TrimSpace(userName)
	trimmedOrganizationName := strings.TrimSpace(organizationName)

	switch {
	case len(trimmedUserName) > 0 && len(trimmedOrganizationName) > 0:
		return PackageOwner{}, ErrOwnerConflict
	case len(trimmedUserName) > 0:
		return NewUserOwner(trimmedUserName), nil
	case len(trimmedOrganizationName) > 0:
		return NewOrganizationOwner(trimmedOrganizationName), nil
	default:
		return PackageOwner{}, ErrOwnerNotProvided
	}
}

// NewUserOwner returns an owner scoped to a GitHub user account.
func NewUserOwner(userName string) PackageOwner {
	return PackageOwner{ownerType: UserOwnerType, name: userName}
}

// NewOrganizationOwner returns an owner scoped to a GitHub organization.
func NewOrganizationOwner(organizationName string) PackageOwner {
	return PackageOwner{ownerType: OrganizationOwnerType, name: organizationName}
}

// Type reports whether the owner is a user or an organization.
func (owner PackageOwner) Type() OwnerType {
	return owner.ownerType
}

// Name returns the account login.
func (owner PackageOwner) Name() string {
	return owner.name
}

// IsZero reports whether the owner was never constructed.
func (owner PackageOwner) IsZero() bool {
	return len(owner.ownerType) == 0 || len(owner.name) == 0
}

// PathSegment renders the escaped owner portion of package endpoints, e.g. "orgs/example".
func (owner PackageOwner) PathSegment() string {
	return owner.ownerType.PathSegment() + ownerPathSeparatorConstant + url.PathEscape(owner.name)
}

// String returns the owner login for display.
func (owner PackageOwner) String() string {
	return owner.name
}
