package packages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/temirov/ghcr-cleaner/internal/githubauth"
	pathutils "github.com/temirov/ghcr-cleaner/internal/utils/path"
)

const (
	tokenSourceSeparatorConstant               = ":"
	environmentTokenSourceTypeValueConstant    = "env"
	fileTokenSourceTypeValueConstant           = "file"
	tokenSourceMissingErrorMessageConstant     = "token source must be provided"
	environmentNameMissingErrorMessageConstant = "environment variable name must be provided"
	filePathMissingErrorMessageConstant        = "token file path must be provided"
	environmentTokenMissingTemplateConstant    = "%w: environment variable %s is not set"
	fileReadErrorTemplateConstant              = "unable to read token file %s: %w"
	fileTokenEmptyErrorTemplateConstant        = "%w: token file %s is empty"
	unsupportedTokenSourceTemplateConstant     = "unsupported token source type %q"
	ambientTokenMissingTemplateConstant        = "%w: no GitHub token found: pass --token or set one of %s"
	ambientTokenVariableSeparatorConstant      = ", "
)

// ErrTokenNotFound indicates that no credential source produced a token.
var ErrTokenNotFound = errors.New("github token not found")

// TokenSourceType enumerates the supported token retrieval mechanisms.
type TokenSourceType string

// Token source type enumerations. TokenSourceTypeAmbient consults the standard
// GitHub token environment variables in preference order.
const (
	TokenSourceTypeAmbient     TokenSourceType = ""
	TokenSourceTypeEnvironment TokenSourceType = TokenSourceType(environmentTokenSourceTypeValueConstant)
	TokenSourceTypeFile        TokenSourceType = TokenSourceType(fileTokenSourceTypeValueConstant)
)

// TokenSourceConfiguration specifies how to locate a credentials token.
// The zero value selects the ambient environment variables.
type TokenSourceConfiguration struct {
	Type      TokenSourceType
	Reference string
}

// FileTokenSource returns a source that reads the token from path.
func FileTokenSource(path string) TokenSourceConfiguration {
	return TokenSourceConfiguration{Type: TokenSourceTypeFile, Reference: path}
}

// TokenResolver retrieves authentication tokens from configured sources.
type TokenResolver interface {
	ResolveToken(resolutionContext context.Context, source TokenSourceConfiguration) (string, error)
}

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// FileReader reads the contents of a file path.
type FileReader func(path string) ([]byte, error)

// NewTokenResolver creates a token resolver with optional dependency overrides.
func NewTokenResolver(environmentLookup EnvironmentLookup, fileReader FileReader) TokenResolver {
	resolvedEnvironmentLookup := environmentLookup
	if resolvedEnvironmentLookup == nil {
		resolvedEnvironmentLookup = os.LookupEnv
	}

	resolvedFileReader := fileReader
	if resolvedFileReader == nil {
		resolvedFileReader = os.ReadFile
	}

	return &tokenResolver{
		environmentLookup: resolvedEnvironmentLookup,
		fileReader:        resolvedFileReader,
		homeExpander:      pathutils.NewHomeExpander(),
	}
}

// ParseTokenSource interprets textual token source declarations such as
// "env:NAME" or "file:/path". A bare value names an environment variable.
func ParseTokenSource(sourceValue string) (TokenSourceConfiguration, error) {
	trimmedValue := strings.TrimSpace(sourceValue)
	if len(trimmedValue) == 0 {
		return TokenSourceConfiguration{}, errors.New(tokenSourceMissingErrorMessageConstant)
	}

	components := strings.SplitN(trimmedValue, tokenSourceSeparatorConstant, 2)
	if len(components) == 1 {
		return TokenSourceConfiguration{
			Type:      TokenSourceTypeEnvironment,
			Reference: trimmedValue,
		}, nil
	}

	sourceType := strings.ToLower(strings.TrimSpace(components[0]))
	reference := strings.TrimSpace(components[1])

	switch sourceType {
	case environmentTokenSourceTypeValueConstant:
		if len(reference) == 0 {
			return TokenSourceConfiguration{}, errors.New(environmentNameMissingErrorMessageConstant)
		}
		return TokenSourceConfiguration{Type: TokenSourceTypeEnvironment, Reference: reference}, nil
	case fileTokenSourceTypeValueConstant:
		if len(reference) == 0 {
			return TokenSourceConfiguration{}, errors.New(filePathMissingErrorMessageConstant)
		}
		return TokenSourceConfiguration{Type: TokenSourceTypeFile, Reference: reference}, nil
	default:
		return TokenSourceConfiguration{}, fmt.Errorf(unsupportedTokenSourceTemplateConstant, sourceType)
	}
}

type tokenResolver struct {
	environmentLookup EnvironmentLookup
	fileReader        FileReader
	homeExpander      *pathutils.HomeExpander
}

func (resolver *tokenResolver) ResolveToken(resolutionContext context.Context, source TokenSourceConfiguration) (string, error) {
	_ = resolutionContext
	switch source.Type {
	case TokenSourceTypeAmbient:
		token, _, found := githubauth.ResolveToken(githubauth.EnvironmentLookup(resolver.environmentLookup))
		if !found {
			return "", fmt.Errorf(
				ambientTokenMissingTemplateConstant,
				ErrTokenNotFound,
				strings.Join(githubauth.TokenVariableNames(), ambientTokenVariableSeparatorConstant),
			)
		}
		return token, nil
	case TokenSourceTypeEnvironment:
		value, found := resolver.environmentLookup(source.Reference)
		trimmedValue := strings.TrimSpace(value)
		if !found || len(trimmedValue) == 0 {
			return "", fmt.Errorf(environmentTokenMissingTemplateConstant, ErrTokenNotFound, source.Reference)
		}
		return trimmedValue, nil
	case TokenSourceTypeFile:
		tokenPath := resolver.homeExpander.Expand(strings.TrimSpace(source.Reference))
		contents, readError := resolver.fileReader(tokenPath)
		if readError != nil {
			return "", fmt.Errorf(fileReadErrorTemplateConstant, tokenPath, readError)
		}
		trimmedValue := strings.TrimSpace(string(contents))
		if len(trimmedValue) == 0 {
			return "", fmt.Errorf(fileTokenEmptyErrorTemplateConstant, ErrTokenNotFound, tokenPath)
		}
		return trimmedValue, nil
	default:
		return "", fmt.Errorf(unsupportedTokenSourceTemplateConstant, source.Type)
	}
}
