// Package githubauth discovers GitHub credentials from the environment.
package githubauth

import (
	"os"
	"strings"
)

// Environment variable names consulted for a GitHub token, in preference order.
const (
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"
)

var tokenPreference = []string{
	EnvGitHubToken,
	EnvGitHubCLIToken,
	EnvGitHubAPIToken,
}

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// TokenVariableNames lists the environment variables ResolveToken consults.
func TokenVariableNames() []string {
	names := make([]string, len(tokenPreference))
	copy(names, tokenPreference)
	return names
}

// ResolveToken returns the first non-empty token found through lookup, or through
// the process environment when lookup is nil. The second result names the variable used.
func ResolveToken(lookup EnvironmentLookup) (string, string, bool) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, key := range tokenPreference {
		value, exists := lookup(key)
		if !exists {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) == 0 {
			continue
		}
		return value, key, true
	}
	return "", "", false
}
