package ghcr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public GitHub REST API endpoint.
	DefaultBaseURL = "https://api.github.com"

	acceptHeaderNameConstant             = "Accept"
	authorizationHeaderNameConstant      = "Authorization"
	userAgentHeaderNameConstant          = "User-Agent"
	acceptHeaderValueConstant            = "application/vnd.github.v3+json"
	bearerAuthorizationTemplateConstant  = "Bearer %s"
	pageQueryParameterConstant           = "page"
	perPageQueryParameterConstant        = "per_page"
	versionsEndpointTemplateConstant     = "%s/%s/packages/container/%s/versions"
	versionEndpointTemplateConstant      = "%s/%s/packages/container/%s/versions/%s"
	firstPageNumberConstant              = 1
	invalidBaseURLErrorTemplateConstant  = "invalid registry base URL %q: %w"
	relativeBaseURLErrorMessageConstant  = "base URL must include a scheme and host"
	requestBuildErrorTemplateConstant    = "failed to build request: %w"
	requestSendErrorTemplateConstant     = "failed to send request: %w"
	logMessageRequestCompletedConstant   = "registry request completed"
	logMessageRequestFailedConstant      = "registry request failed"
	logMessageClientConfiguredConstant   = "registry client configured"
	logFieldMethodConstant               = "method"
	logFieldURLConstant                  = "url"
	logFieldStatusConstant               = "status"
	logFieldUserAgentConstant            = "user_agent"
	logFieldBaseURLConstant              = "base_url"
	logFieldErrorConstant                = "error"
	baseURLTrailingSeparatorConstant     = "/"
	emptyUserAgentPlaceholderConstant    = "ghcr-cleaner"
	responseDrainLimitBytesConstant      = 64 * 1024
	successfulStatusLowerBoundConstant   = 200
	successfulStatusUpperBoundConstant   = 299
	missingPackageStatusCodeConstant     = http.StatusNotFound
	versionIdentifierNumericBaseConstant = 10
)

var errRelativeBaseURL = errors.New(relativeBaseURLErrorMessageConstant)

// HTTPClient executes HTTP requests. *http.Client satisfies it.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// ClientConfiguration holds the fixed settings of a PackageVersionClient.
type ClientConfiguration struct {
	BaseURL   string
	Token     string
	UserAgent string
	PageSize  int
}

// PackageVersionClient lists and deletes container package versions over the GitHub REST API.
// It holds no mutable state after construction.
type PackageVersionClient struct {
	logger     *zap.Logger
	httpClient HTTPClient
	baseURL    string
	headers    http.Header
	pageSize   int
}

// NewPackageVersionClient validates the configuration and prepares the request headers.
func NewPackageVersionClient(logger *zap.Logger, httpClient HTTPClient, configuration ClientConfiguration) (*PackageVersionClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	token := strings.TrimSpace(configuration.Token)
	if len(token) == 0 {
		return nil, ErrTokenRequired
	}

	baseURL := strings.TrimSpace(configuration.BaseURL)
	if len(baseURL) == 0 {
		baseURL = DefaultBaseURL
	}
	parsedBaseURL, parseError := url.Parse(baseURL)
	if parseError != nil {
		return nil, fmt.Errorf(invalidBaseURLErrorTemplateConstant, baseURL, parseError)
	}
	if len(parsedBaseURL.Scheme) == 0 || len(parsedBaseURL.Host) == 0 {
		return nil, fmt.Errorf(invalidBaseURLErrorTemplateConstant, baseURL, errRelativeBaseURL)
	}

	userAgent := strings.TrimSpace(configuration.UserAgent)
	if len(userAgent) == 0 {
		userAgent = emptyUserAgentPlaceholderConstant
	}

	headers := http.Header{}
	headers.Set(acceptHeaderNameConstant, acceptHeaderValueConstant)
	headers.Set(authorizationHeaderNameConstant, fmt.Sprintf(bearerAuthorizationTemplateConstant, token))
	headers.Set(userAgentHeaderNameConstant, userAgent)

	pageSize := configuration.PageSize
	if pageSize < 0 {
		pageSize = 0
	}

	trimmedBaseURL := strings.TrimSuffix(parsedBaseURL.String(), baseURLTrailingSeparatorConstant)
	logger.Debug(
		logMessageClientConfiguredConstant,
		zap.String(logFieldBaseURLConstant, trimmedBaseURL),
		zap.String(logFieldUserAgentConstant, userAgent),
	)

	return &PackageVersionClient{
		logger:     logger,
		httpClient: httpClient,
		baseURL:    trimmedBaseURL,
		headers:    headers,
		pageSize:   pageSize,
	}, nil
}

// ListVersions fetches one page of versions of a container package. Pages start at 1;
// smaller values are treated as the first page.
func (client *PackageVersionClient) ListVersions(executionContext context.Context, owner PackageOwner, packageName string, page int) ([]PackageVersion, error) {
	if page < firstPageNumberConstant {
		page = firstPageNumberConstant
	}

	query := url.Values{}
	query.Set(pageQueryParameterConstant, strconv.Itoa(page))
	if client.pageSize > 0 {
		query.Set(perPageQueryParameterConstant, strconv.Itoa(client.pageSize))
	}

	endpoint := fmt.Sprintf(
		versionsEndpointTemplateConstant,
		client.baseURL,
		owner.PathSegment(),
		url.PathEscape(packageName),
	) + "?" + query.Encode()

	response, requestError := client.send(executionContext, http.MethodGet, endpoint)
	if requestError != nil {
		return nil, requestError
	}
	defer response.Body.Close()

	if response.StatusCode == missingPackageStatusCodeConstant {
		drainBody(response.Body)
		return nil, &PackageNotFoundError{Owner: owner, PackageName: packageName}
	}
	if !isSuccessfulStatus(response.StatusCode) {
		drainBody(response.Body)
		return nil, &UnexpectedStatusError{StatusCode: response.StatusCode}
	}

	versions, decodeError := decodePackageVersions(response.Body)
	if decodeError != nil {
		return nil, &ResponseDecodingError{Cause: decodeError}
	}

	return versions, nil
}

// DeleteVersion removes a single package version. The registry answers 204 even for
// unknown identifiers, so success does not prove the version existed.
func (client *PackageVersionClient) DeleteVersion(executionContext context.Context, owner PackageOwner, packageName string, versionID string) error {
	endpoint := fmt.Sprintf(
		versionEndpointTemplateConstant,
		client.baseURL,
		owner.PathSegment(),
		url.PathEscape(packageName),
		url.PathEscape(versionID),
	)

	response, requestError := client.send(executionContext, http.MethodDelete, endpoint)
	if requestError != nil {
		return requestError
	}
	defer response.Body.Close()
	drainBody(response.Body)

	return nil
}

// FormatVersionID renders a numeric version identifier for DeleteVersion.
func FormatVersionID(versionID int64) string {
	return strconv.FormatInt(versionID, versionIdentifierNumericBaseConstant)
}

func (client *PackageVersionClient) send(executionContext context.Context, method string, endpoint string) (*http.Response, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}

	request, buildError := http.NewRequestWithContext(executionContext, method, endpoint, nil)
	if buildError != nil {
		return nil, fmt.Errorf(requestBuildErrorTemplateConstant, buildError)
	}
	for headerName, headerValues := range client.headers {
		request.Header[headerName] = append([]string(nil), headerValues...)
	}

	response, sendError := client.httpClient.Do(request)
	if sendError != nil {
		client.logger.Debug(
			logMessageRequestFailedConstant,
			zap.String(logFieldMethodConstant, method),
			zap.String(logFieldURLConstant, endpoint),
			zap.String(logFieldErrorConstant, sendError.Error()),
		)
		return nil, fmt.Errorf(requestSendErrorTemplateConstant, sendError)
	}

	client.logger.Debug(
		logMessageRequestCompletedConstant,
		zap.String(logFieldMethodConstant, method),
		zap.String(logFieldURLConstant, endpoint),
		zap.Int(logFieldStatusConstant, response.StatusCode),
	)

	return response, nil
}

func isSuccessfulStatus(statusCode int) bool {
	return statusCode >= successfulStatusLowerBoundConstant && statusCode <= successfulStatusUpperBoundConstant
}

func drainBody(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, responseDrainLimitBytesConstant))
}
