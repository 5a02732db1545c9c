package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// objectPathMarker is the path segment every managed storage object URL carries
const objectPathMarker = "/storage/v1/object/"

// hostedSuffix recognizes managed storage hosts when no base URL is configured
const hostedSuffix = ".supabase.co"

// accessPrefixes are the access modes that may precede the bucket name
var accessPrefixes = []string{"public/", "sign/", "authenticated/"}

// ObjectRef locates one object in the managed storage
type ObjectRef struct {
	Origin string
	Bucket string
	Path   string
}

// Key returns a stable bucket/path identifier
func (r ObjectRef) Key() string {
	return r.Bucket + "/" + r.Path
}

// Client talks to the object storage HTTP API
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewClient creates a new object storage client
func NewClient(baseURL, serviceKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ParseObjectURL reports whether raw points into the managed storage and, if so,
// splits it into bucket and object path.
func (c *Client) ParseObjectURL(raw string) (ObjectRef, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ObjectRef{}, false
	}

	if !c.ownsHost(u.Host) {
		return ObjectRef{}, false
	}

	idx := strings.Index(u.Path, objectPathMarker)
	if idx < 0 {
		return ObjectRef{}, false
	}

	rest := u.Path[idx+len(objectPathMarker):]
	for _, prefix := range accessPrefixes {
		if strings.HasPrefix(rest, prefix) {
			rest = strings.TrimPrefix(rest, prefix)
			break
		}
	}

	bucket, objectPath, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || objectPath == "" {
		return ObjectRef{}, false
	}

	origin := c.baseURL
	if origin == "" {
		origin = u.Scheme + "://" + u.Host
	}

	return ObjectRef{Origin: origin, Bucket: bucket, Path: objectPath}, true
}

func (c *Client) ownsHost(host string) bool {
	if c.baseURL != "" {
		base, err := url.Parse(c.baseURL)
		return err == nil && strings.EqualFold(base.Host, host)
	}
	return strings.HasSuffix(strings.ToLower(host), hostedSuffix)
}

type signRequest struct {
	ExpiresIn int `json:"expiresIn"`
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
}

// CreateSignedURL mints a time-bounded URL for ref. With download set, the
// storage answers with an attachment content-disposition.
func (c *Client) CreateSignedURL(ctx context.Context, ref ObjectRef, ttl time.Duration, download bool) (string, error) {
	body, err := json.Marshal(signRequest{ExpiresIn: int(ttl.Seconds())})
	if err != nil {
		return "", fmt.Errorf("failed to marshal sign request: %w", err)
	}

	endpoint := ref.Origin + "/storage/v1/object/sign/" + escapePath(ref.Bucket) + "/" + escapePath(ref.Path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceKey)
		req.Header.Set("apikey", c.serviceKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sign request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("sign request for %s returned %d: %s", ref.Key(), resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out signResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode sign response: %w", err)
	}
	if out.SignedURL == "" {
		return "", fmt.Errorf("sign response for %s has no signedURL", ref.Key())
	}

	signed := out.SignedURL
	if !strings.HasPrefix(signed, "http://") && !strings.HasPrefix(signed, "https://") {
		signed = ref.Origin + "/storage/v1" + signed
	}

	if download {
		sep := "?"
		if strings.Contains(signed, "?") {
			sep = "&"
		}
		signed += sep + "download="
	}

	return signed, nil
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
