package storage

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// ProviderParams are the explicit arguments accepted by every provider
// constructor. Empty fields fall back to the provider's environment variables.
type ProviderParams struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Endpoint overrides the provider hostname (required for MinIO and Custom)
	Endpoint string

	// AccountID is the Cloudflare account that owns the R2 bucket
	AccountID string

	// Jurisdiction restricts R2 to a data-locality zone ("eu", "fedramp")
	Jurisdiction string

	// PathStyle forces path-style addressing for providers that default to virtual hosts
	PathStyle bool
}

// envNames lists the variables consulted, in order, for each field
type envNames struct {
	region       []string
	accessKey    []string
	secretKey    []string
	sessionToken []string
	endpoint     []string
	accountID    []string
	jurisdiction []string
}

type preset struct {
	name          string
	defaultRegion string
	pathStyle     bool
	env           envNames

	// hostname builds the endpoint from resolved params. nil means Endpoint is required.
	hostname func(p ProviderParams) (string, []string)
}

var presets = map[string]preset{
	"aws": {
		name: "aws",
		env: envNames{
			region:       []string{"AWS_REGION", "AWS_DEFAULT_REGION"},
			accessKey:    []string{"AWS_ACCESS_KEY_ID"},
			secretKey:    []string{"AWS_SECRET_ACCESS_KEY"},
			sessionToken: []string{"AWS_SESSION_TOKEN"},
			endpoint:     []string{"AWS_ENDPOINT_URL_S3"},
		},
		hostname: func(p ProviderParams) (string, []string) {
			if p.Region == "" {
				return "", nil
			}
			return "s3." + p.Region + ".amazonaws.com", nil
		},
	},
	"cloudflare": {
		name:          "cloudflare",
		defaultRegion: "auto",
		env: envNames{
			accessKey:    []string{"CLOUDFLARE_ACCESS_KEY_ID"},
			secretKey:    []string{"CLOUDFLARE_SECRET_ACCESS_KEY"},
			accountID:    []string{"CLOUDFLARE_ACCOUNT_ID"},
			jurisdiction: []string{"CLOUDFLARE_JURISDICTION"},
		},
		hostname: func(p ProviderParams) (string, []string) {
			if p.AccountID == "" {
				return "", []string{"account id"}
			}
			if p.Jurisdiction != "" {
				return p.AccountID + "." + p.Jurisdiction + ".r2.cloudflarestorage.com", nil
			}
			return p.AccountID + ".r2.cloudflarestorage.com", nil
		},
	},
	"backblaze": {
		name: "backblaze",
		env: envNames{
			region:    []string{"BACKBLAZE_REGION"},
			accessKey: []string{"BACKBLAZE_APPLICATION_KEY_ID"},
			secretKey: []string{"BACKBLAZE_APPLICATION_KEY"},
		},
		hostname: func(p ProviderParams) (string, []string) {
			if p.Region == "" {
				return "", nil
			}
			return "s3." + p.Region + ".backblazeb2.com", nil
		},
	},
	"digitalocean": {
		name: "digitalocean",
		env: envNames{
			region:    []string{"SPACES_REGION"},
			accessKey: []string{"SPACES_KEY"},
			secretKey: []string{"SPACES_SECRET"},
		},
		hostname: func(p ProviderParams) (string, []string) {
			if p.Region == "" {
				return "", nil
			}
			return p.Region + ".digitaloceanspaces.com", nil
		},
	},
	"minio": {
		name:          "minio",
		defaultRegion: "us-east-1",
		pathStyle:     true,
		env: envNames{
			region:    []string{"MINIO_REGION"},
			accessKey: []string{"MINIO_ACCESS_KEY", "MINIO_ROOT_USER"},
			secretKey: []string{"MINIO_SECRET_KEY", "MINIO_ROOT_PASSWORD"},
			endpoint:  []string{"MINIO_ENDPOINT"},
		},
	},
	"wasabi": {
		name: "wasabi",
		env: envNames{
			region:    []string{"WASABI_REGION"},
			accessKey: []string{"WASABI_ACCESS_KEY_ID"},
			secretKey: []string{"WASABI_SECRET_ACCESS_KEY"},
		},
		hostname: func(p ProviderParams) (string, []string) {
			if p.Region == "" {
				return "", nil
			}
			return "s3." + p.Region + ".wasabisys.com", nil
		},
	},
	"tigris": {
		name:          "tigris",
		defaultRegion: "auto",
		env: envNames{
			accessKey: []string{"TIGRIS_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"},
			secretKey: []string{"TIGRIS_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"},
			endpoint:  []string{"TIGRIS_ENDPOINT"},
		},
		hostname: func(ProviderParams) (string, []string) {
			return "t3.storage.dev", nil
		},
	},
	"custom": {
		name: "custom",
		env: envNames{
			region:    []string{"S3_REGION"},
			accessKey: []string{"S3_ACCESS_KEY_ID"},
			secretKey: []string{"S3_SECRET_ACCESS_KEY"},
			endpoint:  []string{"S3_ENDPOINT"},
		},
	},
}

// Providers returns the supported provider names
func Providers() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FromProvider builds a client for a named provider preset
func FromProvider(name string, p ProviderParams) (*Client, error) {
	pr, ok := presets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownProvider, name, strings.Join(Providers(), ", "))
	}
	return pr.build(p)
}

// AWS resolves AWS_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN
func AWS(p ProviderParams) (*Client, error) { return presets["aws"].build(p) }

// Cloudflare resolves CLOUDFLARE_ACCOUNT_ID, CLOUDFLARE_ACCESS_KEY_ID,
// CLOUDFLARE_SECRET_ACCESS_KEY and CLOUDFLARE_JURISDICTION. Region is always "auto".
func Cloudflare(p ProviderParams) (*Client, error) { return presets["cloudflare"].build(p) }

// Backblaze resolves BACKBLAZE_REGION, BACKBLAZE_APPLICATION_KEY_ID and BACKBLAZE_APPLICATION_KEY
func Backblaze(p ProviderParams) (*Client, error) { return presets["backblaze"].build(p) }

// DigitalOcean resolves SPACES_REGION, SPACES_KEY and SPACES_SECRET
func DigitalOcean(p ProviderParams) (*Client, error) { return presets["digitalocean"].build(p) }

// MinIO resolves MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY. Buckets are path-style.
func MinIO(p ProviderParams) (*Client, error) { return presets["minio"].build(p) }

// Wasabi resolves WASABI_REGION, WASABI_ACCESS_KEY_ID and WASABI_SECRET_ACCESS_KEY
func Wasabi(p ProviderParams) (*Client, error) { return presets["wasabi"].build(p) }

// Tigris resolves TIGRIS_ACCESS_KEY_ID and TIGRIS_SECRET_ACCESS_KEY
func Tigris(p ProviderParams) (*Client, error) { return presets["tigris"].build(p) }

// Custom resolves S3_ENDPOINT, S3_REGION, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY
func Custom(p ProviderParams) (*Client, error) { return presets["custom"].build(p) }

func (pr preset) build(p ProviderParams) (*Client, error) {
	p.Region = firstNonEmpty(p.Region, lookupEnv(pr.env.region), pr.defaultRegion)
	p.AccessKeyID = firstNonEmpty(p.AccessKeyID, lookupEnv(pr.env.accessKey))
	p.SecretAccessKey = firstNonEmpty(p.SecretAccessKey, lookupEnv(pr.env.secretKey))
	p.SessionToken = firstNonEmpty(p.SessionToken, lookupEnv(pr.env.sessionToken))
	p.Endpoint = firstNonEmpty(p.Endpoint, lookupEnv(pr.env.endpoint))
	p.AccountID = firstNonEmpty(p.AccountID, lookupEnv(pr.env.accountID))
	p.Jurisdiction = firstNonEmpty(p.Jurisdiction, lookupEnv(pr.env.jurisdiction))

	var missing []string
	hostname := p.Endpoint
	if hostname == "" && pr.hostname != nil {
		var m []string
		hostname, m = pr.hostname(p)
		missing = append(missing, m...)
	}
	if hostname == "" && pr.hostname == nil {
		missing = append(missing, "endpoint")
	}
	if p.Region == "" {
		missing = append(missing, "region")
	}
	if p.AccessKeyID == "" {
		missing = append(missing, "access key id")
	}
	if p.SecretAccessKey == "" {
		missing = append(missing, "secret access key")
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Provider: pr.name, Missing: missing}
	}

	return newClient(pr.name, CustomParams{
		Hostname:        hostname,
		Region:          p.Region,
		AccessKeyID:     p.AccessKeyID,
		SecretAccessKey: p.SecretAccessKey,
		SessionToken:    p.SessionToken,
		PathStyle:       pr.pathStyle || p.PathStyle,
	})
}

// lookupEnv returns the first non-empty variable among names
func lookupEnv(names []string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
