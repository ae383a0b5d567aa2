package enrich

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/oschwald/geoip2-golang"
)

const (
	LocationLocal   = "local"
	LocationUnknown = "unknown"

	DefaultHomeCountry = "CN"
	defaultLanguage    = "en"
)

// cityReader is the part of *geoip2.Reader the locator needs.
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// Locator maps IP addresses to a coarse location label. It is loaded once
// and read concurrently without locking.
type Locator struct {
	db          cityReader
	homeCountry string
	language    string
}

// NewLocator wraps an open database. A nil db yields a locator that
// answers LocationUnknown for every routable address.
func NewLocator(db cityReader, homeCountry string) *Locator {
	if homeCountry == "" {
		homeCountry = DefaultHomeCountry
	}
	return &Locator{db: db, homeCountry: strings.ToUpper(homeCountry), language: defaultLanguage}
}

// Loaded reports whether a database is available.
func (l *Locator) Loaded() bool {
	return l != nil && l.db != nil
}

// Lookup returns "local" for loopback and private addresses, the region
// (falling back to the country) for home-country addresses, the country for
// foreign ones and "unknown" when nothing can be said.
func (l *Locator) Lookup(ip string) (location string) {
	defer func() {
		if r := recover(); r != nil {
			location = LocationUnknown
		}
	}()

	addr := net.ParseIP(strings.TrimSpace(ip))
	if strings.EqualFold(strings.TrimSpace(ip), "localhost") {
		return LocationLocal
	}
	if addr == nil {
		return LocationUnknown
	}
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
		return LocationLocal
	}
	if !l.Loaded() {
		return LocationUnknown
	}

	rec, err := l.db.City(addr)
	if err != nil || rec == nil {
		return LocationUnknown
	}

	country := l.name(rec.Country.Names)
	if strings.EqualFold(rec.Country.IsoCode, l.homeCountry) {
		if len(rec.Subdivisions) > 0 {
			if region := l.name(rec.Subdivisions[0].Names); region != "" {
				return region
			}
		}
	}
	if country == "" {
		return LocationUnknown
	}
	return country
}

// Close releases the database, if any.
func (l *Locator) Close() error {
	if !l.Loaded() {
		return nil
	}
	return l.db.Close()
}

func (l *Locator) name(names map[string]string) string {
	if n := names[l.language]; n != "" {
		return n
	}
	return names[defaultLanguage]
}

// S3Options configure fetching the database from an S3-compatible store.
type S3Options struct {
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

var (
	openGeoFile = func(path string) (cityReader, error) {
		r, err := geoip2.Open(path)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	openGeoBytes = func(b []byte) (cityReader, error) {
		r, err := geoip2.FromBytes(b)
		if err != nil {
			return nil, err
		}
		return r, nil
	}

	fetchS3Object = func(ctx context.Context, opts S3Options, bucket, key string) ([]byte, error) {
		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion(opts.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
		if err != nil {
			return nil, err
		}

		client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			if opts.BaseEndpoint != "" {
				o.BaseEndpoint = aws.String(opts.BaseEndpoint)
				o.UsePathStyle = true
			}
		})

		out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		if err != nil {
			return nil, err
		}
		defer out.Body.Close()
		return io.ReadAll(out.Body)
	}
)

// OpenLocator loads the database named by source: a local path or
// s3://bucket/key. It is called once at startup and never fails; the
// outcome is logged and a failed load yields a locator that reports
// LocationUnknown for routable addresses.
func OpenLocator(ctx context.Context, source, homeCountry string, s3opts S3Options, logger logging.Logger) *Locator {
	if logger == nil {
		logger = logging.Nop{}
	}
	logger = logger.With("module", "geo")

	db, err := openSource(ctx, source, s3opts)
	if err != nil {
		logger.Error(ctx, "geolocation database unavailable", "source", source, "error", err)
		return NewLocator(nil, homeCountry)
	}
	logger.Info(ctx, "geolocation database loaded", "source", source)
	return NewLocator(db, homeCountry)
}

func openSource(ctx context.Context, source string, s3opts S3Options) (cityReader, error) {
	if source == "" {
		return nil, fmt.Errorf("no geolocation database configured")
	}

	if rest, ok := strings.CutPrefix(source, "s3://"); ok {
		bucket, key, found := strings.Cut(rest, "/")
		if !found || bucket == "" || key == "" {
			return nil, fmt.Errorf("invalid s3 source %q", source)
		}
		b, err := fetchS3Object(ctx, s3opts, bucket, key)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", source, err)
		}
		return openGeoBytes(b)
	}

	if _, err := os.Stat(source); err != nil {
		return nil, err
	}
	return openGeoFile(source)
}
