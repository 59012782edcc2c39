package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"
)

const maxPageBytes = 10 << 20

// WebPage is the readable content of a fetched link
type WebPage struct {
	URL   string
	Title string
	Text  string
}

var errPrivateAddress = errors.New("address is not publicly routable")

var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// Fetcher downloads web pages and extracts their main text
type Fetcher struct {
	Client *http.Client
}

// NewFetcher returns a fetcher whose client only connects to public
// addresses, redirects included, and ignores proxy settings.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: 10 * time.Second, Control: dialPublicOnly}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Fetcher{Client: &http.Client{Timeout: timeout, Transport: transport}}
}

func dialPublicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !PublicAddr(ip) {
		return fmt.Errorf("%w: %s", errPrivateAddress, ip)
	}
	return nil
}

// PublicAddr reports whether ip is a globally routable unicast address.
// Loopback, private, link-local (cloud metadata) and shared address space
// are not.
func PublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() && !ip.IsPrivate() && !sharedAddressSpace.Contains(ip)
}

// Fetch validates rawURL, rejects YouTube links and returns the page text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*WebPage, error) {
	link, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	isYT, videoID, err := CheckYouTube(link)
	if err != nil {
		return nil, err
	}
	if isYT {
		log.Warn().Str("video_id", videoID).Msg("YouTube transcripts are not supported")
		return nil, invalid("youtube video %s: transcripts are not supported", videoID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "docflow/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := f.Client.Do(req)
	if err != nil {
		if errors.Is(err, errPrivateAddress) {
			log.Warn().Err(err).Str("url", link).Msg("Refused link to a non-public address")
			return nil, invalid("links to private or local addresses are not allowed")
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", link, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("request failed: %d, %s", resp.StatusCode, string(body))
	}

	u, _ := url.Parse(link)
	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), u)
	if err != nil {
		return nil, fmt.Errorf("failed to extract page content: %w", err)
	}
	log.Debug().Str("url", link).Dur("dur", time.Since(start)).Int("len", len(article.TextContent)).Msg("Fetched web page")
	return &WebPage{
		URL:   link,
		Title: strings.TrimSpace(article.Title),
		Text:  Clean(article.TextContent),
	}, nil
}
