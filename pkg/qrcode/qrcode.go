package qrcode

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// QRService renders links to a page as PNG QR codes so a checkout can be
// continued on another device.
type QRService struct {
	baseURL string // e.g. "https://shop.example/"
}

func NewQRService(baseURL string) *QRService {
	return &QRService{
		baseURL: baseURL,
	}
}

// Link resolves pagePath and rawQuery against the base URL.
func (s *QRService) Link(pagePath, rawQuery string) (string, error) {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", s.baseURL, err)
	}
	if !base.IsAbs() {
		return "", fmt.Errorf("base url %q is not absolute", s.baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	ref, err := url.Parse(strings.TrimPrefix(pagePath, "/"))
	if err != nil {
		return "", err
	}
	u := base.ResolveReference(ref)
	u.RawQuery = rawQuery
	return u.String(), nil
}

// GenerateQRCode returns a PNG QR code of size x size pixels for the page link.
func (s *QRService) GenerateQRCode(pagePath, rawQuery string, size int) ([]byte, error) {
	link, err := s.Link(pagePath, rawQuery)
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code PNG: %w", err)
	}

	return png, nil
}
