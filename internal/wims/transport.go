package wims

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/wims-bridge-api/pkg/config"
)

// serviceIdent is the identity the WIMS server knows us by. Servers behind
// TLS expect the "https" suffixed variant.
const serviceIdent = "moodlejson"

// transport issues one adm/raw GET per call and classifies the outcome as
// transport success or failure. It performs no retries; that decision
// belongs to callers.
type transport struct {
	serverURL   string
	servicePass string
	identSuffix string
	client      *http.Client
	logger      *zap.Logger
	debug       bool
	// newCode generates the 3-digit correlation code echoed back by the
	// server. Swappable in tests.
	newCode func() string
}

func newTransport(cfg config.WIMSConfig, logger *zap.Logger) *transport {
	if logger == nil {
		logger = zap.NewNop()
	}

	identSuffix := ""
	if strings.HasPrefix(cfg.ServerURL, "https") {
		identSuffix = "https"
	}

	httpTransport := &http.Transport{}
	if cfg.AllowSelfSigned {
		httpTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &transport{
		serverURL:   cfg.ServerURL,
		servicePass: cfg.ServicePassword,
		identSuffix: identSuffix,
		client: &http.Client{
			Transport: httpTransport,
			Timeout:   cfg.RequestTimeout,
		},
		logger: logger,
		debug:  cfg.Debug,
		newCode: func() string {
			return fmt.Sprintf("%d", 100+rand.Intn(900))
		},
	}
}

// call performs one adm/raw request and returns the raw body together with
// the correlation code that the response must echo.
func (t *transport) call(ctx context.Context, job string, params url.Values) ([]byte, string, error) {
	code := t.newCode()

	query := url.Values{}
	query.Set("module", "adm/raw")
	query.Set("job", job)
	query.Set("code", code)
	query.Set("ident", serviceIdent+t.identSuffix)
	query.Set("passwd", t.servicePass)
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}

	fullURL := t.serverURL + "?" + query.Encode()
	if t.debug {
		t.logger.Debug("wims_execute", zap.String("job", job), zap.String("code", code), zap.String("url", fullURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, code, &CommsError{Job: job, Err: err}
	}
	req.Header.Set("User-Agent", "Moodle")

	resp, err := t.client.Do(req)
	if err != nil {
		if t.debug {
			t.logger.Debug("wims_comms_error", zap.String("job", job), zap.Error(err))
		}
		return nil, code, &CommsError{Job: job, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, code, &CommsError{Job: job, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, code, &CommsError{Job: job, Err: fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)}
	}

	if t.debug {
		t.logger.Debug("wims_comms_success", zap.String("job", job), zap.Int("bytes", len(body)))
	}
	return body, code, nil
}
