// internal/captcha/captcha.go
//
// Formpipe – reCAPTCHA verification client.
//
// Context
//   The recaptcha field type posts the widget's response token under
//   `g-recaptcha-response`.  Verifier implements form.CaptchaVerifier by
//   POSTing the token and the field's secret to the siteverify endpoint and
//   reading the `success` flag from the JSON reply.
//
//   Transport is go-retryablehttp over a cleanhttp pooled client, so a
//   transient 5xx or connection reset is retried a couple of times with
//   backoff before the check is reported as an error.  The processor treats
//   an error exactly like a failed check.
//
//------------------------------------------------------------------------------

package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/yanizio/formpipe/internal/metrics"
)

// DefaultEndpoint is Google's verification URL.
const DefaultEndpoint = "https://www.google.com/recaptcha/api/siteverify"

// Options tune a Verifier.  Zero values select the defaults.
type Options struct {
	Endpoint string
	Timeout  time.Duration // per attempt, default 5s
	RetryMax int           // default 2
	Logger   *zap.SugaredLogger
}

// Verifier checks reCAPTCHA tokens.  Safe for concurrent use.
type Verifier struct {
	client   *retryablehttp.Client
	endpoint string
	log      *zap.SugaredLogger
}

type siteverifyReply struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// New returns a Verifier configured by opts.
func New(opts Options) *Verifier {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 2
	}
	if opts.Logger == nil {
		opts.Logger = zap.S()
	}

	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = opts.Timeout

	rc := retryablehttp.NewClient()
	rc.HTTPClient = hc
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = leveled{opts.Logger}

	return &Verifier{client: rc, endpoint: opts.Endpoint, log: opts.Logger}
}

// Verify implements form.CaptchaVerifier.  An empty token fails without a
// network call.
func (v *Verifier) Verify(ctx context.Context, token, secret string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		metrics.CaptchaChecksTotal.WithLabelValues("fail").Inc()
		return false, nil
	}

	ok, err := v.verify(ctx, token, secret)
	switch {
	case err != nil:
		metrics.CaptchaChecksTotal.WithLabelValues("error").Inc()
		v.log.Warnw("captcha verify failed", "error", err)
	case ok:
		metrics.CaptchaChecksTotal.WithLabelValues("pass").Inc()
	default:
		metrics.CaptchaChecksTotal.WithLabelValues("fail").Inc()
	}
	return ok, err
}

func (v *Verifier) verify(ctx context.Context, token, secret string) (bool, error) {
	body := url.Values{"secret": {secret}, "response": {token}}.Encode()
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("captcha siteverify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("captcha siteverify: status %d", resp.StatusCode)
	}

	var reply siteverifyReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&reply); err != nil {
		return false, fmt.Errorf("captcha reply: %w", err)
	}
	if !reply.Success {
		v.log.Debugw("captcha rejected", "codes", reply.ErrorCodes)
	}
	return reply.Success, nil
}

// leveled adapts a zap SugaredLogger to retryablehttp.LeveledLogger.
type leveled struct{ s *zap.SugaredLogger }

func (l leveled) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveled) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveled) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveled) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
