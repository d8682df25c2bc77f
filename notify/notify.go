// Package notify posts submitted questionnaires to the downstream
// automation endpoint. Delivery is best effort and never reported back.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/lestrrat-go/backoff/v2"
	"github.com/mbolis/quick-questionnaire/export"
	"github.com/mbolis/quick-questionnaire/log"
	"github.com/mbolis/quick-questionnaire/model"
)

const DefaultTimeout = 10 * time.Second

type Payload struct {
	QuestionnaireID string        `json:"questionnaire_id"`
	Variant         model.Variant `json:"variant"`
	ClientName      string        `json:"client_name"`
	ProductName     string        `json:"product_name"`
	SubmittedAt     string        `json:"submitted_at"`
	Link            string        `json:"link"`
	Responses       []export.Row  `json:"responses"`
}

// NewPayload describes a submitted instance. rows come from export.Rows.
func NewPayload(inst model.Instance, link string, submittedAt time.Time, rows []export.Row) Payload {
	return Payload{
		QuestionnaireID: inst.ID,
		Variant:         inst.Variant,
		ClientName:      inst.ClientName,
		ProductName:     inst.ProductName,
		SubmittedAt:     submittedAt.UTC().Format(export.TimeFormat),
		Link:            link,
		Responses:       rows,
	}
}

type Notifier struct {
	url     string
	timeout time.Duration
	client  *http.Client
	policy  backoff.Policy
	wg      sync.WaitGroup
}

// New returns a notifier posting to url. An empty url disables delivery.
func New(url string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Notifier{
		url:     url,
		timeout: timeout,
		client:  &http.Client{},
		policy: backoff.Exponential(
			backoff.WithMinInterval(200*time.Millisecond),
			backoff.WithMaxInterval(2*time.Second),
			backoff.WithJitterFactor(0.1),
			backoff.WithMaxRetries(3),
		),
	}
}

// Notify sends p in the background and returns immediately.
func (n *Notifier) Notify(p Payload) {
	fields := log.Fields{"instance": p.QuestionnaireID, "variant": p.Variant}
	if n.url == "" {
		log.WithFields(fields).Warn("notify: endpoint not configured, skipping")
		return
	}
	body, err := json.Marshal(p)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("notify.encode")
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		err := n.deliver(ctx, body)
		if err != nil {
			log.WithFields(fields).WithError(err).Error("notify.deliver")
			return
		}
		log.WithFields(fields).Debug("notify: delivered")
	}()
}

func (n *Notifier) deliver(ctx context.Context, body []byte) (err error) {
	b := n.policy.Start(ctx)
	for backoff.Continue(b) {
		var retry bool
		retry, err = n.post(ctx, body)
		if !retry {
			return err
		}
		log.WithError(err).Debug("notify: retrying")
	}
	if err == nil {
		err = ctx.Err()
	}
	return err
}

// post sends one attempt. It asks for a retry on transport errors and on
// server errors.
func (n *Notifier) post(ctx context.Context, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := n.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("endpoint responded with status %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("endpoint responded with status %d", resp.StatusCode)
	}
}

// Wait blocks until every pending delivery has finished, then drops idle
// connections.
func (n *Notifier) Wait() {
	n.wg.Wait()
	n.client.CloseIdleConnections()
}
