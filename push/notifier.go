package push

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Message is the test-hook payload: a provider delivery token plus the
// displayable content. Actual delivery is the push provider's concern.
type Message struct {
	To    string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Notifier posts delivery requests to the push provider's test endpoint.
type Notifier struct {
	endpoint   string
	httpClient *http.Client
	log        zerolog.Logger
}

type NotifierOption func(*Notifier)

func WithHTTPClient(httpClient *http.Client) NotifierOption {
	return func(n *Notifier) {
		n.httpClient = httpClient
	}
}

func WithLogger(log zerolog.Logger) NotifierOption {
	return func(n *Notifier) {
		n.log = log
	}
}

func New(endpoint string, options ...NotifierOption) *Notifier {
	n := &Notifier{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(n)
	}
	return n
}

func (n *Notifier) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "[Notifier.Send] marshal")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "[Notifier.Send] build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[Notifier.Send]")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("[Notifier.Send] push endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// SendAsync is the fire-and-forget path: delivery failures are logged, never
// surfaced.
func (n *Notifier) SendAsync(msg Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.Send(ctx, msg); err != nil {
			n.log.Warn().Err(err).Str("to", msg.To).Msg("push test hook failed")
		}
	}()
}
