// Package notifier delivers notifications to an external webhook endpoint.
// Delivery is best effort: the persisted inbox row is the source of truth,
// a failed post is logged and dropped.
package notifier

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// timeout is the timeout for webhook request. Default to 30 seconds.
	timeout = 30 * time.Second
)

// Payload is the body posted to the notification endpoint.
type Payload struct {
	// DeliveryID makes redelivery detectable on the receiving side.
	DeliveryID string `json:"deliveryId"`
	Kind       string `json:"kind"`
	ReceiverID int32  `json:"receiverId"`
	GroupUID   string `json:"groupUid"`
	GroupName  string `json:"groupName"`
	CreatedTs  int64  `json:"createdTs"`
}

// Notifier posts payloads to a fixed webhook URL. A Notifier with an empty
// URL is valid and drops every payload.
type Notifier struct {
	url    string
	client *http.Client
}

func New(url string) *Notifier {
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// Post posts the notification to the webhook endpoint.
func (n *Notifier) Post(payload *Payload) error {
	if n.url == "" {
		return nil
	}
	if payload.DeliveryID == "" {
		payload.DeliveryID = uuid.NewString()
	}
	if payload.CreatedTs == 0 {
		payload.CreatedTs = time.Now().Unix()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal notification for %s", n.url)
	}

	req, err := http.NewRequest("POST", n.url, bytes.NewBuffer(body))
	if err != nil {
		return errors.Wrapf(err, "failed to construct notification request to %s", n.url)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to post notification to %s", n.url)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read notification response from %s", n.url)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("failed to post notification to %s, status code: %d, response body: %s", n.url, resp.StatusCode, b)
	}

	return nil
}
