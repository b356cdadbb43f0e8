package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/classbridge/billing-renewals/internal/renewal"
	"github.com/classbridge/billing-renewals/pkg/config"
	"github.com/classbridge/billing-renewals/pkg/logger"
)

func sampleSummary() renewal.Summary {
	return renewal.Summary{
		RunID:      "run-42",
		Processed:  3,
		Successful: 2,
		Failed:     1,
		Errors: []renewal.SummaryError{
			{SubscriptionID: "sub-1", UserEmail: "student@example.com", Reason: "Your card was declined."},
		},
	}
}

type recordingNotifier struct {
	calls int
	err   error
}

func (r *recordingNotifier) NotifyRunSummary(context.Context, renewal.Summary) error {
	r.calls++
	return r.err
}

func TestMultiCallsEveryNotifierAndJoinsErrors(t *testing.T) {
	first := &recordingNotifier{err: errors.New("smtp refused")}
	second := &recordingNotifier{}
	third := &recordingNotifier{err: errors.New("topic missing")}

	err := Multi{first, nil, second, third}.NotifyRunSummary(context.Background(), sampleSummary())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp refused")
	assert.Contains(t, err.Error(), "topic missing")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 1, third.calls)
}

func TestBodyListsFailures(t *testing.T) {
	body := Body(sampleSummary())
	assert.Contains(t, body, "Run run-42")
	assert.Contains(t, body, "Failed:     1")
	assert.Contains(t, body, "- sub-1 (student@example.com): Your card was declined.")
	assert.Equal(t, "Renewal run: 3 processed, 2 succeeded, 1 failed", Subject(sampleSummary()))
}

func TestLogNotifierWritesSummary(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "notify-test", Output: &buf})
	n, err := NewLogNotifier(logg)
	require.NoError(t, err)

	require.NoError(t, n.NotifyRunSummary(context.Background(), sampleSummary()))
	out := buf.String()
	assert.Contains(t, out, `"event":"renewal.summary"`)
	assert.Contains(t, out, `"failed":1`)
	assert.Contains(t, out, "student@example.com")
}

type fakeSender struct {
	messages []*gomail.Message
	err      error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.messages = append(f.messages, m...)
	return f.err
}

func TestEmailNotifierSendsToOperator(t *testing.T) {
	sender := &fakeSender{}
	n := newEmailNotifier(sender, "billing@classbridge.app", "ops@classbridge.app")

	require.NoError(t, n.NotifyRunSummary(context.Background(), sampleSummary()))
	require.Len(t, sender.messages, 1)
	msg := sender.messages[0]
	assert.Equal(t, []string{"ops@classbridge.app"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"billing@classbridge.app"}, msg.GetHeader("From"))
	assert.Equal(t, []string{Subject(sampleSummary())}, msg.GetHeader("Subject"))

	var raw bytes.Buffer
	_, err := msg.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "student@example.com")
}

func TestEmailNotifierWrapsSendError(t *testing.T) {
	n := newEmailNotifier(&fakeSender{err: errors.New("connection refused")}, "a@b.c", "ops@b.c")
	err := n.NotifyRunSummary(context.Background(), sampleSummary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ops@b.c")
}

func TestNewEmailNotifierRequiresSMTP(t *testing.T) {
	_, err := NewEmailNotifier(config.NotifyConfig{OperatorEmail: "ops@classbridge.app"})
	assert.Error(t, err)
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	err      error
}

type fakeResult struct{ err error }

func (r fakeResult) Get(context.Context) (string, error) { return "msg-1", r.err }

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	return fakeResult{err: f.err}
}

func TestPubSubNotifierPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	n := newPubSubNotifier(pub)

	require.NoError(t, n.NotifyRunSummary(context.Background(), sampleSummary()))
	require.Len(t, pub.messages, 1)
	msg := pub.messages[0]
	assert.Equal(t, summaryEventType, msg.Attributes["event_type"])
	assert.Equal(t, "run-42", msg.Attributes["run_id"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.EqualValues(t, 3, decoded["processed"])
	errs, ok := decoded["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "sub-1", errs[0].(map[string]any)["subscriptionId"])
}

func TestPubSubNotifierReturnsPublishError(t *testing.T) {
	n := newPubSubNotifier(&fakePublisher{err: errors.New("permission denied")})
	err := n.NotifyRunSummary(context.Background(), sampleSummary())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "permission denied"))
}

func TestFromConfig(t *testing.T) {
	notifiers, err := FromConfig(config.NotifyConfig{}, logger.Discard(), nil)
	require.NoError(t, err)
	assert.Len(t, notifiers, 1)

	notifiers, err = FromConfig(config.NotifyConfig{SMTPHost: "smtp.example.com", SMTPPort: 587, OperatorEmail: "ops@classbridge.app"}, logger.Discard(), nil)
	require.NoError(t, err)
	assert.Len(t, notifiers, 2)

	_, err = FromConfig(config.NotifyConfig{PubSubTopic: "renewals"}, logger.Discard(), nil)
	assert.Error(t, err)
}
