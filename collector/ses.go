package collector

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// SESAPI is the part of the mail service the SES source queries. Every call
// returns the decoded response as nested mappings, e.g.
//
//	{"GetSendQuotaResponse": {"GetSendQuotaResult": {"MaxSendRate": "14.0", ...}}}
type SESAPI interface {
	ListVerifiedEmailAddresses(ctx context.Context) (map[string]any, error)
	GetSendQuota(ctx context.Context) (map[string]any, error)
	GetSendStatistics(ctx context.Context) (map[string]any, error)
}

// SES reports sender identities, sending quota and recent send statistics.
type SES struct {
	api     SESAPI
	service string
	window  time.Duration
	now     func() time.Time
}

// SESOption customises an SES source.
type SESOption func(*SES)

// WithService sets the first segment of every key (default "ses").
func WithService(name string) SESOption {
	return func(s *SES) { s.service = name }
}

// WithWindow sets the trailing window of send statistics (default 24h).
func WithWindow(d time.Duration) SESOption {
	return func(s *SES) { s.window = d }
}

// WithClock replaces time.Now as the reference for the statistics window.
func WithClock(now func() time.Time) SESOption {
	return func(s *SES) { s.now = now }
}

// NewSES binds a source to a connected backend handle.
func NewSES(api SESAPI, opts ...SESOption) (*SES, error) {
	if api == nil {
		return nil, fmt.Errorf("ses source: %w", ErrBackendUnavailable)
	}
	s := &SES{
		api:     api,
		service: "ses",
		window:  24 * time.Hour,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements Source.
func (s *SES) Name() string { return s.service }

// FetchMetrics implements Source.
func (s *SES) FetchMetrics(ctx context.Context) iter.Seq2[Sample, error] {
	return FetchAll(ctx, s.service, []Query{
		{Name: "verified_email_addresses", Fetch: s.VerifiedEmailAddresses},
		{Name: "quota", Fetch: s.Quota},
		{Name: "send_statistics", Fetch: func(ctx context.Context) ([]Sample, error) {
			return s.SendStatistics(ctx, s.now().Add(-s.window))
		}},
	})
}

// VerifiedEmailAddresses counts the verified sender identities. A response
// without the address list counts as zero.
func (s *SES) VerifiedEmailAddresses(ctx context.Context) ([]Sample, error) {
	resp, err := s.api.ListVerifiedEmailAddresses(ctx)
	if err != nil {
		return nil, err
	}
	var n int
	switch list := dig(resp, "ListVerifiedEmailAddressesResponse", "ListVerifiedEmailAddressesResult")["VerifiedEmailAddresses"].(type) {
	case nil:
	case []any:
		n = len(list)
	case []string:
		n = len(list)
	default:
		return nil, malformed("VerifiedEmailAddresses is %T", list)
	}
	return []Sample{s.sample(float64(n), "verified_email_addresses")}, nil
}

// quotaFields lists the quota fields in emission order with their key suffix.
var quotaFields = []struct{ field, key string }{
	{"Max24HourSend", "quota.max_24_hour_send"},
	{"SentLast24Hours", "quota.sent_last_24_hours"},
	{"MaxSendRate", "quota.max_send_rate"},
}

// Quota reports the sending limits. All three fields are required; a zero
// quota is never made up for a missing one.
func (s *SES) Quota(ctx context.Context) ([]Sample, error) {
	resp, err := s.api.GetSendQuota(ctx)
	if err != nil {
		return nil, err
	}
	result := dig(resp, "GetSendQuotaResponse", "GetSendQuotaResult")

	samples := make([]Sample, 0, len(quotaFields))
	for _, q := range quotaFields {
		v, ok := result[q.field]
		if !ok {
			return nil, malformed("quota without %s", q.field)
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, malformed("quota %s: %v", q.field, err)
		}
		samples = append(samples, s.sample(f, q.key))
	}
	return samples, nil
}

// SendStatisticsSince yields the backend's send data points reported strictly
// after since. It does not aggregate.
func (s *SES) SendStatisticsSince(ctx context.Context, since time.Time) iter.Seq2[DataPoint, error] {
	return Since(s.sendDataPoints(ctx), since)
}

func (s *SES) sendDataPoints(ctx context.Context) iter.Seq2[DataPoint, error] {
	return func(yield func(DataPoint, error) bool) {
		resp, err := s.api.GetSendStatistics(ctx)
		if err != nil {
			yield(DataPoint{}, err)
			return
		}

		var items []any
		switch list := dig(resp, "GetSendStatisticsResponse", "GetSendStatisticsResult")["SendDataPoints"].(type) {
		case nil:
		case []any:
			items = list
		case []map[string]any:
			for _, m := range list {
				items = append(items, m)
			}
		default:
			yield(DataPoint{}, malformed("SendDataPoints is %T", list))
			return
		}

		for _, item := range items {
			raw, ok := item.(map[string]any)
			if !ok {
				yield(DataPoint{}, malformed("send data point is %T", item))
				return
			}
			p, err := ParseDataPoint(raw)
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}

// SendStatistics sums every send data point field over the window starting
// at since, one sample per field in field-name order.
func (s *SES) SendStatistics(ctx context.Context, since time.Time) ([]Sample, error) {
	totals, err := SumFields(s.SendStatisticsSince(ctx, since))
	if err != nil {
		return nil, err
	}
	samples := make([]Sample, 0, len(totals))
	for _, t := range totals {
		key := fmt.Sprintf("stats.%s_last_24_hours", strings.ToLower(t.Field))
		samples = append(samples, s.sample(float64(t.Total), key))
	}
	return samples, nil
}

func (s *SES) sample(v float64, key string) Sample {
	return Sample{Value: v, Key: s.service + "." + key, Type: TypeKV}
}

// dig walks nested mappings. Any missing or non-mapping step yields an empty
// mapping.
func dig(m map[string]any, path ...string) map[string]any {
	cur := m
	for _, k := range path {
		next, ok := cur[k].(map[string]any)
		if !ok {
			return map[string]any{}
		}
		cur = next
	}
	if cur == nil {
		return map[string]any{}
	}
	return cur
}
