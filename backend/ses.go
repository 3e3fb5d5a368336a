// Package backend connects metric sources to the AWS APIs they query.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"

	"ceilometer/collector"
)

// Client is the subset of the SES SDK client used here.
type Client interface {
	ListVerifiedEmailAddresses(ctx context.Context, in *ses.ListVerifiedEmailAddressesInput, opts ...func(*ses.Options)) (*ses.ListVerifiedEmailAddressesOutput, error)
	GetSendQuota(ctx context.Context, in *ses.GetSendQuotaInput, opts ...func(*ses.Options)) (*ses.GetSendQuotaOutput, error)
	GetSendStatistics(ctx context.Context, in *ses.GetSendStatisticsInput, opts ...func(*ses.Options)) (*ses.GetSendStatisticsOutput, error)
}

// SES answers collector.SESAPI queries with mappings shaped like the SES
// query API responses.
type SES struct {
	client Client
}

var _ collector.SESAPI = (*SES)(nil)

// NewSES wraps an SDK client.
func NewSES(client Client) *SES {
	return &SES{client: client}
}

// Connect resolves region and credentials once. Failing to do so is
// reported as collector.ErrBackendUnavailable.
func Connect(ctx context.Context, region string) (*SES, error) {
	if region == "" {
		return nil, fmt.Errorf("%w: no region", collector.ErrBackendUnavailable)
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %w", collector.ErrBackendUnavailable, err)
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("%w: resolve credentials for %s: %w", collector.ErrBackendUnavailable, region, err)
	}
	return NewSES(ses.NewFromConfig(cfg)), nil
}

// ListVerifiedEmailAddresses implements collector.SESAPI.
func (s *SES) ListVerifiedEmailAddresses(ctx context.Context) (map[string]any, error) {
	out, err := s.client.ListVerifiedEmailAddresses(ctx, &ses.ListVerifiedEmailAddressesInput{})
	if err != nil {
		return nil, fmt.Errorf("list verified email addresses: %w", err)
	}
	addrs := make([]any, 0, len(out.VerifiedEmailAddresses))
	for _, a := range out.VerifiedEmailAddresses {
		addrs = append(addrs, a)
	}
	return wrap("ListVerifiedEmailAddresses", map[string]any{
		"VerifiedEmailAddresses": addrs,
	}), nil
}

// GetSendQuota implements collector.SESAPI.
func (s *SES) GetSendQuota(ctx context.Context) (map[string]any, error) {
	out, err := s.client.GetSendQuota(ctx, &ses.GetSendQuotaInput{})
	if err != nil {
		return nil, fmt.Errorf("get send quota: %w", err)
	}
	return wrap("GetSendQuota", map[string]any{
		"Max24HourSend":   out.Max24HourSend,
		"SentLast24Hours": out.SentLast24Hours,
		"MaxSendRate":     out.MaxSendRate,
	}), nil
}

// GetSendStatistics implements collector.SESAPI. Timestamps are rendered as
// RFC 3339 strings in UTC; a point without one is passed on without the key.
func (s *SES) GetSendStatistics(ctx context.Context) (map[string]any, error) {
	out, err := s.client.GetSendStatistics(ctx, &ses.GetSendStatisticsInput{})
	if err != nil {
		return nil, fmt.Errorf("get send statistics: %w", err)
	}
	points := make([]any, 0, len(out.SendDataPoints))
	for _, dp := range out.SendDataPoints {
		p := map[string]any{
			"Bounces":          dp.Bounces,
			"Complaints":       dp.Complaints,
			"DeliveryAttempts": dp.DeliveryAttempts,
			"Rejects":          dp.Rejects,
		}
		if dp.Timestamp != nil {
			p["Timestamp"] = aws.ToTime(dp.Timestamp).UTC().Format(time.RFC3339)
		}
		points = append(points, p)
	}
	return wrap("GetSendStatistics", map[string]any{
		"SendDataPoints": points,
	}), nil
}

// wrap nests result as {"<op>Response": {"<op>Result": result}}.
func wrap(op string, result map[string]any) map[string]any {
	return map[string]any{
		op + "Response": map[string]any{
			op + "Result": result,
		},
	}
}
