// Package events publishes job status changes to NATS so other services can
// follow conversions without polling.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/lexiqai/doc-audio-service/internal/jobs"
	"github.com/lexiqai/doc-audio-service/internal/observability"
)

// Publisher sends each job status snapshot to <prefix>.<job_id>
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger zerolog.Logger
}

// Connect dials the NATS servers in url (comma separated)
func Connect(url, prefix string, timeout time.Duration) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("no NATS servers configured")
	}

	logger := observability.Component("events")
	conn, err := nats.Connect(url,
		nats.Name("doc-audio-service"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("server", c.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger.Info().Str("servers", url).Str("prefix", prefix).Msg("Connected to NATS")
	return &Publisher{conn: conn, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject a job's updates are published on
func (p *Publisher) Subject(jobID string) string {
	return p.prefix + "." + jobID
}

// Notify publishes st. Publishing is buffered by the client, so failures
// are only logged.
func (p *Publisher) Notify(st jobs.Status) {
	data, err := json.Marshal(st)
	if err != nil {
		p.logger.Error().Err(err).Str("job_id", st.JobID).Msg("Failed to encode job status")
		return
	}
	if err := p.conn.Publish(p.Subject(st.JobID), data); err != nil {
		observability.RecordError("publish", "events")
		p.logger.Warn().Err(err).Str("job_id", st.JobID).Msg("Failed to publish job status")
	}
}

// Healthy reports whether the connection is up
func (p *Publisher) Healthy(ctx context.Context) (bool, error) {
	if status := p.conn.Status(); status != nats.CONNECTED {
		return false, fmt.Errorf("nats connection %s", status)
	}
	return true, nil
}

// Close flushes pending messages and closes the connection
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
