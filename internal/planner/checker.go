package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/telescopiosnaescola/argus/pkg/astro"
	"github.com/telescopiosnaescola/argus/pkg/realtime"
	"go.uber.org/zap"
)

// CheckState is the visibility verdict for a coordinate.
type CheckState string

const (
	CheckPending  CheckState = "pending"
	CheckApproved CheckState = "approved"
	CheckRejected CheckState = "rejected"
)

// AdvisoryAltitude is the altitude below which the checker attaches an
// observation quality hint. The hint is advisory only; the server's
// answer is the authoritative visibility decision.
const AdvisoryAltitude = 30.0

// CheckResult is the outcome of a coordinate visibility check.
type CheckResult struct {
	Now    CheckState
	OnDate CheckState
	// Hint is a non-empty advisory when the locally estimated altitude
	// is poor.
	Hint string
}

// Checker asks the portal whether a coordinate can be observed, over the
// realtime channel, with each request correlated to its response.
type Checker struct {
	channel *realtime.Client
	logger  *zap.Logger

	mu   sync.Mutex
	last CheckResult
}

// NewChecker creates a visibility checker over the realtime channel.
func NewChecker(channel *realtime.Client, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		channel: channel,
		logger:  logger.With(zap.String("component", "visibility_checker")),
		last:    CheckResult{Now: CheckPending, OnDate: CheckPending},
	}
}

// Last returns the most recent check result.
func (c *Checker) Last() CheckResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// CheckInput parses a raw "RA  DEC" input and checks it. When startTime
// is non-empty the on-date check runs as well. siteLat/siteLon feed the
// local advisory altitude estimate.
func (c *Checker) CheckInput(ctx context.Context, input, startTime string, siteLat, siteLon float64) (CheckResult, error) {
	ra, dec, err := astro.ParseCoordinateDegrees(input)
	if err != nil {
		return CheckResult{}, err
	}
	return c.Check(ctx, ra, dec, startTime, siteLat, siteLon)
}

// Check runs the visibility exchange for a coordinate in degrees.
func (c *Checker) Check(ctx context.Context, ra, dec float64, startTime string, siteLat, siteLon float64) (CheckResult, error) {
	result := CheckResult{Now: CheckPending, OnDate: CheckPending}

	raStr := astro.FormatRA(ra)
	decStr := astro.FormatDEC(dec)

	c.setLast(result)

	nowState, err := c.ask(ctx, realtime.TypeCheckCoord, realtime.CoordCheckRequest{RA: raStr, DEC: decStr})
	if err != nil {
		return c.Last(), err
	}
	result.Now = nowState

	if startTime != "" {
		onDate, err := c.ask(ctx, realtime.TypeCheckCoordOnDate, realtime.CoordCheckRequest{RA: raStr, DEC: decStr, Date: startTime})
		if err != nil {
			c.setLast(result)
			return c.Last(), err
		}
		result.OnDate = onDate
	}

	result.Hint = AltitudeHint(ra, dec, siteLat, siteLon)
	c.setLast(result)
	return result, nil
}

func (c *Checker) ask(ctx context.Context, msgType string, req realtime.CoordCheckRequest) (CheckState, error) {
	msg, err := c.channel.Request(ctx, msgType, req)
	if err != nil {
		// A missing response leaves the verdict pending.
		return CheckPending, fmt.Errorf("%s exchange failed: %w", msgType, err)
	}

	var resp realtime.CoordCheckResponse
	if err := json.Unmarshal(msg.Payload, &resp); err != nil {
		c.logger.Warn("Malformed visibility response", zap.String("type", msg.Type), zap.Error(err))
		return CheckPending, nil
	}
	if resp.Allowed {
		return CheckApproved, nil
	}
	return CheckRejected, nil
}

func (c *Checker) setLast(r CheckResult) {
	c.mu.Lock()
	c.last = r
	c.mu.Unlock()
}

// AltitudeHint computes the local advisory altitude for a target and
// returns a quality hint when it is below AdvisoryAltitude.
func AltitudeHint(ra, dec, siteLat, siteLon float64) string {
	alt := astro.Altitude(nowUTC(), ra, dec, siteLat, siteLon)
	if alt < AdvisoryAltitude {
		return fmt.Sprintf("target altitude is %.1f°; objects above %.0f° give better observation quality", alt, AdvisoryAltitude)
	}
	return ""
}

// nowUTC is replaceable in tests.
var nowUTC = func() time.Time { return time.Now().UTC() }
